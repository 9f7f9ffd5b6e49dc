package testutil

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// AssertYAMLEquals compares two YAML documents structurally.
func AssertYAMLEquals(t testing.TB, expected, actual string, msgAndArgs ...any) {
	t.Helper()

	var want, got any
	require.NoError(t, yaml.Unmarshal([]byte(expected), &want), "failed to parse expected YAML")
	require.NoError(t, yaml.Unmarshal([]byte(actual), &got), "failed to parse actual YAML")
	assert.Equal(t, want, got, msgAndArgs...)
}

// AssertFileContains asserts that a file contains the expected substring.
func AssertFileContains(t testing.TB, path, expected string, msgAndArgs ...any) {
	t.Helper()

	content, err := os.ReadFile(path)
	require.NoError(t, err, "failed to read file: %s", path)
	assert.Contains(t, string(content), expected, msgAndArgs...)
}
