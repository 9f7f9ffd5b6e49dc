// Package testutil provides builders, fakes and file helpers for
// jobs-as-code tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// WriteTempFile writes content to a file in dir and returns its path.
// Intermediate directories are created.
func WriteTempFile(t *testing.T, dir, filename, content string) string {
	t.Helper()

	path := filepath.Join(dir, filename)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755), "failed to create directory for %s", filename)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644), "failed to write temp file: %s", filename)

	return path
}

// SetEnv sets an environment variable for the duration of the test.
func SetEnv(t *testing.T, key, value string) {
	t.Helper()

	original, had := os.LookupEnv(key)
	require.NoError(t, os.Setenv(key, value))

	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, original)
		} else {
			_ = os.Unsetenv(key)
		}
	})
}

// UnsetEnv unsets an environment variable for the duration of the test.
func UnsetEnv(t *testing.T, key string) {
	t.Helper()

	original, had := os.LookupEnv(key)
	require.NoError(t, os.Unsetenv(key))

	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, original)
		}
	})
}
