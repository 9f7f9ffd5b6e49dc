package config

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/wasilibs/go-re2"
)

var placeholderPattern = re2.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// Placeholders returns the sorted, distinct variable names referenced as
// "{{ name }}" in content.
func Placeholders(content string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(content, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	sort.Strings(names)
	return names
}

// Render substitutes every placeholder with its value. It fails with the
// names of all placeholders that have no value.
func Render(path, content string, vars map[string]any) (string, error) {
	var missing []string
	for _, name := range Placeholders(content) {
		if _, ok := vars[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return "", NewUndefinedVariableError(path, missing)
	}

	return placeholderPattern.ReplaceAllStringFunc(content, func(token string) string {
		name := placeholderPattern.FindStringSubmatch(token)[1]
		return formatValue(vars[name])
	}), nil
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
