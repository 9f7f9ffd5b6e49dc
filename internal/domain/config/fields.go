package config

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Braces are swapped out while parsing so that an unquoted "{{ var }}" is
// read as a string instead of a YAML flow mapping.
var braceEscaper = strings.NewReplacer("{", "<[<", "}", ">]>")
var braceUnescaper = strings.NewReplacer("<[<", "{", ">]>", "}")

// LoadFieldTemplates reads a templated-fields file: a YAML mapping from
// dotted job field paths (e.g. "settings.target_name") to the value that
// replaces the field on export.
func LoadFieldTemplates(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewConfigNotFoundError(path)
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal([]byte(braceEscaper.Replace(string(data))), &raw); err != nil {
		return nil, NewYAMLParseError(path, err)
	}

	out := make(map[string]string, len(raw))
	for field, value := range raw {
		s, ok := value.(string)
		if !ok {
			s = formatValue(value)
		}
		out[field] = braceUnescaper.Replace(s)
	}
	return out, nil
}
