package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// LoadVars reads and merges vars files. Files ending in .toml are parsed as
// TOML, everything else as YAML. A variable defined in two files is an error.
func LoadVars(paths []string) (map[string]any, error) {
	vars := make(map[string]any)
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, NewConfigNotFoundError(path)
			}
			return nil, err
		}

		values := make(map[string]any)
		if strings.EqualFold(filepath.Ext(path), ".toml") {
			if err := toml.Unmarshal(data, &values); err != nil {
				return nil, NewUserError(ErrCodeConfigParse, "invalid TOML vars file").
					WithContext(path).
					WithUnderlying(err)
			}
		} else if err := yaml.Unmarshal(data, &values); err != nil {
			return nil, NewYAMLParseError(path, err)
		}

		for name, value := range values {
			if _, dup := vars[name]; dup {
				return nil, NewDuplicateVariableError(path, name)
			}
			vars[name] = value
		}
	}
	return vars, nil
}
