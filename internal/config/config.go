// Package config loads the tool settings: where the dbt Cloud API lives,
// how to authenticate, and how to log and apply.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/felixgeelhaar/jobs-as-code/internal/adapters/dbtcloud"
	"github.com/felixgeelhaar/jobs-as-code/internal/ports"
)

// DefaultFile is read from the working directory when no settings file is
// given explicitly.
const DefaultFile = "jobs-as-code.yaml"

// Environment variables that override the settings file.
const (
	EnvAPIKey        = "DBT_API_KEY"
	EnvBaseURL       = "DBT_BASE_URL"
	EnvDisableSSL    = "DBT_JOBS_AS_CODE_DISABLE_SSL_VERIFICATION"
	EnvLogLevel      = "DBT_JOBS_AS_CODE_LOG_LEVEL"
	EnvMetricsTarget = "DBT_JOBS_AS_CODE_METRICS_TEXTFILE"
)

// Settings are the tool settings.
type Settings struct {
	BaseURL                string          `koanf:"base_url"`
	APIKey                 string          `koanf:"api_key"`
	DisableSSLVerification bool            `koanf:"disable_ssl_verification"`
	Log                    LogSettings     `koanf:"log"`
	Apply                  ApplySettings   `koanf:"apply"`
	Metrics                MetricsSettings `koanf:"metrics"`
}

// LogSettings control the console logger.
type LogSettings struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // text or json
}

// ApplySettings control how a change set is applied.
type ApplySettings struct {
	Parallelism int  `koanf:"parallelism"`
	FailFast    bool `koanf:"fail_fast"`
}

// MetricsSettings control the Prometheus textfile output.
type MetricsSettings struct {
	Textfile string `koanf:"textfile"`
}

var defaults = map[string]any{
	"base_url":                 dbtcloud.DefaultBaseURL,
	"disable_ssl_verification": false,
	"log.level":                "info",
	"log.format":               "text",
	"apply.parallelism":        1,
	"apply.fail_fast":          false,
}

// LookupEnv matches os.LookupEnv.
type LookupEnv func(key string) (string, bool)

// Load reads the settings file at path (or DefaultFile when path is empty
// and the file exists), then applies environment overrides.
func Load(path string, lookup LookupEnv) (*Settings, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	k := koanf.New(".")
	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("failed to set default %s: %w", key, err)
		}
	}

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load settings: %w", err)
		}
	} else if explicit || !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	overrides := map[string]string{
		EnvAPIKey:        "api_key",
		EnvBaseURL:       "base_url",
		EnvLogLevel:      "log.level",
		EnvMetricsTarget: "metrics.textfile",
	}
	for env, key := range overrides {
		if v, ok := lookup(env); ok && v != "" {
			if err := k.Set(key, v); err != nil {
				return nil, fmt.Errorf("failed to apply %s: %w", env, err)
			}
		}
	}
	if v, ok := lookup(EnvDisableSSL); ok && truthy(v) {
		if err := k.Set("disable_ssl_verification", true); err != nil {
			return nil, fmt.Errorf("failed to apply %s: %w", EnvDisableSSL, err)
		}
	}

	var s Settings
	if err := k.Unmarshal("", &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("settings validation failed: %w", err)
	}
	s.BaseURL = strings.TrimRight(s.BaseURL, "/")
	return &s, nil
}

// Validate checks the settings for values the tool cannot use.
func (s *Settings) Validate() error {
	if s.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if _, err := ports.ParseLevel(s.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch s.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", s.Log.Format)
	}
	if s.Apply.Parallelism < 1 {
		return fmt.Errorf("apply.parallelism must be at least 1")
	}
	return nil
}

// LogLevel returns the parsed log level.
func (s *Settings) LogLevel() ports.Level {
	level, _ := ports.ParseLevel(s.Log.Level)
	return level
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
