package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/jobs-as-code/internal/adapters/dbtcloud"
	"github.com/felixgeelhaar/jobs-as-code/internal/adapters/logging"
	"github.com/felixgeelhaar/jobs-as-code/internal/adapters/metrics"
	"github.com/felixgeelhaar/jobs-as-code/internal/app"
	settings "github.com/felixgeelhaar/jobs-as-code/internal/config"
	"github.com/felixgeelhaar/jobs-as-code/internal/ports"
)

// session bundles what a command needs to talk to dbt Cloud.
type session struct {
	settings *settings.Settings
	logger   ports.Logger
	recorder *metrics.Recorder
	app      *app.App
}

// newClient builds the remote accessor factory; tests replace it.
var newClient = func(s *settings.Settings, logger ports.Logger) app.ClientFactory {
	return func(accountID int) (ports.JobsAPI, error) {
		c, err := dbtcloud.New(accountID, s.APIKey,
			dbtcloud.WithBaseURL(s.BaseURL),
			dbtcloud.WithInsecureSkipVerify(s.DisableSSLVerification),
			dbtcloud.WithLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// newSession loads the settings and wires the application. Logs go to the
// command's stderr so stdout only carries reports and exported YAML.
func newSession(cmd *cobra.Command, out io.Writer) (*session, error) {
	s, err := settings.Load(settingsFile, os.LookupEnv)
	if err != nil {
		return nil, err
	}
	if disableSSL {
		s.DisableSSLVerification = true
	}

	level := s.LogLevel()
	if verbose {
		level = ports.LevelDebug
	}
	json := s.Log.Format == "json"
	logger := logging.NewConsoleLogger(
		logging.WithOutput(cmd.ErrOrStderr()),
		logging.WithLevel(level),
		logging.WithJSONFormat(json),
		logging.WithColor(!json),
	)

	rec := metrics.NewRecorder()
	a := app.New(newClient(s, logger), out).
		WithLogger(logger).
		WithRecorder(rec).
		WithBaseURL(s.BaseURL)

	return &session{settings: s, logger: logger, recorder: rec, app: a}, nil
}

// flush writes the metrics textfile when one is configured.
func (s *session) flush(cmd *cobra.Command) {
	path := s.settings.Metrics.Textfile
	if path == "" {
		return
	}
	if err := s.recorder.WriteToTextfile(path); err != nil {
		s.logger.Warn(cmd.Context(), "failed to write metrics", ports.F("path", path), ports.Err(err))
	}
}
