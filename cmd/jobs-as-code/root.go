package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	settings "github.com/felixgeelhaar/jobs-as-code/internal/config"
	"github.com/felixgeelhaar/jobs-as-code/internal/domain/config"
	"github.com/felixgeelhaar/jobs-as-code/internal/ports"
)

var (
	// Global flags
	settingsFile string
	verbose      bool
	disableSSL   bool
)

var rootCmd = &cobra.Command{
	Use:   "jobs-as-code",
	Short: "Manage dbt Cloud jobs from YAML files",
	Long: `jobs-as-code keeps dbt Cloud jobs in sync with their YAML definitions.

Jobs are managed when their remote name ends with [[identifier]]:
  plan     shows the changes needed to match the YAML files
  sync     applies them
  import   exports existing jobs as YAML`,
	SilenceErrors: true, // We handle error formatting ourselves
	SilenceUsage:  true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&settingsFile, "settings", "", "tool settings file (default: "+settings.DefaultFile+" when present)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "debug logs and technical error details")
	rootCmd.PersistentFlags().BoolVar(&disableSSL, "disable-ssl-verification", false, "skip TLS certificate verification")

	_ = rootCmd.RegisterFlagCompletionFunc("settings", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"yaml", "yml"}, cobra.ShellCompDirectiveFilterFileExt
	})

	rootCmd.AddCommand(versionCmd)
}

// errApplyFailed is returned when at least one change could not be applied.
var errApplyFailed = errors.New("some changes could not be applied")

// formatError returns a user-friendly error message.
// With verbose=false: shows only the user message and suggestion.
// With verbose=true: also shows the underlying technical error.
func formatError(err error) string {
	var list *config.ErrorList
	if errors.As(err, &list) {
		return list.Format()
	}

	var userErr *config.UserError
	if errors.As(err, &userErr) {
		msg := userErr.Message
		if userErr.Context != "" {
			msg += fmt.Sprintf(" (at %s)", userErr.Context)
		}
		if userErr.Suggestion != "" {
			msg += fmt.Sprintf("\n\nSuggestion: %s", userErr.Suggestion)
		}
		if verbose && userErr.Underlying != nil {
			msg += fmt.Sprintf("\n\nTechnical details: %v", userErr.Underlying)
		}
		return msg
	}

	var remote *ports.RemoteError
	if errors.As(err, &remote) && !verbose && remote.StatusCode != 0 {
		return fmt.Sprintf("%s failed with status %d: %s", remote.Op, remote.StatusCode, remote.Body)
	}
	return err.Error()
}

func printError(err error) {
	printErrorTo(os.Stderr, err)
}

func printErrorTo(w io.Writer, err error) {
	_, _ = fmt.Fprintf(w, "Error: %s\n", formatError(err))
}
