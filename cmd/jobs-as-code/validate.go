package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/jobs-as-code/internal/app"
)

var validateCmd = &cobra.Command{
	Use:   "validate CONFIG",
	Short: "Check that the YAML files are valid",
	Long: `Validate loads CONFIG and checks the schema, cron expressions and
templates of every job. With --online it also checks that the project,
environment and deferral ids exist in dbt Cloud.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

var (
	validateVars   []string
	validateOnline bool
)

var errInvalidIDs = errors.New("the config file references ids that do not exist in dbt Cloud")

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringSliceVarP(&validateVars, "vars-yml", "v", nil, "variables file for templated YAML (file, directory or glob)")
	validateCmd.Flags().BoolVar(&validateOnline, "online", false, "connect to dbt Cloud to check that ids are correct")
}

func runValidate(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	v, err := s.app.Validate(cmd.Context(), app.ValidateOptions{
		ConfigPatterns: []string{args[0]},
		VarsPatterns:   validateVars,
		Online:         validateOnline,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "✅ The config file has a valid YML format (%d jobs).\n", v.Jobs)
	if !v.Online {
		return nil
	}
	if !v.Valid() {
		for _, issue := range v.Issues {
			_, _ = fmt.Fprintf(out, "❌ %s\n", issue)
		}
		return errInvalidIDs
	}
	_, _ = fmt.Fprintln(out, "✅ The config file is valid")
	return nil
}
