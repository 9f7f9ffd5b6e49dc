package main

import (
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/jobs-as-code/internal/domain/changeset"
	"github.com/felixgeelhaar/jobs-as-code/internal/tui"
)

// tuiConfirm draws the dialog on stderr so a --json report on stdout stays
// parseable.
func tuiConfirm(cmd *cobra.Command, r changeset.Report) (bool, error) {
	return tui.ConfirmSync(cmd.Context(), r, cmd.InOrStdin(), cmd.ErrOrStderr())
}
