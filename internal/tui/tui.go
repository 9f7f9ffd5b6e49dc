// Package tui provides the terminal dialogs of jobs-as-code.
package tui

import (
	"context"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/jobs-as-code/internal/domain/changeset"
	"github.com/felixgeelhaar/jobs-as-code/internal/tui/components"
	"github.com/felixgeelhaar/jobs-as-code/internal/tui/ui"
)

// maxListed bounds the changes listed above the dialog.
const maxListed = 15

// SyncConfirmModel asks for approval before a change set is applied.
type SyncConfirmModel struct {
	report    changeset.Report
	confirm   components.Confirm
	styles    ui.Styles
	done      bool
	confirmed bool
}

// NewSyncConfirmModel creates the dialog for report.
func NewSyncConfirmModel(report changeset.Report) SyncConfirmModel {
	total := len(report.JobChanges) + len(report.EnvVarOverwriteChanges)
	return SyncConfirmModel{
		report:  report,
		confirm: components.NewConfirm(fmt.Sprintf("Apply %d change(s) to dbt Cloud?", total)).WithYesLabel("Apply").WithNoLabel("Abort"),
		styles:  ui.DefaultStyles(),
	}
}

// Confirmed reports whether the user approved the apply.
func (m SyncConfirmModel) Confirmed() bool {
	return m.confirmed
}

// Done reports whether the user answered.
func (m SyncConfirmModel) Done() bool {
	return m.done
}

// Init implements tea.Model.
func (m SyncConfirmModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m SyncConfirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if result, ok := msg.(components.ConfirmResultMsg); ok {
		m.done = true
		m.confirmed = result.Confirmed
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.confirm, cmd = m.confirm.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m SyncConfirmModel) View() string {
	if m.done {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.styles.Title.Render("Pending changes"))
	b.WriteString("\n")

	listed := 0
	counts := map[string]int{}
	for _, entries := range [][]changeset.ReportEntry{m.report.JobChanges, m.report.EnvVarOverwriteChanges} {
		for _, e := range entries {
			counts[e.Action]++
			if listed < maxListed {
				fmt.Fprintf(&b, "  %s %s %s\n", m.styles.Action(e.Action).Render(fmt.Sprintf("%-6s", e.Action)), e.Type, e.Identifier)
			}
			listed++
		}
	}
	if listed > maxListed {
		fmt.Fprintf(&b, "  … and %d more\n", listed-maxListed)
	}
	fmt.Fprintf(&b, "\n%s %d to create, %s %d to update, %s %d to delete\n\n",
		m.styles.Create.Render("+"), counts["CREATE"],
		m.styles.Update.Render("~"), counts["UPDATE"],
		m.styles.Delete.Render("-"), counts["DELETE"])

	return lipgloss.JoinVertical(lipgloss.Left, b.String(), m.confirm.View()) + "\n"
}

// ConfirmSync runs the dialog on the given terminal streams and returns
// the answer. An interrupted dialog counts as a refusal.
func ConfirmSync(ctx context.Context, report changeset.Report, in io.Reader, out io.Writer) (bool, error) {
	p := tea.NewProgram(NewSyncConfirmModel(report),
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
	)
	final, err := p.Run()
	if err != nil {
		return false, fmt.Errorf("confirmation dialog failed: %w", err)
	}
	m, ok := final.(SyncConfirmModel)
	return ok && m.Confirmed(), nil
}
