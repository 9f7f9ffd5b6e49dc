// Package render prints change-set reports and exports jobs as YAML.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/felixgeelhaar/jobs-as-code/internal/domain/changeset"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)

	// One colour per column, following the reading order of the row.
	columnColors = []lipgloss.Color{"6", "5", "2", "3", "1", "4", "9"}
)

// Table writes the report as a bordered table. Result ID and Error
// columns are added once the report carries apply outcomes.
func Table(w io.Writer, r changeset.Report) error {
	headers := []string{"Action", "Type", "ID", "Proj ID", "Env ID"}
	applied := r.Applied()
	if applied {
		headers = append(headers, "Result ID", "Error")
	}

	var rows [][]string
	for _, entries := range [][]changeset.ReportEntry{r.JobChanges, r.EnvVarOverwriteChanges} {
		for _, e := range entries {
			row := []string{
				e.Action,
				e.Type,
				e.Identifier,
				strconv.Itoa(e.ProjectID),
				strconv.Itoa(e.EnvironmentID),
			}
			if applied {
				result := ""
				if e.ResultID != nil {
					result = strconv.Itoa(*e.ResultID)
				}
				row = append(row, result, e.Error)
			}
			rows = append(rows, row)
		}
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle.Foreground(columnColors[col%len(columnColors)])
		})

	_, err := fmt.Fprintf(w, "%s\n%s\n", titleStyle.Render("Changes detected"), t.String())
	return err
}

// JSON writes the report as indented JSON.
func JSON(w io.Writer, r changeset.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
