// Package ui provides the shared styles and key bindings of the terminal
// dialogs.
package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme colors (Catppuccin Mocha inspired).
var (
	ColorPrimary    = lipgloss.AdaptiveColor{Light: "#1e66f5", Dark: "#89b4fa"} // Blue
	ColorSuccess    = lipgloss.AdaptiveColor{Light: "#40a02b", Dark: "#a6e3a1"} // Green
	ColorWarning    = lipgloss.AdaptiveColor{Light: "#df8e1d", Dark: "#f9e2af"} // Yellow
	ColorError      = lipgloss.AdaptiveColor{Light: "#d20f39", Dark: "#f38ba8"} // Red
	ColorMuted      = lipgloss.AdaptiveColor{Light: "#6c6f85", Dark: "#6c7086"} // Overlay0
	ColorText       = lipgloss.AdaptiveColor{Light: "#4c4f69", Dark: "#cdd6f4"} // Text
	ColorBackground = lipgloss.AdaptiveColor{Light: "#eff1f5", Dark: "#1e1e2e"} // Base
	ColorSurface    = lipgloss.AdaptiveColor{Light: "#e6e9ef", Dark: "#313244"} // Surface0
)

// Styles contains reusable lipgloss styles.
type Styles struct {
	Title     lipgloss.Style
	Paragraph lipgloss.Style

	// Change actions
	Create lipgloss.Style
	Update lipgloss.Style
	Delete lipgloss.Style

	Button       lipgloss.Style
	ButtonActive lipgloss.Style

	Help lipgloss.Style
}

// DefaultStyles returns the default styles.
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			MarginBottom(1),

		Paragraph: lipgloss.NewStyle().
			Foreground(ColorText),

		Create: lipgloss.NewStyle().Foreground(ColorSuccess),
		Update: lipgloss.NewStyle().Foreground(ColorWarning),
		Delete: lipgloss.NewStyle().Foreground(ColorError),

		Button: lipgloss.NewStyle().
			Padding(0, 2).
			Foreground(ColorText).
			Background(ColorSurface).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorMuted),

		ButtonActive: lipgloss.NewStyle().
			Padding(0, 2).
			Foreground(ColorBackground).
			Background(ColorPrimary).
			Bold(true).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorPrimary),

		Help: lipgloss.NewStyle().
			Foreground(ColorMuted),
	}
}

// Action returns the style of a change action label.
func (s Styles) Action(action string) lipgloss.Style {
	switch action {
	case "CREATE":
		return s.Create
	case "UPDATE":
		return s.Update
	case "DELETE":
		return s.Delete
	default:
		return s.Paragraph
	}
}
