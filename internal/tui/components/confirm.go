// Package components holds reusable bubbletea components.
package components

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/jobs-as-code/internal/tui/ui"
)

// ConfirmResultMsg is sent when the user confirms or cancels.
type ConfirmResultMsg struct {
	Confirmed bool
}

// Confirm is a yes/no confirmation dialog.
type Confirm struct {
	message  string
	yesLabel string
	noLabel  string
	focused  bool // true = yes, false = no
	width    int
	keys     ui.KeyMap
	styles   ui.Styles
}

// NewConfirm creates a confirmation dialog. No is focused initially so
// that an accidental enter does not apply anything.
func NewConfirm(message string) Confirm {
	return Confirm{
		message:  message,
		yesLabel: "Yes",
		noLabel:  "No",
		width:    48,
		keys:     ui.DefaultKeyMap(),
		styles:   ui.DefaultStyles(),
	}
}

// Message returns the confirmation message.
func (c Confirm) Message() string {
	return c.message
}

// YesLabel returns the yes button label.
func (c Confirm) YesLabel() string {
	return c.yesLabel
}

// NoLabel returns the no button label.
func (c Confirm) NoLabel() string {
	return c.noLabel
}

// Focused returns true if yes is focused, false if no is focused.
func (c Confirm) Focused() bool {
	return c.focused
}

// WithYesLabel sets the yes button label.
func (c Confirm) WithYesLabel(label string) Confirm {
	c.yesLabel = label
	return c
}

// WithNoLabel sets the no button label.
func (c Confirm) WithNoLabel(label string) Confirm {
	c.noLabel = label
	return c
}

// WithWidth sets the dialog width.
func (c Confirm) WithWidth(width int) Confirm {
	c.width = width
	return c
}

// Update handles key presses.
func (c Confirm) Update(msg tea.Msg) (Confirm, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return c, nil
	}

	switch {
	case key.Matches(keyMsg, c.keys.Left) || key.Matches(keyMsg, c.keys.VimLeft):
		c.focused = true
	case key.Matches(keyMsg, c.keys.Right) || key.Matches(keyMsg, c.keys.VimRight):
		c.focused = false
	case key.Matches(keyMsg, c.keys.Select):
		return c, c.confirmCmd(c.focused)
	case key.Matches(keyMsg, c.keys.Accept):
		return c, c.confirmCmd(true)
	case key.Matches(keyMsg, c.keys.Reject),
		key.Matches(keyMsg, c.keys.Cancel),
		key.Matches(keyMsg, c.keys.Quit):
		return c, c.confirmCmd(false)
	}
	return c, nil
}

func (c Confirm) confirmCmd(confirmed bool) tea.Cmd {
	return func() tea.Msg {
		return ConfirmResultMsg{Confirmed: confirmed}
	}
}

// View renders the dialog.
func (c Confirm) View() string {
	yesStyle := c.styles.Button
	noStyle := c.styles.Button
	if c.focused {
		yesStyle = c.styles.ButtonActive
	} else {
		noStyle = c.styles.ButtonActive
	}

	message := c.styles.Paragraph.Width(c.width).Render(c.message)
	buttons := lipgloss.JoinHorizontal(lipgloss.Center, yesStyle.Render(c.yesLabel), "  ", noStyle.Render(c.noLabel))
	buttonRow := lipgloss.NewStyle().Width(c.width).Align(lipgloss.Center).Render(buttons)
	help := c.styles.Help.Render("y apply • n/esc abort • ←/→ move • enter select")

	return lipgloss.JoinVertical(lipgloss.Left, message, "", buttonRow, help)
}
