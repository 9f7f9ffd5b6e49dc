package components

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func result(t *testing.T, cmd tea.Cmd) bool {
	t.Helper()
	require.NotNil(t, cmd)
	msg, ok := cmd().(ConfirmResultMsg)
	require.True(t, ok)
	return msg.Confirmed
}

func TestNewConfirm(t *testing.T) {
	t.Parallel()

	confirm := NewConfirm("Apply 3 changes?")

	assert.Equal(t, "Apply 3 changes?", confirm.Message())
	assert.Equal(t, "Yes", confirm.YesLabel())
	assert.Equal(t, "No", confirm.NoLabel())
	assert.False(t, confirm.Focused())
}

func TestConfirm_WithLabels(t *testing.T) {
	t.Parallel()

	confirm := NewConfirm("Sync?").WithYesLabel("Apply").WithNoLabel("Abort").WithWidth(30)

	assert.Equal(t, "Apply", confirm.YesLabel())
	assert.Equal(t, "Abort", confirm.NoLabel())
	assert.Contains(t, confirm.View(), "Apply")
	assert.Contains(t, confirm.View(), "Abort")
}

func TestConfirm_Navigation(t *testing.T) {
	t.Parallel()

	confirm := NewConfirm("Confirm?")

	confirm, _ = confirm.Update(tea.KeyMsg{Type: tea.KeyLeft})
	assert.True(t, confirm.Focused())

	confirm, _ = confirm.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'l'}})
	assert.False(t, confirm.Focused())

	confirm, _ = confirm.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'h'}})
	assert.True(t, confirm.Focused())
}

func TestConfirm_Results(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		keys     []tea.KeyMsg
		expected bool
	}{
		{"enter on default", []tea.KeyMsg{{Type: tea.KeyEnter}}, false},
		{"enter on yes", []tea.KeyMsg{{Type: tea.KeyLeft}, {Type: tea.KeyEnter}}, true},
		{"y", []tea.KeyMsg{{Type: tea.KeyRunes, Runes: []rune{'y'}}}, true},
		{"n", []tea.KeyMsg{{Type: tea.KeyLeft}, {Type: tea.KeyRunes, Runes: []rune{'n'}}}, false},
		{"esc", []tea.KeyMsg{{Type: tea.KeyLeft}, {Type: tea.KeyEsc}}, false},
		{"ctrl+c", []tea.KeyMsg{{Type: tea.KeyCtrlC}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			confirm := NewConfirm("Confirm?")
			var cmd tea.Cmd
			for _, k := range tt.keys {
				confirm, cmd = confirm.Update(k)
			}
			assert.Equal(t, tt.expected, result(t, cmd))
		})
	}
}

func TestConfirm_IgnoresOtherMessages(t *testing.T) {
	t.Parallel()

	confirm := NewConfirm("Confirm?")
	updated, cmd := confirm.Update(tea.WindowSizeMsg{Width: 100})
	assert.Nil(t, cmd)
	assert.Equal(t, confirm.Focused(), updated.Focused())
}
