package tui

import (
	"fmt"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/lexcodex/rlshost/progress"
)

func apply(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	updated, _ := m.Update(msg)
	next, ok := updated.(Model)
	require.True(t, ok)
	return next
}

func TestStatusMessageTogglesBusy(t *testing.T) {
	m := NewModel()
	require.False(t, m.busy)

	m = apply(t, m, statusMsg(progress.BusyLabel))
	require.True(t, m.busy)
	require.Equal(t, progress.BusyLabel, m.status)

	m = apply(t, m, statusMsg(progress.IdleLabel))
	require.False(t, m.busy)
}

func TestWarningFeedIsBounded(t *testing.T) {
	m := NewModel()
	for i := 0; i < maxWarnings+3; i++ {
		m = apply(t, m, warningMsg(fmt.Sprintf("warning %d", i)))
	}
	require.Len(t, m.warnings, maxWarnings)
	require.Equal(t, fmt.Sprintf("warning %d", maxWarnings+2), m.warnings[maxWarnings-1])
}

func TestOutputAccumulatesAndReveals(t *testing.T) {
	m := NewModel()
	m = apply(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})
	m = apply(t, m, outputMsg("compiling crate\n"))
	m = apply(t, m, outputMsg("done\n"))
	require.Equal(t, "compiling crate\ndone\n", m.outputBuf)
	require.False(t, m.showOutput)

	m = apply(t, m, revealMsg{})
	require.True(t, m.showOutput)
}

func TestQuitKeys(t *testing.T) {
	m := NewModel()
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	require.NotNil(t, cmd)
}
