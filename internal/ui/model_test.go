package ui

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"autoytdlp/internal/settings"
	"autoytdlp/internal/state"
)

func tick(t *testing.T, m Model) Model {
	t.Helper()
	next, _ := m.Update(tickMsg(time.Now()))
	return next.(Model)
}

func key(t *testing.T, m Model, msg tea.KeyMsg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestCompletionToastFiresOnce(t *testing.T) {
	st := state.New(settings.Default())
	st.LoadLinks([]string{"https://a.example/1"})
	url, ok := st.Claim()
	require.True(t, ok)
	st.IncrementCompleted()
	st.Release(url)

	m := NewModel(context.Background(), Params{State: st, Settings: settings.Default()})

	m = tick(t, m)
	require.True(t, st.NotificationSent())
	require.Equal(t, "All downloads completed", m.snap.Toast)

	// The latch holds: once dismissed the toast does not come back.
	st.ClearToast()
	m = tick(t, m)
	require.Empty(t, m.snap.Toast)
}

func TestEscDismissesToast(t *testing.T) {
	st := state.New(settings.Default())
	st.ShowToast("clip ready")
	m := NewModel(context.Background(), Params{State: st, Settings: settings.Default()})

	m = key(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	m = tick(t, m)
	require.Empty(t, m.snap.Toast)
}

func TestClearLogKey(t *testing.T) {
	st := state.New(settings.Default())
	st.AppendLog("one")
	st.AppendLog("two")
	m := NewModel(context.Background(), Params{State: st, Settings: settings.Default()})

	m = key(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'L'}})
	m = tick(t, m)
	require.Empty(t, m.snap.Logs)
}
