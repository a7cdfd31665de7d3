package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/atotto/clipboard"
	bubblesprogress "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"autoytdlp/internal/control"
	"autoytdlp/internal/settings"
	"autoytdlp/internal/state"
)

// Snapshot poll cadence. Progress pushes are throttled engine-side, so a
// fast tick here only costs one lock acquisition per frame.
const pollInterval = 200 * time.Millisecond

const barWidth = 30

// Params wires the TUI to an assembled session.
type Params struct {
	State      *state.State
	Controller *control.Controller
	Settings   settings.Settings
}

type Model struct {
	ctx  context.Context
	st   *state.State
	ctrl *control.Controller
	cfg  settings.Settings

	snap     state.Snapshot
	selected int
	quitting bool

	adding bool
	input  textinput.Model

	width, height int
	styles        Styles
	spinner       spinner.Model
	overall       bubblesprogress.Model
	bars          map[string]bubblesprogress.Model
}

func NewModel(ctx context.Context, p Params) Model {
	sty := defaultStyles()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = sty.Spinner

	input := textinput.New()
	input.Placeholder = "https://..."
	input.Prompt = "add link: "
	input.CharLimit = 2048

	m := Model{
		ctx:     ctx,
		st:      p.State,
		ctrl:    p.Controller,
		cfg:     p.Settings,
		snap:    p.State.Snapshot(),
		styles:  sty,
		spinner: sp,
		input:   input,
		bars:    make(map[string]bubblesprogress.Model),
	}
	m.overall = m.newBar()
	return m
}

// newBar builds a progress bar honoring the ASCII indicator setting.
func (m Model) newBar() bubblesprogress.Model {
	bar := bubblesprogress.New(
		bubblesprogress.WithDefaultGradient(),
		bubblesprogress.WithWidth(barWidth),
	)
	if m.cfg.UseASCIIIndicators {
		bar = bubblesprogress.New(
			bubblesprogress.WithWidth(barWidth),
			bubblesprogress.WithSolidFill("#22D3EE"),
		)
		bar.Full = '#'
		bar.Empty = '-'
	}
	return bar
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.adding {
			return m.updateAdding(msg)
		}
		return m.updateKeys(msg)

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case tickMsg:
		m.snap = m.st.Snapshot()
		if m.snap.Completed && !m.st.NotificationSent() {
			m.st.SetNotificationSent(true)
			m.st.ShowToast("All downloads completed")
			m.snap = m.st.Snapshot()
		}
		m.syncBars()
		m.clampSelection()
		if m.quitting && !m.snap.Started {
			return m, tea.Quit
		}
		return m, tickCmd()

	case clipboardMsg:
		if msg.Err != nil {
			m.st.ShowToast(fmt.Sprintf("Clipboard import failed: %v", msg.Err))
		} else if msg.Added == 0 {
			m.st.ShowToast("No new links on clipboard")
		} else {
			m.st.ShowToast(fmt.Sprintf("Imported %d link(s)", msg.Added))
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.snap.Started {
			m.ctrl.Stop()
			m.quitting = true
			return m, nil
		}
		return m, tea.Quit

	case "Q":
		if m.ctrl.ForceQuit() {
			m.quitting = true
			return m, tea.Quit
		}

	case "s":
		if err := m.ctrl.Start(m.ctx); err != nil {
			m.st.ShowToast(err.Error())
		}

	case "p":
		if m.snap.Started {
			m.ctrl.TogglePause()
		}

	case "r":
		if err := m.ctrl.Reload(); err != nil {
			m.st.ShowToast(err.Error())
		}

	case "a":
		m.adding = true
		m.input.SetValue("")
		return m, m.input.Focus()

	case "c":
		return m, m.importClipboardCmd()

	case "d":
		if err := m.ctrl.RemoveQueued(m.selected); err != nil {
			m.st.ShowToast(err.Error())
		}

	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}

	case "down", "j":
		if m.selected < len(m.snap.Queue)-1 {
			m.selected++
		}

	case "K":
		if err := m.ctrl.MoveQueued(m.selected, -1); err != nil {
			m.st.ShowToast(err.Error())
		} else if m.selected > 0 {
			m.selected--
		}

	case "J":
		if err := m.ctrl.MoveQueued(m.selected, 1); err != nil {
			m.st.ShowToast(err.Error())
		} else if m.selected < len(m.snap.Queue)-1 {
			m.selected++
		}

	case "t":
		m.st.RefreshTimestamps()

	case "L":
		m.st.ClearLogs()

	case "esc":
		m.st.ClearToast()
	}
	return m, nil
}

func (m Model) updateAdding(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		url := m.input.Value()
		m.adding = false
		m.input.Blur()
		if url == "" {
			return m, nil
		}
		if err := m.ctrl.Enqueue(url); err != nil {
			m.st.ShowToast(err.Error())
		}
		return m, nil
	case "esc":
		m.adding = false
		m.input.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) importClipboardCmd() tea.Cmd {
	return func() tea.Msg {
		text, err := clipboard.ReadAll()
		if err != nil {
			return clipboardMsg{Err: err}
		}
		n, err := m.ctrl.ImportText(text)
		return clipboardMsg{Added: n, Err: err}
	}
}

// syncBars keeps one progress bar per active download and drops bars for
// finished ones.
func (m *Model) syncBars() {
	live := make(map[string]struct{}, len(m.snap.Active))
	for _, rec := range m.snap.Active {
		live[rec.URL] = struct{}{}
		if _, ok := m.bars[rec.URL]; !ok {
			m.bars[rec.URL] = m.newBar()
		}
	}
	for url := range m.bars {
		if _, ok := live[url]; !ok {
			delete(m.bars, url)
		}
	}
}

func (m *Model) clampSelection() {
	if m.selected >= len(m.snap.Queue) {
		m.selected = len(m.snap.Queue) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}
