package ui

import (
	"context"
	"errors"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"
)

// Run launches the interactive queue view and blocks until the user quits.
// Any run still winding down after the screen closes is waited for, so the
// links file reflects the final outcome when Run returns.
func Run(ctx context.Context, p Params) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("stdout is not a terminal; use 'run' or --no-ui")
	}

	m := NewModel(ctx, p)
	prog := tea.NewProgram(m, tea.WithContext(ctx), tea.WithAltScreen())
	if _, err := prog.Run(); err != nil {
		return err
	}

	p.Controller.Wait()
	return nil
}
