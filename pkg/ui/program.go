package ui

import (
	"context"
	"errors"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
)

// Dashboard runs the Bubble Tea program and accepts messages from any
// goroutine.
type Dashboard struct {
	prog    *tea.Program
	running atomic.Bool
}

// NewDashboard creates a dashboard for instruments. Options are passed to
// tea.NewProgram; the alternate screen is always on.
func NewDashboard(instruments []string, opts ...tea.ProgramOption) *Dashboard {
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	return &Dashboard{prog: tea.NewProgram(New(instruments), opts...)}
}

// Send delivers msg to the model. Messages sent before Run or after the
// program exits are dropped.
func (d *Dashboard) Send(msg tea.Msg) {
	if d.running.Load() {
		d.prog.Send(msg)
	}
}

// Run blocks until the user quits or ctx is done.
func (d *Dashboard) Run(ctx context.Context) error {
	d.running.Store(true)
	defer d.running.Store(false)

	stop := context.AfterFunc(ctx, d.prog.Quit)
	defer stop()

	_, err := d.prog.Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}
