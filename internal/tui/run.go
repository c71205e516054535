package tui

import (
	"context"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// RunWithWork starts a bubbletea program for model, runs work in a
// goroutine and blocks until both have finished. Quitting the program
// cancels the context passed to work. The error returned by work takes
// precedence over a rendering error.
func RunWithWork(ctx context.Context, out io.Writer, model ProgressModel, work func(ctx context.Context, send func(tea.Msg)) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(model, tea.WithOutput(out), tea.WithContext(ctx))

	workErr := make(chan error, 1)
	go func() {
		// Let bubbletea start its event loop and render the initial frame.
		time.Sleep(50 * time.Millisecond)

		workErr <- work(ctx, p.Send)
		p.Send(WorkDoneMsg{})
	}()

	final, runErr := p.Run()
	cancel()
	if err := <-workErr; err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	if m, ok := final.(ProgressModel); ok && m.Err() != nil {
		return m.Err()
	}
	return nil
}
