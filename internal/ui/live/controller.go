package live

import (
	"io"
	"os"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"llmlab/internal/event"
)

// Controller owns the UI program and the channel feeding it stream events.
type Controller struct {
	events    chan event.Event
	program   *tea.Program
	done      chan struct{}
	closeOnce sync.Once
}

// Start launches the live view writing to stdout.
func Start(stdout io.Writer, opts Options) *Controller {
	if stdout == nil {
		stdout = os.Stdout
	}
	events := make(chan event.Event, 256)
	model := NewModel(events, opts)
	program := tea.NewProgram(model, tea.WithOutput(stdout), tea.WithAltScreen())
	controller := &Controller{
		events:  events,
		program: program,
		done:    make(chan struct{}),
	}
	go func() {
		_, _ = program.Run()
		close(controller.done)
	}()
	return controller
}

// Events is the channel the stream reader writes into.
func (c *Controller) Events() chan<- event.Event {
	return c.events
}

// Close signals the UI that no more events will arrive.
func (c *Controller) Close() {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() {
		close(c.events)
	})
}

// Wait blocks until the UI has exited.
func (c *Controller) Wait() {
	if c == nil {
		return
	}
	<-c.done
}
