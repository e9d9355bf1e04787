// Package live renders a training run's event stream as a terminal UI. The
// stream is reduced into a view state; the op-graph playback runs on its own
// timer so scrubbing frames never disturbs it.
package live

import (
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"llmlab/internal/client"
	"llmlab/internal/event"
)

// Model renders a live run view using Bubble Tea.
type Model struct {
	state     client.ViewState
	table     table.Model
	events    <-chan event.Event
	packID    string
	startedAt time.Time
	now       time.Time
	noColor   bool
	width     int

	tickInterval     time.Duration
	playbackInterval time.Duration
	playing          bool
	highlight        int
}

// Options configures the live run view.
type Options struct {
	RunID            string
	PackID           string
	NoColor          bool
	TickInterval     time.Duration
	PlaybackInterval time.Duration
}

// NewModel constructs a model consuming a run's event stream.
func NewModel(events <-chan event.Event, opts Options) Model {
	tickInterval := opts.TickInterval
	if tickInterval <= 0 {
		tickInterval = 200 * time.Millisecond
	}
	playbackInterval := opts.PlaybackInterval
	if playbackInterval <= 0 {
		playbackInterval = 150 * time.Millisecond
	}
	t := table.New(
		table.WithColumns(defaultColumns()),
		table.WithRows([]table.Row{}),
		table.WithFocused(false),
	)
	t.SetStyles(tableStyles(opts.NoColor))
	return Model{
		state:            client.NewViewState(opts.RunID),
		table:            t,
		events:           events,
		packID:           opts.PackID,
		startedAt:        time.Now(),
		now:              time.Now(),
		noColor:          opts.NoColor,
		tickInterval:     tickInterval,
		playbackInterval: playbackInterval,
		playing:          true,
	}
}

// Init starts the clock, the playback timer, and the event wait.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.events), tick(m.tickInterval), playbackTick(m.playbackInterval))
}

// Update consumes stream events, timer ticks, and key presses.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.table.SetWidth(typed.Width)
		m.table.SetHeight(maxInt(typed.Height-12, 3))
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(typed)
	case EventMsg:
		m = m.applyEvent(typed.Event)
		return m, waitForEvent(m.events)
	case tickMsg:
		m.now = time.Time(typed)
		return m, tick(m.tickInterval)
	case playbackTickMsg:
		if m.playing {
			if graph, ok := client.LatestGraph(m.state); ok {
				m.highlight = client.AdvanceHighlight(m.highlight, len(graph.Nodes))
			}
		}
		return m, playbackTick(m.playbackInterval)
	}
	return m, nil
}

func (m Model) handleKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "f":
		m.state = client.SetLiveFollow(m.state, !m.state.LiveFollow)
		m.table.SetRows(rowsForFrame(m.state))
	case "left":
		m.state = client.StepFrame(m.state, -1)
		m.table.SetRows(rowsForFrame(m.state))
	case "right":
		m.state = client.StepFrame(m.state, 1)
		m.table.SetRows(rowsForFrame(m.state))
	case " ":
		m.playing = !m.playing
	}
	return m, nil
}

// View renders the full live view.
func (m Model) View() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		renderHeader(m.state, m.packID, m.now, m.startedAt, m.noColor),
		renderStatus(m.state, m.noColor),
		m.table.View(),
		renderSamples(m.state, m.noColor),
		renderNorms(m.state, m.noColor),
		renderGraph(m.state, m.highlight, m.playing, m.noColor),
		renderFooter(m.state, m.noColor),
	)
}

// applyEvent reduces one stream event into the view state. A new highlight
// range starts over when a newer op-graph snapshot lands.
func (m Model) applyEvent(evt event.Event) Model {
	graphsBefore := len(m.state.Graphs)
	m.state = client.Reduce(m.state, evt)
	if len(m.state.Graphs) != graphsBefore {
		m.highlight = 0
	}
	m.table.SetRows(rowsForFrame(m.state))
	return m
}

// EventMsg wraps a stream event for Bubble Tea.
type EventMsg struct {
	Event event.Event
}

// tickMsg carries a clock tick for the elapsed display.
type tickMsg time.Time

// playbackTickMsg advances the op-graph highlight.
type playbackTickMsg time.Time

// waitForEvent blocks until the next stream event; a closed channel ends the
// program.
func waitForEvent(events <-chan event.Event) tea.Cmd {
	return func() tea.Msg {
		if events == nil {
			return nil
		}
		evt, ok := <-events
		if !ok {
			return tea.Quit()
		}
		return EventMsg{Event: evt}
	}
}

// tick emits a periodic clock tick.
func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// playbackTick emits the independent playback tick.
func playbackTick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg { return playbackTickMsg(t) })
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
