package live

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"llmlab/internal/event"
	"llmlab/internal/run"
)

func testModel() Model {
	return NewModel(nil, Options{RunID: "r1", PackID: "regex", NoColor: true})
}

func forwardEvent(seq int64, step int) event.Event {
	return event.Event{
		Seq:  seq,
		Type: event.TypeStepForward,
		Payload: &event.StepForward{
			Step: step,
			TokenSummaries: []event.TokenSummary{{
				Position:    0,
				InputToken:  "a",
				TargetToken: "b",
				TopK:        []event.TokenProb{{Token: "b", Prob: 0.9}},
			}},
		},
	}
}

func graphEvent(seq int64, step, nodes int) event.Event {
	graph := &event.OpGraph{Step: step}
	for i := 0; i < nodes; i++ {
		graph.Nodes = append(graph.Nodes, event.GraphNode{ID: int64(i + 1)})
	}
	return event.Event{
		Seq:     seq,
		Type:    event.TypeStepBackward,
		Payload: &event.StepBackward{Step: step, OpGraph: graph},
	}
}

// TestApplyEventUpdatesView checks events flow into the state and the view.
func TestApplyEventUpdatesView(t *testing.T) {
	m := testModel()
	m = m.applyEvent(event.Event{Seq: 1, Type: event.TypeRunStarted, Payload: &event.RunStarted{
		VocabSize: 10, NumParams: 500, Config: run.DefaultConfig(),
	}})
	m = m.applyEvent(forwardEvent(2, 1))
	m = m.applyEvent(event.Event{Seq: 3, Type: event.TypeStepLoss, Payload: &event.StepLoss{Step: 1, Loss: 2.25}})

	view := m.View()
	if !strings.Contains(view, "Run r1") || !strings.Contains(view, "Pack: regex") {
		t.Fatalf("header missing from view:\n%s", view)
	}
	if !strings.Contains(view, "Loss 2.25") {
		t.Fatalf("loss missing from view:\n%s", view)
	}
	if !strings.Contains(view, "running") {
		t.Fatalf("status missing from view:\n%s", view)
	}
}

// TestPlaybackTickAdvancesIndependently checks the highlight advances and
// wraps without touching the frame index.
func TestPlaybackTickAdvancesIndependently(t *testing.T) {
	m := testModel()
	m = m.applyEvent(forwardEvent(1, 1))
	m = m.applyEvent(graphEvent(2, 1, 3))

	frameBefore := m.state.FrameIndex
	for i := 0; i < 4; i++ {
		next, _ := m.Update(playbackTickMsg(time.Now()))
		m = next.(Model)
	}
	if m.highlight != 1 {
		t.Fatalf("highlight = %d after 4 ticks over 3 nodes, want 1", m.highlight)
	}
	if m.state.FrameIndex != frameBefore {
		t.Fatalf("playback moved the frame index")
	}

	// Paused playback freezes the highlight.
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeySpace})
	m = next.(Model)
	next, _ = m.Update(playbackTickMsg(time.Now()))
	m = next.(Model)
	if m.highlight != 1 {
		t.Fatalf("paused highlight moved to %d", m.highlight)
	}
}

// TestNewGraphResetsHighlight checks a fresh snapshot restarts playback.
func TestNewGraphResetsHighlight(t *testing.T) {
	m := testModel()
	m = m.applyEvent(graphEvent(1, 1, 5))
	m.highlight = 4
	m = m.applyEvent(graphEvent(2, 2, 5))
	if m.highlight != 0 {
		t.Fatalf("highlight = %d after new graph, want 0", m.highlight)
	}
}

// TestKeysToggleFollowAndScrub checks the frame keys mirror the reconciler
// semantics.
func TestKeysToggleFollowAndScrub(t *testing.T) {
	m := testModel()
	for seq := int64(1); seq <= 3; seq++ {
		m = m.applyEvent(forwardEvent(seq, int(seq)))
	}
	if m.state.FrameIndex != 2 {
		t.Fatalf("live frame = %d, want 2", m.state.FrameIndex)
	}

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyLeft})
	m = next.(Model)
	if m.state.LiveFollow || m.state.FrameIndex != 1 {
		t.Fatalf("after left: follow %v frame %d", m.state.LiveFollow, m.state.FrameIndex)
	}

	m = m.applyEvent(forwardEvent(4, 4))
	if m.state.FrameIndex != 1 {
		t.Fatalf("pinned frame drifted to %d", m.state.FrameIndex)
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'f'}})
	m = next.(Model)
	if !m.state.LiveFollow || m.state.FrameIndex != 3 {
		t.Fatalf("after follow: follow %v frame %d", m.state.LiveFollow, m.state.FrameIndex)
	}
}
