package client

import (
	"llmlab/internal/event"
	"llmlab/internal/run"
)

// ViewState is the reconciled picture of one run, built only from accepted
// events. Frame-indexed buffers grow in step order; samples are replaced
// wholesale by each sample.generated event.
type ViewState struct {
	RunID  string
	Status run.Status
	Err    string

	LastAcceptedSeq int64
	LiveFollow      bool
	FrameIndex      int

	VocabSize int
	DocCount  int
	NumParams int
	Config    run.Config

	Forward   []event.StepForward
	Attention []event.StepAttention
	Losses    []event.StepLoss
	Gradients []event.StepBackward
	Updates   []event.StepUpdate
	Graphs    []event.OpGraph

	Samples    []string
	SampleStep int
}

// NewViewState is the state before any event arrives: empty buffers,
// following the live edge.
func NewViewState(runID string) ViewState {
	return ViewState{
		RunID:      runID,
		Status:     run.StatusQueued,
		LiveFollow: true,
	}
}

// Reduce applies one stream event to the state. Events failing the
// acceptance filter leave the state untouched.
func Reduce(state ViewState, evt event.Event) ViewState {
	if !ShouldAccept(state.LastAcceptedSeq, float64(evt.Seq)) {
		return state
	}
	state.LastAcceptedSeq = evt.Seq

	switch payload := evt.Payload.(type) {
	case *event.RunStarted:
		state.Status = run.StatusRunning
		state.VocabSize = payload.VocabSize
		state.DocCount = payload.DocCount
		state.NumParams = payload.NumParams
		state.Config = payload.Config
	case *event.StepForward:
		state.Forward = append(state.Forward, *payload)
		state.FrameIndex = NextFrameIndex(state.FrameIndex, len(state.Forward), state.LiveFollow)
	case *event.StepAttention:
		state.Attention = append(state.Attention, *payload)
	case *event.StepLoss:
		state.Losses = append(state.Losses, *payload)
	case *event.StepBackward:
		state.Gradients = append(state.Gradients, *payload)
		if payload.OpGraph != nil {
			state.Graphs = append(state.Graphs, *payload.OpGraph)
		}
	case *event.StepUpdate:
		state.Updates = append(state.Updates, *payload)
	case *event.SampleGenerated:
		state.Samples = payload.Samples
		state.SampleStep = payload.Step
	case *event.RunCompleted:
		state.Status = run.StatusCompleted
	case *event.RunFailed:
		state.Status = run.StatusFailed
		state.Err = payload.Error
	case *event.RunCanceled:
		state.Status = run.StatusCanceled
	}
	return state
}

// SetLiveFollow toggles live-follow. Re-enabling it snaps the frame back to
// the newest step; disabling pins whatever is currently shown.
func SetLiveFollow(state ViewState, follow bool) ViewState {
	state.LiveFollow = follow
	state.FrameIndex = NextFrameIndex(state.FrameIndex, len(state.Forward), follow)
	return state
}

// StepFrame moves the pinned frame by delta and disables live-follow, the
// way scrubbing through history should.
func StepFrame(state ViewState, delta int) ViewState {
	state.LiveFollow = false
	state.FrameIndex = NextFrameIndex(state.FrameIndex+delta, len(state.Forward), false)
	return state
}

// CurrentFrame returns the forward summary for the visible frame.
func CurrentFrame(state ViewState) (event.StepForward, bool) {
	if state.FrameIndex < 0 || state.FrameIndex >= len(state.Forward) {
		return event.StepForward{}, false
	}
	return state.Forward[state.FrameIndex], true
}

// LatestLoss returns the most recent loss value.
func LatestLoss(state ViewState) (event.StepLoss, bool) {
	if len(state.Losses) == 0 {
		return event.StepLoss{}, false
	}
	return state.Losses[len(state.Losses)-1], true
}

// LatestGraph returns the most recent op-graph snapshot.
func LatestGraph(state ViewState) (event.OpGraph, bool) {
	if len(state.Graphs) == 0 {
		return event.OpGraph{}, false
	}
	return state.Graphs[len(state.Graphs)-1], true
}
