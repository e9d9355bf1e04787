// Package event defines the closed set of run event types and their typed
// payloads. Sequence numbers are assigned by the log at append time; events
// are immutable once appended.
package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type identifies an event kind. The set is closed: adding a kind means
// adding a payload type and a decode case.
type Type string

const (
	// TypeRunStarted opens every run's event stream.
	TypeRunStarted Type = "run.started"
	// TypeStepForward carries per-token forward-pass summaries.
	TypeStepForward Type = "step.forward"
	// TypeStepAttention carries per-token, per-head attention weights.
	TypeStepAttention Type = "step.attention"
	// TypeStepLoss carries the mean loss for one step.
	TypeStepLoss Type = "step.loss"
	// TypeStepBackward carries gradient norms and optional op-graph snapshots.
	TypeStepBackward Type = "step.backward"
	// TypeStepUpdate carries the learning rate and update norms for one step.
	TypeStepUpdate Type = "step.update"
	// TypeSampleGenerated carries generated text samples.
	TypeSampleGenerated Type = "sample.generated"
	// TypeRunCompleted ends a run that finished all steps.
	TypeRunCompleted Type = "run.completed"
	// TypeRunFailed ends a run that raised an internal fault.
	TypeRunFailed Type = "run.failed"
	// TypeRunCanceled ends a run stopped by a cancel request.
	TypeRunCanceled Type = "run.canceled"
)

// Terminal reports whether the type is the final event of a run.
func (t Type) Terminal() bool {
	switch t {
	case TypeRunCompleted, TypeRunFailed, TypeRunCanceled:
		return true
	default:
		return false
	}
}

// Event is one record in a run's ordered log.
type Event struct {
	Seq       int64     `json:"seq"`
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   Payload   `json:"payload"`
}

// envelope mirrors the wire shape with the payload left raw.
type envelope struct {
	Seq       int64           `json:"seq"`
	Type      Type            `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// UnmarshalJSON decodes the wire shape and dispatches the payload by type.
func (e *Event) UnmarshalJSON(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	payload, err := decodePayload(env.Type, env.Payload)
	if err != nil {
		return err
	}
	e.Seq = env.Seq
	e.Type = env.Type
	e.Timestamp = env.Timestamp
	e.Payload = payload
	return nil
}

// decodePayload parses a raw payload for a known event type.
func decodePayload(t Type, data []byte) (Payload, error) {
	if len(data) == 0 {
		data = []byte("{}")
	}
	var payload Payload
	switch t {
	case TypeRunStarted:
		payload = &RunStarted{}
	case TypeStepForward:
		payload = &StepForward{}
	case TypeStepAttention:
		payload = &StepAttention{}
	case TypeStepLoss:
		payload = &StepLoss{}
	case TypeStepBackward:
		payload = &StepBackward{}
	case TypeStepUpdate:
		payload = &StepUpdate{}
	case TypeSampleGenerated:
		payload = &SampleGenerated{}
	case TypeRunCompleted:
		payload = &RunCompleted{}
	case TypeRunFailed:
		payload = &RunFailed{}
	case TypeRunCanceled:
		payload = &RunCanceled{}
	default:
		return nil, fmt.Errorf("unknown event type %q", t)
	}
	if err := json.Unmarshal(data, payload); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", t, err)
	}
	return payload, nil
}
