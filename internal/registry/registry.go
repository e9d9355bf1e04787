package registry

import (
	"errors"
	"fmt"
	"sync"

	"llmlab/internal/packs"
	"llmlab/internal/run"
	"llmlab/internal/store"
)

// ErrAdmissionRejected means the concurrent-run ceiling is reached.
var ErrAdmissionRejected = errors.New("too many active runs")

// Enqueuer hands an admitted run to the training workers.
type Enqueuer interface {
	Enqueue(runID string) error
}

// Registry admits new runs against the concurrency ceiling and exposes run
// lifecycle operations over the store.
type Registry struct {
	mu    sync.Mutex
	store *store.Store
	queue Enqueuer
}

// New creates a registry backed by the store, handing admitted runs to queue.
func New(st *store.Store, queue Enqueuer) *Registry {
	return &Registry{store: st, queue: queue}
}

// Create validates the request, admits it against the active-run ceiling, and
// enqueues it for training.
func (r *Registry) Create(packID string, cfg run.Config) (run.Summary, error) {
	if err := run.ValidateConfig(cfg); err != nil {
		return run.Summary{}, err
	}
	if err := r.checkPack(packID); err != nil {
		return run.Summary{}, err
	}

	// Counting and inserting must be one step, or two concurrent creates
	// could both slip under the ceiling.
	r.mu.Lock()
	if r.store.CountActive() >= run.MaxConcurrent {
		r.mu.Unlock()
		return run.Summary{}, ErrAdmissionRejected
	}
	summary := r.store.CreateRun(packID, cfg)
	r.mu.Unlock()

	if err := r.queue.Enqueue(summary.RunID); err != nil {
		msg := fmt.Sprintf("enqueue: %v", err)
		_ = r.store.UpdateStatus(summary.RunID, run.StatusFailed, msg)
		return run.Summary{}, fmt.Errorf("enqueue run %s: %w", summary.RunID, err)
	}
	return summary, nil
}

func (r *Registry) checkPack(packID string) error {
	if packs.IsBuiltin(packID) {
		return nil
	}
	uploadID, ok := packs.UploadID(packID)
	if !ok {
		return &run.ValidationError{Issues: []run.Issue{{
			Field:   "pack_id",
			Message: fmt.Sprintf("unknown pack %q", packID),
		}}}
	}
	if _, err := r.store.UploadText(uploadID); err != nil {
		return &run.ValidationError{Issues: []run.Issue{{
			Field:   "pack_id",
			Message: fmt.Sprintf("upload %q not found or expired", uploadID),
		}}}
	}
	return nil
}

// Get returns the summary of a run.
func (r *Registry) Get(runID string) (run.Summary, error) {
	return r.store.GetRun(runID)
}

// List returns all live runs.
func (r *Registry) List() []run.Summary {
	return r.store.ListRuns()
}

// Cancel requests cancellation of a run. For a run that already reached a
// terminal status it is a no-op reporting that status; otherwise it sets the
// advisory flag the trainer polls and reports "cancel_requested".
func (r *Registry) Cancel(runID string) (string, error) {
	summary, err := r.store.GetRun(runID)
	if err != nil {
		return "", err
	}
	if summary.Status.Terminal() {
		return string(summary.Status), nil
	}
	if err := r.store.RequestCancel(runID); err != nil {
		return "", err
	}
	return "cancel_requested", nil
}
