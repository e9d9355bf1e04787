package registry

import (
	"errors"
	"testing"
	"time"

	"llmlab/internal/run"
	"llmlab/internal/store"
	"llmlab/internal/testutil"
)

type recordingQueue struct {
	ids []string
	err error
}

func (q *recordingQueue) Enqueue(runID string) error {
	if q.err != nil {
		return q.err
	}
	q.ids = append(q.ids, runID)
	return nil
}

func newTestRegistry(t *testing.T) (*Registry, *store.Store, *recordingQueue) {
	t.Helper()
	st := store.New(testutil.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)), time.Hour)
	queue := &recordingQueue{}
	return New(st, queue), st, queue
}

// TestCreateAdmitsAndEnqueues checks the happy path hands the run to the
// worker queue in queued status.
func TestCreateAdmitsAndEnqueues(t *testing.T) {
	reg, _, queue := newTestRegistry(t)

	summary, err := reg.Create("regex", run.DefaultConfig())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if summary.Status != run.StatusQueued {
		t.Fatalf("status = %s, want queued", summary.Status)
	}
	if len(queue.ids) != 1 || queue.ids[0] != summary.RunID {
		t.Fatalf("queue saw %v, want [%s]", queue.ids, summary.RunID)
	}

	got, err := reg.Get(summary.RunID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.PackID != "regex" {
		t.Fatalf("pack = %s, want regex", got.PackID)
	}
}

// TestCreateRejectsBadConfig checks validation failures surface as a
// ValidationError before any run is created.
func TestCreateRejectsBadConfig(t *testing.T) {
	reg, st, _ := newTestRegistry(t)

	cfg := run.DefaultConfig()
	cfg.NEmbd = 999
	_, err := reg.Create("regex", cfg)
	var verr *run.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(st.ListRuns()) != 0 {
		t.Fatalf("rejected create left a run behind")
	}
}

// TestCreateRejectsUnknownPack covers both an unknown builtin id and an
// expired upload reference.
func TestCreateRejectsUnknownPack(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	for _, packID := range []string{"nonsense", "upload:deadbeef"} {
		_, err := reg.Create(packID, run.DefaultConfig())
		var verr *run.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("pack %q: expected ValidationError, got %v", packID, err)
		}
	}
}

// TestCreateUploadPack checks a live upload id is accepted as a pack.
func TestCreateUploadPack(t *testing.T) {
	reg, st, _ := newTestRegistry(t)

	up := st.CreateUpload("hello\nworld\n")
	if _, err := reg.Create("upload:"+up.UploadID, run.DefaultConfig()); err != nil {
		t.Fatalf("create with upload: %v", err)
	}
}

// TestAdmissionCeiling checks the fourth concurrent run is rejected and a
// terminal transition frees a slot.
func TestAdmissionCeiling(t *testing.T) {
	reg, st, _ := newTestRegistry(t)

	var ids []string
	for i := 0; i < run.MaxConcurrent; i++ {
		summary, err := reg.Create("regex", run.DefaultConfig())
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		ids = append(ids, summary.RunID)
	}

	if _, err := reg.Create("regex", run.DefaultConfig()); !errors.Is(err, ErrAdmissionRejected) {
		t.Fatalf("expected ErrAdmissionRejected, got %v", err)
	}

	if err := st.UpdateStatus(ids[0], run.StatusCompleted, ""); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := reg.Create("regex", run.DefaultConfig()); err != nil {
		t.Fatalf("create after release: %v", err)
	}
}

// TestCreateEnqueueFailureMarksRunFailed checks a full queue does not leave a
// phantom queued run occupying a slot.
func TestCreateEnqueueFailureMarksRunFailed(t *testing.T) {
	reg, st, queue := newTestRegistry(t)
	queue.err = errors.New("queue full")

	_, err := reg.Create("regex", run.DefaultConfig())
	if err == nil {
		t.Fatalf("expected enqueue error")
	}
	runs := st.ListRuns()
	if len(runs) != 1 || runs[0].Status != run.StatusFailed {
		t.Fatalf("runs = %+v, want one failed run", runs)
	}
	if st.CountActive() != 0 {
		t.Fatalf("failed run still counted active")
	}
}

// TestCancelLifecycle checks cancel on missing, active, and terminal runs.
func TestCancelLifecycle(t *testing.T) {
	reg, st, _ := newTestRegistry(t)

	if _, err := reg.Cancel("missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	summary, err := reg.Create("regex", run.DefaultConfig())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	state, err := reg.Cancel(summary.RunID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if state != "cancel_requested" {
		t.Fatalf("state = %q, want cancel_requested", state)
	}
	if !st.CancelRequested(summary.RunID) {
		t.Fatalf("cancel flag not set")
	}

	if err := st.UpdateStatus(summary.RunID, run.StatusCanceled, ""); err != nil {
		t.Fatalf("update: %v", err)
	}
	state, err = reg.Cancel(summary.RunID)
	if err != nil {
		t.Fatalf("cancel terminal: %v", err)
	}
	if state != string(run.StatusCanceled) {
		t.Fatalf("state = %q, want canceled", state)
	}
}
