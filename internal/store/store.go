// Package store is the ephemeral state store behind the run registry and the
// event log. All keys of a run (metadata, event list, sequence counter,
// cancel flag) live and expire together, a fixed retention window after the
// last write. Events are append-only with seq assigned at append time.
package store

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"llmlab/internal/event"
	"llmlab/internal/run"
)

// ErrNotFound marks lookups of unknown or expired runs and uploads.
var ErrNotFound = errors.New("not found")

// Store keeps runs, their event logs, uploads, and rate-limit windows in
// memory with a uniform TTL.
type Store struct {
	mu      sync.Mutex
	clock   Clock
	ttl     time.Duration
	runs    map[string]*runRecord
	uploads map[string]*uploadRecord
	windows map[string]*rateWindow
}

type runRecord struct {
	summary   run.Summary
	events    []event.Event
	seq       int64
	cancel    bool
	expiresAt time.Time
}

type uploadRecord struct {
	text      string
	docCount  int
	charCount int
	expiresAt time.Time
}

type rateWindow struct {
	count     int
	expiresAt time.Time
}

// Upload describes a stored corpus upload.
type Upload struct {
	UploadID  string    `json:"upload_id"`
	DocCount  int       `json:"document_count"`
	CharCount int       `json:"character_count"`
	ExpiresAt time.Time `json:"expires_at"`
}

// New creates a store with the given clock and retention window. A nil clock
// falls back to the wall clock; a non-positive ttl falls back to the run
// retention default.
func New(clock Clock, ttl time.Duration) *Store {
	if clock == nil {
		clock = realClock{}
	}
	if ttl <= 0 {
		ttl = run.Retention
	}
	return &Store{
		clock:   clock,
		ttl:     ttl,
		runs:    map[string]*runRecord{},
		uploads: map[string]*uploadRecord{},
		windows: map[string]*rateWindow{},
	}
}

// CreateRun persists a new queued run and returns its summary.
func (s *Store) CreateRun(packID string, cfg run.Config) run.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now().UTC()
	summary := run.Summary{
		RunID:     newID(),
		Status:    run.StatusQueued,
		PackID:    packID,
		Config:    cfg,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.runs[summary.RunID] = &runRecord{
		summary:   summary,
		expiresAt: now.Add(s.ttl),
	}
	return summary
}

// GetRun returns the current snapshot of a run.
func (s *Store) GetRun(runID string) (run.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.liveRun(runID)
	if err != nil {
		return run.Summary{}, err
	}
	return rec.summary, nil
}

// ListRuns returns snapshots of all live runs.
func (s *Store) ListRuns() []run.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	out := make([]run.Summary, 0, len(s.runs))
	for id, rec := range s.runs {
		if !rec.expiresAt.After(now) {
			delete(s.runs, id)
			continue
		}
		out = append(out, rec.summary)
	}
	return out
}

// CountActive returns the number of runs holding an admission slot.
func (s *Store) CountActive() int {
	count := 0
	for _, summary := range s.ListRuns() {
		if summary.Status.Active() {
			count++
		}
	}
	return count
}

// UpdateStatus applies a lifecycle transition. Failure transitions carry a
// non-empty error string; every transition refreshes updated_at and the
// retention window.
func (s *Store) UpdateStatus(runID string, status run.Status, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.liveRun(runID)
	if err != nil {
		return err
	}
	now := s.clock.Now().UTC()
	rec.summary.Status = status
	rec.summary.UpdatedAt = now
	rec.summary.Error = errMsg
	rec.expiresAt = now.Add(s.ttl)
	return nil
}

// Append assigns the next sequence number for the run, stores the record,
// and makes it visible to readers. Seq starts at 1 and never repeats or
// goes backwards for a run. Only the run's own job may append.
func (s *Store) Append(runID string, typ event.Type, payload event.Payload) (event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.liveRun(runID)
	if err != nil {
		return event.Event{}, err
	}
	now := s.clock.Now().UTC()
	rec.seq++
	evt := event.Event{
		Seq:       rec.seq,
		Type:      typ,
		Timestamp: now,
		Payload:   payload,
	}
	rec.events = append(rec.events, evt)
	rec.expiresAt = now.Add(s.ttl)
	return evt, nil
}

// Read returns all stored events with seq strictly greater than fromSeq, in
// ascending seq order. fromSeq 0 replays the full history.
func (s *Store) Read(runID string, fromSeq int64) ([]event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.liveRun(runID)
	if err != nil {
		return nil, err
	}
	if fromSeq < 0 {
		fromSeq = 0
	}
	if fromSeq >= int64(len(rec.events)) {
		return nil, nil
	}
	// Seqs are dense from 1, so the slice offset is the seq itself.
	tail := rec.events[fromSeq:]
	out := make([]event.Event, len(tail))
	copy(out, tail)
	return out, nil
}

// LastSeq returns the highest assigned sequence number for a run.
func (s *Store) LastSeq(runID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.liveRun(runID)
	if err != nil {
		return 0, err
	}
	return rec.seq, nil
}

// RequestCancel sets the advisory cancellation flag. The flag is observed
// cooperatively by the run's job between steps; the store never interrupts
// a job.
func (s *Store) RequestCancel(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.liveRun(runID)
	if err != nil {
		return err
	}
	rec.cancel = true
	return nil
}

// CancelRequested reports whether a cancel has been requested for the run.
func (s *Store) CancelRequested(runID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.liveRun(runID)
	if err != nil {
		return false
	}
	return rec.cancel
}

// CreateUpload stores validated corpus text and returns its descriptor.
func (s *Store) CreateUpload(text string) Upload {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			docs++
		}
	}
	now := s.clock.Now().UTC()
	up := Upload{
		UploadID:  newID(),
		DocCount:  docs,
		CharCount: len([]rune(text)),
		ExpiresAt: now.Add(s.ttl),
	}
	s.uploads[up.UploadID] = &uploadRecord{
		text:      text,
		docCount:  up.DocCount,
		charCount: up.CharCount,
		expiresAt: up.ExpiresAt,
	}
	return up
}

// UploadText returns the stored corpus text for an upload id.
func (s *Store) UploadText(uploadID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.uploads[uploadID]
	if !ok || !rec.expiresAt.After(s.clock.Now()) {
		delete(s.uploads, uploadID)
		return "", ErrNotFound
	}
	return rec.text, nil
}

// Allow counts a request against a fixed window and reports whether it is
// within the limit. The first request of a window starts its expiry.
func (s *Store) Allow(key string, limit int, window time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	win, ok := s.windows[key]
	if !ok || !win.expiresAt.After(now) {
		win = &rateWindow{expiresAt: now.Add(window)}
		s.windows[key] = win
	}
	win.count++
	return win.count <= limit
}

// Sweep drops all expired key families. The daemon calls this periodically;
// lookups also expire lazily, so Sweep only bounds memory.
func (s *Store) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	for id, rec := range s.runs {
		if !rec.expiresAt.After(now) {
			delete(s.runs, id)
		}
	}
	for id, rec := range s.uploads {
		if !rec.expiresAt.After(now) {
			delete(s.uploads, id)
		}
	}
	for key, win := range s.windows {
		if !win.expiresAt.After(now) {
			delete(s.windows, key)
		}
	}
}

// liveRun returns the record for a run, expiring it on access when past its
// retention window. Callers hold s.mu.
func (s *Store) liveRun(runID string) (*runRecord, error) {
	rec, ok := s.runs[runID]
	if !ok {
		return nil, ErrNotFound
	}
	if !rec.expiresAt.After(s.clock.Now()) {
		delete(s.runs, runID)
		return nil, ErrNotFound
	}
	return rec, nil
}

// newID returns a dashless UUID, the id shape used on the wire.
func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
