package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"llmlab/internal/event"
	"llmlab/internal/run"
)

// snapshot is the on-disk shape of the store. Rate-limit windows are not
// persisted; they are short-lived by construction.
type snapshot struct {
	Runs    []runSnapshot    `json:"runs"`
	Uploads []uploadSnapshot `json:"uploads"`
}

type runSnapshot struct {
	Summary   run.Summary   `json:"summary"`
	Events    []event.Event `json:"events"`
	Seq       int64         `json:"seq"`
	Cancel    bool          `json:"cancel"`
	ExpiresAt time.Time     `json:"expires_at"`
}

type uploadSnapshot struct {
	UploadID  string    `json:"upload_id"`
	Text      string    `json:"text"`
	DocCount  int       `json:"document_count"`
	CharCount int       `json:"character_count"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Load restores a snapshot written by Save if the file exists. Entries whose
// retention window already passed are dropped on load. In-flight runs cannot
// resume after a restart, so queued and running runs come back failed.
func (s *Store) Load(path string) error {
	if path == "" {
		return fmt.Errorf("snapshot path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	for _, rs := range snap.Runs {
		if !rs.ExpiresAt.After(now) {
			continue
		}
		if rs.Summary.Status.Active() {
			rs.Summary.Status = run.StatusFailed
			rs.Summary.Error = "interrupted by server restart"
			// Keep the log's terminal invariant: subscribers learn the
			// outcome from the last event, not from the summary.
			if n := len(rs.Events); n == 0 || !rs.Events[n-1].Type.Terminal() {
				rs.Seq++
				rs.Events = append(rs.Events, event.Event{
					Seq:       rs.Seq,
					Type:      event.TypeRunFailed,
					Timestamp: now.UTC(),
					Payload:   &event.RunFailed{Error: rs.Summary.Error},
				})
			}
		}
		s.runs[rs.Summary.RunID] = &runRecord{
			summary:   rs.Summary,
			events:    rs.Events,
			seq:       rs.Seq,
			cancel:    rs.Cancel,
			expiresAt: rs.ExpiresAt,
		}
	}
	for _, us := range snap.Uploads {
		if !us.ExpiresAt.After(now) {
			continue
		}
		s.uploads[us.UploadID] = &uploadRecord{
			text:      us.Text,
			docCount:  us.DocCount,
			charCount: us.CharCount,
			expiresAt: us.ExpiresAt,
		}
	}
	return nil
}

// Save persists the live runs and uploads to a JSON file using an atomic
// rename.
func (s *Store) Save(path string) error {
	if path == "" {
		return fmt.Errorf("snapshot path is required")
	}
	s.mu.Lock()
	now := s.clock.Now()
	snap := snapshot{}
	for _, rec := range s.runs {
		if !rec.expiresAt.After(now) {
			continue
		}
		snap.Runs = append(snap.Runs, runSnapshot{
			Summary:   rec.summary,
			Events:    rec.events,
			Seq:       rec.seq,
			Cancel:    rec.cancel,
			ExpiresAt: rec.expiresAt,
		})
	}
	for id, rec := range s.uploads {
		if !rec.expiresAt.After(now) {
			continue
		}
		snap.Uploads = append(snap.Uploads, uploadSnapshot{
			UploadID:  id,
			Text:      rec.text,
			DocCount:  rec.docCount,
			CharCount: rec.charCount,
			ExpiresAt: rec.expiresAt,
		})
	}
	s.mu.Unlock()

	payload, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	tmpPath := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	_, writeErr := file.Write(payload)
	syncErr := file.Sync()
	closeErr := file.Close()
	if writeErr != nil {
		_ = os.Remove(tmpPath)
		return writeErr
	}
	if syncErr != nil {
		_ = os.Remove(tmpPath)
		return syncErr
	}
	if closeErr != nil {
		_ = os.Remove(tmpPath)
		return closeErr
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
