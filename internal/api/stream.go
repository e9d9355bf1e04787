package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
)

// handleStreamEvents serves the run's event log as SSE: replay everything
// after the requested offset, then tail the live log until the terminal
// event. The offset is an exclusive lower bound, taken from the `from_seq`
// query parameter or a `Last-Event-ID` reconnect header, whichever is higher.
func (h *handler) handleStreamEvents(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["run_id"]
	if _, err := h.store.GetRun(runID); err != nil {
		writeDomainError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeDetail(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	cursor := parseSeq(r.URL.Query().Get("from_seq"))
	if fromHeader := parseSeq(r.Header.Get("Last-Event-ID")); fromHeader > cursor {
		cursor = fromHeader
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for {
		events, err := h.store.Read(runID, cursor)
		if err != nil {
			// Run expired mid-stream; nothing more will arrive.
			return
		}
		for _, evt := range events {
			data, err := json.Marshal(evt)
			if err != nil {
				h.logger.Error("event marshal failed", "run_id", runID, "seq", evt.Seq, "error", err)
				return
			}
			fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", evt.Seq, evt.Type, data)
			cursor = evt.Seq
			if evt.Type.Terminal() {
				flusher.Flush()
				return
			}
		}
		if len(events) == 0 {
			// A terminal run with nothing left to replay will never produce
			// more events, so close instead of pinging forever.
			summary, err := h.store.GetRun(runID)
			if err != nil || summary.Status.Terminal() {
				flusher.Flush()
				return
			}
			fmt.Fprint(w, ": ping\n\n")
		}
		flusher.Flush()

		select {
		case <-r.Context().Done():
			return
		case <-time.After(h.pollInterval):
		}
	}
}

// parseSeq reads a sequence offset, treating anything unparseable or
// negative as zero.
func parseSeq(s string) int64 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
