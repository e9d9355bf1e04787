package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"llmlab/internal/run"
)

type createRunRequest struct {
	PackID string          `json:"pack_id"`
	Config json.RawMessage `json:"config"`
}

type cancelResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

func (h *handler) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.PackID == "" {
		writeDetail(w, http.StatusBadRequest, "pack_id is required")
		return
	}

	// Absent config fields keep their defaults.
	cfg := run.DefaultConfig()
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			writeDetail(w, http.StatusBadRequest, "invalid config")
			return
		}
	}

	summary, err := h.registry.Create(req.PackID, cfg)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.logger.Info("run created", "run_id", summary.RunID, "pack_id", summary.PackID)
	writeJSON(w, http.StatusCreated, summary)
}

func (h *handler) handleListRuns(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.List())
}

func (h *handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	summary, err := h.registry.Get(mux.Vars(r)["run_id"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *handler) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["run_id"]
	status, err := h.registry.Cancel(runID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cancelResponse{RunID: runID, Status: status})
}
