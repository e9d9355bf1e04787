package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"llmlab/internal/packs"
	"llmlab/internal/registry"
	"llmlab/internal/run"
	"llmlab/internal/store"
)

type detailResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, detailResponse{Detail: detail})
}

// writeDomainError maps the error taxonomy onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	var verr *run.ValidationError
	var uerr *packs.UploadError
	switch {
	case errors.As(err, &verr):
		writeDetail(w, http.StatusBadRequest, verr.Error())
	case errors.As(err, &uerr):
		writeDetail(w, http.StatusBadRequest, uerr.Error())
	case errors.Is(err, registry.ErrAdmissionRejected):
		writeDetail(w, http.StatusTooManyRequests, "too many active runs, try again later")
	case errors.Is(err, store.ErrNotFound):
		writeDetail(w, http.StatusNotFound, "run not found")
	default:
		writeDetail(w, http.StatusInternalServerError, "internal error")
	}
}
