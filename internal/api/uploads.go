package api

import (
	"io"
	"net/http"

	"llmlab/internal/packs"
)

func (h *handler) handleListPacks(w http.ResponseWriter, _ *http.Request) {
	descriptors, err := packs.Descriptors()
	if err != nil {
		h.logger.Error("pack listing failed", "error", err)
		writeDetail(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, descriptors)
}

// handleUpload accepts a multipart form with a single "file" field holding a
// corpus text file.
func (h *handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, packs.MaxUploadBytes+1))
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "could not read upload")
		return
	}

	text, err := packs.ValidateUpload(header.Filename, content)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	up := h.store.CreateUpload(text)
	h.logger.Info("upload stored", "upload_id", up.UploadID, "documents", up.DocCount)
	writeJSON(w, http.StatusCreated, up)
}
