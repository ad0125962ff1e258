package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/parisxmas/OxiDB/OxiPlan/internal/blob"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/errs"
)

// BlobHandler serves stored plan reports. Authors may fetch the reports
// under their own prefix; reviewing roles may fetch any.
type BlobHandler struct {
	blobs blob.Store
}

func NewBlobHandler(blobs blob.Store) *BlobHandler {
	return &BlobHandler{blobs: blobs}
}

func (h *BlobHandler) Download(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "*")
	if path == "" || strings.Contains(path, "..") {
		writeMessage(w, http.StatusBadRequest, "invalid object path")
		return
	}
	actor := actorOf(r)
	if !actor.Role.CanReview() && !strings.HasPrefix(path, "plans/"+actor.UserID+"/") {
		writeError(w, r, errs.Denied(string(actor.Role), "report %s belongs to another author", path))
		return
	}

	data, contentType, err := h.blobs.Download(r.Context(), path)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
