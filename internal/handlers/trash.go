package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"dataset-manager/internal/database"
	"dataset-manager/internal/logging"
	"dataset-manager/internal/trash"
)

// DeleteRequest names the dataset paths to move into the trash
type DeleteRequest struct {
	Paths []string `json:"paths"`
}

// DeleteResponse reports the records created and any per-path failures
type DeleteResponse struct {
	Records []*database.TrashRecord `json:"records"`
	Error   string                  `json:"error,omitempty"`
}

// DeleteFiles soft-deletes dataset files or directories into the trash
func (h *Handlers) DeleteFiles(w http.ResponseWriter, r *http.Request) {
	var req DeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Paths) == 0 {
		writeJSONError(w, "paths is required", http.StatusBadRequest)
		return
	}

	resolved := make([]string, 0, len(req.Paths))
	for _, p := range req.Paths {
		path, err := h.resolveDatasetPath(p)
		if err != nil {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		resolved = append(resolved, path)
	}

	records, err := h.trash.Delete(resolved)
	if records == nil {
		records = []*database.TrashRecord{}
	}

	resp := DeleteResponse{Records: records}
	status := http.StatusOK
	if err != nil {
		logging.Warn("Delete completed with errors: %v", err)
		resp.Error = err.Error()
		if len(records) == 0 {
			status = http.StatusNotFound
		} else {
			// Partial success: some paths were trashed, some failed.
			status = http.StatusMultiStatus
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	writeJSON(w, resp)
}

// ListTrash returns the active trash records, most recent first
func (h *Handlers) ListTrash(w http.ResponseWriter, _ *http.Request) {
	records, err := h.trash.List()
	if err != nil {
		logging.Error("Failed to list trash: %v", err)
		writeJSONError(w, "failed to list trash", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []*database.TrashRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, records)
}

// RestoreTrash moves a trashed entity back to its original path
func (h *Handlers) RestoreTrash(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.trash.Restore(id); err != nil {
		switch {
		case errors.Is(err, database.ErrRecordNotFound):
			writeJSONError(w, "trash record not found", http.StatusNotFound)
		case errors.Is(err, trash.ErrRestoreCollision):
			writeJSONError(w, err.Error(), http.StatusConflict)
		case errors.Is(err, trash.ErrNoOriginalPath):
			writeJSONError(w, err.Error(), http.StatusConflict)
		default:
			logging.Error("Failed to restore %s: %v", id, err)
			writeJSONError(w, "failed to restore", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "restored"})
}

// PurgeTrash permanently removes a trashed entity and its record
func (h *Handlers) PurgeTrash(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.trash.Purge(id); err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			writeJSONError(w, "trash record not found", http.StatusNotFound)
			return
		}
		logging.Error("Failed to purge %s: %v", id, err)
		writeJSONError(w, "failed to purge", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ReconcileTrash repairs drift between the trash directory and the manifest
func (h *Handlers) ReconcileTrash(w http.ResponseWriter, _ *http.Request) {
	adopted, dropped, err := h.trash.Reconcile()
	if err != nil {
		logging.Error("Reconcile failed: %v", err)
		writeJSONError(w, "reconcile failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]int{
		"adopted": adopted,
		"dropped": dropped,
	})
}
