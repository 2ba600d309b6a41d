package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"dataset-manager/internal/logging"
	"dataset-manager/internal/modelconfig"
	"dataset-manager/internal/task"
)

// StartTaskRequest starts an annotation task over a dataset
type StartTaskRequest struct {
	// DatasetPath is relative to the dataset directory, or absolute within it.
	DatasetPath   string `json:"datasetPath"`
	ModelConfigID string `json:"modelConfigId"`
}

// StartTask launches an annotation task and returns its id
func (h *Handlers) StartTask(w http.ResponseWriter, r *http.Request) {
	var req StartTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	datasetPath, err := h.resolveDatasetPath(req.DatasetPath)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	id, err := h.runner.Start(datasetPath, req.ModelConfigID)
	if err != nil {
		switch {
		case errors.Is(err, task.ErrDatasetNotFound):
			writeJSONError(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, modelconfig.ErrNotFound):
			writeJSONError(w, "model config not found", http.StatusNotFound)
		default:
			logging.Error("Failed to start task: %v", err)
			writeJSONError(w, "failed to start task", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]string{"id": id})
}

// GetTask returns the current state of one task
func (h *Handlers) GetTask(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	snap, err := h.runner.Get(id)
	if err != nil {
		writeJSONError(w, "task not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, snap)
}

// ListTasks returns all tasks known to this process, newest first
func (h *Handlers) ListTasks(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, h.runner.List())
}

// ListTaskHistory returns persisted task records across restarts
func (h *Handlers) ListTaskHistory(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			writeJSONError(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	records, err := h.db.ListTaskRecords(limit)
	if err != nil {
		logging.Error("Failed to list task history: %v", err)
		writeJSONError(w, "failed to list task history", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, records)
}

// CancelTask requests cooperative cancellation of a running task
func (h *Handlers) CancelTask(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.runner.Cancel(id); err != nil {
		switch {
		case errors.Is(err, task.ErrTaskNotFound):
			writeJSONError(w, "task not found", http.StatusNotFound)
		case errors.Is(err, task.ErrTaskFinished):
			writeJSONError(w, "task already finished", http.StatusConflict)
		default:
			writeJSONError(w, "failed to cancel task", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "cancelling"})
}

// TaskEvents streams task progress as server-sent events. Mounted both per
// task (/tasks/{id}/events, closes after the terminal event) and for all
// tasks (/tasks/events, with an optional ?task= filter).
func (h *Handlers) TaskEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	filter := mux.Vars(r)["id"]
	if filter == "" {
		filter = r.URL.Query().Get("task")
	}
	if filter != "" {
		if _, err := h.runner.Get(filter); err != nil {
			writeJSONError(w, "task not found", http.StatusNotFound)
			return
		}
	}

	events, cancel := h.runner.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// Seed a filtered stream with the current state so subscribers that
	// arrive after the terminal event still observe it.
	if filter != "" {
		snap, err := h.runner.Get(filter)
		if err == nil {
			if data, err := json.Marshal(snap); err == nil {
				fmt.Fprintf(w, "event: progress\ndata: %s\n\n", data)
			}
			if snap.Status.Terminal() {
				flusher.Flush()
				return
			}
		}
	}
	flusher.Flush()

	// Events can be dropped for a slow subscriber, so a filtered stream
	// also polls the runner; the terminal state is always delivered.
	var resync <-chan time.Time
	if filter != "" {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		resync = ticker.C
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-resync:
			snap, err := h.runner.Get(filter)
			if err != nil || !snap.Status.Terminal() {
				continue
			}
			if data, err := json.Marshal(snap); err == nil {
				fmt.Fprintf(w, "event: progress\ndata: %s\n\n", data)
				flusher.Flush()
			}
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if filter != "" && ev.ID != filter {
				continue
			}

			data, err := json.Marshal(ev.Snapshot)
			if err != nil {
				logging.Error("Failed to encode task event: %v", err)
				continue
			}
			fmt.Fprintf(w, "event: progress\ndata: %s\n\n", data)
			flusher.Flush()

			if filter != "" && ev.Status.Terminal() {
				return
			}
		}
	}
}
