package handlers

import (
	"net/http"
	"runtime"
	"time"

	"dataset-manager/internal/startup"
	"dataset-manager/internal/task"
)

const (
	statusHealthy = "healthy"
)

var startedAt = time.Now()

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`

	// Workload summary
	ModelConfigs       int `json:"modelConfigs"`
	TasksRunning       int `json:"tasksRunning"`
	ActiveTrashRecords int `json:"activeTrashRecords"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	stats := h.db.GetStats()

	running := 0
	for _, snap := range h.runner.List() {
		if snap.Status == task.StatusRunning || snap.Status == task.StatusPending {
			running++
		}
	}

	response := HealthResponse{
		Status:             statusHealthy,
		Version:            startup.Version,
		Uptime:             time.Since(startedAt).Round(time.Second).String(),
		ModelConfigs:       stats.ModelConfigs,
		TasksRunning:       running,
		ActiveTrashRecords: stats.ActiveTrashRecords,
		GoVersion:          runtime.Version(),
		NumCPU:             runtime.NumCPU(),
		NumGoroutine:       runtime.NumGoroutine(),
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 only when the database answers
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if _, err := h.db.ListModelConfigs(); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		writeJSON(w, map[string]string{
			"status": "not_ready",
		})
		return
	}

	w.WriteHeader(http.StatusOK)
	writeJSON(w, map[string]string{
		"status": "ready",
	})
}
