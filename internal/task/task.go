// Package task runs annotation tasks: it enumerates the images of a dataset,
// feeds them to an inference backend, and writes YOLO label files for the
// results.
package task

import (
	"errors"
	"time"
)

// Status is the lifecycle state of an annotation task.
type Status string

const (
	// StatusPending means the task is accepted but not yet running.
	StatusPending Status = "pending"
	// StatusRunning means files are being processed.
	StatusRunning Status = "running"
	// StatusCompleted means every file produced a label.
	StatusCompleted Status = "completed"
	// StatusCompletedWithErrors means the task finished but some files failed.
	StatusCompletedWithErrors Status = "completed_with_errors"
	// StatusCancelled means the task was stopped on request.
	StatusCancelled Status = "cancelled"
	// StatusFailed means a task-level error stopped processing: the dataset
	// could not be enumerated, the model could not be loaded, or the remote
	// endpoint rejected our credentials.
	StatusFailed Status = "failed"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCompletedWithErrors, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

// Errors returned by Runner operations.
var (
	ErrTaskNotFound    = errors.New("task not found")
	ErrDatasetNotFound = errors.New("dataset path not found")
	ErrTaskFinished    = errors.New("task already finished")
)

// Snapshot is a point-in-time copy of a task's state. FileErrors maps
// dataset-relative image paths to the error that file hit; files that fail
// never stop the task.
type Snapshot struct {
	ID            string            `json:"id"`
	DatasetPath   string            `json:"datasetPath"`
	ModelConfigID string            `json:"modelConfigId"`
	Status        Status            `json:"status"`
	Processed     int               `json:"processed"`
	Total         int               `json:"total"`
	FileErrors    map[string]string `json:"fileErrors,omitempty"`
	// Error is set when Status is failed.
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
