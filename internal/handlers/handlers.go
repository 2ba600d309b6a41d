package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"dataset-manager/internal/database"
	"dataset-manager/internal/logging"
	"dataset-manager/internal/startup"
	"dataset-manager/internal/task"
	"dataset-manager/internal/trash"
)

type Handlers struct {
	db         *database.Database
	runner     *task.Runner
	trash      *trash.Manager
	datasetDir string
}

func New(db *database.Database, runner *task.Runner, tm *trash.Manager, config *startup.Config) *Handlers {
	return &Handlers{
		db:         db,
		runner:     runner,
		trash:      tm,
		datasetDir: config.DatasetDir,
	}
}

// writeJSON encodes v as JSON and writes it to the response writer.
// Any encoding or write errors are logged since we typically cannot
// recover from them in an HTTP handler context.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONError writes an error response as JSON with the given status code.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, map[string]string{"error": message})
}

// resolveDatasetPath turns a client-supplied path into an absolute path
// inside the dataset directory. Absolute input is accepted as long as it
// stays within bounds; anything escaping the dataset root is rejected.
func (h *Handlers) resolveDatasetPath(input string) (string, error) {
	if input == "" {
		return "", errors.New("path is required")
	}

	path := input
	if !filepath.IsAbs(path) {
		path = filepath.Join(h.datasetDir, path)
	}
	path = filepath.Clean(path)

	rel, err := filepath.Rel(h.datasetDir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside the dataset directory", input)
	}
	return path, nil
}
