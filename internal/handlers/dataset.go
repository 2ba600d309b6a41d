package handlers

import (
	"net/http"
	"os"
	"sort"

	"dataset-manager/internal/logging"
	"dataset-manager/internal/mediatypes"
)

// DatasetEntry describes one item in a dataset directory listing.
type DatasetEntry struct {
	Name string              `json:"name"`
	Kind mediatypes.FileKind `json:"kind"`
	Size int64               `json:"size,omitempty"`
}

// DatasetListResponse is the body of a dataset directory listing.
type DatasetListResponse struct {
	Path    string         `json:"path"`
	Entries []DatasetEntry `json:"entries"`
}

// ListDataset returns the classified contents of a directory inside the
// dataset root. The path query parameter is relative to the dataset
// directory; omitting it lists the root. Folders sort before files, each
// group alphabetically.
func (h *Handlers) ListDataset(w http.ResponseWriter, r *http.Request) {
	pathParam := r.URL.Query().Get("path")

	dirPath := h.datasetDir
	if pathParam != "" {
		var err error
		dirPath, err = h.resolveDatasetPath(pathParam)
		if err != nil {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	dirEntries, err := os.ReadDir(dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			writeJSONError(w, "directory not found", http.StatusNotFound)
			return
		}
		logging.Error("Failed to list %s: %v", dirPath, err)
		writeJSONError(w, "failed to list directory", http.StatusInternalServerError)
		return
	}

	entries := make([]DatasetEntry, 0, len(dirEntries))
	for _, e := range dirEntries {
		entry := DatasetEntry{Name: e.Name()}
		if e.IsDir() {
			entry.Kind = mediatypes.KindFolder
		} else {
			entry.Kind = mediatypes.Classify(e.Name())
			if info, err := e.Info(); err == nil {
				entry.Size = info.Size()
			}
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		iDir := entries[i].Kind == mediatypes.KindFolder
		jDir := entries[j].Kind == mediatypes.KindFolder
		if iDir != jDir {
			return iDir
		}
		return entries[i].Name < entries[j].Name
	})

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, DatasetListResponse{Path: pathParam, Entries: entries})
}
