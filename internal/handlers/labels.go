package handlers

import (
	"net/http"

	"dataset-manager/internal/labels"
	"dataset-manager/internal/logging"
)

// LabelsResponse carries the parsed detections for one image
type LabelsResponse struct {
	Image      string             `json:"image"`
	Detections []labels.Detection `json:"detections"`
}

// GetLabels returns the parsed label file for an image. Query parameters:
// dataset (dataset root, relative to the dataset directory) and image
// (image path relative to the dataset root). A missing label file yields an
// empty detection list, same as an image nobody has annotated yet.
func (h *Handlers) GetLabels(w http.ResponseWriter, r *http.Request) {
	datasetParam := r.URL.Query().Get("dataset")
	image := r.URL.Query().Get("image")
	if image == "" {
		writeJSONError(w, "image is required", http.StatusBadRequest)
		return
	}

	datasetPath := h.datasetDir
	if datasetParam != "" {
		var err error
		datasetPath, err = h.resolveDatasetPath(datasetParam)
		if err != nil {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	detections, err := labels.ReadFile(datasetPath, image)
	if err != nil {
		logging.Error("Failed to read labels for %s: %v", image, err)
		writeJSONError(w, "failed to read label file", http.StatusInternalServerError)
		return
	}
	if detections == nil {
		detections = []labels.Detection{}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, LabelsResponse{Image: image, Detections: detections})
}
