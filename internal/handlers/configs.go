package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"dataset-manager/internal/logging"
	"dataset-manager/internal/modelconfig"
)

// ListConfigs returns all model configurations in insertion order
func (h *Handlers) ListConfigs(w http.ResponseWriter, _ *http.Request) {
	configs, err := h.db.ListModelConfigs()
	if err != nil {
		logging.Error("Failed to list model configs: %v", err)
		writeJSONError(w, "failed to list model configs", http.StatusInternalServerError)
		return
	}
	if configs == nil {
		configs = []*modelconfig.Config{}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, configs)
}

// CreateConfig validates and stores a new model configuration
func (h *Handlers) CreateConfig(w http.ResponseWriter, r *http.Request) {
	var cfg modelconfig.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	id, err := h.db.AddModelConfig(&cfg)
	if err != nil {
		if errors.Is(err, modelconfig.ErrInvalid) {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		logging.Error("Failed to add model config: %v", err)
		writeJSONError(w, "failed to store model config", http.StatusInternalServerError)
		return
	}

	logging.Info("Model config %s created (%s)", id, cfg.Name)

	created, err := h.db.GetModelConfig(id)
	if err != nil {
		writeJSONError(w, "failed to read back model config", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, created)
}

// GetConfig returns one model configuration by id
func (h *Handlers) GetConfig(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	cfg, err := h.db.GetModelConfig(id)
	if err != nil {
		if errors.Is(err, modelconfig.ErrNotFound) {
			writeJSONError(w, "model config not found", http.StatusNotFound)
			return
		}
		logging.Error("Failed to get model config %s: %v", id, err)
		writeJSONError(w, "failed to read model config", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, cfg)
}

// UpdateConfig validates and replaces a model configuration
func (h *Handlers) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var cfg modelconfig.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.db.UpdateModelConfig(id, &cfg); err != nil {
		switch {
		case errors.Is(err, modelconfig.ErrNotFound):
			writeJSONError(w, "model config not found", http.StatusNotFound)
		case errors.Is(err, modelconfig.ErrInvalid):
			writeJSONError(w, err.Error(), http.StatusBadRequest)
		default:
			logging.Error("Failed to update model config %s: %v", id, err)
			writeJSONError(w, "failed to update model config", http.StatusInternalServerError)
		}
		return
	}

	logging.Info("Model config %s updated", id)

	updated, err := h.db.GetModelConfig(id)
	if err != nil {
		writeJSONError(w, "failed to read back model config", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, updated)
}

// DeleteConfig removes a model configuration
func (h *Handlers) DeleteConfig(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.db.RemoveModelConfig(id); err != nil {
		if errors.Is(err, modelconfig.ErrNotFound) {
			writeJSONError(w, "model config not found", http.StatusNotFound)
			return
		}
		logging.Error("Failed to remove model config %s: %v", id, err)
		writeJSONError(w, "failed to remove model config", http.StatusInternalServerError)
		return
	}

	logging.Info("Model config %s removed", id)
	w.WriteHeader(http.StatusNoContent)
}
