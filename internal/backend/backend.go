// Package backend provides inference backends that turn an image into YOLO
// detections. Two implementations exist: a local ONNX detector and a remote
// OpenAI-compatible vision model.
package backend

import (
	"context"
	"fmt"

	"dataset-manager/internal/labels"
	"dataset-manager/internal/modelconfig"
)

// Backend performs object detection on a single image. Implementations must
// be safe for concurrent use; callers bound concurrency to MaxInFlight.
type Backend interface {
	// Infer runs detection on the image at path and returns normalized
	// detections. A nil slice with nil error means no objects were found.
	Infer(ctx context.Context, imagePath string) ([]labels.Detection, error)

	// MaxInFlight is the number of Infer calls the backend can usefully
	// service at once.
	MaxInFlight() int

	// Close releases backend resources. Infer must not be called after Close.
	Close() error
}

// New builds the backend described by the model configuration.
func New(cfg *modelconfig.Config) (Backend, error) {
	if err := modelconfig.Validate(cfg); err != nil {
		return nil, err
	}

	switch cfg.Kind {
	case modelconfig.KindLocal:
		return NewLocalDetector(cfg.Local)
	case modelconfig.KindRemote:
		return NewRemoteVisionModel(cfg.Remote), nil
	default:
		return nil, fmt.Errorf("%w: unknown backend kind %q", modelconfig.ErrInvalid, cfg.Kind)
	}
}
