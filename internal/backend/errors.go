package backend

import "errors"

// Sentinel errors shared by the inference backends. Callers classify
// failures with errors.Is; ErrAuth and ErrBadRequest signal conditions
// that will not improve on retry.
var (
	// ErrModelLoad means the model could not be initialized (missing
	// weights file, unreadable ONNX graph).
	ErrModelLoad = errors.New("model load failed")

	// ErrInference means a single inference attempt failed (unreadable
	// image, runtime error, malformed model response).
	ErrInference = errors.New("inference failed")

	// ErrInferenceTimeout means the per-request deadline elapsed.
	ErrInferenceTimeout = errors.New("inference timed out")

	// ErrAuth means the remote endpoint rejected our credentials.
	ErrAuth = errors.New("authentication rejected")

	// ErrBadRequest means the remote endpoint rejected the request itself.
	ErrBadRequest = errors.New("bad request")
)
