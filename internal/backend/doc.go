// Package backend turns images into YOLO detections.
//
// LocalDetector runs an ONNX YOLO model in-process through onnxruntime.
// Weights are loaded once at construction and the session's tensors are
// reused across calls, so local inference is serialized (MaxInFlight 1).
//
// RemoteVisionModel posts images to an OpenAI-compatible chat completions
// endpoint as base64 data URLs and parses YOLO lines out of the reply.
// Each request has a 30 second deadline; network errors and 5xx responses
// are retried up to three times with exponential backoff, while
// authentication and bad-request failures surface immediately as ErrAuth
// and ErrBadRequest.
//
// Both implementations satisfy Backend. Callers bound concurrency to
// MaxInFlight; the backends themselves do not queue.
package backend
