package backend

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"dataset-manager/internal/labels"
	"dataset-manager/internal/logging"
	"dataset-manager/internal/metrics"
	"dataset-manager/internal/modelconfig"
)

const (
	modelInputSize = 640
	// YOLOv8 emits one column per anchor at 640x640 input.
	modelAnchors = 8400

	confidenceThreshold = 0.25
	iouThreshold        = 0.45
)

var (
	ortInitOnce sync.Once
	ortInitErr  error
)

// initRuntime initializes the ONNX runtime environment once per process.
func initRuntime() error {
	ortInitOnce.Do(func() {
		if path := os.Getenv("ONNXRUNTIME_SHARED_LIBRARY"); path != "" {
			ort.SetSharedLibraryPath(path)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	return ortInitErr
}

// LocalDetector runs a YOLO ONNX model in-process. The session owns
// preallocated input and output tensors, so inference calls are serialized.
type LocalDetector struct {
	classNames []string

	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

// NewLocalDetector loads the ONNX weights named by the configuration. The
// model stays resident until Close.
func NewLocalDetector(params *modelconfig.LocalParams) (*LocalDetector, error) {
	if _, err := os.Stat(params.WeightsPath); err != nil {
		return nil, fmt.Errorf("%w: weights file %s: %v", ErrModelLoad, params.WeightsPath, err)
	}
	if err := initRuntime(); err != nil {
		return nil, fmt.Errorf("%w: initializing onnxruntime: %v", ErrModelLoad, err)
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, modelInputSize, modelInputSize))
	if err != nil {
		return nil, fmt.Errorf("%w: allocating input tensor: %v", ErrModelLoad, err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(4+len(params.ClassNames)), modelAnchors))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("%w: allocating output tensor: %v", ErrModelLoad, err)
	}

	session, err := ort.NewAdvancedSession(params.WeightsPath,
		[]string{"images"}, []string{"output0"},
		[]ort.ArbitraryTensor{input}, []ort.ArbitraryTensor{output}, nil)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("%w: creating session for %s: %v", ErrModelLoad, params.WeightsPath, err)
	}

	logging.Info("Loaded local model %s (%d classes)", params.WeightsPath, len(params.ClassNames))
	return &LocalDetector{
		classNames: params.ClassNames,
		session:    session,
		input:      input,
		output:     output,
	}, nil
}

// MaxInFlight is 1: the session's tensors are shared across calls.
func (d *LocalDetector) MaxInFlight() int { return 1 }

// Close releases the ONNX session and its tensors.
func (d *LocalDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var firstErr error
	for _, c := range []interface{ Destroy() error }{d.session, d.output, d.input} {
		if err := c.Destroy(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Infer runs the model on one image and returns normalized detections.
func (d *LocalDetector) Infer(ctx context.Context, imagePath string) ([]labels.Detection, error) {
	start := time.Now()
	metrics.InferenceInFlight.WithLabelValues("local").Inc()
	defer metrics.InferenceInFlight.WithLabelValues("local").Dec()

	img, err := decodeImage(imagePath)
	if err != nil {
		metrics.InferenceRequestsTotal.WithLabelValues("local", "error").Inc()
		return nil, err
	}
	canvas, geom := letterbox(img, modelInputSize)

	if err := ctx.Err(); err != nil {
		metrics.InferenceRequestsTotal.WithLabelValues("local", "cancelled").Inc()
		return nil, err
	}

	d.mu.Lock()
	toModelInput(canvas, d.input.GetData())
	runErr := d.session.Run()
	var raw []float32
	if runErr == nil {
		raw = append(raw, d.output.GetData()...)
	}
	d.mu.Unlock()

	if runErr != nil {
		metrics.InferenceRequestsTotal.WithLabelValues("local", "error").Inc()
		return nil, fmt.Errorf("%w: running model on %s: %v", ErrInference, imagePath, runErr)
	}

	detections := decodeModelOutput(raw, len(d.classNames), geom)
	metrics.InferenceRequestsTotal.WithLabelValues("local", "success").Inc()
	metrics.InferenceDuration.WithLabelValues("local").Observe(time.Since(start).Seconds())
	return detections, nil
}

// candidate is a detection with its score and pixel-space box, kept around
// for non-maximum suppression.
type candidate struct {
	det            labels.Detection
	score          float64
	x1, y1, x2, y2 float64
}

// decodeModelOutput converts a raw [1, 4+classes, anchors] YOLO output into
// normalized detections in original image coordinates. Boxes below the
// confidence threshold are dropped; overlapping boxes of the same class are
// suppressed.
func decodeModelOutput(raw []float32, numClasses int, geom letterboxGeometry) []labels.Detection {
	anchors := len(raw) / (4 + numClasses)
	candidates := make([]candidate, 0, 32)

	for a := 0; a < anchors; a++ {
		bestClass, bestScore := -1, float64(0)
		for c := 0; c < numClasses; c++ {
			if s := float64(raw[(4+c)*anchors+a]); s > bestScore {
				bestClass, bestScore = c, s
			}
		}
		if bestScore < confidenceThreshold {
			continue
		}

		// Box center and size in letterbox pixels, mapped back to the
		// original image.
		cx := (float64(raw[0*anchors+a]) - geom.padX) / geom.scale
		cy := (float64(raw[1*anchors+a]) - geom.padY) / geom.scale
		w := float64(raw[2*anchors+a]) / geom.scale
		h := float64(raw[3*anchors+a]) / geom.scale

		x1 := clamp(cx-w/2, 0, float64(geom.origW))
		y1 := clamp(cy-h/2, 0, float64(geom.origH))
		x2 := clamp(cx+w/2, 0, float64(geom.origW))
		y2 := clamp(cy+h/2, 0, float64(geom.origH))
		if x2 <= x1 || y2 <= y1 {
			continue
		}

		candidates = append(candidates, candidate{
			det: labels.Detection{
				ClassID: bestClass,
				CenterX: (x1 + x2) / 2 / float64(geom.origW),
				CenterY: (y1 + y2) / 2 / float64(geom.origH),
				Width:   (x2 - x1) / float64(geom.origW),
				Height:  (y2 - y1) / float64(geom.origH),
			},
			score: bestScore,
			x1:    x1, y1: y1, x2: x2, y2: y2,
		})
	}

	kept := nonMaxSuppression(candidates, iouThreshold)
	if len(kept) == 0 {
		return nil
	}
	detections := make([]labels.Detection, len(kept))
	for i, c := range kept {
		detections[i] = c.det
	}
	return detections
}

// nonMaxSuppression greedily keeps the highest-scoring box and drops
// same-class boxes that overlap it beyond the IoU threshold.
func nonMaxSuppression(candidates []candidate, threshold float64) []candidate {
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	kept := make([]candidate, 0, len(candidates))
	for _, c := range candidates {
		suppressed := false
		for _, k := range kept {
			if k.det.ClassID == c.det.ClassID && iou(k, c) > threshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, c)
		}
	}
	return kept
}

func iou(a, b candidate) float64 {
	ix1, iy1 := max(a.x1, b.x1), max(a.y1, b.y1)
	ix2, iy2 := min(a.x2, b.x2), min(a.y2, b.y2)
	if ix2 <= ix1 || iy2 <= iy1 {
		return 0
	}
	inter := (ix2 - ix1) * (iy2 - iy1)
	union := (a.x2-a.x1)*(a.y2-a.y1) + (b.x2-b.x1)*(b.y2-b.y1) - inter
	return inter / union
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
