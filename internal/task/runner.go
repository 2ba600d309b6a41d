package task

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"dataset-manager/internal/backend"
	"dataset-manager/internal/labels"
	"dataset-manager/internal/logging"
	"dataset-manager/internal/metrics"
	"dataset-manager/internal/modelconfig"
	"dataset-manager/internal/workers"
)

// BackendFactory builds the inference backend for a model configuration.
type BackendFactory func(cfg *modelconfig.Config) (backend.Backend, error)

// Runner owns the lifecycle of annotation tasks. Tasks run in their own
// goroutines; all state access goes through the runner's lock and callers
// observe progress via Get, List, or Subscribe.
type Runner struct {
	store      modelconfig.Store
	newBackend BackendFactory
	bus        *eventBus

	mu    sync.Mutex
	tasks map[string]*taskState

	wg sync.WaitGroup
}

type taskState struct {
	snap            Snapshot
	cancel          context.CancelFunc
	cancelRequested bool
}

// NewRunner creates a runner backed by the given config store. A nil
// factory uses the real backends.
func NewRunner(store modelconfig.Store, factory BackendFactory) *Runner {
	if factory == nil {
		factory = backend.New
	}
	return &Runner{
		store:      store,
		newBackend: factory,
		bus:        newEventBus(),
		tasks:      make(map[string]*taskState),
	}
}

// Subscribe returns a channel of task events and a cancel func releasing it.
func (r *Runner) Subscribe() (<-chan Event, func()) {
	return r.bus.subscribe()
}

// Start validates the dataset path and model config, then launches a task.
// It returns the new task's ID immediately; processing happens in the
// background.
func (r *Runner) Start(datasetPath, modelConfigID string) (string, error) {
	info, err := os.Stat(datasetPath)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrDatasetNotFound, datasetPath)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrDatasetNotFound, datasetPath)
	}

	cfg, err := r.store.GetModelConfig(modelConfigID)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	state := &taskState{
		snap: Snapshot{
			ID:            uuid.NewString(),
			DatasetPath:   datasetPath,
			ModelConfigID: modelConfigID,
			Status:        StatusPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		},
		cancel: cancel,
	}

	r.mu.Lock()
	r.tasks[state.snap.ID] = state
	r.mu.Unlock()

	metrics.TasksStartedTotal.Inc()
	logging.Info("Task %s started for %s with config %s", state.snap.ID, datasetPath, modelConfigID)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.run(ctx, state.snap.ID, datasetPath, cfg)
	}()

	return state.snap.ID, nil
}

// Cancel requests cooperative cancellation. Files already in flight finish;
// no new files are dispatched.
func (r *Runner) Cancel(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}
	if state.snap.Status.Terminal() {
		return ErrTaskFinished
	}

	state.cancelRequested = true
	state.cancel()
	logging.Info("Task %s cancellation requested", id)
	return nil
}

// Get returns a copy of the task's current state.
func (r *Runner) Get(id string) (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.tasks[id]
	if !ok {
		return Snapshot{}, ErrTaskNotFound
	}
	return copySnapshot(state.snap), nil
}

// List returns all known tasks, newest first.
func (r *Runner) List() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Snapshot, 0, len(r.tasks))
	for _, state := range r.tasks {
		out = append(out, copySnapshot(state.snap))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Shutdown cancels every running task and waits for their goroutines, or
// until the context expires.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	for _, state := range r.tasks {
		if !state.snap.Status.Terminal() {
			state.cancelRequested = true
			state.cancel()
		}
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fileResult is one processed file; err is nil when a label was written.
type fileResult struct {
	rel string
	err error
}

func (r *Runner) run(ctx context.Context, id, datasetPath string, cfg *modelconfig.Config) {
	metrics.TasksRunning.Inc()
	defer metrics.TasksRunning.Dec()

	images, err := enumerateImages(datasetPath)
	if err != nil {
		r.finish(id, StatusFailed, err)
		return
	}

	r.update(id, func(s *Snapshot) {
		s.Status = StatusRunning
		s.Total = len(images)
	})

	if len(images) == 0 {
		r.finish(id, StatusCompleted, nil)
		return
	}

	if names := cfg.ClassNames(); len(names) > 0 {
		if err := labels.WriteClasses(datasetPath, names); err != nil {
			r.finish(id, StatusFailed, err)
			return
		}
	}

	b, err := r.newBackend(cfg)
	if err != nil {
		r.finish(id, StatusFailed, err)
		return
	}
	defer b.Close()

	// The backend declares how much concurrency it tolerates; the machine
	// caps it. ANNOTATION_WORKERS overrides the machine-derived limit.
	inFlight := b.MaxInFlight()
	if limit := workers.ForIO(0); inFlight > limit {
		inFlight = limit
	}
	if inFlight < 1 {
		inFlight = 1
	}

	// Dispatcher feeds workers through the semaphore; the loop below is the
	// sole writer of task state.
	results := make(chan fileResult)
	go func() {
		defer close(results)

		sem := make(chan struct{}, inFlight)
		var wg sync.WaitGroup
		for _, rel := range images {
			if ctx.Err() != nil {
				break
			}
			sem <- struct{}{}
			wg.Add(1)
			go func(rel string) {
				defer wg.Done()
				defer func() { <-sem }()
				results <- fileResult{rel: rel, err: processFile(ctx, b, datasetPath, rel)}
			}(rel)
		}
		wg.Wait()
	}()

	var fatal error
	for res := range results {
		if res.err != nil && errors.Is(res.err, context.Canceled) {
			// In flight when the task was cancelled; not an outcome.
			continue
		}

		if res.err != nil && (errors.Is(res.err, backend.ErrAuth) || errors.Is(res.err, backend.ErrBadRequest)) {
			// Every remaining file would fail the same way.
			if fatal == nil {
				fatal = res.err
				r.cancelTask(id)
			}
			continue
		}

		r.update(id, func(s *Snapshot) {
			s.Processed++
			if res.err != nil {
				if s.FileErrors == nil {
					s.FileErrors = make(map[string]string)
				}
				s.FileErrors[res.rel] = res.err.Error()
			}
		})
		if res.err != nil {
			metrics.TaskFilesProcessedTotal.WithLabelValues("failed").Inc()
			logging.Warn("Task %s: %s failed: %v", id, res.rel, res.err)
		} else {
			metrics.TaskFilesProcessedTotal.WithLabelValues("labeled").Inc()
		}
	}

	switch {
	case fatal != nil:
		r.finish(id, StatusFailed, fatal)
	case r.cancelRequested(id):
		r.finish(id, StatusCancelled, nil)
	case r.hasFileErrors(id):
		r.finish(id, StatusCompletedWithErrors, nil)
	default:
		r.finish(id, StatusCompleted, nil)
	}
}

// processFile runs inference on one image and writes its label file. An
// empty detection list still produces a label file, recording that the
// image was looked at and nothing was found.
func processFile(ctx context.Context, b backend.Backend, datasetPath, rel string) error {
	detections, err := b.Infer(ctx, filepath.Join(datasetPath, filepath.FromSlash(rel)))
	if err != nil {
		return err
	}
	return labels.WriteFile(datasetPath, rel, detections)
}

// update mutates the task under the lock and publishes the new state.
func (r *Runner) update(id string, fn func(*Snapshot)) {
	r.mu.Lock()
	state, ok := r.tasks[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	fn(&state.snap)
	state.snap.UpdatedAt = time.Now()
	snap := copySnapshot(state.snap)
	r.mu.Unlock()

	r.bus.publish(Event{Snapshot: snap})
}

func (r *Runner) finish(id string, status Status, err error) {
	r.update(id, func(s *Snapshot) {
		s.Status = status
		if err != nil {
			s.Error = err.Error()
		}
	})

	metrics.TasksCompletedTotal.WithLabelValues(string(status)).Inc()
	if err != nil {
		logging.Error("Task %s finished: %s (%v)", id, status, err)
	} else {
		logging.Info("Task %s finished: %s", id, status)
	}
}

func (r *Runner) cancelRequested(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.tasks[id]
	return ok && state.cancelRequested
}

func (r *Runner) hasFileErrors(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.tasks[id]
	return ok && len(state.snap.FileErrors) > 0
}

func (r *Runner) cancelTask(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if state, ok := r.tasks[id]; ok {
		state.cancel()
	}
}

func copySnapshot(s Snapshot) Snapshot {
	out := s
	if s.FileErrors != nil {
		out.FileErrors = make(map[string]string, len(s.FileErrors))
		for k, v := range s.FileErrors {
			out.FileErrors[k] = v
		}
	}
	return out
}
