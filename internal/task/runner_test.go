package task

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"dataset-manager/internal/backend"
	"dataset-manager/internal/labels"
	"dataset-manager/internal/modelconfig"
)

// fakeBackend scripts per-file outcomes by base name.
type fakeBackend struct {
	inFlight int
	infer    func(ctx context.Context, imagePath string) ([]labels.Detection, error)
}

func (f *fakeBackend) Infer(ctx context.Context, imagePath string) ([]labels.Detection, error) {
	return f.infer(ctx, imagePath)
}

func (f *fakeBackend) MaxInFlight() int {
	if f.inFlight > 0 {
		return f.inFlight
	}
	return 1
}

func (f *fakeBackend) Close() error { return nil }

// fakeStore serves a single config under the id "cfg".
type fakeStore struct {
	cfg *modelconfig.Config
}

func (s *fakeStore) AddModelConfig(c *modelconfig.Config) (string, error) { return "", nil }
func (s *fakeStore) UpdateModelConfig(id string, c *modelconfig.Config) error {
	return nil
}
func (s *fakeStore) RemoveModelConfig(id string) error { return nil }
func (s *fakeStore) ListModelConfigs() ([]*modelconfig.Config, error) {
	return []*modelconfig.Config{s.cfg}, nil
}
func (s *fakeStore) GetModelConfig(id string) (*modelconfig.Config, error) {
	if id != "cfg" {
		return nil, modelconfig.ErrNotFound
	}
	return s.cfg, nil
}

func testStore() *fakeStore {
	return &fakeStore{cfg: &modelconfig.Config{
		ID:   "cfg",
		Name: "test",
		Kind: modelconfig.KindLocal,
		Local: &modelconfig.LocalParams{
			WeightsPath: "/models/test.onnx",
			ClassNames:  []string{"cat", "dog"},
		},
	}}
}

func newTestRunner(b backend.Backend) *Runner {
	return NewRunner(testStore(), func(cfg *modelconfig.Config) (backend.Backend, error) {
		return b, nil
	})
}

func makeDataset(t *testing.T, files ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, f := range files {
		path := filepath.Join(dir, filepath.FromSlash(f))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("img"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func waitTerminal(t *testing.T, r *Runner, id string) Snapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := r.Get(id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if snap.Status.Terminal() {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("task never reached a terminal status")
	return Snapshot{}
}

func TestEnumerateImages(t *testing.T) {
	dir := makeDataset(t,
		"b.jpg",
		"a.png",
		"notes.txt",
		"sub/c.jpeg",
		"labels/a.txt",
		".hidden/d.jpg",
	)

	images, err := enumerateImages(dir)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"a.png", "b.jpg", "sub/c.jpeg"}
	if !reflect.DeepEqual(images, want) {
		t.Errorf("enumerateImages = %v, want %v", images, want)
	}
}

func TestEnumerateImagesEmpty(t *testing.T) {
	images, err := enumerateImages(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if len(images) != 0 {
		t.Errorf("got %v, want none", images)
	}
}

func TestRunCompletes(t *testing.T) {
	dir := makeDataset(t, "a.jpg", "b.jpg", "sub/c.png")

	b := &fakeBackend{infer: func(ctx context.Context, path string) ([]labels.Detection, error) {
		return []labels.Detection{{ClassID: 0, CenterX: 0.5, CenterY: 0.5, Width: 0.2, Height: 0.2}}, nil
	}}
	r := newTestRunner(b)

	id, err := r.Start(dir, "cfg")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	snap := waitTerminal(t, r, id)
	if snap.Status != StatusCompleted {
		t.Errorf("status = %s, want completed (error %q)", snap.Status, snap.Error)
	}
	if snap.Processed != 3 || snap.Total != 3 {
		t.Errorf("processed/total = %d/%d, want 3/3", snap.Processed, snap.Total)
	}

	for _, rel := range []string{"a.jpg", "b.jpg", "sub/c.png"} {
		detections, err := labels.ReadFile(dir, rel)
		if err != nil {
			t.Errorf("reading label for %s: %v", rel, err)
			continue
		}
		if len(detections) != 1 {
			t.Errorf("label for %s has %d detections, want 1", rel, len(detections))
		}
	}

	// The configured vocabulary lands in classes.txt.
	classes, err := os.ReadFile(filepath.Join(dir, labels.DirName, labels.ClassesFileName))
	if err != nil {
		t.Fatalf("reading classes.txt: %v", err)
	}
	if string(classes) != "cat\ndog\n" {
		t.Errorf("classes.txt = %q", classes)
	}
}

func TestRunAggregatesFileErrors(t *testing.T) {
	dir := makeDataset(t, "a.jpg", "b.jpg", "c.jpg")

	b := &fakeBackend{infer: func(ctx context.Context, path string) ([]labels.Detection, error) {
		if strings.HasSuffix(path, "b.jpg") {
			return nil, fmt.Errorf("%w: corrupt image", backend.ErrInference)
		}
		return []labels.Detection{{Width: 0.1, Height: 0.1, CenterX: 0.5, CenterY: 0.5}}, nil
	}}
	r := newTestRunner(b)

	id, _ := r.Start(dir, "cfg")
	snap := waitTerminal(t, r, id)

	if snap.Status != StatusCompletedWithErrors {
		t.Errorf("status = %s, want completed_with_errors", snap.Status)
	}
	if snap.Processed != 3 {
		t.Errorf("processed = %d, want 3", snap.Processed)
	}
	if len(snap.FileErrors) != 1 {
		t.Fatalf("FileErrors = %v, want one entry", snap.FileErrors)
	}
	if _, ok := snap.FileErrors["b.jpg"]; !ok {
		t.Errorf("FileErrors = %v, want key b.jpg", snap.FileErrors)
	}

	// The failing file produced no label; the others did.
	if _, err := os.Stat(filepath.Join(dir, labels.DirName, "b.txt")); !os.IsNotExist(err) {
		t.Error("label written for failed file")
	}
	if _, err := os.Stat(filepath.Join(dir, labels.DirName, "a.txt")); err != nil {
		t.Errorf("label missing for a.jpg: %v", err)
	}
}

func TestRunFailsOnAuthError(t *testing.T) {
	dir := makeDataset(t, "a.jpg", "b.jpg")

	b := &fakeBackend{infer: func(ctx context.Context, path string) ([]labels.Detection, error) {
		return nil, fmt.Errorf("%w: status 401", backend.ErrAuth)
	}}
	r := newTestRunner(b)

	id, _ := r.Start(dir, "cfg")
	snap := waitTerminal(t, r, id)

	if snap.Status != StatusFailed {
		t.Errorf("status = %s, want failed", snap.Status)
	}
	if !strings.Contains(snap.Error, "authentication") {
		t.Errorf("Error = %q", snap.Error)
	}
}

func TestRunEmptyDataset(t *testing.T) {
	r := newTestRunner(&fakeBackend{infer: func(ctx context.Context, path string) ([]labels.Detection, error) {
		t.Error("backend called for empty dataset")
		return nil, nil
	}})

	id, _ := r.Start(t.TempDir(), "cfg")
	snap := waitTerminal(t, r, id)

	if snap.Status != StatusCompleted || snap.Total != 0 {
		t.Errorf("snap = %+v, want completed with total 0", snap)
	}
}

func TestCancelStopsDispatch(t *testing.T) {
	dir := makeDataset(t, "a.jpg", "b.jpg", "c.jpg", "d.jpg")

	started := make(chan struct{}, 1)
	b := &fakeBackend{infer: func(ctx context.Context, path string) ([]labels.Detection, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	r := newTestRunner(b)

	id, _ := r.Start(dir, "cfg")
	<-started
	if err := r.Cancel(id); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	snap := waitTerminal(t, r, id)
	if snap.Status != StatusCancelled {
		t.Errorf("status = %s, want cancelled", snap.Status)
	}
	if snap.Processed >= snap.Total {
		t.Errorf("processed = %d of %d, want fewer after cancel", snap.Processed, snap.Total)
	}

	// A second cancel reports the task is already done.
	if err := r.Cancel(id); !errors.Is(err, ErrTaskFinished) {
		t.Errorf("second Cancel = %v, want ErrTaskFinished", err)
	}
}

func TestStartValidation(t *testing.T) {
	r := newTestRunner(&fakeBackend{})

	if _, err := r.Start("/does/not/exist", "cfg"); !errors.Is(err, ErrDatasetNotFound) {
		t.Errorf("Start with missing dataset = %v, want ErrDatasetNotFound", err)
	}

	if _, err := r.Start(t.TempDir(), "missing"); !errors.Is(err, modelconfig.ErrNotFound) {
		t.Errorf("Start with missing config = %v, want modelconfig.ErrNotFound", err)
	}

	if _, err := r.Get("nope"); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("Get unknown task = %v, want ErrTaskNotFound", err)
	}
	if err := r.Cancel("nope"); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("Cancel unknown task = %v, want ErrTaskNotFound", err)
	}
}

func TestSubscribeSeesTerminalEvent(t *testing.T) {
	dir := makeDataset(t, "a.jpg")

	b := &fakeBackend{infer: func(ctx context.Context, path string) ([]labels.Detection, error) {
		return nil, nil
	}}
	r := newTestRunner(b)

	events, cancel := r.Subscribe()
	defer cancel()

	id, _ := r.Start(dir, "cfg")

	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.ID == id && ev.Status.Terminal() {
				if ev.Status != StatusCompleted {
					t.Errorf("terminal status = %s, want completed", ev.Status)
				}
				return
			}
		case <-deadline:
			t.Fatal("no terminal event received")
		}
	}
}

func TestListNewestFirst(t *testing.T) {
	dir := makeDataset(t, "a.jpg")
	b := &fakeBackend{infer: func(ctx context.Context, path string) ([]labels.Detection, error) {
		return nil, nil
	}}
	r := newTestRunner(b)

	first, _ := r.Start(dir, "cfg")
	waitTerminal(t, r, first)
	time.Sleep(2 * time.Millisecond)
	second, _ := r.Start(dir, "cfg")
	waitTerminal(t, r, second)

	list := r.List()
	if len(list) != 2 {
		t.Fatalf("List returned %d tasks, want 2", len(list))
	}
	if list[0].ID != second || list[1].ID != first {
		t.Errorf("List order = %s, %s; want newest first", list[0].ID, list[1].ID)
	}
}

func TestShutdownCancelsRunningTasks(t *testing.T) {
	dir := makeDataset(t, "a.jpg", "b.jpg")

	b := &fakeBackend{infer: func(ctx context.Context, path string) ([]labels.Detection, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	r := newTestRunner(b)

	id, _ := r.Start(dir, "cfg")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	snap, _ := r.Get(id)
	if snap.Status != StatusCancelled {
		t.Errorf("status after shutdown = %s, want cancelled", snap.Status)
	}
}
