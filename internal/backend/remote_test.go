package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"dataset-manager/internal/modelconfig"
)

func testImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "photo.jpg")
	if err := os.WriteFile(path, []byte("not really a jpeg"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func chatReply(content string) string {
	reply := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
	b, _ := json.Marshal(reply)
	return string(b)
}

func newTestModel(endpoint string) *RemoteVisionModel {
	m := NewRemoteVisionModel(&modelconfig.RemoteParams{
		Endpoint:  endpoint,
		APIKey:    "test-key",
		ModelName: "vision-test",
	})
	m.retryBackoff = time.Millisecond
	return m
}

func TestRemoteInferSuccess(t *testing.T) {
	var gotAuth string
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if req.Model != "vision-test" {
			t.Errorf("model = %q", req.Model)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("messages = %+v", req.Messages)
		}

		fmt.Fprint(w, chatReply("0 0.5 0.5 0.25 0.25\n1 0.1 0.1 0.05 0.05"))
	}))
	defer srv.Close()

	m := newTestModel(srv.URL)
	detections, err := m.Infer(context.Background(), testImage(t))
	if err != nil {
		t.Fatalf("Infer failed: %v", err)
	}

	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotPath != "/chat/completions" {
		t.Errorf("path = %q", gotPath)
	}
	if len(detections) != 2 {
		t.Fatalf("got %d detections, want 2", len(detections))
	}
	if detections[0].ClassID != 0 || detections[0].CenterX != 0.5 {
		t.Errorf("detections[0] = %+v", detections[0])
	}
}

func TestRemoteInferIncludesImageDataURL(t *testing.T) {
	var parts []contentPart
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role    string          `json:"role"`
				Content json.RawMessage `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if err := json.Unmarshal(req.Messages[1].Content, &parts); err != nil {
			t.Errorf("decoding user content: %v", err)
		}
		fmt.Fprint(w, chatReply(""))
	}))
	defer srv.Close()

	m := newTestModel(srv.URL)
	if _, err := m.Infer(context.Background(), testImage(t)); err != nil {
		t.Fatalf("Infer failed: %v", err)
	}

	if len(parts) != 2 {
		t.Fatalf("user content has %d parts, want 2", len(parts))
	}
	if parts[0].Type != "text" || parts[0].Text == "" {
		t.Errorf("parts[0] = %+v", parts[0])
	}
	if parts[1].ImageURL == nil || !strings.HasPrefix(parts[1].ImageURL.URL, "data:image/jpeg;base64,") {
		t.Errorf("parts[1] missing data URL")
	}
}

func TestRemoteInferRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, chatReply("0 0.5 0.5 0.1 0.1"))
	}))
	defer srv.Close()

	m := newTestModel(srv.URL)
	detections, err := m.Infer(context.Background(), testImage(t))
	if err != nil {
		t.Fatalf("Infer failed after retries: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("server saw %d calls, want 3", calls.Load())
	}
	if len(detections) != 1 {
		t.Errorf("got %d detections, want 1", len(detections))
	}
}

func TestRemoteInferRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 2 {
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, chatReply("0 0.5 0.5 0.1 0.1"))
	}))
	defer srv.Close()

	m := newTestModel(srv.URL)
	detections, err := m.Infer(context.Background(), testImage(t))
	if err != nil {
		t.Fatalf("Infer failed after rate limiting: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("server saw %d calls, want 2", calls.Load())
	}
	if len(detections) != 1 {
		t.Errorf("got %d detections, want 1", len(detections))
	}
}

func TestRemoteInferUnexpectedStatusIsNotFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	m := newTestModel(srv.URL)
	_, err := m.Infer(context.Background(), testImage(t))
	if !errors.Is(err, ErrInference) {
		t.Errorf("err = %v, want ErrInference", err)
	}
	// Only auth and validation errors abort a whole task.
	if errors.Is(err, ErrBadRequest) || errors.Is(err, ErrAuth) {
		t.Errorf("unexpected status classified as task-fatal: %v", err)
	}
}

func TestRemoteInferGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	m := newTestModel(srv.URL)
	_, err := m.Infer(context.Background(), testImage(t))
	if !errors.Is(err, ErrInference) {
		t.Errorf("err = %v, want ErrInference", err)
	}
	if calls.Load() != maxAttempts {
		t.Errorf("server saw %d calls, want %d", calls.Load(), maxAttempts)
	}
}

func TestRemoteInferNoRetryOnAuthError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	m := newTestModel(srv.URL)
	_, err := m.Infer(context.Background(), testImage(t))
	if !errors.Is(err, ErrAuth) {
		t.Errorf("err = %v, want ErrAuth", err)
	}
	if calls.Load() != 1 {
		t.Errorf("server saw %d calls, want 1 (no retry)", calls.Load())
	}
}

func TestRemoteInferNoRetryOnBadRequest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "invalid payload", http.StatusBadRequest)
	}))
	defer srv.Close()

	m := newTestModel(srv.URL)
	_, err := m.Infer(context.Background(), testImage(t))
	if !errors.Is(err, ErrBadRequest) {
		t.Errorf("err = %v, want ErrBadRequest", err)
	}
	if calls.Load() != 1 {
		t.Errorf("server saw %d calls, want 1 (no retry)", calls.Load())
	}
}

func TestRemoteInferTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	m := newTestModel(srv.URL)
	m.requestTimeout = 50 * time.Millisecond

	_, err := m.Infer(context.Background(), testImage(t))
	if !errors.Is(err, ErrInferenceTimeout) {
		t.Errorf("err = %v, want ErrInferenceTimeout", err)
	}
}

func TestRemoteInferHonorsCancel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Hold the request open until the test finishes so the client-side
		// cancellation is what ends Infer, not a server response.
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	m := newTestModel(srv.URL)
	_, err := m.Infer(ctx, testImage(t))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestRemoteInferEmptyReplyMeansNoObjects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatReply(""))
	}))
	defer srv.Close()

	m := newTestModel(srv.URL)
	detections, err := m.Infer(context.Background(), testImage(t))
	if err != nil {
		t.Fatalf("Infer failed: %v", err)
	}
	if len(detections) != 0 {
		t.Errorf("got %d detections, want 0", len(detections))
	}
}

func TestRemoteInferStripsCodeFences(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatReply("```\n0 0.5 0.5 0.1 0.1\n```\nHere are the detections."))
	}))
	defer srv.Close()

	m := newTestModel(srv.URL)
	detections, err := m.Infer(context.Background(), testImage(t))
	if err != nil {
		t.Fatalf("Infer failed: %v", err)
	}
	if len(detections) != 1 || detections[0].ClassID != 0 {
		t.Errorf("detections = %+v", detections)
	}
}

func TestBuildSystemPromptEnumeratesClasses(t *testing.T) {
	prompt := buildSystemPrompt([]string{"cat", "dog"})
	for _, want := range []string{"0: cat", "1: dog", "YOLO"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}

	bare := buildSystemPrompt(nil)
	if strings.Contains(bare, "recognizable classes") {
		t.Error("class section present without a vocabulary")
	}
}

func TestMaxInFlightDefault(t *testing.T) {
	m := NewRemoteVisionModel(&modelconfig.RemoteParams{Endpoint: "http://x", APIKey: "k", ModelName: "m"})
	if got := m.MaxInFlight(); got != defaultMaxInFlight {
		t.Errorf("MaxInFlight = %d, want %d", got, defaultMaxInFlight)
	}

	m = NewRemoteVisionModel(&modelconfig.RemoteParams{MaxInFlight: 2})
	if got := m.MaxInFlight(); got != 2 {
		t.Errorf("MaxInFlight = %d, want 2", got)
	}
}

func TestImageMIMEType(t *testing.T) {
	tests := map[string]string{
		"a.png":  "image/png",
		"b.JPG":  "image/jpeg",
		"c.webp": "image/webp",
		"d.tif":  "image/tiff",
		"e":      "image/jpeg",
	}
	for path, want := range tests {
		if got := imageMIMEType(path); got != want {
			t.Errorf("imageMIMEType(%q) = %q, want %q", path, got, want)
		}
	}
}
