package backend

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dataset-manager/internal/labels"
	"dataset-manager/internal/logging"
	"dataset-manager/internal/metrics"
	"dataset-manager/internal/modelconfig"
)

const (
	defaultRequestTimeout = 30 * time.Second
	defaultMaxInFlight    = 4
	maxAttempts           = 3
	initialRetryBackoff   = 500 * time.Millisecond

	defaultUserPrompt = "Detect the common objects in the image and annotate them."
)

// RemoteVisionModel sends images to an OpenAI-compatible chat completions
// endpoint and parses YOLO-format lines out of the response.
type RemoteVisionModel struct {
	params       *modelconfig.RemoteParams
	client       *http.Client
	systemPrompt string

	// Overridable in tests.
	requestTimeout time.Duration
	retryBackoff   time.Duration
}

// NewRemoteVisionModel builds a client for the configured endpoint. No
// network traffic happens until Infer.
func NewRemoteVisionModel(params *modelconfig.RemoteParams) *RemoteVisionModel {
	return &RemoteVisionModel{
		params:         params,
		client:         &http.Client{},
		systemPrompt:   buildSystemPrompt(params.ClassNames),
		requestTimeout: requestTimeoutFromEnv(),
		retryBackoff:   initialRetryBackoff,
	}
}

// requestTimeoutFromEnv returns the per-attempt timeout, honoring the
// REMOTE_TIMEOUT environment variable (a Go duration like "45s").
func requestTimeoutFromEnv() time.Duration {
	if v := os.Getenv("REMOTE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
		logging.Warn("Ignoring invalid REMOTE_TIMEOUT %q", v)
	}
	return defaultRequestTimeout
}

// buildSystemPrompt instructs the model to answer with bare YOLO lines. When
// a class vocabulary is configured it is enumerated so the model uses our
// class ids.
func buildSystemPrompt(classNames []string) string {
	var b strings.Builder
	b.WriteString(`You are an image recognition expert. Analyze the image and report detections in YOLO format.
Rules:
1. Output only YOLO annotations, one object per line.
2. Each line is: <class_id> <x_center> <y_center> <width> <height>
3. All coordinates are floating point numbers between 0 and 1, relative to the image width and height.
4. Do not output any other text.
5. If no objects are detected, output nothing.`)

	if len(classNames) > 0 {
		b.WriteString("\n\nThe recognizable classes are:\n")
		for i, name := range classNames {
			fmt.Fprintf(&b, "%d: %s\n", i, name)
		}
		b.WriteString("\nUse only the class ids listed above.")
	}
	return b.String()
}

// MaxInFlight returns the configured request bound. Precedence: the model
// config, then the REMOTE_MAX_INFLIGHT environment variable, then 4.
func (m *RemoteVisionModel) MaxInFlight() int {
	if m.params.MaxInFlight > 0 {
		return m.params.MaxInFlight
	}
	if v := os.Getenv("REMOTE_MAX_INFLIGHT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
		logging.Warn("Ignoring invalid REMOTE_MAX_INFLIGHT %q", v)
	}
	return defaultMaxInFlight
}

// Close is a no-op; the model holds no resources beyond the HTTP client.
func (m *RemoteVisionModel) Close() error { return nil }

// chatRequest is the OpenAI chat completions payload. The image rides along
// as a base64 data URL in the user message.
type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Infer uploads the image and parses the model's answer into detections.
// Network errors and 5xx responses are retried with exponential backoff;
// authentication and bad-request failures are returned immediately.
func (m *RemoteVisionModel) Infer(ctx context.Context, imagePath string) ([]labels.Detection, error) {
	start := time.Now()
	metrics.InferenceInFlight.WithLabelValues("remote").Inc()
	defer metrics.InferenceInFlight.WithLabelValues("remote").Dec()

	body, err := m.buildRequestBody(imagePath)
	if err != nil {
		metrics.InferenceRequestsTotal.WithLabelValues("remote", "error").Inc()
		return nil, err
	}

	url := strings.TrimRight(m.params.Endpoint, "/") + "/chat/completions"

	var lastErr error
	backoff := m.retryBackoff
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		content, err := m.sendRequest(ctx, url, body)
		if err == nil {
			detections := labels.ParseLenient([]byte(content))
			metrics.InferenceRequestsTotal.WithLabelValues("remote", "success").Inc()
			metrics.InferenceDuration.WithLabelValues("remote").Observe(time.Since(start).Seconds())
			return detections, nil
		}

		if errors.Is(err, ErrAuth) || errors.Is(err, ErrBadRequest) || errors.Is(err, context.Canceled) {
			metrics.InferenceRequestsTotal.WithLabelValues("remote", "error").Inc()
			return nil, err
		}

		lastErr = err
		if attempt < maxAttempts {
			metrics.InferenceRetriesTotal.WithLabelValues("remote").Inc()
			logging.Debug("Remote inference for %s failed, retrying in %v (attempt %d/%d): %v",
				imagePath, backoff, attempt, maxAttempts, err)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				metrics.InferenceRequestsTotal.WithLabelValues("remote", "cancelled").Inc()
				return nil, ctx.Err()
			}
			backoff *= 2
		}
	}

	logging.Warn("Remote inference for %s failed after %d attempts: %v", imagePath, maxAttempts, lastErr)
	metrics.InferenceRequestsTotal.WithLabelValues("remote", "error").Inc()
	return nil, lastErr
}

// buildRequestBody encodes the image into a chat completions payload.
func (m *RemoteVisionModel) buildRequestBody(imagePath string) ([]byte, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrInference, imagePath, err)
	}

	userPrompt := m.params.PromptTemplate
	if userPrompt == "" {
		userPrompt = defaultUserPrompt
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s", imageMIMEType(imagePath), base64.StdEncoding.EncodeToString(data))
	req := chatRequest{
		Model:     m.params.ModelName,
		MaxTokens: 500,
		Messages: []chatMessage{
			{Role: "system", Content: m.systemPrompt},
			{Role: "user", Content: []contentPart{
				{Type: "text", Text: userPrompt},
				{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
			}},
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding request: %v", ErrInference, err)
	}
	return body, nil
}

// sendRequest performs one attempt with its own 30 second deadline and
// classifies the HTTP status into sentinel errors.
func (m *RemoteVisionModel) sendRequest(ctx context.Context, url string, body []byte) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, m.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: building request: %v", ErrInference, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.params.APIKey)

	resp, err := m.client.Do(req)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return "", fmt.Errorf("%w after %v", ErrInferenceTimeout, m.requestTimeout)
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %v", ErrInference, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: reading response: %v", ErrInference, err)
	}

	// Only auth and request-validation failures are fatal to the caller.
	// Everything else, including 429 rate limiting, is transient: it gets
	// retried here and lands in the task's per-file errors at worst.
	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("%w: status %d", ErrAuth, resp.StatusCode)
	case resp.StatusCode == http.StatusBadRequest:
		return "", fmt.Errorf("%w: status %d: %s", ErrBadRequest, resp.StatusCode, truncate(raw, 200))
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("%w: unexpected status %d", ErrInference, resp.StatusCode)
	}

	var cc chatResponse
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", ErrInference, err)
	}
	if len(cc.Choices) == 0 {
		return "", fmt.Errorf("%w: response has no choices", ErrInference)
	}
	return cc.Choices[0].Message.Content, nil
}

// imageMIMEType guesses the data URL media type from the file extension.
// The original upstream convention is jpeg when unsure.
func imageMIMEType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".bmp":
		return "image/bmp"
	case ".tiff", ".tif":
		return "image/tiff"
	default:
		return "image/jpeg"
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
