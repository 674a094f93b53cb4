package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"scancart/internal/detection"
)

const (
	defaultHTTPTimeout = 5 * time.Second
	userAgent          = "scancart/0.1"
	maxResponseBytes   = 1 << 20
)

// HTTPConfig describes the classifier sidecar endpoint.
type HTTPConfig struct {
	URL            string
	Device         string
	TimeoutSeconds int
}

// HTTPClient asks a model sidecar to classify the latest frame it captured
// from the camera.
type HTTPClient struct {
	cfg        HTTPConfig
	httpClient *http.Client
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithHTTPClient overrides the underlying transport client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(c *HTTPClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewHTTPClient constructs a classifier client.
func NewHTTPClient(cfg HTTPConfig, opts ...HTTPOption) *HTTPClient {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &HTTPClient{
		cfg: HTTPConfig{
			URL:            strings.TrimSpace(cfg.URL),
			Device:         strings.TrimSpace(cfg.Device),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type classifyRequest struct {
	Device string `json:"device,omitempty"`
	Warmup bool   `json:"warmup,omitempty"`
}

type predictionEnvelope struct {
	Predictions []detection.Prediction `json:"predictions"`
}

type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("classifier request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// Init sends one warmup request so an unreachable sidecar or a missing model is
// reported before the loop starts.
func (c *HTTPClient) Init(ctx context.Context) error {
	if c.cfg.URL == "" {
		return errors.New("classifier init: url required")
	}
	if _, err := c.do(ctx, classifyRequest{Device: c.cfg.Device, Warmup: true}); err != nil {
		return fmt.Errorf("classifier init: %w", err)
	}
	return nil
}

// Classify returns the predictions for the current frame.
func (c *HTTPClient) Classify(ctx context.Context) ([]detection.Prediction, error) {
	return c.do(ctx, classifyRequest{Device: c.cfg.Device})
}

func (c *HTTPClient) do(ctx context.Context, payload classifyRequest) ([]detection.Prediction, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode classifier request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build classifier request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read classifier response: %w", err)
	}
	if resp.StatusCode >= 300 {
		snippet := data
		if len(snippet) > 2048 {
			snippet = snippet[:2048]
		}
		return nil, &httpStatusError{StatusCode: resp.StatusCode, Body: string(snippet)}
	}
	return decodePredictions(data)
}

// decodePredictions accepts either a bare array or {"predictions": [...]}.
// An empty body is an empty frame, not an error.
func decodePredictions(data []byte) ([]detection.Prediction, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var preds []detection.Prediction
		if err := json.Unmarshal(trimmed, &preds); err != nil {
			return nil, fmt.Errorf("decode predictions: %w", err)
		}
		return preds, nil
	}
	var envelope predictionEnvelope
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("decode predictions: %w", err)
	}
	return envelope.Predictions, nil
}
