package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/firewhere/internal/domain"
	"golang.org/x/time/rate"
)

// ServingClient implements domain.Predictor against a TensorFlow Serving
// REST endpoint.
type ServingClient struct {
	endpoint   string
	httpClient *http.Client
}

// NewServingClient creates a client for model name served at baseURL.
func NewServingClient(baseURL, name string, timeout time.Duration) *ServingClient {
	return &ServingClient{
		endpoint: fmt.Sprintf("%s/v1/models/%s:predict", strings.TrimRight(baseURL, "/"), url.PathEscape(name)),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type predictRequest struct {
	Instances [][]float64 `json:"instances"`
}

type predictResponse struct {
	Predictions [][]float64 `json:"predictions"`
	Error       string      `json:"error,omitempty"`
}

// Predict posts one instance and interprets the single returned row.
func (c *ServingClient) Predict(ctx context.Context, features domain.FeatureVector) (domain.Prediction, error) {
	body, err := json.Marshal(predictRequest{Instances: [][]float64{features[:]}})
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("serving request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return domain.Prediction{}, fmt.Errorf("serving API error: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var pr predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return domain.Prediction{}, fmt.Errorf("decode response: %w", err)
	}
	if pr.Error != "" {
		return domain.Prediction{}, fmt.Errorf("serving API error: %s", pr.Error)
	}
	if len(pr.Predictions) != 1 {
		return domain.Prediction{}, fmt.Errorf("expected 1 prediction, got %d", len(pr.Predictions))
	}
	return interpret(pr.Predictions[0])
}

// RateLimitedPredictor wraps a Predictor with a client-side rate limit.
type RateLimitedPredictor struct {
	predictor domain.Predictor
	limiter   *rate.Limiter
}

// NewRateLimitedPredictor allows rps requests per second with the given burst.
func NewRateLimitedPredictor(p domain.Predictor, rps float64, burst int) *RateLimitedPredictor {
	return &RateLimitedPredictor{
		predictor: p,
		limiter:   rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Predict waits for the limiter or context cancellation, then forwards.
func (r *RateLimitedPredictor) Predict(ctx context.Context, features domain.FeatureVector) (domain.Prediction, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return domain.Prediction{}, fmt.Errorf("rate limit wait canceled: %w", err)
	}
	return r.predictor.Predict(ctx, features)
}
