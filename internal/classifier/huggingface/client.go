// Package huggingface classifies proof images with models served by the
// Hugging Face inference API.
package huggingface

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/greengig/greengig/internal/classifier"
	"github.com/greengig/greengig/internal/provider/resilience"
)

const (
	// DefaultBaseURL is the inference API root; the model id is appended.
	DefaultBaseURL = "https://api-inference.huggingface.co/models"

	// PrimaryModel is the general-purpose image classifier.
	PrimaryModel = "microsoft/resnet-50"

	// FallbackModel is the object detector consulted on low confidence.
	FallbackModel = "facebook/detr-resnet-50"

	// missingScore stands in for predictions that arrive without a score.
	missingScore = 0.5

	maxErrorBody = 4 << 10
)

// ClientConfig holds configuration for a single model client.
type ClientConfig struct {
	// Model is the model id, e.g. "microsoft/resnet-50". Required.
	Model string

	// BaseURL is the API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// Token is the API bearer token.
	Token string

	// HTTPClient executes requests. If nil, a breaker-guarded client with
	// retries disabled is created; escalation to the next model replaces retries.
	HTTPClient HTTPDoer

	// Timeout for the HTTP call (default: 30s).
	Timeout time.Duration

	// Registry receives the default client's breaker for health reporting.
	Registry *resilience.Registry

	Logger zerolog.Logger
}

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client classifies images with one hosted model.
type Client struct {
	model      string
	endpoint   string
	token      string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

var _ classifier.Classifier = (*Client)(nil)

// NewClient creates a client for cfg.Model.
func NewClient(cfg ClientConfig) (*Client, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("huggingface: model is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	endpoint, err := url.JoinPath(baseURL, cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("huggingface: build endpoint: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = classifier.DefaultCallTimeout
		}
		cb := resilience.DefaultCircuitBreakerConfig(cfg.Model)
		cb.Logger = cfg.Logger
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:           cfg.Model,
			Timeout:        timeout,
			MaxRetries:     0,
			CircuitBreaker: &cb,
			Registry:       cfg.Registry,
		})
	}

	return &Client{
		model:      cfg.Model,
		endpoint:   endpoint,
		token:      cfg.Token,
		httpClient: httpClient,
		logger:     cfg.Logger.With().Str("model", cfg.Model).Logger(),
	}, nil
}

// Name returns the model id.
func (c *Client) Name() string {
	return c.model
}

type prediction struct {
	Label string   `json:"label"`
	Score *float64 `json:"score"`
}

type apiError struct {
	Error         string  `json:"error"`
	EstimatedTime float64 `json:"estimated_time"`
}

// Classify posts the raw image and returns predictions ordered by score.
func (c *Client) Classify(ctx context.Context, image []byte) ([]classifier.Prediction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.classifyError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var apiErr apiError
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return nil, fmt.Errorf("%w: %s returned status %d: %s", classifier.ErrUnavailable, c.model, resp.StatusCode, msg)
	}

	var raw []prediction
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		if ctx.Err() != nil {
			return nil, c.classifyError(ctx, err)
		}
		return nil, fmt.Errorf("%w: decode %s response: %w", classifier.ErrUnavailable, c.model, err)
	}

	preds := make([]classifier.Prediction, 0, len(raw))
	for _, p := range raw {
		score := missingScore
		if p.Score != nil {
			score = *p.Score
		}
		preds = append(preds, classifier.Prediction{Label: p.Label, Score: score})
	}

	c.logger.Debug().Int("predictions", len(preds)).Msg("classification received")
	return classifier.TopPredictions(preds, 0), nil
}

func (c *Client) classifyError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w", classifier.ErrTimeout, c.model, err)
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %s: %w", classifier.ErrTimeout, c.model, err)
	}
	return fmt.Errorf("%w: %s: %w", classifier.ErrUnavailable, c.model, err)
}
