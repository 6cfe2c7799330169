package classify

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

	"fieldvault/internal/services"
)

// response models the classifier sidecar's JSON reply.
type response struct {
	Predictions []struct {
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
	} `json:"predictions"`
}

// Client calls a local inference sidecar over HTTP.
type Client struct {
	endpoint   string
	httpClient *http.Client
	timeout    time.Duration
}

var _ Classifier = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient creates a classifier client. timeout bounds each inference call;
// the spec budget is two seconds.
func NewClient(endpoint string, timeout time.Duration, opts ...Option) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("classifier endpoint required")
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	client := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Classify submits image bytes and returns the ranked class list. The primary
// label is the highest-confidence prediction.
func (c *Client) Classify(ctx context.Context, image []byte) (Result, error) {
	if len(image) == 0 {
		return Result{}, services.Wrap(services.ErrValidation, "classifier", "classify", "empty image", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	started := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(image))
	if err != nil {
		return Result{}, fmt.Errorf("build classify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return Result{}, services.Wrap(services.ErrTimeout, "classifier", "classify", "inference exceeded budget", err)
		}
		return Result{}, services.Wrap(services.ErrTransient, "classifier", "classify", "sidecar unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{}, services.Wrap(services.ErrTransient, "classifier", "classify",
			fmt.Sprintf("sidecar returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var parsed response
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Result{}, services.Wrap(services.ErrValidation, "classifier", "classify", "malformed sidecar response", err)
	}
	if len(parsed.Predictions) == 0 {
		return Result{}, services.Wrap(services.ErrValidation, "classifier", "classify", "no predictions returned", nil)
	}

	result := Result{Latency: time.Since(started)}
	for _, prediction := range parsed.Predictions {
		label, ok := ParseCondition(prediction.Label)
		if !ok {
			label = ConditionOther
		}
		result.TopK = append(result.TopK, Ranked{Label: label, Confidence: prediction.Confidence})
	}
	result.Primary = result.TopK[0].Label
	result.Confidence = result.TopK[0].Confidence
	return result, nil
}
