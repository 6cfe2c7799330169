package intake

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fieldvault/internal/capture"
	"fieldvault/internal/services"
)

const userAgent = "FieldVault-Go/0.1.0"

// Submission bundles everything the intake service needs to file one claim
// observation. The capture id doubles as the idempotency key, so replaying a
// submission after an ambiguous failure is always safe.
type Submission struct {
	Record  *capture.Record
	Payload []byte
}

// Service is the delivery surface the synchronizer drives. Satisfied by
// Client; tests substitute stubs.
type Service interface {
	Submit(ctx context.Context, sub Submission) error
}

// Config describes the intake client configuration.
type Config struct {
	URL        string
	APIToken   string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client uploads claim observations to the remote intake endpoint.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
}

var _ Service = (*Client)(nil)

// New creates a Client from the supplied configuration.
func New(cfg Config) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.URL)
	if endpoint == "" {
		return nil, services.Wrap(services.ErrConfiguration, "intake", "new", "intake url is required", nil)
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "intake", "new", "parse intake url", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &Client{
		endpoint: endpoint,
		token:    strings.TrimSpace(cfg.APIToken),
		http:     client,
	}, nil
}

// Submit uploads one observation. Failures are tagged for the synchronizer:
// network errors and 5xx responses are transient, 4xx responses are
// permanent, and a conflict means the observation already arrived and counts
// as success.
func (c *Client) Submit(ctx context.Context, sub Submission) error {
	if sub.Record == nil || sub.Record.CaptureID == "" {
		return services.Wrap(services.ErrValidation, "intake", "submit", "submission has no record", nil)
	}
	if len(sub.Payload) == 0 {
		return services.Wrap(services.ErrValidation, "intake", "submit", "submission has no payload", nil)
	}

	body, contentType, err := encodeSubmission(sub)
	if err != nil {
		return fmt.Errorf("encode submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return fmt.Errorf("build submit request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Idempotency-Key", sub.Record.CaptureID)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || (ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded)) {
			return services.Wrap(services.ErrTimeout, "intake", "submit", "upload exceeded deadline", err)
		}
		return services.Wrap(services.ErrTransient, "intake", "submit", "intake unreachable", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusConflict:
		// Already received under this idempotency key.
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return services.Wrap(services.ErrConfiguration, "intake", "submit",
			fmt.Sprintf("intake rejected credentials (%d)", resp.StatusCode), nil)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return services.Wrap(services.ErrValidation, "intake", "submit",
			fmt.Sprintf("intake rejected submission: %s", readErrorBody(resp.Body, resp.StatusCode)), nil)
	default:
		return services.Wrap(services.ErrTransient, "intake", "submit",
			fmt.Sprintf("intake returned %s", readErrorBody(resp.Body, resp.StatusCode)), nil)
	}
}

func encodeSubmission(sub Submission) (*bytes.Buffer, string, error) {
	recordJSON, err := json.Marshal(sub.Record)
	if err != nil {
		return nil, "", fmt.Errorf("marshal record: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	metadata, err := writer.CreateFormField("metadata")
	if err != nil {
		return nil, "", fmt.Errorf("create metadata part: %w", err)
	}
	if _, err := metadata.Write(recordJSON); err != nil {
		return nil, "", fmt.Errorf("write metadata part: %w", err)
	}

	image, err := writer.CreateFormFile("image", sub.Record.CaptureID+".jpg")
	if err != nil {
		return nil, "", fmt.Errorf("create image part: %w", err)
	}
	if _, err := image.Write(sub.Payload); err != nil {
		return nil, "", fmt.Errorf("write image part: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("finalize multipart body: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}

func readErrorBody(body io.Reader, status int) string {
	data, _ := io.ReadAll(io.LimitReader(body, 512))
	text := strings.TrimSpace(string(data))
	if text == "" {
		return fmt.Sprintf("%d", status)
	}
	return fmt.Sprintf("%d: %s", status, text)
}
