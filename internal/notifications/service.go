package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fieldvault/internal/config"
)

const userAgent = "FieldVault-Go/0.1.0"

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	NotifyCaptureEnqueued(ctx context.Context, farmName, condition string) error
	NotifySyncSummary(ctx context.Context, delivered, failed int, duration time.Duration) error
	NotifyRetryExhausted(ctx context.Context, captureID, reason string) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:        topic,
		client:          &http.Client{Timeout: timeout},
		captureEnqueued: cfg.Notifications.CaptureEnqueued,
		syncSummary:     cfg.Notifications.SyncSummary,
		retryExhausted:  cfg.Notifications.RetryExhausted,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint        string
	client          *http.Client
	captureEnqueued bool
	syncSummary     bool
	retryExhausted  bool
}

func (n *ntfyService) NotifyCaptureEnqueued(ctx context.Context, farmName, condition string) error {
	if !n.captureEnqueued {
		return nil
	}
	farmName = strings.TrimSpace(farmName)
	condition = strings.TrimSpace(condition)
	if condition == "" {
		condition = "unknown"
	}
	data := payload{
		title:   "FieldVault - Capture Queued",
		message: fmt.Sprintf("Observation queued for %s (%s)", farmName, condition),
		tags:    []string{"fieldvault", "capture", "queued"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifySyncSummary(ctx context.Context, delivered, failed int, duration time.Duration) error {
	if !n.syncSummary {
		return nil
	}
	data := payload{
		title:   "FieldVault - Sync Complete",
		message: fmt.Sprintf("Delivered %d, failed %d in %s", delivered, failed, duration.Round(time.Second)),
		tags:    []string{"fieldvault", "sync", "completed"},
	}
	if failed > 0 {
		data.priority = "high"
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRetryExhausted(ctx context.Context, captureID, reason string) error {
	if !n.retryExhausted {
		return nil
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unknown failure"
	}
	data := payload{
		title:    "FieldVault - Needs Attention",
		message:  fmt.Sprintf("Capture %s exhausted its retries: %s", captureID, reason),
		tags:     []string{"fieldvault", "sync", "exhausted"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, context string) error {
	message := "Unknown error"
	if err != nil {
		message = err.Error()
	}
	if context = strings.TrimSpace(context); context != "" {
		message = fmt.Sprintf("%s: %s", context, message)
	}
	data := payload{
		title:    "FieldVault - Error",
		message:  message,
		tags:     []string{"fieldvault", "error"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "FieldVault - Test",
		message:  "Notification system test",
		tags:     []string{"fieldvault", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyCaptureEnqueued(context.Context, string, string) error      { return nil }
func (noopService) NotifySyncSummary(context.Context, int, int, time.Duration) error { return nil }
func (noopService) NotifyRetryExhausted(context.Context, string, string) error       { return nil }
func (noopService) NotifyError(context.Context, error, string) error                 { return nil }
func (noopService) TestNotification(context.Context) error                           { return nil }
