package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fieldvault/internal/config"
	"fieldvault/internal/notifications"
)

type captured struct {
	title    string
	message  string
	tags     string
	priority string
}

func newCapturingService(t *testing.T) (notifications.Service, *[]captured) {
	t.Helper()

	var requests []captured
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requests = append(requests, captured{
			title:    r.Header.Get("Title"),
			message:  string(body),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
		})
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.CaptureEnqueued = true
	cfg.Notifications.SyncSummary = true
	cfg.Notifications.RetryExhausted = true
	return notifications.NewService(&cfg), &requests
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifySyncSummary(context.Background(), 3, 0, time.Minute); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsMessages(t *testing.T) {
	svc, requests := newCapturingService(t)
	ctx := context.Background()

	if err := svc.NotifyCaptureEnqueued(ctx, "Odhiambo plot", "drought_stress"); err != nil {
		t.Fatalf("NotifyCaptureEnqueued failed: %v", err)
	}
	if err := svc.NotifySyncSummary(ctx, 4, 1, 90*time.Second); err != nil {
		t.Fatalf("NotifySyncSummary failed: %v", err)
	}
	if err := svc.NotifyRetryExhausted(ctx, "cap-1", "intake unreachable"); err != nil {
		t.Fatalf("NotifyRetryExhausted failed: %v", err)
	}
	if err := svc.NotifyError(ctx, errors.New("boom"), "sync pass"); err != nil {
		t.Fatalf("NotifyError failed: %v", err)
	}

	got := *requests
	if len(got) != 4 {
		t.Fatalf("expected 4 notifications, got %d", len(got))
	}
	if got[0].title != "FieldVault - Capture Queued" || !strings.Contains(got[0].message, "Odhiambo plot") {
		t.Fatalf("unexpected enqueue notification: %#v", got[0])
	}
	if !strings.Contains(got[1].message, "Delivered 4, failed 1") || got[1].priority != "high" {
		t.Fatalf("unexpected summary notification: %#v", got[1])
	}
	if got[2].priority != "high" || !strings.Contains(got[2].message, "cap-1") {
		t.Fatalf("unexpected exhausted notification: %#v", got[2])
	}
	if !strings.Contains(got[3].message, "sync pass: boom") {
		t.Fatalf("unexpected error notification: %#v", got[3])
	}
}

func TestNtfyServiceHonorsToggles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("disabled event must not reach ntfy")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.CaptureEnqueued = false
	cfg.Notifications.SyncSummary = false
	cfg.Notifications.RetryExhausted = false
	svc := notifications.NewService(&cfg)

	ctx := context.Background()
	if err := svc.NotifyCaptureEnqueued(ctx, "farm", "healthy"); err != nil {
		t.Fatalf("disabled event must be silent, got %v", err)
	}
	if err := svc.NotifySyncSummary(ctx, 1, 0, time.Second); err != nil {
		t.Fatalf("disabled event must be silent, got %v", err)
	}
	if err := svc.NotifyRetryExhausted(ctx, "cap-1", "offline"); err != nil {
		t.Fatalf("disabled event must be silent, got %v", err)
	}
}

func TestNtfyServiceReportsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "topic over quota", http.StatusTooManyRequests)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)

	err := svc.TestNotification(context.Background())
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected ntfy error, got %v", err)
	}
}
