package intake_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fieldvault/internal/intake"
	"fieldvault/internal/services"
	"fieldvault/internal/testsupport"
)

func newClient(t *testing.T, url string) *intake.Client {
	t.Helper()
	client, err := intake.New(intake.Config{URL: url, APIToken: "secret", Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("intake.New: %v", err)
	}
	return client
}

func TestSubmitSendsMultipartWithIdempotencyKey(t *testing.T) {
	record := testsupport.NewRecord(t, "farm-1")
	payload := []byte("jpeg-bytes")

	var gotAuth, gotKey string
	var gotMetadata, gotImage []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get("Idempotency-Key")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		gotMetadata = []byte(r.FormValue("metadata"))
		file, _, err := r.FormFile("image")
		if err != nil {
			t.Errorf("image part: %v", err)
		} else {
			gotImage, _ = io.ReadAll(file)
			file.Close()
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := newClient(t, server.URL)
	err := client.Submit(context.Background(), intake.Submission{Record: record, Payload: payload})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("unexpected auth header: %q", gotAuth)
	}
	if gotKey != record.CaptureID {
		t.Fatalf("idempotency key %q, want capture id %q", gotKey, record.CaptureID)
	}
	if !bytes.Contains(gotMetadata, []byte(record.CaptureID)) {
		t.Fatalf("metadata missing capture id: %s", gotMetadata)
	}
	if !bytes.Equal(gotImage, payload) {
		t.Fatal("image part does not match payload")
	}
}

func TestSubmitConflictCountsAsDelivered(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer server.Close()

	client := newClient(t, server.URL)
	sub := intake.Submission{Record: testsupport.NewRecord(t, "farm-1"), Payload: []byte("x")}
	if err := client.Submit(context.Background(), sub); err != nil {
		t.Fatalf("conflict must be treated as success, got %v", err)
	}
}

func TestSubmitClassifiesFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		check  func(error) bool
	}{
		{"server error transient", http.StatusInternalServerError, services.IsTransient},
		{"unavailable transient", http.StatusServiceUnavailable, services.IsTransient},
		{"bad request permanent", http.StatusBadRequest, services.IsPermanent},
		{"unauthorized configuration", http.StatusUnauthorized, func(err error) bool {
			return errors.Is(err, services.ErrConfiguration)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer server.Close()

			client := newClient(t, server.URL)
			sub := intake.Submission{Record: testsupport.NewRecord(t, "farm-1"), Payload: []byte("x")}
			err := client.Submit(context.Background(), sub)
			if err == nil {
				t.Fatalf("expected error for status %d", tc.status)
			}
			if !tc.check(err) {
				t.Fatalf("misclassified error for status %d: %v", tc.status, err)
			}
		})
	}
}

func TestSubmitUnreachableIsTransient(t *testing.T) {
	client := newClient(t, "http://127.0.0.1:1/claims")
	sub := intake.Submission{Record: testsupport.NewRecord(t, "farm-1"), Payload: []byte("x")}
	err := client.Submit(context.Background(), sub)
	if !services.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestSubmitValidatesInput(t *testing.T) {
	client := newClient(t, "http://127.0.0.1:1/claims")
	if err := client.Submit(context.Background(), intake.Submission{}); !services.IsPermanent(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	sub := intake.Submission{Record: testsupport.NewRecord(t, "farm-1")}
	if err := client.Submit(context.Background(), sub); !services.IsPermanent(err) {
		t.Fatalf("expected validation error for empty payload, got %v", err)
	}
}

func TestNewRequiresURL(t *testing.T) {
	if _, err := intake.New(intake.Config{}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
