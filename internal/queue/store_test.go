package queue_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"fieldvault/internal/queue"
	"fieldvault/internal/testsupport"
)

func TestEnqueuePersistsItemAndPayload(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	record := testsupport.NewRecord(t, "farm-1")
	payload := bytes.Repeat([]byte{0xAB}, 4096)

	item, err := store.Enqueue(ctx, record, payload)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if item.State != queue.StatePending {
		t.Fatalf("expected pending state, got %s", item.State)
	}
	if item.AttemptCount != 0 {
		t.Fatalf("expected zero attempts, got %d", item.AttemptCount)
	}
	if item.PayloadSizeBytes <= int64(len(payload)) {
		t.Fatalf("expected sealed payload larger than plaintext, got %d", item.PayloadSizeBytes)
	}

	blob, err := store.Payload(ctx, record.CaptureID)
	if err != nil {
		t.Fatalf("Payload failed: %v", err)
	}
	if bytes.Equal(blob, payload) {
		t.Fatal("stored payload must not be plaintext")
	}

	stored, err := item.Record()
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if stored.CaptureID != record.CaptureID || stored.FarmID != record.FarmID {
		t.Fatalf("unexpected stored record: %#v", stored)
	}
	if stored.Tilt != record.Tilt || stored.PrimaryLabel != record.PrimaryLabel {
		t.Fatalf("record fields not preserved: %#v", stored)
	}
}

func TestEnqueueRejectsEmptyPayload(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	record := testsupport.NewRecord(t, "farm-1")
	if _, err := store.Enqueue(context.Background(), record, nil); err == nil {
		t.Fatal("expected error for empty payload")
	}
}

func TestListPendingOrdersOldestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	var ids []string
	for i := 0; i < 3; i++ {
		record := testsupport.NewRecord(t, "farm-1")
		if _, err := store.Enqueue(ctx, record, []byte("payload")); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
		ids = append(ids, record.CaptureID)
		time.Sleep(2 * time.Millisecond)
	}

	items, err := store.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	for i, item := range items {
		if item.CaptureID != ids[i] {
			t.Fatalf("expected oldest-first order, got %s at %d", item.CaptureID, i)
		}
	}
}

func TestMarkSyncingIsExclusive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	record := testsupport.NewRecord(t, "farm-1")
	if _, err := store.Enqueue(ctx, record, []byte("payload")); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	claimed, err := store.MarkSyncing(ctx, record.CaptureID)
	if err != nil {
		t.Fatalf("MarkSyncing failed: %v", err)
	}
	if claimed.State != queue.StateSyncing {
		t.Fatalf("expected syncing state, got %s", claimed.State)
	}
	if claimed.AttemptCount != 1 {
		t.Fatalf("expected attempt count 1, got %d", claimed.AttemptCount)
	}
	if claimed.LastAttemptAt == nil {
		t.Fatal("expected last attempt timestamp")
	}

	if _, err := store.MarkSyncing(ctx, record.CaptureID); !errors.Is(err, queue.ErrNotClaimable) {
		t.Fatalf("expected ErrNotClaimable on double claim, got %v", err)
	}
	if _, err := store.MarkSyncing(ctx, "no-such-item"); !errors.Is(err, queue.ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}

func TestMarkSyncedReclaimsPayload(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	record := testsupport.NewRecord(t, "farm-1")
	if _, err := store.Enqueue(ctx, record, []byte("payload")); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if _, err := store.MarkSyncing(ctx, record.CaptureID); err != nil {
		t.Fatalf("MarkSyncing failed: %v", err)
	}
	if err := store.MarkSynced(ctx, record.CaptureID); err != nil {
		t.Fatalf("MarkSynced failed: %v", err)
	}

	item, err := store.GetByID(ctx, record.CaptureID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if item.State != queue.StateSynced {
		t.Fatalf("expected synced state, got %s", item.State)
	}
	if item.RecordJSON == "" {
		t.Fatal("metadata must survive payload reclamation")
	}

	if _, err := store.Payload(ctx, record.CaptureID); !errors.Is(err, queue.ErrPayloadMissing) {
		t.Fatalf("expected ErrPayloadMissing after sync, got %v", err)
	}
}

func TestMarkSyncedRequiresSyncingState(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	record := testsupport.NewRecord(t, "farm-1")
	if _, err := store.Enqueue(ctx, record, []byte("payload")); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := store.MarkSynced(ctx, record.CaptureID); err == nil {
		t.Fatal("expected error when completing a pending item")
	}
}

func TestMarkFailedKeepsPayload(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	record := testsupport.NewRecord(t, "farm-1")
	if _, err := store.Enqueue(ctx, record, []byte("payload")); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if _, err := store.MarkSyncing(ctx, record.CaptureID); err != nil {
		t.Fatalf("MarkSyncing failed: %v", err)
	}
	if err := store.MarkFailed(ctx, record.CaptureID, "intake unreachable"); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}

	item, err := store.GetByID(ctx, record.CaptureID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if item.State != queue.StateFailed {
		t.Fatalf("expected failed state, got %s", item.State)
	}
	if item.LastError != "intake unreachable" {
		t.Fatalf("unexpected last error: %q", item.LastError)
	}
	if _, err := store.Payload(ctx, record.CaptureID); err != nil {
		t.Fatalf("failed item must keep its payload: %v", err)
	}
}

func TestAttemptCeiling(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	record := testsupport.NewRecord(t, "farm-1")
	if _, err := store.Enqueue(ctx, record, []byte("payload")); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	const maxAttempts = 3
	for i := 0; i < maxAttempts; i++ {
		item, err := store.GetByID(ctx, record.CaptureID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if !item.Retryable(maxAttempts) {
			t.Fatalf("expected item retryable before attempt %d", i+1)
		}
		if _, err := store.MarkSyncing(ctx, record.CaptureID); err != nil {
			t.Fatalf("MarkSyncing failed: %v", err)
		}
		if err := store.MarkFailed(ctx, record.CaptureID, "still offline"); err != nil {
			t.Fatalf("MarkFailed failed: %v", err)
		}
	}

	item, err := store.GetByID(ctx, record.CaptureID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if item.AttemptCount != maxAttempts {
		t.Fatalf("expected %d attempts, got %d", maxAttempts, item.AttemptCount)
	}
	if item.Retryable(maxAttempts) {
		t.Fatal("item at the ceiling must not be retryable")
	}

	moved, err := store.RetryFailed(ctx, record.CaptureID)
	if err != nil {
		t.Fatalf("RetryFailed failed: %v", err)
	}
	if moved != 1 {
		t.Fatalf("expected 1 item retried, got %d", moved)
	}
	item, err = store.GetByID(ctx, record.CaptureID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if item.State != queue.StatePending || item.AttemptCount != 0 {
		t.Fatalf("retry must reset state and attempts: %#v", item)
	}
}

func TestMarkFailedPermanentParksItem(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	record := testsupport.NewRecord(t, "farm-1")
	if _, err := store.Enqueue(ctx, record, []byte("payload")); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if _, err := store.MarkSyncing(ctx, record.CaptureID); err != nil {
		t.Fatalf("MarkSyncing failed: %v", err)
	}
	if err := store.MarkFailedPermanent(ctx, record.CaptureID, "intake rejected submission"); err != nil {
		t.Fatalf("MarkFailedPermanent failed: %v", err)
	}

	item, err := store.GetByID(ctx, record.CaptureID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !item.Permanent {
		t.Fatal("expected permanent flag")
	}
	if item.Retryable(10) {
		t.Fatal("permanent failure must not be retryable below the ceiling")
	}

	if _, err := store.RetryFailed(ctx, record.CaptureID); err != nil {
		t.Fatalf("RetryFailed failed: %v", err)
	}
	item, err = store.GetByID(ctx, record.CaptureID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if item.Permanent || !item.Retryable(3) {
		t.Fatalf("explicit retry must clear the permanent flag: %#v", item)
	}
}

func TestResetStuckSyncingSurvivesRestart(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	record := testsupport.NewRecord(t, "farm-1")
	if _, err := store.Enqueue(ctx, record, []byte("payload")); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if _, err := store.MarkSyncing(ctx, record.CaptureID); err != nil {
		t.Fatalf("MarkSyncing failed: %v", err)
	}

	// Simulate a crash mid-attempt by reopening the database.
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	reopened := testsupport.MustOpenStore(t, cfg)

	reclaimed, err := reopened.ResetStuckSyncing(ctx)
	if err != nil {
		t.Fatalf("ResetStuckSyncing failed: %v", err)
	}
	if reclaimed != 1 {
		t.Fatalf("expected 1 reclaimed item, got %d", reclaimed)
	}

	item, err := reopened.GetByID(ctx, record.CaptureID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if item.State != queue.StateFailed {
		t.Fatalf("expected failed state after reclaim, got %s", item.State)
	}
	if item.LastError != queue.InterruptedReason {
		t.Fatalf("unexpected reclaim reason: %q", item.LastError)
	}
	if item.AttemptCount != 1 {
		t.Fatalf("interrupted attempt must still count, got %d", item.AttemptCount)
	}
	if _, err := reopened.Payload(ctx, record.CaptureID); err != nil {
		t.Fatalf("reclaimed item must keep its payload: %v", err)
	}
}

func TestRemoveDeletesPayload(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	record := testsupport.NewRecord(t, "farm-1")
	if _, err := store.Enqueue(ctx, record, []byte("payload")); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	removed, err := store.Remove(ctx, record.CaptureID)
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if !removed {
		t.Fatal("expected item to be removed")
	}
	if _, err := store.Payload(ctx, record.CaptureID); !errors.Is(err, queue.ErrPayloadMissing) {
		t.Fatalf("expected payload cascade delete, got %v", err)
	}

	removed, err = store.Remove(ctx, record.CaptureID)
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if removed {
		t.Fatal("second remove must report nothing deleted")
	}
}

func TestHealthCountsPerState(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := store.Enqueue(ctx, testsupport.NewRecord(t, "farm-1"), []byte("payload")); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}
	failed := testsupport.NewRecord(t, "farm-2")
	if _, err := store.Enqueue(ctx, failed, []byte("payload")); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if _, err := store.MarkSyncing(ctx, failed.CaptureID); err != nil {
		t.Fatalf("MarkSyncing failed: %v", err)
	}
	if err := store.MarkFailed(ctx, failed.CaptureID, "offline"); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if health.Pending != 2 || health.Failed != 1 || health.Total != 3 {
		t.Fatalf("unexpected health summary: %#v", health)
	}
}

func TestParseState(t *testing.T) {
	if state, ok := queue.ParseState(" PENDING "); !ok || state != queue.StatePending {
		t.Fatalf("ParseState normalization failed: %v %v", state, ok)
	}
	if _, ok := queue.ParseState("ripping"); ok {
		t.Fatal("unknown state must not parse")
	}
}
