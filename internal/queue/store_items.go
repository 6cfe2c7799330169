package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"fieldvault/internal/capture"
)

// Enqueue encrypts the payload and persists the queue item in one durable
// transaction: a crash leaves either both the row and the payload or neither.
func (s *Store) Enqueue(ctx context.Context, record *capture.Record, plaintext []byte) (*Item, error) {
	if record == nil {
		return nil, errors.New("record is nil")
	}
	if record.CaptureID == "" {
		return nil, errors.New("record has no capture id")
	}
	if len(plaintext) == 0 {
		return nil, errors.New("payload is empty")
	}

	recordJSON, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}

	blob, err := s.sealer.Seal(plaintext)
	if err != nil {
		return nil, fmt.Errorf("encrypt payload: %w", err)
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	payloadRef := "payloads/" + record.CaptureID

	ctx = ensureContext(ctx)
	err = retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin enqueue tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO queue_items (
                capture_id, farm_id, state, record_json, payload_ref,
                payload_size_bytes, attempt_count, created_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)`,
			record.CaptureID,
			record.FarmID,
			StatePending,
			string(recordJSON),
			payloadRef,
			int64(len(blob)),
			timestamp,
			timestamp,
		); err != nil {
			return fmt.Errorf("insert queue item: %w", err)
		}

		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO payloads (capture_id, blob) VALUES (?, ?)`,
			record.CaptureID,
			blob,
		); err != nil {
			return fmt.Errorf("insert payload: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit enqueue: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetByID(ctx, record.CaptureID)
}

// GetByID fetches a queue item by capture identifier. Returns nil when the
// item does not exist.
func (s *Store) GetByID(ctx context.Context, captureID string) (*Item, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+itemColumns+` FROM queue_items WHERE capture_id = ?`, captureID)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// ListPending returns items awaiting delivery (pending plus failed), oldest
// first so the earliest captures sync first.
func (s *Store) ListPending(ctx context.Context) ([]*Item, error) {
	return s.List(ctx, StatePending, StateFailed)
}

// List returns items in the provided states ordered oldest first. With no
// states, all items are returned.
func (s *Store) List(ctx context.Context, states ...State) ([]*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM queue_items`
	args := make([]any, 0, len(states))
	if len(states) > 0 {
		placeholders := make([]string, len(states))
		for i, state := range states {
			placeholders[i] = "?"
			args = append(args, state)
		}
		query += ` WHERE state IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY created_at ASC, capture_id ASC`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

// Payload returns the encrypted payload blob for a queue item.
func (s *Store) Payload(ctx context.Context, captureID string) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT blob FROM payloads WHERE capture_id = ?`, captureID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("payload for %s: %w", captureID, ErrPayloadMissing)
	}
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return blob, nil
}

// Record unmarshals the frozen capture record stored with an item.
func (i *Item) Record() (*capture.Record, error) {
	if strings.TrimSpace(i.RecordJSON) == "" {
		return nil, errors.New("item has no record")
	}
	var record capture.Record
	if err := json.Unmarshal([]byte(i.RecordJSON), &record); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return &record, nil
}

// Remove deletes an item and its payload regardless of state. Intended for
// operator cleanup; the synchronizer only frees storage via MarkSynced.
func (s *Store) Remove(ctx context.Context, captureID string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM queue_items WHERE capture_id = ?`, captureID)
	if err != nil {
		return false, fmt.Errorf("remove item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearSynced removes delivered items.
func (s *Store) ClearSynced(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM queue_items WHERE state = ?`, StateSynced)
	if err != nil {
		return 0, fmt.Errorf("clear synced items: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns item counts per state.
func (s *Store) Stats(ctx context.Context) (map[State]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT state, COUNT(1) FROM queue_items GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[State]int)
	for rows.Next() {
		var stateStr string
		var count int
		if err := rows.Scan(&stateStr, &count); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		stats[State(stateStr)] = count
	}
	return stats, rows.Err()
}

// Health summarizes queue counts per lifecycle state.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	summary := HealthSummary{
		Pending: stats[StatePending],
		Syncing: stats[StateSyncing],
		Synced:  stats[StateSynced],
		Failed:  stats[StateFailed],
	}
	summary.Total = summary.Pending + summary.Syncing + summary.Synced + summary.Failed
	return summary, nil
}
