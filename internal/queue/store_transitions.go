package queue

import (
	"context"
	"fmt"
	"time"
)

// MarkSyncing claims an item for a delivery attempt. The claim is exclusive:
// only pending or failed items transition, and the attempt counter advances
// at claim time so interrupted attempts still count against the ceiling.
func (s *Store) MarkSyncing(ctx context.Context, captureID string) (*Item, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items
         SET state = ?, attempt_count = attempt_count + 1, last_attempt_at = ?, updated_at = ?
         WHERE capture_id = ? AND state IN (?, ?)`,
		StateSyncing,
		now,
		now,
		captureID,
		StatePending,
		StateFailed,
	)
	if err != nil {
		return nil, fmt.Errorf("mark syncing: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		item, err := s.GetByID(ctx, captureID)
		if err != nil {
			return nil, err
		}
		if item == nil {
			return nil, fmt.Errorf("mark syncing %s: %w", captureID, ErrItemNotFound)
		}
		return nil, fmt.Errorf("mark syncing %s in state %s: %w", captureID, item.State, ErrNotClaimable)
	}
	return s.GetByID(ctx, captureID)
}

// MarkSynced records successful delivery and reclaims the payload ciphertext
// in the same transaction. Only a syncing item may complete.
func (s *Store) MarkSynced(ctx context.Context, captureID string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin synced tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		res, err := tx.ExecContext(
			ctx,
			`UPDATE queue_items
             SET state = ?, last_error = NULL, updated_at = ?
             WHERE capture_id = ? AND state = ?`,
			StateSynced,
			now,
			captureID,
			StateSyncing,
		)
		if err != nil {
			return fmt.Errorf("mark synced: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("mark synced %s: item not in syncing state", captureID)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM payloads WHERE capture_id = ?`, captureID); err != nil {
			return fmt.Errorf("reclaim payload: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit synced: %w", err)
		}
		return nil
	})
}

// MarkFailed records a failed delivery attempt with its reason. The payload
// stays in place so the item remains retryable.
func (s *Store) MarkFailed(ctx context.Context, captureID, reason string) error {
	return s.markFailed(ctx, captureID, reason, false)
}

// MarkFailedPermanent parks an item after a failure that retries cannot fix,
// such as a remote validation rejection or a payload that fails
// authentication. Only an explicit operator retry revives it.
func (s *Store) MarkFailedPermanent(ctx context.Context, captureID, reason string) error {
	return s.markFailed(ctx, captureID, reason, true)
}

func (s *Store) markFailed(ctx context.Context, captureID, reason string, permanent bool) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	permanentFlag := 0
	if permanent {
		permanentFlag = 1
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items
         SET state = ?, permanent = ?, last_error = ?, updated_at = ?
         WHERE capture_id = ?`,
		StateFailed,
		permanentFlag,
		nullableString(reason),
		now,
		captureID,
	)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("mark failed %s: %w", captureID, ErrItemNotFound)
	}
	return nil
}

// ResetStuckSyncing reclaims items abandoned mid-attempt by a crash or an
// aborted pass. They land in failed so operators can see the interruption,
// with attempt counts preserved.
func (s *Store) ResetStuckSyncing(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items
         SET state = ?, last_error = ?, updated_at = ?
         WHERE state = ?`,
		StateFailed,
		InterruptedReason,
		time.Now().UTC().Format(time.RFC3339Nano),
		StateSyncing,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck syncing: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed moves failed items back to pending and clears their attempt
// history. With no ids, every failed item is retried.
func (s *Store) RetryFailed(ctx context.Context, captureIDs ...string) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	query := `UPDATE queue_items
         SET state = ?, attempt_count = 0, permanent = 0, last_error = NULL, updated_at = ?
         WHERE state = ?`
	args := []any{StatePending, now, StateFailed}
	if len(captureIDs) > 0 {
		query += ` AND capture_id IN (`
		for i, id := range captureIDs {
			if i > 0 {
				query += ", "
			}
			query += "?"
			args = append(args, id)
		}
		query += `)`
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry failed items: %w", err)
	}
	return res.RowsAffected()
}
