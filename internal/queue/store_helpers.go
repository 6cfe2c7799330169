package queue

import (
	"database/sql"
	"errors"
	"time"
)

// ErrPayloadMissing indicates a payload blob is absent, normally because the
// item was already delivered and its ciphertext reclaimed.
var ErrPayloadMissing = errors.New("payload not found")

// ErrItemNotFound indicates no queue item exists for the capture id.
var ErrItemNotFound = errors.New("queue item not found")

// ErrNotClaimable indicates an item could not enter the syncing state, either
// because another pass already holds it or its state forbids the transition.
var ErrNotClaimable = errors.New("item not claimable for sync")

const itemColumns = "capture_id, farm_id, state, record_json, payload_ref, payload_size_bytes, attempt_count, permanent, last_error, last_attempt_at, created_at, updated_at"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		captureID     string
		farmID        sql.NullString
		stateStr      string
		recordJSON    sql.NullString
		payloadRef    sql.NullString
		payloadSize   sql.NullInt64
		attemptCount  sql.NullInt64
		permanent     sql.NullInt64
		lastError     sql.NullString
		lastAttemptAt sql.NullString
		createdRaw    sql.NullString
		updatedRaw    sql.NullString
	)

	if err := scanner.Scan(
		&captureID,
		&farmID,
		&stateStr,
		&recordJSON,
		&payloadRef,
		&payloadSize,
		&attemptCount,
		&permanent,
		&lastError,
		&lastAttemptAt,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	item := &Item{
		CaptureID:        captureID,
		FarmID:           farmID.String,
		State:            State(stateStr),
		RecordJSON:       recordJSON.String,
		PayloadRef:       payloadRef.String,
		PayloadSizeBytes: payloadSize.Int64,
		AttemptCount:     int(attemptCount.Int64),
		Permanent:        permanent.Int64 != 0,
		LastError:        lastError.String,
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	if lastAttemptAt.Valid {
		if attempt, err := parseTimeString(lastAttemptAt.String); err == nil {
			item.LastAttemptAt = &attempt
		}
	}
	return item, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
