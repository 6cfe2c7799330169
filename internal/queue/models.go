package queue

import (
	"strings"
	"time"
)

// State represents the delivery lifecycle of a queue item.
type State string

const (
	StatePending State = "pending"
	StateSyncing State = "syncing"
	StateSynced  State = "synced"
	StateFailed  State = "failed"
)

var allStates = []State{
	StatePending,
	StateSyncing,
	StateSynced,
	StateFailed,
}

// AllStates returns the ordered list of known states.
func AllStates() []State {
	cp := make([]State, len(allStates))
	copy(cp, allStates)
	return cp
}

// ParseState converts a string into a known State.
func ParseState(value string) (State, bool) {
	normalized := State(strings.ToLower(strings.TrimSpace(value)))
	for _, s := range allStates {
		if s == normalized {
			return normalized, true
		}
	}
	return "", false
}

// InterruptedReason is the error message recorded when syncing items are
// reclaimed after an aborted pass or process death.
const InterruptedReason = "sync interrupted before completion"

// Item is the durable unit awaiting delivery. The capture id doubles as the
// idempotency key for the remote intake service.
type Item struct {
	CaptureID        string
	FarmID           string
	State            State
	RecordJSON       string
	PayloadRef       string
	PayloadSizeBytes int64
	AttemptCount     int
	Permanent        bool
	LastError        string
	LastAttemptAt    *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Retryable reports whether the item is eligible for a sync attempt, given
// the configured attempt ceiling. Items rejected permanently by the remote
// service or failing payload authentication stay parked until an operator
// retries them explicitly.
func (i Item) Retryable(maxAttempts int) bool {
	switch i.State {
	case StatePending:
		return true
	case StateFailed:
		return !i.Permanent && i.AttemptCount < maxAttempts
	default:
		return false
	}
}

// HealthSummary describes aggregated queue counts per lifecycle state.
type HealthSummary struct {
	Total   int
	Pending int
	Syncing int
	Synced  int
	Failed  int
}
