package classify

import (
	"context"
	"time"
)

// Stub is a deterministic Classifier for tests and offline development.
type Stub struct {
	Result Result
	Err    error
	// Delay simulates inference latency; the context deadline still applies.
	Delay time.Duration
}

var _ Classifier = (*Stub)(nil)

// Classify returns the configured result after the optional delay.
func (s *Stub) Classify(ctx context.Context, image []byte) (Result, error) {
	if s.Delay > 0 {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-time.After(s.Delay):
		}
	}
	if s.Err != nil {
		return Result{}, s.Err
	}
	return s.Result, nil
}
