package intake

import (
	"context"
	"sync"
)

// Stub is a Service for tests. Errs are returned in order, one per Submit
// call; once exhausted, submissions succeed.
type Stub struct {
	mu    sync.Mutex
	Errs  []error
	Calls []Submission
}

var _ Service = (*Stub)(nil)

// Submit records the submission and pops the next scripted error.
func (s *Stub) Submit(_ context.Context, sub Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, sub)
	if len(s.Errs) == 0 {
		return nil
	}
	err := s.Errs[0]
	s.Errs = s.Errs[1:]
	return err
}

// SubmitCount returns how many submissions were attempted.
func (s *Stub) SubmitCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Calls)
}
