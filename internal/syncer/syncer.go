package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fieldvault/internal/config"
	"fieldvault/internal/intake"
	"fieldvault/internal/logging"
	"fieldvault/internal/notifications"
	"fieldvault/internal/queue"
	"fieldvault/internal/services"
)

// Opener decrypts sealed payloads before submission. Satisfied by
// envelope.Service.
type Opener interface {
	Open(blob []byte) ([]byte, error)
}

// Connectivity gates periodic passes on network reachability. Satisfied by
// network.Monitor; a nil value means always reachable.
type Connectivity interface {
	Reachable() bool
}

// Summary reports the outcome of one drain pass.
type Summary struct {
	Reclaimed int
	Delivered int
	Failed    int
	Skipped   int
	Duration  time.Duration
}

// Syncer drains the outbox whenever connectivity allows. One pass walks
// eligible items oldest first, claiming each exclusively before decrypting
// and uploading it, so a crash at any point is recoverable from queue state
// alone.
type Syncer struct {
	cfg      *config.Config
	store    *queue.Store
	intake   intake.Service
	opener   Opener
	notifier notifications.Service
	connect  Connectivity
	logger   *slog.Logger

	interval    time.Duration
	maxAttempts int
	pacing      time.Duration
	backoffBase time.Duration
	backoffMax  time.Duration

	trigger chan struct{}

	mu      sync.Mutex
	running bool
	passing bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastRun time.Time
	lastErr error
}

// Option configures optional Syncer behavior.
type Option func(*Syncer)

// WithConnectivity gates periodic passes on the provided monitor.
func WithConnectivity(connect Connectivity) Option {
	return func(s *Syncer) {
		s.connect = connect
	}
}

// WithBackoff overrides the retry backoff window. Tests use this to drain
// failed items without waiting out the production delays.
func WithBackoff(base, max time.Duration) Option {
	return func(s *Syncer) {
		s.backoffBase = base
		if max < base {
			max = base
		}
		s.backoffMax = max
	}
}

// WithNotifier overrides the notification service.
func WithNotifier(notifier notifications.Service) Option {
	return func(s *Syncer) {
		if notifier != nil {
			s.notifier = notifier
		}
	}
}

// New constructs a Syncer from configuration.
func New(cfg *config.Config, store *queue.Store, uploader intake.Service, opener Opener, logger *slog.Logger, opts ...Option) *Syncer {
	if logger == nil {
		logger = logging.NewNop()
	}
	interval := time.Duration(cfg.Sync.IntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	maxAttempts := cfg.Sync.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	backoffBase := time.Duration(cfg.Sync.BackoffBaseSeconds) * time.Second
	if backoffBase <= 0 {
		backoffBase = 30 * time.Second
	}
	backoffMax := time.Duration(cfg.Sync.BackoffMaxSeconds) * time.Second
	if backoffMax < backoffBase {
		backoffMax = backoffBase
	}

	s := &Syncer{
		cfg:         cfg,
		store:       store,
		intake:      uploader,
		opener:      opener,
		notifier:    notifications.NewService(cfg),
		logger:      logging.NewComponentLogger(logger, "syncer"),
		interval:    interval,
		maxAttempts: maxAttempts,
		pacing:      time.Duration(cfg.Sync.PacingSeconds) * time.Second,
		backoffBase: backoffBase,
		backoffMax:  backoffMax,
		trigger:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins periodic background draining.
func (s *Syncer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("syncer already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.wg.Add(1)
	s.mu.Unlock()

	go s.run(runCtx)
	return nil
}

// Stop terminates background draining and waits for the current pass.
func (s *Syncer) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
}

// SyncNow requests an immediate pass. Safe to call from any goroutine;
// requests made while a pass is in flight coalesce into one follow-up pass.
func (s *Syncer) SyncNow() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// LastRun reports when the most recent pass finished and its error, if any.
func (s *Syncer) LastRun() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastErr
}

func (s *Syncer) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.connect != nil && !s.connect.Reachable() {
				s.logger.Debug("skipping scheduled pass while offline")
				continue
			}
			s.runAndRecord(ctx)
		case <-s.trigger:
			s.runAndRecord(ctx)
		}
	}
}

func (s *Syncer) runAndRecord(ctx context.Context) {
	summary, err := s.RunPass(ctx)
	s.mu.Lock()
	s.lastRun = time.Now()
	s.lastErr = err
	s.mu.Unlock()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Error("sync pass failed", logging.Error(err))
			_ = s.notifier.NotifyError(ctx, err, "sync pass")
		}
		return
	}
	if summary.Delivered > 0 || summary.Failed > 0 {
		_ = s.notifier.NotifySyncSummary(ctx, summary.Delivered, summary.Failed, summary.Duration)
	}
}

// RunPass drains the queue once. Interrupted items from previous passes are
// reclaimed first so nothing is stranded in the syncing state.
func (s *Syncer) RunPass(ctx context.Context) (Summary, error) {
	s.mu.Lock()
	if s.passing {
		s.mu.Unlock()
		return Summary{}, errors.New("sync pass already in progress")
	}
	s.passing = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.passing = false
		s.mu.Unlock()
	}()

	started := time.Now()
	var summary Summary

	reclaimed, err := s.store.ResetStuckSyncing(ctx)
	if err != nil {
		return summary, fmt.Errorf("reclaim interrupted items: %w", err)
	}
	summary.Reclaimed = int(reclaimed)
	if reclaimed > 0 {
		s.logger.Warn("reclaimed interrupted sync attempts", logging.Int64("count", reclaimed))
	}

	items, err := s.store.ListPending(ctx)
	if err != nil {
		return summary, fmt.Errorf("list eligible items: %w", err)
	}

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			summary.Duration = time.Since(started)
			return summary, err
		}
		if !item.Retryable(s.maxAttempts) {
			summary.Skipped++
			continue
		}
		if wait := s.backoffRemaining(item); wait > 0 {
			s.logger.Debug("item still backing off",
				logging.String(logging.FieldCaptureID, item.CaptureID),
				logging.Duration("remaining", wait))
			summary.Skipped++
			continue
		}

		if i > 0 && s.pacing > 0 {
			select {
			case <-time.After(s.pacing):
			case <-ctx.Done():
				summary.Duration = time.Since(started)
				return summary, ctx.Err()
			}
		}

		switch s.deliver(ctx, item) {
		case outcomeDelivered:
			summary.Delivered++
		case outcomeLostClaim:
			summary.Skipped++
		default:
			summary.Failed++
		}
	}

	summary.Duration = time.Since(started)
	s.logger.Info("sync pass complete",
		logging.Int("delivered", summary.Delivered),
		logging.Int("failed", summary.Failed),
		logging.Int("skipped", summary.Skipped),
		logging.Duration("duration", summary.Duration))
	return summary, nil
}

type deliveryOutcome int

const (
	outcomeDelivered deliveryOutcome = iota
	outcomeFailed
	outcomeLostClaim
)

func (s *Syncer) deliver(ctx context.Context, item *queue.Item) deliveryOutcome {
	ctx = services.WithCaptureID(ctx, item.CaptureID)
	logger := logging.WithContext(ctx, s.logger)

	claimed, err := s.store.MarkSyncing(ctx, item.CaptureID)
	if errors.Is(err, queue.ErrNotClaimable) || errors.Is(err, queue.ErrItemNotFound) {
		// Lost the claim; another pass owns the item. Not a delivery failure.
		logger.Debug("claim rejected", logging.Error(err))
		return outcomeLostClaim
	}
	if err != nil {
		logger.Error("claim failed", logging.Error(err))
		return outcomeFailed
	}

	if err := s.submit(ctx, claimed); err != nil {
		s.recordFailure(ctx, claimed, err, logger)
		return outcomeFailed
	}

	if err := s.store.MarkSynced(ctx, claimed.CaptureID); err != nil {
		logger.Error("delivered but state update failed", logging.Error(err))
		return outcomeFailed
	}
	logger.Info("observation delivered", logging.Int("attempt", claimed.AttemptCount))
	return outcomeDelivered
}

func (s *Syncer) submit(ctx context.Context, item *queue.Item) error {
	record, err := item.Record()
	if err != nil {
		return services.Wrap(services.ErrValidation, "syncer", "submit", "stored record unreadable", err)
	}

	blob, err := s.store.Payload(ctx, item.CaptureID)
	if err != nil {
		return services.Wrap(services.ErrValidation, "syncer", "submit", "stored payload unreadable", err)
	}

	plaintext, err := s.opener.Open(blob)
	if err != nil {
		return err
	}

	return s.intake.Submit(ctx, intake.Submission{Record: record, Payload: plaintext})
}

func (s *Syncer) recordFailure(ctx context.Context, item *queue.Item, cause error, logger *slog.Logger) {
	reason := cause.Error()
	permanent := services.IsPermanent(cause) || errors.Is(cause, services.ErrConfiguration)

	var markErr error
	if permanent {
		markErr = s.store.MarkFailedPermanent(ctx, item.CaptureID, reason)
	} else {
		markErr = s.store.MarkFailed(ctx, item.CaptureID, reason)
	}
	if markErr != nil {
		logger.Error("failed to record attempt failure", logging.Error(markErr))
		return
	}

	exhausted := permanent || item.AttemptCount >= s.maxAttempts
	logger.Warn("delivery attempt failed",
		logging.Int("attempt", item.AttemptCount),
		logging.Bool("permanent", permanent),
		logging.Bool("exhausted", exhausted),
		logging.Error(cause))
	if exhausted {
		_ = s.notifier.NotifyRetryExhausted(ctx, item.CaptureID, reason)
	}
}

// backoffRemaining returns how long an item must still wait before its next
// attempt. Delay doubles per recorded attempt, capped at the configured
// maximum. Reclaimed interruptions carry no penalty beyond their attempt
// count.
func (s *Syncer) backoffRemaining(item *queue.Item) time.Duration {
	if item.State != queue.StateFailed || item.AttemptCount == 0 || item.LastAttemptAt == nil {
		return 0
	}
	delay := s.backoffBase
	for i := 1; i < item.AttemptCount; i++ {
		delay *= 2
		if delay >= s.backoffMax {
			delay = s.backoffMax
			break
		}
	}
	elapsed := time.Since(*item.LastAttemptAt)
	if elapsed >= delay {
		return 0
	}
	return delay - elapsed
}
