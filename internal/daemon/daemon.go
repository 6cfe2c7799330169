package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"fieldvault/internal/config"
	"fieldvault/internal/logging"
	"fieldvault/internal/network"
	"fieldvault/internal/notifications"
	"fieldvault/internal/queue"
	"fieldvault/internal/syncer"
)

// Daemon coordinates the background services and enforces single-instance
// execution per data directory.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	syncer   *syncer.Syncer
	monitor  *network.Monitor
	notifier notifications.Service

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	QueueDBPath   string
	LockFilePath  string
	NetworkOnline bool
	LastProbe     time.Time
	LastSync      time.Time
	LastSyncError string
	Queue         queue.HealthSummary
}

// LockPath returns the single-instance lock file location for the configured
// data directory.
func LockPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.DataDir, "fieldvaultd.lock")
}

// Active reports whether another process currently holds the daemon lock.
// The probe acquires and immediately releases the lock, so it never disturbs
// a running daemon.
func Active(cfg *config.Config) bool {
	probe := flock.New(LockPath(cfg))
	ok, err := probe.TryLock()
	if err != nil {
		return false
	}
	if ok {
		_ = probe.Unlock()
		return false
	}
	return true
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, sync *syncer.Syncer, monitor *network.Monitor) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || sync == nil {
		return nil, errors.New("daemon requires config, store, logger, and syncer")
	}

	lockPath := LockPath(cfg)
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		syncer:   sync,
		monitor:  monitor,
		notifier: notifications.NewService(cfg),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and launches the monitor and syncer.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another fieldvault daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if d.monitor != nil {
		if err := d.monitor.Start(runCtx); err != nil {
			_ = d.lock.Unlock()
			cancel()
			return fmt.Errorf("start network monitor: %w", err)
		}
	}
	if err := d.syncer.Start(runCtx); err != nil {
		if d.monitor != nil {
			d.monitor.Stop()
		}
		_ = d.lock.Unlock()
		cancel()
		return fmt.Errorf("start syncer: %w", err)
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("fieldvault daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background services and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.syncer.Stop()
	if d.monitor != nil {
		d.monitor.Stop()
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("fieldvault daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether the daemon is active.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// SyncNow requests an immediate drain pass.
func (d *Daemon) SyncNow() {
	d.syncer.SyncNow()
}

// Status summarizes runtime state for operator commands.
func (d *Daemon) Status(ctx context.Context) (Status, error) {
	status := Status{
		Running:      d.running.Load(),
		QueueDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
	}
	if d.monitor != nil {
		status.NetworkOnline = d.monitor.Reachable()
		status.LastProbe = d.monitor.LastCheck()
	}
	lastRun, lastErr := d.syncer.LastRun()
	status.LastSync = lastRun
	if lastErr != nil {
		status.LastSyncError = lastErr.Error()
	}

	health, err := d.store.Health(ctx)
	if err != nil {
		return status, fmt.Errorf("queue health: %w", err)
	}
	status.Queue = health
	return status, nil
}

// ListQueue returns queue items filtered by optional states.
func (d *Daemon) ListQueue(ctx context.Context, states []queue.State) ([]*queue.Item, error) {
	if d.store == nil {
		return nil, errors.New("queue store unavailable")
	}
	return d.store.List(ctx, states...)
}

// RetryFailed resets failed items (optionally a subset) back to pending and
// kicks off a pass.
func (d *Daemon) RetryFailed(ctx context.Context, ids []string) (int64, error) {
	if d.store == nil {
		return 0, errors.New("queue store unavailable")
	}
	moved, err := d.store.RetryFailed(ctx, ids...)
	if err == nil && moved > 0 && d.running.Load() {
		d.syncer.SyncNow()
	}
	return moved, err
}

// RemoveItem deletes a queue item and its payload.
func (d *Daemon) RemoveItem(ctx context.Context, captureID string) (bool, error) {
	if d.store == nil {
		return false, errors.New("queue store unavailable")
	}
	return d.store.Remove(ctx, captureID)
}

// ClearSynced removes delivered items.
func (d *Daemon) ClearSynced(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("queue store unavailable")
	}
	return d.store.ClearSynced(ctx)
}

// QueueHealth returns aggregate queue diagnostics.
func (d *Daemon) QueueHealth(ctx context.Context) (queue.HealthSummary, error) {
	if d.store == nil {
		return queue.HealthSummary{}, errors.New("queue store unavailable")
	}
	return d.store.Health(ctx)
}

// TestNotification triggers a test notification using the current
// configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg == nil {
		return false, "configuration unavailable", errors.New("configuration unavailable")
	}
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, err.Error(), err
	}
	return true, "notification sent", nil
}
