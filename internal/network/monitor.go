package network

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"fieldvault/internal/config"
	"fieldvault/internal/logging"
)

// Prober reports whether the intake endpoint looks reachable. The default
// implementation dials a TCP connection; tests substitute their own.
type Prober func(ctx context.Context, address string) error

// Monitor polls connectivity in the background and reports transitions. The
// synchronizer uses it to skip passes that would only burn attempt budget
// while the device is offline.
type Monitor struct {
	address  string
	interval time.Duration
	timeout  time.Duration
	probe    Prober
	logger   *slog.Logger
	onOnline func()

	mu        sync.RWMutex
	reachable bool
	lastCheck time.Time
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// Option configures optional Monitor behavior.
type Option func(*Monitor)

// WithProber overrides the connectivity probe.
func WithProber(probe Prober) Option {
	return func(m *Monitor) {
		if probe != nil {
			m.probe = probe
		}
	}
}

// WithOnOnline registers a callback fired when connectivity returns after an
// offline stretch. The callback runs on the monitor goroutine and must not
// block.
func WithOnOnline(fn func()) Option {
	return func(m *Monitor) {
		m.onOnline = fn
	}
}

// NewMonitor constructs a connectivity monitor from configuration.
func NewMonitor(cfg *config.Config, logger *slog.Logger, opts ...Option) *Monitor {
	if logger == nil {
		logger = logging.NewNop()
	}
	interval := time.Duration(cfg.Network.ProbeIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	timeout := time.Duration(cfg.Network.ProbeTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	m := &Monitor{
		address:  cfg.Network.ProbeAddress,
		interval: interval,
		timeout:  timeout,
		probe:    dialProbe,
		logger:   logging.NewComponentLogger(logger, "network"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func dialProbe(ctx context.Context, address string) error {
	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return err
	}
	return conn.Close()
}

// Start begins background probing. The first probe runs immediately so
// callers see a real state without waiting a full interval.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("network monitor already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	go m.run(runCtx)
	return nil
}

// Stop terminates background probing and waits for completion.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Monitor) run(ctx context.Context) {
	defer m.wg.Done()

	m.Check(ctx)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check runs one probe immediately and returns the resulting state.
func (m *Monitor) Check(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	err := m.probe(probeCtx, m.address)
	cancel()

	now := time.Now()
	m.mu.Lock()
	wasReachable := m.reachable
	m.reachable = err == nil
	m.lastCheck = now
	reachable := m.reachable
	m.mu.Unlock()

	if reachable != wasReachable {
		if reachable {
			m.logger.Info("connectivity restored", logging.String("probe_address", m.address))
			if m.onOnline != nil {
				m.onOnline()
			}
		} else {
			m.logger.Info("connectivity lost",
				logging.String("probe_address", m.address),
				logging.Error(err))
		}
	}
	return reachable
}

// Reachable reports the most recent probe result.
func (m *Monitor) Reachable() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reachable
}

// LastCheck returns when the monitor last probed.
func (m *Monitor) LastCheck() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastCheck
}
