package daemonrun

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"fieldvault/internal/config"
	"fieldvault/internal/daemon"
	"fieldvault/internal/envelope"
	"fieldvault/internal/intake"
	"fieldvault/internal/logging"
	"fieldvault/internal/network"
	"fieldvault/internal/queue"
	"fieldvault/internal/syncer"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// Run wires the full pipeline and blocks until the context is cancelled or a
// termination signal arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if opts.LogLevel != "" {
		overridden := *cfg
		overridden.Logging.Level = opts.LogLevel
		cfg = &overridden
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	sealer := envelope.NewService(envelope.NewFileKeyStore(cfg.Paths.KeyFilePath))
	store, err := queue.Open(cfg, sealer)
	if err != nil {
		return fmt.Errorf("open queue store: %w", err)
	}

	uploader, err := intake.New(intake.Config{
		URL:      cfg.Intake.URL,
		APIToken: cfg.Intake.APIToken,
		Timeout:  time.Duration(cfg.Intake.RequestTimeout) * time.Second,
	})
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("build intake client: %w", err)
	}

	var sync *syncer.Syncer
	monitor := network.NewMonitor(cfg, logger, network.WithOnOnline(func() {
		if sync != nil {
			sync.SyncNow()
		}
	}))
	sync = syncer.New(cfg, store, uploader, sealer, logger, syncer.WithConnectivity(monitor))

	d, err := daemon.New(cfg, store, logger, sync, monitor)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	<-signalCtx.Done()
	logger.Info("fieldvault daemon shutting down")
	d.Stop()
	return nil
}
