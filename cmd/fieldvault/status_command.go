package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"fieldvault/internal/config"
	"fieldvault/internal/daemon"
	"fieldvault/internal/logging"
	"fieldvault/internal/network"
	"fieldvault/internal/queue"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
)

const statusLabelWidth = 16

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, network, and outbox status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			if daemon.Active(cfg) {
				printStatusLine(stdout, "Daemon", statusOK, "running", colorize)
			} else {
				printStatusLine(stdout, "Daemon", statusWarn, "not running", colorize)
			}
			printStatusLine(stdout, "Lock file", statusInfo, daemon.LockPath(cfg), colorize)

			monitor := network.NewMonitor(cfg, logging.NewNop())
			if monitor.Check(cmd.Context()) {
				printStatusLine(stdout, "Network", statusOK,
					fmt.Sprintf("reachable (%s)", cfg.Network.ProbeAddress), colorize)
			} else {
				printStatusLine(stdout, "Network", statusWarn,
					fmt.Sprintf("offline (%s)", cfg.Network.ProbeAddress), colorize)
			}

			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				health, err := store.Health(cmd.Context())
				if err != nil {
					return err
				}
				printStatusLine(stdout, "Queue DB", statusInfo, store.Path(), colorize)
				kind := statusOK
				if health.Failed > 0 {
					kind = statusWarn
				}
				printStatusLine(stdout, "Outbox", kind, formatHealthSummary(health), colorize)
				return nil
			})
		},
	}
}

func formatHealthSummary(health queue.HealthSummary) string {
	if health.Total == 0 {
		return "empty"
	}
	return fmt.Sprintf("%d pending, %d syncing, %d synced, %d failed",
		health.Pending, health.Syncing, health.Synced, health.Failed)
}

func printStatusLine(w io.Writer, label string, kind statusKind, message string, colorize bool) {
	fmt.Fprintln(w, renderStatusLine(label, kind, message, colorize))
}

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := fmt.Sprintf("[%s]", statusKindLabel(kind))
	if message != "" {
		statusText += " " + message
	}
	base := fmt.Sprintf("  %-*s %s", statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	default:
		return ""
	}
}

func shouldColorize(w io.Writer) bool {
	if strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
