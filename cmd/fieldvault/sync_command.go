package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"fieldvault/internal/config"
	"fieldvault/internal/envelope"
	"fieldvault/internal/intake"
	"fieldvault/internal/logging"
	"fieldvault/internal/queue"
	"fieldvault/internal/syncer"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Drain the outbox to the intake service once",
		Long: "Runs one delivery pass immediately, regardless of the daemon's\n" +
			"schedule. Interrupted items from a previous crash are reclaimed first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				uploader, err := intake.New(intake.Config{
					URL:      cfg.Intake.URL,
					APIToken: cfg.Intake.APIToken,
					Timeout:  time.Duration(cfg.Intake.RequestTimeout) * time.Second,
				})
				if err != nil {
					return err
				}

				logger, err := logging.NewFromConfig(cfg)
				if err != nil {
					return err
				}
				opener := envelope.NewService(envelope.NewFileKeyStore(cfg.Paths.KeyFilePath))
				s := syncer.New(cfg, store, uploader, opener, logger)

				summary, err := s.RunPass(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if summary.Reclaimed > 0 {
					fmt.Fprintf(out, "Reclaimed %d interrupted item(s)\n", summary.Reclaimed)
				}
				fmt.Fprintf(out, "Delivered %d, failed %d, skipped %d in %s\n",
					summary.Delivered, summary.Failed, summary.Skipped,
					summary.Duration.Round(time.Millisecond))
				return nil
			})
		},
	}
}
