package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"fieldvault/internal/config"
	"fieldvault/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the sync outbox",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show outbox counts per state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				health, err := store.Health(cmd.Context())
				if err != nil {
					return err
				}
				if health.Total == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Outbox is empty")
					return nil
				}
				rows := [][]string{
					{"pending", fmt.Sprintf("%d", health.Pending)},
					{"syncing", fmt.Sprintf("%d", health.Syncing)},
					{"synced", fmt.Sprintf("%d", health.Synced)},
					{"failed", fmt.Sprintf("%d", health.Failed)},
					{"total", fmt.Sprintf("%d", health.Total)},
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"State", "Count"}, rows, 1))
				return nil
			})
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStates []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List outbox items",
		RunE: func(cmd *cobra.Command, args []string) error {
			states := make([]queue.State, 0, len(listStates))
			for _, raw := range listStates {
				state, ok := queue.ParseState(raw)
				if !ok {
					return fmt.Errorf("unknown state %q (valid: %s)", raw, stateNames())
				}
				states = append(states, state)
			}

			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				items, err := store.List(cmd.Context(), states...)
				if err != nil {
					return err
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Outbox is empty")
					return nil
				}

				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{
						item.CaptureID,
						item.FarmID,
						string(item.State),
						fmt.Sprintf("%d", item.AttemptCount),
						formatSize(item.PayloadSizeBytes),
						item.CreatedAt.Local().Format(time.DateTime),
						truncate(item.LastError, 40),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Capture", "Farm", "State", "Attempts", "Payload", "Created", "Last Error"},
					rows, 3, 4))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&listStates, "state", nil, "Filter by state (pending, syncing, synced, failed)")
	return cmd
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [capture-id...]",
		Short: "Move failed items back to pending",
		Long: "Moves failed items back to pending and clears their attempt history.\n" +
			"With no arguments every failed item is retried, including items parked\n" +
			"past the attempt ceiling.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				moved, err := store.RetryFailed(cmd.Context(), args...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d item(s)\n", moved)
				return nil
			})
		},
	}
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <capture-id>",
		Short: "Delete an item and its payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				removed, err := store.Remove(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("no item with capture id %s", args[0])
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Removed")
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-synced",
		Short: "Remove delivered items from the outbox",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				cleared, err := store.ClearSynced(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d delivered item(s)\n", cleared)
				return nil
			})
		},
	}
}

func stateNames() string {
	states := queue.AllStates()
	names := make([]string, len(states))
	for i, s := range states {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

func formatSize(bytes int64) string {
	switch {
	case bytes >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(bytes)/(1<<20))
	case bytes >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(bytes)/(1<<10))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	if max <= 3 {
		return value[:max]
	}
	return value[:max-3] + "..."
}
