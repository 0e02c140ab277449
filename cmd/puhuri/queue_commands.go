package main

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"puhuri/internal/queue"
	"puhuri/internal/staging"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the lesson queue",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueResetCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue status summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				rows := buildQueueStatusRows(stats)
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				table := renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued lessons",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				statuses := make([]queue.Status, 0, len(listStatuses))
				for _, status := range listStatuses {
					statuses = append(statuses, queue.Status(strings.ToLower(strings.TrimSpace(status))))
				}

				items, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}

				table := renderTable(
					[]string{"ID", "Lesson", "Status", "Created", "Fingerprint"},
					buildQueueListRows(items),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by queue status (repeatable)")
	return cmd
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var clearCompleted bool
	var clearFailed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			if clearCompleted && clearFailed {
				return errors.New("specify only one of --completed or --failed")
			}
			return ctx.withStore(func(store *queue.Store) error {
				out := cmd.OutOrStdout()
				switch {
				case clearCompleted:
					removed, err := store.ClearCompleted(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Cleared %d completed items\n", removed)
				case clearFailed:
					removed, err := store.ClearFailed(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Cleared %d failed items\n", removed)
				default:
					removed, err := store.Clear(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Cleared %d queue items\n", removed)
				}
				return clearOrphanedStaging(cmd, ctx, store)
			})
		},
	}

	cmd.Flags().BoolVar(&clearCompleted, "completed", false, "Remove only completed items")
	cmd.Flags().BoolVar(&clearFailed, "failed", false, "Remove only failed items")
	return cmd
}

// clearOrphanedStaging removes staging directories whose queue items no
// longer exist, keeping staging in step with the database after a clear.
func clearOrphanedStaging(cmd *cobra.Command, ctx *commandContext, store *queue.Store) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	items, err := store.List(cmd.Context())
	if err != nil {
		return err
	}
	active := make(map[int64]struct{}, len(items))
	for _, item := range items {
		active[item.ID] = struct{}{}
	}

	result := staging.CleanOrphaned(cmd.Context(), cfg.Paths.StagingDir, active, nil)
	out := cmd.OutOrStdout()
	if len(result.Removed) > 0 {
		fmt.Fprintf(out, "Removed %d orphaned staging directories\n", len(result.Removed))
	}
	for _, e := range result.Errors {
		fmt.Fprintf(out, "  Error: %s: %v\n", e.Path, e.Error)
	}
	return nil
}

func newQueueResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-stuck",
		Short: "Return in-flight items to pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				updated, err := store.ResetStuckProcessing(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d items\n", updated)
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [itemID...]",
		Short: "Return failed and review items to pending",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid item id %q", arg)
				}
				ids = append(ids, id)
			}

			return ctx.withStore(func(store *queue.Store) error {
				out := cmd.OutOrStdout()
				if len(ids) == 0 {
					updated, err := store.RetryFailed(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Retried %d items\n", updated)
					return nil
				}

				items, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				itemsByID := make(map[int64]*queue.Item, len(items))
				for _, item := range items {
					itemsByID[item.ID] = item
				}

				for _, id := range ids {
					item, ok := itemsByID[id]
					if !ok {
						fmt.Fprintf(out, "Item %d not found\n", id)
						continue
					}
					if item.Status != queue.StatusFailed && item.Status != queue.StatusReview {
						fmt.Fprintf(out, "Item %d is not in a retryable state\n", id)
						continue
					}
					updated, err := store.RetryFailed(cmd.Context(), id)
					if err != nil {
						return err
					}
					if updated > 0 {
						fmt.Fprintf(out, "Item %d reset for retry\n", id)
					} else {
						fmt.Fprintf(out, "Item %d is not in a retryable state\n", id)
					}
				}
				return nil
			})
		},
	}
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check queue database health (schema, integrity, columns)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				health, err := store.CheckHealth(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Database path: %s\n", health.DBPath)
				fmt.Fprintf(out, "Database exists: %s\n", yesNo(health.DatabaseExists))
				fmt.Fprintf(out, "Readable: %s\n", yesNo(health.DatabaseReadable))
				fmt.Fprintf(out, "Schema version: %s\n", health.SchemaVersion)
				fmt.Fprintf(out, "queue_items table present: %s\n", yesNo(health.TableExists))
				if len(health.ColumnsPresent) > 0 {
					cols := append([]string(nil), health.ColumnsPresent...)
					sort.Strings(cols)
					fmt.Fprintf(out, "Columns: %s\n", strings.Join(cols, ", "))
				}
				if len(health.MissingColumns) > 0 {
					missing := append([]string(nil), health.MissingColumns...)
					sort.Strings(missing)
					fmt.Fprintf(out, "Missing columns: %s\n", strings.Join(missing, ", "))
				} else {
					fmt.Fprintln(out, "Missing columns: none")
				}
				fmt.Fprintf(out, "Integrity check: %s\n", yesNo(health.IntegrityCheck))
				fmt.Fprintf(out, "Total items: %d\n", health.TotalItems)
				if health.Error != "" {
					fmt.Fprintf(out, "Error: %s\n", health.Error)
				}
				return nil
			})
		},
	}
}
