package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"kpid/internal/daemon"
	"kpid/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the moderation queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueResetCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))

	return queueCmd
}

type queueRow struct {
	id       int64
	videoKey string
	program  string
	status   string
	progress string
	created  string
}

func (r queueRow) cells() []string {
	return []string{strconv.FormatInt(r.id, 10), r.videoKey, r.program, r.status, r.progress, r.created}
}

var queueListHeaders = []string{"ID", "Video Key", "Program", "Status", "Progress", "Created"}

var queueListAligns = []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List moderation records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(cmd.Context(), func(client *apiClient, store *queue.Store) error {
				var rows [][]string

				if client != nil {
					views, err := client.QueueList(cmd.Context(), listStatuses)
					if err != nil {
						return err
					}
					for _, view := range views {
						rows = append(rows, viewRow(view).cells())
					}
				} else {
					statuses := make([]queue.Status, 0, len(listStatuses))
					for _, value := range listStatuses {
						status, ok := queue.ParseStatus(value)
						if !ok {
							return fmt.Errorf("unknown status %q", value)
						}
						statuses = append(statuses, status)
					}
					items, err := store.List(cmd.Context(), statuses...)
					if err != nil {
						return err
					}
					for _, item := range items {
						rows = append(rows, itemRow(item).cells())
					}
				}

				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(queueListHeaders, rows, queueListAligns))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by status (repeatable)")
	return cmd
}

func viewRow(view daemon.QueueItemView) queueRow {
	progress := view.ProgressStage
	if view.ProgressPercent > 0 {
		progress = fmt.Sprintf("%s %.0f%%", view.ProgressStage, view.ProgressPercent)
	}
	return queueRow{
		id:       view.ID,
		videoKey: view.VideoKey,
		program:  view.ProgramName,
		status:   view.Status,
		progress: strings.TrimSpace(progress),
		created:  view.CreatedAt,
	}
}

func itemRow(item *queue.Item) queueRow {
	progress := item.ProgressStage
	if item.ProgressPercent > 0 {
		progress = fmt.Sprintf("%s %.0f%%", item.ProgressStage, item.ProgressPercent)
	}
	return queueRow{
		id:       item.ID,
		videoKey: item.VideoKey,
		program:  item.ProgramName,
		status:   string(item.Status),
		progress: strings.TrimSpace(progress),
		created:  item.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var clearFinished bool
	var clearFailed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove moderation records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(cmd.Context(), func(_ *apiClient, store *queue.Store) error {
				var removed int64
				var err error
				var label string
				switch {
				case clearFinished:
					removed, err = store.ClearFinished(cmd.Context())
					label = "finished records"
				case clearFailed:
					removed, err = store.ClearFailed(cmd.Context())
					label = "failed records"
				default:
					removed, err = store.Clear(cmd.Context())
					label = "records"
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d %s\n", removed, label)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clearFinished, "finished", false, "Only remove records with a verdict")
	cmd.Flags().BoolVar(&clearFailed, "failed", false, "Only remove failed records")
	cmd.MarkFlagsMutuallyExclusive("finished", "failed")
	return cmd
}

func newQueueResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Roll in-flight records back to the start of their stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(cmd.Context(), func(_ *apiClient, store *queue.Store) error {
				reset, err := store.ResetStuckProcessing(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d in-flight records\n", reset)
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id...]",
		Short: "Reset failed records back to pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}
			return ctx.withQueue(cmd.Context(), func(client *apiClient, store *queue.Store) error {
				if client != nil && len(ids) > 0 {
					for _, id := range ids {
						if err := client.RetryRecord(cmd.Context(), id); err != nil {
							return err
						}
						fmt.Fprintf(cmd.OutOrStdout(), "Record %d reset for retry\n", id)
					}
					return nil
				}

				retried, err := store.RetryFailed(cmd.Context(), ids...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d failed records\n", retried)
				return nil
			})
		},
	}
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show queue database diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(cmd.Context(), func(_ *apiClient, store *queue.Store) error {
				health, err := store.Health(cmd.Context())
				if err != nil {
					return err
				}
				rows := [][]string{
					{"Total", strconv.Itoa(health.Total)},
					{"Pending", strconv.Itoa(health.Pending)},
					{"Processing", strconv.Itoa(health.Processing)},
					{"Failed", strconv.Itoa(health.Failed)},
					{"Review", strconv.Itoa(health.Review)},
					{"Finished", strconv.Itoa(health.Finished)},
				}
				table := renderTable([]string{"Metric", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}

func parsePositiveIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid record id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
