package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"kpid/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(cmd.Context(), func(client *apiClient, store *queue.Store) error {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)

				if client == nil {
					writeLines(out, renderSectionHeader("Daemon", colorize))
					fmt.Fprintln(out, renderStatusLine("Daemon", statusWarn, "not running; start it with `kpid daemon run`", colorize))

					stats, err := store.Stats(cmd.Context())
					if err != nil {
						return err
					}
					printQueueStats(out, colorize, statsToStrings(stats))
					return nil
				}

				status, err := client.Status(cmd.Context())
				if err != nil {
					return err
				}

				writeLines(out, renderSectionHeader("Daemon", colorize))
				fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, "running", colorize))
				fmt.Fprintln(out, renderStatusLine("Queue database", statusInfo, status.QueueDBPath, colorize))
				if status.LastError != "" {
					fmt.Fprintln(out, renderStatusLine("Last error", statusError, status.LastError, colorize))
				}

				printQueueStats(out, colorize, status.QueueStats)

				writeLines(out, renderSectionHeader("Stages", colorize))
				for _, stage := range status.StageHealth {
					if stage.Ready {
						fmt.Fprintln(out, renderStatusLine(stage.Name, statusOK, "", colorize))
						continue
					}
					fmt.Fprintln(out, renderStatusLine(stage.Name, statusError, stage.Detail, colorize))
				}

				if item := status.LastItem; item != nil {
					writeLines(out, renderSectionHeader("Last record", colorize))
					detail := fmt.Sprintf("#%d %s (%s)", item.ID, item.VideoKey, item.Status)
					if item.ProgressMessage != "" {
						detail += " " + item.ProgressMessage
					}
					fmt.Fprintln(out, renderStatusLine("Record", statusKindForRecord(item.Status), detail, colorize))
				}
				return nil
			})
		},
	}
}

func printQueueStats(out io.Writer, colorize bool, stats map[string]int) {
	writeLines(out, renderSectionHeader("Queue", colorize))
	if len(stats) == 0 {
		fmt.Fprintln(out, renderStatusLine("Queue", statusInfo, "empty", colorize))
		return
	}

	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, []string{name, strconv.Itoa(stats[name])})
	}
	table := renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
	fmt.Fprintln(out, table)
}

func statsToStrings(stats map[queue.Status]int) map[string]int {
	converted := make(map[string]int, len(stats))
	for status, count := range stats {
		converted[string(status)] = count
	}
	return converted
}

func writeLines(out io.Writer, lines []string) {
	if len(lines) == 0 {
		return
	}
	fmt.Fprintln(out, strings.Join(lines, "\n"))
}
