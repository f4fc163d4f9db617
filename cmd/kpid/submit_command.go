package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"kpid/internal/daemon"
	"kpid/internal/queue"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var userID string
	var videoKey string
	var programName string
	var stationName string
	var description string
	var recordedAt string

	cmd := &cobra.Command{
		Use:   "submit <recording>",
		Short: "Queue a recording for moderation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if recordedAt != "" {
				if _, err := time.Parse(time.RFC3339, recordedAt); err != nil {
					return fmt.Errorf("--recorded-at must be RFC 3339: %w", err)
				}
			}

			return ctx.withQueue(cmd.Context(), func(client *apiClient, _ *queue.Store) error {
				if client == nil {
					return errors.New("the daemon is not running; start it with `kpid daemon run`")
				}
				created, err := client.Submit(cmd.Context(), daemon.SubmissionRequest{
					UserID:      userID,
					VideoKey:    videoKey,
					ProgramName: programName,
					StationName: stationName,
					Description: description,
					RecordingAt: recordedAt,
					SourcePath:  args[0],
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued record #%d (video key %s)\n", created.ID, created.VideoKey)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "Submitting user id")
	cmd.Flags().StringVar(&videoKey, "video-key", "", "Video key (generated when empty)")
	cmd.Flags().StringVar(&programName, "program", "", "Program name")
	cmd.Flags().StringVar(&stationName, "station", "", "Station name")
	cmd.Flags().StringVar(&description, "description", "", "Recording description")
	cmd.Flags().StringVar(&recordedAt, "recorded-at", "", "Recording timestamp (RFC 3339)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
