package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"kpid/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage kpid configuration",
	}
	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))
	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var pathFlag string

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := pathFlag
			if path == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return err
				}
				path = defaultPath
			}
			if err := config.WriteSample(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&pathFlag, "path", "p", "", "Destination path for the sample config")
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			writeLines(out, renderSectionHeader("Paths", colorize))
			fmt.Fprintln(out, renderStatusLine("Staging dir", statusInfo, cfg.Paths.StagingDir, colorize))
			fmt.Fprintln(out, renderStatusLine("Log dir", statusInfo, cfg.Paths.LogDir, colorize))
			fmt.Fprintln(out, renderStatusLine("Queue database", statusInfo, cfg.Paths.QueueDB, colorize))
			fmt.Fprintln(out, renderStatusLine("API bind", statusInfo, cfg.Paths.APIBind, colorize))

			writeLines(out, renderSectionHeader("Blob store", colorize))
			fmt.Fprintln(out, renderStatusLine("Backend", statusInfo, cfg.Blob.Backend, colorize))
			if cfg.Blob.Backend == "gcs" {
				fmt.Fprintln(out, renderStatusLine("Bucket", statusInfo, cfg.Blob.Bucket, colorize))
			} else {
				fmt.Fprintln(out, renderStatusLine("Local dir", statusInfo, cfg.Blob.LocalDir, colorize))
			}

			writeLines(out, renderSectionHeader("Detection", colorize))
			fmt.Fprintln(out, renderStatusLine("Vision service", statusInfo, cfg.Detection.VisionBaseURL, colorize))
			fmt.Fprintln(out, renderStatusLine("Speech service", statusInfo, cfg.Detection.SpeechBaseURL, colorize))
			fmt.Fprintln(out, renderStatusLine("Confidence", statusInfo, fmt.Sprintf("%.2f", cfg.Detection.ConfidenceThreshold), colorize))

			writeLines(out, renderSectionHeader("Notifications", colorize))
			fmt.Fprintln(out, renderStatusLine("Configured", statusInfo, yesNo(cfg.Notifications.NtfyTopic != ""), colorize))
			fmt.Fprintln(out, renderStatusLine("Completion", statusInfo, yesNo(cfg.Notifications.Completion), colorize))
			fmt.Fprintln(out, renderStatusLine("Errors", statusInfo, yesNo(cfg.Notifications.Errors), colorize))
			return nil
		},
	}
}
