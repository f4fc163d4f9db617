package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"kpid/internal/blob"
	"kpid/internal/daemon"
	"kpid/internal/logging"
	"kpid/internal/queue"
	"kpid/internal/stages/analysis"
	"kpid/internal/stages/frames"
	"kpid/internal/stages/ingest"
	"kpid/internal/workflow"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the moderation daemon",
	}
	daemonCmd.AddCommand(newDaemonRunCommand(ctx))
	return daemonCmd
}

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the moderation daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonProcess(cmd, ctx)
		},
	}
}

func runDaemonProcess(cmd *cobra.Command, ctx *commandContext) error {
	signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	store, err := queue.Open(cfg)
	if err != nil {
		return fmt.Errorf("open queue store: %w", err)
	}
	defer store.Close()

	blobs, err := blob.New(signalCtx, cfg)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}

	manager := workflow.NewManager(cfg, store, logger)
	manager.ConfigureStages(workflow.StageSet{
		Ingestor:  ingest.NewIngestor(cfg, store, blobs, logger),
		Extractor: frames.NewExtractor(cfg, store, blobs, logger),
		Analyzer:  analysis.NewAnalyzer(cfg, store, blobs, logger),
	})

	d, err := daemon.New(cfg, store, logger, manager)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return err
	}
	if addr := d.APIAddress(); addr != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Daemon running, API on %s\n", addr)
	}

	<-signalCtx.Done()
	return nil
}
