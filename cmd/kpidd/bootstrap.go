package main

import (
	"context"
	"fmt"

	"log/slog"

	"kpid/internal/blob"
	"kpid/internal/config"
	"kpid/internal/daemon"
	"kpid/internal/queue"
	"kpid/internal/stages/analysis"
	"kpid/internal/stages/frames"
	"kpid/internal/stages/ingest"
	"kpid/internal/workflow"
)

func bootstrapDaemon(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*daemon.Daemon, error) {
	store, err := queue.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open queue store: %w", err)
	}

	blobs, err := blob.New(ctx, cfg)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open blob store: %w", err)
	}

	manager := workflow.NewManager(cfg, store, logger)
	manager.ConfigureStages(workflow.StageSet{
		Ingestor:  ingest.NewIngestor(cfg, store, blobs, logger),
		Extractor: frames.NewExtractor(cfg, store, blobs, logger),
		Analyzer:  analysis.NewAnalyzer(cfg, store, blobs, logger),
	})

	d, err := daemon.New(cfg, store, logger, manager)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return d, nil
}
