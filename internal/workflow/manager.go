package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"kpid/internal/config"
	"kpid/internal/notifications"
	"kpid/internal/queue"
	"kpid/internal/stage"
)

// StageSet bundles the concrete workflow handlers the manager orchestrates.
type StageSet struct {
	Ingestor  stage.Handler
	Extractor stage.Handler
	Analyzer  stage.Handler
}

type pipelineStage struct {
	name             string
	handler          stage.Handler
	startStatus      queue.Status
	processingStatus queue.Status
	doneStatus       queue.Status
	timeout          time.Duration
}

type loggerAware interface {
	SetLogger(*slog.Logger)
}

// Manager coordinates queue processing using registered stage handlers.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	logger       *slog.Logger
	pollInterval time.Duration
	notifier     notifications.Service

	heartbeat *HeartbeatMonitor

	stages       []pipelineStage
	stageByStart map[queue.Status]pipelineStage
	statusOrder  []queue.Status

	mu       sync.RWMutex
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	lastErr  error
	lastItem *queue.Item

	queueActive bool
	queueStart  time.Time
}

// NewManager constructs a new workflow manager.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Manager {
	return NewManagerWithNotifier(cfg, store, logger, notifications.NewService(cfg))
}

// NewManagerWithNotifier constructs a workflow manager with a custom notifier (used in tests).
func NewManagerWithNotifier(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service) *Manager {
	return &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logger,
		notifier:     notifier,
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
	}
}

// ConfigureStages registers the concrete stage handlers the workflow will run.
func (m *Manager) ConfigureStages(set StageSet) {
	stages := make([]pipelineStage, 0, 3)
	if set.Ingestor != nil {
		stages = append(stages, pipelineStage{
			name:             "ingest",
			handler:          set.Ingestor,
			startStatus:      queue.StatusPending,
			processingStatus: queue.StatusIngesting,
			doneStatus:       queue.StatusUploaded,
			timeout:          time.Duration(m.cfg.Workflow.IngestTimeout) * time.Second,
		})
	}
	if set.Extractor != nil {
		stages = append(stages, pipelineStage{
			name:             "frames",
			handler:          set.Extractor,
			startStatus:      queue.StatusUploaded,
			processingStatus: queue.StatusExtracting,
			doneStatus:       queue.StatusExtracted,
			timeout:          time.Duration(m.cfg.Workflow.ExtractTimeout) * time.Second,
		})
	}
	if set.Analyzer != nil {
		// The analyzer records accepted or rejected itself; the done status
		// only applies when the handler leaves the record in processing.
		stages = append(stages, pipelineStage{
			name:             "analysis",
			handler:          set.Analyzer,
			startStatus:      queue.StatusExtracted,
			processingStatus: queue.StatusAnalyzing,
			doneStatus:       queue.StatusAccepted,
			timeout:          time.Duration(m.cfg.Workflow.AnalysisTimeout) * time.Second,
		})
	}

	stageByStart := make(map[queue.Status]pipelineStage, len(stages))
	statusOrder := make([]queue.Status, 0, len(stages))
	for _, stg := range stages {
		stageByStart[stg.startStatus] = stg
		statusOrder = append(statusOrder, stg.startStatus)
	}

	m.mu.Lock()
	m.stages = stages
	m.stageByStart = stageByStart
	m.statusOrder = statusOrder
	m.mu.Unlock()
}

func (m *Manager) stageForStatus(status queue.Status) (pipelineStage, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stg, ok := m.stageByStart[status]
	return stg, ok
}
