package workflow_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"kpid/internal/logging"
	"kpid/internal/queue"
	"kpid/internal/services"
	"kpid/internal/stage"
	"kpid/internal/testsupport"
	"kpid/internal/workflow"
)

type stubStage struct {
	name        string
	prepareHook func(*queue.Item)
	executeHook func(*queue.Item)
	prepareErr  error
	executeErr  error
	health      stage.Health
}

func newStubStage(name string) *stubStage {
	return &stubStage{name: name, health: stage.Healthy(name)}
}

func (s *stubStage) Prepare(_ context.Context, item *queue.Item) error {
	if s.prepareHook != nil {
		s.prepareHook(item)
	}
	return s.prepareErr
}

func (s *stubStage) Execute(_ context.Context, item *queue.Item) error {
	if s.executeHook != nil {
		s.executeHook(item)
	}
	return s.executeErr
}

func (s *stubStage) HealthCheck(context.Context) stage.Health {
	return s.health
}

type managerNotifier struct {
	mu          sync.Mutex
	verdicts    []queue.Status
	stageErrors []string
	queueStarts []int
	completions int
}

func (n *managerNotifier) NotifyVerdict(_ context.Context, item *queue.Item) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.verdicts = append(n.verdicts, item.Status)
	return nil
}

func (n *managerNotifier) NotifyStageError(_ context.Context, stage string, _ *queue.Item, _ error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stageErrors = append(n.stageErrors, stage)
	return nil
}

func (n *managerNotifier) NotifyQueueStarted(_ context.Context, count int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.queueStarts = append(n.queueStarts, count)
	return nil
}

func (n *managerNotifier) NotifyQueueCompleted(_ context.Context, _, _ int, _ time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completions++
	return nil
}

func (n *managerNotifier) TestNotification(context.Context) error { return nil }

func waitForStatus(t *testing.T, store *queue.Store, id int64, want ...queue.Status) *queue.Item {
	t.Helper()
	deadline := time.After(30 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for statuses %v", want)
		default:
		}
		item, err := store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		for _, status := range want {
			if item.Status == status {
				return item
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestManagerProcessesRecordsThroughPipeline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.QueuePollInterval = 0
	store := testsupport.MustOpenStore(t, cfg)

	ingestor := newStubStage("ingest")
	ingestor.executeHook = func(item *queue.Item) {
		item.VideoObject = "uploads/user-1_vid123.mp4"
	}
	extractor := newStubStage("frames")
	extractor.executeHook = func(item *queue.Item) {
		item.FramesJSON = "[]"
	}
	analyzer := newStubStage("analysis")
	analyzer.executeHook = func(item *queue.Item) {
		item.Status = queue.StatusRejected
		item.ResultJSON = `[{"second":12}]`
	}

	notifier := &managerNotifier{}
	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), notifier)
	mgr.ConfigureStages(workflow.StageSet{Ingestor: ingestor, Extractor: extractor, Analyzer: analyzer})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(mgr.Stop)

	item := testsupport.NewModeration(t, store, "user-1", "vid123")
	final := waitForStatus(t, store, item.ID, queue.StatusRejected)

	if final.VideoObject != "uploads/user-1_vid123.mp4" {
		t.Fatalf("expected ingest mutation persisted, got %q", final.VideoObject)
	}
	if final.FramesJSON != "[]" {
		t.Fatalf("expected frames mutation persisted, got %q", final.FramesJSON)
	}
	if final.ResultJSON == "" {
		t.Fatal("expected verdict payload persisted")
	}
	if final.LastHeartbeat != nil {
		t.Fatal("expected heartbeat cleared on completion")
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.queueStarts) != 1 {
		t.Fatalf("expected one queue start notification, got %d", len(notifier.queueStarts))
	}
	if len(notifier.verdicts) != 1 || notifier.verdicts[0] != queue.StatusRejected {
		t.Fatalf("expected rejected verdict notification, got %v", notifier.verdicts)
	}
}

func TestManagerAppliesDoneStatusWhenHandlerLeavesProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.QueuePollInterval = 0
	store := testsupport.MustOpenStore(t, cfg)

	ingestor := newStubStage("ingest")
	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), &managerNotifier{})
	mgr.ConfigureStages(workflow.StageSet{Ingestor: ingestor})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(mgr.Stop)

	item := testsupport.NewModeration(t, store, "user-1", "vid123")
	final := waitForStatus(t, store, item.ID, queue.StatusUploaded)
	if final.Status != queue.StatusUploaded {
		t.Fatalf("expected uploaded, got %s", final.Status)
	}
}

func TestManagerRoutesValidationFailuresToReview(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.QueuePollInterval = 0
	store := testsupport.MustOpenStore(t, cfg)

	ingestor := newStubStage("ingest")
	ingestor.executeErr = services.Wrap(services.ErrValidation, "ingest", "validate inputs", "Source recording missing", nil)

	notifier := &managerNotifier{}
	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), notifier)
	mgr.ConfigureStages(workflow.StageSet{Ingestor: ingestor})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(mgr.Stop)

	item := testsupport.NewModeration(t, store, "user-1", "vid123")
	final := waitForStatus(t, store, item.ID, queue.StatusReview)

	if final.ErrorMessage == "" {
		t.Fatal("expected error message recorded")
	}
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.stageErrors) == 0 || notifier.stageErrors[0] != "ingest" {
		t.Fatalf("expected ingest error notification, got %v", notifier.stageErrors)
	}
}

func TestManagerMarksTransientFailuresFailed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.QueuePollInterval = 0
	store := testsupport.MustOpenStore(t, cfg)

	ingestor := newStubStage("ingest")
	ingestor.executeErr = errors.New("object store unreachable")

	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), &managerNotifier{})
	mgr.ConfigureStages(workflow.StageSet{Ingestor: ingestor})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(mgr.Stop)

	item := testsupport.NewModeration(t, store, "user-1", "vid123")
	final := waitForStatus(t, store, item.ID, queue.StatusFailed)
	if final.ErrorMessage != "object store unreachable" {
		t.Fatalf("unexpected error message %q", final.ErrorMessage)
	}
}

func TestManagerStatusAggregatesHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ingestor := newStubStage("ingest")
	extractor := newStubStage("frames")
	extractor.health = stage.Unhealthy("frames", "keyframe threshold not configured")

	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), &managerNotifier{})
	mgr.ConfigureStages(workflow.StageSet{Ingestor: ingestor, Extractor: extractor})

	summary := mgr.Status(context.Background())
	if summary.Running {
		t.Fatal("expected manager not running")
	}
	if !summary.StageHealth["ingest"].Ready {
		t.Fatal("expected ingest healthy")
	}
	if summary.StageHealth["frames"].Ready {
		t.Fatal("expected frames unhealthy")
	}
}

func TestManagerStartRequiresStages(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), &managerNotifier{})
	if err := mgr.Start(context.Background()); err == nil {
		mgr.Stop()
		t.Fatal("expected error starting without stages")
	}
}
