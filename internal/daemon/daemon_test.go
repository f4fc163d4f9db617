package daemon_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"kpid/internal/blob"
	"kpid/internal/config"
	"kpid/internal/daemon"
	"kpid/internal/logging"
	"kpid/internal/queue"
	"kpid/internal/stages/analysis"
	"kpid/internal/stages/frames"
	"kpid/internal/stages/ingest"
	"kpid/internal/testsupport"
	"kpid/internal/workflow"
)

func newTestDaemon(t *testing.T) (*daemon.Daemon, *config.Config, *queue.Store) {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()

	blobs, err := blob.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("open blob store: %v", err)
	}

	manager := workflow.NewManager(cfg, store, logger)
	manager.ConfigureStages(workflow.StageSet{
		Ingestor:  ingest.NewIngestor(cfg, store, blobs, logger),
		Extractor: frames.NewExtractor(cfg, store, blobs, logger),
		Analyzer:  analysis.NewAnalyzer(cfg, store, blobs, logger),
	})

	d, err := daemon.New(cfg, store, logger, manager)
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	return d, cfg, store
}

func writeRecording(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("recording"), 0o644); err != nil {
		t.Fatalf("write recording: %v", err)
	}
	return path
}

func TestSubmitQueuesRecording(t *testing.T) {
	d, _, store := newTestDaemon(t)
	source := writeRecording(t, t.TempDir(), "berita.mp4")

	item, err := d.Submit(context.Background(), queue.Submission{
		UserID:      "user-1",
		ProgramName: "Berita Pagi",
		SourcePath:  source,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if item.Status != queue.StatusPending {
		t.Fatalf("expected pending status, got %s", item.Status)
	}
	if item.Filename != "berita.mp4" {
		t.Fatalf("expected filename defaulted from source, got %q", item.Filename)
	}
	if len(item.VideoKey) != 12 {
		t.Fatalf("expected generated 12 character video key, got %q", item.VideoKey)
	}

	stored, err := store.GetByID(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if stored == nil || stored.ProgramName != "Berita Pagi" {
		t.Fatalf("expected persisted record with program name, got %+v", stored)
	}
}

func TestSubmitValidation(t *testing.T) {
	d, _, _ := newTestDaemon(t)
	dir := t.TempDir()
	source := writeRecording(t, dir, "clip.mp4")

	cases := []struct {
		name string
		sub  queue.Submission
		want string
	}{
		{"missing user", queue.Submission{SourcePath: source}, "user id is required"},
		{"missing source", queue.Submission{UserID: "user-1"}, "source path is required"},
		{"directory source", queue.Submission{UserID: "user-1", SourcePath: dir}, "is a directory"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := d.Submit(context.Background(), tc.sub); err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestSubmitRejectsUnsupportedExtension(t *testing.T) {
	d, _, _ := newTestDaemon(t)
	source := writeRecording(t, t.TempDir(), "notes.txt")

	_, err := d.Submit(context.Background(), queue.Submission{UserID: "user-1", SourcePath: source})
	if err == nil || !strings.Contains(err.Error(), "unsupported file extension") {
		t.Fatalf("expected extension error, got %v", err)
	}
}

func TestSubmitRejectsDuplicateVideoKey(t *testing.T) {
	d, _, _ := newTestDaemon(t)
	source := writeRecording(t, t.TempDir(), "clip.mp4")

	sub := queue.Submission{UserID: "user-1", VideoKey: "vid123", SourcePath: source}
	if _, err := d.Submit(context.Background(), sub); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	_, err := d.Submit(context.Background(), sub)
	if err == nil || !strings.Contains(err.Error(), "already queued") {
		t.Fatalf("expected duplicate video key error, got %v", err)
	}
}

func TestDaemonLockPreventsSecondInstance(t *testing.T) {
	first, cfg, _ := newTestDaemon(t)
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("start first daemon: %v", err)
	}
	defer first.Stop()

	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	manager := workflow.NewManager(cfg, store, logger)
	manager.ConfigureStages(workflow.StageSet{Ingestor: ingest.NewIngestor(cfg, store, nil, logger)})
	second, err := daemon.New(cfg, store, logger, manager)
	if err != nil {
		t.Fatalf("new second daemon: %v", err)
	}

	err = second.Start(context.Background())
	if err == nil {
		second.Stop()
		t.Fatal("expected second start to fail while lock is held")
	}
	if !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected lock error, got %v", err)
	}
}

func TestDaemonStatusReportsPaths(t *testing.T) {
	d, cfg, _ := newTestDaemon(t)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start daemon: %v", err)
	}
	defer d.Stop()

	status := d.Status(context.Background())
	if !status.Running {
		t.Fatal("expected running status")
	}
	if status.QueueDBPath != cfg.Paths.QueueDB {
		t.Fatalf("expected queue db path %q, got %q", cfg.Paths.QueueDB, status.QueueDBPath)
	}
	if status.APIAddress == "" {
		t.Fatal("expected bound api address")
	}
	if filepath.Dir(status.LockFilePath) != cfg.Paths.LogDir {
		t.Fatalf("expected lock file under log dir, got %q", status.LockFilePath)
	}
}

func TestTestNotificationWithoutTopic(t *testing.T) {
	d, _, _ := newTestDaemon(t)

	ok, detail, err := d.TestNotification(context.Background())
	if err != nil {
		t.Fatalf("test notification: %v", err)
	}
	if ok || !strings.Contains(detail, "not configured") {
		t.Fatalf("expected disabled notification result, got ok=%v detail=%q", ok, detail)
	}
}

func apiGet(t *testing.T, addr, path string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(fmt.Sprintf("http://%s%s", addr, path))
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s response: %v", path, err)
		}
	}
	return resp
}

func TestAPIServesStatusAndQueue(t *testing.T) {
	d, _, _ := newTestDaemon(t)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start daemon: %v", err)
	}
	defer d.Stop()

	addr := d.APIAddress()
	if addr == "" {
		t.Fatal("expected api address")
	}

	var status daemon.DaemonStatusResponse
	resp := apiGet(t, addr, "/api/status", &status)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from /api/status, got %d", resp.StatusCode)
	}
	if !status.Running {
		t.Fatal("expected running daemon in status payload")
	}
	if len(status.StageHealth) == 0 {
		t.Fatal("expected stage health entries")
	}

	var listing struct {
		Items []daemon.QueueItemView `json:"items"`
	}
	resp = apiGet(t, addr, "/api/queue", &listing)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from /api/queue, got %d", resp.StatusCode)
	}
	if len(listing.Items) != 0 {
		t.Fatalf("expected empty queue, got %d items", len(listing.Items))
	}

	resp = apiGet(t, addr, "/api/queue?status=bogus", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status filter, got %d", resp.StatusCode)
	}
}

func TestAPISubmitAndFetch(t *testing.T) {
	d, _, _ := newTestDaemon(t)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start daemon: %v", err)
	}
	defer d.Stop()

	source := writeRecording(t, t.TempDir(), "malam.mkv")
	body, _ := json.Marshal(daemon.SubmissionRequest{
		UserID:      "user-9",
		VideoKey:    "keyabc",
		ProgramName: "Berita Malam",
		RecordingAt: time.Now().UTC().Format(time.RFC3339),
		SourcePath:  source,
	})

	addr := d.APIAddress()
	resp, err := http.Post(fmt.Sprintf("http://%s/api/moderations", addr), "application/json", strings.NewReader(string(body)))
	if err != nil {
		t.Fatalf("POST /api/moderations: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created daemon.QueueItemView
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode created item: %v", err)
	}
	if created.VideoKey != "keyabc" || created.UserID != "user-9" {
		t.Fatalf("unexpected created item: %+v", created)
	}

	var fetched daemon.QueueItemView
	getResp := apiGet(t, addr, fmt.Sprintf("/api/queue/%d", created.ID), &fetched)
	if getResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 fetching record, got %d", getResp.StatusCode)
	}
	if fetched.ProgramName != "Berita Malam" {
		t.Fatalf("expected program name in fetched record, got %q", fetched.ProgramName)
	}

	notFound := apiGet(t, addr, "/api/queue/9999", nil)
	if notFound.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for missing record, got %d", notFound.StatusCode)
	}
}
