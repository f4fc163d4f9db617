package ingest_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"kpid/internal/blob"
	"kpid/internal/logging"
	"kpid/internal/media/probe"
	"kpid/internal/queue"
	"kpid/internal/services"
	"kpid/internal/stages/ingest"
	"kpid/internal/testsupport"
)

const probePayload = `{
  "streams": [
    {"index": 0, "codec_type": "video", "codec_name": "h264", "r_frame_rate": "25/1", "nb_frames": "3000"},
    {"index": 1, "codec_type": "audio", "codec_name": "aac", "channels": 2}
  ],
  "format": {"duration": "120.00", "size": "1048576"}
}`

const probePayloadNoAudio = `{
  "streams": [
    {"index": 0, "codec_type": "video", "codec_name": "h264", "r_frame_rate": "25/1", "nb_frames": "3000"}
  ],
  "format": {"duration": "120.00"}
}`

func stubProbe(t *testing.T, payload string) {
	t.Helper()
	result, err := probe.Parse([]byte(payload))
	if err != nil {
		t.Fatalf("probe.Parse: %v", err)
	}
	restore := ingest.SetProbeForTests(func(context.Context, string, string) (probe.Result, error) {
		return result, nil
	})
	t.Cleanup(restore)
}

func stubCopyTool(t *testing.T, set func(func(context.Context, string, string, string) error) func()) *[]string {
	t.Helper()
	var dests []string
	restore := set(func(_ context.Context, _ string, src, dest string) error {
		data, err := os.ReadFile(src)
		if err != nil {
			return err
		}
		dests = append(dests, dest)
		return os.WriteFile(dest, data, 0o644)
	})
	t.Cleanup(restore)
	return &dests
}

func newModeration(t *testing.T, store *queue.Store, sourcePath string) *queue.Item {
	t.Helper()
	item, err := store.NewModeration(context.Background(), queue.Submission{
		UserID:     "user-1",
		Filename:   filepath.Base(sourcePath),
		VideoKey:   "vid123",
		SourcePath: sourcePath,
	})
	if err != nil {
		t.Fatalf("NewModeration: %v", err)
	}
	return item
}

func TestIngestorUploadsRecordingAndAudio(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	blobs, err := blob.NewLocal(cfg.Blob.LocalDir)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	source := filepath.Join(testsupport.BaseDir(cfg), "vid123.mp4")
	testsupport.WriteFile(t, source, 2048)
	stubProbe(t, probePayload)
	stubCopyTool(t, ingest.SetAudioExtractForTests)

	item := newModeration(t, store, source)
	handler := ingest.NewIngestor(cfg, store, blobs, logging.NewNop())

	if err := handler.Prepare(context.Background(), item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if item.Duration != 120 {
		t.Fatalf("expected duration 120, got %v", item.Duration)
	}
	if item.FPS != 25 {
		t.Fatalf("expected fps 25, got %v", item.FPS)
	}
	if item.TotalFrames != 3000 {
		t.Fatalf("expected 3000 frames, got %d", item.TotalFrames)
	}
	if item.MediaInfo == "" {
		t.Fatal("expected media info to be captured")
	}
	if item.VideoObject != "uploads/user-1_vid123.mp4" {
		t.Fatalf("unexpected video object %q", item.VideoObject)
	}
	if item.AudioObject != "uploads/user-1_vid123.mp3" {
		t.Fatalf("unexpected audio object %q", item.AudioObject)
	}
	for _, object := range []string{item.VideoObject, item.AudioObject} {
		if _, err := os.Stat(filepath.Join(cfg.Blob.LocalDir, filepath.FromSlash(object))); err != nil {
			t.Fatalf("expected uploaded object %s: %v", object, err)
		}
	}
	staging := filepath.Join(cfg.Paths.StagingDir, "queue-1")
	if _, err := os.Stat(staging); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected staging dir removed, stat err %v", err)
	}
}

func TestIngestorConvertsNonMP4Sources(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	blobs, err := blob.NewLocal(cfg.Blob.LocalDir)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	source := filepath.Join(testsupport.BaseDir(cfg), "vid123.ts")
	testsupport.WriteFile(t, source, 2048)
	stubProbe(t, probePayload)
	converted := stubCopyTool(t, ingest.SetConvertForTests)
	stubCopyTool(t, ingest.SetAudioExtractForTests)

	item := newModeration(t, store, source)
	handler := ingest.NewIngestor(cfg, store, blobs, logging.NewNop())

	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(*converted) != 1 {
		t.Fatalf("expected one conversion, got %d", len(*converted))
	}
	if item.Filename != "vid123.mp4" {
		t.Fatalf("expected normalized filename, got %q", item.Filename)
	}
	if item.VideoObject != "uploads/user-1_vid123.mp4" {
		t.Fatalf("unexpected video object %q", item.VideoObject)
	}
}

func TestIngestorSkipsAudioWhenNoStream(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	blobs, err := blob.NewLocal(cfg.Blob.LocalDir)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	source := filepath.Join(testsupport.BaseDir(cfg), "vid123.mp4")
	testsupport.WriteFile(t, source, 2048)
	stubProbe(t, probePayloadNoAudio)

	item := newModeration(t, store, source)
	handler := ingest.NewIngestor(cfg, store, blobs, logging.NewNop())

	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if item.AudioObject != "" {
		t.Fatalf("expected no audio object, got %q", item.AudioObject)
	}
}

func TestIngestorRejectsMissingSource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	blobs, err := blob.NewLocal(cfg.Blob.LocalDir)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	item := newModeration(t, store, filepath.Join(testsupport.BaseDir(cfg), "missing.mp4"))
	handler := ingest.NewIngestor(cfg, store, blobs, logging.NewNop())

	err = handler.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if services.FailureStatus(err) != queue.StatusReview {
		t.Fatalf("expected review status for %v", err)
	}
}

func TestIngestorHealthCheck(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	store := testsupport.MustOpenStore(t, cfg)
	blobs, err := blob.NewLocal(cfg.Blob.LocalDir)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	handler := ingest.NewIngestor(cfg, store, blobs, logging.NewNop())
	health := handler.HealthCheck(context.Background())
	if !health.Ready {
		t.Fatalf("expected healthy, got %+v", health)
	}

	handler = ingest.NewIngestor(cfg, store, nil, logging.NewNop())
	health = handler.HealthCheck(context.Background())
	if health.Ready {
		t.Fatal("expected unhealthy without blob store")
	}

	cfg.Tools.FFmpeg = filepath.Join(testsupport.BaseDir(cfg), "missing-ffmpeg")
	handler = ingest.NewIngestor(cfg, store, blobs, logging.NewNop())
	health = handler.HealthCheck(context.Background())
	if health.Ready || !strings.Contains(health.Detail, "missing-ffmpeg") {
		t.Fatalf("expected missing binary detail, got %+v", health)
	}
}
