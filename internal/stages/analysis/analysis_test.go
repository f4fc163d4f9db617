package analysis_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"kpid/internal/blob"
	"kpid/internal/keyframe"
	"kpid/internal/logging"
	"kpid/internal/queue"
	"kpid/internal/services"
	"kpid/internal/stages/analysis"
	"kpid/internal/testsupport"
	"kpid/internal/violation"
)

type stubFrameScanner struct {
	entries []violation.Entry
	err     error
	frames  []keyframe.Frame
}

func (s *stubFrameScanner) Scan(ctx context.Context, frames []keyframe.Frame) ([]violation.Entry, error) {
	s.frames = frames
	return s.entries, s.err
}

type stubAudioScanner struct {
	hits    []violation.AudioHit
	err     error
	calls   int
	lastURL string
}

func (s *stubAudioScanner) Scan(ctx context.Context, audioURL string) ([]violation.AudioHit, error) {
	s.calls++
	s.lastURL = audioURL
	return s.hits, s.err
}

type cutWindow struct {
	start float64
	end   float64
}

func stubCut(t *testing.T) *[]cutWindow {
	t.Helper()
	var windows []cutWindow
	restore := analysis.SetCutForTests(func(_ context.Context, _ string, _, dest string, start, end float64) error {
		windows = append(windows, cutWindow{start: start, end: end})
		return os.WriteFile(dest, []byte("clip"), 0o644)
	})
	t.Cleanup(restore)
	return &windows
}

func newFixture(t *testing.T, framesJSON string, withAudio bool) (*queue.Store, blob.Store, *queue.Item, *analysis.Analyzer, *stubFrameScanner, *stubAudioScanner) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	blobs, err := blob.NewLocal(cfg.Blob.LocalDir)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	source := filepath.Join(testsupport.BaseDir(cfg), "vid123.mp4")
	testsupport.WriteFile(t, source, 1024)

	item, err := store.NewModeration(context.Background(), queue.Submission{
		UserID:     "user-1",
		Filename:   "vid123.mp4",
		VideoKey:   "vid123",
		SourcePath: source,
	})
	if err != nil {
		t.Fatalf("NewModeration: %v", err)
	}
	item.Status = queue.StatusAnalyzing
	item.Duration = 20
	item.FramesJSON = framesJSON
	item.VideoObject = "uploads/user-1_vid123.mp4"
	if withAudio {
		item.AudioObject = "uploads/user-1_vid123.mp3"
	}
	if err := store.Update(context.Background(), item); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, err := blobs.Put(context.Background(), item.VideoObject, strings.NewReader("video"), blob.PutOptions{}); err != nil {
		t.Fatalf("seed upload: %v", err)
	}

	frameScanner := &stubFrameScanner{}
	audioScanner := &stubAudioScanner{}
	handler := analysis.NewAnalyzerWithDependencies(cfg, store, blobs, logging.NewNop(), frameScanner, audioScanner)
	return store, blobs, item, handler, frameScanner, audioScanner
}

const framesJSON = `[{"frame_url":"https://example.com/f1.jpg","frame_time":1},{"frame_url":"https://example.com/f2.jpg","frame_time":19}]`

func TestAnalyzerRejectsWithViolations(t *testing.T) {
	store, _, item, handler, frameScanner, audioScanner := newFixture(t, framesJSON, true)
	windows := stubCut(t)

	frameScanner.entries = []violation.Entry{
		{Second: 1, Decision: violation.DecisionPending, Category: []string{"SARU"}, Label: []string{"ciuman"}},
		{Second: 19, Decision: violation.DecisionPending, Category: []string{"SADIS"}, Label: []string{"darah"}},
	}
	audioScanner.hits = []violation.AudioHit{{Word: "anjing", Time: 1.4}}

	if err := handler.Prepare(context.Background(), item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if item.Status != queue.StatusRejected {
		t.Fatalf("expected rejected, got %s", item.Status)
	}
	if len(frameScanner.frames) != 2 {
		t.Fatalf("expected 2 frames scanned, got %d", len(frameScanner.frames))
	}
	if audioScanner.calls != 1 {
		t.Fatalf("expected audio scan, got %d calls", audioScanner.calls)
	}
	if !strings.Contains(item.ResultJSON, "moderation/user-1/vid123/videos/user-1_vid123_0.mp4") {
		t.Fatalf("expected first clip url in result, got %q", item.ResultJSON)
	}
	if !strings.Contains(item.ResultJSON, "user-1_vid123_1.mp4") {
		t.Fatalf("expected second clip url in result, got %q", item.ResultJSON)
	}
	if !strings.Contains(item.ResultJSON, "SARA") {
		t.Fatalf("expected audio category in result, got %q", item.ResultJSON)
	}
	if len(*windows) != 2 {
		t.Fatalf("expected 2 clips cut, got %d", len(*windows))
	}
	if (*windows)[0].start != 0 || (*windows)[0].end != 4 {
		t.Fatalf("expected clamped window [0,4], got %+v", (*windows)[0])
	}
	if (*windows)[1].start != 16 || (*windows)[1].end != 20 {
		t.Fatalf("expected window [16,20], got %+v", (*windows)[1])
	}
	if item.VideoObject != "" {
		t.Fatalf("expected uploaded recording deleted, got %q", item.VideoObject)
	}

	stored, err := store.GetByID(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Status != queue.StatusAnalyzing {
		t.Fatalf("verdict should not be persisted by the stage, got %s", stored.Status)
	}
}

func TestAnalyzerAcceptsCleanRecording(t *testing.T) {
	_, blobs, item, handler, _, _ := newFixture(t, framesJSON, true)

	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if item.Status != queue.StatusAccepted {
		t.Fatalf("expected accepted, got %s", item.Status)
	}
	if item.ResultJSON != "[]" {
		t.Fatalf("expected empty result, got %q", item.ResultJSON)
	}
	if _, err := blobs.Open(context.Background(), "uploads/user-1_vid123.mp4"); err == nil {
		t.Fatal("expected uploaded recording deleted")
	}
}

func TestAnalyzerAudioOnlyViolation(t *testing.T) {
	_, _, item, handler, _, audioScanner := newFixture(t, framesJSON, true)
	windows := stubCut(t)

	audioScanner.hits = []violation.AudioHit{{Word: "bangsat", Time: 7.2}}

	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if item.Status != queue.StatusRejected {
		t.Fatalf("expected rejected, got %s", item.Status)
	}
	if !strings.Contains(item.ResultJSON, `"second":7`) {
		t.Fatalf("expected audio-only entry at second 7, got %q", item.ResultJSON)
	}
	if !strings.Contains(item.ResultJSON, "kata_kasar") {
		t.Fatalf("expected audio label, got %q", item.ResultJSON)
	}
	if len(*windows) != 1 || (*windows)[0].start != 4 || (*windows)[0].end != 10 {
		t.Fatalf("expected window [4,10], got %+v", *windows)
	}
}

func TestAnalyzerSkipsAudioWithoutTrack(t *testing.T) {
	_, _, item, handler, _, audioScanner := newFixture(t, framesJSON, false)

	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if audioScanner.calls != 0 {
		t.Fatalf("expected no audio scan, got %d calls", audioScanner.calls)
	}
	if item.Status != queue.StatusAccepted {
		t.Fatalf("expected accepted, got %s", item.Status)
	}
}

func TestAnalyzerRestoresOnFailure(t *testing.T) {
	store, _, item, handler, frameScanner, audioScanner := newFixture(t, framesJSON, true)
	frameScanner.entries = []violation.Entry{{Second: 5, Decision: violation.DecisionPending, Category: []string{"SARU"}}}
	audioScanner.err = errors.New("speech service unavailable")

	before, err := store.GetByID(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}

	execErr := handler.Execute(context.Background(), item)
	if !errors.Is(execErr, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", execErr)
	}

	stored, err := store.GetByID(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Status != before.Status {
		t.Fatalf("expected status restored to %s, got %s", before.Status, stored.Status)
	}
	if stored.ResultJSON != "" {
		t.Fatalf("expected result cleared, got %q", stored.ResultJSON)
	}
	if stored.ProgressMessage != before.ProgressMessage {
		t.Fatalf("expected progress restored to %q, got %q", before.ProgressMessage, stored.ProgressMessage)
	}
	if stored.Revision <= before.Revision {
		t.Fatalf("expected restore to bump revision, got %d <= %d", stored.Revision, before.Revision)
	}
}

func TestAnalyzerRequiresFrameMetadata(t *testing.T) {
	_, _, item, handler, _, _ := newFixture(t, "", true)

	err := handler.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
