package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"kpid/internal/config"
	"kpid/internal/notifications"
	"kpid/internal/queue"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	item := &queue.Item{Status: queue.StatusRejected, VideoKey: "vid123"}
	if err := svc.NotifyVerdict(context.Background(), item); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func newNtfyRecorder(t *testing.T) (*config.Config, *http.Request, *string, *httptest.Server) {
	t.Helper()
	var captured http.Request
	var body string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = *r
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Completion = true
	cfg.Notifications.Errors = true
	return &cfg, &captured, &body, server
}

func TestNtfyServiceSendsVerdict(t *testing.T) {
	cfg, captured, body, _ := newNtfyRecorder(t)
	svc := notifications.NewService(cfg)

	item := &queue.Item{
		Status:      queue.StatusRejected,
		ProgramName: "Berita Pagi",
		StationName: "TV One",
		VideoKey:    "vid123",
	}
	if err := svc.NotifyVerdict(context.Background(), item); err != nil {
		t.Fatalf("NotifyVerdict: %v", err)
	}
	if captured.Header.Get("Title") != "Kpid - Rejected" {
		t.Fatalf("unexpected title %q", captured.Header.Get("Title"))
	}
	if captured.Header.Get("Priority") != "high" {
		t.Fatalf("expected high priority, got %q", captured.Header.Get("Priority"))
	}
	if want := "Violations found in Berita Pagi (TV One)"; *body != want {
		t.Fatalf("unexpected body %q, want %q", *body, want)
	}
}

func TestNtfyServiceSuppressesVerdictWhenCompletionDisabled(t *testing.T) {
	cfg, captured, _, _ := newNtfyRecorder(t)
	cfg.Notifications.Completion = false
	svc := notifications.NewService(cfg)

	item := &queue.Item{Status: queue.StatusAccepted, VideoKey: "vid123"}
	if err := svc.NotifyVerdict(context.Background(), item); err != nil {
		t.Fatalf("NotifyVerdict: %v", err)
	}
	if captured.Method != "" {
		t.Fatal("expected no request when completion notifications disabled")
	}
}

func TestNtfyServiceReportsErrorResponses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic over quota", http.StatusTooManyRequests)
	}))
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Errors = true
	svc := notifications.NewService(&cfg)

	err := svc.NotifyStageError(context.Background(), "analysis", &queue.Item{VideoKey: "vid123"}, io.ErrUnexpectedEOF)
	if err == nil {
		t.Fatal("expected error from non-2xx response")
	}
}
