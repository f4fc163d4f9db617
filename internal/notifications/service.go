package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"kpid/internal/config"
	"kpid/internal/queue"
)

const userAgent = "Kpid-Go/0.1.0"

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifyVerdict(ctx context.Context, item *queue.Item) error
	NotifyStageError(ctx context.Context, stage string, item *queue.Item, stageErr error) error
	NotifyQueueStarted(ctx context.Context, count int) error
	NotifyQueueCompleted(ctx context.Context, processed, failed int, duration time.Duration) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:   topic,
		client:     &http.Client{Timeout: timeout},
		completion: cfg.Notifications.Completion,
		errors:     cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint   string
	client     *http.Client
	completion bool
	errors     bool
}

func (n *ntfyService) NotifyVerdict(ctx context.Context, item *queue.Item) error {
	if !n.completion || item == nil {
		return nil
	}
	label := recordLabel(item)
	var data payload
	switch item.Status {
	case queue.StatusRejected:
		data = payload{
			title:    "Kpid - Rejected",
			message:  fmt.Sprintf("Violations found in %s", label),
			tags:     []string{"kpid", "verdict", "rejected"},
			priority: "high",
		}
	case queue.StatusAccepted:
		data = payload{
			title:   "Kpid - Accepted",
			message: fmt.Sprintf("No violations found in %s", label),
			tags:    []string{"kpid", "verdict", "accepted"},
		}
	default:
		return nil
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyStageError(ctx context.Context, stage string, item *queue.Item, stageErr error) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if stage = strings.TrimSpace(stage); stage != "" {
		builder.WriteString(" in ")
		builder.WriteString(stage)
	}
	if item != nil {
		builder.WriteString(" for ")
		builder.WriteString(recordLabel(item))
	}
	builder.WriteString(": ")
	if stageErr != nil {
		builder.WriteString(strings.TrimSpace(stageErr.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Kpid - Error",
		message:  builder.String(),
		tags:     []string{"kpid", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyQueueStarted(ctx context.Context, count int) error {
	if !n.completion {
		return nil
	}
	data := payload{
		title:   "Kpid - Queue Started",
		message: fmt.Sprintf("Started processing queue with %d items", count),
		tags:    []string{"kpid", "queue", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyQueueCompleted(ctx context.Context, processed, failed int, duration time.Duration) error {
	if !n.completion {
		return nil
	}
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}

	var title, message string
	if failed == 0 {
		title = "Kpid - Queue Complete"
		message = fmt.Sprintf("Queue processing complete: %d items processed in %s", processed, duration)
	} else {
		title = "Kpid - Queue Complete (with errors)"
		message = fmt.Sprintf("Queue processing complete: %d succeeded, %d failed in %s", processed, failed, duration)
	}

	data := payload{
		title:   title,
		message: message,
		tags:    []string{"kpid", "queue", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Kpid - Test",
		message:  "Notification system test",
		tags:     []string{"kpid", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func recordLabel(item *queue.Item) string {
	program := strings.TrimSpace(item.ProgramName)
	station := strings.TrimSpace(item.StationName)
	switch {
	case program != "" && station != "":
		return fmt.Sprintf("%s (%s)", program, station)
	case program != "":
		return program
	default:
		return strings.TrimSpace(item.VideoKey)
	}
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyVerdict(context.Context, *queue.Item) error                    { return nil }
func (noopService) NotifyStageError(context.Context, string, *queue.Item, error) error  { return nil }
func (noopService) NotifyQueueStarted(context.Context, int) error                       { return nil }
func (noopService) NotifyQueueCompleted(context.Context, int, int, time.Duration) error { return nil }
func (noopService) TestNotification(context.Context) error                              { return nil }
