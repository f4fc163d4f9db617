package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"kpid/internal/logging"
	"kpid/internal/queue"
	"kpid/internal/services"
)

func (m *Manager) handleStageFailure(ctx context.Context, stageName string, item *queue.Item, stageErr error) {
	logger := m.stageLogger(ctx, item)

	// A failing stage may have restored the record to its pre-stage state,
	// which bumps the revision; reload so the failure write does not lose a
	// revision conflict against the stage's own compensating write.
	if fresh, err := m.store.GetByID(ctx, item.ID); err != nil {
		if !errors.Is(err, context.Canceled) {
			logger.Warn("failed to reload record before persisting failure", logging.Error(err))
		}
	} else if fresh != nil {
		*item = *fresh
	}

	message := m.classifyStageFailure(stageName, stageErr)
	item.SetFailed(message)
	resolved := services.FailureStatus(stageErr)
	if resolved == queue.StatusReview {
		item.Status = queue.StatusReview
		item.ProgressStage = "Review"
	}

	logger.Error("stage failed",
		logging.Error(stageErr),
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String("resolved_status", string(item.Status)),
		logging.String("error_message", strings.TrimSpace(message)),
	)

	if err := m.store.Update(ctx, item); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not update stage failure")
		} else {
			logger.Error("failed to persist stage failure", logging.Error(err))
		}
	}

	m.setLastItem(item)
	m.notifyStageError(ctx, stageName, item, stageErr)
	m.checkQueueCompletion(ctx)
}

func (m *Manager) classifyStageFailure(stageName string, stageErr error) string {
	if stageErr == nil {
		return m.stageFailureMessage(stageName, "failed without error detail")
	}
	message := strings.TrimSpace(stageErr.Error())
	if message == "" {
		message = m.stageFailureMessage(stageName, "failed")
	}
	return message
}

func (m *Manager) stageFailureMessage(stageName, defaultMsg string) string {
	if stageName != "" {
		return fmt.Sprintf("%s %s", stageName, defaultMsg)
	}
	return fmt.Sprintf("workflow %s", defaultMsg)
}
