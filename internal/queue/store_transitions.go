package queue

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// UpdateHeartbeat updates the last heartbeat timestamp for an in-flight record.
// Heartbeats bypass the revision guard: they race with nothing but themselves.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE moderation_items SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now,
		now,
		id,
	)
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStaleProcessing returns records stuck in a processing state to the
// start of their stage when heartbeats expire. Each processing status rolls
// back to the status that feeds it, so the stage reruns from scratch.
func (s *Store) ReclaimStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	cutoffStr := cutoff.UTC().Format(time.RFC3339Nano)

	var total int64
	for _, transition := range stageRollbackTransitions {
		res, err := s.db.ExecContext(
			ctx,
			`UPDATE moderation_items
            SET status = ?, progress_stage = 'Reclaimed from stale processing',
                progress_percent = 0, progress_message = NULL, last_heartbeat = NULL,
                revision = revision + 1, updated_at = ?
            WHERE status = ? AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
			transition.to,
			now,
			transition.from,
			cutoffStr,
		)
		if err != nil {
			return total, fmt.Errorf("reclaim stale records: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("rows affected: %w", err)
		}
		total += affected
	}
	return total, nil
}

// ResetStuckProcessing rolls all in-flight records back to the start of their
// stage regardless of heartbeat age. Used on daemon startup after a crash.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	var total int64
	for _, transition := range stageRollbackTransitions {
		res, err := s.db.ExecContext(
			ctx,
			`UPDATE moderation_items
            SET status = ?, progress_stage = 'Reset from stuck processing',
                progress_percent = 0, progress_message = NULL, last_heartbeat = NULL,
                revision = revision + 1, updated_at = ?
            WHERE status = ?`,
			transition.to,
			now,
			transition.from,
		)
		if err != nil {
			return total, fmt.Errorf("reset stuck records: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("rows affected: %w", err)
		}
		total += affected
	}
	return total, nil
}

// RetryFailed moves failed records back to pending for reprocessing. With no
// ids every failed record is retried; otherwise only the listed ids.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if len(ids) == 0 {
		res, err := s.db.ExecContext(
			ctx,
			`UPDATE moderation_items
            SET status = ?, progress_stage = 'Retry requested', progress_percent = 0,
                progress_message = NULL, error_message = NULL,
                revision = revision + 1, updated_at = ?
            WHERE status = ?`,
			StatusPending,
			now,
			StatusFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed records: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+3)
	args = append(args, StatusPending, now)
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, StatusFailed)
	query := `UPDATE moderation_items
        SET status = ?, progress_stage = 'Retry requested', progress_percent = 0,
            progress_message = NULL, error_message = NULL,
            revision = revision + 1, updated_at = ?
        WHERE id IN (` + placeholders + `) AND status = ?`
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected records: %w", err)
	}
	return res.RowsAffected()
}

// Restore writes a snapshot back over a record. This is the compensating
// write a stage performs after a failure so a later retry starts from the
// record's pre-stage shape. The revision guard is deliberately skipped: the
// restore must win over whatever partial state the failed stage left behind.
func (s *Store) Restore(ctx context.Context, snap Snapshot) error {
	if snap.ID == 0 {
		return errors.New("snapshot has no record id")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE moderation_items
        SET status = ?, frames_json = ?, result_json = ?, error_message = ?,
            progress_stage = ?, progress_percent = ?, progress_message = ?,
            last_heartbeat = NULL, revision = revision + 1, updated_at = ?
        WHERE id = ?`,
		snap.Status,
		nullableString(snap.FramesJSON),
		nullableString(snap.ResultJSON),
		nullableString(snap.ErrorMessage),
		nullableString(snap.ProgressStage),
		snap.ProgressPercent,
		nullableString(snap.ProgressMessage),
		now,
		snap.ID,
	)
	if err != nil {
		return fmt.Errorf("restore record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("restore record %d: not found", snap.ID)
	}
	return nil
}

// FailProcessing marks all in-flight records as failed with the given reason.
// Called on daemon shutdown so records are not left looking alive.
func (s *Store) FailProcessing(ctx context.Context, reason string) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	statuses := make([]any, 0, len(processingStatuses)+2)
	statuses = append(statuses, StatusFailed)
	statuses = append(statuses, reason, now)
	placeholders := makePlaceholders(len(processingStatuses))
	for status := range processingStatuses {
		statuses = append(statuses, status)
	}
	query := `UPDATE moderation_items
        SET status = ?, error_message = ?, progress_message = NULL,
            last_heartbeat = NULL, revision = revision + 1, updated_at = ?
        WHERE status IN (` + placeholders + `)`
	res, err := s.db.ExecContext(ctx, query, statuses...)
	if err != nil {
		return 0, fmt.Errorf("fail processing records: %w", err)
	}
	return res.RowsAffected()
}
