package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Submission carries the fields a caller provides when enqueuing a new
// recording for moderation.
type Submission struct {
	UserID      string
	Filename    string
	VideoKey    string
	ProgramName string
	StationName string
	Description string
	RecordingAt *time.Time
	StartTime   string
	EndTime     string
	SourcePath  string
}

// NewModeration inserts a new moderation record in the pending state.
func (s *Store) NewModeration(ctx context.Context, sub Submission) (*Item, error) {
	if sub.UserID == "" {
		return nil, errors.New("user id is required")
	}
	if sub.VideoKey == "" {
		return nil, errors.New("video key is required")
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	stationName := StationTitle(sub.StationName)
	stationKey := StationKey(sub.StationName)

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO moderation_items (
            user_id, filename, video_key, program_name, station_name, station_key,
            description, recording_at, start_time, end_time, status, source_path,
            progress_percent, revision, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.UserID,
		sub.Filename,
		sub.VideoKey,
		nullableString(sub.ProgramName),
		nullableString(stationName),
		nullableString(stationKey),
		nullableString(sub.Description),
		nullableTime(sub.RecordingAt),
		nullableString(sub.StartTime),
		nullableString(sub.EndTime),
		StatusPending,
		nullableString(sub.SourcePath),
		0.0,
		1,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert moderation record: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a moderation record by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM moderation_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return item, nil
}

// FindByVideoKey returns the first record matching a video key.
func (s *Store) FindByVideoKey(ctx context.Context, videoKey string) (*Item, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+itemColumns+` FROM moderation_items WHERE video_key = ? ORDER BY id LIMIT 1`,
		videoKey,
	)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by video key: %w", err)
	}
	return item, nil
}

// Update persists changes to an existing record. The write is guarded by the
// revision the caller read: when another writer got there first the update
// matches zero rows and ErrRevisionConflict is returned. On success the
// item's revision is advanced in place.
func (s *Store) Update(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	item.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE moderation_items
         SET user_id = ?, filename = ?, video_key = ?, program_name = ?,
             station_name = ?, station_key = ?, description = ?, recording_at = ?,
             start_time = ?, end_time = ?, fps = ?, duration = ?, total_frames = ?,
             status = ?, source_path = ?, video_object = ?, audio_object = ?,
             media_info_json = ?, frames_json = ?, result_json = ?, error_message = ?,
             progress_stage = ?, progress_percent = ?, progress_message = ?,
             last_heartbeat = ?, revision = revision + 1, updated_at = ?
         WHERE id = ? AND revision = ?`,
		item.UserID,
		item.Filename,
		item.VideoKey,
		nullableString(item.ProgramName),
		nullableString(item.StationName),
		nullableString(item.StationKey),
		nullableString(item.Description),
		nullableTime(item.RecordingAt),
		nullableString(item.StartTime),
		nullableString(item.EndTime),
		item.FPS,
		item.Duration,
		item.TotalFrames,
		item.Status,
		nullableString(item.SourcePath),
		nullableString(item.VideoObject),
		nullableString(item.AudioObject),
		nullableString(item.MediaInfo),
		nullableString(item.FramesJSON),
		nullableString(item.ResultJSON),
		nullableString(item.ErrorMessage),
		nullableString(item.ProgressStage),
		item.ProgressPercent,
		nullableString(item.ProgressMessage),
		nullableTime(item.LastHeartbeat),
		item.UpdatedAt.Format(time.RFC3339Nano),
		item.ID,
		item.Revision,
	)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrRevisionConflict
	}
	item.Revision++
	return nil
}

// ItemsByStatus returns records matching a status ordered by creation time.
func (s *Store) ItemsByStatus(ctx context.Context, status Status) ([]*Item, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM moderation_items WHERE status = ? ORDER BY created_at`, status)
	if err != nil {
		return nil, fmt.Errorf("query by status: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// List returns records filtered by status set (or all records when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Item, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + itemColumns + ` FROM moderation_items`
	orderClause := ` ORDER BY created_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// NextForStatuses returns the oldest record matching any of the provided statuses.
func (s *Store) NextForStatuses(ctx context.Context, statuses ...Status) (*Item, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := makePlaceholders(len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}

	query := `SELECT ` + itemColumns + ` FROM moderation_items WHERE status IN (` + placeholders + `) ORDER BY created_at LIMIT 1`
	row := s.db.QueryRowContext(ctx, query, args...)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Remove deletes a record by identifier.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM moderation_items WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Clear removes all records from the queue.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM moderation_items`)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return res.RowsAffected()
}

// ClearFinished removes records that reached a moderation decision.
func (s *Store) ClearFinished(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM moderation_items WHERE status IN (?, ?)`, StatusAccepted, StatusRejected)
	if err != nil {
		return 0, fmt.Errorf("clear finished: %w", err)
	}
	return res.RowsAffected()
}

// ClearFailed removes only failed records from the queue.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM moderation_items WHERE status = ?`, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("clear failed: %w", err)
	}
	return res.RowsAffected()
}

const itemColumns = "id, user_id, filename, video_key, program_name, station_name, station_key, description, recording_at, start_time, end_time, fps, duration, total_frames, status, source_path, video_object, audio_object, media_info_json, frames_json, result_json, error_message, progress_stage, progress_percent, progress_message, last_heartbeat, revision, created_at, updated_at"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id              int64
		userID          string
		filename        string
		videoKey        string
		programName     sql.NullString
		stationName     sql.NullString
		stationKey      sql.NullString
		description     sql.NullString
		recordingRaw    sql.NullString
		startTime       sql.NullString
		endTime         sql.NullString
		fps             sql.NullFloat64
		duration        sql.NullFloat64
		totalFrames     sql.NullInt64
		statusStr       string
		sourcePath      sql.NullString
		videoObject     sql.NullString
		audioObject     sql.NullString
		mediaInfo       sql.NullString
		framesJSON      sql.NullString
		resultJSON      sql.NullString
		errorMessage    sql.NullString
		progressStage   sql.NullString
		progressPercent sql.NullFloat64
		progressMessage sql.NullString
		heartbeatRaw    sql.NullString
		revision        int64
		createdRaw      sql.NullString
		updatedRaw      sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&userID,
		&filename,
		&videoKey,
		&programName,
		&stationName,
		&stationKey,
		&description,
		&recordingRaw,
		&startTime,
		&endTime,
		&fps,
		&duration,
		&totalFrames,
		&statusStr,
		&sourcePath,
		&videoObject,
		&audioObject,
		&mediaInfo,
		&framesJSON,
		&resultJSON,
		&errorMessage,
		&progressStage,
		&progressPercent,
		&progressMessage,
		&heartbeatRaw,
		&revision,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:              id,
		UserID:          userID,
		Filename:        filename,
		VideoKey:        videoKey,
		ProgramName:     programName.String,
		StationName:     stationName.String,
		StationKey:      stationKey.String,
		Description:     description.String,
		StartTime:       startTime.String,
		EndTime:         endTime.String,
		FPS:             fps.Float64,
		Duration:        duration.Float64,
		TotalFrames:     totalFrames.Int64,
		Status:          Status(statusStr),
		SourcePath:      sourcePath.String,
		VideoObject:     videoObject.String,
		AudioObject:     audioObject.String,
		MediaInfo:       mediaInfo.String,
		FramesJSON:      framesJSON.String,
		ResultJSON:      resultJSON.String,
		ErrorMessage:    errorMessage.String,
		ProgressStage:   progressStage.String,
		ProgressPercent: progressPercent.Float64,
		ProgressMessage: progressMessage.String,
		Revision:        revision,
	}

	if recordingRaw.Valid {
		if recorded, err := parseTimeString(recordingRaw.String); err == nil {
			item.RecordingAt = &recorded
		}
	}
	if heartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(heartbeatRaw.String); err == nil {
			item.LastHeartbeat = &heartbeat
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	return item, nil
}
