package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a moderation record.
type Status string

const (
	StatusPending    Status = "pending"
	StatusIngesting  Status = "ingesting"
	StatusUploaded   Status = "uploaded"
	StatusExtracting Status = "extracting"
	StatusExtracted  Status = "extracted"
	StatusAnalyzing  Status = "analyzing"
	StatusAccepted   Status = "accepted"
	StatusRejected   Status = "rejected"
	StatusFailed     Status = "failed"
	StatusReview     Status = "review"
)

// DaemonStopReason is the error message set when items are failed due to daemon shutdown.
const DaemonStopReason = "Daemon stopped"

var allStatuses = []Status{
	StatusPending,
	StatusIngesting,
	StatusUploaded,
	StatusExtracting,
	StatusExtracted,
	StatusAnalyzing,
	StatusAccepted,
	StatusRejected,
	StatusFailed,
	StatusReview,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusIngesting:  {},
	StatusExtracting: {},
	StatusAnalyzing:  {},
}

type statusTransition struct {
	from Status
	to   Status
}

// stageRollbackTransitions return an interrupted item to the start of the
// stage it was in when the daemon died.
var stageRollbackTransitions = []statusTransition{
	{from: StatusIngesting, to: StatusPending},
	{from: StatusExtracting, to: StatusUploaded},
	{from: StatusAnalyzing, to: StatusExtracted},
}

// Item represents a moderation record persisted in SQLite.
type Item struct {
	ID           int64
	UserID       string
	Filename     string
	VideoKey     string
	ProgramName  string
	StationName  string
	StationKey   string
	Description  string
	RecordingAt  *time.Time
	StartTime    string
	EndTime      string
	FPS          float64
	Duration     float64
	TotalFrames  int64
	Status       Status
	SourcePath   string
	VideoObject  string
	AudioObject  string
	MediaInfo    string
	FramesJSON   string
	ResultJSON   string
	ErrorMessage string

	ProgressStage   string
	ProgressPercent float64
	ProgressMessage string
	LastHeartbeat   *time.Time

	Revision  int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Snapshot captures the mutable pipeline state of a record so a failed stage
/// can restore it. This is a compensating write, not a transaction: the
// record returns to its pre-stage shape even after partial updates.
type Snapshot struct {
	ID              int64
	Status          Status
	FramesJSON      string
	ResultJSON      string
	ErrorMessage    string
	ProgressStage   string
	ProgressPercent float64
	ProgressMessage string
}

// Snapshot returns the restorable state of the item.
func (i *Item) Snapshot() Snapshot {
	return Snapshot{
		ID:              i.ID,
		Status:          i.Status,
		FramesJSON:      i.FramesJSON,
		ResultJSON:      i.ResultJSON,
		ErrorMessage:    i.ErrorMessage,
		ProgressStage:   i.ProgressStage,
		ProgressPercent: i.ProgressPercent,
		ProgressMessage: i.ProgressMessage,
	}
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing returns true when the status reflects an in-flight operation.
func (i Item) IsProcessing() bool {
	return IsProcessingStatus(i.Status)
}

// IsProcessingStatus reports whether a status reflects an in-flight operation.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// IsTerminal reports whether a status ends the pipeline for a record.
func IsTerminal(status Status) bool {
	switch status {
	case StatusAccepted, StatusRejected, StatusFailed, StatusReview:
		return true
	default:
		return false
	}
}

// SetProgress updates all three progress fields together.
func (i *Item) SetProgress(stage, message string, percent float64) {
	i.ProgressStage = stage
	i.ProgressMessage = message
	i.ProgressPercent = percent
}

// SetFailed marks the item as failed with the given error message.
func (i *Item) SetFailed(message string) {
	i.Status = StatusFailed
	i.ErrorMessage = message
	i.ProgressPercent = 0
	i.ProgressMessage = message
	i.LastHeartbeat = nil
	i.ProgressStage = "Failed"
}

// HealthSummary describes aggregated queue counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Failed     int
	Review     int
	Finished   int
}
