package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"kpid/internal/config"
	"kpid/internal/logging"
	"kpid/internal/queue"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logger,
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", srv.handleStatus)
	mux.HandleFunc("/api/queue", srv.handleQueue)
	mux.HandleFunc("/api/queue/", srv.handleQueueItem)
	mux.HandleFunc("/api/moderations", srv.handleSubmit)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) address() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// DaemonStatusResponse is the JSON shape returned by GET /api/status.
type DaemonStatusResponse struct {
	Running      bool             `json:"running"`
	QueueDBPath  string           `json:"queue_db_path"`
	LockFilePath string           `json:"lock_file_path"`
	LastError    string           `json:"last_error,omitempty"`
	QueueStats   map[string]int   `json:"queue_stats"`
	StageHealth  []StageHealth    `json:"stage_health"`
	LastItem     *QueueItemView   `json:"last_item,omitempty"`
}

// StageHealth describes one stage's readiness in API responses.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// QueueItemView is the JSON projection of a moderation record.
type QueueItemView struct {
	ID              int64   `json:"id"`
	UserID          string  `json:"user_id"`
	Filename        string  `json:"filename"`
	VideoKey        string  `json:"video_key"`
	ProgramName     string  `json:"program_name,omitempty"`
	StationName     string  `json:"station_name,omitempty"`
	StationKey      string  `json:"station_key,omitempty"`
	Status          string  `json:"status"`
	Duration        float64 `json:"duration,omitempty"`
	FPS             float64 `json:"fps,omitempty"`
	ErrorMessage    string  `json:"error_message,omitempty"`
	ProgressStage   string  `json:"progress_stage,omitempty"`
	ProgressPercent float64 `json:"progress_percent,omitempty"`
	ProgressMessage string  `json:"progress_message,omitempty"`
	FramesJSON      string  `json:"frames_json,omitempty"`
	ResultJSON      string  `json:"result_json,omitempty"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

// SubmissionRequest is the JSON body accepted by POST /api/moderations.
type SubmissionRequest struct {
	UserID      string `json:"user_id"`
	Filename    string `json:"filename,omitempty"`
	VideoKey    string `json:"video_key,omitempty"`
	ProgramName string `json:"program_name,omitempty"`
	StationName string `json:"station_name,omitempty"`
	Description string `json:"description,omitempty"`
	RecordingAt string `json:"recording_at,omitempty"`
	StartTime   string `json:"start_time,omitempty"`
	EndTime     string `json:"end_time,omitempty"`
	SourcePath  string `json:"source_path"`
}

func itemView(item *queue.Item) QueueItemView {
	return QueueItemView{
		ID:              item.ID,
		UserID:          item.UserID,
		Filename:        item.Filename,
		VideoKey:        item.VideoKey,
		ProgramName:     item.ProgramName,
		StationName:     item.StationName,
		StationKey:      item.StationKey,
		Status:          string(item.Status),
		Duration:        item.Duration,
		FPS:             item.FPS,
		ErrorMessage:    item.ErrorMessage,
		ProgressStage:   item.ProgressStage,
		ProgressPercent: item.ProgressPercent,
		ProgressMessage: item.ProgressMessage,
		FramesJSON:      item.FramesJSON,
		ResultJSON:      item.ResultJSON,
		CreatedAt:       item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       item.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())

	stats := make(map[string]int, len(status.Workflow.QueueStats))
	for name, count := range status.Workflow.QueueStats {
		stats[string(name)] = count
	}
	health := make([]StageHealth, 0, len(status.Workflow.StageHealth))
	for _, h := range status.Workflow.StageHealth {
		health = append(health, StageHealth{Name: h.Name, Ready: h.Ready, Detail: h.Detail})
	}

	payload := DaemonStatusResponse{
		Running:      status.Running,
		QueueDBPath:  status.QueueDBPath,
		LockFilePath: status.LockFilePath,
		LastError:    status.Workflow.LastError,
		QueueStats:   stats,
		StageHealth:  health,
	}
	if status.Workflow.LastItem != nil {
		view := itemView(status.Workflow.LastItem)
		payload.LastItem = &view
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var statuses []queue.Status
	for _, value := range r.URL.Query()["status"] {
		status, ok := queue.ParseStatus(value)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", value))
			return
		}
		statuses = append(statuses, status)
	}

	items, err := s.daemon.ListQueue(r.Context(), statuses)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]QueueItemView, 0, len(items))
	for _, item := range items {
		views = append(views, itemView(item))
	}
	s.writeJSON(w, http.StatusOK, map[string][]QueueItemView{"items": views})
}

func (s *apiServer) handleQueueItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/queue/")
	idStr, action, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid queue record id")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		item, err := s.daemon.store.GetByID(r.Context(), id)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if item == nil {
			s.writeError(w, http.StatusNotFound, "queue record not found")
			return
		}
		s.writeJSON(w, http.StatusOK, itemView(item))
	case action == "retry" && r.Method == http.MethodPost:
		count, err := s.daemon.RetryFailed(r.Context(), []int64{id})
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if count == 0 {
			s.writeError(w, http.StatusConflict, "record is not failed")
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]int64{"retried": count})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req SubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sub := queue.Submission{
		UserID:      req.UserID,
		Filename:    req.Filename,
		VideoKey:    req.VideoKey,
		ProgramName: req.ProgramName,
		StationName: req.StationName,
		Description: req.Description,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		SourcePath:  req.SourcePath,
	}
	if raw := strings.TrimSpace(req.RecordingAt); raw != "" {
		recordedAt, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "recording_at must be RFC 3339")
			return
		}
		sub.RecordingAt = &recordedAt
	}

	item, err := s.daemon.Submit(r.Context(), sub)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, itemView(item))
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return logging.WithComponent(s.logger, "api-server")
	}
	return logging.NewNop()
}
