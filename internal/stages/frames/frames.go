// Package frames runs keyframe extraction over an uploaded recording and
// records the resulting frame URLs on the moderation record.
package frames

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"log/slog"

	"kpid/internal/blob"
	"kpid/internal/config"
	"kpid/internal/keyframe"
	"kpid/internal/logging"
	"kpid/internal/queue"
	"kpid/internal/services"
	"kpid/internal/stage"
)

// KeyframeExtractor selects scene-change frames from a recording and
// publishes them to the object store.
type KeyframeExtractor interface {
	Extract(ctx context.Context, src keyframe.Source) ([]keyframe.Frame, error)
}

// Extractor is the workflow stage that turns an uploaded recording into a
// set of published keyframes.
type Extractor struct {
	store     *queue.Store
	cfg       *config.Config
	blobs     blob.Store
	keyframes KeyframeExtractor
	logger    *slog.Logger
}

// NewExtractor constructs the keyframe extraction handler.
func NewExtractor(cfg *config.Config, store *queue.Store, blobs blob.Store, logger *slog.Logger) *Extractor {
	kf := keyframe.NewExtractor(blobs, logger, cfg.Detection.KeyframeThreshold)
	return NewExtractorWithDependencies(cfg, store, blobs, logger, kf)
}

// NewExtractorWithDependencies allows injecting a custom keyframe extractor (used for tests).
func NewExtractorWithDependencies(cfg *config.Config, store *queue.Store, blobs blob.Store, logger *slog.Logger, keyframes KeyframeExtractor) *Extractor {
	ex := &Extractor{
		store:     store,
		cfg:       cfg,
		blobs:     blobs,
		keyframes: keyframes,
	}
	ex.SetLogger(logger)
	return ex
}

// SetLogger updates the extractor's logging destination while preserving component labeling.
func (e *Extractor) SetLogger(logger *slog.Logger) {
	e.logger = logging.WithComponent(logger, "frames")
}

func (e *Extractor) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, e.logger)
	item.SetProgress("Extracting", "Preparing keyframe extraction", 0)
	logger.Debug("starting keyframe extraction preparation")
	return nil
}

func (e *Extractor) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, e.logger)

	localPath, cleanup, err := e.ensureLocalVideo(ctx, item)
	if err != nil {
		return err
	}
	defer cleanup()

	item.SetProgress("Extracting", "Scanning for scene changes", 20)
	if err := e.store.Update(ctx, item); err != nil {
		logger.Warn("failed to persist extraction progress", logging.Error(err))
	}

	result, err := e.keyframes.Extract(ctx, keyframe.Source{
		Path:        localPath,
		OwnerID:     item.UserID,
		VideoKey:    item.VideoKey,
		FPS:         item.FPS,
		TotalFrames: item.TotalFrames,
	})
	if err != nil {
		return services.Wrap(
			services.ErrTransient,
			"frames",
			"extract keyframes",
			"Keyframe extraction failed",
			err,
		)
	}
	if result == nil {
		result = []keyframe.Frame{}
	}

	data, err := json.Marshal(result)
	if err != nil {
		return services.Wrap(
			services.ErrTransient,
			"frames",
			"encode keyframes",
			"Failed to encode keyframe metadata",
			err,
		)
	}
	item.FramesJSON = string(data)
	item.SetProgress("Extracting", fmt.Sprintf("Extracted %d keyframes", len(result)), 100)
	logger.Info("extracted keyframes", logging.Int("keyframes", len(result)))
	return nil
}

// ensureLocalVideo returns a readable local path for the recording. The
// submitted source file is preferred; when it is gone the uploaded object is
// downloaded into staging and removed again by the returned cleanup.
func (e *Extractor) ensureLocalVideo(ctx context.Context, item *queue.Item) (string, func(), error) {
	noop := func() {}
	source := strings.TrimSpace(item.SourcePath)
	if source != "" {
		if _, err := os.Stat(source); err == nil {
			return source, noop, nil
		}
	}

	object := strings.TrimSpace(item.VideoObject)
	if object == "" {
		return "", noop, services.Wrap(
			services.ErrValidation,
			"frames",
			"locate recording",
			"No local source or uploaded recording available",
			nil,
		)
	}

	stagingRoot := filepath.Join(e.cfg.Paths.StagingDir, fmt.Sprintf("queue-%d", item.ID))
	if err := os.MkdirAll(stagingRoot, 0o755); err != nil {
		return "", noop, services.Wrap(
			services.ErrConfiguration,
			"frames",
			"ensure staging dir",
			"Failed to create staging directory; set staging_dir to a writable path",
			err,
		)
	}
	cleanup := func() {
		if err := os.RemoveAll(stagingRoot); err != nil {
			e.logger.Warn("failed to remove staging directory", logging.Error(err))
		}
	}

	localPath := filepath.Join(stagingRoot, filepath.Base(object))
	if err := e.blobs.Download(ctx, object, localPath); err != nil {
		cleanup()
		return "", noop, services.Wrap(
			services.ErrTransient,
			"frames",
			"download recording",
			"Failed to download the uploaded recording for extraction",
			err,
		)
	}
	return localPath, cleanup, nil
}

// HealthCheck verifies the extraction stage dependencies.
func (e *Extractor) HealthCheck(ctx context.Context) stage.Health {
	const name = "frames"
	if e.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(e.cfg.Paths.StagingDir) == "" {
		return stage.Unhealthy(name, "staging directory not configured")
	}
	if e.blobs == nil {
		return stage.Unhealthy(name, "blob store unavailable")
	}
	if e.keyframes == nil {
		return stage.Unhealthy(name, "keyframe extractor unavailable")
	}
	if e.cfg.Detection.KeyframeThreshold <= 0 {
		return stage.Unhealthy(name, "keyframe threshold not configured")
	}
	return stage.Healthy(name)
}

var _ stage.Handler = (*Extractor)(nil)
