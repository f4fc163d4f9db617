// Package analysis scores extracted keyframes and the audio track against
// the detection services, merges the findings into violation entries, cuts
// evidence clips, and decides whether the recording is accepted or rejected.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"log/slog"

	"kpid/internal/blob"
	"kpid/internal/config"
	"kpid/internal/detect"
	"kpid/internal/keyframe"
	"kpid/internal/logging"
	"kpid/internal/queue"
	"kpid/internal/services"
	"kpid/internal/services/speech"
	"kpid/internal/services/vision"
	"kpid/internal/stage"
	"kpid/internal/violation"
)

// clipPadding is the number of seconds of context cut on each side of a
// violation when producing evidence clips.
const clipPadding = 3.0

// FrameScanner scores keyframes against the visual detection service.
type FrameScanner interface {
	Scan(ctx context.Context, frames []keyframe.Frame) ([]violation.Entry, error)
}

// AudioScanner transcribes the audio track and flags blacklisted words.
type AudioScanner interface {
	Scan(ctx context.Context, audioURL string) ([]violation.AudioHit, error)
}

// Analyzer is the workflow stage that produces the moderation verdict.
type Analyzer struct {
	store  *queue.Store
	cfg    *config.Config
	blobs  blob.Store
	frames FrameScanner
	audio  AudioScanner
	logger *slog.Logger
}

// NewAnalyzer constructs the analysis handler with real detection clients.
func NewAnalyzer(cfg *config.Config, store *queue.Store, blobs blob.Store, logger *slog.Logger) *Analyzer {
	timeout := time.Duration(cfg.Detection.RequestTimeout) * time.Second
	visionClient := vision.NewClient(cfg.Detection.VisionBaseURL, vision.WithTimeout(timeout))
	speechClient := speech.NewClient(cfg.Detection.SpeechBaseURL, speech.WithTimeout(timeout))
	frameScanner := detect.NewFrameScanner(visionClient, cfg.Detection.Categories, cfg.Detection.ConfidenceThreshold, logger)
	audioScanner := detect.NewAudioScanner(speechClient, blobs, cfg.Detection.BlacklistObject, logger)
	return NewAnalyzerWithDependencies(cfg, store, blobs, logger, frameScanner, audioScanner)
}

// NewAnalyzerWithDependencies allows injecting custom scanners (used for tests).
func NewAnalyzerWithDependencies(cfg *config.Config, store *queue.Store, blobs blob.Store, logger *slog.Logger, frames FrameScanner, audio AudioScanner) *Analyzer {
	an := &Analyzer{
		store:  store,
		cfg:    cfg,
		blobs:  blobs,
		frames: frames,
		audio:  audio,
	}
	an.SetLogger(logger)
	return an
}

// SetLogger updates the analyzer's logging destination while preserving component labeling.
func (a *Analyzer) SetLogger(logger *slog.Logger) {
	a.logger = logging.WithComponent(logger, "analysis")
}

func (a *Analyzer) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, a.logger)
	item.SetProgress("Analyzing", "Scoring keyframes and audio", 0)
	logger.Debug("starting analysis preparation")
	return nil
}

// Execute runs detection and records the verdict. On failure the record is
// restored to its pre-analysis state so a retry starts from clean inputs.
func (a *Analyzer) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, a.logger)
	snap := item.Snapshot()

	if err := a.analyze(ctx, item, logger); err != nil {
		if restoreErr := a.store.Restore(ctx, snap); restoreErr != nil {
			logger.Error("failed to restore record after analysis failure", logging.Error(restoreErr))
		}
		return err
	}
	return nil
}

func (a *Analyzer) analyze(ctx context.Context, item *queue.Item, logger *slog.Logger) error {
	frames, err := decodeFrames(item.FramesJSON)
	if err != nil {
		return services.Wrap(
			services.ErrValidation,
			"analysis",
			"decode keyframes",
			"Keyframe metadata missing or invalid; rerun extraction",
			err,
		)
	}

	visual, err := a.frames.Scan(ctx, frames)
	if err != nil {
		return services.Wrap(
			services.ErrTransient,
			"analysis",
			"score keyframes",
			"Visual detection service failed",
			err,
		)
	}

	var audioHits []violation.AudioHit
	if object := strings.TrimSpace(item.AudioObject); object != "" {
		audioHits, err = a.audio.Scan(ctx, a.blobs.URL(object))
		if err != nil {
			return services.Wrap(
				services.ErrTransient,
				"analysis",
				"scan audio",
				"Speech detection service failed",
				err,
			)
		}
	}

	entries := violation.Cluster(violation.Merge(visual, audioHits))
	item.SetProgress("Analyzing", fmt.Sprintf("Found %d violations", len(entries)), 60)
	if err := a.store.Update(ctx, item); err != nil {
		logger.Warn("failed to persist analysis progress", logging.Error(err))
	}

	if len(entries) > 0 {
		if err := a.cutClips(ctx, item, entries, logger); err != nil {
			return err
		}
	}

	if entries == nil {
		entries = []violation.Entry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return services.Wrap(
			services.ErrTransient,
			"analysis",
			"encode result",
			"Failed to encode the violation report",
			err,
		)
	}
	item.ResultJSON = string(data)

	if len(entries) > 0 {
		item.Status = queue.StatusRejected
		item.SetProgress("Analyzed", fmt.Sprintf("Rejected with %d violations", len(entries)), 100)
	} else {
		item.Status = queue.StatusAccepted
		item.SetProgress("Analyzed", "No violations found", 100)
	}
	logger.Info("analysis verdict",
		logging.String("verdict", string(item.Status)),
		logging.Int("violations", len(entries)),
		logging.Int("keyframes", len(frames)),
		logging.Int("audio_hits", len(audioHits)),
	)

	a.removeUpload(ctx, item, logger)
	return nil
}

// cutClips produces a bounded evidence clip per violation and publishes it.
func (a *Analyzer) cutClips(ctx context.Context, item *queue.Item, entries []violation.Entry, logger *slog.Logger) error {
	localPath, cleanup, err := a.ensureLocalVideo(ctx, item)
	if err != nil {
		return err
	}
	defer cleanup()

	stagingRoot := filepath.Join(a.cfg.Paths.StagingDir, fmt.Sprintf("queue-%d", item.ID), "clips")
	if err := os.MkdirAll(stagingRoot, 0o755); err != nil {
		return services.Wrap(
			services.ErrConfiguration,
			"analysis",
			"ensure clips dir",
			"Failed to create staging directory; set staging_dir to a writable path",
			err,
		)
	}
	defer func() {
		if err := os.RemoveAll(stagingRoot); err != nil {
			logger.Warn("failed to remove clips directory", logging.Error(err))
		}
	}()

	for idx := range entries {
		start := entries[idx].Second - clipPadding
		if start < 0 {
			start = 0
		}
		end := entries[idx].Second + clipPadding
		if item.Duration > 0 && end > item.Duration {
			end = item.Duration
		}

		clipPath := filepath.Join(stagingRoot, fmt.Sprintf("clip_%d.mp4", idx))
		if err := cutClip(ctx, a.cfg.FFmpegBinary(), localPath, clipPath, start, end); err != nil {
			return services.Wrap(
				services.ErrExternalTool,
				"analysis",
				"cut clip",
				fmt.Sprintf("ffmpeg failed to cut the violation clip at %.2fs", entries[idx].Second),
				err,
			)
		}

		object := clipObject(item.UserID, item.VideoKey, idx)
		f, err := os.Open(clipPath)
		if err != nil {
			return services.Wrap(
				services.ErrTransient,
				"analysis",
				"read clip",
				"Failed to read the cut violation clip",
				err,
			)
		}
		url, err := a.blobs.Put(ctx, object, f, blob.PutOptions{ContentType: "video/mp4", Public: true})
		f.Close()
		if err != nil {
			return services.Wrap(
				services.ErrTransient,
				"analysis",
				"upload clip",
				"Failed to upload the violation clip",
				err,
			)
		}
		entries[idx].ClipURL = url
	}
	return nil
}

// ensureLocalVideo mirrors the extraction stage: prefer the submitted source
// file, otherwise pull the uploaded object into staging.
func (a *Analyzer) ensureLocalVideo(ctx context.Context, item *queue.Item) (string, func(), error) {
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
			"analysis",
			"locate recording",
			"No local source or uploaded recording available for clipping",
			nil,
		)
	}

	stagingRoot := filepath.Join(a.cfg.Paths.StagingDir, fmt.Sprintf("queue-%d", item.ID))
	if err := os.MkdirAll(stagingRoot, 0o755); err != nil {
		return "", noop, services.Wrap(
			services.ErrConfiguration,
			"analysis",
			"ensure staging dir",
			"Failed to create staging directory; set staging_dir to a writable path",
			err,
		)
	}
	cleanup := func() {
		if err := os.RemoveAll(stagingRoot); err != nil {
			a.logger.Warn("failed to remove staging directory", logging.Error(err))
		}
	}

	localPath := filepath.Join(stagingRoot, filepath.Base(object))
	if err := a.blobs.Download(ctx, object, localPath); err != nil {
		cleanup()
		return "", noop, services.Wrap(
			services.ErrTransient,
			"analysis",
			"download recording",
			"Failed to download the uploaded recording for clipping",
			err,
		)
	}
	return localPath, cleanup, nil
}

// removeUpload deletes the full uploaded recording once the verdict is
// recorded. Frames and clips stay behind as the review evidence.
func (a *Analyzer) removeUpload(ctx context.Context, item *queue.Item, logger *slog.Logger) {
	object := strings.TrimSpace(item.VideoObject)
	if object == "" {
		return
	}
	if err := a.blobs.Delete(ctx, object); err != nil {
		logger.Warn("failed to delete uploaded recording", logging.Error(err), logging.String("object", object))
		return
	}
	item.VideoObject = ""
}

func clipObject(userID, videoKey string, idx int) string {
	return fmt.Sprintf("moderation/%s/%s/videos/%s_%s_%d.mp4", userID, videoKey, userID, videoKey, idx)
}

func decodeFrames(raw string) ([]keyframe.Frame, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("no keyframe metadata recorded")
	}
	var frames []keyframe.Frame
	if err := json.Unmarshal([]byte(raw), &frames); err != nil {
		return nil, err
	}
	return frames, nil
}

// HealthCheck verifies the detection endpoints and media tooling are configured.
func (a *Analyzer) HealthCheck(ctx context.Context) stage.Health {
	const name = "analysis"
	if a.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(a.cfg.Detection.VisionBaseURL) == "" {
		return stage.Unhealthy(name, "vision service URL not configured")
	}
	if strings.TrimSpace(a.cfg.Detection.SpeechBaseURL) == "" {
		return stage.Unhealthy(name, "speech service URL not configured")
	}
	if a.blobs == nil {
		return stage.Unhealthy(name, "blob store unavailable")
	}
	if a.frames == nil || a.audio == nil {
		return stage.Unhealthy(name, "detection scanners unavailable")
	}
	if _, err := exec.LookPath(a.cfg.FFmpegBinary()); err != nil {
		return stage.MissingBinary(name, a.cfg.FFmpegBinary())
	}
	return stage.Healthy(name)
}

var _ stage.Handler = (*Analyzer)(nil)
