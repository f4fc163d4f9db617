// Package ingest validates submitted recordings, captures their media
// metadata, and uploads the normalized video and audio track to the
// object store.
package ingest

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"log/slog"

	"kpid/internal/blob"
	"kpid/internal/config"
	"kpid/internal/logging"
	"kpid/internal/queue"
	"kpid/internal/services"
	"kpid/internal/stage"
)

// Ingestor prepares a submitted recording for keyframe extraction.
type Ingestor struct {
	store  *queue.Store
	cfg    *config.Config
	blobs  blob.Store
	logger *slog.Logger
}

// NewIngestor constructs the ingest handler.
func NewIngestor(cfg *config.Config, store *queue.Store, blobs blob.Store, logger *slog.Logger) *Ingestor {
	ing := &Ingestor{
		store: store,
		cfg:   cfg,
		blobs: blobs,
	}
	ing.SetLogger(logger)
	return ing
}

// SetLogger updates the ingestor's logging destination while preserving component labeling.
func (i *Ingestor) SetLogger(logger *slog.Logger) {
	i.logger = logging.WithComponent(logger, "ingest")
}

func (i *Ingestor) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, i.logger)
	item.SetProgress("Ingesting", "Validating source recording", 0)
	logger.Debug("starting ingest preparation")
	return nil
}

func (i *Ingestor) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, i.logger)

	source := strings.TrimSpace(item.SourcePath)
	if source == "" {
		return services.Wrap(
			services.ErrValidation,
			"ingest",
			"validate inputs",
			"No source path recorded for this submission",
			nil,
		)
	}
	if _, err := os.Stat(source); err != nil {
		return services.Wrap(
			services.ErrValidation,
			"ingest",
			"validate inputs",
			fmt.Sprintf("Source recording %s is not readable", source),
			err,
		)
	}

	result, err := inspectMedia(ctx, i.cfg.FFprobeBinary(), source)
	if err != nil {
		return services.Wrap(
			services.ErrExternalTool,
			"ingest",
			"probe media",
			"ffprobe failed to inspect the recording",
			err,
		)
	}
	if result.VideoStream() == nil {
		return services.Wrap(
			services.ErrValidation,
			"ingest",
			"probe media",
			"Recording has no video stream",
			nil,
		)
	}
	duration := result.DurationSeconds()
	if duration <= 0 {
		return services.Wrap(
			services.ErrValidation,
			"ingest",
			"probe media",
			"Recording duration could not be determined",
			nil,
		)
	}

	item.Duration = duration
	item.FPS = result.FrameRate()
	item.TotalFrames = result.FrameCount()
	item.MediaInfo = string(result.RawJSON())
	item.SetProgress("Ingesting", "Captured media metadata", 20)
	if err := i.store.Update(ctx, item); err != nil {
		logger.Warn("failed to persist media metadata", logging.Error(err))
	}
	logger.Info("probed recording",
		logging.Float64("duration_seconds", duration),
		logging.Float64("fps", item.FPS),
		logging.Int64("total_frames", item.TotalFrames),
		logging.Int("audio_streams", result.AudioStreamCount()),
	)

	stagingRoot := filepath.Join(i.cfg.Paths.StagingDir, fmt.Sprintf("queue-%d", item.ID))
	if err := os.MkdirAll(stagingRoot, 0o755); err != nil {
		return services.Wrap(
			services.ErrConfiguration,
			"ingest",
			"ensure staging dir",
			"Failed to create staging directory; set staging_dir to a writable path",
			err,
		)
	}
	defer func() {
		if err := os.RemoveAll(stagingRoot); err != nil {
			logger.Warn("failed to remove staging directory", logging.Error(err))
		}
	}()

	uploadSource := source
	filename := strings.TrimSpace(item.Filename)
	if filename == "" {
		filename = filepath.Base(source)
	}
	if !strings.EqualFold(filepath.Ext(uploadSource), ".mp4") {
		item.SetProgress("Ingesting", "Converting recording to MP4", 35)
		converted := filepath.Join(stagingRoot, item.VideoKey+".mp4")
		if err := convertVideo(ctx, i.cfg.FFmpegBinary(), uploadSource, converted); err != nil {
			return services.Wrap(
				services.ErrExternalTool,
				"ingest",
				"convert video",
				"ffmpeg failed to convert the recording to MP4",
				err,
			)
		}
		uploadSource = converted
		filename = item.VideoKey + ".mp4"
		item.Filename = filename
		logger.Info("converted recording to mp4", logging.String("path", converted))
	}

	audioPath := ""
	if result.AudioStreamCount() > 0 {
		item.SetProgress("Ingesting", "Extracting audio track", 55)
		audioPath = filepath.Join(stagingRoot, item.VideoKey+".mp3")
		if err := extractAudioTrack(ctx, i.cfg.FFmpegBinary(), source, audioPath); err != nil {
			return services.Wrap(
				services.ErrExternalTool,
				"ingest",
				"extract audio",
				"ffmpeg failed to extract the audio track",
				err,
			)
		}
	} else {
		logger.Warn("recording has no audio stream; skipping speech analysis input")
	}

	item.SetProgress("Ingesting", "Uploading recording", 70)
	videoObject := uploadObject(item.UserID, filename)
	if err := i.putFile(ctx, videoObject, uploadSource, "video/mp4"); err != nil {
		return services.Wrap(
			services.ErrTransient,
			"ingest",
			"upload video",
			"Failed to upload the recording to the object store",
			err,
		)
	}
	item.VideoObject = videoObject

	if audioPath != "" {
		audioObject := uploadObject(item.UserID, item.VideoKey+".mp3")
		if err := i.putFile(ctx, audioObject, audioPath, "audio/mpeg"); err != nil {
			return services.Wrap(
				services.ErrTransient,
				"ingest",
				"upload audio",
				"Failed to upload the audio track to the object store",
				err,
			)
		}
		item.AudioObject = audioObject
	}

	item.SetProgress("Ingesting", "Recording uploaded", 100)
	logger.Info("uploaded recording",
		logging.String("video_object", item.VideoObject),
		logging.String("audio_object", item.AudioObject),
	)
	return nil
}

func (i *Ingestor) putFile(ctx context.Context, object, path, contentType string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = i.blobs.Put(ctx, object, f, blob.PutOptions{ContentType: contentType})
	return err
}

func uploadObject(userID, filename string) string {
	return "uploads/" + userID + "_" + filename
}

// HealthCheck verifies the media tools and object store are reachable.
func (i *Ingestor) HealthCheck(ctx context.Context) stage.Health {
	const name = "ingest"
	if i.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(i.cfg.Paths.StagingDir) == "" {
		return stage.Unhealthy(name, "staging directory not configured")
	}
	if i.blobs == nil {
		return stage.Unhealthy(name, "blob store unavailable")
	}
	for _, binary := range []string{i.cfg.FFmpegBinary(), i.cfg.FFprobeBinary()} {
		if _, err := exec.LookPath(binary); err != nil {
			return stage.MissingBinary(name, binary)
		}
	}
	return stage.Healthy(name)
}

var _ stage.Handler = (*Ingestor)(nil)
