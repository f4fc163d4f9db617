package keyframe

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"

	"gocv.io/x/gocv"

	"kpid/internal/blob"
	"kpid/internal/logging"
)

// frameCapture is the slice of gocv.VideoCapture the scan loop needs.
// Tests substitute a scripted decoder through openCapture.
type frameCapture interface {
	Set(prop gocv.VideoCaptureProperties, param float64)
	Get(prop gocv.VideoCaptureProperties) float64
	Read(m *gocv.Mat) bool
	Close() error
}

var openCapture = func(path string) (frameCapture, error) {
	return gocv.VideoCaptureFile(path)
}

// Source identifies the recording a scan runs over. FPS and TotalFrames come
// from the probe step; zero values fall back to what the decoder reports.
type Source struct {
	Path        string
	OwnerID     string
	VideoKey    string
	FPS         float64
	TotalFrames int64
}

// Extractor samples a recording once per second, scores inter-frame change,
// and uploads the frames sitting on peaks of that signal.
type Extractor struct {
	blobs     blob.Store
	logger    *slog.Logger
	threshold float64
}

// NewExtractor wires an extractor against the given blob store. The
// threshold is the relative peak threshold applied to the change signal.
func NewExtractor(blobs blob.Store, logger *slog.Logger, threshold float64) *Extractor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Extractor{blobs: blobs, logger: logger, threshold: threshold}
}

// SelectKeyframes picks peak positions out of a change signal after removing
// its polynomial baseline. The returned indices are sample positions, one
// per second of video.
func SelectKeyframes(signal []float64, thres float64) []int {
	base := Baseline(signal, 2)
	detrended := make([]float64, len(signal))
	for i := range signal {
		detrended[i] = signal[i] - base[i]
	}
	return Indexes(detrended, thres, 1)
}

// Extract scans the recording and returns the uploaded keyframes in time
// order. A recording with no scene changes yields an empty slice, not an
// error.
func (e *Extractor) Extract(ctx context.Context, src Source) ([]Frame, error) {
	capture, err := openCapture(src.Path)
	if err != nil {
		// An unreadable recording moderates as empty rather than failing the
		// whole job.
		e.logger.Error("unable to open recording, treating as empty",
			logging.String("path", src.Path),
			logging.Error(err),
		)
		return []Frame{}, nil
	}
	defer capture.Close()

	fps := src.FPS
	if fps <= 0 {
		fps = capture.Get(gocv.VideoCaptureFPS)
	}
	if fps <= 0 {
		return nil, fmt.Errorf("video %s reports no frame rate", src.Path)
	}
	totalFrames := float64(src.TotalFrames)
	if totalFrames <= 0 {
		totalFrames = capture.Get(gocv.VideoCaptureFrameCount)
	}

	differ := NewDiffer()
	defer differ.Close()

	img := gocv.NewMat()
	defer img.Close()

	var (
		signal  []float64
		samples [][]byte
	)
	for second := 0; ; second++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		position := float64(second) * fps
		if position > totalFrames {
			break
		}
		capture.Set(gocv.VideoCapturePosFrames, position)
		if !capture.Read(&img) || img.Empty() {
			// A corrupt frame skips one sample; the rest of the recording
			// still gets scanned. The change signal repeats the prior score
			// so peak positions stay aligned with seconds.
			e.logger.Warn("frame decode failed, skipping sample",
				logging.Int("second", second),
				logging.String("video_key", src.VideoKey),
			)
			var prior float64
			var priorSample []byte
			if len(signal) > 0 {
				prior = signal[len(signal)-1]
				priorSample = samples[len(samples)-1]
			}
			signal = append(signal, prior)
			samples = append(samples, priorSample)
			continue
		}

		signal = append(signal, float64(differ.Next(img)))

		encoded, err := gocv.IMEncode(gocv.JPEGFileExt, img)
		if err != nil {
			return nil, fmt.Errorf("encode frame at %ds: %w", second, err)
		}
		samples = append(samples, append([]byte(nil), encoded.GetBytes()...))
		encoded.Close()
	}

	peaks := SelectKeyframes(signal, e.threshold)
	e.logger.Debug("keyframe scan complete",
		logging.Int("sampled_seconds", len(signal)),
		logging.Int("keyframes", len(peaks)),
		logging.String("video_key", src.VideoKey),
	)

	frames := make([]Frame, 0, len(peaks))
	for n, idx := range peaks {
		// Objects are numbered by selection order, not sample position.
		object := fmt.Sprintf("moderation/%s/%s/frames/%s_%d.jpg", src.OwnerID, src.VideoKey, src.VideoKey, n+1)
		url, err := e.blobs.Put(ctx, object, bytes.NewReader(samples[idx]), blob.PutOptions{
			ContentType: "image/jpeg",
			Public:      true,
		})
		if err != nil {
			return nil, fmt.Errorf("upload keyframe %s: %w", object, err)
		}
		frames = append(frames, Frame{URL: url, Time: round2(float64(idx))})
	}
	return frames, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
