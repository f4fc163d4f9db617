// Package detect orchestrates the detection model calls that turn keyframes
// and transcripts into violation findings.
package detect

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"kpid/internal/keyframe"
	"kpid/internal/logging"
	"kpid/internal/services/vision"
	"kpid/internal/violation"
)

// ImageScorer scores an image against one violation category.
type ImageScorer interface {
	Detect(ctx context.Context, imageURL, category string) ([]vision.Detection, error)
}

// FrameScanner runs every keyframe through the visual model, once per
// configured category, and keeps detections above the confidence threshold.
type FrameScanner struct {
	scorer     ImageScorer
	categories []string
	threshold  float64
	logger     *slog.Logger
}

// NewFrameScanner wires a scanner over the given scorer.
func NewFrameScanner(scorer ImageScorer, categories []string, threshold float64, logger *slog.Logger) *FrameScanner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &FrameScanner{
		scorer:     scorer,
		categories: categories,
		threshold:  threshold,
		logger:     logger,
	}
}

// Scan produces at most one entry per keyframe, carrying every detection
// above the threshold across all categories. Frames with no hits produce
// nothing.
func (s *FrameScanner) Scan(ctx context.Context, frames []keyframe.Frame) ([]violation.Entry, error) {
	var entries []violation.Entry
	for _, frame := range frames {
		var (
			categories []string
			labels     []string
		)
		for _, category := range s.categories {
			detections, err := s.scorer.Detect(ctx, frame.URL, category)
			if err != nil {
				return nil, fmt.Errorf("score frame at %vs for %s: %w", frame.Time, category, err)
			}
			for _, d := range detections {
				if d.Confidence < s.threshold {
					continue
				}
				// The model is queried with the lowercase category name but
				// findings carry the uppercase form, matching the audio marker.
				categories = append(categories, strings.ToUpper(category))
				labels = append(labels, d.Label)
			}
		}
		if len(categories) == 0 {
			continue
		}
		s.logger.Debug("visual violation detected",
			logging.Float64("frame_time", frame.Time),
			logging.Any("categories", categories),
		)
		entries = append(entries, violation.Entry{
			Second:   frame.Time,
			Decision: violation.DecisionPending,
			Category: categories,
			Label:    labels,
		})
	}
	return entries, nil
}
