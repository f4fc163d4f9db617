package analysis

import (
	"context"

	"kpid/internal/media/clip"
)

// cutClip is the ffmpeg clip runner used by the analysis package.
// It is a package-level variable so tests can override it.
var cutClip = clip.Cut

// SetCutForTests overrides the clip runner during tests.
func SetCutForTests(fn func(context.Context, string, string, string, float64, float64) error) func() {
	previous := cutClip
	cutClip = fn
	return func() {
		cutClip = previous
	}
}
