package ingest

import (
	"context"

	"kpid/internal/media/clip"
	"kpid/internal/media/probe"
)

// Media tool runners are package-level variables so tests can override them.
var (
	inspectMedia      = probe.Inspect
	convertVideo      = clip.ConvertToMP4
	extractAudioTrack = clip.ExtractAudio
)

// SetProbeForTests overrides the ffprobe runner during tests.
func SetProbeForTests(fn func(context.Context, string, string) (probe.Result, error)) func() {
	previous := inspectMedia
	inspectMedia = fn
	return func() {
		inspectMedia = previous
	}
}

// SetConvertForTests overrides the MP4 conversion runner during tests.
func SetConvertForTests(fn func(context.Context, string, string, string) error) func() {
	previous := convertVideo
	convertVideo = fn
	return func() {
		convertVideo = previous
	}
}

// SetAudioExtractForTests overrides the audio extraction runner during tests.
func SetAudioExtractForTests(fn func(context.Context, string, string, string) error) func() {
	previous := extractAudioTrack
	extractAudioTrack = fn
	return func() {
		extractAudioTrack = previous
	}
}
