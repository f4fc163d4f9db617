// Package probe inspects recordings with ffprobe and extracts the media
// facts the pipeline needs: duration, frame rate, and frame count.
package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
	raw     []byte
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index        int               `json:"index"`
	CodecName    string            `json:"codec_name"`
	CodecType    string            `json:"codec_type"`
	Duration     string            `json:"duration"`
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	RFrameRate   string            `json:"r_frame_rate"`
	AvgFrameRate string            `json:"avg_frame_rate"`
	NBFrames     string            `json:"nb_frames"`
	SampleRate   string            `json:"sample_rate"`
	Channels     int               `json:"channels"`
	Tags         map[string]string `json:"tags"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string            `json:"filename"`
	NBStreams  int               `json:"nb_streams"`
	Duration   string            `json:"duration"`
	Size       string            `json:"size"`
	BitRate    string            `json:"bit_rate"`
	FormatName string            `json:"format_name"`
	Tags       map[string]string `json:"tags"`
}

// Inspect executes ffprobe against the provided path and decodes the JSON response.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return Result{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(string(output)))
	}

	return Parse(output)
}

// Parse decodes raw ffprobe JSON output.
func Parse(payload []byte) (Result, error) {
	var result Result
	if err := json.Unmarshal(payload, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	result.raw = append([]byte(nil), payload...)
	return result, nil
}

// RawJSON returns the raw ffprobe JSON payload.
func (r Result) RawJSON() []byte {
	return append([]byte(nil), r.raw...)
}

// VideoStream returns the first video stream, or nil when none exists.
func (r Result) VideoStream() *Stream {
	for i := range r.Streams {
		if strings.EqualFold(r.Streams[i].CodecType, "video") {
			return &r.Streams[i]
		}
	}
	return nil
}

// AudioStreamCount returns the number of audio streams discovered.
func (r Result) AudioStreamCount() int {
	count := 0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "audio") {
			count++
		}
	}
	return count
}

// DurationSeconds returns the recording duration in seconds. Broadcast
// captures are inconsistent about where they report it, so the container
// duration is tried first, then the video stream, then the stream's
// DURATION tag (common in matroska captures).
func (r Result) DurationSeconds() float64 {
	if d := parseFloat(r.Format.Duration); d > 0 {
		return d
	}
	video := r.VideoStream()
	if video == nil {
		return 0
	}
	if d := parseFloat(video.Duration); d > 0 {
		return d
	}
	if tag, ok := video.Tags["DURATION"]; ok {
		if d := parseClock(tag); d > 0 {
			return d
		}
	}
	return 0
}

// FrameRate returns the video frame rate rounded to two decimals, parsed
// from the r_frame_rate ratio with avg_frame_rate as fallback.
func (r Result) FrameRate() float64 {
	video := r.VideoStream()
	if video == nil {
		return 0
	}
	if fps := parseRatio(video.RFrameRate); fps > 0 {
		return math.Round(fps*100) / 100
	}
	if fps := parseRatio(video.AvgFrameRate); fps > 0 {
		return math.Round(fps*100) / 100
	}
	return 0
}

// FrameCount returns the total video frame count, preferring the container's
// nb_frames and falling back to duration times frame rate.
func (r Result) FrameCount() int64 {
	video := r.VideoStream()
	if video == nil {
		return 0
	}
	if count, err := strconv.ParseInt(strings.TrimSpace(video.NBFrames), 10, 64); err == nil && count > 0 {
		return count
	}
	duration := r.DurationSeconds()
	fps := r.FrameRate()
	if duration > 0 && fps > 0 {
		return int64(duration * fps)
	}
	return 0
}

// SizeBytes returns the reported container size in bytes, or 0 when unavailable.
func (r Result) SizeBytes() int64 {
	size := parseFloat(r.Format.Size)
	if math.IsNaN(size) || size < 0 {
		return 0
	}
	return int64(size)
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}

// parseRatio parses ffprobe's "num/den" frame rate notation.
func parseRatio(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	num, den, found := strings.Cut(cleaned, "/")
	if !found {
		return parseFloat(cleaned)
	}
	n := parseFloat(num)
	d := parseFloat(den)
	if math.IsNaN(n) || math.IsNaN(d) || d == 0 {
		return 0
	}
	return n / d
}

// parseClock parses "HH:MM:SS.fraction" duration tags.
func parseClock(value string) float64 {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 3 {
		return 0
	}
	hours := parseFloat(parts[0])
	minutes := parseFloat(parts[1])
	seconds := parseFloat(parts[2])
	if math.IsNaN(hours) || math.IsNaN(minutes) || math.IsNaN(seconds) {
		return 0
	}
	return hours*3600 + minutes*60 + seconds
}
