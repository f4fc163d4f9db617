// Package clip wraps the ffmpeg invocations the pipeline needs: container
// conversion, audio extraction, and cutting violation subclips.
package clip

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ConvertToMP4 re-encodes a recording into an mp4 container.
func ConvertToMP4(ctx context.Context, binary, src, dest string) error {
	return run(ctx, binary, convertArgs(src, dest))
}

// ExtractAudio writes the recording's audio track as mp3.
func ExtractAudio(ctx context.Context, binary, src, dest string) error {
	return run(ctx, binary, audioArgs(src, dest))
}

// Cut copies the [start, end) window of the recording into dest without
// re-encoding. Bounds checking is the caller's job.
func Cut(ctx context.Context, binary, src, dest string, start, end float64) error {
	if end <= start {
		return fmt.Errorf("invalid clip window [%v, %v)", start, end)
	}
	return run(ctx, binary, cutArgs(src, dest, start, end))
}

func convertArgs(src, dest string) []string {
	return []string{
		"-v", "error", "-hide_banner", "-y",
		"-i", src,
		"-movflags", "+faststart",
		dest,
	}
}

func audioArgs(src, dest string) []string {
	return []string{
		"-v", "error", "-hide_banner", "-y",
		"-i", src,
		"-vn",
		"-acodec", "libmp3lame",
		"-q:a", "2",
		dest,
	}
}

func cutArgs(src, dest string, start, end float64) []string {
	return []string{
		"-v", "error", "-hide_banner", "-y",
		"-ss", formatSeconds(start),
		"-i", src,
		"-t", formatSeconds(end - start),
		"-c", "copy",
		dest,
	}
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func run(ctx context.Context, binary string, args []string) error {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	if len(args) == 0 {
		return errors.New("ffmpeg: no arguments")
	}
	cmd := exec.CommandContext(ctx, binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg %s: %w: %s", args[len(args)-1], err, strings.TrimSpace(string(output)))
	}
	return nil
}
