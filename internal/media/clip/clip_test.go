package clip

import (
	"context"
	"reflect"
	"testing"
)

func TestConvertArgs(t *testing.T) {
	got := convertArgs("in.ts", "out.mp4")
	want := []string{"-v", "error", "-hide_banner", "-y", "-i", "in.ts", "-movflags", "+faststart", "out.mp4"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected args: %v", got)
	}
}

func TestAudioArgs(t *testing.T) {
	got := audioArgs("in.mp4", "out.mp3")
	want := []string{"-v", "error", "-hide_banner", "-y", "-i", "in.mp4", "-vn", "-acodec", "libmp3lame", "-q:a", "2", "out.mp3"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected args: %v", got)
	}
}

func TestCutArgsUsesStartAndDuration(t *testing.T) {
	got := cutArgs("in.mp4", "out.mp4", 7, 13)
	want := []string{"-v", "error", "-hide_banner", "-y", "-ss", "7.000", "-i", "in.mp4", "-t", "6.000", "-c", "copy", "out.mp4"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected args: %v", got)
	}
}

func TestCutRejectsEmptyWindow(t *testing.T) {
	if err := Cut(context.Background(), "ffmpeg", "in.mp4", "out.mp4", 10, 10); err == nil {
		t.Fatal("expected error for empty window")
	}
	if err := Cut(context.Background(), "ffmpeg", "in.mp4", "out.mp4", 10, 5); err == nil {
		t.Fatal("expected error for inverted window")
	}
}
