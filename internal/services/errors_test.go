package services

import (
	"errors"
	"strings"
	"testing"

	"kpid/internal/queue"
)

func TestWrapTagsMarkerAndDetail(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(ErrExternalTool, "analyzing", "call vision model", "model request failed", cause)
	if !errors.Is(err, ErrExternalTool) {
		t.Fatal("expected wrapped error to match ErrExternalTool")
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped error to retain the cause")
	}
	if msg := err.Error(); !strings.Contains(msg, "analyzing: call vision model") {
		t.Fatalf("detail missing from message: %s", msg)
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := Wrap(nil, "ingesting", "", "", nil)
	if !errors.Is(err, ErrTransient) {
		t.Fatal("nil marker should default to ErrTransient")
	}
}

func TestFailureStatusClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want queue.Status
	}{
		{"validation", Wrap(ErrValidation, "s", "o", "m", nil), queue.StatusReview},
		{"configuration", Wrap(ErrConfiguration, "s", "o", "m", nil), queue.StatusReview},
		{"not_found", Wrap(ErrNotFound, "s", "o", "m", nil), queue.StatusReview},
		{"external_tool", Wrap(ErrExternalTool, "s", "o", "m", nil), queue.StatusFailed},
		{"plain", errors.New("boom"), queue.StatusFailed},
	}
	for _, tc := range cases {
		if got := FailureStatus(tc.err); got != tc.want {
			t.Errorf("%s: FailureStatus = %s, want %s", tc.name, got, tc.want)
		}
	}
}
