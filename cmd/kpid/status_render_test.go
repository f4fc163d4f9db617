package main

import (
	"fmt"
	"strings"
	"testing"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusError, "not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Daemon:", "[ERROR] not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusOK, "running", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestStatusKindForRecord(t *testing.T) {
	cases := map[string]statusKind{
		"accepted":  statusOK,
		"rejected":  statusError,
		"failed":    statusError,
		"review":    statusWarn,
		"pending":   statusInfo,
		"ingesting": statusInfo,
	}
	for status, want := range cases {
		if got := statusKindForRecord(status); got != want {
			t.Fatalf("statusKindForRecord(%q) = %v, want %v", status, got, want)
		}
	}
}
