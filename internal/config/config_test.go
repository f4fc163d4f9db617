package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultValidatesWithBucket(t *testing.T) {
	cfg := Default()
	cfg.Blob.Bucket = "kpid-test"
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected default config with bucket to validate, got %v", err)
	}
}

func TestValidateRequiresBucketForGCS(t *testing.T) {
	cfg := Default()
	cfg.Blob.Backend = "gcs"
	cfg.Blob.Bucket = ""
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Blob.Bucket != "" {
		t.Skip("KPID_BUCKET set in environment")
	}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "blob.bucket") {
		t.Fatalf("expected bucket validation error, got %v", err)
	}
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	cfg := Default()
	cfg.Blob.Backend = "s3"
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected unknown backend to fail validation")
	}
}

func TestLoadParsesTOMLAndExpandsPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `
[paths]
staging_dir = "` + filepath.Join(dir, "staging") + `"

[blob]
backend = "local"
local_dir = "` + filepath.Join(dir, "blobs") + `"

[detection]
categories = ["Saru", " SADIS "]
confidence_threshold = 0.8

[workflow]
extract_timeout = 900
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected config at %s to be found, got %s exists=%v", path, resolved, exists)
	}
	if cfg.Blob.Backend != "local" {
		t.Fatalf("backend = %q", cfg.Blob.Backend)
	}
	if got := cfg.Detection.Categories; len(got) != 2 || got[0] != "saru" || got[1] != "sadis" {
		t.Fatalf("categories not normalized: %v", got)
	}
	if cfg.Detection.ConfidenceThreshold != 0.8 {
		t.Fatalf("confidence_threshold = %v", cfg.Detection.ConfidenceThreshold)
	}
	if cfg.Workflow.ExtractTimeout != 900 {
		t.Fatalf("extract_timeout = %d", cfg.Workflow.ExtractTimeout)
	}
	// Untouched keys keep defaults.
	if cfg.Workflow.AnalysisTimeout != defaultAnalysisTimeout {
		t.Fatalf("analysis_timeout = %d", cfg.Workflow.AnalysisTimeout)
	}
	if !filepath.IsAbs(cfg.Paths.QueueDB) {
		t.Fatalf("queue_db not expanded: %s", cfg.Paths.QueueDB)
	}
}

func TestHeartbeatTimeoutMustExceedInterval(t *testing.T) {
	cfg := Default()
	cfg.Blob.Backend = "local"
	cfg.Workflow.HeartbeatInterval = 60
	cfg.Workflow.HeartbeatTimeout = 60
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected heartbeat validation error")
	}
}
