package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeBlob(); err != nil {
		return err
	}
	c.normalizeDetection()
	c.normalizeWorkflow()
	c.normalizeLogging()
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.QueueDB, err = expandPath(c.Paths.QueueDB); err != nil {
		return fmt.Errorf("paths.queue_db: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	return nil
}

func (c *Config) normalizeBlob() error {
	c.Blob.Backend = strings.ToLower(strings.TrimSpace(c.Blob.Backend))
	if c.Blob.Backend == "" {
		c.Blob.Backend = defaultBlobBackend
	}
	c.Blob.Bucket = strings.TrimSpace(c.Blob.Bucket)
	if c.Blob.Bucket == "" {
		if value, ok := os.LookupEnv("KPID_BUCKET"); ok {
			c.Blob.Bucket = strings.TrimSpace(value)
		}
	}
	var err error
	if c.Blob.LocalDir, err = expandPath(c.Blob.LocalDir); err != nil {
		return fmt.Errorf("blob.local_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeDetection() {
	c.Detection.VisionBaseURL = strings.TrimRight(strings.TrimSpace(c.Detection.VisionBaseURL), "/")
	c.Detection.SpeechBaseURL = strings.TrimRight(strings.TrimSpace(c.Detection.SpeechBaseURL), "/")
	if len(c.Detection.Categories) == 0 {
		c.Detection.Categories = defaultCategories()
	}
	normalized := make([]string, 0, len(c.Detection.Categories))
	for _, category := range c.Detection.Categories {
		category = strings.ToLower(strings.TrimSpace(category))
		if category != "" {
			normalized = append(normalized, category)
		}
	}
	c.Detection.Categories = normalized
	if c.Detection.ConfidenceThreshold <= 0 {
		c.Detection.ConfidenceThreshold = defaultConfidenceThreshold
	}
	if c.Detection.KeyframeThreshold <= 0 {
		c.Detection.KeyframeThreshold = defaultKeyframeThreshold
	}
	if strings.TrimSpace(c.Detection.BlacklistObject) == "" {
		c.Detection.BlacklistObject = defaultBlacklistObject
	}
	if c.Detection.RequestTimeout <= 0 {
		c.Detection.RequestTimeout = defaultDetectionTimeout
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		c.Workflow.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		c.Workflow.HeartbeatTimeout = defaultHeartbeatTimeout
	}
	if c.Workflow.IngestTimeout <= 0 {
		c.Workflow.IngestTimeout = defaultIngestTimeout
	}
	if c.Workflow.ExtractTimeout <= 0 {
		c.Workflow.ExtractTimeout = defaultExtractTimeout
	}
	if c.Workflow.AnalysisTimeout <= 0 {
		c.Workflow.AnalysisTimeout = defaultAnalysisTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
