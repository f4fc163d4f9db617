package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateBlob(); err != nil {
		return err
	}
	if err := c.validateDetection(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.StagingDir == "" {
		return errors.New("paths.staging_dir must be set")
	}
	if c.Paths.QueueDB == "" {
		return errors.New("paths.queue_db must be set")
	}
	return nil
}

func (c *Config) validateBlob() error {
	switch c.Blob.Backend {
	case "gcs":
		if c.Blob.Bucket == "" {
			defaultPath, err := DefaultConfigPath()
			if err != nil {
				defaultPath = "~/.config/kpid/config.toml"
			}
			return fmt.Errorf("blob.bucket is required for the gcs backend. Set KPID_BUCKET env var or edit %s (create with 'kpid config init')", defaultPath)
		}
	case "local":
		if c.Blob.LocalDir == "" {
			return errors.New("blob.local_dir is required for the local backend")
		}
	default:
		return fmt.Errorf("blob.backend must be \"gcs\" or \"local\", got %q", c.Blob.Backend)
	}
	return nil
}

func (c *Config) validateDetection() error {
	if c.Detection.ConfidenceThreshold < 0 || c.Detection.ConfidenceThreshold > 1 {
		return errors.New("detection.confidence_threshold must be between 0 and 1")
	}
	if c.Detection.KeyframeThreshold < 0 || c.Detection.KeyframeThreshold > 1 {
		return errors.New("detection.keyframe_threshold must be between 0 and 1")
	}
	if len(c.Detection.Categories) == 0 {
		return errors.New("detection.categories must name at least one violation category")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must exceed workflow.heartbeat_interval")
	}
	return nil
}
