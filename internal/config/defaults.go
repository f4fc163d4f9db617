package config

const (
	defaultStagingDir          = "~/.local/share/kpid/staging"
	defaultLogDir              = "~/.local/share/kpid/logs"
	defaultQueueDB             = "~/.local/share/kpid/queue.db"
	defaultAPIBind             = "127.0.0.1:7519"
	defaultBlobBackend         = "gcs"
	defaultBlobLocalDir        = "~/.local/share/kpid/blobs"
	defaultConfidenceThreshold = 0.7
	defaultKeyframeThreshold   = 0.4
	defaultBlacklistObject     = "static/abusive.csv"
	defaultDetectionTimeout    = 120
	defaultQueuePollInterval   = 5
	defaultErrorRetryInterval  = 30
	defaultHeartbeatInterval   = 15
	defaultHeartbeatTimeout    = 120
	defaultIngestTimeout       = 3600
	defaultExtractTimeout      = 1800
	defaultAnalysisTimeout     = 7200
	defaultNotifyTimeout       = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

func defaultCategories() []string {
	return []string{"saru", "sadis"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
			QueueDB:    defaultQueueDB,
			APIBind:    defaultAPIBind,
		},
		Blob: Blob{
			Backend:  defaultBlobBackend,
			LocalDir: defaultBlobLocalDir,
		},
		Detection: Detection{
			Categories:          defaultCategories(),
			ConfidenceThreshold: defaultConfidenceThreshold,
			KeyframeThreshold:   defaultKeyframeThreshold,
			BlacklistObject:     defaultBlacklistObject,
			RequestTimeout:      defaultDetectionTimeout,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			HeartbeatInterval:  defaultHeartbeatInterval,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
			IngestTimeout:      defaultIngestTimeout,
			ExtractTimeout:     defaultExtractTimeout,
			AnalysisTimeout:    defaultAnalysisTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Completion:     true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
