package config

const (
	defaultStateDir              = "~/.local/share/stitch"
	defaultLogDir                = "~/.local/share/stitch/logs"
	defaultAPIBind               = "127.0.0.1:7787"
	defaultDetectionConcurrency  = 4
	defaultServiceTimeoutSeconds = 15
	defaultMinConfidence         = 0.3
	defaultSyncIntervalSeconds   = 900
	defaultNotifyRequestTimeout  = 10
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultLogRetentionDays      = 60
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
		},
		Detection: Detection{
			Concurrency:    defaultDetectionConcurrency,
			ServiceTimeout: defaultServiceTimeoutSeconds,
			MinConfidence:  defaultMinConfidence,
		},
		Sync: Sync{
			Enabled:  true,
			Interval: defaultSyncIntervalSeconds,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Detection:      true,
			Mappings:       true,
			SyncFailures:   true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
