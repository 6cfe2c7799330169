package config

const (
	defaultDataDir     = "~/.local/share/fieldvault"
	defaultKeyFilePath = "~/.config/fieldvault/master.key"
	defaultLogFormat   = "console"
	defaultLogLevel    = "info"

	defaultMinTiltDegrees       = 45.0
	defaultGeofenceRadiusMeters = 50.0

	defaultClassifierEndpoint       = "http://127.0.0.1:8603/classify"
	defaultClassifierTimeoutSeconds = 2

	defaultIntakeRequestTimeout = 30

	defaultSyncIntervalMinutes    = 15
	defaultSyncMaxAttempts        = 3
	defaultSyncPacingSeconds      = 2
	defaultSyncBackoffBaseSeconds = 30
	defaultSyncBackoffMaxSeconds  = 600

	defaultNetworkProbeIntervalSeconds = 30
	defaultNetworkProbeTimeoutSeconds  = 5

	defaultNotifyRequestTimeout = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:     defaultDataDir,
			KeyFilePath: defaultKeyFilePath,
		},
		Capture: Capture{
			MinTiltDegrees:       defaultMinTiltDegrees,
			GeofenceRadiusMeters: defaultGeofenceRadiusMeters,
		},
		Classifier: Classifier{
			Endpoint:       defaultClassifierEndpoint,
			TimeoutSeconds: defaultClassifierTimeoutSeconds,
		},
		Intake: Intake{
			RequestTimeout: defaultIntakeRequestTimeout,
		},
		Sync: Sync{
			IntervalMinutes:    defaultSyncIntervalMinutes,
			MaxAttempts:        defaultSyncMaxAttempts,
			PacingSeconds:      defaultSyncPacingSeconds,
			BackoffBaseSeconds: defaultSyncBackoffBaseSeconds,
			BackoffMaxSeconds:  defaultSyncBackoffMaxSeconds,
		},
		Network: Network{
			ProbeIntervalSeconds: defaultNetworkProbeIntervalSeconds,
			ProbeTimeoutSeconds:  defaultNetworkProbeTimeoutSeconds,
		},
		Notifications: Notifications{
			RequestTimeout:  defaultNotifyRequestTimeout,
			CaptureEnqueued: false,
			SyncSummary:     true,
			RetryExhausted:  true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
