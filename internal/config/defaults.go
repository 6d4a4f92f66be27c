package config

const (
	defaultCarDir             = "~/paddock/car"
	defaultLogDir             = "~/.local/share/paddock/logs"
	defaultInboxName          = "DROP-OFF"
	defaultSessionsName       = "SESSIONS"
	defaultArchiveName        = "ARCHIVE"
	defaultSetupOutputName    = "SETUPS/output"
	defaultSetupProcessedName = "SETUPS/PROCESSED"
	defaultDebounceSeconds    = 2
	defaultPollInterval       = 5
	defaultWorkerCount        = 2
	defaultErrorRetryInterval = 10
	defaultTransformTimeout   = 300
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			CarDir: defaultCarDir,
			LogDir: defaultLogDir,
		},
		Engine: Engine{
			DebounceSeconds:    defaultDebounceSeconds,
			PollInterval:       defaultPollInterval,
			WorkerCount:        defaultWorkerCount,
			ErrorRetryInterval: defaultErrorRetryInterval,
		},
		Transforms: Transforms{
			Timeout: defaultTransformTimeout,
		},
		Archive: Archive{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
