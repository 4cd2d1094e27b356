package config

const (
	defaultStateDir          = "~/.local/share/curator"
	defaultLogDir            = "~/.local/share/curator/logs"
	defaultPageSize          = 1000
	defaultRequestTimeout    = 30
	defaultRetryMaxAttempts  = 4
	defaultRetryInitialDelay = 2
	defaultRetryMaxDelay     = 30
	defaultCacheMaxAgeHours  = 24
	defaultProgressInterval  = 500
	defaultAutoThreshold     = 90
	defaultMergeWorkers      = 4
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Drive: Drive{
			PageSize:          defaultPageSize,
			RequestTimeout:    defaultRequestTimeout,
			RetryMaxAttempts:  defaultRetryMaxAttempts,
			RetryInitialDelay: defaultRetryInitialDelay,
			RetryMaxDelay:     defaultRetryMaxDelay,
		},
		Hierarchy: Hierarchy{
			CacheMaxAgeHours: defaultCacheMaxAgeHours,
			ProgressInterval: defaultProgressInterval,
		},
		Matching: Matching{
			AutoThreshold: defaultAutoThreshold,
		},
		Merge: Merge{
			Workers: defaultMergeWorkers,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
