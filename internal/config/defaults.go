package config

const (
	defaultDataDir        = "~/.local/share/greylit"
	defaultLogDir         = "~/.local/share/greylit/logs"
	defaultAPIBind        = "127.0.0.1:7601"
	defaultChunkSize      = 50
	defaultItemWorkers    = 1
	defaultLanguage       = "en"
	defaultDedupStrategy  = "exact_url"
	defaultTitleThreshold = 0.85
	defaultRequestTimeout = 10
	defaultRedisChannel   = "greylit.runs"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
	defaultRetentionDays  = 60
	maxItemWorkers        = 32
	maxChunkSize          = 1000
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Processing: Processing{
			ChunkSize:       defaultChunkSize,
			ItemWorkers:     defaultItemWorkers,
			DefaultLanguage: defaultLanguage,
		},
		Dedup: Dedup{
			Strategy:       defaultDedupStrategy,
			TitleThreshold: defaultTitleThreshold,
		},
		Notifications: Notifications{
			RedisChannel:   defaultRedisChannel,
			RequestTimeout: defaultRequestTimeout,
			RunStarted:     true,
			RunCompleted:   true,
			RunFailed:      true,
			SessionReady:   true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultRetentionDays,
		},
	}
}
