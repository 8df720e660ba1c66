package config

type LogConfig struct {
	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string `env:"LOG_LEVEL"`

	// LogHandler selects the slog handler: "json" or "default" (tint).
	LogHandler string `env:"LOG_HANDLER"`
}

func NewLogConfig() *LogConfig {
	conf := &LogConfig{
		LogLevel:   "info",
		LogHandler: "default",
	}
	resolveConfig(conf)
	return conf
}
