package config

func Defaults() *Config {
	return &Config{
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		API: APIConfig{
			BaseURL:        "http://localhost:8000",
			TimeoutSeconds: 120,
			MaxRetries:     0,
			MaxPCAPoints:   800,
		},
		Stream: StreamConfig{
			CloseOnFirstEvent: true,
		},
		Session: SessionConfig{
			Enabled:     true,
			DBPath:      "~/.agentctl/session.db",
			MaxMessages: 200,
		},
		Watch: WatchConfig{
			Extensions:  ExtensionList{".pdf", ".csv"},
			DebounceMs:  500,
			AutoReindex: true,
		},
	}
}
