package config

import (
	"time"

	"github.com/JasonDeee/Project-L.I.F.E/chat"
	"github.com/JasonDeee/Project-L.I.F.E/compression"
	"github.com/JasonDeee/Project-L.I.F.E/persistence"
)

// DefaultConfig returns the defaults for every configuration section.
// They describe a single-node deployment talking to a local LM Studio
// server with in-memory persistence.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:        8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    5 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
			RateLimit:       10,
			RateBurst:       20,
		},
		LLM: LLMConfig{
			BaseURL: "http://localhost:1234",
			Timeout: 120 * time.Second,
		},
		Chat:        chat.DefaultConfig(),
		Store:       persistence.DefaultStoreConfig(),
		Compression: compression.DefaultConfig(),
		Log: LogConfig{
			Level:       "info",
			Format:      "json",
			OutputPaths: []string{"stdout"},
		},
		Telemetry: TelemetryConfig{
			ServiceName: "life-server",
			SampleRate:  1.0,
		},
	}
}
