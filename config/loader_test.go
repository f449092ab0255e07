package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JasonDeee/Project-L.I.F.E/persistence"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, "http://localhost:1234", cfg.LLM.BaseURL)
	assert.Equal(t, "WENDY", cfg.Chat.AssistantName)
	assert.Equal(t, persistence.StoreTypeMemory, cfg.Store.Type)
	assert.Equal(t, 3000, cfg.Compression.TokenFloor)
	assert.Equal(t, 7800, cfg.Compression.TokenCeiling)
	assert.Equal(t, 8, cfg.Compression.KeepRecentMessages)
	assert.Equal(t, 2*time.Second, cfg.Compression.Delay)
	assert.True(t, cfg.Compression.Enabled)
}

func TestLoaderYAMLOverridesDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  http_port: 9090
store:
  type: file
  base_dir: /tmp/conversations
compression:
  token_ceiling: 6000
  token_floor: 2000
chat:
  assistant_name: ARIA
`), 0o644))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.HTTPPort)
	assert.Equal(t, persistence.StoreTypeFile, cfg.Store.Type)
	assert.Equal(t, "/tmp/conversations", cfg.Store.BaseDir)
	assert.Equal(t, 6000, cfg.Compression.TokenCeiling)
	assert.Equal(t, "ARIA", cfg.Chat.AssistantName)
	// Untouched sections keep their defaults.
	assert.Equal(t, 8, cfg.Compression.KeepRecentMessages)
	assert.Equal(t, "http://localhost:1234", cfg.LLM.BaseURL)
}

func TestLoaderEnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  http_port: 9090\n"), 0o644))

	t.Setenv("LIFE_SERVER_HTTP_PORT", "7070")
	t.Setenv("LIFE_COMPRESSION_DELAY", "500ms")
	t.Setenv("LIFE_CHAT_TASK_MANAGER_ENABLED", "true")
	t.Setenv("LIFE_STORE_REDIS_ADDR", "redis:6379")
	t.Setenv("LIFE_LOG_OUTPUT_PATHS", "stdout, /var/log/life.log")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.HTTPPort)
	assert.Equal(t, 500*time.Millisecond, cfg.Compression.Delay)
	assert.True(t, cfg.Chat.TaskManagerEnabled)
	assert.Equal(t, "redis:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, []string{"stdout", "/var/log/life.log"}, cfg.Log.OutputPaths)
}

func TestLoaderMissingFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := NewLoader().WithConfigPath("/does/not/exist.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
}

func TestLoaderValidator(t *testing.T) {
	t.Parallel()

	_, err := NewLoader().WithValidator(func(c *Config) error {
		return assert.AnError
	}).Load()
	require.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.HTTPPort = 0 }},
		{"ceiling below floor", func(c *Config) { c.Compression.TokenCeiling = c.Compression.TokenFloor }},
		{"zero keep recent", func(c *Config) { c.Compression.KeepRecentMessages = 0 }},
		{"unknown store", func(c *Config) { c.Store.Type = "cassandra" }},
		{"temperature out of range", func(c *Config) { c.Chat.Temperature = 3 }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestWatcherReloadsOnChange(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  http_port: 8081\n"), 0o644))

	var reloads atomic.Int32
	var lastPort atomic.Int32
	w := NewWatcher(NewLoader(), path, 10*time.Millisecond, func(cfg *Config) {
		reloads.Add(1)
		lastPort.Store(int32(cfg.Server.HTTPPort))
	}, nil)
	w.Start()
	defer w.Stop()

	// Push the mtime forward explicitly; coarse filesystem clocks can
	// otherwise hide a quick rewrite.
	require.NoError(t, os.WriteFile(path, []byte("server:\n  http_port: 8082\n"), 0o644))
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	require.Eventually(t, func() bool {
		return reloads.Load() >= 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(8082), lastPort.Load())
}

func TestWatcherKeepsConfigOnInvalidReload(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  http_port: 8081\n"), 0o644))

	var reloads atomic.Int32
	w := NewWatcher(NewLoader(), path, 10*time.Millisecond, func(*Config) {
		reloads.Add(1)
	}, nil)
	w.Start()
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("server:\n  http_port: -1\n"), 0o644))
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	time.Sleep(200 * time.Millisecond)
	assert.Zero(t, reloads.Load())
}
