package config

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ReloadFunc receives the freshly loaded configuration after the file
// on disk changed and passed validation.
type ReloadFunc func(*Config)

// Watcher polls the config file and reloads it when the modification
// time changes. Polling keeps the behavior identical across
// filesystems that deliver no change events.
type Watcher struct {
	loader   *Loader
	path     string
	interval time.Duration
	onReload ReloadFunc
	logger   *zap.Logger

	mu      sync.Mutex
	lastMod time.Time
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewWatcher creates a watcher over the given file. interval defaults
// to 5 seconds.
func NewWatcher(loader *Loader, path string, interval time.Duration, onReload ReloadFunc, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Watcher{
		loader:   loader.WithConfigPath(path),
		path:     path,
		interval: interval,
		onReload: onReload,
		logger:   logger,
	}
}

// Start begins polling in the background.
func (w *Watcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}
	if info, err := os.Stat(w.path); err == nil {
		w.lastMod = info.ModTime()
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.loop(ctx)
}

// Stop ends polling and waits for the loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel = nil
	w.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.check()
		}
	}
}

func (w *Watcher) check() {
	info, err := os.Stat(w.path)
	if err != nil {
		return
	}
	w.mu.Lock()
	changed := info.ModTime().After(w.lastMod)
	if changed {
		w.lastMod = info.ModTime()
	}
	w.mu.Unlock()
	if !changed {
		return
	}

	cfg, err := w.loader.Load()
	if err != nil {
		w.logger.Error("config reload failed, keeping previous config",
			zap.String("path", w.path), zap.Error(err))
		return
	}
	if err := cfg.Validate(); err != nil {
		w.logger.Error("reloaded config invalid, keeping previous config",
			zap.String("path", w.path), zap.Error(err))
		return
	}

	w.logger.Info("config reloaded", zap.String("path", w.path))
	if w.onReload != nil {
		w.onReload(cfg)
	}
}
