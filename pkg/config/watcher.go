// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Watcher polls the config file (and its profile file) and reloads the
// configuration when either changes. Reloads that fail to load or validate
// keep the previous configuration.
type Watcher struct {
	mu        sync.RWMutex
	base      string
	profile   string
	interval  time.Duration
	modTimes  map[string]time.Time
	current   *Config
	listeners []func(*Config)
	logger    *slog.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// WatcherOption configures the watcher.
type WatcherOption func(*Watcher)

// WithWatchInterval sets the polling interval.
func WithWatchInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithWatchLogger sets the logger for the watcher.
func WithWatchLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithWatchProfile layers config.<profile>.yaml over the base file on every load.
func WithWatchProfile(profile string) WatcherOption {
	return func(w *Watcher) {
		w.profile = profile
	}
}

// NewWatcher loads the configuration at base and prepares to watch it.
func NewWatcher(base string, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		base:     base,
		interval: time.Second,
		modTimes: make(map[string]time.Time),
		logger:   slog.Default(),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	cfg, err := LoadWithProfile(w.base, w.profile)
	if err != nil {
		return nil, err
	}
	w.current = cfg
	w.changed()
	return w, nil
}

// OnChange registers a callback run after every successful reload.
func (w *Watcher) OnChange(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

// Config returns the current configuration.
func (w *Watcher) Config() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Start polls in the background until ctx ends or Stop is called.
func (w *Watcher) Start(ctx context.Context) {
	go func() {
		defer close(w.doneCh)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stopCh:
				return
			case <-ticker.C:
				if w.changed() {
					w.reload()
				}
			}
		}
	}()
}

// Stop ends polling and waits for the poller to exit. Start must have been called.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	<-w.doneCh
}

func (w *Watcher) paths() []string {
	if w.base == "" {
		return nil
	}
	paths := []string{w.base}
	if p := profileConfigPath(w.base, w.profile); p != "" {
		paths = append(paths, p)
	}
	return paths
}

// changed records the latest modification times and reports whether any moved.
func (w *Watcher) changed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	changed := false
	for _, path := range w.paths() {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if last, ok := w.modTimes[path]; !ok || info.ModTime().After(last) {
			w.modTimes[path] = info.ModTime()
			changed = true
		}
	}
	return changed
}

func (w *Watcher) reload() {
	cfg, err := LoadWithProfile(w.base, w.profile)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		w.logger.Error("config.reload.failed", slog.String("path", w.base), slog.String("error", err.Error()))
		return
	}

	w.mu.Lock()
	w.current = cfg
	listeners := append(([]func(*Config))(nil), w.listeners...)
	w.mu.Unlock()

	w.logger.Info("config.reload", slog.String("path", w.base))
	for _, fn := range listeners {
		fn(cfg)
	}
}

// WatchConfig creates a watcher for path and profile and starts it.
func WatchConfig(ctx context.Context, path, profile string, opts ...WatcherOption) (*Watcher, *Config, error) {
	opts = append([]WatcherOption{WithWatchProfile(profile)}, opts...)
	w, err := NewWatcher(path, opts...)
	if err != nil {
		return nil, nil, err
	}
	w.Start(ctx)
	return w, w.Config(), nil
}
