// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestWatcherDetectsChanges(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "log:\n  level: info\n")

	watcher, err := NewWatcher(path, WithWatchInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	changes := make(chan *Config, 1)
	watcher.OnChange(func(cfg *Config) {
		select {
		case changes <- cfg:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watcher.Start(ctx)
	defer watcher.Stop()

	if got := watcher.Config().Log.Level; got != "info" {
		t.Fatalf("expected initial level info, got %q", got)
	}

	// Make sure the new modification time is strictly later.
	future := time.Now().Add(2 * time.Second)
	if err := os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	select {
	case cfg := <-changes:
		if cfg.Log.Level != "debug" {
			t.Errorf("expected level debug, got %q", cfg.Log.Level)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for config change notification")
	}
}

func TestWatcherKeepsConfigOnInvalidReload(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "agent:\n  max_turns: 4\n")

	watcher, err := NewWatcher(path, WithWatchInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	var calls atomic.Int32
	watcher.OnChange(func(*Config) { calls.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watcher.Start(ctx)
	defer watcher.Stop()

	future := time.Now().Add(2 * time.Second)
	if err := os.WriteFile(path, []byte("agent:\n  max_turns: 0\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	time.Sleep(200 * time.Millisecond)

	if calls.Load() != 0 {
		t.Fatalf("listeners must not see an invalid config")
	}
	if got := watcher.Config().Agent.MaxTurns; got != 4 {
		t.Fatalf("expected previous max turns 4, got %d", got)
	}
}

func TestWatcherStops(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "llm: {}\n")

	watcher, err := NewWatcher(path, WithWatchInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	watcher.Start(context.Background())

	done := make(chan struct{})
	go func() {
		watcher.Stop()
		watcher.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher.Stop() did not complete in time")
	}
}

func TestWatchConfigWithProfile(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "config.yaml", "llm:\n  model: base\n")
	if err := os.WriteFile(filepath.Join(dir, "config.dev.yaml"), []byte("llm:\n  model: dev\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watcher, cfg, err := WatchConfig(ctx, base, "dev", WithWatchInterval(50*time.Millisecond))
	if err != nil {
		t.Fatalf("failed to watch config: %v", err)
	}
	defer watcher.Stop()

	if cfg.LLM.Model != "dev" {
		t.Errorf("expected the dev profile model, got %q", cfg.LLM.Model)
	}
}
