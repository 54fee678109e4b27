package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"valves": {"webhook_path": "before"}}`), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	reloaded := make(chan *Config, 1)
	watcher, err := NewWatcher(path, func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	}, nil)
	if err != nil {
		t.Fatalf("NewWatcher error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = watcher.Run(ctx)
	}()

	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte(`{"valves": {"webhook_path": "after"}}`), 0o600); err != nil {
		t.Fatalf("rewrite config file: %v", err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Valves.WebhookPath != "after" {
			t.Fatalf("webhook_path = %q, want %q", cfg.Valves.WebhookPath, "after")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	cancel()
	<-done
}

func TestWatcherSkipsMalformedRewrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"valves": {}}`), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	reloaded := make(chan *Config, 1)
	watcher, err := NewWatcher(path, func(cfg *Config) { reloaded <- cfg }, nil)
	if err != nil {
		t.Fatalf("NewWatcher error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = watcher.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte(`{not json`), 0o600); err != nil {
		t.Fatalf("rewrite config file: %v", err)
	}

	select {
	case <-reloaded:
		t.Fatal("malformed rewrite triggered a reload")
	case <-time.After(time.Second):
	}
}

func TestNewWatcherValidation(t *testing.T) {
	if _, err := NewWatcher("", func(*Config) {}, nil); err == nil {
		t.Fatal("expected error for empty path")
	}
	if _, err := NewWatcher("config.json", nil, nil); err == nil {
		t.Fatal("expected error for nil callback")
	}
}
