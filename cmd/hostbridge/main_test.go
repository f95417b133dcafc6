package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestRun_InvalidConfig verifies run fails with an invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("HOSTBRIDGE_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_UnknownDriver verifies run rejects an unrecognised gateway driver.
func TestRun_UnknownDriver(t *testing.T) {
	configPath := writeConfig(t, `
gateway:
  driver: carrier-pigeon

journal:
  enabled: false

logging:
  level: error
  format: text
`)
	t.Setenv("HOSTBRIDGE_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with unknown gateway driver")
	}
}

// TestRun_LoopbackCleanShutdown boots the full service with the loopback
// driver and verifies it exits cleanly on context cancellation.
func TestRun_LoopbackCleanShutdown(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := writeConfig(t, `
api:
  host: "127.0.0.1"
  port: 18790
  timeouts:
    read: 5
    write: 5
    idle: 5

gateway:
  driver: loopback

journal:
  enabled: true
  database:
    path: "`+filepath.Join(tmpDir, "journal.db")+`"
    wal_mode: true
    busy_timeout: 5
  max_events: 1000

telemetry:
  enabled: false

logging:
  level: error
  format: text
  output: stdout
`)
	t.Setenv("HOSTBRIDGE_CONFIG", configPath)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- run(ctx)
	}()

	// Give the service a moment to finish startup, then signal shutdown.
	time.Sleep(500 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run() error: %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not shut down after cancellation")
	}
}

func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("HOSTBRIDGE_CONFIG", "")

	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}
}

func TestGetConfigPath_Env(t *testing.T) {
	t.Setenv("HOSTBRIDGE_CONFIG", "/etc/hostbridge/config.yaml")

	if got := getConfigPath(); got != "/etc/hostbridge/config.yaml" {
		t.Errorf("getConfigPath() = %q, want /etc/hostbridge/config.yaml", got)
	}
}

// writeConfig writes a YAML config to a temp file and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}
