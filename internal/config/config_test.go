package config

import (
	"os"
	"path/filepath"
	"testing"
)

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	for _, key := range []string{"HTTP_PORT", "PORT", "DATA_DIR", "REPORTS_DIR", "JOURNAL_PATH", "DB_PATH", "TIPS_CATALOG_PATH", "MAX_TIPS", "WORKER_COUNT", "QUEUE_SIZE", "ENABLE_WATCHER", "STRICT_CONFIG", "GOOGLE_CLOUD_PROJECT", "PROJECT"} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.HTTPPort != defaultPort {
		t.Fatalf("expected default port, got %s", cfg.HTTPPort)
	}
	if cfg.MaxTips != 3 {
		t.Fatalf("expected 3 tips by default, got %d", cfg.MaxTips)
	}
	if cfg.JournalPath != filepath.Join(defaultDataDir, defaultJournalFile) {
		t.Fatalf("unexpected journal path %s", cfg.JournalPath)
	}
	if !cfg.EnableWatcher {
		t.Fatal("watcher should default to enabled")
	}
	if cfg.AssistantEnabled() {
		t.Fatal("assistant should be disabled without a project")
	}
}

func TestHTTPPortFormatting(t *testing.T) {
	isolate(t)
	t.Setenv("HTTP_PORT", "9000")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.HTTPPort != ":9000" {
		t.Fatalf("expected HTTP_PORT to include colon, got %s", cfg.HTTPPort)
	}
}

func TestClamping(t *testing.T) {
	isolate(t)
	t.Setenv("MAX_TIPS", "500")
	t.Setenv("WORKER_COUNT", "6")
	t.Setenv("QUEUE_SIZE", "2")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.MaxTips != maxMaxTips {
		t.Fatalf("expected max tips clamp %d, got %d", maxMaxTips, cfg.MaxTips)
	}
	if cfg.QueueSize < cfg.WorkerCount {
		t.Fatalf("queue size should be at least workers, got %d < %d", cfg.QueueSize, cfg.WorkerCount)
	}
}

func TestFileConfigAndEnvPrecedence(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "data_dir: /srv/drivesafe\nmax_tips: 5\nenable_watcher: false\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("MAX_TIPS", "4")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.DataDir != "/srv/drivesafe" {
		t.Fatalf("data dir from file not applied: %s", cfg.DataDir)
	}
	if cfg.ReportsDir != filepath.Join("/srv/drivesafe", "inbox") {
		t.Fatalf("reports dir should derive from data dir: %s", cfg.ReportsDir)
	}
	if cfg.DBPath != filepath.Join("/srv/drivesafe", "jobs.db") {
		t.Fatalf("db path should derive from data dir: %s", cfg.DBPath)
	}
	if cfg.MaxTips != 4 {
		t.Fatalf("env should override file, got %d", cfg.MaxTips)
	}
	if cfg.EnableWatcher {
		t.Fatal("file should disable the watcher")
	}
}

func TestStrictConfigFailsOnBadFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("max_tips: [\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("STRICT_CONFIG", "true")
	if _, err := Load(); err == nil {
		t.Fatal("expected strict config error")
	}
}
