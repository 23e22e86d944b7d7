package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != ":8080" || cfg.NATS.Subject != "cti.refine.extract" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Inbox.Debounce != 200*time.Millisecond || cfg.HTTP.RateWindow != time.Second {
		t.Fatalf("durations not decoded: %+v %+v", cfg.Inbox, cfg.HTTP)
	}
	if cfg.Batch.Workers != 8 || cfg.Batch.ShardPow != 4 {
		t.Fatalf("batch defaults %+v", cfg.Batch)
	}
}

func TestFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	data := []byte("http:\n  addr: \":9999\"\nbatch:\n  workers: 2\ninbox:\n  operation: extractAllHashes\n" +
		"otel:\n  enabled: true\n  environment: staging\n  attributes:\n    team: cti\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CTIREFINE_BATCH_WORKERS", "3")
	t.Setenv("CTIREFINE_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != ":9999" {
		t.Errorf("addr %q", cfg.HTTP.Addr)
	}
	if cfg.Batch.Workers != 3 {
		t.Errorf("env should win over file, got %d", cfg.Batch.Workers)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level %q", cfg.Log.Level)
	}
	if cfg.Inbox.Operation != "extractAllHashes" {
		t.Errorf("inbox operation %q", cfg.Inbox.Operation)
	}
	if !cfg.OTel.Enabled || cfg.OTel.Environment != "staging" || cfg.OTel.Attributes["team"] != "cti" {
		t.Errorf("otel section %+v", cfg.OTel)
	}
}

func TestMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing explicit config")
	}
}
