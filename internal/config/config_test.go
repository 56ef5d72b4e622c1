package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ListenAddr != ":8080" {
		t.Errorf("unexpected listen addr %q", cfg.ListenAddr)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("unexpected log level %q", cfg.LogLevel)
	}
	if cfg.StaleAfterSeconds != 120 || cfg.ConnectorPollSeconds != 300 {
		t.Errorf("unexpected cadence defaults: %+v", cfg)
	}
	if cfg.Database() != filepath.Join("./data", "lanwatch.db") {
		t.Errorf("unexpected database path %q", cfg.Database())
	}
}

func TestLoadFromPathAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lanwatch.yaml")
	content := "listenAddr: \"127.0.0.1:9999\"\ndatabasePath: /var/lib/lanwatch/custom.db\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded != path {
		t.Errorf("unexpected loaded path %q", loaded)
	}
	if cfg.ListenAddr != "127.0.0.1:9999" {
		t.Errorf("explicit value lost: %q", cfg.ListenAddr)
	}
	if cfg.Database() != "/var/lib/lanwatch/custom.db" {
		t.Errorf("database override lost: %q", cfg.Database())
	}
	if cfg.LogLevel != "info" {
		t.Errorf("default not applied: %q", cfg.LogLevel)
	}
}

func TestLoadFromPathRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lanwatch.yaml")
	if err := os.WriteFile(path, []byte("listenAddr: [not: a: string"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, _, err := LoadFromPath(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadHonorsEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(path, []byte("logLevel: debug\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv(EnvConfigPath, path)

	cfg, loaded, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded != path || cfg.LogLevel != "debug" {
		t.Fatalf("env override not honored: path=%q cfg=%+v", loaded, cfg)
	}
}
