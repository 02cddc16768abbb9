package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
	if cfg.AppName != "capacity-management" {
		t.Errorf("unexpected default app name %q", cfg.AppName)
	}
	if cfg.PollInterval() != 5*time.Second {
		t.Errorf("expected 5s poll interval, got %s", cfg.PollInterval())
	}
	if cfg.DeletionTimeout() != 300*time.Second {
		t.Errorf("expected 300s deletion timeout, got %s", cfg.DeletionTimeout())
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AppName != Default().AppName {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dbxdeploy.yaml")
	content := `
app_name: analytics-portal
deletion_timeout_seconds: 60
exclude_patterns:
  - "*.tmp"
history_path: /tmp/history.db
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AppName != "analytics-portal" {
		t.Errorf("expected override, got %q", cfg.AppName)
	}
	if cfg.DeletionTimeout() != time.Minute {
		t.Errorf("expected 60s timeout, got %s", cfg.DeletionTimeout())
	}
	if cfg.NPMBin != "npm" {
		t.Errorf("expected untouched default, got %q", cfg.NPMBin)
	}
	if len(cfg.ExcludePatterns) != 1 || cfg.ExcludePatterns[0] != "*.tmp" {
		t.Errorf("unexpected exclude patterns: %v", cfg.ExcludePatterns)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dbxdeploy.yaml")
	if err := os.WriteFile(path, []byte("poll_interval_seconds: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for zero poll interval")
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dbxdeploy.yaml")
	if err := os.WriteFile(path, []byte("app_name: [unclosed\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
