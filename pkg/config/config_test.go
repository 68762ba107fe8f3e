package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clausemark.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Expected default config to be valid: %v", err)
	}
	if cfg.Align.PrefixLength != 20 || cfg.Align.RecoveryWindow != 10 || cfg.Align.MinExcerptLength != 3 {
		t.Errorf("Unexpected align defaults: %+v", cfg.Align)
	}
	if cfg.Render.NarrowViewportWidth != 768 || cfg.Render.PanelScrollDelay != 300*time.Millisecond {
		t.Errorf("Unexpected render defaults: %+v", cfg.Render)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Align.PrefixLength != Default().Align.PrefixLength {
		t.Errorf("Expected defaults for a missing file")
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
align:
  prefix_length: 12
render:
  panel_scroll_delay: 150ms
  class_prefix: cm
log:
  mode: nop
store:
  dir: /tmp/analyses
  cache_ttl: 5m
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Align.PrefixLength != 12 {
		t.Errorf("Expected prefix length 12, got %d", cfg.Align.PrefixLength)
	}
	if cfg.Align.RecoveryWindow != 10 {
		t.Errorf("Expected untouched recovery window to keep its default, got %d", cfg.Align.RecoveryWindow)
	}
	if cfg.Render.PanelScrollDelay != 150*time.Millisecond {
		t.Errorf("Expected 150ms delay, got %s", cfg.Render.PanelScrollDelay)
	}
	if cfg.Render.ClassPrefix != "cm" || cfg.Log.Mode != "nop" {
		t.Errorf("Unexpected render/log values: %+v %+v", cfg.Render, cfg.Log)
	}
	if cfg.Store.Dir != "/tmp/analyses" || cfg.Store.CacheTTL != 5*time.Minute {
		t.Errorf("Unexpected store values: %+v", cfg.Store)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvLogMode, "production")
	t.Setenv(EnvStoreDir, "/srv/clausemark")

	path := writeConfig(t, "log:\n  mode: nop\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Log.Mode != "production" {
		t.Errorf("Expected env log mode, got %q", cfg.Log.Mode)
	}
	if cfg.Store.Dir != "/srv/clausemark" {
		t.Errorf("Expected env store dir, got %q", cfg.Store.Dir)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	path := writeConfig(t, `
align:
  prefix_length: 0
  recovery_window: -2
log:
  mode: loud
`)

	_, err := Load(path)
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("Expected ErrInvalid, got %v", err)
	}
	for _, field := range []string{"align.prefix_length", "align.recovery_window", "log.mode"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("Expected error to mention %s: %v", field, err)
		}
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := writeConfig(t, "align: [unclosed")
	if _, err := Load(path); err == nil {
		t.Error("Expected parse error")
	}
}

func TestOptions(t *testing.T) {
	cfg := Default()
	if len(cfg.AlignerOptions()) != 3 {
		t.Error("Expected three aligner options")
	}
	if len(cfg.SessionOptions()) != 3 {
		t.Error("Expected three session options")
	}
}
