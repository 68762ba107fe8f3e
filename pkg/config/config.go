// Package config loads clausemark settings from a YAML file with environment
// overrides applied on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/coolbeans/clausemark/pkg/align"
	"github.com/coolbeans/clausemark/pkg/highlight"
	"github.com/coolbeans/clausemark/pkg/logging"
	"github.com/coolbeans/clausemark/pkg/risk"
	"github.com/coolbeans/clausemark/pkg/store"
)

// Environment variables that override file values.
const (
	EnvLogMode  = "CLAUSEMARK_LOG_MODE"
	EnvStoreDir = "CLAUSEMARK_STORE_DIR"
)

// ErrInvalid is returned when a loaded configuration fails validation.
var ErrInvalid = errors.New("invalid configuration")

// Config is the full set of tunables.
type Config struct {
	Align  AlignConfig  `yaml:"align"`
	Render RenderConfig `yaml:"render"`
	Log    LogConfig    `yaml:"log"`
	Store  StoreConfig  `yaml:"store"`
}

// AlignConfig tunes the span aligner.
type AlignConfig struct {
	MinExcerptLength int `yaml:"min_excerpt_length"`
	PrefixLength     int `yaml:"prefix_length"`
	RecoveryWindow   int `yaml:"recovery_window"`
}

// RenderConfig tunes the highlight session and HTML output.
type RenderConfig struct {
	NarrowViewportWidth int           `yaml:"narrow_viewport_width"`
	PanelScrollDelay    time.Duration `yaml:"panel_scroll_delay"`
	ClassPrefix         string        `yaml:"class_prefix"`
}

// LogConfig selects the logger mode.
type LogConfig struct {
	Mode string `yaml:"mode"`
}

// StoreConfig locates persisted analyses.
type StoreConfig struct {
	Dir      string        `yaml:"dir"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Align: AlignConfig{
			MinExcerptLength: risk.DefaultMinExcerptLength,
			PrefixLength:     align.DefaultPrefixLength,
			RecoveryWindow:   align.DefaultRecoveryWindow,
		},
		Render: RenderConfig{
			NarrowViewportWidth: highlight.DefaultNarrowWidth,
			PanelScrollDelay:    highlight.DefaultPanelDelay,
			ClassPrefix:         highlight.DefaultClassPrefix,
		},
		Log: LogConfig{
			Mode: logging.ModeDevelopment,
		},
		Store: StoreConfig{
			Dir:      "analyses",
			CacheTTL: store.DefaultCacheTTL,
		},
	}
}

// Load reads the YAML file at path over the defaults. An empty path or a
// missing file yields the defaults. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing YAML: %w", err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvLogMode)); v != "" {
		c.Log.Mode = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvStoreDir)); v != "" {
		c.Store.Dir = v
	}
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	var problems []string

	if c.Align.MinExcerptLength < 1 {
		problems = append(problems, "align.min_excerpt_length must be at least 1")
	}
	if c.Align.PrefixLength < 1 {
		problems = append(problems, "align.prefix_length must be at least 1")
	}
	if c.Align.RecoveryWindow < 0 {
		problems = append(problems, "align.recovery_window must not be negative")
	}
	if c.Render.NarrowViewportWidth < 0 {
		problems = append(problems, "render.narrow_viewport_width must not be negative")
	}
	if c.Render.PanelScrollDelay < 0 {
		problems = append(problems, "render.panel_scroll_delay must not be negative")
	}
	if strings.TrimSpace(c.Render.ClassPrefix) == "" || strings.ContainsAny(c.Render.ClassPrefix, " \t\"'<>") {
		problems = append(problems, "render.class_prefix must be a single CSS identifier")
	}
	if !logging.ValidMode(c.Log.Mode) {
		problems = append(problems, fmt.Sprintf("log.mode %q is not one of development, production, nop", c.Log.Mode))
	}
	if c.Store.CacheTTL < 0 {
		problems = append(problems, "store.cache_ttl must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// AlignerOptions converts the align section into aligner options.
func (c *Config) AlignerOptions() []align.Option {
	return []align.Option{
		align.WithMinExcerptLength(c.Align.MinExcerptLength),
		align.WithPrefixLength(c.Align.PrefixLength),
		align.WithRecoveryWindow(c.Align.RecoveryWindow),
	}
}

// SessionOptions converts the render section into highlight session options.
func (c *Config) SessionOptions() []highlight.SessionOption {
	return []highlight.SessionOption{
		highlight.WithNarrowWidth(c.Render.NarrowViewportWidth),
		highlight.WithPanelDelay(c.Render.PanelScrollDelay),
		highlight.WithClassPrefix(c.Render.ClassPrefix),
	}
}
