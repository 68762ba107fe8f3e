// Package logging builds the zap loggers used by the aligner, the watcher and
// the command line.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger modes accepted by New.
const (
	ModeProduction  = "production"
	ModeDevelopment = "development"
	ModeNop         = "nop"
)

// New returns a logger for the given mode. Production logs JSON at info level,
// development logs console output at debug level and nop discards everything.
func New(mode string) (*zap.Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "prod", ModeProduction:
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "", "dev", ModeDevelopment:
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	case "none", ModeNop:
		return zap.NewNop(), nil
	default:
		return nil, fmt.Errorf("unknown log mode %q", mode)
	}

	// Logs go to stderr so command output on stdout stays machine readable.
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building %s logger: %w", mode, err)
	}
	return logger, nil
}

// ValidMode reports whether New accepts mode.
func ValidMode(mode string) bool {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "prod", ModeProduction, "dev", ModeDevelopment, "none", ModeNop:
		return true
	}
	return false
}
