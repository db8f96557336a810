// Package logging builds the process logger and writes the per-turn
// decision provenance used for audit.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// #region logger
// New builds a zap logger. json selects the production encoder, otherwise a
// console encoder is used.
func New(level string, json bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.TrimSpace(level))
	if err != nil && level != "" {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	if level == "" {
		lvl = zapcore.InfoLevel
	}

	config := zap.NewProductionConfig()
	if !json {
		config = zap.NewDevelopmentConfig()
	}
	config.Level = zap.NewAtomicLevelAt(lvl)
	config.DisableStacktrace = true

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *zap.Logger {
	return zap.NewNop()
}

// #endregion logger
