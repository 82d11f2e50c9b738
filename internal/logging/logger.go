// Package logging provides zap logger helpers.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap.Logger configured for development or production.
func New(development bool) (*zap.Logger, error) {
	if development {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		logger, err := cfg.Build()
		if err != nil {
			return nil, fmt.Errorf("build dev logger: %w", err)
		}
		return logger, nil
	}
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build prod logger: %w", err)
	}
	return logger, nil
}

// InitLogger builds a logger, installs it as the zap globals, and returns a
// func that restores the previous globals.
func InitLogger(development, verbose bool) (*zap.Logger, func(), error) {
	logger, err := New(development)
	if err != nil {
		return nil, nil, err
	}
	if !verbose {
		logger = logger.WithOptions(zap.IncreaseLevel(zapcore.WarnLevel))
	}
	undo := zap.ReplaceGlobals(logger)
	return logger, func() {
		undo()
		_ = logger.Sync()
	}, nil
}
