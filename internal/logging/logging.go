// Package logging builds the process logger.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config returns a zap.Config for the given level and encoding. Logs go to
// stderr so stdout stays free for command output and the MCP protocol.
func Config(level string, json bool) (zap.Config, error) {
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zap.Config{}, fmt.Errorf("parsing log level: %w", err)
	}

	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder

	encoding := "console"
	if json {
		encoding = "json"
	} else {
		enc.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	return zap.Config{
		Level:            zap.NewAtomicLevelAt(lvl),
		Encoding:         encoding,
		EncoderConfig:    enc,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}, nil
}

// New builds a logger. An empty level means info.
func New(level string, json bool) (*zap.Logger, error) {
	if level == "" {
		level = "info"
	}
	cfg, err := Config(level, json)
	if err != nil {
		return nil, err
	}
	return cfg.Build()
}
