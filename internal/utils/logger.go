package utils

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultLogLevel is used when no level is configured.
const DefaultLogLevel = "info"

// NewApplicationLogger constructs a zap logger configured for human-readable console output
// at the requested level.
func NewApplicationLogger(level string) (*zap.Logger, error) {
	normalizedLevel := strings.TrimSpace(strings.ToLower(level))
	if normalizedLevel == "" {
		normalizedLevel = DefaultLogLevel
	}
	atomicLevel, parseError := zap.ParseAtomicLevel(normalizedLevel)
	if parseError != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, parseError)
	}

	config := zap.NewProductionConfig()
	config.Level = atomicLevel
	config.Encoding = "console"
	config.DisableCaller = true
	config.DisableStacktrace = true
	config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.NameKey = ""
	config.EncoderConfig.CallerKey = ""
	config.EncoderConfig.MessageKey = "message"
	config.EncoderConfig.StacktraceKey = ""
	return config.Build()
}
