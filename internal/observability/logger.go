package observability

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceName is attached to every log line.
const ServiceName = "tm-autoreply"

// Log encodings accepted by NewLogger.
const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

// NewLogger builds the process logger. The console format is meant for a
// terminal attached to the shop machine; json is what log shippers read.
func NewLogger(level string, format string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(orDefault(level, "info"))); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	encoding := orDefault(format, LogFormatJSON)
	if encoding != LogFormatJSON && encoding != LogFormatConsole {
		return nil, fmt.Errorf("invalid log format %q", format)
	}

	encoder := zap.NewProductionEncoderConfig()
	encoder.TimeKey = "timestamp"
	encoder.EncodeTime = zapcore.ISO8601TimeEncoder
	if encoding == LogFormatConsole {
		encoder.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	cfg := zap.Config{
		Level:             zap.NewAtomicLevelAt(lvl),
		Encoding:          encoding,
		EncoderConfig:     encoder,
		OutputPaths:       []string{"stderr"},
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: true,
		Sampling:          &zap.SamplingConfig{Initial: 100, Thereafter: 100},
		InitialFields:     map[string]any{"service": ServiceName},
	}

	logger, err := cfg.Build(zap.AddCaller())
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

func orDefault(value string, fallback string) string {
	if v := strings.ToLower(strings.TrimSpace(value)); v != "" {
		return v
	}
	return fallback
}
