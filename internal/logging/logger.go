// Package logging builds the zap logger shared by the CLI and the load runtime.
package logging

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Supported encodings.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// New configures a zap logger at the given level and encoding.
//
// An empty or unknown level falls back to info. Logs go to stderr so that
// they never interleave with the live progress display on stdout.
func New(level, format string) (*zap.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	encoding := strings.ToLower(strings.TrimSpace(format))
	switch encoding {
	case "":
		encoding = FormatConsole
	case FormatJSON, FormatConsole:
	default:
		return nil, fmt.Errorf("unknown log format: %s", format)
	}

	cfg := zap.Config{
		Level:             zap.NewAtomicLevelAt(lvl),
		Development:       false,
		DisableStacktrace: true,
		Sampling: &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		},
		Encoding:         encoding,
		EncoderConfig:    encoderConfig(encoding),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return cfg.Build()
}

// ParseLevel parses a textual log level ("debug", "info", ...).
func ParseLevel(level string) (zapcore.Level, error) {
	var lvl zapcore.Level
	s := strings.ToLower(strings.TrimSpace(level))
	if s == "" {
		return zapcore.InfoLevel, nil
	}
	if err := lvl.Set(s); err != nil {
		return zapcore.InfoLevel, err
	}
	return lvl, nil
}

// Nop returns a logger that discards everything. Components given a nil
// logger fall back to it.
func Nop() *zap.Logger {
	return zap.NewNop()
}

func encoderConfig(encoding string) zapcore.EncoderConfig {
	levelEncoder := zapcore.LowercaseLevelEncoder
	if encoding == FormatConsole {
		levelEncoder = zapcore.CapitalLevelEncoder
	}

	return zapcore.EncoderConfig{
		TimeKey:       "ts",
		LevelKey:      "level",
		NameKey:       "logger",
		CallerKey:     "caller",
		MessageKey:    "msg",
		StacktraceKey: "stack",
		LineEnding:    zapcore.DefaultLineEnding,
		EncodeLevel:   levelEncoder,
		EncodeTime: func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(t.UTC().Format(time.RFC3339Nano))
		},
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}
