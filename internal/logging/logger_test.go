package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    zapcore.Level
		wantErr bool
	}{
		{input: "", want: zapcore.InfoLevel},
		{input: "debug", want: zapcore.DebugLevel},
		{input: " WARN ", want: zapcore.WarnLevel},
		{input: "error", want: zapcore.ErrorLevel},
		{input: "loud", want: zapcore.InfoLevel, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNew(t *testing.T) {
	for _, format := range []string{"", FormatJSON, FormatConsole} {
		logger, err := New("debug", format)
		if err != nil {
			t.Fatalf("New(debug, %q) error = %v", format, err)
		}
		if !logger.Core().Enabled(zapcore.DebugLevel) {
			t.Errorf("New(debug, %q) did not enable debug level", format)
		}
	}

	if _, err := New("info", "xml"); err == nil {
		t.Error("New(info, xml) expected error for unknown format")
	}
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	logger, err := New("verbose", FormatJSON)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("unknown level should not enable debug")
	}
	if !logger.Core().Enabled(zapcore.InfoLevel) {
		t.Error("unknown level should fall back to info")
	}
}
