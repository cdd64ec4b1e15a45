package observability

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/spec-kit/ticketbot/internal/config"
)

func TestNewLoggerLevels(t *testing.T) {
	cases := []struct {
		level string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"WARN", zapcore.WarnLevel},
		{"bogus", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}
	for _, tc := range cases {
		logger, err := NewLogger(config.LoggerConfig{Level: tc.level, Service: "ticketbot"})
		if err != nil {
			t.Fatalf("level %q: %v", tc.level, err)
		}
		if !logger.Core().Enabled(tc.want) || (tc.want > zapcore.DebugLevel && logger.Core().Enabled(tc.want-1)) {
			t.Fatalf("level %q: logger not at %v", tc.level, tc.want)
		}
	}
}

func TestNewLoggerFormats(t *testing.T) {
	if _, err := NewLogger(config.LoggerConfig{Format: "console"}); err != nil {
		t.Fatalf("console: %v", err)
	}
	if _, err := NewLogger(config.LoggerConfig{Format: "xml"}); err == nil {
		t.Fatalf("expected an error for an unknown format")
	}
}
