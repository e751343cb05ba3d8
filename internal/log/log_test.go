package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewWithWriter(t *testing.T) {
	t.Run("text format", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewWithWriter(&buf, Config{Level: slog.LevelInfo})

		logger.Info("hello", "key", "value")
		out := buf.String()
		if !strings.Contains(out, "hello") || !strings.Contains(out, "key=value") {
			t.Errorf("unexpected output: %q", out)
		}
	})

	t.Run("json format", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewWithWriter(&buf, Config{Level: slog.LevelInfo, JSON: true})

		logger.Info("hello")
		if !strings.Contains(buf.String(), `"msg":"hello"`) {
			t.Errorf("unexpected output: %q", buf.String())
		}
	})

	t.Run("level filtering", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewWithWriter(&buf, Config{Level: slog.LevelWarn})

		logger.Info("suppressed")
		logger.Warn("emitted")
		out := buf.String()
		if strings.Contains(out, "suppressed") {
			t.Error("info record passed a warn-level logger")
		}
		if !strings.Contains(out, "emitted") {
			t.Error("warn record missing")
		}
	})
}

func TestNewNop(t *testing.T) {
	logger := NewNop()
	// Must not panic; output goes nowhere.
	logger.Info("discarded", "key", "value")
	logger.Error("also discarded")
}
