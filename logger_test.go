//go:build !tinygo

package sx126x

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestSlogLogger(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	SetLogger(NewSlogLogger(l))
	defer SetLogger(nil)

	globalLogger.Debug("write [80] [00]")
	if buf.Len() != 0 {
		t.Errorf("Expected debug to be filtered, got %q", buf.String())
	}

	globalLogger.Info("Ping Success")
	out := buf.String()
	if !strings.Contains(out, "msg=\"Ping Success\"") || !strings.Contains(out, "component=sx126x") {
		t.Errorf("Unexpected log line %q", out)
	}
}

func TestSetLoggerNil(t *testing.T) {
	SetLogger(nil)
	if _, ok := globalLogger.(*nopLogger); !ok {
		t.Errorf("Expected the nop logger, got %T", globalLogger)
	}
}
