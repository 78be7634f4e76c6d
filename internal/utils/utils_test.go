package utils

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLoggerToWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, "info", true)
	logger.Debug("hidden")
	logger.Info("visible", slog.String("k", "v"))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line should be filtered: %s", out)
	}
	if !strings.Contains(out, `"msg":"visible"`) || !strings.Contains(out, `"k":"v"`) {
		t.Fatalf("unexpected log output: %s", out)
	}
}

func TestExitCode(t *testing.T) {
	if ExitCode(nil) != ExitOK {
		t.Fatalf("nil error should exit 0")
	}
	if ExitCode(errors.New("boom")) != ExitFailure {
		t.Fatalf("plain error should exit 1")
	}
	wrapped := fmt.Errorf("outer: %w", NewAppErrorCode("fetch", "backend unavailable", ExitUnavailable, errors.New("refused")))
	if ExitCode(wrapped) != ExitUnavailable {
		t.Fatalf("expected unavailable exit code, got %d", ExitCode(wrapped))
	}
	if !strings.Contains(wrapped.Error(), "fetch: backend unavailable: refused") {
		t.Fatalf("unexpected message: %s", wrapped.Error())
	}
}
