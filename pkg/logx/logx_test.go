package logx

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func setupTestLogger() *bytes.Buffer {
	var buf bytes.Buffer
	logWriterLock.Lock()
	logWriter = &buf
	logWriterLock.Unlock()
	return &buf
}

func resetTestLogger() {
	logWriterLock.Lock()
	logWriter = nil
	logWriterLock.Unlock()
}

func TestLogFormat(t *testing.T) {
	buf := setupTestLogger()
	defer resetTestLogger()

	NewLogger("hub").Info("Transition %s -> %s", "HUB", "CHAT")

	output := buf.String()
	if !strings.Contains(output, "[hub]") {
		t.Errorf("Expected component in output, got: %s", output)
	}
	if !strings.Contains(output, "INFO: Transition HUB -> CHAT") {
		t.Errorf("Expected formatted message, got: %s", output)
	}

	start := strings.Index(output, "[")
	end := strings.Index(output, "]")
	if _, err := time.Parse(timestampFormat, output[start+1:end]); err != nil {
		t.Errorf("Invalid timestamp in %q: %v", output, err)
	}
}

func TestLogLevels(t *testing.T) {
	logger := NewLogger("dispatch")
	tests := []struct {
		level   Level
		logFunc func(string, ...any)
	}{
		{LevelDebug, logger.Debug},
		{LevelInfo, logger.Info},
		{LevelWarn, logger.Warn},
		{LevelError, logger.Error},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			buf := setupTestLogger()
			defer resetTestLogger()
			if tt.level == LevelDebug {
				SetDebug(true)
				defer SetDebug(false)
			}

			tt.logFunc("test message")

			if !strings.Contains(buf.String(), string(tt.level)) {
				t.Errorf("Expected level %s in output, got: %s", tt.level, buf.String())
			}
		})
	}
}

func TestDebugSuppressedWhenDisabled(t *testing.T) {
	buf := setupTestLogger()
	defer resetTestLogger()
	SetDebug(false)

	NewLogger("planner").Debug("hidden")
	Debug(context.Background(), "planner", "hidden too")

	if buf.Len() != 0 {
		t.Errorf("Expected no output, got: %s", buf.String())
	}
}

func TestDebugDomainFiltering(t *testing.T) {
	buf := setupTestLogger()
	defer resetTestLogger()
	SetDebug(true, "dispatch")
	defer SetDebug(false)

	ctx := ContextWithComponent(context.Background(), "resolver")
	Debug(ctx, "dispatch", "routing to %s", "SLIDE_MASTER")
	Debug(ctx, "planner", "should be filtered")

	output := buf.String()
	if !strings.Contains(output, "[resolver]") || !strings.Contains(output, "[dispatch] routing to SLIDE_MASTER") {
		t.Errorf("Expected dispatch debug line, got: %s", output)
	}
	if strings.Contains(output, "should be filtered") {
		t.Errorf("Expected planner domain to be filtered, got: %s", output)
	}
}

func TestWithComponent(t *testing.T) {
	buf := setupTestLogger()
	defer resetTestLogger()

	original := NewLogger("hub")
	derived := original.WithComponent("hub-web")
	original.Info("one")
	derived.Info("two")

	if original.Component() != "hub" || derived.Component() != "hub-web" {
		t.Fatalf("unexpected components %q %q", original.Component(), derived.Component())
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d", len(lines))
	}
}

func TestLogBufferFiltering(t *testing.T) {
	buffer := &InMemoryLogBuffer{maxSize: 2}
	buffer.AddLogEntry(&LogEntry{Timestamp: "2026-01-01T00:00:00.000Z", Component: "hub", Message: "a"})
	buffer.AddLogEntry(&LogEntry{Timestamp: "2026-01-01T00:00:01.000Z", Component: "dispatch", Message: "b"})
	buffer.AddLogEntry(&LogEntry{Timestamp: "2026-01-01T00:00:02.000Z", Component: "hub", Message: "c"})

	all := buffer.GetLogEntries("", time.Time{})
	if len(all) != 2 || all[0].Message != "b" {
		t.Fatalf("Expected ring buffer to keep last two entries, got %+v", all)
	}

	hubOnly := buffer.GetLogEntries("HUB", time.Time{})
	if len(hubOnly) != 1 || hubOnly[0].Message != "c" {
		t.Fatalf("Expected case-insensitive component filter, got %+v", hubOnly)
	}

	since, _ := time.Parse(timestampFormat, "2026-01-01T00:00:02.000Z")
	recent := buffer.GetLogEntries("", since)
	if len(recent) != 1 {
		t.Fatalf("Expected one entry since cutoff, got %d", len(recent))
	}
}

func TestWrap(t *testing.T) {
	_ = setupTestLogger()
	defer resetTestLogger()

	if Wrap(nil, "noop") != nil {
		t.Error("Expected nil for nil error")
	}
	base := errors.New("boom")
	err := Wrap(base, "ledger open")
	if !errors.Is(err, base) {
		t.Errorf("Expected wrapped error to unwrap to base")
	}
	if err.Error() != "ledger open: boom" {
		t.Errorf("unexpected message %q", err.Error())
	}
}
