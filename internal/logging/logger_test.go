package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestConsoleHandlerPromotesComponent(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelInfo)

	logger := slog.New(newConsoleHandler(&buf, levelVar, false))
	logger = NewComponentLogger(logger, "merge")
	logger.Info("moved child", String("target_id", "f1"), Int("moves", 3))

	line := buf.String()
	if !strings.Contains(line, "INFO merge: moved child") {
		t.Fatalf("unexpected line: %q", line)
	}
	if !strings.Contains(line, "target_id=f1") || !strings.Contains(line, "moves=3") {
		t.Fatalf("missing attrs in line: %q", line)
	}
	if strings.Contains(line, "component=") {
		t.Fatalf("component attr should be promoted, not repeated: %q", line)
	}
}

func TestConsoleHandlerQuotesValuesWithSpaces(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelDebug)

	logger := slog.New(newConsoleHandler(&buf, levelVar, false))
	logger.Debug("match", String("folder", "Smith Agency (1)"))

	if !strings.Contains(buf.String(), `folder="Smith Agency (1)"`) {
		t.Fatalf("expected quoted value, got %q", buf.String())
	}
}

func TestConsoleHandlerHonorsLevel(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelWarn)

	logger := slog.New(newConsoleHandler(&buf, levelVar, false))
	logger.Info("should be dropped")
	logger.Warn("kept")

	if strings.Contains(buf.String(), "dropped") {
		t.Fatalf("info line should be filtered: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "WARN kept") {
		t.Fatalf("warn line missing: %q", buf.String())
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := NewNop()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("nop logger should report disabled at every level")
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}
