package log

import (
	"path/filepath"
	"testing"
	"time"
)

func TestAppendAndReadAll(t *testing.T) {
	logger, err := NewLogger(filepath.Join(t.TempDir(), "log.jsonl"))
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	events := []LogEvent{
		{Event: EventSessionCreated, SessionID: "s1", Title: "Deploy?", Transport: "terminal", TimeoutSeconds: 300},
		{Event: EventSessionResolved, SessionID: "s1", OutcomeKind: "selected"},
		{Event: EventSessionRemoved, SessionID: "s1"},
	}
	for _, ev := range events {
		if err := logger.Append(ev); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	got, err := logger.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d events, want 3", len(got))
	}
	if got[0].Event != EventSessionCreated || got[0].SessionID != "s1" {
		t.Errorf("first event = %+v", got[0])
	}
	if got[1].OutcomeKind != "selected" {
		t.Errorf("outcome kind = %q, want %q", got[1].OutcomeKind, "selected")
	}
	if got[0].Time.IsZero() {
		t.Error("Append should stamp a zero Time")
	}
}

func TestReadAllMissingFile(t *testing.T) {
	logger, err := NewLogger(filepath.Join(t.TempDir(), "log.jsonl"))
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	events, err := logger.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("got %d events, want 0", len(events))
	}
}

func TestAppendPreservesExplicitTime(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(filepath.Join(dir, "log.jsonl"))
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	stamp := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := logger.Append(LogEvent{Time: stamp, Event: EventServerStarted, Addr: "127.0.0.1:0"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	events, err := logger.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if !events[0].Time.Equal(stamp) {
		t.Errorf("time = %v, want %v", events[0].Time, stamp)
	}

	if logger.path != filepath.Join(dir, "log.jsonl") {
		t.Errorf("log path = %q, want log.jsonl inside dir", logger.path)
	}
}

func TestNewLoggerCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "log.jsonl")
	logger, err := NewLogger(path)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	if err := logger.Append(LogEvent{Event: EventSessionCreated, SessionID: "s1"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	events, err := logger.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(events) != 1 || events[0].SessionID != "s1" {
		t.Errorf("events = %+v, want the appended one", events)
	}
}
