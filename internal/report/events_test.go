package report

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"
)

func readEvents(t *testing.T, path string) []Event {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open event log: %v", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("invalid JSONL line %q: %v", scanner.Text(), err)
		}
		events = append(events, e)
	}
	return events
}

func TestEventLoggerWritesJSONL(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewEventLogger(dir, LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}

	logger.LogTitle("Bloodborne", "NPWR08383_00", "PS4", 12, 40, 28, "changed")
	logger.LogRefresh("Bloodborne", "NPWR08383_00", "PS4", 40, 2*time.Second)
	logger.LogSkip("Astro's Playroom", "PS5", "unchanged")
	logger.LogTimeout("Slow Game", "PS4", "group 001")
	logger.LogError(EventRefresh, "Broken Game", errors.New("boom"))
	logger.Close()

	events := readEvents(t, logger.Path())
	if len(events) != 5 {
		t.Fatalf("expected 5 events, got %d", len(events))
	}

	for i, e := range events {
		if e.RunID != logger.RunID() {
			t.Errorf("event %d missing run id: %+v", i, e)
		}
		if e.Timestamp.IsZero() {
			t.Errorf("event %d missing timestamp", i)
		}
	}

	if events[0].Event != EventTitle || events[0].Extra["total"] != "40" {
		t.Errorf("title event malformed: %+v", events[0])
	}
	if events[1].Event != EventRefresh || events[1].Rows != 40 || events[1].Duration != 2000 {
		t.Errorf("refresh event malformed: %+v", events[1])
	}
	if events[2].Reason != "unchanged" {
		t.Errorf("skip event malformed: %+v", events[2])
	}
	if events[3].Level != LevelWarning || events[3].Reason != "group 001" {
		t.Errorf("timeout event malformed: %+v", events[3])
	}
	if events[4].Level != LevelError || events[4].Error != "boom" {
		t.Errorf("error event malformed: %+v", events[4])
	}
}

func TestEventLoggerFiltersByLevel(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewEventLogger(dir, LevelInfo)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}

	// Title events are debug level and must be filtered out
	logger.LogTitle("Bloodborne", "NPWR08383_00", "PS4", 12, 40, 28, "changed")
	logger.LogRefresh("Bloodborne", "NPWR08383_00", "PS4", 40, time.Second)
	logger.Close()

	events := readEvents(t, logger.Path())
	if len(events) != 1 {
		t.Fatalf("expected 1 event after filtering, got %d", len(events))
	}
	if events[0].Event != EventRefresh {
		t.Errorf("wrong event survived the filter: %+v", events[0])
	}
}

func TestNullLoggerIsSafe(t *testing.T) {
	logger := NullLogger()

	if err := logger.LogSkip("Game", "PS4", "unchanged"); err != nil {
		t.Errorf("nil logger Log returned error: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("nil logger Close returned error: %v", err)
	}
	if logger.RunID() != "" || logger.Path() != "" {
		t.Error("nil logger must report empty run id and path")
	}
}

func TestEventLoggerUniqueRunIDs(t *testing.T) {
	dir := t.TempDir()
	a, err := NewEventLogger(dir, LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}
	defer a.Close()
	b, err := NewEventLogger(t.TempDir(), LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}
	defer b.Close()

	if a.RunID() == "" || a.RunID() == b.RunID() {
		t.Errorf("expected distinct non-empty run ids, got %q and %q", a.RunID(), b.RunID())
	}
}
