package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event
type EventType string

const (
	EventTitle   EventType = "title"
	EventRefresh EventType = "refresh"
	EventSkip    EventType = "skip"
	EventTimeout EventType = "timeout"
	EventPrice   EventType = "price"
	EventError   EventType = "error"
)

// EventLevel represents the severity level
type EventLevel string

const (
	LevelDebug   EventLevel = "debug"
	LevelInfo    EventLevel = "info"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

// levelPriority maps event levels to numeric priorities for comparison
var levelPriority = map[EventLevel]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

// Event represents a single event in a sync or price run
type Event struct {
	Timestamp time.Time         `json:"ts"`
	RunID     string            `json:"run_id"`
	Level     EventLevel        `json:"level"`
	Event     EventType         `json:"event"`
	Title     string            `json:"title,omitempty"`
	NPCommID  string            `json:"np_comm_id,omitempty"`
	Platform  string            `json:"platform,omitempty"`
	Rows      int               `json:"rows,omitempty"`
	Reason    string            `json:"reason,omitempty"`
	Duration  int64             `json:"duration_ms,omitempty"`
	Error     string            `json:"error,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// EventLogger writes run events to a JSONL file. Each run gets its own file
// and a unique run id stamped onto every event.
type EventLogger struct {
	file     *os.File
	encoder  *json.Encoder
	mu       sync.Mutex
	path     string
	runID    string
	minLevel EventLevel
}

// NewEventLogger creates a new event logger with a minimum log level
// minLevel determines which events are written (e.g., LevelInfo skips LevelDebug)
func NewEventLogger(outputDir string, minLevel EventLevel) (*EventLogger, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	runID := uuid.NewString()
	timestamp := time.Now().Format("20060102-150405")
	filename := fmt.Sprintf("sync-%s.jsonl", timestamp)
	path := filepath.Join(outputDir, filename)

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create event log: %w", err)
	}

	return &EventLogger{
		file:     file,
		encoder:  json.NewEncoder(file),
		path:     path,
		runID:    runID,
		minLevel: minLevel,
	}, nil
}

// Log writes an event to the JSONL file
func (l *EventLogger) Log(event *Event) error {
	if l == nil || l.file == nil {
		return nil // Silently ignore if logger not initialized
	}

	// Filter by minimum level
	if levelPriority[event.Level] < levelPriority[l.minLevel] {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.RunID = l.runID

	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	return nil
}

// LogTitle logs one processed title from the titles pass
func (l *EventLogger) LogTitle(title, npCommID, platform string, earned, total, percent int, reason string) error {
	return l.Log(&Event{
		Level:    LevelDebug,
		Event:    EventTitle,
		Title:    title,
		NPCommID: npCommID,
		Platform: platform,
		Reason:   reason,
		Extra: map[string]string{
			"earned":  fmt.Sprintf("%d", earned),
			"total":   fmt.Sprintf("%d", total),
			"percent": fmt.Sprintf("%d", percent),
		},
	})
}

// LogRefresh logs a completed trophy-cache refresh
func (l *EventLogger) LogRefresh(title, npCommID, platform string, rows int, duration time.Duration) error {
	return l.Log(&Event{
		Level:    LevelInfo,
		Event:    EventRefresh,
		Title:    title,
		NPCommID: npCommID,
		Platform: platform,
		Rows:     rows,
		Duration: duration.Milliseconds(),
	})
}

// LogSkip logs a title skipped by the refresh policy
func (l *EventLogger) LogSkip(title, platform, reason string) error {
	return l.Log(&Event{
		Level:    LevelInfo,
		Event:    EventSkip,
		Title:    title,
		Platform: platform,
		Reason:   reason,
	})
}

// LogTimeout logs a bounded call abandoned at its deadline
func (l *EventLogger) LogTimeout(title, platform, stage string) error {
	return l.Log(&Event{
		Level:    LevelWarning,
		Event:    EventTimeout,
		Title:    title,
		Platform: platform,
		Reason:   stage,
	})
}

// LogPrice logs one price snapshot from a price run
func (l *EventLogger) LogPrice(title string, price float64, discountPct int, live bool) error {
	return l.Log(&Event{
		Level: LevelInfo,
		Event: EventPrice,
		Title: title,
		Extra: map[string]string{
			"price":        fmt.Sprintf("%.2f", price),
			"discount_pct": fmt.Sprintf("%d", discountPct),
			"live":         fmt.Sprintf("%t", live),
		},
	})
}

// LogError logs an error event
func (l *EventLogger) LogError(event EventType, title string, err error) error {
	return l.Log(&Event{
		Level: LevelError,
		Event: event,
		Title: title,
		Error: err.Error(),
	})
}

// RunID returns the unique id of this run
func (l *EventLogger) RunID() string {
	if l == nil {
		return ""
	}
	return l.runID
}

// Close closes the event log file
func (l *EventLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}

// Path returns the path to the event log file
func (l *EventLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// NullLogger returns a no-op event logger
func NullLogger() *EventLogger {
	return nil
}
