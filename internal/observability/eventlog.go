package observability

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"
)

// Event is one line of the review event log.
type Event struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"` // INFO, WARN, ERROR
	Type    string         `json:"type"`  // one of the Event* constants
	Message string         `json:"msg"`
	Data    map[string]any `json:"data,omitempty"`
}

// Event types written by the sync layer.
const (
	EventTasksSynced       = "tasks.synced"
	EventTaskUpdated       = "task.updated"
	EventReportLoaded      = "report.loaded"
	EventEvaluationCreated = "evaluation.created"
	EventFeedbackSubmitted = "feedback.submitted"
	EventExportCompleted   = "export.completed"
	EventHealthChecked     = "health.checked"
	EventAPIError          = "api.error"
)

// Event levels.
const (
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// NewEvent builds an event stamped with the current UTC time.
func NewEvent(level, eventType, msg string, data map[string]any) Event {
	return Event{
		Time:    time.Now().UTC(),
		Level:   level,
		Type:    eventType,
		Message: msg,
		Data:    data,
	}
}

// EventFilter selects events by time window, type, level and the task they
// concern. Zero fields match everything.
type EventFilter struct {
	Since  *time.Time
	Until  *time.Time
	Type   string
	Level  string
	TaskID string
}

// maxEventLine bounds a single JSONL record. Report events can carry long
// transcripts, well past bufio's 64 KiB default.
const maxEventLine = 1 << 20

// EventLog defines the interface for writing and reading events.
type EventLog interface {
	Write(event Event) error
	Read(filter EventFilter) ([]Event, error)
	Close() error
}

// jsonlEventLog appends one JSON object per line to a single file.
type jsonlEventLog struct {
	path string
	file *os.File
	mu   sync.Mutex
}

// NewJSONLEventLog opens (creating if needed) the JSONL file at path for
// appending.
func NewJSONLEventLog(path string) (EventLog, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening event log: %w", err)
	}
	return &jsonlEventLog{
		path: path,
		file: f,
	}, nil
}

// Write appends e as a single line.
func (l *jsonlEventLog) Write(e Event) error {
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshalling %s event: %w", e.Type, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("writing %s event: %w", e.Type, err)
	}
	return nil
}

// Read returns the events matching filter in file order. A missing file
// reads as empty; lines that do not decode are skipped.
func (l *jsonlEventLog) Read(filter EventFilter) ([]Event, error) {
	f, err := os.Open(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening event log for reading: %w", err)
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxEventLine)

	var events []Event
	for sc.Scan() {
		var e Event
		if len(sc.Bytes()) == 0 || json.Unmarshal(sc.Bytes(), &e) != nil {
			continue
		}
		if filter.matches(e) {
			events = append(events, e)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scanning event log: %w", err)
	}
	return events, nil
}

// Close closes the underlying log file.
func (l *jsonlEventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.file.Close(); err != nil {
		return fmt.Errorf("closing event log: %w", err)
	}
	return nil
}

func (f EventFilter) matches(e Event) bool {
	switch {
	case f.Since != nil && e.Time.Before(*f.Since):
		return false
	case f.Until != nil && e.Time.After(*f.Until):
		return false
	case f.Type != "" && e.Type != f.Type:
		return false
	case f.Level != "" && e.Level != f.Level:
		return false
	case f.TaskID != "" && e.TaskID() != f.TaskID:
		return false
	}
	return true
}

// TaskID returns the task the event concerns, or "" for list-wide events.
func (e Event) TaskID() string {
	id, _ := e.Data["task_id"].(string)
	return id
}

// LatestEvent returns the event with the newest timestamp. Among equal
// timestamps the one written last wins.
func LatestEvent(events []Event) (Event, bool) {
	if len(events) == 0 {
		return Event{}, false
	}
	last := events[0]
	for _, e := range events[1:] {
		if !e.Time.Before(last.Time) {
			last = e
		}
	}
	return last, true
}
