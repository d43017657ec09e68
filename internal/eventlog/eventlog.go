// Package eventlog emits structured, append-only JSON events for every
// phase transition the Self-Dev Orchestrator goes through. It answers spec.md §9's open question on external observability
// by giving an operator (or a future dashboard) a durable record without
// this repository owning a persistence or alerting stack itself — it only
// ever appends; querying and retention policy are the caller's problem.
package eventlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"autodev/internal/logging"
)

// Event is one structured record. Fields beyond Type/At are free-form so
// each phase can log what's relevant to it without a shared schema.
type Event struct {
	Type   string                 `json:"type"`
	At     time.Time              `json:"at"`
	Fields map[string]interface{} `json:"fields,omitempty"`
}

// Log appends Events as newline-delimited JSON to a single file. Writes are
// serialized; there is no in-memory buffering, so every Emit call is
// durable before it returns.
type Log struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// Open creates (or appends to) the event log file at path, creating parent
// directories as needed.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("eventlog: mkdir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("eventlog: open %s: %w", path, err)
	}
	return &Log{path: path, file: f}, nil
}

// Emit appends one event. Marshal errors are logged and swallowed rather
// than propagated — a broken event record must never abort the phase that
// produced it.
func (l *Log) Emit(eventType string, fields map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	evt := Event{Type: eventType, At: time.Now(), Fields: fields}
	data, err := json.Marshal(evt)
	if err != nil {
		logging.Get(logging.CategoryEventlog).Warnw("failed to marshal event", "type", eventType, "error", err)
		return
	}
	data = append(data, '\n')
	if _, err := l.file.Write(data); err != nil {
		logging.Get(logging.CategoryEventlog).Warnw("failed to write event", "type", eventType, "error", err)
	}
}

// Close flushes and closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// Phase-completion event type constants, one per orchestrator state
// transition and per increment-attempt terminal outcome.
const (
	EventStateTransition   = "state_transition"
	EventIncrementAttempt  = "increment_attempt"
	EventPlanStarted       = "plan_started"
	EventPlanCompleted     = "plan_completed"
	EventChangeApproved    = "change_approved"
	EventChangeRejected    = "change_rejected"
	EventDailyBudgetHit    = "daily_budget_exceeded"
	EventEmergencyStop     = "emergency_stop"
)
