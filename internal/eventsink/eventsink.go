// Package eventsink is a fire-and-forget, append-only JSONL event log
// and metrics recorder, ported from structured_logging.py and
// metrics.py. It exists alongside internal/logging rather than in place
// of it: logging.Logger is for operator-facing diagnostics, eventsink is
// for machine-consumable event/metric streams that other tools in the
// same workspace (the shell scripts this module replaces) already know
// how to tail.
package eventsink

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openclaw/kgraph/internal/clock"
)

// Env var names the prototype's structured_logging.py and metrics.py
// read; preserved so existing workspace tooling keeps working.
const (
	EnvLogFile       = "OPENCLAW_LOG_FILE"
	EnvMetricsDir    = "OPENCLAW_METRICS_DIR"
	EnvComponent     = "OPENCLAW_COMPONENT"
	EnvCorrelationID = "OPENCLAW_CORRELATION_ID"
)

// entry is the standardized log schema from structured_logging.py's
// LogEntry, restated as a Go struct with omitempty in place of the
// Python side's "exclude None values" post-processing.
type entry struct {
	Timestamp     string         `json:"timestamp"`
	Level         string         `json:"level"`
	Component     string         `json:"component"`
	CorrelationID string         `json:"correlation_id"`
	Event         string         `json:"event"`
	Message       string         `json:"message,omitempty"`
	Data          map[string]any `json:"data,omitempty"`
	Performance   map[string]any `json:"performance,omitempty"`
	Error         map[string]any `json:"error,omitempty"`
}

// Sink appends structured events to an append-only JSONL file. It never
// returns an error to the caller: a logging failure must never break the
// operation it is observing, matching structured_logging.py's
// try/except-pass around the file write.
type Sink struct {
	component     string
	correlationID string
	logFile       string

	mu sync.Mutex
}

// New builds a Sink for component, writing to logFile (created with its
// parent directories on first use). If logFile is empty, it falls back
// to EnvLogFile, then a workspace-relative default.
func New(component, logFile string) *Sink {
	if logFile == "" {
		logFile = os.Getenv(EnvLogFile)
	}
	if logFile == "" {
		logFile = filepath.Join(".", "kgraph-events.jsonl")
	}
	correlationID := os.Getenv(EnvCorrelationID)
	if correlationID == "" {
		correlationID = uuid.New().String()[:8]
	}
	if component == "" {
		component = os.Getenv(EnvComponent)
	}
	if component == "" {
		component = "unknown"
	}
	return &Sink{component: component, correlationID: correlationID, logFile: logFile}
}

// WithCorrelationID returns a copy of the sink tagging events with a
// different correlation id, for following one command's worth of
// activity across components.
func (s *Sink) WithCorrelationID(id string) *Sink {
	return &Sink{component: s.component, correlationID: id, logFile: s.logFile}
}

func (s *Sink) write(e entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.logFile), 0755); err != nil {
		return
	}
	f, err := os.OpenFile(s.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	defer f.Close()

	b, err := json.Marshal(e)
	if err != nil {
		return
	}
	b = append(b, '\n')
	_, _ = f.Write(b)
}

func (s *Sink) log(level, event, message string, data map[string]any) {
	s.write(entry{
		Timestamp:     clock.Format(clock.Now()),
		Level:         level,
		Component:     s.component,
		CorrelationID: s.correlationID,
		Event:         event,
		Message:       message,
		Data:          data,
	})
}

func (s *Sink) Debug(event, message string, data map[string]any) { s.log("DEBUG", event, message, data) }
func (s *Sink) Info(event, message string, data map[string]any)  { s.log("INFO", event, message, data) }
func (s *Sink) Warn(event, message string, data map[string]any)  { s.log("WARN", event, message, data) }

// Error logs an error-level event, attaching the error's message the way
// structured_logging.py's error() attaches exception type/message.
func (s *Sink) Error(event, message string, data map[string]any, err error) {
	var errInfo map[string]any
	if err != nil {
		errInfo = map[string]any{"message": err.Error()}
	}
	s.write(entry{
		Timestamp:     clock.Format(clock.Now()),
		Level:         "ERROR",
		Component:     s.component,
		CorrelationID: s.correlationID,
		Event:         event,
		Message:       message,
		Data:          data,
		Error:         errInfo,
	})
}

// Timed runs fn, logging its duration and outcome as a performance
// event. Ported from StructuredLogger.timed's context manager.
func (s *Sink) Timed(event string, data map[string]any, fn func() error) error {
	start := time.Now()
	err := fn()
	duration := time.Since(start).Seconds() * 1000

	perf := map[string]any{"duration_ms": duration}
	if err != nil {
		perf["status"] = "error"
		s.write(entry{
			Timestamp: clock.Format(clock.Now()), Level: "ERROR", Component: s.component,
			CorrelationID: s.correlationID, Event: event, Data: data, Performance: perf,
			Error: map[string]any{"message": err.Error()},
		})
		return err
	}
	perf["status"] = "success"
	s.write(entry{
		Timestamp: clock.Format(clock.Now()), Level: "INFO", Component: s.component,
		CorrelationID: s.correlationID, Event: event, Data: data, Performance: perf,
	})
	return nil
}

func defaultMetricsDir() string {
	if dir := os.Getenv(EnvMetricsDir); dir != "" {
		return dir
	}
	return filepath.Join(".", "kgraph-metrics")
}

// metricFilePath returns the day-rolled metrics file <name>-<YYYYMMDD>.jsonl,
// mirroring metrics.py's METRICS_DIR convention of one file per component
// per day.
func metricFilePath(dir, name string) string {
	day := time.Now().UTC().Format("20060102")
	return filepath.Join(dir, fmt.Sprintf("%s-%s.jsonl", name, day))
}
