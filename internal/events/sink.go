package events

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
)

// Event names published by the scanner, indexer and pipeline.
const (
	ScanProgress  = "scan_progress"
	ScanDone      = "scan_done"
	IndexProgress = "index_progress"
	IndexDone     = "index_done"
	AutoScanStart = "auto_scan_start"
)

// ScanProgressPayload is published once per discovered file.
type ScanProgressPayload struct {
	Current uint64 `json:"current"`
	Path    string `json:"path"`
	Name    string `json:"name"`
}

// ScanDonePayload is published when traversal finishes.
type ScanDonePayload struct {
	Total uint64 `json:"total"`
}

// IndexProgressPayload is published once per document handed to the writer.
// Total is only known to the batch builder.
type IndexProgressPayload struct {
	Current uint64  `json:"current"`
	Total   *uint64 `json:"total,omitempty"`
	Name    string  `json:"name"`
	Path    string  `json:"path"`
}

// IndexDonePayload is published after the final commit.
type IndexDonePayload struct {
	OK bool `json:"ok"`
}

// AutoScanStartPayload is published when a background scan is launched.
type AutoScanStartPayload struct {
	Reason string `json:"reason"`
}

// Sink receives named progress events. Implementations must be safe for
// concurrent use since pipeline workers publish from their own goroutines.
// Delivery is best effort; a sink never reports failure to the publisher.
type Sink interface {
	Publish(name string, payload any)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(name string, payload any)

// Publish calls f(name, payload).
func (f SinkFunc) Publish(name string, payload any) {
	f(name, payload)
}

type discard struct{}

func (discard) Publish(string, any) {}

// Discard drops every event.
var Discard Sink = discard{}

// OrDiscard returns s, or Discard when s is nil.
func OrDiscard(s Sink) Sink {
	if s == nil {
		return Discard
	}
	return s
}

type multiSink []Sink

func (m multiSink) Publish(name string, payload any) {
	for _, s := range m {
		s.Publish(name, payload)
	}
}

// Multi fans every event out to all non-nil sinks in order.
func Multi(sinks ...Sink) Sink {
	out := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// LogSink writes events to a slog logger.
type LogSink struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogSink creates a sink that logs each event at the given level.
func NewLogSink(logger *slog.Logger, level slog.Level) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger, level: level}
}

// Publish logs the event.
func (s *LogSink) Publish(name string, payload any) {
	s.logger.Log(context.Background(), s.level, "Event", "name", name, "payload", payload)
}

// envelope is the JSON-lines wire form of an event.
type envelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// JSONLinesSink writes one JSON object per event to w.
type JSONLinesSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONLinesSink creates a sink writing `{"event":...,"payload":...}` lines.
func NewJSONLinesSink(w io.Writer) *JSONLinesSink {
	return &JSONLinesSink{enc: json.NewEncoder(w)}
}

// Publish encodes the event. Encoding errors are logged and dropped.
func (s *JSONLinesSink) Publish(name string, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(envelope{Event: name, Payload: payload}); err != nil {
		slog.Debug("Failed to write event", "name", name, "error", err)
	}
}
