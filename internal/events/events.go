package events

import (
	"strings"
	"sync"
	"time"
)

// Tool call lifecycle statuses surfaced on the stream.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusError     = "error"
)

// ToolCallEvent announces that a tool invocation has started. Exactly one
// ToolResultEvent with ToolCallID == ID must eventually follow.
type ToolCallEvent struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters"`
	Timestamp  time.Time      `json:"timestamp"`
	Status     string         `json:"status"`
}

// ToolResultEvent carries the outcome of a prior ToolCallEvent.
type ToolResultEvent struct {
	ID         string    `json:"id"`
	ToolCallID string    `json:"tool_call_id"`
	Result     any       `json:"result,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Sink receives paired tool events. The chat layer implements this to relay
// events onto its response stream; tests use Stream.
type Sink interface {
	EmitToolCall(event ToolCallEvent)
	EmitToolResult(event ToolResultEvent)
}

type nopSink struct{}

func (nopSink) EmitToolCall(ToolCallEvent)     {}
func (nopSink) EmitToolResult(ToolResultEvent) {}

// Nop returns a sink that discards all events.
func Nop() Sink {
	return nopSink{}
}

// OrNop returns sink when non-nil, otherwise a discarding sink.
func OrNop(sink Sink) Sink {
	if sink == nil {
		return Nop()
	}
	return sink
}

// ValidID reports whether an event id satisfies the stream contract: never
// empty and never the stringified-absent-value "undefined" that upstream
// protocol clients occasionally send.
func ValidID(id string) bool {
	return id != "" && !strings.Contains(id, "undefined")
}

// Stream is an in-memory sink that records events in arrival order. Used by
// tests to verify call/result pairing and by the server's session recorder.
type Stream struct {
	mu      sync.Mutex
	calls   []ToolCallEvent
	results []ToolResultEvent
}

// NewStream creates an empty recording stream.
func NewStream() *Stream {
	return &Stream{}
}

func (s *Stream) EmitToolCall(event ToolCallEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, event)
}

func (s *Stream) EmitToolResult(event ToolResultEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, event)
}

// Calls returns a copy of the recorded tool_call events.
func (s *Stream) Calls() []ToolCallEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ToolCallEvent, len(s.calls))
	copy(out, s.calls)
	return out
}

// Results returns a copy of the recorded tool_result events.
func (s *Stream) Results() []ToolResultEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ToolResultEvent, len(s.results))
	copy(out, s.results)
	return out
}

// Unpaired returns the ids of tool_call events that have no matching
// tool_result yet.
func (s *Stream) Unpaired() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	resolved := make(map[string]bool, len(s.results))
	for _, res := range s.results {
		resolved[res.ToolCallID] = true
	}
	var open []string
	for _, call := range s.calls {
		if !resolved[call.ID] {
			open = append(open, call.ID)
		}
	}
	return open
}
