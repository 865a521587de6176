package toolengine

import (
	"context"
	"time"
)

// Execution log statuses.
const (
	LogStatusCompleted = "completed"
	LogStatusError     = "error"
)

// ExecutionRecord is emitted once per execution attempt. Cached responses
// are reads, not attempts, and produce no record.
type ExecutionRecord struct {
	UserID          string         `json:"user_id"`
	ToolName        string         `json:"tool_name"`
	ToolCallID      string         `json:"tool_call_id"`
	Parameters      map[string]any `json:"parameters"`
	Result          any            `json:"result,omitempty"`
	ErrorMessage    string         `json:"error_message,omitempty"`
	Status          string         `json:"status"`
	ExecutionTimeMS int64          `json:"execution_time_ms"`
	CompletedAt     time.Time      `json:"completed_at"`
}

// ExecutionLog is the engine's log sink. Failures must not fail the tool
// call itself; the engine logs and continues.
type ExecutionLog interface {
	RecordExecution(ctx context.Context, record ExecutionRecord) error
}

type nopExecutionLog struct{}

func (nopExecutionLog) RecordExecution(context.Context, ExecutionRecord) error { return nil }

// NopExecutionLog returns a sink that drops all records.
func NopExecutionLog() ExecutionLog {
	return nopExecutionLog{}
}
