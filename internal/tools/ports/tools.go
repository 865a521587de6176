package ports

import (
	"context"
	"encoding/json"
	"time"
)

// Handler is the single contract every tool implements. Arguments arrive as
// decoded JSON; userID identifies the caller. Handlers return a typed error
// from internal/errors rather than a sentinel value.
type Handler func(ctx context.Context, args map[string]any, userID string) (any, error)

// RateLimitTier buckets tools by cost: low for reads, medium for simple
// writes, high for operations that spend model tokens.
type RateLimitTier string

const (
	RateLimitLow    RateLimitTier = "low"
	RateLimitMedium RateLimitTier = "medium"
	RateLimitHigh   RateLimitTier = "high"
)

// Valid reports whether the tier is one of the three known buckets.
func (t RateLimitTier) Valid() bool {
	switch t {
	case RateLimitLow, RateLimitMedium, RateLimitHigh:
		return true
	}
	return false
}

// AuthRequirements describes who may invoke a tool. In this domain every
// tool requires auth and disallows anonymous access.
type AuthRequirements struct {
	RequiresAuth   bool     `json:"requires_auth"`
	AllowAnonymous bool     `json:"allow_anonymous"`
	Scopes         []string `json:"scopes"`
}

// ToolMetadata describes one callable capability. Registered once at
// startup and immutable afterwards.
type ToolMetadata struct {
	Name          string           `json:"name"`
	Description   string           `json:"description"`
	InputSchema   ParameterSchema  `json:"input_schema"`
	Output        string           `json:"output"`
	Auth          AuthRequirements `json:"auth"`
	Category      string           `json:"category"`
	Tags          []string         `json:"tags"`
	Cacheable     bool             `json:"cacheable"`
	ReadOnly      bool             `json:"read_only"`
	RateLimitTier RateLimitTier    `json:"rate_limit_tier"`
}

// Definition renders the LLM-facing view of the tool.
func (m ToolMetadata) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        m.Name,
		Description: m.Description,
		Parameters:  m.InputSchema,
	}
}

// ToolDefinition describes a tool for the LLM.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  ParameterSchema `json:"parameters"`
}

// ParameterSchema defines tool parameters (JSON Schema format).
type ParameterSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Property defines a single parameter.
type Property struct {
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Enum        []any     `json:"enum,omitempty"`
	Items       *Property `json:"items,omitempty"`
	MinLength   *int      `json:"min_length,omitempty"`
	MaxLength   *int      `json:"max_length,omitempty"`
	Minimum     *float64  `json:"minimum,omitempty"`
	Maximum     *float64  `json:"maximum,omitempty"`
}

// ExecutionContext carries everything the engine needs for one invocation.
// Created when a call request is accepted, discarded after the result is
// logged.
type ExecutionContext struct {
	UserID     string         `json:"user_id"`
	RequestID  string         `json:"request_id"`
	ToolName   string         `json:"tool_name"`
	Parameters map[string]any `json:"parameters"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// ToolResult is the uniform execution outcome. Error is embedded, never
// re-thrown to the protocol layer.
type ToolResult struct {
	CallID   string         `json:"call_id"`
	Content  any            `json:"content,omitempty"`
	Error    error          `json:"error,omitempty"`
	Cached   bool           `json:"cached,omitempty"`
	Duration time.Duration  `json:"duration_ms"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// MarshalJSON customizes encoding so the error interface serializes as its
// message and the duration as milliseconds.
func (r ToolResult) MarshalJSON() ([]byte, error) {
	type alias struct {
		CallID     string         `json:"call_id"`
		Content    any            `json:"content,omitempty"`
		Error      string         `json:"error,omitempty"`
		Cached     bool           `json:"cached,omitempty"`
		DurationMS int64          `json:"duration_ms"`
		Metadata   map[string]any `json:"metadata,omitempty"`
	}
	out := alias{
		CallID:     r.CallID,
		Content:    r.Content,
		Cached:     r.Cached,
		DurationMS: r.Duration.Milliseconds(),
		Metadata:   r.Metadata,
	}
	if r.Error != nil {
		out.Error = r.Error.Error()
	}
	return json.Marshal(out)
}
