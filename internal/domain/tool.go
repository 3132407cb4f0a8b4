package domain

import (
	"context"
	"encoding/json"
)

// ConfirmationTier classifies a tool by the damage it can do.
type ConfirmationTier string

const (
	// TierSafe tools execute immediately.
	TierSafe ConfirmationTier = "safe"
	// TierDestructive tools require explicit user confirmation first.
	TierDestructive ConfirmationTier = "destructive"
)

// ToolSchema describes a tool for the LLM function-calling protocol.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToolCall represents an LLM's request to invoke a tool.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult is the outcome of executing a tool. IsError results are still
// fed back to the model as tool turns so it can recover or apologize.
type ToolResult struct {
	Content string `json:"content"`
	IsError bool   `json:"is_error"`
}

// Tool is the interface every tool must implement.
type Tool interface {
	Name() string
	Description() string
	Schema() ToolSchema
	Tier() ConfirmationTier
	Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error)
}

// ToolExecutor abstracts tool lookup, advertising, argument validation and
// tier classification for the tool-call loop.
type ToolExecutor interface {
	Get(name string) (Tool, error)
	Schemas() []ToolSchema
	IsDestructive(name string) bool
	// Validate checks raw model-supplied arguments against the tool's
	// parameter schema. A validation problem is returned as a non-nil error
	// value; it is never a fault.
	Validate(name string, params json.RawMessage) error
}
