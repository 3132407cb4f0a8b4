package domain

import (
	"strconv"
	"time"
)

// Role constants for conversation turns.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is a single protocol turn sent to or received from the model.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Timestamp  time.Time  `json:"timestamp,omitzero"`
}

// ChatMessage is a persisted conversation turn. GroupChatID is empty for
// private (one-on-one) turns and set for shared group-chat turns; the two
// views never mix. ToolCallID is set only on tool-role turns and must match
// a call id declared by an earlier assistant turn in the same scope.
type ChatMessage struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	GroupChatID string     `json:"group_chat_id,omitempty"`
	Role        string     `json:"role"`
	Content     string     `json:"content,omitempty"`
	ToolCalls   []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID  string     `json:"tool_call_id,omitempty"`
	Name        string     `json:"name,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// AsMessage converts a stored row to its protocol form.
func (m ChatMessage) AsMessage() Message {
	return Message{
		Role:       m.Role,
		Content:    m.Content,
		Name:       m.Name,
		ToolCalls:  m.ToolCalls,
		ToolCallID: m.ToolCallID,
		Timestamp:  m.CreatedAt,
	}
}

// Scope selects one of the two mutually exclusive history views: a user's
// private conversation or a shared group conversation.
type Scope struct {
	UserID      int64
	GroupChatID string
}

// PrivateScope scopes history to a single user's one-on-one conversation.
func PrivateScope(userID int64) Scope { return Scope{UserID: userID} }

// GroupScope scopes history to a shared group conversation.
func GroupScope(groupChatID string) Scope { return Scope{GroupChatID: groupChatID} }

// IsGroup reports whether the scope addresses a shared group conversation.
func (s Scope) IsGroup() bool { return s.GroupChatID != "" }

// LockKey returns the conversation-lock key for this scope. Group
// conversations serialize on the group id so concurrent members cannot
// interleave; private conversations serialize per user.
func (s Scope) LockKey() string {
	if s.IsGroup() {
		return "group:" + s.GroupChatID
	}
	return "user:" + strconv.FormatInt(s.UserID, 10)
}

// ChatRequest is sent to an LLM provider.
type ChatRequest struct {
	Model       string       `json:"model"`
	Messages    []Message    `json:"messages"`
	Tools       []ToolSchema `json:"tools,omitempty"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Temperature float64      `json:"temperature,omitempty"`
}

// ChatResponse is returned from an LLM provider.
type ChatResponse struct {
	ID           string    `json:"id"`
	Model        string    `json:"model"`
	Message      Message   `json:"message"`
	FinishReason string    `json:"finish_reason,omitempty"`
	Usage        Usage     `json:"usage"`
	CreatedAt    time.Time `json:"created_at"`
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
