package domain

import "time"

// PendingActionTTL is how long a destructive action waits for confirmation.
const PendingActionTTL = 5 * time.Minute

// PendingAction is a destructive tool call awaiting a yes/no from the user.
// At most one exists per user; a newer one replaces the old.
type PendingAction struct {
	UserID     int64     `json:"user_id"`
	ToolName   string    `json:"tool_name"`
	Arguments  string    `json:"arguments"` // JSON, already schema-validated
	PromptText string    `json:"prompt_text"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Expired reports whether the action's confirmation window has passed.
func (p PendingAction) Expired(now time.Time) bool {
	return p.ExpiresAt.Before(now)
}
