package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"wads/internal/domain"
)

// DefaultHistoryLimit caps raw history retrieval. This is distinct from the
// model's context window, which is applied later by the context builder.
const DefaultHistoryLimit = 50

// HistoryStore is the append-only per-conversation message log. Rows are
// immutable once written; Clear is the only (utility) deletion path.
type HistoryStore struct {
	db  *DB
	now func() time.Time // injectable for tests
}

// NewHistoryStore creates a history store over the shared database.
func NewHistoryStore(db *DB) *HistoryStore {
	return &HistoryStore{db: db, now: time.Now}
}

// Append stores one turn in the given scope and returns the stored row with
// its generated id and timestamp.
func (h *HistoryStore) Append(ctx context.Context, scope domain.Scope, msg domain.Message) (*domain.ChatMessage, error) {
	var toolCalls sql.NullString
	if len(msg.ToolCalls) > 0 {
		raw, err := json.Marshal(msg.ToolCalls)
		if err != nil {
			return nil, fmt.Errorf("marshal tool calls: %w", err)
		}
		toolCalls = sql.NullString{String: string(raw), Valid: true}
	}

	now := h.now().UTC()
	res, err := h.db.db.ExecContext(ctx, `
		INSERT INTO messages (user_id, group_chat_id, role, content, tool_calls, tool_call_id, name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		scope.UserID,
		nullable(scope.GroupChatID),
		msg.Role,
		nullable(msg.Content),
		toolCalls,
		nullable(msg.ToolCallID),
		nullable(msg.Name),
		now.Format(timeFormat),
	)
	if err != nil {
		return nil, domain.WrapOp("HistoryStore.Append", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, domain.WrapOp("HistoryStore.Append", err)
	}

	return &domain.ChatMessage{
		ID:          id,
		UserID:      scope.UserID,
		GroupChatID: scope.GroupChatID,
		Role:        msg.Role,
		Content:     msg.Content,
		ToolCalls:   msg.ToolCalls,
		ToolCallID:  msg.ToolCallID,
		Name:        msg.Name,
		CreatedAt:   now,
	}, nil
}

// Recent returns the last limit turns of the scope, oldest first, ordered by
// creation time with id as tiebreak. A private scope never surfaces
// group-tagged turns and vice versa. limit <= 0 falls back to
// DefaultHistoryLimit.
func (h *HistoryStore) Recent(ctx context.Context, scope domain.Scope, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	var rows *sql.Rows
	var err error
	if scope.IsGroup() {
		rows, err = h.db.db.QueryContext(ctx, `
			SELECT id, user_id, group_chat_id, role, content, tool_calls, tool_call_id, name, created_at
			FROM (
				SELECT * FROM messages
				WHERE group_chat_id = ?
				ORDER BY created_at DESC, id DESC
				LIMIT ?
			)
			ORDER BY created_at ASC, id ASC`,
			scope.GroupChatID, limit,
		)
	} else {
		rows, err = h.db.db.QueryContext(ctx, `
			SELECT id, user_id, group_chat_id, role, content, tool_calls, tool_call_id, name, created_at
			FROM (
				SELECT * FROM messages
				WHERE user_id = ? AND group_chat_id IS NULL
				ORDER BY created_at DESC, id DESC
				LIMIT ?
			)
			ORDER BY created_at ASC, id ASC`,
			scope.UserID, limit,
		)
	}
	if err != nil {
		return nil, domain.WrapOp("HistoryStore.Recent", err)
	}
	defer rows.Close()

	var out []domain.ChatMessage
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, domain.WrapOp("HistoryStore.Recent", err)
		}
		out = append(out, *msg)
	}
	return out, rows.Err()
}

// Clear deletes all private-scope turns for a user. Group turns are shared
// context and are left untouched.
func (h *HistoryStore) Clear(ctx context.Context, userID int64) error {
	_, err := h.db.db.ExecContext(ctx,
		"DELETE FROM messages WHERE user_id = ? AND group_chat_id IS NULL", userID)
	return domain.WrapOp("HistoryStore.Clear", err)
}

func scanMessage(rows *sql.Rows) (*domain.ChatMessage, error) {
	var (
		m         domain.ChatMessage
		groupID   sql.NullString
		content   sql.NullString
		toolCalls sql.NullString
		callID    sql.NullString
		name      sql.NullString
		createdAt string
	)
	if err := rows.Scan(&m.ID, &m.UserID, &groupID, &m.Role, &content, &toolCalls, &callID, &name, &createdAt); err != nil {
		return nil, err
	}
	m.GroupChatID = groupID.String
	m.Content = content.String
	m.ToolCallID = callID.String
	m.Name = name.String

	if toolCalls.Valid && toolCalls.String != "" {
		if err := json.Unmarshal([]byte(toolCalls.String), &m.ToolCalls); err != nil {
			return nil, fmt.Errorf("unmarshal tool calls for message %d: %w", m.ID, err)
		}
	}

	ts, err := time.Parse(timeFormat, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at for message %d: %w", m.ID, err)
	}
	m.CreatedAt = ts
	return &m, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
