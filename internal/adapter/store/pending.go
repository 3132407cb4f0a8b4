package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"wads/internal/domain"
)

// PendingActionStore persists the single destructive action per user that is
// awaiting confirmation. Expiry is lazy: no background timer exists, rows are
// removed when read past their deadline or by the per-message sweep.
type PendingActionStore struct {
	db  *DB
	now func() time.Time // injectable for tests
}

// NewPendingActionStore creates a pending-action store over the shared database.
func NewPendingActionStore(db *DB) *PendingActionStore {
	return &PendingActionStore{db: db, now: time.Now}
}

// Save upserts the pending action for its user. A newer action replaces any
// existing one; destructive asks never queue.
func (p *PendingActionStore) Save(ctx context.Context, action domain.PendingAction) error {
	now := p.now().UTC()
	_, err := p.db.db.ExecContext(ctx, `
		INSERT INTO pending_actions (user_id, tool_name, arguments, prompt_text, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			tool_name   = excluded.tool_name,
			arguments   = excluded.arguments,
			prompt_text = excluded.prompt_text,
			expires_at  = excluded.expires_at,
			created_at  = excluded.created_at`,
		action.UserID,
		action.ToolName,
		action.Arguments,
		action.PromptText,
		action.ExpiresAt.UTC().Format(timeFormat),
		now.Format(timeFormat),
	)
	return domain.WrapOp("PendingActionStore.Save", err)
}

// Get returns the user's pending action, or nil when none exists. An expired
// row is deleted as a side effect and reported as absent.
func (p *PendingActionStore) Get(ctx context.Context, userID int64) (*domain.PendingAction, error) {
	row := p.db.db.QueryRowContext(ctx, `
		SELECT user_id, tool_name, arguments, prompt_text, expires_at
		FROM pending_actions WHERE user_id = ?`, userID)

	var action domain.PendingAction
	var expiresAt string
	err := row.Scan(&action.UserID, &action.ToolName, &action.Arguments, &action.PromptText, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.WrapOp("PendingActionStore.Get", err)
	}

	ts, err := time.Parse(timeFormat, expiresAt)
	if err != nil {
		return nil, domain.WrapOp("PendingActionStore.Get", err)
	}
	action.ExpiresAt = ts

	if action.Expired(p.now()) {
		if err := p.Clear(ctx, userID); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return &action, nil
}

// Clear unconditionally deletes the user's pending action.
func (p *PendingActionStore) Clear(ctx context.Context, userID int64) error {
	_, err := p.db.db.ExecContext(ctx,
		"DELETE FROM pending_actions WHERE user_id = ?", userID)
	return domain.WrapOp("PendingActionStore.Clear", err)
}

// ClearExpired sweeps all rows past their deadline. Invoked opportunistically
// once per inbound message, never on a schedule.
func (p *PendingActionStore) ClearExpired(ctx context.Context) error {
	_, err := p.db.db.ExecContext(ctx,
		"DELETE FROM pending_actions WHERE expires_at < ?",
		p.now().UTC().Format(timeFormat))
	return domain.WrapOp("PendingActionStore.ClearExpired", err)
}
