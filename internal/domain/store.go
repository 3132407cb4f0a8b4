package domain

import "context"

// HistoryStore is the append-only conversation log.
type HistoryStore interface {
	Append(ctx context.Context, scope Scope, msg Message) (*ChatMessage, error)
	Recent(ctx context.Context, scope Scope, limit int) ([]ChatMessage, error)
	Clear(ctx context.Context, userID int64) error
}

// PendingActionStore holds at most one destructive action awaiting
// confirmation per user.
type PendingActionStore interface {
	Save(ctx context.Context, action PendingAction) error
	Get(ctx context.Context, userID int64) (*PendingAction, error)
	Clear(ctx context.Context, userID int64) error
	ClearExpired(ctx context.Context) error
}

// UserStore manages registered users.
type UserStore interface {
	Create(ctx context.Context, user User) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByPhone(ctx context.Context, phone string) (*User, error)
	GetByTelegram(ctx context.Context, chatID string) (*User, error)
	FindByName(ctx context.Context, name string) ([]User, error)
	ListPending(ctx context.Context) ([]User, error)
	SetStatus(ctx context.Context, id int64, status UserStatus) error
	SetDisplayName(ctx context.Context, id int64, name string) error
}
