package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"wads/internal/domain"
)

// UserStore manages the people allowed to talk to the bot.
type UserStore struct {
	db *DB
}

// NewUserStore creates a user store over the shared database.
func NewUserStore(db *DB) *UserStore {
	return &UserStore{db: db}
}

// Create registers a new user in pending status and returns the stored row.
func (u *UserStore) Create(ctx context.Context, user domain.User) (*domain.User, error) {
	if user.Status == "" {
		user.Status = domain.UserPending
	}
	now := time.Now().UTC()
	res, err := u.db.db.ExecContext(ctx, `
		INSERT INTO users (display_name, phone_number, telegram_chat_id, status, is_admin, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		user.DisplayName,
		nullable(user.PhoneNumber),
		nullable(user.TelegramChatID),
		string(user.Status),
		user.IsAdmin,
		now.Format(timeFormat),
	)
	if err != nil {
		return nil, domain.WrapOp("UserStore.Create", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, domain.WrapOp("UserStore.Create", err)
	}
	user.ID = id
	user.CreatedAt = now
	return &user, nil
}

// GetByID looks a user up by primary key.
func (u *UserStore) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return u.one(ctx, "SELECT id, display_name, phone_number, telegram_chat_id, status, is_admin, created_at FROM users WHERE id = ?", id)
}

// GetByPhone looks a user up by phone number.
func (u *UserStore) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	return u.one(ctx, "SELECT id, display_name, phone_number, telegram_chat_id, status, is_admin, created_at FROM users WHERE phone_number = ?", phone)
}

// GetByTelegram looks a user up by Telegram chat id.
func (u *UserStore) GetByTelegram(ctx context.Context, chatID string) (*domain.User, error) {
	return u.one(ctx, "SELECT id, display_name, phone_number, telegram_chat_id, status, is_admin, created_at FROM users WHERE telegram_chat_id = ?", chatID)
}

// FindByName returns users whose display name matches (case-insensitive,
// SQLite LIKE semantics). Multiple matches are returned for the caller to
// disambiguate.
func (u *UserStore) FindByName(ctx context.Context, name string) ([]domain.User, error) {
	rows, err := u.db.db.QueryContext(ctx,
		"SELECT id, display_name, phone_number, telegram_chat_id, status, is_admin, created_at FROM users WHERE display_name LIKE ?", "%"+name+"%")
	if err != nil {
		return nil, domain.WrapOp("UserStore.FindByName", err)
	}
	defer rows.Close()
	return collectUsers(rows)
}

// ListPending returns all users awaiting approval, oldest first.
func (u *UserStore) ListPending(ctx context.Context) ([]domain.User, error) {
	rows, err := u.db.db.QueryContext(ctx,
		"SELECT id, display_name, phone_number, telegram_chat_id, status, is_admin, created_at FROM users WHERE status = ? ORDER BY created_at ASC",
		string(domain.UserPending))
	if err != nil {
		return nil, domain.WrapOp("UserStore.ListPending", err)
	}
	defer rows.Close()
	return collectUsers(rows)
}

// SetStatus transitions a user to the given status.
func (u *UserStore) SetStatus(ctx context.Context, id int64, status domain.UserStatus) error {
	res, err := u.db.db.ExecContext(ctx,
		"UPDATE users SET status = ? WHERE id = ?", string(status), id)
	if err != nil {
		return domain.WrapOp("UserStore.SetStatus", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.NewDomainError("UserStore.SetStatus", domain.ErrUserNotFound, "")
	}
	return nil
}

// SetDisplayName updates a user's display name.
func (u *UserStore) SetDisplayName(ctx context.Context, id int64, name string) error {
	res, err := u.db.db.ExecContext(ctx,
		"UPDATE users SET display_name = ? WHERE id = ?", name, id)
	if err != nil {
		return domain.WrapOp("UserStore.SetDisplayName", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.NewDomainError("UserStore.SetDisplayName", domain.ErrUserNotFound, "")
	}
	return nil
}

func (u *UserStore) one(ctx context.Context, query string, arg any) (*domain.User, error) {
	row := u.db.db.QueryRowContext(ctx, query, arg)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, domain.WrapOp("UserStore", err)
	}
	return user, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		user      domain.User
		phone     sql.NullString
		tgChat    sql.NullString
		status    string
		createdAt string
	)
	if err := row.Scan(&user.ID, &user.DisplayName, &phone, &tgChat, &status, &user.IsAdmin, &createdAt); err != nil {
		return nil, err
	}
	user.PhoneNumber = phone.String
	user.TelegramChatID = tgChat.String
	user.Status = domain.UserStatus(status)
	if ts, err := time.Parse(timeFormat, createdAt); err == nil {
		user.CreatedAt = ts
	}
	return &user, nil
}

func collectUsers(rows *sql.Rows) ([]domain.User, error) {
	var out []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *user)
	}
	return out, rows.Err()
}
