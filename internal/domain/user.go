package domain

import "time"

// UserStatus is the onboarding state of a user.
type UserStatus string

const (
	UserPending UserStatus = "pending"
	UserActive  UserStatus = "active"
	UserBlocked UserStatus = "blocked"
)

// User is a person allowed (or waiting to be allowed) to talk to the bot.
// Exactly one of PhoneNumber or TelegramChatID identifies the registration
// channel.
type User struct {
	ID             int64      `json:"id"`
	DisplayName    string     `json:"display_name"`
	PhoneNumber    string     `json:"phone_number,omitempty"`
	TelegramChatID string     `json:"telegram_chat_id,omitempty"`
	Status         UserStatus `json:"status"`
	IsAdmin        bool       `json:"is_admin"`
	CreatedAt      time.Time  `json:"created_at"`
}

// ReplyAddress returns the address outbound messages should target.
func (u User) ReplyAddress() string {
	if u.TelegramChatID != "" {
		return u.TelegramChatID
	}
	return u.PhoneNumber
}
