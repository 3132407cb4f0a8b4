package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"wads/internal/domain"
)

// maxNameLength caps self-reported display names.
const maxNameLength = 50

// Onboarding produces replies for senders who are not yet active users.
// SMS senders arrive anonymous and go through a name-collection exchange
// before the admin is notified; Telegram senders carry a profile name, so
// the Router notifies the admin as soon as their record is created.
type Onboarding struct {
	users    domain.UserStore
	notifier *AdminNotifier
	logger   *slog.Logger
}

// NewOnboarding creates the onboarding flow.
func NewOnboarding(users domain.UserStore, notifier *AdminNotifier, logger *slog.Logger) *Onboarding {
	return &Onboarding{users: users, notifier: notifier, logger: logger}
}

// Reply returns the response for a non-active user's message. firstContact
// is true when the user record was created for this very message, in which
// case the message body is a greeting rather than an answer to a question
// we asked. Active users never reach here; the Router hands them to the
// Engine instead.
func (o *Onboarding) Reply(ctx context.Context, user domain.User, body string, firstContact bool) string {
	switch user.Status {
	case domain.UserBlocked:
		return "Sorry, your access has been revoked. Contact the admin if you believe this is an error."

	case domain.UserPending:
		if user.DisplayName == "" {
			if firstContact {
				return "Hey there! I don't recognize your number. What's your name?"
			}
			return o.recordName(ctx, user, body)
		}
		return fmt.Sprintf("Hi %s, your access request is still pending approval. Hang tight!", user.DisplayName)
	}
	return ""
}

// recordName stores the sender's answer to the name prompt and notifies
// the admin that a new request is waiting.
func (o *Onboarding) recordName(ctx context.Context, user domain.User, body string) string {
	name := strings.TrimSpace(body)
	if name == "" {
		return "I need a name to set up your account. What should I call you?"
	}
	// Truncate on rune boundaries; a byte slice could split a multi-byte
	// character and store invalid UTF-8.
	if runes := []rune(name); len(runes) > maxNameLength {
		name = string(runes[:maxNameLength])
	}

	if err := o.users.SetDisplayName(ctx, user.ID, name); err != nil {
		o.logger.Error("onboarding name update failed", "user_id", user.ID, "error", err)
		return "Sorry, something went wrong setting up your account. Please try again."
	}

	o.notifier.Notify(ctx, fmt.Sprintf(
		"New user request: %s (%s). Approve with the manage_user tool.", name, user.PhoneNumber))
	o.logger.Info("new user awaiting approval", "user_id", user.ID, "name", name)

	return fmt.Sprintf("Thanks %s! I've sent a request to the admin for approval. You'll be able to use the app once approved.", name)
}
