package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"wads/internal/domain"
	"wads/internal/infra/tracer"
)

// ListPendingUsersTool lists users waiting for approval. Admin only.
type ListPendingUsersTool struct {
	users  domain.UserStore
	logger *slog.Logger
}

func NewListPendingUsersTool(users domain.UserStore, logger *slog.Logger) *ListPendingUsersTool {
	return &ListPendingUsersTool{users: users, logger: logger}
}

func (t *ListPendingUsersTool) Name() string { return "list_pending_users" }
func (t *ListPendingUsersTool) Description() string {
	return "List all users with pending approval status. Use when the admin asks about pending users, new user requests, or who needs approval. Returns user details including their registration channel."
}
func (t *ListPendingUsersTool) Tier() domain.ConfirmationTier { return domain.TierSafe }

func (t *ListPendingUsersTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  json.RawMessage(`{"type": "object", "properties": {}}`),
	}
}

func userChannel(u domain.User) string {
	if u.TelegramChatID != "" {
		return "Telegram"
	}
	return "SMS"
}

func (t *ListPendingUsersTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.list_pending_users", t.logger, params,
		func(ctx context.Context, span trace.Span, _ struct{}) (any, error) {
			if denied := requireAdmin(ctx); denied != nil {
				return denied, nil
			}

			pending, err := t.users.ListPending(ctx)
			if err != nil {
				return nil, err
			}
			if len(pending) == 0 {
				return map[string]any{"message": "No pending users"}, nil
			}

			type pendingUser struct {
				ID          int64  `json:"id"`
				DisplayName string `json:"displayName"`
				Channel     string `json:"channel"`
				Contact     string `json:"contact"`
				CreatedAt   string `json:"createdAt"`
			}
			results := make([]pendingUser, 0, len(pending))
			for _, u := range pending {
				results = append(results, pendingUser{
					ID:          u.ID,
					DisplayName: u.DisplayName,
					Channel:     userChannel(u),
					Contact:     u.ReplyAddress(),
					CreatedAt:   u.CreatedAt.Format("2006-01-02"),
				})
			}
			return map[string]any{"pendingUsers": results}, nil
		},
	)
}

// ManageUserTool approves or blocks a user and notifies them on their
// registration channel. Admin only; the status change itself is treated
// as safe since approval flows shouldn't demand a second confirmation.
type ManageUserTool struct {
	users    domain.UserStore
	telegram domain.MessagingProvider
	sms      domain.MessagingProvider
	logger   *slog.Logger
}

func NewManageUserTool(users domain.UserStore, telegram, sms domain.MessagingProvider, logger *slog.Logger) *ManageUserTool {
	return &ManageUserTool{users: users, telegram: telegram, sms: sms, logger: logger}
}

func (t *ManageUserTool) Name() string { return "manage_user" }
func (t *ManageUserTool) Description() string {
	return "Approve or block a user. Resolve by user ID or display name. Use when the admin says 'approve [name]', 'block user 3', etc. The user will be notified on their registration channel (SMS or Telegram)."
}
func (t *ManageUserTool) Tier() domain.ConfirmationTier { return domain.TierSafe }

func (t *ManageUserTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"userId": {"type": "integer", "description": "User ID to manage (preferred over displayName)"},
				"displayName": {"type": "string", "description": "Display name to look up (case-insensitive). Use when admin refers to user by name."},
				"action": {"type": "string", "enum": ["approve", "block"], "description": "Action to take on the user"}
			},
			"required": ["action"]
		}`),
	}
}

type manageUserParams struct {
	UserID      int64  `json:"userId"`
	DisplayName string `json:"displayName"`
	Action      string `json:"action"`
}

const (
	approvedNotification = "Good news! Your access has been approved. Send me a message to get started!"
	blockedNotification  = "Your access has been revoked. Contact the admin if you believe this is an error."
)

func (t *ManageUserTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.manage_user", t.logger, params,
		func(ctx context.Context, span trace.Span, p manageUserParams) (any, error) {
			if denied := requireAdmin(ctx); denied != nil {
				return denied, nil
			}
			span.SetAttributes(tracer.StringAttr("tool.action", p.Action))

			user, result := t.resolve(ctx, p)
			if result != nil {
				return result, nil
			}

			requester := domain.RequesterFromContext(ctx)
			if p.Action == "block" && user.ID == requester.UserID {
				return errorResult("You can't block yourself"), nil
			}

			target := domain.UserActive
			if p.Action == "block" {
				target = domain.UserBlocked
			}
			if user.Status == target {
				return errorResult("%s is already %s", displayNameOrID(*user), target), nil
			}

			if err := t.users.SetStatus(ctx, user.ID, target); err != nil {
				return nil, err
			}

			verb := "approved"
			notification := approvedNotification
			if p.Action == "block" {
				verb = "blocked"
				notification = blockedNotification
			}
			notified := t.notify(ctx, *user, notification)

			return map[string]any{
				"success":  true,
				"message":  fmt.Sprintf("%s has been %s", displayNameOrID(*user), verb),
				"notified": notified,
			}, nil
		},
	)
}

func displayNameOrID(u domain.User) string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return fmt.Sprintf("User %d", u.ID)
}

// resolve finds the target user by id or name; a non-nil ToolResult is a
// terminal answer (not found, ambiguous, bad params).
func (t *ManageUserTool) resolve(ctx context.Context, p manageUserParams) (*domain.User, *domain.ToolResult) {
	if p.UserID != 0 {
		user, err := t.users.GetByID(ctx, p.UserID)
		if err != nil {
			if errors.Is(err, domain.ErrUserNotFound) {
				return nil, errorResult("No user found with ID %d", p.UserID)
			}
			return nil, errorResult("user lookup failed: %v", err)
		}
		return user, nil
	}
	if p.DisplayName == "" {
		return nil, errorResult("Provide a userId or displayName")
	}

	matches, err := t.users.FindByName(ctx, p.DisplayName)
	if err != nil {
		return nil, errorResult("user lookup failed: %v", err)
	}
	switch len(matches) {
	case 0:
		return nil, errorResult("No user found with name %q", p.DisplayName)
	case 1:
		return &matches[0], nil
	default:
		names := make([]string, 0, len(matches))
		for _, m := range matches {
			names = append(names, fmt.Sprintf("%s (id %d, %s)", m.DisplayName, m.ID, userChannel(m)))
		}
		return nil, errorResult("Multiple users match that name. Use userId to be specific: %v", names)
	}
}

func (t *ManageUserTool) notify(ctx context.Context, user domain.User, body string) bool {
	var provider domain.MessagingProvider
	if user.TelegramChatID != "" {
		provider = t.telegram
	} else if user.PhoneNumber != "" {
		provider = t.sms
	}
	if provider == nil {
		return false
	}
	if _, err := provider.Send(ctx, domain.OutboundMessage{To: user.ReplyAddress(), Body: body}); err != nil {
		t.logger.Warn("status change notification failed", "user_id", user.ID, "error", err)
		return false
	}
	return true
}
