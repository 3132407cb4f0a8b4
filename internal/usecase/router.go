package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"wads/internal/domain"
)

// AdminNotifier delivers operational notices to the configured admin,
// preferring Telegram and falling back to SMS. A notifier with no contact
// configured logs and drops.
type AdminNotifier struct {
	telegramChatID string
	phone          string
	telegram       domain.MessagingProvider // nil when the channel is disabled
	sms            domain.MessagingProvider // nil when the channel is disabled
	logger         *slog.Logger
}

// NewAdminNotifier creates a notifier for the given admin contact points.
func NewAdminNotifier(telegramChatID, phone string, telegram, sms domain.MessagingProvider, logger *slog.Logger) *AdminNotifier {
	return &AdminNotifier{
		telegramChatID: telegramChatID,
		phone:          phone,
		telegram:       telegram,
		sms:            sms,
		logger:         logger,
	}
}

// Notify sends body to the admin. Delivery failures are logged, not returned;
// a notification must never fail the conversation that triggered it.
func (n *AdminNotifier) Notify(ctx context.Context, body string) {
	var (
		ch domain.MessagingProvider
		to string
	)
	switch {
	case n.telegram != nil && n.telegramChatID != "":
		ch, to = n.telegram, n.telegramChatID
	case n.sms != nil && n.phone != "":
		ch, to = n.sms, n.phone
	default:
		n.logger.Warn("no admin contact configured, dropping notification", "body", body)
		return
	}
	if _, err := ch.Send(ctx, domain.OutboundMessage{To: to, Body: body}); err != nil {
		n.logger.Warn("admin notification failed", "channel", ch.Name(), "error", err)
	}
}

// Router resolves inbound channel messages to user records, walks unknown
// and pending senders through onboarding, and hands active users' messages
// to the Engine. It is safe to call concurrently.
type Router struct {
	users      domain.UserStore
	engine     *Engine
	onboarding *Onboarding
	notifier   *AdminNotifier
	channels   map[string]domain.MessagingProvider
	logger     *slog.Logger
}

// NewRouter creates a Router. Channels are added via RegisterChannel before
// the transports start.
func NewRouter(users domain.UserStore, engine *Engine, onboarding *Onboarding, notifier *AdminNotifier, logger *slog.Logger) *Router {
	return &Router{
		users:      users,
		engine:     engine,
		onboarding: onboarding,
		notifier:   notifier,
		channels:   make(map[string]domain.MessagingProvider),
		logger:     logger,
	}
}

// RegisterChannel makes ch available for replies to its own inbound traffic.
func (r *Router) RegisterChannel(ch domain.MessagingProvider) {
	r.channels[ch.Name()] = ch
}

// Handle processes one inbound message end to end.
func (r *Router) Handle(ctx context.Context, msg domain.InboundMessage) error {
	ch, ok := r.channels[msg.ChannelName]
	if !ok {
		return domain.NewDomainError("Router.Handle", domain.ErrInvalidInput,
			fmt.Sprintf("unknown channel %q", msg.ChannelName))
	}

	user, firstContact, err := r.resolve(ctx, msg)
	if err != nil {
		return err
	}

	if user.Status == domain.UserActive {
		r.engine.ProcessConversation(ctx, ConversationRequest{
			User:        *user,
			Body:        msg.Body,
			Channel:     ch,
			GroupChatID: msg.GroupChatID,
			SenderName:  msg.SenderName,
			ReplyToID:   msg.ReplyToID,
		})
		return nil
	}

	// Non-active senders in a group chat are ignored; onboarding prompts
	// would spam the whole group.
	if msg.GroupChatID != "" {
		r.logger.Debug("dropping group message from non-active sender",
			"channel", msg.ChannelName, "sender", msg.SenderKey)
		return nil
	}

	reply := r.onboarding.Reply(ctx, *user, msg.Body, firstContact)
	if reply == "" {
		return nil
	}
	if _, err := ch.Send(ctx, domain.OutboundMessage{To: user.ReplyAddress(), Body: reply}); err != nil {
		return domain.WrapOp("Router.Handle", err)
	}
	return nil
}

// resolve looks the sender up by their channel address, registering a
// pending record on first contact. The bool reports whether the record was
// created for this message.
func (r *Router) resolve(ctx context.Context, msg domain.InboundMessage) (*domain.User, bool, error) {
	var (
		user *domain.User
		err  error
	)
	if msg.ChannelName == "telegram" {
		user, err = r.users.GetByTelegram(ctx, msg.SenderKey)
	} else {
		user, err = r.users.GetByPhone(ctx, msg.SenderKey)
	}
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, false, err
	}

	fresh := domain.User{Status: domain.UserPending}
	if msg.ChannelName == "telegram" {
		fresh.TelegramChatID = msg.SenderKey
		fresh.DisplayName = msg.SenderName
		if fresh.DisplayName == "" {
			fresh.DisplayName = "Telegram User"
		}
	} else {
		fresh.PhoneNumber = msg.SenderKey
	}

	created, err := r.users.Create(ctx, fresh)
	if err != nil {
		return nil, false, domain.WrapOp("Router.resolve", err)
	}
	r.logger.Info("new user registered",
		"user_id", created.ID, "channel", msg.ChannelName, "sender", msg.SenderKey)

	// Telegram users arrive named, so the admin hears about them right away.
	// SMS users are announced after the name exchange in onboarding.
	if created.TelegramChatID != "" {
		r.notifier.Notify(ctx, fmt.Sprintf(
			"New Telegram user: %s (chat %s). Approve with the manage_user tool.",
			created.DisplayName, created.TelegramChatID))
	}
	return created, true, nil
}
