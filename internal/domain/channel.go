package domain

import "context"

// InboundMessage is a message received from a channel (user input).
type InboundMessage struct {
	ChannelName string
	SenderKey   string // channel-scoped sender address (phone number, chat id)
	SenderName  string // display name if the channel provides one
	Body        string
	GroupChatID string // non-empty when the message came from a group chat
	ReplyToID   string // channel message id for threading replies
}

// OutboundMessage is a message sent out through a channel.
type OutboundMessage struct {
	To        string
	Body      string
	ParseMode string   // channel-specific formatting hint (e.g. "HTML")
	ReplyToID string   // thread the reply to an inbound message
	MediaURLs []string // attachments; forces MMS on the SMS channel
}

// SendResult reports the channel-assigned id and status of a delivered message.
type SendResult struct {
	ID     string
	Status string
}

// MessagingProvider is the outbound delivery contract.
type MessagingProvider interface {
	Send(ctx context.Context, msg OutboundMessage) (*SendResult, error)
	Name() string
}

// MessageHandler is a callback the channel invokes when it receives input.
type MessageHandler func(ctx context.Context, msg InboundMessage) error

// Channel is the interface for user-facing I/O adapters.
type Channel interface {
	MessagingProvider
	Start(ctx context.Context, handler MessageHandler) error
	Stop(ctx context.Context) error
}
