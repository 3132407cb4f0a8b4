package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"wads/internal/domain"
	"wads/internal/infra/config"
)

const (
	telegramPollTimeout = 30 // seconds, long-poll
	telegramRetryDelay  = 5 * time.Second
)

// TelegramChannel implements domain.Channel for the Telegram Bot API via
// long-polling. Group chats are detected and surfaced on the inbound
// message so the engine can scope history per group.
type TelegramChannel struct {
	token   string
	handler domain.MessageHandler
	logger  *slog.Logger
	client  *http.Client
	baseURL string
	offset  int64
	done    chan struct{}
}

// NewTelegramChannel creates a Telegram bot channel.
func NewTelegramChannel(cfg config.TelegramConfig, logger *slog.Logger) *TelegramChannel {
	return &TelegramChannel{
		token:   cfg.Token,
		logger:  logger,
		baseURL: "https://api.telegram.org",
		client:  &http.Client{Timeout: 60 * time.Second},
		done:    make(chan struct{}),
	}
}

// Name implements domain.MessagingProvider.
func (t *TelegramChannel) Name() string { return "telegram" }

// Start begins long-polling for updates. Non-blocking.
func (t *TelegramChannel) Start(ctx context.Context, handler domain.MessageHandler) error {
	t.handler = handler
	go t.pollLoop(ctx)
	t.logger.Info("telegram channel started")
	return nil
}

// Stop signals the polling loop to stop.
func (t *TelegramChannel) Stop(_ context.Context) error {
	select {
	case <-t.done:
	default:
		close(t.done)
	}
	return nil
}

// Send delivers a message to a Telegram chat. ParseMode and ReplyToID pass
// through to the Bot API.
func (t *TelegramChannel) Send(ctx context.Context, msg domain.OutboundMessage) (*domain.SendResult, error) {
	req := telegramSendRequest{
		ChatID:    msg.To,
		Text:      msg.Body,
		ParseMode: msg.ParseMode,
	}
	if msg.ReplyToID != "" {
		if id, err := strconv.ParseInt(msg.ReplyToID, 10, 64); err == nil {
			req.ReplyToMessageID = id
		}
	}

	messageID, err := t.sendMessage(ctx, req)
	if err != nil {
		// HTML that Telegram rejects falls back to plain text rather than
		// dropping the reply.
		if msg.ParseMode != "" {
			req.ParseMode = ""
			if messageID, err = t.sendMessage(ctx, req); err == nil {
				return &domain.SendResult{ID: strconv.FormatInt(messageID, 10), Status: "sent"}, nil
			}
		}
		return nil, domain.WrapOp("telegram.Send", err)
	}
	return &domain.SendResult{ID: strconv.FormatInt(messageID, 10), Status: "sent"}, nil
}

func (t *TelegramChannel) pollLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.done:
			return
		default:
			updates, err := t.getUpdates(ctx)
			if err != nil {
				t.logger.Warn("telegram getUpdates failed", "error", err)
				time.Sleep(telegramRetryDelay)
				continue
			}
			for _, u := range updates {
				if u.UpdateID >= t.offset {
					t.offset = u.UpdateID + 1
				}
				// Handlers run concurrently so one slow conversation does
				// not stall polling; the engine's per-scope lock keeps
				// ordering within a chat.
				go t.dispatch(ctx, u)
			}
		}
	}
}

func (t *TelegramChannel) dispatch(ctx context.Context, u telegramUpdate) {
	if u.Message == nil || u.Message.Text == "" {
		return
	}
	chatID := strconv.FormatInt(u.Message.Chat.ID, 10)

	msg := domain.InboundMessage{
		ChannelName: t.Name(),
		Body:        u.Message.Text,
		ReplyToID:   strconv.FormatInt(u.Message.MessageID, 10),
	}

	// In groups the chat id identifies the group, not the sender; the
	// sender's own id keys user lookup.
	isGroup := u.Message.Chat.Type != "" && u.Message.Chat.Type != "private"
	if isGroup {
		msg.GroupChatID = chatID
	}
	if u.Message.From != nil {
		msg.SenderKey = strconv.FormatInt(u.Message.From.ID, 10)
		name := u.Message.From.FirstName
		if u.Message.From.LastName != "" {
			name += " " + u.Message.From.LastName
		}
		msg.SenderName = name
	} else {
		msg.SenderKey = chatID
	}

	if err := t.handler(ctx, msg); err != nil {
		t.logger.Error("telegram handler error", "error", err, "chat_id", chatID)
	}
}

type telegramUpdate struct {
	UpdateID int64            `json:"update_id"`
	Message  *telegramMessage `json:"message"`
}

type telegramMessage struct {
	MessageID int64         `json:"message_id"`
	From      *telegramUser `json:"from,omitempty"`
	Chat      telegramChat  `json:"chat"`
	Text      string        `json:"text"`
}

type telegramUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type telegramChat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

type telegramUpdateResponse struct {
	OK     bool             `json:"ok"`
	Result []telegramUpdate `json:"result"`
}

type telegramSendRequest struct {
	ChatID           string `json:"chat_id"`
	Text             string `json:"text"`
	ParseMode        string `json:"parse_mode,omitempty"`
	ReplyToMessageID int64  `json:"reply_to_message_id,omitempty"`
}

type telegramSendResponse struct {
	OK     bool `json:"ok"`
	Result struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

func (t *TelegramChannel) getUpdates(ctx context.Context) ([]telegramUpdate, error) {
	url := fmt.Sprintf("%s/bot%s/getUpdates?offset=%d&timeout=%d", t.baseURL, t.token, t.offset, telegramPollTimeout)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telegram API error %d: %s", resp.StatusCode, string(body))
	}

	var result telegramUpdateResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if !result.OK {
		return nil, fmt.Errorf("telegram API returned ok=false")
	}
	return result.Result, nil
}

func (t *TelegramChannel) sendMessage(ctx context.Context, sendReq telegramSendRequest) (int64, error) {
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)

	payload, err := json.Marshal(sendReq)
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1*1024*1024))
	if err != nil {
		return 0, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("telegram sendMessage error %d: %s", resp.StatusCode, string(body))
	}

	var result telegramSendResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, fmt.Errorf("unmarshal response: %w", err)
	}
	if !result.OK {
		return 0, fmt.Errorf("telegram sendMessage returned ok=false")
	}
	return result.Result.MessageID, nil
}
