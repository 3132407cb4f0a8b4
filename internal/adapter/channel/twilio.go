package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"wads/internal/domain"
	"wads/internal/infra/config"
)

// smsMaxLength is the reply length above which an MMS pixel is attached.
// Carriers split long SMS bodies into awkward segments; forcing MMS keeps
// the reply as one message.
const smsMaxLength = 300

// TwilioChannel implements domain.Channel over the Twilio Messages REST
// API for outbound and an SMS webhook server for inbound.
type TwilioChannel struct {
	accountSID string
	authToken  string
	from       string
	listenAddr string
	mmsPixel   string
	logger     *slog.Logger
	client     *http.Client
	baseURL    string
	server     *http.Server
}

// NewTwilioChannel creates a Twilio SMS channel.
func NewTwilioChannel(cfg config.TwilioConfig, logger *slog.Logger) *TwilioChannel {
	return &TwilioChannel{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		from:       cfg.From,
		listenAddr: cfg.ListenAddr,
		mmsPixel:   cfg.MMSPixel,
		logger:     logger,
		client:     &http.Client{Timeout: 30 * time.Second},
		baseURL:    "https://api.twilio.com",
	}
}

// Name implements domain.MessagingProvider.
func (t *TwilioChannel) Name() string { return "sms" }

// Start runs the inbound SMS webhook server. Non-blocking.
func (t *TwilioChannel) Start(ctx context.Context, handler domain.MessageHandler) error {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhooks/sms", func(w http.ResponseWriter, r *http.Request) {
		t.handleInbound(r.Context(), w, r, handler)
	})

	t.server = &http.Server{
		Addr:              t.listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := t.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.logger.Error("sms webhook server failed", "error", err)
		}
	}()
	t.logger.Info("sms channel started", "addr", t.listenAddr)
	return nil
}

// Stop shuts the webhook server down.
func (t *TwilioChannel) Stop(ctx context.Context) error {
	if t.server == nil {
		return nil
	}
	return t.server.Shutdown(ctx)
}

func (t *TwilioChannel) handleInbound(ctx context.Context, w http.ResponseWriter, r *http.Request, handler domain.MessageHandler) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	from := r.PostFormValue("From")
	body := r.PostFormValue("Body")
	if from == "" || body == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	msg := domain.InboundMessage{
		ChannelName: t.Name(),
		SenderKey:   from,
		Body:        body,
	}
	if err := handler(ctx, msg); err != nil {
		t.logger.Error("sms handler error", "error", err, "from", from)
	}

	// Replies go out through the REST API; the webhook response is an
	// empty TwiML document.
	w.Header().Set("Content-Type", "text/xml")
	fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`)
}

type twilioSendResponse struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

// Send delivers an SMS through the Messages REST API. Replies longer than
// smsMaxLength get the configured MMS pixel attached.
func (t *TwilioChannel) Send(ctx context.Context, msg domain.OutboundMessage) (*domain.SendResult, error) {
	form := url.Values{
		"To":   {msg.To},
		"From": {t.from},
		"Body": {msg.Body},
	}
	media := msg.MediaURLs
	if len(media) == 0 && len(msg.Body) > smsMaxLength && t.mmsPixel != "" {
		media = []string{t.mmsPixel}
	}
	for _, u := range media {
		form.Add("MediaUrl", u)
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", t.baseURL, t.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, domain.WrapOp("twilio.Send", err)
	}
	req.SetBasicAuth(t.accountSID, t.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("twilio.Send: %w: %v", domain.ErrSendFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1*1024*1024))
	if err != nil {
		return nil, domain.WrapOp("twilio.Send", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("twilio.Send: %w: status %d: %s", domain.ErrSendFailed, resp.StatusCode, string(body))
	}

	var result twilioSendResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, domain.WrapOp("twilio.Send", err)
	}
	return &domain.SendResult{ID: result.SID, Status: result.Status}, nil
}
