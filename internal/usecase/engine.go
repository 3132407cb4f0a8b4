package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"wads/internal/domain"
	"wads/internal/infra/tracer"
)

const (
	cancelReply       = "OK, cancelled."
	genericErrorReply = "Sorry, something went wrong. Please try again."
)

// ConversationRequest is one inbound message ready for processing: the
// sender has already been resolved to a registered, active user.
type ConversationRequest struct {
	User        domain.User
	Body        string
	Channel     domain.MessagingProvider
	GroupChatID string // non-empty for group-chat messages
	SenderName  string // attribution name for group turns
	ReplyToID   string // channel message id for threaded replies
}

// Engine is the top-level conversation orchestrator. One ProcessConversation
// call handles one inbound message end to end: confirmation gating, history
// persistence, context building, the tool-call loop, and reply dispatch.
type Engine struct {
	locker       *ConversationLocker
	history      domain.HistoryStore
	pending      domain.PendingActionStore
	loop         *ToolLoop
	builder      *ContextBuilder
	guard        *ContextGuard // optional
	historyLimit int
	logger       *slog.Logger
	now          func() time.Time
}

// NewEngine wires the orchestrator.
func NewEngine(
	locker *ConversationLocker,
	history domain.HistoryStore,
	pending domain.PendingActionStore,
	loop *ToolLoop,
	builder *ContextBuilder,
	guard *ContextGuard,
	historyLimit int,
	logger *slog.Logger,
) *Engine {
	if historyLimit <= 0 {
		historyLimit = 50
	}
	return &Engine{
		locker:       locker,
		history:      history,
		pending:      pending,
		loop:         loop,
		builder:      builder,
		guard:        guard,
		historyLimit: historyLimit,
		logger:       logger,
		now:          time.Now,
	}
}

// ProcessConversation handles one inbound message. It never returns an
// error to the transport: every failure path ends in either a user-visible
// reply or a logged, swallowed send failure.
func (e *Engine) ProcessConversation(ctx context.Context, req ConversationRequest) {
	requestID := ulid.Make().String()
	log := e.logger.With("request_id", requestID, "user_id", req.User.ID, "channel", req.Channel.Name())

	ctx, span := tracer.StartSpan(ctx, "Engine.ProcessConversation")
	defer span.End()
	span.SetAttributes(tracer.StringAttr("request_id", requestID))

	scope := domain.PrivateScope(req.User.ID)
	if req.GroupChatID != "" {
		scope = domain.Scope{UserID: req.User.ID, GroupChatID: req.GroupChatID}
	}

	unlock, err := e.locker.Lock(ctx, scope.LockKey())
	if err != nil {
		log.Error("conversation lock not acquired", "error", err)
		tracer.RecordError(span, err)
		return
	}
	defer unlock()

	if err := e.process(ctx, req, scope, log); err != nil {
		log.Error("conversation processing error", "error", err)
		tracer.RecordError(span, err)
		e.send(ctx, req, genericErrorReply, log)
		return
	}
	tracer.SetOK(span)
}

func (e *Engine) process(ctx context.Context, req ConversationRequest, scope domain.Scope, log *slog.Logger) error {
	// Opportunistic sweep of expired confirmations, then the gate itself.
	if err := e.pending.ClearExpired(ctx); err != nil {
		return err
	}
	handled, err := e.resolvePending(ctx, req, scope, log)
	if err != nil || handled {
		return err
	}

	// The user turn is saved before the loop runs. A loop failure leaves it
	// without a reply; the orphaned-user-run pruning tolerates that.
	userContent := req.Body
	if scope.IsGroup() && req.SenderName != "" {
		userContent = "[" + req.SenderName + "]: " + req.Body
	}
	if _, err := e.history.Append(ctx, scope, domain.Message{Role: domain.RoleUser, Content: userContent}); err != nil {
		return err
	}

	history, err := e.history.Recent(ctx, scope, e.historyLimit)
	if err != nil {
		return err
	}

	systemPrompt := BuildSystemPrompt(PromptOptions{
		Channel:     req.Channel.Name(),
		IsGroup:     scope.IsGroup(),
		SenderName:  req.SenderName,
		DisplayName: req.User.DisplayName,
	})
	seed := e.builder.Build(systemPrompt, history)
	seed = e.guard.Trim(seed)

	result, err := e.loop.Run(e.requestContext(ctx, req), req.User.ID, seed)
	if err != nil {
		return err
	}

	// Everything past the seed is new this iteration; the user turn was
	// already saved above and the system prompt is never persisted.
	for _, msg := range result.Messages[len(seed):] {
		if msg.Role != domain.RoleAssistant && msg.Role != domain.RoleTool {
			continue
		}
		if _, err := e.history.Append(ctx, scope, msg); err != nil {
			return err
		}
	}

	if result.Pending != nil {
		if err := e.pending.Save(ctx, *result.Pending); err != nil {
			return err
		}
	}

	return e.dispatch(ctx, req, result.Reply, log)
}

// resolvePending handles the yes/no gate for a stored destructive action.
// Returns handled=true when the message was consumed by the gate and the
// rest of the pipeline must be skipped.
func (e *Engine) resolvePending(ctx context.Context, req ConversationRequest, scope domain.Scope, log *slog.Logger) (bool, error) {
	action, err := e.pending.Get(ctx, req.User.ID)
	if err != nil {
		return false, err
	}
	if action == nil {
		return false, nil
	}

	switch ClassifyConfirmation(req.Body) {
	case VerdictAffirm:
		reply := e.loop.ExecuteConfirmed(e.requestContext(ctx, req), *action)
		if err := e.pending.Clear(ctx, req.User.ID); err != nil {
			return false, err
		}
		if err := e.persistExchange(ctx, scope, req.Body, reply); err != nil {
			return false, err
		}
		log.Info("confirmed destructive action executed", "tool", action.ToolName)
		return true, e.dispatch(ctx, req, reply, log)

	case VerdictDeny:
		if err := e.pending.Clear(ctx, req.User.ID); err != nil {
			return false, err
		}
		if err := e.persistExchange(ctx, scope, req.Body, cancelReply); err != nil {
			return false, err
		}
		log.Info("destructive action cancelled", "tool", action.ToolName)
		return true, e.dispatch(ctx, req, cancelReply, log)

	default:
		// Unrelated message: the pending ask is stale, drop it and process
		// the message normally.
		if err := e.pending.Clear(ctx, req.User.ID); err != nil {
			return false, err
		}
		return false, nil
	}
}

func (e *Engine) persistExchange(ctx context.Context, scope domain.Scope, userBody, reply string) error {
	if _, err := e.history.Append(ctx, scope, domain.Message{Role: domain.RoleUser, Content: userBody}); err != nil {
		return err
	}
	_, err := e.history.Append(ctx, scope, domain.Message{Role: domain.RoleAssistant, Content: reply})
	return err
}

// dispatch sends the reply through the originating channel. Formatting
// beyond the parse-mode hint (length limits, MMS upgrades) belongs to the
// channel adapter.
func (e *Engine) dispatch(ctx context.Context, req ConversationRequest, reply string, log *slog.Logger) error {
	to := req.User.ReplyAddress()
	if req.GroupChatID != "" {
		to = req.GroupChatID
	}
	out := domain.OutboundMessage{
		To:        to,
		Body:      reply,
		ReplyToID: req.ReplyToID,
	}
	if req.Channel.Name() == "telegram" {
		out.ParseMode = "HTML"
	}
	if _, err := req.Channel.Send(ctx, out); err != nil {
		return domain.WrapOp("Engine.dispatch", err)
	}
	log.Info("reply sent", "reply_length", len(reply))
	return nil
}

// send is the best-effort fallback path: a failure here is logged and
// swallowed, never re-thrown to the transport.
func (e *Engine) send(ctx context.Context, req ConversationRequest, body string, log *slog.Logger) {
	to := req.User.ReplyAddress()
	if req.GroupChatID != "" {
		to = req.GroupChatID
	}
	if _, err := req.Channel.Send(ctx, domain.OutboundMessage{To: to, Body: body}); err != nil {
		log.Error("failed to send fallback message", "error", err)
	}
}

func (e *Engine) requestContext(ctx context.Context, req ConversationRequest) context.Context {
	return domain.ContextWithRequester(ctx, domain.Requester{
		UserID:       req.User.ID,
		DisplayName:  req.User.DisplayName,
		IsAdmin:      req.User.IsAdmin,
		ReplyAddress: req.User.ReplyAddress(),
		GroupChatID:  req.GroupChatID,
	})
}
