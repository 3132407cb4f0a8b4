package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"wads/internal/domain"
	"wads/internal/infra/tracer"
)

// FallbackReply is returned when the loop exhausts its iteration budget
// without the model settling on a final answer.
const FallbackReply = "I'm having trouble processing that. Could you try rephrasing?"

// ToolLoopResult is what a loop run produced. Messages is the full running
// list (seed prompt plus everything appended during the run); the caller
// derives which entries are new and persists those.
type ToolLoopResult struct {
	Reply    string
	Pending  *domain.PendingAction
	Messages []domain.Message
}

// ToolLoop drives repeated model invocation and tool execution until the
// model produces a final text reply, a destructive call hits the
// confirmation gate, or the iteration budget runs out.
type ToolLoop struct {
	provider      domain.LLMProvider
	tools         domain.ToolExecutor
	model         string
	maxIterations int
	logger        *slog.Logger
	now           func() time.Time
}

// NewToolLoop creates a tool-call loop.
func NewToolLoop(provider domain.LLMProvider, tools domain.ToolExecutor, model string, maxIterations int, logger *slog.Logger) *ToolLoop {
	if maxIterations <= 0 {
		maxIterations = 10
	}
	return &ToolLoop{
		provider:      provider,
		tools:         tools,
		model:         model,
		maxIterations: maxIterations,
		logger:        logger,
		now:           time.Now,
	}
}

// Run executes the loop over a running list seeded with the built context
// window. Model-call failures propagate to the caller; tool failures never
// do, they become tool-error turns the model can react to.
func (l *ToolLoop) Run(ctx context.Context, userID int64, seed []domain.Message) (*ToolLoopResult, error) {
	ctx, span := tracer.StartSpan(ctx, "ToolLoop.Run")
	defer span.End()

	messages := make([]domain.Message, len(seed))
	copy(messages, seed)
	schemas := l.tools.Schemas()

	for iteration := 0; iteration < l.maxIterations; iteration++ {
		l.logger.Info("calling llm", "iteration", iteration, "message_count", len(messages))

		resp, err := l.provider.Chat(ctx, domain.ChatRequest{
			Model:    l.model,
			Messages: messages,
			Tools:    schemas,
		})
		if err != nil {
			tracer.RecordError(span, err)
			return nil, domain.WrapOp("ToolLoop.Run", err)
		}

		assistant := resp.Message
		assistant.Timestamp = l.now()
		messages = append(messages, assistant)

		if len(assistant.ToolCalls) == 0 {
			tracer.SetOK(span)
			return &ToolLoopResult{Reply: assistant.Content, Messages: messages}, nil
		}

		for _, call := range assistant.ToolCalls {
			if !json.Valid(call.Arguments) {
				messages = l.appendToolError(messages, call, fmt.Sprintf("invalid JSON arguments for tool: %s", call.Name))
				continue
			}
			if _, err := l.tools.Get(call.Name); err != nil {
				messages = l.appendToolError(messages, call, fmt.Sprintf("unknown tool: %s", call.Name))
				continue
			}
			if err := l.tools.Validate(call.Name, call.Arguments); err != nil {
				messages = l.appendToolError(messages, call, fmt.Sprintf("invalid arguments: %s", err))
				continue
			}

			// The first destructive call short-circuits the whole loop;
			// nothing executes until the user says yes.
			if l.tools.IsDestructive(call.Name) {
				prompt := confirmationPrompt(call)
				pending := &domain.PendingAction{
					UserID:     userID,
					ToolName:   call.Name,
					Arguments:  string(call.Arguments),
					PromptText: prompt,
					ExpiresAt:  l.now().Add(domain.PendingActionTTL),
				}
				tracer.SetOK(span)
				return &ToolLoopResult{Reply: prompt, Pending: pending, Messages: messages}, nil
			}

			messages = append(messages, l.executeCall(ctx, call))
		}
	}

	l.logger.Warn("tool loop exhausted iteration budget", "user_id", userID, "max_iterations", l.maxIterations)
	tracer.SetOK(span)
	return &ToolLoopResult{Reply: FallbackReply, Messages: messages}, nil
}

// ExecuteConfirmed runs a previously gated destructive call after the user
// approved it. Same discipline as safe-tier execution: failures are caught
// and reported as text, never propagated.
func (l *ToolLoop) ExecuteConfirmed(ctx context.Context, action domain.PendingAction) string {
	ctx, span := tracer.StartSpan(ctx, "ToolLoop.ExecuteConfirmed")
	defer span.End()
	span.SetAttributes(tracer.StringAttr("tool", action.ToolName))

	tool, err := l.tools.Get(action.ToolName)
	if err != nil {
		return "Sorry, that action is no longer available."
	}
	if err := l.tools.Validate(action.ToolName, json.RawMessage(action.Arguments)); err != nil {
		l.logger.Warn("stored confirmation failed validation", "tool", action.ToolName, "error", err)
		return fmt.Sprintf("Sorry, that failed: %s", err)
	}

	result, err := tool.Execute(ctx, json.RawMessage(action.Arguments))
	if err != nil {
		l.logger.Error("confirmed tool execution failed", "tool", action.ToolName, "error", err)
		tracer.RecordError(span, err)
		return fmt.Sprintf("Sorry, that failed: %s", err)
	}
	if result.IsError {
		return fmt.Sprintf("Sorry, that failed: %s", result.Content)
	}
	tracer.SetOK(span)
	return fmt.Sprintf("Done! %s", result.Content)
}

func (l *ToolLoop) executeCall(ctx context.Context, call domain.ToolCall) domain.Message {
	tool, err := l.tools.Get(call.Name)
	if err != nil {
		return toolErrorMessage(call, err.Error())
	}

	result, err := tool.Execute(ctx, call.Arguments)
	if err != nil {
		l.logger.Error("tool execution error", "tool", call.Name, "error", err)
		return toolErrorMessage(call, err.Error())
	}

	l.logger.Info("tool executed", "tool", call.Name, "is_error", result.IsError)
	return domain.Message{
		Role:       domain.RoleTool,
		Name:       call.Name,
		Content:    result.Content,
		ToolCallID: call.ID,
		Timestamp:  l.now(),
	}
}

func (l *ToolLoop) appendToolError(messages []domain.Message, call domain.ToolCall, detail string) []domain.Message {
	l.logger.Warn("tool call rejected", "tool", call.Name, "detail", detail)
	return append(messages, toolErrorMessage(call, detail))
}

func toolErrorMessage(call domain.ToolCall, detail string) domain.Message {
	content, _ := json.Marshal(map[string]string{"error": detail})
	return domain.Message{
		Role:       domain.RoleTool,
		Name:       call.Name,
		Content:    string(content),
		ToolCallID: call.ID,
		Timestamp:  time.Now(),
	}
}

// confirmationPrompt renders a destructive call as a human-readable yes/no
// question, e.g. `I'd like to remove_movie with libraryId: 7. Are you sure?
// (yes/no)`.
func confirmationPrompt(call domain.ToolCall) string {
	var args map[string]json.RawMessage
	summary := "no arguments"
	if err := json.Unmarshal(call.Arguments, &args); err == nil && len(args) > 0 {
		keys := make([]string, 0, len(args))
		for k := range args {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s: %s", k, args[k]))
		}
		summary = strings.Join(parts, ", ")
	}
	return fmt.Sprintf("I'd like to %s with %s. Are you sure? (yes/no)", call.Name, summary)
}
