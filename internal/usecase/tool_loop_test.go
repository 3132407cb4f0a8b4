package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wads/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedProvider returns canned responses in order and records every
// request it saw.
type scriptedProvider struct {
	responses []domain.Message
	err       error
	requests  []domain.ChatRequest
}

func (p *scriptedProvider) Chat(_ context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	idx := len(p.requests) - 1
	if idx >= len(p.responses) {
		idx = len(p.responses) - 1
	}
	return &domain.ChatResponse{Message: p.responses[idx]}, nil
}

func (p *scriptedProvider) Name() string { return "scripted" }

type fakeTool struct {
	name       string
	tier       domain.ConfirmationTier
	result     *domain.ToolResult
	err        error
	executions int
	lastParams json.RawMessage
}

func (t *fakeTool) Name() string                  { return t.name }
func (t *fakeTool) Description() string           { return t.name }
func (t *fakeTool) Schema() domain.ToolSchema     { return domain.ToolSchema{Name: t.name} }
func (t *fakeTool) Tier() domain.ConfirmationTier { return t.tier }

func (t *fakeTool) Execute(_ context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	t.executions++
	t.lastParams = params
	if t.err != nil {
		return nil, t.err
	}
	if t.result != nil {
		return t.result, nil
	}
	return &domain.ToolResult{Content: "ok"}, nil
}

type fakeExecutor struct {
	tools       map[string]*fakeTool
	validateErr map[string]error
}

func newFakeExecutor(tools ...*fakeTool) *fakeExecutor {
	e := &fakeExecutor{tools: map[string]*fakeTool{}, validateErr: map[string]error{}}
	for _, t := range tools {
		e.tools[t.name] = t
	}
	return e
}

func (e *fakeExecutor) Get(name string) (domain.Tool, error) {
	t, ok := e.tools[name]
	if !ok {
		return nil, domain.ErrToolNotFound
	}
	return t, nil
}

func (e *fakeExecutor) Schemas() []domain.ToolSchema {
	out := make([]domain.ToolSchema, 0, len(e.tools))
	for _, t := range e.tools {
		out = append(out, t.Schema())
	}
	return out
}

func (e *fakeExecutor) IsDestructive(name string) bool {
	t, ok := e.tools[name]
	return ok && t.tier == domain.TierDestructive
}

func (e *fakeExecutor) Validate(name string, _ json.RawMessage) error {
	return e.validateErr[name]
}

func seedMessages() []domain.Message {
	return []domain.Message{
		{Role: domain.RoleSystem, Content: "prompt"},
		{Role: domain.RoleUser, Content: "hi"},
	}
}

func TestToolLoopFinalTextResponse(t *testing.T) {
	provider := &scriptedProvider{responses: []domain.Message{
		{Role: domain.RoleAssistant, Content: "hey there"},
	}}
	loop := NewToolLoop(provider, newFakeExecutor(), "test-model", 10, discardLogger())

	result, err := loop.Run(context.Background(), 1, seedMessages())
	require.NoError(t, err)
	assert.Equal(t, "hey there", result.Reply)
	assert.Nil(t, result.Pending)
	assert.Len(t, result.Messages, 3)
	assert.Len(t, provider.requests, 1)
}

func TestToolLoopExecutesSafeTool(t *testing.T) {
	search := &fakeTool{name: "search_movies", tier: domain.TierSafe, result: &domain.ToolResult{Content: `{"results":[1]}`}}
	provider := &scriptedProvider{responses: []domain.Message{
		{Role: domain.RoleAssistant, ToolCalls: []domain.ToolCall{{ID: "tc1", Name: "search_movies", Arguments: []byte(`{"query":"dune"}`)}}},
		{Role: domain.RoleAssistant, Content: "found Dune"},
	}}
	loop := NewToolLoop(provider, newFakeExecutor(search), "test-model", 10, discardLogger())

	result, err := loop.Run(context.Background(), 1, seedMessages())
	require.NoError(t, err)
	assert.Equal(t, "found Dune", result.Reply)
	assert.Equal(t, 1, search.executions)

	// seed + assistant(tool call) + tool result + final assistant
	require.Len(t, result.Messages, 5)
	toolTurn := result.Messages[3]
	assert.Equal(t, domain.RoleTool, toolTurn.Role)
	assert.Equal(t, "tc1", toolTurn.ToolCallID)
	assert.Equal(t, `{"results":[1]}`, toolTurn.Content)
}

func TestToolLoopArgumentErrors(t *testing.T) {
	search := &fakeTool{name: "search_movies", tier: domain.TierSafe}
	provider := &scriptedProvider{responses: []domain.Message{
		{Role: domain.RoleAssistant, ToolCalls: []domain.ToolCall{
			{ID: "tc1", Name: "search_movies", Arguments: []byte(`{not json`)},
			{ID: "tc2", Name: "no_such_tool", Arguments: []byte(`{}`)},
		}},
		{Role: domain.RoleAssistant, Content: "sorry about that"},
	}}
	loop := NewToolLoop(provider, newFakeExecutor(search), "test-model", 10, discardLogger())

	result, err := loop.Run(context.Background(), 1, seedMessages())
	require.NoError(t, err)
	assert.Equal(t, "sorry about that", result.Reply)
	assert.Zero(t, search.executions)

	var errTurns []domain.Message
	for _, m := range result.Messages {
		if m.Role == domain.RoleTool {
			errTurns = append(errTurns, m)
		}
	}
	require.Len(t, errTurns, 2)
	assert.Contains(t, errTurns[0].Content, "invalid JSON arguments")
	assert.Contains(t, errTurns[1].Content, "unknown tool")
}

func TestToolLoopSchemaValidationFailure(t *testing.T) {
	search := &fakeTool{name: "search_movies", tier: domain.TierSafe}
	exec := newFakeExecutor(search)
	exec.validateErr["search_movies"] = errors.New("query is required")
	provider := &scriptedProvider{responses: []domain.Message{
		{Role: domain.RoleAssistant, ToolCalls: []domain.ToolCall{{ID: "tc1", Name: "search_movies", Arguments: []byte(`{}`)}}},
		{Role: domain.RoleAssistant, Content: "let me retry"},
	}}
	loop := NewToolLoop(provider, exec, "test-model", 10, discardLogger())

	result, err := loop.Run(context.Background(), 1, seedMessages())
	require.NoError(t, err)
	assert.Zero(t, search.executions)
	assert.Contains(t, result.Messages[3].Content, "query is required")
}

func TestToolLoopToolFailureBecomesToolTurn(t *testing.T) {
	search := &fakeTool{name: "search_movies", tier: domain.TierSafe, err: errors.New("radarr unreachable")}
	provider := &scriptedProvider{responses: []domain.Message{
		{Role: domain.RoleAssistant, ToolCalls: []domain.ToolCall{{ID: "tc1", Name: "search_movies", Arguments: []byte(`{}`)}}},
		{Role: domain.RoleAssistant, Content: "something broke"},
	}}
	loop := NewToolLoop(provider, newFakeExecutor(search), "test-model", 10, discardLogger())

	result, err := loop.Run(context.Background(), 1, seedMessages())
	require.NoError(t, err)
	assert.Equal(t, "something broke", result.Reply)
	assert.Contains(t, result.Messages[3].Content, "radarr unreachable")
}

func TestToolLoopDestructiveGate(t *testing.T) {
	remove := &fakeTool{name: "remove_movie", tier: domain.TierDestructive}
	provider := &scriptedProvider{responses: []domain.Message{
		{Role: domain.RoleAssistant, ToolCalls: []domain.ToolCall{{ID: "tc1", Name: "remove_movie", Arguments: []byte(`{"libraryId":7}`)}}},
	}}
	loop := NewToolLoop(provider, newFakeExecutor(remove), "test-model", 10, discardLogger())

	before := time.Now()
	result, err := loop.Run(context.Background(), 42, seedMessages())
	require.NoError(t, err)

	assert.Zero(t, remove.executions, "destructive tool must not execute before confirmation")
	require.NotNil(t, result.Pending)
	assert.Equal(t, int64(42), result.Pending.UserID)
	assert.Equal(t, "remove_movie", result.Pending.ToolName)
	assert.JSONEq(t, `{"libraryId":7}`, result.Pending.Arguments)
	assert.Contains(t, result.Reply, "remove_movie")
	assert.Contains(t, result.Reply, "(yes/no)")
	assert.Equal(t, result.Reply, result.Pending.PromptText)

	ttl := result.Pending.ExpiresAt.Sub(before)
	assert.InDelta(t, domain.PendingActionTTL.Seconds(), ttl.Seconds(), 5)

	// Only one model call happened; the gate short-circuits the loop.
	assert.Len(t, provider.requests, 1)
}

func TestToolLoopMaxIterationsFallback(t *testing.T) {
	search := &fakeTool{name: "search_movies", tier: domain.TierSafe}
	provider := &scriptedProvider{responses: []domain.Message{
		{Role: domain.RoleAssistant, ToolCalls: []domain.ToolCall{{ID: "tc1", Name: "search_movies", Arguments: []byte(`{}`)}}},
	}}
	loop := NewToolLoop(provider, newFakeExecutor(search), "test-model", 3, discardLogger())

	result, err := loop.Run(context.Background(), 1, seedMessages())
	require.NoError(t, err)
	assert.Equal(t, FallbackReply, result.Reply)
	assert.Len(t, provider.requests, 3)
	// Every intermediate turn is in the running list: seed + 3×(assistant+tool).
	assert.Len(t, result.Messages, len(seedMessages())+6)
}

func TestToolLoopProviderErrorPropagates(t *testing.T) {
	provider := &scriptedProvider{err: errors.New("connection refused")}
	loop := NewToolLoop(provider, newFakeExecutor(), "test-model", 10, discardLogger())

	_, err := loop.Run(context.Background(), 1, seedMessages())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "connection refused"))
}

func TestExecuteConfirmed(t *testing.T) {
	remove := &fakeTool{name: "remove_movie", tier: domain.TierDestructive, result: &domain.ToolResult{Content: "removed Dune"}}
	loop := NewToolLoop(&scriptedProvider{}, newFakeExecutor(remove), "test-model", 10, discardLogger())

	action := domain.PendingAction{UserID: 1, ToolName: "remove_movie", Arguments: `{"libraryId":7}`}
	reply := loop.ExecuteConfirmed(context.Background(), action)

	assert.Equal(t, 1, remove.executions)
	assert.Equal(t, "Done! removed Dune", reply)
	assert.JSONEq(t, `{"libraryId":7}`, string(remove.lastParams))
}

func TestExecuteConfirmedFailureReported(t *testing.T) {
	remove := &fakeTool{name: "remove_movie", tier: domain.TierDestructive, err: errors.New("not found")}
	loop := NewToolLoop(&scriptedProvider{}, newFakeExecutor(remove), "test-model", 10, discardLogger())

	reply := loop.ExecuteConfirmed(context.Background(), domain.PendingAction{ToolName: "remove_movie", Arguments: `{}`})
	assert.Contains(t, reply, "Sorry, that failed")
	assert.Contains(t, reply, "not found")
}

func TestExecuteConfirmedUnknownTool(t *testing.T) {
	loop := NewToolLoop(&scriptedProvider{}, newFakeExecutor(), "test-model", 10, discardLogger())
	reply := loop.ExecuteConfirmed(context.Background(), domain.PendingAction{ToolName: "gone", Arguments: `{}`})
	assert.Equal(t, "Sorry, that action is no longer available.", reply)
}
