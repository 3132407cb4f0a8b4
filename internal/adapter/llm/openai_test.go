package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"wads/internal/domain"
	"wads/internal/infra/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestProvider(url string) *OpenAIProvider {
	return NewOpenAIProvider(config.LLMConfig{
		BaseURL: url,
		APIKey:  "test-key",
		Model:   "gpt-4o-mini",
	}, testLogger())
}

func TestOpenAIChatTextResponse(t *testing.T) {
	var gotReq openaiRequest
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(openaiResponse{
			ID:    "chatcmpl-1",
			Model: "gpt-4o-mini",
			Choices: []openaiChoice{{
				Message:      openaiMessage{Role: "assistant", Content: "hey there"},
				FinishReason: "stop",
			}},
			Usage: openaiUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		})
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	resp, err := p.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Content: "prompt"},
			{Role: domain.RoleUser, Content: "hi"},
		},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotReq.Model != "gpt-4o-mini" {
		t.Errorf("request model = %q, want configured default", gotReq.Model)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[1].Content != "hi" {
		t.Errorf("request messages = %+v", gotReq.Messages)
	}
	if resp.Message.Content != "hey there" {
		t.Errorf("reply = %q", resp.Message.Content)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Errorf("usage = %+v", resp.Usage)
	}
}

func TestOpenAIChatToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openaiRequest
		json.NewDecoder(r.Body).Decode(&req)

		// Tool definitions must be advertised with type "function".
		if len(req.Tools) != 1 || req.Tools[0].Type != "function" || req.Tools[0].Function.Name != "search_movies" {
			t.Errorf("tools = %+v", req.Tools)
		}

		json.NewEncoder(w).Encode(openaiResponse{
			Choices: []openaiChoice{{
				Message: openaiMessage{
					Role: "assistant",
					ToolCalls: []openaiToolCall{{
						ID:   "tc1",
						Type: "function",
						Function: openaiToolCallFunction{
							Name:      "search_movies",
							Arguments: `{"query":"dune"}`,
						},
					}},
				},
				FinishReason: "tool_calls",
			}},
		})
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	resp, err := p.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "find dune"}},
		Tools: []domain.ToolSchema{{
			Name:        "search_movies",
			Description: "search",
			Parameters:  json.RawMessage(`{"type":"object"}`),
		}},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if len(resp.Message.ToolCalls) != 1 {
		t.Fatalf("tool calls = %+v", resp.Message.ToolCalls)
	}
	tc := resp.Message.ToolCalls[0]
	if tc.ID != "tc1" || tc.Name != "search_movies" || string(tc.Arguments) != `{"query":"dune"}` {
		t.Errorf("tool call = %+v", tc)
	}
}

func TestOpenAIChatSkipsNonFunctionCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(openaiResponse{
			Choices: []openaiChoice{{
				Message: openaiMessage{
					Role: "assistant",
					ToolCalls: []openaiToolCall{
						{ID: "tc1", Type: "custom", Function: openaiToolCallFunction{Name: "mystery"}},
						{ID: "tc2", Type: "function", Function: openaiToolCallFunction{
							Name:      "search_movies",
							Arguments: `{"query":"dune"}`,
						}},
					},
				},
				FinishReason: "tool_calls",
			}},
		})
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	resp, err := p.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "find dune"}},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if len(resp.Message.ToolCalls) != 1 || resp.Message.ToolCalls[0].ID != "tc2" {
		t.Errorf("tool calls = %+v, want only the function-typed call", resp.Message.ToolCalls)
	}
}

func TestOpenAIChatNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(openaiResponse{ID: "chatcmpl-1", Model: "gpt-4o-mini"})
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	_, err := p.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "hi"}},
	})
	if !errors.Is(err, domain.ErrProviderError) {
		t.Errorf("empty choices mapped to %v, want provider error", err)
	}
}

func TestOpenAIChatRoundTripsToolTurns(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openaiRequest
		json.NewDecoder(r.Body).Decode(&req)

		// Assistant tool calls and tool results must survive the wire
		// mapping or the API rejects the prompt.
		if len(req.Messages) != 3 {
			t.Fatalf("messages = %+v", req.Messages)
		}
		if len(req.Messages[1].ToolCalls) != 1 || req.Messages[1].ToolCalls[0].ID != "tc1" {
			t.Errorf("assistant tool calls = %+v", req.Messages[1].ToolCalls)
		}
		if req.Messages[2].Role != "tool" || req.Messages[2].ToolCallID != "tc1" {
			t.Errorf("tool turn = %+v", req.Messages[2])
		}

		json.NewEncoder(w).Encode(openaiResponse{
			Choices: []openaiChoice{{Message: openaiMessage{Role: "assistant", Content: "done"}}},
		})
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	_, err := p.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{
			{Role: domain.RoleUser, Content: "search dune"},
			{Role: domain.RoleAssistant, ToolCalls: []domain.ToolCall{{ID: "tc1", Name: "search_movies", Arguments: []byte(`{}`)}}},
			{Role: domain.RoleTool, Content: `{"results":[]}`, ToolCallID: "tc1"},
		},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
}

func TestOpenAIChatErrorMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, domain.ErrRateLimit},
		{http.StatusBadGateway, domain.ErrProviderError},
		{http.StatusBadRequest, domain.ErrProviderError},
	}

	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))
		p := newTestProvider(srv.URL)
		_, err := p.Chat(context.Background(), domain.ChatRequest{})
		if !errors.Is(err, tc.want) {
			t.Errorf("status %d mapped to %v, want %v", tc.status, err, tc.want)
		}
		srv.Close()
	}
}
