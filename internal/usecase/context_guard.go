package usecase

import (
	"log/slog"

	"github.com/pkoukk/tiktoken-go"

	"wads/internal/domain"
)

// perMessageOverhead approximates the protocol framing tokens the chat API
// adds around each message.
const perMessageOverhead = 4

// ContextGuard bounds the built prompt by token count rather than turn
// count. The turn window keeps prompts small in the common case; the guard
// catches the pathological one (a handful of turns carrying huge tool
// results) by dropping the oldest history groups until the prompt fits.
type ContextGuard struct {
	maxTokens int
	encoder   *tiktoken.Tiktoken
	logger    *slog.Logger
}

// NewContextGuard creates a guard using the named tiktoken encoding.
func NewContextGuard(maxTokens int, encoding string, logger *slog.Logger) (*ContextGuard, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, domain.WrapOp("NewContextGuard", err)
	}
	return &ContextGuard{
		maxTokens: maxTokens,
		encoder:   enc,
		logger:    logger,
	}, nil
}

// Trim drops the oldest history turns until the prompt fits maxTokens.
// The system prompt (index 0) and the newest turn are never dropped, and an
// assistant turn with tool calls is dropped together with its results so
// the prompt stays protocol valid.
func (g *ContextGuard) Trim(messages []domain.Message) []domain.Message {
	if g == nil || len(messages) <= 2 {
		return messages
	}

	total := g.countAll(messages)
	if total <= g.maxTokens {
		return messages
	}

	trimmed := make([]domain.Message, len(messages))
	copy(trimmed, messages)
	dropped := 0
	for total > g.maxTokens && len(trimmed) > 2 {
		// Index 1 is the oldest history turn. Drop its whole group.
		n := 1
		if len(trimmed[1].ToolCalls) > 0 {
			for n+1 < len(trimmed) && trimmed[n+1].Role == domain.RoleTool {
				n++
			}
		}
		if 1+n >= len(trimmed) {
			break
		}
		for _, m := range trimmed[1 : 1+n] {
			total -= g.count(m)
		}
		trimmed = append(trimmed[:1], trimmed[1+n:]...)
		dropped += n
	}

	if dropped > 0 {
		g.logger.Warn("context guard: trimmed oldest turns to fit token budget",
			"dropped_turns", dropped,
			"tokens", total,
			"max_tokens", g.maxTokens,
		)
	}
	return trimmed
}

func (g *ContextGuard) countAll(messages []domain.Message) int {
	total := 0
	for _, m := range messages {
		total += g.count(m)
	}
	return total
}

func (g *ContextGuard) count(m domain.Message) int {
	tokens := perMessageOverhead + len(g.encoder.Encode(m.Content, nil, nil))
	for _, tc := range m.ToolCalls {
		tokens += len(g.encoder.Encode(tc.Name, nil, nil))
		tokens += len(g.encoder.Encode(string(tc.Arguments), nil, nil))
	}
	return tokens
}
