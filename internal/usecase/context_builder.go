package usecase

import (
	"time"

	"wads/internal/domain"
)

// ContextBuilder turns stored history into the bounded, protocol-valid
// message list sent to the model. The model API rejects prompts containing
// an assistant turn with unresolved tool calls or a tool turn with no
// matching call, so windowing always moves whole tool-call groups and a
// final sanitize pass removes any pairing broken at the window boundary.
type ContextBuilder struct {
	maxTurns int
}

// NewContextBuilder creates a context builder bounded to maxTurns history
// turns (the system prompt is not counted).
func NewContextBuilder(maxTurns int) *ContextBuilder {
	return &ContextBuilder{maxTurns: maxTurns}
}

// Build assembles: system prompt + pruned, windowed, sanitized history.
func (cb *ContextBuilder) Build(systemPrompt string, history []domain.ChatMessage) []domain.Message {
	pruned := PruneOrphanedUserTurns(history)
	windowed := cb.window(pruned)
	sane := sanitizeToolPairs(windowed)

	messages := make([]domain.Message, 0, 1+len(sane))
	messages = append(messages, domain.Message{
		Role:      domain.RoleSystem,
		Content:   systemPrompt,
		Timestamp: time.Now(),
	})
	for _, m := range sane {
		messages = append(messages, m.AsMessage())
	}
	return messages
}

// PruneOrphanedUserTurns collapses runs of consecutive user turns down to
// the last turn of each run. Such runs arise when an earlier request saved
// the user's turn but crashed before producing a reply. Tool turns do not
// break a run; they are subordinate to their parent assistant turn and are
// dropped along with the run they sit inside. An assistant turn terminates
// a run. Returns a new slice and never mutates the input.
func PruneOrphanedUserTurns(history []domain.ChatMessage) []domain.ChatMessage {
	if len(history) == 0 {
		return nil
	}

	result := make([]domain.ChatMessage, 0, len(history))
	pending := -1 // index of the last user turn in the active run
	for i := range history {
		switch history[i].Role {
		case domain.RoleUser:
			pending = i
		case domain.RoleTool:
			if pending >= 0 {
				continue
			}
			result = append(result, history[i])
		default:
			if pending >= 0 {
				result = append(result, history[pending])
				pending = -1
			}
			result = append(result, history[i])
		}
	}
	if pending >= 0 {
		result = append(result, history[pending])
	}
	return result
}

// window selects up to maxTurns turns scanning backward from the newest,
// pulling in whole tool-call groups so no pairing is split at the boundary.
func (cb *ContextBuilder) window(history []domain.ChatMessage) []domain.ChatMessage {
	if cb.maxTurns <= 0 || len(history) <= cb.maxTurns {
		return history
	}

	included := make([]bool, len(history))
	count := 0
	include := func(i int) {
		if !included[i] {
			included[i] = true
			count++
		}
	}

	for i := len(history) - 1; i >= 0 && count < cb.maxTurns; i-- {
		if included[i] {
			continue
		}
		msg := history[i]
		switch {
		case msg.Role == domain.RoleTool && msg.ToolCallID != "":
			// Pull in the originating assistant turn and every sibling
			// result between it and here.
			a := originatingAssistant(history, i)
			if a < 0 {
				include(i) // orphan, sanitize drops it
				continue
			}
			include(a)
			callSet := callIDSet(history[a].ToolCalls)
			for j := a + 1; j <= i; j++ {
				if history[j].Role == domain.RoleTool {
					if _, ok := callSet[history[j].ToolCallID]; ok {
						include(j)
					}
				}
			}

		case msg.Role == domain.RoleAssistant && len(msg.ToolCalls) > 0:
			include(i)
			callSet := callIDSet(msg.ToolCalls)
			for j := i + 1; j < len(history); j++ {
				if history[j].Role != domain.RoleTool {
					break
				}
				if _, ok := callSet[history[j].ToolCallID]; ok {
					include(j)
				}
			}

		default:
			include(i)
		}
	}

	result := make([]domain.ChatMessage, 0, count)
	for i := range history {
		if included[i] {
			result = append(result, history[i])
		}
	}
	return result
}

// sanitizeToolPairs enforces the pairing invariant on the assembled window:
// an assistant turn with tool calls stays only if every declared call id has
// a tool result present, and a tool turn stays only if its call id belongs
// to an assistant turn that was itself kept.
func sanitizeToolPairs(history []domain.ChatMessage) []domain.ChatMessage {
	resultIDs := make(map[string]struct{})
	for _, m := range history {
		if m.Role == domain.RoleTool && m.ToolCallID != "" {
			resultIDs[m.ToolCallID] = struct{}{}
		}
	}

	keptCallIDs := make(map[string]struct{})
	result := make([]domain.ChatMessage, 0, len(history))
	for _, m := range history {
		switch {
		case m.Role == domain.RoleAssistant && len(m.ToolCalls) > 0:
			complete := true
			for _, tc := range m.ToolCalls {
				if _, ok := resultIDs[tc.ID]; !ok {
					complete = false
					break
				}
			}
			if !complete {
				continue
			}
			for _, tc := range m.ToolCalls {
				keptCallIDs[tc.ID] = struct{}{}
			}
			result = append(result, m)

		case m.Role == domain.RoleTool:
			if _, ok := keptCallIDs[m.ToolCallID]; !ok {
				continue
			}
			result = append(result, m)

		default:
			result = append(result, m)
		}
	}
	return result
}

// originatingAssistant finds the nearest assistant turn before i whose
// call-id set contains the tool turn's ToolCallID.
func originatingAssistant(history []domain.ChatMessage, i int) int {
	id := history[i].ToolCallID
	for j := i - 1; j >= 0; j-- {
		if history[j].Role != domain.RoleAssistant {
			continue
		}
		for _, tc := range history[j].ToolCalls {
			if tc.ID == id {
				return j
			}
		}
	}
	return -1
}

func callIDSet(calls []domain.ToolCall) map[string]struct{} {
	set := make(map[string]struct{}, len(calls))
	for _, tc := range calls {
		set[tc.ID] = struct{}{}
	}
	return set
}
