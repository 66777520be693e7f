package engine

import (
	"strconv"

	"github.com/frumu/tandem/pkg/types"
)

// CompactMaxChars and CompactMaxMessages are the two bounds §4.5.2 holds
// a compacted history to.
const (
	CompactMaxChars    = 80000
	CompactMaxMessages = 40
)

// compact enforces §4.5.2's two bounds on a chronological chat history:
// total content length and message count. If both already hold, messages
// is returned unchanged. Otherwise the oldest messages are dropped until
// both bounds hold, and a synthetic system message noting how many were
// dropped is prepended. The synthetic note is never persisted by the
// caller — it only ever appears in the slice handed to the provider.
func compact(messages []types.ChatMessage) []types.ChatMessage {
	if withinBounds(messages) {
		return messages
	}

	kept := messages
	dropped := 0
	for len(kept) > 0 && !withinBounds(kept) {
		kept = kept[1:]
		dropped++
	}

	out := make([]types.ChatMessage, 0, len(kept)+1)
	out = append(out, types.ChatMessage{
		Role:    types.RoleSystem,
		Content: historyCompactedNote(dropped),
	})
	out = append(out, kept...)
	return out
}

func withinBounds(messages []types.ChatMessage) bool {
	if len(messages) > CompactMaxMessages {
		return false
	}
	total := 0
	for _, m := range messages {
		total += len(m.Content)
		if total > CompactMaxChars {
			return false
		}
	}
	return true
}

func historyCompactedNote(dropped int) string {
	return "[history compacted: omitted " + strconv.Itoa(dropped) + " older messages to fit context window]"
}

// flattenHistory renders every persisted Message in a session to its
// ChatMessage form, in order.
func flattenHistory(messages []types.Message) []types.ChatMessage {
	out := make([]types.ChatMessage, len(messages))
	for i, m := range messages {
		out[i] = types.Flatten(m)
	}
	return out
}

// buildTurnHistory assembles the history passed to the provider for one
// agent-loop iteration (§4.5 step 3b): compacted transcript, with the
// agent's system prompt prepended if it has one, and a pending
// followup-context user message appended if present.
func buildTurnHistory(messages []types.Message, systemPrompt, followupContext string) []types.ChatMessage {
	history := compact(flattenHistory(messages))

	if systemPrompt != "" {
		withPrompt := make([]types.ChatMessage, 0, len(history)+1)
		withPrompt = append(withPrompt, types.ChatMessage{Role: types.RoleSystem, Content: systemPrompt})
		withPrompt = append(withPrompt, history...)
		history = withPrompt
	}

	if followupContext != "" {
		history = append(history, types.ChatMessage{Role: types.RoleUser, Content: followupContext})
	}

	return history
}
