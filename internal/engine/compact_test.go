package engine

import (
	"strings"
	"testing"

	"github.com/frumu/tandem/pkg/types"
)

func chatMsg(role, content string) types.ChatMessage {
	return types.ChatMessage{Role: role, Content: content}
}

func TestCompact_WithinBoundsUnchanged(t *testing.T) {
	messages := []types.ChatMessage{
		chatMsg(types.RoleUser, "hi"),
		chatMsg(types.RoleAssistant, "hello"),
	}
	got := compact(messages)
	if len(got) != len(messages) {
		t.Fatalf("expected unchanged length %d, got %d", len(messages), len(got))
	}
	for i := range messages {
		if got[i] != messages[i] {
			t.Errorf("message %d changed: got %+v, want %+v", i, got[i], messages[i])
		}
	}
}

func TestCompact_DropsOldestOverMessageCount(t *testing.T) {
	messages := make([]types.ChatMessage, CompactMaxMessages+5)
	for i := range messages {
		messages[i] = chatMsg(types.RoleUser, "msg")
	}

	got := compact(messages)

	if !withinBounds(got[1:]) {
		t.Fatalf("expected compacted history (minus summary note) to be within bounds")
	}
	if got[0].Role != types.RoleSystem {
		t.Fatalf("expected a prepended system note, got role %q", got[0].Role)
	}
	if !strings.Contains(got[0].Content, "5 older messages") {
		t.Errorf("expected note to mention 5 dropped messages, got %q", got[0].Content)
	}
	// The newest messages must survive, not the oldest.
	if got[len(got)-1] != messages[len(messages)-1] {
		t.Errorf("expected newest message preserved at tail")
	}
}

func TestCompact_DropsOldestOverCharBudget(t *testing.T) {
	big := strings.Repeat("x", CompactMaxChars/2+1)
	messages := []types.ChatMessage{
		chatMsg(types.RoleUser, big),
		chatMsg(types.RoleAssistant, big),
		chatMsg(types.RoleUser, "final"),
	}

	got := compact(messages)

	if !withinBounds(got) {
		t.Fatalf("expected compacted output within character bounds")
	}
	if got[0].Role != types.RoleSystem {
		t.Fatalf("expected a prepended system note")
	}
	if got[len(got)-1].Content != "final" {
		t.Errorf("expected newest message preserved, got %q", got[len(got)-1].Content)
	}
}

func TestHistoryCompactedNote_MentionsCount(t *testing.T) {
	note := historyCompactedNote(3)
	if !strings.Contains(note, "3 older messages") {
		t.Errorf("expected note to mention count, got %q", note)
	}
}

func TestBuildTurnHistory_PrependsSystemPromptAndAppendsFollowup(t *testing.T) {
	messages := []types.Message{
		{ID: "1", Role: types.RoleUser, Parts: []types.Part{types.NewTextPart("hi")}},
	}

	history := buildTurnHistory(messages, "you are an agent", "tool output\nContinue.")

	if history[0].Role != types.RoleSystem || history[0].Content != "you are an agent" {
		t.Fatalf("expected system prompt first, got %+v", history[0])
	}
	last := history[len(history)-1]
	if last.Role != types.RoleUser || last.Content != "tool output\nContinue." {
		t.Fatalf("expected followup context last, got %+v", last)
	}
}

func TestBuildTurnHistory_NoSystemPromptNoFollowup(t *testing.T) {
	messages := []types.Message{
		{ID: "1", Role: types.RoleUser, Parts: []types.Part{types.NewTextPart("hi")}},
	}

	history := buildTurnHistory(messages, "", "")

	if len(history) != 1 {
		t.Fatalf("expected exactly the one flattened message, got %d", len(history))
	}
	if history[0].Role != types.RoleUser || history[0].Content != "hi" {
		t.Errorf("expected flattened user message, got %+v", history[0])
	}
}
