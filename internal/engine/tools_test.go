package engine

import (
	"testing"

	"github.com/frumu/tandem/pkg/types"
)

func TestBashCommandFromArgs_NonBashToolReturnsNil(t *testing.T) {
	if got := bashCommandFromArgs("read", map[string]any{"command": "ls"}); got != nil {
		t.Errorf("expected nil for a non-bash tool, got %+v", got)
	}
}

func TestBashCommandFromArgs_MissingCommandReturnsNil(t *testing.T) {
	if got := bashCommandFromArgs("bash", map[string]any{}); got != nil {
		t.Errorf("expected nil when no command arg present, got %+v", got)
	}
}

func TestBashCommandFromArgs_ParsesCommandName(t *testing.T) {
	got := bashCommandFromArgs("bash", map[string]any{"command": "git commit -m test"})
	if got == nil {
		t.Fatalf("expected a parsed BashCommand")
	}
	if got.Name != "git" {
		t.Errorf("expected command name %q, got %q", "git", got.Name)
	}
	if got.Subcommand != "commit" {
		t.Errorf("expected subcommand %q, got %q", "commit", got.Subcommand)
	}
}

func TestBashCommandFromArgs_MalformedCommandReturnsNil(t *testing.T) {
	got := bashCommandFromArgs("bash", map[string]any{"command": "echo \"unterminated"})
	if got != nil {
		t.Errorf("expected nil for an unparseable command, got %+v", got)
	}
}

func TestDecodeTodos_FromTypedSlice(t *testing.T) {
	items := []types.TodoItem{{ID: "1", Content: "write tests", Status: types.TodoPending}}
	got := decodeTodos(items)
	if len(got) != 1 || got[0].Content != "write tests" {
		t.Errorf("expected passthrough of typed slice, got %+v", got)
	}
}

func TestDecodeTodos_FromUntypedJSON(t *testing.T) {
	raw := []any{
		map[string]any{"id": "1", "content": "write tests", "status": "pending"},
	}
	got := decodeTodos(raw)
	if len(got) != 1 {
		t.Fatalf("expected one decoded todo, got %d", len(got))
	}
	if got[0].ID != "1" || got[0].Content != "write tests" || got[0].Status != "pending" {
		t.Errorf("unexpected decoded todo: %+v", got[0])
	}
}

func TestDecodeTodos_Garbage(t *testing.T) {
	if got := decodeTodos(func() {}); got != nil {
		t.Errorf("expected nil for un-marshalable input, got %+v", got)
	}
}

func TestDecodeQuestions_FromTypedSlice(t *testing.T) {
	items := []types.QuestionPrompt{{ID: "q1", Text: "proceed?"}}
	got := decodeQuestions(items)
	if len(got) != 1 || got[0].Text != "proceed?" {
		t.Errorf("expected passthrough of typed slice, got %+v", got)
	}
}

func TestDecodeQuestions_FromUntypedJSON(t *testing.T) {
	raw := []any{
		map[string]any{"id": "q1", "text": "proceed?", "choices": []any{"yes", "no"}},
	}
	got := decodeQuestions(raw)
	if len(got) != 1 {
		t.Fatalf("expected one decoded question, got %d", len(got))
	}
	if got[0].ID != "q1" || got[0].Text != "proceed?" || len(got[0].Choices) != 2 {
		t.Errorf("unexpected decoded question: %+v", got[0])
	}
}
