package types

import (
	"encoding/json"
	"testing"
)

func TestSessionJSONRoundTrip(t *testing.T) {
	parentID := "parent-123"
	session := Session{
		ID:        "session-123",
		Title:     "Test Session",
		Directory: "/home/user/project",
		ParentID:  &parentID,
		Created:   1700000000000,
		Updated:   1700000001000,
		Messages: []Message{
			{ID: "m1", Role: RoleUser, Created: 1700000000000, Parts: []Part{NewTextPart("hello")}},
		},
	}

	data, err := json.Marshal(session)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded Session
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if decoded.ID != session.ID {
		t.Errorf("ID mismatch: got %s, want %s", decoded.ID, session.ID)
	}
	if decoded.ParentID == nil || *decoded.ParentID != parentID {
		t.Errorf("ParentID mismatch")
	}
	if len(decoded.Messages) != 1 || decoded.Messages[0].Parts[0].Text != "hello" {
		t.Errorf("Messages round-trip mismatch: %+v", decoded.Messages)
	}
}

func TestSessionParentIDOmittedWhenNil(t *testing.T) {
	session := Session{ID: "session-456"}
	data, _ := json.Marshal(session)

	var raw map[string]any
	json.Unmarshal(data, &raw)
	if _, ok := raw["parentID"]; ok {
		t.Error("parentID should be omitted when nil")
	}
}

func TestPartRender(t *testing.T) {
	result := "42"
	p := NewToolInvocationPart("calc", map[string]any{"a": 1}, &result, nil)
	if got := p.Render(); got != "Tool calc => 42" {
		t.Errorf("Render mismatch: got %q", got)
	}

	errStr := "boom"
	p2 := NewToolInvocationPart("calc", nil, nil, &errStr)
	if got := p2.Render(); got != "Tool calc => error: boom" {
		t.Errorf("Render mismatch: got %q", got)
	}
}

func TestFlatten(t *testing.T) {
	msg := Message{
		Role: RoleAssistant,
		Parts: []Part{
			NewTextPart("first"),
			NewTextPart("second"),
		},
	}
	chat := Flatten(msg)
	if chat.Content != "first\nsecond" {
		t.Errorf("Flatten mismatch: got %q", chat.Content)
	}
	if chat.Role != RoleAssistant {
		t.Errorf("Role mismatch: got %q", chat.Role)
	}
}

func TestTodoItemValidation(t *testing.T) {
	if !ValidTodoStatus(TodoPending) || !ValidTodoStatus(TodoInProgress) || !ValidTodoStatus(TodoCompleted) {
		t.Error("expected all three canonical statuses to validate")
	}
	if ValidTodoStatus("bogus") {
		t.Error("expected bogus status to be invalid")
	}
}

func TestSessionMetaSnapshotsClone(t *testing.T) {
	meta := &SessionMeta{
		Snapshots: [][]Message{
			{{ID: "m1", Parts: []Part{NewTextPart("a")}}},
		},
		Todos: []TodoItem{{ID: "t1", Content: "x", Status: TodoPending}},
	}
	clone := meta.Clone()
	clone.Snapshots[0][0].Parts[0].Text = "mutated"
	if meta.Snapshots[0][0].Parts[0].Text == "mutated" {
		t.Error("Clone should deep-copy snapshots")
	}
}

func TestLeaseIsLive(t *testing.T) {
	l := Lease{LastRenewedAtMs: 1000, TTLMs: 500}
	if !l.IsLive(1400) {
		t.Error("expected lease to be live at now=1400")
	}
	if l.IsLive(1600) {
		t.Error("expected lease to be expired at now=1600")
	}
}

func TestPermissionDecisionIsApproving(t *testing.T) {
	approving := []PermissionDecision{DecisionOnce, DecisionAlways, DecisionAllow}
	for _, d := range approving {
		if !d.IsApproving() {
			t.Errorf("expected %s to approve", d)
		}
	}
	denying := []PermissionDecision{DecisionDeny, DecisionReject}
	for _, d := range denying {
		if d.IsApproving() {
			t.Errorf("expected %s to not approve", d)
		}
	}
}
