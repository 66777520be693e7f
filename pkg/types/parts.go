package types

import "fmt"

// PartKind tags the variant carried by a persisted Part.
type PartKind string

const (
	PartKindText           PartKind = "text"
	PartKindReasoning      PartKind = "reasoning"
	PartKindToolInvocation PartKind = "tool"
)

// Part is the persisted, tagged-variant form of a unit of message content:
// Text{text}, Reasoning{text}, or ToolInvocation{tool,args,result?,error?}.
type Part struct {
	Kind   PartKind       `json:"kind"`
	Text   string         `json:"text,omitempty"`
	Tool   string         `json:"tool,omitempty"`
	Args   map[string]any `json:"args,omitempty"`
	Result *string        `json:"result,omitempty"`
	Error  *string        `json:"error,omitempty"`
}

// NewTextPart builds a text-kind part.
func NewTextPart(text string) Part { return Part{Kind: PartKindText, Text: text} }

// NewReasoningPart builds a reasoning-kind part.
func NewReasoningPart(text string) Part { return Part{Kind: PartKindReasoning, Text: text} }

// NewToolInvocationPart builds a tool-invocation part.
func NewToolInvocationPart(tool string, args map[string]any, result, errStr *string) Part {
	return Part{Kind: PartKindToolInvocation, Tool: tool, Args: args, Result: result, Error: errStr}
}

// Render renders a part for model-facing chat history flattening.
func (p Part) Render() string {
	switch p.Kind {
	case PartKindToolInvocation:
		result := ""
		if p.Result != nil {
			result = *p.Result
		} else if p.Error != nil {
			result = "error: " + *p.Error
		}
		return fmt.Sprintf("Tool %s => %s", p.Tool, result)
	default:
		return p.Text
	}
}

// PartState is the wire-visible lifecycle state of a tool invocation part.
type PartState string

const (
	PartStatePending   PartState = "pending"
	PartStateRunning   PartState = "running"
	PartStateCompleted PartState = "completed"
	PartStateDenied    PartState = "denied"
)

// MessagePart is the camelCase wire representation of a part, per §6.
// The engine stamps a fresh ID per part from a process-global counter.
type MessagePart struct {
	ID        string         `json:"id"`
	SessionID string         `json:"sessionID"`
	MessageID string         `json:"messageID"`
	Type      string         `json:"type"` // "text" | "tool"
	Text      string         `json:"text,omitempty"`
	Tool      string         `json:"tool,omitempty"`
	Args      map[string]any `json:"args,omitempty"`
	State     PartState      `json:"state,omitempty"`
	Result    string         `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	// RequestID carries the PendingPermissionRequest id while State is
	// "pending", so a reply can be correlated back to this part (§4.5.1
	// step 3).
	RequestID string `json:"requestId,omitempty"`
}

// MessagePartInput is the tagged union accepted on POST /session/{id}/message.
type MessagePartInput struct {
	Type     string `json:"type"` // "text" | "file"
	Text     string `json:"text,omitempty"`
	Mime     string `json:"mime,omitempty"`
	Filename string `json:"filename,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Render renders a file-part input for inclusion in the user message's
// display text: "[file mime=… name=… url=…]".
func (i MessagePartInput) Render() string {
	if i.Type == "file" {
		return fmt.Sprintf("[file mime=%s name=%s url=%s]", i.Mime, i.Filename, i.URL)
	}
	return i.Text
}
