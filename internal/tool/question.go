package tool

import (
	"context"
	"encoding/json"
	"fmt"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/frumu/tandem/pkg/types"
)

const questionDescription = `Pause the current turn and ask the user one or more questions before continuing.

Usage:
- Use this when a task requires a decision only the user can make (which
  approach to take, confirming a destructive action, disambiguating an
  unclear request).
- Each question may offer a fixed set of choices, or be open-ended.
- The turn suspends until the user replies or rejects; do not call other
  tools in the same turn after this one.`

// QuestionTool records a pending question-request. Persisting it
// (storage.AddQuestionRequest) and publishing question.asked, then
// blocking for a reply, is the engine's post-execution responsibility
// (see internal/engine) by the same tools-have-no-storage-handle design
// as TodoWriteTool: this tool only validates the caller's questions.
type QuestionTool struct{}

// QuestionInput represents the input for the question tool.
type QuestionInput struct {
	Questions []types.QuestionPrompt `json:"questions"`
}

// NewQuestionTool creates a new question tool.
func NewQuestionTool() *QuestionTool { return &QuestionTool{} }

func (t *QuestionTool) ID() string          { return "question" }
func (t *QuestionTool) Description() string { return questionDescription }

func (t *QuestionTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"questions": {
				"type": "array",
				"description": "One or more questions to pose to the user",
				"items": {
					"type": "object",
					"properties": {
						"id": {"type": "string", "description": "Unique identifier for this question"},
						"text": {"type": "string", "description": "The question text"},
						"choices": {
							"type": "array",
							"description": "Optional fixed set of answer choices",
							"items": {"type": "string"}
						}
					},
					"required": ["id", "text"]
				}
			}
		},
		"required": ["questions"]
	}`)
}

func (t *QuestionTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params QuestionInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if len(params.Questions) == 0 {
		return nil, fmt.Errorf("at least one question is required")
	}
	for _, q := range params.Questions {
		if q.ID == "" || q.Text == "" {
			return nil, fmt.Errorf("each question needs a non-empty id and text")
		}
	}

	return &Result{
		Title:  fmt.Sprintf("%d question(s)", len(params.Questions)),
		Output: "Waiting for the user's reply.",
		Metadata: map[string]any{
			"questions": params.Questions,
		},
	}, nil
}

func (t *QuestionTool) EinoTool() einotool.InvokableTool {
	return &einoToolWrapper{tool: t}
}
