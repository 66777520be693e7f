package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/frumu/tandem/internal/agent"
	"github.com/frumu/tandem/internal/idgen"
	"github.com/frumu/tandem/internal/permission"
	"github.com/frumu/tandem/internal/tool"
	"github.com/frumu/tandem/pkg/types"
)

// executeToolWithPermission is §4.5.1's tool-execution-with-permission
// subroutine. It returns the text to feed back into the turn (either a
// denial/failure message or the tool's rendered result) and whether the
// caller cancelled mid-flight, in which case the turn must be abandoned
// rather than finalized.
func (e *Engine) executeToolWithPermission(ctx context.Context, sessionID, messageID string, ag *agent.Agent, toolName string, args map[string]any) (result string, cancelled bool) {
	if e.permMgr.CheckDoomLoop(sessionID, toolName, args) {
		return fmt.Sprintf("Tool `%s` refused: the same call has repeated too many times in a row.", toolName), false
	}

	action, fromPlugin := e.catalogs.Plugins.Override(toolName)
	if !fromPlugin {
		action = ag.ToAgentPermissions().ActionForTool(toolName, bashCommandFromArgs(toolName, args))
	}

	switch action {
	case types.PermissionDeny:
		return fmt.Sprintf("Permission denied for tool `%s` by policy.", toolName), false

	case types.PermissionAsk:
		partID := e.nextPartID()
		err := e.permMgr.AskWithRequestID(ctx, sessionID, toolName, args, func(reqID string) {
			e.publishPartUpdated(sessionID, messageID, types.MessagePart{
				ID:        partID,
				SessionID: sessionID,
				MessageID: messageID,
				Type:      "tool",
				Tool:      toolName,
				Args:      args,
				State:     types.PartStatePending,
				RequestID: reqID,
			}, "")
		})
		if err != nil {
			if ctx.Err() != nil {
				return "", true
			}
			if permission.IsRejectedError(err) {
				e.publishPartUpdated(sessionID, messageID, types.MessagePart{
					ID:        partID,
					SessionID: sessionID,
					MessageID: messageID,
					Type:      "tool",
					Tool:      toolName,
					Args:      args,
					State:     types.PartStateDenied,
					Error:     "Permission denied by user",
				}, "")
				return fmt.Sprintf("Permission denied for tool `%s` by user.", toolName), false
			}
			return fmt.Sprintf("Permission check failed for tool `%s`: %v", toolName, err), false
		}

	case types.PermissionAllow:
		// proceed
	}

	args = e.catalogs.Plugins.ApplyArgs(toolName, args)

	runningPartID := e.nextPartID()
	e.publishPartUpdated(sessionID, messageID, types.MessagePart{
		ID:        runningPartID,
		SessionID: sessionID,
		MessageID: messageID,
		Type:      "tool",
		Tool:      toolName,
		Args:      args,
		State:     types.PartStateRunning,
	}, "")

	t, ok := e.catalogs.Tools.Get(toolName)
	if !ok {
		return fmt.Sprintf("Tool `%s` is not registered.", toolName), false
	}

	inputJSON, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("Tool `%s` failed: invalid arguments (%v).", toolName, err), false
	}

	abortCh := make(chan struct{})
	go func() {
		<-ctx.Done()
		close(abortCh)
	}()

	toolCtx := &tool.Context{
		SessionID: sessionID,
		MessageID: messageID,
		CallID:    idgen.New(),
		Agent:     ag.Name,
		WorkDir:   "",
		AbortCh:   abortCh,
	}

	toolResult, execErr := t.Execute(ctx, inputJSON, toolCtx)
	if execErr != nil {
		if ctx.Err() != nil {
			return "", true
		}
		e.publishPartUpdated(sessionID, messageID, types.MessagePart{
			ID:        runningPartID,
			SessionID: sessionID,
			MessageID: messageID,
			Type:      "tool",
			Tool:      toolName,
			Args:      args,
			State:     types.PartStateDenied,
			Error:     execErr.Error(),
		}, "")
		return fmt.Sprintf("Tool `%s` failed: %v", toolName, execErr), false
	}

	e.applyPostExecutionSideEffects(sessionID, messageID, toolName, toolResult)

	output := e.catalogs.Plugins.Transform(toolResult.Output)
	output = truncate(output, StoredTruncateLimit)

	e.publishPartUpdated(sessionID, messageID, types.MessagePart{
		ID:        runningPartID,
		SessionID: sessionID,
		MessageID: messageID,
		Type:      "tool",
		Tool:      toolName,
		Args:      args,
		State:     types.PartStateCompleted,
		Result:    output,
	}, "")

	return truncate(fmt.Sprintf("Tool `%s` result:\n%s", toolName, output), StoredTruncateLimit), false
}

// bashCommandFromArgs parses a bash tool call's "command" argument into
// the structured form ActionForTool's pattern matching needs. Non-bash
// tools and malformed commands get a nil BashCommand, which
// ActionForTool treats as "ask".
func bashCommandFromArgs(toolName string, args map[string]any) *permission.BashCommand {
	if toolName != "bash" {
		return nil
	}
	command, _ := args["command"].(string)
	if command == "" {
		return nil
	}
	commands, err := permission.ParseBashCommand(command)
	if err != nil || len(commands) == 0 {
		return nil
	}
	return &commands[0]
}

// applyPostExecutionSideEffects is §4.5.1 step 6: per-tool-name
// persistence and event publication that isn't the tool's own concern.
func (e *Engine) applyPostExecutionSideEffects(sessionID, messageID, toolName string, result *tool.Result) {
	switch toolName {
	case "todowrite":
		raw, ok := result.Metadata["todos"]
		if !ok {
			return
		}
		items := decodeTodos(raw)
		if err := e.storage.SetTodos(sessionID, items); err != nil {
			return
		}
		normalized := e.storage.GetTodos(sessionID)
		e.bus.Publish(types.EngineEvent{
			EventType: types.EventTodoUpdated,
			Properties: types.TodoUpdatedProps{
				SessionID: sessionID,
				Todos:     normalized,
			},
		})

	case "question":
		raw, ok := result.Metadata["questions"]
		if !ok {
			return
		}
		questions := decodeQuestions(raw)
		if len(questions) == 0 {
			return
		}
		req, err := e.storage.AddQuestionRequest(sessionID, messageID, idgen.New(), questions)
		if err != nil {
			return
		}
		e.bus.Publish(types.EngineEvent{
			EventType: types.EventQuestionAsked,
			Properties: types.QuestionAskedProps{
				RequestID: req.ID,
				SessionID: sessionID,
				Questions: questions,
				Tool:      req.Tool,
			},
		})

	case "edit", "write":
		e.recordFileDiff(sessionID, result)
	}
}

// recordFileDiff is SPEC_FULL.md's supplemented diff-recording feature:
// edit/write tools surface before/after content via Result.Metadata (they
// have no storage handle of their own), and the engine computes and
// persists the diff.
func (e *Engine) recordFileDiff(sessionID string, result *tool.Result) {
	path, _ := result.Metadata["file"].(string)
	before, _ := result.Metadata["before"].(string)
	after, _ := result.Metadata["after"].(string)
	if path == "" || before == after {
		return
	}

	_, additions, deletions := tool.BuildDiffMetadata(path, before, after, "")
	_ = e.storage.RecordFileDiff(sessionID, types.FileDiff{
		Path:      path,
		Additions: additions,
		Deletions: deletions,
		Before:    before,
		After:     after,
	})
}

func decodeTodos(raw any) []types.TodoItem {
	switch v := raw.(type) {
	case []types.TodoItem:
		return v
	default:
		b, err := json.Marshal(raw)
		if err != nil {
			return nil
		}
		var items []types.TodoItem
		if err := json.Unmarshal(b, &items); err != nil {
			return nil
		}
		return items
	}
}

func decodeQuestions(raw any) []types.QuestionPrompt {
	switch v := raw.(type) {
	case []types.QuestionPrompt:
		return v
	default:
		b, err := json.Marshal(raw)
		if err != nil {
			return nil
		}
		var items []types.QuestionPrompt
		if err := json.Unmarshal(b, &items); err != nil {
			return nil
		}
		return items
	}
}
