package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cloudwego/eino/schema"

	"github.com/frumu/tandem/internal/agent"
	"github.com/frumu/tandem/internal/cancel"
	"github.com/frumu/tandem/internal/event"
	"github.com/frumu/tandem/internal/idgen"
	"github.com/frumu/tandem/internal/logging"
	"github.com/frumu/tandem/internal/permission"
	"github.com/frumu/tandem/internal/provider"
	"github.com/frumu/tandem/internal/registry"
	"github.com/frumu/tandem/internal/storage"
	"github.com/frumu/tandem/pkg/types"
)

// MaxIterations bounds the agent loop (§4.5 stage 3).
const MaxIterations = 25

// DefaultAgentName is the fallback agent when a request doesn't name one.
const DefaultAgentName = "build"

// Engine is the Session Engine's EngineLoop: the single entry point for
// model-and-tool work on a session (§4.5).
type Engine struct {
	storage   *storage.Storage
	bus       *event.Bus
	permMgr   *permission.Manager
	cancelReg *cancel.Registry
	catalogs  *registry.Set
}

// New constructs an Engine from its dependencies.
func New(store *storage.Storage, bus *event.Bus, permMgr *permission.Manager, cancelReg *cancel.Registry, catalogs *registry.Set) *Engine {
	return &Engine{
		storage:   store,
		bus:       bus,
		permMgr:   permMgr,
		cancelReg: cancelReg,
		catalogs:  catalogs,
	}
}

// SendMessageRequest is the input to RunPromptAsync: the parts a client
// submitted plus optional model/agent overrides.
type SendMessageRequest struct {
	Parts     []types.MessagePartInput
	Model     *types.ModelRef
	AgentName string
}

// toolCallPayload is the shape a completion's body parses as when the
// model is invoking a tool (§4.5 step 3e): `{"tool": "...", "args": {...}}`.
type toolCallPayload struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
}

// nextPartID returns a fresh, process-unique MessagePart id.
func (e *Engine) nextPartID() string {
	return idgen.New()
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}

// gate runs Stage 1 of the EngineLoop (§4.5): resolve the agent, validate
// the request, persist and publish the user message, and arm a fresh
// cancel token for the turn. It is the synchronous portion shared by
// SubmitMessage and RunPromptAsync.
func (e *Engine) gate(parent context.Context, sessionID string, req SendMessageRequest) (context.Context, *agent.Agent, types.Message, string, error) {
	ag, err := e.resolveAgent(req.AgentName)
	if err != nil {
		return nil, nil, types.Message{}, "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	if len(req.Parts) == 0 {
		return nil, nil, types.Message{}, "", fmt.Errorf("%w: message has no parts", ErrInvalidRequest)
	}

	displayText := renderParts(req.Parts)
	userMsg := types.Message{
		ID:      idgen.New(),
		Role:    types.RoleUser,
		Created: nowMs(),
		Parts:   []types.Part{types.NewTextPart(displayText)},
	}
	if err := e.storage.AppendMessage(sessionID, userMsg); err != nil {
		return nil, nil, types.Message{}, "", fmt.Errorf("%w: %v", ErrStorageFailed, err)
	}
	e.publishPartUpdated(sessionID, userMsg.ID, types.MessagePart{
		ID:        e.nextPartID(),
		SessionID: sessionID,
		MessageID: userMsg.ID,
		Type:      "text",
		Text:      displayText,
		State:     types.PartStateCompleted,
	}, "")

	e.maybeDeriveTitle(sessionID, displayText)
	e.publishStatus(sessionID, types.StatusRunning)

	ctx := e.cancelReg.Create(parent, sessionID)
	return ctx, ag, userMsg, displayText, nil
}

// SubmitMessage runs the Gate stage synchronously and returns the
// persisted user message immediately, continuing Fast path/Agent
// loop/Finalize (§4.5 stages 2-4) in a background goroutine. This is
// what backs POST /session/{id}/message's 202 contract: the caller gets
// the user message back right away, and the assistant's turn arrives
// through events.
func (e *Engine) SubmitMessage(parent context.Context, sessionID string, req SendMessageRequest) (types.Message, error) {
	ctx, ag, userMsg, displayText, err := e.gate(parent, sessionID, req)
	if err != nil {
		e.publishStatus(sessionID, types.StatusIdle)
		return types.Message{}, err
	}

	go func() {
		if err := e.runTurn(ctx, sessionID, ag, userMsg, displayText); err != nil {
			logging.Warn().Str("session", sessionID).Err(err).Msg("turn finished with error")
		}
	}()

	return userMsg, nil
}

// RunPromptAsync executes the EngineLoop's full state machine for one
// submitted prompt (§4.5): Gate, Fast path, Agent loop, Finalize. Unlike
// SubmitMessage it blocks until the turn finishes; direct callers and
// tests that want the whole turn synchronously use this instead.
func (e *Engine) RunPromptAsync(parent context.Context, sessionID string, req SendMessageRequest) error {
	ctx, ag, userMsg, displayText, err := e.gate(parent, sessionID, req)
	if err != nil {
		e.publishStatus(sessionID, types.StatusIdle)
		return err
	}
	return e.runTurn(ctx, sessionID, ag, userMsg, displayText)
}

// runTurn executes Stages 2-4 of the EngineLoop (§4.5: Fast path, Agent
// loop, Finalize) for an already-gated turn, releasing the turn's cancel
// token on return.
func (e *Engine) runTurn(ctx context.Context, sessionID string, ag *agent.Agent, userMsg types.Message, displayText string) error {
	defer e.cancelReg.Remove(sessionID)

	// --- Stage 2: Fast path ---
	if toolName, args, ok := parseFastPathCommand(displayText); ok {
		if !ag.ToolEnabled(toolName) {
			return e.finish(sessionID, fmt.Sprintf("Tool `%s` is not enabled for agent `%s`.", toolName, ag.Name))
		}
		result, cancelled := e.executeToolWithPermission(ctx, sessionID, userMsg.ID, ag, toolName, args)
		if cancelled {
			e.publishStatus(sessionID, types.StatusCancelled)
			return nil
		}
		return e.finish(sessionID, result)
	}

	// --- Stage 3: Agent loop ---
	completion := ""
	followupContext := ""

	for i := 0; i < MaxIterations; i++ {
		select {
		case <-ctx.Done():
			e.publishStatus(sessionID, types.StatusCancelled)
			return nil
		default:
		}

		sess := e.storage.GetSession(sessionID)
		if sess == nil {
			e.publishStatus(sessionID, types.StatusIdle)
			return fmt.Errorf("%w: session %s vanished mid-turn", ErrStorageFailed, sessionID)
		}

		history := buildTurnHistory(sess.Messages, ag.Prompt, followupContext)
		followupContext = ""

		stream, err := e.openCompletionWithRetry(ctx, ag, history)
		if err != nil {
			if ctx.Err() != nil {
				e.publishStatus(sessionID, types.StatusCancelled)
				return nil
			}
			return e.finish(sessionID, completion, fmt.Errorf("%w: %v", ErrProviderFailed, err))
		}

		completion, err = e.drainStream(ctx, sessionID, userMsg.ID, stream)
		stream.Close()
		if err != nil {
			if ctx.Err() != nil {
				e.publishStatus(sessionID, types.StatusCancelled)
				return nil
			}
			return e.finish(sessionID, completion, fmt.Errorf("%w: %v", ErrProviderFailed, err))
		}

		var call toolCallPayload
		parsed := json.Unmarshal([]byte(strings.TrimSpace(completion)), &call) == nil && call.Tool != ""
		if !parsed {
			break
		}
		if !ag.ToolEnabled(call.Tool) {
			break
		}

		result, cancelled := e.executeToolWithPermission(ctx, sessionID, userMsg.ID, ag, call.Tool, call.Args)
		if cancelled {
			e.publishStatus(sessionID, types.StatusCancelled)
			return nil
		}
		followupContext = result + "\nContinue."
		completion = ""
	}

	// --- Stage 4: Finalize ---
	return e.finish(sessionID, completion)
}

// finish persists the final assistant message, publishes the closing
// events, and returns err unchanged (wrapped callers already carry the
// right sentinel) so RunPromptAsync's call sites can `return e.finish(...)`.
func (e *Engine) finish(sessionID, completion string, err ...error) error {
	stored := truncate(completion, StoredTruncateLimit)
	assistantMsg := types.Message{
		ID:      idgen.New(),
		Role:    types.RoleAssistant,
		Created: nowMs(),
		Parts:   []types.Part{types.NewTextPart(stored)},
	}
	if appendErr := e.storage.AppendMessage(sessionID, assistantMsg); appendErr != nil {
		e.publishStatus(sessionID, types.StatusIdle)
		return fmt.Errorf("%w: %v", ErrStorageFailed, appendErr)
	}
	e.publishPartUpdated(sessionID, assistantMsg.ID, types.MessagePart{
		ID:        e.nextPartID(),
		SessionID: sessionID,
		MessageID: assistantMsg.ID,
		Type:      "text",
		Text:      stored,
		State:     types.PartStateCompleted,
	}, "")

	if sess := e.storage.GetSession(sessionID); sess != nil {
		e.bus.Publish(types.EngineEvent{
			EventType:  types.EventSessionUpdated,
			Properties: types.SessionUpdatedProps{Info: sess},
		})
	}
	e.publishStatus(sessionID, types.StatusIdle)

	if len(err) > 0 && err[0] != nil {
		return err[0]
	}
	return nil
}

// maybeDeriveTitle sets a session's title from its first user message if
// it still carries the default placeholder (SPEC_FULL.md supplemented
// feature 1).
func (e *Engine) maybeDeriveTitle(sessionID, userText string) {
	sess := e.storage.GetSession(sessionID)
	if sess == nil || !isDefaultTitle(sess.Title) {
		return
	}
	sess.Title = DeriveTitle(userText)
	if sess.Title == "" {
		return
	}
	if err := e.storage.SaveSession(sess); err != nil {
		logging.Warn().Str("session", sessionID).Err(err).Msg("failed to persist derived title")
	}
}

// resolveAgent looks up name, falling back to DefaultAgentName on an
// empty request.
func (e *Engine) resolveAgent(name string) (*agent.Agent, error) {
	if name == "" {
		name = DefaultAgentName
	}
	return e.catalogs.Agents.Get(name)
}

// renderParts concatenates a submitted message's parts into the display
// text persisted as the user Message (§4.5 step 1).
func renderParts(parts []types.MessagePartInput) string {
	rendered := make([]string, len(parts))
	for i, p := range parts {
		rendered[i] = p.Render()
	}
	return strings.Join(rendered, "\n")
}

// parseFastPathCommand recognizes "/tool NAME JSON_ARGS" (§4.5 step 2).
// A malformed JSON_ARGS defaults to an empty args map rather than
// rejecting the fast path outright.
func parseFastPathCommand(text string) (toolName string, args map[string]any, ok bool) {
	if !strings.HasPrefix(text, "/tool ") {
		return "", nil, false
	}
	rest := strings.TrimSpace(strings.TrimPrefix(text, "/tool "))
	name, jsonArgs, _ := strings.Cut(rest, " ")
	if name == "" {
		return "", nil, false
	}
	args = map[string]any{}
	if jsonArgs = strings.TrimSpace(jsonArgs); jsonArgs != "" {
		_ = json.Unmarshal([]byte(jsonArgs), &args)
	}
	return name, args, true
}

// openCompletionWithRetry opens a streaming completion, retrying a
// stream-open failure with jittered exponential backoff (grounded on the
// teacher's loop.go newRetryBackoff idiom). Only the stream-open call is
// retried; once a stream starts, a mid-stream error surfaces directly.
func (e *Engine) openCompletionWithRetry(ctx context.Context, ag *agent.Agent, history []types.ChatMessage) (*provider.CompletionStream, error) {
	model, providerID, err := e.resolveModel(ag)
	if err != nil {
		return nil, err
	}

	prov, err := e.catalogs.Providers.Get(providerID)
	if err != nil {
		return nil, err
	}

	toolInfos, err := e.catalogs.Tools.ToolInfos()
	if err != nil {
		return nil, err
	}

	messages := make([]*schema.Message, len(history))
	for i, m := range history {
		role := schema.Assistant
		switch m.Role {
		case types.RoleUser:
			role = schema.User
		case types.RoleSystem:
			role = schema.System
		case types.RoleTool:
			role = schema.Tool
		}
		messages[i] = &schema.Message{Role: role, Content: m.Content}
	}

	req := &provider.CompletionRequest{
		Model:       model,
		Messages:    messages,
		Tools:       toolInfos,
		Temperature: ag.Temperature,
		TopP:        ag.TopP,
	}

	var stream *provider.CompletionStream
	operation := func() error {
		s, openErr := prov.CreateCompletion(ctx, req)
		if openErr != nil {
			return openErr
		}
		stream = s
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInitialInterval
	b.MaxInterval = retryMaxInterval
	b.MaxElapsedTime = retryMaxElapsedTime
	b.RandomizationFactor = 0.5
	b.Multiplier = 2.0
	b.Reset()

	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, retryMaxRetries), ctx)); err != nil {
		return nil, err
	}
	return stream, nil
}

// resolveModel picks the model/provider pair for a completion: the
// agent's own override if it has one, else the registry default.
func (e *Engine) resolveModel(ag *agent.Agent) (modelID, providerID string, err error) {
	if ag.Model != nil {
		return ag.Model.ModelID, ag.Model.ProviderID, nil
	}
	model, err := e.catalogs.Providers.DefaultModel()
	if err != nil {
		return "", "", err
	}
	return model.ID, model.ProviderID, nil
}

// drainStream accumulates a completion's text deltas (§4.5 step 3d),
// publishing a truncated message.part.updated per delta.
func (e *Engine) drainStream(ctx context.Context, sessionID, messageID string, stream *provider.CompletionStream) (string, error) {
	var completion strings.Builder
	partID := e.nextPartID()

	for {
		select {
		case <-ctx.Done():
			return completion.String(), ctx.Err()
		default:
		}

		msg, err := stream.Recv()
		if err != nil {
			if err == io.EOF {
				return completion.String(), nil
			}
			return completion.String(), err
		}
		if msg.Content == "" {
			continue
		}
		completion.WriteString(msg.Content)
		e.publishPartUpdated(sessionID, messageID, types.MessagePart{
			ID:        partID,
			SessionID: sessionID,
			MessageID: messageID,
			Type:      "text",
			State:     types.PartStateRunning,
		}, truncate(msg.Content, DeltaTruncateLimit))
	}
}

func (e *Engine) publishStatus(sessionID string, status types.SessionStatus) {
	e.bus.Publish(types.EngineEvent{
		EventType: types.EventSessionStatus,
		Properties: types.SessionStatusProps{
			SessionID: sessionID,
			Status:    status,
		},
	})
}

func (e *Engine) publishPartUpdated(sessionID, messageID string, part types.MessagePart, delta string) {
	e.bus.Publish(types.EngineEvent{
		EventType: types.EventMessagePartUpdated,
		Properties: types.MessagePartUpdatedProps{
			Part:  part,
			Delta: delta,
		},
	})
}
