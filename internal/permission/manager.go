package permission

import (
	"context"
	"sync"

	"github.com/frumu/tandem/internal/event"
	"github.com/frumu/tandem/internal/idgen"
	"github.com/frumu/tandem/internal/logging"
	"github.com/frumu/tandem/pkg/types"
)

// stickyKey is the sticky-decision cache key. The spec (§9) is explicit
// that the teacher's looser per-permission-type keying (one decision
// covering every bash command, say) must not be replicated: stickiness
// is scoped to one tool within one session.
type stickyKey struct {
	sessionID string
	tool      string
}

// Manager is the Session Engine's PermissionManager. It owns all
// PendingPermissionRequest state; none of it is persisted (§4.3, §9).
type Manager struct {
	bus *event.Bus

	mu     sync.Mutex
	sticky map[stickyKey]types.PermissionDecision
	wait   map[string]chan types.PermissionDecision // requestID -> rendezvous
	reply  map[string]types.PermissionDecision       // single-shot reply with no waiter yet

	doomLoop *DoomLoopDetector
}

// NewManager constructs a Manager publishing through bus.
func NewManager(bus *event.Bus) *Manager {
	return &Manager{
		bus:      bus,
		sticky:   make(map[stickyKey]types.PermissionDecision),
		wait:     make(map[string]chan types.PermissionDecision),
		reply:    make(map[string]types.PermissionDecision),
		doomLoop: NewDoomLoopDetector(),
	}
}

// Check resolves a static policy action, escalating to Ask when needed.
// It returns a *RejectedError when the tool call must not proceed.
func (m *Manager) Check(ctx context.Context, sessionID, tool string, args map[string]any, action types.PermissionAction) error {
	switch action {
	case types.PermissionAllow:
		return nil
	case types.PermissionDeny:
		return &RejectedError{SessionID: sessionID, Tool: tool, Message: "denied by configuration"}
	default:
		return m.Ask(ctx, sessionID, tool, args)
	}
}

// Ask requests approval for a tool call, first consulting the sticky
// cache for (sessionID, tool), then publishing permission.asked and
// blocking until Reply is called for the generated request id or ctx
// is cancelled.
func (m *Manager) Ask(ctx context.Context, sessionID, tool string, args map[string]any) error {
	return m.AskWithRequestID(ctx, sessionID, tool, args, nil)
}

// AskWithRequestID behaves like Ask but invokes onRequestID (if non-nil)
// with the freshly generated request id before suspending, so a caller
// that must render the pending state (e.g. the engine's
// message.part.updated{state:pending}) can do so with the real id.
func (m *Manager) AskWithRequestID(ctx context.Context, sessionID, tool string, args map[string]any, onRequestID func(string)) error {
	key := stickyKey{sessionID: sessionID, tool: tool}

	m.mu.Lock()
	if d, ok := m.sticky[key]; ok {
		m.mu.Unlock()
		if d.IsApproving() {
			return nil
		}
		return &RejectedError{SessionID: sessionID, Tool: tool, Message: "denied by sticky decision"}
	}
	m.mu.Unlock()

	reqID := idgen.New()
	waitCh := make(chan types.PermissionDecision, 1)

	m.mu.Lock()
	if d, ok := m.reply[reqID]; ok {
		delete(m.reply, reqID)
		m.mu.Unlock()
		// Vanishingly unlikely (fresh id collided with a retained early
		// reply), but handle it rather than deadlock.
		waitCh <- d
	} else {
		m.wait[reqID] = waitCh
		m.mu.Unlock()
	}

	if onRequestID != nil {
		onRequestID(reqID)
	}

	if m.bus != nil {
		m.bus.Publish(types.EngineEvent{
			EventType: types.EventPermissionAsked,
			Properties: types.PermissionAskedProps{
				RequestID: reqID,
				SessionID: sessionID,
				Tool:      tool,
				Args:      args,
			},
		})
	}

	var decision types.PermissionDecision
	select {
	case <-ctx.Done():
		m.mu.Lock()
		delete(m.wait, reqID)
		m.mu.Unlock()
		return ctx.Err()
	case decision = <-waitCh:
	}

	if decision == types.DecisionAlways {
		m.mu.Lock()
		m.sticky[key] = decision
		m.mu.Unlock()
	}
	if !decision.IsApproving() {
		return &RejectedError{SessionID: sessionID, Tool: tool, Message: "denied by user"}
	}
	return nil
}

// Reply delivers a decision for a pending request id. If no waiter is
// registered yet (the reply arrived before the Ask goroutine reached
// its select, or the client replies twice), the decision is retained
// as a single-shot value the next Ask/wait for that id will consume,
// per §4.3's "reply with no waiter is retained" rule.
func (m *Manager) Reply(reply types.PermissionReply) {
	m.mu.Lock()
	ch, ok := m.wait[reply.RequestID]
	if ok {
		delete(m.wait, reply.RequestID)
	} else {
		m.reply[reply.RequestID] = reply.Decision
	}
	m.mu.Unlock()

	if ok {
		ch <- reply.Decision
	}

	if m.bus != nil {
		m.bus.Publish(types.EngineEvent{
			EventType: types.EventPermissionReplied,
			Properties: types.PermissionRepliedProps{
				RequestID: reply.RequestID,
				Decision:  reply.Decision,
			},
		})
	}
}

// ClearSession drops all sticky decisions recorded for a session, e.g.
// on session delete.
func (m *Manager) ClearSession(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.sticky {
		if k.sessionID == sessionID {
			delete(m.sticky, k)
		}
	}
	m.doomLoop.Clear(sessionID)
}

// IsSticky reports whether (sessionID, tool) already has a cached
// decision, without consuming it.
func (m *Manager) IsSticky(sessionID, tool string) (types.PermissionDecision, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.sticky[stickyKey{sessionID: sessionID, tool: tool}]
	return d, ok
}

// CheckDoomLoop records this call and reports whether it and the
// DoomLoopThreshold-1 calls before it in this session are all identical,
// and logs when it fires.
func (m *Manager) CheckDoomLoop(sessionID, tool string, input any) bool {
	loop := m.doomLoop.Check(sessionID, tool, input)
	if loop {
		logging.Warn().Str("session", sessionID).Str("tool", tool).Msg("doom loop detected")
	}
	return loop
}
