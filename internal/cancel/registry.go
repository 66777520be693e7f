// Package cancel is the Session Engine's CancellationRegistry: one
// context.CancelFunc per actively-running session, so a client can stop
// an in-flight agent turn without the engine threading a cancel channel
// through every call (§4.4).
package cancel

import (
	"context"
	"sync"
)

// Registry tracks the cancel token for every session currently running
// an EngineLoop turn.
type Registry struct {
	mu     sync.Mutex
	tokens map[string]context.CancelFunc
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tokens: make(map[string]context.CancelFunc)}
}

// Create derives a cancellable context from parent and registers its
// CancelFunc under sessionID, replacing (and cancelling) any prior token
// for that session. The Gate step of the EngineLoop calls this once per
// turn (§4.5).
func (r *Registry) Create(parent context.Context, sessionID string) context.Context {
	ctx, cancelFn := context.WithCancel(parent)

	r.mu.Lock()
	if prior, ok := r.tokens[sessionID]; ok {
		prior()
	}
	r.tokens[sessionID] = cancelFn
	r.mu.Unlock()

	return ctx
}

// Cancel cancels the session's running turn, if any. Returns false if
// no token is registered (the session isn't running).
func (r *Registry) Cancel(sessionID string) bool {
	r.mu.Lock()
	cancelFn, ok := r.tokens[sessionID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	cancelFn()
	return true
}

// Remove drops the token for sessionID without cancelling it. The
// Finalize step calls this once the turn has already completed on its
// own, so a stale token doesn't leak.
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	delete(r.tokens, sessionID)
	r.mu.Unlock()
}

// CancelAll cancels every registered token, e.g. on server shutdown.
func (r *Registry) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, cancelFn := range r.tokens {
		cancelFn()
		delete(r.tokens, id)
	}
}

// IsRunning reports whether sessionID currently has a registered token.
func (r *Registry) IsRunning(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tokens[sessionID]
	return ok
}
