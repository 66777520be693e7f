// Package types provides the core data types for the Tandem session engine.
package types

// Session is a conversation session with an LLM, identified by a stable id.
// Messages is append-only during normal operation; only revert/unrevert
// (see SessionMeta.Snapshots) mutate it.
type Session struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Directory     string    `json:"directory"`
	WorkspaceRoot string    `json:"workspaceRoot,omitempty"`
	ParentID      *string   `json:"parentID,omitempty"`
	ModelSpec     *ModelRef `json:"modelSpec,omitempty"`
	ProviderID    string    `json:"providerID,omitempty"`
	Mode          string    `json:"mode,omitempty"`
	Created       int64     `json:"created"`
	Updated       int64     `json:"updated"`
	Messages      []Message `json:"messages"`
}

// ModelRef references a specific model from a provider.
type ModelRef struct {
	ProviderID string `json:"providerID"`
	ModelID    string `json:"modelID"`
}

// Clone returns a deep copy of the session, used by forkSession and by
// storage readers that must not leak internal slices to callers.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.ParentID != nil {
		id := *s.ParentID
		out.ParentID = &id
	}
	if s.ModelSpec != nil {
		ref := *s.ModelSpec
		out.ModelSpec = &ref
	}
	out.Messages = make([]Message, len(s.Messages))
	for i, m := range s.Messages {
		out.Messages[i] = m.Clone()
	}
	return &out
}
