package types

// SessionMeta is a sibling of a Session keyed by session id, holding the
// bookkeeping fields that are not part of the message transcript itself.
type SessionMeta struct {
	ParentID     *string        `json:"parentID,omitempty"`
	Archived     bool           `json:"archived"`
	Shared       bool           `json:"shared"`
	ShareID      *string        `json:"shareID,omitempty"`
	Summary      *SessionSummary `json:"summary,omitempty"`
	Snapshots    [][]Message    `json:"snapshots"`
	PreRevert    []Message      `json:"preRevert,omitempty"`
	Todos        []TodoItem     `json:"todos"`
}

// MaxSnapshots bounds SessionMeta.Snapshots; the oldest is discarded on
// overflow.
const MaxSnapshots = 25

// SessionSummary tracks cumulative diff statistics for a session,
// populated as edit/write tool calls succeed.
type SessionSummary struct {
	Additions int        `json:"additions"`
	Deletions int        `json:"deletions"`
	Files     int        `json:"files"`
	Diffs     []FileDiff `json:"diffs,omitempty"`
}

// FileDiff is a single file's diff contribution to a SessionSummary.
type FileDiff struct {
	Path      string `json:"path"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Before    string `json:"before,omitempty"`
	After     string `json:"after,omitempty"`
}

// Clone deep-copies a SessionMeta.
func (m *SessionMeta) Clone() *SessionMeta {
	if m == nil {
		return nil
	}
	out := *m
	if m.ParentID != nil {
		id := *m.ParentID
		out.ParentID = &id
	}
	if m.ShareID != nil {
		id := *m.ShareID
		out.ShareID = &id
	}
	if m.Summary != nil {
		s := *m.Summary
		out.Summary = &s
	}
	out.Snapshots = make([][]Message, len(m.Snapshots))
	for i, snap := range m.Snapshots {
		cloned := make([]Message, len(snap))
		for j, msg := range snap {
			cloned[j] = msg.Clone()
		}
		out.Snapshots[i] = cloned
	}
	if m.PreRevert != nil {
		out.PreRevert = make([]Message, len(m.PreRevert))
		for i, msg := range m.PreRevert {
			out.PreRevert[i] = msg.Clone()
		}
	}
	out.Todos = append([]TodoItem(nil), m.Todos...)
	return &out
}
