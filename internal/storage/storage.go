// Package storage is the Session Engine's durable store for sessions,
// per-session metadata, and open question-requests. It owns three JSON
// maps flushed to disk via serialize-then-replace, matching §4.1 of the
// engine specification.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/frumu/tandem/internal/idgen"
	"github.com/frumu/tandem/internal/logging"
	"github.com/frumu/tandem/pkg/types"
)

// ErrNotFound is returned by Get-style operations on a missing key.
var ErrNotFound = errors.New("not found")

const sessionsFile = "sessions.json"
const metaFile = "session_meta.json"
const questionsFile = "questions.json"

// Storage is the process-wide durable store. Each of the three maps is
// guarded by its own rw-lock; writers flush under the write lock, readers
// clone under a read lock.
type Storage struct {
	basePath string

	sessMu   sync.RWMutex
	sessions map[string]*types.Session

	metaMu sync.RWMutex
	meta   map[string]*types.SessionMeta

	qMu       sync.RWMutex
	questions map[string]*types.QuestionRequest

	sessLock *FileLock
	metaLock *FileLock
	qLock    *FileLock

	log zerolog.Logger
}

// New creates a Storage rooted at basePath, loading any existing maps.
// Corrupt files on startup produce empty maps (tolerant boot).
func New(basePath string) (*Storage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("storage: create base dir: %w", err)
	}
	s := &Storage{
		basePath:  basePath,
		sessions:  make(map[string]*types.Session),
		meta:      make(map[string]*types.SessionMeta),
		questions: make(map[string]*types.QuestionRequest),
		sessLock:  NewFileLock(filepath.Join(basePath, sessionsFile)),
		metaLock:  NewFileLock(filepath.Join(basePath, metaFile)),
		qLock:     NewFileLock(filepath.Join(basePath, questionsFile)),
		log:       logging.With().Str("component", "storage").Logger(),
	}
	loadMap(basePath, sessionsFile, &s.sessions, s.log)
	loadMap(basePath, metaFile, &s.meta, s.log)
	loadMap(basePath, questionsFile, &s.questions, s.log)
	return s, nil
}

func loadMap[V any](basePath, file string, into *map[string]V, log zerolog.Logger) {
	data, err := os.ReadFile(filepath.Join(basePath, file))
	if err != nil {
		return // absent is fine; empty map is the tolerant-boot default
	}
	var m map[string]V
	if err := json.Unmarshal(data, &m); err != nil {
		log.Warn().Str("file", file).Err(err).Msg("corrupt storage file, starting empty")
		return
	}
	*into = m
}

func flushMap[V any](lock *FileLock, basePath, file string, m map[string]V) error {
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("storage: lock %s: %w", file, err)
	}
	defer lock.Unlock()

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: marshal %s: %w", file, err)
	}
	path := filepath.Join(basePath, file)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("storage: write %s: %w", file, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("storage: rename %s: %w", file, err)
	}
	return nil
}

func nowMs() int64 { return time.Now().UnixMilli() }

// --- Sessions ---

// ListSessions returns a snapshot of all known sessions.
func (s *Storage) ListSessions() []*types.Session {
	s.sessMu.RLock()
	defer s.sessMu.RUnlock()
	out := make([]*types.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.Clone())
	}
	return out
}

// GetSession returns a clone of a session by id, or nil if absent.
func (s *Storage) GetSession(id string) *types.Session {
	s.sessMu.RLock()
	defer s.sessMu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}
	return sess.Clone()
}

// SaveSession stores (creates or replaces) a session and flushes.
func (s *Storage) SaveSession(sess *types.Session) error {
	s.sessMu.Lock()
	s.sessions[sess.ID] = sess.Clone()
	snapshot := cloneMap(s.sessions)
	s.sessMu.Unlock()

	return flushMap(s.sessLock, s.basePath, sessionsFile, snapshot)
}

// DeleteSession removes a session (and its meta) and flushes both maps.
func (s *Storage) DeleteSession(id string) (bool, error) {
	s.sessMu.Lock()
	_, existed := s.sessions[id]
	delete(s.sessions, id)
	sessSnap := cloneMap(s.sessions)
	s.sessMu.Unlock()

	if !existed {
		return false, nil
	}
	if err := flushMap(s.sessLock, s.basePath, sessionsFile, sessSnap); err != nil {
		return true, err
	}

	s.metaMu.Lock()
	delete(s.meta, id)
	metaSnap := cloneMap(s.meta)
	s.metaMu.Unlock()
	if err := flushMap(s.metaLock, s.basePath, metaFile, metaSnap); err != nil {
		return true, err
	}
	return true, nil
}

// AppendMessage captures the session's current messages into its
// snapshots (bounded to types.MaxSnapshots, FIFO eviction), appends msg,
// and updates time.updated. Fails if the session is absent.
func (s *Storage) AppendMessage(sessionID string, msg types.Message) error {
	s.sessMu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		s.sessMu.Unlock()
		return ErrNotFound
	}
	meta := s.ensureMetaLocked(sessionID)
	meta.Snapshots = append(meta.Snapshots, cloneMessages(sess.Messages))
	if len(meta.Snapshots) > types.MaxSnapshots {
		meta.Snapshots = meta.Snapshots[len(meta.Snapshots)-types.MaxSnapshots:]
	}
	sess.Messages = append(sess.Messages, msg)
	sess.Updated = nowMs()
	sessSnap := cloneMap(s.sessions)
	s.sessMu.Unlock()

	if err := flushMap(s.sessLock, s.basePath, sessionsFile, sessSnap); err != nil {
		return err
	}
	return s.flushMeta()
}

// ensureMetaLocked returns the SessionMeta for id, creating one if absent.
// Caller must hold s.sessMu (meta is locked internally).
func (s *Storage) ensureMetaLocked(id string) *types.SessionMeta {
	s.metaMu.Lock()
	defer s.metaMu.Unlock()
	m, ok := s.meta[id]
	if !ok {
		m = &types.SessionMeta{Snapshots: [][]types.Message{}, Todos: []types.TodoItem{}}
		s.meta[id] = m
	}
	return m
}

// ForkSession deep-clones source session id, assigning a fresh id and
// "{title} (fork)" title, with metadata parentID = source.id and
// snapshots seeded to [clonedMessages].
func (s *Storage) ForkSession(id string) (*types.Session, error) {
	s.sessMu.Lock()
	src, ok := s.sessions[id]
	if !ok {
		s.sessMu.Unlock()
		return nil, ErrNotFound
	}
	clone := src.Clone()
	clone.ID = idgen.New()
	clone.Title = fmt.Sprintf("%s (fork)", src.Title)
	clone.Created = nowMs()
	clone.Updated = clone.Created
	s.sessions[clone.ID] = clone
	sessSnap := cloneMap(s.sessions)
	s.sessMu.Unlock()

	s.metaMu.Lock()
	parentID := id
	s.meta[clone.ID] = &types.SessionMeta{
		ParentID:  &parentID,
		Snapshots: [][]types.Message{cloneMessages(clone.Messages)},
		Todos:     []types.TodoItem{},
	}
	metaSnap := cloneMap(s.meta)
	s.metaMu.Unlock()

	if err := flushMap(s.sessLock, s.basePath, sessionsFile, sessSnap); err != nil {
		return nil, err
	}
	if err := flushMap(s.metaLock, s.basePath, metaFile, metaSnap); err != nil {
		return nil, err
	}
	return clone.Clone(), nil
}

// RevertSession moves the current messages into preRevert and pops the
// newest snapshot into messages. Returns false if no snapshot exists.
func (s *Storage) RevertSession(id string) (bool, error) {
	s.sessMu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.sessMu.Unlock()
		return false, ErrNotFound
	}
	meta := s.ensureMetaLocked(id)
	if len(meta.Snapshots) == 0 {
		s.sessMu.Unlock()
		return false, nil
	}
	last := meta.Snapshots[len(meta.Snapshots)-1]
	meta.Snapshots = meta.Snapshots[:len(meta.Snapshots)-1]

	s.metaMu.Lock()
	meta.PreRevert = cloneMessages(sess.Messages)
	s.metaMu.Unlock()

	sess.Messages = cloneMessages(last)
	sess.Updated = nowMs()
	sessSnap := cloneMap(s.sessions)
	s.sessMu.Unlock()

	if err := flushMap(s.sessLock, s.basePath, sessionsFile, sessSnap); err != nil {
		return true, err
	}
	return true, s.flushMeta()
}

// UnrevertSession is the inverse of RevertSession: it pushes the current
// messages back onto snapshots and restores preRevert.
func (s *Storage) UnrevertSession(id string) (bool, error) {
	s.sessMu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.sessMu.Unlock()
		return false, ErrNotFound
	}
	meta := s.ensureMetaLocked(id)
	if meta.PreRevert == nil {
		s.sessMu.Unlock()
		return false, nil
	}
	meta.Snapshots = append(meta.Snapshots, cloneMessages(sess.Messages))
	if len(meta.Snapshots) > types.MaxSnapshots {
		meta.Snapshots = meta.Snapshots[len(meta.Snapshots)-types.MaxSnapshots:]
	}
	sess.Messages = cloneMessages(meta.PreRevert)
	meta.PreRevert = nil
	sess.Updated = nowMs()
	sessSnap := cloneMap(s.sessions)
	s.sessMu.Unlock()

	if err := flushMap(s.sessLock, s.basePath, sessionsFile, sessSnap); err != nil {
		return true, err
	}
	return true, s.flushMeta()
}

// SetShared toggles a session's shared flag. Toggling on assigns a fresh
// shareID if absent; toggling off clears it. Returns the resulting
// shareID (empty if now unshared).
func (s *Storage) SetShared(id string, shared bool) (string, error) {
	s.sessMu.Lock()
	_, ok := s.sessions[id]
	s.sessMu.Unlock()
	if !ok {
		return "", ErrNotFound
	}

	s.metaMu.Lock()
	meta, ok := s.meta[id]
	if !ok {
		meta = &types.SessionMeta{Snapshots: [][]types.Message{}, Todos: []types.TodoItem{}}
		s.meta[id] = meta
	}
	meta.Shared = shared
	var shareID string
	if shared {
		if meta.ShareID == nil {
			fresh := idgen.New()
			meta.ShareID = &fresh
		}
		shareID = *meta.ShareID
	} else {
		meta.ShareID = nil
	}
	s.metaMu.Unlock()

	return shareID, s.flushMeta()
}

// SetTodos normalizes and stores a session's todo list.
func (s *Storage) SetTodos(id string, items []types.TodoItem) error {
	normalized := NormalizeTodos(items)
	s.metaMu.Lock()
	meta, ok := s.meta[id]
	if !ok {
		meta = &types.SessionMeta{Snapshots: [][]types.Message{}}
		s.meta[id] = meta
	}
	meta.Todos = normalized
	s.metaMu.Unlock()
	return s.flushMeta()
}

// GetTodos returns the normalized todo list for a session.
func (s *Storage) GetTodos(id string) []types.TodoItem {
	s.metaMu.RLock()
	defer s.metaMu.RUnlock()
	meta, ok := s.meta[id]
	if !ok {
		return nil
	}
	return append([]types.TodoItem(nil), meta.Todos...)
}

// NormalizeTodos applies the §3 ingest rule: assign a fresh id if
// missing/blank, default status to pending if blank, and drop items with
// blank content.
func NormalizeTodos(items []types.TodoItem) []types.TodoItem {
	out := make([]types.TodoItem, 0, len(items))
	for _, it := range items {
		if it.Content == "" {
			continue
		}
		if it.ID == "" {
			it.ID = idgen.New()
		}
		if it.Status == "" {
			it.Status = types.TodoPending
		}
		out = append(out, it)
	}
	return out
}

// RecordFileDiff accumulates a successful edit/write tool call's diff
// stats into the session's SessionSummary, appending diff to
// Summary.Diffs and folding its Additions/Deletions into the running
// totals. Files counts the distinct paths seen across Diffs.
func (s *Storage) RecordFileDiff(id string, diff types.FileDiff) error {
	s.metaMu.Lock()
	meta, ok := s.meta[id]
	if !ok {
		meta = &types.SessionMeta{Snapshots: [][]types.Message{}, Todos: []types.TodoItem{}}
		s.meta[id] = meta
	}
	if meta.Summary == nil {
		meta.Summary = &types.SessionSummary{}
	}
	seen := make(map[string]bool, len(meta.Summary.Diffs)+1)
	for _, d := range meta.Summary.Diffs {
		seen[d.Path] = true
	}
	meta.Summary.Diffs = append(meta.Summary.Diffs, diff)
	meta.Summary.Additions += diff.Additions
	meta.Summary.Deletions += diff.Deletions
	if !seen[diff.Path] {
		meta.Summary.Files++
	}
	s.metaMu.Unlock()
	return s.flushMeta()
}

// GetMeta returns a clone of a session's metadata, or nil if absent.
func (s *Storage) GetMeta(id string) *types.SessionMeta {
	s.metaMu.RLock()
	defer s.metaMu.RUnlock()
	m, ok := s.meta[id]
	if !ok {
		return nil
	}
	return m.Clone()
}

func (s *Storage) flushMeta() error {
	s.metaMu.RLock()
	snap := cloneMap(s.meta)
	s.metaMu.RUnlock()
	return flushMap(s.metaLock, s.basePath, metaFile, snap)
}

// --- Question requests ---

// AddQuestionRequest creates a new QuestionRequest for an assistant's
// `question` tool invocation.
func (s *Storage) AddQuestionRequest(sessionID, messageID, callID string, questions []types.QuestionPrompt) (*types.QuestionRequest, error) {
	req := &types.QuestionRequest{
		ID:        idgen.New(),
		SessionID: sessionID,
		Questions: questions,
		Tool:      &types.QuestionToolRef{CallID: callID, MessageID: messageID},
	}
	s.qMu.Lock()
	s.questions[req.ID] = req
	snap := cloneMap(s.questions)
	s.qMu.Unlock()

	if err := flushMap(s.qLock, s.basePath, questionsFile, snap); err != nil {
		return nil, err
	}
	return req, nil
}

// ListQuestionRequests returns all known question requests.
func (s *Storage) ListQuestionRequests() []*types.QuestionRequest {
	s.qMu.RLock()
	defer s.qMu.RUnlock()
	out := make([]*types.QuestionRequest, 0, len(s.questions))
	for _, q := range s.questions {
		out = append(out, q.Clone())
	}
	return out
}

// ReplyQuestion marks a question request as replied with the given
// answers. Returns false if the request does not exist.
func (s *Storage) ReplyQuestion(id string, answers map[string]string) (bool, error) {
	s.qMu.Lock()
	q, ok := s.questions[id]
	if !ok {
		s.qMu.Unlock()
		return false, nil
	}
	q.Replied = true
	q.Answers = answers
	snap := cloneMap(s.questions)
	s.qMu.Unlock()
	return true, flushMap(s.qLock, s.basePath, questionsFile, snap)
}

// RejectQuestion marks a question request as rejected (alias semantics:
// also terminal on reply).
func (s *Storage) RejectQuestion(id string) (bool, error) {
	s.qMu.Lock()
	q, ok := s.questions[id]
	if !ok {
		s.qMu.Unlock()
		return false, nil
	}
	q.Rejected = true
	snap := cloneMap(s.questions)
	s.qMu.Unlock()
	return true, flushMap(s.qLock, s.basePath, questionsFile, snap)
}

func cloneMap[V interface{ Clone() V }](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v.Clone()
	}
	return out
}

func cloneMessages(msgs []types.Message) []types.Message {
	out := make([]types.Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}
