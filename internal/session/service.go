package session

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/frumu/tandem/internal/cancel"
	"github.com/frumu/tandem/internal/command"
	"github.com/frumu/tandem/internal/engine"
	"github.com/frumu/tandem/internal/event"
	"github.com/frumu/tandem/internal/idgen"
	"github.com/frumu/tandem/internal/permission"
	"github.com/frumu/tandem/internal/sharing"
	"github.com/frumu/tandem/internal/storage"
	"github.com/frumu/tandem/pkg/types"
)

// DefaultTitle is the placeholder a newly-created session carries until
// its first user message derives a real one (internal/engine.DeriveTitle).
const DefaultTitle = "New Session"

// Service is the Session Engine's SessionService (§4.7). It holds no
// session state of its own: every method either reads/writes Storage
// directly or delegates a running turn to Engine.
type Service struct {
	storage   *storage.Storage
	engine    *engine.Engine
	permMgr   *permission.Manager
	cancelReg *cancel.Registry
	bus       *event.Bus
	sharing   *sharing.Manager
	commands  *command.Executor
}

// NewService wires a SessionService from its dependencies. eng is the
// EngineLoop that actually executes a submitted prompt; permMgr and
// cancelReg are consulted for permission replies and abort respectively;
// shareMgr mints the public share URL behind SetShared; commands expands
// "/name args" into its configured prompt template before a turn reaches
// the EngineLoop (may be nil to disable command expansion).
func NewService(store *storage.Storage, eng *engine.Engine, permMgr *permission.Manager, cancelReg *cancel.Registry, bus *event.Bus, shareMgr *sharing.Manager, commands *command.Executor) *Service {
	return &Service{
		storage:   store,
		engine:    eng,
		permMgr:   permMgr,
		cancelReg: cancelReg,
		bus:       bus,
		sharing:   shareMgr,
		commands:  commands,
	}
}

// CreateParams is the input to Create, matching POST /api/session's body.
type CreateParams struct {
	ParentID      *string
	Title         string
	Directory     string
	WorkspaceRoot string
	Model         *types.ModelRef
	ProviderID    string
}

// Create starts a new session with the default placeholder title if
// none was given, canonicalizing WorkspaceRoot so §6's scope=workspace
// filter can match it exactly.
func (s *Service) Create(p CreateParams) (*types.Session, error) {
	now := time.Now().UnixMilli()
	title := p.Title
	if title == "" {
		title = DefaultTitle
	}

	sess := &types.Session{
		ID:            idgen.New(),
		Title:         title,
		Directory:     p.Directory,
		WorkspaceRoot: canonicalizeWorkspace(p.WorkspaceRoot),
		ParentID:      p.ParentID,
		ModelSpec:     p.Model,
		ProviderID:    p.ProviderID,
		Created:       now,
		Updated:       now,
		Messages:      []types.Message{},
	}
	if err := s.storage.SaveSession(sess); err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrStorageFailed, err)
	}
	return sess, nil
}

// List returns every known session, optionally filtered to one whose
// canonicalized WorkspaceRoot matches workspace (§6 scope=workspace).
func (s *Service) List(scope, workspace string) []*types.Session {
	all := s.storage.ListSessions()
	if scope != "workspace" || workspace == "" {
		return all
	}
	want := canonicalizeWorkspace(workspace)
	out := make([]*types.Session, 0, len(all))
	for _, sess := range all {
		if sess.WorkspaceRoot == want {
			out = append(out, sess)
		}
	}
	return out
}

// Get returns a session by id, or ErrNotFound.
func (s *Service) Get(id string) (*types.Session, error) {
	sess := s.storage.GetSession(id)
	if sess == nil {
		return nil, engine.ErrNotFound
	}
	return sess, nil
}

// UpdateParams is the input to Update, matching PATCH /session/{id}'s
// body; a nil field leaves the existing value untouched.
type UpdateParams struct {
	Title    *string
	Model    *string
	Provider *string
	Mode     *string
}

// Update applies a partial patch to a session and persists it.
func (s *Service) Update(id string, p UpdateParams) (*types.Session, error) {
	sess := s.storage.GetSession(id)
	if sess == nil {
		return nil, engine.ErrNotFound
	}
	if p.Title != nil {
		sess.Title = *p.Title
	}
	if p.Model != nil {
		if sess.ModelSpec == nil {
			sess.ModelSpec = &types.ModelRef{}
		}
		sess.ModelSpec.ModelID = *p.Model
	}
	if p.Provider != nil {
		sess.ProviderID = *p.Provider
		if sess.ModelSpec != nil {
			sess.ModelSpec.ProviderID = *p.Provider
		}
	}
	if p.Mode != nil {
		sess.Mode = *p.Mode
	}
	sess.Updated = time.Now().UnixMilli()
	if err := s.storage.SaveSession(sess); err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrStorageFailed, err)
	}
	s.bus.Publish(types.EngineEvent{
		EventType:  types.EventSessionUpdated,
		Properties: types.SessionUpdatedProps{Info: sess},
	})
	return sess, nil
}

// Delete removes a session and clears any sticky permission decisions
// and in-flight cancel token recorded against it.
func (s *Service) Delete(id string) (bool, error) {
	existed, err := s.storage.DeleteSession(id)
	if err != nil {
		return existed, fmt.Errorf("%w: %v", engine.ErrStorageFailed, err)
	}
	if existed {
		s.permMgr.ClearSession(id)
		s.cancelReg.Cancel(id)
	}
	return existed, nil
}

// Fork deep-clones a session (SPEC_FULL.md supplemented feature: fork).
func (s *Service) Fork(id string) (*types.Session, error) {
	clone, err := s.storage.ForkSession(id)
	if err != nil {
		if err == storage.ErrNotFound {
			return nil, engine.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", engine.ErrStorageFailed, err)
	}
	return clone, nil
}

// Revert moves a session's current messages into preRevert and restores
// the newest snapshot. Returns false if no snapshot exists to revert to.
func (s *Service) Revert(id string) (bool, error) {
	ok, err := s.storage.RevertSession(id)
	if err != nil {
		if err == storage.ErrNotFound {
			return false, engine.ErrNotFound
		}
		return false, fmt.Errorf("%w: %v", engine.ErrStorageFailed, err)
	}
	return ok, nil
}

// Unrevert is the inverse of Revert.
func (s *Service) Unrevert(id string) (bool, error) {
	ok, err := s.storage.UnrevertSession(id)
	if err != nil {
		if err == storage.ErrNotFound {
			return false, engine.ErrNotFound
		}
		return false, fmt.Errorf("%w: %v", engine.ErrStorageFailed, err)
	}
	return ok, nil
}

// SetShared toggles a session's shared flag and, turning sharing on,
// mints a public share URL through the sharing manager; turning it off
// revokes that URL too. Returns the resulting URL (empty once unshared).
func (s *Service) SetShared(id string, shared bool) (string, error) {
	if _, err := s.storage.SetShared(id, shared); err != nil {
		if err == storage.ErrNotFound {
			return "", engine.ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", engine.ErrStorageFailed, err)
	}
	if !shared {
		s.sharing.Unshare(id)
		return "", nil
	}
	info, err := s.sharing.Share(id, &sharing.ShareOptions{Public: true})
	if err != nil {
		return "", fmt.Errorf("%w: %v", engine.ErrStorageFailed, err)
	}
	return info.URL, nil
}

// Todos returns a session's normalized todo list.
func (s *Service) Todos(id string) []types.TodoItem {
	return s.storage.GetTodos(id)
}

// Diff returns a session's accumulated file-diff summary, or nil if the
// session has never recorded one.
func (s *Service) Diff(id string) *types.SessionSummary {
	meta := s.storage.GetMeta(id)
	if meta == nil {
		return nil
	}
	return meta.Summary
}

// Questions returns every known question-request (answered or not).
func (s *Service) Questions() []*types.QuestionRequest {
	return s.storage.ListQuestionRequests()
}

// ReplyQuestion records answers against a question-request.
func (s *Service) ReplyQuestion(id string, answers map[string]string) (bool, error) {
	return s.storage.ReplyQuestion(id, answers)
}

// RejectQuestion marks a question-request rejected.
func (s *Service) RejectQuestion(id string) (bool, error) {
	return s.storage.RejectQuestion(id)
}

// ReplyPermission delivers a decision for a pending permission request.
func (s *Service) ReplyPermission(reply types.PermissionReply) {
	s.permMgr.Reply(reply)
}

// SendMessage submits a prompt to the EngineLoop and returns immediately
// with the persisted user message (§4.7, §6's 202 contract); the
// assistant's turn runs in the background and is observed via events.
// A request that doesn't name an agent falls back to the session's own
// persisted mode.
func (s *Service) SendMessage(ctx context.Context, id string, req engine.SendMessageRequest) (types.Message, error) {
	if req.AgentName == "" {
		if sess := s.storage.GetSession(id); sess != nil {
			req.AgentName = sess.Mode
		}
	}
	s.expandCommand(&req)
	return s.engine.SubmitMessage(ctx, id, req)
}

// expandCommand rewrites a "/name args" first part into its configured
// command template's rendered prompt, and applies the command's agent
// override when the request didn't already name its own. The command's
// model field is not applied to the request.
// "/tool ..." is the EngineLoop's own fast path (§4.5 step 2) and is
// left untouched; anything else that doesn't match a known command name
// passes through as an ordinary message.
func (s *Service) expandCommand(req *engine.SendMessageRequest) {
	if s.commands == nil || len(req.Parts) == 0 || req.Parts[0].Type != "text" {
		return
	}
	text := strings.TrimSpace(req.Parts[0].Text)
	if !strings.HasPrefix(text, "/") || strings.HasPrefix(text, "/tool ") {
		return
	}
	name, args, _ := strings.Cut(strings.TrimPrefix(text, "/"), " ")
	if _, ok := s.commands.Get(name); !ok {
		return
	}
	result, err := s.commands.Execute(context.Background(), name, args)
	if err != nil {
		return
	}
	req.Parts[0].Text = result.Prompt
	if req.AgentName == "" {
		req.AgentName = result.Agent
	}
}

// Abort cancels a session's in-flight turn, if any (§4.7). Non-blocking:
// the caller observes session.status{cancelled} via events.
func (s *Service) Abort(id string) bool {
	return s.cancelReg.Cancel(id)
}

// canonicalizeWorkspace normalizes a workspace path for stable equality
// comparisons across requests (§6 scope=workspace filtering).
func canonicalizeWorkspace(path string) string {
	if path == "" {
		return ""
	}
	if abs, err := filepath.Abs(path); err == nil {
		return filepath.Clean(abs)
	}
	return filepath.Clean(path)
}
