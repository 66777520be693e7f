package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/frumu/tandem/internal/engine"
	"github.com/frumu/tandem/pkg/types"
)

// writeServiceError maps a SessionService/Engine sentinel error (§7) onto
// an HTTP status and body.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrNotFound):
		writeError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, engine.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
	case errors.Is(err, engine.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, ErrCodePermissionDenied, err.Error())
	case errors.Is(err, engine.ErrProviderFailed):
		writeError(w, http.StatusBadGateway, ErrCodeProviderError, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
	}
}

// listSessions handles GET /api/session?scope=&workspace=.
func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	scope := r.URL.Query().Get("scope")
	workspace := r.URL.Query().Get("workspace")
	sessions := s.sessionSvc.List(scope, workspace)
	if sessions == nil {
		sessions = []*types.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

type createSessionRequest struct {
	ParentID      *string         `json:"parentId,omitempty"`
	Title         string          `json:"title,omitempty"`
	Directory     string          `json:"directory,omitempty"`
	WorkspaceRoot string          `json:"workspaceRoot,omitempty"`
	Model         *types.ModelRef `json:"model,omitempty"`
	Provider      string          `json:"provider,omitempty"`
}

// createSession handles POST /api/session.
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
		return
	}
	sess, err := s.sessionSvc.Create(sessionCreateParams(req))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func sessionCreateParams(req createSessionRequest) (p struct {
	ParentID      *string
	Title         string
	Directory     string
	WorkspaceRoot string
	Model         *types.ModelRef
	ProviderID    string
}) {
	p.ParentID = req.ParentID
	p.Title = req.Title
	p.Directory = req.Directory
	p.WorkspaceRoot = req.WorkspaceRoot
	p.Model = req.Model
	p.ProviderID = req.Provider
	return p
}

// getSession handles GET /session/{sessionID}.
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	sess, err := s.sessionSvc.Get(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

type updateSessionRequest struct {
	Title    *string `json:"title,omitempty"`
	Model    *string `json:"model,omitempty"`
	Provider *string `json:"provider,omitempty"`
	Mode     *string `json:"mode,omitempty"`
}

// updateSession handles PATCH /session/{sessionID}.
func (s *Server) updateSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	var req updateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
		return
	}
	sess, err := s.sessionSvc.Update(id, sessionUpdateParams(req))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func sessionUpdateParams(req updateSessionRequest) (p struct {
	Title    *string
	Model    *string
	Provider *string
	Mode     *string
}) {
	p.Title, p.Model, p.Provider, p.Mode = req.Title, req.Model, req.Provider, req.Mode
	return p
}

// deleteSession handles DELETE /session/{sessionID}.
func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	existed, err := s.sessionSvc.Delete(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !existed {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusOK)
}

type sendMessageRequest struct {
	Parts []types.MessagePartInput `json:"parts"`
	Model *types.ModelRef          `json:"model,omitempty"`
	Agent string                   `json:"agent,omitempty"`
}

// sendMessage handles POST /session/{sessionID}/message: it returns only
// the persisted user message and 202, per §4.7/§6 — the assistant's turn
// runs asynchronously and is observed through the event stream.
func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
		return
	}
	userMsg, err := s.sessionSvc.SendMessage(r.Context(), id, engine.SendMessageRequest{
		Parts:     req.Parts,
		Model:     req.Model,
		AgentName: req.Agent,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, userMsg)
}

// abortSession handles POST /session/{sessionID}/abort.
func (s *Server) abortSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	s.sessionSvc.Abort(id)
	w.WriteHeader(http.StatusOK)
}

// forkSession handles POST /session/{sessionID}/fork.
func (s *Server) forkSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	clone, err := s.sessionSvc.Fork(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, clone)
}

// revertSession handles POST /session/{sessionID}/revert.
func (s *Server) revertSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	ok, err := s.sessionSvc.Revert(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: ok})
}

// unrevertSession handles POST /session/{sessionID}/unrevert.
func (s *Server) unrevertSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	ok, err := s.sessionSvc.Unrevert(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: ok})
}

type shareResponse struct {
	URL string `json:"url,omitempty"`
}

// shareSession handles POST /session/{sessionID}/share.
func (s *Server) shareSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	url, err := s.sessionSvc.SetShared(id, true)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, shareResponse{URL: url})
}

// unshareSession handles DELETE /session/{sessionID}/share.
func (s *Server) unshareSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if _, err := s.sessionSvc.SetShared(id, false); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// getTodos handles GET /session/{sessionID}/todo.
func (s *Server) getTodos(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	todos := s.sessionSvc.Todos(id)
	if todos == nil {
		todos = []types.TodoItem{}
	}
	writeJSON(w, http.StatusOK, todos)
}

// getDiff handles GET /session/{sessionID}/diff.
func (s *Server) getDiff(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	summary := s.sessionSvc.Diff(id)
	if summary == nil {
		summary = &types.SessionSummary{}
	}
	writeJSON(w, http.StatusOK, summary)
}

// listQuestions handles GET /question.
func (s *Server) listQuestions(w http.ResponseWriter, r *http.Request) {
	questions := s.sessionSvc.Questions()
	if questions == nil {
		questions = []*types.QuestionRequest{}
	}
	writeJSON(w, http.StatusOK, questions)
}

type replyQuestionRequest struct {
	Answers map[string]string `json:"answers"`
}

// replyQuestion handles POST /question/{requestID}/reply.
func (s *Server) replyQuestion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "requestID")
	var req replyQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
		return
	}
	ok, err := s.sessionSvc.ReplyQuestion(id, req.Answers)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "question request not found")
		return
	}
	w.WriteHeader(http.StatusOK)
}

// rejectQuestion handles POST /question/{requestID}/reject.
func (s *Server) rejectQuestion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "requestID")
	ok, err := s.sessionSvc.RejectQuestion(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "question request not found")
		return
	}
	w.WriteHeader(http.StatusOK)
}
