package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/frumu/tandem/pkg/types"
)

// replyPermission handles POST /permission/{requestID}/reply (§4.3, §6).
func (s *Server) replyPermission(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")
	var body struct {
		Decision types.PermissionDecision `json:"decision"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
		return
	}
	s.sessionSvc.ReplyPermission(types.PermissionReply{RequestID: requestID, Decision: body.Decision})
	w.WriteHeader(http.StatusOK)
}
