package server

import (
	"encoding/json"
	"net/http"
)

type leaseAcquireRequest struct {
	ClientID   string `json:"clientId"`
	ClientType string `json:"clientType"`
	TTLMs      int64  `json:"ttlMs,omitempty"`
}

// leaseAcquire handles POST /global/lease/acquire (§4.6, §6).
func (s *Server) leaseAcquire(w http.ResponseWriter, r *http.Request) {
	var req leaseAcquireRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
		return
	}
	l := s.leaseMgr.Acquire(req.ClientID, req.ClientType, req.TTLMs)
	writeJSON(w, http.StatusOK, l)
}

type leaseIDRequest struct {
	LeaseID string `json:"leaseId"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

// leaseRenew handles POST /global/lease/renew.
func (s *Server) leaseRenew(w http.ResponseWriter, r *http.Request) {
	var req leaseIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: s.leaseMgr.Renew(req.LeaseID)})
}

// leaseRelease handles POST /global/lease/release.
func (s *Server) leaseRelease(w http.ResponseWriter, r *http.Request) {
	var req leaseIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: s.leaseMgr.Release(req.LeaseID)})
}
