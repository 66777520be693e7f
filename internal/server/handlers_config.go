package server

import (
	"io"
	"net/http"

	"github.com/frumu/tandem/internal/config"
)

// getConfig handles GET /config.
func (s *Server) getConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.appConfig)
}

// updateConfig handles PATCH /config (§6): a deep-merge patch applied to
// the in-memory effective config and persisted to the project config file
// of the request's directory, or to the global config file when none is set.
func (s *Server) updateConfig(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "failed to read body")
		return
	}

	merged, err := config.ApplyPatch(s.appConfig, body)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid config patch: "+err.Error())
		return
	}
	*s.appConfig = *merged

	path := config.GlobalConfigPath()
	if dir := getDirectory(r.Context()); dir != "" {
		path = config.ProjectConfigPath(dir)
	}
	if err := config.Save(s.appConfig, path); err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, s.appConfig)
}
