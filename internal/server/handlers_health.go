package server

import "net/http"

type healthResponse struct {
	Healthy bool   `json:"healthy"`
	Version string `json:"version"`
	Mode    string `json:"mode"`
}

// health handles GET /global/health.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Healthy: true,
		Version: Version,
		Mode:    "server",
	})
}
