package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/frumu/tandem/internal/config"
	"github.com/frumu/tandem/internal/provider"
	"github.com/frumu/tandem/pkg/types"
)

type providerInfo struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	Models []types.Model `json:"models"`
}

type providerListResponse struct {
	All       []providerInfo `json:"all"`
	Connected []string       `json:"connected"`
	Default   string         `json:"default,omitempty"`
}

// listProviders handles GET /provider (§6): every known provider, which
// of them are connected, and the configured default model.
func (s *Server) listProviders(w http.ResponseWriter, r *http.Request) {
	all := s.providers.List()
	resp := providerListResponse{
		All:       make([]providerInfo, 0, len(all)),
		Connected: make([]string, 0, len(all)),
	}
	for _, p := range all {
		resp.All = append(resp.All, providerInfo{ID: p.ID(), Name: p.Name(), Models: p.Models()})
		resp.Connected = append(resp.Connected, p.ID())
	}
	if model, err := s.providers.DefaultModel(); err == nil && model != nil {
		resp.Default = model.ProviderID + "/" + model.ID
	}
	writeJSON(w, http.StatusOK, resp)
}

type setAuthRequest struct {
	APIKey string `json:"apiKey"`
}

// setAuth handles PUT /auth/{providerID} (§6): persists the credential and
// registers/refreshes the provider so it's immediately usable.
func (s *Server) setAuth(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "providerID")
	var req setAuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
		return
	}
	if req.APIKey == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "apiKey is required")
		return
	}
	if err := config.SetProviderAuth(s.authPath, providerID, req.APIKey); err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	if s.appConfig.Provider == nil {
		s.appConfig.Provider = make(map[string]types.ProviderConfig)
	}
	pc := s.appConfig.Provider[providerID]
	pc.APIKey = req.APIKey
	s.appConfig.Provider[providerID] = pc

	if err := registerProvider(r.Context(), s.providers, providerID, pc); err != nil {
		writeError(w, http.StatusBadGateway, ErrCodeProviderError, err.Error())
		return
	}

	writeSuccess(w)
}

// deleteAuth handles DELETE /auth/{providerID}.
func (s *Server) deleteAuth(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "providerID")
	if err := config.DeleteProviderAuth(s.authPath, providerID); err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	if s.appConfig.Provider != nil {
		delete(s.appConfig.Provider, providerID)
	}
	writeSuccess(w)
}

// registerProvider (re)builds the named provider's client with the given
// config and registers it, so a freshly-set API key is live without a
// server restart.
func registerProvider(ctx context.Context, registry *provider.Registry, providerID string, cfg types.ProviderConfig) error {
	var (
		p   provider.Provider
		err error
	)
	switch providerID {
	case "anthropic", "claude":
		p, err = provider.NewAnthropicProvider(ctx, &provider.AnthropicConfig{ID: providerID, APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, MaxTokens: 8192})
	default:
		p, err = provider.NewOpenAIProvider(ctx, &provider.OpenAIConfig{ID: providerID, APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, MaxTokens: 4096})
	}
	if err != nil {
		return err
	}
	if p != nil {
		registry.Register(p)
	}
	return nil
}
