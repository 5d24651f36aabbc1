package httpserver

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lumichat/lumichat-relay/internal/chat"
	"github.com/lumichat/lumichat-relay/internal/credential"
)

type credentialRequest struct {
	Provider     string   `json:"provider"`
	APIKey       string   `json:"apiKey"`
	Endpoint     string   `json:"endpoint,omitempty"`
	Model        string   `json:"model,omitempty"`
	Modes        []string `json:"modes"`
	Active       *bool    `json:"active,omitempty"`
	DailyLimit   int      `json:"dailyLimit,omitempty"`
	MonthlyLimit int      `json:"monthlyLimit,omitempty"`
}

type credentialResponse struct {
	ID           int64     `json:"id"`
	Provider     string    `json:"provider"`
	APIKey       string    `json:"apiKey"`
	Endpoint     string    `json:"endpoint,omitempty"`
	Model        string    `json:"model,omitempty"`
	Modes        []string  `json:"modes"`
	Active       bool      `json:"active"`
	DailyLimit   int       `json:"dailyLimit,omitempty"`
	MonthlyLimit int       `json:"monthlyLimit,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// redactKey keeps the last four characters of a secret for identification.
func redactKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}

func toCredentialResponse(c credential.Credential) credentialResponse {
	modes := make([]string, 0, len(c.Modes))
	for _, m := range c.Modes {
		modes = append(modes, string(m))
	}
	return credentialResponse{
		ID:           c.ID,
		Provider:     c.Provider,
		APIKey:       redactKey(c.APIKey),
		Endpoint:     c.Endpoint,
		Model:        c.Model,
		Modes:        modes,
		Active:       c.Active,
		DailyLimit:   c.DailyLimit,
		MonthlyLimit: c.MonthlyLimit,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

// HandleCreateCredential serves POST /v1/credentials.
func (s *Server) HandleCreateCredential(w http.ResponseWriter, r *http.Request) {
	if s.credentials == nil {
		s.respondError(w, http.StatusServiceUnavailable, "credential store not configured")
		return
	}
	var req credentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.APIKey) == "" {
		s.respondError(w, http.StatusBadRequest, "apiKey is required")
		return
	}
	modes := make([]chat.Mode, 0, len(req.Modes))
	for _, raw := range req.Modes {
		m := chat.Mode(strings.TrimSpace(raw))
		if !m.Valid() {
			s.respondError(w, http.StatusBadRequest, "unknown mode: "+raw)
			return
		}
		modes = append(modes, m)
	}
	if len(modes) == 0 {
		s.respondError(w, http.StatusBadRequest, "at least one mode is required")
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	provider := strings.ToLower(strings.TrimSpace(req.Provider))
	if provider == "" {
		provider = credential.ProviderOpenAI
	}
	created, err := s.credentials.Create(r.Context(), credential.Credential{
		Provider:     provider,
		APIKey:       req.APIKey,
		Endpoint:     strings.TrimSpace(req.Endpoint),
		Model:        strings.TrimSpace(req.Model),
		Modes:        modes,
		Active:       active,
		DailyLimit:   req.DailyLimit,
		MonthlyLimit: req.MonthlyLimit,
	})
	if err != nil {
		s.logf("[credentials] create failed: %v", err)
		s.respondError(w, http.StatusInternalServerError, "failed to store credential")
		return
	}
	s.logf("[credentials] created id=%d provider=%s modes=%d", created.ID, created.Provider, len(created.Modes))
	s.respondJSON(w, http.StatusCreated, toCredentialResponse(created))
}

// HandleListCredentials serves GET /v1/credentials with secrets redacted.
func (s *Server) HandleListCredentials(w http.ResponseWriter, r *http.Request) {
	if s.credentials == nil {
		s.respondError(w, http.StatusServiceUnavailable, "credential store not configured")
		return
	}
	creds, err := s.credentials.List(r.Context())
	if err != nil {
		s.logf("[credentials] list failed: %v", err)
		s.respondError(w, http.StatusInternalServerError, "failed to list credentials")
		return
	}
	out := make([]credentialResponse, 0, len(creds))
	for _, c := range creds {
		out = append(out, toCredentialResponse(c))
	}
	s.respondJSON(w, http.StatusOK, out)
}

// HandleActivateCredential serves POST /v1/credentials/{id}/activate.
func (s *Server) HandleActivateCredential(w http.ResponseWriter, r *http.Request) {
	if s.credentials == nil {
		s.respondError(w, http.StatusServiceUnavailable, "credential store not configured")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid credential id")
		return
	}
	var body struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.credentials.SetActive(r.Context(), id, body.Active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.respondError(w, http.StatusNotFound, "credential not found")
			return
		}
		s.logf("[credentials] activate failed id=%d: %v", id, err)
		s.respondError(w, http.StatusInternalServerError, "failed to update credential")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"id": id, "active": body.Active})
}

// HandleDeleteCredential serves DELETE /v1/credentials/{id}.
func (s *Server) HandleDeleteCredential(w http.ResponseWriter, r *http.Request) {
	if s.credentials == nil {
		s.respondError(w, http.StatusServiceUnavailable, "credential store not configured")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid credential id")
		return
	}
	if err := s.credentials.Delete(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.respondError(w, http.StatusNotFound, "credential not found")
			return
		}
		s.logf("[credentials] delete failed id=%d: %v", id, err)
		s.respondError(w, http.StatusInternalServerError, "failed to delete credential")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
