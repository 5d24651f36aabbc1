package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lumichat/lumichat-relay/internal/chat"
	"github.com/lumichat/lumichat-relay/internal/history"
)

// HandleCreateConversation serves POST /v1/conversations.
func (s *Server) HandleCreateConversation(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.respondError(w, http.StatusServiceUnavailable, "history store not configured")
		return
	}
	var body struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	mode := chat.Mode(strings.TrimSpace(body.Mode))
	if !mode.Valid() {
		s.respondError(w, http.StatusBadRequest, "unknown mode: "+body.Mode)
		return
	}
	conv, err := s.history.CreateConversation(r.Context(), mode)
	if err != nil {
		s.logf("[history] create conversation failed: %v", err)
		s.respondError(w, http.StatusInternalServerError, "failed to create conversation")
		return
	}
	s.respondJSON(w, http.StatusCreated, conv)
}

// HandleListConversations serves GET /v1/conversations, newest activity first.
func (s *Server) HandleListConversations(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.respondError(w, http.StatusServiceUnavailable, "history store not configured")
		return
	}
	convs, err := s.history.ListConversations(r.Context())
	if err != nil {
		s.logf("[history] list conversations failed: %v", err)
		s.respondError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	s.respondJSON(w, http.StatusOK, convs)
}

// HandleDeleteConversation serves DELETE /v1/conversations/{id}. Messages go
// with the conversation.
func (s *Server) HandleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.respondError(w, http.StatusServiceUnavailable, "history store not configured")
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.history.DeleteConversation(r.Context(), id); err != nil {
		if errors.Is(err, history.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "conversation not found")
			return
		}
		s.logf("[history] delete conversation failed id=%s: %v", id, err)
		s.respondError(w, http.StatusInternalServerError, "failed to delete conversation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAppendMessage serves POST /v1/conversations/{id}/messages.
func (s *Server) HandleAppendMessage(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.respondError(w, http.StatusServiceUnavailable, "history store not configured")
		return
	}
	id := chi.URLParam(r, "id")
	var body struct {
		Role     string `json:"role"`
		Content  string `json:"content"`
		ImageURL string `json:"imageUrl,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	role := strings.TrimSpace(body.Role)
	if role != chat.RoleUser && role != chat.RoleAssistant {
		s.respondError(w, http.StatusBadRequest, "role must be user or assistant")
		return
	}
	msg, err := s.history.AppendMessage(r.Context(), id, history.StoredMessage{
		Role:     role,
		Content:  body.Content,
		ImageURL: body.ImageURL,
	})
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "conversation not found")
			return
		}
		s.logf("[history] append message failed id=%s: %v", id, err)
		s.respondError(w, http.StatusInternalServerError, "failed to store message")
		return
	}
	s.respondJSON(w, http.StatusCreated, msg)
}

// HandleListMessages serves GET /v1/conversations/{id}/messages in send order.
func (s *Server) HandleListMessages(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.respondError(w, http.StatusServiceUnavailable, "history store not configured")
		return
	}
	id := chi.URLParam(r, "id")
	msgs, err := s.history.ListMessages(r.Context(), id)
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "conversation not found")
			return
		}
		s.logf("[history] list messages failed id=%s: %v", id, err)
		s.respondError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}
	s.respondJSON(w, http.StatusOK, msgs)
}
