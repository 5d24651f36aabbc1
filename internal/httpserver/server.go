// Package httpserver exposes the relay and its collaborators over REST.
package httpserver

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lumichat/lumichat-relay/internal/credential"
	"github.com/lumichat/lumichat-relay/internal/history"
	"github.com/lumichat/lumichat-relay/internal/relay"
	"github.com/lumichat/lumichat-relay/internal/tts"
	"github.com/lumichat/lumichat-relay/internal/version"
)

// Server exposes REST endpoints for the Lumichat relay.
type Server struct {
	relay       *relay.Orchestrator
	credentials credential.Store
	history     history.Store
	tts         *tts.Client

	logger   *log.Logger
	logLevel string
}

// New creates a Server. credentials, historyStore and ttsClient may be nil;
// the corresponding endpoints then answer 503.
func New(orchestrator *relay.Orchestrator, credentials credential.Store, historyStore history.Store, ttsClient *tts.Client) *Server {
	return &Server{
		relay:       orchestrator,
		credentials: credentials,
		history:     historyStore,
		tts:         ttsClient,
	}
}

// SetLogger configures request logging.
func (s *Server) SetLogger(level string, logger *log.Logger) {
	s.logLevel = level
	s.logger = logger
}

func (s *Server) isDebug() bool { return s.logLevel == "debug" }

func (s *Server) debugf(format string, args ...any) {
	if s.isDebug() && s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

func (s *Server) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

// Router assembles the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(corsMiddleware)

	r.Get("/healthz", s.HandleHealth)

	r.Post("/v1/chat", s.HandleRelay)
	r.Post("/v1/tts", s.HandleTTS)
	r.Post("/v1/video-voice", s.HandleVideoVoice)

	r.Route("/v1/credentials", func(r chi.Router) {
		r.Get("/", s.HandleListCredentials)
		r.Post("/", s.HandleCreateCredential)
		r.Post("/{id}/activate", s.HandleActivateCredential)
		r.Delete("/{id}", s.HandleDeleteCredential)
	})

	r.Route("/v1/conversations", func(r chi.Router) {
		r.Get("/", s.HandleListConversations)
		r.Post("/", s.HandleCreateConversation)
		r.Get("/{id}/messages", s.HandleListMessages)
		r.Post("/{id}/messages", s.HandleAppendMessage)
		r.Delete("/{id}", s.HandleDeleteConversation)
	})

	return r
}

// corsMiddleware allows cross-origin calls from the web client and answers
// preflight requests with an empty 204.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// HandleHealth reports liveness.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	s.respondJSON(w, status, map[string]string{"error": msg})
}
