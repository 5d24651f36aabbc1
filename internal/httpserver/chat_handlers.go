package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/lumichat/lumichat-relay/internal/chat"
)

// HandleRelay serves POST /v1/chat. Structured outcomes are returned as
// JSON; provider streams are relayed as SSE with payloads passed through
// unmodified.
func (s *Server) HandleRelay(w http.ResponseWriter, r *http.Request) {
	reqStart := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			s.logf("[relay] panic recovered: %v", rec)
			s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("internal error: %v", rec))
		}
	}()

	var req chat.RelayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	s.debugf("[relay] request mode=%s messages=%d override=%t", req.Mode, len(req.Messages), req.UserAPIKey != "")

	out := s.relay.Handle(r.Context(), req)
	if out.Stream == nil {
		s.respondJSON(w, out.Status, out.JSON)
		s.logf("[relay] done mode=%s status=%d stream=false total=%s", req.Mode, out.Status, time.Since(reqStart))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	var (
		firstToken time.Time
		events     int
	)
	for ev := range out.Stream {
		if ev.Err != nil {
			s.logf("[relay] stream error mode=%s after=%d: %v", req.Mode, events, ev.Err)
			fmt.Fprint(w, "data: {\"error\": \"stream error\"}\n\n")
			flusher.Flush()
			return
		}
		if len(ev.Raw) == 0 {
			continue
		}
		if firstToken.IsZero() {
			firstToken = time.Now()
		}
		fmt.Fprintf(w, "data: %s\n\n", ev.Raw)
		flusher.Flush()
		events++
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()

	ttfb := time.Duration(0)
	if !firstToken.IsZero() {
		ttfb = firstToken.Sub(reqStart)
	}
	s.logf("[relay] done mode=%s status=200 stream=true events=%d ttfb=%s total=%s", req.Mode, events, ttfb, time.Since(reqStart))
}
