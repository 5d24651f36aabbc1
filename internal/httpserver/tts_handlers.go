package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/lumichat/lumichat-relay/internal/tts"
)

type ttsRequest struct {
	Text      string `json:"text"`
	VoiceID   string `json:"voiceId,omitempty"`
	VoiceName string `json:"voiceName,omitempty"`
}

// HandleTTS serves POST /v1/tts and streams back synthesized MP3 audio.
func (s *Server) HandleTTS(w http.ResponseWriter, r *http.Request) {
	if s.tts == nil {
		s.respondError(w, http.StatusServiceUnavailable, "tts not configured")
		return
	}
	var req ttsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.respondError(w, http.StatusBadRequest, "text is required")
		return
	}
	voiceID := req.VoiceID
	if voiceID == "" {
		voiceID = tts.FindVoiceID(req.VoiceName)
	}
	audio, err := s.tts.Synthesize(r.Context(), req.Text, voiceID)
	if err != nil {
		if errors.Is(err, tts.ErrNotConfigured) {
			s.respondError(w, http.StatusServiceUnavailable, "tts not configured")
			return
		}
		s.logf("[tts] synth failed voice=%s: %v", voiceID, err)
		s.respondError(w, http.StatusBadGateway, "speech synthesis failed")
		return
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio)
}

// HandleVideoVoice serves POST /v1/video-voice. Video rendering is not
// implemented; the endpoint synthesizes the narration track only and labels
// the response accordingly so clients can fall back to audio playback.
func (s *Server) HandleVideoVoice(w http.ResponseWriter, r *http.Request) {
	if s.tts == nil {
		s.respondError(w, http.StatusServiceUnavailable, "tts not configured")
		return
	}
	var req ttsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.respondError(w, http.StatusBadRequest, "text is required")
		return
	}
	voiceID := req.VoiceID
	if voiceID == "" {
		voiceID = tts.FindVoiceID(req.VoiceName)
	}
	audio, err := s.tts.Synthesize(r.Context(), req.Text, voiceID)
	if err != nil {
		if errors.Is(err, tts.ErrNotConfigured) {
			s.respondError(w, http.StatusServiceUnavailable, "tts not configured")
			return
		}
		s.logf("[video-voice] synth failed voice=%s: %v", voiceID, err)
		s.respondError(w, http.StatusBadGateway, "speech synthesis failed")
		return
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Disposition", `attachment; filename="voice-track.mp3"`)
	w.Header().Set("X-Video-Status", "voice-only")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio)
}
