// Package tts proxies text-to-speech to an ElevenLabs-style API. It is a
// side channel next to the relay, not part of it.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.elevenlabs.io"
	defaultModelID = "eleven_multilingual_v2"
	outputFormat   = "mp3_44100_128"
)

// voiceMapping maps persona names to voice IDs. Lookup is the usual
// substring containment over the lower-cased name.
var voiceMapping = []struct {
	name    string
	voiceID string
}{
	{"žena", "EXAVITQu4vr4xnSDxMaL"},
	{"muž", "JBFqnCBsd6RMkjVDRZzb"},
	{"dievča", "pFZP5JQG7iQjIQuC4Bku"},
	{"chlapec", "TX3LPaxmHKxFdv7VOQHJ"},
	{"robot", "kPtEHAvRnjUJFv7SK9WI"},
	{"santa", "MDLAMJ0jxkpYkjXbmG4t"},
}

const defaultVoiceID = "JBFqnCBsd6RMkjVDRZzb"

// FindVoiceID resolves a persona name to a voice ID, defaulting when no
// persona matches.
func FindVoiceID(voiceName string) string {
	lower := strings.ToLower(strings.TrimSpace(voiceName))
	for _, v := range voiceMapping {
		if strings.Contains(lower, v.name) {
			return v.voiceID
		}
	}
	return defaultVoiceID
}

// Config holds configuration for the TTS client.
type Config struct {
	APIKey         string
	BaseURL        string // optional, defaults to https://api.elevenlabs.io
	RequestTimeout time.Duration
}

// Client synthesizes speech audio.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// ErrNotConfigured signals a missing TTS API key.
var ErrNotConfigured = errors.New("tts: api key not configured")

// New creates a TTS Client. A missing API key is allowed; Synthesize then
// fails with ErrNotConfigured.
func New(cfg Config) *Client {
	baseURL := strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Synthesize renders text with the given voice ID and returns MP3 bytes.
func (c *Client) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("tts: text required")
	}
	if voiceID == "" {
		voiceID = defaultVoiceID
	}

	payload := map[string]any{
		"text":     text,
		"model_id": defaultModelID,
		"voice_settings": map[string]any{
			"stability":         0.5,
			"similarity_boost":  0.75,
			"style":             0.5,
			"use_speaker_boost": true,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("tts: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s", c.baseURL, voiceID, outputFormat)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("tts: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("tts: http %d: %s", resp.StatusCode, string(data))
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tts: read audio: %w", err)
	}
	return audio, nil
}
