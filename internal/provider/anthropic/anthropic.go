// Package anthropic speaks the Anthropic messages wire protocol and converts
// its streaming events into the relay's OpenAI-shaped chunk framing.
package anthropic

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

	"github.com/lumichat/lumichat-relay/internal/chat"
	"github.com/lumichat/lumichat-relay/internal/provider"
)

// Ensure Provider implements the relay contracts.
var _ provider.ChatProvider = (*Provider)(nil)
var _ provider.ImageProvider = (*Provider)(nil)

const defaultMaxTokens = 4096

// Provider sends requests to the Anthropic API (Claude).
type Provider struct {
	apiKey     string
	baseURL    string
	version    string
	maxTokens  int
	httpClient *http.Client
}

// Config holds configuration for the Anthropic provider.
type Config struct {
	APIKey         string
	BaseURL        string // optional, defaults to https://api.anthropic.com
	Version        string // optional, defaults to 2023-06-01
	MaxTokens      int    // optional, defaults to 4096
	RequestTimeout time.Duration
}

// New creates a Provider instance.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: api key required")
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	version := strings.TrimSpace(cfg.Version)
	if version == "" {
		version = "2023-06-01"
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	return &Provider{
		apiKey:    cfg.APIKey,
		baseURL:   baseURL,
		version:   version,
		maxTokens: maxTokens,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return "anthropic"
}

// anthropicMessage represents a message in Anthropic's format.
type anthropicMessage struct {
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content,omitempty"`
}

// anthropicContentBlock represents a content block.
type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// anthropicStreamEvent is the minimal streaming event schema.
type anthropicStreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text,omitempty"`
	} `json:"delta,omitempty"`
}

// StreamChat sends a streaming messages request and converts SSE events into
// OpenAI-shaped chunks.
func (p *Provider) StreamChat(ctx context.Context, req provider.ChatRequest) (<-chan provider.StreamEvent, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("anthropic: no messages provided")
	}

	messages := convertMessages(req.Messages)
	if len(messages) == 0 {
		return nil, errors.New("anthropic: no user/assistant messages")
	}

	payload := map[string]any{
		"model":      req.Model,
		"messages":   messages,
		"max_tokens": p.maxTokens,
		"stream":     true,
	}
	if req.System != "" {
		payload["system"] = req.System
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("anthropic: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("anthropic: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", p.version)
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic: send request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		return nil, &provider.StatusError{Provider: "anthropic", StatusCode: resp.StatusCode, Body: string(data)}
	}

	ch := make(chan provider.StreamEvent, 10)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		buf := make([]byte, 8192)
		leftover := ""
		roleEmitted := false
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			n, err := resp.Body.Read(buf)
			if n > 0 {
				data := leftover + string(buf[:n])
				lines := strings.Split(data, "\n")
				leftover = lines[len(lines)-1]
				for _, line := range lines[:len(lines)-1] {
					line = strings.TrimSpace(line)
					if line == "" || strings.HasPrefix(line, "event:") {
						continue
					}
					if !strings.HasPrefix(line, "data:") {
						continue
					}
					payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
					if payload == "{}" || payload == "[DONE]" {
						continue
					}
					var evt anthropicStreamEvent
					if perr := json.Unmarshal([]byte(payload), &evt); perr != nil {
						ch <- provider.StreamEvent{Err: fmt.Errorf("anthropic: parse stream: %w", perr)}
						return
					}
					switch {
					case evt.Type == "content_block_delta" && evt.Delta.Type == "text_delta" && evt.Delta.Text != "":
						delta := provider.Delta{Content: evt.Delta.Text}
						if !roleEmitted {
							roleEmitted = true
							delta.Role = chat.RoleAssistant
						}
						chunk := provider.Chunk{
							ID:      "msg-stream",
							Object:  "chat.completion.chunk",
							Created: time.Now().Unix(),
							Model:   req.Model,
							Choices: []provider.ChunkChoice{{Delta: delta}},
						}
						raw, _ := json.Marshal(&chunk)
						ch <- provider.StreamEvent{Chunk: &chunk, Raw: raw}
					case evt.Type == "message_stop":
						return
					}
				}
			}
			if err != nil {
				if err == io.EOF {
					return
				}
				ch <- provider.StreamEvent{Err: fmt.Errorf("anthropic: read stream: %w", err)}
				return
			}
		}
	}()
	return ch, nil
}

// GenerateImage is unsupported on the Anthropic protocol.
func (p *Provider) GenerateImage(ctx context.Context, req provider.ImageRequest) (string, error) {
	return "", errors.New("anthropic: image generation not supported")
}

// convertMessages maps relay messages to Anthropic's format. System turns are
// dropped here; the composed system prompt travels in the request's System
// field instead.
func convertMessages(in []chat.Message) []anthropicMessage {
	out := make([]anthropicMessage, 0, len(in))
	for _, msg := range in {
		role := strings.ToLower(msg.Role)
		if role == chat.RoleSystem {
			continue
		}
		if role != chat.RoleAssistant {
			role = chat.RoleUser
		}
		out = append(out, anthropicMessage{
			Role:    role,
			Content: []anthropicContentBlock{{Type: "text", Text: msg.Content}},
		})
	}
	return out
}
