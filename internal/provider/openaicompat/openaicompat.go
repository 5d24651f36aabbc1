// Package openaicompat speaks the OpenAI chat-completions wire protocol.
// It serves the OpenAI API itself and every compatible endpoint (Gemini's
// OpenAI surface, Grok, custom gateways).
package openaicompat

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
	"github.com/lumichat/lumichat-relay/internal/sse"
)

// Ensure Provider implements the relay contracts.
var _ provider.ChatProvider = (*Provider)(nil)
var _ provider.ImageProvider = (*Provider)(nil)

// Provider sends requests to an OpenAI-compatible endpoint.
type Provider struct {
	name       string
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Config holds configuration for the provider.
type Config struct {
	Name           string // identifier used in errors, defaults to "openai"
	APIKey         string
	BaseURL        string // optional, defaults to https://api.openai.com/v1
	RequestTimeout time.Duration
}

// New creates a Provider instance.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openaicompat: api key required")
	}

	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		name = "openai"
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	return &Provider{
		name:    name,
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

// StreamChat sends a streaming chat completion request and relays the SSE
// payloads as stream events.
func (p *Provider) StreamChat(ctx context.Context, req provider.ChatRequest) (<-chan provider.StreamEvent, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("%s: no messages provided", p.name)
	}

	messages := make([]chat.Message, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, chat.Message{Role: chat.RoleSystem, Content: req.System})
	}
	messages = append(messages, req.Messages...)

	payload := map[string]any{
		"model":    req.Model,
		"messages": messages,
		"stream":   true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: marshal request: %w", p.name, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", p.name, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s: send request: %w", p.name, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		return nil, &provider.StatusError{Provider: p.name, StatusCode: resp.StatusCode, Body: string(data)}
	}

	ch := make(chan provider.StreamEvent, 10)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := sse.NewScanner(resp.Body)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			payload, err := scanner.Next()
			if err != nil {
				if err != io.EOF {
					ch <- provider.StreamEvent{Err: fmt.Errorf("%s: read stream: %w", p.name, err)}
				}
				return
			}

			var chunk provider.Chunk
			if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
				ch <- provider.StreamEvent{Err: fmt.Errorf("%s: parse stream: %w", p.name, err)}
				return
			}
			ch <- provider.StreamEvent{Chunk: &chunk, Raw: []byte(payload)}
		}
	}()
	return ch, nil
}

// imageResponse mirrors the response path of image-capable chat endpoints:
// choices[0].message.images[0].image_url.url.
type imageResponse struct {
	Choices []struct {
		Message struct {
			Images []struct {
				ImageURL struct {
					URL string `json:"url"`
				} `json:"image_url"`
			} `json:"images"`
		} `json:"message"`
	} `json:"choices"`
}

// GenerateImage performs a non-streamed image call. For edits the source
// image is embedded as an image_url content part alongside the prompt.
func (p *Provider) GenerateImage(ctx context.Context, req provider.ImageRequest) (string, error) {
	var content any = "Generate a high quality image: " + req.Prompt
	if req.ImageBase64 != "" {
		content = []map[string]any{
			{"type": "text", "text": req.Prompt},
			{"type": "image_url", "image_url": map[string]string{"url": req.ImageBase64}},
		}
	}

	payload := map[string]any{
		"model": req.Model,
		"messages": []map[string]any{
			{"role": chat.RoleUser, "content": content},
		},
		"modalities": []string{"image", "text"},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%s: marshal image request: %w", p.name, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%s: create image request: %w", p.name, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%s: send image request: %w", p.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return "", &provider.StatusError{Provider: p.name, StatusCode: resp.StatusCode, Body: string(data)}
	}

	var parsed imageResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%s: decode image response: %w", p.name, err)
	}
	if len(parsed.Choices) == 0 || len(parsed.Choices[0].Message.Images) == 0 {
		return "", fmt.Errorf("%s: image response missing url", p.name)
	}
	url := parsed.Choices[0].Message.Images[0].ImageURL.URL
	if url == "" {
		return "", fmt.Errorf("%s: image response missing url", p.name)
	}
	return url, nil
}
