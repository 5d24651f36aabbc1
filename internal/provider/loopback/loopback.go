package loopback

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/lumichat/lumichat-relay/internal/chat"
	"github.com/lumichat/lumichat-relay/internal/provider"
)

// Ensure Provider implements the relay contracts.
var _ provider.ChatProvider = (*Provider)(nil)
var _ provider.ImageProvider = (*Provider)(nil)

// Provider echoes the last user message back as a short token stream. It
// exists for offline development and for testing the relay pipeline without
// an upstream.
type Provider struct{}

// New creates a loopback Provider instance.
func New() *Provider {
	return &Provider{}
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return "loopback"
}

// StreamChat fabricates a deterministic stream for the last user message.
func (p *Provider) StreamChat(ctx context.Context, req provider.ChatRequest) (<-chan provider.StreamEvent, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("loopback: no messages provided")
	}

	// find last user message; default to final message if none
	message := req.Messages[len(req.Messages)-1]
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if strings.ToLower(req.Messages[i].Role) == chat.RoleUser {
			message = req.Messages[i]
			break
		}
	}
	reply := "[loopback] " + strings.TrimSpace(message.Content)

	ch := make(chan provider.StreamEvent, 4)
	go func() {
		defer close(ch)
		role := chat.RoleAssistant
		for _, part := range splitWords(reply) {
			select {
			case <-ctx.Done():
				return
			default:
			}
			chunk := provider.Chunk{
				ID:      "cmpl-loopback",
				Object:  "chat.completion.chunk",
				Created: time.Now().Unix(),
				Model:   req.Model,
				Choices: []provider.ChunkChoice{{Delta: provider.Delta{Role: role, Content: part}}},
			}
			role = ""
			raw, _ := json.Marshal(&chunk)
			ch <- provider.StreamEvent{Chunk: &chunk, Raw: raw}
		}
	}()
	return ch, nil
}

// GenerateImage returns a fixed placeholder URL so the image path can be
// exercised offline.
func (p *Provider) GenerateImage(ctx context.Context, req provider.ImageRequest) (string, error) {
	return "data:image/png;base64,loopback", nil
}

// splitWords yields word-sized deltas so consumers see a multi-chunk stream.
func splitWords(s string) []string {
	words := strings.Split(s, " ")
	out := make([]string, 0, len(words))
	for i, w := range words {
		if i < len(words)-1 {
			w += " "
		}
		out = append(out, w)
	}
	return out
}
