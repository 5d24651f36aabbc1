package openaicompat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/lumichat/lumichat-relay/internal/chat"
	"github.com/lumichat/lumichat-relay/internal/provider"
	"github.com/lumichat/lumichat-relay/internal/testutil"
)

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error for missing api key")
	}
}

func TestStreamChat(t *testing.T) {
	var gotReq map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"id\":\"c1\",\"choices\":[{\"delta\":{\"role\":\"assistant\",\"content\":\"Ahoj\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"id\":\"c1\",\"choices\":[{\"delta\":{\"content\":\" svet\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})
	srv := testutil.NewIPv4Server(t, mux)
	defer srv.Close()

	p, err := New(Config{APIKey: "sk-test", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ch, err := p.StreamChat(context.Background(), provider.ChatRequest{
		Model:    "gpt-4o",
		System:   "systémový prompt",
		Messages: []chat.Message{{Role: chat.RoleUser, Content: "pozdrav"}},
	})
	if err != nil {
		t.Fatalf("StreamChat: %v", err)
	}

	var text strings.Builder
	var events int
	for ev := range ch {
		if ev.Err != nil {
			t.Fatalf("stream event error: %v", ev.Err)
		}
		if len(ev.Raw) == 0 {
			t.Fatalf("event missing raw payload")
		}
		text.WriteString(ev.Chunk.Content())
		events++
	}
	if events != 2 {
		t.Fatalf("expected 2 events, got %d", events)
	}
	if text.String() != "Ahoj svet" {
		t.Fatalf("unexpected text %q", text.String())
	}

	// System prompt must be prepended as the first message.
	msgs, ok := gotReq["messages"].([]any)
	if !ok || len(msgs) != 2 {
		t.Fatalf("unexpected messages %#v", gotReq["messages"])
	}
	first := msgs[0].(map[string]any)
	if first["role"] != "system" || first["content"] != "systémový prompt" {
		t.Fatalf("system prompt not prepended: %#v", first)
	}
	if gotReq["stream"] != true {
		t.Fatalf("expected stream=true")
	}
}

func TestStreamChatRateLimited(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"rate limited"}}`)
	})
	srv := testutil.NewIPv4Server(t, mux)
	defer srv.Close()

	p, err := New(Config{APIKey: "sk-test", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = p.StreamChat(context.Background(), provider.ChatRequest{
		Model:    "gpt-4o",
		Messages: []chat.Message{{Role: chat.RoleUser, Content: "x"}},
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	var se *provider.StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 StatusError, got %v", err)
	}
	if !provider.IsStatus(err, http.StatusTooManyRequests) {
		t.Fatalf("IsStatus must recognise the code")
	}
}

func TestStreamChatNoMessages(t *testing.T) {
	p, err := New(Config{APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.StreamChat(context.Background(), provider.ChatRequest{Model: "gpt-4o"}); err == nil {
		t.Fatalf("expected error for empty messages")
	}
}

func TestGenerateImage(t *testing.T) {
	var gotReq map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{
					"images": []map[string]any{{
						"image_url": map[string]string{"url": "https://img.example/obrazok.png"},
					}},
				},
			}},
		})
	})
	srv := testutil.NewIPv4Server(t, mux)
	defer srv.Close()

	p, err := New(Config{APIKey: "sk-test", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	url, err := p.GenerateImage(context.Background(), provider.ImageRequest{Model: "gpt-4o", Prompt: "západ slnka"})
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if url != "https://img.example/obrazok.png" {
		t.Fatalf("unexpected url %q", url)
	}

	mods, ok := gotReq["modalities"].([]any)
	if !ok || len(mods) != 2 || mods[0] != "image" {
		t.Fatalf("modalities not requested: %#v", gotReq["modalities"])
	}
	msgs := gotReq["messages"].([]any)
	content := msgs[0].(map[string]any)["content"].(string)
	if !strings.Contains(content, "západ slnka") {
		t.Fatalf("prompt missing from content %q", content)
	}
}

func TestGenerateImageEditEmbedsSource(t *testing.T) {
	var gotReq map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{
					"images": []map[string]any{{
						"image_url": map[string]string{"url": "data:image/png;base64,upravene"},
					}},
				},
			}},
		})
	})
	srv := testutil.NewIPv4Server(t, mux)
	defer srv.Close()

	p, err := New(Config{APIKey: "sk-test", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.GenerateImage(context.Background(), provider.ImageRequest{
		Model: "gpt-4o", Prompt: "pridaj klobúk", ImageBase64: "data:image/png;base64,zdroj",
	}); err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}

	msgs := gotReq["messages"].([]any)
	parts, ok := msgs[0].(map[string]any)["content"].([]any)
	if !ok || len(parts) != 2 {
		t.Fatalf("expected content parts for edit, got %#v", msgs[0])
	}
	img := parts[1].(map[string]any)
	if img["type"] != "image_url" {
		t.Fatalf("second part must be the source image, got %#v", img)
	}
}

func TestGenerateImageMissingURL(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{}}},
		})
	})
	srv := testutil.NewIPv4Server(t, mux)
	defer srv.Close()

	p, err := New(Config{APIKey: "sk-test", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.GenerateImage(context.Background(), provider.ImageRequest{Model: "gpt-4o", Prompt: "x"}); err == nil {
		t.Fatalf("expected error for missing image url")
	}
}
