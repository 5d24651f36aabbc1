package websearch

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/lumichat/lumichat-relay/internal/testutil"
)

func TestSearchDigest(t *testing.T) {
	var gotBody map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/search", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer fc-test" {
			t.Errorf("unexpected auth header %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": []map[string]string{
				{"title": "Prvý", "url": "https://a.example", "description": "popis"},
				{"title": "Druhý", "url": "https://b.example", "markdown": "obsah stránky"},
			},
		})
	})
	srv := testutil.NewIPv4Server(t, mux)
	defer srv.Close()

	c := New(Config{APIKey: "fc-test", BaseURL: srv.URL, Limit: 3})
	digest := c.Search(context.Background(), "aktuálne správy")

	if gotBody["query"] != "aktuálne správy" {
		t.Fatalf("unexpected query %v", gotBody["query"])
	}
	if gotBody["limit"] != float64(3) {
		t.Fatalf("unexpected limit %v", gotBody["limit"])
	}
	if !strings.Contains(digest, "**Prvý** (https://a.example)\npopis") {
		t.Fatalf("missing first entry in digest:\n%s", digest)
	}
	if !strings.Contains(digest, "obsah stránky") {
		t.Fatalf("markdown fallback missing:\n%s", digest)
	}
	if !strings.Contains(digest, "\n\n---\n\n") {
		t.Fatalf("entries not separated by rule:\n%s", digest)
	}
}

func TestSearchWithoutAPIKey(t *testing.T) {
	c := New(Config{})
	if got := c.Search(context.Background(), "x"); got != Unavailable {
		t.Fatalf("expected %q, got %q", Unavailable, got)
	}
}

func TestSearchUpstreamError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/search", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := testutil.NewIPv4Server(t, mux)
	defer srv.Close()

	c := New(Config{APIKey: "fc-test", BaseURL: srv.URL})
	if got := c.Search(context.Background(), "x"); got != Failed {
		t.Fatalf("expected %q, got %q", Failed, got)
	}
}

func TestSearchNoResults(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/search", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": []any{}})
	})
	srv := testutil.NewIPv4Server(t, mux)
	defer srv.Close()

	c := New(Config{APIKey: "fc-test", BaseURL: srv.URL})
	if got := c.Search(context.Background(), "x"); got != NoResults {
		t.Fatalf("expected %q, got %q", NoResults, got)
	}
}

func TestSearchUnreachableHost(t *testing.T) {
	c := New(Config{APIKey: "fc-test", BaseURL: "http://127.0.0.1:1"})
	if got := c.Search(context.Background(), "x"); got != Failed {
		t.Fatalf("expected %q, got %q", Failed, got)
	}
}

func TestExcerptTruncatesMarkdown(t *testing.T) {
	long := strings.Repeat("a", 900)
	got := excerpt(searchResult{Markdown: long})
	if len(got) != 500 {
		t.Fatalf("expected 500 byte excerpt, got %d", len(got))
	}
}
