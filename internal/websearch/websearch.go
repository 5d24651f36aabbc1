// Package websearch calls a Firecrawl-style search API and digests the
// results into a markdown block for prompt injection. Failures never
// propagate past this package: every error path degrades to a readable
// sentinel string so a search outage cannot abort a chat turn.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"
)

// Sentinel digests returned instead of results.
const (
	Unavailable = "Web search is not available."
	Failed      = "Web search failed."
	NoResults   = "No results found."
)

const defaultBaseURL = "https://api.firecrawl.dev"

// Config holds configuration for the search client.
type Config struct {
	APIKey         string
	BaseURL        string // optional, defaults to https://api.firecrawl.dev
	Limit          int    // result count per query, default 5
	RequestTimeout time.Duration
}

// Client performs web searches.
type Client struct {
	apiKey     string
	baseURL    string
	limit      int
	httpClient *http.Client
	logger     *log.Logger
}

// New creates a search Client. A missing API key is allowed; Search then
// reports Unavailable.
func New(cfg Config) *Client {
	baseURL := strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = 5
	}
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		baseURL:    baseURL,
		limit:      limit,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SetLogger overrides the default logger; nil keeps the current logger.
func (c *Client) SetLogger(logger *log.Logger) {
	if logger != nil {
		c.logger = logger
	}
}

func (c *Client) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}

type searchResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Markdown    string `json:"markdown"`
}

type searchResponse struct {
	Success bool           `json:"success"`
	Data    []searchResult `json:"data"`
}

// Search runs the query and returns a formatted digest: title, URL and an
// excerpt per result, separated by markdown rules.
func (c *Client) Search(ctx context.Context, query string) string {
	if c.apiKey == "" {
		return Unavailable
	}

	payload := map[string]any{
		"query": query,
		"limit": c.limit,
		"scrapeOptions": map[string]any{
			"formats": []string{"markdown"},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		c.logf("websearch: marshal request: %v", err)
		return Failed
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/search", bytes.NewReader(body))
	if err != nil {
		c.logf("websearch: create request: %v", err)
		return Failed
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logf("websearch: send request: %v", err)
		return Failed
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logf("websearch: http %d", resp.StatusCode)
		return Failed
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		c.logf("websearch: decode response: %v", err)
		return Failed
	}
	if !parsed.Success || len(parsed.Data) == 0 {
		return NoResults
	}

	entries := make([]string, 0, len(parsed.Data))
	for _, r := range parsed.Data {
		entries = append(entries, "**"+r.Title+"** ("+r.URL+")\n"+excerpt(r))
	}
	return strings.Join(entries, "\n\n---\n\n")
}

// excerpt prefers the description and falls back to the first 500 bytes of
// scraped markdown.
func excerpt(r searchResult) string {
	if r.Description != "" {
		return r.Description
	}
	if len(r.Markdown) > 500 {
		return r.Markdown[:500]
	}
	return r.Markdown
}
