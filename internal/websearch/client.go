// Package websearch wraps a SearxNG-style meta-search endpoint: query→
// ranked results, find-similar, and get-contents by URL. Follows
// internal/tools/searxng_client.go's shape.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"tangent/internal/types"
)

// Client talks to a SearxNG-compatible JSON search API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	excludeDomains map[string]bool
}

// NewClient creates a search index client.
func NewClient(baseURL string, timeout time.Duration, excludeDomains []string) *Client {
	excl := make(map[string]bool, len(excludeDomains))
	for _, d := range excludeDomains {
		excl[d] = true
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		excludeDomains: excl,
	}
}

// Search performs a search query, returning up to maxResults ranked hits.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]types.SearchResult, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("format", "json")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("search index returned status %d: %s", resp.StatusCode, string(body))
	}

	var raw struct {
		Results []struct {
			Title   string  `json:"title"`
			URL     string  `json:"url"`
			Content string  `json:"content"`
			Score   float64 `json:"score"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	out := make([]types.SearchResult, 0, len(raw.Results))
	for _, r := range raw.Results {
		if c.isExcluded(r.URL) {
			continue
		}
		score := r.Score
		if score == 0 {
			score = 0.5
		}
		out = append(out, types.SearchResult{
			Title: r.Title,
			URL:   r.URL,
			Text:  r.Content,
			Score: score,
		})
		if maxResults > 0 && len(out) >= maxResults {
			break
		}
	}
	return out, nil
}

// FindSimilar runs the passed text as a plain Search query and returns
// its hits; no dedicated similarity endpoint is used.
func (c *Client) FindSimilar(ctx context.Context, text string, maxResults int) ([]types.SearchResult, error) {
	return c.Search(ctx, text, maxResults)
}

func (c *Client) isExcluded(rawURL string) bool {
	if len(c.excludeDomains) == 0 {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return c.excludeDomains[u.Hostname()]
}
