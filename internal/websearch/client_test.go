package websearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSearchFiltersExcludedDomains(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]interface{}{
				{"title": "Good", "url": "https://good.example/a", "content": "c1", "score": 0.9},
				{"title": "Bad", "url": "https://blocked.example/b", "content": "c2", "score": 0.8},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, []string{"blocked.example"})
	results, err := c.Search(context.Background(), "query", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].URL != "https://good.example/a" {
		t.Errorf("unexpected result: %+v", results[0])
	}
}

func TestSearchRespectsMaxResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]interface{}{
				{"title": "A", "url": "https://x.example/1", "content": "c", "score": 0.9},
				{"title": "B", "url": "https://x.example/2", "content": "c", "score": 0.8},
				{"title": "C", "url": "https://x.example/3", "content": "c", "score": 0.7},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, nil)
	results, err := c.Search(context.Background(), "query", 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
}

func TestGetContentsExtractsParagraphs(t *testing.T) {
	html := `<html><head><title>Test Page</title></head><body>
		<nav>skip this</nav>
		<article>
			<p>This is a substantial paragraph with enough characters to pass the length filter.</p>
			<p>short</p>
			<p>Another long enough paragraph describing something interesting in detail.</p>
		</article>
	</body></html>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(html))
	}))
	defer srv.Close()

	c := NewClient("http://unused", 5*time.Second, nil)
	results := c.GetContents(context.Background(), []string{srv.URL})
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Err != nil {
		t.Fatalf("unexpected error: %v", results[0].Err)
	}
	if results[0].Title != "Test Page" {
		t.Errorf("title = %q, want %q", results[0].Title, "Test Page")
	}
	if results[0].Text == "" {
		t.Error("expected non-empty extracted text")
	}
}
