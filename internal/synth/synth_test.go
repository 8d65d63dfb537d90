package synth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tangent/internal/llmclient"
	"tangent/internal/scorer"
	"tangent/internal/types"
)

func newTestSynthesizer(t *testing.T, handler http.HandlerFunc) (*Synthesizer, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	mgr := llmclient.NewManager(llmclient.DefaultConfig(), nil)
	client := llmclient.NewClient(mgr, llmclient.PriorityCritical, 5*time.Second)
	return New(client, srv.URL, "test-model"), func() {
		mgr.Stop()
		srv.Close()
	}
}

func TestSynthesizeParsesStructuredOutput(t *testing.T) {
	s, cleanup := newTestSynthesizer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": `{"title":"A contrasting angle","body":"Two sentences here. Complementary material.","reasoning":"offers a different lens"}`}},
			},
		})
	})
	defer cleanup()

	web := types.SearchResult{Title: "Some article", URL: "http://example.com/a", Text: "body text"}
	candidate := types.ScoredCandidate{Web: &web, Source: types.SourceWeb}
	scored := scorer.Scored{Relevance: 0.5, Novelty: 0.8}

	suggestion := s.Synthesize(context.Background(), candidate, "original context", scored)
	if suggestion.Title != "A contrasting angle" {
		t.Errorf("title = %q", suggestion.Title)
	}
	if suggestion.SourceURL != "http://example.com/a" {
		t.Errorf("sourceURL = %q", suggestion.SourceURL)
	}
	if suggestion.RelevanceScore != 0.5 || suggestion.NoveltyScore != 0.8 {
		t.Errorf("expected scores carried through: %+v", suggestion)
	}
}

func TestSynthesizeFallsBackOnUpstreamFailure(t *testing.T) {
	s, cleanup := newTestSynthesizer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer cleanup()

	mem := types.Memory{ID: "m1", Content: "a long piece of remembered content about distributed systems"}
	candidate := types.ScoredCandidate{Memory: &mem, Source: types.SourceLocal}
	scored := scorer.Scored{Relevance: 0.4, Novelty: 0.6}

	suggestion := s.Synthesize(context.Background(), candidate, "context", scored)
	if suggestion.Title == "" {
		t.Error("expected a non-empty fallback title")
	}
	if suggestion.SourceURL != "" {
		t.Errorf("expected no source URL for a memory fallback, got %q", suggestion.SourceURL)
	}
}

func TestSynthesizeFallsBackOnEmptyParsedFields(t *testing.T) {
	s, cleanup := newTestSynthesizer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": `{"title":"","body":"","reasoning":""}`}},
			},
		})
	})
	defer cleanup()

	web := types.SearchResult{Title: "t", URL: "http://example.com/b", Text: "text"}
	candidate := types.ScoredCandidate{Web: &web, Source: types.SourceWeb}
	suggestion := s.Synthesize(context.Background(), candidate, "context", scorer.Scored{})
	if suggestion.Title == "" {
		t.Error("expected fallback title when parsed fields are empty")
	}
}

func TestTruncateRespectsRuneBoundaries(t *testing.T) {
	s := truncate("hello world", 5)
	if s != "hello" {
		t.Errorf("truncate = %q, want %q", s, "hello")
	}
	if truncate("short", 10) != "short" {
		t.Error("truncate should not pad or alter strings shorter than n")
	}
}
