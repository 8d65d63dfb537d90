package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tangent/internal/types"
	"tangent/internal/websearch"
)

func TestPartitionAnchorsExcludesEchoFromSweet(t *testing.T) {
	anchors := []types.Memory{
		{ID: "echo-1", Similarity: 0.95},
		{ID: "sweet-1", Similarity: 0.7},
		{ID: "distant-1", Similarity: 0.2},
	}

	echo, sweet := partitionAnchors(anchors)
	if len(echo) != 1 || echo[0].ID != "echo-1" {
		t.Fatalf("echo = %+v, want just echo-1", echo)
	}
	if len(sweet) != 1 || sweet[0].ID != "sweet-1" {
		t.Fatalf("sweet = %+v, want just sweet-1", sweet)
	}
	for _, a := range sweet {
		if a.Similarity >= legacyEchoThreshold {
			t.Errorf("echo-band anchor %q leaked into the sweet bucket", a.ID)
		}
	}
}

func TestPartitionAnchorsCapsEchoAtThree(t *testing.T) {
	anchors := []types.Memory{
		{ID: "e1", Similarity: 0.9}, {ID: "e2", Similarity: 0.91},
		{ID: "e3", Similarity: 0.92}, {ID: "e4", Similarity: 0.93},
	}
	echo, _ := partitionAnchors(anchors)
	if len(echo) != 3 {
		t.Errorf("echo len = %d, want 3", len(echo))
	}
}

func TestPartitionAnchorsDropsDistantEntirely(t *testing.T) {
	anchors := []types.Memory{{ID: "d1", Similarity: 0.1}}
	echo, sweet := partitionAnchors(anchors)
	if len(echo) != 0 || len(sweet) != 0 {
		t.Errorf("expected a distant-only anchor set to produce no echo or sweet anchors, got echo=%+v sweet=%+v", echo, sweet)
	}
}

// TestBuildGraphCandidatesKeepsSweetSpotNeighbors checks that a pool of
// sweet-spot neighbors comes back whole, each with a doughnut final
// score below the echo ceiling. Keeping echo anchors out of the pool is
// graphPivot's job (it never adds them), not buildGraphCandidates'.
func TestBuildGraphCandidatesKeepsSweetSpotNeighbors(t *testing.T) {
	pool := map[string]types.Memory{
		"neighbor-1": {ID: "neighbor-1", Similarity: 0.7},
		"neighbor-2": {ID: "neighbor-2", Similarity: 0.68},
	}

	out := buildGraphCandidates(pool, 5)
	if len(out) != 2 {
		t.Fatalf("expected both sweet-spot neighbors to survive, got %d", len(out))
	}
	for _, c := range out {
		if c.Raw >= legacyEchoThreshold {
			t.Errorf("candidate %+v has a final score at or above the echo ceiling", c)
		}
	}
}

func TestBuildGraphCandidatesOrdersDeterministicallyByID(t *testing.T) {
	pool := map[string]types.Memory{
		"b": {ID: "b", Similarity: 0.7},
		"a": {ID: "a", Similarity: 0.7},
	}
	out1 := buildGraphCandidates(pool, 5)
	out2 := buildGraphCandidates(pool, 5)
	if len(out1) != len(out2) {
		t.Fatalf("expected stable candidate count across calls")
	}
	for i := range out1 {
		if out1[i].Memory.ID != out2[i].Memory.ID {
			t.Errorf("candidate order is non-deterministic: %q vs %q at index %d", out1[i].Memory.ID, out2[i].Memory.ID, i)
		}
	}
}

// TestRouteWeightedDispatchesWebBranch exercises route_weighted's
// dispatch logic end to end: with serendipity and source-local weight
// both below their dispatch thresholds, only the web branch should run,
// and its results should come back deduped, adjusted, and tagged
// route_weighted.
func TestRouteWeightedDispatchesWebBranch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]interface{}{
				{"title": "First", "url": "http://example.com/1", "content": "body one", "score": 0.8},
				{"title": "Second", "url": "http://example.com/2", "content": "body two", "score": 0.6},
			},
		})
	}))
	defer srv.Close()

	r := New(nil, websearch.NewClient(srv.URL, 5*time.Second, nil), nil, nil, 20, 5)

	weights := types.StrategyWeights{Serendipity: 0.1, Relevance: 0.2, SourceWeb: 0.9, SourceLocal: 0.05}
	result := r.RouteWeighted(context.Background(), "golang", "some context", weights, "default", types.VibeProfile{}, "", 5)

	if result.Path != types.PathWeighted {
		t.Errorf("path = %q, want %q", result.Path, types.PathWeighted)
	}
	if len(result.Candidates) != 2 {
		t.Fatalf("expected both web results to come back, got %d: %+v", len(result.Candidates), result.Candidates)
	}
	if result.Candidates[0].Adjusted < result.Candidates[1].Adjusted {
		t.Errorf("expected candidates sorted descending by adjusted score, got %+v", result.Candidates)
	}
}
