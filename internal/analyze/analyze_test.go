package analyze

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tangent/internal/concept"
	"tangent/internal/decisionlog"
	"tangent/internal/judge"
	"tangent/internal/llmclient"
	"tangent/internal/synth"
	"tangent/internal/types"
	"tangent/internal/websearch"
)

func newTestController(t *testing.T, search *websearch.Client) *Controller {
	t.Helper()
	return &Controller{search: search, maxSuggestions: 3}
}

// newLLMBackedController wires a full pipeline against a single stub LLM
// server: the concept extractor, context judge, and synthesizer all call
// into it, while routing is handled by the given fakeRouter so each
// scenario can control exactly which candidates route_weighted hands
// back. Mirrors internal/orthogonal's pattern of standing up a real
// collaborator graph against httptest stubs rather than mocking package
// internals.
func newLLMBackedController(t *testing.T, llmHandler http.HandlerFunc, routed types.CascadeResult) *Controller {
	t.Helper()
	srv := httptest.NewServer(llmHandler)
	t.Cleanup(srv.Close)

	mgr := llmclient.NewManager(llmclient.DefaultConfig(), nil)
	t.Cleanup(mgr.Stop)
	client := llmclient.NewClient(mgr, llmclient.PriorityCritical, 5*time.Second)

	return &Controller{
		concepts:       concept.New(client, srv.URL, "test-model"),
		judge:          judge.New(client, srv.URL, "test-model"),
		router:         fakeRouter{result: routed},
		synth:          synth.New(client, srv.URL, "test-model"),
		search:         websearch.NewClient("http://unused", time.Second, nil),
		log:            decisionlog.New(filepath.Join(t.TempDir(), "decisions.jsonl")),
		maxSuggestions: 3,
	}
}

// fakeRouter stubs Router.RouteWeighted with a fixed CascadeResult,
// letting a test dictate exactly which candidates reach the doughnut
// re-rank step without needing a live memory store or orthogonal searcher.
type fakeRouter struct {
	result types.CascadeResult
}

func (f fakeRouter) RouteWeighted(ctx context.Context, query, contextText string, weights types.StrategyWeights, containerTag string, vibe types.VibeProfile, sourceDomain string, maxSuggestions int) types.CascadeResult {
	return f.result
}

func jsonChatHandler(content string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": content}},
			},
		})
	}
}

func TestAnalyzeEmptyContextShortCircuit(t *testing.T) {
	// "hi ok" has no word longer than 6 chars, so ExtractConcepts' JSON
	// parse (empty concepts list) falls through to the whitespace
	// fallback and still comes up empty.
	c := newLLMBackedController(t, jsonChatHandler(`{"mainSubject":"","concepts":[]}`), types.CascadeResult{})

	resp := c.Analyze(context.Background(), Request{Context: "hi ok", App: "vscode"})
	if resp.Path != types.PathNone {
		t.Errorf("path = %q, want %q", resp.Path, types.PathNone)
	}
	if resp.Confidence != types.ConfidenceLow {
		t.Errorf("confidence = %q, want %q", resp.Confidence, types.ConfidenceLow)
	}
	if len(resp.Suggestions) != 0 {
		t.Errorf("expected no suggestions on short-circuit, got %d", len(resp.Suggestions))
	}
	if resp.RequestID == "" {
		t.Error("expected a request id even on short-circuit")
	}
}

// TestAnalyzeEchoChamberSuppression exercises the echo-chamber
// invariant end to end: a candidate near-identical to the query (raw
// similarity in the echo band, >= 0.85) must never be allowed to
// outrank a genuinely novel sweet-spot candidate, and must come back
// pinned to the echo band's fixed novelty score of 0.2.
func TestAnalyzeEchoChamberSuppression(t *testing.T) {
	echoWeb := types.SearchResult{Title: "Echo result", URL: "http://example.com/echo", Text: "near-duplicate of the query"}
	sweetWeb := types.SearchResult{Title: "Sweet result", URL: "http://example.com/sweet", Text: "a genuinely different angle"}

	routed := types.CascadeResult{
		Candidates: []types.ScoredCandidate{
			{Web: &echoWeb, Source: types.SourceWeb, Strategy: types.StrategyVector, Raw: 0.95},
			{Web: &sweetWeb, Source: types.SourceWeb, Strategy: types.StrategyVector, Raw: 0.75},
		},
		Path: types.PathWeighted,
	}

	synthHandler := jsonChatHandler(`{"title":"a suggestion","body":"some synthesized body text.","reasoning":"offers a fresh angle"}`)
	c := newLLMBackedController(t, synthHandler, routed)

	resp := c.Analyze(context.Background(), Request{Context: "some long enough browsing context", App: "chrome"})
	if len(resp.Suggestions) != 2 {
		t.Fatalf("expected both candidates surfaced, got %d: %+v", len(resp.Suggestions), resp.Suggestions)
	}

	if resp.Suggestions[0].SourceURL != sweetWeb.URL {
		t.Errorf("expected the sweet-spot candidate ranked first, got %+v", resp.Suggestions[0])
	}

	var echoSuggestion *types.Suggestion
	for i := range resp.Suggestions {
		if resp.Suggestions[i].SourceURL == echoWeb.URL {
			echoSuggestion = &resp.Suggestions[i]
		}
	}
	if echoSuggestion == nil {
		t.Fatal("expected the echo candidate to still be present, just suppressed in rank and novelty")
	}
	if echoSuggestion.NoveltyScore != 0.2 {
		t.Errorf("echo candidate noveltyScore = %v, want 0.2 (echo-chamber band)", echoSuggestion.NoveltyScore)
	}
}

func TestResolveCurrentURLSkipsChromeScheme(t *testing.T) {
	c := newTestController(t, websearch.NewClient("http://unused", time.Second, nil))
	in := "some context\nCURRENT_URL: chrome://settings\nmore context"
	out := c.resolveCurrentURL(context.Background(), in)
	if out != in {
		t.Errorf("expected chrome:// URLs to be left unresolved, got %q", out)
	}
}

func TestResolveCurrentURLSkipsAboutScheme(t *testing.T) {
	c := newTestController(t, websearch.NewClient("http://unused", time.Second, nil))
	in := "CURRENT_URL: about://blank"
	out := c.resolveCurrentURL(context.Background(), in)
	if out != in {
		t.Errorf("expected about:// URLs to be left unresolved, got %q", out)
	}
}

func TestResolveCurrentURLReturnsOriginalWhenNoMarker(t *testing.T) {
	c := newTestController(t, websearch.NewClient("http://unused", time.Second, nil))
	in := "plain context with no marker at all"
	out := c.resolveCurrentURL(context.Background(), in)
	if out != in {
		t.Errorf("expected unmodified context, got %q", out)
	}
}

func TestResolveCurrentURLFetchesPageContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>Example</title></head><body><p>This is a much longer fetched paragraph of page text, well past the minimum length.</p></body></html>`))
	}))
	defer srv.Close()

	c := newTestController(t, websearch.NewClient(srv.URL, 5*time.Second, nil))
	in := "CURRENT_URL: " + srv.URL + "\nrest of context"

	out := c.resolveCurrentURL(context.Background(), in)
	if out == in {
		t.Fatal("expected context to be replaced with fetched page content")
	}
	if !strings.Contains(out, "much longer fetched paragraph") {
		t.Errorf("expected fetched text in resolved context, got %q", out)
	}
}

func TestResolveCurrentURLFallsBackOnFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestController(t, websearch.NewClient(srv.URL, 5*time.Second, nil))
	in := "CURRENT_URL: " + srv.URL
	out := c.resolveCurrentURL(context.Background(), in)
	if out != in {
		t.Errorf("expected original context on fetch failure, got %q", out)
	}
}

func TestFilterRedundantWebDropsMatchingTitle(t *testing.T) {
	webMatch := types.SearchResult{Title: "Understanding Kubernetes Networking"}
	webDistinct := types.SearchResult{Title: "A Guide to Sourdough Baking"}
	mem := types.Memory{ID: "m1", Content: "kubernetes notes"}

	candidates := []types.ScoredCandidate{
		{Web: &webMatch, Source: types.SourceWeb},
		{Web: &webDistinct, Source: types.SourceWeb},
		{Memory: &mem, Source: types.SourceLocal},
	}

	out := filterRedundantWeb(candidates, "Kubernetes Networking")
	if len(out) != 2 {
		t.Fatalf("expected 2 surviving candidates, got %d", len(out))
	}
	for _, c := range out {
		if c.Web != nil && c.Web.Title == webMatch.Title {
			t.Error("expected the redundant web candidate to be dropped")
		}
	}
}

func TestFilterRedundantWebPassesThroughWhenSubjectEmpty(t *testing.T) {
	web := types.SearchResult{Title: "Anything"}
	candidates := []types.ScoredCandidate{{Web: &web, Source: types.SourceWeb}}

	out := filterRedundantWeb(candidates, "   ")
	if len(out) != 1 {
		t.Fatalf("expected candidates unchanged when main subject is blank, got %d", len(out))
	}
}

func TestNewRequestIDIsEightCharsAndVaries(t *testing.T) {
	a := newRequestID()
	b := newRequestID()
	if len(a) != 8 {
		t.Errorf("expected an 8-char request id, got %q (len %d)", a, len(a))
	}
	if a == b {
		t.Error("expected distinct request ids across calls")
	}
}

func TestFirstNStringsTruncates(t *testing.T) {
	out := firstNStrings([]string{"a", "b", "c", "d"}, 2)
	if len(out) != 2 || out[0] != "a" || out[1] != "b" {
		t.Errorf("firstNStrings = %v", out)
	}
}

func TestFirstNStringsShorterThanN(t *testing.T) {
	out := firstNStrings([]string{"a"}, 3)
	if len(out) != 1 {
		t.Errorf("firstNStrings = %v, want unchanged slice", out)
	}
}

func TestFirstNCandidatesTruncates(t *testing.T) {
	mem := types.Memory{ID: "m1"}
	candidates := []types.ScoredCandidate{{Memory: &mem}, {Memory: &mem}, {Memory: &mem}}
	out := firstNCandidates(candidates, 2)
	if len(out) != 2 {
		t.Errorf("firstNCandidates len = %d, want 2", len(out))
	}
}

func TestLastAccessedOfReturnsNilForWebCandidate(t *testing.T) {
	web := types.SearchResult{Title: "t"}
	c := types.ScoredCandidate{Web: &web}
	if lastAccessedOf(c) != nil {
		t.Error("expected nil last-accessed time for a web candidate")
	}
}

func TestLastAccessedOfReturnsMemoryTimestamp(t *testing.T) {
	ts := time.Now()
	mem := types.Memory{ID: "m1", LastAccessedAt: &ts}
	c := types.ScoredCandidate{Memory: &mem}
	got := lastAccessedOf(c)
	if got == nil || !got.Equal(ts) {
		t.Errorf("expected last-accessed timestamp to be carried through, got %v", got)
	}
}

func TestTruncateRespectsRuneBoundaries(t *testing.T) {
	if got := truncate("hello world", 5); got != "hello" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate should leave short strings unchanged, got %q", got)
	}
}
