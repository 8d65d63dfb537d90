// Package analyze implements AnalyzeController: the eleven-step
// pipeline that turns a raw context snapshot into ranked Suggestions.
// Orchestration style follows cmd/server/main.go's explicit wiring — no
// DI framework is introduced here, matching the rest of the codebase.
package analyze

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"tangent/internal/concept"
	"tangent/internal/decisionlog"
	"tangent/internal/judge"
	"tangent/internal/scorer"
	"tangent/internal/synth"
	"tangent/internal/types"
	"tangent/internal/websearch"
)

// Router is the routing collaborator Controller depends on — satisfied
// by *router.Router in production, and by a stub in tests that need to
// control exactly which candidates route_weighted hands back.
type Router interface {
	RouteWeighted(ctx context.Context, query, contextText string, weights types.StrategyWeights, containerTag string, vibe types.VibeProfile, sourceDomain string, maxSuggestions int) types.CascadeResult
}

const (
	currentURLMarker  = "CURRENT_URL:"
	pageContentMaxLen = 8000
	webFetchTimeout   = 15 * time.Second
)

// Request is one /analyze call's input.
type Request struct {
	Context      string
	App          string
	WindowTitle  string
	ContainerTag string
}

// Response is one /analyze call's output.
type Response struct {
	RequestID        string                `json:"requestId"`
	Suggestions      []types.Suggestion    `json:"suggestions"`
	Weights          types.StrategyWeights `json:"weights"`
	Path             types.RetrievalPath   `json:"retrievalPath,omitempty"`
	Confidence       types.Confidence      `json:"confidence,omitempty"`
	GraphInsight     bool                  `json:"graphInsight"`
	ShouldOfferWeb   bool                  `json:"shouldOfferWeb"`
	ProcessingTimeMs int64                 `json:"processingTimeMs"`
}

// Controller wires the concept extractor, context judge, router,
// synthesizer, web-search page fetcher, and decision logger into the
// full analysis pipeline.
type Controller struct {
	concepts *concept.Extractor
	judge    *judge.Judge
	router   Router
	synth    *synth.Synthesizer
	search   *websearch.Client
	log      *decisionlog.Logger

	maxSuggestions int
}

// New creates an AnalyzeController bound to its collaborators.
func New(concepts *concept.Extractor, j *judge.Judge, r Router, s *synth.Synthesizer, search *websearch.Client, log *decisionlog.Logger, maxSuggestions int) *Controller {
	if maxSuggestions <= 0 {
		maxSuggestions = 3
	}
	return &Controller{concepts: concepts, judge: j, router: r, synth: s, search: search, log: log, maxSuggestions: maxSuggestions}
}

// Analyze runs the full pipeline for one request.
func (c *Controller) Analyze(ctx context.Context, req Request) Response {
	start := time.Now()
	requestID := newRequestID()
	contextText := c.resolveCurrentURL(ctx, req.Context)

	concepts := c.concepts.ExtractConcepts(ctx, contextText, req.App)
	if len(concepts) == 0 {
		return Response{
			RequestID:        requestID,
			Path:             types.PathNone,
			Confidence:       types.ConfidenceLow,
			ProcessingTimeMs: elapsedMs(start),
		}
	}

	mainSubject := c.concepts.ExtractMainSubject(ctx, contextText)

	tangentialQuery := strings.Join(firstNStrings(concepts, 3), " ")

	weights := c.judge.Analyze(ctx, contextText, req.App, req.WindowTitle)

	vibe := c.concepts.ExtractVibe(ctx, contextText)
	result := c.router.RouteWeighted(ctx, tangentialQuery, contextText, weights, req.ContainerTag, vibe, vibe.SourceDomain, c.maxSuggestions)

	candidates := firstNCandidates(filterRedundantWeb(result.Candidates, mainSubject), 3)
	scoredCandidates := make([]scorer.Candidate, len(candidates))
	for i, cand := range candidates {
		scoredCandidates[i] = scorer.Candidate{Similarity: cand.Raw, LastAccessedAt: lastAccessedOf(cand)}
	}
	ranked := scorer.FilterAndRank(scoredCandidates, c.maxSuggestions)

	suggestions := make([]types.Suggestion, 0, len(ranked))
	for _, rk := range ranked {
		suggestion := c.synth.Synthesize(ctx, candidates[rk.Index], contextText, rk)
		suggestion.ID = uuid.New().String()
		suggestions = append(suggestions, suggestion)
	}

	suggestionIDs := make([]string, len(suggestions))
	for i, s := range suggestions {
		suggestionIDs[i] = s.ID
	}
	c.log.LogDecision(decisionlog.DecisionRecord{
		RequestID:     requestID,
		App:           req.App,
		WindowTitle:   truncate(req.WindowTitle, 100),
		Weights:       weights,
		SuggestionIDs: suggestionIDs,
		ContextLength: len(contextText),
		Path:          result.Path,
	})

	return Response{
		RequestID:        requestID,
		Suggestions:      suggestions,
		Weights:          weights,
		Path:             result.Path,
		Confidence:       result.Confidence,
		GraphInsight:     result.GraphInsight,
		ShouldOfferWeb:   result.ShouldOfferWeb,
		ProcessingTimeMs: elapsedMs(start),
	}
}

// resolveCurrentURL replaces the context with fetched page content when
// it carries a CURRENT_URL marker pointing at a fetchable page.
func (c *Controller) resolveCurrentURL(ctx context.Context, contextText string) string {
	idx := strings.Index(contextText, currentURLMarker)
	if idx == -1 {
		return contextText
	}

	rest := strings.TrimSpace(contextText[idx+len(currentURLMarker):])
	urlEnd := strings.IndexAny(rest, "\n ")
	url := rest
	if urlEnd != -1 {
		url = rest[:urlEnd]
	}
	url = strings.TrimSpace(url)

	if url == "" || strings.HasPrefix(url, "chrome://") || strings.HasPrefix(url, "about://") {
		return contextText
	}

	fetchCtx, cancel := context.WithTimeout(ctx, webFetchTimeout)
	defer cancel()

	pages := c.search.GetContents(fetchCtx, []string{url})
	if len(pages) == 0 || pages[0].Err != nil {
		return contextText
	}
	page := pages[0]

	return fmt.Sprintf("Page Title: %s\nURL: %s\n\nContent:\n%s", page.Title, page.URL, truncate(page.Text, pageContentMaxLen))
}

func elapsedMs(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}

func newRequestID() string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	return id[:8]
}

func firstNStrings(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func firstNCandidates(items []types.ScoredCandidate, n int) []types.ScoredCandidate {
	if len(items) > n {
		return items[:n]
	}
	return items
}

// filterRedundantWeb drops web candidates whose title already names the
// main subject verbatim — surfacing them would be redundant with what
// the user is already looking at. Local memories and non-matching web
// items pass through unchanged.
func filterRedundantWeb(candidates []types.ScoredCandidate, mainSubject string) []types.ScoredCandidate {
	if strings.TrimSpace(mainSubject) == "" {
		return candidates
	}
	subject := strings.ToLower(mainSubject)

	out := make([]types.ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Web != nil && strings.Contains(strings.ToLower(c.Web.Title), subject) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func lastAccessedOf(c types.ScoredCandidate) *time.Time {
	if c.Memory != nil {
		return c.Memory.LastAccessedAt
	}
	return nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
