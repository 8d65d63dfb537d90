// Package router implements CascadeRouter: the three retrieval-routing
// modes that turn a judged context into a ranked candidate pool. The
// parallel dispatch-and-join style follows internal/llm/manager.go's
// goroutine-per-branch pattern; the doughnut scoring used by the legacy
// graph pivot follows goblincore's scoring.go style via the scorer
// package.
package router

import (
	"context"
	"log"
	"math"
	"sort"
	"strings"
	"sync"

	"tangent/internal/embedclient"
	"tangent/internal/memorystore"
	"tangent/internal/orthogonal"
	"tangent/internal/types"
	"tangent/internal/vectormath"
	"tangent/internal/websearch"
)

const totalBudget = 10

// Router dispatches the three routing modes over the shared
// collaborators: the memory store, the web-search index, the embedder,
// and the orthogonal searcher.
type Router struct {
	memory     *memorystore.Store
	search     *websearch.Client
	embedder   *embedclient.Embedder
	orthogonal *orthogonal.Searcher

	localMemoryPoolSize int
	maxAnchors          int
}

// New creates a CascadeRouter bound to its collaborators.
func New(memory *memorystore.Store, search *websearch.Client, embedder *embedclient.Embedder, orth *orthogonal.Searcher, localMemoryPoolSize, maxAnchors int) *Router {
	if localMemoryPoolSize <= 0 {
		localMemoryPoolSize = 20
	}
	if maxAnchors <= 0 {
		maxAnchors = 5
	}
	return &Router{memory: memory, search: search, embedder: embedder, orthogonal: orth, localMemoryPoolSize: localMemoryPoolSize, maxAnchors: maxAnchors}
}

// branchOutcome carries one dispatch branch's candidates plus, for the
// orthogonal branch, its provenance metadata.
type branchOutcome struct {
	candidates []types.ScoredCandidate
	orthMeta   *types.OrthogonalMeta
}

// RouteWeighted is route_weighted: the only mode exercised by /analyze.
// The judge's weights govern dispatch budget and score boosts, never
// gating — every strategy can still contribute.
func (r *Router) RouteWeighted(ctx context.Context, query, contextText string, weights types.StrategyWeights, containerTag string, vibe types.VibeProfile, sourceDomain string, maxSuggestions int) types.CascadeResult {
	limitWeb := budgetFor(weights.SourceWeb, totalBudget)
	limitLocal := budgetFor(weights.SourceLocal, totalBudget)

	var wg sync.WaitGroup
	outcomes := make(chan branchOutcome, 3)

	if weights.Serendipity > 0.2 {
		orthBudget := limitWeb + limitLocal
		if orthBudget > 3 {
			orthBudget = 3
		}
		if orthBudget < 1 {
			orthBudget = 1
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes <- r.runOrthogonalBranch(ctx, query, contextText, weights, vibe, sourceDomain, orthBudget)
		}()
	}
	if limitLocal > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes <- r.runLocalBranch(ctx, query, containerTag, weights, limitLocal)
		}()
	}
	if limitWeb > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes <- r.runWebBranch(ctx, query, weights, limitWeb)
		}()
	}

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	var pool []types.ScoredCandidate
	var orthMeta *types.OrthogonalMeta
	for o := range outcomes {
		pool = append(pool, o.candidates...)
		if o.orthMeta != nil {
			orthMeta = o.orthMeta
		}
	}

	for i := range pool {
		pool[i].Adjusted = adjustedScore(pool[i], weights)
	}

	deduped := dedupeByFingerprint(pool)
	sort.Slice(deduped, func(i, j int) bool { return deduped[i].Adjusted > deduped[j].Adjusted })
	if maxSuggestions > 0 && len(deduped) > maxSuggestions {
		deduped = deduped[:maxSuggestions]
	}

	return types.CascadeResult{
		Candidates: deduped,
		Path:       types.PathWeighted,
		Confidence: confidenceFromAdjusted(deduped),
		Orthogonal: orthMeta,
		Vibe:       vibePtr(vibe),
	}
}

func (r *Router) runOrthogonalBranch(ctx context.Context, query, contextText string, weights types.StrategyWeights, vibe types.VibeProfile, sourceDomain string, budget int) branchOutcome {
	sigma := 1.5 * weights.Serendipity
	if sigma > 1 {
		sigma = 1
	}

	memories := r.fetchLocalMemoryEmbeddings(ctx)
	results := r.orthogonal.SearchAllStrategies(ctx, query, contextText, sigma, vibe, memories, sourceDomain)
	combined, meta := orthogonal.CombineResults(results, budget)

	candidates := make([]types.ScoredCandidate, 0, len(combined))
	for _, item := range combined {
		web := item
		candidates = append(candidates, types.ScoredCandidate{
			Web:      &web,
			Source:   types.SourceWeb,
			Strategy: types.StrategyOrthogonal,
			Raw:      item.Score,
		})
	}
	return branchOutcome{candidates: candidates, orthMeta: &meta}
}

func (r *Router) runLocalBranch(ctx context.Context, query, containerTag string, weights types.StrategyWeights, budget int) branchOutcome {
	// A blank query skips embedding: the store answers it with its
	// most-recently-accessed memories.
	var queryEmbedding []float32
	if strings.TrimSpace(query) != "" {
		emb, err := r.embedder.Embed(ctx, query)
		if err != nil {
			log.Printf("[router] warning: local branch embed failed: %v", err)
			return branchOutcome{}
		}
		queryEmbedding = emb
	}

	memories, err := r.memory.Search(ctx, memorystore.Query{Text: query, ContainerTag: containerTag, Limit: budget}, queryEmbedding)
	if err != nil {
		log.Printf("[router] warning: local branch search failed: %v", err)
		return branchOutcome{}
	}

	candidates := make([]types.ScoredCandidate, 0, len(memories))
	for _, m := range memories {
		mem := m
		candidates = append(candidates, types.ScoredCandidate{
			Memory:   &mem,
			Source:   types.SourceLocal,
			Strategy: types.StrategyVector,
			Raw:      mem.Similarity,
		})
	}
	return branchOutcome{candidates: candidates}
}

func (r *Router) runWebBranch(ctx context.Context, query string, weights types.StrategyWeights, budget int) branchOutcome {
	results, err := r.search.Search(ctx, query, budget)
	if err != nil {
		log.Printf("[router] warning: web branch search failed: %v", err)
		return branchOutcome{}
	}

	candidates := make([]types.ScoredCandidate, 0, len(results))
	for _, res := range results {
		web := res
		candidates = append(candidates, types.ScoredCandidate{
			Web:      &web,
			Source:   types.SourceWeb,
			Strategy: types.StrategyVector,
			Raw:      res.Score,
		})
	}
	return branchOutcome{candidates: candidates}
}

// fetchLocalMemoryEmbeddings pulls a pool of recent local memories and
// batch-embeds their content once, for the orthogonal searcher's
// PCA/antonym/bridge strategies. Any failure degrades to an empty pool,
// which simply disables strategies 4-6 for this request.
func (r *Router) fetchLocalMemoryEmbeddings(ctx context.Context) []vectormath.LabeledEmbedding {
	memories, err := r.memory.Search(ctx, memorystore.Query{Limit: r.localMemoryPoolSize}, nil)
	if err != nil || len(memories) == 0 {
		return nil
	}

	texts := make([]string, len(memories))
	for i, m := range memories {
		texts[i] = m.Content
	}
	embeddings, err := r.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil
	}

	out := make([]vectormath.LabeledEmbedding, 0, len(memories))
	for i, m := range memories {
		if embeddings[i] == nil {
			continue
		}
		out = append(out, vectormath.LabeledEmbedding{Label: m.FingerprintKey(), Embedding: embeddings[i]})
	}
	return out
}

// adjustedScore applies the source-match and strategy-match boosts to a
// candidate's raw score.
func adjustedScore(c types.ScoredCandidate, weights types.StrategyWeights) float64 {
	adjusted := c.Raw
	if c.Source == types.SourceWeb {
		adjusted *= 1 + weights.SourceWeb
	} else {
		adjusted *= 1 + weights.SourceLocal
	}
	if c.Strategy == types.StrategyOrthogonal {
		adjusted *= 1 + 2*weights.Serendipity
	} else {
		adjusted *= 1 + weights.Relevance
	}
	return adjusted
}

// dedupeByFingerprint keeps the higher-adjusted-score candidate for any
// repeated content fingerprint (first 100 chars for memories, URL for
// web).
func dedupeByFingerprint(candidates []types.ScoredCandidate) []types.ScoredCandidate {
	best := make(map[string]types.ScoredCandidate, len(candidates))
	order := make([]string, 0, len(candidates))
	for _, c := range candidates {
		key := c.FingerprintKey()
		if key == "" {
			key = strings.Join([]string{"anon", c.FingerprintKey()}, ":")
		}
		existing, ok := best[key]
		if !ok {
			order = append(order, key)
			best[key] = c
			continue
		}
		if c.Adjusted > existing.Adjusted {
			best[key] = c
		}
	}
	out := make([]types.ScoredCandidate, 0, len(order))
	for _, key := range order {
		out = append(out, best[key])
	}
	return out
}

// confidenceFromAdjusted grades confidence off the average adjusted
// score of the returned slice: >1.5 high, >1.0 medium, else low.
func confidenceFromAdjusted(candidates []types.ScoredCandidate) types.Confidence {
	if len(candidates) == 0 {
		return types.ConfidenceLow
	}
	sum := 0.0
	for _, c := range candidates {
		sum += c.Adjusted
	}
	avg := sum / float64(len(candidates))
	switch {
	case avg > 1.5:
		return types.ConfidenceHigh
	case avg > 1.0:
		return types.ConfidenceMedium
	default:
		return types.ConfidenceLow
	}
}

func budgetFor(weight float64, total int) int {
	if weight <= 0.1 {
		return 0
	}
	limit := int(math.Floor(float64(total) * weight))
	if limit < 1 {
		limit = 1
	}
	return limit
}

func vibePtr(v types.VibeProfile) *types.VibeProfile {
	if v.Empty() {
		return nil
	}
	return &v
}
