package router

import (
	"context"
	"log"
	"sort"
	"sync"

	"tangent/internal/memorystore"
	"tangent/internal/orthogonal"
	"tangent/internal/scorer"
	"tangent/internal/types"
)

// Route implements the legacy sequential cascade (route). No HTTP
// endpoint calls it — /analyze always calls RouteWeighted, and the
// diagnostic /test-orthogonal endpoint calls RouteOrthogonalOnly.
func (r *Router) Route(ctx context.Context, query, contextText, containerTag string, orthogonalEnabled, forceWeb bool, maxSuggestions int) types.CascadeResult {
	if orthogonalEnabled {
		memories := r.fetchLocalMemoryEmbeddings(ctx)
		results := r.orthogonal.SearchAllStrategies(ctx, query, contextText, 0.3, types.VibeProfile{}, memories, "")
		combined, meta := orthogonal.CombineResults(results, maxSuggestions)
		if len(combined) > 0 {
			orthCandidates := webResultsToCandidates(combined, types.StrategyOrthogonal)

			graphCandidates, graphInsight := r.graphPivot(ctx, query, containerTag, r.maxAnchors, maxSuggestions)
			if len(graphCandidates) > 0 {
				merged := append(firstN(orthCandidates, 2), firstN(graphCandidates, 2)...)
				return types.CascadeResult{
					Candidates:   merged,
					Path:         types.PathOrthogonal,
					Confidence:   types.ConfidenceHigh,
					GraphInsight: graphInsight,
					Orthogonal:   &meta,
				}
			}
			return types.CascadeResult{
				Candidates: orthCandidates,
				Path:       types.PathOrthogonal,
				Confidence: types.ConfidenceMedium,
				Orthogonal: &meta,
			}
		}
	}

	graphCandidates, graphInsight := r.graphPivot(ctx, query, containerTag, r.maxAnchors, maxSuggestions)
	if len(graphCandidates) > 0 {
		path := types.PathGraph
		if forceWeb {
			path = types.PathGraphWeb
			web, err := r.search.Search(ctx, query, 5)
			if err == nil {
				graphCandidates = append(graphCandidates, webResultsToCandidates(web, types.StrategyVector)...)
			}
		}
		return types.CascadeResult{
			Candidates:   graphCandidates,
			Path:         path,
			Confidence:   types.ConfidenceHigh,
			GraphInsight: graphInsight,
		}
	}

	queryEmbedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		log.Printf("[router] warning: legacy vector step embed failed: %v", err)
		return r.plainWebFallback(ctx, query, nil, types.PathWeb)
	}

	memories, err := r.memory.Search(ctx, memorystore.Query{Text: query, ContainerTag: containerTag, Limit: 5}, queryEmbedding)
	if err != nil {
		log.Printf("[router] warning: legacy vector step search failed: %v", err)
		memories = nil
	}

	avgTop3 := averageTopSimilarity(memories, 3)
	vectorCandidates := memoriesToCandidates(memories)

	switch {
	case avgTop3 > 0.85:
		return types.CascadeResult{Candidates: vectorCandidates, Path: types.PathVector, Confidence: types.ConfidenceHigh}
	case avgTop3 >= 0.65:
		return types.CascadeResult{Candidates: vectorCandidates, Path: types.PathVector, Confidence: types.ConfidenceMedium, ShouldOfferWeb: true}
	default:
		return r.plainWebFallback(ctx, query, vectorCandidates, types.PathVectorWeb)
	}
}

// plainWebFallback issues a plain 5-result web query and, if partial
// vector results exist, concatenates them under a "+web" path.
func (r *Router) plainWebFallback(ctx context.Context, query string, partial []types.ScoredCandidate, path types.RetrievalPath) types.CascadeResult {
	web, err := r.search.Search(ctx, query, 5)
	if err != nil {
		log.Printf("[router] warning: legacy web step failed: %v", err)
		if len(partial) == 0 {
			return types.CascadeResult{Path: types.PathNone, Confidence: types.ConfidenceLow}
		}
		return types.CascadeResult{Candidates: partial, Path: types.PathVector, Confidence: types.ConfidenceLow}
	}
	webCandidates := webResultsToCandidates(web, types.StrategyVector)
	if len(partial) == 0 {
		return types.CascadeResult{Candidates: webCandidates, Path: types.PathWeb, Confidence: types.ConfidenceLow}
	}
	return types.CascadeResult{Candidates: append(partial, webCandidates...), Path: path, Confidence: types.ConfidenceLow}
}

// RouteOrthogonalOnly invokes only the orthogonal searcher; on an empty
// result it falls back to a plain web search at low confidence. Kept
// for, and exercised only by, the diagnostic endpoints.
func (r *Router) RouteOrthogonalOnly(ctx context.Context, query, contextText string, vibe types.VibeProfile, sourceDomain string, maxSuggestions int) types.CascadeResult {
	memories := r.fetchLocalMemoryEmbeddings(ctx)
	results := r.orthogonal.SearchAllStrategies(ctx, query, contextText, 0.5, vibe, memories, sourceDomain)
	combined, meta := orthogonal.CombineResults(results, maxSuggestions)
	if len(combined) == 0 {
		web, err := r.search.Search(ctx, query, 5)
		if err != nil {
			return types.CascadeResult{Path: types.PathNone, Confidence: types.ConfidenceLow}
		}
		return types.CascadeResult{Candidates: webResultsToCandidates(web, types.StrategyVector), Path: types.PathWeb, Confidence: types.ConfidenceLow}
	}
	return types.CascadeResult{
		Candidates: webResultsToCandidates(combined, types.StrategyOrthogonal),
		Path:       types.PathOrthogonal,
		Confidence: types.ConfidenceMedium,
		Orthogonal: &meta,
	}
}

const (
	legacyEchoThreshold  = 0.85
	legacySweetThreshold = 0.65
)

// graphPivot partitions anchors by similarity into echo/sweet/distant,
// fetches relationship neighbors for top echo and non-empty sweet
// anchors in parallel, forms the candidate pool from sweet anchors plus
// their neighbors (echo anchors themselves are excluded — the
// echo-chamber filter), dedupes by id, and scores with the doughnut
// model.
func (r *Router) graphPivot(ctx context.Context, query, containerTag string, maxAnchors, maxSuggestions int) ([]types.ScoredCandidate, bool) {
	queryEmbedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		log.Printf("[router] warning: graph pivot embed failed: %v", err)
		return nil, false
	}

	anchors, err := r.memory.Search(ctx, memorystore.Query{Text: query, ContainerTag: containerTag, Limit: maxAnchors, IncludeRelated: true}, queryEmbedding)
	if err != nil || len(anchors) == 0 {
		return nil, false
	}

	echo, sweet := partitionAnchors(anchors)

	allowedKinds := []types.EdgeKind{types.EdgeDerives, types.EdgeExtends, types.EdgeContrast}

	var wg sync.WaitGroup
	var mu sync.Mutex
	pool := make(map[string]types.Memory)

	fetchNeighbors := func(anchorID string) {
		defer wg.Done()
		neighbors, err := r.memory.GetRelated(ctx, anchorID, allowedKinds)
		if err != nil {
			return
		}
		mu.Lock()
		for _, n := range neighbors {
			pool[n.ID] = n
		}
		mu.Unlock()
	}

	for _, a := range echo {
		wg.Add(1)
		go fetchNeighbors(a.ID)
	}
	for _, a := range sweet {
		mu.Lock()
		pool[a.ID] = a
		mu.Unlock()
		if len(a.Edges) == 0 {
			continue
		}
		wg.Add(1)
		go fetchNeighbors(a.ID)
	}
	wg.Wait()

	if len(pool) == 0 {
		return nil, false
	}
	return buildGraphCandidates(pool, maxSuggestions), true
}

// partitionAnchors buckets direct-search anchors into the doughnut's
// echo and sweet-spot bands (distant anchors are dropped outright — they
// carry no graph-pivot signal), capping echo at 3 anchors. Anchors
// themselves never become candidates; only sweet anchors and everyone's
// relationship neighbors do, which is what keeps an echo anchor's own
// near-duplicate content out of the final candidate pool even though its
// neighbors still inform it.
func partitionAnchors(anchors []types.Memory) (echo, sweet []types.Memory) {
	for _, a := range anchors {
		switch {
		case a.Similarity >= legacyEchoThreshold:
			echo = append(echo, a)
		case a.Similarity >= legacySweetThreshold:
			sweet = append(sweet, a)
		}
	}
	if len(echo) > 3 {
		echo = echo[:3]
	}
	return echo, sweet
}

// buildGraphCandidates orders a neighbor pool deterministically by id,
// scores it with the doughnut model, and returns the top maxSuggestions
// as graph-strategy candidates.
func buildGraphCandidates(pool map[string]types.Memory, maxSuggestions int) []types.ScoredCandidate {
	ordered := make([]types.Memory, 0, len(pool))
	for _, m := range pool {
		ordered = append(ordered, m)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	candidates := make([]scorer.Candidate, len(ordered))
	for i, m := range ordered {
		candidates[i] = scorer.Candidate{Similarity: m.Similarity, LastAccessedAt: m.LastAccessedAt}
	}
	ranked := scorer.FilterAndRank(candidates, maxSuggestions)

	out := make([]types.ScoredCandidate, 0, len(ranked))
	for _, s := range ranked {
		mem := ordered[s.Index]
		out = append(out, types.ScoredCandidate{
			Memory:   &mem,
			Source:   types.SourceLocal,
			Strategy: types.StrategyGraph,
			Raw:      s.FinalScore,
			Adjusted: s.FinalScore,
		})
	}
	return out
}

func averageTopSimilarity(memories []types.Memory, n int) float64 {
	if len(memories) == 0 {
		return 0
	}
	if len(memories) > n {
		memories = memories[:n]
	}
	sum := 0.0
	for _, m := range memories {
		sum += m.Similarity
	}
	return sum / float64(len(memories))
}

func memoriesToCandidates(memories []types.Memory) []types.ScoredCandidate {
	out := make([]types.ScoredCandidate, 0, len(memories))
	for _, m := range memories {
		mem := m
		out = append(out, types.ScoredCandidate{
			Memory:   &mem,
			Source:   types.SourceLocal,
			Strategy: types.StrategyVector,
			Raw:      mem.Similarity,
			Adjusted: mem.Similarity,
		})
	}
	return out
}

func webResultsToCandidates(results []types.SearchResult, strategy types.StrategyTag) []types.ScoredCandidate {
	out := make([]types.ScoredCandidate, 0, len(results))
	for _, res := range results {
		r := res
		out = append(out, types.ScoredCandidate{
			Web:      &r,
			Source:   types.SourceWeb,
			Strategy: strategy,
			Raw:      r.Score,
			Adjusted: r.Score,
		})
	}
	return out
}

func firstN(candidates []types.ScoredCandidate, n int) []types.ScoredCandidate {
	if len(candidates) > n {
		return candidates[:n]
	}
	return candidates
}
