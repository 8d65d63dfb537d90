// Package orthogonal implements OrthogonalSearcher: six independent
// tangential-retrieval strategies plus the fan-out/combine harness that
// runs them concurrently. The LLM-call shape follows internal/memory/
// tagger.go, the web dispatch follows internal/tools/searxng_client.go,
// and the goroutine-per-strategy, channel-collect concurrency style
// follows internal/llm/manager.go's dispatch loop, using plain
// goroutines + sync.WaitGroup rather than errgroup.
package orthogonal

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"tangent/internal/concept"
	"tangent/internal/embedclient"
	"tangent/internal/llmclient"
	"tangent/internal/types"
	"tangent/internal/vectormath"
	"tangent/internal/websearch"
)

// Config holds the tunables every strategy needs, following the
// repo-wide pattern of a small named Config struct passed into New
// (e.g. llmclient.Config) rather than threading raw parameters through
// every constructor argument.
type Config struct {
	NoiseScale       float64
	TargetDomains    []string
	VibeTemperature  float64
	PCALambda        float64
	PCAMinMemories   int
	PCANumComponents int
	AntonymAlpha     float64
	AntonymTargetVibes []string
	RerankPoolSize   int
	RerankTopK       int
}

// Result is one strategy's output: the items it surfaced, the query it
// actually issued, and provenance for the response's OrthogonalMeta.
type Result struct {
	Strategy       types.StrategyTag
	Items          []types.SearchResult
	Query          string
	SubtractedTags []string
	TargetVibe     string
	TargetDomain   string
}

// Searcher runs the six orthogonal strategies.
type Searcher struct {
	llm      *llmclient.Client
	llmURL   string
	model    string
	embedder *embedclient.Embedder
	search   *websearch.Client
	bridges  *vectormath.BridgeTable
	concepts *concept.Extractor
	cfg      Config
}

// New creates an OrthogonalSearcher bound to its collaborators.
func New(llm *llmclient.Client, llmURL, model string, embedder *embedclient.Embedder, search *websearch.Client, bridges *vectormath.BridgeTable, concepts *concept.Extractor, cfg Config) *Searcher {
	if cfg.RerankPoolSize <= 0 {
		cfg.RerankPoolSize = 50
	}
	if cfg.RerankTopK <= 0 {
		cfg.RerankTopK = 5
	}
	return &Searcher{llm: llm, llmURL: llmURL, model: model, embedder: embedder, search: search, bridges: bridges, concepts: concepts, cfg: cfg}
}

// SearchAllStrategies dispatches strategies 1-3 always, and 4-6 when a
// sufficient user-memory set is available (at least PCAMinMemories). All
// strategies run concurrently; a failed strategy yields no items and
// never aborts the others.
func (s *Searcher) SearchAllStrategies(ctx context.Context, query, contextText string, sigma float64, vibe types.VibeProfile, memories []vectormath.LabeledEmbedding, sourceDomain string) []Result {
	var wg sync.WaitGroup
	resultsCh := make(chan Result, 6)

	runs := []func(){
		func() { s.runNoiseInjection(ctx, query, sigma, resultsCh) },
		func() { s.runArchetypeBridge(ctx, contextText, vibe, sourceDomain, resultsCh) },
		func() { s.runCrossDomainVibe(ctx, vibe, resultsCh) },
	}
	if len(memories) >= s.cfg.PCAMinMemories {
		runs = append(runs,
			func() { s.runPCASearch(ctx, memories, vibe, resultsCh) },
			func() { s.runAntonymSearch(ctx, memories, contextText, resultsCh) },
			func() { s.runBridgeSearch(ctx, vibe, sourceDomain, resultsCh) },
		)
	}

	for _, run := range runs {
		wg.Add(1)
		go func(fn func()) {
			defer wg.Done()
			fn()
		}(run)
	}
	wg.Wait()
	close(resultsCh)

	out := make([]Result, 0, len(runs))
	for r := range resultsCh {
		out = append(out, r)
	}
	return out
}

// runNoiseInjection asks the LLM to rephrase the query to land in a
// related but different semantic cluster, with deviation and LLM
// temperature scaling with sigma. Falls back to the original query.
func (s *Searcher) runNoiseInjection(ctx context.Context, query string, sigma float64, out chan<- Result) {
	deviation := "slightly rephrase with a different angle"
	switch {
	case sigma >= 0.6:
		deviation = "take an unexpected lateral leap"
	case sigma >= 0.3:
		deviation = "shift to a related but distinct concept"
	}

	prompt := fmt.Sprintf(`Original query: %q

Rephrase this query so it would land in a related but different semantic cluster of search results. Deviation instruction: %s.

Respond with the rephrased query only, nothing else.`, query, deviation)

	messages := []llmclient.ChatMessage{
		{Role: "system", Content: "You rephrase search queries to explore adjacent semantic territory."},
		{Role: "user", Content: prompt},
	}

	rephrased := query
	body, err := s.llm.Call(ctx, s.llmURL, llmclient.BuildChatPayload(s.model, messages, sigma))
	if err == nil {
		if content, perr := llmclient.ParseChatContent(body); perr == nil {
			if trimmed := strings.TrimSpace(llmclient.StripJSONFence(content)); trimmed != "" {
				rephrased = trimmed
			}
		}
	}

	items, _ := s.search.Search(ctx, rephrased, s.cfg.RerankTopK)
	out <- Result{Strategy: types.StrategyOrthogonal, Items: items, Query: rephrased}
}

// runArchetypeBridge picks a target domain different from the source,
// asks the LLM to synthesize a query for that domain satisfying the
// vibe's archetype, and issues it.
func (s *Searcher) runArchetypeBridge(ctx context.Context, contextText string, vibe types.VibeProfile, sourceDomain string, out chan<- Result) {
	if vibe.Empty() {
		vibe = s.concepts.ExtractVibe(ctx, contextText)
	}

	target := pickTargetDomain(s.cfg.TargetDomains, sourceDomain)
	if target == "" {
		out <- Result{Strategy: types.StrategyOrthogonal}
		return
	}

	prompt := fmt.Sprintf(`Archetype: %s
Target domain: %s

Synthesize a short search query *for this target domain* that would satisfy someone matching this archetype. Respond with the query only.`, vibe.Archetype, target)

	messages := []llmclient.ChatMessage{
		{Role: "system", Content: "You translate an aesthetic archetype into a concrete search query for a new domain."},
		{Role: "user", Content: prompt},
	}

	body, err := s.llm.Call(ctx, s.llmURL, llmclient.BuildChatPayload(s.model, messages, s.cfg.VibeTemperature))
	if err != nil {
		out <- Result{Strategy: types.StrategyOrthogonal, TargetDomain: target}
		return
	}
	content, err := llmclient.ParseChatContent(body)
	if err != nil {
		out <- Result{Strategy: types.StrategyOrthogonal, TargetDomain: target}
		return
	}
	query := strings.TrimSpace(llmclient.StripJSONFence(content))
	if query == "" {
		out <- Result{Strategy: types.StrategyOrthogonal, TargetDomain: target}
		return
	}

	items, _ := s.search.Search(ctx, query, s.cfg.RerankTopK)
	out <- Result{Strategy: types.StrategyOrthogonal, Items: items, Query: query, TargetVibe: vibe.Archetype, TargetDomain: target}
}

// runCrossDomainVibe issues one of the vibe's cross-domain interests
// verbatim as a query, chosen at random. Empty if there are none.
func (s *Searcher) runCrossDomainVibe(ctx context.Context, vibe types.VibeProfile, out chan<- Result) {
	if len(vibe.CrossDomainInterests) == 0 {
		out <- Result{Strategy: types.StrategyOrthogonal}
		return
	}
	query := vibe.CrossDomainInterests[rand.Intn(len(vibe.CrossDomainInterests))]
	items, _ := s.search.Search(ctx, query, s.cfg.RerankTopK)
	out <- Result{Strategy: types.StrategyOrthogonal, Items: items, Query: query}
}

// runPCASearch subtracts the user's dominant taste directions from
// their centroid, describes what the residual "feels like", issues a
// broad search for that description, then reranks the broad pool
// against the math vector.
func (s *Searcher) runPCASearch(ctx context.Context, memories []vectormath.LabeledEmbedding, vibe types.VibeProfile, out chan<- Result) {
	pca := vectormath.SubtractPrincipalComponents(memories, s.cfg.PCANumComponents, s.cfg.PCALambda, s.cfg.PCAMinMemories)
	if pca.Vector == nil {
		out <- Result{Strategy: types.StrategyPCA}
		return
	}

	prompt := fmt.Sprintf(`Archetype: %s
Subtracted taste directions (from): %s

Given a residual interest vector with these dominant tastes removed, describe in one short phrase what kind of content it might point toward. Respond with the phrase only.`, vibe.Archetype, strings.Join(pca.SubtractedTags, ", "))

	messages := []llmclient.ChatMessage{
		{Role: "system", Content: "You describe a residual taste direction in a short, concrete search phrase."},
		{Role: "user", Content: prompt},
	}

	body, err := s.llm.Call(ctx, s.llmURL, llmclient.BuildChatPayload(s.model, messages, s.cfg.VibeTemperature))
	if err != nil {
		out <- Result{Strategy: types.StrategyPCA, SubtractedTags: pca.SubtractedTags}
		return
	}
	content, err := llmclient.ParseChatContent(body)
	if err != nil {
		out <- Result{Strategy: types.StrategyPCA, SubtractedTags: pca.SubtractedTags}
		return
	}
	query := strings.TrimSpace(llmclient.StripJSONFence(content))
	if query == "" {
		out <- Result{Strategy: types.StrategyPCA, SubtractedTags: pca.SubtractedTags}
		return
	}

	items := s.rerankedSearch(ctx, query, pca.Vector)
	out <- Result{Strategy: types.StrategyPCA, Items: items, Query: query, SubtractedTags: pca.SubtractedTags}
}

// runAntonymSearch computes the steering vector toward a randomly
// chosen target-vibe label, issues a broad search keyed on that label,
// then reranks against the vector.
func (s *Searcher) runAntonymSearch(ctx context.Context, memories []vectormath.LabeledEmbedding, contextText string, out chan<- Result) {
	if len(s.cfg.AntonymTargetVibes) == 0 {
		out <- Result{Strategy: types.StrategyAntonym}
		return
	}
	targetVibe := s.cfg.AntonymTargetVibes[rand.Intn(len(s.cfg.AntonymTargetVibes))]

	embeddings, err := s.embedder.EmbedBatch(ctx, []string{contextText, targetVibe})
	if err != nil || len(embeddings) < 2 {
		out <- Result{Strategy: types.StrategyAntonym, TargetVibe: targetVibe}
		return
	}
	vCtx, vTarget := embeddings[0], embeddings[1]

	taste := make([][]float32, len(memories))
	for i, m := range memories {
		taste[i] = m.Embedding
	}
	vTaste := vectormath.Mean(taste)

	steered := vectormath.AntonymSteer(vTaste, vCtx, vTarget, s.cfg.AntonymAlpha)
	items := s.rerankedSearch(ctx, targetVibe, steered)
	out <- Result{Strategy: types.StrategyAntonym, Items: items, Query: targetVibe, TargetVibe: targetVibe}
}

// runBridgeSearch computes the bridge vector for source->target domain,
// issues a broad search keyed on the target domain plus a few emotional
// signatures, and reranks against the vector.
func (s *Searcher) runBridgeSearch(ctx context.Context, vibe types.VibeProfile, sourceDomain string, out chan<- Result) {
	target := pickTargetDomain(s.cfg.TargetDomains, sourceDomain)
	if target == "" || sourceDomain == "" {
		out <- Result{Strategy: types.StrategyBridge}
		return
	}

	contentEmbedding, err := s.embedder.Embed(ctx, vibe.Archetype)
	if err != nil {
		out <- Result{Strategy: types.StrategyBridge, TargetDomain: target}
		return
	}
	bridged, ok := s.bridges.Bridge(contentEmbedding, target, sourceDomain)
	if !ok {
		out <- Result{Strategy: types.StrategyBridge, TargetDomain: target}
		return
	}

	signatures := vibe.EmotionalSignatures
	if len(signatures) > 3 {
		signatures = signatures[:3]
	} else if len(signatures) > 2 {
		signatures = signatures[:2]
	}
	query := strings.TrimSpace(target + " " + strings.Join(signatures, " "))

	items := s.rerankedSearch(ctx, query, bridged)
	out <- Result{Strategy: types.StrategyBridge, Items: items, Query: query, TargetDomain: target}
}

// rerankedSearch issues a broad web search, batch-embeds the pool, and
// reranks it against q, returning the configured top-k.
func (s *Searcher) rerankedSearch(ctx context.Context, query string, q []float32) []types.SearchResult {
	pool, err := s.search.Search(ctx, query, s.cfg.RerankPoolSize)
	if err != nil || len(pool) == 0 {
		return nil
	}

	texts := make([]string, len(pool))
	for i, p := range pool {
		texts[i] = p.Title + " " + p.Text
	}
	embeddings, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil
	}

	ranked := vectormath.RerankByVector(embeddings, q, s.cfg.RerankTopK)
	out := make([]types.SearchResult, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, pool[r.Index])
	}
	return out
}

// pickTargetDomain returns a random domain from domains that is not
// equal to source. Returns "" if domains is empty or only the source
// is configured.
func pickTargetDomain(domains []string, source string) string {
	candidates := make([]string, 0, len(domains))
	for _, d := range domains {
		if d != source {
			candidates = append(candidates, d)
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	return candidates[rand.Intn(len(candidates))]
}

// CombineResults interleaves items round-robin across strategy results
// up to maxTotal, preserving within-strategy order, and aggregates
// provenance into an OrthogonalMeta.
func CombineResults(results []Result, maxTotal int) ([]types.SearchResult, types.OrthogonalMeta) {
	meta := types.OrthogonalMeta{}
	cursors := make([]int, len(results))

	combined := make([]types.SearchResult, 0, maxTotal)
	for {
		progressed := false
		for i, r := range results {
			if cursors[i] >= len(r.Items) {
				continue
			}
			if len(combined) >= maxTotal && maxTotal > 0 {
				break
			}
			combined = append(combined, r.Items[cursors[i]])
			cursors[i]++
			progressed = true
		}
		if !progressed || (maxTotal > 0 && len(combined) >= maxTotal) {
			break
		}
	}

	seenStrategy := make(map[types.StrategyTag]bool)
	for _, r := range results {
		if len(r.Items) == 0 && r.Query == "" {
			continue
		}
		if !seenStrategy[r.Strategy] {
			meta.StrategiesUsed = append(meta.StrategiesUsed, r.Strategy)
			seenStrategy[r.Strategy] = true
		}
		if r.Query != "" {
			meta.Queries = append(meta.Queries, r.Query)
		}
		meta.SubtractedTags = append(meta.SubtractedTags, r.SubtractedTags...)
		if r.TargetVibe != "" {
			meta.TargetVibes = append(meta.TargetVibes, r.TargetVibe)
		}
		if r.TargetDomain != "" {
			meta.TargetDomain = r.TargetDomain
		}
	}
	return combined, meta
}
