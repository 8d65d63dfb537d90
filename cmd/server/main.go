package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"tangent/internal/analyze"
	"tangent/internal/api"
	"tangent/internal/concept"
	"tangent/internal/config"
	"tangent/internal/decisionlog"
	"tangent/internal/embedclient"
	"tangent/internal/judge"
	"tangent/internal/llmclient"
	"tangent/internal/memorystore"
	"tangent/internal/orthogonal"
	"tangent/internal/router"
	"tangent/internal/synth"
	"tangent/internal/tools"
	"tangent/internal/vectormath"
	"tangent/internal/websearch"
)

const localMemoryPoolSize = 20

func main() {
	cfg := config.Load()
	llmChatURL := cfg.OpenAIBaseURL + "/chat/completions"

	log.Printf("[main] initializing LLM dispatcher...")
	circuitBreaker := tools.NewCircuitBreaker(3, 5*time.Minute)
	llmManager := llmclient.NewManager(llmclient.DefaultConfig(), circuitBreaker)
	defer llmManager.Stop()

	criticalClient := llmclient.NewClient(llmManager, llmclient.PriorityCritical, 20*time.Second)
	backgroundClient := llmclient.NewClient(llmManager, llmclient.PriorityBackground, 45*time.Second)
	log.Printf("[main] ✓ LLM dispatcher ready (circuit breaker threshold: 3 failures, cooldown: 5m)")

	embedder := embedclient.NewEmbedder(cfg.OpenAIBaseURL, cfg.OpenAIKey, cfg.OpenAIEmbedModel)
	search := websearch.NewClient(cfg.ExaURL, 15*time.Second, nil)

	log.Printf("[main] connecting to memory store at %s...", cfg.QdrantURL)
	memory, err := memorystore.New(cfg.QdrantURL, cfg.QdrantCollection, cfg.QdrantAPIKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "memory store init error: %v\n", err)
		os.Exit(1)
	}
	log.Printf("[main] ✓ memory store ready (collection: %s)", cfg.QdrantCollection)

	bridges := buildBridgeTable(embedder)
	log.Printf("[main] ✓ bridge table ready (%d domains)", len(vectormath.DomainAnchors))

	concepts := concept.New(criticalClient, llmChatURL, cfg.OpenAIChatModel)
	contextJudge := judge.New(criticalClient, llmChatURL, cfg.OpenAIChatModel)

	orth := orthogonal.New(backgroundClient, llmChatURL, cfg.OpenAIChatModel, embedder, search, bridges, concepts, orthogonal.Config{
		NoiseScale:         cfg.OrthogonalNoiseScale,
		TargetDomains:      cfg.OrthogonalTargetDomains,
		VibeTemperature:    cfg.OrthogonalVibeTemperature,
		PCALambda:          cfg.PCALambdaSurprise,
		PCAMinMemories:     cfg.PCAMinMemories,
		PCANumComponents:   cfg.PCANumComponents,
		AntonymAlpha:       cfg.AntonymAlpha,
		AntonymTargetVibes: cfg.AntonymTargetVibes,
		RerankPoolSize:     cfg.RerankPoolSize,
		RerankTopK:         cfg.RerankTopK,
	})

	cascadeRouter := router.New(memory, search, embedder, orth, localMemoryPoolSize, cfg.MaxAnchors)
	synthesizer := synth.New(criticalClient, llmChatURL, cfg.OpenAIChatModel)
	decisionLogger := decisionlog.New(cfg.JudgeLogPath)

	controller := analyze.New(concepts, contextJudge, cascadeRouter, synthesizer, search, decisionLogger, cfg.MaxSuggestions)
	log.Printf("[main] ✓ pipeline wired (max anchors: %d, max suggestions: %d, orthogonal enabled: %t)",
		cfg.MaxAnchors, cfg.MaxSuggestions, cfg.OrthogonalEnabled)

	r := api.SetupRouter(&api.Deps{
		Config:     cfg,
		Controller: controller,
		Router:     cascadeRouter,
		Concepts:   concepts,
		Judge:      contextJudge,
		Search:     search,
		Memory:     memory,
		Embedder:   embedder,
		Log:        decisionLogger,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	log.Printf("[main] starting server on %s", addr)
	if err := r.Run(addr); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// buildBridgeTable embeds every domain's anchor phrases once at startup
// and feeds the result into a BridgeTable — the one-time setup cost
// SetDomainEmbeddings is designed to amortize.
func buildBridgeTable(embedder *embedclient.Embedder) *vectormath.BridgeTable {
	bridges := vectormath.NewBridgeTable()

	anchorEmbeddings := make(map[string][][]float32, len(vectormath.DomainAnchors))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for domain, phrases := range vectormath.DomainAnchors {
		embeddings, err := embedder.EmbedBatch(ctx, phrases)
		if err != nil {
			log.Printf("[main] warning: failed to embed anchors for domain %q: %v", domain, err)
			continue
		}
		anchorEmbeddings[domain] = embeddings
	}

	bridges.SetDomainEmbeddings(anchorEmbeddings)
	return bridges
}
