package vectormath

import (
	"fmt"
	"sync"
)

// DomainAnchors is a small fixed table of domains, each with short,
// semantically-aligned anchor phrases used to compute that domain's
// centroid. Callers embed the anchor phrases once and feed the result
// into BridgeTable via SetDomainEmbeddings.
var DomainAnchors = map[string][]string{
	"restaurant":   {"fine dining tasting menu", "neighborhood bistro", "street food stall", "chef's seasonal plate", "wine pairing dinner"},
	"movie":        {"independent film festival entry", "genre-bending director's cut", "slow cinema long take", "cult classic midnight screening", "documentary feature"},
	"music":        {"experimental album release", "live improvised set", "concept record", "genre-crossing collaboration", "b-side deep cut"},
	"book":         {"literary debut novel", "essay collection", "translated international fiction", "speculative short story", "narrative nonfiction"},
	"architecture": {"brutalist public building", "adaptive reuse project", "vernacular regional design", "landscape-integrated structure", "experimental material facade"},
}

// BridgeTable caches per-domain centroids and the pairwise bridge
// vectors derived from them, computed when SetDomainEmbeddings is called
// (cmd/server does so once at startup) and guarded by a mutex.
type BridgeTable struct {
	mu        sync.Mutex
	centroids map[string][]float32
	bridges   map[string][]float32 // key: "target|source"
}

// NewBridgeTable creates an empty table; call SetDomainEmbeddings once
// embeddings for every domain's anchors are available.
func NewBridgeTable() *BridgeTable {
	return &BridgeTable{
		centroids: make(map[string][]float32),
		bridges:   make(map[string][]float32),
	}
}

// SetDomainEmbeddings computes and caches each domain's centroid and
// every pairwise bridge vector B(target, source) = centroid(target) -
// centroid(source). anchorEmbeddings maps domain -> one embedding per
// anchor phrase, in the same order as DomainAnchors[domain].
func (b *BridgeTable) SetDomainEmbeddings(anchorEmbeddings map[string][][]float32) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for domain, embeddings := range anchorEmbeddings {
		b.centroids[domain] = Mean(embeddings)
	}
	for target, tc := range b.centroids {
		for source, sc := range b.centroids {
			if target == source {
				continue
			}
			b.bridges[bridgeKey(target, source)] = Sub(tc, sc)
		}
	}
}

// Bridge computes normalize(embed(content) + B(target, source)). If the
// (target, source) pair is unknown, returns the content vector itself
// and reports ok=false so the caller can log a warning.
func (b *BridgeTable) Bridge(contentEmbedding []float32, target, source string) ([]float32, bool) {
	b.mu.Lock()
	vec, known := b.bridges[bridgeKey(target, source)]
	b.mu.Unlock()

	if !known {
		return contentEmbedding, false
	}
	return Normalize(Add(contentEmbedding, vec)), true
}

func bridgeKey(target, source string) string {
	return fmt.Sprintf("%s|%s", target, source)
}
