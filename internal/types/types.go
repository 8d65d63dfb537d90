// Package types holds the data model shared across every component of the
// retrieval pipeline: Memory, SearchResult, VibeProfile, StrategyWeights,
// ScoredCandidate, Suggestion and CascadeResult.
package types

import "time"

// EdgeKind is the typed relationship a Memory can carry to another Memory.
type EdgeKind string

const (
	EdgeExtends       EdgeKind = "extends"
	EdgeUpdates       EdgeKind = "updates"
	EdgeDerives       EdgeKind = "derives"
	EdgeContrast      EdgeKind = "contrast"
	EdgeChildExtends  EdgeKind = "child_extends"
	EdgeChildUpdates  EdgeKind = "child_updates"
	EdgeChildDerives  EdgeKind = "child_derives"
)

// Edge is a typed link from one Memory to another.
type Edge struct {
	ToID string   `json:"toId"`
	Kind EdgeKind `json:"kind"`
}

// Memory is a unit of long-term user knowledge, owned by the external
// memory store. The core only ever holds transient copies.
type Memory struct {
	ID             string     `json:"id"`
	Content        string     `json:"content"`
	Similarity     float64    `json:"similarity,omitempty"`
	CreatedAt      *time.Time `json:"createdAt,omitempty"`
	LastAccessedAt *time.Time `json:"lastAccessedAt,omitempty"`
	Edges          []Edge     `json:"edges,omitempty"`
}

// FingerprintKey returns the dedup key used by the weighted router: the
// first 100 characters of content.
func (m Memory) FingerprintKey() string {
	runes := []rune(m.Content)
	if len(runes) <= 100 {
		return m.Content
	}
	return string(runes[:100])
}

// SearchResult is a unit of web knowledge, owned transiently.
type SearchResult struct {
	Title     string     `json:"title"`
	URL       string     `json:"url"`
	Text      string     `json:"text"`
	Score     float64    `json:"score"`
	Published *time.Time `json:"published,omitempty"`
}

// VibeProfile is the abstract aesthetic fingerprint of a piece of content.
// Immutable after construction.
type VibeProfile struct {
	EmotionalSignatures []string `json:"emotionalSignatures"`
	Archetype           string   `json:"archetype"`
	CrossDomainInterests []string `json:"crossDomainInterests"`
	AntiPatterns        []string `json:"antiPatterns"`
	SourceDomain        string   `json:"sourceDomain"`
}

// Empty reports whether the profile has no content at all — the shape
// returned by ConceptExtractor.ExtractVibe on LLM failure.
func (v VibeProfile) Empty() bool {
	return len(v.EmotionalSignatures) == 0 && v.Archetype == "" &&
		len(v.CrossDomainInterests) == 0 && len(v.AntiPatterns) == 0 && v.SourceDomain == ""
}

// StrategyWeights are four independent intensities produced by ContextJudge
// and consumed by CascadeRouter. They are not required to sum to 1.
type StrategyWeights struct {
	Serendipity  float64 `json:"serendipity"`
	Relevance    float64 `json:"relevance"`
	SourceWeb    float64 `json:"sourceWeb"`
	SourceLocal  float64 `json:"sourceLocal"`
	Rationale    string  `json:"rationale"`
}

// Clamp pins every weight into [0,1]. The judge must never return weights
// outside that range.
func (w StrategyWeights) Clamp() StrategyWeights {
	clamp := func(f float64) float64 {
		if f < 0 {
			return 0
		}
		if f > 1 {
			return 1
		}
		return f
	}
	w.Serendipity = clamp(w.Serendipity)
	w.Relevance = clamp(w.Relevance)
	w.SourceWeb = clamp(w.SourceWeb)
	w.SourceLocal = clamp(w.SourceLocal)
	return w
}

// SourceTag identifies where a candidate or suggestion came from.
type SourceTag string

const (
	SourceWeb   SourceTag = "web"
	SourceLocal SourceTag = "local"
	SourceMixed SourceTag = "mixed"
)

// StrategyTag identifies which retrieval strategy produced a candidate.
type StrategyTag string

const (
	StrategyOrthogonal StrategyTag = "orthogonal"
	StrategyVector     StrategyTag = "vector"
	StrategyGraph      StrategyTag = "graph"
	StrategyPCA        StrategyTag = "pca"
	StrategyAntonym    StrategyTag = "antonym"
	StrategyBridge     StrategyTag = "bridge"
)

// ScoredCandidate wraps an item during weighted routing.
type ScoredCandidate struct {
	Memory   *Memory
	Web      *SearchResult
	Source   SourceTag
	Strategy StrategyTag
	Raw      float64
	Adjusted float64
}

// FingerprintKey dedupes candidates by content (memories) or URL (web).
func (c ScoredCandidate) FingerprintKey() string {
	if c.Web != nil {
		return c.Web.URL
	}
	if c.Memory != nil {
		return c.Memory.FingerprintKey()
	}
	return ""
}

// Suggestion is the externally exposed result of the pipeline.
type Suggestion struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Body           string    `json:"content"`
	Reasoning      string    `json:"reasoning"`
	Source         SourceTag `json:"source"`
	RelevanceScore float64   `json:"relevanceScore"`
	NoveltyScore   float64   `json:"noveltyScore"`
	Timestamp      time.Time `json:"timestamp"`
	SourceURL      string    `json:"sourceUrl,omitempty"`
}

// Confidence is the router's explicit failure-signal carried back to callers.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// RetrievalPath names which route produced a CascadeResult.
type RetrievalPath string

const (
	PathOrthogonal     RetrievalPath = "orthogonal"
	PathOrthogonalWeb  RetrievalPath = "orthogonal+web"
	PathGraph          RetrievalPath = "graph"
	PathGraphWeb       RetrievalPath = "graph+web"
	PathVector         RetrievalPath = "vector"
	PathVectorWeb      RetrievalPath = "vector+web"
	PathWeb            RetrievalPath = "web"
	PathWeighted       RetrievalPath = "weighted"
	PathNone           RetrievalPath = "none"
)

// OrthogonalMeta carries provenance from the OrthogonalSearcher: which
// strategies ran, the query each issued, taste subtracted via PCA, and any
// target vibe/domain used for steering.
type OrthogonalMeta struct {
	StrategiesUsed []StrategyTag `json:"strategiesUsed"`
	Queries        []string      `json:"queries"`
	SubtractedTags []string      `json:"subtractedTags,omitempty"`
	TargetVibes    []string      `json:"targetVibes,omitempty"`
	TargetDomain   string        `json:"targetDomain,omitempty"`
}

// CascadeResult is the internal routing outcome of any CascadeRouter mode.
type CascadeResult struct {
	Candidates     []ScoredCandidate
	Path           RetrievalPath
	Confidence     Confidence
	GraphInsight   bool
	ShouldOfferWeb bool
	Orthogonal     *OrthogonalMeta
	Vibe           *VibeProfile
}
