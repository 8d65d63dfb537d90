package scorer

import (
	"testing"
	"time"
)

func TestBandEchoChamber(t *testing.T) {
	r, n := band(0.9)
	if r != 0.45 {
		t.Errorf("relevance = %v, want 0.45", r)
	}
	if n != 0.2 {
		t.Errorf("novelty = %v, want 0.2", n)
	}
}

func TestBandSweetSpotBounds(t *testing.T) {
	rLow, nLow := band(0.65)
	if nLow != 1.0 {
		t.Errorf("novelty at 0.65 = %v, want 1.0", nLow)
	}
	if rLow <= 0 {
		t.Errorf("relevance at 0.65 should be positive, got %v", rLow)
	}

	_, nHigh := band(0.849)
	if nHigh < 0.5 || nHigh > 1.0 {
		t.Errorf("novelty near echo boundary out of range: %v", nHigh)
	}
}

func TestBandDistant(t *testing.T) {
	r, n := band(0.3)
	if r != 0.24 {
		t.Errorf("relevance = %v, want 0.24", r)
	}
	if n != 0.8 {
		t.Errorf("novelty = %v, want 0.8", n)
	}
}

func TestWebSyntheticSimilarityFallsInSweetSpot(t *testing.T) {
	for rank := 0; rank < 10; rank++ {
		s := WebSyntheticSimilarity(rank)
		if s < sweetThreshold {
			t.Errorf("rank %d: synthetic similarity %v below sweet-spot floor", rank, s)
		}
	}
}

func TestTemporalBoostLiftsOlderMemory(t *testing.T) {
	recent := time.Now().Add(-2 * 24 * time.Hour)
	old := time.Now().Add(-100 * 24 * time.Hour)

	finalRecent, _, _ := score(Candidate{Similarity: 0.7, LastAccessedAt: &recent})
	finalOld, _, _ := score(Candidate{Similarity: 0.7, LastAccessedAt: &old})

	if finalOld <= finalRecent {
		t.Errorf("expected older memory to score higher after temporal boost: old=%v recent=%v", finalOld, finalRecent)
	}
}

func TestFilterAndRankDropsNonPositiveAndSortsDescending(t *testing.T) {
	items := []Candidate{
		{Similarity: 0.9},
		{Similarity: 0.7},
		{Similarity: 0.1},
	}
	ranked := FilterAndRank(items, 2)
	if len(ranked) != 2 {
		t.Fatalf("expected top 2, got %d", len(ranked))
	}
	if ranked[0].FinalScore < ranked[1].FinalScore {
		t.Error("expected descending order")
	}
}

func TestFilterAndRankNoLastAccessedNoBoost(t *testing.T) {
	items := []Candidate{{Similarity: 0.7}}
	ranked := FilterAndRank(items, 10)
	if len(ranked) != 1 {
		t.Fatalf("expected 1 result, got %d", len(ranked))
	}
	if ranked[0].FinalScore != ranked[0].Relevance {
		t.Errorf("expected no temporal boost without timestamp: final=%v relevance=%v", ranked[0].FinalScore, ranked[0].Relevance)
	}
}
