package vectormath

import "sort"

// Reranked pairs an index into the original candidate slice with its
// cosine similarity to the reranking vector.
type Reranked struct {
	Index      int
	Similarity float64
}

// RerankByVector scores each candidate embedding against q by cosine
// similarity and returns the top-k, sorted descending. Candidates must
// already be embedded (batch-embedded by the caller, one call for the
// whole pool, never per item).
func RerankByVector(candidateEmbeddings [][]float32, q []float32, k int) []Reranked {
	scored := make([]Reranked, len(candidateEmbeddings))
	for i, e := range candidateEmbeddings {
		scored[i] = Reranked{Index: i, Similarity: CosineSimilarity(e, q)}
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Similarity > scored[j].Similarity })
	if k > 0 && k < len(scored) {
		scored = scored[:k]
	}
	return scored
}
