package vectormath

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	defaultNMin       = 5
	defaultComponents = 2
)

// LabeledEmbedding pairs an embedding with the text it came from, used to
// name the "subtracted tag" provenance for PCA subtraction.
type LabeledEmbedding struct {
	Label     string
	Embedding []float32
}

// PCAResult is the output of principal-component subtraction.
type PCAResult struct {
	Vector         []float32
	SubtractedTags []string
}

// SubtractPrincipalComponents removes a user's dominant taste directions
// from their centroid, returning the normalized residual plus, for each
// removed direction, the memory whose embedding projects most strongly
// onto it (the "what taste was removed" provenance).
//
// If len(memories) < nMin, falls back to the normalized centroid with no
// subtractions. nMin<=0 uses the default of 5; numComponents<=0 uses the
// default of 2.
func SubtractPrincipalComponents(memories []LabeledEmbedding, numComponents int, lambda float64, nMin int) PCAResult {
	if nMin <= 0 {
		nMin = defaultNMin
	}
	if numComponents <= 0 {
		numComponents = defaultComponents
	}

	embeddings := make([][]float32, len(memories))
	for i, m := range memories {
		embeddings[i] = m.Embedding
	}

	centroid := Mean(embeddings)
	if len(memories) < nMin || centroid == nil {
		return PCAResult{Vector: Normalize(centroid)}
	}

	centered := make([][]float64, len(memories))
	for i, e := range embeddings {
		diff := Sub(e, centroid)
		row := make([]float64, len(diff))
		for j, x := range diff {
			row[j] = float64(x)
		}
		centered[i] = row
	}

	components, ok := rightSingularVectors(centered, numComponents)
	if !ok {
		components, ok = rightSingularVectors(jitter(centered), numComponents)
	}
	if !ok {
		return PCAResult{Vector: Normalize(centroid)}
	}

	residual := append([]float32(nil), centroid...)
	tags := make([]string, 0, len(components))
	for _, comp := range components {
		proj := Dot(centroid, comp)
		residual = Sub(residual, Scale(comp, lambda*proj))

		bestIdx, bestAbs := -1, -1.0
		for i, e := range embeddings {
			p := math.Abs(Dot(e, comp))
			if p > bestAbs {
				bestAbs = p
				bestIdx = i
			}
		}
		if bestIdx >= 0 {
			tags = append(tags, memories[bestIdx].Label)
		}
	}

	return PCAResult{Vector: Normalize(residual), SubtractedTags: tags}
}

// rightSingularVectors returns the top-k right-singular vectors (as
// float32 slices) of the row-major matrix rows, or ok=false if the SVD
// fails to converge.
func rightSingularVectors(rows [][]float64, k int) ([][]float32, bool) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, false
	}
	r, c := len(rows), len(rows[0])
	data := make([]float64, 0, r*c)
	for _, row := range rows {
		data = append(data, row...)
	}
	m := mat.NewDense(r, c, data)

	var svd mat.SVD
	ok := svd.Factorize(m, mat.SVDThin)
	if !ok {
		return nil, false
	}

	var v mat.Dense
	svd.VTo(&v)

	if k > c {
		k = c
	}
	out := make([][]float32, 0, k)
	for col := 0; col < k; col++ {
		vec := make([]float32, c)
		for row := 0; row < c; row++ {
			vec[row] = float32(v.At(row, col))
		}
		out = append(out, Normalize(vec))
	}
	return out, true
}
