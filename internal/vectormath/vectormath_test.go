package vectormath

import (
	"math"
	"testing"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestNormalizeUnitLength(t *testing.T) {
	v := []float32{3, 4}
	n := Normalize(v)
	var sumSq float64
	for _, x := range n {
		sumSq += float64(x) * float64(x)
	}
	if !almostEqual(sumSq, 1.0, 1e-6) {
		t.Errorf("||n||^2 = %v, want 1.0", sumSq)
	}
}

func TestNormalizeZeroVector(t *testing.T) {
	v := []float32{0, 0, 0}
	n := Normalize(v)
	for _, x := range n {
		if x != 0 {
			t.Errorf("expected zero vector unchanged, got %v", n)
		}
	}
}

func TestMean(t *testing.T) {
	vs := [][]float32{{1, 2}, {3, 4}, {5, 6}}
	m := Mean(vs)
	want := []float32{3, 4}
	for i := range want {
		if m[i] != want[i] {
			t.Errorf("Mean()[%d] = %v, want %v", i, m[i], want[i])
		}
	}
}

func TestMeanEmpty(t *testing.T) {
	if Mean(nil) != nil {
		t.Error("expected nil mean for empty input")
	}
}

func TestCosineSimilarityIdentical(t *testing.T) {
	v := []float32{1, 2, 3}
	sim := CosineSimilarity(v, v)
	if !almostEqual(sim, 1.0, 1e-6) {
		t.Errorf("CosineSimilarity(v, v) = %v, want 1.0", sim)
	}
}

func TestCosineSimilarityOrthogonal(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	sim := CosineSimilarity(a, b)
	if !almostEqual(sim, 0.0, 1e-6) {
		t.Errorf("CosineSimilarity(orthogonal) = %v, want 0.0", sim)
	}
}

func TestCosineSimilarityZeroVectorGuarded(t *testing.T) {
	a := []float32{0, 0}
	b := []float32{1, 1}
	sim := CosineSimilarity(a, b)
	if math.IsNaN(sim) || math.IsInf(sim, 0) {
		t.Errorf("expected finite guarded result, got %v", sim)
	}
}

func TestSubtractPrincipalComponentsFallsBackBelowNMin(t *testing.T) {
	memories := []LabeledEmbedding{
		{Label: "a", Embedding: []float32{1, 0, 0}},
		{Label: "b", Embedding: []float32{0, 1, 0}},
	}
	result := SubtractPrincipalComponents(memories, 2, 1.0, 5)
	if len(result.SubtractedTags) != 0 {
		t.Errorf("expected no subtractions below nMin, got %v", result.SubtractedTags)
	}
	if len(result.Vector) != 3 {
		t.Errorf("expected centroid-dimension residual, got len %d", len(result.Vector))
	}
}

func TestSubtractPrincipalComponentsAboveNMin(t *testing.T) {
	memories := []LabeledEmbedding{
		{Label: "a", Embedding: []float32{1, 0, 0, 0}},
		{Label: "b", Embedding: []float32{0.9, 0.1, 0, 0}},
		{Label: "c", Embedding: []float32{1.1, -0.1, 0, 0}},
		{Label: "d", Embedding: []float32{0, 1, 0, 0}},
		{Label: "e", Embedding: []float32{0, 0.9, 0.1, 0}},
		{Label: "f", Embedding: []float32{0, 1.1, -0.1, 0}},
	}
	result := SubtractPrincipalComponents(memories, 2, 1.0, 5)
	if len(result.Vector) != 4 {
		t.Fatalf("expected dimension-4 residual, got %d", len(result.Vector))
	}
	var sumSq float64
	for _, x := range result.Vector {
		sumSq += float64(x) * float64(x)
	}
	if !almostEqual(sumSq, 1.0, 1e-3) && sumSq != 0 {
		t.Errorf("expected normalized residual, ||v||^2 = %v", sumSq)
	}
}

func TestAntonymSteerAvoidsPureNegation(t *testing.T) {
	ctx := []float32{1, 0}
	target := []float32{0, 1}
	taste := []float32{0.5, 0.5}
	out := AntonymSteer(taste, ctx, target, 0.5)
	if len(out) != 2 {
		t.Fatalf("expected dim 2, got %d", len(out))
	}
	negated := Scale(ctx, -1)
	if out[0] == negated[0] && out[1] == negated[1] {
		t.Error("antonym steering should not equal pure negation of context")
	}
}

func TestBridgeTableUnknownPairReturnsContentVector(t *testing.T) {
	bt := NewBridgeTable()
	content := []float32{1, 2, 3}
	out, ok := bt.Bridge(content, "movie", "restaurant")
	if ok {
		t.Error("expected ok=false for unknown domain pair")
	}
	for i := range content {
		if out[i] != content[i] {
			t.Errorf("expected content vector unchanged, got %v", out)
		}
	}
}

func TestBridgeTableKnownPair(t *testing.T) {
	bt := NewBridgeTable()
	bt.SetDomainEmbeddings(map[string][][]float32{
		"movie":      {{1, 0}, {1, 0}},
		"restaurant": {{0, 1}, {0, 1}},
	})
	content := []float32{1, 1}
	out, ok := bt.Bridge(content, "movie", "restaurant")
	if !ok {
		t.Fatal("expected known domain pair")
	}
	var sumSq float64
	for _, x := range out {
		sumSq += float64(x) * float64(x)
	}
	if !almostEqual(sumSq, 1.0, 1e-6) {
		t.Errorf("expected normalized bridge vector, ||v||^2 = %v", sumSq)
	}
}

func TestRerankByVectorOrdersBySimilarity(t *testing.T) {
	candidates := [][]float32{
		{0, 1},   // orthogonal to query
		{1, 0},   // identical to query
		{0.7, 0.7},
	}
	q := []float32{1, 0}
	ranked := RerankByVector(candidates, q, 2)
	if len(ranked) != 2 {
		t.Fatalf("expected top 2, got %d", len(ranked))
	}
	if ranked[0].Index != 1 {
		t.Errorf("expected index 1 (identical vector) ranked first, got %d", ranked[0].Index)
	}
}
