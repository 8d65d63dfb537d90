package vectormath

// AntonymSteer computes normalize(vTaste + alpha*(vTarget - vCtx)). Pure
// negation (-vCtx) is deliberately avoided — in high-dimensional
// embedding spaces it produces noise, not a meaningful antonym.
//
// vTaste is the mean of the user's memory embeddings (zero vector if
// the user has none); vCtx is the embedding of the truncated context;
// vTarget is the embedding of the chosen target-vibe label.
func AntonymSteer(vTaste, vCtx, vTarget []float32, alpha float64) []float32 {
	dim := len(vCtx)
	if len(vTarget) > dim {
		dim = len(vTarget)
	}
	if len(vTaste) > dim {
		dim = len(vTaste)
	}
	taste := vTaste
	if taste == nil {
		taste = make([]float32, dim)
	}
	delta := Sub(vTarget, vCtx)
	return Normalize(Add(taste, Scale(delta, alpha)))
}
