package vocoder

// Runtime computes the three per-frame condition vectors (condA, condB,
// condC) from the causal input-conv output. This is the one subgraph of the
// MWDLP10 frame network that is shallow and stateless enough to swap onto an
// alternate inference backend without touching the per-sample autoregressive
// loop, which must stay on the native kernels in this package for latency
// and bit-exact reproducibility.
type Runtime interface {
	Name() string
	FrameNetwork(condA, condB, condC, convOut []float32) error
}

// NativeRuntime runs the frame network's three dense projections directly
// against this package's hand-rolled sgemvAccum-based Dense.Forward, the
// same computation VocoderState ran inline before the Runtime seam existed.
type NativeRuntime struct {
	weights *VocoderWeights
}

// NewNativeRuntime returns the default Runtime, backed by weights already
// loaded into a VocoderState.
func NewNativeRuntime(weights *VocoderWeights) *NativeRuntime {
	return &NativeRuntime{weights: weights}
}

func (r *NativeRuntime) Name() string { return "native" }

func (r *NativeRuntime) FrameNetwork(condA, condB, condC, convOut []float32) error {
	r.weights.CondDenseA.Forward(condA, convOut)
	r.weights.CondDenseB.Forward(condB, convOut)
	r.weights.CondDenseC.Forward(condC, convOut)

	return nil
}
