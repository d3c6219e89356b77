package vocoder

import "math/rand"

// These helpers build a structurally valid, purely synthetic WeightTable
// directly (bypassing safetensors) so the streaming driver can be exercised
// without a trained export. Values are small random floats; they are not
// meant to sound like speech, only to drive every code path without NaNs or
// out-of-range panics.

func randSlice(rng *rand.Rand, n int, scale float32) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = (rng.Float32()*2 - 1) * scale
	}

	return s
}

func onesSlice(n int) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = 1
	}

	return s
}

func newTestDense(rng *rand.Rand, rows, cols int, act Activation) Dense {
	return Dense{
		Weight: randSlice(rng, rows*cols, 0.05), Bias: randSlice(rng, rows, 0.05),
		Rows: rows, Cols: cols, ColStride: rows, Act: act,
	}
}

func newTestDenseLinear(rng *rand.Rand, rows, cols int) DenseLinear {
	return DenseLinear{
		Weight: randSlice(rng, rows*cols, 0.05), Bias: randSlice(rng, rows, 0.05),
		Rows: rows, Cols: cols, ColStride: rows,
	}
}

func newTestConv1D(rng *rand.Rand, nbInputs, nbNeurons, kernelSize int) Conv1DLinear {
	cols := nbInputs * kernelSize
	return Conv1DLinear{
		Weight: randSlice(rng, cols*nbNeurons, 0.05), Bias: randSlice(rng, nbNeurons, 0.05),
		NbInputs: nbInputs, NbNeurons: nbNeurons, KernelSize: kernelSize, ColStride: nbNeurons,
	}
}

func newTestStandardGRU(rng *rand.Rand, hidden int, act Activation) StandardGRU {
	h3 := 3 * hidden
	return StandardGRU{
		Hidden: hidden, RecurWeight: randSlice(rng, hidden*h3, 0.05), RecurBias: randSlice(rng, h3, 0.05),
		RecurCols: hidden, Act: act,
	}
}

// newTestSparseGRU builds a block-sparse recurrence where every state
// dimension maps to a 16-row block (cycling through the available blocks),
// so RecurCols == hidden is always "fully populated".
func newTestSparseGRU(rng *rand.Rand, hidden int, act Activation) SparseGRU {
	h3 := 3 * hidden
	idx := make([]int, hidden)
	nblocks := h3 / 16

	for j := range idx {
		block := (j % nblocks) * 16
		if block > h3-16 {
			block = h3 - 16
		}

		idx[j] = block
	}

	return SparseGRU{
		Hidden: hidden, Diagonal: randSlice(rng, h3, 0.05), RecurBias: randSlice(rng, h3, 0.05),
		RecurWeight: randSlice(rng, hidden*16, 0.05), RecurIdx: idx, RecurCols: hidden, Act: act,
	}
}

func newTestEmbedding(rng *rand.Rand, bands, codebook, hidden3 int) Embedding {
	return Embedding{Bands: bands, Codebook: codebook, Hidden3: hidden3, Data: randSlice(rng, bands*codebook*hidden3, 0.02)}
}

func newTestDualFCHead(rng *rand.Rand, hidden int, useDLPC bool) DualFCHead {
	return DualFCHead{
		Proj:     newTestDense(rng, MDenseOut, hidden, ActivationLinear),
		SignAct:  ActivationTanh,
		MagAct:   ActivationExp,
		MidAct:   ActivationTanh,
		FactorsA: randSlice(rng, dualFCHalf, 0.05),
		FactorsB: randSlice(rng, dualFCHalf, 0.05),
		// Row-major [SqrtQuantize, MidOut], matching fcLogitsTiled's own
		// indexing (w[i*midOut:(i+1)*midOut]) rather than loadMatrix's
		// transposed-storage convention used for the mat-vec kernels.
		LogitsWeight: randSlice(rng, SqrtQuantize*MidOut, 0.05),
		LogitsBias:   randSlice(rng, NBands*SqrtQuantize, 0.05),
		OutAct:       ActivationSoftmaxPassThrough,
		UseDLPC:      useDLPC,
	}
}

func newTestVocoderWeights(rng *rand.Rand) VocoderWeights {
	return VocoderWeights{
		FeatureNorm:       NormStats{Mean: make([]float32, FeaturesDim), Std: onesSlice(FeaturesDim)},
		InputConv:         newTestConv1D(rng, FeaturesDim, FeatureConvOutDim, InConvKernel),
		CondDenseA:        newTestDense(rng, RNNMainNeurons3, FeatureConvOutDim, ActivationLinear),
		CondDenseB:        newTestDense(rng, RNNSubNeurons3, FeatureConvOutDim, ActivationLinear),
		CondDenseC:        newTestDense(rng, RNNSubNeurons3, FeatureConvOutDim, ActivationLinear),
		GRUA:              newTestSparseGRU(rng, RNNMainNeurons, ActivationTanh),
		GRUAToB:           newTestDenseLinear(rng, RNNSubNeurons3, RNNMainNeurons),
		GRUB:              newTestStandardGRU(rng, RNNSubNeurons, ActivationTanh),
		GRUBToC:           newTestDenseLinear(rng, RNNSubNeurons3, RNNSubNeurons),
		GRUC:              newTestStandardGRU(rng, RNNSubNeurons, ActivationTanh),
		CoarseHistEmbed:   newTestEmbedding(rng, NBands, SqrtQuantize, RNNMainNeurons3),
		FineHistEmbed:     newTestEmbedding(rng, NBands, SqrtQuantize, RNNMainNeurons3),
		CoarseToFineEmbed: newTestEmbedding(rng, NBands, SqrtQuantize, RNNSubNeurons3),
		CoarseHead:        newTestDualFCHead(rng, RNNSubNeurons, true),
		FineHead:          newTestDualFCHead(rng, RNNSubNeurons, true),
		PQMFSynthesis:     randSlice(rng, PQMFTaps, 0.05),
	}
}

func newTestWeightTable(seed int64) *WeightTable {
	rng := rand.New(rand.NewSource(seed))

	wt := &WeightTable{Vocoder: newTestVocoderWeights(rng)}
	buildMuLawTable(&wt.MuLawTable)

	return wt
}
