package vocoder

import (
	"math"
	"math/rand"
	"testing"
)

// TestSparseSgemvMatchesDenseScatter builds a block-sparse recurrent weight
// and the dense matrix obtained by scattering its blocks into full rows,
// then checks sparseSgemvAccum and sgemvAccum agree within 1e-5.
func TestSparseSgemvMatchesDenseScatter(t *testing.T) {
	const hidden = 8
	const hidden3 = 3 * hidden

	rng := rand.New(rand.NewSource(123))

	idx := make([]int, hidden)
	sparseW := make([]float32, hidden*16)
	denseW := make([]float32, hidden*hidden3) // cols*colStride, colStride=hidden3

	nblocks := hidden3 / 16
	for j := 0; j < hidden; j++ {
		block := (j % nblocks) * 16
		idx[j] = block

		for i := 0; i < 16; i++ {
			v := rng.Float32()*2 - 1
			sparseW[j*16+i] = v
			denseW[j*hidden3+block+i] = v
		}
	}

	state := make([]float32, hidden)
	for i := range state {
		state[i] = rng.Float32()*2 - 1
	}

	outSparse := make([]float32, hidden3)
	outDense := make([]float32, hidden3)

	sparseSgemvAccum(outSparse, sparseW, idx, hidden, state)
	sgemvAccum(outDense, denseW, hidden3, hidden, hidden3, state)

	for i := range outSparse {
		if math.Abs(float64(outSparse[i]-outDense[i])) > 1e-5 {
			t.Fatalf("index %d: sparse=%v dense=%v, diverge by more than 1e-5", i, outSparse[i], outDense[i])
		}
	}
}

func TestClampHelper(t *testing.T) {
	cases := []struct{ x, lo, hi, want float32 }{
		{0, -1, 1, 0},
		{-2, -1, 1, -1},
		{2, -1, 1, 1},
	}

	for _, c := range cases {
		if got := clamp(c.x, c.lo, c.hi); got != c.want {
			t.Fatalf("clamp(%v,%v,%v) = %v, want %v", c.x, c.lo, c.hi, got, c.want)
		}
	}
}
