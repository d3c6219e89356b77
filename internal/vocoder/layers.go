package vocoder

// Dense is a bias + mat-vec (+ optional activation) layer: out = act(bias + W*in).
// Weight is stored for sgemvAccum: cols*colStride floats, cols == len(in).
type Dense struct {
	Weight    []float32
	Bias      []float32
	Rows      int
	Cols      int
	ColStride int
	Act       Activation
}

// Forward writes act(bias + W*in) into out. out must have length Rows and is
// fully overwritten (not accumulated into).
func (d *Dense) Forward(out, in []float32) {
	copy(out, d.Bias)
	sgemvAccum(out, d.Weight, d.Rows, d.Cols, d.ColStride, in)
	computeActivation(out, d.Act)
}

// DenseLinear is Dense without an activation step (the reference's
// compute_dense_linear), kept as a distinct type to match the corpus's
// naming and to make call sites self-documenting.
type DenseLinear struct {
	Weight    []float32
	Bias      []float32
	Rows      int
	Cols      int
	ColStride int
}

func (d *DenseLinear) Forward(out, in []float32) {
	copy(out, d.Bias)
	sgemvAccum(out, d.Weight, d.Rows, d.Cols, d.ColStride, in)
}

// Conv1DLinear is the causal 1-D convolution used throughout this network:
// the input is appended to a sliding memory of kernelSize-1 previous frames,
// the whole window is multiplied by a flat weight matrix, bias is added (no
// activation), and the memory is advanced by dropping its oldest frame.
type Conv1DLinear struct {
	Weight     []float32 // cols*colStride, cols == NbInputs*KernelSize
	Bias       []float32
	NbInputs   int
	NbNeurons  int
	KernelSize int
	ColStride  int
}

// Forward computes one causal conv step. mem must have length
// NbInputs*(KernelSize-1) and is updated in place to the new trailing window.
// window is caller-owned scratch of length NbInputs*KernelSize.
func (c *Conv1DLinear) Forward(out, mem, input, window []float32) {
	memLen := c.NbInputs * (c.KernelSize - 1)
	copy(window[:memLen], mem)
	copy(window[memLen:], input)

	copy(out, c.Bias)
	sgemvAccum(out, c.Weight, c.NbNeurons, c.NbInputs*c.KernelSize, c.ColStride, window)

	copy(mem, window[c.NbInputs:])
}

// ReplicatePadLeft fills mem with KernelSize-1 copies of input, matching the
// reference's pad_first handling on a conv layer's very first call.
func (c *Conv1DLinear) ReplicatePadLeft(mem, input []float32) {
	for i := 0; i < c.KernelSize-1; i++ {
		copy(mem[i*c.NbInputs:(i+1)*c.NbInputs], input)
	}
}

// StandardGRU is the keras-style reset_after=True GRU used for the
// unconditioned sub-GRUs (gru_b, gru_c), both fed a pre-formed input.
//
// Gate order is [z, r, h] (Keras layout), not the PyTorch [r, z, h] order.
// The candidate gate multiplies the recurrent contribution by z, not r, as
// documented in the training export; this is intentional and must not be
// "corrected" to the textbook r-gated form or trained weights will not
// decode.
type StandardGRU struct {
	Hidden int

	// RecurWeight/RecurBias project the previous state into the 3H gate
	// preactivation space: recur = RecurBias + RecurWeight*state.
	RecurWeight []float32
	RecurBias   []float32
	RecurCols   int // == Hidden

	// InputWeight/InputBias, when non-nil, make Step perform its own dense
	// input projection; nil means the caller has already formed the full
	// input-side zrh vector (gru_b, gru_c). No loader in this package sets them.
	InputWeight []float32
	InputBias   []float32
	InputWidth  int

	Act Activation
}

// Step advances state in place given input (either a pre-formed zrh vector,
// or the raw concatenated input if InputWeight is set). zrh and recur are
// caller-owned scratch of length 3*Hidden.
func (g *StandardGRU) Step(state, input, zrh, recur []float32) {
	h := g.Hidden

	if g.InputWeight != nil {
		copy(zrh, g.InputBias)
		sgemvAccum(zrh, g.InputWeight, 3*h, g.InputWidth, 3*h, input)
	} else {
		copy(zrh, input)
	}

	copy(recur, g.RecurBias)
	sgemvAccum(recur, g.RecurWeight, 3*h, g.RecurCols, 3*h, state)

	z := zrh[:h]
	r := zrh[h : 2*h]
	hh := zrh[2*h : 3*h]

	for i := 0; i < h; i++ {
		z[i] = sigmoid(z[i] + recur[i])
		r[i] = sigmoid(r[i] + recur[h+i])
	}

	for i := 0; i < h; i++ {
		hh[i] += recur[2*h+i] * z[i]
	}

	computeActivation(hh, g.Act)

	for i := 0; i < h; i++ {
		state[i] = r[i]*state[i] + (1-r[i])*hh[i]
	}
}

// SparseGRU is the block-sparse frame-GRU used for the main vocoder
// conditioning recurrence (gru_a) and the CycleVAE encoder, speaker,
// decoder and post-net recurrences, each fed a pre-formed zrh input by a
// separate dense projection. Recurrent accumulation is an explicit
// per-neuron diagonal term plus a block-sparse 16-row-wide mat-vec over an
// explicit column index stream, rather than a dense recurrent matrix.
type SparseGRU struct {
	Hidden int

	Diagonal    []float32 // 3H
	RecurBias   []float32 // 3H
	RecurWeight []float32 // packed 16-row blocks, RecurCols*16 floats
	RecurIdx    []int     // len == RecurCols; block row-offset per column
	RecurCols   int

	// InputWeight/InputBias mirror StandardGRU: nil means input is already a
	// pre-formed zrh vector, as for every GRU the loaders build; set means the
	// layer performs its own dense input projection.
	InputWeight []float32
	InputBias   []float32
	InputWidth  int

	Act Activation
}

// Step advances state in place. zrh and recur are caller-owned scratch of
// length 3*Hidden.
func (g *SparseGRU) Step(state, input, zrh, recur []float32) {
	h := g.Hidden

	if g.InputWeight != nil {
		copy(zrh, g.InputBias)
		sgemvAccum(zrh, g.InputWeight, 3*h, g.InputWidth, 3*h, input)
	} else {
		copy(zrh, input)
	}

	copy(recur, g.RecurBias)

	for i := 0; i < 3*h; i++ {
		recur[i] += g.Diagonal[i] * state[i%h]
	}

	sparseSgemvAccum(recur, g.RecurWeight, g.RecurIdx, g.RecurCols, state)

	z := zrh[:h]
	r := zrh[h : 2*h]
	hh := zrh[2*h : 3*h]

	for i := 0; i < h; i++ {
		z[i] = sigmoid(z[i] + recur[i])
		r[i] = sigmoid(r[i] + recur[h+i])
	}

	for i := 0; i < h; i++ {
		hh[i] += recur[2*h+i] * z[i]
	}

	computeActivation(hh, g.Act)

	for i := 0; i < h; i++ {
		state[i] = r[i]*state[i] + (1-r[i])*hh[i]
	}
}

// Embedding holds a 3-D embedding table (bands x codebook x hidden) whose
// entries are pre-multiplied contributions into a target GRU's 3H gate
// preactivation space, exactly as exported by training: the table is not a
// plain lookup embedding, it already is the codebook -> 3*hidden projection,
// so a lookup can be added directly into a gate-preactivation buffer.
type Embedding struct {
	Bands     int
	Codebook  int
	Hidden3   int
	Data      []float32 // Bands*Codebook*Hidden3
}

// AddInto accumulates the pre-multiplied contribution for (band, index) into
// out, which must have length Hidden3.
func (e *Embedding) AddInto(out []float32, band, index int) {
	base := (band*e.Codebook + index) * e.Hidden3
	row := e.Data[base : base+e.Hidden3]

	for i, v := range row {
		out[i] += v
	}
}
