package vocoder

// DualFCHead is the dual-channel mixture-of-experts head with optional
// data-driven linear prediction (DLPC), grounded on the reference's
// compute_mdense_mwdlp10. It maps a sub-GRU's hidden state to
// NBands*SqrtQuantize logits, refined by an additive correction driven by
// the per-band history of previously emitted quantized indices.
//
// The projecting Dense layer's output is organized as two equal-length
// channel blocks, each [signs(LPCOrderMBands), mags(LPCOrderMBands),
// mid(NBands*MidOut)]; within a channel, sign/mag entries are tap-major
// (index tap*NBands+band), matching the last-sample history layout.
type DualFCHead struct {
	Proj Dense // Rows == MDenseOut, Cols == sub-GRU hidden width

	SignAct Activation
	MagAct  Activation
	MidAct  Activation

	// FactorsA/FactorsB are per-position fusion weights of length
	// MDenseOut/2 == 2*LPCOrderMBands+NBands*MidOut, applied as
	// fused[i] = chan0[i]*FactorsA[i] + chan1[i]*FactorsB[i].
	FactorsA []float32
	FactorsB []float32

	// Logits projects the fused mid-logits (NBands*MidOut wide) to
	// NBands*SqrtQuantize output logits, tiled across bands with a shared
	// [SqrtQuantize, MidOut] weight matrix.
	LogitsWeight []float32
	LogitsBias   []float32
	OutAct       Activation

	UseDLPC bool
}

const (
	dualFCHalf     = 2*LPCOrderMBands + NBands*MidOut
	dualFCMidStart = 2 * LPCOrderMBands
)

// dualFCScratch holds all caller-owned buffers a DualFCHead.Forward call
// needs; pre-allocated once by the owning state.
type dualFCScratch struct {
	projOut []float32 // MDenseOut
	fused   []float32 // dualFCHalf
}

func newDualFCScratch() dualFCScratch {
	return dualFCScratch{
		projOut: make([]float32, MDenseOut),
		fused:   make([]float32, dualFCHalf),
	}
}

// Forward computes NBands*SqrtQuantize logits into out, applying the DLPC
// correction from history (history has length DLPCOrder*NBands, tap-major,
// newest tap first) and prevLogits (the previous sample-step's output
// logits, same layout as out, used as the DLPC source values). useDLPC lets
// a caller disable the correction per-stream even when the weight table was
// exported with it; it can never enable a correction the table lacks.
func (d *DualFCHead) Forward(out, hidden []float32, history []int, prevLogits []float32, useDLPC bool, s *dualFCScratch) {
	d.Proj.Act = ActivationLinear
	d.Proj.Forward(s.projOut, hidden)

	chan0 := s.projOut[:dualFCHalf]
	chan1 := s.projOut[dualFCHalf:]

	computeActivation(chan0[:LPCOrderMBands], d.SignAct)
	computeActivation(chan0[LPCOrderMBands:2*LPCOrderMBands], d.MagAct)
	computeActivation(chan0[2*LPCOrderMBands:], d.MidAct)
	computeActivation(chan1[:LPCOrderMBands], d.SignAct)
	computeActivation(chan1[LPCOrderMBands:2*LPCOrderMBands], d.MagAct)
	computeActivation(chan1[2*LPCOrderMBands:], d.MidAct)

	dualFCCombine(s.fused, chan0, d.FactorsA, chan1, d.FactorsB)

	copy(out, d.LogitsBias)
	fcLogitsTiled(out, d.LogitsWeight, SqrtQuantize, MidOut, NBands, s.fused[dualFCMidStart:])
	computeActivation(out, d.OutAct)

	if !d.UseDLPC || !useDLPC || prevLogits == nil {
		return
	}

	signs := s.fused[:LPCOrderMBands]
	mags := s.fused[LPCOrderMBands : 2*LPCOrderMBands]

	for n := 0; n < NBands; n++ {
		base := n * SqrtQuantize

		for k := 0; k < DLPCOrder; k++ {
			tapIdx := k*NBands + n
			lastIdx := history[tapIdx]
			out[base+lastIdx] += signs[tapIdx] * mags[tapIdx] * prevLogits[base+lastIdx]
		}
	}
}
