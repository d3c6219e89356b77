package vocoder

import (
	"math"
	"math/rand"
)

// VocoderState is the streaming state of the MWDLP10 multiband waveform
// generator, grounded on the reference's MWDLP10NetState / mwdlp10net_synthesize.
// All scratch buffers are pre-allocated at construction; Synthesize performs
// no allocation.
type VocoderState struct {
	weights *VocoderWeights
	runtime Runtime
	rng     *rand.Rand
	cfg     stateConfig

	inputMem    []float32 // FeatureConvStateSize
	normFeature []float32 // FeaturesDim
	convWindow  []float32 // FeaturesDim*InConvKernel
	convOut     []float32 // FeatureConvOutDim

	condA []float32 // RNNMainNeurons3, constant for the whole frame
	condB []float32 // RNNSubNeurons3
	condC []float32 // RNNSubNeurons3

	stateA []float32 // RNNMainNeurons
	stateB []float32 // RNNSubNeurons
	stateC []float32 // RNNSubNeurons

	gruAInput          []float32 // RNNMainNeurons3
	gruAZrh, gruARecur []float32 // RNNMainNeurons3, GRUA.Step's own scratch

	projAB             []float32 // RNNSubNeurons3, GRUAToB projection of state_a
	gruBInput          []float32 // RNNSubNeurons3
	gruBZrh, gruBRecur []float32 // RNNSubNeurons3, GRUB.Step's own scratch

	projBC             []float32 // RNNSubNeurons3, GRUBToC projection of state_b
	gruCInput          []float32 // RNNSubNeurons3
	gruCZrh, gruCRecur []float32 // RNNSubNeurons3, GRUC.Step's own scratch

	coarseLogits, fineLogits         []float32 // NBands*SqrtQuantize
	prevCoarseLogits, prevFineLogits []float32 // previous sample-step's logits, the DLPC source
	pdfScratch, cdfScratch           []float32 // SqrtQuantize, per-band sampling scratch
	coarseHeadScratch, fineHeadScratch dualFCScratch

	coarse, fine []int // NBands, this sample-step's quantized indices

	// lastCoarse/lastFine hold DLPCOrder*NBands previously emitted indices,
	// tap-major newest-first: [[band_0..band_{N-1}]_newest, ..., _oldest].
	lastCoarse, lastFine []int

	// bufferOutput holds one band-step's dequantized pcm contribution. Only
	// indices [0,NBands) are ever written; [NBands,NBandsSqr) stay zero for
	// the life of the state, realizing the PQMF upsample-by-NBands
	// zero-stuffing directly in the ring layout.
	bufferOutput []float32

	pqmfRing  []float32 // PQMFStateSize, the live synthesis ring
	firstRing []float32 // PQMFExtendedStateSize, one-time zero-pad-left startup snapshot
	lastRing  []float32 // PQMFExtendedStateSize, one-time zero-pad-right closing snapshot

	deemphMem float32

	frameCount      int
	sampleCount     int
	firstFlag       bool
	sampleStepCount int // total sample-steps ever run, gates DLPC's "no previous logits" case

	lastFeature []float32 // FeaturesDim, the last normalized input, replayed during flush
}

// NewVocoderState allocates waveform-generator state for a weight table.
// The last-coarse history starts at InitLastSample; every other buffer,
// the last-fine history included, starts zeroed.
func NewVocoderState(wt *WeightTable, opts ...StateOption) *VocoderState {
	cfg := defaultStateConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &VocoderState{
		weights: &wt.Vocoder,
		rng:     rand.New(rand.NewSource(cfg.seed)),
		cfg:     cfg,

		inputMem:    make([]float32, FeatureConvStateSize),
		normFeature: make([]float32, FeaturesDim),
		convWindow:  make([]float32, FeaturesDim*InConvKernel),
		convOut:     make([]float32, FeatureConvOutDim),

		condA: make([]float32, RNNMainNeurons3),
		condB: make([]float32, RNNSubNeurons3),
		condC: make([]float32, RNNSubNeurons3),

		stateA: make([]float32, RNNMainNeurons),
		stateB: make([]float32, RNNSubNeurons),
		stateC: make([]float32, RNNSubNeurons),

		gruAInput: make([]float32, RNNMainNeurons3),
		gruAZrh:   make([]float32, RNNMainNeurons3),
		gruARecur: make([]float32, RNNMainNeurons3),

		projAB:    make([]float32, RNNSubNeurons3),
		gruBInput: make([]float32, RNNSubNeurons3),
		gruBZrh:   make([]float32, RNNSubNeurons3),
		gruBRecur: make([]float32, RNNSubNeurons3),

		projBC:    make([]float32, RNNSubNeurons3),
		gruCInput: make([]float32, RNNSubNeurons3),
		gruCZrh:   make([]float32, RNNSubNeurons3),
		gruCRecur: make([]float32, RNNSubNeurons3),

		coarseLogits:        make([]float32, NBands*SqrtQuantize),
		fineLogits:          make([]float32, NBands*SqrtQuantize),
		prevCoarseLogits:    make([]float32, NBands*SqrtQuantize),
		prevFineLogits:      make([]float32, NBands*SqrtQuantize),
		pdfScratch:          make([]float32, SqrtQuantize),
		cdfScratch:          make([]float32, SqrtQuantize),
		coarseHeadScratch:   newDualFCScratch(),
		fineHeadScratch:     newDualFCScratch(),

		coarse: make([]int, NBands),
		fine:   make([]int, NBands),

		lastCoarse: make([]int, LPCOrderMBands),
		lastFine:   make([]int, LPCOrderMBands),

		bufferOutput: make([]float32, NBandsSqr),
		pqmfRing:     make([]float32, PQMFStateSize),
		firstRing:    make([]float32, PQMFExtendedStateSize),
		lastRing:     make([]float32, PQMFExtendedStateSize),

		lastFeature: make([]float32, FeaturesDim),
	}

	for i := range s.lastCoarse {
		s.lastCoarse[i] = InitLastSample
	}

	if cfg.runtimeFactory != nil {
		s.runtime = cfg.runtimeFactory(s.weights)
	} else {
		s.runtime = NewNativeRuntime(s.weights)
	}

	return s
}

// Close is a no-op retained for symmetry with other stateful resources.
func (s *VocoderState) Close() {}

// RuntimeName reports which Runtime backend is computing the frame network.
func (s *VocoderState) RuntimeName() string { return s.runtime.Name() }

// Synthesize advances the stream by one feature frame, writing emitted
// samples into out (which must have capacity MaxNOutput, or FlushMaxNOutput
// on the lastFrame call) and returning how many were written. features must
// have length FeaturesDim.
func (s *VocoderState) Synthesize(out []int16, features []float32, lastFrame bool) (int, error) {
	if len(features) != FeaturesDim {
		return 0, ErrFeatureSize
	}

	if s.frameCount < FeatureConvDelay {
		s.warmup(features)
		return 0, nil
	}

	if !lastFrame {
		s.conditionFrame(features)
		return s.runSampleSteps(out), nil
	}

	if s.sampleCount < PQMFDelay {
		return 0, nil
	}

	return s.flush(out), nil
}

// warmup fills the input conv memory for the first FeatureConvDelay frames;
// nothing downstream of the conv is meaningful yet, so its output is
// computed (into scratch) and discarded rather than skipped, keeping this
// path identical to the steady one except for the sample-step loop.
func (s *VocoderState) warmup(features []float32) {
	copy(s.normFeature, features)
	s.weights.FeatureNorm.Normalize(s.normFeature)

	first := s.frameCount == 0
	s.runFrameNetwork(s.normFeature, first)

	copy(s.lastFeature, s.normFeature)
	s.frameCount++
}

// conditionFrame normalizes features, advances the frame network, and
// records the normalized frame for a later flush replay.
func (s *VocoderState) conditionFrame(features []float32) {
	copy(s.normFeature, features)
	s.weights.FeatureNorm.Normalize(s.normFeature)

	s.runFrameNetwork(s.normFeature, false)

	copy(s.lastFeature, s.normFeature)
	s.frameCount++
}

// runFrameNetwork runs the input causal conv natively, then delegates the
// three per-frame condition-vector projections to s.runtime — the one seam
// in the frame network that can run on an alternate inference backend.
func (s *VocoderState) runFrameNetwork(normFeature []float32, first bool) {
	w := s.weights

	if first {
		w.InputConv.ReplicatePadLeft(s.inputMem, normFeature)
	}

	w.InputConv.Forward(s.convOut, s.inputMem, normFeature, s.convWindow)

	if err := s.runtime.FrameNetwork(s.condA, s.condB, s.condC, s.convOut); err != nil {
		// The frame network has no error return; a backend failure here is
		// unrecoverable mid-stream, so fall back to the always-available
		// native projections rather than silently emitting garbage audio.
		NewNativeRuntime(w).FrameNetwork(s.condA, s.condB, s.condC, s.convOut) //nolint:errcheck
	}
}

// runSampleSteps runs NSampleBands sample-steps for the current frame
// condition, emitting samples per the sample_count gate, and returns the
// total int16 count written.
func (s *VocoderState) runSampleSteps(out []int16) int {
	n := 0

	for i := 0; i < NSampleBands; i++ {
		s.computeSampleStep()

		if s.sampleCount >= PQMFDelay {
			if s.firstFlag {
				n += s.synthSteady(out[n:])
			} else {
				n += s.synthFirstBurst(out[n:])
			}
		}

		s.sampleCount += NBands
	}

	return n
}

// flush replays the last seen feature frame for FeatureConvDelay iterations
// to drain the frame-side conv delay, then emits a final PQMFDelay samples
// from a zero-pad-right snapshot of the ring. Called only once sample_count
// has reached PQMFDelay. Every per-step emission here is steady; if the
// one-time startup burst has not run yet (first_flag unset, as when the
// last frame follows a single post-warmup frame), it is not emitted.
func (s *VocoderState) flush(out []int16) int {
	n := 0

	for l := 0; l < FeatureConvDelay; l++ {
		s.runFrameNetwork(s.lastFeature, false)

		for i := 0; i < NSampleBands; i++ {
			s.computeSampleStep()
			n += s.synthSteady(out[n:])
			s.sampleCount += NBands
		}
	}

	for i := range s.lastRing {
		s.lastRing[i] = 0
	}

	copy(s.lastRing[:PQMFOrderMBands], s.pqmfRing[NBandsSqr:NBandsSqr+PQMFOrderMBands])

	w := s.weights

	for i := 0; i < PQMFDelay; i++ {
		window := s.lastRing[i*NBands : i*NBands+PQMFTaps]
		out[n] = s.filterSample(w.PQMFSynthesis, window)
		n++
	}

	return n
}

// computeSampleStep runs the coarse branch, the fine branch, dequantizes
// the band outputs, and rotates the history/ring buffers. It does not emit
// any waveform samples; callers decide emission from sample_count/first_flag.
func (s *VocoderState) computeSampleStep() {
	w := s.weights

	// Coarse branch.
	copy(s.gruAInput, s.condA)

	for band := 0; band < NBands; band++ {
		w.CoarseHistEmbed.AddInto(s.gruAInput, band, s.lastCoarse[band])
		w.FineHistEmbed.AddInto(s.gruAInput, band, s.lastFine[band])
	}

	w.GRUA.Step(s.stateA, s.gruAInput, s.gruAZrh, s.gruARecur)

	copy(s.gruBInput, s.condB)
	w.GRUAToB.Forward(s.projAB, s.stateA)

	for i := range s.gruBInput {
		s.gruBInput[i] += s.projAB[i]
	}

	w.GRUB.Step(s.stateB, s.gruBInput, s.gruBZrh, s.gruBRecur)

	var prevCoarse, prevFine []float32
	if s.sampleStepCount > 0 {
		prevCoarse = s.prevCoarseLogits
		prevFine = s.prevFineLogits
	}

	w.CoarseHead.Forward(s.coarseLogits, s.stateB, s.lastCoarse, prevCoarse, s.cfg.useDLPC, &s.coarseHeadScratch)

	for band := 0; band < NBands; band++ {
		slice := s.coarseLogits[band*SqrtQuantize : (band+1)*SqrtQuantize]
		s.coarse[band] = sampleFromPDF(s.rng, slice, s.pdfScratch, s.cdfScratch)
	}

	// Fine branch.
	copy(s.gruCInput, s.condC)

	for band := 0; band < NBands; band++ {
		w.CoarseToFineEmbed.AddInto(s.gruCInput, band, s.coarse[band])
	}

	w.GRUBToC.Forward(s.projBC, s.stateB)

	for i := range s.gruCInput {
		s.gruCInput[i] += s.projBC[i]
	}

	w.GRUC.Step(s.stateC, s.gruCInput, s.gruCZrh, s.gruCRecur)

	w.FineHead.Forward(s.fineLogits, s.stateC, s.lastFine, prevFine, s.cfg.useDLPC, &s.fineHeadScratch)

	for band := 0; band < NBands; band++ {
		slice := s.fineLogits[band*SqrtQuantize : (band+1)*SqrtQuantize]
		s.fine[band] = sampleFromPDF(s.rng, slice, s.pdfScratch, s.cdfScratch)
	}

	copy(s.prevCoarseLogits, s.coarseLogits)
	copy(s.prevFineLogits, s.fineLogits)
	s.sampleStepCount++

	// Dequantize.
	for band := 0; band < NBands; band++ {
		s.bufferOutput[band] = w.MuLawTable[s.coarse[band]*SqrtQuantize+s.fine[band]] * NBands
	}

	// History update: shift one band-slot, write new indices at the head.
	copy(s.lastCoarse[NBands:], s.lastCoarse[:LPCOrderMBands-NBands])
	copy(s.lastCoarse[:NBands], s.coarse)
	copy(s.lastFine[NBands:], s.lastFine[:LPCOrderMBands-NBands])
	copy(s.lastFine[:NBands], s.fine)

	// PQMF ring update: shift left by NBandsSqr, append the new NBandsSqr
	// block (bufferOutput, whose tail NBandsSqr-NBands entries are always 0).
	copy(s.pqmfRing[:PQMFStateSize-NBandsSqr], s.pqmfRing[NBandsSqr:])
	copy(s.pqmfRing[PQMFStateSize-NBandsSqr:], s.bufferOutput)
}

// synthSteady synthesizes NBands samples, one per ring phase, from the live
// PQMF ring.
func (s *VocoderState) synthSteady(out []int16) int {
	w := s.weights

	for j := 0; j < NBands; j++ {
		window := s.pqmfRing[j*NBands : j*NBands+PQMFTaps]
		out[j] = s.filterSample(w.PQMFSynthesis, window)
	}

	return NBands
}

// synthFirstBurst runs once per stream, the first time sample_count crosses
// PQMFDelay: it builds a zero-pad-left snapshot of the ring so the filter
// can synthesize FirstNOutput samples that have no real history further
// back, then falls through to the normal NBands-sample steady synthesis.
func (s *VocoderState) synthFirstBurst(out []int16) int {
	w := s.weights

	for i := range s.firstRing {
		s.firstRing[i] = 0
	}

	copy(s.firstRing[PQMFDelayMBands:PQMFDelayMBands+PQMFDelayMBands+FirstNOutputMBands],
		s.pqmfRing[:PQMFDelayMBands+FirstNOutputMBands])

	n := 0

	for j := 0; j < FirstNOutput; j++ {
		window := s.firstRing[j*NBands : j*NBands+PQMFTaps]
		out[n] = s.filterSample(w.PQMFSynthesis, window)
		n++
	}

	s.firstFlag = true
	n += s.synthSteady(out[n:])

	return n
}

// SynthesizeWithConversion is Synthesize with a CycleVAE front-end spliced
// in: melspIn is converted by gen before conditioning the frame network,
// grounded on the reference's cyclevae_post_melsp_excit_spk_convert_mwdlp10net_synthesize.
// gen must have been built from the same WeightTable as s (or one carrying
// an equivalent CycleVAE branch); spkCode must have length NSpk.
func (s *VocoderState) SynthesizeWithConversion(out []int16, gen *FeatureGenState, melspIn, spkCode []float32, lastFrame bool) (int, error) {
	if gen == nil {
		return 0, ErrNoConverter
	}

	if len(melspIn) != MelspDim {
		return 0, ErrFeatureSize
	}

	if len(spkCode) != NSpk {
		return 0, ErrSpeakerCodeSize
	}

	melspCV, ready := gen.Convert(melspIn, spkCode, lastFrame)
	if !ready {
		return 0, nil
	}

	return s.Synthesize(out, melspCV, lastFrame)
}

// filterSample runs the PQMF synthesis dot product over window, clamps,
// de-emphasizes, clamps again, and rounds to a signed 16-bit sample.
func (s *VocoderState) filterSample(filter, window []float32) int16 {
	var tmp float32

	for k, f := range filter {
		tmp += f * window[k]
	}

	tmp = clamp(tmp, ClampLow, ClampHigh)
	tmp += PreEmphasis * s.deemphMem
	s.deemphMem = tmp
	tmp = clamp(tmp, ClampLow, ClampHigh)

	return int16(math.Round(float64(tmp) * 32768))
}
