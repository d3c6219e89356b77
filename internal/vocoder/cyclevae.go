package vocoder

import "math/rand"

// FeatureGenState is the streaming state of the optional CycleVAE
// feature-conversion front-end: per-branch causal-conv memories and GRU
// hidden states, grounded on the reference's run_frame_network_cycvae.
// All scratch buffers are pre-allocated at construction; Convert performs no
// allocation.
type FeatureGenState struct {
	weights *CycleVAEWeights
	rng     *rand.Rand

	encMelMem   []float32
	encExcitMem []float32
	decExcitMem []float32
	decMelMem   []float32
	postMem     []float32

	encMelHidden   []float32
	encExcitHidden []float32
	spkHidden      []float32
	decExcitHidden []float32
	decMelHidden   []float32
	postHidden     []float32

	frameCount int

	melspNorm  []float32
	convWindow []float32 // sized to the widest branch's NbInputs*KernelSize
	convOut    []float32 // sized to the widest hidden width; holds a conv's output before its ToGRU projection
	gruIn      []float32 // sized to 3*widest hidden; holds a ToGRU projection before Step
	zrh        []float32 // Step's own scratch, sized to 3*widest hidden
	recur      []float32 // Step's own scratch, sized to 3*widest hidden

	latMelsp []float32
	latExcit []float32

	spkInput    []float32
	spkTimeVary []float32
	spkCodeAux  []float32

	decExcitInput []float32
	decExcitOut   []float32

	decMelInput []float32
	melspCV     []float32

	postInput []float32
	postOut   []float32
	residual  []float32
}

// NewFeatureGenState allocates converter state for a weight table that
// carries a CycleVAE branch. Returns an error if the table has none.
func NewFeatureGenState(wt *WeightTable, opts ...StateOption) (*FeatureGenState, error) {
	if wt.CycleVAE == nil {
		return nil, errNoConverter
	}

	cfg := defaultStateConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	cv := wt.CycleVAE

	maxHidden3 := EncHiddenDim3
	for _, h := range []int{SpkHiddenDim3, DecHiddenDim3, PostHiddenDim3} {
		if h > maxHidden3 {
			maxHidden3 = h
		}
	}

	maxConvWindow := MelspDim * EncConvKernel
	for _, w := range []int{DecExcitInputWidth * EncConvKernel, DecMelInputWidth * EncConvKernel, PostInputWidth * EncConvKernel} {
		if w > maxConvWindow {
			maxConvWindow = w
		}
	}

	s := &FeatureGenState{
		weights: cv,
		rng:     rand.New(rand.NewSource(cfg.seed)),

		encMelMem:   make([]float32, MelspDim*(EncConvKernel-1)),
		encExcitMem: make([]float32, MelspDim*(EncConvKernel-1)),
		decExcitMem: make([]float32, DecExcitInputWidth*(EncConvKernel-1)),
		decMelMem:   make([]float32, DecMelInputWidth*(EncConvKernel-1)),
		postMem:     make([]float32, PostInputWidth*(EncConvKernel-1)),

		encMelHidden:   make([]float32, EncHiddenDim),
		encExcitHidden: make([]float32, EncHiddenDim),
		spkHidden:      make([]float32, SpkHiddenDim),
		decExcitHidden: make([]float32, DecHiddenDim),
		decMelHidden:   make([]float32, DecHiddenDim),
		postHidden:     make([]float32, PostHiddenDim),

		melspNorm:  make([]float32, MelspDim),
		convWindow: make([]float32, maxConvWindow),
		convOut:    make([]float32, DecHiddenDim), // EncHiddenDim==DecHiddenDim, the widest conv output
		gruIn:      make([]float32, maxHidden3),
		zrh:        make([]float32, maxHidden3),
		recur:      make([]float32, maxHidden3),

		latMelsp: make([]float32, LatDimMelsp),
		latExcit: make([]float32, LatDimExcit),

		spkInput:    make([]float32, SpkGRUInputWidth),
		spkTimeVary: make([]float32, NSpk),
		spkCodeAux:  make([]float32, SpkCodeAuxDim),

		decExcitInput: make([]float32, DecExcitInputWidth),
		decExcitOut:   make([]float32, DecExcitOutDim),

		decMelInput: make([]float32, DecMelInputWidth),
		melspCV:     make([]float32, MelspDim),

		postInput: make([]float32, PostInputWidth),
		postOut:   make([]float32, 2*MelspDim),
		residual:  make([]float32, MelspDim),
	}

	return s, nil
}

// Close is a no-op retained for symmetry with other stateful resources.
func (s *FeatureGenState) Close() {}

// Convert runs one frame of melspIn (raw, un-normalized log-mel) and spkCode
// (NSpk wide) through the converter, returning the converted, denormalized
// mel-spectrogram frame. ready is false for the first FeatureVCConvDelay
// frames, during which the conv memories are still filling and melspCV must
// not be consumed by the caller.
func (s *FeatureGenState) Convert(melspIn, spkCode []float32, lastFrame bool) (melspCV []float32, ready bool) {
	w := s.weights

	copy(s.melspNorm, melspIn)
	w.MelspStats.Normalize(s.melspNorm)

	first := s.frameCount == 0

	// Mel encoder branch.
	if first {
		w.EncMelConv.ReplicatePadLeft(s.encMelMem, s.melspNorm)
	}

	encMelConvOut := s.convOut[:EncHiddenDim]
	w.EncMelConv.Forward(encMelConvOut, s.encMelMem, s.melspNorm, s.convWindow[:MelspDim*EncConvKernel])

	encMelZRH := s.gruIn[:EncHiddenDim3]
	w.EncMelToGRU.Forward(encMelZRH, encMelConvOut)
	w.EncMelGRU.Step(s.encMelHidden, encMelZRH, s.zrh[:EncHiddenDim3], s.recur[:EncHiddenDim3])

	w.EncMelOut.Forward(s.latMelsp, s.encMelHidden)

	// Excitation encoder branch.
	if first {
		w.EncExcitConv.ReplicatePadLeft(s.encExcitMem, s.melspNorm)
	}

	encExcitConvOut := s.convOut[:EncHiddenDim]
	w.EncExcitConv.Forward(encExcitConvOut, s.encExcitMem, s.melspNorm, s.convWindow[:MelspDim*EncConvKernel])

	encExcitZRH := s.gruIn[:EncHiddenDim3]
	w.EncExcitToGRU.Forward(encExcitZRH, encExcitConvOut)
	w.EncExcitGRU.Step(s.encExcitHidden, encExcitZRH, s.zrh[:EncHiddenDim3], s.recur[:EncHiddenDim3])

	w.EncExcitOut.Forward(s.latExcit, s.encExcitHidden)

	// Speaker-conditioned GRU.
	copy(s.spkInput[:NSpk], spkCode)
	copy(s.spkInput[NSpk:NSpk+LatDimExcit], s.latExcit)
	copy(s.spkInput[NSpk+LatDimExcit:], s.latMelsp)

	spkZRH := s.gruIn[:SpkHiddenDim3]
	w.SpkInDense.Forward(spkZRH, s.spkInput)
	w.SpkGRU.Step(s.spkHidden, spkZRH, s.zrh[:SpkHiddenDim3], s.recur[:SpkHiddenDim3])

	w.SpkOut.Forward(s.spkTimeVary, s.spkHidden)

	copy(s.spkCodeAux[:NSpk], spkCode)
	copy(s.spkCodeAux[NSpk:], s.spkTimeVary)

	// Excitation decoder.
	copy(s.decExcitInput[:SpkCodeAuxDim], s.spkCodeAux)
	copy(s.decExcitInput[SpkCodeAuxDim:], s.latExcit)

	if first {
		w.DecExcitConv.ReplicatePadLeft(s.decExcitMem, s.decExcitInput)
	}

	decExcitConvOut := s.convOut[:DecHiddenDim]
	w.DecExcitConv.Forward(decExcitConvOut, s.decExcitMem, s.decExcitInput, s.convWindow[:DecExcitInputWidth*EncConvKernel])

	decExcitZRH := s.gruIn[:DecHiddenDim3]
	w.DecExcitToGRU.Forward(decExcitZRH, decExcitConvOut)
	w.DecExcitGRU.Step(s.decExcitHidden, decExcitZRH, s.zrh[:DecHiddenDim3], s.recur[:DecHiddenDim3])

	w.DecExcitOut.Forward(s.decExcitOut, s.decExcitHidden)

	uvf0 := s.decExcitOut[0:1]
	f0 := s.decExcitOut[1:2]
	uvcap := s.decExcitOut[2:3]
	cap := s.decExcitOut[3:]

	computeActivation(uvf0, ActivationSigmoid)
	computeActivation(uvcap, ActivationSigmoid)
	computeActivation(f0, ActivationTanhShrink)
	computeActivation(cap, ActivationTanhShrink)

	uv := [2]float32{uvf0[0], uvcap[0]}
	uvSlice := uv[:]
	w.UVStats.Normalize(uvSlice)
	uvf0[0], uvcap[0] = uvSlice[0], uvSlice[1]

	// Mel decoder.
	copy(s.decMelInput[:SpkCodeAuxDim], s.spkCodeAux)
	s.decMelInput[SpkCodeAuxDim] = uvf0[0]
	s.decMelInput[SpkCodeAuxDim+1] = f0[0]
	copy(s.decMelInput[SpkCodeAuxDim+2:SpkCodeAuxDim+2+LatDimExcit], s.latExcit)
	copy(s.decMelInput[SpkCodeAuxDim+2+LatDimExcit:], s.latMelsp)

	if first {
		w.DecMelConv.ReplicatePadLeft(s.decMelMem, s.decMelInput)
	}

	decMelConvOut := s.convOut[:DecHiddenDim]
	w.DecMelConv.Forward(decMelConvOut, s.decMelMem, s.decMelInput, s.convWindow[:DecMelInputWidth*EncConvKernel])

	decMelZRH := s.gruIn[:DecHiddenDim3]
	w.DecMelToGRU.Forward(decMelZRH, decMelConvOut)
	w.DecMelGRU.Step(s.decMelHidden, decMelZRH, s.zrh[:DecHiddenDim3], s.recur[:DecHiddenDim3])

	w.DecMelOut.Forward(s.melspCV, s.decMelHidden)

	// Post-net with Laplace residual.
	copy(s.postInput[:SpkCodeAuxDim], s.spkCodeAux)
	s.postInput[SpkCodeAuxDim] = uvf0[0]
	s.postInput[SpkCodeAuxDim+1] = f0[0]
	s.postInput[SpkCodeAuxDim+2] = uvcap[0]
	copy(s.postInput[SpkCodeAuxDim+3:SpkCodeAuxDim+3+CapDim], cap)
	copy(s.postInput[SpkCodeAuxDim+DecExcitOutDim:], s.melspCV)

	if first {
		w.PostConv.ReplicatePadLeft(s.postMem, s.postInput)
	}

	postConvOut := s.convOut[:PostHiddenDim]
	w.PostConv.Forward(postConvOut, s.postMem, s.postInput, s.convWindow[:PostInputWidth*EncConvKernel])

	postZRH := s.gruIn[:PostHiddenDim3]
	w.PostToGRU.Forward(postZRH, postConvOut)
	w.PostGRU.Step(s.postHidden, postZRH, s.zrh[:PostHiddenDim3], s.recur[:PostHiddenDim3])

	w.PostOut.Forward(s.postOut, s.postHidden)

	loc := s.postOut[:MelspDim]
	scale := s.postOut[MelspDim:]
	computeActivation(loc, ActivationTanhShrink)
	computeActivation(scale, ActivationSigmoid)

	sampleLaplace(s.rng, s.residual, loc, scale)

	for i := range s.melspCV {
		s.melspCV[i] += s.residual[i]
	}

	w.MelspStats.Denormalize(s.melspCV)

	s.frameCount++

	if !lastFrame && s.frameCount <= FeatureVCConvDelay {
		return s.melspCV, false
	}

	return s.melspCV, true
}
