package vocoder

import (
	"fmt"
	"math"

	"github.com/ishine/mwdlp-go/internal/safetensors"
	"github.com/ishine/mwdlp-go/internal/weights"
)

// NormStats is a per-dimension (mean, std) pair applied as (x-mean)/std and
// its inverse. std is guaranteed non-zero by loadNormStats.
type NormStats struct {
	Mean []float32
	Std  []float32
}

func (n *NormStats) Normalize(x []float32)   { normalize(x, n.Mean, n.Std) }
func (n *NormStats) Denormalize(x []float32) { denormalize(x, n.Mean, n.Std) }

// VocoderWeights holds every parameterized layer of the MWDLP10 waveform
// generator: the input feature conv and frame-conditioning dense layers,
// the main sparse frame-GRU, the coarse/fine sub-GRUs and their embeddings,
// and the two dual-FC output heads.
type VocoderWeights struct {
	FeatureNorm NormStats

	InputConv Conv1DLinear

	// CondDenseA/B/C each project the per-frame conv output to one of the
	// three GRUs' gate preactivation space; all three are constant for the
	// whole frame (gru_a_condition, gru_b_condition, gru_c_condition).
	CondDenseA Dense
	CondDenseB Dense
	CondDenseC Dense

	GRUA SparseGRU // main frame-conditioning recurrence (gru_a); pre-formed input

	// GRUAToB/GRUBToC project the just-updated gru_a/gru_b hidden state into
	// gru_b's/gru_c's gate preactivation space, added on top of the frame
	// condition every sample-step (the reference's W*state_a / W*state_b).
	GRUAToB DenseLinear
	GRUB    StandardGRU // pre-formed input
	GRUBToC DenseLinear
	GRUC    StandardGRU // pre-formed input

	// CoarseHistEmbed/FineHistEmbed contribute into gru_a's input, selected
	// by the last-coarse/last-fine history (the reference's per-band
	// embedding lookups feeding the main GRU every sample-step).
	CoarseHistEmbed Embedding
	FineHistEmbed   Embedding
	// CoarseToFineEmbed contributes into gru_c's input, selected by the
	// just-sampled coarse value of each band (the reference's embed_coarse
	// term in gru_c_input).
	CoarseToFineEmbed Embedding

	CoarseHead DualFCHead
	FineHead   DualFCHead

	PQMFSynthesis []float32 // PQMFTaps, the synthesis filterbank impulse response
}

// CycleVAEWeights holds the optional feature-conversion front-end: parallel
// mel/excitation encoders, a speaker-conditioned GRU, excitation/mel
// decoders, and a post-net with a Laplace residual, grounded on the
// reference's run_frame_network_cycvae.
type CycleVAEWeights struct {
	MelspStats NormStats
	UVStats    NormStats // normalizes (uvf0, uvcap) after their sigmoid activation

	// SpkCoords holds each of the NSpk training speakers' fixed 2-D
	// interpolation coordinate, flattened [NSpk][2]; consumed by
	// SpeakerCoordToCode/CodeToSpeakerCoord.
	SpkCoords []float32

	// Every branch below follows the vocoder's own conv -> dense -> GRU
	// shape: a causal conv1d produces a hidden-width frame vector, a dense
	// layer projects it to the GRU's 3*hidden gate preactivation space, and
	// the GRU (pre-formed input, no self-projection) updates its state.
	EncMelConv   Conv1DLinear
	EncMelToGRU  DenseLinear
	EncMelGRU    SparseGRU
	EncMelOut    DenseLinear // projects to LatDimMelsp

	EncExcitConv  Conv1DLinear
	EncExcitToGRU DenseLinear
	EncExcitGRU   SparseGRU
	EncExcitOut   DenseLinear // projects to LatDimExcit

	// SpkInDense projects [spk_code, lat_excit, lat_melsp] directly to
	// SpkGRU's gate preactivation space (no conv stage: this branch is not
	// causal-conv fed in the reference). SpkOut projects the resulting
	// hidden state to the time-varying speaker code (NSpk wide); spk_code_aux
	// is [spk_code, spk_time_varying] formed by the caller, not stored here.
	SpkInDense DenseLinear
	SpkGRU     SparseGRU
	SpkOut     DenseLinear

	// DecExcit* consumes [spk_code_aux, lat_excit] and emits (uvf0, f0,
	// uvcap, cap[CapDim]) in that flattened order.
	DecExcitConv  Conv1DLinear
	DecExcitToGRU DenseLinear
	DecExcitGRU   SparseGRU
	DecExcitOut   DenseLinear

	// DecMel* consumes [spk_code_aux, uvf0, f0, lat_excit, lat_melsp] and
	// emits normalized melsp_cv.
	DecMelConv  Conv1DLinear
	DecMelToGRU DenseLinear
	DecMelGRU   SparseGRU
	DecMelOut   DenseLinear

	// Post* consumes [spk_code_aux, uvf0, f0, uvcap, cap, melsp_cv] and
	// emits (loc, scale), each MelspDim wide, for the Laplace residual.
	PostConv  Conv1DLinear
	PostToGRU DenseLinear
	PostGRU   SparseGRU
	PostOut   DenseLinear
}

// WeightTable is the immutable, fully materialized parameter set for a
// vocoder stream, optionally including the CycleVAE converter. Every GRU,
// dense, and embedding field is ready to step/forward with no further
// per-call resolution; it is safe for concurrent read-only use by multiple
// independently-constructed VocoderState/FeatureGenState instances.
type WeightTable struct {
	Vocoder  VocoderWeights
	CycleVAE *CycleVAEWeights // nil if the export carries no converter branch

	MuLawTable [Quantize]float32 // precomputed dequantization table, index == quantized code

	store *safetensors.Store
}

// LoadWeightTable reads a safetensors file and resolves every layer this
// package's streaming engine needs. The converter branch is loaded only if
// the file's "cyclevae.enc_melsp.*" prefix is present; a vocoder built from
// a converter-less export runs Synthesize but rejects SynthesizeWithConversion.
func LoadWeightTable(path string) (*WeightTable, error) {
	store, err := safetensors.OpenStore(path, safetensors.StoreOptions{})
	if err != nil {
		return nil, fmt.Errorf("vocoder: open weight table %s: %w", path, err)
	}

	return loadWeightTable(weights.New(store))
}

// LoadWeightTableFromStore is LoadWeightTable for a store the caller already
// opened (e.g. from an embedded byte slice via safetensors.OpenStoreFromBytes).
func LoadWeightTableFromStore(store *safetensors.Store) (*WeightTable, error) {
	return loadWeightTable(weights.New(store))
}

func loadWeightTable(root *weights.VarBuilder) (*WeightTable, error) {
	wt := &WeightTable{store: root.Store()}

	voc, err := loadVocoderWeights(root.Path("vocoder"))
	if err != nil {
		return nil, fmt.Errorf("vocoder: load vocoder weights: %w", err)
	}

	wt.Vocoder = *voc

	if root.Has("cyclevae.enc_melsp.conv.weight") {
		cv, err := loadCycleVAEWeights(root.Path("cyclevae"))
		if err != nil {
			return nil, fmt.Errorf("vocoder: load cyclevae weights: %w", err)
		}

		wt.CycleVAE = cv
	}

	buildMuLawTable(&wt.MuLawTable)

	return wt, nil
}

// Close releases the underlying safetensors store. Weight slices already
// resolved into WeightTable fields remain valid (they alias the decoded
// float32 buffers, not the raw file bytes) after Close returns.
func (wt *WeightTable) Close() {
	if wt.store != nil {
		wt.store.Close()
		wt.store = nil
	}
}

func loadVocoderWeights(vb *weights.VarBuilder) (*VocoderWeights, error) {
	var v VocoderWeights

	var err error

	if v.FeatureNorm, err = loadNormStats(vb, "feature_norm", FeaturesDim); err != nil {
		return nil, err
	}

	if v.InputConv, err = loadConv1D(vb.Path("input_conv"), FeaturesDim, FeatureConvOutDim, InConvKernel); err != nil {
		return nil, err
	}

	if v.CondDenseA, err = loadDense(vb.Path("cond_a"), RNNMainNeurons3, FeatureConvOutDim, ActivationLinear); err != nil {
		return nil, err
	}

	if v.CondDenseB, err = loadDense(vb.Path("cond_b"), RNNSubNeurons3, FeatureConvOutDim, ActivationLinear); err != nil {
		return nil, err
	}

	if v.CondDenseC, err = loadDense(vb.Path("cond_c"), RNNSubNeurons3, FeatureConvOutDim, ActivationLinear); err != nil {
		return nil, err
	}

	if v.GRUA, err = loadSparseGRU(vb.Path("gru_a"), RNNMainNeurons, RNNMainNeurons3, ActivationTanh); err != nil {
		return nil, err
	}

	if v.GRUAToB, err = loadDenseLinear(vb.Path("gru_a_to_b"), RNNSubNeurons3, RNNMainNeurons); err != nil {
		return nil, err
	}

	if v.GRUB, err = loadStandardGRUPreformed(vb.Path("gru_b"), RNNSubNeurons, ActivationTanh); err != nil {
		return nil, err
	}

	if v.GRUBToC, err = loadDenseLinear(vb.Path("gru_b_to_c"), RNNSubNeurons3, RNNSubNeurons); err != nil {
		return nil, err
	}

	if v.GRUC, err = loadStandardGRUPreformed(vb.Path("gru_c"), RNNSubNeurons, ActivationTanh); err != nil {
		return nil, err
	}

	if v.CoarseHistEmbed, err = loadEmbedding(vb.Path("embed_coarse_hist"), NBands, SqrtQuantize, RNNMainNeurons3); err != nil {
		return nil, err
	}

	if v.FineHistEmbed, err = loadEmbedding(vb.Path("embed_fine_hist"), NBands, SqrtQuantize, RNNMainNeurons3); err != nil {
		return nil, err
	}

	if v.CoarseToFineEmbed, err = loadEmbedding(vb.Path("embed_coarse_to_fine"), NBands, SqrtQuantize, RNNSubNeurons3); err != nil {
		return nil, err
	}

	if v.CoarseHead, err = loadDualFCHead(vb.Path("out_coarse"), RNNSubNeurons); err != nil {
		return nil, err
	}

	if v.FineHead, err = loadDualFCHead(vb.Path("out_fine"), RNNSubNeurons); err != nil {
		return nil, err
	}

	pqmf, shape, err := vb.Raw("pqmf_synthesis")
	if err != nil {
		return nil, err
	}

	if len(pqmf) != PQMFTaps {
		return nil, fmt.Errorf("vocoder: pqmf_synthesis has %d taps (shape %v), want %d", len(pqmf), shape, PQMFTaps)
	}

	v.PQMFSynthesis = pqmf

	return &v, nil
}

func loadCycleVAEWeights(vb *weights.VarBuilder) (*CycleVAEWeights, error) {
	var c CycleVAEWeights

	var err error

	if c.MelspStats, err = loadNormStats(vb, "melsp_stats", MelspDim); err != nil {
		return nil, err
	}

	if c.UVStats, err = loadNormStats(vb, "uv_stats", 2); err != nil {
		return nil, err
	}

	spkCoords, shape, err := vb.Raw("spk_coords")
	if err != nil {
		return nil, err
	}

	if !shapeMatches(shape, []int64{int64(NSpk), 2}) {
		return nil, fmt.Errorf("vocoder: spk_coords has shape %v, want [%d, 2]", shape, NSpk)
	}

	c.SpkCoords = spkCoords

	if c.EncMelConv, err = loadConv1D(vb.Path("enc_melsp").Path("conv"), MelspDim, EncHiddenDim, EncConvKernel); err != nil {
		return nil, err
	}

	if c.EncMelToGRU, err = loadDenseLinear(vb.Path("enc_melsp").Path("to_gru"), EncHiddenDim3, EncHiddenDim); err != nil {
		return nil, err
	}

	if c.EncMelGRU, err = loadSparseGRU(vb.Path("enc_melsp").Path("gru"), EncHiddenDim, EncHiddenDim3, ActivationTanh); err != nil {
		return nil, err
	}

	if c.EncMelOut, err = loadDenseLinear(vb.Path("enc_melsp").Path("out"), LatDimMelsp, EncHiddenDim); err != nil {
		return nil, err
	}

	if c.EncExcitConv, err = loadConv1D(vb.Path("enc_excit").Path("conv"), MelspDim, EncHiddenDim, EncConvKernel); err != nil {
		return nil, err
	}

	if c.EncExcitToGRU, err = loadDenseLinear(vb.Path("enc_excit").Path("to_gru"), EncHiddenDim3, EncHiddenDim); err != nil {
		return nil, err
	}

	if c.EncExcitGRU, err = loadSparseGRU(vb.Path("enc_excit").Path("gru"), EncHiddenDim, EncHiddenDim3, ActivationTanh); err != nil {
		return nil, err
	}

	if c.EncExcitOut, err = loadDenseLinear(vb.Path("enc_excit").Path("out"), LatDimExcit, EncHiddenDim); err != nil {
		return nil, err
	}

	if c.SpkInDense, err = loadDenseLinear(vb.Path("gru_spk").Path("in"), SpkHiddenDim3, SpkGRUInputWidth); err != nil {
		return nil, err
	}

	if c.SpkGRU, err = loadSparseGRU(vb.Path("gru_spk"), SpkHiddenDim, SpkHiddenDim3, ActivationTanh); err != nil {
		return nil, err
	}

	if c.SpkOut, err = loadDenseLinear(vb.Path("spk_out"), NSpk, SpkHiddenDim); err != nil {
		return nil, err
	}

	if c.DecExcitConv, err = loadConv1D(vb.Path("dec_excit").Path("conv"), DecExcitInputWidth, DecHiddenDim, EncConvKernel); err != nil {
		return nil, err
	}

	if c.DecExcitToGRU, err = loadDenseLinear(vb.Path("dec_excit").Path("to_gru"), DecHiddenDim3, DecHiddenDim); err != nil {
		return nil, err
	}

	if c.DecExcitGRU, err = loadSparseGRU(vb.Path("dec_excit").Path("gru"), DecHiddenDim, DecHiddenDim3, ActivationTanh); err != nil {
		return nil, err
	}

	if c.DecExcitOut, err = loadDenseLinear(vb.Path("dec_excit").Path("out"), DecExcitOutDim, DecHiddenDim); err != nil {
		return nil, err
	}

	if c.DecMelConv, err = loadConv1D(vb.Path("dec_melsp").Path("conv"), DecMelInputWidth, DecHiddenDim, EncConvKernel); err != nil {
		return nil, err
	}

	if c.DecMelToGRU, err = loadDenseLinear(vb.Path("dec_melsp").Path("to_gru"), DecHiddenDim3, DecHiddenDim); err != nil {
		return nil, err
	}

	if c.DecMelGRU, err = loadSparseGRU(vb.Path("dec_melsp").Path("gru"), DecHiddenDim, DecHiddenDim3, ActivationTanh); err != nil {
		return nil, err
	}

	if c.DecMelOut, err = loadDenseLinear(vb.Path("dec_melsp").Path("out"), MelspDim, DecHiddenDim); err != nil {
		return nil, err
	}

	if c.PostConv, err = loadConv1D(vb.Path("post").Path("conv"), PostInputWidth, PostHiddenDim, EncConvKernel); err != nil {
		return nil, err
	}

	if c.PostToGRU, err = loadDenseLinear(vb.Path("post").Path("to_gru"), PostHiddenDim3, PostHiddenDim); err != nil {
		return nil, err
	}

	if c.PostGRU, err = loadSparseGRU(vb.Path("post").Path("gru"), PostHiddenDim, PostHiddenDim3, ActivationTanh); err != nil {
		return nil, err
	}

	if c.PostOut, err = loadDenseLinear(vb.Path("post").Path("out"), 2*MelspDim, PostHiddenDim); err != nil {
		return nil, err
	}

	return &c, nil
}

func loadNormStats(vb *weights.VarBuilder, prefix string, dim int) (NormStats, error) {
	sub := vb.Path(prefix)

	mean, _, err := sub.Raw("mean")
	if err != nil {
		return NormStats{}, err
	}

	std, _, err := sub.Raw("std")
	if err != nil {
		return NormStats{}, err
	}

	if len(mean) != dim || len(std) != dim {
		return NormStats{}, fmt.Errorf("vocoder: %s norm stats have dims (%d,%d), want %d", prefix, len(mean), len(std), dim)
	}

	for i, s := range std {
		if s <= 0 {
			return NormStats{}, fmt.Errorf("vocoder: %s norm stats std[%d]=%v must be > 0", prefix, i, s)
		}
	}

	return NormStats{Mean: mean, Std: std}, nil
}

func loadDense(vb *weights.VarBuilder, rows, cols int, defaultAct Activation) (Dense, error) {
	w, colStride, err := loadMatrix(vb, "weight", rows, cols)
	if err != nil {
		return Dense{}, err
	}

	bias, _, err := vb.Raw("bias")
	if err != nil {
		return Dense{}, err
	}

	if len(bias) != rows {
		return Dense{}, fmt.Errorf("vocoder: dense bias has %d entries, want %d", len(bias), rows)
	}

	act, err := resolveActivation(vb, defaultAct)
	if err != nil {
		return Dense{}, err
	}

	return Dense{Weight: w, Bias: bias, Rows: rows, Cols: cols, ColStride: colStride, Act: act}, nil
}

func loadDenseLinear(vb *weights.VarBuilder, rows, cols int) (DenseLinear, error) {
	w, colStride, err := loadMatrix(vb, "weight", rows, cols)
	if err != nil {
		return DenseLinear{}, err
	}

	bias, _, err := vb.Raw("bias")
	if err != nil {
		return DenseLinear{}, err
	}

	if len(bias) != rows {
		return DenseLinear{}, fmt.Errorf("vocoder: dense-linear bias has %d entries, want %d", len(bias), rows)
	}

	return DenseLinear{Weight: w, Bias: bias, Rows: rows, Cols: cols, ColStride: colStride}, nil
}

func loadConv1D(vb *weights.VarBuilder, nbInputs, nbNeurons, kernelSize int) (Conv1DLinear, error) {
	cols := nbInputs * kernelSize

	w, colStride, err := loadMatrix(vb, "weight", nbNeurons, cols)
	if err != nil {
		return Conv1DLinear{}, err
	}

	bias, _, err := vb.Raw("bias")
	if err != nil {
		return Conv1DLinear{}, err
	}

	if len(bias) != nbNeurons {
		return Conv1DLinear{}, fmt.Errorf("vocoder: conv1d bias has %d entries, want %d", len(bias), nbNeurons)
	}

	return Conv1DLinear{
		Weight: w, Bias: bias,
		NbInputs: nbInputs, NbNeurons: nbNeurons, KernelSize: kernelSize,
		ColStride: colStride,
	}, nil
}

// loadMatrix resolves a [rows, cols] (or [rows, colStride] padded) weight
// tensor stored transposed as [cols, rows]-major for sgemvAccum's column-walk
// access pattern, matching the reference nnet_data.c export convention.
// colStride equals rows unless the export pads to a tiling boundary, encoded
// via the tensor's declared shape[1] when it exceeds rows.
func loadMatrix(vb *weights.VarBuilder, name string, rows, cols int) ([]float32, int, error) {
	data, shape, err := vb.Raw(name)
	if err != nil {
		return nil, 0, err
	}

	if len(shape) != 2 {
		return nil, 0, fmt.Errorf("vocoder: matrix %q has shape %v, want rank 2", name, shape)
	}

	colStride := int(shape[1])
	if int(shape[0]) != cols || colStride < rows {
		return nil, 0, fmt.Errorf("vocoder: matrix %q has shape %v, want [%d, >=%d]", name, shape, cols, rows)
	}

	if len(data) != cols*colStride {
		return nil, 0, fmt.Errorf("vocoder: matrix %q has %d floats, want %d", name, len(data), cols*colStride)
	}

	return data, colStride, nil
}

func loadStandardGRUPreformed(vb *weights.VarBuilder, hidden int, defaultAct Activation) (StandardGRU, error) {
	recurW, recurCols, err := loadMatrix(vb, "recur_weight", 3*hidden, hidden)
	if err != nil {
		return StandardGRU{}, err
	}

	recurBias, _, err := vb.Raw("recur_bias")
	if err != nil {
		return StandardGRU{}, err
	}

	act, err := resolveActivation(vb, defaultAct)
	if err != nil {
		return StandardGRU{}, err
	}

	return StandardGRU{
		Hidden: hidden, RecurWeight: recurW, RecurBias: recurBias, RecurCols: recurCols,
		Act: act,
	}, nil
}

func loadSparseGRU(vb *weights.VarBuilder, hidden, hidden3 int, defaultAct Activation) (SparseGRU, error) {
	diag, _, err := vb.Raw("diagonal")
	if err != nil {
		return SparseGRU{}, err
	}

	if len(diag) != hidden3 {
		return SparseGRU{}, fmt.Errorf("vocoder: sparse gru diagonal has %d entries, want %d", len(diag), hidden3)
	}

	recurBias, _, err := vb.Raw("recur_bias")
	if err != nil {
		return SparseGRU{}, err
	}

	recurW, _, err := vb.Raw("recur_weight")
	if err != nil {
		return SparseGRU{}, err
	}

	idx, err := vb.Ints("recur_idx", 0)
	if err != nil {
		return SparseGRU{}, err
	}

	if len(recurW) != len(idx)*16 {
		return SparseGRU{}, fmt.Errorf("vocoder: sparse gru recur_weight has %d floats, want %d (16 per index entry)", len(recurW), len(idx)*16)
	}

	act, err := resolveActivation(vb, defaultAct)
	if err != nil {
		return SparseGRU{}, err
	}

	return SparseGRU{
		Hidden: hidden, Diagonal: diag, RecurBias: recurBias,
		RecurWeight: recurW, RecurIdx: idx, RecurCols: len(idx),
		Act: act,
	}, nil
}

func loadEmbedding(vb *weights.VarBuilder, bands, codebook, hidden3 int) (Embedding, error) {
	data, shape, err := vb.Raw("table")
	if err != nil {
		return Embedding{}, err
	}

	want := []int64{int64(bands), int64(codebook), int64(hidden3)}
	if !shapeMatches(shape, want) {
		return Embedding{}, fmt.Errorf("vocoder: embedding table has shape %v, want %v", shape, want)
	}

	return Embedding{Bands: bands, Codebook: codebook, Hidden3: hidden3, Data: data}, nil
}

func loadDualFCHead(vb *weights.VarBuilder, hidden int) (DualFCHead, error) {
	proj, err := loadDense(vb.Path("proj"), MDenseOut, hidden, ActivationLinear)
	if err != nil {
		return DualFCHead{}, err
	}

	signAct, err := resolveActivationNamed(vb, "sign_act", ActivationTanh)
	if err != nil {
		return DualFCHead{}, err
	}

	magAct, err := resolveActivationNamed(vb, "mag_act", ActivationExp)
	if err != nil {
		return DualFCHead{}, err
	}

	midAct, err := resolveActivationNamed(vb, "mid_act", ActivationTanh)
	if err != nil {
		return DualFCHead{}, err
	}

	factorsA, _, err := vb.Raw("factors_a")
	if err != nil {
		return DualFCHead{}, err
	}

	factorsB, _, err := vb.Raw("factors_b")
	if err != nil {
		return DualFCHead{}, err
	}

	if len(factorsA) != dualFCHalf || len(factorsB) != dualFCHalf {
		return DualFCHead{}, fmt.Errorf("vocoder: dual-fc factors have lengths (%d,%d), want %d", len(factorsA), len(factorsB), dualFCHalf)
	}

	logitsW, _, err := loadMatrix(vb, "logits_weight", SqrtQuantize, MidOut)
	if err != nil {
		return DualFCHead{}, err
	}

	logitsBias, _, err := vb.Raw("logits_bias")
	if err != nil {
		return DualFCHead{}, err
	}

	if len(logitsBias) != NBands*SqrtQuantize {
		return DualFCHead{}, fmt.Errorf("vocoder: dual-fc logits bias has %d entries, want %d", len(logitsBias), NBands*SqrtQuantize)
	}

	outAct, err := resolveActivationNamed(vb, "out_act", ActivationSoftmaxPassThrough)
	if err != nil {
		return DualFCHead{}, err
	}

	useDLPC := vb.MetaOr("use_dlpc", "true") != "false"

	return DualFCHead{
		Proj: proj,
		SignAct: signAct, MagAct: magAct, MidAct: midAct,
		FactorsA: factorsA, FactorsB: factorsB,
		LogitsWeight: logitsW, LogitsBias: logitsBias, OutAct: outAct,
		UseDLPC: useDLPC,
	}, nil
}

func resolveActivation(vb *weights.VarBuilder, fallback Activation) (Activation, error) {
	return resolveActivationNamed(vb, "act", fallback)
}

func resolveActivationNamed(vb *weights.VarBuilder, key string, fallback Activation) (Activation, error) {
	tag, ok := vb.Meta(key)
	if !ok {
		return fallback, nil
	}

	act, ok := ParseActivation(tag)
	if !ok {
		return ActivationLinear, fmt.Errorf("vocoder: unrecognized activation tag %q for %s", tag, key)
	}

	return act, nil
}

func shapeMatches(got []int64, want []int64) bool {
	if len(got) != len(want) {
		return false
	}

	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}

	return true
}

// buildMuLawTable precomputes the 10-bit mu-law dequantization table:
// sign(x)*((1+mu)^|x| - 1)/mu at x = 2*i/(Quantize-1) - 1, mu = Quantize-1,
// matching the reference's mu-law decode lookup.
func buildMuLawTable(table *[Quantize]float32) {
	const mu = float64(Quantize - 1)

	for i := 0; i < Quantize; i++ {
		x := 2.0*float64(i)/(Quantize-1) - 1.0

		sign := 1.0
		if x < 0 {
			sign = -1.0
			x = -x
		}

		table[i] = float32(sign * (math.Pow(1+mu, x) - 1) / mu)
	}
}
