// Package vocoder implements the streaming MWDLP10 multiband vocoder and its
// optional CycleVAE voice-conversion front-end.
//
// The constants below are fixed by the trained weight export, not by this
// implementation; they mirror the compile-time model constants of the
// reference network (mwdlp10net_cycvae). A different weight table trained
// with different dimensions would require a different build of this package,
// exactly as the reference requires regenerating its header.
package vocoder

const (
	// FeaturesDim is the width of one log-mel-spectrogram feature frame.
	FeaturesDim = 80
	// MelspDim is the CycleVAE-internal mel-spectrogram dimensionality (equal
	// to FeaturesDim; named separately because the converter operates on its
	// own normalization stats).
	MelspDim = FeaturesDim

	// NBands is the number of PQMF sub-bands the multiband generator predicts
	// per sample-step.
	NBands = 10
	// NBandsSqr is NBands*NBands, the number of PQMF ring entries produced
	// per band-step.
	NBandsSqr = NBands * NBands

	// SqrtQuantize is the per-half (coarse or fine) codebook size; the full
	// resolution is 10-bit mu-law, SqrtQuantize*SqrtQuantize == 1024.
	SqrtQuantize = 32
	// Quantize is the full 10-bit mu-law table size.
	Quantize = SqrtQuantize * SqrtQuantize

	// InitLastSample is the neutral mu-law index the last-coarse history is
	// initialized to at stream construction (the last-fine history starts at 0).
	InitLastSample = SqrtQuantize / 2

	// DLPCOrder is the number of previous per-band samples retained for
	// data-driven linear prediction.
	DLPCOrder = 6
	// LPCOrderMBands is DLPCOrder*NBands, the flattened history length.
	LPCOrderMBands = DLPCOrder * NBands
	// LPCOrder1MBands is the history shift width used when rotating the
	// coarse/fine history buffers by one band-step.
	LPCOrder1MBands = (DLPCOrder - 1) * NBands

	// MidOut is the per-channel mid-logit width of the dual-FC head before
	// the final fc-logits projection.
	MidOut = 32
	// MDenseOut is 2*(LPCOrderMBands*2 + MidOut*NBands), the flattened per-channel
	// dual-FC output width (signs + magnitudes + mid-logits, times bands).
	MDenseOut = 2 * (LPCOrderMBands*2 + MidOut*NBands)

	// RNNMainNeurons is the hidden width of the main sparse frame-GRU (gru_a).
	RNNMainNeurons = 384
	// RNNMainNeurons3 is 3*RNNMainNeurons, the flattened z/r/h gate width.
	RNNMainNeurons3 = 3 * RNNMainNeurons
	// RNNSubNeurons is the hidden width of the coarse/fine sub-GRUs (gru_b, gru_c).
	RNNSubNeurons = 16
	// RNNSubNeurons3 is 3*RNNSubNeurons.
	RNNSubNeurons3 = 3 * RNNSubNeurons

	// FeatureConvOutDim is the output width of the vocoder's input feature
	// causal conv, feeding cond_dense.
	FeatureConvOutDim = 128

	// EncHiddenDim is the hidden width of each CycleVAE encoder's causal conv
	// output and its sparse GRU.
	EncHiddenDim = 64
	// EncHiddenDim3 is 3*EncHiddenDim.
	EncHiddenDim3 = 3 * EncHiddenDim

	// SpkHiddenDim is the hidden width of the CycleVAE speaker-conditioned GRU.
	SpkHiddenDim = 32
	// SpkHiddenDim3 is 3*SpkHiddenDim.
	SpkHiddenDim3 = 3 * SpkHiddenDim

	// DecHiddenDim is the hidden width of the CycleVAE excitation/mel decoders.
	DecHiddenDim = 64
	// DecHiddenDim3 is 3*DecHiddenDim.
	DecHiddenDim3 = 3 * DecHiddenDim

	// PostHiddenDim is the hidden width of the CycleVAE post-net.
	PostHiddenDim = 32
	// PostHiddenDim3 is 3*PostHiddenDim.
	PostHiddenDim3 = 3 * PostHiddenDim

	// PQMFOrder is the PQMF analysis/synthesis filter order; PQMFOrder+1 taps
	// per band.
	PQMFOrder = 8*NBands - 1
	// PQMFDelay is the PQMF filter group delay in samples, (PQMFOrder)/2.
	PQMFDelay = PQMFOrder / 2
	// PQMFTaps is the flattened synthesis filter length, (PQMFOrder+1)*NBands.
	PQMFTaps = (PQMFOrder + 1) * NBands
	// PQMFOrderMBands mirrors the reference's PQMF_ORDER_MBANDS: the number
	// of ring entries preserved across a band-step shift.
	PQMFOrderMBands = PQMFOrder * NBands
	// PQMFDelayMBands is PQMFDelay*NBands.
	PQMFDelayMBands = PQMFDelay * NBands
	// PQMFStateSize is the main PQMF ring's storage length. Each band-step
	// shifts the ring left by NBandsSqr and appends NBandsSqr new entries
	// (NBands true dequantized values, the rest permanently zero, a
	// zero-stuffing upsample folded into the ring layout rather than into a
	// separate interpolation pass); the synthesis dot product then windows
	// PQMFTaps-wide slices starting at every band-step offset 0..(NBands-1)*
	// NBands, so the ring must hold NBandsSqr+PQMFOrderMBands entries, not
	// merely PQMFTaps.
	PQMFStateSize = NBandsSqr + PQMFOrderMBands

	// FirstNOutput is the number of extra samples synthesized once, from a
	// zero-pad-left snapshot of the PQMF ring, the first time sample_count
	// crosses PQMFDelay.
	FirstNOutput = PQMFDelayMBands / NBands
	// FirstNOutputMBands is FirstNOutput*NBands.
	FirstNOutputMBands = FirstNOutput * NBands

	// PQMFExtendedStateSize is the scratch length for the one-time
	// zero-pad-left startup snapshot and the end-of-stream zero-pad-right
	// snapshot: both need windows up to offset (PQMFDelay-1)*NBands, each
	// PQMFTaps wide.
	PQMFExtendedStateSize = (PQMFDelay-1)*NBands + PQMFTaps

	// NSampleBands is the number of sample-steps (coarse+fine pairs across
	// all bands) produced per input feature frame.
	NSampleBands = 4

	// InConvKernel is the input causal-conv kernel size feeding the vocoder's
	// own frame network.
	InConvKernel = 7
	// FeatureConvStateSize is the vocoder conv memory size, FeaturesDim*(InConvKernel-1).
	FeatureConvStateSize = FeaturesDim * (InConvKernel - 1)
	// FeatureConvDelay is the number of frames the vocoder's causal conv
	// needs to see before its output is meaningful.
	FeatureConvDelay = InConvKernel - 1

	// EncConvKernel is the CycleVAE encoder causal-conv kernel size.
	EncConvKernel = 5
	// FeatureVCConvDelay is the CycleVAE converter's own conv delay, measured
	// in frames, before its output is meaningful.
	FeatureVCConvDelay = EncConvKernel - 1
	// FeatureAllConvDelay is the combined converter+vocoder delay gating the
	// startup-to-steady transition when the converter is active.
	FeatureAllConvDelay = FeatureVCConvDelay + FeatureConvDelay

	// LatDimExcit and LatDimMelsp are the CycleVAE encoder latent widths.
	LatDimExcit = 2
	LatDimMelsp = 32
	// NSpk is the speaker code width.
	NSpk = 16
	// CapDim is the aperiodicity ("cap") feature width produced by the
	// excitation decoder.
	CapDim = 2

	// SpkCodeAuxDim is the width of spk_code_aux == [spk_code, time-varying
	// speaker code], both NSpk wide.
	SpkCodeAuxDim = 2 * NSpk
	// SpkGRUInputWidth is the width of [spk_code, lat_excit, lat_melsp] fed
	// to the speaker-conditioned GRU.
	SpkGRUInputWidth = NSpk + LatDimExcit + LatDimMelsp
	// DecExcitOutDim is the width of (uvf0, f0, uvcap, cap[CapDim]).
	DecExcitOutDim = 3 + CapDim
	// DecExcitInputWidth is the width of [spk_code_aux, lat_excit] fed to the
	// excitation decoder.
	DecExcitInputWidth = SpkCodeAuxDim + LatDimExcit
	// DecMelInputWidth is the width of [spk_code_aux, uvf0, f0, lat_excit,
	// lat_melsp] fed to the mel decoder.
	DecMelInputWidth = SpkCodeAuxDim + 2 + LatDimExcit + LatDimMelsp
	// PostInputWidth is the width of [spk_code_aux, uvf0, f0, uvcap,
	// cap[CapDim], melsp_cv[MelspDim]] fed to the post-net.
	PostInputWidth = SpkCodeAuxDim + DecExcitOutDim + MelspDim

	// MaxNOutput is an upper bound on samples emitted by a single steady
	// Synthesize call: the per-frame sample-step count plus the one-time
	// FirstNOutput burst that may land within that call.
	MaxNOutput = NSampleBands*NBands + FirstNOutput

	// FlushMaxNOutput is an upper bound on samples emitted by the final,
	// flag_last_frame Synthesize call: FeatureConvDelay replayed frames at
	// the steady per-frame rate, plus the closing zero-pad-right burst.
	FlushMaxNOutput = FeatureConvDelay*NSampleBands*NBands + PQMFDelay

	// PreEmphasis is the de-emphasis filter coefficient applied to the
	// synthesized waveform.
	PreEmphasis = 0.85

	// ClampLow and ClampHigh bound every emitted sample (and the de-emphasis
	// memory) before and after de-emphasis.
	ClampLow  = -1.0
	ClampHigh = 0.999969482421875

	// DefaultGaussTemperature is the default temperature of the Box-Muller
	// Gaussian sampler (sampleGauss). Preserved from the reference as the
	// default; exposed as a configurable option per the distilled spec's open
	// question. No synthesis stage draws Gaussian noise (the CycleVAE
	// post-net residual is Laplace), so the value does not change output.
	DefaultGaussTemperature = 0.25

	// SamplingFrequency is the output PCM sample rate in Hz.
	SamplingFrequency = 24000
)
