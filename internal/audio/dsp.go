package audio

import (
	"math"

	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
)

// PeakNormalize scales samples so the peak amplitude reaches 1.0. Silent
// input (all zero) is returned unchanged rather than dividing by zero.
func PeakNormalize(samples []float32) []float32 {
	var peak float32
	for _, s := range samples {
		if a := float32(math.Abs(float64(s))); a > peak {
			peak = a
		}
	}

	if peak == 0 {
		return samples
	}

	out := make([]float32, len(samples))
	scale := 1.0 / peak
	for i, s := range samples {
		out[i] = s * scale
	}

	return out
}

// dcBlockCutoffHz is the highpass corner used to strip DC offset from
// synthesized PCM. Voiced speech carries negligible energy this low, so the
// corner can sit well below F0 without an audible effect.
const dcBlockCutoffHz = 20.0

// rbjHighpass computes RBJ Butterworth-Q highpass biquad coefficients,
// mirroring the CPG bandpass/anti-alias lowpass derivations used elsewhere
// in the pack's biquad-based DSP code (same w0/cos/sin/alpha construction,
// transfer function swapped for a highpass response).
func rbjHighpass(cutoffHz, sampleRate float64) biquad.Coefficients {
	w0 := 2 * math.Pi * cutoffHz / sampleRate
	if w0 <= 0 || w0 >= math.Pi {
		return biquad.Coefficients{B0: 1}
	}

	cw := math.Cos(w0)
	sw := math.Sin(w0)

	const q = 0.7071067811865476 // Butterworth

	alpha := sw / (2 * q)
	a0 := 1 + alpha
	inv := 1.0 / a0

	return biquad.Coefficients{
		B0: ((1 + cw) * 0.5) * inv,
		B1: -(1 + cw) * inv,
		B2: ((1 + cw) * 0.5) * inv,
		A1: (-2 * cw) * inv,
		A2: (1 - alpha) * inv,
	}
}

// DCBlock removes DC offset from samples by running them through a biquad
// high-pass section at dcBlockCutoffHz.
func DCBlock(samples []float32, sampleRate int) []float32 {
	section := biquad.NewSection(rbjHighpass(dcBlockCutoffHz, float64(sampleRate)))

	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(section.ProcessSample(float64(s)))
	}

	return out
}

// FadeIn applies a linear fade-in ramp over the given duration in milliseconds.
func FadeIn(samples []float32, sampleRate int, ms float64) []float32 {
	n := int(ms / 1000.0 * float64(sampleRate))
	if n <= 0 {
		return samples
	}
	if n > len(samples) {
		n = len(samples)
	}

	out := make([]float32, len(samples))
	copy(out, samples)

	for i := 0; i < n; i++ {
		out[i] *= float32(i) / float32(n)
	}

	return out
}

// FadeOut applies a linear fade-out ramp over the given duration in milliseconds.
func FadeOut(samples []float32, sampleRate int, ms float64) []float32 {
	n := int(ms / 1000.0 * float64(sampleRate))
	if n <= 0 {
		return samples
	}
	if n > len(samples) {
		n = len(samples)
	}

	out := make([]float32, len(samples))
	copy(out, samples)

	start := len(out) - n
	for i := start; i < len(out); i++ {
		out[i] *= float32(len(out)-i-1) / float32(n)
	}

	return out
}
