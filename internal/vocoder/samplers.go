package vocoder

import "math"

// softmaxInto writes softmax(logits) into out; both must have the same length.
func softmaxInto(out, logits []float32) {
	maxV := logits[0]
	for _, v := range logits[1:] {
		if v > maxV {
			maxV = v
		}
	}

	var sum float64

	for i, v := range logits {
		e := math.Exp(float64(v - maxV))
		out[i] = float32(e)
		sum += e
	}

	inv := float32(1.0 / sum)
	for i := range out {
		out[i] *= inv
	}
}

// sampleFromPDF mirrors the reference sample_from_pdf_mwdlp: softmax the
// logits, build a cumulative distribution, draw u ~ U[0,1) and scan from the
// top for the first index whose cdf is <= u, returning 0 if none qualifies.
// pdfScratch and cdfScratch must each have length == len(logits); both are
// clobbered. Callers own these buffers so no allocation happens per sample.
func sampleFromPDF(rng randSource, logits, pdfScratch, cdfScratch []float32) int {
	n := len(logits)
	softmaxInto(pdfScratch, logits)

	var running float32

	cdfScratch[0] = 0
	for i := 1; i < n; i++ {
		running += pdfScratch[i-1]
		cdfScratch[i] = running
	}

	u := rng.Float32()

	for i := n - 1; i >= 1; i-- {
		if u >= cdfScratch[i] {
			return i
		}
	}

	return 0
}

// sampleLaplace draws dim independent Laplace residuals with per-dim loc/scale
// and writes loc[i] + residual into out.
func sampleLaplace(rng randSource, out, loc, scale []float32) {
	for i := range out {
		r := rng.Float32()*2 - 1

		sign := float32(1)
		if r < 0 {
			sign = -1
		}

		mag := float32(math.Log(1 - math.Abs(float64(r))))
		out[i] = loc[i] - sign*scale[i]*mag
	}
}

// sampleGauss draws Box-Muller pairs with the reference's 0.25 temperature
// factor (configurable via temperature) and adds them to mu in place.
func sampleGauss(rng randSource, mu, std []float32, temperature float32) {
	const floatMin = 1.1754944e-38

	n := len(mu)
	for i := 0; i < n; i += 2 {
		u1 := (rng.Float32() + floatMin) / (1 + 2*floatMin)
		u2 := (rng.Float32() + floatMin) / (1 + 2*floatMin)

		mag := float32(math.Sqrt(-2 * math.Log(float64(u1))))
		theta := u2 * 2 * math.Pi

		mu[i] += temperature * std[i] * mag * float32(math.Cos(theta))

		if i+1 < n {
			mu[i+1] += temperature * std[i+1] * mag * float32(math.Sin(theta))
		}
	}
}

// randSource is the minimal RNG surface the samplers need; *rand.Rand
// satisfies it directly via Float32.
type randSource interface {
	Float32() float32
}
