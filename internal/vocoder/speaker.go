package vocoder

import "math"

// SpeakerCoordToCode maps a 2-D interpolation coordinate to a soft speaker
// code, grounded on the reference's compute_spkidtr: each of the NSpk
// training speakers sits at a fixed 2-D coordinate (WeightTable.CycleVAE's
// SpkCoords); the code weights every speaker by the softmax of the negative
// squared distance from (x, y) to that speaker's coordinate, so a point
// exactly on a training speaker's coordinate reduces to (close to) a
// one-hot code and points between speakers blend them. code must have
// length NSpk.
func SpeakerCoordToCode(cv *CycleVAEWeights, x, y float32, code []float32) {
	var maxNeg float32 = float32(math.Inf(-1))

	for i := 0; i < NSpk; i++ {
		dx := x - cv.SpkCoords[2*i]
		dy := y - cv.SpkCoords[2*i+1]
		neg := -(dx*dx + dy*dy)
		code[i] = neg

		if neg > maxNeg {
			maxNeg = neg
		}
	}

	var sum float32

	for i := range code {
		e := float32(math.Exp(float64(code[i] - maxNeg)))
		code[i] = e
		sum += e
	}

	inv := 1 / sum
	for i := range code {
		code[i] *= inv
	}
}

// CodeToSpeakerCoord is the inverse of SpeakerCoordToCode: the code-weighted
// centroid of the NSpk training speakers' coordinates. code need not sum to
// 1; it is normalized internally.
func CodeToSpeakerCoord(cv *CycleVAEWeights, code []float32) (x, y float32) {
	var sum float32
	for _, c := range code {
		sum += c
	}

	if sum == 0 {
		return 0, 0
	}

	inv := 1 / sum

	for i := 0; i < NSpk; i++ {
		w := code[i] * inv
		x += w * cv.SpkCoords[2*i]
		y += w * cv.SpkCoords[2*i+1]
	}

	return x, y
}
