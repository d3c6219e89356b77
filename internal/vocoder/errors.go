package vocoder

import "errors"

// ErrNoConverter is returned by NewFeatureGenState when the supplied weight
// table carries no CycleVAE branch, and by SynthesizeWithConversion when
// called without one ever being constructed.
var ErrNoConverter = errors.New("vocoder: weight table has no cyclevae branch")

// errNoConverter is the package-internal alias used at call sites; kept
// distinct from ErrNoConverter only so internal wraps read naturally.
var errNoConverter = ErrNoConverter

// ErrFeatureSize is returned when a caller passes a feature frame whose
// length does not match FeaturesDim (or MelspDim for the converter path).
var ErrFeatureSize = errors.New("vocoder: feature frame has wrong length")

// ErrSpeakerCodeSize is returned when a caller passes a speaker code vector
// whose length does not match NSpk.
var ErrSpeakerCodeSize = errors.New("vocoder: speaker code has wrong length")
