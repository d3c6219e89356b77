package vocoder

import "time"

// stateConfig is the resolved result of applying a StateOption list; it is
// never exposed directly, only through NewVocoderState/NewFeatureGenState.
type stateConfig struct {
	seed             int64
	useDLPC          bool
	gaussTemperature float32
	runtimeFactory   func(*VocoderWeights) Runtime
}

func defaultStateConfig() stateConfig {
	return stateConfig{
		seed:             time.Now().UnixNano(),
		useDLPC:          true,
		gaussTemperature: DefaultGaussTemperature,
	}
}

// StateOption configures a VocoderState or FeatureGenState at construction.
type StateOption func(*stateConfig)

// WithSeed fixes the per-stream RNG seed, for reproducible tests and
// deterministic replay; the default draws from the process clock.
func WithSeed(seed int64) StateOption {
	return func(c *stateConfig) { c.seed = seed }
}

// WithDLPC toggles the data-driven linear prediction correction in the
// dual-FC output heads. Disabling it mirrors the reference's distinct
// "_nodlpc" code path without duplicating the streaming driver.
func WithDLPC(enabled bool) StateOption {
	return func(c *stateConfig) { c.useDLPC = enabled }
}

// WithGaussTemperature sets the Gaussian sampler temperature kept in the
// state's configuration. No synthesis stage reads it: the CycleVAE post-net
// draws its residual with sampleLaplace, which takes no temperature.
func WithGaussTemperature(temperature float32) StateOption {
	return func(c *stateConfig) { c.gaussTemperature = temperature }
}

// WithRuntime overrides the frame-network Runtime backend, e.g. to swap in
// an ONNX-backed implementation. The factory receives the state's resolved
// VocoderWeights so a NativeRuntime fallback stays easy to build from it.
// The default is NativeRuntime.
func WithRuntime(factory func(*VocoderWeights) Runtime) StateOption {
	return func(c *stateConfig) { c.runtimeFactory = factory }
}
