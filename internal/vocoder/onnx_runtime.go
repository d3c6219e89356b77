package vocoder

import (
	"context"
	"fmt"

	ort "github.com/shota3506/onnxruntime-purego/onnxruntime"
)

// ONNXRuntime runs the frame network's three condition-vector projections
// through an exported ONNX graph instead of this package's native Dense
// kernels. It is scoped to exactly that subgraph: input shape
// [1, FeatureConvOutDim] float32 named "conv_out", outputs "cond_a",
// "cond_b", "cond_c" of widths RNNMainNeurons3/RNNSubNeurons3/RNNSubNeurons3.
type ONNXRuntime struct {
	runtime *ort.Runtime
	env     *ort.Env
	session *ort.Session
}

// ONNXRuntimeConfig names the ORT shared library and the exported graph to
// load for the frame network.
type ONNXRuntimeConfig struct {
	LibraryPath string
	APIVersion  uint32
	ModelPath   string
}

// NewONNXRuntime opens an ONNX Runtime session for the frame network graph.
// Mirrors the pockettts-lineage pattern of one Runtime/Env/Session triple
// per loaded graph, owned and closed together.
func NewONNXRuntime(cfg ONNXRuntimeConfig) (*ONNXRuntime, error) {
	if cfg.APIVersion == 0 {
		cfg.APIVersion = 23
	}

	runtime, err := ort.NewRuntime(cfg.LibraryPath, cfg.APIVersion)
	if err != nil {
		return nil, fmt.Errorf("onnx runtime: load library: %w", err)
	}

	env, err := runtime.NewEnv("mwdlp-frame-network", ort.LoggingLevelWarning)
	if err != nil {
		_ = runtime.Close()
		return nil, fmt.Errorf("onnx runtime: new env: %w", err)
	}

	session, err := runtime.NewSession(env, cfg.ModelPath, nil)
	if err != nil {
		env.Close()
		_ = runtime.Close()

		return nil, fmt.Errorf("onnx runtime: open session %s: %w", cfg.ModelPath, err)
	}

	return &ONNXRuntime{runtime: runtime, env: env, session: session}, nil
}

func (r *ONNXRuntime) Name() string { return "onnx" }

// FrameNetwork runs the frame network graph once and scatters its three
// outputs into the caller-owned condA/condB/condC scratch slices.
func (r *ONNXRuntime) FrameNetwork(condA, condB, condC, convOut []float32) error {
	input, err := ort.NewTensorValue(r.runtime, convOut, []int64{1, int64(len(convOut))})
	if err != nil {
		return fmt.Errorf("onnx runtime: build input tensor: %w", err)
	}
	defer input.Close()

	outputs, err := r.session.Run(context.Background(), map[string]*ort.Value{"conv_out": input})
	if err != nil {
		return fmt.Errorf("onnx runtime: run: %w", err)
	}
	defer closeORTValues(outputs)

	if err := copyORTOutput(outputs, "cond_a", condA); err != nil {
		return err
	}
	if err := copyORTOutput(outputs, "cond_b", condB); err != nil {
		return err
	}
	if err := copyORTOutput(outputs, "cond_c", condC); err != nil {
		return err
	}

	return nil
}

// Close releases the ORT session, env, and runtime. Safe to call once.
func (r *ONNXRuntime) Close() {
	if r.session != nil {
		r.session.Close()
		r.session = nil
	}

	if r.env != nil {
		r.env.Close()
		r.env = nil
	}

	if r.runtime != nil {
		_ = r.runtime.Close()
		r.runtime = nil
	}
}

func copyORTOutput(outputs map[string]*ort.Value, name string, dst []float32) error {
	v, ok := outputs[name]
	if !ok {
		return fmt.Errorf("onnx runtime: missing output %q", name)
	}

	data, _, err := ort.GetTensorData[float32](v)
	if err != nil {
		return fmt.Errorf("onnx runtime: read output %q: %w", name, err)
	}

	if len(data) != len(dst) {
		return fmt.Errorf("onnx runtime: output %q has %d elements, want %d", name, len(data), len(dst))
	}

	copy(dst, data)

	return nil
}

func closeORTValues(vals map[string]*ort.Value) {
	for _, v := range vals {
		if v != nil {
			v.Close()
		}
	}
}
