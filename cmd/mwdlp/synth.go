package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/spf13/cobra"

	"github.com/ishine/mwdlp-go/internal/audio"
	"github.com/ishine/mwdlp-go/internal/config"
	"github.com/ishine/mwdlp-go/internal/vocoder"
)

func newSynthCmd() *cobra.Command {
	var in string
	var out string
	var normalize bool
	var dcBlock bool
	var fadeInMS float64
	var fadeOutMS float64
	var convert bool
	var spkX float64
	var spkY float64

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Drive the MWDLP10 vocoder over a raw feature-frame file and write a WAV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := activeCfg
			cfg.Synth.Convert = cfg.Synth.Convert || convert

			backend, err := config.NormalizeBackend(cfg.Runtime.Backend)
			if err != nil {
				return err
			}

			frames, err := readFeatureFile(in, os.Stdin)
			if err != nil {
				return err
			}

			samples, runtimeName, err := synthesizeFrames(cfg, backend, frames, float32(spkX), float32(spkY))
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "synthesized %d samples via %s runtime\n", len(samples), runtimeName)

			floatSamples := audio.Int16ToFloat32(samples)
			if normalize {
				floatSamples = audio.PeakNormalize(floatSamples)
			}
			if dcBlock {
				floatSamples = audio.DCBlock(floatSamples, cfg.Synth.SampleRate)
			}
			if fadeInMS > 0 {
				floatSamples = audio.FadeIn(floatSamples, cfg.Synth.SampleRate, fadeInMS)
			}
			if fadeOutMS > 0 {
				floatSamples = audio.FadeOut(floatSamples, cfg.Synth.SampleRate, fadeOutMS)
			}

			wavData, err := audio.EncodeWAV(floatSamples)
			if err != nil {
				return fmt.Errorf("encode WAV: %w", err)
			}

			return writeSynthOutput(out, wavData, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&in, "in", "", "Path to a raw little-endian float32 feature-frame file (default: stdin)")
	cmd.Flags().StringVar(&out, "out", "out.wav", "Output WAV path ('-' for stdout)")
	cmd.Flags().BoolVar(&normalize, "normalize", false, "Peak-normalize output audio")
	cmd.Flags().BoolVar(&dcBlock, "dc-block", false, "Apply DC-block high-pass filter")
	cmd.Flags().Float64Var(&fadeInMS, "fade-in-ms", 0, "Apply linear fade-in duration in milliseconds")
	cmd.Flags().Float64Var(&fadeOutMS, "fade-out-ms", 0, "Apply linear fade-out duration in milliseconds")
	cmd.Flags().BoolVar(&convert, "convert", false, "Run the CycleVAE voice-conversion front-end before synthesis")
	cmd.Flags().Float64Var(&spkX, "spk-x", 0, "Target speaker coordinate X (requires --convert)")
	cmd.Flags().Float64Var(&spkY, "spk-y", 0, "Target speaker coordinate Y (requires --convert)")

	return cmd
}

// readFeatureFile reads a sequence of raw little-endian float32 feature
// frames (vocoder.FeaturesDim wide each) from path, or from stdin if path is
// empty. This is the same wire format the streaming HTTP endpoint consumes.
func readFeatureFile(path string, stdin io.Reader) ([][]float32, error) {
	r := stdin
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open feature file: %w", err)
		}
		defer func() { _ = f.Close() }()

		r = f
	}

	var frames [][]float32

	raw := make([]byte, vocoder.FeaturesDim*4)
	for {
		if _, err := io.ReadFull(r, raw); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}

			return nil, fmt.Errorf("read feature frame: %w", err)
		}

		frame := make([]float32, vocoder.FeaturesDim)
		for i := range frame {
			frame[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}

		frames = append(frames, frame)
	}

	if len(frames) == 0 {
		return nil, errors.New("no complete feature frames read")
	}

	return frames, nil
}

// synthesizeFrames loads the configured weight table, builds a VocoderState
// for the selected backend, and drives it over every frame plus a final
// flush, returning the concatenated PCM samples. When cfg.Synth.Convert is
// set, each frame is first routed through a CycleVAE FeatureGenState toward
// the speaker coordinate (spkX, spkY) before vocoding.
func synthesizeFrames(cfg config.Config, backend string, frames [][]float32, spkX, spkY float32) ([]int16, string, error) {
	wt, err := vocoder.LoadWeightTable(cfg.Paths.WeightTablePath)
	if err != nil {
		return nil, "", fmt.Errorf("load weight table: %w", err)
	}

	stateOpts := []vocoder.StateOption{
		vocoder.WithDLPC(cfg.Synth.DLPC),
		vocoder.WithGaussTemperature(float32(cfg.Synth.GaussTemperature)),
	}
	if cfg.Synth.Seed != 0 {
		stateOpts = append(stateOpts, vocoder.WithSeed(cfg.Synth.Seed))
	}

	if backend == config.BackendONNX {
		rt, err := vocoder.NewONNXRuntime(vocoder.ONNXRuntimeConfig{
			LibraryPath: cfg.Runtime.ORTLibraryPath,
			ModelPath:   cfg.Runtime.ORTModelPath,
		})
		if err != nil {
			return nil, "", fmt.Errorf("onnx runtime init: %w", err)
		}
		defer rt.Close()

		stateOpts = append(stateOpts, vocoder.WithRuntime(func(*vocoder.VocoderWeights) vocoder.Runtime { return rt }))
	}

	state := vocoder.NewVocoderState(wt, stateOpts...)
	defer state.Close()

	var gen *vocoder.FeatureGenState

	var spkCode []float32

	if cfg.Synth.Convert {
		gen, err = vocoder.NewFeatureGenState(wt, stateOpts...)
		if err != nil {
			return nil, "", fmt.Errorf("new feature-gen state: %w", err)
		}

		spkCode = make([]float32, vocoder.NSpk)
		vocoder.SpeakerCoordToCode(wt.CycleVAE, spkX, spkY, spkCode)
	}

	out := make([]int16, vocoder.MaxNOutput)
	flushOut := make([]int16, vocoder.FlushMaxNOutput)

	samples := make([]int16, 0, len(frames)*vocoder.NSampleBands*vocoder.NBands)

	var last []float32

	step := func(frame []float32, lastFrame bool) (int, error) {
		if gen != nil {
			return state.SynthesizeWithConversion(out, gen, frame, spkCode, lastFrame)
		}

		return state.Synthesize(out, frame, lastFrame)
	}

	for _, frame := range frames {
		n, err := step(frame, false)
		if err != nil {
			return nil, "", fmt.Errorf("synthesize frame: %w", err)
		}

		samples = append(samples, out[:n]...)
		last = frame
	}

	n, err := func() (int, error) {
		if gen != nil {
			return state.SynthesizeWithConversion(flushOut, gen, last, spkCode, true)
		}

		return state.Synthesize(flushOut, last, true)
	}()
	if err != nil {
		return nil, "", fmt.Errorf("flush: %w", err)
	}

	samples = append(samples, flushOut[:n]...)

	return samples, state.RuntimeName(), nil
}

func writeSynthOutput(outPath string, wavData []byte, stdout io.Writer) error {
	if outPath == "-" {
		_, err := stdout.Write(wavData)
		return err
	}

	return os.WriteFile(outPath, wavData, 0o644)
}
