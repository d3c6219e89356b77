// Package doctor provides environment preflight checks for the mwdlp vocoder.
package doctor

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/multierr"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// StatFunc reports whether path exists, mirroring os.Stat's error contract.
type StatFunc func(path string) (os.FileInfo, error)

// Config holds injectable dependencies for each doctor check.
type Config struct {
	// WeightTablePath is the safetensors file the vocoder loads at startup.
	WeightTablePath string
	// Backend is the configured frame-network runtime: "native" or "onnx".
	Backend string
	// ORTLibraryPath and ORTModelPath are only checked when Backend == "onnx".
	ORTLibraryPath string
	ORTModelPath   string
	// SampleRate is the configured output PCM rate; MWDLP10 trains at 24000/22050.
	SampleRate int
	// Stat resolves file existence; defaults to os.Stat when nil.
	Stat StatFunc
}

// Result aggregates the outcome of all checks as a combined multierr error.
type Result struct {
	err error
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return r.err != nil }

// Failures returns one message per failed check, in run order.
func (r *Result) Failures() []string {
	errs := multierr.Errors(r.err)
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Error()
	}
	return out
}

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.err = multierr.Append(r.err, fmt.Errorf("%s", msg)) }

func (r *Result) fail(err error) { r.err = multierr.Append(r.err, err) }

var validSampleRates = map[int]bool{8000: true, 16000: true, 22050: true, 24000: true, 48000: true}

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark. Failures across
// checks are combined with multierr rather than stopping at the first one,
// so Run always reports the full picture in one pass.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	stat := cfg.Stat
	if stat == nil {
		stat = os.Stat
	}

	// ---- weight table ------------------------------------------------------
	if _, err := stat(cfg.WeightTablePath); err != nil {
		res.fail(fmt.Errorf("weight table %q: %w", cfg.WeightTablePath, err))
		fmt.Fprintf(w, "%s weight table: not found at %s\n", FailMark, cfg.WeightTablePath)
	} else {
		fmt.Fprintf(w, "%s weight table: %s\n", PassMark, cfg.WeightTablePath)
	}

	// ---- frame-network backend ---------------------------------------------
	switch cfg.Backend {
	case "", "native":
		fmt.Fprintf(w, "%s runtime backend: native\n", PassMark)
	case "onnx":
		if _, err := stat(cfg.ORTLibraryPath); err != nil {
			res.fail(fmt.Errorf("onnx runtime library %q: %w", cfg.ORTLibraryPath, err))
			fmt.Fprintf(w, "%s onnx runtime library: not found at %s\n", FailMark, cfg.ORTLibraryPath)
		} else {
			fmt.Fprintf(w, "%s onnx runtime library: %s\n", PassMark, cfg.ORTLibraryPath)
		}

		if _, err := stat(cfg.ORTModelPath); err != nil {
			res.fail(fmt.Errorf("onnx frame network graph %q: %w", cfg.ORTModelPath, err))
			fmt.Fprintf(w, "%s onnx frame network graph: not found at %s\n", FailMark, cfg.ORTModelPath)
		} else {
			fmt.Fprintf(w, "%s onnx frame network graph: %s\n", PassMark, cfg.ORTModelPath)
		}
	default:
		res.fail(fmt.Errorf("runtime backend: unknown backend %q", cfg.Backend))
		fmt.Fprintf(w, "%s runtime backend: unknown %q\n", FailMark, cfg.Backend)
	}

	// ---- sample rate --------------------------------------------------------
	if !validSampleRates[cfg.SampleRate] {
		res.fail(fmt.Errorf("sample rate: %d is not a supported MWDLP10 rate", cfg.SampleRate))
		fmt.Fprintf(w, "%s sample rate: unsupported %d Hz\n", FailMark, cfg.SampleRate)
	} else {
		fmt.Fprintf(w, "%s sample rate: %d Hz\n", PassMark, cfg.SampleRate)
	}

	return res
}
