package doctor_test

import (
	"os"
	"strings"
	"testing"

	"github.com/ishine/mwdlp-go/internal/doctor"
)

func okStat(string) (os.FileInfo, error) { return nil, nil }

func missingStat(path string) (os.FileInfo, error) {
	return nil, os.ErrNotExist
}

// ---------------------------------------------------------------------------
// all-pass scenario
// ---------------------------------------------------------------------------

func TestRun_AllChecksPass(t *testing.T) {
	cfg := doctor.Config{
		WeightTablePath: "models/mwdlp10.safetensors",
		Backend:         "native",
		SampleRate:      24000,
		Stat:            okStat,
	}

	var out strings.Builder
	result := doctor.Run(cfg, &out)

	if result.Failed() {
		t.Errorf("expected all checks to pass; failures: %v", result.Failures())
	}
	if !strings.Contains(out.String(), "weight table") {
		t.Error("output should mention weight table")
	}
}

// ---------------------------------------------------------------------------
// weight table missing
// ---------------------------------------------------------------------------

func TestRun_WeightTableMissingFails(t *testing.T) {
	cfg := doctor.Config{
		WeightTablePath: "models/missing.safetensors",
		Backend:         "native",
		SampleRate:      24000,
		Stat:            missingStat,
	}

	var out strings.Builder
	result := doctor.Run(cfg, &out)

	if !result.Failed() {
		t.Fatal("expected failure when weight table is not found")
	}
	if !hasFailureContaining(result.Failures(), "weight table") {
		t.Errorf("expected failure mentioning weight table, got: %v", result.Failures())
	}
}

// ---------------------------------------------------------------------------
// onnx backend checks
// ---------------------------------------------------------------------------

func TestRun_ONNXBackendMissingLibraryFails(t *testing.T) {
	cfg := doctor.Config{
		WeightTablePath: "models/mwdlp10.safetensors",
		Backend:         "onnx",
		ORTLibraryPath:  "/nonexistent/libonnxruntime.so",
		ORTModelPath:    "models/frame_network.onnx",
		SampleRate:      24000,
		Stat: func(path string) (os.FileInfo, error) {
			if path == "/nonexistent/libonnxruntime.so" {
				return nil, os.ErrNotExist
			}
			return nil, nil
		},
	}

	var out strings.Builder
	result := doctor.Run(cfg, &out)

	if !result.Failed() {
		t.Fatal("expected failure when onnx runtime library is not found")
	}
	if !hasFailureContaining(result.Failures(), "onnx runtime library") {
		t.Errorf("expected failure mentioning onnx runtime library, got: %v", result.Failures())
	}
}

func TestRun_ONNXBackendAllPresentPasses(t *testing.T) {
	cfg := doctor.Config{
		WeightTablePath: "models/mwdlp10.safetensors",
		Backend:         "onnx",
		ORTLibraryPath:  "lib/libonnxruntime.so",
		ORTModelPath:    "models/frame_network.onnx",
		SampleRate:      24000,
		Stat:            okStat,
	}

	var out strings.Builder
	result := doctor.Run(cfg, &out)
	if result.Failed() {
		t.Errorf("expected onnx checks to pass; failures: %v", result.Failures())
	}
}

func TestRun_UnknownBackendFails(t *testing.T) {
	cfg := doctor.Config{
		WeightTablePath: "models/mwdlp10.safetensors",
		Backend:         "tensorrt",
		SampleRate:      24000,
		Stat:            okStat,
	}

	var out strings.Builder
	result := doctor.Run(cfg, &out)
	if !result.Failed() {
		t.Fatal("expected failure for unknown backend")
	}
}

// ---------------------------------------------------------------------------
// sample rate validity
// ---------------------------------------------------------------------------

func TestRun_UnsupportedSampleRateFails(t *testing.T) {
	cfg := doctor.Config{
		WeightTablePath: "models/mwdlp10.safetensors",
		Backend:         "native",
		SampleRate:      44100,
		Stat:            okStat,
	}

	var out strings.Builder
	result := doctor.Run(cfg, &out)

	if !result.Failed() {
		t.Fatal("expected failure for unsupported sample rate")
	}
	if !hasFailureContaining(result.Failures(), "sample rate") {
		t.Errorf("expected failure mentioning sample rate, got: %v", result.Failures())
	}
}

func TestRun_SupportedSampleRatesPass(t *testing.T) {
	for _, rate := range []int{8000, 16000, 22050, 24000, 48000} {
		cfg := doctor.Config{
			WeightTablePath: "models/mwdlp10.safetensors",
			Backend:         "native",
			SampleRate:      rate,
			Stat:            okStat,
		}
		var out strings.Builder
		result := doctor.Run(cfg, &out)
		if result.Failed() {
			t.Errorf("sample rate %d should pass but got failures: %v", rate, result.Failures())
		}
	}
}

// ---------------------------------------------------------------------------
// aggregated failures and markers
// ---------------------------------------------------------------------------

func TestRun_MultipleFailuresAllReported(t *testing.T) {
	cfg := doctor.Config{
		WeightTablePath: "models/missing.safetensors",
		Backend:         "native",
		SampleRate:      44100,
		Stat:            missingStat,
	}

	var out strings.Builder
	result := doctor.Run(cfg, &out)

	if len(result.Failures()) != 2 {
		t.Fatalf("expected 2 aggregated failures, got %d: %v", len(result.Failures()), result.Failures())
	}
}

func TestRun_OutputContainsPassAndFailMarkers(t *testing.T) {
	cfg := doctor.Config{
		WeightTablePath: "models/missing.safetensors",
		Backend:         "native",
		SampleRate:      24000,
		Stat:            missingStat,
	}

	var out strings.Builder
	doctor.Run(cfg, &out)

	body := out.String()
	if !strings.Contains(body, doctor.FailMark) {
		t.Errorf("output missing fail marker %q:\n%s", doctor.FailMark, body)
	}
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func hasFailureContaining(failures []string, substr string) bool {
	substr = strings.ToLower(substr)
	for _, f := range failures {
		if strings.Contains(strings.ToLower(f), substr) {
			return true
		}
	}
	return false
}
