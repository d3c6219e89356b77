// Package testutil provides shared skip helpers for integration tests.
//
// Each helper calls t.Skip with a clear human-readable reason when the named
// prerequisite is absent, so integration tests remain runnable in partial
// environments without failing noisily.
//
// Typical usage:
//
//	func TestMyIntegration(t *testing.T) {
//	    testutil.RequireWeightTable(t, "testdata/mwdlp10.safetensors")
//	    testutil.RequireONNXRuntime(t)
//	    ...
//	}
package testutil

import (
	"os"
	"testing"
)

// RequireWeightTable skips the test if the named safetensors weight table is
// not present on disk. Weight tables are large trained artifacts that are
// not committed to the repository, so tests that load one are opt-in.
func RequireWeightTable(t testing.TB, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Skipf("weight table not available at %q: %v", path, err)
	}
}

// RequireONNXRuntime skips the test if no ONNX Runtime shared library can be
// located. It checks (in order): the ORT_LIBRARY_PATH env var, then the
// MWDLP_ORT_LIB env var, then common system library paths.
func RequireONNXRuntime(t testing.TB) {
	t.Helper()
	for _, env := range []string{"ORT_LIBRARY_PATH", "MWDLP_ORT_LIB"} {
		if p := os.Getenv(env); p != "" {
			if _, err := os.Stat(p); err == nil {
				return // found
			}
			t.Skipf("ONNX Runtime library not found at %s=%q", env, p)
		}
	}
	// Fall back to common system locations.
	candidates := []string{
		"/usr/lib/libonnxruntime.so",
		"/usr/local/lib/libonnxruntime.so",
		"/usr/lib/x86_64-linux-gnu/libonnxruntime.so",
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return // found
		}
	}
	t.Skip("ONNX Runtime shared library not found; set ORT_LIBRARY_PATH or MWDLP_ORT_LIB")
}
