package testutil_test

import (
	"runtime"
	"testing"

	"github.com/ishine/mwdlp-go/internal/testutil"
)

func TestRequireWeightTable_SkipsWhenAbsent(t *testing.T) {
	if !captureSkip(func(tb testing.TB) {
		testutil.RequireWeightTable(tb, "/nonexistent/mwdlp10.safetensors")
	}) {
		t.Error("expected RequireWeightTable to skip when weight table is absent")
	}
}

func TestRequireONNXRuntime_SkipsWhenAbsent(t *testing.T) {
	t.Setenv("ORT_LIBRARY_PATH", "/nonexistent/libonnxruntime.so")
	t.Setenv("MWDLP_ORT_LIB", "")

	if !captureSkip(func(tb testing.TB) { testutil.RequireONNXRuntime(tb) }) {
		t.Error("expected RequireONNXRuntime to skip when library is absent")
	}
}

// captureSkip runs fn in a fresh goroutine with a stub TB and returns true if
// the function called Skip/Skipf. Because the real testing.T.Skipf calls
// runtime.Goexit(), we run fn in an isolated goroutine so Goexit only
// terminates that goroutine and does not propagate to the parent test.
func captureSkip(fn func(testing.TB)) (skipped bool) {
	stub := &stubTB{}
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn(stub)
	}()
	<-done
	return stub.skipped
}

// stubTB is a minimal testing.TB that records Skip calls and terminates the
// calling goroutine (via runtime.Goexit) exactly as the real testing.T does.
type stubTB struct {
	testing.TB // intentionally nil — only Skip methods are called
	skipped    bool
}

func (s *stubTB) Helper()                 {}
func (s *stubTB) Log(_ ...any)            {}
func (s *stubTB) Logf(_ string, _ ...any) {}

func (s *stubTB) Skip(_ ...any) {
	s.skipped = true
	runtime.Goexit()
}

func (s *stubTB) Skipf(_ string, _ ...any) {
	s.skipped = true
	runtime.Goexit()
}

func (s *stubTB) SkipNow() {
	s.skipped = true
	runtime.Goexit()
}
