package server_test

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/ishine/mwdlp-go/internal/server"
	"github.com/ishine/mwdlp-go/internal/vocoder"
)

// stubSynth is a FrameSynthesizer test double. It does not touch the real
// MWDLP10 network; it just hands back caller-configured sample slices so
// handler plumbing (framing, flushing, logging) can be exercised without a
// trained weight table.
type stubSynth struct {
	mu          sync.Mutex
	frameOut    []int16
	flushOut    []int16
	err         error
	runtimeName string
	frameCalls  int
	beforeCall  func()
}

func (s *stubSynth) Synthesize(out []int16, _ []float32, lastFrame bool) (int, error) {
	if s.beforeCall != nil {
		s.beforeCall()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return 0, s.err
	}

	src := s.frameOut
	if lastFrame {
		src = s.flushOut
	} else {
		s.frameCalls++
	}

	return copy(out, src), nil
}

func (s *stubSynth) RuntimeName() string {
	if s.runtimeName == "" {
		return "stub"
	}

	return s.runtimeName
}

func constFactory(s *stubSynth) server.StateFactory {
	return func() (server.FrameSynthesizer, error) { return s, nil }
}

func errFactory(err error) server.StateFactory {
	return func() (server.FrameSynthesizer, error) { return nil, err }
}

// encodeFrames builds n raw little-endian float32 feature frames, each
// vocoder.FeaturesDim wide and filled with val, in the wire format the
// streaming handler expects in the request body.
func encodeFrames(n int, val float32) []byte {
	buf := make([]byte, 0, n*vocoder.FeaturesDim*4)

	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], math.Float32bits(val))

	for i := 0; i < n; i++ {
		for j := 0; j < vocoder.FeaturesDim; j++ {
			buf = append(buf, b[:]...)
		}
	}

	return buf
}
