package server_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ishine/mwdlp-go/internal/server"
)

func TestSynthesizeStream_ProducesChunkedWAVFromFrames(t *testing.T) {
	stub := &stubSynth{
		frameOut: []int16{100, 200, 300},
		flushOut: []int16{400},
	}
	h := server.NewHandler(constFactory(stub))

	const nFrames = 3
	body := encodeFrames(nFrames, 0.25)

	req := httptest.NewRequest(http.MethodPost, "/synthesize/stream", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	if ct := rec.Header().Get("Content-Type"); ct != "audio/wav" {
		t.Errorf("Content-Type = %q, want audio/wav", ct)
	}

	if stub.frameCalls != nFrames {
		t.Errorf("frameCalls = %d, want %d", stub.frameCalls, nFrames)
	}

	data := rec.Body.Bytes()
	const headerSize = 44

	wantPCMBytes := nFrames*len(stub.frameOut)*2 + len(stub.flushOut)*2
	if len(data) != headerSize+wantPCMBytes {
		t.Fatalf("response length = %d, want %d", len(data), headerSize+wantPCMBytes)
	}

	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Fatalf("missing RIFF/WAVE markers: %q", data[0:12])
	}

	pcm := data[headerSize:]

	for frameIdx := 0; frameIdx < nFrames; frameIdx++ {
		for sampleIdx, want := range stub.frameOut {
			off := frameIdx*len(stub.frameOut)*2 + sampleIdx*2
			got := int16(binary.LittleEndian.Uint16(pcm[off : off+2]))
			if got != want {
				t.Errorf("frame %d sample %d = %d, want %d", frameIdx, sampleIdx, got, want)
			}
		}
	}

	flushOff := nFrames * len(stub.frameOut) * 2
	for i, want := range stub.flushOut {
		got := int16(binary.LittleEndian.Uint16(pcm[flushOff+i*2 : flushOff+i*2+2]))
		if got != want {
			t.Errorf("flush sample %d = %d, want %d", i, got, want)
		}
	}
}

func TestSynthesizeStream_TruncatedTrailingFrameIsIgnored(t *testing.T) {
	stub := &stubSynth{frameOut: []int16{1, 2}, flushOut: []int16{9}}
	h := server.NewHandler(constFactory(stub))

	body := encodeFrames(2, 0.1)
	body = append(body, 0x01, 0x02, 0x03) // partial trailing frame

	req := httptest.NewRequest(http.MethodPost, "/synthesize/stream", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	if stub.frameCalls != 2 {
		t.Errorf("frameCalls = %d, want 2 (trailing partial frame should be dropped as EOF)", stub.frameCalls)
	}
}

func TestSynthesizeStream_SynthesisErrorAbortsStream(t *testing.T) {
	stub := &stubSynth{err: errors.New("decoder divergence")}
	h := server.NewHandler(constFactory(stub))

	body := encodeFrames(1, 0.5)
	req := httptest.NewRequest(http.MethodPost, "/synthesize/stream", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	// Headers are already committed (200 + streaming WAV header) by the time
	// synthesis fails, so the handler can only stop writing, not change the
	// status code.
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	const headerSize = 44
	if rec.Body.Len() != headerSize {
		t.Errorf("body length = %d, want exactly the %d-byte WAV header with no PCM", rec.Body.Len(), headerSize)
	}
}
