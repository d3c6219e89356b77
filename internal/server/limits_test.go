package server_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ishine/mwdlp-go/internal/server"
)

func TestSynthesizeStream_RequestTimeoutCancelsInFlight(t *testing.T) {
	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })

	stub := &stubSynth{frameOut: []int16{1}, flushOut: []int16{2}}
	h := server.NewHandler(constFactory(stub), server.WithRequestTimeout(20*time.Millisecond))

	req := httptest.NewRequest(http.MethodPost, "/synthesize/stream", pr)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.ServeHTTP(rec, req)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return within the request timeout; ctx cancellation was not observed")
	}
}

func TestSynthesizeStream_ConcurrencyThrottledToWorkerCount(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 2)

	stub := &stubSynth{
		frameOut: []int16{1},
		flushOut: []int16{2},
		beforeCall: func() {
			select {
			case started <- struct{}{}:
			default:
			}
			<-release
		},
	}

	h := server.NewHandler(constFactory(stub), server.WithWorkers(1), server.WithRequestTimeout(5*time.Second))

	body := encodeFrames(1, 0.1)

	var wg sync.WaitGroup
	codes := make([]int, 2)

	for i := 0; i < 2; i++ {
		wg.Add(1)

		go func(idx int) {
			defer wg.Done()

			req := httptest.NewRequest(http.MethodPost, "/synthesize/stream", bytes.NewReader(body))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			codes[idx] = rec.Code
		}(i)
	}

	// Only one worker slot exists, so only one request should be inside
	// beforeCall at a time; give it time to claim the slot, then release.
	time.Sleep(50 * time.Millisecond)

	if n := len(started); n != 1 {
		t.Errorf("%d requests reached Synthesize with one worker slot, want 1", n)
	}

	close(release)

	wg.Wait()

	for i, code := range codes {
		if code != http.StatusOK {
			t.Errorf("request %d status = %d, want 200", i, code)
		}
	}
}

func TestSynthesizeStream_WaiterCancelledWhileThrottled(t *testing.T) {
	release := make(chan struct{})

	holder := &stubSynth{
		frameOut: []int16{1},
		flushOut: []int16{2},
		beforeCall: func() {
			<-release
		},
	}

	h := server.NewHandler(constFactory(holder), server.WithWorkers(1), server.WithRequestTimeout(5*time.Second))

	body := encodeFrames(1, 0.1)

	holderDone := make(chan struct{})
	go func() {
		req := httptest.NewRequest(http.MethodPost, "/synthesize/stream", bytes.NewReader(body))
		h.ServeHTTP(httptest.NewRecorder(), req)
		close(holderDone)
	}()

	time.Sleep(20 * time.Millisecond) // let the holder claim the single worker slot

	ctx, cancel := context.WithCancel(context.Background())

	req := httptest.NewRequest(http.MethodPost, "/synthesize/stream", bytes.NewReader(body))
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()

	waiterDone := make(chan struct{})
	go func() {
		h.ServeHTTP(rec, req)
		close(waiterDone)
	}()

	time.Sleep(20 * time.Millisecond) // let the waiter start queueing for the slot
	cancel()

	select {
	case <-waiterDone:
	case <-time.After(2 * time.Second):
		t.Fatal("waiter did not return after its context was cancelled")
	}

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("waiter status = %d, want 503", rec.Code)
	}

	close(release)
	<-holderDone
}
