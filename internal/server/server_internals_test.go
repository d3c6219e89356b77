package server_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ishine/mwdlp-go/internal/config"
	"github.com/ishine/mwdlp-go/internal/server"
)

func TestNew_ZeroConfigWithShutdownTimeoutChains(t *testing.T) {
	s := server.New(config.Config{}, nil)

	// With a zero ShutdownTimeout in config, WithShutdownTimeout still
	// returns the same *Server so it can be chained after New().
	if same := s.WithShutdownTimeout(5 * time.Millisecond); same != s {
		t.Error("WithShutdownTimeout should return the same *Server for chaining")
	}
}

func TestStart_UnsupportedBackendReturnsError(t *testing.T) {
	cfg := config.Config{}
	cfg.Runtime.Backend = "bogus"
	cfg.Server.ListenAddr = "127.0.0.1:0"

	s := server.New(cfg, nil)

	err := s.Start(context.Background())
	if err == nil {
		t.Fatal("expected an error for an unsupported backend")
	}
}

func TestProbeHTTP_HealthyServerReturnsNil(t *testing.T) {
	h := server.NewHandler(constFactory(&stubSynth{}))
	ts := httptest.NewServer(h)
	defer ts.Close()

	addr := ts.Listener.Addr().String()
	if err := server.ProbeHTTP(addr); err != nil {
		t.Errorf("ProbeHTTP() = %v, want nil", err)
	}
}

func TestProbeHTTP_UnreachableAddrReturnsError(t *testing.T) {
	if err := server.ProbeHTTP("127.0.0.1:1"); err == nil {
		t.Error("expected an error probing a closed port")
	}
}

func TestOptions_WithWorkersZeroDisablesThrottling(t *testing.T) {
	h := server.NewHandler(constFactory(&stubSynth{flushOut: []int16{1}}), server.WithWorkers(0))

	req := httptest.NewRequest(http.MethodPost, "/synthesize/stream", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 with throttling disabled", rec.Code)
	}
}

func TestOptions_WithLoggerIsUsedForRequestLogs(t *testing.T) {
	capture := &capturingHandler{}
	logger := newTestLogger(capture)

	h := server.NewHandler(constFactory(&stubSynth{flushOut: []int16{1}}), server.WithLogger(logger))

	req := httptest.NewRequest(http.MethodPost, "/synthesize/stream", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if !capture.hasMessage("streaming synthesis complete") {
		t.Error("expected a completion log record through the configured logger")
	}
}
