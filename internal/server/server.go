package server

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/ishine/mwdlp-go/internal/audio"
	"github.com/ishine/mwdlp-go/internal/config"
	"github.com/ishine/mwdlp-go/internal/vocoder"
)

// ParseLogLevel converts a case-insensitive level string to slog.Level.
// An empty string returns slog.LevelInfo. Unknown strings return an error.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug|info|warn|error)", s)
	}
}

// FrameSynthesizer advances a streaming vocoder by one feature frame.
// *vocoder.VocoderState satisfies this directly.
type FrameSynthesizer interface {
	Synthesize(out []int16, features []float32, lastFrame bool) (int, error)
	RuntimeName() string
}

// StateFactory builds a fresh FrameSynthesizer for one HTTP stream.
// VocoderState carries per-stream autoregressive history and is not safe to
// share across concurrent requests, so the server asks for a new one per
// connection rather than holding a single shared state.
type StateFactory func() (FrameSynthesizer, error)

// ---------------------------------------------------------------------------
// Functional options
// ---------------------------------------------------------------------------

type options struct {
	workers        int
	requestTimeout time.Duration
	logger         *slog.Logger
}

func defaultOptions() options {
	return options{
		workers:        2,
		requestTimeout: 60 * time.Second,
		logger:         slog.Default(),
	}
}

// Option configures the HTTP handler.
type Option func(*options)

// WithWorkers sets the maximum number of concurrent synthesis streams.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithRequestTimeout sets the per-stream synthesis deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.requestTimeout = d }
}

// WithLogger sets the slog.Logger used for request logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// ---------------------------------------------------------------------------
// handler
// ---------------------------------------------------------------------------

// handler holds the dependencies needed to serve HTTP requests.
type handler struct {
	newState StateFactory
	opts     options
	sem      chan struct{} // semaphore for worker pool
	log      *slog.Logger
}

// NewHandler returns an http.Handler that serves /health and
// POST /synthesize/stream.
func NewHandler(newState StateFactory, optFns ...Option) http.Handler {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	h := &handler{
		newState: newState,
		opts:     opts,
		log:      opts.logger,
	}
	if opts.workers > 0 {
		h.sem = make(chan struct{}, opts.workers)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/synthesize/stream", h.handleSynthesizeStream)

	return mux
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}

	return "dev"
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": buildVersion(),
	})
}

// handleSynthesizeStream consumes a stream of raw little-endian float32
// feature frames (vocoder.FeaturesDim wide each) from the request body and
// streams back a chunked 16-bit PCM WAV response, one chunk per frame
// processed. The stream ends, and the vocoder is flushed, at EOF.
func (h *handler) handleSynthesizeStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	if r.Body == nil {
		writeError(w, http.StatusBadRequest, "request body is required")
		return
	}

	if !h.acquireWorker(r.Context(), w) {
		return
	}

	if h.sem != nil {
		defer func() { <-h.sem }()
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.requestTimeout)
	defer cancel()

	state, err := h.newState()
	if err != nil {
		h.log.ErrorContext(ctx, "vocoder state init failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "vocoder initialization failed")

		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Transfer-Encoding", "chunked")
	w.WriteHeader(http.StatusOK)

	if _, err := audio.WriteWAVHeaderStreaming(w); err != nil {
		h.log.ErrorContext(ctx, "failed to write WAV header", slog.String("error", err.Error()))
		return
	}

	flusher.Flush()

	frame := make([]float32, vocoder.FeaturesDim)
	out := make([]int16, vocoder.MaxNOutput)
	flushOut := make([]int16, vocoder.FlushMaxNOutput)

	start := time.Now()

	var totalSamples, totalFrames int

	frames := readFrames(r.Body)

readLoop:
	for {
		select {
		case <-ctx.Done():
			h.log.WarnContext(ctx, "stream cancelled", slog.String("error", ctx.Err().Error()))
			return
		case msg, ok := <-frames:
			if !ok {
				break readLoop
			}

			if msg.err != nil {
				h.log.ErrorContext(ctx, "failed to read feature frame", slog.String("error", msg.err.Error()))
				return
			}

			frame = msg.frame
			totalFrames++

			n, err := state.Synthesize(out, frame, false)
			if err != nil {
				h.log.ErrorContext(ctx, "synthesis failed",
					slog.Int("frame", totalFrames),
					slog.String("error", err.Error()),
				)

				return
			}

			if n > 0 {
				if _, err := audio.WriteInt16Samples(w, out[:n]); err != nil {
					h.log.ErrorContext(ctx, "failed to write PCM chunk", slog.String("error", err.Error()))
					return
				}

				totalSamples += n
				flusher.Flush()
			}
		}
	}

	n, err := state.Synthesize(flushOut, frame, true)
	if err != nil {
		h.log.ErrorContext(ctx, "final flush failed", slog.String("error", err.Error()))
		return
	}

	if n > 0 {
		if _, err := audio.WriteInt16Samples(w, flushOut[:n]); err != nil {
			h.log.ErrorContext(ctx, "failed to write final PCM chunk", slog.String("error", err.Error()))
			return
		}

		totalSamples += n
		flusher.Flush()
	}

	h.log.InfoContext(ctx, "streaming synthesis complete",
		slog.Int("frames", totalFrames),
		slog.Int("total_samples", totalSamples),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		slog.String("runtime", state.RuntimeName()),
	)
}

func decodeFrame(frame []float32, raw []byte) {
	for i := range frame {
		frame[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
}

// frameMsg carries one decoded feature frame, or the terminal read error
// (io.EOF/io.ErrUnexpectedEOF are not sent; they just close the channel).
type frameMsg struct {
	frame []float32
	err   error
}

// readFrames decodes raw little-endian float32 feature frames from body in a
// background goroutine so the caller's select loop can react to context
// cancellation even while a read is blocked waiting on the network.
func readFrames(body io.Reader) <-chan frameMsg {
	out := make(chan frameMsg, 1)

	go func() {
		defer close(out)

		for {
			raw := make([]byte, vocoder.FeaturesDim*4)
			if _, err := io.ReadFull(body, raw); err != nil {
				if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
					out <- frameMsg{err: err}
				}

				return
			}

			frame := make([]float32, vocoder.FeaturesDim)
			decodeFrame(frame, raw)
			out <- frameMsg{frame: frame}
		}
	}()

	return out
}

// acquireWorker tries to acquire a worker slot from the semaphore.
// Returns true on success. On failure (context cancelled) it writes an HTTP
// error and returns false. When sem is nil (no throttling) it returns true
// immediately.
func (h *handler) acquireWorker(ctx context.Context, w http.ResponseWriter) bool {
	if h.sem == nil {
		return true
	}

	select {
	case h.sem <- struct{}{}:
		return true
	default:
		h.log.Info("request queued for worker slot")

		select {
		case h.sem <- struct{}{}:
			return true
		case <-ctx.Done():
			writeError(w, http.StatusServiceUnavailable, "request cancelled while waiting for worker")
			return false
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Warn("encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ---------------------------------------------------------------------------
// Server — wires handler into net/http.Server with graceful shutdown
// ---------------------------------------------------------------------------

// Server wires the HTTP handler into a net/http.Server with graceful shutdown.
type Server struct {
	cfg             config.Config
	weightTable     *vocoder.WeightTable
	shutdownTimeout time.Duration
}

// New builds a Server from configuration and an already-loaded weight table.
func New(cfg config.Config, wt *vocoder.WeightTable) *Server {
	shutdown := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	if shutdown <= 0 {
		shutdown = 30 * time.Second
	}

	return &Server{
		cfg:             cfg,
		weightTable:     wt,
		shutdownTimeout: shutdown,
	}
}

// WithShutdownTimeout overrides the graceful-shutdown drain period.
func (s *Server) WithShutdownTimeout(d time.Duration) *Server {
	s.shutdownTimeout = d
	return s
}

func (s *Server) Start(ctx context.Context) error {
	backend, err := config.NormalizeBackend(s.cfg.Runtime.Backend)
	if err != nil {
		return err
	}

	newState, closeRuntime, err := s.stateFactory(backend)
	if err != nil {
		return err
	}
	defer closeRuntime()

	workers := s.cfg.Server.Workers
	if workers <= 0 {
		workers = 2
	}

	requestTimeout := time.Duration(s.cfg.Server.RequestTimeout) * time.Second
	if requestTimeout <= 0 {
		requestTimeout = 60 * time.Second
	}

	h := NewHandler(newState,
		WithWorkers(workers),
		WithRequestTimeout(requestTimeout),
	)

	httpServer := &http.Server{
		Addr:              s.cfg.Server.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
		defer cancel()

		err := httpServer.Shutdown(shutdownCtx)
		if err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}

		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf("http listen: %w", err)
	}
}

func ProbeHTTP(addr string) error {
	resp, err := http.Get("http://" + addr + "/health") //nolint:noctx
	if err != nil {
		return err
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected health status: %s", resp.Status)
	}

	return nil
}

// stateFactory builds the StateFactory for the selected backend, along with
// a cleanup function that releases any backend-owned resources (an open ONNX
// Runtime session, for the onnx backend; a no-op for native).
func (s *Server) stateFactory(backend string) (StateFactory, func(), error) {
	stateOpts := func() []vocoder.StateOption {
		opts := []vocoder.StateOption{
			vocoder.WithDLPC(s.cfg.Synth.DLPC),
			vocoder.WithGaussTemperature(float32(s.cfg.Synth.GaussTemperature)),
		}
		if s.cfg.Synth.Seed != 0 {
			opts = append(opts, vocoder.WithSeed(s.cfg.Synth.Seed))
		}

		return opts
	}

	switch backend {
	case config.BackendNative:
		wt := s.weightTable

		factory := func() (FrameSynthesizer, error) {
			return vocoder.NewVocoderState(wt, stateOpts()...), nil
		}

		return factory, func() {}, nil

	case config.BackendONNX:
		rt, err := vocoder.NewONNXRuntime(vocoder.ONNXRuntimeConfig{
			LibraryPath: s.cfg.Runtime.ORTLibraryPath,
			ModelPath:   s.cfg.Runtime.ORTModelPath,
		})
		if err != nil {
			return nil, func() {}, fmt.Errorf("onnx runtime init: %w", err)
		}

		wt := s.weightTable

		factory := func() (FrameSynthesizer, error) {
			opts := append(stateOpts(), vocoder.WithRuntime(func(*vocoder.VocoderWeights) vocoder.Runtime { return rt }))
			return vocoder.NewVocoderState(wt, opts...), nil
		}

		return factory, rt.Close, nil

	default:
		return nil, func() {}, fmt.Errorf("unsupported backend %q", backend)
	}
}
