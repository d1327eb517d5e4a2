// Package server implements the HTTP server that exposes the donation
// platform's question-answering bot via a small REST API.
// The server is started by the `reachbot serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/reachhk/reachbot-go/internal/logging"
	"github.com/reachhk/reachbot-go/internal/pipeline"
	"github.com/reachhk/reachbot-go/internal/store"
)

// New constructs a Server from the provided bot pipeline and config.
func New(bot answerer, cfg *Config) (*Server, error) {
	if bot == nil {
		return nil, fmt.Errorf("server: bot must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 2 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = defaultRateBurst
	}
	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	s := &Server{
		bot:         bot,
		cfg:         cfg,
		log:         log,
		pingers:     cfg.Pingers,
		questionLog: cfg.QuestionLog,
		metrics:     newServerMetrics(registry),
	}

	if cfg.APIKey == "" {
		log.Warn("server: API key not set, authentication is disabled")
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, log)
	var stopOnce sync.Once
	s.stopRL = func() { stopOnce.Do(stopRL) }

	protected := func(name string, h http.HandlerFunc) http.Handler {
		return s.instrument(name,
			authMiddleware(cfg.APIKey,
				rl.middleware(h)))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/bot", protected("bot", s.handleBot))
	mux.Handle("GET /api/health", s.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/ready", s.instrument("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(log, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server: listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.stopRL()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleBot handles POST /api/bot requests. The request body carries the
// user's question; the response is either {"answer": ...} or {"error": ...}
// with a status code derived from the pipeline's error kind.
func (s *Server) handleBot(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req botRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	start := time.Now()
	answer, err := s.bot.Answer(r.Context(), req.Query)
	elapsed := time.Since(start)

	if err != nil {
		kind := pipeline.KindOf(err)
		status := statusFor(kind)
		s.metrics.botRequestsTotal.WithLabelValues(string(kind)).Inc()
		s.metrics.botDurationSeconds.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
		s.recordQuestion(r.Context(), req.Query, "", string(kind), elapsed)

		writeJSON(w, status, errorResponse{Error: callerMessage(err)})
		return
	}

	s.metrics.botRequestsTotal.WithLabelValues("ok").Inc()
	s.metrics.botDurationSeconds.WithLabelValues("ok").Observe(elapsed.Seconds())
	s.recordQuestion(r.Context(), req.Query, answer, "ok", elapsed)

	log.Info("bot: answered", slog.Duration("duration", elapsed))
	writeJSON(w, http.StatusOK, botResponse{Answer: answer})
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// recordQuestion writes the answered question to the question log.
// Failures are logged and swallowed; logging never fails a request.
func (s *Server) recordQuestion(ctx context.Context, question, answer, outcome string, latency time.Duration) {
	if s.questionLog == nil {
		return
	}
	e := store.Entry{Question: question, Answer: answer, Outcome: outcome, Latency: latency}
	if err := s.questionLog.Record(ctx, e); err != nil {
		logging.FromContext(ctx).Warn("server: question log write failed", slog.Any("error", err))
	}
}

// statusFor maps a pipeline error kind to an HTTP status code.
func statusFor(kind pipeline.Kind) int {
	switch kind {
	case pipeline.KindValidation:
		return http.StatusBadRequest
	case pipeline.KindUpstreamUnavailable, pipeline.KindRetrievalUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// callerMessage extracts the caller-safe message from a pipeline error.
// Non-pipeline errors get a generic message so internals never leak.
func callerMessage(err error) string {
	var pe *pipeline.Error
	if errors.As(err, &pe) {
		return pe.Message
	}
	return "internal error"
}

// writeJSON encodes v as the response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
