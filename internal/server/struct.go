package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/reachhk/reachbot-go/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// QuestionLog records answered questions. Optional; writes are best-effort.
	QuestionLog store.QuestionLog
	// Registry receives the server's Prometheus metrics and backs /metrics.
	// If nil, a dedicated registry is created.
	Registry *prometheus.Registry
}

// answerer is the interface handleBot calls to answer a query.
// *pipeline.Pipeline satisfies it; tests inject a fake.
type answerer interface {
	// Answer returns the final answer text for query.
	Answer(ctx context.Context, query string) (string, error)
}

// Server is the HTTP server that exposes the bot endpoint.
type Server struct {
	// bot answers user queries.
	bot answerer
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// questionLog records answered questions; nil disables recording.
	questionLog store.QuestionLog
	// metrics holds the server's Prometheus instruments.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// botRequest is the JSON body for POST /api/bot.
type botRequest struct {
	// Query is the user's natural language question.
	Query string `json:"query"`
}

// botResponse is the JSON response for a successful POST /api/bot.
type botResponse struct {
	// Answer is the final answer text.
	Answer string `json:"answer"`
}

// errorResponse is the JSON response for a failed POST /api/bot.
type errorResponse struct {
	// Error is the caller-safe failure message.
	Error string `json:"error"`
}
