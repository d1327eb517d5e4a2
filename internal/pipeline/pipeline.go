// Package pipeline orchestrates the bot's query flow: sanitize the query,
// embed it, retrieve the matching documents, and compose an answer. The
// flow is a strict sequence — each step's input depends on the previous
// step's output — with a single absorbing error state: every internal
// failure is mapped to a typed Kind before it leaves this package.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/reachhk/reachbot-go/internal/rag"
)

// defaultStepTimeout bounds each outbound stage (retrieve, compose) so a
// slow upstream degrades into the corresponding unavailable error instead
// of hanging the request.
const defaultStepTimeout = 30 * time.Second

// Composer builds the final answer text from the retrieved documents.
// *answer.Composer satisfies it; tests inject a fake.
type Composer interface {
	// Compose returns the answer for the normalized query given docs.
	Compose(ctx context.Context, query string, docs []rag.Document) (string, error)
}

// Config holds the settings for constructing a Pipeline.
type Config struct {
	// Retriever fetches the documents matching a query. Required.
	Retriever rag.Retriever
	// Composer builds the final answer. Required.
	Composer Composer
	// StepTimeout bounds each outbound stage. Defaults to 30s.
	StepTimeout time.Duration
	// Logger is the structured logger. If nil, slog.Default is used.
	Logger *slog.Logger
	// Registry receives the pipeline's Prometheus metrics.
	// If nil, prometheus.DefaultRegisterer is used.
	Registry prometheus.Registerer
}

// Pipeline answers free-text queries against the ingested knowledge base.
// It is stateless across requests and safe for concurrent use; the only
// shared state is read-only configuration and metrics.
type Pipeline struct {
	// retriever embeds the query and searches the document store.
	retriever rag.Retriever
	// composer selects and runs the answer strategy.
	composer Composer
	// stepTimeout bounds each outbound stage.
	stepTimeout time.Duration
	// log is the structured logger.
	log *slog.Logger
	// metrics holds the pipeline's Prometheus instruments.
	metrics *pipelineMetrics
}

// New constructs a Pipeline from the given config.
func New(cfg *Config) (*Pipeline, error) {
	if cfg.Retriever == nil {
		return nil, fmt.Errorf("pipeline: retriever must not be nil")
	}
	if cfg.Composer == nil {
		return nil, fmt.Errorf("pipeline: composer must not be nil")
	}
	stepTimeout := cfg.StepTimeout
	if stepTimeout <= 0 {
		stepTimeout = defaultStepTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	return &Pipeline{
		retriever:   cfg.Retriever,
		composer:    cfg.Composer,
		stepTimeout: stepTimeout,
		log:         log,
		metrics:     newPipelineMetrics(reg),
	}, nil
}

// Answer runs the full query flow and returns the final answer text.
// Failures are always a *Error whose Kind the transport layer maps to a
// status code. The sanitized (trimmed, lower-cased) form of query is used
// both for the embedding call and for the composer's keyword checks, so the
// two can never disagree.
func (p *Pipeline) Answer(ctx context.Context, query string) (string, error) {
	sanitized := strings.ToLower(strings.TrimSpace(query))
	if sanitized == "" {
		p.metrics.queriesTotal.WithLabelValues("validation").Inc()
		return "", newError(KindValidation, "query is required", nil)
	}

	p.log.Debug("pipeline: query received", slog.String("query", sanitized))

	docs, err := p.retrieve(ctx, sanitized)
	if err != nil {
		return "", err
	}

	p.log.Debug("pipeline: documents retrieved", slog.Int("count", len(docs)))

	text, err := p.compose(ctx, sanitized, docs)
	if err != nil {
		return "", err
	}

	p.metrics.queriesTotal.WithLabelValues("ok").Inc()
	p.metrics.answersTotal.WithLabelValues(branchOf(docs)).Inc()

	return strings.TrimSpace(text), nil
}

// retrieve runs the embed + search stage under the step timeout and maps
// failures to their transport kinds. The embedding failure check runs first:
// when the embedder is down the store is never contacted, and the error must
// say so.
func (p *Pipeline) retrieve(ctx context.Context, query string) ([]rag.Document, error) {
	stepCtx, cancel := context.WithTimeout(ctx, p.stepTimeout)
	defer cancel()

	start := time.Now()
	docs, err := p.retriever.Retrieve(stepCtx, query)
	p.metrics.stageDurationSeconds.WithLabelValues("retrieve").Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		return docs, nil

	case errors.Is(err, rag.ErrEmbeddingUnavailable):
		p.metrics.queriesTotal.WithLabelValues("upstream_unavailable").Inc()
		p.log.Error("pipeline: embedding failed", slog.Any("error", err))
		return nil, newError(KindUpstreamUnavailable, "the assistant is temporarily unavailable, please try again later", err)

	case errors.Is(err, rag.ErrRetrievalFailed):
		p.metrics.queriesTotal.WithLabelValues("retrieval_unavailable").Inc()
		p.log.Error("pipeline: retrieval failed", slog.Any("error", err))
		return nil, newError(KindRetrievalUnavailable, "the assistant is temporarily unavailable, please try again later", err)

	default:
		// Neither sentinel: step-timeout expiry or a retriever that does not
		// follow the sentinel contract. The store call is the last thing the
		// stage does, so account it against retrieval.
		p.metrics.queriesTotal.WithLabelValues("retrieval_unavailable").Inc()
		p.log.Error("pipeline: retrieve stage failed", slog.Any("error", err))
		return nil, newError(KindRetrievalUnavailable, "the assistant is temporarily unavailable, please try again later", err)
	}
}

// compose runs the answer composition stage under the step timeout.
// Any failure discards the partially composed text.
func (p *Pipeline) compose(ctx context.Context, query string, docs []rag.Document) (string, error) {
	stepCtx, cancel := context.WithTimeout(ctx, p.stepTimeout)
	defer cancel()

	start := time.Now()
	text, err := p.composer.Compose(stepCtx, query, docs)
	p.metrics.stageDurationSeconds.WithLabelValues("compose").Observe(time.Since(start).Seconds())

	if err != nil {
		p.metrics.queriesTotal.WithLabelValues("composition").Inc()
		p.log.Error("pipeline: composition failed", slog.Any("error", err))
		return "", newError(KindComposition, "failed to compose an answer", err)
	}

	return text, nil
}

// branchOf names the composition branch taken for metrics. The cardinality
// is evaluated after the store-side threshold filter — the pipeline never
// re-filters.
func branchOf(docs []rag.Document) string {
	switch {
	case len(docs) == 0:
		return "fallback"
	case len(docs) == 1:
		return "single"
	default:
		return "list"
	}
}
