package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/reachhk/reachbot-go/internal/answer"
	"github.com/reachhk/reachbot-go/internal/embedder"
	"github.com/reachhk/reachbot-go/internal/generator"
	"github.com/reachhk/reachbot-go/internal/pipeline"
	"github.com/reachhk/reachbot-go/internal/qa"
	"github.com/reachhk/reachbot-go/internal/rag"
)

// defaultCollection is the Qdrant collection holding the knowledge base.
const defaultCollection = "documents"

// Retrieval policy defaults, overridable via MATCH_THRESHOLD / MATCH_COUNT.
const (
	defaultMatchThreshold = 0.1
	defaultMatchCount     = 5
)

// buildVectorStore connects to Qdrant using the environment configuration
// and ensures the collection exists with the embedder's vector size.
func buildVectorStore(ctx context.Context, log *slog.Logger) (*rag.QdrantStore, error) {
	host := getEnvOrDefault("QDRANT_HOST", "localhost")
	port := getEnvInt("QDRANT_PORT", 6334)
	collection := getEnvOrDefault("QDRANT_COLLECTION", defaultCollection)
	backend := getEnvOrDefault("EMBEDDING_PROVIDER", "hf")
	vectorSize := uint64(embedder.DefaultDimensions(backend)) //nolint:gosec // dimensions are bounded

	store, err := rag.NewQdrantStore(ctx, &rag.QdrantConfig{
		Host:       host,
		Port:       port,
		Collection: collection,
		VectorSize: vectorSize,
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", host, port, err)
	}

	log.Info("qdrant store ready",
		slog.String("host", host), slog.Int("port", port), slog.String("collection", collection))
	return store, nil
}

// buildRetriever wires the embedder and store into the threshold retriever
// using the environment's retrieval policy.
func buildRetriever(emb rag.Embedder, store rag.VectorStore) (*rag.ThresholdRetriever, error) {
	threshold := getEnvFloat("MATCH_THRESHOLD", defaultMatchThreshold)
	count := getEnvInt("MATCH_COUNT", defaultMatchCount)
	return rag.NewThresholdRetriever(emb, store, float32(threshold), count)
}

// buildComposer constructs the answer composer. The extractive QA client is
// always present; GENERATOR_ENABLED=true switches single-document answers to
// the generative mode instead.
func buildComposer(log *slog.Logger) (*answer.Composer, error) {
	cfg := &answer.Config{
		ListTopN: getEnvInt("LIST_TOP_N", 0),
		Extractor: qa.New(&qa.Config{
			Endpoint: os.Getenv("QA_ENDPOINT"),
			Model:    os.Getenv("QA_MODEL"),
			Token:    os.Getenv("HF_API_TOKEN"),
		}),
	}

	if os.Getenv("GENERATOR_ENABLED") == "true" {
		gen, err := generator.New(&generator.Config{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			BaseURL: os.Getenv("GENERATOR_BASE_URL"),
			Model:   getEnvOrDefault("GENERATOR_MODEL", "gpt-4o-mini"),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialise generator: %w", err)
		}
		cfg.Generator = gen
		cfg.Mode = answer.ModeGenerative
		log.Info("answer mode: generative", slog.String("model", getEnvOrDefault("GENERATOR_MODEL", "gpt-4o-mini")))
	}

	return answer.New(cfg)
}

// buildPipeline wires embedder, store, retriever, and composer into the
// query pipeline. Metrics register against reg so the serve command can
// expose pipeline and server metrics from one registry. The returned store
// must be closed by the caller.
func buildPipeline(ctx context.Context, log *slog.Logger, reg prometheus.Registerer) (*pipeline.Pipeline, *rag.QdrantStore, error) {
	if err := embedder.ValidateForRAG(log); err != nil {
		return nil, nil, err
	}

	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}

	store, err := buildVectorStore(ctx, log)
	if err != nil {
		return nil, nil, err
	}

	retriever, err := buildRetriever(emb, store)
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	composer, err := buildComposer(log)
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	p, err := pipeline.New(&pipeline.Config{
		Retriever: retriever,
		Composer:  composer,
		Logger:    log,
		Registry:  reg,
	})
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return p, store, nil
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvFloat returns the float value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
