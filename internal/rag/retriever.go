package rag

import (
	"context"
	"fmt"
)

// ThresholdRetriever implements Retriever by combining an Embedder and a
// VectorStore under a fixed similarity threshold and result cap. It embeds
// the query first, so an embedding failure short-circuits before the store
// is ever contacted.
type ThresholdRetriever struct {
	// embedder converts the query text to a dense vector.
	embedder Embedder

	// store performs the threshold-filtered similarity search.
	store VectorStore

	// minScore is the minimum cosine similarity for a document to match.
	minScore float32

	// maxResults is the maximum number of documents returned per query.
	maxResults int
}

// NewThresholdRetriever constructs a ThresholdRetriever. maxResults falls
// back to 5 when non-positive; minScore may be 0 (no threshold).
func NewThresholdRetriever(embedder Embedder, store VectorStore, minScore float32, maxResults int) (*ThresholdRetriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	if maxResults <= 0 {
		maxResults = 5
	}
	return &ThresholdRetriever{
		embedder:   embedder,
		store:      store,
		minScore:   minScore,
		maxResults: maxResults,
	}, nil
}

// Retrieve embeds query and returns the documents above the configured
// threshold, ordered by descending similarity. Embedding failures carry
// ErrEmbeddingUnavailable; search failures carry ErrRetrievalFailed —
// callers distinguish them with errors.Is.
func (r *ThresholdRetriever) Retrieve(ctx context.Context, query string) ([]Document, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("rag: embedding query: %w", err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("rag: embedder returned empty vector: %w", ErrEmbeddingUnavailable)
	}

	docs, err := r.store.Search(ctx, vec, r.minScore, r.maxResults)
	if err != nil {
		return nil, fmt.Errorf("rag: similarity search: %w", err)
	}

	return docs, nil
}
