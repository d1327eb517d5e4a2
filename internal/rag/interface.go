// Package rag defines the interfaces for the retrieval-augmented answering
// components: text embedding, vector storage, and threshold-based retrieval.
// Concrete implementations (HuggingFace, Ollama, Qdrant) satisfy these
// interfaces so the pipeline layer never depends on a specific backend.
package rag

import (
	"context"
	"errors"
)

// ErrEmbeddingUnavailable is returned (wrapped) by Embedder implementations
// when the embedding endpoint is unreachable, rate-limited, or returns a
// payload that cannot be normalized to a vector. Callers match it with
// errors.Is to distinguish upstream failures from programming errors.
var ErrEmbeddingUnavailable = errors.New("embedding unavailable")

// ErrRetrievalFailed is returned (wrapped) by VectorStore implementations
// when the similarity search itself fails. An empty result set is NOT an
// error — it is a valid outcome the caller must handle.
var ErrRetrievalFailed = errors.New("retrieval failed")

// Document represents a unit of stored or retrieved knowledge. Each document
// is the natural-language rendering of exactly one source-of-truth row.
type Document struct {
	// ID is the stable identifier, taken from the originating row's primary
	// key so that repeated ingestion runs upsert rather than duplicate.
	ID string

	// Content is the natural-language text synthesized from the source row.
	// This is what gets embedded and what is shown to the user.
	Content string

	// Metadata holds provenance: "source_table" and "source_id".
	// Used for traceability only, never for ranking.
	Metadata map[string]string

	// Score is the cosine similarity assigned during retrieval (0.0–1.0).
	// Zero value means the score was not computed (e.g. at ingest time).
	Score float32
}

// Embedder converts a single text into a fixed-dimension dense vector.
// Implementations must be safe to call from multiple goroutines, must apply
// their truncation budget before the network call, and must wrap transport
// or payload failures in ErrEmbeddingUnavailable.
type Embedder interface {
	// Embed returns the embedding vector for text.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorStore persists documents with their embeddings and performs
// threshold-filtered cosine similarity search.
// Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// Upsert stores or updates a batch of documents keyed by Document.ID.
	// The embeddings slice is parallel to docs — embeddings[i] belongs to
	// docs[i]. An existing ID is overwritten, never duplicated.
	Upsert(ctx context.Context, docs []Document, embeddings [][]float32) error

	// Search returns at most maxResults documents whose cosine similarity to
	// queryEmbedding is at least minScore, ordered by descending score.
	// The threshold is applied store-side; callers never re-filter.
	// An empty slice with a nil error means no document matched.
	Search(ctx context.Context, queryEmbedding []float32, minScore float32, maxResults int) ([]Document, error)

	// Delete removes documents by their IDs.
	Delete(ctx context.Context, ids []string) error

	// Close releases any resources held by the store.
	Close() error
}

// Retriever is the high-level interface the pipeline uses to fetch the
// relevant documents for a query. It combines embedding and vector search
// under a fixed (minScore, maxResults) policy.
// Implementations must be safe to call from multiple goroutines.
type Retriever interface {
	// Retrieve returns the documents matching query, ordered by descending
	// similarity. An empty slice is a valid outcome, not an error.
	Retrieve(ctx context.Context, query string) ([]Document, error)
}
