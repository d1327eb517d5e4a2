package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/reachhk/reachbot-go/internal/rag"
)

// OllamaEmbedder implements rag.Embedder using the Ollama /api/embed endpoint.
// It is the local-development alternative to HFEmbedder and is safe for
// concurrent use. No API key is required — Ollama runs locally.
type OllamaEmbedder struct {
	// host is the Ollama server base URL (e.g. "http://localhost:11434").
	host string
	// model is the embedding model name (e.g. "nomic-embed-text").
	model string
	// truncateChars is the character budget applied before each request.
	truncateChars int
	// client is the shared HTTP client with a sensible timeout.
	client *http.Client
}

// OllamaConfig holds the settings for constructing an OllamaEmbedder.
type OllamaConfig struct {
	// Host is the Ollama server base URL (e.g. "http://localhost:11434").
	Host string
	// Model is the embedding model name (e.g. "nomic-embed-text").
	Model string
	// TruncateChars overrides the default truncation budget.
	TruncateChars int
}

// NewOllamaEmbedder constructs an OllamaEmbedder from the given config.
func NewOllamaEmbedder(cfg *OllamaConfig) *OllamaEmbedder {
	return &OllamaEmbedder{
		host:          cfg.Host,
		model:         cfg.Model,
		truncateChars: cfg.TruncateChars,
		client:        &http.Client{Timeout: 60 * time.Second},
	}
}

// ollamaEmbedRequest is the JSON body sent to the Ollama /api/embed endpoint.
type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// ollamaEmbedResponse is the JSON body returned from the Ollama /api/embed endpoint.
type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// Embed converts text into its embedding vector, truncating to the configured
// character budget first. Every failure mode, request construction included,
// is reported as rag.ErrEmbeddingUnavailable.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	input := truncate(text, e.truncateChars)

	payload, err := json.Marshal(ollamaEmbedRequest{
		Model: e.model,
		Input: []string{input},
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: marshal request: %w: %v", rag.ErrEmbeddingUnavailable, err)
	}

	url := e.host + "/api/embed"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: create request: %w: %v", rag.ErrEmbeddingUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: request failed: %w: %v", rag.ErrEmbeddingUnavailable, err)
	}
	defer resp.Body.Close()

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("ollama embedder: decode response: %w: %v", rag.ErrEmbeddingUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if result.Error != "" {
			msg = result.Error
		}
		return nil, fmt.Errorf("ollama embedder: %s: %w", msg, rag.ErrEmbeddingUnavailable)
	}

	if len(result.Embeddings) != 1 || len(result.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("ollama embedder: expected one embedding, got %d: %w",
			len(result.Embeddings), rag.ErrEmbeddingUnavailable)
	}

	return result.Embeddings[0], nil
}
