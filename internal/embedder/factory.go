package embedder

import (
	"fmt"
	"os"
	"strconv"

	"github.com/reachhk/reachbot-go/internal/rag"
)

// Default embedding models per backend.
const (
	// defaultHFModel is the model the donation platform's knowledge base was
	// indexed with. Changing it requires re-ingesting every document.
	defaultHFModel     = "sentence-transformers/all-MiniLM-L6-v2"
	defaultOllamaModel = "nomic-embed-text"

	// defaultHFDimensions is the output dimension of all-MiniLM-L6-v2.
	defaultHFDimensions = 384
	// defaultOllamaDimensions is the output dimension of nomic-embed-text.
	// Other Ollama models may differ; override with EMBEDDING_DIMENSIONS.
	defaultOllamaDimensions = 768
)

// DefaultDimensions returns the default embedding vector size for the given
// backend name. Callers that need to pre-configure the vector store (Qdrant
// collection creation) should use this rather than hardcoding a value.
// EMBEDDING_DIMENSIONS always takes precedence when set.
func DefaultDimensions(backend string) int {
	if v := getEnvInt("EMBEDDING_DIMENSIONS", 0); v > 0 {
		return v
	}
	switch backend {
	case "ollama":
		return defaultOllamaDimensions
	default:
		return defaultHFDimensions
	}
}

// NewFromEnv constructs a rag.Embedder from environment variables.
//
// Resolution order:
//
//  1. EMBEDDING_PROVIDER — hf (default) or ollama
//  2. EMBEDDING_MODEL — overrides the default model for the resolved backend
//  3. EMBEDDING_ENDPOINT — overrides the backend's default endpoint
//  4. HF_API_TOKEN — HuggingFace API token (hf backend only)
//  5. EMBEDDING_TRUNCATE_CHARS — overrides the 5000-char truncation budget
func NewFromEnv() (rag.Embedder, error) {
	backend := getEnvOrDefault("EMBEDDING_PROVIDER", "hf")
	truncateChars := getEnvInt("EMBEDDING_TRUNCATE_CHARS", 0)

	switch backend {
	case "hf", "huggingface":
		token := getEnv("HF_API_TOKEN")
		if token == "" {
			return nil, fmt.Errorf("embedder: hf requires HF_API_TOKEN")
		}
		return NewHFEmbedder(&HFConfig{
			Endpoint:      getEnv("EMBEDDING_ENDPOINT"),
			Model:         getEnvOrDefault("EMBEDDING_MODEL", defaultHFModel),
			Token:         token,
			TruncateChars: truncateChars,
		}), nil

	case "ollama":
		host := getEnv("EMBEDDING_ENDPOINT")
		if host == "" {
			host = getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434")
		}
		return NewOllamaEmbedder(&OllamaConfig{
			Host:          host,
			Model:         getEnvOrDefault("EMBEDDING_MODEL", defaultOllamaModel),
			TruncateChars: truncateChars,
		}), nil

	default:
		return nil, fmt.Errorf("embedder: unknown backend %q (valid values: hf, ollama)", backend)
	}
}

// getEnv returns the value of the named environment variable, or empty string.
func getEnv(key string) string {
	return os.Getenv(key)
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
