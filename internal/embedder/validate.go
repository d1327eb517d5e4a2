package embedder

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// knownChatModelFragments contains name fragments that identify chat or
// generation models which are NOT suitable for embedding. If EMBEDDING_MODEL
// matches any of these, a warning is emitted so the operator knows they may
// have misconfigured the pipeline.
var knownChatModelFragments = []string{
	"gpt-4",
	"gpt-3.5",
	"o1",
	"o3",
	"llama",
	"mistral",
	"mixtral",
	"gemma",
	"phi-",
	"claude",
	"deepseek",
	"qwen",
	"flan-t5",
	"lamini",
}

// looksLikeChatModel returns true when the model name resembles a known
// chat/generation model rather than a dedicated embedding model.
func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	for _, fragment := range knownChatModelFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}

// ValidateForRAG checks that the embedder configuration is usable before any
// network call is made. It returns an error when the configuration is clearly
// broken (hf backend with no token), and logs a warning when EMBEDDING_MODEL
// looks like a chat model rather than an embedding model.
//
// This is a pre-flight check: call it at startup so operators get a clear
// error rather than a cryptic failure on the first query.
func ValidateForRAG(log *slog.Logger) error {
	backend := getEnvOrDefault("EMBEDDING_PROVIDER", "hf")

	switch backend {
	case "hf", "huggingface":
		if os.Getenv("HF_API_TOKEN") == "" {
			return fmt.Errorf("embedder: backend is hf but HF_API_TOKEN is not set")
		}
	case "ollama":
		// No credentials required.
	default:
		return fmt.Errorf("embedder: unknown backend %q (valid values: hf, ollama)", backend)
	}

	model := os.Getenv("EMBEDDING_MODEL")
	if model != "" && looksLikeChatModel(model) {
		log.Warn("embedder: EMBEDDING_MODEL looks like a chat model, not an embedding model; "+
			"this will likely produce poor or broken similarity rankings",
			slog.String("model", model),
			slog.String("hint", "use a dedicated embedding model e.g. sentence-transformers/all-MiniLM-L6-v2"),
		)
	}

	return nil
}
