// Package embedder provides the embedding clients used for retrieval:
// the HuggingFace Inference API adapter (production) and an Ollama adapter
// (local development). Both apply the same prefix truncation budget and wrap
// all transport or payload failures in rag.ErrEmbeddingUnavailable.
package embedder

import "unicode/utf8"

// DefaultTruncateChars is the default character budget applied to every text
// before it is sent to the embedding endpoint. Truncation is prefix-based,
// silent, and deterministic — the same input always yields the same prefix,
// so the embedding call stays a pure function of the truncated text.
// Long documents lose tail recall; callers that care must chunk upstream.
const DefaultTruncateChars = 5000

// truncate returns the longest prefix of text that fits within max bytes
// without splitting a rune, or text unchanged when it fits. Backing off to
// the previous rune boundary keeps the prefix valid UTF-8, so json.Marshal
// never has to substitute a replacement character at the cut point.
// max <= 0 selects DefaultTruncateChars.
func truncate(text string, max int) string {
	if max <= 0 {
		max = DefaultTruncateChars
	}
	if len(text) <= max {
		return text
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
