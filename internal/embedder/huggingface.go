package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/reachhk/reachbot-go/internal/rag"
)

// HFEmbedder implements rag.Embedder using the HuggingFace Inference API
// feature-extraction pipeline. It is safe for concurrent use.
type HFEmbedder struct {
	// endpoint is the API base URL (e.g. "https://api-inference.huggingface.co").
	endpoint string
	// model is the embedding model name (e.g. "sentence-transformers/all-MiniLM-L6-v2").
	model string
	// token is the HuggingFace API token, sent as a Bearer header.
	token string
	// truncateChars is the character budget applied before each request.
	truncateChars int
	// client is the shared HTTP client with a sensible timeout.
	client *http.Client
	// log is the structured logger for payload diagnostics.
	log *slog.Logger
}

// HFConfig holds the settings for constructing an HFEmbedder.
type HFConfig struct {
	// Endpoint is the API base URL. Defaults to the public Inference API.
	Endpoint string
	// Model is the embedding model name.
	Model string
	// Token is the HuggingFace API token.
	Token string
	// TruncateChars overrides the default truncation budget.
	TruncateChars int
	// Logger receives payload diagnostics on malformed responses.
	// If nil, slog.Default is used.
	Logger *slog.Logger
}

// NewHFEmbedder constructs an HFEmbedder from the given config.
func NewHFEmbedder(cfg *HFConfig) *HFEmbedder {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "https://api-inference.huggingface.co"
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &HFEmbedder{
		endpoint:      endpoint,
		model:         cfg.Model,
		token:         cfg.Token,
		truncateChars: cfg.TruncateChars,
		client:        &http.Client{Timeout: 60 * time.Second},
		log:           log,
	}
}

// hfEmbedRequest is the JSON body sent to the feature-extraction pipeline.
// wait_for_model asks the API to queue rather than 503 while the model loads.
type hfEmbedRequest struct {
	Inputs  string         `json:"inputs"`
	Options hfembedOptions `json:"options"`
}

type hfembedOptions struct {
	WaitForModel bool `json:"wait_for_model"`
}

// Embed converts text into its embedding vector. The input is truncated to
// the configured character budget first. Every failure mode — request
// construction, transport, non-2xx status, or a payload parseVector cannot
// normalize — is reported as rag.ErrEmbeddingUnavailable, so callers can
// attribute any Embed error to the embedding upstream.
func (e *HFEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	input := truncate(text, e.truncateChars)

	payload, err := json.Marshal(hfEmbedRequest{
		Inputs:  input,
		Options: hfembedOptions{WaitForModel: true},
	})
	if err != nil {
		return nil, fmt.Errorf("hf embedder: marshal request: %w: %v", rag.ErrEmbeddingUnavailable, err)
	}

	url := e.endpoint + "/pipeline/feature-extraction/" + e.model
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("hf embedder: create request: %w: %v", rag.ErrEmbeddingUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("hf embedder: request failed: %w: %v", rag.ErrEmbeddingUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("hf embedder: read response: %w: %v", rag.ErrEmbeddingUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		e.log.Debug("hf embedder: non-2xx response",
			slog.Int("status", resp.StatusCode),
			slog.String("body", clip(body, 512)),
		)
		return nil, fmt.Errorf("hf embedder: HTTP %d: %w", resp.StatusCode, rag.ErrEmbeddingUnavailable)
	}

	vec, err := parseVector(body)
	if err != nil {
		// Raw payload is logged here, never echoed to callers.
		e.log.Debug("hf embedder: malformed embedding payload",
			slog.String("body", clip(body, 512)),
			slog.Any("error", err),
		)
		return nil, fmt.Errorf("hf embedder: %v: %w", err, rag.ErrEmbeddingUnavailable)
	}

	return vec, nil
}

// parseVector normalizes the two wire shapes the feature-extraction pipeline
// is known to return — a flat numeric array, or a one-element array wrapping
// a flat numeric array — into a flat vector. Any other shape is an error.
func parseVector(body []byte) ([]float32, error) {
	// Try the flat shape first: [0.1, 0.2, ...]
	var flat []float32
	if err := json.Unmarshal(body, &flat); err == nil {
		if len(flat) == 0 {
			return nil, fmt.Errorf("empty embedding")
		}
		return flat, nil
	}

	// Then the singleton-wrapped shape: [[0.1, 0.2, ...]]
	var nested [][]float32
	if err := json.Unmarshal(body, &nested); err == nil {
		if len(nested) != 1 || len(nested[0]) == 0 {
			return nil, fmt.Errorf("unexpected nested embedding shape (%d outer elements)", len(nested))
		}
		return nested[0], nil
	}

	return nil, fmt.Errorf("embedding payload is neither a flat nor a singleton-wrapped numeric array")
}

// clip returns body as a string capped at max bytes for log safety.
func clip(body []byte, max int) string {
	if len(body) > max {
		body = body[:max]
	}
	return string(body)
}
