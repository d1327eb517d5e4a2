// Package qa provides the extractive question-answering client used by the
// single-result answer branch. Given a question and a context passage, the
// model returns a span of the context as the answer; an empty span is a
// valid outcome the caller handles with its own fallback.
package qa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// defaultModel is the extractive QA model used when none is configured.
const defaultModel = "distilbert-base-cased-distilled-squad"

// Result is the outcome of an extractive QA call.
type Result struct {
	// Answer is the span of the context selected as the answer.
	// Empty means the model found no answer — not an error.
	Answer string
	// Score is the model's confidence in the answer (0.0–1.0).
	Score float32
}

// Client calls the HuggingFace question-answering inference endpoint.
// It is safe for concurrent use.
type Client struct {
	// endpoint is the API base URL (e.g. "https://api-inference.huggingface.co").
	endpoint string
	// model is the QA model name.
	model string
	// token is the HuggingFace API token.
	token string
	// client is the shared HTTP client with a sensible timeout.
	client *http.Client
}

// Config holds the settings for constructing a Client.
type Config struct {
	// Endpoint is the API base URL. Defaults to the public Inference API.
	Endpoint string
	// Model is the QA model name. Defaults to distilbert-base-cased-distilled-squad.
	Model string
	// Token is the HuggingFace API token.
	Token string
}

// New constructs a Client from the given config.
func New(cfg *Config) *Client {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "https://api-inference.huggingface.co"
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	return &Client{
		endpoint: endpoint,
		model:    model,
		token:    cfg.Token,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

// qaRequest is the JSON body sent to the question-answering endpoint.
type qaRequest struct {
	Inputs  qaInputs  `json:"inputs"`
	Options qaOptions `json:"options"`
}

type qaInputs struct {
	Question string `json:"question"`
	Context  string `json:"context"`
}

type qaOptions struct {
	WaitForModel bool `json:"wait_for_model"`
}

// qaResponse is the JSON body returned from the question-answering endpoint.
type qaResponse struct {
	Answer string  `json:"answer"`
	Score  float32 `json:"score"`
	Error  string  `json:"error,omitempty"`
}

// Extract runs extractive QA over (question, contextText) and returns the
// selected span. An empty answer with a nil error means the model found
// nothing — callers decide the fallback. Transport failures and non-2xx
// statuses are errors.
func (c *Client) Extract(ctx context.Context, question, contextText string) (Result, error) {
	payload, err := json.Marshal(qaRequest{
		Inputs:  qaInputs{Question: question, Context: contextText},
		Options: qaOptions{WaitForModel: true},
	})
	if err != nil {
		return Result{}, fmt.Errorf("qa: marshal request: %w", err)
	}

	url := c.endpoint + "/models/" + c.model
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("qa: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("qa: request failed: %w", err)
	}
	defer resp.Body.Close()

	var result qaResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Result{}, fmt.Errorf("qa: decode response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if result.Error != "" {
			msg = result.Error
		}
		return Result{}, fmt.Errorf("qa: %s", msg)
	}

	return Result{Answer: result.Answer, Score: result.Score}, nil
}
