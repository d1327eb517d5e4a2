// Package generator provides the optional generative answer composer backend.
// It prompts an OpenAI-compatible chat-completion endpoint to summarize the
// retrieved context into an answer, constrained to that context only.
// Selected with GENERATOR_ENABLED=true; the default pipeline uses extractive
// QA instead and never calls this package.
package generator

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// promptTemplate constrains the model to the retrieved context so the bot
// never fabricates platform facts. The apology sentence is the model's own
// no-answer escape hatch.
const promptTemplate = `Based only on the provided context, answer the user's question. If the context doesn't contain the answer, say "I'm sorry, I don't have that specific information."

Context:
%s

Question:
%s

Answer:`

// Config holds the settings for constructing a Generator.
type Config struct {
	// APIKey authenticates against the chat-completion endpoint.
	APIKey string
	// BaseURL overrides the OpenAI API base URL, allowing any
	// OpenAI-compatible serving stack (vLLM, Ollama, TGI).
	BaseURL string
	// Model is the chat model name.
	Model string
	// MaxTokens caps the generated answer length. Defaults to 250.
	MaxTokens int
}

// Generator produces a context-grounded answer via chat completion.
// It is safe for concurrent use.
type Generator struct {
	// client is the underlying OpenAI-compatible API client.
	client *openai.Client
	// model is the chat model name.
	model string
	// maxTokens caps the generated answer length.
	maxTokens int
}

// New constructs a Generator from the given config.
func New(cfg *Config) (*Generator, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("generator: model must not be empty")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 250
	}
	return &Generator{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		maxTokens: maxTokens,
	}, nil
}

// Generate answers question using only contextText. The returned answer is
// trimmed; an empty answer means the model produced nothing usable.
func (g *Generator) Generate(ctx context.Context, question, contextText string) (string, error) {
	prompt := fmt.Sprintf(promptTemplate, contextText, question)

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     g.model,
		MaxTokens: g.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("generator: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("generator: empty choice list")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
