// Package config provides YAML-based configuration for reachbot.
// Configuration is loaded with a layered precedence: defaults → YAML file → env vars.
// Environment variables always win, so existing workflows are unaffected.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. REACHBOT_CONFIG environment variable
//  3. ~/.reachbot/config.yaml
//  4. ./reachbot.yaml
//
// If no file is found the system runs entirely from env vars (backwards compatible).
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration structure.
// Field names use yaml tags that mirror the env var naming (lowercase, underscored).
type Config struct {
	// Embedding configures the embedding provider.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// QA configures the extractive question-answering model.
	QA QAConfig `yaml:"qa"`

	// Generator configures the optional generative answer mode.
	Generator GeneratorConfig `yaml:"generator"`

	// Qdrant configures the Qdrant vector store connection.
	Qdrant QdrantConfig `yaml:"qdrant"`

	// Retrieval configures the similarity search policy.
	Retrieval RetrievalConfig `yaml:"retrieval"`

	// Source configures the platform database swept by ingestion.
	Source SourceConfig `yaml:"source"`

	// Server configures the HTTP server.
	Server ServerConfig `yaml:"server"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// QuestionLog configures answered-question persistence.
	QuestionLog QuestionLogConfig `yaml:"question_log"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider selects the embedding backend: hf or ollama.
	Provider string `yaml:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// Dimensions overrides the embedding vector size.
	Dimensions int `yaml:"dimensions"`
	// APIKey is the Hugging Face API token. Prefer env var HF_API_TOKEN.
	APIKey string `yaml:"api_key"`
	// Endpoint is the embedding API endpoint.
	Endpoint string `yaml:"endpoint"`
	// TruncateChars caps the input length sent for embedding.
	TruncateChars int `yaml:"truncate_chars"`
}

// QAConfig holds extractive question-answering settings.
type QAConfig struct {
	// Model is the QA model name.
	Model string `yaml:"model"`
	// Endpoint is the QA API endpoint.
	Endpoint string `yaml:"endpoint"`
}

// GeneratorConfig holds generative answer mode settings.
type GeneratorConfig struct {
	// Enabled switches single-document answers to the generative mode.
	Enabled bool `yaml:"enabled"`
	// APIKey is the OpenAI API key. Prefer env var OPENAI_API_KEY.
	APIKey string `yaml:"api_key"`
	// Model is the chat model name.
	Model string `yaml:"model"`
	// BaseURL overrides the OpenAI API base URL.
	BaseURL string `yaml:"base_url"`
}

// QdrantConfig holds Qdrant vector store settings.
type QdrantConfig struct {
	// Host is the Qdrant server hostname.
	Host string `yaml:"host"`
	// Port is the Qdrant gRPC port.
	Port int `yaml:"port"`
	// Collection is the Qdrant collection name.
	Collection string `yaml:"collection"`
	// APIKey is the Qdrant API key. Prefer env var QDRANT_API_KEY.
	APIKey string `yaml:"api_key"`
	// TLS enables TLS for the Qdrant connection.
	TLS bool `yaml:"tls"`
}

// RetrievalConfig holds similarity search policy settings.
type RetrievalConfig struct {
	// MatchThreshold is the minimum cosine similarity score.
	MatchThreshold float64 `yaml:"match_threshold"`
	// MatchCount is the maximum number of documents retrieved.
	MatchCount int `yaml:"match_count"`
	// ListTopN is the number of documents shown in list answers.
	ListTopN int `yaml:"list_top_n"`
}

// SourceConfig holds platform database settings for ingestion.
type SourceConfig struct {
	// DBPath is the SQLite database path of the platform data.
	DBPath string `yaml:"db_path"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the bind address.
	Host string `yaml:"host"`
	// Port is the TCP port.
	Port int `yaml:"port"`
	// APIKey is the Bearer token for API authentication. Prefer env var REACHBOT_API_KEY.
	APIKey string `yaml:"api_key"`
	// RateLimit is the sustained per-IP request rate (requests/second).
	RateLimit float64 `yaml:"rate_limit"`
	// RateBurst is the maximum instantaneous per-IP burst.
	RateBurst int `yaml:"rate_burst"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

// QuestionLogConfig holds answered-question persistence settings.
type QuestionLogConfig struct {
	// DBPath is the SQLite database path. Set to "disabled" to disable.
	DBPath string `yaml:"db_path"`
}

// envMapping maps YAML config fields to their corresponding env var names.
// Only non-empty YAML values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"EMBEDDING_PROVIDER", func(c *Config) string { return c.Embedding.Provider }},
	{"EMBEDDING_MODEL", func(c *Config) string { return c.Embedding.Model }},
	{"EMBEDDING_DIMENSIONS", func(c *Config) string { return intStr(c.Embedding.Dimensions) }},
	{"HF_API_TOKEN", func(c *Config) string { return c.Embedding.APIKey }},
	{"EMBEDDING_ENDPOINT", func(c *Config) string { return c.Embedding.Endpoint }},
	{"EMBEDDING_TRUNCATE_CHARS", func(c *Config) string { return intStr(c.Embedding.TruncateChars) }},
	{"QA_MODEL", func(c *Config) string { return c.QA.Model }},
	{"QA_ENDPOINT", func(c *Config) string { return c.QA.Endpoint }},
	{"GENERATOR_ENABLED", func(c *Config) string { return boolStr(c.Generator.Enabled) }},
	{"OPENAI_API_KEY", func(c *Config) string { return c.Generator.APIKey }},
	{"GENERATOR_MODEL", func(c *Config) string { return c.Generator.Model }},
	{"GENERATOR_BASE_URL", func(c *Config) string { return c.Generator.BaseURL }},
	{"QDRANT_HOST", func(c *Config) string { return c.Qdrant.Host }},
	{"QDRANT_PORT", func(c *Config) string { return intStr(c.Qdrant.Port) }},
	{"QDRANT_COLLECTION", func(c *Config) string { return c.Qdrant.Collection }},
	{"QDRANT_API_KEY", func(c *Config) string { return c.Qdrant.APIKey }},
	{"QDRANT_TLS", func(c *Config) string { return boolStr(c.Qdrant.TLS) }},
	{"MATCH_THRESHOLD", func(c *Config) string { return floatStr(c.Retrieval.MatchThreshold) }},
	{"MATCH_COUNT", func(c *Config) string { return intStr(c.Retrieval.MatchCount) }},
	{"LIST_TOP_N", func(c *Config) string { return intStr(c.Retrieval.ListTopN) }},
	{"SOURCE_DB", func(c *Config) string { return c.Source.DBPath }},
	{"SERVER_HOST", func(c *Config) string { return c.Server.Host }},
	{"SERVER_PORT", func(c *Config) string { return intStr(c.Server.Port) }},
	{"REACHBOT_API_KEY", func(c *Config) string { return c.Server.APIKey }},
	{"SERVER_RATE_LIMIT", func(c *Config) string { return floatStr(c.Server.RateLimit) }},
	{"SERVER_RATE_BURST", func(c *Config) string { return intStr(c.Server.RateBurst) }},
	{"LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
	{"REACHBOT_QUESTION_DB", func(c *Config) string { return c.QuestionLog.DBPath }},
}

// Load reads a YAML config file and applies non-empty values as environment
// variables. Existing env vars are never overwritten (env always wins).
// Returns the path that was loaded, or empty string if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applied := 0
	for _, m := range envMapping {
		yamlVal := m.value(&cfg)
		if yamlVal == "" || yamlVal == "0" || yamlVal == "false" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue // env var already set — do not override
		}
		os.Setenv(m.envKey, yamlVal)
		applied++
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)

	return path, nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("REACHBOT_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".reachbot", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("reachbot.yaml"); err == nil {
		return "reachbot.yaml"
	}

	return ""
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("%d", v)
}

// floatStr converts a float64 to string, returning "" for zero values.
func floatStr(v float64) string {
	if v == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

// boolStr converts a bool to string, returning "" for false.
func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}
