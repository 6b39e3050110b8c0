// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ai

import (
	"fmt"
	"strings"
	"time"

	"github.com/poiesic/newsrag/core"
)

// Config holds configuration for AI service providers.
type Config struct {
	// EmbeddingHost is the base URL for the embedding service API.
	// Both the text and the image model are served from this host.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	EmbeddingHost string

	// CompletionHost is the base URL for the chat completion service API.
	CompletionHost string

	// TextModel is the model identifier used for article text embeddings.
	// Example: "all-minilm", "text-embedding-3-small"
	TextModel string

	// ImageModel is the CLIP-style model used for image embeddings and for
	// embedding text queries into the image space.
	ImageModel string

	// CompletionModel is the model used to synthesize answers.
	// Example: "qwen2.5:3b", "gpt-4o-mini"
	CompletionModel string

	// APIKey authenticates against hosted services. Local servers accept any value.
	APIKey string

	// Timeout bounds every individual model call.
	// Default: 60s
	Timeout time.Duration

	// MaxTextChars is the longest text accepted for embedding.
	MaxTextChars int

	// MaxImageBytes is the largest image payload accepted for embedding.
	MaxImageBytes int

	// MaxTokens caps synthesized answer length.
	// Default: 500
	MaxTokens int

	// Temperature is the sampling temperature for answer synthesis.
	// Default: 0.7
	Temperature float64
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithCompletionHost sets the completion service host URL.
func WithCompletionHost(host string) ConfigOption {
	return func(c *Config) {
		c.CompletionHost = host
	}
}

// WithHost sets both embedding and completion hosts to the same URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
		c.CompletionHost = host
	}
}

// WithTextModel sets the text embedding model identifier.
func WithTextModel(model string) ConfigOption {
	return func(c *Config) {
		c.TextModel = model
	}
}

// WithImageModel sets the image embedding model identifier.
func WithImageModel(model string) ConfigOption {
	return func(c *Config) {
		c.ImageModel = model
	}
}

// WithCompletionModel sets the completion model identifier.
func WithCompletionModel(model string) ConfigOption {
	return func(c *Config) {
		c.CompletionModel = model
	}
}

// WithAPIKey sets the API key sent to the model services.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithTimeout sets the per-call model timeout.
func WithTimeout(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithMaxTextChars sets the maximum text length accepted for embedding.
func WithMaxTextChars(n int) ConfigOption {
	return func(c *Config) {
		c.MaxTextChars = n
	}
}

// WithMaxImageBytes sets the maximum image payload accepted for embedding.
func WithMaxImageBytes(n int) ConfigOption {
	return func(c *Config) {
		c.MaxImageBytes = n
	}
}

// WithMaxTokens sets the completion token limit.
func WithMaxTokens(n int) ConfigOption {
	return func(c *Config) {
		c.MaxTokens = n
	}
}

// WithTemperature sets the completion sampling temperature.
func WithTemperature(t float64) ConfigOption {
	return func(c *Config) {
		c.Temperature = t
	}
}

// DefaultConfig returns a Config with sensible defaults for local OpenAI-compatible services.
func DefaultConfig() *Config {
	defaultHost := "http://localhost:11434/v1"
	return &Config{
		EmbeddingHost:   defaultHost,
		CompletionHost:  defaultHost,
		TextModel:       "all-minilm",
		ImageModel:      "clip-vit-base-patch32",
		CompletionModel: "qwen2.5:3b",
		Timeout:         60 * time.Second,
		MaxTextChars:    32000,
		MaxImageBytes:   10 << 20,
		MaxTokens:       500,
		Temperature:     0.7,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithHost("http://localhost:11434/v1"),
//	    WithTextModel("text-embedding-3-small"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// It adds the /v1 suffix to hosts if missing, which is required
// by most OpenAI-compatible APIs (Ollama, LocalAI, vLLM, etc).
func (c *Config) Normalize() {
	c.EmbeddingHost = normalizeHost(c.EmbeddingHost)
	c.CompletionHost = normalizeHost(c.CompletionHost)
}

func normalizeHost(host string) string {
	if host == "" || strings.HasSuffix(host, "/v1") {
		return host
	}
	return strings.TrimSuffix(host, "/") + "/v1"
}

// Token returns the API key, or a placeholder for servers without authentication.
func (c *Config) Token() string {
	if c.APIKey == "" {
		return "none"
	}
	return c.APIKey
}

// Validate checks that the configuration is valid and complete.
// It normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.EmbeddingHost == "" {
		return fmt.Errorf("%w: ai config: EmbeddingHost is required", core.ErrConfiguration)
	}
	if c.CompletionHost == "" {
		return fmt.Errorf("%w: ai config: CompletionHost is required", core.ErrConfiguration)
	}
	if c.TextModel == "" {
		return fmt.Errorf("%w: ai config: TextModel is required", core.ErrConfiguration)
	}
	if c.ImageModel == "" {
		return fmt.Errorf("%w: ai config: ImageModel is required", core.ErrConfiguration)
	}
	if c.CompletionModel == "" {
		return fmt.Errorf("%w: ai config: CompletionModel is required", core.ErrConfiguration)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: ai config: Timeout must be positive", core.ErrConfiguration)
	}
	if c.MaxTextChars <= 0 || c.MaxImageBytes <= 0 {
		return fmt.Errorf("%w: ai config: input limits must be positive", core.ErrConfiguration)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("%w: ai config: MaxTokens must be positive", core.ErrConfiguration)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: ai config: Temperature must be between 0 and 2", core.ErrConfiguration)
	}
	return nil
}
