// Package embedding provides the text embedding providers.
package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/DungNguyen05/Economic-Agent/internal/config"
)

// Embedder turns text into fixed-length vectors.
type Embedder interface {
	// Embed returns the vector of a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension is the length of every produced vector.
	Dimension() int

	// Name identifies the provider in logs.
	Name() string
}

// New creates the embedder selected by cfg.EmbeddingProvider.
func New(cfg *config.Config) (Embedder, error) {
	switch cfg.EmbeddingProvider {
	case "hashing":
		return NewHashingEmbedder(cfg.EmbeddingDimension), nil
	case "openai":
		return NewOpenAIEmbedder(OpenAIConfig{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			Model:      cfg.EmbeddingModel,
			Timeout:    cfg.LLMTimeout,
			RateLimit:  cfg.LLMRateLimit,
			Dimensions: cfg.EmbeddingDimension,
		})
	case "ollama":
		return NewOllamaEmbedder(OllamaConfig{
			Host:      cfg.OllamaHost,
			Model:     cfg.EmbeddingModel,
			Dimension: cfg.EmbeddingDimension,
			Timeout:   30 * time.Second,
		})
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbeddingProvider)
	}
}
