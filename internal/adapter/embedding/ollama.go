package embedding

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

// DefaultOllamaModel is used when no embedding model is configured.
const DefaultOllamaModel = "nomic-embed-text"

// ollamaModelDimensions lists the native output size of common embedding
// models, keyed by model name without tag.
var ollamaModelDimensions = map[string]int{
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
	"all-minilm":             384,
	"snowflake-arctic-embed": 1024,
	"bge-m3":                 1024,
	"bge-large":              1024,
}

// OllamaConfig configures the Ollama embedder.
type OllamaConfig struct {
	Host      string
	Model     string
	Dimension int
	Timeout   time.Duration
	KeepAlive time.Duration
}

// OllamaEmbedder generates embeddings with a local Ollama server.
type OllamaEmbedder struct {
	client    *api.Client
	model     string
	dimension int
	keepAlive *api.Duration
}

var _ Embedder = (*OllamaEmbedder)(nil)

// NewOllamaEmbedder creates an Ollama embedder. Without a configured
// dimension the model's native size is used; for models not listed in
// ollamaModelDimensions it is read from a first embedding.
func NewOllamaEmbedder(cfg OllamaConfig) (*OllamaEmbedder, error) {
	base, err := url.Parse(cfg.Host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", cfg.Host, err)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.KeepAlive == 0 {
		cfg.KeepAlive = 5 * time.Minute
	}
	e := &OllamaEmbedder{
		client:    api.NewClient(base, &http.Client{Timeout: cfg.Timeout}),
		model:     cfg.Model,
		dimension: cfg.Dimension,
		keepAlive: &api.Duration{Duration: cfg.KeepAlive},
	}
	if e.dimension > 0 {
		return e, nil
	}

	if d, ok := ollamaModelDimensions[baseModel(cfg.Model)]; ok {
		e.dimension = d
		return e, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	vec, err := e.Embed(ctx, "dimension check")
	if err != nil {
		return nil, fmt.Errorf("cannot detect the dimension of ollama model %q, set EMBEDDING_DIMENSION: %w", cfg.Model, err)
	}
	e.dimension = len(vec)
	return e, nil
}

func baseModel(model string) string {
	name, _, _ := strings.Cut(model, ":")
	return name
}

// Name returns the identifier of this embedder implementation.
func (e *OllamaEmbedder) Name() string { return "ollama" }

// Dimension returns the dimensionality of the produced embedding vectors.
func (e *OllamaEmbedder) Dimension() int { return e.dimension }

// Embed generates a vector embedding for the given text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embeddings(ctx, &api.EmbeddingRequest{
		Model:     e.model,
		Prompt:    text,
		KeepAlive: e.keepAlive,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embeddings: %w", err)
	}
	if e.dimension > 0 && len(resp.Embedding) != e.dimension {
		return nil, fmt.Errorf("ollama embeddings: got dimension %d, want %d", len(resp.Embedding), e.dimension)
	}
	vec := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

// EmbedBatch embeds texts one request at a time.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
