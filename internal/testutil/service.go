// Package testutil builds fully wired services for transport tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/DungNguyen05/Economic-Agent/internal/adapter/embedding"
	"github.com/DungNguyen05/Economic-Agent/internal/adapter/llm"
	"github.com/DungNguyen05/Economic-Agent/internal/adapter/vectorindex"
	"github.com/DungNguyen05/Economic-Agent/internal/repository"
	"github.com/DungNguyen05/Economic-Agent/internal/service"
)

// LLMFunc adapts a function to llm.LLMClient. It receives the request and
// returns the assistant content.
type LLMFunc func(req *llm.ChatCompletionRequest) (string, error)

// CreateChatCompletion implements llm.LLMClient.
func (f LLMFunc) CreateChatCompletion(_ context.Context, req *llm.ChatCompletionRequest) (*llm.ChatCompletionResponse, error) {
	content, err := f(req)
	if err != nil {
		return nil, err
	}
	stop := "stop"
	return &llm.ChatCompletionResponse{
		Object: "chat.completion",
		Model:  req.Model,
		Choices: []llm.Choice{{
			Message:      &llm.ChatMessage{Role: "assistant", Content: content},
			FinishReason: &stop,
		}},
	}, nil
}

// Reply returns an LLMFunc that always answers content.
func Reply(content string) LLMFunc {
	return func(*llm.ChatCompletionRequest) (string, error) { return content, nil }
}

// Options tunes NewService.
type Options struct {
	// Unconfigured simulates a missing LLM credential.
	Unconfigured bool
	// NoFallback disables general-knowledge answers.
	NoFallback bool
	// DefaultTopK is the search size used when a request gives none.
	DefaultTopK int
}

// NewService creates a service over an in-memory index and the hashing
// embedder, backed by a document file in a temporary directory.
func NewService(t *testing.T, client llm.LLMClient, opts Options) *service.Service {
	t.Helper()

	topK := opts.DefaultTopK
	if topK <= 0 {
		topK = 5
	}
	repo := repository.New(
		repository.Options{Path: filepath.Join(t.TempDir(), "documents.json"), DefaultTopK: topK},
		vectorindex.NewMemoryIndex(),
		embedding.NewHashingEmbedder(256),
		zap.NewNop(),
	)
	if _, err := repo.Load(context.Background()); err != nil {
		t.Fatalf("failed to load repository: %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})

	log := zap.NewNop()
	retriever := service.NewRetriever(repo, client, service.RetrieverConfig{Model: "gpt-4o-mini", TopK: topK}, log)
	composer := service.NewComposer(client, service.ComposerConfig{
		Model:             "gpt-4o-mini",
		Temperature:       0.3,
		FallbackToGeneral: !opts.NoFallback,
	}, log)
	return service.New(repo, retriever, composer, service.NewSessionStore(5), service.Options{
		ModelName:     "economic-chatbot",
		LLMConfigured: !opts.Unconfigured,
	}, log)
}
