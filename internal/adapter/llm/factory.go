package llm

import (
	"context"

	"go.uber.org/zap"

	"github.com/DungNguyen05/Economic-Agent/internal/config"
	"github.com/DungNguyen05/Economic-Agent/internal/domain"
)

// ModeMock selects the offline mock client.
const ModeMock = "mock"

// NewLLMClient creates an LLM client based on the configured mode.
// With LLM_MODE=mock it returns a MockClient; without an API key it returns a
// client that fails every call with domain.ErrNotConfigured.
func NewLLMClient(cfg *config.Config, log *zap.Logger) LLMClient {
	if cfg.LLMMode == ModeMock {
		log.Info("LLM_MODE=mock detected, using mock LLM client")
		return NewMockClient()
	}
	if cfg.OpenAIAPIKey == "" {
		log.Warn("OPENAI_API_KEY is not set, LLM-dependent routes will report a configuration error")
		return notConfiguredClient{}
	}
	return NewClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.LLMTimeout, cfg.LLMRateLimit)
}

type notConfiguredClient struct{}

func (notConfiguredClient) CreateChatCompletion(context.Context, *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	return nil, domain.ErrNotConfigured
}
