package service

import (
	"context"
	"sync"

	"github.com/DungNguyen05/Economic-Agent/internal/adapter/llm"
	"github.com/DungNguyen05/Economic-Agent/internal/domain"
)

// scriptedLLM answers every request with reply and records what it was asked.
type scriptedLLM struct {
	mu       sync.Mutex
	requests []*llm.ChatCompletionRequest
	reply    func(req *llm.ChatCompletionRequest) (string, error)
}

func (s *scriptedLLM) CreateChatCompletion(_ context.Context, req *llm.ChatCompletionRequest) (*llm.ChatCompletionResponse, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	content, err := s.reply(req)
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

func (s *scriptedLLM) calls() []*llm.ChatCompletionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*llm.ChatCompletionRequest(nil), s.requests...)
}

func replyWith(content string) *scriptedLLM {
	return &scriptedLLM{reply: func(*llm.ChatCompletionRequest) (string, error) { return content, nil }}
}

func lastUserContent(req *llm.ChatCompletionRequest) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == string(domain.RoleUser) {
			return req.Messages[i].Content
		}
	}
	return ""
}

// fakeSearcher returns canned results and records the queries it receives.
type fakeSearcher struct {
	results []domain.SearchResult
	err     error
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, query string, topK int) ([]domain.SearchResult, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	out := append([]domain.SearchResult(nil), f.results...)
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (f *fakeSearcher) Count() int {
	return len(f.results)
}
