package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/DungNguyen05/Economic-Agent/internal/adapter/llm"
	"github.com/DungNguyen05/Economic-Agent/internal/domain"
)

// ComposerConfig tunes a Composer.
type ComposerConfig struct {
	Model             string
	Temperature       float64
	MaxTokens         int
	FallbackToGeneral bool
	MaxTurns          int
}

// ComposeInput is everything the composer needs for one answer.
type ComposeInput struct {
	Question string
	// Context is nil when the document store is empty.
	Context     *RetrievedContext
	Turns       []domain.Turn
	Temperature *float64
	MaxTokens   *int
}

// Composer asks the LLM for an answer grounded in retrieved context.
type Composer struct {
	llm llm.LLMClient
	cfg ComposerConfig
	log *zap.Logger
}

// NewComposer creates a composer.
func NewComposer(client llm.LLMClient, cfg ComposerConfig, log *zap.Logger) *Composer {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = 5
	}
	return &Composer{llm: client, cfg: cfg, log: log}
}

// Compose answers in.Question. Grounded answers are preferred; a general
// answer is only produced when FallbackToGeneral is on and either the store is
// empty or the model flags the context as insufficient.
func (c *Composer) Compose(ctx context.Context, in ComposeInput) (*domain.ChatResult, error) {
	if in.Context == nil {
		if !c.cfg.FallbackToGeneral {
			return &domain.ChatResult{Answer: domain.MsgNoDocuments, Sources: []domain.SourceRef{}}, nil
		}
		return c.general(ctx, in)
	}

	if !in.Context.Empty() {
		messages := c.messages(groundedSystemPrompt, in.Turns, groundedUserPrompt(in.Context.Text, in.Question))
		answer, err := c.generate(ctx, messages, in)
		if err != nil {
			return nil, err
		}
		if !strings.Contains(answer, insufficientContextMarker) {
			return &domain.ChatResult{
				Answer:        answer,
				Sources:       in.Context.Sources(),
				UsedDocuments: true,
			}, nil
		}
		c.log.Debug("model reported insufficient context", zap.Int("candidates", len(in.Context.Candidates)))
	}

	if c.cfg.FallbackToGeneral {
		return c.general(ctx, in)
	}
	return &domain.ChatResult{Answer: domain.MsgNoRelevantContext, Sources: []domain.SourceRef{}}, nil
}

func (c *Composer) general(ctx context.Context, in ComposeInput) (*domain.ChatResult, error) {
	answer, err := c.generate(ctx, c.messages(generalSystemPrompt, in.Turns, in.Question), in)
	if err != nil {
		return nil, err
	}
	// A general answer never carries the grounding marker.
	answer = strings.TrimSpace(strings.ReplaceAll(answer, insufficientContextMarker, ""))
	return &domain.ChatResult{Answer: answer, Sources: []domain.SourceRef{}}, nil
}

func (c *Composer) messages(system string, turns []domain.Turn, user string) []llm.ChatMessage {
	turns = lastTurns(turns, c.cfg.MaxTurns)
	messages := make([]llm.ChatMessage, 0, 2+2*len(turns))
	messages = append(messages, llm.ChatMessage{Role: string(domain.RoleSystem), Content: system})
	for _, t := range turns {
		messages = append(messages,
			llm.ChatMessage{Role: string(domain.RoleUser), Content: t.Question},
			llm.ChatMessage{Role: string(domain.RoleAssistant), Content: t.Answer},
		)
	}
	return append(messages, llm.ChatMessage{Role: string(domain.RoleUser), Content: user})
}

func (c *Composer) generate(ctx context.Context, messages []llm.ChatMessage, in ComposeInput) (string, error) {
	const op = "service.Compose"

	temperature := c.cfg.Temperature
	if in.Temperature != nil {
		temperature = *in.Temperature
	}
	req := &llm.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: &temperature,
	}
	if in.MaxTokens != nil {
		req.MaxTokens = in.MaxTokens
	} else if c.cfg.MaxTokens > 0 {
		maxTokens := c.cfg.MaxTokens
		req.MaxTokens = &maxTokens
	}

	resp, err := c.llm.CreateChatCompletion(ctx, req)
	if err != nil {
		if errors.Is(err, domain.ErrNotConfigured) {
			return "", domain.NewError(domain.KindConfiguration, op, err)
		}
		c.log.Error("LLM generation failed", zap.String("model", c.cfg.Model), zap.Error(err))
		return "", domain.NewError(domain.KindGeneration, op, err)
	}
	return strings.TrimSpace(resp.Content()), nil
}
