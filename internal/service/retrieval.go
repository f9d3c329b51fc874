package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/DungNguyen05/Economic-Agent/internal/adapter/llm"
	"github.com/DungNguyen05/Economic-Agent/internal/domain"
	"github.com/DungNguyen05/Economic-Agent/internal/tokens"
)

// Searcher is the part of the document store the retriever reads from.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]domain.SearchResult, error)
	Count() int
}

// RetrieverConfig tunes a Retriever.
type RetrieverConfig struct {
	Model             string
	TopK              int
	MaxContextTokens  int
	UseQueryExpansion bool
	UseReranking      bool
}

// Candidate is a retrieved document kept in the assembled context.
type Candidate struct {
	// Tag is the 1-based reference number shown to the model as [Tag].
	Tag    int
	Result domain.SearchResult
	// Text is the content placed in the context, possibly reranked or truncated.
	Text string
}

// RetrievedContext is the output of a single retrieval call.
type RetrievedContext struct {
	Query      string
	Expanded   bool
	Reranked   bool
	Candidates []Candidate
	Text       string
}

// Empty reports whether no candidate made it into the context.
func (rc *RetrievedContext) Empty() bool {
	return rc == nil || len(rc.Candidates) == 0
}

// Sources returns the cited documents de-duplicated by id, first seen first.
func (rc *RetrievedContext) Sources() []domain.SourceRef {
	sources := []domain.SourceRef{}
	if rc == nil {
		return sources
	}
	seen := make(map[string]bool, len(rc.Candidates))
	for _, c := range rc.Candidates {
		if seen[c.Result.ID] {
			continue
		}
		seen[c.Result.ID] = true
		sources = append(sources, domain.SourceRef{ID: c.Result.ID, Source: c.Result.Source})
	}
	return sources
}

// Retriever turns a question into a bounded, tagged context.
type Retriever struct {
	store Searcher
	llm   llm.LLMClient
	cfg   RetrieverConfig
	log   *zap.Logger
}

// NewRetriever creates a retriever.
func NewRetriever(store Searcher, client llm.LLMClient, cfg RetrieverConfig, log *zap.Logger) *Retriever {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.MaxContextTokens <= 0 {
		cfg.MaxContextTokens = 4000
	}
	return &Retriever{store: store, llm: client, cfg: cfg, log: log}
}

// Retrieve searches the store for question and assembles the context.
// Expansion and reranking failures degrade to the unmodified behaviour.
func (r *Retriever) Retrieve(ctx context.Context, question string) (*RetrievedContext, error) {
	rc := &RetrievedContext{Query: question}

	if r.cfg.UseQueryExpansion {
		if q, ok := r.expand(ctx, question); ok {
			rc.Query = q
			rc.Expanded = true
		}
	}

	results, err := r.store.Search(ctx, rc.Query, r.cfg.TopK)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	texts := make([]string, len(results))
	for i, res := range results {
		texts[i] = res.Content
	}
	if r.cfg.UseReranking && len(results) > 0 {
		texts = r.rerank(ctx, question, results)
		rc.Reranked = true
	}

	var kept []domain.SearchResult
	var keptTexts []string
	for i, res := range results {
		if texts[i] == "" {
			continue
		}
		kept = append(kept, res)
		keptTexts = append(keptTexts, texts[i])
	}

	rc.Candidates, rc.Text = assemble(kept, keptTexts, r.cfg.MaxContextTokens)
	r.log.Debug("context assembled",
		zap.String("query", rc.Query),
		zap.Int("retrieved", len(results)),
		zap.Int("kept", len(rc.Candidates)),
		zap.Bool("expanded", rc.Expanded),
		zap.Bool("reranked", rc.Reranked))
	return rc, nil
}

func (r *Retriever) expand(ctx context.Context, question string) (string, bool) {
	temperature := 0.0
	resp, err := r.llm.CreateChatCompletion(ctx, &llm.ChatCompletionRequest{
		Model:       r.cfg.Model,
		Messages:    []llm.ChatMessage{{Role: string(domain.RoleUser), Content: expansionPrompt(question)}},
		Temperature: &temperature,
	})
	if err != nil {
		r.log.Warn("query expansion failed, using original question", zap.Error(err))
		return "", false
	}
	q := cleanQuery(resp.Content())
	if q == "" {
		return "", false
	}
	return q, true
}

// rerank returns the extracted text per result. An empty string drops the result.
func (r *Retriever) rerank(ctx context.Context, question string, results []domain.SearchResult) []string {
	temperature := 0.0
	out := make([]string, len(results))
	for i, res := range results {
		resp, err := r.llm.CreateChatCompletion(ctx, &llm.ChatCompletionRequest{
			Model:       r.cfg.Model,
			Messages:    []llm.ChatMessage{{Role: string(domain.RoleUser), Content: extractionPrompt(question, res.Content)}},
			Temperature: &temperature,
		})
		if err != nil {
			r.log.Warn("rerank failed, keeping raw content", zap.String("id", res.ID), zap.Error(err))
			out[i] = res.Content
			continue
		}
		extracted := strings.TrimSpace(resp.Content())
		switch {
		case strings.HasPrefix(extracted, noOutputMarker):
			r.log.Debug("rerank dropped candidate", zap.String("id", res.ID))
		case extracted == "":
			out[i] = res.Content
		default:
			out[i] = extracted
		}
	}
	return out
}

// assemble tags results in order and joins them while they fit in budget tokens.
// Results are expected best first, so the lowest scoring are the ones dropped.
// A first result that alone exceeds the budget is truncated rather than dropped.
func assemble(results []domain.SearchResult, texts []string, budget int) ([]Candidate, string) {
	candidates := make([]Candidate, 0, len(results))
	var b strings.Builder
	used := 0

	for i, res := range results {
		tag := len(candidates) + 1
		sep := ""
		if i > 0 {
			sep = "\n\n"
		}
		header := fmt.Sprintf("[%d] (source: %s)\n", tag, res.Source)
		text := texts[i]
		cost := tokens.CountAll(sep, header, text)

		if used+cost > budget {
			if len(candidates) > 0 {
				break
			}
			text = tokens.Truncate(text, budget-tokens.Count(header))
			if strings.TrimSpace(text) == "" {
				break
			}
			cost = tokens.CountAll(header, text)
		}

		b.WriteString(sep)
		b.WriteString(header)
		b.WriteString(text)
		used += cost
		candidates = append(candidates, Candidate{Tag: tag, Result: res, Text: text})
	}
	return candidates, b.String()
}
