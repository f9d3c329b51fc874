package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DungNguyen05/Economic-Agent/internal/adapter/llm"
	"github.com/DungNguyen05/Economic-Agent/internal/domain"
	"github.com/DungNguyen05/Economic-Agent/internal/tokens"
)

func testResults() []domain.SearchResult {
	return []domain.SearchResult{
		{ID: "d2", Content: "gamma delta", Source: "b", Score: 0.5},
		{ID: "d1", Content: "alpha beta", Source: "a", Score: 0.9},
		{ID: "d3", Content: "epsilon zeta", Source: "c", Score: 0.5},
	}
}

func TestRetrieveOrdersAndTagsCandidates(t *testing.T) {
	store := &fakeSearcher{results: testResults()}
	r := NewRetriever(store, replyWith("unused"), RetrieverConfig{TopK: 5}, zap.NewNop())

	rc, err := r.Retrieve(context.Background(), "what is alpha?")
	require.NoError(t, err)

	require.Len(t, rc.Candidates, 3)
	assert.Equal(t, []string{"d1", "d2", "d3"}, []string{
		rc.Candidates[0].Result.ID, rc.Candidates[1].Result.ID, rc.Candidates[2].Result.ID,
	})
	for i, c := range rc.Candidates {
		assert.Equal(t, i+1, c.Tag)
	}
	assert.Equal(t, "[1] (source: a)\nalpha beta\n\n[2] (source: b)\ngamma delta\n\n[3] (source: c)\nepsilon zeta", rc.Text)
	assert.False(t, rc.Expanded)
	assert.False(t, rc.Reranked)
	assert.Equal(t, []string{"what is alpha?"}, store.queries)
}

func TestAssembleDropsLowestScoringFirst(t *testing.T) {
	results := []domain.SearchResult{
		{ID: "d1", Source: "a", Score: 0.9},
		{ID: "d2", Source: "b", Score: 0.5},
		{ID: "d3", Source: "c", Score: 0.1},
	}
	texts := []string{"alpha beta", "gamma delta", "epsilon zeta"}
	budget := tokens.CountAll("[1] (source: a)\n", "alpha beta") +
		tokens.CountAll("\n\n", "[2] (source: b)\n", "gamma delta")

	candidates, text := assemble(results, texts, budget)

	require.Len(t, candidates, 2)
	assert.Equal(t, "d1", candidates[0].Result.ID)
	assert.Equal(t, "d2", candidates[1].Result.ID)
	assert.NotContains(t, text, "epsilon")
	assert.LessOrEqual(t, tokens.Count(text), budget)
}

func TestAssembleTruncatesOversizedFirstCandidate(t *testing.T) {
	results := []domain.SearchResult{{ID: "d1", Source: "s", Score: 0.9}}
	texts := []string{"one two three four five six"}

	candidates, text := assemble(results, texts, 10)

	require.Len(t, candidates, 1)
	assert.Equal(t, "one two ", candidates[0].Text)
	assert.True(t, strings.HasPrefix(text, "[1] (source: s)\n"))
	assert.LessOrEqual(t, tokens.Count(text), 10)
}

func TestRetrieveWithQueryExpansion(t *testing.T) {
	store := &fakeSearcher{results: testResults()}
	client := replyWith("Improved search query: \"alpha definition economics\"\n")
	r := NewRetriever(store, client, RetrieverConfig{UseQueryExpansion: true}, zap.NewNop())

	rc, err := r.Retrieve(context.Background(), "what is alpha?")
	require.NoError(t, err)

	assert.True(t, rc.Expanded)
	assert.Equal(t, "alpha definition economics", rc.Query)
	assert.Equal(t, []string{"alpha definition economics"}, store.queries)
	calls := client.calls()
	require.Len(t, calls, 1)
	assert.Contains(t, lastUserContent(calls[0]), "Original question: what is alpha?")
}

func TestRetrieveExpansionFailureUsesOriginalQuestion(t *testing.T) {
	store := &fakeSearcher{results: testResults()}
	client := &scriptedLLM{reply: func(*llm.ChatCompletionRequest) (string, error) {
		return "", errors.New("upstream down")
	}}
	r := NewRetriever(store, client, RetrieverConfig{UseQueryExpansion: true}, zap.NewNop())

	rc, err := r.Retrieve(context.Background(), "what is alpha?")
	require.NoError(t, err)

	assert.False(t, rc.Expanded)
	assert.Equal(t, []string{"what is alpha?"}, store.queries)
	assert.Len(t, rc.Candidates, 3)
}

func TestRetrieveWithReranking(t *testing.T) {
	store := &fakeSearcher{results: testResults()}
	client := &scriptedLLM{reply: func(req *llm.ChatCompletionRequest) (string, error) {
		prompt := lastUserContent(req)
		switch {
		case strings.Contains(prompt, "alpha beta"):
			return "alpha", nil
		case strings.Contains(prompt, "gamma delta"):
			return noOutputMarker, nil
		default:
			return "", errors.New("timeout")
		}
	}}
	r := NewRetriever(store, client, RetrieverConfig{UseReranking: true}, zap.NewNop())

	rc, err := r.Retrieve(context.Background(), "what is alpha?")
	require.NoError(t, err)

	assert.True(t, rc.Reranked)
	require.Len(t, rc.Candidates, 2)
	assert.Equal(t, "alpha", rc.Candidates[0].Text)
	assert.Equal(t, "d3", rc.Candidates[1].Result.ID)
	assert.Equal(t, 2, rc.Candidates[1].Tag)
	assert.Equal(t, "epsilon zeta", rc.Candidates[1].Text)
}

func TestRetrievePropagatesSearchErrors(t *testing.T) {
	searchErr := domain.NewError(domain.KindEmbedding, "repository.Search", errors.New("down"))
	r := NewRetriever(&fakeSearcher{err: searchErr}, replyWith(""), RetrieverConfig{}, zap.NewNop())

	_, err := r.Retrieve(context.Background(), "q")
	assert.True(t, domain.Is(err, domain.KindEmbedding))
}

func TestRetrievedContextSourcesDeduplicates(t *testing.T) {
	rc := &RetrievedContext{Candidates: []Candidate{
		{Tag: 1, Result: domain.SearchResult{ID: "d1", Source: "a"}},
		{Tag: 2, Result: domain.SearchResult{ID: "d2", Source: "b"}},
		{Tag: 3, Result: domain.SearchResult{ID: "d1", Source: "a"}},
	}}

	assert.Equal(t, []domain.SourceRef{{ID: "d1", Source: "a"}, {ID: "d2", Source: "b"}}, rc.Sources())

	var empty *RetrievedContext
	assert.True(t, empty.Empty())
	assert.Equal(t, []domain.SourceRef{}, empty.Sources())
}
