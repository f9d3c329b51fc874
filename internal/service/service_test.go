package service

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DungNguyen05/Economic-Agent/internal/adapter/embedding"
	"github.com/DungNguyen05/Economic-Agent/internal/adapter/llm"
	"github.com/DungNguyen05/Economic-Agent/internal/adapter/vectorindex"
	"github.com/DungNguyen05/Economic-Agent/internal/domain"
	"github.com/DungNguyen05/Economic-Agent/internal/repository"
)

func newTestService(t *testing.T, client llm.LLMClient, configured bool) (*Service, *repository.DocumentRepository) {
	t.Helper()
	repo := repository.New(
		repository.Options{Path: filepath.Join(t.TempDir(), "documents.json"), DefaultTopK: 5},
		vectorindex.NewMemoryIndex(),
		embedding.NewHashingEmbedder(256),
		zap.NewNop(),
	)
	_, err := repo.Load(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	retriever := NewRetriever(repo, client, RetrieverConfig{Model: "gpt-4o-mini", TopK: 5, MaxContextTokens: 4000}, zap.NewNop())
	composer := NewComposer(client, ComposerConfig{Model: "gpt-4o-mini", Temperature: 0.3, FallbackToGeneral: true}, zap.NewNop())
	svc := New(repo, retriever, composer, NewSessionStore(5),
		Options{ModelName: "economic-chatbot", LLMConfigured: configured}, zap.NewNop())
	return svc, repo
}

func TestChatRequiresQuestion(t *testing.T) {
	svc, _ := newTestService(t, replyWith("unused"), true)

	_, err := svc.Chat(context.Background(), domain.ChatRequest{Question: "   "})
	assert.True(t, domain.Is(err, domain.KindValidation))
}

func TestChatWithoutCredentials(t *testing.T) {
	client := replyWith("unused")
	svc, _ := newTestService(t, client, false)

	_, err := svc.Chat(context.Background(), domain.ChatRequest{Question: "BTC price?"})
	require.Error(t, err)
	assert.True(t, domain.Is(err, domain.KindConfiguration))
	assert.Equal(t, domain.MsgNotConfigured, domain.PublicMessage(err))
	assert.Empty(t, client.calls())
}

func TestChatGroundedInDocuments(t *testing.T) {
	client := &scriptedLLM{reply: func(req *llm.ChatCompletionRequest) (string, error) {
		if req.Messages[0].Content != groundedSystemPrompt {
			return "general", nil
		}
		if strings.Contains(lastUserContent(req), "BTC price is 50$") {
			return "BTC costs 50$ [1]", nil
		}
		return insufficientContextMarker, nil
	}}
	svc, _ := newTestService(t, client, true)
	ctx := context.Background()

	id, err := svc.AddDocument(ctx, domain.DocumentInput{Content: "BTC price is 50$", Source: "test"})
	require.NoError(t, err)

	result, err := svc.Chat(ctx, domain.ChatRequest{Question: "BTC price", SessionID: "s1"})
	require.NoError(t, err)

	assert.Equal(t, "BTC costs 50$ [1]", result.Answer)
	assert.True(t, result.UsedDocuments)
	assert.Equal(t, []domain.SourceRef{{ID: id, Source: "test"}}, result.Sources)
	assert.Equal(t, "s1", result.SessionID)
	assert.Equal(t, []domain.Turn{{Question: "BTC price", Answer: "BTC costs 50$ [1]"}}, svc.sessions.Turns("s1"))
}

func TestChatEmptyStoreSkipsRetrieval(t *testing.T) {
	client := replyWith("general answer")
	svc, _ := newTestService(t, client, true)

	result, err := svc.Chat(context.Background(), domain.ChatRequest{Question: "What is GDP?"})
	require.NoError(t, err)

	assert.Equal(t, "general answer", result.Answer)
	assert.False(t, result.UsedDocuments)
	assert.True(t, strings.HasPrefix(result.SessionID, "sess_"))
	assert.Len(t, result.SessionID, len("sess_")+8)
	calls := client.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, generalSystemPrompt, calls[0].Messages[0].Content)
}

func TestChatUsesSessionTurnsUnlessHistoryGiven(t *testing.T) {
	client := replyWith("answer")
	svc, _ := newTestService(t, client, true)
	ctx := context.Background()

	_, err := svc.Chat(ctx, domain.ChatRequest{Question: "first", SessionID: "s1"})
	require.NoError(t, err)
	_, err = svc.Chat(ctx, domain.ChatRequest{Question: "second", SessionID: "s1"})
	require.NoError(t, err)

	second := client.calls()[1].Messages
	require.Len(t, second, 4)
	assert.Equal(t, "first", second[1].Content)
	assert.Equal(t, "answer", second[2].Content)

	_, err = svc.Chat(ctx, domain.ChatRequest{
		Question:  "third",
		SessionID: "s1",
		History: []domain.HistoryMessage{
			{Role: domain.RoleUser, Content: "from history"},
			{Role: domain.RoleAssistant, Content: "history answer"},
		},
	})
	require.NoError(t, err)

	third := client.calls()[2].Messages
	require.Len(t, third, 4)
	assert.Equal(t, "from history", third[1].Content)
	assert.Len(t, svc.sessions.Turns("s1"), 3)
}

func TestClearSession(t *testing.T) {
	svc, _ := newTestService(t, replyWith("a"), true)

	_, err := svc.Chat(context.Background(), domain.ChatRequest{Question: "q", SessionID: "s1"})
	require.NoError(t, err)

	assert.Equal(t, 1, svc.SessionCount())
	assert.True(t, svc.ClearSession("s1"))
	assert.False(t, svc.ClearSession("s1"))
	assert.Equal(t, 0, svc.SessionCount())
}

func TestDocumentOperations(t *testing.T) {
	svc, _ := newTestService(t, replyWith("a"), true)
	ctx := context.Background()

	ids, err := svc.AddDocuments(ctx, []domain.DocumentInput{
		{Content: "GDP grew 3% in 2023", Source: "report"},
		{Content: "Unemployment fell to 4%", Source: "survey"},
	})
	require.NoError(t, err)
	require.Len(t, ids, 2)

	doc, err := svc.GetDocument(ids[0])
	require.NoError(t, err)
	assert.Equal(t, "report", doc.Source)
	assert.Len(t, svc.ListDocuments(), 2)

	results, err := svc.Search(ctx, "Unemployment fell", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, ids[1], results[0].ID)

	_, err = svc.Search(ctx, " ", 1)
	assert.True(t, domain.Is(err, domain.KindValidation))

	require.NoError(t, svc.DeleteDocument(ctx, ids[1]))
	_, err = svc.GetDocument(ids[1])
	assert.True(t, domain.Is(err, domain.KindNotFound))
	assert.True(t, domain.Is(svc.DeleteDocument(ctx, ids[1]), domain.KindNotFound))

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.IndexStats{Documents: 1, Vectors: 1, InSync: true}, stats)

	stats, err = svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.True(t, stats.InSync)
	assert.Equal(t, "economic-chatbot", svc.ModelName())
}
