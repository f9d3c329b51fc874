package openaicompat

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DungNguyen05/Economic-Agent/internal/adapter/llm"
	"github.com/DungNguyen05/Economic-Agent/internal/domain"
	"github.com/DungNguyen05/Economic-Agent/internal/testutil"
)

func newTestHandler(t *testing.T, client llm.LLMClient) *Handler {
	t.Helper()
	return NewHandler(testutil.NewService(t, client, testutil.Options{}), zap.NewNop())
}

func postJSON(e *echo.Echo, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestChatCompletionsNonStreaming(t *testing.T) {
	e := echo.New()
	h := newTestHandler(t, testutil.Reply("GDP measures total output."))

	c, rec := postJSON(e, "/v1/chat/completions",
		`{"model":"economic-chatbot","stream":false,"messages":[{"role":"user","content":"What is GDP?"}]}`)
	require.NoError(t, h.ChatCompletions(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp llm.ChatCompletionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, strings.HasPrefix(resp.ID, "chatcmpl-"))
	assert.Equal(t, "chat.completion", resp.Object)
	assert.Equal(t, "economic-chatbot", resp.Model)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "assistant", resp.Choices[0].Message.Role)
	assert.Equal(t, "GDP measures total output.", resp.Choices[0].Message.Content)
	require.NotNil(t, resp.Choices[0].FinishReason)
	assert.Equal(t, "stop", *resp.Choices[0].FinishReason)

	require.NotNil(t, resp.Usage)
	assert.Positive(t, resp.Usage.PromptTokens)
	assert.Positive(t, resp.Usage.CompletionTokens)
	assert.Equal(t, resp.Usage.PromptTokens+resp.Usage.CompletionTokens, resp.Usage.TotalTokens)
}

func TestChatCompletionsAppendsSources(t *testing.T) {
	e := echo.New()
	svc := testutil.NewService(t, testutil.Reply("BTC is 50$ [1]"), testutil.Options{})
	_, err := svc.AddDocument(t.Context(), domain.DocumentInput{Content: "BTC price is 50$", Source: "market-feed"})
	require.NoError(t, err)
	h := NewHandler(svc, zap.NewNop())

	c, rec := postJSON(e, "/chat/completions", `{"messages":[{"role":"user","content":"BTC price?"}],"user":"alice"}`)
	require.NoError(t, h.ChatCompletions(c))

	var resp llm.ChatCompletionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "BTC is 50$ [1]\n\nSources: market-feed", resp.Content())
	assert.Equal(t, "economic-chatbot", resp.Model)
}

func TestChatCompletionsStreaming(t *testing.T) {
	e := echo.New()
	h := newTestHandler(t, testutil.Reply("Rates  rose today."))

	c, rec := postJSON(e, "/v1/chat/completions",
		`{"model":"economic-chatbot","stream":true,"messages":[{"role":"user","content":"rates?"}]}`)
	require.NoError(t, h.ChatCompletions(c))
	assert.Equal(t, "text/event-stream", rec.Header().Get(echo.HeaderContentType))

	var events []string
	scanner := bufio.NewScanner(rec.Body)
	for scanner.Scan() {
		if line := scanner.Text(); strings.HasPrefix(line, "data: ") {
			events = append(events, strings.TrimPrefix(line, "data: "))
		}
	}
	require.GreaterOrEqual(t, len(events), 3)
	assert.Equal(t, "[DONE]", events[len(events)-1])

	var chunks []llm.StreamChunk
	for _, ev := range events[:len(events)-1] {
		var chunk llm.StreamChunk
		require.NoError(t, json.Unmarshal([]byte(ev), &chunk))
		assert.Equal(t, "chat.completion.chunk", chunk.Object)
		chunks = append(chunks, chunk)
	}

	first := chunks[0].Choices[0]
	assert.Equal(t, "assistant", first.Delta.Role)
	assert.Empty(t, first.Delta.Content)
	assert.Nil(t, first.FinishReason)

	var content strings.Builder
	for _, chunk := range chunks[1 : len(chunks)-1] {
		content.WriteString(chunk.Choices[0].Delta.Content)
		assert.Nil(t, chunk.Choices[0].FinishReason)
	}
	assert.Equal(t, "Rates  rose today.", content.String())
	assert.Len(t, chunks, 2+3)

	last := chunks[len(chunks)-1].Choices[0]
	require.NotNil(t, last.FinishReason)
	assert.Equal(t, "stop", *last.FinishReason)
}

func TestChatCompletionsWithoutUserMessage(t *testing.T) {
	e := echo.New()
	h := newTestHandler(t, testutil.Reply("unused"))

	c, _ := postJSON(e, "/v1/chat/completions", `{"messages":[{"role":"system","content":"be brief"}]}`)
	err := h.ChatCompletions(c)

	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusBadRequest, he.Code)
}

func TestToChatRequest(t *testing.T) {
	temperature := 0.1
	req := &llm.ChatCompletionRequest{
		Temperature: &temperature,
		Messages: []llm.ChatMessage{
			{Role: "system", Content: "be brief"},
			{Role: "user", Content: "q1"},
			{Role: "assistant", Content: "a1"},
			{Role: "user", Content: "q2"},
			{Role: "assistant", Content: "trailing"},
		},
	}

	got, ok := toChatRequest(req)
	require.True(t, ok)
	assert.Equal(t, "q2", got.Question)
	assert.Equal(t, DefaultSession, got.SessionID)
	assert.Equal(t, []domain.HistoryMessage{
		{Role: domain.RoleUser, Content: "q1"},
		{Role: domain.RoleAssistant, Content: "a1"},
	}, got.History)
	assert.Equal(t, &temperature, got.Temperature)
}

func TestListModels(t *testing.T) {
	e := echo.New()
	h := newTestHandler(t, testutil.Reply("unused"))

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, h.ListModels(e.NewContext(req, rec)))

	var resp llm.ModelsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "list", resp.Object)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "economic-chatbot", resp.Data[0].ID)
	assert.Equal(t, "model", resp.Data[0].Object)
}
