// Package openaicompat exposes the chatbot through the OpenAI chat completions API.
package openaicompat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/DungNguyen05/Economic-Agent/internal/adapter/llm"
	"github.com/DungNguyen05/Economic-Agent/internal/domain"
	"github.com/DungNguyen05/Economic-Agent/internal/service"
	"github.com/DungNguyen05/Economic-Agent/internal/tokens"
)

// DefaultSession is used when a request carries no user.
const DefaultSession = "default"

// wordPattern splits an answer into stream pieces, keeping trailing whitespace
// so the concatenated deltas reproduce the answer.
var wordPattern = regexp.MustCompile(`\S+\s*`)

// Handler handles OpenAI-compatible HTTP requests.
type Handler struct {
	service *service.Service
	log     *zap.Logger
	now     func() time.Time
}

// NewHandler creates a new OpenAI-compatible handler.
func NewHandler(service *service.Service, log *zap.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log,
		now:     time.Now,
	}
}

// RegisterRoutes registers OpenAI-compatible routes.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/v1/chat/completions", h.ChatCompletions)
	e.POST("/chat/completions", h.ChatCompletions)
	e.GET("/v1/models", h.ListModels)
}

// ChatCompletions answers the last user message of the conversation.
// POST /v1/chat/completions and POST /chat/completions
func (h *Handler) ChatCompletions(c echo.Context) error {
	ctx := c.Request().Context()

	var req llm.ChatCompletionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	chatReq, ok := toChatRequest(&req)
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "No user message found")
	}
	h.log.Info("chat completion request",
		zap.Int("messages", len(req.Messages)),
		zap.String("session", chatReq.SessionID),
		zap.Bool("stream", req.Stream))

	answer, err := h.answer(ctx, chatReq)
	if err != nil {
		return err
	}

	model := req.Model
	if model == "" {
		model = h.service.ModelName()
	}
	id := "chatcmpl-" + uuid.New().String()[:8]
	created := h.now().Unix()

	if req.Stream {
		return h.stream(c, id, created, model, answer)
	}

	promptTokens := tokens.Count(joinContents(req.Messages))
	completionTokens := tokens.Count(answer)
	stop := "stop"

	return c.JSON(http.StatusOK, &llm.ChatCompletionResponse{
		ID:      id,
		Object:  "chat.completion",
		Created: created,
		Model:   model,
		Choices: []llm.Choice{{
			Index:        0,
			Message:      &llm.ChatMessage{Role: string(domain.RoleAssistant), Content: answer},
			FinishReason: &stop,
		}},
		Usage: &llm.Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
	})
}

// answer runs the chat pipeline and appends the cited sources.
func (h *Handler) answer(ctx context.Context, req domain.ChatRequest) (string, error) {
	result, err := h.service.Chat(ctx, req)
	if err != nil {
		return "", err
	}
	answer := result.Answer
	if labels := result.SourceLabels(); len(labels) > 0 {
		answer += "\n\nSources: " + strings.Join(labels, ", ")
	}
	return answer, nil
}

// stream writes the answer as chat.completion.chunk server-sent events.
func (h *Handler) stream(c echo.Context, id string, created int64, model, answer string) error {
	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set(echo.HeaderCacheControl, "no-cache")
	w.Header().Set(echo.HeaderConnection, "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, ok := w.Writer.(http.Flusher)
	if !ok {
		h.log.Warn("response writer does not support flushing")
	}

	send := func(delta *llm.ChatMessage, finishReason *string) error {
		data, err := json.Marshal(&llm.StreamChunk{
			ID:      id,
			Object:  "chat.completion.chunk",
			Created: created,
			Model:   model,
			Choices: []llm.Choice{{Index: 0, Delta: delta, FinishReason: finishReason}},
		})
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	}

	if err := send(&llm.ChatMessage{Role: string(domain.RoleAssistant)}, nil); err != nil {
		h.log.Warn("stream aborted", zap.Error(err))
		return nil
	}
	for _, word := range wordPattern.FindAllString(answer, -1) {
		if err := send(&llm.ChatMessage{Content: word}, nil); err != nil {
			h.log.Warn("stream aborted", zap.Error(err))
			return nil
		}
	}
	stop := "stop"
	if err := send(&llm.ChatMessage{}, &stop); err != nil {
		h.log.Warn("stream aborted", zap.Error(err))
		return nil
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	if flusher != nil {
		flusher.Flush()
	}
	return nil
}

// ListModels advertises the chatbot as the only model.
// GET /v1/models
func (h *Handler) ListModels(c echo.Context) error {
	name := h.service.ModelName()
	return c.JSON(http.StatusOK, llm.ModelsResponse{
		Object: "list",
		Data: []llm.Model{{
			ID:      name,
			Object:  "model",
			Created: h.now().Unix(),
			OwnedBy: name,
		}},
	})
}

// toChatRequest takes the last user message as the question and the user and
// assistant messages before it as history.
func toChatRequest(req *llm.ChatCompletionRequest) (domain.ChatRequest, bool) {
	last := -1
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == string(domain.RoleUser) {
			last = i
			break
		}
	}
	if last < 0 || strings.TrimSpace(req.Messages[last].Content) == "" {
		return domain.ChatRequest{}, false
	}

	var history []domain.HistoryMessage
	for _, m := range req.Messages[:last] {
		role := domain.Role(m.Role)
		if role == domain.RoleUser || role == domain.RoleAssistant {
			history = append(history, domain.HistoryMessage{Role: role, Content: m.Content})
		}
	}

	session := req.User
	if session == "" {
		session = DefaultSession
	}
	return domain.ChatRequest{
		Question:    req.Messages[last].Content,
		History:     history,
		SessionID:   session,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}, true
}

func joinContents(messages []llm.ChatMessage) string {
	contents := make([]string, len(messages))
	for i, m := range messages {
		contents[i] = m.Content
	}
	return strings.Join(contents, " ")
}
