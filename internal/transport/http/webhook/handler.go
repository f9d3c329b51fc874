// Package webhook adapts Mattermost outgoing webhooks to the chat pipeline.
package webhook

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/DungNguyen05/Economic-Agent/internal/domain"
	"github.com/DungNguyen05/Economic-Agent/internal/service"
)

// EmptyQuestionText is the reply to a message that only contains the trigger word.
const EmptyQuestionText = "I didn't receive a question. How can I help you?"

// Request is a Mattermost outgoing webhook payload. Mattermost posts it as a
// form by default and as JSON when configured to.
type Request struct {
	Token       string `form:"token" json:"token"`
	TeamID      string `form:"team_id" json:"team_id"`
	ChannelID   string `form:"channel_id" json:"channel_id"`
	ChannelName string `form:"channel_name" json:"channel_name"`
	UserID      string `form:"user_id" json:"user_id"`
	UserName    string `form:"user_name" json:"user_name"`
	PostID      string `form:"post_id" json:"post_id"`
	Text        string `form:"text" json:"text"`
	TriggerWord string `form:"trigger_word" json:"trigger_word"`
}

// Response is the body Mattermost renders in the channel.
type Response struct {
	Text string `json:"text"`
}

// Handler handles webhook requests. Every reply uses status 200 because the
// platform only renders the text field.
type Handler struct {
	service *service.Service
	token   string
	log     *zap.Logger
}

// NewHandler creates a webhook handler. An empty token disables token checks.
func NewHandler(service *service.Service, token string, log *zap.Logger) *Handler {
	return &Handler{
		service: service,
		token:   token,
		log:     log,
	}
}

// RegisterRoutes registers the webhook route.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/webhook/mattermost", h.Mattermost)
}

// Mattermost answers the question of an outgoing webhook.
// POST /webhook/mattermost
func (h *Handler) Mattermost(c echo.Context) error {
	var req Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid webhook payload")
	}

	if h.token != "" && subtle.ConstantTimeCompare([]byte(req.Token), []byte(h.token)) != 1 {
		h.log.Warn("webhook token mismatch", zap.String("channel", req.ChannelName))
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid webhook token")
	}

	question := StripTrigger(req.Text, req.TriggerWord)
	if question == "" {
		return c.JSON(http.StatusOK, Response{Text: EmptyQuestionText})
	}

	userID := req.UserID
	if userID == "" {
		userID = "default"
	}
	userName := req.UserName
	if userName == "" {
		userName = "unknown"
	}
	h.log.Info("webhook question", zap.String("user", userName), zap.String("channel", req.ChannelName))

	result, err := h.service.Chat(c.Request().Context(), domain.ChatRequest{
		Question:  question,
		SessionID: "mattermost_" + userID,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, Response{Text: FormatReply(result, userName)})
}

// StripTrigger removes a leading trigger word from text.
func StripTrigger(text, trigger string) string {
	if trigger != "" && strings.HasPrefix(text, trigger) {
		text = text[len(trigger):]
	}
	return strings.TrimSpace(text)
}

// FormatReply renders an answer as Mattermost markdown.
func FormatReply(result *domain.ChatResult, userName string) string {
	var b strings.Builder
	if userName != "" {
		fmt.Fprintf(&b, "@%s: ", userName)
	}
	b.WriteString(result.Answer)
	if len(result.Sources) > 0 {
		b.WriteString("\n\n**Sources:**\n")
		for i, s := range result.Sources {
			fmt.Fprintf(&b, "%d. **%s**\n", i+1, s.Source)
		}
	}
	return b.String()
}
