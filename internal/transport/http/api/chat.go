package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/DungNguyen05/Economic-Agent/internal/domain"
)

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Question    string                  `json:"question"`
	ChatHistory []domain.HistoryMessage `json:"chat_history,omitempty"`
	Session     string                  `json:"session,omitempty"`
}

// Chat answers a question from the stored documents.
// POST /chat
func (h *Handler) Chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}

	result, err := h.service.Chat(c.Request().Context(), domain.ChatRequest{
		Question:  req.Question,
		History:   req.ChatHistory,
		SessionID: req.Session,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// ClearSession forgets the turns of a session.
// DELETE /sessions/:id
func (h *Handler) ClearSession(c echo.Context) error {
	id := c.Param("id")
	cleared := h.service.ClearSession(id)
	return c.JSON(http.StatusOK, map[string]any{
		"session": id,
		"cleared": cleared,
	})
}
