// Package api provides the native JSON API of the economic chatbot.
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/DungNguyen05/Economic-Agent/internal/service"
)

// ServiceInfo describes the running service for GET /info.
type ServiceInfo struct {
	Service           string `json:"service"`
	Version           string `json:"version"`
	Model             string `json:"model"`
	ChatModel         string `json:"chat_model"`
	EmbeddingProvider string `json:"embedding_provider"`
	VectorBackend     string `json:"vector_backend"`
	QueryExpansion    bool   `json:"query_expansion"`
	Reranking         bool   `json:"reranking"`
	LLMConfigured     bool   `json:"llm_configured"`
}

// Handler handles native API requests.
type Handler struct {
	service *service.Service
	info    ServiceInfo
	log     *zap.Logger
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service, info ServiceInfo, log *zap.Logger) *Handler {
	if info.Service == "" {
		info.Service = "economic-chatbot"
	}
	return &Handler{
		service: service,
		info:    info,
		log:     log,
	}
}

// RegisterRoutes registers the native routes both at the root and under /api.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	for _, prefix := range []string{"", "/api"} {
		g := e.Group(prefix)

		g.POST("/chat", h.Chat)
		g.DELETE("/sessions/:id", h.ClearSession)

		g.POST("/documents", h.AddDocument)
		g.POST("/documents/bulk", h.BulkAddDocuments)
		g.POST("/documents/upload", h.UploadDocument)
		g.GET("/documents", h.ListDocuments)
		g.GET("/documents/:id", h.GetDocument)
		g.DELETE("/documents/:id", h.DeleteDocument)
		g.POST("/search", h.Search)

		g.GET("/stats", h.Stats)
		g.POST("/admin/reconcile", h.Reconcile)
		g.GET("/info", h.Info)
	}

	e.GET("/health", h.Health)
}

// Health returns health status.
// GET /health
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"service": h.info.Service,
	})
}

// Info describes the running configuration.
// GET /info
func (h *Handler) Info(c echo.Context) error {
	return c.JSON(http.StatusOK, h.info)
}

func badRequest(message string) error {
	return echo.NewHTTPError(http.StatusBadRequest, message)
}
