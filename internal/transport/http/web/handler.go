// Package web serves the browser interface.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/DungNguyen05/Economic-Agent/internal/domain"
	"github.com/DungNguyen05/Economic-Agent/internal/service"
)

//go:embed templates/*
var templatesFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templatesFS, "templates/index.html"))

type pageData struct {
	Documents int
	Message   string
	Error     string
}

// Handler serves the HTML page and its upload form.
type Handler struct {
	service *service.Service
	log     *zap.Logger
}

// NewHandler creates a web handler.
func NewHandler(service *service.Service, log *zap.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log,
	}
}

// RegisterRoutes registers the web routes.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.Index)
	e.POST("/upload", h.Upload)
}

// Index renders the chat page.
// GET /
func (h *Handler) Index(c echo.Context) error {
	return h.render(c, pageData{})
}

// Upload adds a document from the page form and renders the page again.
// POST /upload
func (h *Handler) Upload(c echo.Context) error {
	in := domain.DocumentInput{
		Content: c.FormValue("content"),
		Source:  c.FormValue("source"),
	}

	id, err := h.service.AddDocument(c.Request().Context(), in)
	if err != nil {
		h.log.Warn("web upload failed", zap.Error(err))
		return h.render(c, pageData{Error: domain.PublicMessage(err)})
	}
	return h.render(c, pageData{Message: fmt.Sprintf("Document added successfully with ID: %s", id)})
}

func (h *Handler) render(c echo.Context, data pageData) error {
	data.Documents = len(h.service.ListDocuments())

	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, data); err != nil {
		return fmt.Errorf("render index: %w", err)
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}
