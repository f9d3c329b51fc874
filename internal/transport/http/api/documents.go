package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/DungNguyen05/Economic-Agent/internal/adapter/parsing"
	"github.com/DungNguyen05/Economic-Agent/internal/domain"
)

// maxUploadBytes bounds the size of an uploaded file.
const maxUploadBytes = 20 << 20

// BulkRequest is the body of POST /documents/bulk.
type BulkRequest struct {
	Documents []domain.DocumentInput `json:"documents"`
}

// SearchRequest is the body of POST /search.
type SearchRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

// AddDocument stores one document.
// POST /documents
func (h *Handler) AddDocument(c echo.Context) error {
	var in domain.DocumentInput
	if err := c.Bind(&in); err != nil {
		return badRequest("invalid request body")
	}

	id, err := h.service.AddDocument(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{
		"id":      id,
		"message": "Document added successfully",
	})
}

// BulkAddDocuments stores a batch of documents atomically.
// POST /documents/bulk
func (h *Handler) BulkAddDocuments(c echo.Context) error {
	var req BulkRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}

	ids, err := h.service.AddDocuments(c.Request().Context(), req.Documents)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"ids":     ids,
		"message": fmt.Sprintf("%d documents added successfully", len(ids)),
	})
}

// UploadDocument stores the text of an uploaded PDF or text file.
// POST /documents/upload (multipart field "file", optional "source")
func (h *Handler) UploadDocument(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest("file is required")
	}
	if fh.Size > maxUploadBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file is too large")
	}

	f, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
	if err != nil {
		return fmt.Errorf("read upload: %w", err)
	}

	in, err := DocumentFromFile(fh.Filename, data, c.FormValue("source"))
	if err != nil {
		return err
	}

	id, err := h.service.AddDocument(c.Request().Context(), in)
	if err != nil {
		return err
	}
	h.log.Info("document uploaded", zap.String("id", id), zap.String("file", fh.Filename))
	return c.JSON(http.StatusOK, map[string]string{
		"id":      id,
		"message": "Document uploaded successfully",
	})
}

// DocumentFromFile turns an uploaded file into a document input. The source
// defaults to the file name.
func DocumentFromFile(filename string, data []byte, source string) (domain.DocumentInput, error) {
	const op = "api.DocumentFromFile"

	text, err := parsing.ExtractText(filename, data)
	if err != nil {
		if errors.Is(err, parsing.ErrUnsupportedFormat) {
			return domain.DocumentInput{}, domain.Validationf(op, "only PDF and text files are supported")
		}
		return domain.DocumentInput{}, domain.Validationf(op, "could not read %s: %v", filename, err)
	}
	if text == "" {
		return domain.DocumentInput{}, domain.Validationf(op, "%s contains no text", filename)
	}

	source = strings.TrimSpace(source)
	if source == "" {
		source = filename
	}
	return domain.DocumentInput{
		Content:  text,
		Source:   source,
		Metadata: map[string]any{"filename": filename},
	}, nil
}

// ListDocuments returns every document in insertion order.
// GET /documents
func (h *Handler) ListDocuments(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.ListDocuments())
}

// GetDocument returns a document by id.
// GET /documents/:id
func (h *Handler) GetDocument(c echo.Context) error {
	doc, err := h.service.GetDocument(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, doc)
}

// DeleteDocument removes a document by id.
// DELETE /documents/:id
func (h *Handler) DeleteDocument(c echo.Context) error {
	if err := h.service.DeleteDocument(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{
		"message": "Document deleted successfully",
	})
}

// Search runs a similarity search over the stored documents.
// POST /search
func (h *Handler) Search(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	results, err := h.service.Search(c.Request().Context(), req.Query, req.MaxResults)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, results)
}

// Stats reports document, vector and session counts.
// GET /stats
func (h *Handler) Stats(c echo.Context) error {
	stats, err := h.service.Stats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"documents": stats.Documents,
		"vectors":   stats.Vectors,
		"in_sync":   stats.InSync,
		"sessions":  h.service.SessionCount(),
	})
}

// Reconcile repairs the vector index from the document store.
// POST /admin/reconcile
func (h *Handler) Reconcile(c echo.Context) error {
	stats, err := h.service.Reconcile(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}
