package web

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DungNguyen05/Economic-Agent/internal/testutil"
)

func TestIndex(t *testing.T) {
	e := echo.New()
	h := NewHandler(testutil.NewService(t, testutil.Reply("unused"), testutil.Options{}), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, h.Index(e.NewContext(req, rec)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Economic Chatbot")
	assert.Contains(t, rec.Body.String(), "0 document(s)")
	assert.Contains(t, rec.Body.String(), "/ws/chat")
}

func TestUpload(t *testing.T) {
	e := echo.New()
	svc := testutil.NewService(t, testutil.Reply("unused"), testutil.Options{})
	h := NewHandler(svc, zap.NewNop())

	form := url.Values{"content": {"Oil rose to 90$ a barrel"}, "source": {"<b>energy</b>"}}
	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	require.NoError(t, h.Upload(e.NewContext(req, rec)))

	assert.Contains(t, rec.Body.String(), "Document added successfully with ID: ")
	assert.Contains(t, rec.Body.String(), "1 document(s)")
	docs := svc.ListDocuments()
	require.Len(t, docs, 1)
	assert.Equal(t, "<b>energy</b>", docs[0].Source)
}

func TestUploadValidationError(t *testing.T) {
	e := echo.New()
	h := NewHandler(testutil.NewService(t, testutil.Reply("unused"), testutil.Options{}), zap.NewNop())

	form := url.Values{"content": {""}, "source": {"x"}}
	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	require.NoError(t, h.Upload(e.NewContext(req, rec)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "content is required")
}
