package http

import (
	"errors"
	"fmt"
	nethttp "net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/DungNguyen05/Economic-Agent/internal/adapter/llm"
	"github.com/DungNguyen05/Economic-Agent/internal/domain"
)

// WebhookErrorText is the reply sent to the chat platform when a webhook fails.
const WebhookErrorText = "I encountered an error while processing your request. Please try again later."

type surface int

const (
	surfaceNative surface = iota
	surfaceOpenAI
	surfaceWebhook
)

func surfaceFor(path string) surface {
	switch {
	case strings.HasPrefix(path, "/webhook/"):
		return surfaceWebhook
	case strings.HasPrefix(path, "/v1/"), path == "/chat/completions":
		return surfaceOpenAI
	default:
		return surfaceNative
	}
}

// StatusFor maps an error kind to an HTTP status.
func StatusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindValidation:
		return nethttp.StatusBadRequest
	case domain.KindNotFound:
		return nethttp.StatusNotFound
	case domain.KindConfiguration, domain.KindEmbedding, domain.KindIndex:
		return nethttp.StatusServiceUnavailable
	case domain.KindGeneration:
		return nethttp.StatusBadGateway
	default:
		return nethttp.StatusInternalServerError
	}
}

func openAIErrorType(status int) string {
	switch {
	case status < 500:
		return "invalid_request_error"
	case status == nethttp.StatusServiceUnavailable:
		return "service_unavailable"
	case status == nethttp.StatusBadGateway:
		return "api_error"
	default:
		return "server_error"
	}
}

// NativeError is the error body of the native JSON API.
type NativeError struct {
	Error NativeErrorDetail `json:"error"`
}

// NativeErrorDetail describes a native API error.
type NativeErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// NewErrorHandler returns the echo error handler translating every error
// into the representation expected by the surface that served the request.
func NewErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, message, kind := classify(err)
		req := c.Request()
		fields := []zap.Field{
			zap.String("method", req.Method),
			zap.String("uri", req.RequestURI),
			zap.Int("status", status),
			zap.Error(err),
		}
		if status >= 500 {
			log.Error("request failed", fields...)
		} else {
			log.Debug("request rejected", fields...)
		}

		if req.Method == nethttp.MethodHead {
			err = c.NoContent(status)
		} else {
			switch surfaceFor(req.URL.Path) {
			case surfaceWebhook:
				err = c.JSON(nethttp.StatusOK, map[string]string{"text": WebhookErrorText})
			case surfaceOpenAI:
				err = c.JSON(status, llm.ErrorResponse{Error: &llm.APIError{
					Message: message,
					Type:    openAIErrorType(status),
					Code:    status,
				}})
			default:
				err = c.JSON(status, NativeError{Error: NativeErrorDetail{Message: message, Type: string(kind)}})
			}
		}
		if err != nil {
			log.Error("failed to write error response", zap.Error(err))
		}
	}
}

func classify(err error) (int, string, domain.Kind) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		kind := domain.KindInternal
		switch {
		case he.Code == nethttp.StatusNotFound:
			kind = domain.KindNotFound
		case he.Code < 500:
			kind = domain.KindValidation
		}
		message := nethttp.StatusText(he.Code)
		if he.Code < 500 && he.Message != nil {
			message = fmt.Sprint(he.Message)
		}
		return he.Code, message, kind
	}

	kind := domain.KindOf(err)
	return StatusFor(kind), domain.PublicMessage(err), kind
}
