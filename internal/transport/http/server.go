// Package http provides the HTTP server implementation for the economic chatbot.
package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/DungNguyen05/Economic-Agent/internal/policy"
	"github.com/DungNguyen05/Economic-Agent/internal/service"
	"github.com/DungNguyen05/Economic-Agent/internal/transport/http/api"
	"github.com/DungNguyen05/Economic-Agent/internal/transport/http/openaicompat"
	"github.com/DungNguyen05/Economic-Agent/internal/transport/http/web"
	"github.com/DungNguyen05/Economic-Agent/internal/transport/http/webhook"
	"github.com/DungNguyen05/Economic-Agent/internal/transport/ws"
)

// Options configures the HTTP server.
type Options struct {
	Debug           bool
	APIKey          string
	MattermostToken string
	// BodyLimit caps request bodies, e.g. "20M".
	BodyLimit string
	Info      api.ServiceInfo
}

// NewServer creates and configures the HTTP server serving every surface:
// the native API, the OpenAI-compatible API, the webhook, the web page and
// the websocket chat.
func NewServer(svc *service.Service, engine *policy.Engine, opts Options, log *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = NewErrorHandler(log.Named("http"))

	if opts.BodyLimit == "" {
		opts.BodyLimit = "20M"
	}

	// Middleware
	e.Use(middleware.Recover())
	e.Use(RequestLogger(log.Named("access")))
	e.Use(middleware.CORS())
	e.Use(middleware.BodyLimit(opts.BodyLimit))
	e.Use(APIKeyAuth(engine, opts.Debug, opts.APIKey, log.Named("auth")))

	// Handlers
	apiHandler := api.NewHandler(svc, opts.Info, log.Named("api"))
	openaiHandler := openaicompat.NewHandler(svc, log.Named("openai"))
	webhookHandler := webhook.NewHandler(svc, opts.MattermostToken, log.Named("webhook"))
	webHandler := web.NewHandler(svc, log.Named("web"))
	wsServer := ws.NewServer(svc, log.Named("ws"))

	// Register Routes
	apiHandler.RegisterRoutes(e)
	openaiHandler.RegisterRoutes(e)
	webhookHandler.RegisterRoutes(e)
	webHandler.RegisterRoutes(e)
	wsServer.RegisterRoutes(e)

	return e
}
