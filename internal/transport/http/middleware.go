package http

import (
	nethttp "net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/DungNguyen05/Economic-Agent/internal/policy"
)

var denialMessages = map[string]string{
	policy.ReasonMissingAPIKey:       "Missing API key",
	policy.ReasonMalformedHeader:     "Invalid Authorization header format",
	policy.ReasonInvalidAPIKey:       "Invalid API key",
	policy.ReasonAPIKeyNotConfigured: "API key is not configured on the server",
}

// APIKeyAuth asks the policy engine whether each request may proceed.
func APIKeyAuth(engine *policy.Engine, debug bool, apiKey string, log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			in := policy.NewInput(req.URL.Path, req.Header.Get(echo.HeaderAuthorization), debug, apiKey)

			decision, err := engine.Evaluate(req.Context(), in)
			if err != nil {
				return err
			}
			if decision.Allow {
				if decision.Reason == policy.ReasonDebug {
					log.Debug("debug mode, skipping API key validation", zap.String("path", req.URL.Path))
				}
				return next(c)
			}

			log.Warn("request denied by policy",
				zap.String("path", req.URL.Path),
				zap.String("reason", decision.Reason))
			message, ok := denialMessages[decision.Reason]
			if !ok {
				message = "Invalid API key"
			}
			return echo.NewHTTPError(nethttp.StatusUnauthorized, message)
		}
	}
}

// RequestLogger logs every request through zap.
func RequestLogger(log *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			log.Info("request", fields...)
			return nil
		},
	})
}
