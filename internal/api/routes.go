// routes.go - Route registration helpers
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// MiddlewareOptions configures SetupMiddleware
type MiddlewareOptions struct {
	EnableCORS     bool
	RequestTimeout time.Duration
	RequestLogging bool
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, status StatusHandler, push PushHandler) {
	apiGroup := e.Group("/api")

	// Health check
	apiGroup.GET("/health", status.HandleHealth)

	// Run history
	apiGroup.GET("/runs", status.HandleRuns)
	apiGroup.GET("/runs/latest", status.HandleLatestRun)
	apiGroup.GET("/runs/:runId", status.HandleGetRun)

	// Timeline data
	apiGroup.GET("/intervals", status.HandleIntervals)
	apiGroup.GET("/timeline", status.HandleTimeline)
	apiGroup.GET("/timeline/msgpack", status.HandleTimelineMsgpack)
	apiGroup.GET("/timeline.png", status.HandleImage)
	apiGroup.GET("/summary", status.HandleSummary)

	// Push notifications
	apiGroup.GET("/ws", push.HandleWebSocket)
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, opts MiddlewareOptions) {
	// Use custom error handler
	e.HTTPErrorHandler = ErrorHandler

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			if !opts.RequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return path == "/api/health" || path == "/api/ws"
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	if opts.RequestTimeout > 0 {
		e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
			Timeout: opts.RequestTimeout,
			Skipper: func(c echo.Context) bool {
				// Websocket connections are long-lived
				return strings.HasSuffix(c.Request().URL.Path, "/ws")
			},
			ErrorMessage: "Request timeout",
		}))
	}

	if opts.EnableCORS {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: []string{"*"},
			AllowMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, "If-None-Match"},
		}))
	}
}
