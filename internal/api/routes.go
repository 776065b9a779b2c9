// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/quick-analysis/backend/internal/logger"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Sessions         SessionManager
	Version          string
	ProgressInterval time.Duration
	WSMaxMessageKB   int
}

// Handlers holds all handler instances
type Handlers struct {
	Health   HealthHandler
	Session  SessionHandler
	Files    FileHandler
	Analysis AnalysisHandler
	Push     PushHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:   NewHealthHandler(deps.Version, deps.Sessions.Catalog()),
		Session:  NewSessionHandler(deps.Sessions),
		Files:    NewFileHandler(deps.Sessions),
		Analysis: NewAnalysisHandler(deps.Sessions, deps.ProgressInterval),
		Push:     NewWebSocketHandler(deps.Sessions, deps.WSMaxMessageKB),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	api := e.Group("/api")

	// Health check
	api.GET("/health", handlers.Health.HandleHealth)
	api.GET("/locales", handlers.Health.HandleLocales)

	// Session routes
	sessions := api.Group("/sessions")
	sessions.POST("", handlers.Session.HandleCreateSession)
	sessions.GET("/:id", handlers.Session.HandleGetSession)
	sessions.DELETE("/:id", handlers.Session.HandleDeleteSession)
	sessions.POST("/:id/keepalive", handlers.Session.HandleSessionKeepAlive)
	sessions.PUT("/:id/preferences", handlers.Session.HandleUpdatePreferences)

	// Staging routes
	sessions.POST("/:id/files", handlers.Files.HandleAddFiles)
	sessions.DELETE("/:id/files/:index", handlers.Files.HandleRemoveFile)

	// Analysis routes
	sessions.POST("/:id/analysis", handlers.Analysis.HandleStartAnalysis)
	sessions.GET("/:id/analysis/progress", handlers.Analysis.HandleProgressStream)
	sessions.POST("/:id/analysis/reset", handlers.Analysis.HandleStartOver)
	sessions.POST("/:id/report/download", handlers.Analysis.HandleDownloadReport)
	sessions.POST("/:id/report/share", handlers.Analysis.HandleShareResult)
}

// RegisterWebSocketRoutes registers WebSocket routes
func RegisterWebSocketRoutes(e *echo.Echo, handlers *Handlers) {
	e.GET("/api/ws/sessions/:id", handlers.Push.HandleWebSocket)
}

// MiddlewareConfig tunes SetupMiddleware.
type MiddlewareConfig struct {
	EnableCORS     bool
	AllowOrigins   []string
	BodyLimit      int64
	RequestLogging bool
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, cfg MiddlewareConfig) {
	e.HTTPErrorHandler = ErrorHandler
	e.Validator = NewRequestValidator()

	e.Use(middleware.Recover())

	if cfg.RequestLogging {
		e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
			LogMethod:   true,
			LogURI:      true,
			LogStatus:   true,
			LogLatency:  true,
			LogRemoteIP: true,
			LogError:    true,
			LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
				entry := logger.WithFields(logrus.Fields{
					"method":  v.Method,
					"uri":     v.URI,
					"status":  v.Status,
					"latency": v.Latency.String(),
					"remote":  v.RemoteIP,
				})
				if v.Error != nil {
					entry = entry.WithError(v.Error)
				}
				entry.Info("request")
				return nil
			},
		}))
	}

	if cfg.EnableCORS {
		origins := cfg.AllowOrigins
		if len(origins) == 0 {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, "Accept-Language"},
		}))
	}

	if cfg.BodyLimit > 0 {
		e.Use(middleware.BodyLimit(strconv.FormatInt(cfg.BodyLimit, 10)))
	}

	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Skipper: func(c echo.Context) bool {
			p := c.Request().URL.Path
			return strings.HasSuffix(p, "/progress") || strings.HasPrefix(p, "/api/ws/")
		},
	}))
}

// NewServer builds a fully wired Echo instance.
func NewServer(deps *Dependencies, cfg MiddlewareConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	SetupMiddleware(e, cfg)
	handlers := NewHandlers(deps)
	RegisterRoutes(e, handlers)
	RegisterWebSocketRoutes(e, handlers)
	return e
}
