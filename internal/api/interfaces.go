// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"github.com/labstack/echo/v4"

	"github.com/quick-analysis/backend/internal/flow"
	"github.com/quick-analysis/backend/internal/i18n"
	"github.com/quick-analysis/backend/internal/models"
	"github.com/quick-analysis/backend/internal/storage"
)

// HealthHandler handles health check and catalog operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
	HandleLocales(c echo.Context) error
}

// SessionHandler handles the lifecycle and preferences of a flow
type SessionHandler interface {
	HandleCreateSession(c echo.Context) error
	HandleGetSession(c echo.Context) error
	HandleDeleteSession(c echo.Context) error
	HandleSessionKeepAlive(c echo.Context) error
	HandleUpdatePreferences(c echo.Context) error
}

// FileHandler handles staging operations
type FileHandler interface {
	HandleAddFiles(c echo.Context) error
	HandleRemoveFile(c echo.Context) error
}

// AnalysisHandler handles submission, progress and the result actions
type AnalysisHandler interface {
	HandleStartAnalysis(c echo.Context) error
	HandleProgressStream(c echo.Context) error
	HandleStartOver(c echo.Context) error
	HandleDownloadReport(c echo.Context) error
	HandleShareResult(c echo.Context) error
}

// PushHandler streams views over a websocket
type PushHandler interface {
	HandleWebSocket(c echo.Context) error
}

// SessionManager defines the interface for session management
// This allows mocking in tests
type SessionManager interface {
	CreateSession(locale string, darkMode bool) (*flow.Flow, error)
	GetSession(id string) (*flow.Flow, error)
	Snapshot(id string) (models.FlowSnapshot, error)
	TouchSession(id string) bool
	DeleteSession(id string) error
	Catalog() *i18n.Catalog
	Store() storage.Store
}
