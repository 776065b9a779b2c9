// handlers_health.go - Health check and locale catalog handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/quick-analysis/backend/internal/i18n"
)

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version string
	catalog *i18n.Catalog
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string, catalog *i18n.Catalog) HealthHandler {
	if catalog == nil {
		catalog = i18n.Default()
	}
	return &HealthHandlerImpl{
		version: version,
		catalog: catalog,
	}
}

type localeResponse struct {
	Key     string `json:"key"`
	Code    string `json:"code"`
	Flag    string `json:"flag"`
	Default bool   `json:"default"`
}

// HandleHealth returns server health status
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": h.version,
	})
}

// HandleLocales lists the selectable display languages
func (h *HealthHandlerImpl) HandleLocales(c echo.Context) error {
	def := h.catalog.DefaultLocale().Key
	locales := h.catalog.Locales()
	out := make([]localeResponse, len(locales))
	for i, l := range locales {
		out[i] = localeResponse{Key: l.Key, Code: l.Code, Flag: l.Flag, Default: l.Key == def}
	}
	return c.JSON(http.StatusOK, out)
}
