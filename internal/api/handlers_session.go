// handlers_session.go - Session lifecycle and preference handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/quick-analysis/backend/internal/logger"
)

// SessionHandlerImpl implements the SessionHandler interface
type SessionHandlerImpl struct {
	flowBase
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions SessionManager) SessionHandler {
	return &SessionHandlerImpl{flowBase{sessions: sessions}}
}

type createSessionRequest struct {
	Locale   string `json:"locale" validate:"omitempty,max=16"`
	DarkMode bool   `json:"darkMode"`
}

type preferencesRequest struct {
	Locale   *string `json:"locale" validate:"omitempty,min=1,max=16"`
	DarkMode *bool   `json:"darkMode"`
}

// HandleCreateSession starts a new flow. Without an explicit locale the
// Accept-Language header picks one.
func (h *SessionHandlerImpl) HandleCreateSession(c echo.Context) error {
	var req createSessionRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return NewBadRequestError("invalid JSON body", err)
		}
		if err := c.Validate(&req); err != nil {
			return err
		}
	}

	locale := req.Locale
	if locale == "" {
		if accept := c.Request().Header.Get("Accept-Language"); accept != "" {
			locale = h.sessions.Catalog().Match(accept).Key
		}
	} else if _, ok := h.sessions.Catalog().Lookup(locale); !ok {
		return &APIError{Status: http.StatusBadRequest, Code: "UNKNOWN_LOCALE", Message: "unknown locale: " + locale}
	}

	f, err := h.sessions.CreateSession(locale, req.DarkMode)
	if err != nil {
		return FromDomainError(err, "", "")
	}
	return respond(c, http.StatusCreated, h.render(f))
}

// HandleGetSession returns the rendered view of a flow
func (h *SessionHandlerImpl) HandleGetSession(c echo.Context) error {
	f, err := h.lookup(c)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, h.render(f))
}

// HandleDeleteSession tears a flow down
func (h *SessionHandlerImpl) HandleDeleteSession(c echo.Context) error {
	id := c.Param("id")
	if err := h.sessions.DeleteSession(id); err != nil {
		return FromDomainError(err, id, "")
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleSessionKeepAlive prevents a flow from being cleaned up
func (h *SessionHandlerImpl) HandleSessionKeepAlive(c echo.Context) error {
	id := c.Param("id")
	if !h.sessions.TouchSession(id) {
		return NewNotFoundError("session", id)
	}
	snap, err := h.sessions.Snapshot(id)
	if err != nil {
		return FromDomainError(err, id, "")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"id":         id,
		"lastAccess": snap.LastAccess,
	})
}

// HandleUpdatePreferences switches locale and/or theme
func (h *SessionHandlerImpl) HandleUpdatePreferences(c echo.Context) error {
	f, err := h.lookup(c)
	if err != nil {
		return err
	}

	var req preferencesRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if req.Locale == nil && req.DarkMode == nil {
		return NewBadRequestError("nothing to update", nil)
	}

	if req.Locale != nil {
		if err := f.SetLocale(*req.Locale); err != nil {
			return h.domainError(f, err)
		}
	}
	if req.DarkMode != nil {
		if err := f.SetDarkMode(*req.DarkMode); err != nil {
			return h.domainError(f, err)
		}
	}

	v := h.render(f)
	logger.WithFields(logrus.Fields{"session": f.ID(), "locale": v.Locale, "theme": v.Theme}).Debug("preferences updated")
	return respond(c, http.StatusOK, v)
}
