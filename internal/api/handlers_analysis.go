// handlers_analysis.go - Analysis submission, progress and result action handlers
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/quick-analysis/backend/internal/flow"
	"github.com/quick-analysis/backend/internal/logger"
)

// DefaultStreamTimeout bounds a single progress stream.
const DefaultStreamTimeout = 5 * time.Minute

// AnalysisHandlerImpl implements the AnalysisHandler interface
type AnalysisHandlerImpl struct {
	flowBase
	heartbeat time.Duration
	timeout   time.Duration
}

// NewAnalysisHandler creates a new analysis handler. heartbeat is the
// interval of SSE keep-alive comments; zero disables them.
func NewAnalysisHandler(sessions SessionManager, heartbeat time.Duration) AnalysisHandler {
	return &AnalysisHandlerImpl{
		flowBase:  flowBase{sessions: sessions},
		heartbeat: heartbeat,
		timeout:   DefaultStreamTimeout,
	}
}

// HandleStartAnalysis submits the staged files. With nothing staged it
// answers 422 NO_FILES_SELECTED with the localized message.
func (h *AnalysisHandlerImpl) HandleStartAnalysis(c echo.Context) error {
	f, err := h.lookup(c)
	if err != nil {
		return err
	}
	if err := f.StartAnalysis(); err != nil {
		return h.domainError(f, err)
	}

	snap := f.Snapshot()
	logger.WithFields(logrus.Fields{
		"session": f.ID(),
		"files":   len(snap.Files),
		"locale":  snap.Locale,
	}).Info("analysis started")

	return respond(c, http.StatusAccepted, h.renderSnapshot(snap, f))
}

// HandleProgressStream streams rendered views via SSE until the analysis
// reaches a terminal phase or the client goes away.
func (h *AnalysisHandlerImpl) HandleProgressStream(c echo.Context) error {
	f, err := h.lookup(c)
	if err != nil {
		return err
	}

	// Set SSE headers
	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	updates, cancel := f.Subscribe()
	defer cancel()

	var tick <-chan time.Time
	if h.heartbeat > 0 {
		ticker := time.NewTicker(h.heartbeat)
		defer ticker.Stop()
		tick = ticker.C
	}

	timeout := time.NewTimer(h.timeout)
	defer timeout.Stop()

	for {
		select {
		case <-c.Request().Context().Done():
			return nil
		case <-timeout.C:
			h.sendSSEError(c, "stream timeout")
			return nil
		case <-tick:
			fmt.Fprint(c.Response(), ": keepalive\n\n")
			c.Response().Flush()
		case snap, ok := <-updates:
			if !ok {
				h.sendSSEError(c, "session closed")
				return nil
			}
			h.sendSSEData(c, h.renderSnapshot(snap, f))
			if snap.State.Phase.IsTerminal() {
				return nil
			}
		}
	}
}

// HandleStartOver returns a finished flow to the upload screen
func (h *AnalysisHandlerImpl) HandleStartOver(c echo.Context) error {
	f, err := h.lookup(c)
	if err != nil {
		return err
	}
	if err := f.StartOver(); err != nil {
		return h.domainError(f, err)
	}
	return respond(c, http.StatusOK, h.render(f))
}

// HandleDownloadReport always answers 501 with the localized notice once
// the analysis is complete.
func (h *AnalysisHandlerImpl) HandleDownloadReport(c echo.Context) error {
	return h.placeholder(c, (*flow.Flow).DownloadReport)
}

// HandleShareResult always answers 501 with the localized notice once the
// analysis is complete.
func (h *AnalysisHandlerImpl) HandleShareResult(c echo.Context) error {
	return h.placeholder(c, (*flow.Flow).ShareResult)
}

func (h *AnalysisHandlerImpl) placeholder(c echo.Context, action func(*flow.Flow) (string, error)) error {
	f, err := h.lookup(c)
	if err != nil {
		return err
	}
	notice, err := action(f)
	if err != nil {
		return FromDomainError(err, f.ID(), notice)
	}
	return respond(c, http.StatusOK, h.render(f))
}

func (h *AnalysisHandlerImpl) sendSSEData(c echo.Context, data interface{}) {
	jsonData, _ := json.Marshal(data)
	fmt.Fprintf(c.Response(), "data: %s\n\n", jsonData)
	c.Response().Flush()
}

func (h *AnalysisHandlerImpl) sendSSEError(c echo.Context, message string) {
	h.sendSSEData(c, map[string]string{"error": message})
}
