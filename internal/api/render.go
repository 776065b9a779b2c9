// render.go - View rendering and content negotiation shared by handlers
package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/quick-analysis/backend/internal/flow"
	"github.com/quick-analysis/backend/internal/models"
	"github.com/quick-analysis/backend/internal/presenter"
)

// MIMEApplicationMsgpack is the binary view encoding.
const MIMEApplicationMsgpack = "application/msgpack"

// flowBase gives handlers access to flows and their rendering.
type flowBase struct {
	sessions SessionManager
}

// lookup resolves the :id param to a live flow and marks it accessed.
func (b *flowBase) lookup(c echo.Context) (*flow.Flow, error) {
	id := c.Param("id")
	f, err := b.sessions.GetSession(id)
	if err != nil {
		return nil, FromDomainError(err, id, "")
	}
	return f, nil
}

func (b *flowBase) render(f *flow.Flow) models.View {
	return b.renderSnapshot(f.Snapshot(), f)
}

func (b *flowBase) renderSnapshot(snap models.FlowSnapshot, f *flow.Flow) models.View {
	return presenter.Render(snap, b.sessions.Catalog(), f.Rules())
}

// domainError maps err using the flow's current localized error or notice.
func (b *flowBase) domainError(f *flow.Flow, err error) error {
	snap := f.Snapshot()
	msg := snap.Error
	if msg == "" {
		msg = snap.Notice
	}
	if !isUserFacing(err) {
		msg = ""
	}
	return FromDomainError(err, f.ID(), msg)
}

func isUserFacing(err error) bool {
	return errors.Is(err, flow.ErrNoFilesSelected) || errors.Is(err, flow.ErrNotImplemented)
}

// respond writes v as JSON, or as msgpack when the client asks for it.
func respond(c echo.Context, status int, v interface{}) error {
	if wantsMsgpack(c.Request()) {
		data, err := msgpack.Marshal(v)
		if err != nil {
			return NewInternalError("failed to encode msgpack", err)
		}
		return c.Blob(status, MIMEApplicationMsgpack, data)
	}
	return c.JSON(status, v)
}

func wantsMsgpack(r *http.Request) bool {
	return strings.Contains(r.Header.Get(echo.HeaderAccept), MIMEApplicationMsgpack)
}
