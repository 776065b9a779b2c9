package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/quick-analysis/backend/internal/logger"
	"github.com/quick-analysis/backend/internal/models"
)

// WebSocket message types
const (
	// Client -> Server messages
	MsgTypePing = "ping"

	// Server -> Client messages
	MsgTypeView   = "view"
	MsgTypePong   = "pong"
	MsgTypeError  = "error"
	MsgTypeClosed = "closed"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

// WSMessage is one frame in either direction.
type WSMessage struct {
	Type      string       `json:"type"`
	View      *models.View `json:"view,omitempty"`
	Message   string       `json:"message,omitempty"`
	Timestamp int64        `json:"timestamp"`
}

// WebSocketHandler pushes a flow's rendered view on every change
type WebSocketHandler struct {
	flowBase
	upgrader     websocket.Upgrader
	maxMessageKB int
}

// NewWebSocketHandler creates a new websocket push handler
func NewWebSocketHandler(sessions SessionManager, maxMessageKB int) PushHandler {
	if maxMessageKB <= 0 {
		maxMessageKB = 64
	}
	return &WebSocketHandler{
		flowBase: flowBase{sessions: sessions},
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
		},
		maxMessageKB: maxMessageKB,
	}
}

// HandleWebSocket upgrades the connection and streams views until the flow
// closes or the client disconnects. Clients may send {"type":"ping"}.
func (wsh *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	f, err := wsh.lookup(c)
	if err != nil {
		return err
	}

	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	log := logger.WithFields(logrus.Fields{"session": f.ID()})
	log.Debug("websocket client connected")

	updates, cancel := f.Subscribe()
	defer cancel()

	incoming := make(chan WSMessage, 8)
	done := make(chan struct{})
	go wsh.readLoop(ws, incoming, done)

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-done:
			log.Debug("websocket client disconnected")
			return nil
		case <-c.Request().Context().Done():
			return nil
		case msg := <-incoming:
			if msg.Type == MsgTypePing {
				if err := wsh.send(ws, WSMessage{Type: MsgTypePong}); err != nil {
					return nil
				}
			}
		case <-ping.C:
			ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		case snap, ok := <-updates:
			if !ok {
				wsh.send(ws, WSMessage{Type: MsgTypeClosed, Message: "session closed"})
				ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				return nil
			}
			v := wsh.renderSnapshot(snap, f)
			if err := wsh.send(ws, WSMessage{Type: MsgTypeView, View: &v}); err != nil {
				log.WithError(err).Debug("websocket write failed")
				return nil
			}
		}
	}
}

func (wsh *WebSocketHandler) readLoop(ws *websocket.Conn, incoming chan<- WSMessage, done chan<- struct{}) {
	defer close(done)
	ws.SetReadLimit(int64(wsh.maxMessageKB) * 1024)
	ws.SetReadDeadline(time.Now().Add(wsPongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		var msg WSMessage
		if err := ws.ReadJSON(&msg); err != nil {
			return
		}
		ws.SetReadDeadline(time.Now().Add(wsPongWait))
		select {
		case incoming <- msg:
		default:
		}
	}
}

func (wsh *WebSocketHandler) send(ws *websocket.Conn, msg WSMessage) error {
	msg.Timestamp = time.Now().UnixMilli()
	ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return ws.WriteJSON(msg)
}
