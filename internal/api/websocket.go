package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ifc-viewer/backend/internal/models"
	"github.com/ifc-viewer/backend/internal/session"
	"github.com/ifc-viewer/backend/internal/viewer"
	"github.com/labstack/echo/v4"
)

// WebSocket message types for the interaction stream
const (
	// Client -> Server messages
	MsgTypePointer   = "pointer"
	MsgTypeSelect    = "select"
	MsgTypeViewMode  = "viewMode"
	MsgTypeCamera    = "camera"
	MsgTypeKeepAlive = "keepalive"
	MsgTypePing      = "ping"

	// Server -> Client messages
	MsgTypeConnected = "connected"
	MsgTypeState     = "state"
	MsgTypeEvent     = "event"
	MsgTypeError     = "error"
	MsgTypePong      = "pong"
)

// DefaultWSMaxMessageSize bounds inbound messages.
const DefaultWSMaxMessageSize = 64 * 1024

// WSMessage is the envelope of every websocket message.
type WSMessage struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// WSErrorResponse is the payload of an error message.
type WSErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// WebSocketHandler streams viewer interaction over one connection per
// session: pointer and command messages in, state and session events out.
type WebSocketHandler struct {
	sessions       SessionManager
	upgrader       websocket.Upgrader
	maxMessageSize int64
}

// NewWebSocketHandler creates a new interaction stream handler.
func NewWebSocketHandler(sessions SessionManager, maxMessageSize int64) *WebSocketHandler {
	if maxMessageSize <= 0 {
		maxMessageSize = DefaultWSMaxMessageSize
	}
	return &WebSocketHandler{
		sessions: sessions,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
		},
		maxMessageSize: maxMessageSize,
	}
}

// wsConn serializes writes; gorilla allows one concurrent writer.
type wsConn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *wsConn) send(msgType string, payload interface{}) {
	msg := WSMessage{Type: msgType, Timestamp: time.Now().UnixMilli()}
	if payload != nil {
		msg.Payload = mustJSON(payload)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.WriteJSON(msg); err != nil {
		fmt.Printf("[WebSocket] Failed to send message: %v\n", err)
	}
}

// close starts the closing handshake; the read loop ends on the reply.
func (c *wsConn) close(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason),
		time.Now().Add(time.Second))
}

func (c *wsConn) sendError(message, code string) {
	c.send(MsgTypeError, WSErrorResponse{Message: message, Code: code})
}

// HandleWebSocket upgrades the connection and runs the interaction stream
// of the session named in the path.
func (wsh *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	id := c.Param("sessionId")
	sess, ok := wsh.sessions.GetSession(id)
	if !ok {
		return NewNotFoundError("session", id)
	}
	events, unsubscribe, err := wsh.sessions.Subscribe(id)
	if err != nil {
		return fromSessionError(err, id)
	}
	defer unsubscribe()

	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()
	ws.SetReadLimit(wsh.maxMessageSize)

	conn := &wsConn{ws: ws}
	fmt.Printf("[WebSocket %s] Client connected\n", shortID(id))
	conn.send(MsgTypeConnected, sess)

	done := make(chan struct{})
	defer close(done)
	go wsh.forwardEvents(conn, events, done)

	for {
		var msg WSMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				fmt.Printf("[WebSocket %s] Connection error: %v\n", shortID(id), err)
			}
			break
		}
		wsh.handleMessage(conn, id, msg)
	}

	fmt.Printf("[WebSocket %s] Client disconnected\n", shortID(id))
	return nil
}

// forwardEvents relays session events until the session closes or the
// connection ends. A closed session closes the connection.
func (wsh *WebSocketHandler) forwardEvents(conn *wsConn, events <-chan session.Event, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case ev, ok := <-events:
			if ok {
				conn.send(MsgTypeEvent, ev)
			}
			if !ok || ev.Type == session.EventClosed {
				conn.close("session closed")
				return
			}
		}
	}
}

func (wsh *WebSocketHandler) handleMessage(conn *wsConn, id string, msg WSMessage) {
	switch msg.Type {
	case MsgTypePing:
		conn.send(MsgTypePong, nil)
	case MsgTypeKeepAlive:
		if !wsh.sessions.TouchSession(id) {
			conn.sendError("session not found", "SESSION_NOT_FOUND")
		}
	case MsgTypePointer:
		var req pointerRequest
		if err := json.Unmarshal(msg.Payload, &req); err != nil || req.validate() != nil {
			conn.sendError("invalid pointer payload", "INVALID_PAYLOAD")
			return
		}
		var state interactionState
		err := wsh.sessions.Do(id, func(v *viewer.Viewer) error {
			state = applyPointer(v, req)
			return nil
		})
		wsh.reply(conn, id, MsgTypeState, state, err)
	case MsgTypeSelect:
		var req selectRequest
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			conn.sendError("invalid select payload", "INVALID_PAYLOAD")
			return
		}
		var resp selectResponse
		err := wsh.sessions.Do(id, func(v *viewer.Viewer) error {
			var err error
			resp, err = selectItem(v, req)
			return err
		})
		wsh.reply(conn, id, MsgTypeState, resp, err)
	case MsgTypeViewMode:
		// An empty mode cycles.
		var req viewModeRequest
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &req); err != nil {
				conn.sendError("invalid view mode payload", "INVALID_PAYLOAD")
				return
			}
		}
		var mode models.ViewMode
		if req.Mode != "" {
			var err error
			if mode, err = models.ParseViewMode(req.Mode); err != nil {
				conn.sendError(err.Error(), "INVALID_PAYLOAD")
				return
			}
		}
		err := wsh.sessions.Do(id, func(v *viewer.Viewer) error {
			if mode == "" {
				mode = v.CycleViewMode()
			} else {
				v.SetViewMode(mode)
			}
			return nil
		})
		if err == nil {
			wsh.sessions.Publish(id, session.Event{Type: session.EventViewMode, Data: mode})
		}
	case MsgTypeCamera:
		var req cameraRequest
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			conn.sendError("invalid camera payload", "INVALID_PAYLOAD")
			return
		}
		// Observers receive the camera event through the session stream.
		err := wsh.sessions.Do(id, func(v *viewer.Viewer) error {
			_, err := runCameraCommand(v, req)
			return err
		})
		if err != nil {
			wsh.reply(conn, id, "", nil, err)
		}
	default:
		conn.sendError("Unknown message type: "+msg.Type, "INVALID_TYPE")
	}
}

// reply sends payload, or the mapped error when err is set.
func (wsh *WebSocketHandler) reply(conn *wsConn, id, msgType string, payload interface{}, err error) {
	if err != nil {
		apiErr, ok := err.(*APIError)
		if !ok {
			apiErr = fromSessionError(err, id)
		}
		conn.sendError(apiErr.Message, apiErr.Code)
		return
	}
	conn.send(msgType, payload)
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}

// shortID truncates an id for logging.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
