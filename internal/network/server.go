package network

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/pixelton/townsquare/internal/protocol"
	"github.com/pixelton/townsquare/internal/session"
)

// Handler upgrades HTTP requests to WebSocket sessions and bridges them to
// the hub: inbound frames become typed hub events, hub fan-out lands on the
// connection's send queue.
type Handler struct {
	hub      *session.Hub
	log      *zap.SugaredLogger
	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

// NewHandler creates the /ws endpoint handler.
func NewHandler(hub *session.Hub, log *zap.SugaredLogger) *Handler {
	return &Handler{
		hub: hub,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// TODO: restrict origins once the web client's host is settled.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnw("websocket upgrade failed", "err", err)
		return
	}

	id := fmt.Sprintf("p%d-%d", h.nextID.Add(1), time.Now().UnixNano())
	c := newConn(id, ws, h.log)

	go c.writePump()
	go h.readPump(c)
}

// readPump consumes frames from one connection until it drops. The first
// frame must be joinRoom; everything after is move/input traffic. Malformed
// frames are logged and dropped without interrupting the loop.
func (h *Handler) readPump(c *conn) {
	joined := false
	defer func() {
		if joined {
			h.hub.Leave(c.id)
		}
		c.close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			h.log.Infow("connection closed", "id", c.id, "err", err)
			return
		}

		env, err := protocol.Decode(payload)
		if err != nil {
			h.log.Debugw("dropping malformed frame", "id", c.id, "err", err)
			continue
		}

		switch env.Type {
		case protocol.MsgJoinRoom:
			if joined {
				h.log.Debugw("duplicate joinRoom ignored", "id", c.id)
				continue
			}
			var msg protocol.JoinRoomMsg
			if err := protocol.DecodePayload(env, &msg); err != nil || msg.Room == "" {
				h.log.Debugw("dropping malformed joinRoom", "id", c.id, "err", err)
				continue
			}
			h.hub.Join(c, msg.Room)
			joined = true

		case protocol.MsgPlayerMove:
			if !joined {
				continue
			}
			var msg protocol.PlayerMoveMsg
			if err := protocol.DecodePayload(env, &msg); err != nil {
				h.log.Debugw("dropping malformed playerMove", "id", c.id, "err", err)
				continue
			}
			h.hub.Move(c.id, msg)

		case protocol.MsgPlayerInput:
			if !joined {
				continue
			}
			var msg protocol.PlayerInputMsg
			if err := protocol.DecodePayload(env, &msg); err != nil {
				h.log.Debugw("dropping malformed playerInput", "id", c.id, "err", err)
				continue
			}
			h.hub.Input(c.id, msg)

		default:
			h.log.Debugw("unknown message type", "id", c.id, "type", env.Type)
		}
	}
}
