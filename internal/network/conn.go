package network

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 45 * time.Second
	maxMessageSize = 1 << 20
	sendQueueSize  = 64
)

// conn wraps one server-side WebSocket connection. Outbound frames go
// through a buffered queue drained by a dedicated write goroutine, so the
// hub never blocks on a slow client.
type conn struct {
	id   string
	ws   *websocket.Conn
	send chan []byte
	log  *zap.SugaredLogger

	mu     sync.Mutex
	closed bool
}

func newConn(id string, ws *websocket.Conn, log *zap.SugaredLogger) *conn {
	return &conn{
		id:   id,
		ws:   ws,
		send: make(chan []byte, sendQueueSize),
		log:  log,
	}
}

// ID returns the opaque connection identifier, unique per live connection.
func (c *conn) ID() string { return c.id }

// Send enqueues a frame without blocking. When the queue is full the frame
// is dropped; the periodic room sync repairs whatever a dropped delta broke.
// Sends after close are silently discarded: the hub may still be fanning
// out to this connection until its leave event is processed.
func (c *conn) Send(frame []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- frame:
	default:
		c.log.Debugw("send queue full, dropping frame", "id", c.id)
	}
}

// close shuts the send queue (ending the write pump) and the socket.
func (c *conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	_ = c.ws.Close()
}

// writePump drains the send queue onto the socket and keeps the connection
// alive with periodic pings.
func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				return
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
