package network

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pixelton/townsquare/internal/protocol"
)

// Client connects to a session server, joins a room, and yields the server's
// events on a channel. Outbound moves and inputs are serialized by a mutex;
// the caller drives them from its frame loop.
type Client struct {
	ws     *websocket.Conn
	events chan *protocol.Envelope

	mu   sync.Mutex
	done chan struct{}
	once sync.Once
}

// Dial connects to addr (host:port), joins the named room, and waits for the
// initial gameState snapshot, which it returns so the caller can seed the
// local player and roster before any other event arrives.
func Dial(addr, room string) (*Client, *protocol.GameStateMsg, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws"}

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	ws, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to %s: %w", u.String(), err)
	}

	c := &Client{
		ws:     ws,
		events: make(chan *protocol.Envelope, 256),
		done:   make(chan struct{}),
	}

	if err := c.write(protocol.MsgJoinRoom, protocol.JoinRoomMsg{Room: room}); err != nil {
		ws.Close()
		return nil, nil, fmt.Errorf("send joinRoom: %w", err)
	}

	// The snapshot is always the first message to a joiner.
	_ = ws.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, payload, err := ws.ReadMessage()
	if err != nil {
		ws.Close()
		return nil, nil, fmt.Errorf("read snapshot: %w", err)
	}
	_ = ws.SetReadDeadline(time.Time{})

	env, err := protocol.Decode(payload)
	if err != nil {
		ws.Close()
		return nil, nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if env.Type != protocol.MsgGameState {
		ws.Close()
		return nil, nil, fmt.Errorf("expected gameState, got %s", env.Type)
	}

	var snapshot protocol.GameStateMsg
	if err := protocol.DecodePayload(env, &snapshot); err != nil {
		ws.Close()
		return nil, nil, fmt.Errorf("decode snapshot payload: %w", err)
	}

	go c.receiveLoop()

	return c, &snapshot, nil
}

// Events yields server events in arrival order. The channel closes when the
// connection drops, which is the caller's disconnected signal.
func (c *Client) Events() <-chan *protocol.Envelope {
	return c.events
}

// SendMove reports the locally resolved position and pose.
func (c *Client) SendMove(msg protocol.PlayerMoveMsg) error {
	return c.write(protocol.MsgPlayerMove, msg)
}

// SendInput reports a pose change with no position delta.
func (c *Client) SendInput(msg protocol.PlayerInputMsg) error {
	return c.write(protocol.MsgPlayerInput, msg)
}

// Close disconnects from the server.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

func (c *Client) write(msgType protocol.MsgType, payload interface{}) error {
	frame, err := protocol.Encode(msgType, payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, frame)
}

func (c *Client) receiveLoop() {
	defer close(c.events)

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			return
		}

		env, err := protocol.Decode(payload)
		if err != nil {
			continue
		}

		select {
		case c.events <- env:
		case <-c.done:
			return
		default:
			// Consumer is behind; drop the oldest buffered event to keep
			// the freshest state flowing. The next gameSync reconciles.
			select {
			case <-c.events:
			default:
			}
			select {
			case c.events <- env:
			default:
			}
		}
	}
}
