package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pixelton/townsquare/internal/game"
	"github.com/pixelton/townsquare/internal/network"
	"github.com/pixelton/townsquare/internal/protocol"
	"github.com/pixelton/townsquare/internal/world"
)

const (
	// frameInterval drives the local movement engine (~30 fps).
	frameInterval = 33 * time.Millisecond

	// keyHold is how long a key press counts as held. Terminals deliver
	// repeats while a key is down, so each repeat extends the hold; when
	// repeats stop, the key releases on the next frame.
	keyHold = 150 * time.Millisecond
)

// frameMsg advances the movement engine one frame.
type frameMsg time.Time

// serverMsg carries one event from the session server.
type serverMsg *protocol.Envelope

// disconnectedMsg signals that the server connection dropped.
type disconnectedMsg struct{}

// Model is the Bubbletea model for the game client. It owns the local
// movement engine and the remote roster; the renderer reads both once per
// frame.
type Model struct {
	client *network.Client
	engine *game.Engine
	roster *game.Roster
	spec   *world.RoomSpec
	room   string

	heldUntil map[game.Facing]time.Time
	connected bool
	quitting  bool
}

// NewModel seeds the client state from the join snapshot: the local entity
// (server-assigned id, spawn, color), the prior room members, and the room's
// collision layout.
func NewModel(client *network.Client, snapshot *protocol.GameStateMsg, spec *world.RoomSpec) Model {
	roster := game.NewRoster(snapshot.You.ID)
	for _, p := range snapshot.Players {
		roster.Upsert(p.Entity())
	}

	return Model{
		client:    client,
		engine:    game.NewEngine(snapshot.You.Entity(), spec.Blocks()),
		roster:    roster,
		spec:      spec,
		room:      snapshot.Room,
		heldUntil: make(map[game.Facing]time.Time),
		connected: true,
	}
}

// Init starts the frame loop and the server event listener.
func (m Model) Init() tea.Cmd {
	return tea.Batch(frameTick(), waitForServer(m.client))
}

// Update handles key presses, frame ticks, and server events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case frameMsg:
		return m.stepFrame(time.Time(msg))

	case serverMsg:
		m.applyServer((*protocol.Envelope)(msg))
		return m, waitForServer(m.client)

	case disconnectedMsg:
		// Keep the local engine running for responsiveness; state just
		// stops reaching peers until a reconnect (which is a new session).
		m.connected = false
		return m, nil
	}

	return m, nil
}

// View renders the room, both player sets, and the status bar.
func (m Model) View() string {
	if m.quitting {
		return "Bye!\n"
	}
	grid := RenderRoom(m.spec, m.engine.Entity(), m.roster.Snapshot())
	status := RenderStatus(m.room, m.connected, m.roster.Len())
	return grid + "\n" + status + "\n"
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var dir game.Facing
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		m.quitting = true
		m.client.Close()
		return m, tea.Quit
	case "up", "w":
		dir = game.FacingUp
	case "down", "s":
		dir = game.FacingDown
	case "left", "a":
		dir = game.FacingLeft
	case "right", "d":
		dir = game.FacingRight
	default:
		return m, nil
	}

	m.engine.Press(dir)
	m.heldUntil[dir] = time.Now().Add(keyHold)
	return m, nil
}

// stepFrame releases expired keys, advances the engine, and forwards the
// resolved state to the server.
func (m Model) stepFrame(now time.Time) (tea.Model, tea.Cmd) {
	for dir, until := range m.heldUntil {
		if now.After(until) {
			m.engine.Release(dir)
			delete(m.heldUntil, dir)
		}
	}

	res := m.engine.Step(now)

	if m.connected {
		var err error
		if res.Moved {
			err = m.client.SendMove(protocol.PlayerMoveMsg{
				X:             res.Entity.X,
				Y:             res.Entity.Y,
				Facing:        res.Entity.Facing,
				CurrentSprite: res.Entity.Sprite,
				Moving:        res.Entity.Moving,
			})
		} else if res.InputChanged {
			err = m.client.SendInput(protocol.PlayerInputMsg{
				Facing:        res.Entity.Facing,
				CurrentSprite: res.Entity.Sprite,
				Moving:        res.Entity.Moving,
			})
		}
		if err != nil {
			m.connected = false
		}
	}

	return m, frameTick()
}

// applyServer folds one server event into the roster, last value wins.
func (m *Model) applyServer(env *protocol.Envelope) {
	switch env.Type {
	case protocol.MsgPlayerJoined:
		var msg protocol.PlayerJoinedMsg
		if protocol.DecodePayload(env, &msg) == nil {
			m.roster.Upsert(msg.Player.Entity())
		}
	case protocol.MsgPlayerMoved:
		var msg protocol.PlayerMovedMsg
		if protocol.DecodePayload(env, &msg) == nil {
			m.roster.ApplyMove(msg.ID, msg.X, msg.Y, msg.Facing, msg.CurrentSprite, msg.Moving)
		}
	case protocol.MsgPlayerInputChanged:
		var msg protocol.PlayerInputChangedMsg
		if protocol.DecodePayload(env, &msg) == nil {
			m.roster.ApplyInput(msg.ID, msg.Facing, msg.CurrentSprite, msg.Moving)
		}
	case protocol.MsgPlayerLeft:
		var msg protocol.PlayerLeftMsg
		if protocol.DecodePayload(env, &msg) == nil {
			m.roster.Remove(msg.ID)
		}
	case protocol.MsgGameSync:
		var msg protocol.GameSyncMsg
		if protocol.DecodePayload(env, &msg) == nil {
			ents := make([]game.Entity, 0, len(msg.Players))
			for _, p := range msg.Players {
				ents = append(ents, p.Entity())
			}
			m.roster.Sync(ents)
		}
	}
}

func frameTick() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

// waitForServer returns a Cmd that yields the next server event, or the
// disconnected signal when the event channel closes.
func waitForServer(client *network.Client) tea.Cmd {
	return func() tea.Msg {
		env, ok := <-client.Events()
		if !ok {
			return disconnectedMsg{}
		}
		return serverMsg(env)
	}
}
