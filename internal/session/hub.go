package session

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/pixelton/townsquare/internal/game"
	"github.com/pixelton/townsquare/internal/protocol"
	"github.com/pixelton/townsquare/internal/world"
)

const (
	// TicksPerSecond is the full-room sync frequency.
	TicksPerSecond = 20

	// SyncInterval is the tick period (50ms at 20 TPS).
	SyncInterval = time.Second / TicksPerSecond

	// spawnJitterRadius spreads joiners around the room's base spawn point
	// so simultaneous joins don't stack perfectly on top of each other.
	spawnJitterRadius = 48.0
)

// palette holds the display colors handed out at join time. A color is
// display-only and stays fixed for the connection's lifetime.
var palette = []string{
	"#e6194b", "#3cb44b", "#ffe119", "#4363d8",
	"#f58231", "#911eb4", "#46f0f0", "#f032e6",
	"#bcf60c", "#fabebe", "#008080", "#e6beff",
}

// Sender is the hub's view of one connection: an id and a non-blocking way
// to push an encoded frame toward the client.
type Sender interface {
	ID() string
	Send(frame []byte)
}

// Hub events. Every inbound connection event and the periodic sync tick are
// consumed by a single goroutine, so registry mutation is fully serialized
// and needs no locking.
type (
	joinEvent struct {
		sub  Sender
		room string
	}
	moveEvent struct {
		id  string
		msg protocol.PlayerMoveMsg
	}
	inputEvent struct {
		id  string
		msg protocol.PlayerInputMsg
	}
	leaveEvent struct {
		id string
	}
	countsEvent struct {
		reply chan map[string]int
	}
)

// Hub mediates between connections and room state. It owns the canonical
// Room Registry; all mutation happens on the hub goroutine.
//
// Positions are client-authoritative: the hub accepts reported coordinates
// without re-validating them against the collision map or a speed bound.
// That is a known consistency gap carried over from the original design.
type Hub struct {
	reg    *Registry
	world  *world.World
	subs   map[string]Sender
	rng    *rand.Rand
	log    *zap.SugaredLogger
	events chan interface{}
	sync   time.Duration
}

// NewHub wires a hub to its registry, world data, and random source. The
// rand source drives spawn jitter and color assignment; inject a seeded one
// for reproducible placement in tests.
func NewHub(reg *Registry, w *world.World, rng *rand.Rand, log *zap.SugaredLogger) *Hub {
	return &Hub{
		reg:    reg,
		world:  w,
		subs:   make(map[string]Sender),
		rng:    rng,
		log:    log,
		events: make(chan interface{}, 256),
		sync:   SyncInterval,
	}
}

// Run consumes events until the context is cancelled. One event or tick is
// processed to completion before the next starts.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.sync)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-h.events:
			h.dispatch(ev)
		case <-ticker.C:
			h.syncRooms()
		}
	}
}

// dispatch routes one event to its handler. A panic while handling one
// connection's event is contained here so it cannot take down the loop or
// leak into other connections.
func (h *Hub) dispatch(ev interface{}) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Errorw("event handler panicked", "panic", r)
		}
	}()

	switch e := ev.(type) {
	case joinEvent:
		h.handleJoin(e.sub, e.room)
	case moveEvent:
		h.handleMove(e.id, e.msg)
	case inputEvent:
		h.handleInput(e.id, e.msg)
	case leaveEvent:
		h.handleLeave(e.id)
	case countsEvent:
		e.reply <- h.reg.Counts()
	}
}

// Join registers a connection in a room. Blocking: a join must not be lost.
func (h *Hub) Join(sub Sender, room string) {
	h.events <- joinEvent{sub: sub, room: room}
}

// Move forwards a position update. Non-blocking: under backpressure a stale
// delta is droppable, the periodic sync reconciles.
func (h *Hub) Move(id string, msg protocol.PlayerMoveMsg) {
	select {
	case h.events <- moveEvent{id: id, msg: msg}:
	default:
		h.log.Debugw("move dropped, event queue full", "id", id)
	}
}

// Input forwards a pose-only update; droppable like Move.
func (h *Hub) Input(id string, msg protocol.PlayerInputMsg) {
	select {
	case h.events <- inputEvent{id: id, msg: msg}:
	default:
		h.log.Debugw("input dropped, event queue full", "id", id)
	}
}

// Leave removes a connection. Blocking: removal must not be lost.
func (h *Hub) Leave(id string) {
	h.events <- leaveEvent{id: id}
}

// RoomCounts answers a status query on the hub goroutine, keeping the
// registry single-consumer.
func (h *Hub) RoomCounts() map[string]int {
	reply := make(chan map[string]int, 1)
	h.events <- countsEvent{reply: reply}
	return <-reply
}

func (h *Hub) handleJoin(sub Sender, roomName string) {
	spec := h.world.Room(roomName)

	ent := &game.Entity{
		ID:     sub.ID(),
		X:      spec.Spawn.X + (h.rng.Float64()*2-1)*spawnJitterRadius,
		Y:      spec.Spawn.Y + (h.rng.Float64()*2-1)*spawnJitterRadius,
		Facing: game.FacingDown,
		Sprite: game.SpriteFor(game.FacingDown, false),
		Color:  palette[h.rng.Intn(len(palette))],
		Room:   roomName,
	}

	// Snapshot the room as it was before this join: the joiner reconciles
	// from this and must not see itself announced.
	rm := h.reg.Room(roomName)
	prior := make([]protocol.PlayerState, 0, rm.Len())
	for _, m := range rm.Members() {
		prior = append(prior, protocol.FromEntity(*m))
	}

	h.reg.Add(roomName, ent)
	h.subs[sub.ID()] = sub

	h.sendTo(sub, protocol.MsgGameState, protocol.GameStateMsg{
		You:     protocol.FromEntity(*ent),
		Room:    roomName,
		Players: prior,
	})

	h.broadcast(rm, sub.ID(), protocol.MsgPlayerJoined, protocol.PlayerJoinedMsg{
		Player: protocol.FromEntity(*ent),
	})

	h.log.Infow("player joined", "id", ent.ID, "room", roomName, "members", rm.Len())
}

func (h *Hub) handleMove(id string, msg protocol.PlayerMoveMsg) {
	ent, rm, ok := h.reg.Find(id)
	if !ok {
		// No entity, no-op: the event may race a disconnect.
		return
	}
	if !msg.Facing.Valid() {
		h.log.Debugw("dropping malformed move", "id", id, "facing", msg.Facing)
		return
	}

	ent.X = msg.X
	ent.Y = msg.Y
	ent.Facing = msg.Facing
	ent.Sprite = msg.CurrentSprite
	ent.Moving = msg.Moving

	h.broadcast(rm, id, protocol.MsgPlayerMoved, protocol.PlayerMovedMsg{
		ID:            id,
		X:             msg.X,
		Y:             msg.Y,
		Facing:        msg.Facing,
		CurrentSprite: msg.CurrentSprite,
		Moving:        msg.Moving,
	})
}

func (h *Hub) handleInput(id string, msg protocol.PlayerInputMsg) {
	ent, rm, ok := h.reg.Find(id)
	if !ok {
		return
	}
	if !msg.Facing.Valid() {
		h.log.Debugw("dropping malformed input", "id", id, "facing", msg.Facing)
		return
	}

	// Pose only; position stays where the last move left it.
	ent.Facing = msg.Facing
	ent.Sprite = msg.CurrentSprite
	ent.Moving = msg.Moving

	h.broadcast(rm, id, protocol.MsgPlayerInputChanged, protocol.PlayerInputChangedMsg{
		ID:            id,
		Facing:        msg.Facing,
		CurrentSprite: msg.CurrentSprite,
		Moving:        msg.Moving,
	})
}

func (h *Hub) handleLeave(id string) {
	delete(h.subs, id)
	rm, ok := h.reg.Remove(id)
	if !ok {
		// Already gone; duplicate disconnects are a no-op.
		return
	}

	h.broadcast(rm, id, protocol.MsgPlayerLeft, protocol.PlayerLeftMsg{ID: id})
	h.log.Infow("player left", "id", id, "room", rm.Name, "members", rm.Len())
}

// syncRooms sends the full member list to every occupied room. This bounds
// the staleness any dropped or reordered delta can introduce and lets late
// joiners reconcile.
func (h *Hub) syncRooms() {
	for _, name := range h.occupiedRooms() {
		rm := h.reg.Room(name)
		players := make([]protocol.PlayerState, 0, rm.Len())
		for _, m := range rm.Members() {
			players = append(players, protocol.FromEntity(*m))
		}
		h.broadcast(rm, "", protocol.MsgGameSync, protocol.GameSyncMsg{Players: players})
	}
}

func (h *Hub) occupiedRooms() []string {
	out := make([]string, 0, len(h.reg.rooms))
	for name, rm := range h.reg.rooms {
		if rm.Len() > 0 {
			out = append(out, name)
		}
	}
	return out
}

// broadcast encodes the payload once and fans it out to every room member
// except excludeID (empty string excludes nobody).
func (h *Hub) broadcast(rm *Room, excludeID string, msgType protocol.MsgType, payload interface{}) {
	frame, err := protocol.Encode(msgType, payload)
	if err != nil {
		h.log.Errorw("encode broadcast", "type", msgType, "err", err)
		return
	}
	for _, m := range rm.Members() {
		if m.ID == excludeID {
			continue
		}
		if sub, ok := h.subs[m.ID]; ok {
			sub.Send(frame)
		}
	}
}

func (h *Hub) sendTo(sub Sender, msgType protocol.MsgType, payload interface{}) {
	frame, err := protocol.Encode(msgType, payload)
	if err != nil {
		h.log.Errorw("encode message", "type", msgType, "err", err)
		return
	}
	sub.Send(frame)
}
