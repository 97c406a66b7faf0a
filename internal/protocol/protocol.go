package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/pixelton/townsquare/internal/game"
)

// MsgType identifies the type of network message.
type MsgType string

const (
	// Client → server
	MsgJoinRoom    MsgType = "joinRoom"
	MsgPlayerMove  MsgType = "playerMove"
	MsgPlayerInput MsgType = "playerInput"

	// Server → client
	MsgGameState          MsgType = "gameState"
	MsgPlayerJoined       MsgType = "playerJoined"
	MsgPlayerMoved        MsgType = "playerMoved"
	MsgPlayerInputChanged MsgType = "playerInputChanged"
	MsgPlayerLeft         MsgType = "playerLeft"
	MsgGameSync           MsgType = "gameSync"
)

// Envelope wraps all messages with a type discriminator for deserialization.
// Envelopes travel as single WebSocket text frames.
type Envelope struct {
	Type    MsgType         `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// --- Client → Server Messages ---

// JoinRoomMsg is the first message a client sends after connecting.
type JoinRoomMsg struct {
	Room string `json:"room"`
}

// PlayerMoveMsg reports the client's locally resolved position and pose.
type PlayerMoveMsg struct {
	X             float64     `json:"x"`
	Y             float64     `json:"y"`
	Facing        game.Facing `json:"facing"`
	CurrentSprite string      `json:"currentSprite"`
	Moving        bool        `json:"moving"`
}

// PlayerInputMsg reports a pose change with no position delta, so peers see
// direction changes without waiting for the next move.
type PlayerInputMsg struct {
	Facing        game.Facing `json:"facing"`
	CurrentSprite string      `json:"currentSprite"`
	Moving        bool        `json:"moving"`
}

// --- Server → Client Messages ---

// PlayerState is the wire form of one player entity.
type PlayerState struct {
	ID            string      `json:"id"`
	X             float64     `json:"x"`
	Y             float64     `json:"y"`
	Facing        game.Facing `json:"facing"`
	CurrentSprite string      `json:"currentSprite"`
	Moving        bool        `json:"moving"`
	Color         string      `json:"color"`
}

// GameStateMsg is sent once to a newly joined connection. You carries the
// joiner's own server-assigned entity (id, spawn position, color); Players
// lists the members present before the join.
type GameStateMsg struct {
	You     PlayerState   `json:"you"`
	Room    string        `json:"room"`
	Players []PlayerState `json:"players"`
}

// PlayerJoinedMsg announces a new room member to the existing ones.
type PlayerJoinedMsg struct {
	Player PlayerState `json:"player"`
}

// PlayerMovedMsg rebroadcasts one player's move to its room peers.
type PlayerMovedMsg struct {
	ID            string      `json:"id"`
	X             float64     `json:"x"`
	Y             float64     `json:"y"`
	Facing        game.Facing `json:"facing"`
	CurrentSprite string      `json:"currentSprite"`
	Moving        bool        `json:"moving"`
}

// PlayerInputChangedMsg rebroadcasts a pose-only update.
type PlayerInputChangedMsg struct {
	ID            string      `json:"id"`
	Facing        game.Facing `json:"facing"`
	CurrentSprite string      `json:"currentSprite"`
	Moving        bool        `json:"moving"`
}

// PlayerLeftMsg announces a departed member by id only.
type PlayerLeftMsg struct {
	ID string `json:"id"`
}

// GameSyncMsg is the periodic full-room snapshot. It includes every member,
// the receiver's own entity among them.
type GameSyncMsg struct {
	Players []PlayerState `json:"players"`
}

// Encode serializes a payload into a typed envelope frame.
func Encode(msgType MsgType, payload interface{}) ([]byte, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	env := Envelope{
		Type:    msgType,
		Payload: json.RawMessage(payloadBytes),
	}

	body, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return body, nil
}

// Decode parses a single envelope frame.
func Decode(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	return &env, nil
}

// DecodePayload unmarshals the payload from an envelope into the target struct.
func DecodePayload(env *Envelope, target interface{}) error {
	return json.Unmarshal(env.Payload, target)
}

// FromEntity converts a canonical entity to its wire form.
func FromEntity(e game.Entity) PlayerState {
	return PlayerState{
		ID:            e.ID,
		X:             e.X,
		Y:             e.Y,
		Facing:        e.Facing,
		CurrentSprite: e.Sprite,
		Moving:        e.Moving,
		Color:         e.Color,
	}
}

// Entity converts a wire player state back to a game entity.
func (p PlayerState) Entity() game.Entity {
	return game.Entity{
		ID:     p.ID,
		X:      p.X,
		Y:      p.Y,
		Facing: p.Facing,
		Sprite: p.CurrentSprite,
		Moving: p.Moving,
		Color:  p.Color,
	}
}
