package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pixelton/townsquare/internal/game"
)

func TestEncodeDecodeDispatch(t *testing.T) {
	frame, err := Encode(MsgPlayerMoved, PlayerMovedMsg{
		ID: "p1", X: 300, Y: 250, Facing: game.FacingRight,
		CurrentSprite: "walk-right", Moving: true,
	})
	require.NoError(t, err)

	env, err := Decode(frame)
	require.NoError(t, err)
	require.Equal(t, MsgPlayerMoved, env.Type)

	var msg PlayerMovedMsg
	require.NoError(t, DecodePayload(env, &msg))
	require.Equal(t, "p1", msg.ID)
	require.Equal(t, 300.0, msg.X)
	require.True(t, msg.Moving)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("not json"))
	require.Error(t, err)
}

func TestEntityConversionRoundTrip(t *testing.T) {
	e := game.Entity{
		ID: "p2", X: 1.5, Y: 2.5, Facing: game.FacingLeft,
		Sprite: "idle-left", Color: "#3cb44b", Room: "townhall",
	}

	got := FromEntity(e).Entity()

	// Room is server-side bookkeeping and does not travel on the wire.
	e.Room = ""
	require.Equal(t, e, got)
}
