package session

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pixelton/townsquare/internal/protocol"
	"github.com/pixelton/townsquare/internal/world"
)

// fakeSender records every frame the hub pushes at it.
type fakeSender struct {
	id     string
	frames [][]byte
}

func (f *fakeSender) ID() string    { return f.id }
func (f *fakeSender) Send(b []byte) { f.frames = append(f.frames, b) }

func (f *fakeSender) envelopes(t *testing.T) []*protocol.Envelope {
	t.Helper()
	out := make([]*protocol.Envelope, 0, len(f.frames))
	for _, b := range f.frames {
		env, err := protocol.Decode(b)
		require.NoError(t, err)
		out = append(out, env)
	}
	return out
}

func (f *fakeSender) byType(t *testing.T, msgType protocol.MsgType) []*protocol.Envelope {
	t.Helper()
	var out []*protocol.Envelope
	for _, env := range f.envelopes(t) {
		if env.Type == msgType {
			out = append(out, env)
		}
	}
	return out
}

func (f *fakeSender) reset() { f.frames = nil }

func newTestHub() *Hub {
	return NewHub(NewRegistry(), world.Default(), rand.New(rand.NewSource(1)), zap.NewNop().Sugar())
}

func TestRegistryConsistency(t *testing.T) {
	h := newTestHub()

	a := &fakeSender{id: "a"}
	b := &fakeSender{id: "b"}
	c := &fakeSender{id: "c"}
	h.handleJoin(a, "townhall")
	h.handleJoin(b, "townhall")
	h.handleJoin(c, "main")

	counts := h.reg.Counts()
	require.Equal(t, 2, counts["townhall"])
	require.Equal(t, 1, counts["main"])

	h.handleLeave("a")
	h.handleLeave("c")

	counts = h.reg.Counts()
	require.Equal(t, 1, counts["townhall"])
	require.NotContains(t, counts, "main")
}

func TestIdempotentRemoval(t *testing.T) {
	h := newTestHub()

	a := &fakeSender{id: "a"}
	b := &fakeSender{id: "b"}
	h.handleJoin(a, "townhall")
	h.handleJoin(b, "townhall")

	h.handleLeave("a")
	require.Equal(t, 1, h.reg.Counts()["townhall"])

	left := b.byType(t, protocol.MsgPlayerLeft)
	require.Len(t, left, 1)

	// Disconnecting again changes nothing and announces nothing.
	h.handleLeave("a")
	require.Equal(t, 1, h.reg.Counts()["townhall"])
	require.Len(t, b.byType(t, protocol.MsgPlayerLeft), 1)
}

func TestBroadcastReach(t *testing.T) {
	h := newTestHub()

	a := &fakeSender{id: "a"}
	b := &fakeSender{id: "b"}
	h.handleJoin(a, "townhall")
	h.handleJoin(b, "townhall")
	a.reset()
	b.reset()

	h.handleMove("a", protocol.PlayerMoveMsg{
		X: 300, Y: 250, Facing: "right", CurrentSprite: "walk-right", Moving: true,
	})

	moved := b.byType(t, protocol.MsgPlayerMoved)
	require.Len(t, moved, 1, "peer must receive the move immediately, ahead of any sync tick")

	var msg protocol.PlayerMovedMsg
	require.NoError(t, protocol.DecodePayload(moved[0], &msg))
	require.Equal(t, "a", msg.ID)
	require.Equal(t, 300.0, msg.X)
	require.Equal(t, 250.0, msg.Y)

	// The sender never hears its own move back.
	require.Empty(t, a.byType(t, protocol.MsgPlayerMoved))
}

func TestReconciliation(t *testing.T) {
	h := newTestHub()

	a := &fakeSender{id: "a"}
	b := &fakeSender{id: "b"}
	h.handleJoin(a, "townhall")
	h.handleJoin(b, "townhall")
	a.reset()
	b.reset()

	c := &fakeSender{id: "c"}
	h.handleJoin(c, "townhall")

	envs := c.envelopes(t)
	require.NotEmpty(t, envs)
	require.Equal(t, protocol.MsgGameState, envs[0].Type, "first message to a joiner is the snapshot")

	var snap protocol.GameStateMsg
	require.NoError(t, protocol.DecodePayload(envs[0], &snap))
	require.Equal(t, "c", snap.You.ID)

	ids := make([]string, 0, len(snap.Players))
	for _, p := range snap.Players {
		ids = append(ids, p.ID)
	}
	require.ElementsMatch(t, []string{"a", "b"}, ids, "snapshot holds exactly the prior members")

	// The joiner is announced to the others, never to itself.
	require.Empty(t, c.byType(t, protocol.MsgPlayerJoined))
	require.Len(t, a.byType(t, protocol.MsgPlayerJoined), 1)
	require.Len(t, b.byType(t, protocol.MsgPlayerJoined), 1)
}

func TestNoCrossTalk(t *testing.T) {
	h := newTestHub()

	a := &fakeSender{id: "a"}
	b := &fakeSender{id: "b"}
	h.handleJoin(a, "main")
	h.handleJoin(b, "townhall")
	b.reset()

	h.handleMove("a", protocol.PlayerMoveMsg{
		X: 10, Y: 10, Facing: "up", CurrentSprite: "walk-up", Moving: true,
	})
	h.syncRooms()

	for _, env := range b.envelopes(t) {
		require.NotEqual(t, protocol.MsgPlayerMoved, env.Type, "move in 'main' leaked into 'townhall'")
		if env.Type == protocol.MsgGameSync {
			var sync protocol.GameSyncMsg
			require.NoError(t, protocol.DecodePayload(env, &sync))
			require.Len(t, sync.Players, 1)
			require.Equal(t, "b", sync.Players[0].ID)
		}
	}
}

func TestSyncRooms(t *testing.T) {
	h := newTestHub()

	a := &fakeSender{id: "a"}
	b := &fakeSender{id: "b"}
	h.handleJoin(a, "townhall")
	h.handleJoin(b, "townhall")
	a.reset()
	b.reset()

	h.syncRooms()

	for _, s := range []*fakeSender{a, b} {
		syncs := s.byType(t, protocol.MsgGameSync)
		require.Len(t, syncs, 1)
		var msg protocol.GameSyncMsg
		require.NoError(t, protocol.DecodePayload(syncs[0], &msg))
		require.Len(t, msg.Players, 2, "full snapshot includes every member, self included")
	}
}

func TestUnknownEntityEventsDropped(t *testing.T) {
	h := newTestHub()

	a := &fakeSender{id: "a"}
	h.handleJoin(a, "townhall")
	a.reset()

	h.handleMove("ghost", protocol.PlayerMoveMsg{X: 1, Y: 1, Facing: "up"})
	h.handleInput("ghost", protocol.PlayerInputMsg{Facing: "up"})

	require.Empty(t, a.frames, "events for unknown ids must not surface to anyone")
}

func TestMalformedMoveDropped(t *testing.T) {
	h := newTestHub()

	a := &fakeSender{id: "a"}
	b := &fakeSender{id: "b"}
	h.handleJoin(a, "townhall")
	h.handleJoin(b, "townhall")

	ent, _, ok := h.reg.Find("a")
	require.True(t, ok)
	before := *ent
	b.reset()

	h.handleMove("a", protocol.PlayerMoveMsg{X: 999, Y: 999, Facing: "sideways"})

	require.Empty(t, b.frames)
	after, _, _ := h.reg.Find("a")
	require.Equal(t, before.X, after.X, "malformed payload must not mutate state")
	require.Equal(t, before.Y, after.Y)
}

func TestInputUpdatesPoseOnly(t *testing.T) {
	h := newTestHub()

	a := &fakeSender{id: "a"}
	b := &fakeSender{id: "b"}
	h.handleJoin(a, "townhall")
	h.handleJoin(b, "townhall")

	h.handleMove("a", protocol.PlayerMoveMsg{
		X: 120, Y: 140, Facing: "right", CurrentSprite: "walk-right", Moving: true,
	})
	b.reset()

	h.handleInput("a", protocol.PlayerInputMsg{
		Facing: "left", CurrentSprite: "idle-left", Moving: false,
	})

	ent, _, _ := h.reg.Find("a")
	require.Equal(t, 120.0, ent.X, "input update leaves position alone")
	require.Equal(t, 140.0, ent.Y)
	require.Equal(t, "idle-left", ent.Sprite)

	changed := b.byType(t, protocol.MsgPlayerInputChanged)
	require.Len(t, changed, 1)
	var msg protocol.PlayerInputChangedMsg
	require.NoError(t, protocol.DecodePayload(changed[0], &msg))
	require.Equal(t, "a", msg.ID)
	require.False(t, msg.Moving)
}

func TestSpawnJitter(t *testing.T) {
	h := newTestHub()
	base := world.Default().Room("townhall").Spawn

	a := &fakeSender{id: "a"}
	b := &fakeSender{id: "b"}
	h.handleJoin(a, "townhall")
	h.handleJoin(b, "townhall")

	ea, _, _ := h.reg.Find("a")
	eb, _, _ := h.reg.Find("b")

	for _, pos := range [][2]float64{{ea.X, ea.Y}, {eb.X, eb.Y}} {
		require.LessOrEqual(t, math.Abs(pos[0]-base.X), spawnJitterRadius)
		require.LessOrEqual(t, math.Abs(pos[1]-base.Y), spawnJitterRadius)
	}
	require.False(t, ea.X == eb.X && ea.Y == eb.Y, "two joiners should not spawn on the exact same point")
	require.NotEmpty(t, ea.Color)
}

func TestJoinCreatesRoomLazily(t *testing.T) {
	h := newTestHub()

	a := &fakeSender{id: "a"}
	h.handleJoin(a, "never-configured")

	require.Equal(t, 1, h.reg.Counts()["never-configured"])
	require.Len(t, a.byType(t, protocol.MsgGameState), 1)
}

// TestHubLoop exercises the public API against a running event loop: the
// serialized path from Join/Move/Leave through to fan-out and the periodic
// sync tick.
func TestHubLoop(t *testing.T) {
	h := newTestHub()
	h.sync = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	a := &syncSender{id: "a", frames: make(chan []byte, 64)}
	b := &syncSender{id: "b", frames: make(chan []byte, 64)}
	h.Join(a, "townhall")
	h.Join(b, "townhall")

	requireType(t, b.frames, protocol.MsgGameState)

	h.Move("a", protocol.PlayerMoveMsg{X: 300, Y: 250, Facing: "down", CurrentSprite: "walk-down", Moving: true})
	env := requireType(t, b.frames, protocol.MsgPlayerMoved)
	var moved protocol.PlayerMovedMsg
	require.NoError(t, protocol.DecodePayload(env, &moved))
	require.Equal(t, 300.0, moved.X)

	requireType(t, b.frames, protocol.MsgGameSync)

	h.Leave("a")
	requireType(t, b.frames, protocol.MsgPlayerLeft)

	counts := h.RoomCounts()
	require.Equal(t, 1, counts["townhall"])
}

// syncSender is a Sender safe for cross-goroutine assertions.
type syncSender struct {
	id     string
	frames chan []byte
}

func (s *syncSender) ID() string { return s.id }
func (s *syncSender) Send(b []byte) {
	select {
	case s.frames <- b:
	default:
	}
}

// requireType drains frames until one of the wanted type arrives.
func requireType(t *testing.T, frames chan []byte, want protocol.MsgType) *protocol.Envelope {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case b := <-frames:
			env, err := protocol.Decode(b)
			require.NoError(t, err)
			if env.Type == want {
				return env
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", want)
			return nil
		}
	}
}
