package game

import (
	"math"
	"math/rand"
	"testing"
	"time"
)

func newTestEngine(x, y float64, blocks []Block) *Engine {
	return NewEngine(Entity{ID: "local", X: x, Y: y, Facing: FacingDown}, blocks)
}

func TestFacingPriority(t *testing.T) {
	// Horizontal beats vertical, left beats right, up beats down.
	tests := []struct {
		name string
		held []Facing
		want Facing
	}{
		{"left only", []Facing{FacingLeft}, FacingLeft},
		{"up only", []Facing{FacingUp}, FacingUp},
		{"left and up", []Facing{FacingUp, FacingLeft}, FacingLeft},
		{"right and down", []Facing{FacingDown, FacingRight}, FacingRight},
		{"left and right", []Facing{FacingRight, FacingLeft}, FacingLeft},
		{"up and down", []Facing{FacingDown, FacingUp}, FacingUp},
		{"all four", []Facing{FacingUp, FacingDown, FacingLeft, FacingRight}, FacingLeft},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(0, 0, nil)
			for _, f := range tt.held {
				e.Press(f)
			}
			got, ok := e.facingFromHeld()
			if !ok {
				t.Fatal("expected a resolved facing")
			}
			if got != tt.want {
				t.Errorf("facing = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFirstStepEstablishesTimeBase(t *testing.T) {
	e := newTestEngine(100, 100, nil)
	e.Press(FacingRight)

	res := e.Step(time.Unix(1000, 0))
	if res.Moved {
		t.Error("first step should not move: no elapsed time yet")
	}
	if !res.InputChanged {
		t.Error("first step with a held key should report a pose change")
	}
	if res.Entity.Facing != FacingRight || !res.Entity.Moving {
		t.Errorf("expected moving right, got facing=%s moving=%v", res.Entity.Facing, res.Entity.Moving)
	}
}

func TestStepUnconstrained(t *testing.T) {
	e := newTestEngine(100, 100, nil)
	e.Press(FacingRight)

	base := time.Unix(1000, 0)
	e.Step(base)
	res := e.Step(base.Add(100 * time.Millisecond))

	if !res.Moved {
		t.Fatal("expected movement")
	}
	wantX := 100 + DefaultSpeed*0.1
	if math.Abs(res.Entity.X-wantX) > 1e-9 {
		t.Errorf("x = %v, want %v", res.Entity.X, wantX)
	}
	if res.Entity.Y != 100 {
		t.Errorf("y = %v, want 100", res.Entity.Y)
	}
	if res.Entity.Sprite != "walk-right" {
		t.Errorf("sprite = %q, want walk-right", res.Entity.Sprite)
	}
}

func TestWallSliding(t *testing.T) {
	// Wall immediately to the player's right. Holding right+down should
	// clamp X at the wall face while Y keeps advancing.
	blocks := []Block{{X: 132, Y: 100, Size: 32}}
	e := newTestEngine(100, 100, blocks)
	e.Press(FacingRight)
	e.Press(FacingDown)

	base := time.Unix(1000, 0)
	e.Step(base)
	res := e.Step(base.Add(50 * time.Millisecond))

	if res.Entity.X != 100 {
		t.Errorf("x = %v, want 100 (clamped at wall)", res.Entity.X)
	}
	if res.Entity.Y <= 100 {
		t.Errorf("y = %v, want > 100 (sliding along wall)", res.Entity.Y)
	}
	if res.Entity.Facing != FacingRight {
		t.Errorf("facing = %s, want right (horizontal priority)", res.Entity.Facing)
	}
	if !res.Moved {
		t.Error("sliding along the wall should count as movement")
	}
}

func TestBlockedStepReportsInputChange(t *testing.T) {
	blocks := []Block{{X: 132, Y: 100, Size: 32}}
	e := newTestEngine(100, 100, blocks)
	e.Press(FacingRight)

	base := time.Unix(1000, 0)
	e.Step(base)
	res := e.Step(base.Add(50 * time.Millisecond))
	if res.Moved {
		t.Error("fully blocked step should not move")
	}

	// Releasing the key flips back to idle: pose change, no move.
	e.Release(FacingRight)
	res = e.Step(base.Add(100 * time.Millisecond))
	if res.Moved {
		t.Error("idle step should not move")
	}
	if !res.InputChanged {
		t.Error("stopping should report a pose change")
	}
	if res.Entity.Sprite != "idle-right" {
		t.Errorf("sprite = %q, want idle-right", res.Entity.Sprite)
	}

	// Nothing changed since: no events at all.
	res = e.Step(base.Add(150 * time.Millisecond))
	if res.Moved || res.InputChanged {
		t.Error("steady idle frame should emit nothing")
	}
}

func TestLargeDeltaCannotTunnel(t *testing.T) {
	// A wall lies between the player and the naive unclamped target. A
	// 10-second frame hitch must not carry the player through it.
	blocks := []Block{{X: 200, Y: 100, Size: 32}}
	e := newTestEngine(100, 100, blocks)
	e.Press(FacingRight)

	base := time.Unix(1000, 0)
	e.Step(base)
	res := e.Step(base.Add(10 * time.Second))

	if res.Entity.X+PlayerWidth > 200 {
		t.Errorf("x = %v: player ended beyond the wall face", res.Entity.X)
	}
	if Overlapping(res.Entity.X, res.Entity.Y, PlayerWidth, PlayerHeight, blocks) {
		t.Error("player ended overlapping a block")
	}
}

// TestRandomLayoutsNeverOverlap drives the engine with random block layouts
// and random input sequences and checks the resolved box never ends a frame
// inside a block.
func TestRandomLayoutsNeverOverlap(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	sizes := []float64{16, 32, 48}
	dirs := []Facing{FacingUp, FacingDown, FacingLeft, FacingRight}

	for layout := 0; layout < 20; layout++ {
		var blocks []Block
		for len(blocks) < 40 {
			b := Block{
				X:    float64(rng.Intn(800) - 400),
				Y:    float64(rng.Intn(800) - 400),
				Size: sizes[rng.Intn(len(sizes))],
			}
			// Keep the spawn box clear; a spawn inside a block is a
			// room-data configuration error, not an engine concern.
			if b.overlaps(0, 0, PlayerWidth, PlayerHeight) {
				continue
			}
			blocks = append(blocks, b)
		}

		e := newTestEngine(0, 0, blocks)
		now := time.Unix(1000, 0)
		e.Step(now)

		for i := 0; i < 400; i++ {
			if rng.Intn(3) == 0 {
				d := dirs[rng.Intn(len(dirs))]
				if rng.Intn(2) == 0 {
					e.Press(d)
				} else {
					e.Release(d)
				}
			}
			now = now.Add(time.Duration(1+rng.Intn(300)) * time.Millisecond)
			res := e.Step(now)
			if Overlapping(res.Entity.X, res.Entity.Y, PlayerWidth, PlayerHeight, blocks) {
				t.Fatalf("layout %d step %d: box (%v,%v) overlaps a block",
					layout, i, res.Entity.X, res.Entity.Y)
			}
		}
	}
}
