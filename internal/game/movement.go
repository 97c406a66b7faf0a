package game

import (
	"time"
)

const (
	// DefaultSpeed is the walk speed in world units per second.
	DefaultSpeed = 160.0

	// PlayerWidth and PlayerHeight define the player's bounding box.
	PlayerWidth  = 32.0
	PlayerHeight = 32.0

	// maxStepSeconds caps the integration step in rooms with no blocks,
	// where tunneling is impossible anyway.
	maxStepSeconds = 0.25
)

// StepResult reports what one frame of the movement engine changed.
type StepResult struct {
	Entity Entity
	// Moved is true when the resolved position differs from the previous
	// frame; the caller should emit a move update.
	Moved bool
	// InputChanged is true when facing, sprite, or the moving flag changed
	// without any position delta; the caller should emit an input update so
	// peers see the new pose immediately.
	InputChanged bool
}

// Engine advances the locally controlled player each frame: it integrates
// held-key motion over elapsed wall time and resolves collisions against the
// room's static block set, one axis at a time so diagonal motion slides
// along walls instead of stopping dead.
type Engine struct {
	ent    Entity
	blocks []Block
	speed  float64
	w, h   float64
	maxDT  float64
	held   map[Facing]bool
	last   time.Time
}

// NewEngine creates a movement engine for the given entity and obstacle set.
// The block slice is read-only and may be shared with other engines.
//
// The per-frame time step is clamped so a single step can never cover more
// than half the smallest block edge; a stalled frame (tab in background,
// debugger pause) then cannot tunnel the player through an obstacle.
func NewEngine(ent Entity, blocks []Block) *Engine {
	if !ent.Facing.Valid() {
		ent.Facing = FacingDown
	}
	ent.Sprite = SpriteFor(ent.Facing, ent.Moving)

	maxDT := maxStepSeconds
	if min := MinBlockSize(blocks); min > 0 {
		if dt := (min / 2) / DefaultSpeed; dt < maxDT {
			maxDT = dt
		}
	}

	return &Engine{
		ent:    ent,
		blocks: blocks,
		speed:  DefaultSpeed,
		w:      PlayerWidth,
		h:      PlayerHeight,
		maxDT:  maxDT,
		held:   make(map[Facing]bool, 4),
	}
}

// Entity returns the current resolved state of the local player.
func (e *Engine) Entity() Entity {
	return e.ent
}

// Press marks a direction key as held. Invalid directions are ignored.
func (e *Engine) Press(f Facing) {
	if f.Valid() {
		e.held[f] = true
	}
}

// Release marks a direction key as no longer held.
func (e *Engine) Release(f Facing) {
	delete(e.held, f)
}

// facingFromHeld resolves the held-key set to a single facing.
// Horizontal keys take priority over vertical ones, left before right and
// up before down; the order is fixed so diagonal input is deterministic.
func (e *Engine) facingFromHeld() (Facing, bool) {
	switch {
	case e.held[FacingLeft]:
		return FacingLeft, true
	case e.held[FacingRight]:
		return FacingRight, true
	case e.held[FacingUp]:
		return FacingUp, true
	case e.held[FacingDown]:
		return FacingDown, true
	}
	return "", false
}

// Step advances the player by the wall time elapsed since the previous call.
// The first call establishes the time base and moves nothing.
func (e *Engine) Step(now time.Time) StepResult {
	var dt float64
	if !e.last.IsZero() {
		dt = now.Sub(e.last).Seconds()
	}
	e.last = now
	if dt < 0 {
		dt = 0
	}
	if dt > e.maxDT {
		dt = e.maxDT
	}

	prev := e.ent

	facing := prev.Facing
	moving := false
	if f, ok := e.facingFromHeld(); ok {
		facing = f
		moving = true
	}

	var dx, dy float64
	if e.held[FacingLeft] {
		dx -= e.speed * dt
	}
	if e.held[FacingRight] {
		dx += e.speed * dt
	}
	if e.held[FacingUp] {
		dy -= e.speed * dt
	}
	if e.held[FacingDown] {
		dy += e.speed * dt
	}

	// Axis-separated resolution: X first, then Y against the X-resolved box.
	if dx != 0 {
		e.ent.X = resolveX(e.ent.X, e.ent.Y, e.w, e.h, dx, e.blocks)
	}
	if dy != 0 {
		e.ent.Y = resolveY(e.ent.X, e.ent.Y, e.w, e.h, dy, e.blocks)
	}

	e.ent.Facing = facing
	e.ent.Moving = moving
	e.ent.Sprite = SpriteFor(facing, moving)

	moved := e.ent.X != prev.X || e.ent.Y != prev.Y
	poseChanged := e.ent.Facing != prev.Facing ||
		e.ent.Moving != prev.Moving ||
		e.ent.Sprite != prev.Sprite

	return StepResult{
		Entity:       e.ent,
		Moved:        moved,
		InputChanged: poseChanged && !moved,
	}
}
