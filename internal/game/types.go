package game

// Facing represents the direction a player is looking.
type Facing string

const (
	FacingUp    Facing = "up"
	FacingDown  Facing = "down"
	FacingLeft  Facing = "left"
	FacingRight Facing = "right"
)

// Valid reports whether f is one of the four cardinal directions.
func (f Facing) Valid() bool {
	switch f {
	case FacingUp, FacingDown, FacingLeft, FacingRight:
		return true
	}
	return false
}

// SpriteFor derives the animation key from facing and motion.
// Walking players play "walk-<facing>", standing players "idle-<facing>".
func SpriteFor(f Facing, moving bool) string {
	if moving {
		return "walk-" + string(f)
	}
	return "idle-" + string(f)
}

// Entity is the replicated state for one connected player.
// The session hub owns the canonical copy; clients hold a local mirror for
// themselves plus read-only mirrors for remote players.
type Entity struct {
	ID     string  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Facing Facing  `json:"facing"`
	Sprite string  `json:"sprite"`
	Moving bool    `json:"moving"`
	Color  string  `json:"color"`
	Room   string  `json:"room"`
}
