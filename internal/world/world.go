// Package world loads the static room definitions: tile dimensions, spawn
// points, and the blocking cells each room's collision set is built from.
// Room data is read once at startup and immutable afterwards, so it may be
// shared freely across connections without synchronization.
package world

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pixelton/townsquare/internal/game"
)

// DefaultTileSize is the edge of one grid cell in world units.
const DefaultTileSize = 32.0

// Point is a position in world units.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// RoomSpec describes one room's static layout. Blocked lists blocking cells
// as [column, row] grid coordinates.
type RoomSpec struct {
	Name     string   `json:"name"`
	TileSize float64  `json:"tileSize"`
	Width    int      `json:"width"`
	Height   int      `json:"height"`
	Spawn    Point    `json:"spawn"`
	Blocked  [][2]int `json:"blocked"`

	blocks []game.Block
}

// Blocks returns the room's collision set in world units.
func (r *RoomSpec) Blocks() []game.Block {
	return r.blocks
}

// buildBlocks converts blocked cells to world-unit collision blocks.
func (r *RoomSpec) buildBlocks() {
	r.blocks = make([]game.Block, 0, len(r.Blocked))
	for _, cell := range r.Blocked {
		r.blocks = append(r.blocks, game.Block{
			X:    float64(cell[0]) * r.TileSize,
			Y:    float64(cell[1]) * r.TileSize,
			Size: r.TileSize,
		})
	}
}

func (r *RoomSpec) validate() error {
	if r.Name == "" {
		return fmt.Errorf("room with empty name")
	}
	if r.TileSize <= 0 {
		return fmt.Errorf("room %q: tileSize must be positive", r.Name)
	}
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("room %q: dimensions must be positive", r.Name)
	}
	for _, cell := range r.Blocked {
		if cell[0] < 0 || cell[0] >= r.Width || cell[1] < 0 || cell[1] >= r.Height {
			return fmt.Errorf("room %q: blocked cell (%d,%d) out of range", r.Name, cell[0], cell[1])
		}
	}
	return nil
}

// World holds every configured room plus a fallback shape for rooms that are
// created lazily under names the asset file never mentions.
type World struct {
	rooms map[string]*RoomSpec
}

type worldFile struct {
	Rooms []*RoomSpec `json:"rooms"`
}

// Load reads room definitions from a JSON asset file.
func Load(path string) (*World, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read world file: %w", err)
	}

	var wf worldFile
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("parse world file: %w", err)
	}

	w := &World{rooms: make(map[string]*RoomSpec, len(wf.Rooms))}
	for _, spec := range wf.Rooms {
		if err := spec.validate(); err != nil {
			return nil, err
		}
		if _, dup := w.rooms[spec.Name]; dup {
			return nil, fmt.Errorf("duplicate room %q", spec.Name)
		}
		spec.buildBlocks()
		w.rooms[spec.Name] = spec
	}
	return w, nil
}

// Default returns the built-in world used when no asset file is supplied:
// a walled town hall with interior pillars and an open main field.
func Default() *World {
	townhall := &RoomSpec{
		Name:     "townhall",
		TileSize: DefaultTileSize,
		Width:    25,
		Height:   19,
		Spawn:    Point{X: 12 * DefaultTileSize, Y: 9 * DefaultTileSize},
	}
	for x := 0; x < townhall.Width; x++ {
		townhall.Blocked = append(townhall.Blocked, [2]int{x, 0}, [2]int{x, townhall.Height - 1})
	}
	for y := 1; y < townhall.Height-1; y++ {
		townhall.Blocked = append(townhall.Blocked, [2]int{0, y}, [2]int{townhall.Width - 1, y})
	}
	// Interior pillars on a coarse grid, leaving the spawn area clear.
	for y := 4; y < townhall.Height-4; y += 4 {
		for x := 4; x < townhall.Width-4; x += 4 {
			if x >= 10 && x <= 14 && y >= 7 && y <= 11 {
				continue
			}
			townhall.Blocked = append(townhall.Blocked, [2]int{x, y})
		}
	}
	townhall.buildBlocks()

	main := &RoomSpec{
		Name:     "main",
		TileSize: DefaultTileSize,
		Width:    30,
		Height:   22,
		Spawn:    Point{X: 15 * DefaultTileSize, Y: 11 * DefaultTileSize},
	}
	main.buildBlocks()

	return &World{rooms: map[string]*RoomSpec{
		townhall.Name: townhall,
		main.Name:     main,
	}}
}

// Room returns the spec for the named room. Unknown names get an open,
// unconstrained room so lazy room creation always succeeds.
func (w *World) Room(name string) *RoomSpec {
	if spec, ok := w.rooms[name]; ok {
		return spec
	}
	return &RoomSpec{
		Name:     name,
		TileSize: DefaultTileSize,
		Width:    30,
		Height:   22,
		Spawn:    Point{X: 15 * DefaultTileSize, Y: 11 * DefaultTileSize},
	}
}

// Names lists the configured room names.
func (w *World) Names() []string {
	out := make([]string, 0, len(w.rooms))
	for name := range w.rooms {
		out = append(out, name)
	}
	return out
}
