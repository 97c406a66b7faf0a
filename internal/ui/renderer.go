package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/pixelton/townsquare/internal/game"
	"github.com/pixelton/townsquare/internal/world"
)

var (
	wallStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#3a3a3a")).
			Foreground(lipgloss.Color("#555555"))

	floorStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#1a1a2e")).
			Foreground(lipgloss.Color("#1a1a2e"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))

	connectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00ff88")).
			Bold(true)

	disconnectedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#ff4444")).
				Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#555555"))
)

// facingGlyphs gives each player a direction marker, two characters wide for
// a square-ish cell.
var facingGlyphs = map[game.Facing]string{
	game.FacingUp:    "▲▲",
	game.FacingDown:  "▼▼",
	game.FacingLeft:  "◀◀",
	game.FacingRight: "▶▶",
}

// RenderRoom draws the room grid with the local player and every remote
// mirror placed on their current cells.
func RenderRoom(spec *world.RoomSpec, local game.Entity, remotes []game.Entity) string {
	blocked := make(map[[2]int]bool, len(spec.Blocked))
	for _, cell := range spec.Blocked {
		blocked[cell] = true
	}

	players := make(map[[2]int]occupant, len(remotes)+1)
	for _, e := range remotes {
		players[cellOf(e, spec)] = occupant{ent: e}
	}
	// Local player placed last so it wins a contested cell.
	players[cellOf(local, spec)] = occupant{ent: local, local: true}

	var rows []string
	for y := 0; y < spec.Height; y++ {
		var cells []string
		for x := 0; x < spec.Width; x++ {
			cells = append(cells, renderCell(x, y, blocked, players))
		}
		rows = append(rows, strings.Join(cells, ""))
	}
	return strings.Join(rows, "\n")
}

type occupant struct {
	ent   game.Entity
	local bool
}

func cellOf(e game.Entity, spec *world.RoomSpec) [2]int {
	x := int((e.X + game.PlayerWidth/2) / spec.TileSize)
	y := int((e.Y + game.PlayerHeight/2) / spec.TileSize)
	if x < 0 {
		x = 0
	}
	if x >= spec.Width {
		x = spec.Width - 1
	}
	if y < 0 {
		y = 0
	}
	if y >= spec.Height {
		y = spec.Height - 1
	}
	return [2]int{x, y}
}

// renderCell renders one grid cell, two characters wide. Priority:
// player > wall > floor.
func renderCell(x, y int, blocked map[[2]int]bool, players map[[2]int]occupant) string {
	cell := [2]int{x, y}

	if occ, ok := players[cell]; ok {
		style := lipgloss.NewStyle().
			Background(lipgloss.Color("#1a1a2e")).
			Foreground(lipgloss.Color(occ.ent.Color)).
			Bold(true)
		if occ.local {
			// Solid block in the player's own color.
			return style.Background(lipgloss.Color(occ.ent.Color)).Render("██")
		}
		glyph, ok := facingGlyphs[occ.ent.Facing]
		if !ok {
			glyph = "••"
		}
		return style.Render(glyph)
	}

	if blocked[cell] {
		return wallStyle.Render("██")
	}
	return floorStyle.Render("  ")
}

// RenderStatus draws the one-line status bar under the grid: room name,
// a qualitative connected/disconnected indicator, and the peer count.
func RenderStatus(room string, connected bool, remotes int) string {
	indicator := disconnectedStyle.Render("○ disconnected")
	if connected {
		indicator = connectedStyle.Render("● connected")
	}

	left := statusStyle.Render(fmt.Sprintf("room %s · %d nearby", room, remotes))
	help := helpStyle.Render("WASD/Arrows: move | Q: quit")

	return left + "  " + indicator + "  " + help
}
