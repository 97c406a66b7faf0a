package game

// Block is a static axis-aligned square obstacle in world units.
// Blocks are immutable after room load and safe to share across readers.
type Block struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Size float64 `json:"size"`
}

// overlaps reports whether the box (x, y, w, h) intersects the block.
// Touching edges do not count as an overlap.
func (b Block) overlaps(x, y, w, h float64) bool {
	return x < b.X+b.Size && x+w > b.X &&
		y < b.Y+b.Size && y+h > b.Y
}

// MinBlockSize returns the smallest block edge in the set, or 0 for an
// empty set.
func MinBlockSize(blocks []Block) float64 {
	var min float64
	for i, b := range blocks {
		if i == 0 || b.Size < min {
			min = b.Size
		}
	}
	return min
}

// resolveX applies a horizontal displacement to the box at (x, y) and clamps
// it against the block set, returning the resolved X coordinate.
//
// Clamping against one block can land the box on another when blocks sit
// closer together than the box width, so passes repeat until no overlap
// remains. Each clamp moves the box strictly back toward its start, and the
// start position is overlap-free, so this terminates.
func resolveX(x, y, w, h, dx float64, blocks []Block) float64 {
	nx := x + dx
	for range blocks {
		hit := false
		for _, b := range blocks {
			if !b.overlaps(nx, y, w, h) {
				continue
			}
			hit = true
			if dx > 0 {
				nx = b.X - w
			} else {
				nx = b.X + b.Size
			}
		}
		if !hit {
			break
		}
	}
	return nx
}

// resolveY is the vertical counterpart of resolveX.
func resolveY(x, y, w, h, dy float64, blocks []Block) float64 {
	ny := y + dy
	for range blocks {
		hit := false
		for _, b := range blocks {
			if !b.overlaps(x, ny, w, h) {
				continue
			}
			hit = true
			if dy > 0 {
				ny = b.Y - h
			} else {
				ny = b.Y + b.Size
			}
		}
		if !hit {
			break
		}
	}
	return ny
}

// Overlapping reports whether the box intersects any block in the set.
func Overlapping(x, y, w, h float64, blocks []Block) bool {
	for _, b := range blocks {
		if b.overlaps(x, y, w, h) {
			return true
		}
	}
	return false
}
