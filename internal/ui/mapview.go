package ui

import (
	"math"
	"strings"

	"github.com/kalambet/gallery/internal/navigation"
	"github.com/kalambet/gallery/internal/panel"
	"github.com/kalambet/gallery/internal/physics"
	"github.com/kalambet/gallery/internal/scene"
)

// Map size in cells. A cell is twice as tall as it is wide on most
// terminals, so each row covers twice the distance of a column.
const (
	mapCols = 60
	mapRows = 40
)

const (
	glyphFloor = '·'
	glyphWall  = '█'
	glyphBench = '▭'
	glyphPlant = '♣'
)

// mapGrid rasterizes s seen from above, north (+Z) up, with the viewer drawn
// as a heading arrow.
func mapGrid(s scene.Scene, cam navigation.Camera, cols, rows int) [][]rune {
	grid := make([][]rune, rows)
	for r := range grid {
		grid[r] = []rune(strings.Repeat(string(glyphFloor), cols))
	}
	cw := 2 * float64(scene.HalfWidth) / float64(cols)
	ch := 2 * float64(scene.HalfDepth) / float64(rows)

	for _, n := range s.Nodes {
		var g rune
		switch n.Kind {
		case scene.Wall:
			g = glyphWall
		case scene.Bench:
			g = glyphBench
		case scene.Plant:
			g = glyphPlant
		default:
			continue
		}
		box := physics.BoxAt(n.Position, n.Size)
		for r := 0; r < rows; r++ {
			zTop := float64(scene.HalfDepth) - float64(r)*ch
			if zTop-ch >= box.Max.Z || zTop <= box.Min.Z {
				continue
			}
			for c := 0; c < cols; c++ {
				xLeft := -float64(scene.HalfWidth) + float64(c)*cw
				if xLeft < box.Max.X && xLeft+cw > box.Min.X {
					grid[r][c] = g
				}
			}
		}
	}

	for i, loc := range navigation.DefaultRegistry().All() {
		if c, r, ok := cellOf(loc.Position, cols, rows); ok {
			grid[r][c] = rune('1' + i)
		}
	}
	for _, n := range s.Paintings() {
		if c, r, ok := cellOf(n.Position, cols, rows); ok {
			grid[r][c] = paintingGlyph(n.Panel.Kind)
		}
	}
	if n, ok := s.Find(panel.Ref{Kind: panel.Intro}); ok {
		if c, r, ok := cellOf(n.Position, cols, rows); ok {
			grid[r][c] = paintingGlyph(panel.Intro)
		}
	}
	if c, r, ok := cellOf(cam.Position, cols, rows); ok {
		grid[r][c] = heading(cam.Yaw)
	}
	return grid
}

func paintingGlyph(k panel.Kind) rune {
	switch k {
	case panel.Intro:
		return 'I'
	case panel.Skill:
		return 'S'
	case panel.Work:
		return 'W'
	default:
		return 'L'
	}
}

// cellOf maps a world position to its map cell.
func cellOf(p physics.Vec3, cols, rows int) (int, int, bool) {
	cw := 2 * float64(scene.HalfWidth) / float64(cols)
	ch := 2 * float64(scene.HalfDepth) / float64(rows)
	c := int(math.Floor((p.X + scene.HalfWidth) / cw))
	r := int(math.Floor((scene.HalfDepth - p.Z) / ch))
	if c == cols {
		c--
	}
	if r == rows {
		r--
	}
	if c < 0 || c >= cols || r < 0 || r >= rows {
		return 0, 0, false
	}
	return c, r, true
}

var arrows = []rune("↑↗→↘↓↙←↖")

// heading returns the arrow for yaw. Yaw 0 looks down -Z (drawn pointing
// down) and growing yaw turns the arrow clockwise on the map.
func heading(yaw float64) rune {
	// clockwise bearing from north
	b := math.Mod(yaw+math.Pi, 2*math.Pi)
	if b < 0 {
		b += 2 * math.Pi
	}
	i := int(math.Round(b/(math.Pi/4))) % len(arrows)
	return arrows[i]
}
