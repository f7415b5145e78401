package movement

import (
	"github.com/vovakirdan/lockstep/internal/core"
	"github.com/vovakirdan/lockstep/internal/grid"
)

// IsPlacementWalkable reports whether a unit of class c may stand with the
// top-left cell of its footprint at p. Every covered cell must satisfy the
// slope and depth limits; a single failing cell rejects the placement.
func IsPlacementWalkable(t *Terrain, c ClassDefinition, p grid.Point) bool {
	if c.Misconfigured() {
		return false
	}
	rect := core.NewRect(p.X, p.Y, c.FootprintX, c.FootprintZ)
	if !rect.Within(t.Width(), t.Height()) {
		return false
	}

	maxSlope := c.MaxSlope
	if t.AreaUnderWater(rect) {
		maxSlope = c.MaxWaterSlope
	}

	ok := true
	rect.Cells(func(x, y int) bool {
		if t.Blocked(grid.P(x, y)) || t.Slope(x, y) > maxSlope {
			ok = false
			return false
		}
		depth := t.WaterDepth(x, y)
		if depth < c.MinWaterDepth || depth > c.MaxWaterDepth {
			ok = false
			return false
		}
		return true
	})
	return ok
}

// ComputeWalkableGrid evaluates every placement of class c. The grid covers
// all cells; placements whose footprint would leave the map are false.
func ComputeWalkableGrid(t *Terrain, c ClassDefinition) *grid.Grid[bool] {
	g := grid.New[bool](t.Width(), t.Height())
	for i := range g.Cells {
		g.Cells[i] = IsPlacementWalkable(t, c, g.PointAt(i))
	}
	return g
}

// FootprintFits reports whether the footprint lies inside the map and on no
// feature. It is the classifier used for units without a movement class.
func FootprintFits(t *Terrain, footprintX, footprintZ int, p grid.Point) bool {
	rect := core.NewRect(p.X, p.Y, footprintX, footprintZ)
	if rect.Empty() || !rect.Within(t.Width(), t.Height()) {
		return false
	}
	ok := true
	rect.Cells(func(x, y int) bool {
		ok = !t.Blocked(grid.P(x, y))
		return ok
	})
	return ok
}
