// Package core provides the fundamental simulation types shared by every
// other package: strongly typed ids, the tick clock, discrete rectangles,
// subscriptions and the inspector's character canvas. It has no external
// dependencies so the deterministic core stays easy to test.
package core

import "fmt"

// DiscreteRect is an axis-aligned rectangle of grid cells, used for unit
// footprints and feature blocking.
type DiscreteRect struct {
	X, Y int // Top-left cell
	W, H int // Size in cells
}

// NewRect creates a new rectangle with the given position and dimensions.
func NewRect(x, y, w, h int) DiscreteRect {
	return DiscreteRect{X: x, Y: y, W: w, H: h}
}

// Right returns the x-coordinate one past the last column.
func (r DiscreteRect) Right() int {
	return r.X + r.W
}

// Bottom returns the y-coordinate one past the last row.
func (r DiscreteRect) Bottom() int {
	return r.Y + r.H
}

// Empty reports whether the rectangle covers no cells.
func (r DiscreteRect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

// Intersects returns true if this rectangle shares at least one cell with
// another.
func (r DiscreteRect) Intersects(other DiscreteRect) bool {
	if r.X >= other.Right() || other.X >= r.Right() {
		return false
	}
	if r.Y >= other.Bottom() || other.Y >= r.Bottom() {
		return false
	}
	return true
}

// Contains returns true if the cell (x, y) is inside this rectangle.
func (r DiscreteRect) Contains(x, y int) bool {
	return x >= r.X && x < r.Right() && y >= r.Y && y < r.Bottom()
}

// Within reports whether r lies entirely inside a w×h area anchored at 0,0.
func (r DiscreteRect) Within(w, h int) bool {
	return r.X >= 0 && r.Y >= 0 && r.Right() <= w && r.Bottom() <= h
}

// Expand grows the rectangle by n cells on every side.
func (r DiscreteRect) Expand(n int) DiscreteRect {
	return DiscreteRect{X: r.X - n, Y: r.Y - n, W: r.W + 2*n, H: r.H + 2*n}
}

// Cells calls fn for every cell in row-major order, stopping early when fn
// returns false.
func (r DiscreteRect) Cells(fn func(x, y int) bool) {
	for y := r.Y; y < r.Bottom(); y++ {
		for x := r.X; x < r.Right(); x++ {
			if !fn(x, y) {
				return
			}
		}
	}
}

func (r DiscreteRect) String() string {
	return fmt.Sprintf("[%d,%d %dx%d]", r.X, r.Y, r.W, r.H)
}

// Clamp restricts a value to be within [min, max].
func Clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

// Abs returns the absolute value of an integer.
func Abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
