package grid

// Grid is a rectangular array of values stored in row-major order:
// index = y*W + x.
type Grid[T any] struct {
	W     int
	H     int
	Cells []T
}

// New creates a grid filled with the zero value of T.
func New[T any](w, h int) *Grid[T] {
	return &Grid[T]{W: w, H: h, Cells: make([]T, w*h)}
}

// NewFilled creates a grid with every cell set to v.
func NewFilled[T any](w, h int, v T) *Grid[T] {
	g := New[T](w, h)
	for i := range g.Cells {
		g.Cells[i] = v
	}
	return g
}

// Index converts a point to a flat index. The point must be in bounds.
func (g *Grid[T]) Index(p Point) int {
	return p.Y*g.W + p.X
}

// PointAt converts a flat index back to a point.
func (g *Grid[T]) PointAt(i int) Point {
	return Point{X: i % g.W, Y: i / g.W}
}

// InBounds returns true if the point is within the grid boundaries.
func (g *Grid[T]) InBounds(p Point) bool {
	return p.X >= 0 && p.X < g.W && p.Y >= 0 && p.Y < g.H
}

// Get returns the value at p, or the zero value when out of bounds.
func (g *Grid[T]) Get(p Point) T {
	if !g.InBounds(p) {
		var zero T
		return zero
	}
	return g.Cells[g.Index(p)]
}

// Set stores v at p. Out-of-bounds writes are ignored.
func (g *Grid[T]) Set(p Point, v T) {
	if g.InBounds(p) {
		g.Cells[g.Index(p)] = v
	}
}

// Len returns the number of cells.
func (g *Grid[T]) Len() int {
	return len(g.Cells)
}
