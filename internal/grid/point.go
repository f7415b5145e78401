// Package grid provides integer grid points, the eight compass directions,
// a flat row-major grid container and the octile distance metric used by
// the pathfinder.
package grid

import (
	"fmt"
	"strconv"
	"strings"
)

// Point is a cell coordinate. X grows east, Y grows south.
type Point struct {
	X int
	Y int
}

// P is a convenience constructor for Point.
func P(x, y int) Point {
	return Point{X: x, Y: y}
}

// ParsePoint parses "x,y". Surrounding parentheses are accepted so that
// String round-trips.
func ParsePoint(s string) (Point, error) {
	raw := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(s), "("), ")")
	xs, ys, ok := strings.Cut(raw, ",")
	if !ok {
		return Point{}, fmt.Errorf("grid: point %q is not x,y", s)
	}
	x, err := strconv.Atoi(strings.TrimSpace(xs))
	if err != nil {
		return Point{}, fmt.Errorf("grid: point %q: %w", s, err)
	}
	y, err := strconv.Atoi(strings.TrimSpace(ys))
	if err != nil {
		return Point{}, fmt.Errorf("grid: point %q: %w", s, err)
	}
	return Point{X: x, Y: y}, nil
}

// String returns a string representation of the point.
func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Add returns the sum of two points.
func (p Point) Add(o Point) Point {
	return Point{X: p.X + o.X, Y: p.Y + o.Y}
}

// Sub returns p - o.
func (p Point) Sub(o Point) Point {
	return Point{X: p.X - o.X, Y: p.Y - o.Y}
}

// Step returns the neighbouring point in direction d.
func (p Point) Step(d Direction) Point {
	return p.Add(d.Vector())
}
