package grid

import (
	"fmt"

	"github.com/vovakirdan/lockstep/internal/fixed"
)

// sqrt2 is the square root of two in 16.16 fixed point.
const sqrt2 fixed.Scalar = 92682

// OctileDistance counts straight and diagonal steps separately so that path
// costs accumulate exactly and are only collapsed to a scalar for ordering.
type OctileDistance struct {
	Straight int
	Diagonal int
}

// OctileDistanceBetween returns the unobstructed octile distance between two
// points: min(dx, dy) diagonal steps plus |dx - dy| straight steps.
func OctileDistanceBetween(a, b Point) OctileDistance {
	dx := abs(a.X - b.X)
	dy := abs(a.Y - b.Y)
	return OctileDistance{Straight: abs(dx - dy), Diagonal: min(dx, dy)}
}

// Add returns the componentwise sum.
func (d OctileDistance) Add(o OctileDistance) OctileDistance {
	return OctileDistance{Straight: d.Straight + o.Straight, Diagonal: d.Diagonal + o.Diagonal}
}

// Cost collapses the distance to straight + diagonal*sqrt(2) in fixed point.
// The result is computed in 64 bits so long paths cannot wrap.
func (d OctileDistance) Cost() int64 {
	return int64(d.Straight)*int64(fixed.One) + int64(d.Diagonal)*int64(sqrt2)
}

// Compare orders distances by Cost, then by total step count.
func (d OctileDistance) Compare(o OctileDistance) int {
	a, b := d.Cost(), o.Cost()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	sa, sb := d.Straight+d.Diagonal, o.Straight+o.Diagonal
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	}
	return 0
}

// Less reports whether d orders before o.
func (d OctileDistance) Less(o OctileDistance) bool {
	return d.Compare(o) < 0
}

// Steps returns the total number of steps.
func (d OctileDistance) Steps() int {
	return d.Straight + d.Diagonal
}

func (d OctileDistance) String() string {
	return fmt.Sprintf("octile(straight=%d, diagonal=%d)", d.Straight, d.Diagonal)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
