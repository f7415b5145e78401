package pathfinding

import (
	"fmt"
	"strings"

	"github.com/vovakirdan/lockstep/internal/grid"
)

// GridSpace is a Space backed by a plain cell grid.
type GridSpace struct {
	Blocked *grid.Grid[bool]
	Slow    *grid.Grid[bool]
}

// NewGridSpace returns an open w×h space.
func NewGridSpace(w, h int) *GridSpace {
	return &GridSpace{Blocked: grid.New[bool](w, h), Slow: grid.New[bool](w, h)}
}

// ParseGridSpace reads a map drawn with '.' for open cells, '#' for walls
// and '~' for rough ground. Rows must have equal length.
func ParseGridSpace(text string) (*GridSpace, error) {
	var rows []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			rows = append(rows, line)
		}
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty map")
	}

	s := NewGridSpace(len(rows[0]), len(rows))
	for y, row := range rows {
		if len(row) != s.Width() {
			return nil, fmt.Errorf("row %d has width %d, expected %d", y, len(row), s.Width())
		}
		for x, ch := range row {
			p := grid.P(x, y)
			switch ch {
			case '.':
			case '#':
				s.Blocked.Set(p, true)
			case '~':
				s.Slow.Set(p, true)
			default:
				return nil, fmt.Errorf("row %d col %d: unknown cell %q", y, x, ch)
			}
		}
	}
	return s, nil
}

func (s *GridSpace) Width() int  { return s.Blocked.W }
func (s *GridSpace) Height() int { return s.Blocked.H }

func (s *GridSpace) Walkable(p grid.Point) bool {
	return s.Blocked.InBounds(p) && !s.Blocked.Get(p)
}

func (s *GridSpace) Rough(p grid.Point) bool {
	return s.Slow.InBounds(p) && s.Slow.Get(p)
}

// Render draws the space with path marked by '*', start 'S' and goal 'G'.
func (s *GridSpace) Render(path []grid.Point) string {
	rows := make([][]byte, s.Height())
	for y := range rows {
		rows[y] = make([]byte, s.Width())
		for x := range rows[y] {
			p := grid.P(x, y)
			switch {
			case s.Blocked.Get(p):
				rows[y][x] = '#'
			case s.Slow.Get(p):
				rows[y][x] = '~'
			default:
				rows[y][x] = '.'
			}
		}
	}
	for i, p := range path {
		if !s.Blocked.InBounds(p) {
			continue
		}
		c := byte('*')
		switch i {
		case 0:
			c = 'S'
		case len(path) - 1:
			c = 'G'
		}
		rows[p.Y][p.X] = c
	}

	var b strings.Builder
	for i, r := range rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.Write(r)
	}
	return b.String()
}
