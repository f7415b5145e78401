// Package mesh tracks the animated pieces of each unit model. Scripts move
// and rotate pieces through commands; the simulation advances the
// animations once per tick and reads piece positions back for queries.
package mesh

import (
	"errors"
	"fmt"

	"github.com/vovakirdan/lockstep/internal/fixed"
)

// ErrUnknownPiece is returned for piece names the model does not define.
var ErrUnknownPiece = errors.New("unknown piece")

// PieceDefinition is one node of a model's piece tree. Origin is relative to
// the parent piece, or to the unit for root pieces.
type PieceDefinition struct {
	Name   string       `yaml:"name"`
	Parent string       `yaml:"parent,omitempty"`
	Origin fixed.Vector `yaml:"-"`
}

// Model is an immutable piece tree shared by all units of a type.
type Model struct {
	Name    string
	Height  fixed.Scalar
	pieces  []PieceDefinition
	parents []int
	index   map[string]int
}

// NewModel validates a piece list. A parent must be listed before its
// children and names must be unique.
func NewModel(name string, height fixed.Scalar, pieces []PieceDefinition) (*Model, error) {
	m := &Model{
		Name:    name,
		Height:  height,
		pieces:  append([]PieceDefinition(nil), pieces...),
		parents: make([]int, len(pieces)),
		index:   make(map[string]int, len(pieces)),
	}
	for i, p := range pieces {
		if p.Name == "" {
			return nil, fmt.Errorf("model %s: piece %d has no name", name, i)
		}
		if _, dup := m.index[p.Name]; dup {
			return nil, fmt.Errorf("model %s: piece %s defined twice", name, p.Name)
		}
		m.parents[i] = -1
		if p.Parent != "" {
			parent, ok := m.index[p.Parent]
			if !ok {
				return nil, fmt.Errorf("model %s: piece %s: parent %s must be defined first", name, p.Name, p.Parent)
			}
			m.parents[i] = parent
		}
		m.index[p.Name] = i
	}
	return m, nil
}

// Pieces returns the piece definitions in declaration order.
func (m *Model) Pieces() []PieceDefinition {
	return m.pieces
}

// PieceIndex resolves a piece name.
func (m *Model) PieceIndex(name string) (int, bool) {
	i, ok := m.index[name]
	return i, ok
}

// Has reports whether every name is a piece of the model.
func (m *Model) Has(names ...string) error {
	for _, n := range names {
		if _, ok := m.index[n]; !ok {
			return fmt.Errorf("%w: %s in model %s", ErrUnknownPiece, n, m.Name)
		}
	}
	return nil
}
