package movement

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/vovakirdan/lockstep/internal/core"
)

// ErrUnknownClass is returned when a class name or id is not registered.
var ErrUnknownClass = errors.New("movement: unknown class")

// Database holds the immutable movement classes of one game. Ids are
// assigned sequentially from 1 in registration order, so every peer that
// loads the same data assigns the same ids.
type Database struct {
	mu      sync.RWMutex
	classes map[core.MovementClassID]ClassDefinition
	byName  map[string]core.MovementClassID
	nextID  core.MovementClassID
}

// NewDatabase creates an empty database.
func NewDatabase() *Database {
	return &Database{
		classes: make(map[core.MovementClassID]ClassDefinition),
		byName:  make(map[string]core.MovementClassID),
		nextID:  core.NewMovementClassID(1),
	}
}

// Register adds a class and returns its id. Registering a duplicate name is
// an error.
func (d *Database) Register(def ClassDefinition) (core.MovementClassID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.byName[def.Name]; exists {
		return core.MovementClassID{}, fmt.Errorf("movement: class %q already registered", def.Name)
	}
	id := d.nextID
	d.nextID = d.nextID.Next()
	d.classes[id] = def
	d.byName[def.Name] = id
	return id, nil
}

// Resolve returns the id of a class by name.
func (d *Database) Resolve(name string) (core.MovementClassID, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	id, ok := d.byName[name]
	if !ok {
		return core.MovementClassID{}, fmt.Errorf("%w: %q", ErrUnknownClass, name)
	}
	return id, nil
}

// Get returns a class definition by id.
func (d *Database) Get(id core.MovementClassID) (ClassDefinition, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	def, ok := d.classes[id]
	return def, ok
}

// ClassEntry pairs a class with its id.
type ClassEntry struct {
	ID    core.MovementClassID
	Class ClassDefinition
}

// List returns all classes sorted by id.
func (d *Database) List() []ClassEntry {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := make([]ClassEntry, 0, len(d.classes))
	for id, def := range d.classes {
		result = append(result, ClassEntry{ID: id, Class: def})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID.Less(result[j].ID)
	})
	return result
}

// Validate returns the validation errors of every registered class. The
// classes stay registered; the classifier treats them as impassable.
func (d *Database) Validate() []error {
	var errs []error
	for _, e := range d.List() {
		if err := e.Class.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
