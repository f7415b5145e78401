// Package registry provides the scenario catalog. The built-in scenarios
// are embedded; more can be loaded from a directory or named by path on
// the command line.
package registry

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/vovakirdan/lockstep/internal/config"
)

//go:embed scenarios/*.yaml
var builtin embed.FS

// ErrUnknownScenario is returned when an id is not in the catalog.
var ErrUnknownScenario = errors.New("registry: unknown scenario")

// Info contains metadata about a catalogued scenario.
type Info struct {
	ID          string
	Name        string
	Description string
	Width       int
	Height      int
	Units       int
	Ticks       int
	Source      string // "builtin" or a file path
}

// Catalog holds scenarios by id. Safe for concurrent use.
type Catalog struct {
	mu        sync.RWMutex
	scenarios map[string]*config.Scenario
	sources   map[string]string
}

// NewCatalog returns a catalog holding the built-in scenarios.
func NewCatalog() (*Catalog, error) {
	c := &Catalog{
		scenarios: make(map[string]*config.Scenario),
		sources:   make(map[string]string),
	}
	err := fs.WalkDir(builtin, "scenarios", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := builtin.ReadFile(path)
		if err != nil {
			return err
		}
		sc, err := config.ParseScenario(data)
		if err != nil {
			return fmt.Errorf("builtin %s: %w", path, err)
		}
		return c.add(sc, "builtin")
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// LoadDir adds every scenario file under root. Files that fail to parse are
// skipped; their errors are returned joined after the valid ones are added.
func (c *Catalog) LoadDir(root string) error {
	var problems []error
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isScenarioFile(path) {
			return nil
		}
		sc, err := LoadFile(path)
		if err != nil {
			problems = append(problems, err)
			return nil
		}
		if err := c.add(sc, path); err != nil {
			problems = append(problems, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walking directory %s: %w", root, err)
	}
	return errors.Join(problems...)
}

// LoadFile parses a single scenario file.
func LoadFile(path string) (*config.Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", path, err)
	}
	sc, err := config.ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("parsing file %s: %w", path, err)
	}
	sc.FilePath = path
	return sc, nil
}

func (c *Catalog) add(sc *config.Scenario, source string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.scenarios[sc.ID]; exists {
		return fmt.Errorf("registry: scenario %q already registered from %s", sc.ID, c.sources[sc.ID])
	}
	c.scenarios[sc.ID] = sc
	c.sources[sc.ID] = source
	return nil
}

// List returns information about all scenarios, sorted by ID.
func (c *Catalog) List() []Info {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]Info, 0, len(c.scenarios))
	for id, sc := range c.scenarios {
		result = append(result, Info{
			ID:          id,
			Name:        sc.Name,
			Description: sc.Description,
			Width:       len(sc.Terrain.Rows[0]),
			Height:      len(sc.Terrain.Rows),
			Units:       len(sc.Units),
			Ticks:       sc.Ticks,
			Source:      c.sources[id],
		})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result
}

// Get returns a scenario by ID.
func (c *Catalog) Get(id string) (*config.Scenario, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	sc, ok := c.scenarios[id]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownScenario, id)
	}
	return sc, nil
}

// Resolve accepts either a catalog id or a path to a scenario file.
func (c *Catalog) Resolve(arg string) (*config.Scenario, error) {
	if isScenarioFile(arg) {
		if _, err := os.Stat(arg); err == nil {
			return LoadFile(arg)
		}
	}
	return c.Get(arg)
}

func isScenarioFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
