package pathfinding

import (
	"context"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/lockstep/internal/core"
)

// TaskID identifies a path request. IDs increase in submission order.
type TaskID uint64

// Task is a pending request.
type Task struct {
	ID      TaskID
	Unit    core.UnitID
	Space   Space
	Request Request
}

// Completed is a finished request ready to be applied to the simulation.
type Completed struct {
	Task   TaskID
	Unit   core.UnitID
	Result Result
}

// Service queues path requests and runs them on a bounded worker pool. A
// unit has at most one pending request; a new request replaces the old one.
// Results are returned in unit order regardless of which worker finished
// first.
type Service struct {
	mu       sync.Mutex
	nextID   TaskID
	pending  map[core.UnitID]Task
	inflight map[core.UnitID]TaskID

	workers    int
	maxPerTick int
	logger     *log.Logger
}

// NewService creates a Service. Non-positive arguments fall back to the
// defaults in core.DefaultConfig.
func NewService(workers, maxPerTick int, logger *log.Logger) *Service {
	d := core.DefaultConfig()
	if workers <= 0 {
		workers = d.PathWorkers
	}
	if maxPerTick <= 0 {
		maxPerTick = d.MaxPathsPerTick
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		pending:    make(map[core.UnitID]Task),
		inflight:   make(map[core.UnitID]TaskID),
		workers:    workers,
		maxPerTick: maxPerTick,
		logger:     logger.WithPrefix("path"),
	}
}

// Request queues a search for unit and returns its task id.
func (s *Service) Request(unit core.UnitID, space Space, req Request) TaskID {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	if old, ok := s.pending[unit]; ok {
		s.logger.Debug("request replaced", "unit", unit, "old", old.ID, "new", id)
	}
	delete(s.inflight, unit)
	s.pending[unit] = Task{ID: id, Unit: unit, Space: space, Request: req}
	return id
}

// Cancel drops the pending request of unit. It reports whether one existed.
func (s *Service) Cancel(unit core.UnitID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, queued := s.pending[unit]
	_, running := s.inflight[unit]
	delete(s.pending, unit)
	delete(s.inflight, unit)
	return queued || running
}

// Pending returns the number of queued requests.
func (s *Service) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Process runs up to maxPerTick queued requests, oldest first, and returns
// their results ordered by unit id then task id. Requests cancelled or
// replaced while running are discarded.
func (s *Service) Process(ctx context.Context) ([]Completed, error) {
	batch := s.takeBatch()
	if len(batch) == 0 {
		return nil, nil
	}

	results := make([]Result, len(batch))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, task := range batch {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = FindPath(task.Space, task.Request)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.requeue(batch)
		return nil, err
	}

	s.mu.Lock()
	out := make([]Completed, 0, len(batch))
	for i, task := range batch {
		if cur, ok := s.inflight[task.Unit]; !ok || cur != task.ID {
			// Cancelled or superseded while running.
			continue
		}
		delete(s.inflight, task.Unit)
		out = append(out, Completed{Task: task.ID, Unit: task.Unit, Result: results[i]})
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Unit != out[j].Unit {
			return out[i].Unit.Less(out[j].Unit)
		}
		return out[i].Task < out[j].Task
	})

	s.logger.Debug("batch done", "tasks", len(batch), "delivered", len(out), "queued", s.Pending())
	return out, nil
}

// takeBatch moves the oldest queued requests to the in-flight set.
func (s *Service) takeBatch() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := make([]Task, 0, len(s.pending))
	for _, t := range s.pending {
		batch = append(batch, t)
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i].ID < batch[j].ID })
	if len(batch) > s.maxPerTick {
		batch = batch[:s.maxPerTick]
	}
	for _, t := range batch {
		delete(s.pending, t.Unit)
		s.inflight[t.Unit] = t.ID
	}
	return batch
}

// requeue returns an aborted batch to the queue unless the unit has since
// been given a newer request or cancelled.
func (s *Service) requeue(batch []Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range batch {
		if cur, ok := s.inflight[t.Unit]; !ok || cur != t.ID {
			continue
		}
		delete(s.inflight, t.Unit)
		if _, ok := s.pending[t.Unit]; !ok {
			s.pending[t.Unit] = t
		}
	}
}
