package core

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"
)

// NewLogger builds the structured logger shared by a process. verbose
// switches the level to Debug.
func NewLogger(w io.Writer, prefix string, verbose bool) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Prefix:          prefix,
	})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

type ownedCloser struct {
	name string
	c    io.Closer
}

// Resources is the scoped handle for process-wide collaborators: the logger
// and whatever the caller hands over with Own (the history store, servers).
// It is created once at startup, passed explicitly, and closed once.
type Resources struct {
	Logger *log.Logger

	mu      sync.Mutex
	closers []ownedCloser
	closed  bool
}

// NewResources returns a handle around logger. A nil logger uses
// log.Default().
func NewResources(logger *log.Logger) *Resources {
	if logger == nil {
		logger = log.Default()
	}
	return &Resources{Logger: logger}
}

// Own registers c to be closed by Close. Resources are closed in reverse
// order of registration. Owning after Close closes c immediately.
func (r *Resources) Own(name string, c io.Closer) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		if err := c.Close(); err != nil {
			return fmt.Errorf("core: closing %s: %w", name, err)
		}
		return nil
	}
	r.closers = append(r.closers, ownedCloser{name: name, c: c})
	r.mu.Unlock()
	return nil
}

// Close releases every owned resource. It is idempotent; only the first
// call does work.
func (r *Resources) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	closers := r.closers
	r.closers = nil
	r.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		oc := closers[i]
		if err := oc.c.Close(); err != nil {
			r.Logger.Error("close failed", "resource", oc.name, "err", err)
			errs = append(errs, fmt.Errorf("core: closing %s: %w", oc.name, err))
		} else {
			r.Logger.Debug("closed", "resource", oc.name)
		}
	}
	return errors.Join(errs...)
}
