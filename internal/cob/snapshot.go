package cob

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/vovakirdan/lockstep/internal/core"
)

// snapshotVersion is bumped whenever the encoded layout changes.
const snapshotVersion = 2

type envSnapshot struct {
	Version    int       `msgpack:"v"`
	Script     string    `msgpack:"script"`
	Unit       uint32    `msgpack:"unit"`
	Statics    []int32   `msgpack:"statics"`
	Threads    []*Thread `msgpack:"threads"`
	NextThread uint32    `msgpack:"next_thread"`
	Signals    []uint32  `msgpack:"signals"`
	RNG        uint32    `msgpack:"rng"`
	Fault      *Fault    `msgpack:"fault"`
}

// Snapshot encodes the complete explicit state of the environment. Two
// environments that went through the same inputs encode to identical bytes.
// Undrained effects are not included.
func (e *Environment) Snapshot() ([]byte, error) {
	threads := make([]*Thread, len(e.threads))
	for i, t := range e.threads {
		c := *t
		c.Stack = compact(t.Stack)
		c.Frames = compact(t.Frames)
		for j := range c.Frames {
			c.Frames[j].Locals = compact(c.Frames[j].Locals)
		}
		threads[i] = &c
	}
	s := envSnapshot{
		Version:    snapshotVersion,
		Script:     e.script.Name,
		Unit:       e.unit.Value(),
		Statics:    compact(e.statics),
		Threads:    compact(threads),
		NextThread: e.nextThread,
		Signals:    compact(e.signals),
		RNG:        e.rng,
		Fault:      e.fault,
	}
	data, err := msgpack.Marshal(&s)
	if err != nil {
		return nil, fmt.Errorf("encode cob snapshot: %w", err)
	}
	return data, nil
}

// Restore rebuilds an environment from a snapshot of an environment that
// ran script.
func Restore(script *Script, data []byte, cfg Config) (*Environment, error) {
	var s envSnapshot
	if err := msgpack.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode cob snapshot: %w", err)
	}
	if s.Version != snapshotVersion {
		return nil, fmt.Errorf("cob snapshot version %d, expected %d", s.Version, snapshotVersion)
	}
	if s.Script != script.Name {
		return nil, fmt.Errorf("cob snapshot is for script %q, not %q", s.Script, script.Name)
	}
	if len(s.Statics) != script.StaticCount {
		return nil, fmt.Errorf("cob snapshot has %d statics, script declares %d", len(s.Statics), script.StaticCount)
	}

	if s.Fault != nil {
		s.Fault.rebuild()
	}
	if s.Statics == nil {
		s.Statics = make([]int32, script.StaticCount)
	}
	e := &Environment{
		script:     script,
		unit:       core.NewUnitID(s.Unit),
		statics:    s.Statics,
		threads:    s.Threads,
		nextThread: s.NextThread,
		signals:    s.Signals,
		rng:        s.RNG,
		fault:      s.Fault,
	}
	e.configure(cfg)
	return e, nil
}

// compact maps empty slices to nil so that encoding does not depend on how
// a slice became empty.
func compact[T any](s []T) []T {
	if len(s) == 0 {
		return nil
	}
	return s
}
