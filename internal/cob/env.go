package cob

import (
	"fmt"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/lockstep/internal/core"
)

// DefaultInstructionBudget is the number of instructions a thread may run
// in one tick before it is preempted.
const DefaultInstructionBudget = 10000

const maxCallDepth = 256

// maxThreads caps the threads of one environment, terminated ones included
// until they are reaped.
const maxThreads = 256

// Config holds the construction parameters of an Environment.
type Config struct {
	// Seed is mixed with the unit id to seed the script RNG. Peers of a
	// lockstep session must use the same value.
	Seed uint32

	// InstructionBudget caps instructions per thread per tick.
	// Zero selects DefaultInstructionBudget.
	InstructionBudget int

	// Logger receives fault reports. Nil selects log.Default().
	Logger *log.Logger
}

// Environment runs one unit's script: its static variables, threads and
// pending signals. It is not safe for concurrent use.
type Environment struct {
	script  *Script
	unit    core.UnitID
	statics []int32

	threads    []*Thread
	nextThread uint32
	signals    []uint32
	effects    []Effect
	rng        uint32
	fault      *Fault

	budget int
	logger *log.Logger
}

// NewEnvironment creates an idle environment for unit. No thread runs until
// Start is called.
func NewEnvironment(script *Script, unit core.UnitID, cfg Config) *Environment {
	e := &Environment{
		script:  script,
		unit:    unit,
		statics: make([]int32, script.StaticCount),
		rng:     seedRNG(cfg.Seed, unit),
	}
	e.configure(cfg)
	return e
}

func (e *Environment) configure(cfg Config) {
	e.budget = cfg.InstructionBudget
	if e.budget <= 0 {
		e.budget = DefaultInstructionBudget
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	e.logger = logger.With("unit", e.unit, "script", e.script.Name)
}

// seedRNG mixes seed and unit id into a non-zero xorshift32 state.
func seedRNG(seed uint32, unit core.UnitID) uint32 {
	x := seed ^ unit.Value()*0x9E3779B9
	x ^= x >> 16
	x *= 0x85EBCA6B
	x ^= x >> 13
	x *= 0xC2B2AE35
	x ^= x >> 16
	if x == 0 {
		x = 0x6D2B79F5
	}
	return x
}

func (e *Environment) nextRand() uint32 {
	x := e.rng
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	e.rng = x
	return x
}

// randRange returns a value in [low, high]. An empty range yields low.
func (e *Environment) randRange(low, high int32) int32 {
	if high <= low {
		return low
	}
	span := uint64(int64(high)-int64(low)) + 1
	return int32(int64(low) + int64(uint64(e.nextRand())%span))
}

// Script returns the script the environment runs.
func (e *Environment) Script() *Script { return e.script }

// Unit returns the owning unit.
func (e *Environment) Unit() core.UnitID { return e.unit }

// Fault returns the recorded fault, or nil.
func (e *Environment) Fault() *Fault { return e.fault }

// Faulted reports whether a script error stopped the environment.
func (e *Environment) Faulted() bool { return e.fault != nil }

// Static returns static variable i, or 0 when out of range.
func (e *Environment) Static(i int) int32 {
	if i < 0 || i >= len(e.statics) {
		return 0
	}
	return e.statics[i]
}

// PendingSignals returns the number of signals awaiting delivery.
func (e *Environment) PendingSignals() int { return len(e.signals) }

// Threads summarizes every thread in creation order, including threads that
// terminated during the last tick.
func (e *Environment) Threads() []ThreadView {
	out := make([]ThreadView, len(e.threads))
	for i, t := range e.threads {
		out[i] = t.view()
	}
	return out
}

// Active reports whether any thread has not terminated.
func (e *Environment) Active() bool {
	for _, t := range e.threads {
		if t.Status.State != Terminated {
			return true
		}
	}
	return false
}

// Start creates a thread running the named function. The thread first runs
// on the next Tick.
func (e *Environment) Start(function string, params ...int32) (uint32, error) {
	if e.fault != nil {
		return 0, ErrFaulted
	}
	idx, ok := e.script.FunctionIndex(function)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownFunction, function)
	}
	t, err := e.createThread(idx, slices.Clone(params), 0)
	if err != nil {
		return 0, err
	}
	return t.ID, nil
}

func (e *Environment) createThread(fn int, params []int32, mask uint32) (*Thread, error) {
	if fn < 0 || fn >= len(e.script.Functions) {
		return nil, fmt.Errorf("%w: index %d", ErrUnknownFunction, fn)
	}
	if len(e.threads) >= maxThreads {
		return nil, fmt.Errorf("%w: limit %d", ErrTooManyThreads, maxThreads)
	}
	f := e.script.Functions[fn]
	e.nextThread++
	t := &Thread{
		ID:         e.nextThread,
		Function:   f.Name,
		Frames:     []Frame{{PC: f.Address, Locals: params, Args: len(params)}},
		SignalMask: mask,
	}
	e.threads = append(e.threads, t)
	return t, nil
}

// Signal queues a signal for delivery at the start of the next Tick.
func (e *Environment) Signal(sig uint32) {
	if e.fault != nil {
		return
	}
	e.signals = append(e.signals, sig)
}

// DrainEffects returns and clears the effects produced since the last call.
func (e *Environment) DrainEffects() []Effect {
	out := e.effects
	e.effects = nil
	return out
}

// Tick advances the environment to now: reaps threads that terminated on
// the previous tick, delivers queued signals, wakes threads whose wait
// condition holds, then runs every ready thread in creation order.
//
// Threads that existed when the tick began get the instruction budget each.
// Threads started during the tick run after them and share one more budget
// between them; once it is spent the rest stay Ready for the next tick. A
// tick therefore runs at most budget*(maxThreads+1) instructions.
func (e *Environment) Tick(now core.GameTime, reader UnitReader) {
	if e.fault != nil {
		return
	}

	e.threads = slices.DeleteFunc(e.threads, func(t *Thread) bool {
		return t.Status.State == Terminated
	})

	pending := e.signals
	e.signals = nil
	for _, sig := range pending {
		e.deliver(sig)
	}

	for _, t := range e.threads {
		switch t.Status.State {
		case Sleeping:
			if t.Status.Wake <= now {
				t.Status = Status{State: Ready}
			}
		case WaitingOnPiece:
			if e.pieceSettled(t.Status, reader) {
				t.Status = Status{State: Ready}
			}
		}
	}

	existing := len(e.threads)
	spawned := e.budget
	for i := 0; i < len(e.threads); i++ {
		t := e.threads[i]
		if t.Status.State != Ready {
			continue
		}
		if i < existing {
			e.run(t, now, reader, e.budget)
		} else {
			if spawned <= 0 {
				break
			}
			spawned -= e.run(t, now, reader, spawned)
		}
		if e.fault != nil {
			return
		}
	}
}

// deliver kills threads whose signal mask matches, then wakes the
// survivors waiting on a matching signal.
func (e *Environment) deliver(sig uint32) {
	for _, t := range e.threads {
		if t.Status.State != Terminated && t.SignalMask&sig != 0 {
			t.terminate()
		}
	}
	for _, t := range e.threads {
		if t.Status.State == WaitingOnSignal && t.Status.Mask&sig != 0 {
			t.Status = Status{State: Ready}
		}
	}
}

func (e *Environment) pieceSettled(s Status, reader UnitReader) bool {
	if reader == nil || s.Piece < 0 || s.Piece >= len(e.script.Pieces) {
		return true
	}
	name := e.script.Pieces[s.Piece]
	if s.Wait == WaitTurn {
		return !reader.PieceTurning(e.unit, name, s.Axis)
	}
	return !reader.PieceMoving(e.unit, name, s.Axis)
}

// raise records a fault and stops every thread.
func (e *Environment) raise(t *Thread, now core.GameTime, pc int, err error) {
	e.fault = &Fault{
		Tick:     now,
		Thread:   t.ID,
		Function: t.Function,
		PC:       pc,
		Message:  err.Error(),
		Code:     faultCode(err),
		Err:      err,
	}
	for _, th := range e.threads {
		th.terminate()
	}
	e.signals = nil
	e.logger.Error("script fault", "tick", now, "thread", t.ID, "function", t.Function, "pc", pc, "err", err)
}

func (t *Thread) terminate() {
	t.Status = Status{State: Terminated}
	t.Frames = nil
	t.Stack = nil
}
