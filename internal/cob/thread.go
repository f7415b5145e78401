package cob

import (
	"fmt"

	"github.com/vovakirdan/lockstep/internal/core"
)

// ThreadState is the scheduling state of a thread.
type ThreadState uint8

const (
	Ready ThreadState = iota
	Sleeping
	WaitingOnSignal
	WaitingOnPiece
	Terminated
)

func (s ThreadState) String() string {
	switch s {
	case Ready:
		return "ready"
	case Sleeping:
		return "sleeping"
	case WaitingOnSignal:
		return "waiting-signal"
	case WaitingOnPiece:
		return "waiting-piece"
	case Terminated:
		return "terminated"
	}
	return "unknown"
}

// WaitKind says which piece animation a thread is waiting on.
type WaitKind uint8

const (
	WaitMove WaitKind = iota
	WaitTurn
)

// Status is the resumable state of a thread. Only the fields relevant to
// State are meaningful.
type Status struct {
	State ThreadState   `msgpack:"state"`
	Wake  core.GameTime `msgpack:"wake,omitempty"`
	Mask  uint32        `msgpack:"mask,omitempty"`
	Piece int           `msgpack:"piece,omitempty"`
	Axis  Axis          `msgpack:"axis,omitempty"`
	Wait  WaitKind      `msgpack:"wait,omitempty"`
}

func (s Status) String() string {
	switch s.State {
	case Sleeping:
		return fmt.Sprintf("sleeping until %s", s.Wake)
	case WaitingOnSignal:
		return fmt.Sprintf("waiting for signal %#x", s.Mask)
	case WaitingOnPiece:
		what := "move"
		if s.Wait == WaitTurn {
			what = "turn"
		}
		return fmt.Sprintf("waiting for %s of piece %d on %s", what, s.Piece, s.Axis)
	}
	return s.State.String()
}

// Frame is one activation of a function. Args counts the leading locals
// that were passed as parameters and not yet claimed by CREATE_LOCAL_VAR.
type Frame struct {
	PC     int     `msgpack:"pc"`
	Locals []int32 `msgpack:"locals"`
	Args   int     `msgpack:"args"`
}

// Thread is a cooperative script thread.
type Thread struct {
	ID          uint32  `msgpack:"id"`
	Function    string  `msgpack:"function"`
	Frames      []Frame `msgpack:"frames"`
	Stack       []int32 `msgpack:"stack"`
	SignalMask  uint32  `msgpack:"signal_mask"`
	ReturnValue int32   `msgpack:"return_value"`
	Status      Status  `msgpack:"status"`
}

// PC returns the program counter of the innermost frame, or -1 once the
// thread has returned from its entry function.
func (t *Thread) PC() int {
	if len(t.Frames) == 0 {
		return -1
	}
	return t.Frames[len(t.Frames)-1].PC
}

func (t *Thread) top() *Frame {
	return &t.Frames[len(t.Frames)-1]
}

func (t *Thread) push(v int32) {
	t.Stack = append(t.Stack, v)
}

func (t *Thread) pop() (int32, error) {
	n := len(t.Stack)
	if n == 0 {
		return 0, ErrStackUnderflow
	}
	v := t.Stack[n-1]
	t.Stack = t.Stack[:n-1]
	return v, nil
}

// popN pops n values; the first value popped is at index 0.
func (t *Thread) popN(n int) ([]int32, error) {
	if n > len(t.Stack) {
		return nil, ErrStackUnderflow
	}
	out := make([]int32, n)
	for i := range out {
		out[i], _ = t.pop()
	}
	return out, nil
}

// ThreadView is a read-only summary for inspectors.
type ThreadView struct {
	ID       uint32
	Function string
	PC       int
	Depth    int
	Stack    int
	Mask     uint32
	Status   Status
}

func (t *Thread) view() ThreadView {
	return ThreadView{
		ID:       t.ID,
		Function: t.Function,
		PC:       t.PC(),
		Depth:    len(t.Frames),
		Stack:    len(t.Stack),
		Mask:     t.SignalMask,
		Status:   t.Status,
	}
}
