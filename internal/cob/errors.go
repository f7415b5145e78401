package cob

import (
	"errors"
	"fmt"

	"github.com/vovakirdan/lockstep/internal/core"
)

// Script errors. Any of them faults the environment.
var (
	ErrInvalidOpcode   = errors.New("invalid opcode")
	ErrInvalidAxis     = errors.New("invalid axis")
	ErrPieceRange      = errors.New("piece index out of range")
	ErrLocalRange      = errors.New("local variable index out of range")
	ErrStaticRange     = errors.New("static variable index out of range")
	ErrStackUnderflow  = errors.New("operand stack underflow")
	ErrUnknownFunction = errors.New("unknown function")
	ErrDivideByZero    = errors.New("division by zero")
	ErrCodeRange       = errors.New("instruction pointer out of range")
	ErrCallDepth       = errors.New("call stack too deep")
	ErrTooManyThreads  = errors.New("too many threads")
)

// faultCodes names each script error in snapshots, so a restored Fault
// still matches its sentinel with errors.Is.
var faultCodes = []struct {
	code string
	err  error
}{
	{"INVALID_OPCODE", ErrInvalidOpcode},
	{"INVALID_AXIS", ErrInvalidAxis},
	{"PIECE_RANGE", ErrPieceRange},
	{"LOCAL_RANGE", ErrLocalRange},
	{"STATIC_RANGE", ErrStaticRange},
	{"STACK_UNDERFLOW", ErrStackUnderflow},
	{"UNKNOWN_FUNCTION", ErrUnknownFunction},
	{"DIVIDE_BY_ZERO", ErrDivideByZero},
	{"CODE_RANGE", ErrCodeRange},
	{"CALL_DEPTH", ErrCallDepth},
	{"TOO_MANY_THREADS", ErrTooManyThreads},
}

// faultCode returns the code of the sentinel err wraps, or "".
func faultCode(err error) string {
	for _, c := range faultCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return ""
}

// ErrFaulted is returned by operations on an environment that has faulted.
var ErrFaulted = errors.New("environment faulted")

// Fault records the script error that stopped an environment.
type Fault struct {
	Tick     core.GameTime `msgpack:"tick"`
	Thread   uint32        `msgpack:"thread"`
	Function string        `msgpack:"function"`
	PC       int           `msgpack:"pc"`
	Message  string        `msgpack:"message"`
	Code     string        `msgpack:"code"` // Empty for errors without a sentinel
	Err      error         `msgpack:"-"`
}

// rebuild restores Err after decoding.
func (f *Fault) rebuild() {
	for _, c := range faultCodes {
		if c.code == f.Code {
			f.Err = fmt.Errorf("%w: %s", c.err, f.Message)
			return
		}
	}
	f.Err = errors.New(f.Message)
}

func (f *Fault) Error() string {
	return fmt.Sprintf("tick %d thread %d (%s) pc %d: %s", f.Tick, f.Thread, f.Function, f.PC, f.Message)
}

func (f *Fault) Unwrap() error {
	return f.Err
}
