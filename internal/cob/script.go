package cob

import (
	"fmt"
	"strings"
)

// Function is a named entry point into a script.
type Function struct {
	Name    string `msgpack:"name"`
	Address int    `msgpack:"address"`
}

// Script is an immutable compiled unit script. Environments share it.
type Script struct {
	Name         string     `msgpack:"name"`
	Instructions []uint32   `msgpack:"instructions"`
	Functions    []Function `msgpack:"functions"`
	Pieces       []string   `msgpack:"pieces"`
	StaticCount  int        `msgpack:"statics"`
}

// FunctionIndex returns the index of the named function.
func (s *Script) FunctionIndex(name string) (int, bool) {
	for i, f := range s.Functions {
		if f.Name == name {
			return i, true
		}
	}
	return 0, false
}

// PieceIndex returns the index of the named piece.
func (s *Script) PieceIndex(name string) (int, bool) {
	for i, p := range s.Pieces {
		if p == name {
			return i, true
		}
	}
	return 0, false
}

// Disassemble renders a listing of the script, one instruction per line
// prefixed by its address. Jump targets are printed as addresses.
func (s *Script) Disassemble() string {
	var b strings.Builder
	if len(s.Pieces) > 0 {
		fmt.Fprintf(&b, "piece %s\n", strings.Join(s.Pieces, " "))
	}
	if s.StaticCount > 0 {
		fmt.Fprintf(&b, "static %d\n", s.StaticCount)
	}

	entries := make(map[int]string, len(s.Functions))
	for _, f := range s.Functions {
		entries[f.Address] = f.Name
	}

	for pc := 0; pc < len(s.Instructions); {
		if name, ok := entries[pc]; ok {
			fmt.Fprintf(&b, "func %s\n", name)
		}
		op := Opcode(s.Instructions[pc])
		fmt.Fprintf(&b, "%4d  %s", pc, op)
		pc++
		info, ok := opTable[op]
		if !ok {
			b.WriteByte('\n')
			continue
		}
		for _, kind := range info.operands {
			if pc >= len(s.Instructions) {
				b.WriteString(" <truncated>")
				break
			}
			b.WriteByte(' ')
			b.WriteString(s.formatOperand(kind, s.Instructions[pc]))
			pc++
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func (s *Script) formatOperand(kind operandKind, v uint32) string {
	switch kind {
	case operandPiece:
		if int(v) < len(s.Pieces) {
			return s.Pieces[v]
		}
	case operandAxis:
		if a, err := ParseAxis(v); err == nil {
			return a.String()
		}
	case operandFunction:
		if int(v) < len(s.Functions) {
			return s.Functions[v].Name
		}
	case operandConst:
		return fmt.Sprint(int32(v))
	}
	return fmt.Sprint(v)
}
