package cob

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// AsmError reports a problem at a source line.
type AsmError struct {
	Script string
	Line   int
	Msg    string
}

func (e *AsmError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.Script, e.Line, e.Msg)
}

type fixup struct {
	at   int
	name string
	kind operandKind
	line int
}

// Assemble compiles script source into a Script.
//
// Each line holds one directive or instruction; ';' starts a comment.
// Directives are "piece <names...>", "static <n>" and "func <name>".
// "name:" defines a jump label. Piece operands are written by name, axes
// as x, y or z, jump targets by label and functions by name. Constants may
// be decimal, hexadecimal or a unit value name such as ACTIVATION.
func Assemble(name, source string) (*Script, error) {
	s := &Script{Name: name}
	labels := make(map[string]int)
	var fixups []fixup

	fail := func(line int, format string, args ...any) error {
		return &AsmError{Script: name, Line: line, Msg: fmt.Sprintf(format, args...)}
	}

	sc := bufio.NewScanner(strings.NewReader(source))
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if i := strings.IndexByte(text, ';'); i >= 0 {
			text = text[:i]
		}
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}

		head := fields[0]
		switch {
		case head == "piece":
			s.Pieces = append(s.Pieces, fields[1:]...)
			continue
		case head == "static":
			if len(fields) != 2 {
				return nil, fail(line, "static takes one count")
			}
			n, err := strconv.Atoi(fields[1])
			if err != nil || n < 0 {
				return nil, fail(line, "bad static count %q", fields[1])
			}
			s.StaticCount = n
			continue
		case head == "func":
			if len(fields) != 2 {
				return nil, fail(line, "func takes one name")
			}
			if _, dup := s.FunctionIndex(fields[1]); dup {
				return nil, fail(line, "function %s defined twice", fields[1])
			}
			s.Functions = append(s.Functions, Function{Name: fields[1], Address: len(s.Instructions)})
			continue
		case strings.HasSuffix(head, ":") && len(fields) == 1:
			label := strings.TrimSuffix(head, ":")
			if _, dup := labels[label]; dup {
				return nil, fail(line, "label %s defined twice", label)
			}
			labels[label] = len(s.Instructions)
			continue
		}

		op, ok := mnemonics[head]
		if !ok {
			return nil, fail(line, "unknown instruction %q", head)
		}
		info := opTable[op]
		if len(fields)-1 != len(info.operands) {
			return nil, fail(line, "%s takes %d operands, got %d", head, len(info.operands), len(fields)-1)
		}
		s.Instructions = append(s.Instructions, uint32(op))

		for i, kind := range info.operands {
			arg := fields[i+1]
			switch kind {
			case operandPiece:
				idx, ok := s.PieceIndex(arg)
				if !ok {
					return nil, fail(line, "unknown piece %q", arg)
				}
				s.Instructions = append(s.Instructions, uint32(idx))
			case operandAxis:
				axis, ok := map[string]Axis{"x": AxisX, "y": AxisY, "z": AxisZ}[arg]
				if !ok {
					return nil, fail(line, "bad axis %q", arg)
				}
				s.Instructions = append(s.Instructions, uint32(axis))
			case operandConst:
				v, err := parseConst(arg)
				if err != nil {
					return nil, fail(line, "%v", err)
				}
				s.Instructions = append(s.Instructions, v)
			case operandLocal, operandStatic, operandCount:
				n, err := strconv.ParseUint(arg, 10, 32)
				if err != nil {
					return nil, fail(line, "bad index %q", arg)
				}
				s.Instructions = append(s.Instructions, uint32(n))
			case operandAddress, operandFunction:
				fixups = append(fixups, fixup{at: len(s.Instructions), name: arg, kind: kind, line: line})
				s.Instructions = append(s.Instructions, 0)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	for _, f := range fixups {
		if f.kind == operandFunction {
			idx, ok := s.FunctionIndex(f.name)
			if !ok {
				return nil, fail(f.line, "unknown function %q", f.name)
			}
			s.Instructions[f.at] = uint32(idx)
			continue
		}
		if addr, ok := labels[f.name]; ok {
			s.Instructions[f.at] = uint32(addr)
			continue
		}
		n, err := strconv.ParseUint(f.name, 10, 32)
		if err != nil {
			return nil, fail(f.line, "unknown label %q", f.name)
		}
		s.Instructions[f.at] = uint32(n)
	}

	return s, nil
}

// MustAssemble is Assemble for sources known to be valid, such as test
// fixtures and embedded scenarios.
func MustAssemble(name, source string) *Script {
	s, err := Assemble(name, source)
	if err != nil {
		panic(err)
	}
	return s
}

func parseConst(arg string) (uint32, error) {
	if id, ok := LookupValue(arg); ok {
		return uint32(id), nil
	}
	if v, err := strconv.ParseInt(arg, 0, 32); err == nil {
		return uint32(int32(v)), nil
	}
	if v, err := strconv.ParseUint(arg, 0, 32); err == nil {
		return uint32(v), nil
	}
	return 0, fmt.Errorf("bad constant %q", arg)
}
