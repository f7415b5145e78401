// Package cob implements the unit scripting virtual machine: scripts made of
// 32-bit instruction words, one Environment per unit, and cooperative
// threads that advance only when the simulation ticks.
package cob

import "fmt"

// Opcode is an instruction word.
type Opcode uint32

const (
	OpMove      Opcode = 0x10001000
	OpTurn      Opcode = 0x10002000
	OpSpin      Opcode = 0x10003000
	OpStopSpin  Opcode = 0x10004000
	OpShow      Opcode = 0x10005000
	OpHide      Opcode = 0x10006000
	OpCache     Opcode = 0x10007000
	OpDontCache Opcode = 0x10008000
	OpMoveNow   Opcode = 0x1000B000
	OpTurnNow   Opcode = 0x1000C000
	OpShade     Opcode = 0x1000D000
	OpDontShade Opcode = 0x1000E000
	OpEmitSfx   Opcode = 0x1000F000

	OpWaitForTurn   Opcode = 0x10011000
	OpWaitForMove   Opcode = 0x10012000
	OpSleep         Opcode = 0x10013000
	OpWaitForSignal Opcode = 0x10069000

	OpPushConstant   Opcode = 0x10021001
	OpPushLocalVar   Opcode = 0x10021002
	OpPushStatic     Opcode = 0x10021004
	OpCreateLocalVar Opcode = 0x10022000
	OpPopLocalVar    Opcode = 0x10023002
	OpPopStatic      Opcode = 0x10023004
	OpPopStack       Opcode = 0x10024000

	OpAdd        Opcode = 0x10031000
	OpSub        Opcode = 0x10032000
	OpMul        Opcode = 0x10033000
	OpDiv        Opcode = 0x10034000
	OpBitwiseAnd Opcode = 0x10035000
	OpBitwiseOr  Opcode = 0x10036000
	OpBitwiseXor Opcode = 0x10037000
	OpBitwiseNot Opcode = 0x10038000

	OpRand         Opcode = 0x10041000
	OpGetUnitValue Opcode = 0x10042000
	OpGet          Opcode = 0x10043000

	OpSetLess           Opcode = 0x10051000
	OpSetLessOrEqual    Opcode = 0x10052000
	OpSetGreater        Opcode = 0x10053000
	OpSetGreaterOrEqual Opcode = 0x10054000
	OpSetEqual          Opcode = 0x10055000
	OpSetNotEqual       Opcode = 0x10056000
	OpLogicalAnd        Opcode = 0x10057000
	OpLogicalOr         Opcode = 0x10058000
	OpLogicalXor        Opcode = 0x10059000
	OpLogicalNot        Opcode = 0x1005A000

	OpStartScript   Opcode = 0x10061000
	OpCallScript    Opcode = 0x10062000
	OpJump          Opcode = 0x10064000
	OpReturn        Opcode = 0x10065000
	OpJumpNotEqual  Opcode = 0x10066000
	OpSignal        Opcode = 0x10067000
	OpSetSignalMask Opcode = 0x10068000

	OpExplode      Opcode = 0x10071000
	OpSetUnitValue Opcode = 0x10082000
	OpAttachUnit   Opcode = 0x10083000
	OpDropUnit     Opcode = 0x10084000
)

// operandKind describes an inline operand following an opcode.
type operandKind int

const (
	operandPiece operandKind = iota
	operandAxis
	operandConst
	operandLocal
	operandStatic
	operandAddress
	operandFunction
	operandCount
)

type opInfo struct {
	mnemonic string
	operands []operandKind
}

var (
	pieceAxis = []operandKind{operandPiece, operandAxis}
	pieceOnly = []operandKind{operandPiece}
)

var opTable = map[Opcode]opInfo{
	OpMove:      {"move", pieceAxis},
	OpTurn:      {"turn", pieceAxis},
	OpSpin:      {"spin", pieceAxis},
	OpStopSpin:  {"stop-spin", pieceAxis},
	OpShow:      {"show", pieceOnly},
	OpHide:      {"hide", pieceOnly},
	OpCache:     {"cache", pieceOnly},
	OpDontCache: {"dont-cache", pieceOnly},
	OpMoveNow:   {"move-now", pieceAxis},
	OpTurnNow:   {"turn-now", pieceAxis},
	OpShade:     {"shade", pieceOnly},
	OpDontShade: {"dont-shade", pieceOnly},
	OpEmitSfx:   {"emit-sfx", pieceOnly},
	OpExplode:   {"explode", pieceOnly},

	OpWaitForTurn:   {"wait-for-turn", pieceAxis},
	OpWaitForMove:   {"wait-for-move", pieceAxis},
	OpSleep:         {"sleep", nil},
	OpWaitForSignal: {"wait-for-signal", nil},

	OpPushConstant:   {"push", []operandKind{operandConst}},
	OpPushLocalVar:   {"push-local", []operandKind{operandLocal}},
	OpPushStatic:     {"push-static", []operandKind{operandStatic}},
	OpCreateLocalVar: {"local", nil},
	OpPopLocalVar:    {"pop-local", []operandKind{operandLocal}},
	OpPopStatic:      {"pop-static", []operandKind{operandStatic}},
	OpPopStack:       {"pop", nil},

	OpAdd:        {"add", nil},
	OpSub:        {"sub", nil},
	OpMul:        {"mul", nil},
	OpDiv:        {"div", nil},
	OpBitwiseAnd: {"and", nil},
	OpBitwiseOr:  {"or", nil},
	OpBitwiseXor: {"xor", nil},
	OpBitwiseNot: {"not", nil},

	OpRand:         {"rand", nil},
	OpGetUnitValue: {"get-unit-value", nil},
	OpGet:          {"get", nil},
	OpSetUnitValue: {"set-unit-value", nil},

	OpSetLess:           {"lt", nil},
	OpSetLessOrEqual:    {"le", nil},
	OpSetGreater:        {"gt", nil},
	OpSetGreaterOrEqual: {"ge", nil},
	OpSetEqual:          {"eq", nil},
	OpSetNotEqual:       {"ne", nil},
	OpLogicalAnd:        {"land", nil},
	OpLogicalOr:         {"lor", nil},
	OpLogicalXor:        {"lxor", nil},
	OpLogicalNot:        {"lnot", nil},

	OpStartScript:   {"start", []operandKind{operandFunction, operandCount}},
	OpCallScript:    {"call", []operandKind{operandFunction, operandCount}},
	OpJump:          {"jump", []operandKind{operandAddress}},
	OpReturn:        {"return", nil},
	OpJumpNotEqual:  {"jz", []operandKind{operandAddress}},
	OpSignal:        {"signal", nil},
	OpSetSignalMask: {"set-signal-mask", nil},

	OpAttachUnit: {"attach-unit", nil},
	OpDropUnit:   {"drop-unit", nil},
}

var mnemonics = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opTable))
	for op, info := range opTable {
		m[info.mnemonic] = op
	}
	return m
}()

// Valid reports whether op is a known opcode.
func (op Opcode) Valid() bool {
	_, ok := opTable[op]
	return ok
}

// Mnemonic returns the assembler name of op.
func (op Opcode) Mnemonic() string {
	if info, ok := opTable[op]; ok {
		return info.mnemonic
	}
	return ""
}

// Operands returns the number of inline operand words that follow op.
func (op Opcode) Operands() int {
	return len(opTable[op].operands)
}

func (op Opcode) String() string {
	if info, ok := opTable[op]; ok {
		return info.mnemonic
	}
	return fmt.Sprintf("op(%#08x)", uint32(op))
}
