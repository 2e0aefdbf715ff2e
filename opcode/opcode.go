package opcode

import "fmt"

// Opcode is an instruction code. One-byte codes occupy the low byte; two-byte
// codes are Prefix|b.
type Opcode uint16

// Prefix marks the first byte of two-byte opcodes.
const Prefix Opcode = 0xFE00

// OperandKind describes the inline operand following an opcode.
type OperandKind uint8

const (
	OperandNone     OperandKind = iota
	OperandInt8                 // ldc.i4.s
	OperandInt32                // ldc.i4
	OperandInt64                // ldc.i8
	OperandFloat32              // ldc.r4
	OperandFloat64              // ldc.r8
	OperandBranch8              // short branch displacement
	OperandBranch32             // branch displacement
	OperandSwitch               // uint32 count then int32 displacements
	OperandVar8                 // short argument or local index
	OperandVar16                // argument or local index
	OperandType                 // type token
	OperandMethod               // method token
	OperandField                // field token
	OperandString               // string token
)

// Size returns the encoded operand width in bytes. Switch operands are
// variable-width; Size returns the width of the count only.
func (k OperandKind) Size() int {
	switch k {
	case OperandNone:
		return 0
	case OperandInt8, OperandBranch8, OperandVar8:
		return 1
	case OperandVar16:
		return 2
	case OperandInt64, OperandFloat64:
		return 8
	}
	return 4
}

// IsToken reports whether the operand is a metadata token.
func (k OperandKind) IsToken() bool {
	return k >= OperandType && k <= OperandString
}

// IsBranch reports whether the operand is a branch displacement.
func (k OperandKind) IsBranch() bool {
	return k == OperandBranch8 || k == OperandBranch32
}

// Flow describes how an instruction transfers control.
type Flow uint8

const (
	FlowNext       Flow = iota // falls through
	FlowBranch                 // unconditional branch
	FlowCondBranch             // branch or fall through
	FlowSwitch                 // jump table or fall through
	FlowReturn                 // ret
	FlowThrow                  // throw, rethrow
	FlowLeave                  // region exit
	FlowEndCleanup             // endfinally
	FlowCall                   // call and fall through
	FlowMeta                   // prefix, no effect on flow
)

// IsTerminator reports whether the flow ends a path through the routine.
func (f Flow) IsTerminator() bool {
	return f == FlowReturn || f == FlowThrow || f == FlowEndCleanup
}

// FallsThrough reports whether control may continue to the next instruction.
func (f Flow) FallsThrough() bool {
	switch f {
	case FlowBranch, FlowReturn, FlowThrow, FlowLeave, FlowEndCleanup:
		return false
	}
	return true
}

// IsBranch reports whether the flow carries explicit targets.
func (f Flow) IsBranch() bool {
	switch f {
	case FlowBranch, FlowCondBranch, FlowSwitch, FlowLeave:
		return true
	}
	return false
}

// Info describes one opcode.
type Info struct {
	Name      string
	Implicit  int64 // operand value of macro forms
	Code      Opcode
	Canonical Opcode // long form; equal to Code for canonical opcodes
	Operand   OperandKind
	Flow      Flow

	HasImplicit  bool
	Polymorphic  bool // element or referent type not encoded
	Unverifiable bool // needs relaxed verification
	Prefix       bool // modifies the following instruction
}

// IsCanonical reports whether the opcode is its own long form.
func (i *Info) IsCanonical() bool {
	return i.Canonical == i.Code
}

// Size returns the encoded width of the opcode alone.
func (op Opcode) Size() int {
	if op&Prefix == Prefix {
		return 2
	}
	return 1
}

func (op Opcode) String() string {
	if info, ok := table[op]; ok {
		return info.Name
	}
	return fmt.Sprintf("op(0x%X)", uint16(op))
}

// Info returns the table entry for op, or nil.
func (op Opcode) Info() *Info {
	return table[op]
}

// Flow returns the control flow of op.
func (op Opcode) Flow() Flow {
	if info, ok := table[op]; ok {
		return info.Flow
	}
	return FlowNext
}

// Lookup returns the table entry for op.
func Lookup(op Opcode) (*Info, bool) {
	info, ok := table[op]
	return info, ok
}

// ByName returns the table entry for a mnemonic.
func ByName(name string) (*Info, bool) {
	info, ok := byName[name]
	return info, ok
}

// Canonical returns the long form of op and the implicit operand value of
// macro forms.
func Canonical(op Opcode) (Opcode, int64, bool) {
	info, ok := table[op]
	if !ok {
		return op, 0, false
	}
	return info.Canonical, info.Implicit, info.HasImplicit
}

// All returns every opcode in table order.
func All() []Opcode {
	out := make([]Opcode, len(infos))
	for i := range infos {
		out[i] = infos[i].Code
	}
	return out
}
