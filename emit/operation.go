package emit

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wippyai/ilgen/metadata"
	"github.com/wippyai/ilgen/opcode"
	"github.com/wippyai/ilgen/types"
	"github.com/wippyai/ilgen/verify"
)

// Signature is the parameter and return shape of the routine being built.
type Signature struct {
	Return *types.Type // nil means void
	Params []*types.Type
}

// ReturnType returns the declared return type, treating nil as void.
func (s Signature) ReturnType() *types.Type {
	if s.Return == nil {
		return types.Void
	}
	return s.Return
}

func (s Signature) String() string {
	return s.ReturnType().String() + " " + types.FormatList(s.Params)
}

// Operation is one instruction request. Which operand fields apply depends on
// the opcode's operand kind. When Transitions is set it replaces the
// alternatives the opcode table would derive.
type Operation struct {
	Type        *types.Type // type operand; inferred element type for polymorphic opcodes
	Method      *metadata.Method
	Field       *metadata.Field
	Label       *Label
	Local       *Local
	Str         string
	Labels      []*Label
	Transitions []verify.Transition
	Int         int64
	Float       float64
	Arg         int
	Opcode      opcode.Opcode
}

// clone copies op so later changes by the caller do not reach the builder.
func (op Operation) clone() Operation {
	if op.Labels != nil {
		op.Labels = append([]*Label(nil), op.Labels...)
	}
	if op.Transitions != nil {
		op.Transitions = append([]verify.Transition(nil), op.Transitions...)
	}
	return op
}

// Targets returns the branch targets of op.
func (op *Operation) Targets() []*Label {
	if op.Opcode == opcode.Switch {
		return op.Labels
	}
	if op.Label != nil {
		return []*Label{op.Label}
	}
	return nil
}

func (op *Operation) String() string {
	info, ok := opcode.Lookup(op.Opcode)
	if !ok {
		return op.Opcode.String()
	}
	operand := op.operandString(info)
	if operand == "" {
		return info.Name
	}
	return info.Name + " " + operand
}

func (op *Operation) operandString(info *opcode.Info) string {
	switch info.Operand {
	case opcode.OperandInt8, opcode.OperandInt32, opcode.OperandInt64:
		return strconv.FormatInt(op.Int, 10)
	case opcode.OperandFloat32, opcode.OperandFloat64:
		return strconv.FormatFloat(op.Float, 'g', -1, 64)
	case opcode.OperandString:
		return strconv.Quote(op.Str)
	case opcode.OperandType:
		return op.Type.String()
	case opcode.OperandMethod:
		if op.Method == nil {
			return "<nil>"
		}
		return op.Method.Signature()
	case opcode.OperandField:
		if op.Field == nil {
			return "<nil>"
		}
		return op.Field.String()
	case opcode.OperandBranch8, opcode.OperandBranch32:
		return op.Label.String()
	case opcode.OperandSwitch:
		names := make([]string, len(op.Labels))
		for i, l := range op.Labels {
			names[i] = l.String()
		}
		return "(" + strings.Join(names, ", ") + ")"
	case opcode.OperandVar8, opcode.OperandVar16:
		if op.Local != nil {
			return op.Local.String()
		}
		return fmt.Sprintf("arg%d", op.Arg)
	}
	if info.Polymorphic && op.Type != nil {
		return "<" + op.Type.String() + ">"
	}
	return ""
}
