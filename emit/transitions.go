package emit

import (
	"github.com/wippyai/ilgen/errors"
	"github.com/wippyai/ilgen/opcode"
	"github.com/wippyai/ilgen/types"
	"github.com/wippyai/ilgen/verify"
)

var (
	i32  = types.Int32
	i64  = types.Int64
	f64  = types.Float64
	nint = types.NativeInt
	obj  = types.Object
	wild = types.Wildcard
)

func in(inputs ...*types.Type) verify.Transition { return verify.In(inputs...) }

var (
	arith = []verify.Transition{
		in(i32, i32).Out(i32),
		in(i64, i64).Out(i64),
		in(f64, f64).Out(f64),
		in(nint, nint).Out(nint),
	}
	bitwise = []verify.Transition{
		in(i32, i32).Out(i32),
		in(i64, i64).Out(i64),
		in(nint, nint).Out(nint),
	}
	shift = []verify.Transition{
		in(i32, i32).Out(i32),
		in(i32, i64).Out(i64),
		in(i32, nint).Out(nint),
	}
	compare = []verify.Transition{
		in(i32, i32),
		in(i64, i64),
		in(f64, f64),
		in(nint, nint),
	}
	truthy = []verify.Transition{
		in(i32),
		in(i64),
		in(nint),
		in(obj),
	}
	numeric = []verify.Transition{in(i32), in(i64), in(f64), in(nint)}
	drain   = []verify.Transition{in(types.Drain)}
	none    = []verify.Transition{in()}
)

func outputs(alts []verify.Transition, out *types.Type) []verify.Transition {
	res := make([]verify.Transition, len(alts))
	for i, t := range alts {
		res[i] = t.Out(out)
	}
	return res
}

func withEquality(alts []verify.Transition) []verify.Transition {
	return append(append([]verify.Transition(nil), alts...), in(obj, obj))
}

// fixed holds opcodes whose transitions do not depend on operands.
var fixed = map[opcode.Opcode][]verify.Transition{
	opcode.Nop:        none,
	opcode.Tail:       none,
	opcode.Ldnull:     {in().Out(types.Null)},
	opcode.LdcI4:      {in().Out(i32)},
	opcode.LdcI8:      {in().Out(i64)},
	opcode.LdcR4:      {in().Out(types.Float32)},
	opcode.LdcR8:      {in().Out(f64)},
	opcode.Ldstr:      {in().Out(types.String)},
	opcode.Pop:        {in(wild)},
	opcode.Add:        arith,
	opcode.Sub:        arith,
	opcode.Mul:        arith,
	opcode.Div:        arith,
	opcode.Rem:        arith,
	opcode.And:        bitwise,
	opcode.Or:         bitwise,
	opcode.Xor:        bitwise,
	opcode.Shl:        shift,
	opcode.Shr:        shift,
	opcode.Neg:        {in(i32).Out(i32), in(i64).Out(i64), in(f64).Out(f64), in(nint).Out(nint)},
	opcode.Not:        {in(i32).Out(i32), in(i64).Out(i64), in(nint).Out(nint)},
	opcode.Ceq:        outputs(withEquality(compare), types.Bool),
	opcode.Cgt:        outputs(compare, types.Bool),
	opcode.Clt:        outputs(compare, types.Bool),
	opcode.ConvI4:     outputs(numeric, i32),
	opcode.ConvI8:     outputs(numeric, i64),
	opcode.ConvR4:     outputs(numeric, types.Float32),
	opcode.ConvR8:     outputs(numeric, f64),
	opcode.ConvI:      outputs(numeric, nint),
	opcode.Br:         none,
	opcode.Brfalse:    truthy,
	opcode.Brtrue:     truthy,
	opcode.Beq:        withEquality(compare),
	opcode.BneUn:      withEquality(compare),
	opcode.Bge:        compare,
	opcode.Bgt:        compare,
	opcode.Ble:        compare,
	opcode.Blt:        compare,
	opcode.Switch:     {in(i32)},
	opcode.Leave:      drain,
	opcode.Throw:      {in(types.Exception, types.Drain), in(obj, types.Drain)},
	opcode.Rethrow:    drain,
	opcode.Endfinally: drain,
	opcode.Ldlen:      {in(types.ArrayOf(wild)).Out(nint)},
	opcode.LdelemI4:   {in(i32, types.ArrayOf(i32)).Out(i32)},
	opcode.LdelemI8:   {in(i32, types.ArrayOf(i64)).Out(i64)},
	opcode.LdelemR8:   {in(i32, types.ArrayOf(f64)).Out(f64)},
	opcode.StelemI4:   {in(i32, i32, types.ArrayOf(i32))},
	opcode.StelemI8:   {in(i64, i32, types.ArrayOf(i64))},
	opcode.StelemR8:   {in(f64, i32, types.ArrayOf(f64))},
	opcode.LdindI4:    {in(types.ByRefTo(i32)).Out(i32), in(types.PointerTo(i32)).Out(i32)},
	opcode.LdindI8:    {in(types.ByRefTo(i64)).Out(i64), in(types.PointerTo(i64)).Out(i64)},
	opcode.LdindR8:    {in(types.ByRefTo(f64)).Out(f64), in(types.PointerTo(f64)).Out(f64)},
	opcode.StindI4:    {in(i32, types.ByRefTo(i32)), in(i32, types.PointerTo(i32))},
	opcode.StindI8:    {in(i64, types.ByRefTo(i64)), in(i64, types.PointerTo(i64))},
	opcode.StindR8:    {in(f64, types.ByRefTo(f64)), in(f64, types.PointerTo(f64))},
	opcode.Localloc:   {in(i32).Out(nint), in(nint).Out(nint)},
	opcode.Cpblk:      {in(i32, nint, nint)},
	opcode.Initblk:    {in(i32, i32, nint)},
	opcode.Dup: {{
		Inputs: []*types.Type{wild},
		Derive: func(c []*types.Type) []*types.Type { return []*types.Type{c[0], c[0]} },
	}},
}

type transitionFunc func(op *Operation, sig Signature) ([]verify.Transition, error)

// derived holds opcodes whose transitions come from their operands or from
// the routine signature.
var derived = map[opcode.Opcode]transitionFunc{
	opcode.Ret:       retTransitions,
	opcode.Ldarg:     argTransitions,
	opcode.Ldarga:    argTransitions,
	opcode.Starg:     argTransitions,
	opcode.Ldloc:     localTransitions,
	opcode.Ldloca:    localTransitions,
	opcode.Stloc:     localTransitions,
	opcode.Call:      callTransitions,
	opcode.Callvirt:  callTransitions,
	opcode.Newobj:    callTransitions,
	opcode.Ldfld:     fieldTransitions,
	opcode.Ldflda:    fieldTransitions,
	opcode.Stfld:     fieldTransitions,
	opcode.Ldsfld:    fieldTransitions,
	opcode.Stsfld:    fieldTransitions,
	opcode.Castclass: typeTransitions,
	opcode.Isinst:    typeTransitions,
	opcode.Box:       typeTransitions,
	opcode.UnboxAny:  typeTransitions,
	opcode.Newarr:    typeTransitions,
	opcode.Ldelema:   typeTransitions,
	opcode.Ldelem:    typeTransitions,
	opcode.Stelem:    typeTransitions,
	opcode.Initobj:   typeTransitions,
	opcode.LdelemRef: polymorphicTransitions,
	opcode.StelemRef: polymorphicTransitions,
	opcode.LdindRef:  polymorphicTransitions,
	opcode.StindRef:  polymorphicTransitions,
}

// Transitions returns the stack transition alternatives of op inside a
// routine with signature sig. Explicit op.Transitions take precedence.
func Transitions(op *Operation, sig Signature) ([]verify.Transition, error) {
	if len(op.Transitions) > 0 {
		return op.Transitions, nil
	}
	if ts, ok := fixed[op.Opcode]; ok {
		return ts, nil
	}
	if fn, ok := derived[op.Opcode]; ok {
		return fn(op, sig)
	}
	return nil, operandError(op, "no stack transitions defined")
}

func operandError(op *Operation, detail string, args ...any) error {
	return errors.New(errors.PhaseBuild, errors.KindInvalidData).
		Op(op.Opcode.String()).
		Detail(detail, args...).
		Build()
}

func retTransitions(_ *Operation, sig Signature) ([]verify.Transition, error) {
	ret := sig.ReturnType()
	if ret.Kind == types.KindVoid {
		return []verify.Transition{{RequiresEmpty: true}}, nil
	}
	return []verify.Transition{{Inputs: []*types.Type{ret}, RequiresEmpty: true}}, nil
}

func argTransitions(op *Operation, sig Signature) ([]verify.Transition, error) {
	if op.Arg < 0 || op.Arg >= len(sig.Params) {
		return nil, operandError(op, "argument %d out of range (%d parameters)", op.Arg, len(sig.Params))
	}
	return slotTransitions(op.Opcode, sig.Params[op.Arg]), nil
}

func localTransitions(op *Operation, _ Signature) ([]verify.Transition, error) {
	if op.Local == nil {
		return nil, operandError(op, "missing local operand")
	}
	return slotTransitions(op.Opcode, op.Local.Type()), nil
}

func slotTransitions(code opcode.Opcode, t *types.Type) []verify.Transition {
	switch code {
	case opcode.Ldarga, opcode.Ldloca:
		return []verify.Transition{in().Out(types.ByRefTo(t))}
	case opcode.Starg, opcode.Stloc:
		return []verify.Transition{in(t)}
	}
	return []verify.Transition{in().Out(t)}
}

func callTransitions(op *Operation, _ Signature) ([]verify.Transition, error) {
	m := op.Method
	if m == nil {
		return nil, operandError(op, "missing method operand")
	}
	switch op.Opcode {
	case opcode.Newobj:
		if !m.Constructor || m.Owner == nil {
			return nil, operandError(op, "%s is not a constructor", m)
		}
		return []verify.Transition{in(m.StackInputs(false)...).Out(m.Owner)}, nil
	case opcode.Callvirt:
		if m.Static {
			return nil, operandError(op, "callvirt on static method %s", m)
		}
	}
	t := in(m.StackInputs(true)...)
	if ret := m.ReturnType(); ret.Kind != types.KindVoid {
		t = t.Out(ret)
	}
	return []verify.Transition{t}, nil
}

func fieldTransitions(op *Operation, _ Signature) ([]verify.Transition, error) {
	f := op.Field
	if f == nil {
		return nil, operandError(op, "missing field operand")
	}
	static := op.Opcode == opcode.Ldsfld || op.Opcode == opcode.Stsfld
	if static != f.Static {
		return nil, operandError(op, "field %s static mismatch", f)
	}
	if static {
		if op.Opcode == opcode.Ldsfld {
			return []verify.Transition{in().Out(f.Type)}, nil
		}
		return []verify.Transition{in(f.Type)}, nil
	}

	owners := []*types.Type{f.Owner}
	switch {
	case f.Owner == nil:
		owners = []*types.Type{obj}
	case f.Owner.Kind == types.KindValue:
		owners = []*types.Type{types.ByRefTo(f.Owner), f.Owner}
	}

	var res []verify.Transition
	for _, owner := range owners {
		switch op.Opcode {
		case opcode.Ldfld:
			res = append(res, in(owner).Out(f.Type))
		case opcode.Ldflda:
			res = append(res, in(owner).Out(types.ByRefTo(f.Type)))
		case opcode.Stfld:
			res = append(res, in(f.Type, owner))
		}
	}
	return res, nil
}

func typeTransitions(op *Operation, _ Signature) ([]verify.Transition, error) {
	t := op.Type
	if t == nil {
		return nil, operandError(op, "missing type operand")
	}
	switch op.Opcode {
	case opcode.Castclass, opcode.Isinst:
		if !t.IsReference() {
			return nil, operandError(op, "%s is not a reference type", t)
		}
		return []verify.Transition{in(obj).Out(t)}, nil
	case opcode.Box:
		return []verify.Transition{in(t).Out(obj)}, nil
	case opcode.UnboxAny:
		return []verify.Transition{in(obj).Out(t)}, nil
	case opcode.Newarr:
		return []verify.Transition{in(i32).Out(types.ArrayOf(t))}, nil
	case opcode.Ldelema:
		return []verify.Transition{in(i32, types.ArrayOf(t)).Out(types.ByRefTo(t))}, nil
	case opcode.Ldelem:
		return []verify.Transition{in(i32, types.ArrayOf(t)).Out(t)}, nil
	case opcode.Stelem:
		return []verify.Transition{in(t, i32, types.ArrayOf(t))}, nil
	case opcode.Initobj:
		return []verify.Transition{in(types.ByRefTo(t))}, nil
	}
	return nil, operandError(op, "no type transition")
}

// polymorphicTransitions covers opcodes whose element or referent type is not
// encoded. With op.Type set the transition is concrete; otherwise the output
// is taken from the consumed array or by-ref, falling back to the wildcard.
func polymorphicTransitions(op *Operation, _ Signature) ([]verify.Transition, error) {
	if t := op.Type; t != nil {
		switch op.Opcode {
		case opcode.LdelemRef:
			return []verify.Transition{in(i32, types.ArrayOf(t)).Out(t)}, nil
		case opcode.StelemRef:
			return []verify.Transition{in(t, i32, types.ArrayOf(t))}, nil
		case opcode.LdindRef:
			return []verify.Transition{in(types.ByRefTo(t)).Out(t)}, nil
		case opcode.StindRef:
			return []verify.Transition{in(t, types.ByRefTo(t))}, nil
		}
	}
	switch op.Opcode {
	case opcode.LdelemRef:
		return []verify.Transition{{
			Inputs: []*types.Type{i32, types.ArrayOf(wild)},
			Derive: func(c []*types.Type) []*types.Type { return []*types.Type{elementOrWildcard(types.ElemOf(c[1]))} },
		}}, nil
	case opcode.StelemRef:
		return []verify.Transition{in(obj, i32, types.ArrayOf(wild))}, nil
	case opcode.LdindRef:
		return []verify.Transition{{
			Inputs: []*types.Type{types.ByRefTo(wild)},
			Derive: func(c []*types.Type) []*types.Type { return []*types.Type{elementOrWildcard(types.Deref(c[0]))} },
		}}, nil
	case opcode.StindRef:
		return []verify.Transition{in(obj, types.ByRefTo(wild))}, nil
	}
	return nil, operandError(op, "not polymorphic")
}

func elementOrWildcard(t *types.Type) *types.Type {
	if t == nil {
		return wild
	}
	return t
}
