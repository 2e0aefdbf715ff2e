package opcode

// One-byte opcodes.
const (
	Nop        Opcode = 0x00
	Ldarg0     Opcode = 0x02
	Ldarg1     Opcode = 0x03
	Ldarg2     Opcode = 0x04
	Ldarg3     Opcode = 0x05
	Ldloc0     Opcode = 0x06
	Ldloc1     Opcode = 0x07
	Ldloc2     Opcode = 0x08
	Ldloc3     Opcode = 0x09
	Stloc0     Opcode = 0x0A
	Stloc1     Opcode = 0x0B
	Stloc2     Opcode = 0x0C
	Stloc3     Opcode = 0x0D
	LdargS     Opcode = 0x0E
	LdargaS    Opcode = 0x0F
	StargS     Opcode = 0x10
	LdlocS     Opcode = 0x11
	LdlocaS    Opcode = 0x12
	StlocS     Opcode = 0x13
	Ldnull     Opcode = 0x14
	LdcI4M1    Opcode = 0x15
	LdcI40     Opcode = 0x16
	LdcI41     Opcode = 0x17
	LdcI42     Opcode = 0x18
	LdcI43     Opcode = 0x19
	LdcI44     Opcode = 0x1A
	LdcI45     Opcode = 0x1B
	LdcI46     Opcode = 0x1C
	LdcI47     Opcode = 0x1D
	LdcI48     Opcode = 0x1E
	LdcI4S     Opcode = 0x1F
	LdcI4      Opcode = 0x20
	LdcI8      Opcode = 0x21
	LdcR4      Opcode = 0x22
	LdcR8      Opcode = 0x23
	Dup        Opcode = 0x25
	Pop        Opcode = 0x26
	Call       Opcode = 0x28
	Ret        Opcode = 0x2A
	BrS        Opcode = 0x2B
	BrfalseS   Opcode = 0x2C
	BrtrueS    Opcode = 0x2D
	BeqS       Opcode = 0x2E
	BgeS       Opcode = 0x2F
	BgtS       Opcode = 0x30
	BleS       Opcode = 0x31
	BltS       Opcode = 0x32
	BneUnS     Opcode = 0x33
	Br         Opcode = 0x38
	Brfalse    Opcode = 0x39
	Brtrue     Opcode = 0x3A
	Beq        Opcode = 0x3B
	Bge        Opcode = 0x3C
	Bgt        Opcode = 0x3D
	Ble        Opcode = 0x3E
	Blt        Opcode = 0x3F
	BneUn      Opcode = 0x40
	Switch     Opcode = 0x45
	LdindI4    Opcode = 0x4A
	LdindI8    Opcode = 0x4C
	LdindR8    Opcode = 0x4F
	LdindRef   Opcode = 0x50
	StindRef   Opcode = 0x51
	StindI4    Opcode = 0x54
	StindI8    Opcode = 0x55
	StindR8    Opcode = 0x57
	Add        Opcode = 0x58
	Sub        Opcode = 0x59
	Mul        Opcode = 0x5A
	Div        Opcode = 0x5B
	Rem        Opcode = 0x5D
	And        Opcode = 0x5F
	Or         Opcode = 0x60
	Xor        Opcode = 0x61
	Shl        Opcode = 0x62
	Shr        Opcode = 0x63
	Neg        Opcode = 0x65
	Not        Opcode = 0x66
	ConvI4     Opcode = 0x69
	ConvI8     Opcode = 0x6A
	ConvR4     Opcode = 0x6B
	ConvR8     Opcode = 0x6C
	Callvirt   Opcode = 0x6F
	Ldstr      Opcode = 0x72
	Newobj     Opcode = 0x73
	Castclass  Opcode = 0x74
	Isinst     Opcode = 0x75
	Throw      Opcode = 0x7A
	Ldfld      Opcode = 0x7B
	Ldflda     Opcode = 0x7C
	Stfld      Opcode = 0x7D
	Ldsfld     Opcode = 0x7E
	Stsfld     Opcode = 0x80
	Box        Opcode = 0x8C
	Newarr     Opcode = 0x8D
	Ldlen      Opcode = 0x8E
	Ldelema    Opcode = 0x8F
	LdelemI4   Opcode = 0x94
	LdelemI8   Opcode = 0x96
	LdelemR8   Opcode = 0x99
	LdelemRef  Opcode = 0x9A
	StelemI4   Opcode = 0x9E
	StelemI8   Opcode = 0x9F
	StelemR8   Opcode = 0xA1
	StelemRef  Opcode = 0xA2
	Ldelem     Opcode = 0xA3
	Stelem     Opcode = 0xA4
	UnboxAny   Opcode = 0xA5
	ConvI      Opcode = 0xD3
	Endfinally Opcode = 0xDC
	Leave      Opcode = 0xDD
	LeaveS     Opcode = 0xDE
)

// Two-byte opcodes.
const (
	Ceq      Opcode = Prefix | 0x01
	Cgt      Opcode = Prefix | 0x02
	Clt      Opcode = Prefix | 0x04
	Ldarg    Opcode = Prefix | 0x09
	Ldarga   Opcode = Prefix | 0x0A
	Starg    Opcode = Prefix | 0x0B
	Ldloc    Opcode = Prefix | 0x0C
	Ldloca   Opcode = Prefix | 0x0D
	Stloc    Opcode = Prefix | 0x0E
	Localloc Opcode = Prefix | 0x0F
	Tail     Opcode = Prefix | 0x14
	Initobj  Opcode = Prefix | 0x15
	Cpblk    Opcode = Prefix | 0x17
	Initblk  Opcode = Prefix | 0x18
	Rethrow  Opcode = Prefix | 0x1A
)

var infos = []Info{
	op(Nop, "nop", OperandNone, FlowNext),

	macro(Ldarg0, "ldarg.0", Ldarg, 0),
	macro(Ldarg1, "ldarg.1", Ldarg, 1),
	macro(Ldarg2, "ldarg.2", Ldarg, 2),
	macro(Ldarg3, "ldarg.3", Ldarg, 3),
	macro(Ldloc0, "ldloc.0", Ldloc, 0),
	macro(Ldloc1, "ldloc.1", Ldloc, 1),
	macro(Ldloc2, "ldloc.2", Ldloc, 2),
	macro(Ldloc3, "ldloc.3", Ldloc, 3),
	macro(Stloc0, "stloc.0", Stloc, 0),
	macro(Stloc1, "stloc.1", Stloc, 1),
	macro(Stloc2, "stloc.2", Stloc, 2),
	macro(Stloc3, "stloc.3", Stloc, 3),
	short(LdargS, "ldarg.s", Ldarg, OperandVar8),
	short(LdargaS, "ldarga.s", Ldarga, OperandVar8),
	short(StargS, "starg.s", Starg, OperandVar8),
	short(LdlocS, "ldloc.s", Ldloc, OperandVar8),
	short(LdlocaS, "ldloca.s", Ldloca, OperandVar8),
	short(StlocS, "stloc.s", Stloc, OperandVar8),
	op(Ldarg, "ldarg", OperandVar16, FlowNext),
	op(Ldarga, "ldarga", OperandVar16, FlowNext),
	op(Starg, "starg", OperandVar16, FlowNext),
	op(Ldloc, "ldloc", OperandVar16, FlowNext),
	op(Ldloca, "ldloca", OperandVar16, FlowNext),
	op(Stloc, "stloc", OperandVar16, FlowNext),

	op(Ldnull, "ldnull", OperandNone, FlowNext),
	macro(LdcI4M1, "ldc.i4.m1", LdcI4, -1),
	macro(LdcI40, "ldc.i4.0", LdcI4, 0),
	macro(LdcI41, "ldc.i4.1", LdcI4, 1),
	macro(LdcI42, "ldc.i4.2", LdcI4, 2),
	macro(LdcI43, "ldc.i4.3", LdcI4, 3),
	macro(LdcI44, "ldc.i4.4", LdcI4, 4),
	macro(LdcI45, "ldc.i4.5", LdcI4, 5),
	macro(LdcI46, "ldc.i4.6", LdcI4, 6),
	macro(LdcI47, "ldc.i4.7", LdcI4, 7),
	macro(LdcI48, "ldc.i4.8", LdcI4, 8),
	short(LdcI4S, "ldc.i4.s", LdcI4, OperandInt8),
	op(LdcI4, "ldc.i4", OperandInt32, FlowNext),
	op(LdcI8, "ldc.i8", OperandInt64, FlowNext),
	op(LdcR4, "ldc.r4", OperandFloat32, FlowNext),
	op(LdcR8, "ldc.r8", OperandFloat64, FlowNext),
	op(Dup, "dup", OperandNone, FlowNext),
	op(Pop, "pop", OperandNone, FlowNext),

	op(Call, "call", OperandMethod, FlowCall),
	op(Callvirt, "callvirt", OperandMethod, FlowCall),
	op(Newobj, "newobj", OperandMethod, FlowCall),
	op(Ret, "ret", OperandNone, FlowReturn),

	shortBranch(BrS, "br.s", Br),
	shortBranch(BrfalseS, "brfalse.s", Brfalse),
	shortBranch(BrtrueS, "brtrue.s", Brtrue),
	shortBranch(BeqS, "beq.s", Beq),
	shortBranch(BgeS, "bge.s", Bge),
	shortBranch(BgtS, "bgt.s", Bgt),
	shortBranch(BleS, "ble.s", Ble),
	shortBranch(BltS, "blt.s", Blt),
	shortBranch(BneUnS, "bne.un.s", BneUn),
	op(Br, "br", OperandBranch32, FlowBranch),
	op(Brfalse, "brfalse", OperandBranch32, FlowCondBranch),
	op(Brtrue, "brtrue", OperandBranch32, FlowCondBranch),
	op(Beq, "beq", OperandBranch32, FlowCondBranch),
	op(Bge, "bge", OperandBranch32, FlowCondBranch),
	op(Bgt, "bgt", OperandBranch32, FlowCondBranch),
	op(Ble, "ble", OperandBranch32, FlowCondBranch),
	op(Blt, "blt", OperandBranch32, FlowCondBranch),
	op(BneUn, "bne.un", OperandBranch32, FlowCondBranch),
	op(Switch, "switch", OperandSwitch, FlowSwitch),
	shortBranch(LeaveS, "leave.s", Leave),
	op(Leave, "leave", OperandBranch32, FlowLeave),

	op(LdindI4, "ldind.i4", OperandNone, FlowNext),
	op(LdindI8, "ldind.i8", OperandNone, FlowNext),
	op(LdindR8, "ldind.r8", OperandNone, FlowNext),
	poly(LdindRef, "ldind.ref"),
	poly(StindRef, "stind.ref"),
	op(StindI4, "stind.i4", OperandNone, FlowNext),
	op(StindI8, "stind.i8", OperandNone, FlowNext),
	op(StindR8, "stind.r8", OperandNone, FlowNext),

	op(Add, "add", OperandNone, FlowNext),
	op(Sub, "sub", OperandNone, FlowNext),
	op(Mul, "mul", OperandNone, FlowNext),
	op(Div, "div", OperandNone, FlowNext),
	op(Rem, "rem", OperandNone, FlowNext),
	op(And, "and", OperandNone, FlowNext),
	op(Or, "or", OperandNone, FlowNext),
	op(Xor, "xor", OperandNone, FlowNext),
	op(Shl, "shl", OperandNone, FlowNext),
	op(Shr, "shr", OperandNone, FlowNext),
	op(Neg, "neg", OperandNone, FlowNext),
	op(Not, "not", OperandNone, FlowNext),
	op(Ceq, "ceq", OperandNone, FlowNext),
	op(Cgt, "cgt", OperandNone, FlowNext),
	op(Clt, "clt", OperandNone, FlowNext),
	op(ConvI4, "conv.i4", OperandNone, FlowNext),
	op(ConvI8, "conv.i8", OperandNone, FlowNext),
	op(ConvR4, "conv.r4", OperandNone, FlowNext),
	op(ConvR8, "conv.r8", OperandNone, FlowNext),
	op(ConvI, "conv.i", OperandNone, FlowNext),

	op(Ldstr, "ldstr", OperandString, FlowNext),
	op(Castclass, "castclass", OperandType, FlowNext),
	op(Isinst, "isinst", OperandType, FlowNext),
	op(Box, "box", OperandType, FlowNext),
	op(UnboxAny, "unbox.any", OperandType, FlowNext),
	op(Throw, "throw", OperandNone, FlowThrow),
	op(Rethrow, "rethrow", OperandNone, FlowThrow),
	op(Endfinally, "endfinally", OperandNone, FlowEndCleanup),

	op(Ldfld, "ldfld", OperandField, FlowNext),
	op(Ldflda, "ldflda", OperandField, FlowNext),
	op(Stfld, "stfld", OperandField, FlowNext),
	op(Ldsfld, "ldsfld", OperandField, FlowNext),
	op(Stsfld, "stsfld", OperandField, FlowNext),

	op(Newarr, "newarr", OperandType, FlowNext),
	op(Ldlen, "ldlen", OperandNone, FlowNext),
	op(Ldelema, "ldelema", OperandType, FlowNext),
	op(LdelemI4, "ldelem.i4", OperandNone, FlowNext),
	op(LdelemI8, "ldelem.i8", OperandNone, FlowNext),
	op(LdelemR8, "ldelem.r8", OperandNone, FlowNext),
	poly(LdelemRef, "ldelem.ref"),
	op(Ldelem, "ldelem", OperandType, FlowNext),
	op(StelemI4, "stelem.i4", OperandNone, FlowNext),
	op(StelemI8, "stelem.i8", OperandNone, FlowNext),
	op(StelemR8, "stelem.r8", OperandNone, FlowNext),
	poly(StelemRef, "stelem.ref"),
	op(Stelem, "stelem", OperandType, FlowNext),
	op(Initobj, "initobj", OperandType, FlowNext),

	{Code: Tail, Canonical: Tail, Name: "tail.", Flow: FlowMeta, Prefix: true},
	unverifiable(Localloc, "localloc"),
	unverifiable(Cpblk, "cpblk"),
	unverifiable(Initblk, "initblk"),
}

var (
	table  = make(map[Opcode]*Info, len(infos))
	byName = make(map[string]*Info, len(infos))
)

func init() {
	for i := range infos {
		info := &infos[i]
		table[info.Code] = info
		byName[info.Name] = info
	}
}

func op(code Opcode, name string, operand OperandKind, flow Flow) Info {
	return Info{Code: code, Canonical: code, Name: name, Operand: operand, Flow: flow}
}

func macro(code Opcode, name string, canonical Opcode, implicit int64) Info {
	return Info{Code: code, Canonical: canonical, Name: name, Implicit: implicit, HasImplicit: true}
}

func short(code Opcode, name string, canonical Opcode, operand OperandKind) Info {
	return Info{Code: code, Canonical: canonical, Name: name, Operand: operand}
}

func shortBranch(code Opcode, name string, canonical Opcode) Info {
	flow := FlowCondBranch
	switch canonical {
	case Br:
		flow = FlowBranch
	case Leave:
		flow = FlowLeave
	}
	return Info{Code: code, Canonical: canonical, Name: name, Operand: OperandBranch8, Flow: flow}
}

func poly(code Opcode, name string) Info {
	return Info{Code: code, Canonical: code, Name: name, Polymorphic: true}
}

func unverifiable(code Opcode, name string) Info {
	return Info{Code: code, Canonical: code, Name: name, Unverifiable: true}
}
