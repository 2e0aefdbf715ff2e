// Package emit builds verified routines.
//
// A Builder accepts Operations one at a time. Each append is checked against
// the live symbolic stack states (package verify) and against the open
// exception regions; labels, locals and region handles belong to the builder
// that created them. Finalize proves that every label is marked, every region
// closed, every branch legal with respect to region boundaries, and that every
// instruction can reach a return or throw. It then returns a Layout with the
// instruction list, labels, regions and the max-stack figure.
//
// Basic usage:
//
//	b := emit.NewBuilder("sum", emit.Signature{Return: types.Int32})
//	_ = b.EmitInt(opcode.LdcI4, 1)
//	_ = b.EmitInt(opcode.LdcI4, 2)
//	_ = b.Emit(opcode.Add)
//	_ = b.Emit(opcode.Ret)
//	layout, err := b.Finalize(emit.FinalizeOptions{})
//
// Exception regions:
//
//	eb, _ := b.BeginExceptionBlock()
//	// body; falls through with an automatic leave
//	cb, _ := b.BeginCatchBlock(eb, types.Exception)
//	_ = b.Emit(opcode.Pop)
//	_ = b.EndCatchBlock(cb)
//	_ = b.EndExceptionBlock(eb)
//
// The opcode table maps every canonical opcode to its stack transition
// alternatives; see Transitions.
package emit
