// Package disasm decodes compiled routines back into builder steps.
//
// Disassemble makes a single linear pass over the routine code. Every
// distinct branch target offset becomes one Label, and exception clauses
// sharing a protected range are regrouped into one block whose region
// transitions are interleaved with the instructions. At any offset, regions
// close innermost first, then the label is marked, then regions open
// outermost first.
//
// Polymorphic instructions (ldelem.ref, stelem.ref, ldind.ref and stind.ref)
// do not encode their element type. It is inferred by repeatedly replaying
// the routine into a scratch builder and folding the array or by-ref types
// the instruction consumed in every live state. Inference stops with an
// inference error when a pass makes no progress.
//
// Replaying a disassembly into a fresh builder reproduces the routine:
//
//	d, err := disasm.Disassemble(r, registry)
//	if err != nil {
//		return err
//	}
//	b, err := d.Build()
//	if err != nil {
//		return err
//	}
//	layout, err := b.Finalize(emit.FinalizeOptions{})
//
// An instance routine that reads argument 0 depends on its receiver type and
// replays only after WithReceiver supplies it.
package disasm
