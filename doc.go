// Package ilgen builds, verifies, encodes and disassembles routines for a
// typed stack machine.
//
// Every instruction appended to a routine is checked against the operand
// stack as it stands at that point. A rejected instruction leaves the routine
// unchanged, and the error names the instruction, the expected and actual
// stack shapes and the trace of everything appended before it.
//
// # Architecture Overview
//
//	ilgen/
//	├── types/       Type model, assignability and common supertypes
//	├── metadata/    Method and field descriptors, YAML registry
//	├── opcode/      Instruction table: encodings, operand kinds, control flow
//	├── verify/      Stack states, transitions and the verifier
//	├── emit/        Routine builder: labels, locals, exception regions, finalize
//	├── routine/     Compiled routine format: assemble, encode, decode
//	├── disasm/      Disassembler with element type inference and replay
//	├── config/      Environment defaults
//	├── errors/      Structured error types for debugging
//	└── cmd/ildis/   Inspection CLI
//
// # Quick Start
//
// Build and finalize a routine:
//
//	b := emit.NewBuilder("sum", emit.Signature{Return: types.Int32})
//	b.EmitInt(opcode.LdcI4, 1)
//	b.EmitInt(opcode.LdcI4, 2)
//	b.Emit(opcode.Add)
//	b.Emit(opcode.Ret)
//
//	layout, err := b.Finalize(emit.FinalizeOptions{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Encode it and read it back:
//
//	r, err := routine.Assemble(layout)
//	data := r.Encode()
//
//	decoded, err := routine.Decode(data)
//	d, err := disasm.Disassemble(decoded, metadata.NewRegistry())
//	fmt.Println(d)
//
// # Exception Regions
//
// Protected blocks open with BeginExceptionBlock and take catch handlers and
// at most one finally. Bodies and handlers that can fall through are closed
// with a leave to the block end, and a finally that can fall through gets its
// endfinally. Branches may not enter a handler or the middle of a protected
// range, and only leave exits one.
//
// # Error Handling
//
// All errors are *errors.Error values carrying a phase and kind:
//
//	var e *errors.Error
//	if errors.As(err, &e) {
//	    fmt.Println(e.Phase, e.Kind, e.Op, e.Position)
//	    fmt.Print(e.TraceString())
//	}
//
// # Logging
//
// Packages that log expose SetLogger and default to a no-op zap logger.
package ilgen
