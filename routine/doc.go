// Package routine holds compiled routines: the fixed layout a finalized
// emit.Layout is assembled into and the disassembler reads back.
//
// A routine carries its signature, local slots, an instruction stream in the
// CIL-style encoding of package opcode, exception clauses in byte offsets and
// a token table naming the types, methods, fields and strings the stream
// references. Assemble always writes long forms; Instructions accepts short
// and macro forms and normalizes them.
//
// Binary layout (all vector lengths and offsets are unsigned LEB128):
//
//	magic "ILGR", version u32le
//	section*: id byte, size, payload
//	  1 signature: name, flags, receiver, return, params, max stack
//	  2 locals:    (type, name)*
//	  3 code:      raw instruction bytes
//	  4 clauses:   (kind, try start, try end, handler start, handler end, catch type)*
//	  5 tokens:    (kind, owner, name, value, params)*
//
// Sections appear in increasing id order; only the signature is required.
package routine
