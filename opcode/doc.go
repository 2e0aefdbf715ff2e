// Package opcode is the declarative instruction table.
//
// Each entry names an opcode, its inline operand, how it transfers control,
// and its long canonical form. Short branches, short variable forms and the
// macro constants (ldarg.0, ldc.i4.m1, ...) all normalize to a canonical
// opcode plus an operand, which is the only form the builder accepts.
package opcode
