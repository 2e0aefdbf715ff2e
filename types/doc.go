// Package types models the values that occupy operand stack slots, locals and
// parameters.
//
// Every value has a Kind. Named kinds (value types, classes, interfaces) are
// identified by name; composite kinds (arrays, pointers, by-refs) by their
// element type. Three sentinels exist for verification:
//
//	Null      the null literal, assignable to every reference
//	Wildcard  any type; used where an operand type is only known after inference
//	Drain     as a transition input, consumes the whole remaining stack
//
// Values are normalized to their stack form before comparison: small integers
// widen to int32, float32 to float64. Reference assignability follows the base
// chain and implemented interfaces, and arrays of references are covariant.
package types
