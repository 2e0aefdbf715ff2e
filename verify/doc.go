// Package verify implements the symbolic stack-transition check.
//
// An operation declares one or more Transition alternatives. The Verifier
// holds every stack shape that may be live at the current point (several at a
// merge) and applies the first alternative that every live shape satisfies.
// A failed Apply leaves the state untouched and reports either an underflow
// or a type mismatch naming the operation, the expected shapes and the live
// stacks.
package verify
