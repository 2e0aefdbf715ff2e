// Package errors provides structured error types for the ilgen module.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the offending operation and position, the expected and
// actual stack shapes, the operation trace recorded up to the failure, and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseVerify, errors.KindTypeMismatch).
//		Op("add").
//		Position(3).
//		Expected("[int32, int32]").
//		Actual("[string, int32]").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Structural(pos, "label %q marked twice", name)
//	err := errors.Reachability(pos, "br")
//
// All errors implement the standard error interface and support errors.Is/As.
// The Err* sentinels match on Kind regardless of Phase:
//
//	if errors.Is(err, errors.ErrStructural) { ... }
package errors
