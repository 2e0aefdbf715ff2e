package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseBuild     Phase = "build"     // operation append
	PhaseVerify    Phase = "verify"    // stack transition checks
	PhaseStructure Phase = "structure" // labels and regions
	PhaseFinalize  Phase = "finalize"  // whole-routine passes
	PhaseDecode    Phase = "decode"    // compiled routine parsing
	PhaseInfer     Phase = "infer"     // polymorphic operand inference
	PhaseReplay    Phase = "replay"    // disassembly replay
	PhaseResolve   Phase = "resolve"   // metadata lookup
	PhaseConfig    Phase = "config"    // environment and descriptor loading
)

// Kind categorizes the error
type Kind string

const (
	KindStackUnderflow Kind = "stack_underflow"
	KindTypeMismatch   Kind = "type_mismatch"
	KindStructural     Kind = "structural"
	KindReachability   Kind = "reachability"
	KindOwnership      Kind = "ownership"
	KindUnverifiable   Kind = "unverifiable"
	KindInference      Kind = "inference"
	KindNotReplayable  Kind = "not_replayable"
	KindInvalidData    Kind = "invalid_data"
	KindNotFound       Kind = "not_found"
	KindClosed         Kind = "closed"
)

// Sentinels for errors.Is. They carry no phase, so they match any phase.
var (
	ErrStackUnderflow = &Error{Kind: KindStackUnderflow}
	ErrTypeMismatch   = &Error{Kind: KindTypeMismatch}
	ErrStructural     = &Error{Kind: KindStructural}
	ErrReachability   = &Error{Kind: KindReachability}
	ErrOwnership      = &Error{Kind: KindOwnership}
	ErrUnverifiable   = &Error{Kind: KindUnverifiable}
	ErrInference      = &Error{Kind: KindInference}
	ErrNotReplayable  = &Error{Kind: KindNotReplayable}
	ErrClosed         = &Error{Kind: KindClosed}
)

// Error is the structured error type used throughout the module
type Error struct {
	Value    any
	Cause    error
	Phase    Phase
	Kind     Kind
	Op       string
	Detail   string
	Expected []string
	Actual   []string
	Trace    []string
	Position int
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Op != "" {
		b.WriteString(" at ")
		b.WriteString(e.Op)
		if e.Position >= 0 {
			fmt.Fprintf(&b, " (#%d)", e.Position)
		}
	} else if e.Position >= 0 {
		fmt.Fprintf(&b, " at #%d", e.Position)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if len(e.Expected) > 0 {
		b.WriteString("; expected ")
		b.WriteString(strings.Join(e.Expected, " or "))
	}
	if len(e.Actual) > 0 {
		b.WriteString("; actual ")
		b.WriteString(strings.Join(e.Actual, " | "))
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// TraceString renders the operation trace recorded up to the failure.
func (e *Error) TraceString() string {
	if len(e.Trace) == 0 {
		return ""
	}
	var b strings.Builder
	for i, line := range e.Trace {
		fmt.Fprintf(&b, "%4d  %s\n", i, line)
	}
	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. A target without a phase
// matches on kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase == "" {
		return e.Kind == t.Kind
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
}

// KindOf returns the Kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// As is errors.As re-exported so callers importing this package under its
// default name keep access to it.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Is is errors.Is re-exported for the same reason as As.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase:    phase,
			Kind:     kind,
			Position: -1,
		},
	}
}

// Op sets the operation mnemonic
func (b *Builder) Op(name string) *Builder {
	b.err.Op = name
	return b
}

// Position sets the instruction position
func (b *Builder) Position(pos int) *Builder {
	b.err.Position = pos
	return b
}

// Expected sets the rendered expected shapes
func (b *Builder) Expected(shapes ...string) *Builder {
	b.err.Expected = shapes
	return b
}

// Actual sets the rendered actual shapes
func (b *Builder) Actual(shapes ...string) *Builder {
	b.err.Actual = shapes
	return b
}

// Trace attaches the operation trace
func (b *Builder) Trace(trace []string) *Builder {
	b.err.Trace = append([]string(nil), trace...)
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// WithTrace returns err with the trace attached when err is an *Error that
// has none yet. Other errors are returned unchanged.
func WithTrace(err error, trace []string) error {
	var e *Error
	if stderrors.As(err, &e) && len(e.Trace) == 0 {
		e.Trace = append([]string(nil), trace...)
	}
	return err
}

// Convenience constructors for common error patterns

// StackUnderflow creates a stack underflow error
func StackUnderflow(op string, pos int, expected, actual []string) *Error {
	return &Error{
		Phase:    PhaseVerify,
		Kind:     KindStackUnderflow,
		Op:       op,
		Position: pos,
		Detail:   "not enough values on the stack",
		Expected: expected,
		Actual:   actual,
	}
}

// TypeMismatch creates a stack type mismatch error
func TypeMismatch(op string, pos int, expected, actual []string) *Error {
	return &Error{
		Phase:    PhaseVerify,
		Kind:     KindTypeMismatch,
		Op:       op,
		Position: pos,
		Detail:   "no stack transition matches the live stack",
		Expected: expected,
		Actual:   actual,
	}
}

// Structural creates a structural violation error
func Structural(pos int, format string, args ...any) *Error {
	return &Error{
		Phase:    PhaseStructure,
		Kind:     KindStructural,
		Position: pos,
		Detail:   fmt.Sprintf(format, args...),
	}
}

// Reachability creates a reachability violation error
func Reachability(pos int, op string) *Error {
	return &Error{
		Phase:    PhaseFinalize,
		Kind:     KindReachability,
		Op:       op,
		Position: pos,
		Detail:   "no path from this instruction reaches a return or throw",
	}
}

// Ownership creates an ownership violation error
func Ownership(handle string) *Error {
	return &Error{
		Phase:    PhaseBuild,
		Kind:     KindOwnership,
		Position: -1,
		Detail:   fmt.Sprintf("%s is owned by another builder", handle),
	}
}

// Unverifiable creates an unverifiable operation error
func Unverifiable(op string, pos int) *Error {
	return &Error{
		Phase:    PhaseBuild,
		Kind:     KindUnverifiable,
		Op:       op,
		Position: pos,
		Detail:   "operation requires relaxed verification, which is not enabled",
	}
}

// Inference creates an inference failure error
func Inference(positions []int, detail string) *Error {
	return &Error{
		Phase:    PhaseInfer,
		Kind:     KindInference,
		Position: -1,
		Detail:   detail,
		Value:    positions,
	}
}

// Closed creates an error for mutation after finalize
func Closed(what string) *Error {
	return &Error{
		Phase:    PhaseBuild,
		Kind:     KindClosed,
		Position: -1,
		Detail:   fmt.Sprintf("%s after finalize", what),
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, offset int, detail string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindInvalidData,
		Position: offset,
		Detail:   detail,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindNotFound,
		Position: -1,
		Detail:   fmt.Sprintf("%s %q not found", what, name),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     kind,
		Position: -1,
		Detail:   detail,
		Cause:    cause,
	}
}

// NotReplayable creates an error for a disassembly that cannot be re-emitted
func NotReplayable(detail string) *Error {
	return &Error{
		Phase:    PhaseReplay,
		Kind:     KindNotReplayable,
		Position: -1,
		Detail:   detail,
	}
}
