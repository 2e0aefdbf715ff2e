package emit

import (
	"strconv"

	"go.uber.org/zap"

	"github.com/wippyai/ilgen/emit/internal/region"
	"github.com/wippyai/ilgen/errors"
	"github.com/wippyai/ilgen/metadata"
	"github.com/wippyai/ilgen/opcode"
	"github.com/wippyai/ilgen/types"
	"github.com/wippyai/ilgen/verify"
)

// Builder assembles one routine. Every appended operation is verified against
// the live stack states and the open regions. A Builder is not safe for
// concurrent use.
type Builder struct {
	log      *zap.Logger
	verifier *verify.Verifier
	regions  *region.Tracker
	name     string
	sig      Signature
	ops      []Operation
	trace    []string
	labels   []*Label
	locals   []*Local
	slots    []slot
	blocks   []*ExceptionBlock
	branches []branch
	opts     options
	labelSeq int
	localSeq int
	closed   bool
}

type branch struct {
	targets []*Label
	from    int
	leave   bool
}

// NewBuilder creates a builder for a routine with the given signature.
func NewBuilder(name string, sig Signature, opts ...Option) *Builder {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	log := o.logger
	if log == nil {
		log = Logger()
	}
	return &Builder{
		log:      log.With(zap.String("routine", name)),
		verifier: verify.NewVerifier(),
		regions:  region.New(),
		name:     name,
		sig:      sig,
		opts:     o,
	}
}

// Name returns the routine name.
func (b *Builder) Name() string {
	return b.name
}

// Signature returns the routine signature.
func (b *Builder) Signature() Signature {
	return b.sig
}

// Len returns the number of appended instructions.
func (b *Builder) Len() int {
	return len(b.ops)
}

// MaxStack returns the stack high-water mark so far.
func (b *Builder) MaxStack() int {
	return b.verifier.MaxStack()
}

// Closed reports whether Finalize has succeeded.
func (b *Builder) Closed() bool {
	return b.closed
}

// Stack renders the live stack states.
func (b *Builder) Stack() string {
	return b.verifier.String()
}

// Trace returns the rendered operations verified so far, with label marks and
// region markers interleaved.
func (b *Builder) Trace() []string {
	return append([]string(nil), b.trace...)
}

// Append verifies op and adds it to the routine. On error nothing changes.
func (b *Builder) Append(op Operation) error {
	if b.closed {
		return b.fail(errors.Closed("append"))
	}
	pos := len(b.ops)
	info, ok := opcode.Lookup(op.Opcode)
	if !ok {
		return b.fail(errors.New(errors.PhaseBuild, errors.KindInvalidData).
			Position(pos).Detail("unknown opcode 0x%X", uint16(op.Opcode)).Build())
	}
	if !info.IsCanonical() {
		canon := info.Canonical.String()
		return b.fail(errors.New(errors.PhaseBuild, errors.KindInvalidData).
			Op(info.Name).Position(pos).Detail("short form; append %s instead", canon).Build())
	}
	if info.Unverifiable && !b.opts.unverifiable {
		return b.fail(errors.Unverifiable(info.Name, pos))
	}
	if err := b.checkHandles(&op, pos); err != nil {
		return b.fail(err)
	}
	if err := b.checkRegionRules(info, pos); err != nil {
		return b.fail(err)
	}

	op = op.clone()
	ts, err := Transitions(&op, b.sig)
	if err != nil {
		return b.fail(setPosition(err, pos))
	}

	saved := b.verifier.Live()
	reachable := b.verifier.IsReachable()
	m, err := b.verifier.Apply(info.Name, ts)
	if err != nil {
		return b.fail(setPosition(err, pos))
	}

	if info.Flow.IsBranch() {
		after := b.verifier.Live()
		for _, l := range op.Targets() {
			if err := b.checkBackward(l, after, pos, info.Name); err != nil {
				b.restore(saved, reachable)
				return b.fail(err)
			}
		}
		for _, l := range op.Targets() {
			l.recordForward(after)
		}
		b.branches = append(b.branches, branch{
			from:    pos,
			targets: op.Targets(),
			leave:   info.Flow == opcode.FlowLeave,
		})
	}
	if !info.Flow.FallsThrough() {
		b.verifier.Unreachable()
	}

	b.ops = append(b.ops, op)
	b.trace = append(b.trace, "#"+strconv.Itoa(pos)+" "+op.String())
	if b.opts.observer != nil {
		b.opts.observer(pos, &b.ops[pos], m)
	}
	return nil
}

func (b *Builder) restore(saved []verify.StackState, reachable bool) {
	if reachable {
		b.verifier.SetLive(saved...)
	} else {
		b.verifier.Unreachable()
	}
}

// checkHandles rejects labels and locals owned by another builder or no
// longer usable. An empty switch table is legal and only pops its selector.
func (b *Builder) checkHandles(op *Operation, pos int) error {
	info := op.Opcode.Info()
	switch info.Operand {
	case opcode.OperandBranch8, opcode.OperandBranch32:
		if op.Label == nil {
			return errors.New(errors.PhaseBuild, errors.KindInvalidData).
				Op(info.Name).Position(pos).Detail("missing label operand").Build()
		}
	}
	for _, l := range op.Targets() {
		if err := b.own(l); err != nil {
			return err
		}
	}
	if op.Local != nil {
		if err := b.own(op.Local); err != nil {
			return err
		}
		if op.Local.released {
			return errors.Structural(pos, "local %q used after release", op.Local.name)
		}
	}
	return nil
}

// checkRegionRules enforces where region-sensitive opcodes may appear.
func (b *Builder) checkRegionRules(info *opcode.Info, pos int) error {
	switch info.Code {
	case opcode.Ret:
		if r := b.regions.Current(); r != nil {
			return errors.Structural(pos, "ret inside %s; leave the region first", r)
		}
	case opcode.Endfinally:
		if k, ok := b.regions.CurrentHandlerKind(); !ok || k != region.Cleanup {
			return errors.Structural(pos, "endfinally outside a finally block")
		}
	case opcode.Rethrow:
		if k, ok := b.regions.CurrentHandlerKind(); !ok || k != region.Handler {
			return errors.Structural(pos, "rethrow outside a catch block")
		}
	}
	return nil
}

// own checks that a handle was created by b.
func (b *Builder) own(h any) error {
	var owner *Builder
	var what string
	switch v := h.(type) {
	case *Label:
		if v == nil {
			return errors.New(errors.PhaseBuild, errors.KindInvalidData).Detail("nil label").Build()
		}
		owner, what = v.owner, "label "+strconv.Quote(v.name)
	case *Local:
		if v == nil {
			return errors.New(errors.PhaseBuild, errors.KindInvalidData).Detail("nil local").Build()
		}
		owner, what = v.owner, "local "+strconv.Quote(v.name)
	case *ExceptionBlock:
		if v == nil {
			return errors.New(errors.PhaseBuild, errors.KindInvalidData).Detail("nil exception block").Build()
		}
		owner, what = v.owner, "exception block"
	case *CatchBlock:
		if v == nil {
			return errors.New(errors.PhaseBuild, errors.KindInvalidData).Detail("nil catch block").Build()
		}
		owner, what = v.owner, "catch block"
	case *FinallyBlock:
		if v == nil {
			return errors.New(errors.PhaseBuild, errors.KindInvalidData).Detail("nil finally block").Build()
		}
		owner, what = v.owner, "finally block"
	}
	if owner != b {
		return errors.Ownership(what)
	}
	return nil
}

// fail attaches the trace and logs err.
func (b *Builder) fail(err error) error {
	err = errors.WithTrace(err, b.trace)
	b.log.Debug("operation rejected", zap.Int("pos", len(b.ops)), zap.Error(err))
	return err
}

func setPosition(err error, pos int) error {
	var e *errors.Error
	if errors.As(err, &e) && e.Position < 0 {
		e.Position = pos
	}
	return err
}

// Emit appends an operation without operands.
func (b *Builder) Emit(code opcode.Opcode) error {
	return b.Append(Operation{Opcode: code})
}

// EmitInt appends an int32 constant operation.
func (b *Builder) EmitInt(code opcode.Opcode, v int32) error {
	return b.Append(Operation{Opcode: code, Int: int64(v)})
}

// EmitInt64 appends an int64 constant operation.
func (b *Builder) EmitInt64(code opcode.Opcode, v int64) error {
	return b.Append(Operation{Opcode: code, Int: v})
}

// EmitFloat appends a floating point constant operation.
func (b *Builder) EmitFloat(code opcode.Opcode, v float64) error {
	return b.Append(Operation{Opcode: code, Float: v})
}

// EmitString appends a string operation.
func (b *Builder) EmitString(code opcode.Opcode, s string) error {
	return b.Append(Operation{Opcode: code, Str: s})
}

// EmitType appends an operation with a type operand.
func (b *Builder) EmitType(code opcode.Opcode, t *types.Type) error {
	return b.Append(Operation{Opcode: code, Type: t})
}

// EmitMethod appends a call-like operation.
func (b *Builder) EmitMethod(code opcode.Opcode, m *metadata.Method) error {
	return b.Append(Operation{Opcode: code, Method: m})
}

// EmitField appends a field access.
func (b *Builder) EmitField(code opcode.Opcode, f *metadata.Field) error {
	return b.Append(Operation{Opcode: code, Field: f})
}

// EmitBranch appends a branch or leave to l.
func (b *Builder) EmitBranch(code opcode.Opcode, l *Label) error {
	return b.Append(Operation{Opcode: code, Label: l})
}

// EmitSwitch appends a jump table.
func (b *Builder) EmitSwitch(targets ...*Label) error {
	return b.Append(Operation{Opcode: opcode.Switch, Labels: targets})
}

// EmitLocal appends a local access.
func (b *Builder) EmitLocal(code opcode.Opcode, l *Local) error {
	return b.Append(Operation{Opcode: code, Local: l})
}

// EmitArg appends an argument access.
func (b *Builder) EmitArg(code opcode.Opcode, idx int) error {
	return b.Append(Operation{Opcode: code, Arg: idx})
}
