package disasm

import (
	"fmt"

	"github.com/wippyai/ilgen/emit"
	"github.com/wippyai/ilgen/errors"
	"github.com/wippyai/ilgen/opcode"
	"github.com/wippyai/ilgen/types"
)

// Replayer binds a disassembly's labels, locals and regions to the handles
// of one builder.
type Replayer struct {
	b         *emit.Builder
	labels    []*emit.Label
	locals    []*emit.Local
	blocks    map[int]*emit.ExceptionBlock
	catches   map[int]*emit.CatchBlock
	finallies map[int]*emit.FinallyBlock
}

// NewReplayer defines d's labels and declares its locals on b.
func NewReplayer(d *Disassembly, b *emit.Builder) (*Replayer, error) {
	if !d.CanReplay() {
		return nil, errors.NotReplayable(fmt.Sprintf("%s reads its receiver; supply the receiver type", d.Name))
	}
	return newReplayer(d, b)
}

func newReplayer(d *Disassembly, b *emit.Builder) (*Replayer, error) {
	rp := &Replayer{
		b:         b,
		blocks:    make(map[int]*emit.ExceptionBlock),
		catches:   make(map[int]*emit.CatchBlock),
		finallies: make(map[int]*emit.FinallyBlock),
	}
	for _, l := range d.Labels {
		el, err := b.DefineLabel(l.Name)
		if err != nil {
			return nil, err
		}
		rp.labels = append(rp.labels, el)
	}
	for _, l := range d.Locals {
		loc, err := b.DeclareLocal(l.Type, l.Name)
		if err != nil {
			return nil, err
		}
		rp.locals = append(rp.locals, loc)
	}
	return rp, nil
}

// Replay applies s to the replayer's builder.
func (s *Step) Replay(rp *Replayer) error {
	b := rp.b
	switch s.Kind {
	case StepOp:
		op := s.Op
		for _, t := range s.Targets {
			if t < 0 || t >= len(rp.labels) {
				return s.unbound("label", t)
			}
		}
		if op.Opcode == opcode.Switch {
			op.Labels = make([]*emit.Label, len(s.Targets))
			for i, t := range s.Targets {
				op.Labels[i] = rp.labels[t]
			}
		} else if len(s.Targets) == 1 {
			op.Label = rp.labels[s.Targets[0]]
		}
		if s.Local >= 0 {
			if s.Local >= len(rp.locals) {
				return s.unbound("local", s.Local)
			}
			op.Local = rp.locals[s.Local]
		}
		return b.Append(op)

	case StepLabel:
		if s.Label < 0 || s.Label >= len(rp.labels) {
			return s.unbound("label", s.Label)
		}
		return b.MarkLabel(rp.labels[s.Label])

	case StepBeginBlock:
		eb, err := b.BeginExceptionBlock()
		if err != nil {
			return err
		}
		rp.blocks[s.Block] = eb
		return nil

	case StepBeginCatch:
		eb, ok := rp.blocks[s.Block]
		if !ok {
			return s.unbound("block", s.Block)
		}
		cb, err := b.BeginCatchBlock(eb, s.Catch)
		if err != nil {
			return err
		}
		rp.catches[s.Handler] = cb
		return nil

	case StepEndCatch:
		cb, ok := rp.catches[s.Handler]
		if !ok {
			return s.unbound("catch", s.Handler)
		}
		return b.EndCatchBlock(cb)

	case StepBeginFinally:
		eb, ok := rp.blocks[s.Block]
		if !ok {
			return s.unbound("block", s.Block)
		}
		fb, err := b.BeginFinallyBlock(eb)
		if err != nil {
			return err
		}
		rp.finallies[s.Handler] = fb
		return nil

	case StepEndFinally:
		fb, ok := rp.finallies[s.Handler]
		if !ok {
			return s.unbound("finally", s.Handler)
		}
		return b.EndFinallyBlock(fb)

	case StepEndBlock:
		eb, ok := rp.blocks[s.Block]
		if !ok {
			return s.unbound("block", s.Block)
		}
		return b.EndExceptionBlock(eb)
	}
	return errors.NotReplayable(fmt.Sprintf("unknown step kind %s", s.Kind))
}

func (s *Step) unbound(what string, idx int) error {
	return errors.New(errors.PhaseReplay, errors.KindNotReplayable).
		Position(s.Position).Detail("%s step references unknown %s %d", s.Kind, what, idx).Build()
}

// CanReplay reports whether the disassembly can be re-emitted on its own. An
// instance routine that reads its receiver needs the receiver type.
func (d *Disassembly) CanReplay() bool {
	return !d.UsesReceiver || d.Receiver != nil
}

// WithReceiver binds the receiver type and returns d.
func (d *Disassembly) WithReceiver(t *types.Type) *Disassembly {
	d.Receiver = t
	return d
}

// BuilderSignature returns the signature a replay target must declare. For
// instance routines the receiver is parameter 0; when the receiver is never
// read and not supplied, object stands in for it.
func (d *Disassembly) BuilderSignature() (emit.Signature, error) {
	if !d.CanReplay() {
		return emit.Signature{}, errors.NotReplayable(fmt.Sprintf("%s reads its receiver; supply the receiver type", d.Name))
	}
	return d.signature(d.Receiver), nil
}

func (d *Disassembly) signature(recv *types.Type) emit.Signature {
	if !d.HasThis {
		return d.Signature
	}
	if recv == nil {
		recv = types.Object
	}
	params := make([]*types.Type, 0, len(d.Signature.Params)+1)
	params = append(params, recv)
	params = append(params, d.Signature.Params...)
	return emit.Signature{Return: d.Signature.Return, Params: params}
}

// Replay re-emits every step into b. b must declare BuilderSignature and be
// otherwise empty.
func (d *Disassembly) Replay(b *emit.Builder) error {
	rp, err := NewReplayer(d, b)
	if err != nil {
		return err
	}
	for i := range d.Steps {
		if err := d.Steps[i].Replay(rp); err != nil {
			return err
		}
	}
	return nil
}

// Build creates a builder with the disassembly's signature and replays into
// it. The builder is returned open so callers may finalize it with their own
// options.
func (d *Disassembly) Build(opts ...emit.Option) (*emit.Builder, error) {
	sig, err := d.BuilderSignature()
	if err != nil {
		return nil, err
	}
	b := emit.NewBuilder(d.Name, sig, opts...)
	if err := d.Replay(b); err != nil {
		return nil, err
	}
	return b, nil
}
