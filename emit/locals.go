package emit

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/ilgen/errors"
	"github.com/wippyai/ilgen/opcode"
	"github.com/wippyai/ilgen/types"
)

// Local is a typed storage slot owned by one Builder. Several handles may
// share an index over time when a released slot is reused.
type Local struct {
	owner    *Builder
	typ      *types.Type
	name     string
	index    int
	released bool
}

// Index returns the storage index.
func (l *Local) Index() int {
	return l.index
}

// Name returns the local's name.
func (l *Local) Name() string {
	return l.name
}

// Type returns the declared type.
func (l *Local) Type() *types.Type {
	return l.typ
}

// Released reports whether the handle was released.
func (l *Local) Released() bool {
	return l.released
}

func (l *Local) String() string {
	if l == nil {
		return "<nil local>"
	}
	return l.name
}

type slot struct {
	typ  *types.Type
	name string
	free bool
}

// DeclareLocal allocates a local of type t. A released slot of an equal type
// is reused before a new index is allocated; when local reinitialization is
// enabled the reused slot is reset to the type's default value.
func (b *Builder) DeclareLocal(t *types.Type, name string) (*Local, error) {
	if b.closed {
		return nil, b.fail(errors.Closed("declare local"))
	}
	if t == nil || t.IsSentinel() || t.Kind == types.KindVoid || t.Kind == types.KindNull {
		return nil, b.fail(errors.New(errors.PhaseBuild, errors.KindInvalidData).
			Detail("local of type %s", t).Build())
	}
	if name == "" {
		name = fmt.Sprintf("_local%d", b.localSeq)
		b.localSeq++
	}

	for idx := range b.slots {
		s := &b.slots[idx]
		if !s.free || !types.Equal(s.typ, t) {
			continue
		}
		s.free = false
		l := &Local{owner: b, typ: t, name: name, index: idx}
		b.locals = append(b.locals, l)
		b.log.Debug("local slot reused", zap.String("local", name), zap.Int("index", idx))
		if b.opts.localReinit {
			if err := b.resetLocal(l); err != nil {
				return nil, err
			}
		}
		return l, nil
	}

	l := &Local{owner: b, typ: t, name: name, index: len(b.slots)}
	b.slots = append(b.slots, slot{typ: t, name: name})
	b.locals = append(b.locals, l)
	return l, nil
}

// ReleaseLocal returns l's slot for reuse. The handle must not be used again.
func (b *Builder) ReleaseLocal(l *Local) error {
	if b.closed {
		return b.fail(errors.Closed("release local"))
	}
	if err := b.own(l); err != nil {
		return b.fail(err)
	}
	if l.released {
		return b.fail(errors.Structural(len(b.ops), "local %q released twice", l.name))
	}
	l.released = true
	b.slots[l.index].free = true
	return nil
}

// resetLocal stores the default value of l's type into l.
func (b *Builder) resetLocal(l *Local) error {
	t := l.typ
	var seq []Operation
	switch {
	case t.Kind == types.KindInt64 || t.Kind == types.KindUInt64:
		seq = []Operation{{Opcode: opcode.LdcI8}}
	case t.Kind == types.KindFloat32:
		seq = []Operation{{Opcode: opcode.LdcR4}}
	case t.Kind == types.KindFloat64:
		seq = []Operation{{Opcode: opcode.LdcR8}}
	case t.Kind == types.KindNativeInt || t.Kind == types.KindNativeUInt:
		seq = []Operation{{Opcode: opcode.LdcI4}, {Opcode: opcode.ConvI}}
	case t.IsInteger():
		seq = []Operation{{Opcode: opcode.LdcI4}}
	case t.IsReference():
		seq = []Operation{{Opcode: opcode.Ldnull}}
	case t.Kind == types.KindValue:
		seq = []Operation{{Opcode: opcode.Ldloca, Local: l}, {Opcode: opcode.Initobj, Type: t}}
	default:
		// pointers and by-refs cannot be stored from a constant
		return nil
	}
	if t.Kind != types.KindValue {
		seq = append(seq, Operation{Opcode: opcode.Stloc, Local: l})
	}
	for _, op := range seq {
		if err := b.Append(op); err != nil {
			return err
		}
	}
	return nil
}
