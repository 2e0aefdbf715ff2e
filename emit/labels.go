package emit

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/ilgen/errors"
	"github.com/wippyai/ilgen/verify"
)

// Label is a branch target owned by one Builder. It is defined on creation
// and marked exactly once.
type Label struct {
	owner *Builder
	name  string

	// states carried by forward branches recorded before the mark
	pending []verify.StackState
	// states established when the label was marked
	marked []verify.StackState

	index int
	pos   int
}

// Name returns the label name.
func (l *Label) Name() string {
	return l.name
}

// Position returns the marked instruction position, or -1.
func (l *Label) Position() int {
	return l.pos
}

// IsMarked reports whether the label has been marked.
func (l *Label) IsMarked() bool {
	return l.pos >= 0
}

func (l *Label) String() string {
	if l == nil {
		return "<nil label>"
	}
	return l.name
}

// DefineLabel creates a label. An empty name gets a builder-local sequence
// name.
func (b *Builder) DefineLabel(name string) (*Label, error) {
	if b.closed {
		return nil, b.fail(errors.Closed("define label"))
	}
	if name == "" {
		name = fmt.Sprintf("_label%d", b.labelSeq)
		b.labelSeq++
	}
	l := &Label{owner: b, name: name, index: len(b.labels), pos: -1}
	b.labels = append(b.labels, l)
	return l, nil
}

// MarkLabel binds l to the next instruction position. The live states become
// the union of the fallthrough states and those recorded by forward branches.
// A label reached by neither starts from an empty stack.
func (b *Builder) MarkLabel(l *Label) error {
	if b.closed {
		return b.fail(errors.Closed("mark label"))
	}
	if err := b.own(l); err != nil {
		return b.fail(err)
	}
	pos := len(b.ops)
	if l.IsMarked() {
		return b.fail(errors.New(errors.PhaseStructure, errors.KindStructural).
			Position(pos).
			Value(l).
			Detail("label %q marked twice (first at #%d)", l.name, l.pos).
			Build())
	}

	states := append(b.verifier.Live(), l.pending...)
	if len(states) == 0 {
		states = []verify.StackState{verify.Exact()}
	}
	b.verifier.SetLive(states...)

	l.pos = pos
	l.marked = b.verifier.Live()
	l.pending = nil
	b.trace = append(b.trace, l.name+":")
	b.log.Debug("label marked", zap.String("label", l.name), zap.Int("pos", pos), zap.Stringer("stack", b.verifier))
	return nil
}

// checkBackward verifies that states branching to an already marked label
// are compatible with the state established at its mark.
func (b *Builder) checkBackward(l *Label, states []verify.StackState, pos int, name string) error {
	if !l.IsMarked() {
		return nil
	}
	for _, s := range states {
		ok := false
		for _, m := range l.marked {
			if verify.Compatible(s, m) {
				ok = true
				break
			}
		}
		if !ok {
			expected := make([]string, len(l.marked))
			for i, m := range l.marked {
				expected[i] = m.String()
			}
			return errors.New(errors.PhaseVerify, errors.KindTypeMismatch).
				Op(name).
				Position(pos).
				Expected(expected...).
				Actual(s.String()).
				Detail("backward branch to %q with an incompatible stack", l.name).
				Build()
		}
	}
	return nil
}

// recordForward keeps the states carried to a label not yet marked.
func (l *Label) recordForward(states []verify.StackState) {
	if l.IsMarked() {
		return
	}
	for _, s := range states {
		l.pending = append(l.pending, s.Clone())
	}
}
