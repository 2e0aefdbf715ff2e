package emit

import (
	"strconv"

	"go.uber.org/zap"

	"github.com/wippyai/ilgen/emit/internal/flow"
	"github.com/wippyai/ilgen/errors"
	"github.com/wippyai/ilgen/opcode"
)

// Finalize runs the whole-routine checks and returns the layout. It fails on
// unmarked labels, unclosed regions, branches that cross region boundaries
// illegally, and instructions that cannot reach a terminator. On success the
// builder is closed; the only later change is the tail-call marking applied
// here.
func (b *Builder) Finalize(opts FinalizeOptions) (*Layout, error) {
	if b.closed {
		return nil, b.fail(errors.Closed("finalize"))
	}
	for _, l := range b.labels {
		if !l.IsMarked() {
			return nil, b.fail(errors.New(errors.PhaseStructure, errors.KindStructural).
				Value(l).
				Detail("label %q defined but never marked", l.name).
				Build())
		}
	}
	if open := b.regions.OpenBlocks(); len(open) > 0 {
		return nil, b.fail(errors.Structural(len(b.ops), "exception block %d not closed", open[len(open)-1]))
	}
	for _, br := range b.branches {
		for _, l := range br.targets {
			if err := b.regions.CheckBranch(br.from, l.pos, br.leave); err != nil {
				return nil, b.fail(err)
			}
		}
	}
	if err := b.checkReachability(); err != nil {
		return nil, b.fail(err)
	}

	var tails []int
	if opts.TailCalls {
		tails = b.markTailCalls()
	}
	b.closed = true

	layout := b.layout(tails)
	b.log.Debug("routine finalized",
		zap.Int("instructions", len(layout.Instructions)),
		zap.Int("max_stack", layout.MaxStack),
		zap.Int("regions", len(layout.Regions)),
		zap.Int("tail_calls", len(tails)))
	return layout, nil
}

func (b *Builder) checkReachability() error {
	nodes := make([]flow.Node, len(b.ops))
	for i := range b.ops {
		op := &b.ops[i]
		nodes[i].Flow = op.Opcode.Flow()
		for _, l := range op.Targets() {
			nodes[i].Targets = append(nodes[i].Targets, l.pos)
		}
	}
	pos, ok := flow.Build(nodes).Check()
	if ok {
		return nil
	}
	name := "<end>"
	if pos < len(b.ops) {
		name = b.ops[pos].Opcode.String()
	}
	return errors.Reachability(pos, name)
}

// markTailCalls inserts tail. before every call or callvirt directly
// followed by ret outside any region. Labels and region bounds after an
// insertion point move up; a label on the call stays on the prefix. It
// returns the final positions of the prefixes.
func (b *Builder) markTailCalls() []int {
	var sites []int
	for i := 0; i+1 < len(b.ops); i++ {
		code := b.ops[i].Opcode
		if code != opcode.Call && code != opcode.Callvirt {
			continue
		}
		if b.ops[i+1].Opcode != opcode.Ret {
			continue
		}
		if i > 0 && b.ops[i-1].Opcode == opcode.Tail {
			continue
		}
		if len(b.regions.Containing(i)) > 0 || len(b.regions.Containing(i+1)) > 0 {
			continue
		}
		sites = append(sites, i)
	}

	for k := len(sites) - 1; k >= 0; k-- {
		at := sites[k]
		b.ops = append(b.ops, Operation{})
		copy(b.ops[at+1:], b.ops[at:])
		b.ops[at] = Operation{Opcode: opcode.Tail}
		for _, l := range b.labels {
			if l.pos > at {
				l.pos++
			}
		}
		b.regions.Shift(at, 1)
	}

	final := make([]int, len(sites))
	for k, at := range sites {
		final[k] = at + k
		b.trace = append(b.trace, "tail. inserted at #"+strconv.Itoa(final[k]))
	}
	return final
}

func (b *Builder) layout(tails []int) *Layout {
	l := &Layout{
		Name:      b.name,
		Signature: b.sig,
		MaxStack:  b.verifier.MaxStack(),
		TailCalls: tails,
	}
	l.Instructions = make([]Instruction, len(b.ops))
	for i, op := range b.ops {
		l.Instructions[i] = Instruction{Position: i, Op: op}
	}
	for _, lb := range b.labels {
		l.Labels = append(l.Labels, LabelInfo{Name: lb.name, Position: lb.pos})
	}
	for idx, s := range b.slots {
		l.Locals = append(l.Locals, LocalInfo{Index: idx, Name: s.name, Type: s.typ})
	}

	regions := b.regions.Regions()
	for i := range regions {
		r := &regions[i]
		l.Regions = append(l.Regions, RegionInfo{
			Kind:      r.Kind,
			Start:     r.Start,
			End:       r.End,
			Block:     r.Block,
			Parent:    -1,
			CatchType: r.CatchType,
		})
	}
	for i := range l.Regions {
		ri := &l.Regions[i]
		best := -1
		for j := range l.Regions {
			rj := &l.Regions[j]
			if rj.Block == ri.Block || rj.Start > ri.Start || rj.End < ri.End {
				continue
			}
			// nested blocks open after their parents, so the enclosing block
			// always has the lower index
			if rj.Block > ri.Block {
				continue
			}
			if best < 0 || rj.End-rj.Start <= l.Regions[best].End-l.Regions[best].Start {
				best = j
			}
		}
		ri.Parent = best
	}
	return l
}
