package disasm

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/wippyai/ilgen/emit"
	"github.com/wippyai/ilgen/errors"
	"github.com/wippyai/ilgen/metadata"
	"github.com/wippyai/ilgen/opcode"
	"github.com/wippyai/ilgen/routine"
	"github.com/wippyai/ilgen/types"
)

// StepKind identifies what a Step replays.
type StepKind uint8

const (
	StepOp StepKind = iota
	StepLabel
	StepBeginBlock
	StepBeginCatch
	StepBeginFinally
	StepEndCatch
	StepEndFinally
	StepEndBlock
)

var stepNames = [...]string{
	StepOp:           "op",
	StepLabel:        "label",
	StepBeginBlock:   "begin-block",
	StepBeginCatch:   "begin-catch",
	StepBeginFinally: "begin-finally",
	StepEndCatch:     "end-catch",
	StepEndFinally:   "end-finally",
	StepEndBlock:     "end-block",
}

func (k StepKind) String() string {
	if int(k) < len(stepNames) {
		return stepNames[k]
	}
	return fmt.Sprintf("step(%d)", uint8(k))
}

// Step is one replayable event of a disassembly: an instruction, a label
// mark or a region transition.
//
// For StepOp, Op carries every operand except builder handles. Branch
// targets are indices into Disassembly.Labels and Local indexes
// Disassembly.Locals; both are bound to handles of the target builder when
// the step is replayed.
type Step struct {
	Catch    *types.Type // StepBeginCatch
	Targets  []int
	Op       emit.Operation
	Kind     StepKind
	Position int // instruction index; region and label steps use the next instruction
	Offset   int // byte offset in the routine code
	Label    int // StepLabel
	Block    int
	Handler  int // clause index of a catch or finally
	Local    int // -1 when the instruction uses no local
	Pending  bool
}

// Label is a branch target, one per distinct target offset.
type Label struct {
	Name   string
	Offset int
}

// Local is a declared local slot.
type Local struct {
	Type *types.Type
	Name string
}

// Disassembly is a decoded routine as a sequence of steps that re-emit it
// through a builder.
type Disassembly struct {
	// Receiver is the instance type bound to argument 0. It is required for
	// replay when UsesReceiver is set.
	Receiver *types.Type
	hint     *types.Type

	Name      string
	Signature emit.Signature // declared parameters, receiver excluded
	Steps     []Step
	Labels    []Label
	Locals    []Local

	HasThis      bool
	UsesReceiver bool
}

// Disassemble decodes r into replayable steps, resolving tokens through res
// and inferring the element types of polymorphic instructions.
func Disassemble(r *routine.Routine, res metadata.Resolver, opts ...Option) (*Disassembly, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	log := o.logger
	if log == nil {
		log = Logger()
	}

	raw, err := r.Instructions()
	if err != nil {
		return nil, err
	}

	d := &Disassembly{Name: r.Name, HasThis: r.HasThis, Receiver: o.receiver}
	if d.Signature.Return, err = resolveType(res, r.Return, "return type"); err != nil {
		return nil, err
	}
	for i, p := range r.Params {
		t, err := resolveType(res, p, fmt.Sprintf("parameter %d", i))
		if err != nil {
			return nil, err
		}
		d.Signature.Params = append(d.Signature.Params, t)
	}
	if r.HasThis && d.Receiver == nil && r.Receiver != "" {
		// Only a hint: inference may use it, replay still needs WithReceiver.
		if t, err := res.ResolveType(r.Receiver); err == nil {
			d.hint = t
		}
	}
	for i, l := range r.Locals {
		t, err := resolveType(res, l.Type, fmt.Sprintf("local %d", i))
		if err != nil {
			return nil, err
		}
		d.Locals = append(d.Locals, Local{Type: t, Name: l.Name})
	}

	dc := &decoder{r: r, res: res, d: d, labels: make(map[int]int)}
	if err := dc.regions(); err != nil {
		return nil, err
	}
	for _, ri := range raw {
		for _, t := range ri.Targets {
			dc.label(t)
		}
	}
	for i, ri := range raw {
		dc.events(ri.Offset, i)
		step, err := dc.operation(ri, i)
		if err != nil {
			return nil, err
		}
		d.Steps = append(d.Steps, step)
	}
	dc.events(len(r.Code), len(raw))

	log.Debug("routine decoded",
		zap.String("routine", r.Name),
		zap.Int("instructions", len(raw)),
		zap.Int("labels", len(d.Labels)),
		zap.Int("blocks", len(dc.blocks)))

	if err := d.infer(log, o.maxPasses); err != nil {
		return nil, err
	}
	return d, nil
}

func resolveType(res metadata.Resolver, name, what string) (*types.Type, error) {
	t, err := res.ResolveType(name)
	if err != nil {
		return nil, errors.New(errors.PhaseResolve, errors.KindNotFound).
			Detail("resolve %s %q", what, name).Cause(err).Build()
	}
	return t, nil
}

type block struct {
	handlers []int // clause indices in handler order
	start    int
	end      int // end of the last handler
}

type event struct {
	step    Step
	start   int
	end     int
	handler bool
}

type decoder struct {
	r        *routine.Routine
	res      metadata.Resolver
	d        *Disassembly
	labels   map[int]int // offset -> label index
	blocks   []*block
	openings map[int][]event
	closings map[int][]event
}

func (dc *decoder) label(offset int) int {
	if idx, ok := dc.labels[offset]; ok {
		return idx
	}
	idx := len(dc.d.Labels)
	dc.labels[offset] = idx
	dc.d.Labels = append(dc.d.Labels, Label{Name: fmt.Sprintf("IL_%04x", offset), Offset: offset})
	return idx
}

// regions groups clauses sharing a protected range into blocks and indexes
// the region transitions by offset.
func (dc *decoder) regions() error {
	dc.openings = make(map[int][]event)
	dc.closings = make(map[int][]event)

	byRange := make(map[[2]int]int)
	for ci, c := range dc.r.Clauses {
		key := [2]int{c.TryStart, c.TryEnd}
		bi, ok := byRange[key]
		if !ok {
			bi = len(dc.blocks)
			byRange[key] = bi
			dc.blocks = append(dc.blocks, &block{start: c.TryStart, end: c.TryEnd})
		}
		blk := dc.blocks[bi]
		if len(blk.handlers) > 0 {
			prev := dc.r.Clauses[blk.handlers[len(blk.handlers)-1]]
			if prev.Kind == routine.ClauseFinally {
				return errors.InvalidData(errors.PhaseDecode, c.HandlerStart,
					fmt.Sprintf("clause %d follows a finally of the same block", ci))
			}
		}
		if c.HandlerStart != blk.end {
			return errors.InvalidData(errors.PhaseDecode, c.HandlerStart,
				fmt.Sprintf("clause %d handler does not follow the protected range or previous handler", ci))
		}
		blk.handlers = append(blk.handlers, ci)
		blk.end = c.HandlerEnd

		ev := event{start: c.HandlerStart, end: c.HandlerEnd, handler: true}
		opening, closing := StepBeginFinally, StepEndFinally
		var catch *types.Type
		if c.Kind == routine.ClauseCatch {
			opening, closing = StepBeginCatch, StepEndCatch
			t, err := resolveType(dc.res, c.CatchType, fmt.Sprintf("clause %d catch type", ci))
			if err != nil {
				return err
			}
			catch = t
		}
		ev.step = Step{Kind: opening, Offset: c.HandlerStart, Block: bi, Handler: ci, Catch: catch, Local: -1}
		dc.openings[c.HandlerStart] = append(dc.openings[c.HandlerStart], ev)
		ev.step = Step{Kind: closing, Offset: c.HandlerEnd, Block: bi, Handler: ci, Local: -1}
		dc.closings[c.HandlerEnd] = append(dc.closings[c.HandlerEnd], ev)
	}

	for bi, blk := range dc.blocks {
		ev := event{start: blk.start, end: blk.end}
		ev.step = Step{Kind: StepBeginBlock, Offset: blk.start, Block: bi, Local: -1}
		dc.openings[blk.start] = append(dc.openings[blk.start], ev)
		ev.step = Step{Kind: StepEndBlock, Offset: blk.end, Block: bi, Local: -1}
		dc.closings[blk.end] = append(dc.closings[blk.end], ev)
	}
	return nil
}

// events appends the steps at offset: region closings innermost first, then
// the label, then region openings outermost first.
func (dc *decoder) events(offset, pos int) {
	closings := dc.closings[offset]
	sort.SliceStable(closings, func(i, j int) bool {
		a, b := closings[i], closings[j]
		if a.start != b.start {
			return a.start > b.start
		}
		return !a.handler && b.handler
	})
	for _, ev := range closings {
		ev.step.Position = pos
		dc.d.Steps = append(dc.d.Steps, ev.step)
	}

	if idx, ok := dc.labels[offset]; ok {
		dc.d.Steps = append(dc.d.Steps, Step{Kind: StepLabel, Label: idx, Offset: offset, Position: pos, Local: -1})
	}

	openings := dc.openings[offset]
	sort.SliceStable(openings, func(i, j int) bool {
		a, b := openings[i], openings[j]
		if a.end != b.end {
			return a.end > b.end
		}
		return a.handler && !b.handler
	})
	for _, ev := range openings {
		ev.step.Position = pos
		dc.d.Steps = append(dc.d.Steps, ev.step)
	}
}

func (dc *decoder) operation(ri routine.RawInstruction, pos int) (Step, error) {
	info := ri.Info()
	s := Step{
		Kind:     StepOp,
		Position: pos,
		Offset:   ri.Offset,
		Local:    -1,
		Op:       emit.Operation{Opcode: ri.Opcode},
	}
	fail := func(detail string, args ...any) error {
		return errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Op(info.Name).Position(pos).Detail(detail, args...).Build()
	}

	switch info.Operand {
	case opcode.OperandInt8, opcode.OperandInt32, opcode.OperandInt64:
		s.Op.Int = ri.Int
	case opcode.OperandFloat32, opcode.OperandFloat64:
		s.Op.Float = ri.Float
	case opcode.OperandVar8, opcode.OperandVar16:
		switch ri.Opcode {
		case opcode.Ldloc, opcode.Ldloca, opcode.Stloc:
			if ri.Int >= int64(len(dc.d.Locals)) {
				return s, fail("local %d not declared", ri.Int)
			}
			s.Local = int(ri.Int)
		default:
			if ri.Int >= int64(dc.r.ArgCount()) {
				return s, fail("argument %d out of range", ri.Int)
			}
			s.Op.Arg = int(ri.Int)
			if dc.r.HasThis && ri.Int == 0 {
				dc.d.UsesReceiver = true
			}
		}
	case opcode.OperandBranch8, opcode.OperandBranch32, opcode.OperandSwitch:
		s.Targets = make([]int, len(ri.Targets))
		for i, t := range ri.Targets {
			s.Targets[i] = dc.label(t)
		}
	case opcode.OperandType, opcode.OperandMethod, opcode.OperandField, opcode.OperandString:
		tok, _ := dc.r.Token(int(ri.Int))
		if err := dc.bind(&s.Op, tok, pos); err != nil {
			return s, err
		}
	}
	s.Pending = info.Polymorphic
	return s, nil
}

func (dc *decoder) bind(op *emit.Operation, tok routine.Token, pos int) error {
	var err error
	switch tok.Kind {
	case routine.TokenString:
		op.Str = tok.Value
		return nil
	case routine.TokenType:
		op.Type, err = dc.res.ResolveType(tok.Name)
	case routine.TokenMethod:
		op.Method, err = dc.res.ResolveMethod(tok.Owner, tok.Name, tok.Params)
	case routine.TokenField:
		op.Field, err = dc.res.ResolveField(tok.Owner, tok.Name)
	}
	if err != nil {
		return errors.New(errors.PhaseResolve, errors.KindNotFound).
			Op(op.Opcode.String()).Position(pos).
			Detail("resolve %s token %s", tok.Kind, tok).Cause(err).Build()
	}
	return nil
}
