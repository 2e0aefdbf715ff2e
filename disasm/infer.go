package disasm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/ilgen/emit"
	"github.com/wippyai/ilgen/errors"
	"github.com/wippyai/ilgen/opcode"
	"github.com/wippyai/ilgen/types"
	"github.com/wippyai/ilgen/verify"
)

// infer resolves the element or referent type of every pending polymorphic
// instruction. Each pass replays the routine into a scratch builder and
// reads the values the pending instructions consumed. A pass that resolves
// nothing while instructions remain pending fails.
func (d *Disassembly) infer(log *zap.Logger, maxPasses int) error {
	var pending []int
	for i := range d.Steps {
		if d.Steps[i].Pending {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return nil
	}
	if maxPasses <= 0 {
		maxPasses = len(pending) + 1
	}

	for pass := 1; len(pending) > 0; pass++ {
		if pass > maxPasses {
			return errors.Inference(d.positions(pending),
				fmt.Sprintf("%d polymorphic operand(s) unresolved after %d passes", len(pending), maxPasses))
		}
		consumed, err := d.provisional()
		if err != nil {
			return err
		}

		var remaining []int
		for _, si := range pending {
			s := &d.Steps[si]
			t := inferOperand(s.Op.Opcode, consumed[si])
			if t == nil {
				remaining = append(remaining, si)
				continue
			}
			s.Op.Type = t
			s.Pending = false
			log.Debug("operand inferred",
				zap.Int("pos", s.Position),
				zap.String("op", s.Op.Opcode.String()),
				zap.Stringer("type", t))
		}
		log.Debug("inference pass",
			zap.Int("pass", pass),
			zap.Int("resolved", len(pending)-len(remaining)),
			zap.Int("pending", len(remaining)))

		if len(remaining) == len(pending) {
			return errors.Inference(d.positions(remaining),
				fmt.Sprintf("ambiguous operand type for %d polymorphic instruction(s) at positions %v",
					len(remaining), d.positions(remaining)))
		}
		pending = remaining
	}
	return nil
}

func (d *Disassembly) positions(steps []int) []int {
	out := make([]int, len(steps))
	for i, si := range steps {
		out[i] = d.Steps[si].Position
	}
	return out
}

// provisional replays every step with relaxed verification and returns, per
// pending step, the values it consumed in each live state.
func (d *Disassembly) provisional() (map[int][][]*types.Type, error) {
	consumed := make(map[int][][]*types.Type)
	current := -1
	observe := func(_ int, _ *emit.Operation, m verify.Match) {
		if current >= 0 {
			consumed[current] = m.Consumed
		}
	}

	recv := d.Receiver
	if recv == nil {
		recv = d.hint
	}
	b := emit.NewBuilder(d.Name, d.signature(recv),
		emit.WithUnverifiable(true),
		emit.WithLocalReinit(false),
		emit.WithObserver(observe),
		emit.WithLogger(zap.NewNop()))
	rp, err := newReplayer(d, b)
	if err != nil {
		return nil, err
	}
	for i := range d.Steps {
		if d.Steps[i].Pending {
			current = i
		}
		err := d.Steps[i].Replay(rp)
		current = -1
		if err != nil {
			return nil, err
		}
	}
	return consumed, nil
}

// inferOperand folds the element types seen in every live state into their
// common supertype. It returns nil while no state offers a concrete type.
func inferOperand(code opcode.Opcode, consumed [][]*types.Type) *types.Type {
	var idx int
	var elem func(*types.Type) *types.Type
	switch code {
	case opcode.LdelemRef:
		idx, elem = 1, types.ElemOf
	case opcode.StelemRef:
		idx, elem = 2, types.ElemOf
	case opcode.LdindRef:
		idx, elem = 0, types.Deref
	case opcode.StindRef:
		idx, elem = 1, types.Deref
	default:
		return nil
	}

	var result *types.Type
	for _, values := range consumed {
		if idx >= len(values) {
			continue
		}
		t := elem(values[idx])
		if t == nil || !t.IsConcrete() || t.Kind == types.KindNull {
			continue
		}
		if result == nil {
			result = t
			continue
		}
		if result = types.CommonSupertype(result, t); result == nil {
			return nil
		}
	}
	return result
}
