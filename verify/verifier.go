package verify

import (
	"strings"

	"github.com/wippyai/ilgen/errors"
	"github.com/wippyai/ilgen/types"
)

// Match reports the transition chosen by Apply. Consumed holds, per live
// state in order, the values the transition popped, top first. Values taken
// from beneath a baseless prefix are reported as types.Wildcard.
type Match struct {
	Consumed [][]*types.Type
	Index    int
}

// Verifier tracks the live stack states at the current program point.
type Verifier struct {
	live     []StackState
	maxStack int
}

// NewVerifier creates a verifier. With no initial states it starts from a
// single empty exact stack.
func NewVerifier(initial ...StackState) *Verifier {
	v := &Verifier{}
	if len(initial) == 0 {
		initial = []StackState{Exact()}
	}
	v.SetLive(initial...)
	return v
}

// Live returns copies of the live states.
func (v *Verifier) Live() []StackState {
	out := make([]StackState, len(v.live))
	for i, s := range v.live {
		out[i] = s.Clone()
	}
	return out
}

// SetLive replaces the live set. Duplicate states collapse.
func (v *Verifier) SetLive(states ...StackState) {
	cloned := make([]StackState, len(states))
	for i, s := range states {
		cloned[i] = s.Clone()
	}
	v.live = dedupe(cloned)
	v.track()
}

// Unreachable clears the live set after an unconditional transfer.
func (v *Verifier) Unreachable() {
	v.live = nil
}

// IsReachable reports whether any state is live.
func (v *Verifier) IsReachable() bool {
	return len(v.live) > 0
}

// MaxStack returns the highest depth any live state has reached.
func (v *Verifier) MaxStack() int {
	return v.maxStack
}

// Apply checks transitions against every live state and applies the first
// one all of them satisfy. Nothing changes on failure. An unreachable point
// is treated as a single empty exact stack.
func (v *Verifier) Apply(name string, transitions []Transition) (Match, error) {
	live := v.live
	if len(live) == 0 {
		live = []StackState{Exact()}
	}

	for idx, t := range transitions {
		consumed := make([][]*types.Type, len(live))
		ok := true
		for i, s := range live {
			c, matched, _ := satisfies(s, t)
			if !matched {
				ok = false
				break
			}
			consumed[i] = c
		}
		if !ok {
			continue
		}

		next := make([]StackState, len(live))
		for i, s := range live {
			next[i] = apply(s, t, consumed[i])
		}
		v.live = dedupe(next)
		v.track()
		return Match{Index: idx, Consumed: consumed}, nil
	}

	expected := formatTransitions(transitions)
	actual := formatStates(live)
	if underflows(live, transitions) {
		return Match{}, errors.StackUnderflow(name, -1, expected, actual)
	}
	return Match{}, errors.TypeMismatch(name, -1, expected, actual)
}

// underflows reports whether some exact live state is shorter than every
// alternative requires.
func underflows(live []StackState, transitions []Transition) bool {
	if len(transitions) == 0 {
		return false
	}
	for _, s := range live {
		if s.Baseless {
			continue
		}
		short := true
		for _, t := range transitions {
			if s.Depth() >= t.MinDepth() {
				short = false
				break
			}
		}
		if short {
			return true
		}
	}
	return false
}

func (v *Verifier) track() {
	for _, s := range v.live {
		if d := s.Depth(); d > v.maxStack {
			v.maxStack = d
		}
	}
}

func (v *Verifier) String() string {
	if len(v.live) == 0 {
		return "unreachable"
	}
	return strings.Join(formatStates(v.live), " | ")
}

// satisfies matches t against s, returning the consumed values top first.
// short is set when s lacks the values t needs.
func satisfies(s StackState, t Transition) (consumed []*types.Type, ok, short bool) {
	n := len(s.Values)
	for i, in := range t.Inputs {
		if in.Kind == types.KindDrain {
			for j := n - 1 - i; j >= 0; j-- {
				consumed = append(consumed, s.Values[j])
			}
			return consumed, true, false
		}
		idx := n - 1 - i
		if idx < 0 {
			if !s.Baseless {
				return nil, false, true
			}
			consumed = append(consumed, types.Wildcard)
			continue
		}
		if !types.AssignableTo(s.Values[idx], in) {
			return nil, false, false
		}
		consumed = append(consumed, s.Values[idx])
	}
	if t.RequiresEmpty && n > len(t.Inputs) {
		return nil, false, false
	}
	return consumed, true, false
}

func apply(s StackState, t Transition, consumed []*types.Type) StackState {
	var values []*types.Type
	baseless := s.Baseless
	if t.Drains() {
		baseless = false
	} else if keep := len(s.Values) - len(t.Inputs); keep > 0 {
		values = append(values, s.Values[:keep]...)
	}

	outputs := t.Outputs
	if t.Derive != nil {
		outputs = t.Derive(consumed)
	}
	for _, out := range outputs {
		values = append(values, types.StackForm(out))
	}
	return StackState{Values: values, Baseless: baseless}
}
