package verify

import (
	"strings"

	"github.com/wippyai/ilgen/types"
)

// StackState is one live operand stack shape. Values are ordered bottom to
// top. A baseless state knows only its top Values; anything beneath them is
// unconstrained.
type StackState struct {
	Values   []*types.Type
	Baseless bool
}

// Exact returns a fully known state holding values, bottom first.
func Exact(values ...*types.Type) StackState {
	return StackState{Values: values}
}

// Baseless returns a state with a typed prefix over an unknown remainder.
func Baseless(values ...*types.Type) StackState {
	return StackState{Values: values, Baseless: true}
}

// Depth returns the number of known values.
func (s StackState) Depth() int {
	return len(s.Values)
}

// Top returns the topmost known value, or nil.
func (s StackState) Top() *types.Type {
	if len(s.Values) == 0 {
		return nil
	}
	return s.Values[len(s.Values)-1]
}

// Clone returns a copy that shares no backing array with s.
func (s StackState) Clone() StackState {
	return StackState{Values: append([]*types.Type(nil), s.Values...), Baseless: s.Baseless}
}

// Equal reports whether both states have the same shape.
func (s StackState) Equal(o StackState) bool {
	if s.Baseless != o.Baseless || len(s.Values) != len(o.Values) {
		return false
	}
	for i := range s.Values {
		if !types.Equal(s.Values[i], o.Values[i]) {
			return false
		}
	}
	return true
}

func (s StackState) String() string {
	var b strings.Builder
	b.WriteByte('[')
	if s.Baseless {
		b.WriteString("..")
		if len(s.Values) > 0 {
			b.WriteString(", ")
		}
	}
	for i, v := range s.Values {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(v.String())
	}
	b.WriteByte(']')
	return b.String()
}

// Compatible reports whether control arriving with state from may join a
// point whose established state is to. Depths must agree and every value must
// be assignable slot by slot. A baseless target only constrains its typed top.
func Compatible(from, to StackState) bool {
	n := len(from.Values)
	if len(to.Values) != n {
		if !to.Baseless {
			return false
		}
		if !from.Baseless && n < len(to.Values) {
			return false
		}
		n = min(n, len(to.Values))
	}
	for i := 1; i <= n; i++ {
		if !types.AssignableTo(from.Values[len(from.Values)-i], to.Values[len(to.Values)-i]) {
			return false
		}
	}
	return true
}

// dedupe removes states equal to an earlier one, preserving order.
func dedupe(states []StackState) []StackState {
	out := states[:0:0]
	for _, s := range states {
		dup := false
		for _, o := range out {
			if o.Equal(s) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, s)
		}
	}
	return out
}

func formatStates(states []StackState) []string {
	out := make([]string, len(states))
	for i, s := range states {
		out[i] = s.String()
	}
	return out
}
