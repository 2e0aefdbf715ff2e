package verify

import (
	"strings"

	"github.com/wippyai/ilgen/types"
)

// Transition is one alternative stack effect of an operation. Inputs[0] is the
// stack top and the deepest input is listed last. A trailing types.Drain input
// consumes whatever remains. Outputs are pushed in order, so the last output
// ends on top.
type Transition struct {
	// Derive, when set, computes the outputs from the consumed values
	// (top first) instead of Outputs.
	Derive  func(consumed []*types.Type) []*types.Type
	Inputs  []*types.Type
	Outputs []*types.Type

	// RequiresEmpty rejects states holding anything beyond Inputs.
	RequiresEmpty bool
}

// In builds a transition from inputs (top first) to outputs.
func In(inputs ...*types.Type) Transition {
	return Transition{Inputs: inputs}
}

// Out returns t with outputs set.
func (t Transition) Out(outputs ...*types.Type) Transition {
	t.Outputs = outputs
	return t
}

// Drains reports whether the transition consumes the whole stack.
func (t Transition) Drains() bool {
	n := len(t.Inputs)
	return n > 0 && t.Inputs[n-1].Kind == types.KindDrain
}

// MinDepth returns the number of known values a state must hold.
func (t Transition) MinDepth() int {
	if t.Drains() {
		return len(t.Inputs) - 1
	}
	return len(t.Inputs)
}

// String renders the transition with inputs bottom first, matching how
// stack states print.
func (t Transition) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i := len(t.Inputs) - 1; i >= 0; i-- {
		b.WriteString(t.Inputs[i].String())
		if i > 0 {
			b.WriteString(", ")
		}
	}
	b.WriteString("] -> ")
	if t.Derive != nil {
		b.WriteString("derived")
	} else {
		b.WriteString(types.FormatList(t.Outputs))
	}
	return b.String()
}

func formatTransitions(ts []Transition) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.String()
	}
	return out
}
