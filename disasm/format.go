package disasm

import (
	"fmt"
	"strings"

	"github.com/wippyai/ilgen/opcode"
)

// String renders the disassembly as an indented listing.
func (d *Disassembly) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, ".routine %s %s", d.Name, d.Signature)
	if d.HasThis {
		recv := "?"
		if d.Receiver != nil {
			recv = d.Receiver.String()
		}
		fmt.Fprintf(&b, " instance %s", recv)
	}
	b.WriteByte('\n')
	for i, l := range d.Locals {
		fmt.Fprintf(&b, ".local %d %s %s\n", i, l.Type, l.Name)
	}

	depth := 0
	inBody := make(map[int]bool)
	line := func(s string) {
		b.WriteString(strings.Repeat("  ", depth))
		b.WriteString(s)
		b.WriteByte('\n')
	}
	for i := range d.Steps {
		s := &d.Steps[i]
		switch s.Kind {
		case StepOp:
			line(fmt.Sprintf("  IL_%04x: %s", s.Offset, d.Render(s)))
		case StepLabel:
			line(d.Labels[s.Label].Name + ":")
		case StepBeginBlock:
			line(".try {")
			inBody[s.Block] = true
			depth++
		case StepBeginCatch, StepBeginFinally:
			if inBody[s.Block] {
				depth--
				line("}")
				inBody[s.Block] = false
			}
			if s.Kind == StepBeginCatch {
				line("catch " + s.Catch.String() + " {")
			} else {
				line("finally {")
			}
			depth++
		case StepEndCatch, StepEndFinally:
			depth--
			line("}")
		}
	}
	return b.String()
}

// Render formats the instruction of an op step with label and local names.
func (d *Disassembly) Render(s *Step) string {
	info := s.Op.Opcode.Info()
	switch {
	case info.Operand == opcode.OperandSwitch:
		names := make([]string, len(s.Targets))
		for i, t := range s.Targets {
			names[i] = d.labelName(t)
		}
		return info.Name + " (" + strings.Join(names, ", ") + ")"
	case len(s.Targets) == 1:
		return info.Name + " " + d.labelName(s.Targets[0])
	case s.Local >= 0:
		name := fmt.Sprintf("loc%d", s.Local)
		if s.Local < len(d.Locals) && d.Locals[s.Local].Name != "" {
			name = d.Locals[s.Local].Name
		}
		return info.Name + " " + name
	}
	out := s.Op.String()
	if s.Pending {
		out += " <?>"
	}
	return out
}

func (d *Disassembly) labelName(idx int) string {
	if idx >= 0 && idx < len(d.Labels) {
		return d.Labels[idx].Name
	}
	return fmt.Sprintf("label%d", idx)
}
