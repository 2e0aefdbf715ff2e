package emit

import (
	"fmt"
	"strings"

	"github.com/wippyai/ilgen/types"
)

// Instruction is one finalized operation at its position.
type Instruction struct {
	Op       Operation
	Position int
}

// LabelInfo records where a label was marked.
type LabelInfo struct {
	Name     string
	Position int
}

// RegionInfo describes one exception region. Start and End are instruction
// positions, End exclusive. Block groups a protected region with its
// handlers; Parent is the index of the innermost enclosing region of another
// block, or -1.
type RegionInfo struct {
	CatchType *types.Type
	Kind      RegionKind
	Start     int
	End       int
	Block     int
	Parent    int
}

// LocalInfo describes a storage slot.
type LocalInfo struct {
	Type  *types.Type
	Name  string
	Index int
}

// Layout is the finalized routine handed to a writer.
type Layout struct {
	Signature    Signature
	Name         string
	Instructions []Instruction
	Labels       []LabelInfo
	Regions      []RegionInfo
	Locals       []LocalInfo
	TailCalls    []int // positions of inserted tail. prefixes
	MaxStack     int
}

// LabelsAt returns the names of labels marked at pos.
func (l *Layout) LabelsAt(pos int) []string {
	var names []string
	for _, li := range l.Labels {
		if li.Position == pos {
			names = append(names, li.Name)
		}
	}
	return names
}

func (l *Layout) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, ".routine %s %s\n", l.Name, l.Signature)
	fmt.Fprintf(&b, ".maxstack %d\n", l.MaxStack)
	for _, loc := range l.Locals {
		fmt.Fprintf(&b, ".local [%d] %s %s\n", loc.Index, loc.Type, loc.Name)
	}
	for _, ins := range l.Instructions {
		for _, r := range l.Regions {
			if r.Start == ins.Position {
				fmt.Fprintf(&b, "  // %s begin (block %d)\n", r.Kind, r.Block)
			}
		}
		for _, name := range l.LabelsAt(ins.Position) {
			fmt.Fprintf(&b, "%s:\n", name)
		}
		fmt.Fprintf(&b, "  %04d  %s\n", ins.Position, ins.Op.String())
	}
	for _, name := range l.LabelsAt(len(l.Instructions)) {
		fmt.Fprintf(&b, "%s:\n", name)
	}
	return b.String()
}
