// Package flow proves that every instruction position can reach a terminator.
package flow

import "github.com/wippyai/ilgen/opcode"

// Node is the control-flow summary of one instruction.
type Node struct {
	Targets []int // branch, leave and switch targets
	Flow    opcode.Flow
}

// Graph is a directed graph over positions 0..n. Position n stands for the
// end of the stream: it has no successors and is not a terminator.
type Graph struct {
	preds     [][]int
	terminals *BitSet
	n         int
}

// New creates a graph for n instructions with no edges.
func New(n int) *Graph {
	return &Graph{
		preds:     make([][]int, n+1),
		terminals: NewBitSet(n),
		n:         n,
	}
}

// Build creates the graph for nodes: fallthrough edges for instructions that
// fall through, an edge per target, and a terminal mark for terminators.
func Build(nodes []Node) *Graph {
	g := New(len(nodes))
	for pos, node := range nodes {
		if node.Flow.IsTerminator() {
			g.MarkTerminator(pos)
		}
		if node.Flow.FallsThrough() {
			g.AddEdge(pos, pos+1)
		}
		for _, t := range node.Targets {
			g.AddEdge(pos, t)
		}
	}
	return g
}

// AddEdge records that control may pass from one position to another.
func (g *Graph) AddEdge(from, to int) {
	if from < 0 || from > g.n || to < 0 || to > g.n {
		return
	}
	g.preds[to] = append(g.preds[to], from)
}

// MarkTerminator records that pos ends a path.
func (g *Graph) MarkTerminator(pos int) {
	g.terminals.Set(pos)
}

// Len returns the number of instruction positions.
func (g *Graph) Len() int {
	return g.n
}

// CanReach returns the positions from which some terminator is reachable,
// walking predecessor edges breadth first from every terminator.
func (g *Graph) CanReach() *BitSet {
	seen := NewBitSet(g.n)
	queue := make([]int, 0, g.n)
	for pos := 0; pos < g.n; pos++ {
		if g.terminals.Has(pos) {
			seen.Set(pos)
			queue = append(queue, pos)
		}
	}
	for len(queue) > 0 {
		pos := queue[0]
		queue = queue[1:]
		for _, p := range g.preds[pos] {
			if p < g.n && !seen.Has(p) {
				seen.Set(p)
				queue = append(queue, p)
			}
		}
	}
	return seen
}

// Check returns the first position that cannot reach a terminator. An empty
// graph fails at position 0 since control falls straight off the end.
func (g *Graph) Check() (int, bool) {
	if g.n == 0 {
		return 0, false
	}
	pos := g.CanReach().FirstClear(g.n)
	if pos < 0 {
		return 0, true
	}
	return pos, false
}
