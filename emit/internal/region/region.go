// Package region tracks exception-handling regions over instruction
// positions and checks branches against their boundaries.
//
// A block opens with a protected body, cycles through zero or more handlers,
// may add one cleanup, and then closes. Regions only open on the innermost
// open block, so intervals nest and never partially overlap.
package region

import (
	"fmt"

	"github.com/wippyai/ilgen/errors"
	"github.com/wippyai/ilgen/types"
)

// Kind distinguishes the three region shapes.
type Kind uint8

const (
	Protected Kind = iota // try body
	Handler               // catch
	Cleanup               // finally
)

func (k Kind) String() string {
	switch k {
	case Protected:
		return "protected"
	case Handler:
		return "handler"
	case Cleanup:
		return "cleanup"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Region is a half-open interval [Start, End). End is -1 while open.
type Region struct {
	CatchType *types.Type
	Block     int
	Start     int
	End       int
	Kind      Kind
}

// Contains reports whether pos lies inside a closed region.
func (r *Region) Contains(pos int) bool {
	return r.End >= 0 && pos >= r.Start && pos < r.End
}

func (r *Region) open() bool {
	return r.End < 0
}

func (r *Region) String() string {
	if r.open() {
		return fmt.Sprintf("%s [%d, ..)", r.Kind, r.Start)
	}
	return fmt.Sprintf("%s [%d, %d)", r.Kind, r.Start, r.End)
}

type blockState uint8

const (
	stateBody blockState = iota
	stateHandler
	stateBetween
	stateCleanup
	stateCleanupDone
	stateClosed
)

// Block groups a protected region with its handlers and cleanup.
type Block struct {
	Handlers []int // region indices in opening order
	Index    int
	Parent   int // enclosing block, or -1
	Body     int // protected region index
	Cleanup  int // region index, or -1
	Start    int
	End      int // -1 while open
	current  int // open handler or cleanup region, or -1
	state    blockState
}

// Closed reports whether the block has been closed.
func (b *Block) Closed() bool {
	return b.state == stateClosed
}

// Tracker is the region state machine for one routine.
type Tracker struct {
	regions []Region
	blocks  []*Block
	open    []int
}

// New creates an empty tracker.
func New() *Tracker {
	return &Tracker{}
}

// Open starts a block whose protected body begins at pos.
func (t *Tracker) Open(pos int) int {
	parent := -1
	if n := len(t.open); n > 0 {
		parent = t.open[n-1]
	}
	body := t.addRegion(Region{Kind: Protected, Start: pos, End: -1, Block: len(t.blocks)})
	b := &Block{
		Index:   len(t.blocks),
		Parent:  parent,
		Body:    body,
		Cleanup: -1,
		Start:   pos,
		End:     -1,
		current: -1,
	}
	t.blocks = append(t.blocks, b)
	t.open = append(t.open, b.Index)
	return b.Index
}

// OpenHandler starts a handler of block at pos. The protected body ends at the
// first handler or cleanup.
func (t *Tracker) OpenHandler(block, pos int, catchType *types.Type) (int, error) {
	if err := t.CanOpenHandler(block, pos); err != nil {
		return -1, err
	}
	b := t.blocks[block]
	t.endBody(b, pos)
	idx := t.addRegion(Region{Kind: Handler, Start: pos, End: -1, Block: block, CatchType: catchType})
	b.Handlers = append(b.Handlers, idx)
	b.current = idx
	b.state = stateHandler
	return idx, nil
}

// CanOpenHandler reports why OpenHandler would reject block, without
// changing any state.
func (t *Tracker) CanOpenHandler(block, pos int) error {
	b, err := t.innermost(block, pos, "begin handler")
	if err != nil {
		return err
	}
	switch b.state {
	case stateBody, stateBetween:
		return nil
	case stateHandler, stateCleanup:
		return errors.Structural(pos, "block %d: %s still open", block, &t.regions[b.current])
	}
	return errors.Structural(pos, "block %d: handler after cleanup", block)
}

// CloseHandler ends the open handler region at pos.
func (t *Tracker) CloseHandler(region, pos int) error {
	return t.closeCurrent(region, pos, Handler, stateBetween)
}

// OpenCleanup starts the cleanup of block at pos. A block has at most one.
func (t *Tracker) OpenCleanup(block, pos int) (int, error) {
	if err := t.CanOpenCleanup(block, pos); err != nil {
		return -1, err
	}
	b := t.blocks[block]
	t.endBody(b, pos)
	idx := t.addRegion(Region{Kind: Cleanup, Start: pos, End: -1, Block: block})
	b.Cleanup = idx
	b.current = idx
	b.state = stateCleanup
	return idx, nil
}

// CanOpenCleanup is the check OpenCleanup performs.
func (t *Tracker) CanOpenCleanup(block, pos int) error {
	b, err := t.innermost(block, pos, "begin cleanup")
	if err != nil {
		return err
	}
	switch b.state {
	case stateBody, stateBetween:
		return nil
	case stateHandler:
		return errors.Structural(pos, "block %d: %s still open", block, &t.regions[b.current])
	}
	return errors.Structural(pos, "block %d already has a cleanup region", block)
}

// CloseCleanup ends the open cleanup region at pos.
func (t *Tracker) CloseCleanup(region, pos int) error {
	return t.closeCurrent(region, pos, Cleanup, stateCleanupDone)
}

// Close ends block at pos. Every handler and the cleanup must be closed and
// at least one of them must exist.
func (t *Tracker) Close(block, pos int) error {
	b, err := t.innermost(block, pos, "end block")
	if err != nil {
		return err
	}
	switch b.state {
	case stateBody:
		return errors.Structural(pos, "block %d has no handler or cleanup", block)
	case stateHandler, stateCleanup:
		return errors.Structural(pos, "block %d: %s still open", block, &t.regions[b.current])
	}
	b.End = pos
	b.state = stateClosed
	t.open = t.open[:len(t.open)-1]
	return nil
}

// OpenBlocks returns the indices of blocks not yet closed, outermost first.
func (t *Tracker) OpenBlocks() []int {
	return append([]int(nil), t.open...)
}

// Block returns the block with the given index.
func (t *Tracker) Block(idx int) *Block {
	if idx < 0 || idx >= len(t.blocks) {
		return nil
	}
	return t.blocks[idx]
}

// Blocks returns every block in opening order.
func (t *Tracker) Blocks() []*Block {
	return t.blocks
}

// Regions returns every region in opening order.
func (t *Tracker) Regions() []Region {
	return t.regions
}

// Region returns the region with the given index.
func (t *Tracker) Region(idx int) *Region {
	if idx < 0 || idx >= len(t.regions) {
		return nil
	}
	return &t.regions[idx]
}

// Current returns the innermost open region at the end of the stream, or nil.
func (t *Tracker) Current() *Region {
	if len(t.open) == 0 {
		return nil
	}
	b := t.blocks[t.open[len(t.open)-1]]
	switch b.state {
	case stateHandler, stateCleanup:
		return &t.regions[b.current]
	case stateBody:
		return &t.regions[b.Body]
	}
	// between handlers: the enclosing block decides
	for i := len(t.open) - 2; i >= 0; i-- {
		outer := t.blocks[t.open[i]]
		switch outer.state {
		case stateHandler, stateCleanup:
			return &t.regions[outer.current]
		case stateBody:
			return &t.regions[outer.Body]
		}
	}
	return nil
}

// CurrentHandlerKind returns the kind of the innermost open handler or
// cleanup region, ignoring protected bodies.
func (t *Tracker) CurrentHandlerKind() (Kind, bool) {
	for i := len(t.open) - 1; i >= 0; i-- {
		b := t.blocks[t.open[i]]
		if b.state == stateHandler || b.state == stateCleanup {
			return t.regions[b.current].Kind, true
		}
	}
	return 0, false
}

// InsideAny reports whether an open region encloses the end of the stream.
func (t *Tracker) InsideAny() bool {
	return t.Current() != nil
}

// Containing returns the indices of closed regions containing pos, outermost
// first.
func (t *Tracker) Containing(pos int) []int {
	var out []int
	for i := range t.regions {
		if t.regions[i].Contains(pos) {
			out = append(out, i)
		}
	}
	// regions nest, so sorting by width orders them outermost first
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && t.width(out[j]) > t.width(out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// Innermost returns the index of the innermost closed region containing pos,
// or -1.
func (t *Tracker) Innermost(pos int) int {
	c := t.Containing(pos)
	if len(c) == 0 {
		return -1
	}
	return c[len(c)-1]
}

// CheckBranch validates a transfer from one position to another. Leaving a
// protected or handler region needs the region-exit instruction; a cleanup is
// never left by a transfer; handlers and cleanups are never entered; a
// protected region is entered only at its first position.
func (t *Tracker) CheckBranch(from, to int, isLeave bool) error {
	for _, idx := range t.Containing(from) {
		r := &t.regions[idx]
		if r.Contains(to) {
			continue
		}
		switch r.Kind {
		case Cleanup:
			return t.branchError(from, to, r, "exits")
		default:
			if !isLeave {
				return t.branchError(from, to, r, "exits")
			}
		}
	}
	for _, idx := range t.Containing(to) {
		r := &t.regions[idx]
		if r.Contains(from) {
			continue
		}
		if r.Kind != Protected || to != r.Start {
			return t.branchError(from, to, r, "enters")
		}
	}
	return nil
}

// Shift moves every bound greater than pos up by n.
func (t *Tracker) Shift(pos, n int) {
	for i := range t.regions {
		r := &t.regions[i]
		if r.Start > pos {
			r.Start += n
		}
		if r.End > pos {
			r.End += n
		}
	}
	for _, b := range t.blocks {
		if b.Start > pos {
			b.Start += n
		}
		if b.End > pos {
			b.End += n
		}
	}
}

func (t *Tracker) branchError(from, to int, r *Region, verb string) error {
	how := "branch"
	if r.Kind != Cleanup && verb == "exits" {
		how = "non-leave branch"
	}
	return errors.New(errors.PhaseStructure, errors.KindStructural).
		Position(from).
		Value(r).
		Detail("%s from #%d to #%d %s %s of block %d", how, from, to, verb, r, r.Block).
		Build()
}

func (t *Tracker) width(idx int) int {
	r := &t.regions[idx]
	return r.End - r.Start
}

func (t *Tracker) addRegion(r Region) int {
	t.regions = append(t.regions, r)
	return len(t.regions) - 1
}

func (t *Tracker) endBody(b *Block, pos int) {
	if body := &t.regions[b.Body]; body.open() {
		body.End = pos
	}
}

func (t *Tracker) innermost(block, pos int, what string) (*Block, error) {
	if block < 0 || block >= len(t.blocks) {
		return nil, errors.Structural(pos, "%s: unknown block %d", what, block)
	}
	b := t.blocks[block]
	if b.Closed() {
		return nil, errors.Structural(pos, "%s: block %d already closed", what, block)
	}
	if n := len(t.open); n == 0 || t.open[n-1] != block {
		return nil, errors.Structural(pos, "%s: block %d is not the innermost open block", what, block)
	}
	return b, nil
}

func (t *Tracker) closeCurrent(region, pos int, kind Kind, next blockState) error {
	if region < 0 || region >= len(t.regions) {
		return errors.Structural(pos, "unknown region %d", region)
	}
	r := &t.regions[region]
	if r.Kind != kind {
		return errors.Structural(pos, "region %d is a %s region, not %s", region, r.Kind, kind)
	}
	if !r.open() {
		return errors.Structural(pos, "%s already closed", r)
	}
	b, err := t.innermost(r.Block, pos, "end "+kind.String())
	if err != nil {
		return err
	}
	if b.current != region {
		return errors.Structural(pos, "%s is not the open region of block %d", r, r.Block)
	}
	r.End = pos
	b.current = -1
	b.state = next
	return nil
}
