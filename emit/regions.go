package emit

import (
	"go.uber.org/zap"

	"github.com/wippyai/ilgen/emit/internal/region"
	"github.com/wippyai/ilgen/errors"
	"github.com/wippyai/ilgen/opcode"
	"github.com/wippyai/ilgen/types"
	"github.com/wippyai/ilgen/verify"
)

// RegionKind classifies exception regions in a Layout.
type RegionKind = region.Kind

const (
	RegionProtected = region.Protected
	RegionHandler   = region.Handler
	RegionCleanup   = region.Cleanup
)

// ExceptionBlock is an open or closed try block.
type ExceptionBlock struct {
	owner   *Builder
	end     *Label
	catches []*CatchBlock
	finally *FinallyBlock
	index   int
}

// EndLabel returns the label marked where the block ends. Leaves out of the
// body and handlers target it.
func (eb *ExceptionBlock) EndLabel() *Label {
	return eb.end
}

// CatchBlock is a handler region of an ExceptionBlock.
type CatchBlock struct {
	owner  *Builder
	block  *ExceptionBlock
	Type   *types.Type
	region int
}

// FinallyBlock is the cleanup region of an ExceptionBlock.
type FinallyBlock struct {
	owner  *Builder
	block  *ExceptionBlock
	region int
}

// BeginExceptionBlock opens a protected region at the next position. The
// stack must be empty.
func (b *Builder) BeginExceptionBlock() (*ExceptionBlock, error) {
	if b.closed {
		return nil, b.fail(errors.Closed("begin exception block"))
	}
	pos := len(b.ops)
	for _, s := range b.verifier.Live() {
		if s.Depth() > 0 {
			return nil, b.fail(errors.Structural(pos, "exception block entered with non-empty stack %s", s))
		}
	}
	end, err := b.DefineLabel("")
	if err != nil {
		return nil, err
	}
	eb := &ExceptionBlock{owner: b, end: end}
	eb.index = b.regions.Open(pos)
	b.blocks = append(b.blocks, eb)
	b.trace = append(b.trace, ".try {")
	b.log.Debug("exception block opened", zap.Int("block", eb.index), zap.Int("pos", pos))
	return eb, nil
}

// BeginCatchBlock opens a handler catching t. A nil t catches everything as
// object. A body or previous handler that can still fall through is closed
// with a leave to the block end. The handler starts with the exception on an
// otherwise unknown stack.
func (b *Builder) BeginCatchBlock(eb *ExceptionBlock, t *types.Type) (*CatchBlock, error) {
	if b.closed {
		return nil, b.fail(errors.Closed("begin catch block"))
	}
	if err := b.own(eb); err != nil {
		return nil, b.fail(err)
	}
	if t == nil {
		t = types.Object
	}
	if !t.IsReference() || t.Kind == types.KindNull {
		return nil, b.fail(errors.Structural(len(b.ops), "catch type %s is not a reference type", t))
	}
	if err := b.regions.CanOpenHandler(eb.index, len(b.ops)); err != nil {
		return nil, b.fail(err)
	}
	if err := b.leaveIfReachable(eb); err != nil {
		return nil, err
	}
	idx, err := b.regions.OpenHandler(eb.index, len(b.ops), t)
	if err != nil {
		return nil, b.fail(err)
	}
	cb := &CatchBlock{owner: b, block: eb, Type: t, region: idx}
	eb.catches = append(eb.catches, cb)
	b.verifier.SetLive(verify.Baseless(t))
	b.trace = append(b.trace, "} catch "+t.String()+" {")
	return cb, nil
}

// EndCatchBlock closes a handler, leaving to the block end if it can fall
// through.
func (b *Builder) EndCatchBlock(cb *CatchBlock) error {
	if b.closed {
		return b.fail(errors.Closed("end catch block"))
	}
	if err := b.own(cb); err != nil {
		return b.fail(err)
	}
	if err := b.leaveIfReachable(cb.block); err != nil {
		return err
	}
	if err := b.regions.CloseHandler(cb.region, len(b.ops)); err != nil {
		return b.fail(err)
	}
	b.verifier.Unreachable()
	return nil
}

// BeginFinallyBlock opens the cleanup region. The cleanup starts with an
// empty stack.
func (b *Builder) BeginFinallyBlock(eb *ExceptionBlock) (*FinallyBlock, error) {
	if b.closed {
		return nil, b.fail(errors.Closed("begin finally block"))
	}
	if err := b.own(eb); err != nil {
		return nil, b.fail(err)
	}
	if err := b.regions.CanOpenCleanup(eb.index, len(b.ops)); err != nil {
		return nil, b.fail(err)
	}
	if err := b.leaveIfReachable(eb); err != nil {
		return nil, err
	}
	idx, err := b.regions.OpenCleanup(eb.index, len(b.ops))
	if err != nil {
		return nil, b.fail(err)
	}
	fb := &FinallyBlock{owner: b, block: eb, region: idx}
	eb.finally = fb
	b.verifier.SetLive(verify.Exact())
	b.trace = append(b.trace, "} finally {")
	return fb, nil
}

// EndFinallyBlock closes the cleanup, appending endfinally if it can fall
// through.
func (b *Builder) EndFinallyBlock(fb *FinallyBlock) error {
	if b.closed {
		return b.fail(errors.Closed("end finally block"))
	}
	if err := b.own(fb); err != nil {
		return b.fail(err)
	}
	if b.verifier.IsReachable() {
		if err := b.Append(Operation{Opcode: opcode.Endfinally}); err != nil {
			return err
		}
	}
	if err := b.regions.CloseCleanup(fb.region, len(b.ops)); err != nil {
		return b.fail(err)
	}
	b.verifier.Unreachable()
	return nil
}

// EndExceptionBlock closes eb and marks its end label. Every handler and the
// cleanup must already be closed. When no leave targets the end and nothing
// falls through, the point after the block stays unreachable.
func (b *Builder) EndExceptionBlock(eb *ExceptionBlock) error {
	if b.closed {
		return b.fail(errors.Closed("end exception block"))
	}
	if err := b.own(eb); err != nil {
		return b.fail(err)
	}
	if err := b.regions.Close(eb.index, len(b.ops)); err != nil {
		return b.fail(err)
	}
	dead := !b.verifier.IsReachable() && len(eb.end.pending) == 0
	b.trace = append(b.trace, "}")
	if err := b.MarkLabel(eb.end); err != nil {
		return err
	}
	if dead {
		b.verifier.Unreachable()
	}
	return nil
}

// leaveIfReachable appends a leave to eb's end when the current point can
// fall through into the next region.
func (b *Builder) leaveIfReachable(eb *ExceptionBlock) error {
	if !b.verifier.IsReachable() {
		return nil
	}
	return b.Append(Operation{Opcode: opcode.Leave, Label: eb.end})
}
