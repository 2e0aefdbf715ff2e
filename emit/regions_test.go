package emit_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/ilgen/emit"
	"github.com/wippyai/ilgen/errors"
	"github.com/wippyai/ilgen/metadata"
	"github.com/wippyai/ilgen/opcode"
	"github.com/wippyai/ilgen/types"
)

func TestTryCatch(t *testing.T) {
	b := emit.NewBuilder("guarded", emit.Signature{})
	eb, err := b.BeginExceptionBlock()
	must(t, err)
	must(t, b.Emit(opcode.Nop))

	cb, err := b.BeginCatchBlock(eb, types.Exception)
	must(t, err)
	if got := b.Stack(); got != "[.., exception]" {
		t.Errorf("handler entry stack = %s", got)
	}
	must(t, b.Emit(opcode.Pop))
	must(t, b.EndCatchBlock(cb))
	must(t, b.EndExceptionBlock(eb))
	must(t, b.Emit(opcode.Ret))

	layout := finalize(t, b)
	if diff := cmp.Diff([]string{"nop", "leave _label0", "pop", "leave _label0", "ret"}, listing(layout)); diff != "" {
		t.Errorf("instructions mismatch (-want +got):\n%s", diff)
	}
	want := []emit.RegionInfo{
		{Kind: emit.RegionProtected, Start: 0, End: 2, Block: 0, Parent: -1},
		{Kind: emit.RegionHandler, Start: 2, End: 4, Block: 0, Parent: -1, CatchType: types.Exception},
	}
	if diff := cmp.Diff(want, layout.Regions); diff != "" {
		t.Errorf("regions mismatch (-want +got):\n%s", diff)
	}
}

func exceptionCtor() *metadata.Method {
	return &metadata.Method{Owner: types.Exception, Name: ".ctor", Constructor: true}
}

func TestTryFinally(t *testing.T) {
	b := emit.NewBuilder("cleanup", emit.Signature{})
	eb, err := b.BeginExceptionBlock()
	must(t, err)
	must(t, b.Emit(opcode.Nop))
	fb, err := b.BeginFinallyBlock(eb)
	must(t, err)
	if got := b.Stack(); got != "[]" {
		t.Errorf("cleanup entry stack = %s", got)
	}
	must(t, b.EndFinallyBlock(fb))
	must(t, b.EndExceptionBlock(eb))
	must(t, b.Emit(opcode.Ret))

	layout := finalize(t, b)
	if diff := cmp.Diff([]string{"nop", "leave _label0", "endfinally", "ret"}, listing(layout)); diff != "" {
		t.Errorf("instructions mismatch (-want +got):\n%s", diff)
	}
	if r := layout.Regions[1]; r.Kind != emit.RegionCleanup || r.Start != 2 || r.End != 3 {
		t.Errorf("cleanup region = %+v", r)
	}
}

func TestCatchAllIsObject(t *testing.T) {
	b := emit.NewBuilder("f", emit.Signature{})
	eb, _ := b.BeginExceptionBlock()
	must(t, b.Emit(opcode.Nop))
	cb, err := b.BeginCatchBlock(eb, nil)
	must(t, err)
	if !types.Equal(cb.Type, types.Object) {
		t.Errorf("catch type = %s, want object", cb.Type)
	}
	if _, err := b.BeginCatchBlock(eb, types.Int32); err == nil {
		t.Error("value catch type must be rejected")
	}
}

func TestPlainBranchOutOfTry(t *testing.T) {
	b := emit.NewBuilder("escape", emit.Signature{})
	outside, err := b.DefineLabel("outside")
	must(t, err)

	eb, err := b.BeginExceptionBlock()
	must(t, err)
	must(t, b.EmitBranch(opcode.Br, outside))
	cb, err := b.BeginCatchBlock(eb, types.Exception)
	must(t, err)
	must(t, b.Emit(opcode.Pop))
	must(t, b.EndCatchBlock(cb))
	must(t, b.EndExceptionBlock(eb))
	must(t, b.MarkLabel(outside))
	must(t, b.Emit(opcode.Ret))

	_, err = b.Finalize(emit.FinalizeOptions{})
	if !errors.Is(err, errors.ErrStructural) {
		t.Fatalf("expected structural error, got %v", err)
	}
	var e *errors.Error
	if errors.As(err, &e) && e.Position != 0 {
		t.Errorf("error position = %d, want the branch at #0", e.Position)
	}
}

func TestLeaveOutOfTry(t *testing.T) {
	b := emit.NewBuilder("escape", emit.Signature{})
	outside, _ := b.DefineLabel("outside")

	eb, _ := b.BeginExceptionBlock()
	must(t, b.EmitBranch(opcode.Leave, outside))
	cb, _ := b.BeginCatchBlock(eb, types.Exception)
	must(t, b.Emit(opcode.Pop))
	must(t, b.EmitBranch(opcode.Leave, outside))
	must(t, b.EndCatchBlock(cb))
	must(t, b.EndExceptionBlock(eb))
	must(t, b.MarkLabel(outside))
	must(t, b.Emit(opcode.Ret))

	layout := finalize(t, b)
	if len(layout.Instructions) != 4 {
		t.Errorf("instructions = %d, no automatic leave expected after an explicit one", len(layout.Instructions))
	}
}

func TestBranchIntoHandler(t *testing.T) {
	b := emit.NewBuilder("f", emit.Signature{})
	inside, _ := b.DefineLabel("inside")

	must(t, b.EmitInt(opcode.LdcI4, 0))
	must(t, b.EmitBranch(opcode.Brtrue, inside))
	eb, _ := b.BeginExceptionBlock()
	must(t, b.Emit(opcode.Nop))
	cb, _ := b.BeginCatchBlock(eb, types.Exception)
	must(t, b.Emit(opcode.Pop))
	must(t, b.MarkLabel(inside))
	must(t, b.EndCatchBlock(cb))
	must(t, b.EndExceptionBlock(eb))
	must(t, b.Emit(opcode.Ret))

	if _, err := b.Finalize(emit.FinalizeOptions{}); !errors.Is(err, errors.ErrStructural) {
		t.Fatalf("expected structural error, got %v", err)
	}
}

func TestBranchIntoProtectedRegion(t *testing.T) {
	build := func(atStart bool) error {
		b := emit.NewBuilder("f", emit.Signature{})
		target, _ := b.DefineLabel("target")
		must(t, b.EmitInt(opcode.LdcI4, 0))
		must(t, b.EmitBranch(opcode.Brtrue, target))
		eb, _ := b.BeginExceptionBlock()
		if atStart {
			must(t, b.MarkLabel(target))
		}
		must(t, b.Emit(opcode.Nop))
		if !atStart {
			must(t, b.MarkLabel(target))
		}
		must(t, b.Emit(opcode.Nop))
		cb, _ := b.BeginCatchBlock(eb, types.Exception)
		must(t, b.Emit(opcode.Pop))
		must(t, b.EndCatchBlock(cb))
		must(t, b.EndExceptionBlock(eb))
		must(t, b.Emit(opcode.Ret))
		_, err := b.Finalize(emit.FinalizeOptions{})
		return err
	}

	if err := build(true); err != nil {
		t.Errorf("branch to the first instruction of a try: %v", err)
	}
	if err := build(false); !errors.Is(err, errors.ErrStructural) {
		t.Errorf("branch into the middle of a try: %v", err)
	}
}

func TestRegionSensitiveOpcodes(t *testing.T) {
	t.Run("ret inside try", func(t *testing.T) {
		b := emit.NewBuilder("f", emit.Signature{})
		_, _ = b.BeginExceptionBlock()
		if err := b.Emit(opcode.Ret); !errors.Is(err, errors.ErrStructural) {
			t.Errorf("got %v", err)
		}
	})
	t.Run("rethrow outside catch", func(t *testing.T) {
		b := emit.NewBuilder("f", emit.Signature{})
		if err := b.Emit(opcode.Rethrow); !errors.Is(err, errors.ErrStructural) {
			t.Errorf("got %v", err)
		}
	})
	t.Run("rethrow inside catch", func(t *testing.T) {
		b := emit.NewBuilder("f", emit.Signature{})
		eb, _ := b.BeginExceptionBlock()
		must(t, b.Emit(opcode.Nop))
		cb, _ := b.BeginCatchBlock(eb, types.Exception)
		must(t, b.Emit(opcode.Rethrow))
		must(t, b.EndCatchBlock(cb))
		must(t, b.EndExceptionBlock(eb))
		must(t, b.Emit(opcode.Ret))
		finalize(t, b)
	})
	t.Run("endfinally outside finally", func(t *testing.T) {
		b := emit.NewBuilder("f", emit.Signature{})
		eb, _ := b.BeginExceptionBlock()
		must(t, b.Emit(opcode.Nop))
		_, _ = b.BeginCatchBlock(eb, types.Exception)
		if err := b.Emit(opcode.Endfinally); !errors.Is(err, errors.ErrStructural) {
			t.Errorf("got %v", err)
		}
	})
	t.Run("throw inside try", func(t *testing.T) {
		ctor := exceptionCtor()
		b := emit.NewBuilder("f", emit.Signature{})
		eb, _ := b.BeginExceptionBlock()
		must(t, b.EmitMethod(opcode.Newobj, ctor))
		must(t, b.Emit(opcode.Throw))
		fb, _ := b.BeginFinallyBlock(eb)
		must(t, b.EndFinallyBlock(fb))
		must(t, b.EndExceptionBlock(eb))
		must(t, b.Emit(opcode.Ret))
		layout := finalize(t, b)
		if len(layout.Instructions) != 4 {
			t.Errorf("instructions = %d, want newobj throw endfinally ret", len(layout.Instructions))
		}
	})
}

func TestExceptionBlockStateMachine(t *testing.T) {
	t.Run("non-empty stack on entry", func(t *testing.T) {
		b := emit.NewBuilder("f", emit.Signature{})
		must(t, b.EmitInt(opcode.LdcI4, 1))
		if _, err := b.BeginExceptionBlock(); !errors.Is(err, errors.ErrStructural) {
			t.Errorf("got %v", err)
		}
	})
	t.Run("block without handler", func(t *testing.T) {
		b := emit.NewBuilder("f", emit.Signature{})
		eb, _ := b.BeginExceptionBlock()
		must(t, b.Emit(opcode.Nop))
		if err := b.EndExceptionBlock(eb); !errors.Is(err, errors.ErrStructural) {
			t.Errorf("got %v", err)
		}
	})
	t.Run("second finally", func(t *testing.T) {
		b := emit.NewBuilder("f", emit.Signature{})
		eb, _ := b.BeginExceptionBlock()
		must(t, b.Emit(opcode.Nop))
		fb, _ := b.BeginFinallyBlock(eb)
		must(t, b.EndFinallyBlock(fb))
		if _, err := b.BeginFinallyBlock(eb); !errors.Is(err, errors.ErrStructural) {
			t.Errorf("got %v", err)
		}
		if _, err := b.BeginCatchBlock(eb, types.Exception); !errors.Is(err, errors.ErrStructural) {
			t.Errorf("catch after finally: %v", err)
		}
	})
	t.Run("unclosed block at finalize", func(t *testing.T) {
		b := emit.NewBuilder("f", emit.Signature{})
		eb, _ := b.BeginExceptionBlock()
		must(t, b.Emit(opcode.Nop))
		_, _ = b.BeginCatchBlock(eb, types.Exception)
		must(t, b.Emit(opcode.Throw))
		if _, err := b.Finalize(emit.FinalizeOptions{}); !errors.Is(err, errors.ErrStructural) {
			t.Errorf("got %v", err)
		}
	})
}

func TestNestedRegionParents(t *testing.T) {
	b := emit.NewBuilder("nested", emit.Signature{})
	outer, _ := b.BeginExceptionBlock()
	must(t, b.Emit(opcode.Nop))

	inner, _ := b.BeginExceptionBlock()
	must(t, b.Emit(opcode.Nop))
	icb, _ := b.BeginCatchBlock(inner, types.Exception)
	must(t, b.Emit(opcode.Pop))
	must(t, b.EndCatchBlock(icb))
	must(t, b.EndExceptionBlock(inner))

	ocb, _ := b.BeginCatchBlock(outer, nil)
	must(t, b.Emit(opcode.Pop))
	must(t, b.EndCatchBlock(ocb))
	must(t, b.EndExceptionBlock(outer))
	must(t, b.Emit(opcode.Ret))

	layout := finalize(t, b)
	want := []emit.RegionInfo{
		{Kind: emit.RegionProtected, Start: 0, End: 6, Block: 0, Parent: -1},
		{Kind: emit.RegionProtected, Start: 1, End: 3, Block: 1, Parent: 0},
		{Kind: emit.RegionHandler, Start: 3, End: 5, Block: 1, Parent: 0, CatchType: types.Exception},
		{Kind: emit.RegionHandler, Start: 6, End: 8, Block: 0, Parent: -1, CatchType: types.Object},
	}
	if diff := cmp.Diff(want, layout.Regions); diff != "" {
		t.Errorf("regions mismatch (-want +got):\n%s", diff)
	}
}

func TestNestedThrowingBlocks(t *testing.T) {
	b := emit.NewBuilder("rethrows", emit.Signature{})
	outer, err := b.BeginExceptionBlock()
	must(t, err)
	inner, err := b.BeginExceptionBlock()
	must(t, err)
	must(t, b.Emit(opcode.Ldnull))
	must(t, b.Emit(opcode.Throw))
	icb, err := b.BeginCatchBlock(inner, types.Exception)
	must(t, err)
	must(t, b.Emit(opcode.Rethrow))
	must(t, b.EndCatchBlock(icb))
	must(t, b.EndExceptionBlock(inner))
	if got := b.Stack(); got != "unreachable" {
		t.Errorf("stack after a block nothing leaves = %s, want unreachable", got)
	}

	ocb, err := b.BeginCatchBlock(outer, types.Exception)
	must(t, err)
	must(t, b.Emit(opcode.Rethrow))
	must(t, b.EndCatchBlock(ocb))
	must(t, b.EndExceptionBlock(outer))

	layout := finalize(t, b)
	if diff := cmp.Diff([]string{"ldnull", "throw", "rethrow", "rethrow"}, listing(layout)); diff != "" {
		t.Errorf("instructions mismatch (-want +got):\n%s", diff)
	}
	want := []emit.RegionInfo{
		{Kind: emit.RegionProtected, Start: 0, End: 3, Block: 0, Parent: -1},
		{Kind: emit.RegionProtected, Start: 0, End: 2, Block: 1, Parent: 0},
		{Kind: emit.RegionHandler, Start: 2, End: 3, Block: 1, Parent: 0, CatchType: types.Exception},
		{Kind: emit.RegionHandler, Start: 3, End: 4, Block: 0, Parent: -1, CatchType: types.Exception},
	}
	if diff := cmp.Diff(want, layout.Regions); diff != "" {
		t.Errorf("regions mismatch (-want +got):\n%s", diff)
	}
}

func TestRejectedHandlerAppendsNothing(t *testing.T) {
	b := emit.NewBuilder("f", emit.Signature{})
	outer, _ := b.BeginExceptionBlock()
	_, _ = b.BeginExceptionBlock()
	must(t, b.Emit(opcode.Nop))
	before := b.Len()

	if _, err := b.BeginCatchBlock(outer, types.Exception); !errors.Is(err, errors.ErrStructural) {
		t.Errorf("catch on the outer block: got %v", err)
	}
	if _, err := b.BeginFinallyBlock(outer); !errors.Is(err, errors.ErrStructural) {
		t.Errorf("finally on the outer block: got %v", err)
	}
	if b.Len() != before {
		t.Errorf("Len = %d after rejected handlers, want %d", b.Len(), before)
	}
	if got := b.Stack(); got != "[]" {
		t.Errorf("stack = %s, want []", got)
	}
}
