package disasm_test

import (
	gomock "github.com/golang/mock/gomock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/wippyai/ilgen/disasm"
	"github.com/wippyai/ilgen/emit"
	"github.com/wippyai/ilgen/errors"
	"github.com/wippyai/ilgen/metadata"
	"github.com/wippyai/ilgen/opcode"
	"github.com/wippyai/ilgen/routine"
	"github.com/wippyai/ilgen/types"
)

type fixture struct {
	reg  *metadata.Registry
	dog  *types.Type
	zoo  *types.Type
	next *metadata.Method
	bark *metadata.Method
}

func newFixture() *fixture {
	f := &fixture{reg: metadata.NewRegistry()}
	var err error
	f.dog, err = f.reg.DefineClass("Dog", "")
	Expect(err).NotTo(HaveOccurred())
	f.zoo, err = f.reg.DefineClass("Zoo", "")
	Expect(err).NotTo(HaveOccurred())
	f.next = &metadata.Method{Owner: f.zoo, Name: "Next", Return: types.Int32, Static: true}
	Expect(f.reg.DefineMethod(f.next)).To(Succeed())
	f.bark = &metadata.Method{Owner: f.dog, Name: "Bark", Params: []*types.Type{types.String}, Virtual: true}
	Expect(f.reg.DefineMethod(f.bark)).To(Succeed())
	return f
}

func compile(b *emit.Builder, fin emit.FinalizeOptions, opts ...routine.Option) (*emit.Layout, *routine.Routine) {
	layout, err := b.Finalize(fin)
	Expect(err).NotTo(HaveOccurred())
	r, err := routine.Assemble(layout, opts...)
	Expect(err).NotTo(HaveOccurred())
	decoded, err := routine.Decode(r.Encode())
	Expect(err).NotTo(HaveOccurred())
	return layout, decoded
}

// replayed disassembles r, rebuilds it and compiles the result again.
func replayed(r *routine.Routine, res metadata.Resolver, recv *types.Type, opts ...routine.Option) (*disasm.Disassembly, *emit.Layout, *routine.Routine) {
	d, err := disasm.Disassemble(r, res)
	Expect(err).NotTo(HaveOccurred())
	if recv != nil {
		d.WithReceiver(recv)
	}
	b, err := d.Build()
	Expect(err).NotTo(HaveOccurred())
	layout, again := compile(b, emit.FinalizeOptions{}, opts...)
	return d, layout, again
}

func kinds(d *disasm.Disassembly) []disasm.StepKind {
	out := make([]disasm.StepKind, len(d.Steps))
	for i, s := range d.Steps {
		out[i] = s.Kind
	}
	return out
}

func opSteps(d *disasm.Disassembly) []disasm.Step {
	var out []disasm.Step
	for _, s := range d.Steps {
		if s.Kind == disasm.StepOp {
			out = append(out, s)
		}
	}
	return out
}

var _ = Describe("Round trip", func() {
	var f *fixture

	BeforeEach(func() {
		f = newFixture()
	})

	It("reproduces loops and locals", func() {
		b := emit.NewBuilder("sum", emit.Signature{Return: types.Int32, Params: []*types.Type{types.Int32}})
		acc, err := b.DeclareLocal(types.Int32, "acc")
		Expect(err).NotTo(HaveOccurred())
		top, _ := b.DefineLabel("top")
		done, _ := b.DefineLabel("done")
		Expect(b.EmitInt(opcode.LdcI4, 0)).To(Succeed())
		Expect(b.EmitLocal(opcode.Stloc, acc)).To(Succeed())
		Expect(b.MarkLabel(top)).To(Succeed())
		Expect(b.EmitArg(opcode.Ldarg, 0)).To(Succeed())
		Expect(b.EmitBranch(opcode.Brfalse, done)).To(Succeed())
		Expect(b.EmitLocal(opcode.Ldloc, acc)).To(Succeed())
		Expect(b.EmitArg(opcode.Ldarg, 0)).To(Succeed())
		Expect(b.Emit(opcode.Add)).To(Succeed())
		Expect(b.EmitLocal(opcode.Stloc, acc)).To(Succeed())
		Expect(b.EmitArg(opcode.Ldarg, 0)).To(Succeed())
		Expect(b.EmitInt(opcode.LdcI4, 1)).To(Succeed())
		Expect(b.Emit(opcode.Sub)).To(Succeed())
		Expect(b.EmitArg(opcode.Starg, 0)).To(Succeed())
		Expect(b.EmitBranch(opcode.Br, top)).To(Succeed())
		Expect(b.MarkLabel(done)).To(Succeed())
		Expect(b.EmitLocal(opcode.Ldloc, acc)).To(Succeed())
		Expect(b.Emit(opcode.Ret)).To(Succeed())
		first, r := compile(b, emit.FinalizeOptions{})

		d, second, again := replayed(r, f.reg, nil)
		Expect(again.Code).To(Equal(r.Code))
		Expect(again.MaxStack).To(Equal(r.MaxStack))
		Expect(again.Locals).To(Equal(r.Locals))
		Expect(second.Instructions).To(HaveLen(len(first.Instructions)))
		Expect(d.Labels).To(HaveLen(2))
		Expect(d.Locals).To(Equal([]disasm.Local{{Type: types.Int32, Name: "acc"}}))
	})

	It("deduplicates labels shared by several branches", func() {
		b := emit.NewBuilder("pick", emit.Signature{Return: types.Int32, Params: []*types.Type{types.Int32}})
		one, _ := b.DefineLabel("one")
		Expect(b.EmitArg(opcode.Ldarg, 0)).To(Succeed())
		Expect(b.EmitSwitch(one, one)).To(Succeed())
		Expect(b.EmitArg(opcode.Ldarg, 0)).To(Succeed())
		Expect(b.EmitBranch(opcode.Brtrue, one)).To(Succeed())
		Expect(b.EmitInt(opcode.LdcI4, 0)).To(Succeed())
		Expect(b.Emit(opcode.Ret)).To(Succeed())
		Expect(b.MarkLabel(one)).To(Succeed())
		Expect(b.EmitInt(opcode.LdcI4, 1)).To(Succeed())
		Expect(b.Emit(opcode.Ret)).To(Succeed())
		_, r := compile(b, emit.FinalizeOptions{})

		d, _, again := replayed(r, f.reg, nil)
		Expect(d.Labels).To(HaveLen(1))
		Expect(opSteps(d)[1].Targets).To(Equal([]int{0, 0}))
		Expect(d.Render(&opSteps(d)[1])).To(Equal("switch (" + d.Labels[0].Name + ", " + d.Labels[0].Name + ")"))
		Expect(again.Code).To(Equal(r.Code))
	})

	It("reproduces nested exception regions", func() {
		b := emit.NewBuilder("guarded", emit.Signature{})
		outer, err := b.BeginExceptionBlock()
		Expect(err).NotTo(HaveOccurred())
		Expect(b.Emit(opcode.Nop)).To(Succeed())
		fin, err := b.BeginFinallyBlock(outer)
		Expect(err).NotTo(HaveOccurred())
		inner, err := b.BeginExceptionBlock()
		Expect(err).NotTo(HaveOccurred())
		Expect(b.Emit(opcode.Nop)).To(Succeed())
		cb, err := b.BeginCatchBlock(inner, types.Exception)
		Expect(err).NotTo(HaveOccurred())
		Expect(b.Emit(opcode.Pop)).To(Succeed())
		Expect(b.EndCatchBlock(cb)).To(Succeed())
		Expect(b.EndExceptionBlock(inner)).To(Succeed())
		Expect(b.EndFinallyBlock(fin)).To(Succeed())
		Expect(b.EndExceptionBlock(outer)).To(Succeed())
		Expect(b.Emit(opcode.Ret)).To(Succeed())
		first, r := compile(b, emit.FinalizeOptions{})

		d, second, again := replayed(r, f.reg, nil)
		Expect(again.Code).To(Equal(r.Code))
		Expect(again.Clauses).To(Equal(r.Clauses))
		Expect(second.Regions).To(Equal(first.Regions))

		Expect(kinds(d)).To(Equal([]disasm.StepKind{
			disasm.StepBeginBlock,
			disasm.StepOp, disasm.StepOp,
			disasm.StepBeginFinally, disasm.StepBeginBlock,
			disasm.StepOp, disasm.StepOp,
			disasm.StepBeginCatch,
			disasm.StepOp, disasm.StepOp,
			disasm.StepEndCatch, disasm.StepEndBlock, disasm.StepLabel,
			disasm.StepOp,
			disasm.StepEndFinally, disasm.StepEndBlock, disasm.StepLabel,
			disasm.StepOp,
		}))

		listing := d.String()
		Expect(listing).To(ContainSubstring(".try {"))
		Expect(listing).To(ContainSubstring("finally {"))
		Expect(listing).To(ContainSubstring("catch exception {"))
	})

	It("keeps explicit tail prefixes", func() {
		b := emit.NewBuilder("forward", emit.Signature{Return: types.Int32})
		Expect(b.EmitMethod(opcode.Call, f.next)).To(Succeed())
		Expect(b.Emit(opcode.Ret)).To(Succeed())
		first, r := compile(b, emit.FinalizeOptions{TailCalls: true})
		Expect(first.TailCalls).To(Equal([]int{0}))

		d, second, again := replayed(r, f.reg, nil)
		Expect(again.Code).To(Equal(r.Code))
		Expect(opSteps(d)[0].Op.Opcode).To(Equal(opcode.Tail))
		Expect(opSteps(d)[1].Op.Method).To(BeIdenticalTo(f.next))
		Expect(second.Instructions).To(HaveLen(3))
	})
})

var _ = Describe("Round trip of routines without exits", func() {
	var f *fixture

	BeforeEach(func() {
		f = newFixture()
	})

	It("replays nested blocks whose every path throws", func() {
		r := &routine.Routine{
			Name:   "rethrows",
			Return: "void",
			Code:   []byte{0x14, 0x7A, 0xFE, 0x1A, 0xFE, 0x1A},
			Clauses: []routine.Clause{
				{Kind: routine.ClauseCatch, CatchType: "object", TryStart: 0, TryEnd: 2, HandlerStart: 2, HandlerEnd: 4},
				{Kind: routine.ClauseCatch, CatchType: "object", TryStart: 0, TryEnd: 4, HandlerStart: 4, HandlerEnd: 6},
			},
		}
		d, layout, again := replayed(r, f.reg, nil)
		Expect(kinds(d)).To(Equal([]disasm.StepKind{
			disasm.StepBeginBlock, disasm.StepBeginBlock, disasm.StepOp, disasm.StepOp,
			disasm.StepBeginCatch, disasm.StepOp, disasm.StepEndCatch, disasm.StepEndBlock,
			disasm.StepBeginCatch, disasm.StepOp, disasm.StepEndCatch, disasm.StepEndBlock,
		}))
		Expect(layout.Instructions).To(HaveLen(4))
		Expect(again.Code).To(Equal(r.Code))
		Expect(again.Clauses).To(Equal(r.Clauses))
	})

	It("replays a switch with an empty table", func() {
		b := emit.NewBuilder("noop", emit.Signature{})
		Expect(b.EmitInt(opcode.LdcI4, 0)).To(Succeed())
		Expect(b.EmitSwitch()).To(Succeed())
		Expect(b.Emit(opcode.Ret)).To(Succeed())
		_, r := compile(b, emit.FinalizeOptions{})

		d, _, again := replayed(r, f.reg, nil)
		Expect(d.Labels).To(BeEmpty())
		Expect(again.Code).To(Equal(r.Code))
	})
})

var _ = Describe("Polymorphic inference", func() {
	var f *fixture

	BeforeEach(func() {
		f = newFixture()
	})

	It("takes the element type of the consumed array", func() {
		b := emit.NewBuilder("first", emit.Signature{Return: types.String, Params: []*types.Type{types.ArrayOf(types.String)}})
		Expect(b.EmitArg(opcode.Ldarg, 0)).To(Succeed())
		Expect(b.EmitInt(opcode.LdcI4, 0)).To(Succeed())
		Expect(b.Emit(opcode.LdelemRef)).To(Succeed())
		Expect(b.Emit(opcode.Ret)).To(Succeed())
		_, r := compile(b, emit.FinalizeOptions{})

		d, err := disasm.Disassemble(r, f.reg)
		Expect(err).NotTo(HaveOccurred())
		ld := opSteps(d)[2]
		Expect(ld.Pending).To(BeFalse())
		Expect(ld.Op.Type.String()).To(Equal("string"))
		Expect(d.Render(&ld)).To(Equal("ldelem.ref <string>"))
	})

	It("resolves chained loads", func() {
		jagged := types.ArrayOf(types.ArrayOf(types.Object))
		b := emit.NewBuilder("corner", emit.Signature{Return: types.Object, Params: []*types.Type{jagged}})
		Expect(b.EmitArg(opcode.Ldarg, 0)).To(Succeed())
		Expect(b.EmitInt(opcode.LdcI4, 0)).To(Succeed())
		Expect(b.Emit(opcode.LdelemRef)).To(Succeed())
		Expect(b.EmitInt(opcode.LdcI4, 0)).To(Succeed())
		Expect(b.Emit(opcode.LdelemRef)).To(Succeed())
		Expect(b.Emit(opcode.Ret)).To(Succeed())
		_, r := compile(b, emit.FinalizeOptions{})

		d, _, again := replayed(r, f.reg, nil)
		ops := opSteps(d)
		Expect(ops[2].Op.Type.String()).To(Equal("object[]"))
		Expect(ops[4].Op.Type.String()).To(Equal("object"))
		Expect(again.Code).To(Equal(r.Code))
	})

	It("folds merged states into their common supertype", func() {
		sig := emit.Signature{
			Return: types.Object,
			Params: []*types.Type{types.Int32, types.ArrayOf(types.String), types.ArrayOf(f.dog)},
		}
		b := emit.NewBuilder("either", sig)
		other, _ := b.DefineLabel("other")
		join, _ := b.DefineLabel("join")
		Expect(b.EmitArg(opcode.Ldarg, 0)).To(Succeed())
		Expect(b.EmitBranch(opcode.Brfalse, other)).To(Succeed())
		Expect(b.EmitArg(opcode.Ldarg, 1)).To(Succeed())
		Expect(b.EmitBranch(opcode.Br, join)).To(Succeed())
		Expect(b.MarkLabel(other)).To(Succeed())
		Expect(b.EmitArg(opcode.Ldarg, 2)).To(Succeed())
		Expect(b.MarkLabel(join)).To(Succeed())
		Expect(b.EmitInt(opcode.LdcI4, 0)).To(Succeed())
		Expect(b.Emit(opcode.LdelemRef)).To(Succeed())
		Expect(b.Emit(opcode.Ret)).To(Succeed())
		_, r := compile(b, emit.FinalizeOptions{})

		d, _, again := replayed(r, f.reg, nil)
		Expect(types.Equal(opSteps(d)[6].Op.Type, types.Object)).To(BeTrue())
		Expect(again.Code).To(Equal(r.Code))
	})

	It("fails when no state offers a concrete type", func() {
		b := emit.NewBuilder("nothing", emit.Signature{})
		Expect(b.Emit(opcode.Ldnull)).To(Succeed())
		Expect(b.EmitInt(opcode.LdcI4, 0)).To(Succeed())
		Expect(b.Emit(opcode.LdelemRef)).To(Succeed())
		Expect(b.Emit(opcode.Pop)).To(Succeed())
		Expect(b.Emit(opcode.Ret)).To(Succeed())
		_, r := compile(b, emit.FinalizeOptions{})

		_, err := disasm.Disassemble(r, f.reg)
		Expect(errors.Is(err, errors.ErrInference)).To(BeTrue())
		var e *errors.Error
		Expect(errors.As(err, &e)).To(BeTrue())
		Expect(e.Value).To(Equal([]int{2}))
	})
})

var _ = Describe("Receiver", func() {
	var f *fixture

	BeforeEach(func() {
		f = newFixture()
	})

	It("requires the receiver type when argument 0 is read", func() {
		b := emit.NewBuilder("speak", emit.Signature{Params: []*types.Type{f.dog}})
		Expect(b.EmitArg(opcode.Ldarg, 0)).To(Succeed())
		Expect(b.EmitString(opcode.Ldstr, "woof")).To(Succeed())
		Expect(b.EmitMethod(opcode.Callvirt, f.bark)).To(Succeed())
		Expect(b.Emit(opcode.Ret)).To(Succeed())
		_, r := compile(b, emit.FinalizeOptions{}, routine.AsInstance())

		d, err := disasm.Disassemble(r, f.reg)
		Expect(err).NotTo(HaveOccurred())
		Expect(d.UsesReceiver).To(BeTrue())
		Expect(d.CanReplay()).To(BeFalse())

		_, err = d.Build()
		Expect(errors.Is(err, errors.ErrNotReplayable)).To(BeTrue())
		err = d.Replay(emit.NewBuilder("speak", emit.Signature{Params: []*types.Type{f.dog}}))
		Expect(errors.Is(err, errors.ErrNotReplayable)).To(BeTrue())

		_, _, again := replayed(r, f.reg, f.dog, routine.AsInstance())
		Expect(again.Code).To(Equal(r.Code))
		Expect(again.Receiver).To(Equal("Dog"))
	})

	It("replays instance routines that ignore the receiver", func() {
		b := emit.NewBuilder("echo", emit.Signature{Return: types.String, Params: []*types.Type{f.dog, types.String}})
		Expect(b.EmitArg(opcode.Ldarg, 1)).To(Succeed())
		Expect(b.Emit(opcode.Ret)).To(Succeed())
		_, r := compile(b, emit.FinalizeOptions{}, routine.AsInstance())

		d, err := disasm.Disassemble(r, f.reg)
		Expect(err).NotTo(HaveOccurred())
		Expect(d.UsesReceiver).To(BeFalse())
		Expect(d.CanReplay()).To(BeTrue())

		sig, err := d.BuilderSignature()
		Expect(err).NotTo(HaveOccurred())
		Expect(sig.Params).To(HaveLen(2))
		Expect(sig.Params[0]).To(BeIdenticalTo(types.Object))
	})

	It("accepts the receiver as an option", func() {
		b := emit.NewBuilder("self", emit.Signature{Return: f.dog, Params: []*types.Type{f.dog}})
		Expect(b.EmitArg(opcode.Ldarg, 0)).To(Succeed())
		Expect(b.Emit(opcode.Ret)).To(Succeed())
		_, r := compile(b, emit.FinalizeOptions{}, routine.AsInstance())

		d, err := disasm.Disassemble(r, f.reg, disasm.WithReceiver(f.dog))
		Expect(err).NotTo(HaveOccurred())
		Expect(d.CanReplay()).To(BeTrue())
		Expect(d.String()).To(ContainSubstring("instance Dog"))
	})
})

var _ = Describe("Decoding failures", func() {
	var f *fixture

	BeforeEach(func() {
		f = newFixture()
	})

	It("reports unresolved tokens", func() {
		r := &routine.Routine{
			Name:   "ghost",
			Return: "void",
			Code:   []byte{0x28, 0, 0, 0, 0, 0x2A},
			Tokens: []routine.Token{{Kind: routine.TokenMethod, Owner: "Cat", Name: "Meow"}},
		}
		_, err := disasm.Disassemble(r, f.reg)
		Expect(errors.KindOf(err)).To(Equal(errors.KindNotFound))
	})

	It("rejects undeclared locals", func() {
		r := &routine.Routine{Name: "bad", Return: "void", Code: []byte{0x06, 0x26, 0x2A}}
		_, err := disasm.Disassemble(r, f.reg)
		Expect(errors.KindOf(err)).To(Equal(errors.KindInvalidData))
	})

	It("rejects handlers detached from their protected range", func() {
		r := &routine.Routine{
			Name:   "gap",
			Return: "void",
			Code:   []byte{0x00, 0x00, 0x26, 0x2A},
			Clauses: []routine.Clause{
				{Kind: routine.ClauseCatch, CatchType: "object", TryStart: 0, TryEnd: 1, HandlerStart: 2, HandlerEnd: 3},
			},
		}
		_, err := disasm.Disassemble(r, f.reg)
		Expect(errors.KindOf(err)).To(Equal(errors.KindInvalidData))
	})
})

var _ = Describe("Resolver", func() {
	var (
		f        *fixture
		mockCtrl *gomock.Controller
		res      *MockResolver
	)

	BeforeEach(func() {
		f = newFixture()
		mockCtrl = gomock.NewController(GinkgoT())
		res = NewMockResolver(mockCtrl)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("resolves every descriptor through the injected resolver", func() {
		r := &routine.Routine{
			Name:     "probe",
			Receiver: "Dog",
			Return:   "int32",
			Params:   []string{"string"},
			Code:     []byte{0x28, 0, 0, 0, 0, 0x2A},
			Tokens:   []routine.Token{{Kind: routine.TokenMethod, Owner: "Zoo", Name: "Next"}},
			HasThis:  true,
		}
		res.EXPECT().ResolveType("int32").Return(types.Int32, nil)
		res.EXPECT().ResolveType("string").Return(types.String, nil)
		res.EXPECT().ResolveType("Dog").Return(f.dog, nil)
		res.EXPECT().ResolveMethod("Zoo", "Next", gomock.Any()).Return(f.next, nil)

		d, err := disasm.Disassemble(r, res)
		Expect(err).NotTo(HaveOccurred())
		Expect(d.UsesReceiver).To(BeFalse())
		Expect(d.Signature.Params).To(Equal([]*types.Type{types.String}))
		Expect(opSteps(d)[0].Op.Method).To(BeIdenticalTo(f.next))
	})

	It("wraps resolver failures as not found", func() {
		r := &routine.Routine{Name: "lost", Return: "Ghost", Code: []byte{0x2A}}
		res.EXPECT().ResolveType("Ghost").Return(nil, errors.NotFound(errors.PhaseResolve, "type", "Ghost"))

		_, err := disasm.Disassemble(r, res)
		Expect(errors.KindOf(err)).To(Equal(errors.KindNotFound))
		Expect(err.Error()).To(ContainSubstring("return type"))
	})
})
