package routine

import (
	"fmt"
	"math"
	"sort"

	"github.com/wippyai/ilgen/emit"
	"github.com/wippyai/ilgen/errors"
	"github.com/wippyai/ilgen/opcode"
	"github.com/wippyai/ilgen/routine/internal/binary"
	"github.com/wippyai/ilgen/types"
)

// Option configures Assemble.
type Option func(*assembleOptions)

type assembleOptions struct {
	instance bool
}

// AsInstance marks the routine as an instance routine: the first parameter
// of the layout signature becomes the receiver.
func AsInstance() Option {
	return func(o *assembleOptions) {
		o.instance = true
	}
}

// Assemble encodes a finalized layout. Every instruction is written in its
// long form; branch displacements are relative to the end of the branch
// instruction.
func Assemble(layout *emit.Layout, opts ...Option) (*Routine, error) {
	var o assembleOptions
	for _, opt := range opts {
		opt(&o)
	}

	r := &Routine{
		Name:     layout.Name,
		Return:   layout.Signature.ReturnType().String(),
		MaxStack: layout.MaxStack,
	}
	params := layout.Signature.Params
	if o.instance {
		if len(params) == 0 {
			return nil, errors.New(errors.PhaseBuild, errors.KindInvalidData).
				Detail("instance routine %q has no receiver parameter", layout.Name).Build()
		}
		r.HasThis = true
		r.Receiver = params[0].String()
		params = params[1:]
	}
	for _, p := range params {
		r.Params = append(r.Params, p.String())
	}
	for _, l := range layout.Locals {
		r.Locals = append(r.Locals, LocalDesc{Type: l.Type.String(), Name: l.Name})
	}

	a := &assembler{layout: layout, tokens: make(map[string]int)}
	if err := a.computeOffsets(); err != nil {
		return nil, err
	}
	code, err := a.encode()
	if err != nil {
		return nil, err
	}
	r.Code = code
	r.Tokens = a.table
	r.Clauses = a.clauses()
	return r, nil
}

type assembler struct {
	layout  *emit.Layout
	tokens  map[string]int
	table   []Token
	offsets []int // byte offset of each position; the extra entry is the code size
}

func (a *assembler) computeOffsets() error {
	ins := a.layout.Instructions
	a.offsets = make([]int, len(ins)+1)
	off := 0
	for i := range ins {
		op := &ins[i].Op
		info, ok := opcode.Lookup(op.Opcode)
		if !ok {
			return errors.New(errors.PhaseBuild, errors.KindInvalidData).
				Position(i).Detail("unknown opcode 0x%X", uint16(op.Opcode)).Build()
		}
		if !info.IsCanonical() {
			return errors.New(errors.PhaseBuild, errors.KindInvalidData).
				Op(info.Name).Position(i).Detail("layout holds a short form").Build()
		}
		a.offsets[i] = off
		off += op.Opcode.Size() + operandSize(info, op)
	}
	a.offsets[len(ins)] = off
	return nil
}

func operandSize(info *opcode.Info, op *emit.Operation) int {
	if info.Operand == opcode.OperandSwitch {
		return 4 + 4*len(op.Labels)
	}
	return info.Operand.Size()
}

func (a *assembler) offset(pos int) int {
	if pos < 0 || pos >= len(a.offsets) {
		return a.offsets[len(a.offsets)-1]
	}
	return a.offsets[pos]
}

func (a *assembler) encode() ([]byte, error) {
	w := binary.NewWriter()
	for i := range a.layout.Instructions {
		op := &a.layout.Instructions[i].Op
		info := op.Opcode.Info()
		if op.Opcode&opcode.Prefix == opcode.Prefix {
			w.Byte(0xFE)
		}
		w.Byte(byte(op.Opcode))

		next := a.offsets[i+1]
		switch info.Operand {
		case opcode.OperandInt8:
			w.Byte(byte(int8(op.Int)))
		case opcode.OperandInt32:
			w.WriteU32LE(uint32(int32(op.Int)))
		case opcode.OperandInt64:
			w.WriteU64LE(uint64(op.Int))
		case opcode.OperandFloat32:
			w.WriteU32LE(math.Float32bits(float32(op.Float)))
		case opcode.OperandFloat64:
			w.WriteU64LE(math.Float64bits(op.Float))
		case opcode.OperandBranch8:
			w.Byte(byte(int8(a.offset(op.Label.Position()) - next)))
		case opcode.OperandBranch32:
			w.WriteU32LE(uint32(int32(a.offset(op.Label.Position()) - next)))
		case opcode.OperandSwitch:
			w.WriteU32LE(uint32(len(op.Labels)))
			for _, l := range op.Labels {
				w.WriteU32LE(uint32(int32(a.offset(l.Position()) - next)))
			}
		case opcode.OperandVar8, opcode.OperandVar16:
			idx := op.Arg
			if op.Local != nil {
				idx = op.Local.Index()
			}
			limit := math.MaxUint16
			if info.Operand == opcode.OperandVar8 {
				limit = math.MaxUint8
			}
			if idx < 0 || idx > limit {
				return nil, errors.New(errors.PhaseBuild, errors.KindInvalidData).
					Op(info.Name).Position(i).Detail("slot index %d out of range", idx).Build()
			}
			if info.Operand == opcode.OperandVar8 {
				w.Byte(byte(idx))
			} else {
				w.WriteU16LE(uint16(idx))
			}
		case opcode.OperandType, opcode.OperandMethod, opcode.OperandField, opcode.OperandString:
			tok, err := tokenFor(op, info)
			if err != nil {
				return nil, errors.New(errors.PhaseBuild, errors.KindInvalidData).
					Op(info.Name).Position(i).Detail("%v", err).Build()
			}
			w.WriteU32LE(uint32(a.token(tok)))
		}
	}
	return w.Bytes(), nil
}

func tokenFor(op *emit.Operation, info *opcode.Info) (Token, error) {
	switch info.Operand {
	case opcode.OperandType:
		if op.Type == nil {
			return Token{}, fmt.Errorf("missing type operand")
		}
		return Token{Kind: TokenType, Name: op.Type.String()}, nil
	case opcode.OperandMethod:
		m := op.Method
		if m == nil {
			return Token{}, fmt.Errorf("missing method operand")
		}
		tok := Token{Kind: TokenMethod, Owner: typeName(m.Owner), Name: m.Name}
		if len(m.Params) > 0 {
			tok.Params = m.ParamNames()
		}
		return tok, nil
	case opcode.OperandField:
		f := op.Field
		if f == nil {
			return Token{}, fmt.Errorf("missing field operand")
		}
		return Token{Kind: TokenField, Owner: typeName(f.Owner), Name: f.Name}, nil
	}
	return Token{Kind: TokenString, Value: op.Str}, nil
}

func typeName(t *types.Type) string {
	if t == nil {
		return ""
	}
	return t.String()
}

// token interns tok and returns its index.
func (a *assembler) token(tok Token) int {
	k := tok.key()
	if idx, ok := a.tokens[k]; ok {
		return idx
	}
	idx := len(a.table)
	a.table = append(a.table, tok)
	a.tokens[k] = idx
	return idx
}

// clauses converts the layout regions into handler clauses, innermost block
// first.
func (a *assembler) clauses() []Clause {
	type block struct {
		clauses    []Clause
		start, end int
	}
	byIndex := make(map[int]*block)
	var blocks []*block
	bodies := make(map[int]emit.RegionInfo)
	for _, r := range a.layout.Regions {
		if r.Kind == emit.RegionProtected {
			bodies[r.Block] = r
		}
	}
	for _, r := range a.layout.Regions {
		if r.Kind == emit.RegionProtected {
			continue
		}
		body := bodies[r.Block]
		b, ok := byIndex[r.Block]
		if !ok {
			b = &block{start: body.Start}
			byIndex[r.Block] = b
			blocks = append(blocks, b)
		}
		c := Clause{
			Kind:         ClauseCatch,
			TryStart:     a.offset(body.Start),
			TryEnd:       a.offset(body.End),
			HandlerStart: a.offset(r.Start),
			HandlerEnd:   a.offset(r.End),
		}
		if r.Kind == emit.RegionCleanup {
			c.Kind = ClauseFinally
		} else {
			c.CatchType = typeName(r.CatchType)
		}
		b.clauses = append(b.clauses, c)
		b.end = max(b.end, r.End)
	}

	sort.SliceStable(blocks, func(i, j int) bool {
		if blocks[i].end != blocks[j].end {
			return blocks[i].end < blocks[j].end
		}
		return blocks[i].start > blocks[j].start
	})
	var out []Clause
	for _, b := range blocks {
		out = append(out, b.clauses...)
	}
	return out
}
