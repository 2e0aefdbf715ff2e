package routine

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/wippyai/ilgen/errors"
	"github.com/wippyai/ilgen/opcode"
	"github.com/wippyai/ilgen/routine/internal/binary"
)

// RawInstruction is one decoded instruction. Macro and short forms are
// normalized: Opcode is always canonical and Int carries the implicit or
// widened operand.
type RawInstruction struct {
	Targets []int // absolute byte offsets of branch targets
	Float   float64
	Int     int64 // immediate, argument or local index, or token index
	Offset  int
	Size    int
	Code    opcode.Opcode // as encoded
	Opcode  opcode.Opcode // canonical
}

// Info returns the canonical opcode's table entry.
func (ri *RawInstruction) Info() *opcode.Info {
	return ri.Opcode.Info()
}

// Instructions decodes Code linearly. Branch targets and clause bounds must
// fall on instruction boundaries or at the end of the code.
func (r *Routine) Instructions() ([]RawInstruction, error) {
	rd := binary.FromBytes(r.Code)
	var out []RawInstruction
	for rd.Remaining() > 0 {
		ri, err := r.decodeOne(rd)
		if err != nil {
			return nil, err
		}
		out = append(out, ri)
	}

	boundary := make(map[int]bool, len(out)+1)
	for _, ri := range out {
		boundary[ri.Offset] = true
	}
	boundary[len(r.Code)] = true
	for _, ri := range out {
		for _, t := range ri.Targets {
			if !boundary[t] {
				return nil, errors.InvalidData(errors.PhaseDecode, ri.Offset,
					fmt.Sprintf("%s targets offset %#x inside an instruction", ri.Code, t))
			}
		}
	}
	for i, c := range r.Clauses {
		for _, off := range []int{c.TryStart, c.TryEnd, c.HandlerStart, c.HandlerEnd} {
			if !boundary[off] {
				return nil, errors.InvalidData(errors.PhaseDecode, off,
					fmt.Sprintf("clause %d bound %#x is not an instruction boundary", i, off))
			}
		}
		if c.TryStart >= c.TryEnd || c.HandlerStart >= c.HandlerEnd {
			return nil, errors.InvalidData(errors.PhaseDecode, c.TryStart,
				fmt.Sprintf("clause %d has an empty range", i))
		}
	}
	return out, nil
}

func (r *Routine) decodeOne(rd *binary.Reader) (RawInstruction, error) {
	start := rd.Position()
	fail := func(detail string) error {
		return errors.InvalidData(errors.PhaseDecode, start, detail)
	}

	b, err := rd.ReadByte()
	if err != nil {
		return RawInstruction{}, fail(err.Error())
	}
	code := opcode.Opcode(b)
	if b == 0xFE {
		b2, err := rd.ReadByte()
		if err != nil {
			return RawInstruction{}, fail("truncated two-byte opcode")
		}
		code = opcode.Prefix | opcode.Opcode(b2)
	}
	info, ok := opcode.Lookup(code)
	if !ok {
		return RawInstruction{}, fail(fmt.Sprintf("unknown opcode 0x%X", uint16(code)))
	}
	canon, implicit, hasImplicit := opcode.Canonical(code)
	ri := RawInstruction{Offset: start, Code: code, Opcode: canon}
	if hasImplicit {
		ri.Int = implicit
	}

	truncated := func(err error) error {
		return errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, rd.WrapError(info.Name, err),
			fmt.Sprintf("truncated %s operand at %#x", info.Name, start))
	}
	switch info.Operand {
	case opcode.OperandInt8:
		v, err := rd.ReadByte()
		if err != nil {
			return ri, truncated(err)
		}
		ri.Int = int64(int8(v))
	case opcode.OperandVar8:
		v, err := rd.ReadByte()
		if err != nil {
			return ri, truncated(err)
		}
		ri.Int = int64(v)
	case opcode.OperandVar16:
		v, err := rd.ReadU16LE()
		if err != nil {
			return ri, truncated(err)
		}
		ri.Int = int64(v)
	case opcode.OperandInt32:
		v, err := rd.ReadU32LE()
		if err != nil {
			return ri, truncated(err)
		}
		ri.Int = int64(int32(v))
	case opcode.OperandInt64:
		v, err := rd.ReadU64LE()
		if err != nil {
			return ri, truncated(err)
		}
		ri.Int = int64(v)
	case opcode.OperandFloat32:
		v, err := rd.ReadU32LE()
		if err != nil {
			return ri, truncated(err)
		}
		ri.Float = float64(math.Float32frombits(v))
	case opcode.OperandFloat64:
		v, err := rd.ReadU64LE()
		if err != nil {
			return ri, truncated(err)
		}
		ri.Float = math.Float64frombits(v)
	case opcode.OperandBranch8:
		v, err := rd.ReadByte()
		if err != nil {
			return ri, truncated(err)
		}
		ri.Targets = []int{rd.Position() + int(int8(v))}
	case opcode.OperandBranch32:
		v, err := rd.ReadU32LE()
		if err != nil {
			return ri, truncated(err)
		}
		ri.Targets = []int{rd.Position() + int(int32(v))}
	case opcode.OperandSwitch:
		n, err := rd.ReadU32LE()
		if err != nil {
			return ri, truncated(err)
		}
		if rem := rd.Remaining(); int64(n)*4 > int64(rem) {
			return ri, fail(fmt.Sprintf("switch with %d targets exceeds the code", n))
		}
		disps := make([]int32, n)
		for i := range disps {
			v, err := rd.ReadU32LE()
			if err != nil {
				return ri, truncated(err)
			}
			disps[i] = int32(v)
		}
		end := rd.Position()
		ri.Targets = make([]int, n)
		for i, d := range disps {
			ri.Targets[i] = end + int(d)
		}
	case opcode.OperandType, opcode.OperandMethod, opcode.OperandField, opcode.OperandString:
		v, err := rd.ReadU32LE()
		if err != nil {
			return ri, truncated(err)
		}
		tok, ok := r.Token(int(v))
		if !ok {
			return ri, fail(fmt.Sprintf("%s references missing token %d", info.Name, v))
		}
		if tok.Kind != tokenKindFor(info.Operand) {
			return ri, fail(fmt.Sprintf("%s references a %s token", info.Name, tok.Kind))
		}
		ri.Int = int64(v)
	}
	ri.Size = rd.Position() - start
	return ri, nil
}

func tokenKindFor(k opcode.OperandKind) TokenKind {
	switch k {
	case opcode.OperandMethod:
		return TokenMethod
	case opcode.OperandField:
		return TokenField
	case opcode.OperandString:
		return TokenString
	}
	return TokenType
}

// Format renders ri with resolved tokens and absolute branch targets.
func (r *Routine) Format(ri RawInstruction) string {
	info := ri.Code.Info()
	var b strings.Builder
	fmt.Fprintf(&b, "IL_%04x: %s", ri.Offset, info.Name)
	switch {
	case info.Operand.IsBranch() || info.Operand == opcode.OperandSwitch:
		names := make([]string, len(ri.Targets))
		for i, t := range ri.Targets {
			names[i] = fmt.Sprintf("IL_%04x", t)
		}
		if info.Operand == opcode.OperandSwitch {
			b.WriteString(" (" + strings.Join(names, ", ") + ")")
		} else {
			b.WriteString(" " + names[0])
		}
	case info.Operand.IsToken():
		tok, _ := r.Token(int(ri.Int))
		b.WriteString(" " + tok.String())
	case info.Operand == opcode.OperandFloat32 || info.Operand == opcode.OperandFloat64:
		b.WriteString(" " + strconv.FormatFloat(ri.Float, 'g', -1, 64))
	case info.Operand != opcode.OperandNone:
		b.WriteString(" " + strconv.FormatInt(ri.Int, 10))
	}
	return b.String()
}
