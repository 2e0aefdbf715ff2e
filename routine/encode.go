package routine

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/wippyai/ilgen/errors"
	"github.com/wippyai/ilgen/routine/internal/binary"
)

// Binary format header.
const (
	Magic   = "ILGR"
	Version = 1
)

// Section identifiers, in the order they must appear.
const (
	SectionSignature byte = 1
	SectionLocals    byte = 2
	SectionCode      byte = 3
	SectionClauses   byte = 4
	SectionTokens    byte = 5
)

const flagHasThis = 0x01

// Encode serializes the routine.
func (r *Routine) Encode() []byte {
	w := binary.NewWriter()
	w.WriteBytes([]byte(Magic))
	w.WriteU32LE(Version)

	sig := binary.NewWriter()
	sig.WriteName(r.Name)
	var flags byte
	if r.HasThis {
		flags |= flagHasThis
	}
	sig.Byte(flags)
	sig.WriteName(r.Receiver)
	sig.WriteName(r.Return)
	writeNames(sig, r.Params)
	sig.WriteU32(uint32(r.MaxStack))
	writeSection(w, SectionSignature, sig.Bytes())

	if len(r.Locals) > 0 {
		locals := binary.NewWriter()
		locals.WriteU32(uint32(len(r.Locals)))
		for _, l := range r.Locals {
			locals.WriteName(l.Type)
			locals.WriteName(l.Name)
		}
		writeSection(w, SectionLocals, locals.Bytes())
	}

	writeSection(w, SectionCode, r.Code)

	if len(r.Clauses) > 0 {
		clauses := binary.NewWriter()
		clauses.WriteU32(uint32(len(r.Clauses)))
		for _, c := range r.Clauses {
			clauses.Byte(byte(c.Kind))
			clauses.WriteU32(uint32(c.TryStart))
			clauses.WriteU32(uint32(c.TryEnd))
			clauses.WriteU32(uint32(c.HandlerStart))
			clauses.WriteU32(uint32(c.HandlerEnd))
			clauses.WriteName(c.CatchType)
		}
		writeSection(w, SectionClauses, clauses.Bytes())
	}

	if len(r.Tokens) > 0 {
		tokens := binary.NewWriter()
		tokens.WriteU32(uint32(len(r.Tokens)))
		for _, t := range r.Tokens {
			tokens.Byte(byte(t.Kind))
			tokens.WriteName(t.Owner)
			tokens.WriteName(t.Name)
			tokens.WriteName(t.Value)
			writeNames(tokens, t.Params)
		}
		writeSection(w, SectionTokens, tokens.Bytes())
	}
	return w.Bytes()
}

func writeSection(w *binary.Writer, id byte, data []byte) {
	w.Byte(id)
	w.WriteU32(uint32(len(data)))
	w.WriteBytes(data)
}

func writeNames(w *binary.Writer, names []string) {
	w.WriteU32(uint32(len(names)))
	for _, n := range names {
		w.WriteName(n)
	}
}

// Decode parses a routine produced by Encode. The instruction stream is not
// decoded here; see Instructions.
func Decode(data []byte) (*Routine, error) {
	r := binary.NewReader(bytes.NewReader(data))

	magic, err := r.ReadBytes(len(Magic))
	if err != nil {
		return nil, decodeError(r, "header", err)
	}
	if string(magic) != Magic {
		return nil, errors.InvalidData(errors.PhaseDecode, 0, "invalid routine magic")
	}
	version, err := r.ReadU32LE()
	if err != nil {
		return nil, decodeError(r, "header", err)
	}
	if version != Version {
		return nil, errors.InvalidData(errors.PhaseDecode, 4, fmt.Sprintf("unsupported routine version %d", version))
	}

	rt := &Routine{}
	var last byte
	for {
		id, err := r.ReadByte()
		if err != nil {
			if stderrors.Is(err, io.EOF) {
				break
			}
			return nil, decodeError(r, "section header", err)
		}
		if id <= last {
			return nil, errors.InvalidData(errors.PhaseDecode, r.Position()-1,
				fmt.Sprintf("section %d appears out of order", id))
		}
		last = id

		size, err := r.ReadU32()
		if err != nil {
			return nil, decodeError(r, "section size", err)
		}
		payload, err := r.ReadBytes(int(size))
		if err != nil {
			return nil, decodeError(r, "section data", err)
		}

		sr := binary.FromBytes(payload)
		switch id {
		case SectionSignature:
			err = parseSignature(sr, rt)
		case SectionLocals:
			err = parseLocals(sr, rt)
		case SectionCode:
			rt.Code = payload
		case SectionClauses:
			err = parseClauses(sr, rt)
		case SectionTokens:
			err = parseTokens(sr, rt)
		default:
			return nil, errors.InvalidData(errors.PhaseDecode, r.Position(), fmt.Sprintf("unknown section %d", id))
		}
		if err != nil {
			return nil, decodeError(sr, sectionName(id), err)
		}
		if id != SectionCode && sr.Remaining() > 0 {
			return nil, errors.InvalidData(errors.PhaseDecode, r.Position(),
				fmt.Sprintf("%s section has %d trailing bytes", sectionName(id), sr.Remaining()))
		}
	}
	if last < SectionSignature {
		return nil, errors.InvalidData(errors.PhaseDecode, r.Position(), "missing signature section")
	}
	return rt, nil
}

func decodeError(r *binary.Reader, section string, err error) error {
	return errors.New(errors.PhaseDecode, errors.KindInvalidData).
		Position(r.Position()).
		Cause(r.WrapError(section, err)).
		Detail("malformed %s", section).
		Build()
}

func sectionName(id byte) string {
	switch id {
	case SectionSignature:
		return "signature"
	case SectionLocals:
		return "locals"
	case SectionCode:
		return "code"
	case SectionClauses:
		return "clauses"
	case SectionTokens:
		return "tokens"
	}
	return fmt.Sprintf("section %d", id)
}

func parseSignature(r *binary.Reader, rt *Routine) error {
	var err error
	if rt.Name, err = r.ReadName(); err != nil {
		return err
	}
	flags, err := r.ReadByte()
	if err != nil {
		return err
	}
	rt.HasThis = flags&flagHasThis != 0
	if rt.Receiver, err = r.ReadName(); err != nil {
		return err
	}
	if rt.Return, err = r.ReadName(); err != nil {
		return err
	}
	if rt.Params, err = readNames(r); err != nil {
		return err
	}
	maxStack, err := r.ReadU32()
	if err != nil {
		return err
	}
	rt.MaxStack = int(maxStack)
	return nil
}

func parseLocals(r *binary.Reader, rt *Routine) error {
	n, err := readCount(r)
	if err != nil {
		return err
	}
	rt.Locals = make([]LocalDesc, n)
	for i := range rt.Locals {
		if rt.Locals[i].Type, err = r.ReadName(); err != nil {
			return err
		}
		if rt.Locals[i].Name, err = r.ReadName(); err != nil {
			return err
		}
	}
	return nil
}

func parseClauses(r *binary.Reader, rt *Routine) error {
	n, err := readCount(r)
	if err != nil {
		return err
	}
	rt.Clauses = make([]Clause, n)
	for i := range rt.Clauses {
		c := &rt.Clauses[i]
		kind, err := r.ReadByte()
		if err != nil {
			return err
		}
		if ClauseKind(kind) > ClauseFinally {
			return fmt.Errorf("clause %d: unknown kind %d", i, kind)
		}
		c.Kind = ClauseKind(kind)
		for _, dst := range []*int{&c.TryStart, &c.TryEnd, &c.HandlerStart, &c.HandlerEnd} {
			v, err := r.ReadU32()
			if err != nil {
				return err
			}
			*dst = int(v)
		}
		if c.CatchType, err = r.ReadName(); err != nil {
			return err
		}
	}
	return nil
}

func parseTokens(r *binary.Reader, rt *Routine) error {
	n, err := readCount(r)
	if err != nil {
		return err
	}
	rt.Tokens = make([]Token, n)
	for i := range rt.Tokens {
		t := &rt.Tokens[i]
		kind, err := r.ReadByte()
		if err != nil {
			return err
		}
		if TokenKind(kind) > TokenString {
			return fmt.Errorf("token %d: unknown kind %d", i, kind)
		}
		t.Kind = TokenKind(kind)
		if t.Owner, err = r.ReadName(); err != nil {
			return err
		}
		if t.Name, err = r.ReadName(); err != nil {
			return err
		}
		if t.Value, err = r.ReadName(); err != nil {
			return err
		}
		if t.Params, err = readNames(r); err != nil {
			return err
		}
	}
	return nil
}

// readCount reads a vector length, bounded by the bytes left so a corrupt
// count cannot force a huge allocation.
func readCount(r *binary.Reader) (int, error) {
	n, err := r.ReadU32()
	if err != nil {
		return 0, err
	}
	if rem := r.Remaining(); int64(n) > int64(rem) {
		return 0, fmt.Errorf("count %d exceeds %d remaining bytes", n, rem)
	}
	return int(n), nil
}

func readNames(r *binary.Reader) ([]string, error) {
	n, err := readCount(r)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	names := make([]string, n)
	for i := range names {
		if names[i], err = r.ReadName(); err != nil {
			return nil, err
		}
	}
	return names, nil
}
