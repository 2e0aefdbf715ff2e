package routine

import (
	"fmt"
	"strings"
)

// ClauseKind distinguishes exception handler clauses.
type ClauseKind uint8

const (
	ClauseCatch ClauseKind = iota
	ClauseFinally
)

func (k ClauseKind) String() string {
	switch k {
	case ClauseCatch:
		return "catch"
	case ClauseFinally:
		return "finally"
	}
	return fmt.Sprintf("clause(%d)", uint8(k))
}

// Clause is one handler of a protected range. Offsets are byte offsets into
// Code; ends are exclusive. Clauses are ordered innermost first and, within a
// protected range, in handler order.
type Clause struct {
	CatchType    string // type name; empty for finally
	Kind         ClauseKind
	TryStart     int
	TryEnd       int
	HandlerStart int
	HandlerEnd   int
}

func (c Clause) String() string {
	s := fmt.Sprintf(".try %04x to %04x %s", c.TryStart, c.TryEnd, c.Kind)
	if c.Kind == ClauseCatch {
		s += " " + c.CatchType
	}
	return s + fmt.Sprintf(" handler %04x to %04x", c.HandlerStart, c.HandlerEnd)
}

// TokenKind classifies metadata tokens.
type TokenKind uint8

const (
	TokenType TokenKind = iota
	TokenMethod
	TokenField
	TokenString
)

func (k TokenKind) String() string {
	switch k {
	case TokenType:
		return "type"
	case TokenMethod:
		return "method"
	case TokenField:
		return "field"
	case TokenString:
		return "string"
	}
	return fmt.Sprintf("token(%d)", uint8(k))
}

// Token is an entry of the routine's token table. Types, methods and fields
// are referenced by declared name and resolved through metadata on decode;
// strings carry their value.
type Token struct {
	Owner  string
	Name   string
	Value  string
	Params []string
	Kind   TokenKind
}

func (t Token) String() string {
	switch t.Kind {
	case TokenType:
		return t.Name
	case TokenMethod:
		name := t.Name
		if t.Owner != "" {
			name = t.Owner + "::" + name
		}
		return name + "(" + strings.Join(t.Params, ", ") + ")"
	case TokenField:
		if t.Owner != "" {
			return t.Owner + "::" + t.Name
		}
		return t.Name
	}
	return fmt.Sprintf("%q", t.Value)
}

func (t Token) key() string {
	return t.Kind.String() + "\x00" + t.Owner + "\x00" + t.Name + "\x00" + t.Value + "\x00" + strings.Join(t.Params, ",")
}

// LocalDesc declares one local slot.
type LocalDesc struct {
	Type string
	Name string
}

// Routine is a compiled routine: a signature, local slots, encoded
// instructions, exception clauses and the token table they reference.
//
// When HasThis is set argument 0 is the receiver of type Receiver and Params
// start at argument 1.
type Routine struct {
	Name     string
	Receiver string
	Return   string // "void" when nothing is returned
	Params   []string
	Locals   []LocalDesc
	Code     []byte
	Clauses  []Clause
	Tokens   []Token
	MaxStack int
	HasThis  bool
}

// Token returns the token with the given index.
func (r *Routine) Token(idx int) (Token, bool) {
	if idx < 0 || idx >= len(r.Tokens) {
		return Token{}, false
	}
	return r.Tokens[idx], true
}

// ArgCount returns the number of arguments including the receiver.
func (r *Routine) ArgCount() int {
	if r.HasThis {
		return len(r.Params) + 1
	}
	return len(r.Params)
}
