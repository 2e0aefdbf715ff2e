package types

import "strings"

// Kind identifies the shape of a value occupying a stack slot, local or parameter.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindVoid
	KindBool
	KindChar
	KindInt8
	KindUInt8
	KindInt16
	KindUInt16
	KindInt32
	KindUInt32
	KindInt64
	KindUInt64
	KindNativeInt
	KindNativeUInt
	KindFloat32
	KindFloat64
	KindValue     // user-defined value type
	KindClass     // reference type with single inheritance
	KindInterface // reference type implemented by classes
	KindArray     // single-dimension zero-based array
	KindPointer   // unmanaged pointer
	KindByRef     // managed pointer
	KindNull      // type of the null literal
	KindWildcard  // matches any type
	KindDrain     // consumes the whole remaining stack
)

var kindNames = [...]string{
	KindInvalid:    "invalid",
	KindVoid:       "void",
	KindBool:       "bool",
	KindChar:       "char",
	KindInt8:       "int8",
	KindUInt8:      "uint8",
	KindInt16:      "int16",
	KindUInt16:     "uint16",
	KindInt32:      "int32",
	KindUInt32:     "uint32",
	KindInt64:      "int64",
	KindUInt64:     "uint64",
	KindNativeInt:  "native int",
	KindNativeUInt: "native uint",
	KindFloat32:    "float32",
	KindFloat64:    "float64",
	KindValue:      "valuetype",
	KindClass:      "class",
	KindInterface:  "interface",
	KindArray:      "array",
	KindPointer:    "pointer",
	KindByRef:      "byref",
	KindNull:       "null",
	KindWildcard:   "*",
	KindDrain:      "...",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "invalid"
}

// Type describes a value. Named kinds (Value, Class, Interface) carry Name,
// composite kinds (Array, Pointer, ByRef) carry Elem.
type Type struct {
	Elem       *Type
	Base       *Type
	Name       string
	Interfaces []*Type
	Kind       Kind
}

// Predeclared types.
var (
	Void       = &Type{Kind: KindVoid, Name: "void"}
	Bool       = &Type{Kind: KindBool, Name: "bool"}
	Char       = &Type{Kind: KindChar, Name: "char"}
	Int8       = &Type{Kind: KindInt8, Name: "int8"}
	UInt8      = &Type{Kind: KindUInt8, Name: "uint8"}
	Int16      = &Type{Kind: KindInt16, Name: "int16"}
	UInt16     = &Type{Kind: KindUInt16, Name: "uint16"}
	Int32      = &Type{Kind: KindInt32, Name: "int32"}
	UInt32     = &Type{Kind: KindUInt32, Name: "uint32"}
	Int64      = &Type{Kind: KindInt64, Name: "int64"}
	UInt64     = &Type{Kind: KindUInt64, Name: "uint64"}
	NativeInt  = &Type{Kind: KindNativeInt, Name: "native int"}
	NativeUInt = &Type{Kind: KindNativeUInt, Name: "native uint"}
	Float32    = &Type{Kind: KindFloat32, Name: "float32"}
	Float64    = &Type{Kind: KindFloat64, Name: "float64"}

	Object    = &Type{Kind: KindClass, Name: "object"}
	String    = &Type{Kind: KindClass, Name: "string", Base: Object}
	Exception = &Type{Kind: KindClass, Name: "exception", Base: Object}

	// Null is the type of the null reference literal.
	Null = &Type{Kind: KindNull, Name: "null"}

	// Wildcard matches any type. It stands for operands whose type is not
	// known until inference runs.
	Wildcard = &Type{Kind: KindWildcard, Name: "*"}

	// Drain, as the deepest input of a transition, consumes the rest of the stack.
	Drain = &Type{Kind: KindDrain, Name: "..."}
)

// Primitives lists predeclared non-reference types by name.
var Primitives = []*Type{
	Void, Bool, Char, Int8, UInt8, Int16, UInt16, Int32, UInt32,
	Int64, UInt64, NativeInt, NativeUInt, Float32, Float64,
}

// NewClass creates a reference type. A nil base defaults to Object.
func NewClass(name string, base *Type, interfaces ...*Type) *Type {
	if base == nil {
		base = Object
	}
	return &Type{Kind: KindClass, Name: name, Base: base, Interfaces: interfaces}
}

// NewInterface creates an interface type.
func NewInterface(name string, extends ...*Type) *Type {
	return &Type{Kind: KindInterface, Name: name, Interfaces: extends}
}

// NewValue creates a user-defined value type.
func NewValue(name string) *Type {
	return &Type{Kind: KindValue, Name: name}
}

// ArrayOf returns the array type with the given element.
func ArrayOf(elem *Type) *Type {
	return &Type{Kind: KindArray, Elem: elem}
}

// PointerTo returns the unmanaged pointer type to elem.
func PointerTo(elem *Type) *Type {
	return &Type{Kind: KindPointer, Elem: elem}
}

// ByRefTo returns the managed pointer type to elem.
func ByRefTo(elem *Type) *Type {
	return &Type{Kind: KindByRef, Elem: elem}
}

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case KindArray:
		return t.Elem.String() + "[]"
	case KindPointer:
		return t.Elem.String() + "*"
	case KindByRef:
		return t.Elem.String() + "&"
	}
	if t.Name != "" {
		return t.Name
	}
	return t.Kind.String()
}

// Equal reports structural identity. Named types compare by kind and name.
func Equal(a, b *Type) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindArray, KindPointer, KindByRef:
		return Equal(a.Elem, b.Elem)
	}
	return a.Name == b.Name
}

// IsReference reports whether values of t are object references.
func (t *Type) IsReference() bool {
	switch t.Kind {
	case KindClass, KindInterface, KindArray, KindNull:
		return true
	}
	return false
}

// IsInteger reports whether t is an integer kind, including bool and char.
func (t *Type) IsInteger() bool {
	return t.Kind >= KindBool && t.Kind <= KindNativeUInt
}

// IsFloat reports whether t is a floating point kind.
func (t *Type) IsFloat() bool {
	return t.Kind == KindFloat32 || t.Kind == KindFloat64
}

// IsNumeric reports whether t is an integer or floating point kind.
func (t *Type) IsNumeric() bool {
	return t.IsInteger() || t.IsFloat()
}

// IsSentinel reports whether t is Wildcard or Drain.
func (t *Type) IsSentinel() bool {
	return t.Kind == KindWildcard || t.Kind == KindDrain
}

// IsConcrete reports whether t contains no wildcard anywhere in its structure.
func (t *Type) IsConcrete() bool {
	for cur := t; cur != nil; cur = cur.Elem {
		if cur.IsSentinel() {
			return false
		}
	}
	return true
}

// StackForm returns the type a value of t has once pushed on the operand stack.
// Small integers widen to int32, unsigned 64-bit to int64, native uint to native
// int and float32 to float64.
func StackForm(t *Type) *Type {
	if t == nil {
		return nil
	}
	switch t.Kind {
	case KindBool, KindChar, KindInt8, KindUInt8, KindInt16, KindUInt16, KindInt32, KindUInt32:
		return Int32
	case KindInt64, KindUInt64:
		return Int64
	case KindNativeInt, KindNativeUInt:
		return NativeInt
	case KindFloat32, KindFloat64:
		return Float64
	}
	return t
}

// FormatList renders a type list as "[a, b, c]".
func FormatList(ts []*Type) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, t := range ts {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(t.String())
	}
	b.WriteByte(']')
	return b.String()
}
