package types

// AssignableTo reports whether a value of type src may occupy a slot that
// expects dst.
func AssignableTo(src, dst *Type) bool {
	if src == nil || dst == nil {
		return false
	}
	if src.Kind == KindWildcard || dst.Kind == KindWildcard || dst.Kind == KindDrain {
		return true
	}
	if Equal(src, dst) {
		return true
	}

	switch src.Kind {
	case KindNull:
		return dst.IsReference()
	case KindPointer:
		switch dst.Kind {
		case KindPointer:
			return elemMatches(src.Elem, dst.Elem)
		case KindNativeInt, KindNativeUInt:
			return true
		}
		return false
	case KindByRef:
		return dst.Kind == KindByRef && elemMatches(src.Elem, dst.Elem)
	case KindValue, KindVoid:
		return false
	}

	if src.IsNumeric() {
		return numericAssignable(StackForm(src), StackForm(dst))
	}

	if !src.IsReference() || !dst.IsReference() {
		return false
	}
	if dst.Kind == KindNull {
		return false
	}
	if Equal(dst, Object) {
		return true
	}

	switch dst.Kind {
	case KindArray:
		if src.Kind != KindArray {
			return false
		}
		return arrayElemAssignable(src.Elem, dst.Elem)
	case KindInterface:
		return implements(src, dst)
	case KindClass:
		if src.Kind != KindClass {
			return false
		}
		for cur := src.Base; cur != nil; cur = cur.Base {
			if Equal(cur, dst) {
				return true
			}
		}
	}
	return false
}

func numericAssignable(src, dst *Type) bool {
	if dst == nil || !dst.IsNumeric() {
		return false
	}
	if src.Kind == dst.Kind {
		return true
	}
	switch src.Kind {
	case KindNativeInt:
		return dst.Kind == KindInt32 || dst.Kind == KindInt64
	case KindInt32:
		return dst.Kind == KindNativeInt
	}
	return false
}

// elemMatches compares referents of pointers and by-refs. A wildcard on
// either side stands for any referent.
func elemMatches(src, dst *Type) bool {
	if src == nil || dst == nil {
		return false
	}
	if src.Kind == KindWildcard || dst.Kind == KindWildcard {
		return true
	}
	return Equal(src, dst)
}

func arrayElemAssignable(src, dst *Type) bool {
	if elemMatches(src, dst) {
		return true
	}
	if src.IsReference() && dst.IsReference() {
		return AssignableTo(src, dst)
	}
	return false
}

// implements reports whether src (a class, interface or array) satisfies the
// interface dst through its own declaration, its base chain or extended
// interfaces.
func implements(src, dst *Type) bool {
	seen := make(map[*Type]bool)
	var walk func(t *Type) bool
	walk = func(t *Type) bool {
		if t == nil || seen[t] {
			return false
		}
		seen[t] = true
		if Equal(t, dst) {
			return true
		}
		for _, iface := range t.Interfaces {
			if walk(iface) {
				return true
			}
		}
		return walk(t.Base)
	}
	return walk(src)
}

// CommonSupertype returns the most specific type that both a and b are
// assignable to, or nil when none exists. Wildcards and null defer to the
// other operand.
func CommonSupertype(a, b *Type) *Type {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case a.Kind == KindWildcard:
		return b
	case b.Kind == KindWildcard:
		return a
	case a.Kind == KindNull && b.IsReference():
		return b
	case b.Kind == KindNull && a.IsReference():
		return a
	}

	if a.IsNumeric() && b.IsNumeric() {
		sa, sb := StackForm(a), StackForm(b)
		if Equal(a, b) {
			return a
		}
		if sa.Kind == sb.Kind {
			return sa
		}
		if numericAssignable(sa, sb) {
			return sb
		}
		if numericAssignable(sb, sa) {
			return sa
		}
		return nil
	}

	if AssignableTo(a, b) && b.IsConcrete() {
		return b
	}
	if AssignableTo(b, a) && a.IsConcrete() {
		return a
	}

	if !a.IsReference() || !b.IsReference() {
		return nil
	}

	if a.Kind == KindArray && b.Kind == KindArray {
		if a.Elem.IsReference() && b.Elem.IsReference() {
			if elem := CommonSupertype(a.Elem, b.Elem); elem != nil {
				return ArrayOf(elem)
			}
		}
		return Object
	}

	if a.Kind == KindClass {
		for cur := a.Base; cur != nil; cur = cur.Base {
			if AssignableTo(b, cur) {
				return cur
			}
		}
	}
	return Object
}

// Deref returns the referent of a pointer or by-ref, or nil.
func Deref(t *Type) *Type {
	if t == nil {
		return nil
	}
	if t.Kind == KindPointer || t.Kind == KindByRef {
		return t.Elem
	}
	return nil
}

// ElemOf returns the element type of an array, or nil.
func ElemOf(t *Type) *Type {
	if t == nil || t.Kind != KindArray {
		return nil
	}
	return t.Elem
}
