package metadata

import (
	"strings"

	"github.com/wippyai/ilgen/types"
)

// Resolver looks up types and members by their declared signature. The
// builder and disassembler depend only on this interface.
type Resolver interface {
	ResolveType(name string) (*types.Type, error)
	ResolveMethod(owner, name string, params []string) (*Method, error)
	ResolveField(owner, name string) (*Field, error)
}

// Method describes a callable member.
type Method struct {
	Owner       *types.Type
	Return      *types.Type
	Name        string
	Params      []*types.Type
	Static      bool
	Virtual     bool
	Constructor bool
}

// ReturnType returns the declared return type, treating nil as void.
func (m *Method) ReturnType() *types.Type {
	if m.Return == nil {
		return types.Void
	}
	return m.Return
}

// HasReceiver reports whether a call passes an instance as hidden first argument.
func (m *Method) HasReceiver() bool {
	return !m.Static
}

// ParamNames returns the rendered parameter type names.
func (m *Method) ParamNames() []string {
	names := make([]string, len(m.Params))
	for i, p := range m.Params {
		names[i] = p.String()
	}
	return names
}

// Signature renders "ret Owner::Name(p0, p1)".
func (m *Method) Signature() string {
	var b strings.Builder
	b.WriteString(m.ReturnType().String())
	b.WriteByte(' ')
	if m.Owner != nil {
		b.WriteString(m.Owner.String())
		b.WriteString("::")
	}
	b.WriteString(m.Name)
	b.WriteByte('(')
	b.WriteString(strings.Join(m.ParamNames(), ", "))
	b.WriteByte(')')
	return b.String()
}

// StackInputs returns the values a call consumes, stack top first. For
// instance members the receiver is the deepest input. Constructors invoked
// through newobj take no receiver from the stack; pass withReceiver=false.
func (m *Method) StackInputs(withReceiver bool) []*types.Type {
	n := len(m.Params)
	inputs := make([]*types.Type, 0, n+1)
	for i := n - 1; i >= 0; i-- {
		inputs = append(inputs, types.StackForm(m.Params[i]))
	}
	if withReceiver && m.HasReceiver() {
		recv := m.Owner
		if recv != nil && recv.Kind == types.KindValue {
			recv = types.ByRefTo(recv)
		}
		if recv == nil {
			recv = types.Object
		}
		inputs = append(inputs, recv)
	}
	return inputs
}

func (m *Method) String() string {
	return m.Signature()
}

// Field describes a data member.
type Field struct {
	Owner  *types.Type
	Type   *types.Type
	Name   string
	Static bool
}

func (f *Field) String() string {
	owner := "<global>"
	if f.Owner != nil {
		owner = f.Owner.String()
	}
	return f.Type.String() + " " + owner + "::" + f.Name
}
