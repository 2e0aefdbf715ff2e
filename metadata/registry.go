package metadata

import (
	"strings"

	"github.com/wippyai/ilgen/errors"
	"github.com/wippyai/ilgen/types"
)

// Registry is an in-memory Resolver. Primitive names and object, string and
// exception are predeclared.
type Registry struct {
	types   map[string]*types.Type
	methods map[string]*Method
	fields  map[string]*Field
	order   []string
}

// NewRegistry creates a registry holding only the predeclared types.
func NewRegistry() *Registry {
	r := &Registry{
		types:   make(map[string]*types.Type),
		methods: make(map[string]*Method),
		fields:  make(map[string]*Field),
	}
	for _, t := range types.Primitives {
		r.types[t.Name] = t
	}
	for _, t := range []*types.Type{types.Object, types.String, types.Exception} {
		r.types[t.Name] = t
	}
	return r
}

// ResolveType resolves a type name. Trailing "[]", "&" and "*" build arrays,
// by-refs and pointers of the prefix.
func (r *Registry) ResolveType(name string) (*types.Type, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return nil, errors.NotFound(errors.PhaseResolve, "type", name)
	case strings.HasSuffix(name, "[]"):
		elem, err := r.ResolveType(name[:len(name)-2])
		if err != nil {
			return nil, err
		}
		return types.ArrayOf(elem), nil
	case strings.HasSuffix(name, "&"):
		elem, err := r.ResolveType(name[:len(name)-1])
		if err != nil {
			return nil, err
		}
		return types.ByRefTo(elem), nil
	case strings.HasSuffix(name, "*") && name != "*":
		elem, err := r.ResolveType(name[:len(name)-1])
		if err != nil {
			return nil, err
		}
		return types.PointerTo(elem), nil
	}
	if t, ok := r.types[name]; ok {
		return t, nil
	}
	return nil, errors.NotFound(errors.PhaseResolve, "type", name)
}

// ResolveMethod finds a method by owner, name and exact parameter type names.
func (r *Registry) ResolveMethod(owner, name string, params []string) (*Method, error) {
	key := methodKey(owner, name, params)
	if m, ok := r.methods[key]; ok {
		return m, nil
	}
	return nil, errors.NotFound(errors.PhaseResolve, "method", key)
}

// ResolveField finds a field by owner and name.
func (r *Registry) ResolveField(owner, name string) (*Field, error) {
	key := owner + "::" + name
	if f, ok := r.fields[key]; ok {
		return f, nil
	}
	return nil, errors.NotFound(errors.PhaseResolve, "field", key)
}

// DefineClass registers a class. An empty base means object.
func (r *Registry) DefineClass(name, base string, interfaces ...string) (*types.Type, error) {
	if err := r.checkNew(name); err != nil {
		return nil, err
	}
	var baseType *types.Type
	if base != "" {
		bt, err := r.ResolveType(base)
		if err != nil {
			return nil, err
		}
		if bt.Kind != types.KindClass {
			return nil, errors.New(errors.PhaseConfig, errors.KindInvalidData).
				Detail("base of %s must be a class, got %s", name, bt).Build()
		}
		baseType = bt
	}
	ifaces, err := r.resolveInterfaces(name, interfaces)
	if err != nil {
		return nil, err
	}
	t := types.NewClass(name, baseType, ifaces...)
	r.add(t)
	return t, nil
}

// DefineInterface registers an interface extending the named interfaces.
func (r *Registry) DefineInterface(name string, extends ...string) (*types.Type, error) {
	if err := r.checkNew(name); err != nil {
		return nil, err
	}
	ifaces, err := r.resolveInterfaces(name, extends)
	if err != nil {
		return nil, err
	}
	t := types.NewInterface(name, ifaces...)
	r.add(t)
	return t, nil
}

// DefineValue registers a value type.
func (r *Registry) DefineValue(name string) (*types.Type, error) {
	if err := r.checkNew(name); err != nil {
		return nil, err
	}
	t := types.NewValue(name)
	r.add(t)
	return t, nil
}

// DefineMethod registers m under its owner, name and parameter list.
func (r *Registry) DefineMethod(m *Method) error {
	if m == nil || m.Name == "" {
		return errors.New(errors.PhaseConfig, errors.KindInvalidData).Detail("method needs a name").Build()
	}
	key := methodKey(ownerName(m.Owner), m.Name, m.ParamNames())
	if _, dup := r.methods[key]; dup {
		return errors.New(errors.PhaseConfig, errors.KindInvalidData).
			Detail("method %s already defined", key).Build()
	}
	r.methods[key] = m
	return nil
}

// DefineField registers f under its owner and name.
func (r *Registry) DefineField(f *Field) error {
	if f == nil || f.Name == "" || f.Type == nil {
		return errors.New(errors.PhaseConfig, errors.KindInvalidData).Detail("field needs a name and type").Build()
	}
	key := ownerName(f.Owner) + "::" + f.Name
	if _, dup := r.fields[key]; dup {
		return errors.New(errors.PhaseConfig, errors.KindInvalidData).
			Detail("field %s already defined", key).Build()
	}
	r.fields[key] = f
	return nil
}

// TypeNames returns user-defined type names in definition order.
func (r *Registry) TypeNames() []string {
	return append([]string(nil), r.order...)
}

func (r *Registry) add(t *types.Type) {
	r.types[t.Name] = t
	r.order = append(r.order, t.Name)
}

func (r *Registry) checkNew(name string) error {
	if name == "" || strings.ContainsAny(name, "[]&*") {
		return errors.New(errors.PhaseConfig, errors.KindInvalidData).
			Detail("invalid type name %q", name).Build()
	}
	if _, dup := r.types[name]; dup {
		return errors.New(errors.PhaseConfig, errors.KindInvalidData).
			Detail("type %s already defined", name).Build()
	}
	return nil
}

func (r *Registry) resolveInterfaces(owner string, names []string) ([]*types.Type, error) {
	ifaces := make([]*types.Type, 0, len(names))
	for _, n := range names {
		it, err := r.ResolveType(n)
		if err != nil {
			return nil, err
		}
		if it.Kind != types.KindInterface {
			return nil, errors.New(errors.PhaseConfig, errors.KindInvalidData).
				Detail("%s: %s is not an interface", owner, it).Build()
		}
		ifaces = append(ifaces, it)
	}
	return ifaces, nil
}

func methodKey(owner, name string, params []string) string {
	return owner + "::" + name + "(" + strings.Join(params, ",") + ")"
}

func ownerName(t *types.Type) string {
	if t == nil {
		return ""
	}
	return t.String()
}
