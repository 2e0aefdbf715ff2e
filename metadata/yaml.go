package metadata

import (
	"io"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/ilgen/errors"
	"github.com/wippyai/ilgen/types"
)

type descriptorFile struct {
	Types   []typeDescriptor   `yaml:"types"`
	Methods []methodDescriptor `yaml:"methods"`
	Fields  []fieldDescriptor  `yaml:"fields"`
}

type typeDescriptor struct {
	Name       string   `yaml:"name"`
	Kind       string   `yaml:"kind"`
	Base       string   `yaml:"base"`
	Interfaces []string `yaml:"interfaces"`
}

type methodDescriptor struct {
	Owner       string   `yaml:"owner"`
	Name        string   `yaml:"name"`
	Return      string   `yaml:"return"`
	Params      []string `yaml:"params"`
	Static      bool     `yaml:"static"`
	Virtual     bool     `yaml:"virtual"`
	Constructor bool     `yaml:"constructor"`
}

type fieldDescriptor struct {
	Owner  string `yaml:"owner"`
	Name   string `yaml:"name"`
	Type   string `yaml:"type"`
	Static bool   `yaml:"static"`
}

// LoadYAML reads type, method and field descriptors into a new Registry.
//
//	types:
//	  - {name: Animal, kind: class}
//	  - {name: Dog, kind: class, base: Animal}
//	methods:
//	  - {owner: Dog, name: Bark, params: [int32], return: string, virtual: true}
//	fields:
//	  - {owner: Dog, name: legs, type: int32}
//
// Types may reference bases and interfaces declared later in the file.
func LoadYAML(r io.Reader) (*Registry, error) {
	var file descriptorFile
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&file); err != nil && err != io.EOF {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "parse metadata descriptors")
	}

	reg := NewRegistry()
	if err := reg.defineAll(file.Types); err != nil {
		return nil, err
	}

	for _, md := range file.Methods {
		m, err := reg.buildMethod(md)
		if err != nil {
			return nil, err
		}
		if err := reg.DefineMethod(m); err != nil {
			return nil, err
		}
	}

	for _, fd := range file.Fields {
		owner, err := reg.ResolveType(fd.Owner)
		if err != nil {
			return nil, err
		}
		ft, err := reg.ResolveType(fd.Type)
		if err != nil {
			return nil, err
		}
		if err := reg.DefineField(&Field{Owner: owner, Name: fd.Name, Type: ft, Static: fd.Static}); err != nil {
			return nil, err
		}
	}

	Logger().Debug("loaded metadata descriptors",
		zap.Int("types", len(reg.order)),
		zap.Int("methods", len(reg.methods)),
		zap.Int("fields", len(reg.fields)))
	return reg, nil
}

// defineAll registers descriptors in passes so that a type may name a base
// or interface that appears later. A pass without progress reports the first
// descriptor that still fails.
func (r *Registry) defineAll(descs []typeDescriptor) error {
	pending := descs
	for len(pending) > 0 {
		var next []typeDescriptor
		var firstErr error
		for _, d := range pending {
			if err := r.defineOne(d); err != nil {
				if errors.KindOf(err) != errors.KindNotFound {
					return err
				}
				if firstErr == nil {
					firstErr = err
				}
				next = append(next, d)
			}
		}
		if len(next) == len(pending) {
			return firstErr
		}
		pending = next
	}
	return nil
}

func (r *Registry) defineOne(d typeDescriptor) error {
	var err error
	switch d.Kind {
	case "", "class":
		_, err = r.DefineClass(d.Name, d.Base, d.Interfaces...)
	case "interface":
		_, err = r.DefineInterface(d.Name, d.Interfaces...)
	case "value", "struct":
		_, err = r.DefineValue(d.Name)
	default:
		err = errors.New(errors.PhaseConfig, errors.KindInvalidData).
			Detail("type %s: unknown kind %q", d.Name, d.Kind).Build()
	}
	return err
}

func (r *Registry) buildMethod(md methodDescriptor) (*Method, error) {
	owner, err := r.ResolveType(md.Owner)
	if err != nil {
		return nil, err
	}
	m := &Method{
		Owner:       owner,
		Name:        md.Name,
		Static:      md.Static,
		Virtual:     md.Virtual,
		Constructor: md.Constructor,
		Return:      types.Void,
	}
	if md.Return != "" {
		if m.Return, err = r.ResolveType(md.Return); err != nil {
			return nil, err
		}
	}
	for _, p := range md.Params {
		pt, err := r.ResolveType(p)
		if err != nil {
			return nil, err
		}
		m.Params = append(m.Params, pt)
	}
	return m, nil
}
