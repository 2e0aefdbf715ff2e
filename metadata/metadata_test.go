package metadata_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/ilgen/errors"
	"github.com/wippyai/ilgen/metadata"
	"github.com/wippyai/ilgen/types"
)

const descriptors = `
types:
  - {name: Dog, kind: class, base: Animal, interfaces: [IPet]}
  - {name: Animal, kind: class}
  - {name: IPet, kind: interface}
  - {name: Point, kind: value}
methods:
  - {owner: Dog, name: .ctor, params: [string], constructor: true}
  - {owner: Dog, name: Bark, params: [int32, string], return: string, virtual: true}
  - {owner: Dog, name: Create, return: Dog, static: true}
fields:
  - {owner: Dog, name: legs, type: int32}
  - {owner: Dog, name: count, type: int64, static: true}
`

func TestLoadYAML(t *testing.T) {
	reg, err := metadata.LoadYAML(strings.NewReader(descriptors))
	if err != nil {
		t.Fatalf("LoadYAML: %v", err)
	}

	dog, err := reg.ResolveType("Dog")
	if err != nil {
		t.Fatalf("ResolveType(Dog): %v", err)
	}
	animal, _ := reg.ResolveType("Animal")
	pet, _ := reg.ResolveType("IPet")
	if !types.AssignableTo(dog, animal) {
		t.Error("Dog should derive from Animal")
	}
	if !types.AssignableTo(dog, pet) {
		t.Error("Dog should implement IPet")
	}

	bark, err := reg.ResolveMethod("Dog", "Bark", []string{"int32", "string"})
	if err != nil {
		t.Fatalf("ResolveMethod: %v", err)
	}
	if got, want := bark.Signature(), "string Dog::Bark(int32, string)"; got != want {
		t.Errorf("Signature = %q, want %q", got, want)
	}

	inputs := bark.StackInputs(true)
	got := make([]string, len(inputs))
	for i, in := range inputs {
		got[i] = in.String()
	}
	if diff := cmp.Diff([]string{"string", "int32", "Dog"}, got); diff != "" {
		t.Errorf("StackInputs mismatch (-want +got):\n%s", diff)
	}

	create, err := reg.ResolveMethod("Dog", "Create", nil)
	if err != nil {
		t.Fatalf("ResolveMethod(Create): %v", err)
	}
	if len(create.StackInputs(true)) != 0 {
		t.Error("static method takes no receiver")
	}

	legs, err := reg.ResolveField("Dog", "legs")
	if err != nil {
		t.Fatalf("ResolveField: %v", err)
	}
	if legs.Type != types.Int32 || legs.Static {
		t.Errorf("unexpected field %s", legs)
	}

	if diff := cmp.Diff([]string{"Animal", "IPet", "Point", "Dog"}, reg.TypeNames()); diff != "" {
		t.Errorf("TypeNames mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadYAML_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown base", "types:\n  - {name: A, base: Missing}\n"},
		{"unknown kind", "types:\n  - {name: A, kind: enum}\n"},
		{"unknown param", "methods:\n  - {owner: object, name: M, params: [Nope]}\n"},
		{"duplicate type", "types:\n  - {name: A}\n  - {name: A}\n"},
		{"malformed", "types: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := metadata.LoadYAML(strings.NewReader(tt.doc)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRegistry_ResolveType(t *testing.T) {
	reg := metadata.NewRegistry()
	if _, err := reg.DefineValue("Point"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		want string
	}{
		{"int32", "int32"},
		{"object", "object"},
		{"string[]", "string[]"},
		{"Point&", "Point&"},
		{"int32*", "int32*"},
		{"Point[][]", "Point[][]"},
		{"int64[]&", "int64[]&"},
	}
	for _, tt := range tests {
		got, err := reg.ResolveType(tt.name)
		if err != nil {
			t.Errorf("ResolveType(%q): %v", tt.name, err)
			continue
		}
		if got.String() != tt.want {
			t.Errorf("ResolveType(%q) = %s, want %s", tt.name, got, tt.want)
		}
	}

	_, err := reg.ResolveType("Missing[]")
	if errors.KindOf(err) != errors.KindNotFound {
		t.Errorf("expected not_found, got %v", err)
	}
}

func TestRegistry_DefineErrors(t *testing.T) {
	reg := metadata.NewRegistry()
	if _, err := reg.DefineValue("V"); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.DefineClass("C", "V"); err == nil {
		t.Error("value type base must be rejected")
	}
	if _, err := reg.DefineInterface("I", "V"); err == nil {
		t.Error("non-interface extension must be rejected")
	}
	if _, err := reg.DefineClass("bad[]", ""); err == nil {
		t.Error("suffix characters in names must be rejected")
	}
	m := &metadata.Method{Owner: types.Object, Name: "M"}
	if err := reg.DefineMethod(m); err != nil {
		t.Fatal(err)
	}
	if err := reg.DefineMethod(m); err == nil {
		t.Error("duplicate method must be rejected")
	}
}

func TestMethod_StackInputsValueReceiver(t *testing.T) {
	point := types.NewValue("Point")
	m := &metadata.Method{Owner: point, Name: "Len", Return: types.Float64}
	inputs := m.StackInputs(true)
	if len(inputs) != 1 || !types.Equal(inputs[0], types.ByRefTo(point)) {
		t.Errorf("value receiver should be passed by-ref, got %s", types.FormatList(inputs))
	}
	if len(m.StackInputs(false)) != 0 {
		t.Error("receiver must be omitted when not requested")
	}
}
