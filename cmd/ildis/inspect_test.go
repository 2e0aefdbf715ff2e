package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/wippyai/ilgen/config"
	"github.com/wippyai/ilgen/emit"
	"github.com/wippyai/ilgen/errors"
	"github.com/wippyai/ilgen/metadata"
	"github.com/wippyai/ilgen/opcode"
	"github.com/wippyai/ilgen/routine"
	"github.com/wippyai/ilgen/types"
)

const descriptors = `
types:
  - {name: Dog, kind: class}
methods:
  - {owner: Dog, name: Bark, params: [string], virtual: true}
`

func writeRoutine(t *testing.T, b *emit.Builder, opts ...routine.Option) string {
	t.Helper()
	layout, err := b.Finalize(emit.FinalizeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	r, err := routine.Assemble(layout, opts...)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "routine.ilr")
	if err := os.WriteFile(path, r.Encode(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeMeta(t *testing.T) (string, *metadata.Registry) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "types.yaml")
	if err := os.WriteFile(path, []byte(descriptors), 0o644); err != nil {
		t.Fatal(err)
	}
	reg, err := metadata.LoadYAML(strings.NewReader(descriptors))
	if err != nil {
		t.Fatal(err)
	}
	return path, reg
}

func sumRoutine(t *testing.T) string {
	b := emit.NewBuilder("sum", emit.Signature{Return: types.Int32})
	for _, step := range []error{
		b.EmitInt(opcode.LdcI4, 1),
		b.EmitInt(opcode.LdcI4, 2),
		b.Emit(opcode.Add),
		b.Emit(opcode.Ret),
	} {
		if step != nil {
			t.Fatal(step)
		}
	}
	return writeRoutine(t, b)
}

func TestInspectListing(t *testing.T) {
	path := sumRoutine(t)
	var out bytes.Buffer
	err := inspect(&out, newStyles(false), inspectOptions{routine: path, verify: true, cfg: config.Default()})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{".routine sum int32 []", "IL_0000: ldc.i4 1", "IL_000a: add", "verified: 4 instructions, max stack 2"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestInspectRaw(t *testing.T) {
	path := sumRoutine(t)
	var out bytes.Buffer
	if err := inspect(&out, newStyles(false), inspectOptions{routine: path, raw: true, cfg: config.Default()}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "IL_000b: ret") {
		t.Errorf("raw listing:\n%s", out.String())
	}
}

func TestInspectReceiver(t *testing.T) {
	meta, reg := writeMeta(t)
	dog, _ := reg.ResolveType("Dog")
	bark, err := reg.ResolveMethod("Dog", "Bark", []string{"string"})
	if err != nil {
		t.Fatal(err)
	}

	b := emit.NewBuilder("speak", emit.Signature{Params: []*types.Type{dog}})
	for _, step := range []error{
		b.EmitArg(opcode.Ldarg, 0),
		b.EmitString(opcode.Ldstr, "woof"),
		b.EmitMethod(opcode.Callvirt, bark),
		b.Emit(opcode.Ret),
	} {
		if step != nil {
			t.Fatal(step)
		}
	}
	path := writeRoutine(t, b, routine.AsInstance())

	var out bytes.Buffer
	err = inspect(&out, newStyles(false), inspectOptions{routine: path, meta: meta, verify: true, cfg: config.Default()})
	if !errors.Is(err, errors.ErrNotReplayable) {
		t.Fatalf("expected not replayable without receiver, got %v", err)
	}

	out.Reset()
	err = inspect(&out, newStyles(false), inspectOptions{routine: path, meta: meta, receiver: "Dog", verify: true, cfg: config.Default()})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), `callvirt void Dog::Bark(string)`) {
		t.Errorf("output:\n%s", out.String())
	}
}

func TestInspectMissingFile(t *testing.T) {
	err := inspect(&bytes.Buffer{}, newStyles(false), inspectOptions{routine: filepath.Join(t.TempDir(), "none")})
	if err == nil || !strings.Contains(err.Error(), "read routine") {
		t.Fatalf("err = %v", err)
	}
}

func TestViewerJump(t *testing.T) {
	path := sumRoutine(t)
	m := newViewerModel(inspectOptions{routine: path, cfg: config.Default()}, newStyles(false))
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 5})
	m.Update(m.load())
	if m.d == nil {
		t.Fatalf("not loaded: %v", m.err)
	}

	m.jump("3")
	if got := m.lines[m.viewport.YOffset]; !strings.Contains(got, "IL_000b: ret") {
		t.Errorf("jump to position 3 landed on %q", got)
	}
	m.jump("IL_0005")
	if got := m.lines[m.viewport.YOffset]; !strings.Contains(got, "IL_0005: ldc.i4 2") {
		t.Errorf("jump to IL_0005 landed on %q", got)
	}
	m.jump("99")
	if !strings.Contains(m.status, "no instruction") {
		t.Errorf("status = %q", m.status)
	}
}
