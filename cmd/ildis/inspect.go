package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/wippyai/ilgen/config"
	"github.com/wippyai/ilgen/disasm"
	"github.com/wippyai/ilgen/metadata"
	"github.com/wippyai/ilgen/routine"
)

type inspectOptions struct {
	routine  string
	meta     string
	receiver string
	cfg      config.Config
	verify   bool
	raw      bool
}

// load reads the routine and its metadata and disassembles it.
func load(o inspectOptions) (*routine.Routine, *disasm.Disassembly, error) {
	data, err := os.ReadFile(o.routine)
	if err != nil {
		return nil, nil, fmt.Errorf("read routine: %w", err)
	}
	r, err := routine.Decode(data)
	if err != nil {
		return nil, nil, err
	}

	reg := metadata.NewRegistry()
	if o.meta != "" {
		f, err := os.Open(o.meta)
		if err != nil {
			return nil, nil, fmt.Errorf("open metadata: %w", err)
		}
		defer f.Close()
		if reg, err = metadata.LoadYAML(f); err != nil {
			return nil, nil, err
		}
	}

	var opts []disasm.Option
	if o.receiver != "" {
		t, err := reg.ResolveType(o.receiver)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, disasm.WithReceiver(t))
	}
	d, err := disasm.Disassemble(r, reg, opts...)
	if err != nil {
		return r, nil, err
	}
	return r, d, nil
}

func inspect(w io.Writer, st styles, o inspectOptions) error {
	r, d, err := load(o)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s %s\n\n", st.title.Render("ildis"), o.routine)
	if o.raw {
		ins, err := r.Instructions()
		if err != nil {
			return err
		}
		for _, ri := range ins {
			fmt.Fprintln(w, st.line(r.Format(ri)))
		}
		for _, c := range r.Clauses {
			fmt.Fprintln(w, st.region.Render(c.String()))
		}
	} else {
		for _, l := range strings.Split(strings.TrimRight(d.String(), "\n"), "\n") {
			fmt.Fprintln(w, st.line(l))
		}
	}

	if o.verify {
		summary, err := verifyReplay(d, o.cfg)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "\n%s\n", st.ok.Render(summary))
	}
	return nil
}

// verifyReplay re-emits d through a fresh builder and finalizes it.
func verifyReplay(d *disasm.Disassembly, cfg config.Config) (string, error) {
	b, err := d.Build(cfg.BuilderOptions()...)
	if err != nil {
		return "", err
	}
	layout, err := b.Finalize(cfg.FinalizeOptions())
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("verified: %d instructions, max stack %d, %d regions",
		len(layout.Instructions), layout.MaxStack, len(layout.Regions)), nil
}
