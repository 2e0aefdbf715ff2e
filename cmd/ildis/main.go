package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tebeka/atexit"
	"go.uber.org/zap"

	"github.com/wippyai/ilgen/config"
	"github.com/wippyai/ilgen/disasm"
	"github.com/wippyai/ilgen/emit"
	"github.com/wippyai/ilgen/errors"
	"github.com/wippyai/ilgen/metadata"
)

func main() {
	var (
		routineFile = flag.String("routine", "", "Path to compiled routine file")
		metaFile    = flag.String("meta", "", "Path to YAML type descriptors")
		verify      = flag.Bool("verify", false, "Replay through a fresh builder and finalize")
		receiver    = flag.String("receiver", "", "Receiver type of an instance routine")
		raw         = flag.Bool("raw", false, "Print raw instructions with byte offsets")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *routineFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: ildis -routine <file> [-meta types.yaml] [-receiver Type] [-verify] [-raw]")
		fmt.Fprintln(os.Stderr, "       ildis -routine <file> -i  (interactive mode)")
		atexit.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		atexit.Exit(1)
	}
	log, err := cfg.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		atexit.Exit(1)
	}
	installLogger(log)
	atexit.Register(func() { _ = log.Sync() })

	opts := inspectOptions{
		routine:  *routineFile,
		meta:     *metaFile,
		receiver: *receiver,
		verify:   *verify,
		raw:      *raw,
		cfg:      cfg,
	}
	st := newStyles(colorEnabled(cfg.Color))

	if *interactive {
		if err := runInteractive(opts, st); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			atexit.Exit(1)
		}
		atexit.Exit(0)
	}

	if err := inspect(os.Stdout, st, opts); err != nil {
		fmt.Fprintln(os.Stderr, st.err.Render("Error: "+err.Error()))
		var e *errors.Error
		if errors.As(err, &e) && len(e.Trace) > 0 {
			fmt.Fprint(os.Stderr, e.TraceString())
		}
		atexit.Exit(1)
	}
	atexit.Exit(0)
}

func installLogger(l *zap.Logger) {
	emit.SetLogger(l)
	metadata.SetLogger(l)
	disasm.SetLogger(l)
}
