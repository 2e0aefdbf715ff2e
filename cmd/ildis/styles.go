package main

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/wippyai/ilgen/config"
)

type styles struct {
	title  lipgloss.Style
	label  lipgloss.Style
	region lipgloss.Style
	offset lipgloss.Style
	op     lipgloss.Style
	ok     lipgloss.Style
	err    lipgloss.Style
	help   lipgloss.Style
}

func newStyles(color bool) styles {
	if !color {
		plain := lipgloss.NewStyle()
		return styles{plain, plain, plain, plain, plain, plain, plain, plain}
	}
	return styles{
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1),
		label:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD75F")),
		region: lipgloss.NewStyle().Foreground(lipgloss.Color("#87CEEB")),
		offset: lipgloss.NewStyle().Foreground(lipgloss.Color("#666666")),
		op:     lipgloss.NewStyle().Foreground(lipgloss.Color("#98FB98")),
		ok:     lipgloss.NewStyle().Foreground(lipgloss.Color("#90EE90")),
		err:    lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")),
		help:   lipgloss.NewStyle().Foreground(lipgloss.Color("#666666")),
	}
}

// colorEnabled resolves the configured mode against stdout.
func colorEnabled(mode config.ColorMode) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// line styles one line of a disassembly listing.
func (s styles) line(l string) string {
	trimmed := strings.TrimSpace(l)
	indent := l[:len(l)-len(strings.TrimLeft(l, " "))]
	switch {
	case trimmed == "":
		return l
	case strings.HasPrefix(trimmed, ".routine") || strings.HasPrefix(trimmed, ".local"):
		return indent + s.help.Render(trimmed)
	case strings.HasSuffix(trimmed, "{") || trimmed == "}":
		return indent + s.region.Render(trimmed)
	case strings.HasSuffix(trimmed, ":"):
		return indent + s.label.Render(trimmed)
	}
	if off, rest, ok := strings.Cut(trimmed, ": "); ok {
		return indent + s.offset.Render(off+":") + " " + s.op.Render(rest)
	}
	return l
}
