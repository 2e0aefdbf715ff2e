package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/wippyai/ilgen/disasm"
)

type viewerModel struct {
	err      error
	d        *disasm.Disassembly
	st       styles
	opts     inspectOptions
	status   string
	lines    []string
	viewport viewport.Model
	input    textinput.Model
	ready    bool
	jumping  bool
}

func newViewerModel(opts inspectOptions, st styles) *viewerModel {
	ti := textinput.New()
	ti.Prompt = "jump to: "
	ti.Placeholder = "position or IL_offset"
	ti.Width = 30
	return &viewerModel{opts: opts, st: st, input: ti}
}

type loadedMsg struct {
	err error
	d   *disasm.Disassembly
}

type verifiedMsg struct {
	err     error
	summary string
}

func (m *viewerModel) Init() tea.Cmd {
	return m.load
}

func (m *viewerModel) load() tea.Msg {
	_, d, err := load(m.opts)
	return loadedMsg{d: d, err: err}
}

func (m *viewerModel) verify() tea.Msg {
	summary, err := verifyReplay(m.d, m.opts.cfg)
	return verifiedMsg{summary: summary, err: err}
}

func (m *viewerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		height := msg.Height - 4
		if height < 1 {
			height = 1
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.ready = true
			m.refresh()
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.d = msg.d
		m.lines = strings.Split(strings.TrimRight(m.d.String(), "\n"), "\n")
		m.refresh()

	case verifiedMsg:
		if msg.err != nil {
			m.status = m.st.err.Render(msg.err.Error())
		} else {
			m.status = m.st.ok.Render(msg.summary)
		}

	case tea.KeyMsg:
		if m.jumping {
			switch msg.String() {
			case "enter":
				m.jump(m.input.Value())
				m.stopJump()
				return m, nil
			case "esc":
				m.stopJump()
				return m, nil
			}
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}

		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "/", ":":
			m.jumping = true
			m.input.SetValue("")
			m.input.Focus()
			return m, textinput.Blink
		case "v":
			if m.d != nil {
				m.status = "verifying..."
				return m, m.verify
			}
		case "g":
			m.viewport.GotoTop()
		case "G":
			m.viewport.GotoBottom()
		}
	}

	if m.err != nil && m.d == nil {
		return m, nil
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *viewerModel) stopJump() {
	m.jumping = false
	m.input.Blur()
}

func (m *viewerModel) refresh() {
	if !m.ready || m.d == nil {
		return
	}
	styled := make([]string, len(m.lines))
	for i, l := range m.lines {
		styled[i] = m.st.line(l)
	}
	m.viewport.SetContent(strings.Join(styled, "\n"))
}

// jump scrolls to an instruction given by position or by IL_ offset.
func (m *viewerModel) jump(target string) {
	target = strings.TrimSpace(target)
	if target == "" || m.d == nil {
		return
	}
	offset := -1
	if hex, ok := strings.CutPrefix(strings.ToLower(target), "il_"); ok {
		if v, err := strconv.ParseInt(hex, 16, 64); err == nil {
			offset = int(v)
		}
	} else if pos, err := strconv.Atoi(target); err == nil {
		for _, s := range m.d.Steps {
			if s.Kind == disasm.StepOp && s.Position == pos {
				offset = s.Offset
				break
			}
		}
	}
	if offset < 0 {
		m.status = m.st.err.Render(fmt.Sprintf("no instruction %q", target))
		return
	}

	needle := fmt.Sprintf("IL_%04x: ", offset)
	for i, l := range m.lines {
		if strings.Contains(l, needle) {
			m.viewport.SetYOffset(i)
			m.status = ""
			return
		}
	}
	m.status = m.st.err.Render(fmt.Sprintf("no instruction at IL_%04x", offset))
}

func (m *viewerModel) View() string {
	if m.err != nil {
		return m.st.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}
	if m.d == nil || !m.ready {
		return "Loading routine..."
	}

	var b strings.Builder
	b.WriteString(m.st.title.Render("ildis"))
	b.WriteString(" ")
	b.WriteString(m.opts.routine)
	b.WriteString("\n\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	switch {
	case m.jumping:
		b.WriteString(m.input.View())
	case m.status != "":
		b.WriteString(m.status)
	default:
		b.WriteString(m.st.help.Render("↑/↓ scroll • / jump • v verify • g/G top/bottom • q quit"))
	}
	return b.String()
}

func runInteractive(opts inspectOptions, st styles) error {
	p := tea.NewProgram(newViewerModel(opts, st), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
