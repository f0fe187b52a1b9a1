package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tetratelabs/wazero/api"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/wippyai/wasm-bridge/binding"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/runtime"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

func interactiveCommand() *cli.Command {
	return &cli.Command{
		Name:      "interactive",
		Aliases:   []string{"i"},
		Usage:     "pick exports and enter arguments in a terminal UI",
		ArgsUsage: "GUEST",
		Action:    interactive,
	}
}

func interactive(c *cli.Context) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.InvalidInput(errors.PhaseLoad, "interactive mode requires a terminal")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	// Guest output would tear the alternate screen; collect it instead.
	out := &capture{}
	s, err := newSession(c.Context, cfg, out, out)
	if err != nil {
		return err
	}
	defer s.close(c.Context)

	p := tea.NewProgram(newInteractiveModel(c.Context, s, out), tea.WithAltScreen())
	_, err = p.Run()
	return err
}

// capture collects guest output between calls. Writes come from whichever
// goroutine runs the guest.
type capture struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (c *capture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Write(p)
}

// take returns and clears everything written so far.
func (c *capture) take() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.buf.String()
	c.buf.Reset()
	return s
}

type modelState int

const (
	stateSelectFunc modelState = iota
	stateInputArgs
	stateShowResult
)

// interactiveModel is only touched from Update and View. Guest calls run in
// a tea.Cmd and report back through callResultMsg.
type interactiveModel struct {
	ctx      context.Context
	err      error
	session  *session
	instance *runtime.Instance
	output   *capture
	result   string
	printed  string
	funcs    []runtime.ExportInfo
	inputs   []textinput.Model
	selected int
	focusIdx int
	state    modelState
	busy     bool
}

type callResultMsg struct {
	err     error
	result  string
	printed string
}

func newInteractiveModel(ctx context.Context, s *session, out *capture) *interactiveModel {
	return &interactiveModel{
		ctx:     ctx,
		session: s,
		output:  out,
		funcs:   s.mod.Exports(),
		state:   stateSelectFunc,
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return nil
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.state == stateInputArgs && msg.String() == "q" {
				break
			}
			if m.instance != nil && !m.busy {
				m.instance.Close(m.ctx)
			}
			return m, tea.Quit

		case "up", "k":
			if m.state == stateSelectFunc && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectFunc && m.selected < len(m.funcs)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectFunc:
				if len(m.funcs) == 0 || m.busy {
					break
				}
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.startCall()
				}
				m.state = stateInputArgs

			case stateInputArgs:
				if m.busy {
					return m, nil
				}
				return m, m.startCall()

			case stateShowResult:
				m.reset()
			}

		case "tab":
			if m.state == stateInputArgs && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			switch m.state {
			case stateInputArgs:
				m.state = stateSelectFunc
				m.inputs = nil
			case stateShowResult:
				m.reset()
			}
		}

	case callResultMsg:
		m.busy = false
		m.showResult(msg)
	}

	if m.state == stateInputArgs {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m *interactiveModel) showResult(msg callResultMsg) {
	m.result = msg.result
	m.printed = msg.printed
	m.err = msg.err
	m.state = stateShowResult
}

func (m *interactiveModel) reset() {
	m.state = stateSelectFunc
	m.inputs = nil
	m.result = ""
	m.printed = ""
	m.err = nil
}

func (m *interactiveModel) prepareInputs() {
	f := m.funcs[m.selected]
	m.inputs = make([]textinput.Model, len(f.Signature.Params))
	for i, kind := range f.Signature.Params {
		ti := textinput.New()
		ti.Placeholder = api.ValueTypeName(kind)
		ti.Prompt = fmt.Sprintf("arg%d: ", i)
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

// startCall parses the arguments and makes sure a live instance exists,
// instantiating a fresh one after a trap or exit. It returns the command
// that runs the export; failures before that are shown directly.
func (m *interactiveModel) startCall() tea.Cmd {
	f := m.funcs[m.selected]
	text := make([]string, len(m.inputs))
	for i, input := range m.inputs {
		text[i] = strings.TrimSpace(input.Value())
	}
	args, err := parseArgs(f.Name, f.Signature, text)
	if err != nil {
		m.showResult(callResultMsg{err: err})
		return nil
	}

	if m.instance != nil && m.instance.State().Terminal() {
		m.instance.Close(m.ctx)
		m.instance = nil
	}
	if m.instance == nil {
		inst, err := m.session.mod.Instantiate(m.ctx)
		if err != nil {
			m.showResult(callResultMsg{err: err, printed: m.output.take()})
			return nil
		}
		m.instance = inst
	}

	m.busy = true
	return callExport(m.ctx, m.instance, f.Name, args, m.output, m.output.take())
}

// callExport returns a command invoking name on inst. It reads nothing from
// the model.
func callExport(ctx context.Context, inst *runtime.Instance, name string, args []binding.Val, out *capture, printed string) tea.Cmd {
	return func() tea.Msg {
		res, err := inst.Invoke(ctx, name, args...)
		printed += out.take()
		if err != nil {
			return callResultMsg{err: err, printed: printed}
		}
		return callResultMsg{result: formatVals(res), printed: printed}
	}
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("wasmbridge"))
	b.WriteString(" ")
	b.WriteString(m.session.guest)
	b.WriteString("\n\n")

	if len(m.funcs) == 0 {
		b.WriteString("The guest exports no functions.\n\n")
		b.WriteString(helpStyle.Render("q quit"))
		return b.String()
	}

	switch m.state {
	case stateSelectFunc:
		b.WriteString("Select an export to call:\n\n")
		for i, f := range m.funcs {
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + formatExport(f)))
			} else {
				b.WriteString("  " + formatExport(f))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		if m.busy {
			b.WriteString("calling...\n")
		} else if m.instance != nil {
			b.WriteString(fmt.Sprintf("instance: %s\n", m.instance.State()))
		}
		b.WriteString(helpStyle.Render("↑/↓ select • enter call • q quit"))

	case stateInputArgs:
		f := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Calling %s\n\n", funcStyle.Render(f.Name)))
		for i, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString(" ")
			b.WriteString(typeStyle.Render(api.ValueTypeName(f.Signature.Params[i])))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		if m.busy {
			b.WriteString("calling...\n")
		}
		b.WriteString(helpStyle.Render("tab next field • enter call • esc back"))

	case stateShowResult:
		f := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", funcStyle.Render(f.Name)))
		if m.printed != "" {
			b.WriteString(m.printed)
			b.WriteString("\n")
		}
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func formatExport(f runtime.ExportInfo) string {
	return funcStyle.Render(f.Name) + " " + typeStyle.Render(f.Signature.String())
}
