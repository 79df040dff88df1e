package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lukemcguire/pageprobe/result"
	"github.com/lukemcguire/pageprobe/session"
)

// promptField is one line of a form.
type promptField struct {
	label       string
	placeholder string
	secret      bool
}

// formModel asks for its fields one at a time; Enter moves to the next
// field and submits after the last. finishEarly may end the form before the
// last field based on the values entered so far.
type formModel struct {
	title       string
	fields      []promptField
	inputs      []textinput.Model
	focus       int
	done        bool
	aborted     bool
	finishEarly func(values []string) bool
}

func newForm(title string, fields []promptField, finishEarly func([]string) bool) formModel {
	inputs := make([]textinput.Model, len(fields))
	for i, f := range fields {
		ti := textinput.New()
		ti.Prompt = ""
		ti.Placeholder = f.placeholder
		ti.CharLimit = 2048
		if f.secret {
			ti.EchoMode = textinput.EchoPassword
			ti.EchoCharacter = '•'
		}
		if i == 0 {
			ti.Focus()
		}
		inputs[i] = ti
	}
	return formModel{title: title, fields: fields, inputs: inputs, finishEarly: finishEarly}
}

func (m formModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m formModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.aborted = true
			return m, tea.Quit
		case tea.KeyEnter:
			entered := m.values()[:m.focus+1]
			if m.focus == len(m.inputs)-1 || (m.finishEarly != nil && m.finishEarly(entered)) {
				m.done = true
				return m, tea.Quit
			}
			m.inputs[m.focus].Blur()
			m.focus++
			return m, m.inputs[m.focus].Focus()
		}
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m formModel) View() string {
	if m.done || m.aborted {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n")
	for i := 0; i <= m.focus; i++ {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render(m.fields[i].label+":"), m.inputs[i].View())
	}
	b.WriteString(dimStyle.Render("enter to continue, esc to cancel"))
	b.WriteString("\n")
	return b.String()
}

// values returns what was typed, trimmed except for secret fields.
func (m formModel) values() []string {
	out := make([]string, len(m.inputs))
	for i, in := range m.inputs {
		out[i] = in.Value()
		if !m.fields[i].secret {
			out[i] = strings.TrimSpace(out[i])
		}
	}
	return out
}

// Prompter asks for session input on a terminal.
type Prompter struct {
	in  io.Reader
	out io.Writer
}

// NewPrompter creates a Prompter; nil in or out means the process's
// terminal.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: in, out: out}
}

var credentialFields = []promptField{
	{label: "Login URL", placeholder: "example.com/login"},
	{label: "URL after login", placeholder: "example.com/dashboard"},
	{label: "Username field name", placeholder: "username"},
	{label: "Password field name", placeholder: "password"},
	{label: "Username"},
	{label: "Password", secret: true},
}

// Credentials asks for the login form details.
func (p *Prompter) Credentials(ctx context.Context) (session.Credentials, error) {
	values, err := p.ask(ctx, newForm("Log in", credentialFields, nil))
	if err != nil {
		return session.Credentials{}, err
	}
	return session.Credentials{
		LoginURL:      values[0],
		RedirectURL:   values[1],
		UsernameField: values[2],
		PasswordField: values[3],
		Username:      values[4],
		Password:      values[5],
	}, nil
}

var commandFields = []promptField{
	{label: "URL", placeholder: "example.com/page, or exit"},
	{label: "Mode", placeholder: "crawl, scrape or seo"},
}

// NextCommand asks for a URL and, unless the user is leaving, a mode.
func (p *Prompter) NextCommand(ctx context.Context) (session.Command, error) {
	form := newForm("Next request", commandFields, func(values []string) bool {
		return session.Command{URL: values[0]}.IsExit()
	})
	values, err := p.ask(ctx, form)
	if err != nil {
		return session.Command{}, err
	}
	return session.Command{URL: values[0], Mode: values[1]}, nil
}

func (p *Prompter) ask(ctx context.Context, form formModel) ([]string, error) {
	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if p.in != nil {
		opts = append(opts, tea.WithInput(p.in))
	}
	if p.out != nil {
		opts = append(opts, tea.WithOutput(p.out))
	}

	final, err := tea.NewProgram(form, opts...).Run()
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, tea.ErrProgramKilled) {
			return nil, result.ErrAborted
		}
		return nil, fmt.Errorf("run prompt: %w", err)
	}
	answered, ok := final.(formModel)
	if !ok || answered.aborted {
		return nil, result.ErrAborted
	}
	return answered.values(), nil
}
