// Package tui provides the Bubble Tea terminal UI for pageprobe: a spinner
// that follows pipeline progress, styled record tables and the interactive
// session prompts.
package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lukemcguire/pageprobe/crawler"
	"github.com/lukemcguire/pageprobe/result"
)

// Model is the Bubble Tea model shown while a pipeline task runs.
type Model struct {
	ctx        context.Context
	cancel     context.CancelFunc
	run        func(context.Context) error
	spinner    spinner.Model
	progressCh <-chan crawler.Event

	title    string
	stage    string
	current  string
	quitting bool
	done     bool
	err      error
	width    int
}

// NewModel creates a model that runs task under ctx and follows progressCh.
// Cancel is called when the user quits.
func NewModel(ctx context.Context, cancel context.CancelFunc, title string, task func(context.Context) error, progressCh <-chan crawler.Event) Model {
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return Model{
		ctx:        ctx,
		cancel:     cancel,
		run:        task,
		spinner:    spin,
		progressCh: progressCh,
		title:      title,
	}
}

// Init starts the spinner, the task and the progress listener.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.start(), waitForProgress(m.progressCh))
}

func (m Model) start() tea.Cmd {
	return func() tea.Msg {
		return DoneMsg{Err: m.run(m.ctx)}
	}
}

// Update handles messages from the Bubble Tea runtime.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case ProgressMsg:
		m.stage = msg.Event.Message
		m.current = msg.Event.URL
		return m, waitForProgress(m.progressCh)

	case progressClosedMsg:
		return m, nil

	case DoneMsg:
		m.done = true
		m.err = msg.Err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the spinner line. Results are printed after the program
// exits, so a finished model renders nothing.
func (m Model) View() string {
	if m.done || m.quitting {
		return ""
	}
	stage := m.stage
	if stage == "" {
		stage = "Starting"
	}
	return fmt.Sprintf("%s %s: %s\n%s\n",
		m.spinner.View(), titleStyle.Render(m.title), stage,
		dimStyle.Render("  "+m.current))
}

// Err returns the task error. Quitting before the task finished counts as
// an abort.
func (m Model) Err() error {
	if m.err != nil {
		return m.err
	}
	if m.quitting && !m.done {
		return result.Aborted(m.current)
	}
	return nil
}
