package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lukemcguire/pageprobe/crawler"
)

// ProgressMsg carries one pipeline stage event.
type ProgressMsg struct {
	Event crawler.Event
}

// DoneMsg signals the task has returned.
type DoneMsg struct {
	Err error
}

// progressClosedMsg means no more events will arrive.
type progressClosedMsg struct{}

// waitForProgress returns a tea.Cmd that reads one event from the progress
// channel.
func waitForProgress(ch <-chan crawler.Event) tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-ch
		if !ok {
			return progressClosedMsg{}
		}
		return ProgressMsg{Event: evt}
	}
}
