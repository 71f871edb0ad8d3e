package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/JonMunkholm/automationdb/internal/core"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	barPadding  = 2
	barMaxWidth = 80
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// ProgressMsg carries one event from the run.
type ProgressMsg core.Progress

// DoneMsg is sent when the progress channel closes.
type DoneMsg struct{}

// progressModel renders a running batch. ctrl+c or q asks the service to
// cancel; the view stays up until the batch reports it has stopped.
type progressModel struct {
	runID      string
	events     <-chan core.Progress
	cancel     func() error
	bar        progress.Model
	last       core.Progress
	cancelling bool
	err        error
}

func newProgressModel(runID string, events <-chan core.Progress, cancel func() error) progressModel {
	return progressModel{
		runID:  runID,
		events: events,
		cancel: cancel,
		bar:    progress.New(progress.WithDefaultGradient()),
	}
}

// waitForProgress blocks on the next event. Each ProgressMsg schedules the
// next wait, so exactly one read is outstanding.
func waitForProgress(events <-chan core.Progress) tea.Cmd {
	return func() tea.Msg {
		p, ok := <-events
		if !ok {
			return DoneMsg{}
		}
		return ProgressMsg(p)
	}
}

func (m progressModel) Init() tea.Cmd {
	return waitForProgress(m.events)
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if !m.cancelling {
				m.cancelling = true
				if err := m.cancel(); err != nil {
					m.err = err
				}
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.bar.Width = min(msg.Width-barPadding*2, barMaxWidth)
		return m, nil

	case ProgressMsg:
		m.last = core.Progress(msg)
		return m, waitForProgress(m.events)

	case DoneMsg:
		return m, tea.Quit
	}
	return m, nil
}

func (m progressModel) View() string {
	pad := strings.Repeat(" ", barPadding)
	p := m.last

	var b strings.Builder
	b.WriteString("\n" + pad + titleStyle.Render("Sync "+m.runID) + "\n\n")
	b.WriteString(pad + m.bar.ViewAs(float64(p.Percent())/100) + "\n\n")

	status := fmt.Sprintf("%s %d/%d", p.Phase, p.Current, p.Total)
	if p.AirID != "" {
		status += " " + p.AirID
	}
	b.WriteString(pad + status + "\n")
	b.WriteString(fmt.Sprintf("%sadded %d  updated %d  deleted %d  errors %d\n",
		pad, p.Added, p.Updated, p.Deleted, p.Errors))

	switch {
	case m.err != nil:
		b.WriteString("\n" + pad + warnStyle.Render("Cancel failed: "+m.err.Error()) + "\n")
	case m.cancelling:
		b.WriteString("\n" + pad + warnStyle.Render("Cancelling after the current operation...") + "\n")
	default:
		b.WriteString("\n" + pad + helpStyle.Render("q: cancel") + "\n")
	}
	return b.String()
}

// runProgressView shows the bar until the run ends.
func runProgressView(ctx context.Context, svc *core.Service, runID string, in io.Reader, out io.Writer) error {
	events, err := svc.SubscribeProgress(runID)
	if err != nil {
		return err
	}

	model := newProgressModel(runID, events, func() error { return svc.Cancel(runID) })
	program := tea.NewProgram(model, tea.WithInput(in), tea.WithOutput(out), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		// Interrupted from outside the view: stop the batch and let it drain.
		_ = svc.Cancel(runID)
		for range events {
		}
		if !errors.Is(err, tea.ErrProgramKilled) {
			return fmt.Errorf("progress view: %w", err)
		}
	}
	return nil
}
