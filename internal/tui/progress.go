package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-faster/errors"

	"github.com/hkuds/tgcopy/internal/bus"
)

const logTail = 8

var (
	spinnerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205"))

	logInfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

// eventMsg carries a bus event into the program.
type eventMsg bus.Event

// progressModel is the Bubble Tea model of a running copy.
type progressModel struct {
	title    string
	spinner  spinner.Model
	bar      progress.Model
	percent  int
	logs     []bus.Event
	stop     func()
	stopping bool

	done     bool
	terminal *bus.Event
}

// newProgressModel creates a progress model. stop is called once when the
// user asks to stop the run.
func newProgressModel(title string, stop func()) progressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	return progressModel{
		title:   title,
		spinner: s,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(50)),
		stop:    stop,
	}
}

func (m progressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "s", "ctrl+c":
			if !m.stopping {
				m.stopping = true
				if m.stop != nil {
					m.stop()
				}
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.bar.Width = min(max(msg.Width-10, 10), 80)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventMsg:
		return m.apply(bus.Event(msg))
	}

	return m, nil
}

func (m progressModel) apply(ev bus.Event) (tea.Model, tea.Cmd) {
	switch ev.Kind {
	case bus.KindProgress:
		if ev.Percent > m.percent {
			m.percent = ev.Percent
		}
	case bus.KindLog:
		m.logs = append(m.logs, ev)
		if len(m.logs) > logTail {
			m.logs = m.logs[len(m.logs)-logTail:]
		}
	case bus.KindTerminal:
		m.done = true
		m.terminal = &ev
		return m, tea.Quit
	}
	return m, nil
}

func (m progressModel) View() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render(m.title))
	sb.WriteString("\n")
	sb.WriteString(m.bar.ViewAs(float64(m.percent) / 100))
	sb.WriteString("\n\n")

	for _, ev := range m.logs {
		sb.WriteString(renderLogLine(ev))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	switch {
	case m.done:
		sb.WriteString(renderTerminal(*m.terminal))
		sb.WriteString("\n")
	case m.stopping:
		sb.WriteString(m.spinner.View() + warningStyle.Render(" Stopping..."))
		sb.WriteString("\n")
	default:
		sb.WriteString(m.spinner.View() + " Copying...")
		sb.WriteString("\n")
		sb.WriteString(helpStyle.Render("Press s or Ctrl+C to stop"))
	}

	return sb.String()
}

func renderLogLine(ev bus.Event) string {
	if ev.IsError() {
		return errorStyle.Render("✗ " + ev.Text)
	}
	return logInfoStyle.Render("• " + ev.Text)
}

func renderTerminal(ev bus.Event) string {
	switch ev.Outcome {
	case bus.OutcomeSuccess:
		return successStyle.Render("✓ " + ev.Text)
	case bus.OutcomeStopped:
		return warningStyle.Render("■ " + ev.Text)
	default:
		return errorStyle.Render("✗ " + ev.Text)
	}
}

// Progress is the progress screen of one run.
type Progress struct {
	p *tea.Program
}

// NewProgress creates the progress screen. stop is called when the user
// asks to stop the run.
func NewProgress(ctx context.Context, title string, stop func()) *Progress {
	return &Progress{p: tea.NewProgram(newProgressModel(title, stop), tea.WithContext(ctx))}
}

// Handle feeds an event to the screen. It is meant to be subscribed to the
// run's event bus and blocks until the screen is running.
func (pr *Progress) Handle(ev bus.Event) {
	pr.p.Send(eventMsg(ev))
}

// Run shows the screen until the terminal event arrives and returns it.
func (pr *Progress) Run() (bus.Event, error) {
	final, err := pr.p.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return bus.Event{}, fmt.Errorf("TUI error: %w", err)
	}

	m, ok := final.(progressModel)
	if !ok || m.terminal == nil {
		return bus.Event{}, errors.New("progress screen closed before the run ended")
	}
	return *m.terminal, nil
}
