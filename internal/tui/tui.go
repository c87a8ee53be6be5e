package tui

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sokinpui/dpatch/dpatch"
	"github.com/sokinpui/dpatch/model"
)

// --- Styles ---
var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("197"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	pathStyle    = lipgloss.NewStyle()
	faintStyle   = lipgloss.NewStyle().Faint(true)
)

// --- Messages ---
type outcomeMsg struct {
	model.ApplyOutcome
}

type errorMsg struct{ err error }

func (e errorMsg) Error() string { return e.err.Error() }

type progressMsg struct {
	current, total int
}

// --- Model ---
type Model struct {
	app      *dpatch.App
	program  *tea.Program
	spinner  spinner.Model
	progress progress.Model
	current  int
	total    int
	state    state
	outcome  outcomeMsg
	err      error
}

type state int

const (
	stateProcessing state = iota
	stateSummary
	stateError
)

func New(app *dpatch.App) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return &Model{
		app:      app,
		spinner:  s,
		progress: progress.New(progress.WithDefaultGradient()),
		state:    stateProcessing,
	}
}

// SetProgram wires the running program in so engine callbacks can send
// messages into the update loop.
func (m *Model) SetProgram(p *tea.Program) {
	m.program = p
	m.app.SetProgressCallback(func(current, total int) {
		p.Send(progressMsg{current: current, total: total})
	})
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.runApp)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case progressMsg:
		m.current = msg.current
		m.total = msg.total
		if msg.total > 0 {
			return m, m.progress.SetPercent(float64(msg.current) / float64(msg.total))
		}
		return m, nil

	case progress.FrameMsg:
		pm, cmd := m.progress.Update(msg)
		m.progress = pm.(progress.Model)
		return m, cmd

	case outcomeMsg:
		m.state = stateSummary
		m.outcome = msg
		return m, tea.Quit

	case errorMsg:
		m.state = stateError
		m.err = msg
		return m, tea.Quit

	default:
		var cmd tea.Cmd
		if m.state == stateProcessing {
			m.spinner, cmd = m.spinner.Update(msg)
		}
		return m, cmd
	}
	return m, nil
}

func (m *Model) View() string {
	switch m.state {
	case stateProcessing:
		if m.total > 0 {
			return fmt.Sprintf("%s Applying [%d/%d]\n%s", m.spinner.View(), m.current, m.total, m.progress.View())
		}
		return fmt.Sprintf("%s Processing...", m.spinner.View())
	case stateError:
		return errorStyle.Render("Error: " + m.err.Error())
	case stateSummary:
		return m.renderSummary()
	default:
		return ""
	}
}

func (m *Model) renderSummary() string {
	var b strings.Builder

	o := m.outcome.ApplyOutcome
	if o.Message != "" {
		b.WriteString(headerStyle.Render(o.Message))
		b.WriteString("\n\n")
	}

	hasContent := false
	if len(o.Succeeded) > 0 {
		hasContent = true
		label := "Applied:"
		if o.DryRun {
			label = "Would apply:"
		}
		b.WriteString(successStyle.Render(label))
		b.WriteString("\n")
		for _, f := range o.Succeeded {
			b.WriteString(fmt.Sprintf("  %s\n", pathStyle.Render(f)))
		}
	}
	if len(o.Failed) > 0 {
		hasContent = true
		b.WriteString(errorStyle.Render("Failed:"))
		b.WriteString("\n")
		for _, f := range o.Failed {
			b.WriteString(fmt.Sprintf("  %s\n", pathStyle.Render(f)))
		}
	}
	if len(o.Backups) > 0 {
		hasContent = true
		b.WriteString(warnStyle.Render(fmt.Sprintf("Backups (run %s):", o.RunID)))
		b.WriteString("\n")
		for _, f := range o.Backups {
			b.WriteString(fmt.Sprintf("  %s\n", faintStyle.Render(f)))
		}
	}

	if !hasContent && o.Message == "" {
		b.WriteString(faintStyle.Render("Nothing to do."))
	}

	return b.String()
}

func (m *Model) runApp() tea.Msg {
	outcome, err := m.app.Execute(context.Background())
	if err != nil {
		// Check for detailed error to print stack
		if e, ok := err.(*dpatch.DetailedError); ok {
			// The TUI will exit, so we can print to stderr here for the stack trace.
			fmt.Fprintf(os.Stderr, "\n--- Stack Trace ---\n%s\n", e.Stack)
		}
		return errorMsg{err}
	}
	return outcomeMsg{ApplyOutcome: outcome}
}
