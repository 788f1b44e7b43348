package ui

import (
	"context"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

type StepFunc func(ctx context.Context) ([]string, error)

type doneMsg struct {
	details []string
	err     error
}

type tickMsg time.Time

type stepModel struct {
	title   string
	started time.Time
	now     time.Time
	frame   int
	cancel  context.CancelFunc
	run     tea.Cmd
	done    *doneMsg
}

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

func newStepModel(ctx context.Context, title string, fn StepFunc) stepModel {
	ctx, cancel := context.WithCancel(ctx)
	now := time.Now()
	return stepModel{
		title:   title,
		started: now,
		now:     now,
		cancel:  cancel,
		run: func() tea.Msg {
			details, err := fn(ctx)
			return doneMsg{details: details, err: err}
		},
	}
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m stepModel) Init() tea.Cmd {
	return tea.Batch(m.run, tick())
}

func (m stepModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case doneMsg:
		m.done = &msg
		m.cancel()
		return m, tea.Quit
	case tickMsg:
		m.now = time.Time(msg)
		m.frame = (m.frame + 1) % len(spinnerFrames)
		return m, tick()
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			m.cancel()
		}
	}
	return m, nil
}

func (m stepModel) View() string {
	if m.done != nil {
		return RenderResult(m.title, m.done.details, m.done.err) + "\n"
	}
	elapsed := m.now.Sub(m.started).Truncate(100 * time.Millisecond)
	return fmt.Sprintf("%s %s %s\n", spinnerFrames[m.frame], titleStyle.Render(m.title), elapsed)
}

// Run executes fn behind a terminal spinner and prints the rendered result to out.
func Run(ctx context.Context, out io.Writer, title string, fn StepFunc) ([]string, error) {
	p := tea.NewProgram(newStepModel(ctx, title, fn), tea.WithOutput(out), tea.WithInput(nil))
	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", title, err)
	}
	m, ok := final.(stepModel)
	if !ok || m.done == nil {
		return nil, fmt.Errorf("run %s: interrupted", title)
	}
	return m.done.details, m.done.err
}
