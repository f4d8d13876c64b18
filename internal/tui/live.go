package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"davhammer/internal/runner"
	"davhammer/internal/tui/styles"
)

type doneMsg struct{ err error }

type Model struct {
	run      *runner.Runner
	updates  runner.StatsUpdateChan
	Stats    runner.StatsSnapshot
	Progress progress.Model
	RpsLine  Sparkline

	LastUpdate    time.Time
	LastCompleted uint64

	Width int
	done  bool
	err   error
}

func NewModel(r *runner.Runner, updates runner.StatsUpdateChan) Model {
	return Model{
		run:        r,
		updates:    updates,
		Progress:   progress.New(progress.WithDefaultGradient()),
		RpsLine:    NewSparkline(40, "RPS (Completed)", styles.Active),
		LastUpdate: time.Now(),
	}
}

func waitForSnapshot(ch runner.StatsUpdateChan) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

func (m Model) Init() tea.Cmd {
	return waitForSnapshot(m.updates)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case runner.StatsSnapshot:
		now := time.Now()
		dt := now.Sub(m.LastUpdate).Seconds()
		if dt < 0.01 {
			dt = 0.01
		}

		rps := float64(msg.Completed-m.LastCompleted) / dt
		m.RpsLine.Add(uint64(rps))

		m.Stats = msg
		m.LastCompleted = msg.Completed
		m.LastUpdate = now

		pct := 0.0
		if m.run.Cfg.RequestCount > 0 {
			pct = float64(msg.Completed) / float64(m.run.Cfg.RequestCount)
		}
		if pct > 1.0 {
			pct = 1.0
		}
		cmd := m.Progress.SetPercent(pct)
		return m, tea.Batch(cmd, waitForSnapshot(m.updates))

	case doneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Progress.Width = msg.Width - 4
		half := (msg.Width / 2) - 4
		if half < 10 {
			half = 10
		}
		m.RpsLine.Width = half
		return m, nil

	case progress.FrameMsg:
		prog, cmd := m.Progress.Update(msg)
		m.Progress = prog.(progress.Model)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	s := strings.Builder{}

	s.WriteString(styles.Title.Render("davhammer"))
	s.WriteString("\n\n")

	completed := m.Stats.Completed
	errRate := 0.0
	if completed > 0 {
		errRate = (float64(m.Stats.Fail) / float64(completed)) * 100
	}

	var errColor lipgloss.Style
	if errRate > 5.0 {
		errColor = styles.Error
	} else if errRate > 1.0 {
		errColor = styles.Warn
	} else {
		errColor = styles.Success
	}

	col1 := fmt.Sprintf("SENT: %d\nDONE: %d", m.Stats.Submitted, completed)
	col2 := fmt.Sprintf("ERR: %.2f%%\nFAIL: %d", errRate, m.Stats.Fail)
	col3 := fmt.Sprintf("INF: %d\nOK: %d", m.Stats.Inflight, m.Stats.Success)

	grid := lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(col1),
		styles.Box.Render(errColor.Render(col2)),
		styles.Box.Render(col3),
	)
	s.WriteString(grid)
	s.WriteString("\n\n")

	s.WriteString(styles.Box.Render(m.RpsLine.View()))
	s.WriteString("\n\n")

	latencies := fmt.Sprintf(
		"P50: %.2f ms  |  P90: %.2f ms  |  P99: %.2f ms  |  Max: %d ms",
		m.Stats.P50Ms,
		m.Stats.P90Ms,
		m.Stats.P99Ms,
		m.Stats.MaxMs,
	)
	width := m.Width - 4
	if width < 40 {
		width = 40
	}
	s.WriteString(styles.Box.Width(width).Render(latencies))
	s.WriteString("\n\n")

	s.WriteString(m.Progress.View())
	s.WriteString("\n")
	s.WriteString(styles.Subtle.Render("q: quit"))

	return s.String()
}

// Run drives the runner under a live dashboard and returns once the run has
// completed or the user quit. Quitting early cancels the run.
func Run(r *runner.Runner, updates runner.StatsUpdateChan) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := tea.NewProgram(NewModel(r, updates))

	go func() {
		err := r.Run(ctx)
		p.Send(doneMsg{err: err})
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("dashboard error: %w", err)
	}
	return nil
}
