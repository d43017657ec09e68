package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"autodev/internal/orchestrator"
)

// StatusSource is the read-only slice of Orchestrator the dashboard polls.
// Defined as an interface so tests can drive the model with a fake without
// standing up a real Orchestrator.
type StatusSource interface {
	GetStatus() orchestrator.Status
	ReviewChanges() []orchestrator.PendingChange
}

type tickMsg time.Time

func pollEvery(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// MonitorModel is the bubbletea Model behind `self-dev monitor --watch`.
type MonitorModel struct {
	source   StatusSource
	styles   Styles
	spinner  spinner.Model
	viewport viewport.Model
	interval time.Duration

	status  orchestrator.Status
	pending []orchestrator.PendingChange
	width   int
	height  int
	quitting bool
}

// NewMonitorModel constructs a dashboard polling source every interval.
func NewMonitorModel(source StatusSource, interval time.Duration) MonitorModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return MonitorModel{
		source:   source,
		styles:   DefaultStyles(),
		spinner:  s,
		viewport: viewport.New(80, 20),
		interval: interval,
	}
}

func (m MonitorModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, pollEvery(m.interval), m.refresh)
}

func (m MonitorModel) refresh() tea.Msg {
	return refreshedMsg{
		status:  m.source.GetStatus(),
		pending: m.source.ReviewChanges(),
	}
}

type refreshedMsg struct {
	status  orchestrator.Status
	pending []orchestrator.PendingChange
}

func (m MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width - 4
		m.viewport.Height = msg.Height - 8
		return m, nil

	case tickMsg:
		return m, tea.Batch(pollEvery(m.interval), m.refresh)

	case refreshedMsg:
		m.status = msg.status
		m.pending = msg.pending
		m.viewport.SetContent(renderPending(m.styles, m.pending))
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m MonitorModel) View() string {
	if m.quitting {
		return ""
	}

	header := fmt.Sprintf("%s autodev self-dev monitor", m.spinner.View())
	status := fmt.Sprintf(
		"state: %s   mode: %s   paused: %v   changes today: %d/%s   pending: %d",
		m.status.State, m.status.Mode, m.status.Paused,
		m.status.ChangesToday, maxLabel(m.status.MaxChangesPerDay), m.status.PendingChanges,
	)
	if m.status.LastError != "" {
		status += "\n" + m.styles.Bad.Render("last error: "+m.status.LastError)
	}

	body := m.styles.Border.Render(m.viewport.View())

	return strings.Join([]string{
		m.styles.Title.Render(header),
		m.styles.Header.Render(status),
		body,
		m.styles.Muted.Render("q: quit"),
	}, "\n\n")
}

func maxLabel(n int) string {
	if n <= 0 {
		return "unbounded"
	}
	return fmt.Sprintf("%d", n)
}

func renderPending(styles Styles, pending []orchestrator.PendingChange) string {
	if len(pending) == 0 {
		return styles.Muted.Render("no pending changes")
	}
	var b strings.Builder
	for _, pc := range pending {
		fmt.Fprintf(&b, "%s  %s  increments=%d succeeded=%d\n",
			pc.ID, pc.CreatedAt.Format(time.Kitchen), len(pc.Results), pc.SuccessCount())
	}
	return b.String()
}
