// Package watchtui is the read-only Bubble Tea dashboard for `klauss watch`,
// per spec.md §6's watch command. It never mutates the Store — every tick
// it re-reads job/task/worker state from the Queue and re-renders.
package watchtui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/WMahoney09/klauss/internal/queue"
)

// keyMap is the dashboard's key bindings, in the teacher's bubbles/key
// idiom (cmd/status_tui/keys.go) rather than a bare switch on msg.String().
type keyMap struct {
	Quit    key.Binding
	Refresh key.Binding
}

var keys = keyMap{
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c", "esc")),
	Refresh: key.NewBinding(key.WithKeys("r")),
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// Model is the dashboard's state: the last snapshot read from the Queue,
// plus the refresh interval and optional job filter.
type Model struct {
	Queue    *queue.Queue
	JobID    string
	Interval time.Duration

	workers []*queue.Worker
	tasks   []*queue.Task
	err     error
	width   int
	bar     progress.Model
}

// New constructs a Model. jobID == "" means "all jobs".
func New(q *queue.Queue, jobID string, interval time.Duration) Model {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return Model{Queue: q, JobID: jobID, Interval: interval, bar: progress.New(progress.WithDefaultGradient())}
}

type tickMsg time.Time

type snapshotMsg struct {
	workers []*queue.Worker
	tasks   []*queue.Task
	err     error
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.refresh(), m.tick())
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.Interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) refresh() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		workers, err := m.Queue.ListWorkers(ctx)
		if err != nil {
			return snapshotMsg{err: err}
		}
		tasks, err := m.Queue.ListTasks(ctx, queue.ListTasksOptions{JobID: m.JobID, Limit: 200})
		if err != nil {
			return snapshotMsg{err: err}
		}
		return snapshotMsg{workers: workers, tasks: tasks}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = msg.Width - 10
		return m, nil
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Refresh):
			return m, m.refresh()
		}
	case tickMsg:
		return m, tea.Batch(m.refresh(), m.tick())
	case snapshotMsg:
		m.err = msg.err
		if msg.err == nil {
			m.workers = msg.workers
			m.tasks = msg.tasks
		}
		return m, nil
	case progress.FrameMsg:
		barModel, cmd := m.bar.Update(msg)
		m.bar = barModel.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder

	title := "klauss watch"
	if m.JobID != "" {
		title += " — job " + m.JobID
	}
	b.WriteString(headerStyle.Render(title) + "\n")
	b.WriteString(dimStyle.Render("press q to quit, r to refresh") + "\n\n")

	if m.err != nil {
		b.WriteString(errStyle.Render("error: "+m.err.Error()) + "\n")
		return b.String()
	}

	b.WriteString(headerStyle.Render("Workers") + "\n")
	if len(m.workers) == 0 {
		b.WriteString(dimStyle.Render("  (none registered)") + "\n")
	}
	for _, w := range m.workers {
		style := okStyle
		if w.Status == queue.WorkerIdle {
			style = dimStyle
		}
		task := "-"
		if w.CurrentTaskID != nil {
			task = fmt.Sprintf("%d", *w.CurrentTaskID)
		}
		b.WriteString(fmt.Sprintf("  %s  %-20s task=%s  heartbeat=%s\n",
			style.Render(string(w.Status)), w.WorkerID, task, w.LastHeartbeat.Format(time.RFC3339)))
	}

	b.WriteString("\n" + headerStyle.Render("Tasks") + "\n")
	b.WriteString(renderProgressBar(m.bar, m.tasks) + "\n\n")
	for _, t := range m.tasks {
		b.WriteString(fmt.Sprintf("  %s  #%-5d  %s\n", statusBadge(t.Status), t.ID, truncatePrompt(t.Prompt, 60)))
	}

	return b.String()
}

func statusBadge(s queue.TaskStatus) string {
	switch s {
	case queue.StatusCompleted:
		return okStyle.Render(pad(string(s)))
	case queue.StatusFailed:
		return errStyle.Render(pad(string(s)))
	case queue.StatusPending:
		return dimStyle.Render(pad(string(s)))
	default:
		return warnStyle.Render(pad(string(s)))
	}
}

func pad(s string) string {
	const width = 11
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

func truncatePrompt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func renderProgressBar(bar progress.Model, tasks []*queue.Task) string {
	if len(tasks) == 0 {
		return dimStyle.Render("  (no tasks)")
	}
	var completed int
	for _, t := range tasks {
		if t.Status == queue.StatusCompleted {
			completed++
		}
	}
	pct := float64(completed) / float64(len(tasks))
	return fmt.Sprintf("  %s %d/%d", bar.ViewAs(pct), completed, len(tasks))
}

// RenderOnce is the --once path: a single static render with no event loop.
func RenderOnce(q *queue.Queue, jobID string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	workers, err := q.ListWorkers(ctx)
	if err != nil {
		return "", err
	}
	tasks, err := q.ListTasks(ctx, queue.ListTasksOptions{JobID: jobID, Limit: 200})
	if err != nil {
		return "", err
	}
	m := Model{Queue: q, JobID: jobID, workers: workers, tasks: tasks, bar: progress.New(progress.WithDefaultGradient())}
	return m.View(), nil
}
