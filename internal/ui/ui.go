package ui

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/zester/internal/tasks"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
)

var _ Painter = (*Palette)(nil)

// eventBuffer sizes the channel between the run and the view. Events beyond it are dropped, never blocking the run.
const eventBuffer = 1024

// Job is a unit of archive work reporting through h.
type Job func(ctx context.Context, h tasks.EventHandler) error

// ViewState represents the current view in the TUI.
type ViewState int

const (
	RunningView ViewState = iota
	ResultView
)

// Model represents the TUI application state.
type Model struct {
	ctx    context.Context
	cancel context.CancelFunc
	title  string
	job    Job
	view   ViewState

	width  int
	height int

	started  bool
	events   chan tasks.Event
	finished chan struct{}
	mu       sync.Mutex
	jobErr   error

	phase    tasks.Phase
	expected int
	total    int
	done     int
	failed   int
	bytes    int64
	pauses   int
	group    string
	current  string
	failures []tasks.Event
	err      error

	spinner  spinner.Model
	progress progress.Model
	list     list.Model
	help     help.Model
	keys     keyMap
}

// NewModel creates a TUI model that runs job and renders its events. expected is the number of items the
// job is known to produce ahead of time (e.g. from the profile), or 0.
func NewModel(ctx context.Context, title string, expected int, job Job) *Model {
	ctx, cancel := context.WithCancel(ctx)
	return &Model{
		ctx:      ctx,
		cancel:   cancel,
		title:    title,
		job:      job,
		view:     RunningView,
		width:    80,
		expected: expected,
		events:   make(chan tasks.Event, eventBuffer),
		finished: make(chan struct{}),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		progress: progress.New(progress.WithDefaultGradient()),
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Run shows the progress view until job finishes and the user quits, returning the job's error.
func Run(ctx context.Context, title string, expected int, job Job) error {
	m := NewModel(ctx, title, expected, job)
	if _, err := tea.NewProgram(m).Run(); err != nil {
		m.cancel()
		m.Wait()
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return m.Wait()
}

// Wait cancels the job if it is still running and returns its result.
func (m *Model) Wait() error {
	if !m.started {
		return nil
	}
	select {
	case <-m.finished:
	default:
		m.cancel()
		<-m.finished
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jobErr
}

// Init starts the job.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.start())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = max(msg.Width-4, 10)
		if m.view == ResultView {
			m.list.SetSize(msg.Width-4, listHeight(msg.Height))
		}
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.quit) {
			m.cancel()
			return m, tea.Quit
		}
		if m.view == ResultView && len(m.failures) > 0 {
			var cmd tea.Cmd
			m.list, cmd = m.list.Update(msg)
			return m, cmd
		}
		return m, nil

	case spinner.TickMsg:
		if m.view != RunningView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		switch msg.kind {
		case MsgEvent:
			m.apply(msg.event())
			return m, m.waitForEvent()
		case MsgRunComplete:
			m.finish(msg.err())
			return m, nil
		}
	}

	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case RunningView:
		return m.renderRunning()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) start() tea.Cmd {
	m.started = true
	go func() {
		err := m.job(m.ctx, tasks.ChannelHandler(m.events))
		m.mu.Lock()
		m.jobErr = err
		m.mu.Unlock()
		close(m.events)
		close(m.finished)
	}()
	return m.waitForEvent()
}

func (m *Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		e, ok := <-m.events
		if !ok {
			<-m.finished
			m.mu.Lock()
			defer m.mu.Unlock()
			return runCompleteMsg(m.jobErr)
		}
		return eventMsg(e)
	}
}

// apply folds one event into the counters.
func (m *Model) apply(e tasks.Event) {
	m.phase = e.Phase
	if s := e.Subject(); s != "" {
		m.current = s
	}

	switch e.Kind {
	case tasks.Progress:
		m.done += e.Count
	case tasks.BatchSize:
		m.total += e.Count
	case tasks.RetryPause:
		m.pauses++
	case tasks.ItemDone:
		m.done++
		if e.Track != nil {
			m.bytes += int64(e.Count)
		}
	case tasks.ItemError:
		m.failed++
		m.failures = append(m.failures, e)
	case tasks.GroupStart:
		m.group = e.Subject()
	case tasks.GroupDone:
		m.group = ""
	}
}

func (m *Model) finish(err error) {
	m.err = err
	m.view = ResultView

	items := make([]list.Item, len(m.failures))
	for i, f := range m.failures {
		items[i] = failureItem{event: f}
	}
	m.list = list.New(items, list.NewDefaultDelegate(), m.width-4, listHeight(m.height))
	m.list.Title = fmt.Sprintf("Skipped (%d)", len(m.failures))
	m.list.SetShowStatusBar(false)
	m.list.SetShowHelp(false)
}

// percent is the completed share of the expected work, 0 when nothing is known yet.
func (m *Model) percent() float64 {
	total := max(m.total, m.expected)
	if total == 0 {
		return 0
	}
	return min(float64(m.done+m.failed)/float64(total), 1)
}

func (m *Model) counts() string {
	var b strings.Builder
	if total := max(m.total, m.expected); total > 0 {
		fmt.Fprintf(&b, "%d/%d", m.done, total)
	} else {
		fmt.Fprintf(&b, "%d", m.done)
	}
	if m.failed > 0 {
		b.WriteString(" • " + styles.warn.Render(fmt.Sprintf("%d skipped", m.failed)))
	}
	if m.bytes > 0 {
		b.WriteString(" • " + humanize.Bytes(uint64(m.bytes)))
	}
	if m.pauses > 0 {
		fmt.Fprintf(&b, " • %d pauses", m.pauses)
	}
	return b.String()
}

func (m *Model) renderRunning() string {
	title := styles.title.Render(m.title)

	label := m.phase.String()
	if m.group != "" {
		label = fmt.Sprintf("%s • %s", label, m.group)
	}
	line := fmt.Sprintf("%s %s", m.spinner.View(), label)
	if m.current != "" {
		line += ": " + truncate(m.current, m.width-runewidth.StringWidth(line)-4)
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.quit})
	return fmt.Sprintf("%s\n%s\n\n%s\n%s\n\n%s", title, line, m.progress.ViewAs(m.percent()), m.counts(), helpView)
}

func (m *Model) renderResult() string {
	var head string
	if m.err != nil {
		head = styles.err.Render(fmt.Sprintf("✗ %s failed: %v", m.title, m.err))
	} else {
		head = styles.ok.Render(fmt.Sprintf("✓ %s complete", m.title))
	}

	body := m.counts()
	if len(m.failures) > 0 {
		body += "\n\n" + m.list.View()
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.up, m.keys.down, m.keys.quit})
	return fmt.Sprintf("%s\n\n%s\n\n%s", head, body, helpView)
}

func listHeight(height int) int {
	return max(height-10, 12)
}

// truncate shortens s to width display columns, ending in an ellipsis when cut.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(s, width, "…")
}
