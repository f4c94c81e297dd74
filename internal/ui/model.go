// Package ui is the terminal dashboard: a status banner, a scrollable log
// panel with the child's output, and the media listing. The model drives
// the supervisor's refresh cycle on a timer.
package ui

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/time/rate"

	"github.com/benaskins/tether/internal/logbuf"
	"github.com/benaskins/tether/internal/supervisor"
)

// Supervisor is what the dashboard needs from the supervisor.
type Supervisor interface {
	Cycle(ctx context.Context) supervisor.Status
	Restart(ctx context.Context) error
	Log() *logbuf.Buffer
}

// Options configures the dashboard.
type Options struct {
	Title    string
	Interval time.Duration // refresh interval between cycles
	Media    []string      // media paths listed when present on disk
	MaxLines int           // lines kept in the log panel
}

// Messages

type tickMsg time.Time

type cycleMsg struct {
	status supervisor.Status
	media  []string
}

type outputMsg struct{}

type restartMsg struct{ err error }

const (
	headerLines = 2 // title, banner
	footerLines = 2 // media, help
	// outputWakeInterval caps how often bursty output redraws the panel.
	outputWakeInterval = 50 * time.Millisecond
)

// Model is the bubbletea model for the dashboard.
type Model struct {
	sup     Supervisor
	ctx     context.Context
	opts    Options
	keys    KeyMap
	limiter *rate.Limiter

	status  supervisor.Status
	media   []string
	lines   []string
	lastSeq uint64
	follow  bool

	viewport viewport.Model
	width    int
	height   int
	quitting bool
}

// New creates the dashboard model. ctx bounds the cycles it runs.
func New(ctx context.Context, sup Supervisor, opts Options) Model {
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Second
	}
	if opts.MaxLines <= 0 {
		opts.MaxLines = 2000
	}
	if opts.Title == "" {
		opts.Title = "tether"
	}
	return Model{
		sup:      sup,
		ctx:      ctx,
		opts:     opts,
		keys:     DefaultKeyMap,
		limiter:  rate.NewLimiter(rate.Every(outputWakeInterval), 1),
		status:   supervisor.Status{Phase: supervisor.PhaseInit, Level: supervisor.LevelInfo, Message: "Initializing"},
		follow:   true,
		viewport: viewport.New(80, 20),
		width:    80,
		height:   20 + headerLines + footerLines,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.cycle(), m.waitForOutput())
}

// cycle runs one supervisor cycle off the UI goroutine.
func (m Model) cycle() tea.Cmd {
	sup, ctx, media := m.sup, m.ctx, m.opts.Media
	return func() tea.Msg {
		return cycleMsg{status: sup.Cycle(ctx), media: presentMedia(media)}
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.opts.Interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitForOutput blocks until the log buffer has new entries, throttled so
// a chatty child does not redraw faster than outputWakeInterval.
func (m Model) waitForOutput() tea.Cmd {
	notify, ctx, limiter := m.sup.Log().Notify(), m.ctx, m.limiter
	return func() tea.Msg {
		select {
		case <-notify:
		case <-ctx.Done():
			return nil
		}
		if err := limiter.Wait(ctx); err != nil {
			return nil
		}
		return outputMsg{}
	}
}

func (m Model) restart() tea.Cmd {
	sup, ctx := m.sup, m.ctx
	return func() tea.Msg {
		return restartMsg{err: sup.Restart(ctx)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Retry):
			return m, m.restart()
		case key.Matches(msg, m.keys.Follow):
			m.follow = true
			m.viewport.GotoBottom()
			return m, nil
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		m.follow = m.viewport.AtBottom()
		return m, cmd

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		m.follow = m.viewport.AtBottom()
		return m, cmd

	case tickMsg:
		return m, m.cycle()

	case cycleMsg:
		m.status = msg.status
		m.media = msg.media
		m.drain()
		return m, m.tick()

	case outputMsg:
		m.drain()
		return m, m.waitForOutput()

	case restartMsg:
		m.drain()
		return m, m.cycle()
	}
	return m, nil
}

// drain moves log entries that arrived since the last drain into the panel.
func (m *Model) drain() {
	entries := m.sup.Log().Since(m.lastSeq)
	if len(entries) == 0 {
		return
	}
	for _, e := range entries {
		m.lines = append(m.lines, renderEntry(e))
	}
	m.lastSeq = entries[len(entries)-1].Seq
	if over := len(m.lines) - m.opts.MaxLines; over > 0 {
		m.lines = append([]string(nil), m.lines[over:]...)
	}
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	if m.follow {
		m.viewport.GotoBottom()
	}
}

func (m *Model) resize() {
	m.viewport.Width = m.width
	h := m.height - headerLines - footerLines
	if h < 1 {
		h = 1
	}
	m.viewport.Height = h
	if m.follow {
		m.viewport.GotoBottom()
	}
}

func renderEntry(e logbuf.Entry) string {
	switch e.Stream {
	case logbuf.StreamStderr:
		return stderrStyle.Render(e.String())
	case logbuf.StreamSystem:
		return systemStyle.Render(e.String())
	default:
		return e.String()
	}
}

// presentMedia returns the configured media paths that exist on disk.
func presentMedia(paths []string) []string {
	var found []string
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			found = append(found, p)
		}
	}
	return found
}
