package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/jayteealao/colab/internal/git"
	"github.com/jayteealao/colab/internal/state"
)

// View represents the current view.
type View int

const (
	ViewList View = iota
	ViewDetail
)

const (
	sessionLimit = 50
	eventLimit   = 100

	// recentEvents is how many sync events the list view shows.
	recentEvents = 5
)

// Source is the read-only slice of the state store the dashboard needs.
type Source interface {
	ListSessions(ctx context.Context, limit int) ([]*state.Session, error)
	ListSyncEvents(ctx context.Context, limit int) ([]*state.SyncEvent, error)
}

// Snapshot is one refresh worth of data.
type Snapshot struct {
	Sessions []*state.Session
	Events   []*state.SyncEvent
}

// Model is the Bubble Tea model of the dashboard.
type Model struct {
	ctx           context.Context
	cancel        context.CancelFunc
	source        Source
	snapshot      Snapshot
	table         table.Model
	currentView   View
	selectedIndex int
	width         int
	height        int
	interval      time.Duration
	lastRefresh   time.Time
	err           error
	quitting      bool
}

// KeyMap defines the keybindings.
type KeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Enter   key.Binding
	Back    key.Binding
	Refresh key.Binding
	Quit    key.Binding
}

var keys = KeyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "details"),
	),
	Back: key.NewBinding(
		key.WithKeys("esc", "backspace"),
		key.WithHelp("esc", "back"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// Messages
type tickMsg time.Time
type refreshMsg Snapshot
type errMsg struct{ err error }

// NewModel creates a dashboard that reloads from source every interval.
func NewModel(ctx context.Context, source Source, interval time.Duration) Model {
	ctx, cancel := context.WithCancel(ctx)
	return Model{
		ctx:         ctx,
		cancel:      cancel,
		source:      source,
		table:       newSessionTable(),
		currentView: ViewList,
		interval:    interval,
	}
}

func newSessionTable() table.Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "SESSION", Width: 10},
			{Title: "STATUS", Width: 12},
			{Title: "BRANCH", Width: 16},
			{Title: "REV", Width: 9},
			{Title: "STARTED", Width: 16},
			{Title: "PATCH", Width: 10},
		}),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(ColorMuted).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(ColorText).
		Background(ColorPrimary).
		Bold(false)
	t.SetStyles(styles)
	return t
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.load(),
		m.tick(),
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.cancel()
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, keys.Refresh):
			return m, m.load()

		case key.Matches(msg, keys.Enter):
			if m.currentView == ViewList && len(m.snapshot.Sessions) > 0 {
				m.selectedIndex = m.table.Cursor()
				m.currentView = ViewDetail
			}
			return m, nil

		case key.Matches(msg, keys.Back):
			if m.currentView == ViewDetail {
				m.currentView = ViewList
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetWidth(msg.Width - 4)
		m.table.SetHeight(max(msg.Height-14, 3))

	case tickMsg:
		return m, tea.Batch(m.load(), m.tick())

	case refreshMsg:
		m.snapshot = Snapshot(msg)
		m.lastRefresh = time.Now()
		m.err = nil
		m.updateTable()
		return m, nil

	case errMsg:
		m.err = msg.err
		return m, nil
	}

	if m.currentView == ViewList {
		m.table, cmd = m.table.Update(msg)
	}

	return m, cmd
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	if m.err != nil {
		return ErrorStyle.Render(fmt.Sprintf("Error: %v", m.err))
	}

	switch m.currentView {
	case ViewDetail:
		return m.detailView()
	default:
		return m.listView()
	}
}

func (m *Model) listView() string {
	var s string

	s += TitleStyle.Render("colab sessions") + "\n\n"
	s += m.table.View() + "\n\n"

	s += LabelStyle.Render("Recent sync:") + "\n"
	events := m.snapshot.Events
	if len(events) > recentEvents {
		events = events[:recentEvents]
	}
	if len(events) == 0 {
		s += "  " + MutedStyle.Render("no repository operations yet") + "\n"
	}
	for _, e := range events {
		s += "  " + eventLine(e) + "\n"
	}

	lastRefresh := m.lastRefresh.Format("15:04:05")
	s += HelpStyle.Render(fmt.Sprintf(
		"[↑↓] Navigate  [Enter] Details  [r] Refresh  [q] Quit  |  Last refresh: %s",
		lastRefresh,
	))

	return s
}

func (m *Model) detailView() string {
	if m.selectedIndex >= len(m.snapshot.Sessions) {
		return "No session selected"
	}

	sess := m.snapshot.Sessions[m.selectedIndex]

	var s string

	s += TitleStyle.Render(fmt.Sprintf("Session %s", sess.ID)) + "\n\n"

	s += LabelStyle.Render("Status:") + GetStatusStyle(sess.Status).Render(sess.Status) + "\n"
	if sess.Branch != "" {
		s += LabelStyle.Render("Branch:") + ValueStyle.Render(sess.Branch) + "\n"
	}
	s += LabelStyle.Render("Revision:") + ValueStyle.Render(sess.Rev) + "\n"
	s += LabelStyle.Render("Jar:") + ValueStyle.Render(fmt.Sprintf("%s (%s)", sess.JarName, shortHash(sess.JarSHA256))) + "\n"
	if sess.PID > 0 {
		s += LabelStyle.Render("PID:") + ValueStyle.Render(fmt.Sprint(sess.PID)) + "\n"
	}
	s += LabelStyle.Render("Started:") + ValueStyle.Render(sess.StartedAt.Local().Format("2006-01-02 15:04:05")) + "\n"
	if sess.FinishedAt != nil {
		s += LabelStyle.Render("Finished:") + ValueStyle.Render(sess.FinishedAt.Local().Format("2006-01-02 15:04:05")) + "\n"
		s += LabelStyle.Render("Duration:") + ValueStyle.Render(sess.FinishedAt.Sub(sess.StartedAt).Round(time.Second).String()) + "\n"
	}
	if sess.PatchPath != "" {
		s += LabelStyle.Render("Patch:") + ValueStyle.Render(fmt.Sprintf("%s (%s)", sess.PatchPath, humanize.IBytes(uint64(sess.PatchSize)))) + "\n"
	}
	if sess.ErrorMessage != "" {
		s += LabelStyle.Render("Error:") + ErrorStyle.Render(sess.ErrorMessage) + "\n"
	}
	s += "\n"

	var linked []*state.SyncEvent
	for _, e := range m.snapshot.Events {
		if e.SessionID == sess.ID {
			linked = append(linked, e)
		}
	}
	if len(linked) > 0 {
		s += LabelStyle.Render("Sync events:") + "\n"
		for _, e := range linked {
			s += "  " + eventLine(e) + "\n"
		}
		s += "\n"
	}

	s += HelpStyle.Render("[Esc] Back  [r] Refresh  [q] Quit")

	return s
}

func (m *Model) updateTable() {
	rows := make([]table.Row, len(m.snapshot.Sessions))
	for i, sess := range m.snapshot.Sessions {
		branch := sess.Branch
		if branch == "" {
			branch = "(detached)"
		}
		patch := "-"
		if sess.PatchPath != "" {
			patch = humanize.IBytes(uint64(sess.PatchSize))
		}

		rows[i] = table.Row{
			shortID(sess.ID),
			GetStatusIcon(sess.Status) + " " + sess.Status,
			branch,
			git.ShortSHA(sess.Rev),
			humanize.Time(sess.StartedAt),
			patch,
		}
	}
	m.table.SetRows(rows)
	if m.selectedIndex >= len(rows) {
		m.selectedIndex = 0
		m.currentView = ViewList
	}
}

func eventLine(e *state.SyncEvent) string {
	line := fmt.Sprintf("%s %-8s %s",
		GetStatusStyle(e.Outcome).Render(GetStatusIcon(e.Outcome)),
		e.Kind,
		humanize.Time(e.CreatedAt),
	)
	if e.Target != "" {
		line += "  " + ValueStyle.Render(e.Target)
	}
	if e.Commit != "" {
		line += " @ " + git.ShortSHA(e.Commit)
	}
	if e.ErrorMessage != "" {
		line += "  " + ErrorStyle.Render(e.ErrorMessage)
	}
	return line
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) load() tea.Cmd {
	return func() tea.Msg {
		sessions, err := m.source.ListSessions(m.ctx, sessionLimit)
		if err != nil {
			return errMsg{err}
		}
		events, err := m.source.ListSyncEvents(m.ctx, eventLimit)
		if err != nil {
			return errMsg{err}
		}
		return refreshMsg(Snapshot{Sessions: sessions, Events: events})
	}
}
