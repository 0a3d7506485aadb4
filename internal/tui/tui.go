// Package tui is the interactive front end for imports. One bubbletea model
// renders a screen per session state and feeds key presses back into the
// session; everything the engine reports arrives through the bus bridge.
package tui

import (
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mongohaul/mongohaul/internal/core"
	"github.com/mongohaul/mongohaul/internal/events"
	"github.com/mongohaul/mongohaul/internal/models"
	"github.com/mongohaul/mongohaul/internal/session"
)

// Run opens the interactive import flow and blocks until the operator leaves.
func Run(ctx context.Context, app *core.App, archivePath string) error {
	sess, err := app.OpenImport()
	if err != nil {
		return err
	}
	m := newModel(app, sess, archivePath)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	m.bridge.close()
	_ = sess.Close(context.Background())
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	if fm, ok := final.(model); ok && fm.fatal != nil {
		return fm.fatal
	}
	return nil
}

// Messages produced by commands.
type archiveLoadedMsg struct{ err error }
type dispatchedMsg struct{ err error }
type dropsPendingMsg struct{}

type model struct {
	app  *core.App
	sess *session.Session

	bridge      *bridge
	archivePath string

	state  session.State
	paused bool

	tree *tree
	spin spinner.Model
	bar  progress.Model

	latest models.Progress
	notice string
	fatal  error

	confirmingDrops bool
	width, height   int
}

func newModel(app *core.App, sess *session.Session, archivePath string) model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return model{
		app:         app,
		sess:        sess,
		bridge:      newBridge(app.Bus()),
		archivePath: archivePath,
		state:       session.StateIdle,
		spin:        sp,
		bar:         progress.New(progress.WithDefaultGradient()),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spin.Tick,
		m.bridge.listen(),
		m.loadArchiveCmd(),
	)
}

func (m model) loadArchiveCmd() tea.Cmd {
	sess, path := m.sess, m.archivePath
	return func() tea.Msg {
		return archiveLoadedMsg{err: sess.LoadArchive(context.Background(), path)}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.bar.Width = min(msg.Width-10, 60)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case archiveLoadedMsg:
		if msg.err != nil {
			m.fatal = msg.err
			return m, tea.Quit
		}
		m.tree = newTree(m.sess.Preview())
		m.state = m.sess.State()
		return m, nil

	case dispatchedMsg:
		if msg.err != nil {
			m.notice = msg.err.Error()
		}
		return m, nil

	case dropsPendingMsg:
		m.confirmingDrops = true
		return m, nil

	case busMsg:
		return m.onBusEvent(msg.ev)

	case tea.KeyMsg:
		return m.onKey(msg)
	}
	return m, nil
}

// onBusEvent folds one bus event into the model and re-arms the listener.
func (m model) onBusEvent(ev events.Event) (tea.Model, tea.Cmd) {
	switch e := ev.(type) {
	case *events.SessionState:
		m.state = session.State(e.State)
		m.paused = e.Paused
		if m.state != session.StateReviewing {
			m.confirmingDrops = false
		}
		if m.state == session.StateClosed {
			return m, tea.Quit
		}
	case *events.Notice:
		m.notice = e.Message
	case *events.TransferProgress:
		m.latest = e.Progress
	case *events.DryRunProgress:
		m.latest = e.Progress
	}
	return m, m.bridge.listen()
}

func (m model) onKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	// Ctrl+C cancels whatever is running, then quits.
	if key == "ctrl+c" {
		switch m.state {
		case session.StateAnalyzing:
			m.sess.CancelAnalysis()
			return m, nil
		case session.StateTransferring:
			return m, m.cancelCmd()
		default:
			return m, tea.Quit
		}
	}

	switch m.state {
	case session.StateConfiguring:
		return m.onConfiguringKey(key)
	case session.StateAnalyzing:
		if key == "esc" {
			m.sess.CancelAnalysis()
		}
	case session.StateReviewing:
		return m.onReviewingKey(key)
	case session.StateTransferring:
		return m.onTransferringKey(key)
	case session.StateFailed:
		return m.onFailedKey(key)
	case session.StateFinished:
		if key == "q" || key == "enter" || key == "esc" {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m model) onConfiguringKey(key string) (tea.Model, tea.Cmd) {
	if m.tree == nil {
		return m, nil
	}
	switch key {
	case "q":
		return m, tea.Quit
	case "up", "k":
		m.tree.up()
	case "down", "j":
		m.tree.down()
	case "right", "left", "tab", "l", "h":
		m.tree.toggleExpand()
	case " ":
		if r, ok := m.tree.current(); ok {
			if r.coll == "" {
				m.sess.ToggleDatabase(r.db)
			} else {
				m.sess.ToggleCollection(r.db, r.coll)
			}
		}
	case "a":
		m.sess.SelectAll()
	case "n":
		m.sess.DeselectAll()
	case "m":
		next := models.ModeReplace
		if m.sess.Mode() == models.ModeReplace {
			next = models.ModeMerge
		}
		if err := m.sess.SetMode(next); err != nil {
			m.notice = err.Error()
		}
	case "enter":
		m.notice = ""
		sess := m.sess
		return m, func() tea.Msg {
			return dispatchedMsg{err: sess.Analyze(context.Background())}
		}
	}
	return m, nil
}

func (m model) onReviewingKey(key string) (tea.Model, tea.Cmd) {
	if m.confirmingDrops {
		switch key {
		case "y":
			m.confirmingDrops = false
			sess := m.sess
			return m, func() tea.Msg {
				return dispatchedMsg{err: sess.ConfirmDrops(context.Background())}
			}
		case "n", "esc":
			m.confirmingDrops = false
		}
		return m, nil
	}
	switch key {
	case "q":
		return m, tea.Quit
	case "esc", "b":
		if err := m.sess.Back(); err != nil {
			m.notice = err.Error()
		} else {
			m.state = m.sess.State()
		}
	case "enter", "y":
		m.notice = ""
		sess := m.sess
		return m, func() tea.Msg {
			err := sess.Commit(context.Background())
			if errors.Is(err, session.ErrDropConfirmationRequired) {
				return dropsPendingMsg{}
			}
			return dispatchedMsg{err: err}
		}
	}
	return m, nil
}

func (m model) onTransferringKey(key string) (tea.Model, tea.Cmd) {
	sess := m.sess
	switch key {
	case "p":
		if m.paused {
			return m, func() tea.Msg { return dispatchedMsg{err: sess.Resume(context.Background())} }
		}
		return m, func() tea.Msg { return dispatchedMsg{err: sess.Pause(context.Background())} }
	case "c", "esc":
		return m, m.cancelCmd()
	}
	return m, nil
}

func (m model) onFailedKey(key string) (tea.Model, tea.Cmd) {
	sess := m.sess
	switch key {
	case "r":
		return m, func() tea.Msg { return dispatchedMsg{err: sess.Retry(context.Background())} }
	case "s":
		if sess.CanSkip() {
			return m, func() tea.Msg { return dispatchedMsg{err: sess.SkipAndContinue(context.Background())} }
		}
		m.notice = "only one database remains, skipping is not offered"
	case "d", "esc", "q":
		if err := sess.Dismiss(); err != nil {
			m.notice = err.Error()
		} else {
			m.state = sess.State()
		}
	}
	return m, nil
}

func (m model) cancelCmd() tea.Cmd {
	sess := m.sess
	return func() tea.Msg {
		return dispatchedMsg{err: sess.Cancel(context.Background())}
	}
}

