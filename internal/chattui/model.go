// Package chattui is the terminal view of one investor/enterprise conversation.
package chattui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tOgg1/pitchline/internal/conversation"
	"github.com/tOgg1/pitchline/internal/logging"
)

const (
	headerHeight = 2
	footerHeight = 3
)

// Engine is the conversation state the view renders and drives.
type Engine interface {
	Close() error
	Refresh() error
	SendMessage(content string) bool
	Scroll(v conversation.Viewport) conversation.ScrollMode
	Snapshot() conversation.Snapshot
	Updates() <-chan conversation.Snapshot
}

// DraftStore keeps unsent compose text per conversation partner.
type DraftStore interface {
	Draft(receiver string) string
	SetDraft(receiver, text string)
}

// Options configures the view.
type Options struct {
	Theme    string
	Location *time.Location
	Drafts   DraftStore
}

type snapshotMsg conversation.Snapshot

// Model is the bubbletea model of the chat view.
type Model struct {
	engine Engine
	drafts DraftStore
	styles styles
	loc    *time.Location

	viewport viewport.Model
	input    textinput.Model

	snap     conversation.Snapshot
	width    int
	height   int
	ready    bool
	status   string
	quitting bool
}

// NewModel builds the view over an already opened engine.
func NewModel(engine Engine, opts Options) *Model {
	input := textinput.New()
	input.Placeholder = "Type a message"
	input.Prompt = "› "
	input.CharLimit = 4000
	input.Focus()

	m := &Model{
		engine:   engine,
		drafts:   opts.Drafts,
		styles:   newStyles(ThemeByName(opts.Theme)),
		loc:      opts.Location,
		viewport: viewport.New(0, 0),
		input:    input,
		snap:     engine.Snapshot(),
	}
	if m.drafts != nil {
		m.input.SetValue(m.drafts.Draft(m.snap.Pair.Receiver))
	}
	return m
}

func waitForSnapshot(updates <-chan conversation.Snapshot) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(<-updates)
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForSnapshot(m.engine.Updates()))
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		if !m.ready {
			m.ready = true
			m.viewport.GotoBottom()
		}
		return m, nil

	case snapshotMsg:
		m.applySnapshot(conversation.Snapshot(msg))
		return m, waitForSnapshot(m.engine.Updates())

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, m.quit()
		case "ctrl+r":
			if err := m.engine.Refresh(); err != nil {
				m.status = "refresh unavailable: " + err.Error()
			} else {
				m.status = "refreshing…"
			}
			return m, nil
		case "enter":
			m.submit()
			return m, nil
		case "pgup", "pgdown", "up", "down", "home", "end", "ctrl+u", "ctrl+d":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			m.reportScroll()
			return m, cmd
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		m.reportScroll()
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return m.styles.muted.Render(loadingText)
	}

	header := m.styles.header.Render("Chat with "+displayName(m.snap.Pair.Receiver)) + "\n" + m.statusLine()
	footer := m.styles.input.Width(m.width).Render(m.input.View()) + "\n" +
		m.styles.footer.Render("enter send · ctrl+r refresh · pgup/pgdn scroll · esc close")
	return lipgloss.JoinVertical(lipgloss.Left, header, m.viewport.View(), footer)
}

// Draft returns the unsent compose text.
func (m *Model) Draft() string {
	return m.input.Value()
}

func (m *Model) quit() tea.Cmd {
	m.quitting = true
	if m.drafts != nil {
		m.drafts.SetDraft(m.snap.Pair.Receiver, m.input.Value())
	}
	if err := m.engine.Close(); err != nil && !errors.Is(err, conversation.ErrSessionClosed) {
		logger := logging.Component("chattui")
		logger.Warn().Err(err).Msg("closing conversation")
	}
	return tea.Quit
}

func (m *Model) submit() {
	value := m.input.Value()
	if m.engine.SendMessage(value) {
		m.input.Reset()
		m.status = ""
		return
	}
	if !m.snap.Pair.Ready() {
		m.status = "sign in with `pitchline login` to send messages"
	}
}

func (m *Model) applySnapshot(snap conversation.Snapshot) {
	m.snap = snap
	m.refreshContent()
	if snap.Jump {
		m.viewport.GotoBottom()
	}
	if snap.Err == nil && m.status == "refreshing…" {
		m.status = ""
	}
}

func (m *Model) refreshContent() {
	m.viewport.SetContent(renderConversation(m.snap, m.snap.Pair.Sender, m.viewport.Width, m.loc, m.styles))
}

func (m *Model) resize() {
	m.viewport.Width = m.width
	h := m.height - headerHeight - footerHeight
	if h < 1 {
		h = 1
	}
	m.viewport.Height = h
	m.input.Width = m.width - lipgloss.Width(m.input.Prompt) - 1
	m.refreshContent()
	if m.snap.Follow {
		m.viewport.GotoBottom()
	}
}

func (m *Model) reportScroll() {
	m.engine.Scroll(conversation.Viewport{
		Offset:        m.viewport.YOffset,
		Height:        m.viewport.Height,
		ContentHeight: m.viewport.TotalLineCount(),
	})
}

func (m *Model) statusLine() string {
	mode := "following"
	if !m.snap.Follow {
		mode = "reading · new messages below"
	}
	line := mode
	if m.snap.Pending > 0 {
		line += fmt.Sprintf(" · %d sending", m.snap.Pending)
	}
	if n := len(m.snap.Failed); n > 0 {
		line += fmt.Sprintf(" · %d not delivered", n)
	}
	if m.status != "" {
		line += " · " + m.status
	}
	rendered := m.styles.status.Render(line)
	if m.snap.Err != nil {
		rendered += "  " + m.styles.errorLine.Render("sync error: "+m.snap.Err.Error())
	}
	return rendered
}

func displayName(receiver string) string {
	if receiver == "" {
		return "…"
	}
	return receiver
}

// Run shows the view until the user closes it or ctx ends. The engine is
// closed on every exit path.
func Run(ctx context.Context, engine Engine, opts Options) error {
	model := NewModel(engine, opts)
	defer func() {
		if err := engine.Close(); err != nil && !errors.Is(err, conversation.ErrSessionClosed) {
			logger := logging.Component("chattui")
			logger.Warn().Err(err).Msg("closing conversation")
		}
	}()

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	_, err := program.Run()
	if opts.Drafts != nil && !model.quitting {
		opts.Drafts.SetDraft(model.snap.Pair.Receiver, model.Draft())
	}
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
