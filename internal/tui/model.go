// Package tui is the terminal chat view of one conversation.
package tui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pitchroom/internal/chat"
	"github.com/fyrsmithlabs/pitchroom/internal/logging"
	"github.com/fyrsmithlabs/pitchroom/internal/summary"
)

// Summarizer generates a summary of flagged messages.
type Summarizer interface {
	Generate(ctx context.Context, messages []chat.Message) (string, error)
}

// Options configures a Model.
type Options struct {
	Session      *chat.Session
	Conversation string
	Identity     chat.Identity
	// Notices must be the Notifier the session was built with.
	Notices *Notices
	// Summarizer may be nil when no summary endpoint is configured.
	Summarizer Summarizer
	Logger     *logging.Logger
	Now        func() time.Time
}

// Model is the BubbleTea chat model.
type Model struct {
	ctx          context.Context
	session      *chat.Session
	conversation string
	identity     chat.Identity
	notices      *Notices
	summarizer   Summarizer
	logger       *logging.Logger
	now          func() time.Time
	keys         KeyMap

	marks      *summary.Marks
	messages   []chat.Message
	status     chat.Status
	alert      string
	summary    string
	generating bool
	selectErr  error
	quitting   bool

	width    int
	height   int
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
}

// Message types
type changedMsg struct{}
type noticeMsg chat.Notice
type selectedMsg struct{ err error }
type sentMsg struct{ err error }
type summaryMsg struct {
	text string
	err  error
}

// NewModel creates a chat model. ctx bounds every request the model makes.
func NewModel(ctx context.Context, opts Options) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type a message..."
	ti.CharLimit = 4096
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	notices := opts.Notices
	if notices == nil {
		notices = NewNotices(8)
	}

	return Model{
		ctx:          ctx,
		session:      opts.Session,
		conversation: opts.Conversation,
		identity:     opts.Identity,
		notices:      notices,
		summarizer:   opts.Summarizer,
		logger:       logger.Named("tui"),
		now:          now,
		keys:         DefaultKeyMap(),
		marks:        &summary.Marks{},
		viewport:     viewport.New(80, 20),
		input:        ti,
		spinner:      sp,
		width:        80,
		height:       24,
	}
}

// Init selects the conversation and starts listening for changes.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		selectConversation(m.ctx, m.session, m.conversation),
		waitForChange(m.session),
		waitForNotice(m.notices),
		textinput.Blink,
	)
}

func selectConversation(ctx context.Context, s *chat.Session, conversationID string) tea.Cmd {
	return func() tea.Msg {
		return selectedMsg{err: s.Select(ctx, conversationID)}
	}
}

// waitForChange blocks until the session reports a change.
func waitForChange(s *chat.Session) tea.Cmd {
	return func() tea.Msg {
		<-s.Changes()
		return changedMsg{}
	}
}

func waitForNotice(n *Notices) tea.Cmd {
	return func() tea.Msg {
		return noticeMsg(<-n.C())
	}
}

func commit(ctx context.Context, o *chat.Outgoing) tea.Cmd {
	return func() tea.Msg {
		_, err := o.Commit(ctx)
		return sentMsg{err: err}
	}
}

func generateSummary(ctx context.Context, s Summarizer, messages []chat.Message) tea.Cmd {
	return func() tea.Msg {
		text, err := s.Generate(ctx, messages)
		return summaryMsg{text: text, err: err}
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.Width = max(m.width-4, 10)
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case changedMsg:
		m.refresh()
		return m, waitForChange(m.session)

	case noticeMsg:
		m.alert = msg.Text
		m.layout()
		return m, waitForNotice(m.notices)

	case selectedMsg:
		m.selectErr = msg.err
		m.refresh()
		return m, nil

	case sentMsg:
		if msg.err != nil {
			m.logger.Debug(m.ctx, "send failed", zap.Error(msg.err))
		}
		return m, nil

	case summaryMsg:
		m.generating = false
		switch {
		case errors.Is(msg.err, summary.ErrInFlight):
		case msg.err != nil:
			m.alert = "Failed to generate summary. Please try again."
		default:
			m.summary = msg.text
		}
		m.layout()
		return m, nil

	case spinner.TickMsg:
		if !m.generating {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Send):
		o, ok := m.session.Begin(m.identity, m.input.Value())
		if !ok {
			return m, nil
		}
		// The placeholder is already visible; the box clears before the write.
		m.input.Reset()
		m.alert = ""
		m.refresh()
		return m, commit(m.ctx, o)

	case key.Matches(msg, m.keys.Mark):
		last, ok := lastDurable(m.messages)
		if !ok {
			return m, nil
		}
		m.marks.Toggle(last)
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.Summarize):
		return m.requestSummary()

	case key.Matches(msg, m.keys.DismissSummary):
		m.summary = ""
		m.alert = ""
		m.layout()
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) requestSummary() (tea.Model, tea.Cmd) {
	if m.generating {
		return m, nil
	}
	if m.summarizer == nil {
		m.alert = "Summaries are not configured."
		m.layout()
		return m, nil
	}
	marked := m.marks.List()
	if len(marked) == 0 {
		m.alert = "Mark messages with ctrl+s first."
		m.layout()
		return m, nil
	}
	m.generating = true
	m.alert = ""
	m.layout()
	return m, tea.Batch(m.spinner.Tick, generateSummary(m.ctx, m.summarizer, marked))
}

// lastDurable returns the newest message that is not a placeholder.
func lastDurable(messages []chat.Message) (chat.Message, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if !messages[i].Pending {
			return messages[i], true
		}
	}
	return chat.Message{}, false
}

// refresh re-reads the session and re-renders the message list, keeping the
// view pinned to the bottom when it already was.
func (m *Model) refresh() {
	atBottom := m.viewport.AtBottom()
	m.messages = m.session.Messages()
	m.status = m.session.Status()
	m.layout()
	m.viewport.SetContent(m.renderMessages())
	if atBottom {
		m.viewport.GotoBottom()
	}
}

// layout sizes the viewport to the space the other sections leave.
func (m *Model) layout() {
	reserved := lipgloss.Height(m.renderHeader()) +
		lipgloss.Height(m.renderInput()) +
		lipgloss.Height(m.renderFooter())
	if s := m.renderStatusArea(); s != "" {
		reserved += lipgloss.Height(s)
	}
	m.viewport.Width = max(m.width, 1)
	m.viewport.Height = max(m.height-reserved, 1)
}
