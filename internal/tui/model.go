// Package tui is the terminal front end for an intake conversation.
package tui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/google/uuid"

	"github.com/zhouzirui/talentscout/backend/internal/model/chat"
	"github.com/zhouzirui/talentscout/backend/internal/service/intake"
)

const (
	panelWidth   = 36
	minChatWidth = 24
	chromeHeight = 5
)

// Options tweak rendering. Style is a glamour style name; empty means auto-detect.
type Options struct {
	Style string
}

type greetedMsg struct {
	session *chat.Session
	err     error
}

type turnMsg struct {
	session *chat.Session
	result  intake.TurnResult
	err     error
}

// Model 终端对话界面的状态
type Model struct {
	ctx    context.Context
	intake *intake.Service
	opts   Options

	// session 只在 Update 中替换；模型调用在副本上进行
	session *chat.Session
	pending string

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer

	width  int
	height int
	ready  bool
	busy   bool
	notice string
	err    error
}

// New creates a model for a fresh local session. The greeting is requested by Init.
func New(ctx context.Context, svc *intake.Service, opts Options) Model {
	ti := textinput.New()
	ti.Placeholder = "Type your answer and press Enter..."
	ti.Prompt = "› "
	ti.CharLimit = 2000
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = statusStyle

	return Model{
		ctx:     ctx,
		intake:  svc,
		opts:    opts,
		session: chat.NewSession(uuid.NewString(), time.Now()),
		input:   ti,
		spinner: sp,
		busy:    true,
	}
}

// Session returns the current session state.
func (m Model) Session() *chat.Session {
	return m.session
}

// Init 启动光标闪烁、spinner 并请求开场白
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		m.greetCmd(),
	)
}

func (m Model) greetCmd() tea.Cmd {
	work := m.session.Clone()
	svc, ctx := m.intake, m.ctx
	return func() tea.Msg {
		_, _, err := svc.Greet(ctx, work)
		return greetedMsg{session: work, err: err}
	}
}

func (m Model) turnCmd(text string) tea.Cmd {
	work := m.session.Clone()
	svc, ctx := m.intake, m.ctx
	return func() tea.Msg {
		result, err := svc.HandleTurn(ctx, work, text)
		return turnMsg{session: work, result: result, err: err}
	}
}

// Update 处理按键、窗口尺寸和模型回复
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		}

	case greetedMsg:
		m.busy = false
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.session = msg.session
			m.err = nil
		}
		m.refresh()
		return m, nil

	case turnMsg:
		m.busy = false
		m.pending = ""
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.session = msg.session
			m.err = nil
			if msg.result.Closed {
				m.notice = intake.InactiveNotice
			}
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	text := m.input.Value()
	if m.busy || text == "" {
		return m, nil
	}
	if !m.session.Active {
		m.notice = intake.InactiveNotice
		m.input.Reset()
		return m, nil
	}

	m.input.Reset()
	m.busy = true
	m.pending = text
	m.err = nil
	m.refresh()
	return m, m.turnCmd(text)
}

func (m *Model) resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	m.width, m.height = width, height

	chatWidth := width - panelWidth - 2
	if chatWidth < minChatWidth {
		chatWidth = minChatWidth
	}
	vpHeight := height - chromeHeight
	if vpHeight < 3 {
		vpHeight = 3
	}

	if !m.ready {
		m.viewport = viewport.New(chatWidth, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = chatWidth
		m.viewport.Height = vpHeight
	}
	m.input.Width = chatWidth - 4

	if r, err := m.newRenderer(chatWidth - 4); err == nil {
		m.renderer = r
	}
	m.refresh()
}

func (m Model) newRenderer(wrap int) (*glamour.TermRenderer, error) {
	style := glamour.WithAutoStyle()
	if m.opts.Style != "" {
		style = glamour.WithStandardStyle(m.opts.Style)
	}
	return glamour.NewTermRenderer(style, glamour.WithWordWrap(wrap))
}

func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
}

func errorNotice(err error) string {
	switch {
	case errors.Is(err, intake.ErrSessionInactive):
		return intake.InactiveNotice
	case errors.Is(err, context.DeadlineExceeded):
		return "The assistant took too long to answer. Please try again."
	default:
		return "The assistant is unavailable right now. Please try again."
	}
}
