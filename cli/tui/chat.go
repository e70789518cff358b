package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/justapithecus/teller/cli/render"
	"github.com/justapithecus/teller/conversation"
	"github.com/justapithecus/teller/session"
	"github.com/justapithecus/teller/types"
)

// Messages pushed into the program from outside the Bubble Tea loop.
type (
	stateMsg  conversation.State
	recordMsg *types.ChatRecord
	flashMsg  string
)

// Options configures the chat view.
type Options struct {
	// Defaults fill the create request for the first prompt.
	Defaults types.ChatCreateRequest
	// Push switches followups to stream mode instead of polling for the
	// reply.
	Push bool
}

// Model is the chat view. All sync state arrives as messages; the model
// only renders and forwards intents.
type Model struct {
	sess *session.Session
	opts Options

	input    textinput.Model
	spin     spinner.Model
	viewport viewport.Model

	state  conversation.State
	record *types.ChatRecord
	flash  string

	width  int
	height int
	ready  bool
}

// NewModel creates the chat view bound to a session.
func NewModel(sess *session.Session, opts Options) Model {
	input := textinput.New()
	input.Prompt = "> "
	input.Placeholder = "Ask the advisor..."
	input.CharLimit = types.MaxPromptLen
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(warningColor)

	return Model{
		sess:  sess,
		opts:  opts,
		input: input,
		spin:  spin,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spin.Tick)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		chrome := 4 // title, status, help, input
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-chrome)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - chrome
		}
		m.viewport.SetContent(m.transcript())
		m.viewport.GotoBottom()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyEsc:
			if m.state.Err != "" || m.flash != "" {
				m.flash = ""
				m.sess.ClearError()
				return m, nil
			}
			return m, tea.Quit
		case tea.KeyEnter:
			prompt := strings.TrimSpace(m.input.Value())
			if prompt == "" || m.busy() {
				return m, nil
			}
			m.input.Reset()
			m.flash = ""
			return m, m.submit(prompt)
		}

	case stateMsg:
		m.state = conversation.State(msg)
		if m.ready {
			m.viewport.SetContent(m.transcript())
			m.viewport.GotoBottom()
		}
		return m, nil

	case recordMsg:
		m.record = msg
		return m, nil

	case flashMsg:
		m.flash = string(msg)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	if m.ready {
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// submit routes a prompt: first prompt creates the chat, later ones follow
// up (or stream in push mode). Errors the session did not already surface
// come back as a flash.
func (m Model) submit(prompt string) tea.Cmd {
	sess := m.sess
	opts := m.opts
	return func() tea.Msg {
		ctx := context.Background()
		var err error
		switch {
		case sess.ChatID() == "":
			req := opts.Defaults
			req.UserPrompt = prompt
			err = sess.Send(ctx, req)
		case opts.Push:
			err = sess.Stream(ctx, prompt)
		default:
			err = sess.Followup(ctx, prompt)
		}
		if err != nil {
			return flashMsg(err.Error())
		}
		return nil
	}
}

// busy reports whether a reply is outstanding: either a stream is open or
// the tracked job is still queued/processing.
func (m Model) busy() bool {
	if m.state.Loading {
		return true
	}
	return m.record != nil && m.record.Status.IsActive()
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "starting..."
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("teller"))
	if id := m.sess.ChatID(); id != "" {
		b.WriteString(HelpStyle.Render("  " + id))
	}
	b.WriteByte('\n')

	b.WriteString(m.viewport.View())
	b.WriteByte('\n')

	b.WriteString(m.statusLine())
	b.WriteByte('\n')

	b.WriteString(m.input.View())
	b.WriteByte('\n')

	b.WriteString(HelpStyle.Render("enter send · esc clear error/quit · ctrl+c quit"))
	return b.String()
}

func (m Model) statusLine() string {
	if m.flash != "" {
		return ErrorStyle.Render(m.flash)
	}
	if m.state.Err != "" {
		return ErrorStyle.Render(m.state.Err)
	}

	var parts []string
	if m.record != nil {
		parts = append(parts, StatusStyle(m.record.Status).Render(string(m.record.Status)))
		if m.record.Strategy != "" {
			parts = append(parts, StatusBarStyle.Render(string(m.record.Strategy)))
		}
	}
	if m.busy() {
		parts = append(parts, m.spin.View()+StatusBarStyle.Render("waiting for the advisor"))
	}
	if len(parts) == 0 {
		return StatusBarStyle.Render("no chat yet")
	}
	return strings.Join(parts, StatusBarStyle.Render(" · "))
}

// transcript renders the conversation for the viewport.
func (m Model) transcript() string {
	if len(m.state.Messages) == 0 {
		return HelpStyle.Render("Describe your portfolio goals to get started.")
	}

	var b strings.Builder
	for i, msg := range m.state.Messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch msg.Role {
		case conversation.RoleUser:
			b.WriteString(UserLabelStyle.Render("you"))
		case conversation.RoleAssistant:
			b.WriteString(AssistantLabelStyle.Render("advisor"))
		default:
			b.WriteString(HelpStyle.Render(string(msg.Role)))
		}
		b.WriteByte('\n')

		body := render.Chunks(msg.Chunks)
		if msg.Streaming {
			if body == "" {
				body = "▌"
			} else {
				body += " ▌"
			}
		}
		b.WriteString(BodyStyle.Render(body))
	}
	return b.String()
}

// Run starts the chat view and blocks until the user quits. Store and
// session updates are forwarded into the program as messages.
func Run(sess *session.Session, store *conversation.Store, opts Options) error {
	p := tea.NewProgram(NewModel(sess, opts), tea.WithAltScreen())

	store.Subscribe(func(st conversation.State) {
		p.Send(stateMsg(st))
	})
	sess.Observe(func(rec *types.ChatRecord) {
		p.Send(recordMsg(rec))
	})

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat view: %w", err)
	}
	return nil
}
