package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ryanmello/lilli/pkg/models"
)

// TurnFunc runs one conversation turn.
type TurnFunc func(ctx context.Context, sessionID, text string) (models.FinalResponse, error)

// ChatConfig wires the chat screen to a conversation backend.
type ChatConfig struct {
	// SessionID is the session the screen starts in.
	SessionID string
	// Turn runs a request. Required.
	Turn TurnFunc
	// Forget drops a session's stored state. Optional.
	Forget func(ctx context.Context, sessionID string) error
	// NewSession returns a fresh session ID. Required for /new and /forget.
	NewSession func() string
	// Format renders a reply. Defaults to the reply message.
	Format func(models.FinalResponse) string
	// Title is shown above the transcript.
	Title string
}

// TurnDoneMsg carries the result of a turn back to the UI.
type TurnDoneMsg struct {
	SessionID string
	Response  models.FinalResponse
	Err       error
	Elapsed   time.Duration
}

// ActivityMsg reports handler progress for a session.
type ActivityMsg struct {
	SessionID string
	Text      string
}

// NoticeMsg shows a one-line status in the footer.
type NoticeMsg struct {
	Text string
	Err  error
}

// ChatApp is the bubbletea model for the chat screen.
type ChatApp struct {
	cfg        ChatConfig
	ctx        context.Context
	inputField *InputField
	transcript viewport.Model
	spinner    spinner.Model
	footer     *Footer
	entries    []string
	sessionID  string
	busy       bool
	activity   string
	width      int
	height     int
	quitting   bool

	titleStyle lipgloss.Style
	youStyle   lipgloss.Style
	errorStyle lipgloss.Style
	noteStyle  lipgloss.Style
}

// NewChatApp creates a new ChatApp. Turns run under ctx.
func NewChatApp(ctx context.Context, cfg ChatConfig) *ChatApp {
	if cfg.Format == nil {
		cfg.Format = func(r models.FinalResponse) string { return r.Message }
	}
	if cfg.Title == "" {
		cfg.Title = "Lilli"
	}

	a := &ChatApp{
		cfg:        cfg,
		ctx:        ctx,
		inputField: NewInputField(),
		transcript: viewport.New(80, 20),
		spinner:    spinner.New(spinner.WithSpinner(spinner.Dot)),
		footer:     NewFooter(),
		sessionID:  cfg.SessionID,
		width:      80,
		height:     24,

		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")).
			Padding(0, 1),

		youStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")),

		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")),

		noteStyle: lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color("243")),
	}
	a.spinner.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	a.footer.SetSession(a.sessionID)
	return a
}

// SessionID returns the session new requests are sent to.
func (a *ChatApp) SessionID() string {
	return a.sessionID
}

// Busy reports whether a turn is running.
func (a *ChatApp) Busy() bool {
	return a.busy
}

// Transcript returns the rendered transcript entries, oldest first.
func (a *ChatApp) Transcript() []string {
	out := make([]string, len(a.entries))
	copy(out, a.entries)
	return out
}

// Init implements tea.Model.
func (a *ChatApp) Init() tea.Cmd {
	return a.inputField.Focus()
}

// Update implements tea.Model.
func (a *ChatApp) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			a.quitting = true
			return a, tea.Quit

		case "pgup", "pgdown", "up", "down":
			var cmd tea.Cmd
			a.transcript, cmd = a.transcript.Update(msg)
			return a, cmd

		default:
			if a.busy {
				return a, nil
			}
			var cmd tea.Cmd
			a.inputField, cmd = a.inputField.Update(msg)
			return a, cmd
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.updateSizes()
		return a, nil

	case RequestSubmittedMsg:
		if strings.HasPrefix(msg.Text, "/") {
			return a, a.command(msg.Text)
		}
		a.append(a.youStyle.Render("you> ") + msg.Text)
		a.busy = true
		a.activity = "routing"
		a.footer.SetMessage("", true)
		return a, tea.Batch(a.spinner.Tick, a.runTurn(a.sessionID, msg.Text))

	case TurnDoneMsg:
		if msg.SessionID != a.sessionID {
			return a, nil
		}
		a.busy = false
		a.activity = ""
		a.append(a.cfg.Format(msg.Response))
		a.footer.RecordTurn(msg.Response.Partial, msg.Err != nil)
		if msg.Err != nil {
			a.append(a.errorStyle.Render("✗ " + msg.Err.Error()))
			a.footer.SetMessage("turn failed", false)
		} else {
			a.footer.SetMessage(fmt.Sprintf("%.1fs", msg.Elapsed.Seconds()), true)
		}
		return a, nil

	case ActivityMsg:
		if a.busy && msg.SessionID == a.sessionID {
			a.activity = msg.Text
		}
		return a, nil

	case NoticeMsg:
		if msg.Err != nil {
			a.footer.SetMessage(msg.Err.Error(), false)
		} else {
			a.footer.SetMessage(msg.Text, true)
		}
		return a, nil

	case spinner.TickMsg:
		if !a.busy {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	return a, nil
}

// runTurn returns a command that runs one turn off the UI goroutine.
func (a *ChatApp) runTurn(sessionID, text string) tea.Cmd {
	turn := a.cfg.Turn
	ctx := a.ctx
	return func() tea.Msg {
		start := time.Now()
		resp, err := turn(ctx, sessionID, text)
		return TurnDoneMsg{
			SessionID: sessionID,
			Response:  resp,
			Err:       err,
			Elapsed:   time.Since(start),
		}
	}
}

// command handles a slash command typed into the input.
func (a *ChatApp) command(text string) tea.Cmd {
	switch strings.Fields(text)[0] {
	case "/quit", "/exit":
		a.quitting = true
		return tea.Quit

	case "/session":
		a.append(a.noteStyle.Render("session " + a.sessionID))
		return nil

	case "/new":
		if a.busy || a.cfg.NewSession == nil {
			return noticeCmd("", fmt.Errorf("cannot start a new session now"))
		}
		a.switchSession(a.cfg.NewSession())
		return noticeCmd("new session "+shortID(a.sessionID), nil)

	case "/forget":
		if a.busy || a.cfg.NewSession == nil {
			return noticeCmd("", fmt.Errorf("cannot forget the session now"))
		}
		old := a.sessionID
		a.switchSession(a.cfg.NewSession())
		forget := a.cfg.Forget
		if forget == nil {
			return noticeCmd("new session "+shortID(a.sessionID), nil)
		}
		ctx := a.ctx
		return func() tea.Msg {
			if err := forget(ctx, old); err != nil {
				return NoticeMsg{Err: fmt.Errorf("forget %s: %w", shortID(old), err)}
			}
			return NoticeMsg{Text: "forgot " + shortID(old)}
		}

	default:
		return noticeCmd("", fmt.Errorf("unknown command %s", text))
	}
}

func noticeCmd(text string, err error) tea.Cmd {
	return func() tea.Msg { return NoticeMsg{Text: text, Err: err} }
}

// switchSession moves the screen to a new session with an empty transcript.
func (a *ChatApp) switchSession(id string) {
	a.sessionID = id
	a.entries = nil
	a.activity = ""
	a.footer.SetSession(id)
	a.refresh()
}

// append adds an entry to the transcript and scrolls to it.
func (a *ChatApp) append(entry string) {
	a.entries = append(a.entries, entry)
	a.refresh()
}

func (a *ChatApp) refresh() {
	wrap := lipgloss.NewStyle().Width(a.transcript.Width)
	a.transcript.SetContent(wrap.Render(strings.Join(a.entries, "\n\n")))
	a.transcript.GotoBottom()
}

// updateSizes updates the sizes of child components based on terminal size.
func (a *ChatApp) updateSizes() {
	// Title 1 line, status 1 line, input 3 lines (border + content), footer 1 line.
	transcriptHeight := a.height - 6
	if transcriptHeight < 3 {
		transcriptHeight = 3
	}
	a.transcript.Width = a.width
	a.transcript.Height = transcriptHeight
	a.inputField.SetWidth(a.width)
	a.footer.SetWidth(a.width)
	a.refresh()
}

// View implements tea.Model.
func (a *ChatApp) View() string {
	if a.quitting {
		return "Goodbye!\n"
	}

	status := ""
	if a.busy {
		status = a.spinner.View() + " " + a.noteStyle.Render(a.activity)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		a.titleStyle.Render(a.cfg.Title),
		a.transcript.View(),
		status,
		a.inputField.View(),
		a.footer.View(),
	)
}

// NewChatProgram creates a new Bubbletea program for the chat screen.
func NewChatProgram(ctx context.Context, cfg ChatConfig) (*tea.Program, *ChatApp) {
	app := NewChatApp(ctx, cfg)
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	return p, app
}
