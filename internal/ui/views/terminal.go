package views

import (
	"fmt"
	"strings"

	apperr "citspace/internal/error"
	"citspace/internal/models"
	"citspace/internal/session"
	"citspace/internal/terminal"
	"citspace/internal/ui"
	"citspace/internal/ui/messages"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"
)

const wheelLines = 3

// writeClipboard is replaced in tests.
var writeClipboard = clipboard.WriteAll

type terminalView struct {
	model  *ui.Model
	server models.Server
	keys   ui.KeyMap

	viewport viewport.Model
	input    textinput.Model
	password textinput.Model
	auto     *terminal.AutoScroll

	layout    ui.DialogLayout
	maximized bool
	lastState session.State
}

// NewTerminalView builds the terminal dialog for server. The session is
// opened by Init.
func NewTerminalView(model *ui.Model, server models.Server, clock terminal.Clock) *terminalView {
	input := textinput.New()
	input.Prompt = "$ "
	input.Placeholder = "Type a command..."
	input.Focus()

	password := textinput.New()
	password.Prompt = "Password: "
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'

	cfg := model.Config()
	v := &terminalView{
		model:    model,
		server:   server,
		keys:     model.Keys(),
		input:    input,
		password: password,
		auto:     terminal.NewAutoScroll(clock, cfg.Config().AutoScroll, cfg.ScrollQuiet()),
	}
	v.viewport = viewport.New(0, 0)
	v.resize()
	return v
}

func (v *terminalView) Init() tea.Cmd {
	v.model.Session().Open(session.TargetFor(v.server))
	v.sync()
	return textinput.Blink
}

func (v *terminalView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.resize()

	case messages.StreamMsg:
		// The app has already applied the event to the session.

	case messages.ClipboardMsg:
		if msg.Err != nil {
			v.model.Notify(session.LevelError, msg.Err.Error())
		} else {
			v.model.Notify(session.LevelSuccess, "Output copied to clipboard")
		}

	case tea.MouseMsg:
		if msg.Action != tea.MouseActionPress {
			break
		}
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			v.viewport.LineUp(wheelLines)
			v.auto.Scrolled(v.viewport.AtBottom())
		case tea.MouseButtonWheelDown:
			v.viewport.LineDown(wheelLines)
			v.auto.Scrolled(v.viewport.AtBottom())
		}

	case tea.KeyMsg:
		var done bool
		cmd, done = v.handleKey(msg)
		if done {
			return v, cmd
		}
	}

	v.sync()
	return v, cmd
}

// handleKey reports done when the dialog was closed.
func (v *terminalView) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	mgr := v.model.Session()
	switch {
	case key.Matches(msg, v.keys.Back):
		mgr.Close()
		return func() tea.Msg { return messages.CloseTerminalMsg{} }, true

	case key.Matches(msg, v.keys.Disconnect):
		mgr.Disconnect()
		return nil, false

	case key.Matches(msg, v.keys.AutoScroll):
		if v.auto.Toggle() {
			v.model.Notify(session.LevelInfo, "Auto-scroll on")
			v.viewport.GotoBottom()
		} else {
			v.model.Notify(session.LevelInfo, "Auto-scroll off")
		}
		return nil, false

	case key.Matches(msg, v.keys.Maximize):
		v.maximized = !v.maximized
		v.resize()
		return nil, false

	case key.Matches(msg, v.keys.Copy):
		text := mgr.Scrollback().Plain()
		return func() tea.Msg {
			if err := writeClipboard(text); err != nil {
				return messages.ClipboardMsg{Err: apperr.New(apperr.ClipboardError, "Copy failed", err)}
			}
			return messages.ClipboardMsg{}
		}, false

	case key.Matches(msg, v.keys.PageUp):
		v.viewport.ViewUp()
		v.auto.Scrolled(v.viewport.AtBottom())
		return nil, false

	case key.Matches(msg, v.keys.PageDown):
		v.viewport.ViewDown()
		v.auto.Scrolled(v.viewport.AtBottom())
		return nil, false

	case key.Matches(msg, v.keys.ScrollStart):
		v.viewport.GotoTop()
		v.auto.Scrolled(v.viewport.AtBottom())
		return nil, false

	case key.Matches(msg, v.keys.ScrollEnd):
		v.viewport.GotoBottom()
		v.auto.Scrolled(true)
		return nil, false
	}

	// Clearing the scrollback stays available at the password prompt.
	if mgr.State() == session.StateAwaitingPassword && msg.String() != "ctrl+l" {
		return v.handlePasswordKey(msg), false
	}

	act := mgr.HandleKey(msg.String(), v.input.Value())
	if act.ClearScrollback {
		v.viewport.SetContent("")
		v.viewport.GotoTop()
		v.auto.Reset()
	}
	if act.SetInput {
		v.input.SetValue(act.Input)
		v.input.CursorEnd()
	}
	if act.Handled {
		return nil, false
	}
	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return cmd, false
}

func (v *terminalView) handlePasswordKey(msg tea.KeyMsg) tea.Cmd {
	if msg.Type != tea.KeyEnter {
		var cmd tea.Cmd
		v.password, cmd = v.password.Update(msg)
		return cmd
	}
	pw := v.password.Value()
	v.password.Reset()
	if err := v.model.Session().SubmitPassword(pw); err != nil {
		v.model.Notify(session.LevelError, err.Error())
	}
	return nil
}

// sync brings the widgets in line with the session after any change.
func (v *terminalView) sync() {
	mgr := v.model.Session()
	state := mgr.State()
	if state != v.lastState {
		switch state {
		case session.StateAwaitingPassword:
			v.input.Blur()
			v.password.Focus()
		case session.StateClosed:
			v.password.Blur()
			v.password.Reset()
			v.input.Focus()
			if v.maximized {
				v.maximized = false
				v.resize()
			}
		default:
			v.password.Blur()
		}
		v.lastState = state
	}
	if mgr.TakeFocus() {
		v.password.Blur()
		v.input.Focus()
	}
	v.refresh()
}

func (v *terminalView) refresh() {
	sb := v.model.Session().Scrollback()
	if sb.Len() == 0 {
		v.viewport.SetContent("")
		v.viewport.GotoTop()
		return
	}
	content := strings.ReplaceAll(sb.Terminal(), "\r", "")
	v.viewport.SetContent(xansi.Hardwrap(content, v.layout.ViewportWidth, true))
	if v.auto.Follow() {
		v.viewport.GotoBottom()
	}
}

func (v *terminalView) resize() {
	v.layout = ui.NewDialogLayout(v.model.GetTerminalWidth(), v.model.GetTerminalHeight(), v.maximized)
	v.viewport.Width = v.layout.ViewportWidth
	v.viewport.Height = v.layout.ViewportHeight
	v.input.Width = v.layout.ViewportWidth - 4 - lipgloss.Width(v.input.Prompt)
	v.password.Width = v.layout.ViewportWidth - 4 - lipgloss.Width(v.password.Prompt)
	v.refresh()
}

func (v *terminalView) View() string {
	title := ui.TitleStyle.Render(fmt.Sprintf("Terminal ❯ %s", v.server.Name))

	field := v.input.View()
	if v.model.Session().State() == session.StateAwaitingPassword {
		field = v.password.View()
	}

	body := lipgloss.JoinVertical(
		lipgloss.Left,
		title,
		ui.ScrollbackStyle.Render(v.viewport.View()),
		v.layout.Input().Render(field),
		v.statusBar(),
	)
	dialog := v.layout.Frame().Render(body)

	return lipgloss.Place(
		v.model.GetTerminalWidth(),
		v.model.GetTerminalHeight(),
		lipgloss.Center,
		lipgloss.Center,
		dialog,
		lipgloss.WithWhitespaceForeground(lipgloss.Color("0")),
	)
}

func (v *terminalView) statusBar() string {
	st := v.model.Session().State()
	label := ui.StateStyle(st == session.StateConnected, st == session.StateIdle).Render(st.String())

	auto := "auto-scroll off"
	if v.auto.Enabled() {
		auto = "auto-scroll on"
	}
	parts := []string{label, session.TargetFor(v.server).String(), auto}
	if toasts := v.model.Toasts(); len(toasts) > 0 {
		parts = append(parts, renderToast(toasts[len(toasts)-1]))
	} else {
		parts = append(parts, "esc close • alt+d disconnect • alt+y copy • alt+m maximize")
	}
	line := xansi.Truncate(strings.Join(parts, " │ "), v.layout.ViewportWidth-2, "…")
	return ui.StatusBarStyle.Width(v.layout.ViewportWidth).Render(line)
}

func renderToast(t ui.Toast) string {
	switch t.Level {
	case session.LevelSuccess:
		return ui.SuccessStyle.Render(t.Text)
	case session.LevelError:
		return ui.ErrorStyle.Render(t.Text)
	default:
		return ui.InfoStyle.Render(t.Text)
	}
}
