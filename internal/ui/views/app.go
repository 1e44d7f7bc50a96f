package views

import (
	"citspace/internal/models"
	"citspace/internal/terminal"
	"citspace/internal/ui"
	"citspace/internal/ui/messages"

	tea "github.com/charmbracelet/bubbletea"
)

// App is the root program model: it switches between the server list and
// the terminal dialog and feeds stream events to the session.
type App struct {
	model   *ui.Model
	clock   terminal.Clock
	servers *mainView
	current tea.Model
	open    *models.Server
}

// NewApp builds the root model. When open is set the terminal dialog for
// that server is opened on start.
func NewApp(model *ui.Model, clock terminal.Clock, open *models.Server) *App {
	if clock == nil {
		clock = terminal.RealClock{}
	}
	servers := NewMainView(model)
	return &App{
		model:   model,
		clock:   clock,
		servers: servers,
		current: servers,
		open:    open,
	}
}

func (a *App) Init() tea.Cmd {
	if a.open != nil {
		server := *a.open
		return func() tea.Msg { return messages.OpenTerminalMsg{Server: server} }
	}
	return a.current.Init()
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.model.SetTerminalSize(msg.Width, msg.Height)
		if a.current != tea.Model(a.servers) {
			a.servers.Update(msg)
		}
		a.current, cmd = a.current.Update(msg)

	case messages.StreamMsg:
		a.model.Session().HandleEvent(msg.Event)
		a.current, cmd = a.current.Update(msg)

	case messages.ToastExpiredMsg:
		a.model.ExpireToast(msg.ID)

	case messages.OpenTerminalMsg:
		term := NewTerminalView(a.model, msg.Server, a.clock)
		a.current = term
		cmd = term.Init()

	case messages.CloseTerminalMsg:
		a.current = a.servers

	default:
		a.current, cmd = a.current.Update(msg)
	}
	return a, tea.Batch(cmd, a.model.FlushToasts())
}

func (a *App) View() string {
	return a.current.View()
}

// Current returns the active view.
func (a *App) Current() tea.Model {
	return a.current
}
