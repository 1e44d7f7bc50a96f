// internal/ui/models.go

package ui

import (
	"time"

	"citspace/internal/config"
	"citspace/internal/models"
	"citspace/internal/session"
	"citspace/internal/ui/messages"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// ToastTTL is how long a toast stays on screen.
const ToastTTL = 4 * time.Second

// KeyMap defines the key bindings.
type KeyMap struct {
	Up          key.Binding
	Down        key.Binding
	Enter       key.Binding
	Back        key.Binding
	Quit        key.Binding
	Disconnect  key.Binding
	AutoScroll  key.Binding
	Maximize    key.Binding
	Copy        key.Binding
	PageUp      key.Binding
	PageDown    key.Binding
	ScrollStart key.Binding
	ScrollEnd   key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
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
			key.WithHelp("enter", "open terminal"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "close"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Disconnect: key.NewBinding(
			key.WithKeys("alt+d"),
			key.WithHelp("alt+d", "disconnect"),
		),
		AutoScroll: key.NewBinding(
			key.WithKeys("alt+a"),
			key.WithHelp("alt+a", "auto-scroll"),
		),
		Maximize: key.NewBinding(
			key.WithKeys("alt+m"),
			key.WithHelp("alt+m", "maximize"),
		),
		Copy: key.NewBinding(
			key.WithKeys("alt+y"),
			key.WithHelp("alt+y", "copy output"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "scroll up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdn", "scroll down"),
		),
		ScrollStart: key.NewBinding(
			key.WithKeys("alt+home"),
			key.WithHelp("alt+home", "top"),
		),
		ScrollEnd: key.NewBinding(
			key.WithKeys("alt+end"),
			key.WithHelp("alt+end", "bottom"),
		),
	}
}

// Toast is a transient notification.
type Toast struct {
	ID    int
	Level session.Level
	Text  string
}

// Model is the state shared by every view: configuration, the session
// manager behind the terminal dialog, screen size and toasts.
type Model struct {
	keys    KeyMap
	config  *config.Manager
	session *session.Manager
	width   int
	height  int

	toasts  []Toast
	pending []Toast
	nextID  int
}

// NewModel wires the manager's notifications into the model's toasts.
// opts.Notifier is replaced.
func NewModel(cfg *config.Manager, opts session.Options) *Model {
	m := &Model{
		keys:   DefaultKeyMap(),
		config: cfg,
	}
	opts.Notifier = session.NotifierFunc(m.Notify)
	m.session = session.NewManager(opts)
	return m
}

func (m *Model) Keys() KeyMap                { return m.keys }
func (m *Model) Config() *config.Manager     { return m.config }
func (m *Model) Session() *session.Manager   { return m.session }
func (m *Model) GetServers() []models.Server { return m.config.GetServers() }

func (m *Model) SetTerminalSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) GetTerminalWidth() int  { return m.width }
func (m *Model) GetTerminalHeight() int { return m.height }

// Notify queues a toast. FlushToasts schedules its expiry.
func (m *Model) Notify(level session.Level, text string) {
	m.nextID++
	t := Toast{ID: m.nextID, Level: level, Text: text}
	m.toasts = append(m.toasts, t)
	m.pending = append(m.pending, t)
}

// FlushToasts returns a command expiring every toast queued since the last
// flush, or nil.
func (m *Model) FlushToasts() tea.Cmd {
	if len(m.pending) == 0 {
		return nil
	}
	cmds := make([]tea.Cmd, 0, len(m.pending))
	for _, t := range m.pending {
		id := t.ID
		cmds = append(cmds, tea.Tick(ToastTTL, func(time.Time) tea.Msg {
			return messages.ToastExpiredMsg{ID: id}
		}))
	}
	m.pending = nil
	return tea.Batch(cmds...)
}

// ExpireToast removes the toast with id.
func (m *Model) ExpireToast(id int) {
	for i, t := range m.toasts {
		if t.ID == id {
			m.toasts = append(m.toasts[:i], m.toasts[i+1:]...)
			return
		}
	}
}

func (m *Model) Toasts() []Toast {
	return m.toasts
}
