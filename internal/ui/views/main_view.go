package views

import (
	"fmt"
	"strings"

	"citspace/internal/models"
	"citspace/internal/session"
	"citspace/internal/ui"
	"citspace/internal/ui/components"
	"citspace/internal/ui/messages"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ServerItem adapts a server to the list.
type ServerItem struct {
	server models.Server
}

func (i ServerItem) Title() string { return i.server.Name }
func (i ServerItem) Description() string {
	t := session.TargetFor(i.server)
	if i.server.Description == "" {
		return t.String()
	}
	return fmt.Sprintf("%s · %s", t, i.server.Description)
}
func (i ServerItem) FilterValue() string { return i.server.Name + " " + i.server.Host }

type mainView struct {
	model  *ui.Model
	list   list.Model
	keys   ui.KeyMap
	width  int
	height int
	popup  *components.Popup
}

func NewMainView(model *ui.Model) *mainView {
	servers := model.GetServers()
	items := make([]list.Item, 0, len(servers))
	for _, s := range servers {
		items = append(items, ServerItem{server: s})
	}

	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = "CITspace ❯ Servers"
	l.Styles.Title = ui.TitleStyle
	l.SetShowHelp(false)
	l.SetStatusBarItemName("server", "servers")

	v := &mainView{
		model:  model,
		list:   l,
		keys:   model.Keys(),
		width:  model.GetTerminalWidth(),
		height: model.GetTerminalHeight(),
	}
	v.resize()
	return v
}

func (v *mainView) Init() tea.Cmd {
	return nil
}

func (v *mainView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		v.resize()
		return v, nil

	case tea.KeyMsg:
		if v.popup != nil {
			switch msg.String() {
			case "esc", "enter":
				v.popup = nil
			}
			return v, nil
		}
		if v.list.FilterState() == list.Filtering {
			break
		}

		switch {
		case key.Matches(msg, v.keys.Quit):
			return v, tea.Quit
		case key.Matches(msg, v.keys.Enter):
			item, ok := v.list.SelectedItem().(ServerItem)
			if !ok {
				v.popup = components.NewPopup(components.PopupMessage, "Servers",
					"No servers configured.\nAdd entries to the servers list in\n"+v.model.Config().GetConfigPath(),
					50, 8, v.width, v.height)
				return v, nil
			}
			server := item.server
			return v, func() tea.Msg { return messages.OpenTerminalMsg{Server: server} }
		case msg.String() == "?":
			v.popup = components.NewPopup(components.PopupHelp, "Keys", v.helpText(), 50, 14, v.width, v.height)
			return v, nil
		}
	}

	var cmd tea.Cmd
	v.list, cmd = v.list.Update(msg)
	return v, cmd
}

func (v *mainView) resize() {
	// footer: help line and toast line
	v.list.SetSize(v.width, max(v.height-2, 1))
}

func (v *mainView) helpText() string {
	var b strings.Builder
	for _, k := range []key.Binding{
		v.keys.Enter, v.keys.Back, v.keys.Disconnect, v.keys.AutoScroll,
		v.keys.Maximize, v.keys.Copy, v.keys.PageUp, v.keys.PageDown, v.keys.Quit,
	} {
		h := k.Help()
		fmt.Fprintf(&b, "%-10s %s\n", h.Key, h.Desc)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (v *mainView) View() string {
	if v.popup != nil {
		return v.popup.Render()
	}
	footer := ui.DescriptionStyle.Render("enter open terminal • / filter • ? keys • q quit")
	toast := ""
	if toasts := v.model.Toasts(); len(toasts) > 0 {
		toast = renderToast(toasts[len(toasts)-1])
	}
	return lipgloss.JoinVertical(lipgloss.Left, v.list.View(), footer, toast)
}
