package components

import (
	"strings"

	"citspace/internal/ui"

	"github.com/charmbracelet/lipgloss"
)

type PopupType int

const (
	PopupNone PopupType = iota
	PopupMessage
	PopupError
	PopupHelp
)

type Popup struct {
	Type         PopupType
	Title        string
	Message      string
	Width        int
	Height       int
	ScreenWidth  int
	ScreenHeight int
}

func NewPopup(popupType PopupType, title, message string, width, height, screenWidth, screenHeight int) *Popup {
	return &Popup{
		Type:         popupType,
		Title:        title,
		Message:      message,
		Width:        width,
		Height:       height,
		ScreenWidth:  screenWidth,
		ScreenHeight: screenHeight,
	}
}

func (p *Popup) Render() string {
	border := ui.Border
	if p.Type == PopupError {
		border = ui.Error
	}
	popupStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(1, 2).
		Width(p.Width).
		Height(p.Height)

	titleStyle := ui.TitleStyle.
		Align(lipgloss.Center).
		Width(p.Width - 4)

	var content strings.Builder
	content.WriteString(titleStyle.Render(p.Title) + "\n\n")
	content.WriteString(p.Message + "\n")
	content.WriteString("\n" + ui.DescriptionStyle.Render("ESC/ENTER - Close"))

	return lipgloss.Place(
		p.ScreenWidth,
		p.ScreenHeight,
		lipgloss.Center,
		lipgloss.Center,
		popupStyle.Render(content.String()),
		lipgloss.WithWhitespaceForeground(lipgloss.Color("0")),
	)
}
