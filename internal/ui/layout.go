// internal/ui/layout.go

package ui

import "github.com/charmbracelet/lipgloss"

const (
	dialogMargin    = 4
	dialogMinWidth  = 40
	dialogMinHeight = 12
	// title line, status bar, input box (three rows with border)
	dialogChrome = 1 + 1 + 3
	// rounded border and horizontal padding
	frameWidth  = 2 + 2
	frameHeight = 2
)

// DialogLayout holds the geometry of the terminal dialog for one screen
// size.
type DialogLayout struct {
	Width          int
	Height         int
	ViewportWidth  int
	ViewportHeight int
}

// NewDialogLayout sizes the dialog for a screen of width x height. A
// maximized dialog covers the whole screen; otherwise it keeps a margin.
func NewDialogLayout(width, height int, maximized bool) DialogLayout {
	w, h := width, height
	if !maximized {
		w -= 2 * dialogMargin
		h -= dialogMargin
	}
	w = max(w, dialogMinWidth)
	h = max(h, dialogMinHeight)
	return DialogLayout{
		Width:          w,
		Height:         h,
		ViewportWidth:  w - frameWidth,
		ViewportHeight: max(h-frameHeight-dialogChrome, 1),
	}
}

// Frame is the outer style of the dialog.
func (l DialogLayout) Frame() lipgloss.Style {
	return lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Border).
		Padding(0, 1).
		Width(l.Width - 2).
		Height(l.Height - frameHeight)
}

// Input is the style of the command input box.
func (l DialogLayout) Input() lipgloss.Style {
	return InputStyle.Width(l.ViewportWidth - 2)
}
