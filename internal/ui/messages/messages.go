package messages

import (
	"citspace/internal/models"
	"citspace/internal/session"
)

// StreamMsg carries a relay stream event into the update loop.
type StreamMsg struct {
	Event session.Event
}

type ToastExpiredMsg struct {
	ID int
}

// OpenTerminalMsg asks the app to open the terminal dialog for a server.
type OpenTerminalMsg struct {
	Server models.Server
}

type CloseTerminalMsg struct{}

// ClipboardMsg reports the outcome of a copy to the system clipboard.
type ClipboardMsg struct {
	Err error
}
