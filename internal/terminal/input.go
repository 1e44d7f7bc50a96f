// internal/terminal/input.go
//
// Package terminal holds the client-side state of one terminal dialog: the
// scrollback, the command line with its history, and the auto-scroll policy.

package terminal

import (
	"strings"
)

// Raw bytes sent for control-key shortcuts. They bypass the line buffer.
const (
	ETX = 0x03 // ctrl+c, interrupt
	EOT = 0x04 // ctrl+d, end of input
	SI  = 0x0f // ctrl+o
	VT  = 0x0b // ctrl+k, kill to end of line
	NAK = 0x15 // ctrl+u, kill line
	ETB = 0x17 // ctrl+w, erase word
	CAN = 0x18 // ctrl+x
	HT  = 0x09 // tab, completion
)

// ClearCommand is the line that clears the scrollback locally instead of
// being sent.
const ClearCommand = "clear"

var rawKeys = map[string]byte{
	"ctrl+c": ETX,
	"ctrl+d": EOT,
	"ctrl+x": CAN,
	"ctrl+o": SI,
	"ctrl+w": ETB,
	"ctrl+k": VT,
	"ctrl+u": NAK,
	"tab":    HT,
}

// Action is what the caller must do in response to one key. A zero Action
// means the key was not consumed and should go to the line editor.
type Action struct {
	// Handled is set when the key must not reach the line editor.
	Handled bool
	// Send holds bytes to write to the session, if any.
	Send []byte
	// ClearScrollback asks for a local clear; nothing is sent.
	ClearScrollback bool
	// SetInput replaces the line buffer with Input.
	SetInput bool
	Input    string
}

// Multiplexer decides per key whether to edit the line, act locally, or
// send raw bytes immediately.
type Multiplexer struct {
	history *History
}

func NewMultiplexer() *Multiplexer {
	return &Multiplexer{history: NewHistory()}
}

func (m *Multiplexer) History() *History {
	return m.history
}

// Reset drops the command history, as on dialog close.
func (m *Multiplexer) Reset() {
	m.history.Reset()
}

// HandleKey maps a key name (as bubbletea spells it, e.g. "ctrl+c", "up",
// "enter") to an Action. buffer is the current line. Session-bound actions
// only happen while connected; clear, ctrl+l and history recall are local
// and always available.
func (m *Multiplexer) HandleKey(key, buffer string, connected bool) Action {
	switch key {
	case "enter":
		return m.submit(buffer, connected)

	case "up":
		if cmd, ok := m.history.Up(); ok {
			return Action{Handled: true, SetInput: true, Input: cmd}
		}
		return Action{Handled: true}

	case "down":
		if cmd, ok := m.history.Down(); ok {
			return Action{Handled: true, SetInput: true, Input: cmd}
		}
		return Action{Handled: true}

	case "ctrl+l":
		return Action{Handled: true, ClearScrollback: true}
	}

	if b, ok := rawKeys[key]; ok {
		if !connected {
			return Action{Handled: true}
		}
		return Action{Handled: true, Send: []byte{b}}
	}
	return Action{}
}

func (m *Multiplexer) submit(buffer string, connected bool) Action {
	line := strings.TrimSpace(buffer)
	if strings.EqualFold(line, ClearCommand) {
		return Action{Handled: true, ClearScrollback: true, SetInput: true}
	}
	if line == "" || !connected {
		return Action{Handled: true}
	}
	m.history.Add(line)
	return Action{
		Handled:  true,
		Send:     []byte(line + "\n"),
		SetInput: true,
	}
}
