// internal/session/state.go

package session

import (
	"fmt"

	"citspace/internal/models"
)

// State is the lifecycle position of a terminal session.
type State int

const (
	StateIdle State = iota
	StateConnectingKey
	StateAwaitingPassword
	StateConnectingPassword
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnectingKey:
		return "connecting (key)"
	case StateAwaitingPassword:
		return "awaiting password"
	case StateConnectingPassword:
		return "connecting (password)"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Connecting reports whether a stream attempt is in flight.
func (s State) Connecting() bool {
	return s == StateConnectingKey || s == StateConnectingPassword
}

// transitions lists every legal edge of the state machine.
var transitions = map[State][]State{
	StateIdle:               {StateConnectingKey, StateClosed},
	StateConnectingKey:      {StateConnectingKey, StateConnected, StateAwaitingPassword, StateIdle, StateClosed},
	StateAwaitingPassword:   {StateConnectingKey, StateConnectingPassword, StateIdle, StateClosed},
	StateConnectingPassword: {StateConnectingKey, StateConnectingPassword, StateConnected, StateAwaitingPassword, StateIdle, StateClosed},
	StateConnected:          {StateConnectingKey, StateIdle, StateClosed},
	StateClosed:             {StateConnectingKey, StateIdle, StateClosed},
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// AuthMode is how the relay is asked to authenticate.
type AuthMode string

const (
	AuthKey      AuthMode = "ssh-key"
	AuthPassword AuthMode = "password"
)

// Target identifies the remote shell behind the relay.
type Target struct {
	Host     string
	Port     int
	Username string
	ServerID int
}

// TargetFor builds a target from a configured server, applying the default
// port and username.
func TargetFor(s models.Server) Target {
	s = s.WithDefaults()
	return Target{
		Host:     s.Host,
		Port:     s.Port,
		Username: s.Username,
		ServerID: s.ID,
	}
}

func (t Target) String() string {
	return fmt.Sprintf("%s@%s:%d", t.Username, t.Host, t.Port)
}

// Session is the logical connection owned by a Manager for one dialog.
type Session struct {
	Target   Target
	AuthMode AuthMode
	State    State
}
