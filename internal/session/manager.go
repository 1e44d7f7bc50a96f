// internal/session/manager.go
//
// Package session owns the relay stream behind one terminal dialog. It runs
// the authentication fallback (key first, then password), feeds inbound
// output through the ANSI processor into the scrollback, and writes line and
// raw-key input back to the relay.
//
// A Manager is driven by a single event loop: Open, SubmitPassword,
// HandleKey, Send, Disconnect and Close are called from that loop, and
// stream goroutines hand their results back through the Post callback as
// Events, which the loop passes to HandleEvent.

package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"citspace/internal/ansi"
	apperr "citspace/internal/error"
	"citspace/internal/models"
	"citspace/internal/terminal"
)

// Level is the severity of a toast notification.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelError
)

// Notifier receives user-visible toast messages.
type Notifier interface {
	Notify(level Level, message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(level Level, message string)

func (f NotifierFunc) Notify(level Level, message string) { f(level, message) }

// Diagnostic line styles.
var (
	errorStyle = ansi.Style{FG: "#ff0000"}
	infoStyle  = ansi.Style{FG: "#ffff00"}
)

type Options struct {
	RelayURL    string
	Markers     models.Markers
	ClosePolicy models.ClosePolicy
	Dialer      Dialer
	Notifier    Notifier
	// Post delivers stream events to the event loop. It must not block for
	// long and must preserve call order.
	Post        func(Event)
	DialTimeout time.Duration
	Logger      *slog.Logger
}

// Manager is the connection manager for one terminal dialog. It is not
// safe for concurrent use; see the package documentation.
type Manager struct {
	opts Options
	log  *slog.Logger

	session Session
	// password is held only between SubmitPassword and the stream opening.
	password string

	conn   Conn
	gen    uint64
	cancel context.CancelFunc

	processor  *ansi.Processor
	scrollback *terminal.Scrollback
	input      *terminal.Multiplexer

	focus bool
}

func NewManager(opts Options) *Manager {
	if opts.Dialer == nil {
		opts.Dialer = WebSocketDialer{}
	}
	if opts.Notifier == nil {
		opts.Notifier = NotifierFunc(func(Level, string) {})
	}
	if opts.Post == nil {
		opts.Post = func(Event) {}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		opts:       opts,
		log:        logger.With("component", "session"),
		processor:  ansi.NewProcessor(),
		scrollback: terminal.NewScrollback(),
		input:      terminal.NewMultiplexer(),
	}
}

func (m *Manager) State() State {
	return m.session.State
}

func (m *Manager) Session() Session {
	return m.session
}

func (m *Manager) Scrollback() *terminal.Scrollback {
	return m.scrollback
}

func (m *Manager) History() *terminal.History {
	return m.input.History()
}

// TakeFocus reports, once, that a successful connection asked for input
// focus to return to the command line.
func (m *Manager) TakeFocus() bool {
	f := m.focus
	m.focus = false
	return f
}

// Open starts a session for target: any existing stream is torn down and a
// key-authenticated attempt begins.
func (m *Manager) Open(target Target) {
	m.teardown(CloseNormal, "reconnecting")
	m.session = Session{Target: target, AuthMode: AuthKey}
	m.password = ""
	m.transition(StateConnectingKey)
	m.scrollback.AppendLine(fmt.Sprintf("Connecting to %s ...", target), infoStyle)
	m.dial()
}

// SubmitPassword retries the session with password authentication on a
// fresh stream.
func (m *Manager) SubmitPassword(password string) error {
	if st := m.session.State; st != StateAwaitingPassword && st != StateConnectingPassword {
		return apperr.New(apperr.AuthError, fmt.Sprintf("password not expected while %s", st), nil)
	}
	if password == "" {
		return apperr.New(apperr.ValidationError, "password cannot be empty", nil)
	}
	m.teardown(CloseNormal, "retrying with password")
	m.password = password
	m.session.AuthMode = AuthPassword
	m.transition(StateConnectingPassword)
	m.dial()
	return nil
}

// Send writes one frame to the relay. It only works while connected.
func (m *Manager) Send(data []byte) error {
	if m.session.State != StateConnected || m.conn == nil {
		return apperr.New(apperr.ConnectionError, "not connected", nil)
	}
	if err := m.conn.WriteMessage(data); err != nil {
		m.scrollback.AppendLine(fmt.Sprintf("Write failed: %v", err), errorStyle)
		m.opts.Notifier.Notify(LevelError, "Failed to send input")
		return apperr.New(apperr.ConnectionError, "failed to send", err)
	}
	return nil
}

// HandleKey routes one key through the input multiplexer and performs the
// session side of the resulting action. The returned action tells the
// caller how to update its line editor.
func (m *Manager) HandleKey(key, buffer string) terminal.Action {
	act := m.input.HandleKey(key, buffer, m.session.State == StateConnected)
	if act.ClearScrollback {
		m.scrollback.Clear()
	}
	if act.Send != nil {
		if err := m.Send(act.Send); err != nil {
			m.log.Warn("send failed", "error", err)
		}
	}
	return act
}

// ClearScrollback empties the scrollback buffer.
func (m *Manager) ClearScrollback() {
	m.scrollback.Clear()
}

// Disconnect closes the stream at the user's request.
func (m *Manager) Disconnect() {
	if m.session.State == StateIdle || m.session.State == StateClosed {
		return
	}
	m.teardown(CloseNormal, "user disconnect")
	m.enterClosed()
}

// Close ends the dialog: the stream is released and all per-dialog state
// (scrollback, style, history) is discarded. A later Open starts fresh.
func (m *Manager) Close() {
	m.teardown(CloseNormal, "dialog closed")
	m.enterClosed()
	m.scrollback.Clear()
}

// HandleEvent applies one stream event. Events from streams other than the
// current one are dropped; a stale opened stream is closed.
func (m *Manager) HandleEvent(ev Event) {
	if ev.stream() != m.gen {
		if o, ok := ev.(Opened); ok && o.Conn != nil {
			_ = o.Conn.Close(CloseNormal, "stale stream")
		}
		m.log.Debug("dropping stale event", "stream", ev.stream(), "current", m.gen)
		return
	}

	switch e := ev.(type) {
	case Opened:
		m.onOpened(e)
	case Received:
		m.onReceived(e)
	case Failed:
		m.onFailed(e)
	case Closed:
		m.onClosed(e)
	}
}

func (m *Manager) onOpened(e Opened) {
	m.conn = e.Conn
	msg := NewConnectMessage(m.session.Target, m.password)
	m.password = ""
	data, err := msg.Marshal()
	if err == nil {
		err = m.conn.WriteMessage(data)
	}
	if err != nil {
		m.onFailed(Failed{Stream: e.Stream, Err: apperr.New(apperr.ProtocolError, "failed to send connect message", err)})
		return
	}
	m.log.Info("stream open", "target", m.session.Target.String(), "auth", m.session.AuthMode)
}

func (m *Manager) onReceived(e Received) {
	spans := m.processor.Process(string(e.Data))
	m.scrollback.Append(spans...)
	// Markers are matched on what the user sees, not on raw escapes.
	text := ansi.Plain(spans)

	markers := m.opts.Markers
	switch m.session.State {
	case StateConnectingKey, StateConnectingPassword:
		if markers.Connected != "" && strings.Contains(text, markers.Connected) {
			m.transition(StateConnected)
			m.focus = true
			m.opts.Notifier.Notify(LevelSuccess, fmt.Sprintf("Connected to %s", m.session.Target.Host))
			return
		}
		if m.session.State == StateConnectingKey && (containsMarker(text, markers.KeyFailed) || containsMarker(text, markers.KeyMissing)) {
			m.transition(StateAwaitingPassword)
			m.scrollback.AppendLine(fmt.Sprintf("Key authentication unavailable. Enter the password for %s.", m.session.Target), infoStyle)
		}
	}
}

func (m *Manager) onFailed(e Failed) {
	m.log.Warn("stream failed", "error", e.Err)
	m.teardown(CloseGoingAway, "stream failed")
	m.scrollback.AppendLine(fmt.Sprintf("Connection error: %v", e.Err), errorStyle)
	m.opts.Notifier.Notify(LevelError, "Terminal connection failed")
	m.password = ""
	m.transition(StateIdle)
}

func (m *Manager) onClosed(e Closed) {
	m.log.Info("stream closed", "code", e.Code, "reason", e.Reason, "clean", e.Clean)
	m.releaseConn(CloseNormal, "")
	if IsAbnormal(m.opts.ClosePolicy, e.Code, e.Clean) {
		reason := e.Reason
		if reason == "" {
			reason = "no reason given"
		}
		m.scrollback.AppendLine(fmt.Sprintf("Connection closed (code %d: %s)", e.Code, reason), errorStyle)
	}

	switch m.session.State {
	case StateAwaitingPassword:
		// The relay hangs up after reporting key failure; keep waiting.
	case StateConnectingPassword:
		m.transition(StateAwaitingPassword)
	default:
		m.enterClosed()
	}
}

// dial starts a new stream generation in the background.
func (m *Manager) dial() {
	m.gen++
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	go run(ctx, m.opts.Dialer, m.opts.RelayURL, m.opts.DialTimeout, m.gen, m.opts.Post)
}

// teardown invalidates the current stream generation and releases its
// handle, so nothing the old stream posts later is applied.
func (m *Manager) teardown(code int, reason string) {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.gen++
	m.releaseConn(code, reason)
}

func (m *Manager) releaseConn(code int, reason string) {
	if m.conn == nil {
		return
	}
	if err := m.conn.Close(code, reason); err != nil {
		m.log.Debug("close stream", "error", err)
	}
	m.conn = nil
}

func (m *Manager) enterClosed() {
	m.transition(StateClosed)
	m.session = Session{State: StateClosed}
	m.password = ""
	m.input.Reset()
	m.processor.Reset()
}

func (m *Manager) transition(to State) {
	from := m.session.State
	if !CanTransition(from, to) {
		m.log.Error("illegal session transition", "from", from, "to", to)
		return
	}
	if from != to {
		m.log.Info("session state", "from", from, "to", to)
	}
	m.session.State = to
}

func containsMarker(text, marker string) bool {
	return marker != "" && strings.Contains(text, marker)
}
