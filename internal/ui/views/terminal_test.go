package views

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"citspace/internal/config"
	apperr "citspace/internal/error"
	"citspace/internal/logging"
	"citspace/internal/models"
	"citspace/internal/session"
	"citspace/internal/ui"
	"citspace/internal/ui/messages"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"
)

type pipeConn struct {
	inbound chan []byte
	done    chan struct{}
	once    sync.Once

	mu      sync.Mutex
	written []string
}

func (c *pipeConn) ReadMessage() ([]byte, error) {
	select {
	case d := <-c.inbound:
		return d, nil
	case <-c.done:
		return nil, &session.CloseError{Code: session.CloseNormal}
	}
}

func (c *pipeConn) WriteMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, string(data))
	return nil
}

func (c *pipeConn) Close(int, string) error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *pipeConn) Written() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.written...)
}

type pipeDialer struct {
	mu    sync.Mutex
	conns []*pipeConn
}

func (d *pipeDialer) Dial(ctx context.Context, url string) (session.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := &pipeConn{inbound: make(chan []byte, 64), done: make(chan struct{})}
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *pipeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func (d *pipeDialer) last() *pipeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[len(d.conns)-1]
}

type stepClock struct{ now time.Time }

func (c *stepClock) Now() time.Time { return c.now }

type fixture struct {
	app    *App
	model  *ui.Model
	dialer *pipeDialer
	events chan session.Event
	clock  *stepClock
	// received counts handled inbound frames.
	received int
}

var testServer = models.Server{ID: 7, Name: "web-1", Host: "10.0.0.5"}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.NewManager(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, cfg.AddServer(testServer))

	f := &fixture{
		dialer: &pipeDialer{},
		events: make(chan session.Event, 256),
		clock:  &stepClock{now: time.Unix(1700000000, 0)},
	}
	f.model = ui.NewModel(cfg, session.Options{
		RelayURL:    "ws://relay.test/ws/terminal",
		Markers:     cfg.Config().Markers,
		ClosePolicy: cfg.Config().ClosePolicy,
		Dialer:      f.dialer,
		Post:        func(ev session.Event) { f.events <- ev },
		Logger:      logging.Discard(),
	})
	f.app = NewApp(f.model, f.clock, nil)
	f.send(tea.WindowSizeMsg{Width: 100, Height: 30})
	return f
}

func (f *fixture) send(msg tea.Msg) tea.Cmd {
	_, cmd := f.app.Update(msg)
	return cmd
}

// pump feeds stream events into the app until cond holds.
func (f *fixture) pump(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case ev := <-f.events:
			if _, ok := ev.(session.Received); ok {
				f.received++
			}
			f.send(messages.StreamMsg{Event: ev})
		case <-deadline:
			t.Fatalf("timed out in state %s", f.model.Session().State())
		}
	}
}

func (f *fixture) open(t *testing.T) *terminalView {
	t.Helper()
	f.send(messages.OpenTerminalMsg{Server: testServer})
	term, ok := f.app.Current().(*terminalView)
	require.True(t, ok)
	f.pump(t, func() bool { return f.dialer.count() > 0 && len(f.dialer.last().Written()) > 0 })
	return term
}

// feed delivers output and waits until it reaches the scrollback.
func (f *fixture) feed(t *testing.T, text string) {
	t.Helper()
	n := f.received
	f.dialer.last().inbound <- []byte(text)
	f.pump(t, func() bool { return f.received > n })
}

func (f *fixture) connect(t *testing.T) *terminalView {
	t.Helper()
	term := f.open(t)
	f.feed(t, "Connected to 10.0.0.5\r\n")
	require.Equal(t, session.StateConnected, f.model.Session().State())
	return term
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func altKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}, Alt: true}
}

func manyLines(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "line %d\r\n", i)
	}
	return b.String()
}

func TestServerListOpensTerminal(t *testing.T) {
	f := newFixture(t)
	require.Contains(t, f.app.View(), "web-1")

	cmd := f.send(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	var open messages.OpenTerminalMsg
	for _, msg := range collect(cmd) {
		if m, ok := msg.(messages.OpenTerminalMsg); ok {
			open = m
		}
	}
	require.Equal(t, testServer, open.Server)

	f.send(open)
	require.Equal(t, session.StateConnectingKey, f.model.Session().State())
	require.Contains(t, f.app.View(), "Terminal ❯ web-1")
}

func TestTypedCommandIsSent(t *testing.T) {
	f := newFixture(t)
	term := f.connect(t)

	f.send(keyRunes("uptime"))
	require.Equal(t, "uptime", term.input.Value())
	f.send(tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, "", term.input.Value())
	written := f.dialer.last().Written()
	require.Equal(t, "uptime\n", written[len(written)-1])

	f.send(tea.KeyMsg{Type: tea.KeyUp})
	require.Equal(t, "uptime", term.input.Value())

	f.send(keyRunes(" -p"))
	f.send(tea.KeyMsg{Type: tea.KeyCtrlC})
	written = f.dialer.last().Written()
	require.Equal(t, "\x03", written[len(written)-1])
	require.Equal(t, "uptime -p", term.input.Value(), "control keys leave the line alone")
}

func TestClearEmptiesViewport(t *testing.T) {
	f := newFixture(t)
	term := f.connect(t)
	f.feed(t, manyLines(200))
	require.Greater(t, term.viewport.YOffset, 0)

	f.send(tea.KeyMsg{Type: tea.KeyCtrlL})
	require.Equal(t, 0, f.model.Session().Scrollback().Len())
	require.Equal(t, 0, term.viewport.YOffset)
	require.NotContains(t, f.app.View(), "line 199")

	// Typing "clear" does the same and is not sent.
	f.feed(t, manyLines(50))
	sent := len(f.dialer.last().Written())
	f.send(keyRunes("clear"))
	f.send(tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, 0, f.model.Session().Scrollback().Len())
	require.Equal(t, 0, term.viewport.YOffset)
	require.Len(t, f.dialer.last().Written(), sent)
}

func TestAutoScrollPausesAfterManualScroll(t *testing.T) {
	f := newFixture(t)
	term := f.connect(t)
	f.feed(t, manyLines(100))
	require.True(t, term.viewport.AtBottom())

	f.send(tea.KeyMsg{Type: tea.KeyPgUp})
	offset := term.viewport.YOffset
	require.False(t, term.viewport.AtBottom())

	f.feed(t, "more output\r\n")
	require.Equal(t, offset, term.viewport.YOffset, "reader keeps their place")

	// Back at the bottom, following resumes once the quiet period passes.
	f.send(tea.KeyMsg{Type: tea.KeyPgDown})
	f.send(tea.KeyMsg{Type: tea.KeyPgDown})
	f.clock.now = f.clock.now.Add(3 * time.Second)
	f.feed(t, manyLines(20))
	require.True(t, term.viewport.AtBottom())

	f.send(altKey('a'))
	require.False(t, term.auto.Enabled())
	require.Contains(t, f.app.View(), "auto-scroll off")
}

func TestPasswordPrompt(t *testing.T) {
	f := newFixture(t)
	term := f.open(t)
	f.feed(t, "SSH key authentication failed\r\n")
	require.Equal(t, session.StateAwaitingPassword, f.model.Session().State())
	require.True(t, term.password.Focused())
	require.False(t, term.input.Focused())

	f.send(keyRunes("s3cret"))
	require.Equal(t, "", term.input.Value())
	require.NotContains(t, f.app.View(), "s3cret")

	f.send(tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, session.StateConnectingPassword, f.model.Session().State())
	require.Equal(t, "", term.password.Value())

	f.pump(t, func() bool { return f.dialer.count() == 2 && len(f.dialer.last().Written()) > 0 })
	require.Contains(t, f.dialer.last().Written()[0], `"passwordB64":"czNjcmV0"`)

	f.feed(t, "Connected to 10.0.0.5\r\n")
	require.True(t, term.input.Focused())
	require.False(t, term.password.Focused())
}

func TestClearAtPasswordPrompt(t *testing.T) {
	f := newFixture(t)
	term := f.open(t)
	f.feed(t, "No SSH key available for server 7\r\n")
	require.Equal(t, session.StateAwaitingPassword, f.model.Session().State())
	f.send(keyRunes("abc"))

	f.send(tea.KeyMsg{Type: tea.KeyCtrlL})
	require.Equal(t, 0, f.model.Session().Scrollback().Len())
	require.Equal(t, 0, term.viewport.YOffset)
	require.LessOrEqual(t, term.viewport.TotalLineCount(), 1)
	require.Equal(t, "abc", term.password.Value())
	require.True(t, term.password.Focused())
	require.Equal(t, session.StateAwaitingPassword, f.model.Session().State())
}

func TestEscClosesDialog(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	f.send(keyRunes("ls"))
	f.send(tea.KeyMsg{Type: tea.KeyEnter})

	cmd := f.send(tea.KeyMsg{Type: tea.KeyEsc})
	require.Equal(t, session.StateClosed, f.model.Session().State())
	require.Equal(t, 0, f.model.Session().Scrollback().Len())
	require.Empty(t, f.model.Session().History().Entries())

	for _, msg := range collect(cmd) {
		f.send(msg)
	}
	_, ok := f.app.Current().(*mainView)
	require.True(t, ok)
}

func TestMaximizeResetsWhenClosed(t *testing.T) {
	f := newFixture(t)
	term := f.connect(t)
	normal := term.layout

	f.send(altKey('m'))
	require.True(t, term.maximized)
	require.Greater(t, term.layout.ViewportHeight, normal.ViewportHeight)

	f.send(altKey('d'))
	require.Equal(t, session.StateClosed, f.model.Session().State())
	require.False(t, term.maximized)
	require.Equal(t, normal, term.layout)
}

func TestCopyScrollback(t *testing.T) {
	f := newFixture(t)
	f.connect(t)

	orig := writeClipboard
	t.Cleanup(func() { writeClipboard = orig })
	var copied string
	writeClipboard = func(s string) error { copied = s; return nil }

	for _, msg := range collect(f.send(altKey('y'))) {
		f.send(msg)
	}
	require.Contains(t, copied, "Connected to 10.0.0.5")
	require.Equal(t, session.LevelSuccess, lastToast(f).Level)

	writeClipboard = func(string) error { return errors.New("no clipboard utility") }
	for _, msg := range collect(f.send(altKey('y'))) {
		cm, ok := msg.(messages.ClipboardMsg)
		require.True(t, ok)
		require.True(t, apperr.Is(cm.Err, apperr.ClipboardError))
		f.send(msg)
	}
	require.Equal(t, session.LevelError, lastToast(f).Level)
	require.Contains(t, lastToast(f).Text, "no clipboard utility")
}

func TestToastsExpire(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	toasts := f.model.Toasts()
	require.NotEmpty(t, toasts)

	f.send(messages.ToastExpiredMsg{ID: toasts[0].ID})
	for _, ts := range f.model.Toasts() {
		require.NotEqual(t, toasts[0].ID, ts.ID)
	}
}

func lastToast(f *fixture) ui.Toast {
	ts := f.model.Toasts()
	return ts[len(ts)-1]
}

// collect runs cmd and flattens batches, skipping timers and blink ticks.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()
	var msg tea.Msg
	select {
	case msg = <-done:
	case <-time.After(100 * time.Millisecond):
		return nil
	}
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, collect(c)...)
		}
		return out
	}
	switch msg.(type) {
	case messages.OpenTerminalMsg, messages.CloseTerminalMsg, messages.ClipboardMsg:
		return []tea.Msg{msg}
	}
	return nil
}
