package relay

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"citspace/internal/crypto"
	apperr "citspace/internal/error"
	"citspace/internal/logging"
	"citspace/internal/models"
	"citspace/internal/session"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

var testMarkers = models.Markers{
	Connected:  "Connected to",
	KeyFailed:  "SSH key authentication failed",
	KeyMissing: "No SSH key available",
}

// echoShell echoes its input back as output.
type echoShell struct {
	r    *io.PipeReader
	w    *io.PipeWriter
	once sync.Once
}

func newEchoShell() *echoShell {
	r, w := io.Pipe()
	return &echoShell{r: r, w: w}
}

func (s *echoShell) Read(p []byte) (int, error) { return s.r.Read(p) }

func (s *echoShell) Write(p []byte) (int, error) {
	if string(p) == "exit\n" {
		s.Close()
		return len(p), nil
	}
	return s.w.Write(p)
}

func (s *echoShell) Close() error {
	s.once.Do(func() { s.w.Close() })
	return nil
}

type fakeShells struct {
	mu       sync.Mutex
	requests []ShellRequest
	password string
	signer   ssh.Signer
	err      error
}

func (f *fakeShells) DialShell(ctx context.Context, req ShellRequest) (Shell, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	c := req.Credentials
	if c.Signer != nil && f.signer != nil && string(c.Signer.PublicKey().Marshal()) == string(f.signer.PublicKey().Marshal()) {
		return newEchoShell(), nil
	}
	if c.Signer == nil && c.Password != "" && c.Password == f.password {
		return newEchoShell(), nil
	}
	return nil, apperr.New(apperr.AuthError, "authentication rejected", io.ErrUnexpectedEOF)
}

func (f *fakeShells) seen() []ShellRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ShellRequest(nil), f.requests...)
}

type keyMap map[int]ssh.Signer

func (k keyMap) Signer(id int) (ssh.Signer, error) {
	s, ok := k[id]
	if !ok {
		return nil, ErrNoKey
	}
	return s, nil
}

func newSigner(t *testing.T) (ssh.Signer, ed25519.PrivateKey) {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)
	return signer, priv
}

func startRelay(t *testing.T, keys KeyStore, shells ShellDialer) string {
	t.Helper()
	srv := httptest.NewServer(NewServer(Options{
		Markers: testMarkers,
		Keys:    keys,
		Shells:  shells,
		Logger:  logging.Discard(),
	}))
	t.Cleanup(srv.Close)
	url, err := session.RelayURL(srv.URL, "/ws/terminal")
	require.NoError(t, err)
	return url
}

// exchange sends one connect frame and collects text until the relay
// closes the stream.
func exchange(t *testing.T, url string, msg session.ConnectMessage) (string, *websocket.CloseError) {
	t.Helper()
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer c.Close()
	data, err := msg.Marshal()
	require.NoError(t, err)
	require.NoError(t, c.WriteMessage(websocket.TextMessage, data))

	var out strings.Builder
	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, frame, err := c.ReadMessage()
		if err != nil {
			ce, ok := err.(*websocket.CloseError)
			require.True(t, ok, "expected close frame, got %v", err)
			return out.String(), ce
		}
		out.Write(frame)
	}
}

func target() session.Target {
	return session.Target{Host: "10.0.0.5", Port: 22, Username: "root", ServerID: 7}
}

func TestNoKeyReportsMissingMarker(t *testing.T) {
	shells := &fakeShells{}
	url := startRelay(t, keyMap{}, shells)

	out, ce := exchange(t, url, session.NewConnectMessage(target(), ""))
	require.Contains(t, out, "No SSH key available")
	require.Equal(t, websocket.CloseNormalClosure, ce.Code)
	require.Empty(t, shells.seen())
}

func TestRejectedKeyReportsFailureMarker(t *testing.T) {
	signer, _ := newSigner(t)
	other, _ := newSigner(t)
	shells := &fakeShells{signer: other}
	url := startRelay(t, keyMap{7: signer}, shells)

	out, ce := exchange(t, url, session.NewConnectMessage(target(), ""))
	require.Contains(t, out, "SSH key authentication failed")
	require.Equal(t, websocket.CloseNormalClosure, ce.Code)
	reqs := shells.seen()
	require.Len(t, reqs, 1)
	require.Equal(t, "10.0.0.5", reqs[0].Host)
	require.Equal(t, "root", reqs[0].Username)
	require.NotNil(t, reqs[0].Credentials.Signer)
}

func TestRejectedPassword(t *testing.T) {
	url := startRelay(t, keyMap{}, &fakeShells{password: "right"})
	out, ce := exchange(t, url, session.NewConnectMessage(target(), "wrong"))
	require.Equal(t, "Authentication failed\r\n", out)
	require.Equal(t, websocket.CloseNormalClosure, ce.Code)
}

func TestUnreachableHost(t *testing.T) {
	shells := &fakeShells{err: apperr.New(apperr.ConnectionError, "failed to reach host", io.EOF)}
	url := startRelay(t, keyMap{}, shells)
	out, ce := exchange(t, url, session.NewConnectMessage(target(), "pw"))
	require.Contains(t, out, "Connection to host failed")
	require.Equal(t, websocket.CloseInternalServerErr, ce.Code)
}

func TestInvalidConnectMessage(t *testing.T) {
	url := startRelay(t, keyMap{}, &fakeShells{})
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(`{"port":22}`)))

	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err := c.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, "Invalid connect message\r\n", string(frame))
	_, _, err = c.ReadMessage()
	ce, ok := err.(*websocket.CloseError)
	require.True(t, ok)
	require.Equal(t, websocket.ClosePolicyViolation, ce.Code)
}

func TestKeyThenPasswordThroughManager(t *testing.T) {
	signer, _ := newSigner(t)
	url := startRelay(t, keyMap{7: signer}, &fakeShells{password: "hunter2"})

	events := make(chan session.Event, 64)
	m := session.NewManager(session.Options{
		RelayURL:    url,
		Markers:     testMarkers,
		ClosePolicy: models.ClosePolicy{NormalCodes: []int{1000}},
		Post:        func(ev session.Event) { events <- ev },
		DialTimeout: 2 * time.Second,
		Logger:      logging.Discard(),
	})

	pump := func(until func() bool) {
		t.Helper()
		deadline := time.After(3 * time.Second)
		for !until() {
			select {
			case ev := <-events:
				m.HandleEvent(ev)
			case <-deadline:
				t.Fatalf("timed out in state %s", m.State())
			}
		}
	}

	m.Open(target())
	pump(func() bool { return m.State() == session.StateAwaitingPassword })
	require.Contains(t, m.Scrollback().Plain(), "SSH key authentication failed")

	require.NoError(t, m.SubmitPassword("hunter2"))
	pump(func() bool { return m.State() == session.StateConnected })
	require.Contains(t, m.Scrollback().Plain(), "Connected to 10.0.0.5")

	m.HandleKey("enter", "whoami")
	pump(func() bool { return strings.Contains(m.Scrollback().Plain(), "whoami\n") })

	m.HandleKey("enter", "exit")
	pump(func() bool { return m.State() == session.StateClosed })
	require.NotContains(t, m.Scrollback().Plain(), "Connection closed (code")
}

func TestConfigKeyStore(t *testing.T) {
	_, priv := newSigner(t)
	block, err := ssh.MarshalPrivateKey(priv, "")
	require.NoError(t, err)
	pemData := string(pem.EncodeToMemory(block))

	cipher := crypto.NewCipher("master")
	key, err := models.NewKey(7, "deploy key", "", pemData, cipher)
	require.NoError(t, err)
	require.NotContains(t, key.KeyData, "PRIVATE KEY")

	store := NewConfigKeyStore([]models.Key{*key}, cipher)
	signer, err := store.Signer(7)
	require.NoError(t, err)
	require.Equal(t, ssh.KeyAlgoED25519, signer.PublicKey().Type())

	_, err = store.Signer(8)
	require.ErrorIs(t, err, ErrNoKey)

	_, err = NewConfigKeyStore([]models.Key{*key}, crypto.NewCipher("wrong")).Signer(7)
	require.True(t, apperr.Is(err, apperr.CryptoError))
}
