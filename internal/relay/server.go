// internal/relay/server.go
//
// Package relay is the server side of the terminal stream: it accepts a
// WebSocket from the client, reads the connect frame, authenticates to the
// target host over SSH (stored key first, then a supplied password) and
// bridges frames to the remote PTY. Authentication outcomes are reported
// as the plain-text markers the client watches for.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	apperr "citspace/internal/error"
	"citspace/internal/models"
	"citspace/internal/session"

	"github.com/gorilla/websocket"
	"golang.org/x/crypto/ssh"
)

const (
	readBufferSize = 32 * 1024
	writeWait      = 5 * time.Second
)

type Options struct {
	Markers models.Markers
	Keys    KeyStore
	Shells  ShellDialer
	Logger  *slog.Logger
	// CheckOrigin overrides the upgrader's origin check. Nil accepts any
	// origin.
	CheckOrigin func(r *http.Request) bool
}

// Server is an http.Handler serving the terminal relay endpoint.
type Server struct {
	markers  models.Markers
	keys     KeyStore
	shells   ShellDialer
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	check := opts.CheckOrigin
	if check == nil {
		check = func(*http.Request) bool { return true }
	}
	return &Server{
		markers: opts.Markers,
		keys:    opts.Keys,
		shells:  opts.Shells,
		log:     logger.With("component", "relay"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  readBufferSize,
			WriteBufferSize: readBufferSize,
			CheckOrigin:     check,
		},
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	c := &peer{conn: ws}
	defer ws.Close()

	_, data, err := ws.ReadMessage()
	if err != nil {
		s.log.Debug("no connect message", "remote", r.RemoteAddr, "error", err)
		return
	}
	msg, err := session.ParseConnectMessage(data)
	if err != nil {
		c.text("Invalid connect message\r\n")
		c.close(websocket.ClosePolicyViolation, "invalid connect message")
		return
	}
	log := s.log.With("remote", r.RemoteAddr, "target", fmt.Sprintf("%s@%s:%d", msg.Username, msg.Host, msg.Port), "server_id", msg.ServerID)

	sh, ok := s.authenticate(r.Context(), c, msg, log)
	if !ok {
		return
	}
	defer sh.Close()

	c.text(fmt.Sprintf("%s %s\r\n", s.markers.Connected, msg.Host))
	log.Info("shell attached")
	code, reason := s.bridge(c, sh)
	c.close(code, reason)
	log.Info("shell detached", "code", code, "reason", reason)
}

// authenticate opens the shell, reporting failures to the client. On
// failure the stream has already been closed.
func (s *Server) authenticate(ctx context.Context, c *peer, msg session.ConnectMessage, log *slog.Logger) (Shell, bool) {
	password, err := msg.Password()
	if err != nil {
		c.text("Invalid connect message\r\n")
		c.close(websocket.ClosePolicyViolation, "invalid password encoding")
		return nil, false
	}
	sreq := ShellRequest{Host: msg.Host, Port: msg.Port, Username: msg.Username}

	if password == "" {
		signer, err := s.lookupKey(msg.ServerID)
		if errors.Is(err, ErrNoKey) {
			log.Info("no key for server")
			c.text(fmt.Sprintf("%s for server %d\r\n", s.markers.KeyMissing, msg.ServerID))
			c.close(websocket.CloseNormalClosure, "no key")
			return nil, false
		}
		if err != nil {
			log.Warn("key unusable", "error", err)
			c.text(fmt.Sprintf("%s: %v\r\n", s.markers.KeyFailed, err))
			c.close(websocket.CloseNormalClosure, "key unusable")
			return nil, false
		}
		sreq.Credentials = Credentials{Signer: signer}
		sh, err := s.shells.DialShell(ctx, sreq)
		if apperr.Is(err, apperr.AuthError) {
			log.Info("key rejected", "error", err)
			c.text(fmt.Sprintf("%s: %v\r\n", s.markers.KeyFailed, err))
			c.close(websocket.CloseNormalClosure, "key rejected")
			return nil, false
		}
		return s.dialResult(c, sh, err, log)
	}

	sreq.Credentials = Credentials{Password: password}
	sh, err := s.shells.DialShell(ctx, sreq)
	if apperr.Is(err, apperr.AuthError) {
		log.Info("password rejected")
		c.text("Authentication failed\r\n")
		c.close(websocket.CloseNormalClosure, "authentication failed")
		return nil, false
	}
	return s.dialResult(c, sh, err, log)
}

func (s *Server) dialResult(c *peer, sh Shell, err error, log *slog.Logger) (Shell, bool) {
	if err != nil {
		log.Warn("shell dial failed", "error", err)
		c.text(fmt.Sprintf("Connection to host failed: %v\r\n", err))
		c.close(websocket.CloseInternalServerErr, "host unreachable")
		return nil, false
	}
	return sh, true
}

func (s *Server) lookupKey(serverID int) (ssh.Signer, error) {
	if s.keys == nil {
		return nil, ErrNoKey
	}
	return s.keys.Signer(serverID)
}

// bridge copies frames to the shell and shell output to frames until
// either side ends, and returns the close to send.
func (s *Server) bridge(c *peer, sh Shell) (int, string) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, readBufferSize)
		for {
			n, err := sh.Read(buf)
			if n > 0 {
				if werr := c.binary(buf[:n]); werr != nil {
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()

	inbound := make(chan error, 1)
	go func() {
		for {
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				inbound <- err
				return
			}
			if _, err := sh.Write(data); err != nil {
				inbound <- err
				return
			}
		}
	}()

	select {
	case <-done:
		return websocket.CloseNormalClosure, "shell exited"
	case err := <-inbound:
		sh.Close()
		<-done
		var ce *websocket.CloseError
		if errors.As(err, &ce) {
			return websocket.CloseNormalClosure, ""
		}
		return websocket.CloseInternalServerErr, "shell input failed"
	}
}

// peer serializes writes to one WebSocket.
type peer struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (p *peer) write(kind int, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return p.conn.WriteMessage(kind, data)
}

func (p *peer) text(s string) {
	_ = p.write(websocket.TextMessage, []byte(s))
}

func (p *peer) binary(data []byte) error {
	return p.write(websocket.BinaryMessage, data)
}

func (p *peer) close(code int, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
}
