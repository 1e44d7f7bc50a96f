// internal/relay/shell.go

package relay

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	apperr "citspace/internal/error"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const (
	defaultTermType   = "xterm-256color"
	defaultTermWidth  = 120
	defaultTermHeight = 40
	defaultKeepAlive  = 30 * time.Second
)

// Credentials carry exactly one authentication method.
type Credentials struct {
	Signer   ssh.Signer
	Password string
}

func (c Credentials) method() ssh.AuthMethod {
	if c.Signer != nil {
		return ssh.PublicKeys(c.Signer)
	}
	return ssh.Password(c.Password)
}

// ShellRequest names the remote login for one interactive shell.
type ShellRequest struct {
	Host        string
	Port        int
	Username    string
	Credentials Credentials
}

func (r ShellRequest) addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// Shell is a running interactive shell. Read returns combined stdout and
// stderr until the shell exits; Write feeds its stdin.
type Shell interface {
	io.ReadWriter
	Close() error
}

// ShellDialer opens shells. Authentication rejections are reported as
// apperr.AuthError so callers can tell them from network failures.
type ShellDialer interface {
	DialShell(ctx context.Context, req ShellRequest) (Shell, error)
}

// SSHDialer opens shells over SSH with a PTY attached.
type SSHDialer struct {
	// KnownHostsPath enables host key verification. When empty every host
	// key is accepted.
	KnownHostsPath string
	Timeout        time.Duration
	KeepAlive      time.Duration
	Logger         *slog.Logger
}

func (d *SSHDialer) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if d.KnownHostsPath == "" {
		d.logger().Warn("host key verification disabled")
		return ssh.InsecureIgnoreHostKey(), nil
	}
	cb, err := knownhosts.New(d.KnownHostsPath)
	if err != nil {
		return nil, apperr.New(apperr.ConfigError, "failed to load known_hosts", err)
	}
	return cb, nil
}

func (d *SSHDialer) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

func (d *SSHDialer) DialShell(ctx context.Context, req ShellRequest) (Shell, error) {
	hostKey, err := d.hostKeyCallback()
	if err != nil {
		return nil, err
	}
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cfg := &ssh.ClientConfig{
		User:            req.Username,
		Auth:            []ssh.AuthMethod{req.Credentials.method()},
		HostKeyCallback: hostKey,
		Timeout:         timeout,
	}

	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	var nd net.Dialer
	raw, err := nd.DialContext(dctx, "tcp", req.addr())
	if err != nil {
		return nil, apperr.New(apperr.ConnectionError, "failed to reach host", err)
	}
	conn, chans, reqs, err := ssh.NewClientConn(raw, req.addr(), cfg)
	if err != nil {
		raw.Close()
		if isAuthFailure(err) {
			return nil, apperr.New(apperr.AuthError, "authentication rejected", err)
		}
		return nil, apperr.New(apperr.ConnectionError, "ssh handshake failed", err)
	}
	client := ssh.NewClient(conn, chans, reqs)

	sh, err := startShell(client, d.KeepAlive, d.logger())
	if err != nil {
		client.Close()
		return nil, err
	}
	return sh, nil
}

func isAuthFailure(err error) bool {
	return strings.Contains(err.Error(), "unable to authenticate")
}

// sshShell is an interactive session with its output merged into one pipe.
type sshShell struct {
	client  *ssh.Client
	session *ssh.Session
	stdin   io.WriteCloser
	out     *io.PipeReader

	stopOnce sync.Once
	stop     chan struct{}
}

func startShell(client *ssh.Client, keepAlive time.Duration, log *slog.Logger) (*sshShell, error) {
	session, err := client.NewSession()
	if err != nil {
		return nil, apperr.New(apperr.ConnectionError, "failed to create session", err)
	}
	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		return nil, apperr.New(apperr.ConnectionError, "failed to open stdin", err)
	}
	pr, pw := io.Pipe()
	session.Stdout = pw
	session.Stderr = pw

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
		ssh.VINTR:         3,
		ssh.VQUIT:         28,
		ssh.VERASE:        127,
		ssh.VKILL:         21,
		ssh.VEOF:          4,
		ssh.VWERASE:       23,
		ssh.VLNEXT:        22,
		ssh.VSUSP:         26,
	}
	if err := session.RequestPty(defaultTermType, defaultTermHeight, defaultTermWidth, modes); err != nil {
		session.Close()
		return nil, apperr.New(apperr.ConnectionError, "failed to request PTY", err)
	}
	if err := session.Shell(); err != nil {
		session.Close()
		return nil, apperr.New(apperr.ConnectionError, "failed to start shell", err)
	}

	s := &sshShell{
		client:  client,
		session: session,
		stdin:   stdin,
		out:     pr,
		stop:    make(chan struct{}),
	}
	go func() {
		err := session.Wait()
		if err != nil {
			log.Debug("shell exited", "error", err)
		}
		pw.Close()
	}()
	if keepAlive == 0 {
		keepAlive = defaultKeepAlive
	}
	if keepAlive > 0 {
		go s.keepAliveLoop(keepAlive, log)
	}
	return s, nil
}

func (s *sshShell) Read(p []byte) (int, error)  { return s.out.Read(p) }
func (s *sshShell) Write(p []byte) (int, error) { return s.stdin.Write(p) }

func (s *sshShell) keepAliveLoop(every time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, _, err := s.client.SendRequest("keepalive@openssh.com", true, nil); err != nil {
				log.Warn("keepalive failed", "error", err)
				s.Close()
				return
			}
		case <-s.stop:
			return
		}
	}
}

func (s *sshShell) Close() error {
	var errs []string
	s.stopOnce.Do(func() {
		close(s.stop)
		if err := s.session.Close(); err != nil && err != io.EOF {
			errs = append(errs, fmt.Sprintf("session close error: %v", err))
		}
		if err := s.client.Close(); err != nil {
			errs = append(errs, fmt.Sprintf("client close error: %v", err))
		}
	})
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
