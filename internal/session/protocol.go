// internal/session/protocol.go

package session

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	apperr "citspace/internal/error"
	"citspace/internal/models"
)

// Close codes as defined by RFC 6455.
const (
	CloseNormal    = 1000
	CloseGoingAway = 1001
	CloseAbnormal  = 1006 // reported locally, never sent
)

// ConnectMessage is the first frame sent once the stream is open.
type ConnectMessage struct {
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Username    string `json:"username"`
	ServerID    int    `json:"serverId"`
	PasswordB64 string `json:"passwordB64,omitempty"`
}

// NewConnectMessage builds the frame for t. An empty password asks the relay
// to try key authentication.
func NewConnectMessage(t Target, password string) ConnectMessage {
	msg := ConnectMessage{
		Host:     t.Host,
		Port:     t.Port,
		Username: t.Username,
		ServerID: t.ServerID,
	}
	if msg.Port == 0 {
		msg.Port = models.DefaultPort
	}
	if msg.Username == "" {
		msg.Username = models.DefaultUsername
	}
	if password != "" {
		msg.PasswordB64 = base64.StdEncoding.EncodeToString([]byte(password))
	}
	return msg
}

// Password decodes PasswordB64.
func (c ConnectMessage) Password() (string, error) {
	if c.PasswordB64 == "" {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(c.PasswordB64)
	if err != nil {
		return "", apperr.New(apperr.ProtocolError, "invalid passwordB64", err)
	}
	return string(raw), nil
}

func (c ConnectMessage) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// ParseConnectMessage decodes and validates a connect frame.
func ParseConnectMessage(data []byte) (ConnectMessage, error) {
	var msg ConnectMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, apperr.New(apperr.ProtocolError, "malformed connect message", err)
	}
	if msg.Host == "" {
		return msg, apperr.New(apperr.ProtocolError, "connect message without host", nil)
	}
	if msg.Port == 0 {
		msg.Port = models.DefaultPort
	}
	if msg.Username == "" {
		msg.Username = models.DefaultUsername
	}
	return msg, nil
}

// RelayURL derives the streaming endpoint from the HTTP API base URL by
// swapping the scheme and appending the relay path.
func RelayURL(baseURL, relayPath string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", apperr.New(apperr.ConfigError, "invalid API URL", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", apperr.New(apperr.ConfigError, fmt.Sprintf("unsupported API URL scheme %q", u.Scheme), nil)
	}
	if u.Host == "" {
		return "", apperr.New(apperr.ConfigError, "API URL has no host", nil)
	}
	if relayPath != "" && !strings.HasPrefix(relayPath, "/") {
		relayPath = "/" + relayPath
	}
	u.Path = strings.TrimRight(u.Path, "/") + relayPath
	u.RawPath = ""
	return u.String(), nil
}

// IsAbnormal classifies a close according to p.
func IsAbnormal(p models.ClosePolicy, code int, clean bool) bool {
	normal := false
	for _, c := range p.NormalCodes {
		if c == code {
			normal = true
			break
		}
	}
	if !normal {
		return true
	}
	return p.RequireClean && !clean
}
