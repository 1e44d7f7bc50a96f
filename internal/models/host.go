// internal/models/host.go

package models

const (
	DefaultPort     = 22
	DefaultUsername = "root"
)

// Server is a terminal target known to the control panel.
type Server struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Host        string `json:"host"`
	Port        int    `json:"port,omitempty"`
	Username    string `json:"username,omitempty"`
}

// WithDefaults fills the port and username the relay would otherwise
// assume.
func (s Server) WithDefaults() Server {
	if s.Port == 0 {
		s.Port = DefaultPort
	}
	if s.Username == "" {
		s.Username = DefaultUsername
	}
	return s
}

// Markers are the substrings the relay writes to report the outcome of
// shell attachment.
type Markers struct {
	Connected  string `json:"connected"`
	KeyFailed  string `json:"key_failed"`
	KeyMissing string `json:"key_missing"`
}

// ClosePolicy classifies stream closes. Codes listed in NormalCodes are
// silent; any other code is reported. With RequireClean set, an unclean
// close is reported even when its code is normal.
type ClosePolicy struct {
	NormalCodes  []int `json:"normal_codes"`
	RequireClean bool  `json:"require_clean"`
}

// Config is the client configuration file.
type Config struct {
	APIURL            string      `json:"api_url"`
	RelayPath         string      `json:"relay_path"`
	Markers           Markers     `json:"markers"`
	ClosePolicy       ClosePolicy `json:"close_policy"`
	AutoScroll        bool        `json:"auto_scroll"`
	ScrollQuietMillis int         `json:"scroll_quiet_ms"`
	LogLevel          string      `json:"log_level"`
	Servers           []Server    `json:"servers"`
}
