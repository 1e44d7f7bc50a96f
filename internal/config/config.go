// internal/config/config.go

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperr "citspace/internal/error"
	"citspace/internal/models"
)

const (
	DefaultConfigFileName = "config.json"
	DefaultRelayFileName  = "relay.json"
	DefaultLogFileName    = "citspace.log"
	DefaultConfigDir      = ".config/citspace"
	DefaultFilePerms      = 0600

	DefaultAPIURL      = "http://localhost:8080"
	DefaultRelayPath   = "/ws/terminal"
	DefaultRelayListen = "127.0.0.1:8080"

	// EnvAPIURL overrides the configured API base URL.
	EnvAPIURL = "CITSPACE_API_URL"
)

// DefaultMarkers are the relay's shell-attachment status strings.
var DefaultMarkers = models.Markers{
	Connected:  "Connected to",
	KeyFailed:  "SSH key authentication failed",
	KeyMissing: "No SSH key available",
}

// Defaults returns a configuration with every field populated.
func Defaults() models.Config {
	return models.Config{
		APIURL:            DefaultAPIURL,
		RelayPath:         DefaultRelayPath,
		Markers:           DefaultMarkers,
		ClosePolicy:       models.ClosePolicy{NormalCodes: []int{1000}},
		AutoScroll:        true,
		ScrollQuietMillis: 2000,
		LogLevel:          "info",
		Servers:           make([]models.Server, 0),
	}
}

type Manager struct {
	configPath string
	config     *models.Config
}

// NewManager creates a configuration manager for configPath, or the default
// location when configPath is empty.
func NewManager(configPath string) *Manager {
	if configPath == "" {
		defaultPath, err := GetDefaultConfigPath()
		if err == nil {
			configPath = defaultPath
		} else {
			configPath = DefaultConfigFileName
		}
	}

	cfg := Defaults()
	return &Manager{
		configPath: configPath,
		config:     &cfg,
	}
}

// Load reads the configuration file. A missing file is created with
// defaults. Fields absent from the file keep their defaults.
func (m *Manager) Load() error {
	configDir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return apperr.New(apperr.ConfigError, "failed to create config directory", err)
	}

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Defaults()
			m.config = &cfg
			return m.Save()
		}
		return apperr.New(apperr.ConfigError, "failed to read config file", err)
	}

	cfg := Defaults()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return apperr.New(apperr.ConfigError, "failed to parse config file", err)
	}
	if err := Validate(&cfg); err != nil {
		return err
	}
	m.config = &cfg
	return nil
}

// Save writes the configuration file.
func (m *Manager) Save() error {
	configDir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return apperr.New(apperr.ConfigError, "failed to create config directory", err)
	}

	data, err := json.MarshalIndent(m.config, "", "    ")
	if err != nil {
		return apperr.New(apperr.ConfigError, "failed to marshal config", err)
	}

	if err := os.WriteFile(m.configPath, data, DefaultFilePerms); err != nil {
		return apperr.New(apperr.ConfigError, "failed to write config file", err)
	}
	return nil
}

// ApplyEnv applies environment overrides on top of the loaded file.
func (m *Manager) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvAPIURL)); v != "" {
		m.config.APIURL = v
	}
}

func (m *Manager) Config() *models.Config {
	return m.config
}

func (m *Manager) GetConfigPath() string {
	return m.configPath
}

// ScrollQuiet returns the auto-scroll quiet period.
func (m *Manager) ScrollQuiet() time.Duration {
	return time.Duration(m.config.ScrollQuietMillis) * time.Millisecond
}

// GetServers returns the configured terminal targets.
func (m *Manager) GetServers() []models.Server {
	return m.config.Servers
}

// AddServer adds a terminal target. IDs must be unique.
func (m *Manager) AddServer(server models.Server) error {
	if server.ID <= 0 {
		return apperr.New(apperr.ValidationError, "server id must be positive", nil)
	}
	if server.Host == "" {
		return apperr.New(apperr.ValidationError, "server host cannot be empty", nil)
	}
	for _, s := range m.config.Servers {
		if s.ID == server.ID {
			return apperr.New(apperr.ValidationError, fmt.Sprintf("server %d already exists", server.ID), nil)
		}
	}
	m.config.Servers = append(m.config.Servers, server)
	return nil
}

// FindServer looks a server up by numeric ID or by name.
func (m *Manager) FindServer(ref string) (models.Server, error) {
	for _, s := range m.config.Servers {
		if s.Name == ref || fmt.Sprint(s.ID) == ref {
			return s, nil
		}
	}
	return models.Server{}, apperr.New(apperr.ValidationError, fmt.Sprintf("server %q not found", ref), nil)
}

// Validate checks a loaded configuration for values the terminal cannot
// work with.
func Validate(cfg *models.Config) error {
	if cfg.APIURL == "" {
		return apperr.New(apperr.ValidationError, "api_url cannot be empty", nil)
	}
	if cfg.Markers.Connected == "" || cfg.Markers.KeyFailed == "" || cfg.Markers.KeyMissing == "" {
		return apperr.New(apperr.ValidationError, "all relay markers must be set", nil)
	}
	if cfg.ScrollQuietMillis < 0 {
		return apperr.New(apperr.ValidationError, "scroll_quiet_ms cannot be negative", nil)
	}
	seen := make(map[int]bool, len(cfg.Servers))
	for _, s := range cfg.Servers {
		if seen[s.ID] {
			return apperr.New(apperr.ValidationError, fmt.Sprintf("duplicate server id %d", s.ID), nil)
		}
		seen[s.ID] = true
	}
	return nil
}

func GetDefaultConfigPath() (string, error) {
	configDir, err := GetDefaultConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, DefaultConfigFileName), nil
}

// GetDefaultConfigDir returns ~/.config/citspace, creating it if needed.
func GetDefaultConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not get home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, DefaultConfigDir)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("could not create config directory: %w", err)
	}
	return configDir, nil
}
