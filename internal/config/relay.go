// internal/config/relay.go

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	apperr "citspace/internal/error"
	"citspace/internal/models"
)

// RelayDefaults returns a relay configuration with every field populated.
func RelayDefaults() models.RelayConfig {
	return models.RelayConfig{
		Listen:         DefaultRelayListen,
		Path:           DefaultRelayPath,
		DialTimeoutSec: 10,
		Markers:        DefaultMarkers,
		Keys:           make([]models.Key, 0),
	}
}

// LoadRelay reads the relay configuration. A missing file yields defaults.
func LoadRelay(path string) (*models.RelayConfig, error) {
	cfg := RelayDefaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &cfg, nil
		}
		return nil, apperr.New(apperr.ConfigError, "failed to read relay config", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, apperr.New(apperr.ConfigError, "failed to parse relay config", err)
	}
	for i := range cfg.Keys {
		if err := cfg.Keys[i].Validate(); err != nil {
			return nil, apperr.New(apperr.ValidationError, fmt.Sprintf("key %d", i), err)
		}
	}
	return &cfg, nil
}

// SaveRelay writes the relay configuration with owner-only permissions,
// since it may hold encrypted key material.
func SaveRelay(path string, cfg *models.RelayConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return apperr.New(apperr.ConfigError, "failed to create config directory", err)
	}
	data, err := json.MarshalIndent(cfg, "", "    ")
	if err != nil {
		return apperr.New(apperr.ConfigError, "failed to marshal relay config", err)
	}
	if err := os.WriteFile(path, data, DefaultFilePerms); err != nil {
		return apperr.New(apperr.ConfigError, "failed to write relay config", err)
	}
	return nil
}

// PutKey stores key for its server, replacing an existing entry.
func PutKey(cfg *models.RelayConfig, key models.Key) error {
	if err := key.Validate(); err != nil {
		return apperr.New(apperr.ValidationError, "invalid key", err)
	}
	for i, k := range cfg.Keys {
		if k.ServerID == key.ServerID {
			cfg.Keys[i] = key
			return nil
		}
	}
	cfg.Keys = append(cfg.Keys, key)
	return nil
}

// DefaultRelayConfigPath returns ~/.config/citspace/relay.json.
func DefaultRelayConfigPath() (string, error) {
	dir, err := GetDefaultConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultRelayFileName), nil
}
