// internal/models/key.go

package models

import (
	"errors"
	"fmt"
	"os"

	"citspace/internal/crypto"
)

// Key is the private key the relay offers for one server. The key is either
// read from Path or stored inline in KeyData, encrypted with the relay's
// master cipher.
type Key struct {
	ServerID    int    `json:"server_id"`
	Description string `json:"description"`
	Path        string `json:"path,omitempty"`
	KeyData     string `json:"key_data,omitempty"`
}

// NewKey builds a key entry, encrypting inline key data.
func NewKey(serverID int, description, path, keyData string, cipher *crypto.Cipher) (*Key, error) {
	if path != "" && keyData != "" {
		return nil, errors.New("cannot specify both path and key data")
	}
	if path == "" && keyData == "" {
		return nil, errors.New("either path or key data must be provided")
	}

	var encryptedKey string
	if keyData != "" {
		var err error
		encryptedKey, err = cipher.Encrypt(keyData)
		if err != nil {
			return nil, err
		}
	}

	k := &Key{
		ServerID:    serverID,
		Description: description,
		Path:        path,
		KeyData:     encryptedKey,
	}
	return k, k.Validate()
}

func (k *Key) Validate() error {
	if k.ServerID <= 0 {
		return errors.New("server id must be positive")
	}
	if k.Path == "" && k.KeyData == "" {
		return errors.New("either path or key data must be provided")
	}
	if k.Path != "" && k.KeyData != "" {
		return errors.New("cannot have both path and key data")
	}
	return nil
}

// IsLocal reports whether the key material is stored inline.
func (k *Key) IsLocal() bool {
	return k.KeyData != ""
}

// PEM returns the private key material, decrypting inline data or reading
// the key file.
func (k *Key) PEM(cipher *crypto.Cipher) ([]byte, error) {
	if k.IsLocal() {
		if cipher == nil {
			return nil, errors.New("inline key data requires a master key")
		}
		plain, err := cipher.Decrypt(k.KeyData)
		if err != nil {
			return nil, err
		}
		return []byte(plain), nil
	}
	data, err := os.ReadFile(k.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	return data, nil
}

// RelayConfig is the development relay's configuration file.
type RelayConfig struct {
	Listen         string  `json:"listen"`
	Path           string  `json:"path"`
	KnownHostsPath string  `json:"known_hosts_path,omitempty"`
	DialTimeoutSec int     `json:"dial_timeout_sec,omitempty"`
	Markers        Markers `json:"markers"`
	Keys           []Key   `json:"keys"`
}
