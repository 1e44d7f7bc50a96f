// internal/relay/keys.go

package relay

import (
	"errors"
	"fmt"

	"citspace/internal/crypto"
	apperr "citspace/internal/error"
	"citspace/internal/models"

	"golang.org/x/crypto/ssh"
)

// ErrNoKey is returned by a KeyStore that holds no key for a server.
var ErrNoKey = errors.New("no key stored for server")

// KeyStore resolves the private key the relay offers for a server.
type KeyStore interface {
	Signer(serverID int) (ssh.Signer, error)
}

// ConfigKeyStore serves keys from the relay configuration. Inline key data
// is decrypted with the master cipher on each lookup and never cached.
type ConfigKeyStore struct {
	keys   map[int]models.Key
	cipher *crypto.Cipher
}

func NewConfigKeyStore(keys []models.Key, cipher *crypto.Cipher) *ConfigKeyStore {
	s := &ConfigKeyStore{keys: make(map[int]models.Key, len(keys)), cipher: cipher}
	for _, k := range keys {
		s.keys[k.ServerID] = k
	}
	return s
}

func (s *ConfigKeyStore) Signer(serverID int) (ssh.Signer, error) {
	k, ok := s.keys[serverID]
	if !ok {
		return nil, ErrNoKey
	}
	pem, err := k.PEM(s.cipher)
	if err != nil {
		return nil, apperr.New(apperr.CryptoError, fmt.Sprintf("failed to load key for server %d", serverID), err)
	}
	signer, err := ssh.ParsePrivateKey(pem)
	if err != nil {
		return nil, apperr.New(apperr.CryptoError, fmt.Sprintf("failed to parse key for server %d", serverID), err)
	}
	return signer, nil
}
