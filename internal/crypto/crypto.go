// internal/crypto/crypto.go
//
// Package crypto protects secrets kept at rest by the relay, such as inline
// private keys. Data is sealed with AES-256-GCM under a key derived from the
// operator's master password.

package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"

	apperr "citspace/internal/error"

	"golang.org/x/crypto/argon2"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32

	// Argon2id parameters. The salt is fixed per application; the master
	// password is the only secret input.
	kdfTime    = 1
	kdfMemory  = 64 * 1024
	kdfThreads = 4
)

var kdfSalt = []byte("citspace/relay-keys/v1")

// Cipher seals and opens hex-encoded secrets.
type Cipher struct {
	key []byte
}

// NewCipher derives the encryption key from password.
func NewCipher(password string) *Cipher {
	return &Cipher{key: DeriveKey(password)}
}

// DeriveKey stretches password into a KeySize key with Argon2id.
func DeriveKey(password string) []byte {
	return argon2.IDKey([]byte(password), kdfSalt, kdfTime, kdfMemory, kdfThreads, KeySize)
}

// Encrypt returns hex(nonce || ciphertext).
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	aesGCM, err := c.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aesGCM.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", apperr.New(apperr.CryptoError, "failed to generate nonce", err)
	}

	sealed := aesGCM.Seal(nonce, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. A wrong master password fails authentication.
func (c *Cipher) Decrypt(encryptedHex string) (string, error) {
	combined, err := hex.DecodeString(encryptedHex)
	if err != nil {
		return "", apperr.New(apperr.CryptoError, "failed to decode hex", err)
	}

	aesGCM, err := c.gcm()
	if err != nil {
		return "", err
	}

	nonceSize := aesGCM.NonceSize()
	if len(combined) < nonceSize {
		return "", apperr.New(apperr.CryptoError, "ciphertext too short", nil)
	}

	plaintext, err := aesGCM.Open(nil, combined[:nonceSize], combined[nonceSize:], nil)
	if err != nil {
		return "", apperr.New(apperr.CryptoError, "failed to decrypt", err)
	}
	return string(plaintext), nil
}

func (c *Cipher) gcm() (cipher.AEAD, error) {
	if len(c.key) != KeySize {
		return nil, apperr.New(apperr.CryptoError, "invalid key", fmt.Errorf("want %d bytes, got %d", KeySize, len(c.key)))
	}
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, apperr.New(apperr.CryptoError, "failed to create cipher", err)
	}
	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, apperr.New(apperr.CryptoError, "failed to create GCM", err)
	}
	return aesGCM, nil
}
