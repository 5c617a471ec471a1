// Package crypto encrypts stored OAuth tokens with AES-256-GCM.
//
// Sealed values look like "enc:v1:<base64(nonce+ciphertext)>".
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	prefix = "enc:v1:"
	salt   = "socialagent-token-encryption"
)

// ErrNoSecret is returned when no master secret is configured.
var ErrNoSecret = errors.New("crypto: empty master secret")

// TokenCipher seals and opens token blobs. Safe for concurrent use.
type TokenCipher struct {
	gcm cipher.AEAD
}

// NewTokenCipher derives a purpose-bound AES-256 key from secret via HKDF.
func NewTokenCipher(secret []byte, purpose string) (*TokenCipher, error) {
	if len(secret) == 0 {
		return nil, ErrNoSecret
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, []byte(salt), []byte(purpose)), key); err != nil {
		return nil, fmt.Errorf("crypto: deriving key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: %w", err)
	}
	return &TokenCipher{gcm: gcm}, nil
}

// Seal encrypts plaintext.
func (c *TokenCipher) Seal(plaintext []byte) (string, error) {
	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("crypto: generating nonce: %w", err)
	}
	sealed := c.gcm.Seal(nonce, nonce, plaintext, nil)
	return prefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal. Unprefixed values are rejected; a
// stored token is never trusted as plaintext.
func (c *TokenCipher) Open(stored string) ([]byte, error) {
	encoded, ok := strings.CutPrefix(stored, prefix)
	if !ok {
		return nil, errors.New("crypto: value is not sealed")
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("crypto: invalid base64: %w", err)
	}
	n := c.gcm.NonceSize()
	if len(data) < n {
		return nil, errors.New("crypto: ciphertext too short")
	}
	plaintext, err := c.gcm.Open(nil, data[:n], data[n:], nil)
	if err != nil {
		return nil, fmt.Errorf("crypto: decryption failed: %w", err)
	}
	return plaintext, nil
}

// IsSealed reports whether stored carries the encryption prefix.
func IsSealed(stored string) bool {
	return strings.HasPrefix(stored, prefix)
}
