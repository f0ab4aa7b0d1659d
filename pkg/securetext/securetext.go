// Package securetext provides the reversible transform applied to
// transcript bodies before they leave process memory. The transform is
// opaque to callers: Decrypt(Encrypt(x)) == x for any string.
package securetext

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// Codec encrypts and decrypts transcript text with AES-GCM.
type Codec struct {
	aead cipher.AEAD
}

// ErrMalformed indicates ciphertext that cannot be decoded or authenticated.
var ErrMalformed = errors.New("securetext: malformed ciphertext")

// NewCodec derives a 256-bit key from the provided secret.
func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("securetext: secret required")
	}
	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("securetext: cipher init: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("securetext: gcm init: %w", err)
	}
	return &Codec{aead: aead}, nil
}

// Encrypt seals plaintext and returns a base64 token.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("securetext: nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func (c *Codec) Decrypt(token string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", ErrMalformed
	}
	if len(raw) < c.aead.NonceSize() {
		return "", ErrMalformed
	}
	nonce, sealed := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrMalformed
	}
	return string(plain), nil
}
