// Package cryptox implements the symmetric field cipher used to protect
// individual credential secrets at rest.
//
// Secrets are encrypted with AES-256-GCM. Every call to Encrypt generates a
// fresh random nonce, so encrypting the same plaintext twice yields different
// tokens. The persisted form is an ASCII token:
//
//	hex(nonce) + ":" + hex(ciphertext)
//
// The separator can never occur inside a hex encoding, so callers detect
// whether a stored value is a cipher token or legacy plaintext by checking
// for its presence (see IsCipherToken).
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/keyhaven/keyhaven/internal/common"
)

// TokenSeparator splits the nonce from the ciphertext in a stored token.
const TokenSeparator = ":"

// FieldCipher encrypts and decrypts individual secret strings with a fixed
// 256-bit key. The key is derived once at construction and is read-only
// afterwards; a FieldCipher is safe for concurrent use.
type FieldCipher struct {
	aead cipher.AEAD
}

// New derives a 32-byte key from the configured secret (SHA-256) and returns
// a ready-to-use cipher. Rotating the secret invalidates all previously
// encrypted tokens; there is no key versioning.
func New(secret string) (*FieldCipher, error) {
	if secret == "" {
		return nil, fmt.Errorf("cryptox: empty cipher secret")
	}

	key := sha256.Sum256([]byte(secret))

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("cryptox: init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptox: init gcm: %w", err)
	}

	return &FieldCipher{aead: aead}, nil
}

// Encrypt seals the plaintext under a fresh random nonce and returns the
// hex token. Nonces are never reused across calls.
func (c *FieldCipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("cryptox: nonce: %w", err)
	}

	ciphertext := c.aead.Seal(nil, nonce, []byte(plaintext), nil)

	return hex.EncodeToString(nonce) + TokenSeparator + hex.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt. It returns common.ErrDecryption (wrapped with
// detail) if the token is malformed, the nonce has the wrong length, or the
// authentication check fails. It never returns an empty string on failure
// paths that could be mistaken for an empty secret.
func (c *FieldCipher) Decrypt(token string) (string, error) {
	nonceHex, ciphertextHex, found := strings.Cut(token, TokenSeparator)
	if !found {
		return "", fmt.Errorf("%w: missing separator", common.ErrDecryption)
	}

	nonce, err := hex.DecodeString(nonceHex)
	if err != nil {
		return "", fmt.Errorf("%w: bad nonce encoding", common.ErrDecryption)
	}
	if len(nonce) != c.aead.NonceSize() {
		return "", fmt.Errorf("%w: nonce length %d", common.ErrDecryption, len(nonce))
	}

	ciphertext, err := hex.DecodeString(ciphertextHex)
	if err != nil {
		return "", fmt.Errorf("%w: bad ciphertext encoding", common.ErrDecryption)
	}

	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: authentication check", common.ErrDecryption)
	}

	return string(plaintext), nil
}

// IsCipherToken reports whether a stored value is shaped like a cipher token.
// Values without the separator are legacy plaintext and must be passed
// through unchanged by readers.
func IsCipherToken(stored string) bool {
	return strings.Contains(stored, TokenSeparator)
}
