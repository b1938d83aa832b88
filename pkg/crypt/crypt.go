// Package crypt encrypts OAuth access tokens for storage at rest.
//
// Ciphertexts are encoded as "hex(iv):hex(tag):hex(ciphertext)" using
// AES-256-GCM with a 16-byte random IV. The key is the SHA-256 digest of
// an operator-supplied secret.
package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	ivSize  = 16
	tagSize = 16
)

// ErrDecryptionFailed is returned when a ciphertext is malformed or its
// authentication tag does not verify.
var ErrDecryptionFailed = errors.New("decryption failed")

// ErrEmptySecret is returned by New when no secret is configured.
var ErrEmptySecret = errors.New("encryption secret is empty")

// Cipher encrypts and decrypts token strings. It is safe for concurrent use.
type Cipher struct {
	aead cipher.AEAD
}

// New derives a key from secret and returns a Cipher.
func New(secret string) (*Cipher, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("creating block cipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random IV.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generating iv: %w", err)
	}

	sealed := c.aead.Seal(nil, iv, []byte(plaintext), nil)
	ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(tag) + ":" + hex.EncodeToString(ct), nil
}

// Decrypt opens a value produced by Encrypt. Any malformed input or tag
// mismatch yields ErrDecryptionFailed.
func (c *Cipher) Decrypt(encoded string) (string, error) {
	parts := strings.Split(encoded, ":")
	if len(parts) != 3 {
		return "", fmt.Errorf("%w: expected 3 segments, got %d", ErrDecryptionFailed, len(parts))
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != ivSize {
		return "", fmt.Errorf("%w: invalid iv", ErrDecryptionFailed)
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != tagSize {
		return "", fmt.Errorf("%w: invalid auth tag", ErrDecryptionFailed)
	}
	ct, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", fmt.Errorf("%w: invalid ciphertext", ErrDecryptionFailed)
	}

	plaintext, err := c.aead.Open(nil, iv, append(ct, tag...), nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}
