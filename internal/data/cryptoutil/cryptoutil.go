package cryptoutil

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Encryptor seals and opens opaque payloads carried in session cookies.
type Encryptor interface {
	Encrypt(plaintext []byte) (string, error)
	Decrypt(ciphertext string) ([]byte, error)
}

const (
	// Versioned prefix to allow future algorithm changes without invalidating parsing.
	cipherPrefixV1 = "v1."
	noopPrefix     = "noop."
)

// ErrUndecryptable is returned when no configured key opens a ciphertext.
var ErrUndecryptable = errors.New("ciphertext cannot be decrypted with any configured key")

// AESGCMEncryptor implements Encryptor using AES-256-GCM. It encrypts with the
// first key and decrypts with any key, so keys can be rotated by prepending.
// Ciphertexts are bound to a purpose label through GCM additional data.
type AESGCMEncryptor struct {
	aeads   []cipher.AEAD
	purpose []byte
}

// NewAESGCMEncryptor constructs an encryptor from one or more 32-byte keys.
func NewAESGCMEncryptor(purpose string, keys ...[]byte) (*AESGCMEncryptor, error) {
	if len(keys) == 0 {
		return nil, errors.New("at least one aes-gcm key is required")
	}
	aeads := make([]cipher.AEAD, 0, len(keys))
	for i, key := range keys {
		if len(key) != 32 {
			return nil, fmt.Errorf("aes-gcm key %d must be 32 bytes, got %d", i, len(key))
		}
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		gcm, err := cipher.NewGCM(block)
		if err != nil {
			return nil, err
		}
		aeads = append(aeads, gcm)
	}
	return &AESGCMEncryptor{aeads: aeads, purpose: []byte(purpose)}, nil
}

// Encrypt seals plaintext under the primary key with a random nonce.
func (e *AESGCMEncryptor) Encrypt(plaintext []byte) (string, error) {
	gcm := e.aeads[0]
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	// nonce||ciphertext
	sealed := gcm.Seal(nonce, nonce, plaintext, e.purpose)
	return cipherPrefixV1 + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a ciphertext produced by Encrypt under any configured key.
func (e *AESGCMEncryptor) Decrypt(ciphertext string) ([]byte, error) {
	encoded, ok := strings.CutPrefix(ciphertext, cipherPrefixV1)
	if !ok {
		return nil, fmt.Errorf("unknown ciphertext version")
	}
	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}
	for _, gcm := range e.aeads {
		n := gcm.NonceSize()
		if len(data) < n+gcm.Overhead() {
			return nil, errors.New("ciphertext too short")
		}
		if pt, err := gcm.Open(nil, data[:n], data[n:], e.purpose); err == nil {
			return pt, nil
		}
	}
	return nil, ErrUndecryptable
}

// NoopEncryptor only encodes. Use it for local development and tests.
type NoopEncryptor struct{}

func (NoopEncryptor) Encrypt(plaintext []byte) (string, error) {
	return noopPrefix + base64.RawURLEncoding.EncodeToString(plaintext), nil
}

func (NoopEncryptor) Decrypt(ciphertext string) ([]byte, error) {
	encoded, ok := strings.CutPrefix(ciphertext, noopPrefix)
	if !ok {
		return nil, errors.New("invalid noop ciphertext")
	}
	return base64.RawURLEncoding.DecodeString(encoded)
}

// DeriveKey turns a configured secret into a 32-byte key. A 64-character hex
// string is used as-is; anything else is hashed with SHA-256.
func DeriveKey(secret string) ([]byte, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("encryption key is required")
	}
	if decoded, err := hex.DecodeString(secret); err == nil && len(decoded) == 32 {
		return decoded, nil
	}
	sum := sha256.Sum256([]byte(secret))
	return sum[:], nil
}
