package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

// sealedPrefix marks values produced by SealString
const sealedPrefix = "sealed:"

// SecretsManager seals data source credentials before they are stored
type SecretsManager struct {
	key []byte
}

// NewSecretsManager takes a 32-byte AES-256 key
func NewSecretsManager(key []byte) (*SecretsManager, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("secret key must be 32 bytes, got %d", len(key))
	}
	return &SecretsManager{key: key}, nil
}

// NewSecretsManagerFromPassword derives the key from the configured secret
func NewSecretsManagerFromPassword(password string) (*SecretsManager, error) {
	if password == "" {
		return nil, fmt.Errorf("secret key is not configured")
	}
	return NewSecretsManager(DeriveKey(password))
}

// EncryptSecret seals plaintext with AES-256-GCM. The nonce is prepended to
// the result.
func (sm *SecretsManager) EncryptSecret(plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("cannot encrypt empty data")
	}

	gcm, err := sm.gcm()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// DecryptSecret opens the output of EncryptSecret
func (sm *SecretsManager) DecryptSecret(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 {
		return nil, fmt.Errorf("cannot decrypt empty data")
	}

	gcm, err := sm.gcm()
	if err != nil {
		return nil, err
	}

	n := gcm.NonceSize()
	if len(ciphertext) < n {
		return nil, fmt.Errorf("sealed data is shorter than its nonce")
	}
	plaintext, err := gcm.Open(nil, ciphertext[:n], ciphertext[n:], nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open sealed data: %w", err)
	}
	return plaintext, nil
}

func (sm *SecretsManager) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(sm.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// SealString encrypts a string into a printable form suitable for storing
// inside JSON documents. Empty and already sealed values are returned as is.
func (sm *SecretsManager) SealString(plaintext string) (string, error) {
	if plaintext == "" || IsSealed(plaintext) {
		return plaintext, nil
	}
	ciphertext, err := sm.EncryptSecret([]byte(plaintext))
	if err != nil {
		return "", err
	}
	return sealedPrefix + base64.StdEncoding.EncodeToString(ciphertext), nil
}

// OpenString reverses SealString. Values that were never sealed are returned as is.
func (sm *SecretsManager) OpenString(value string) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}
	ciphertext, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("failed to decode sealed value: %w", err)
	}
	plaintext, err := sm.DecryptSecret(ciphertext)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// IsSealed reports whether value was produced by SealString
func IsSealed(value string) bool {
	return strings.HasPrefix(value, sealedPrefix)
}

// SealCredentials returns a copy of creds with every value sealed
func (sm *SecretsManager) SealCredentials(creds map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(creds))
	for k, v := range creds {
		sealed, err := sm.SealString(v)
		if err != nil {
			return nil, fmt.Errorf("failed to seal credential %s: %w", k, err)
		}
		out[k] = sealed
	}
	return out, nil
}

// OpenCredentials returns a copy of creds with every value opened
func (sm *SecretsManager) OpenCredentials(creds map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(creds))
	for k, v := range creds {
		opened, err := sm.OpenString(v)
		if err != nil {
			return nil, fmt.Errorf("failed to open credential %s: %w", k, err)
		}
		out[k] = opened
	}
	return out, nil
}

// DeriveKey derives an encryption key from an installation secret
func DeriveKey(secret string) []byte {
	hash := sha256.Sum256([]byte(secret))
	return hash[:]
}
