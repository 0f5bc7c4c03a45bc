// Package keybox persists the client's local identity: a durable
// anonymous user id and the user-supplied OpenAI API key. The key is
// sealed at rest with XChaCha20-Poly1305 under a per-machine secret so
// a casual read of the data directory does not expose it.
package keybox

import (
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	userIDFile = "user_id"
	secretFile = "secret.key"
	apiKeyFile = "api_key.sealed"
)

// ErrNoAPIKey signals that no API key has been stored yet.
var ErrNoAPIKey = errors.New("keybox: no api key stored")

// Box is a file-backed keybox rooted at one data directory.
type Box struct {
	dir string
}

// Open prepares the data directory and returns a keybox over it.
func Open(dir string) (*Box, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Box{dir: dir}, nil
}

// UserID returns the durable anonymous user id, generating and
// persisting one on first use.
func (b *Box) UserID() (string, error) {
	path := filepath.Join(b.dir, userIDFile)
	data, err := os.ReadFile(path)
	if err == nil {
		id := strings.TrimSpace(string(data))
		if id != "" {
			return id, nil
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("read user id: %w", err)
	}
	id := uuid.NewString()
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("persist user id: %w", err)
	}
	return id, nil
}

// SetAPIKey seals the key and writes it to disk, replacing any
// previous key.
func (b *Box) SetAPIKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("keybox: empty api key")
	}
	secret, err := b.loadOrCreateSecret()
	if err != nil {
		return err
	}
	aead, err := chacha20poly1305.NewX(secret)
	if err != nil {
		return fmt.Errorf("init cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(key), nil)
	if err := os.WriteFile(filepath.Join(b.dir, apiKeyFile), sealed, 0o600); err != nil {
		return fmt.Errorf("persist api key: %w", err)
	}
	return nil
}

// APIKey unseals and returns the stored key. ErrNoAPIKey is returned
// when none has been set.
func (b *Box) APIKey() (string, error) {
	sealed, err := os.ReadFile(filepath.Join(b.dir, apiKeyFile))
	if os.IsNotExist(err) {
		return "", ErrNoAPIKey
	}
	if err != nil {
		return "", fmt.Errorf("read api key: %w", err)
	}
	secret, err := b.loadOrCreateSecret()
	if err != nil {
		return "", err
	}
	aead, err := chacha20poly1305.NewX(secret)
	if err != nil {
		return "", fmt.Errorf("init cipher: %w", err)
	}
	if len(sealed) < aead.NonceSize() {
		return "", errors.New("keybox: sealed key too short")
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("unseal api key: %w", err)
	}
	return string(plain), nil
}

// ClearAPIKey removes the stored key. Clearing an absent key is not an
// error.
func (b *Box) ClearAPIKey() error {
	err := os.Remove(filepath.Join(b.dir, apiKeyFile))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove api key: %w", err)
	}
	return nil
}

// HasAPIKey reports whether a key is stored.
func (b *Box) HasAPIKey() bool {
	_, err := os.Stat(filepath.Join(b.dir, apiKeyFile))
	return err == nil
}

// Provider returns a key lookup suitable for attaching to outbound
// requests. It returns the empty string when no key is stored or the
// stored key cannot be unsealed.
func (b *Box) Provider() func() string {
	return func() string {
		key, err := b.APIKey()
		if err != nil {
			return ""
		}
		return key
	}
}

func (b *Box) loadOrCreateSecret() ([]byte, error) {
	path := filepath.Join(b.dir, secretFile)
	secret, err := os.ReadFile(path)
	if err == nil {
		if len(secret) != chacha20poly1305.KeySize {
			return nil, errors.New("keybox: corrupt secret file")
		}
		return secret, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read secret: %w", err)
	}
	secret = make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}
	if err := os.WriteFile(path, secret, 0o600); err != nil {
		return nil, fmt.Errorf("persist secret: %w", err)
	}
	return secret, nil
}
