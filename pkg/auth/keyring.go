package auth

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"

	"github.com/collabhub/notifyclient/pkg/constants"
)

const tokenKey = "session_token"

// Keyring persists the session token in the system keyring,
// so the command-line client survives restarts without re-login.
type Keyring struct {
	ring keyring.Keyring
}

var _ TokenSource = (*Keyring)(nil)

// KeyringConfig selects where the token is stored.
type KeyringConfig struct {
	ServiceName string
	// FileDir is used by the encrypted-file fallback backend.
	FileDir string
	// FilePassword unlocks the file backend.
	FilePassword string
}

// OpenKeyring returns a keyring-backed TokenSource.
func OpenKeyring(cfg KeyringConfig) (*Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: cfg.ServiceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  cfg.FileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt(cfg.FilePassword),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return NewKeyring(ring), nil
}

// NewKeyring wraps an already opened keyring.
func NewKeyring(ring keyring.Keyring) *Keyring {
	return &Keyring{ring: ring}
}

func (k *Keyring) Token() (string, error) {
	item, err := k.ring.Get(tokenKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", constants.ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("getting session token: %w", err)
	}
	if len(item.Data) == 0 {
		return "", constants.ErrNoToken
	}
	return string(item.Data), nil
}

func (k *Keyring) Set(token string) error {
	err := k.ring.Set(keyring.Item{
		Key:   tokenKey,
		Data:  []byte(token),
		Label: "notifyclient session token",
	})
	if err != nil {
		return fmt.Errorf("setting session token: %w", err)
	}
	return nil
}

// Clear removes the stored token. Removing an absent token is not an error.
func (k *Keyring) Clear() error {
	err := k.ring.Remove(tokenKey)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting session token: %w", err)
	}
	return nil
}
