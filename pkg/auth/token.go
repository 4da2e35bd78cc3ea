// Package auth supplies the session token used by both the REST and the
// WebSocket paths.
//
// Tokens may rotate during a session, so callers ask the TokenSource every
// time they need one rather than caching it.
package auth

import (
	"strings"
	"sync"

	"github.com/collabhub/notifyclient/pkg/constants"
)

// TokenSource returns the current session token,
// or constants.ErrNoToken when the user is not signed in.
type TokenSource interface {
	Token() (string, error)
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() (string, error)

func (f TokenFunc) Token() (string, error) {
	return f()
}

// Memory is an in-process TokenSource that the session owner sets on login
// and clears on logout.
type Memory struct {
	mu    sync.RWMutex
	token string
}

var _ TokenSource = (*Memory)(nil)

func NewMemory(token string) *Memory {
	return &Memory{token: token}
}

func (m *Memory) Token() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.token == "" {
		return "", constants.ErrNoToken
	}
	return m.token, nil
}

func (m *Memory) Set(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = strings.TrimSpace(token)
}

func (m *Memory) Clear() {
	m.Set("")
}

// Header formats the Authorization header value for token.
func Header(scheme, token string) string {
	if scheme == "" {
		return token
	}
	return scheme + " " + token
}
