package connection

import (
	"context"
	"fmt"
	"net/url"

	"github.com/collabhub/notifyclient/pkg/constants"
)

// Events receives the lifecycle of a Transport.
//
// All three callbacks of one connection are invoked from a single goroutine,
// in the order they happened on the wire.
type Events interface {
	OnOpened()
	OnMessage(frame []byte)
	OnClosed(code int, reason string)
}

// Transport owns at most one persistent connection to the server.
// It never retries on its own.
type Transport interface {
	// Open starts connecting in the background and returns immediately.
	// A failed handshake is reported through Events.OnClosed.
	Open(ctx context.Context, url string)
	// Send serializes v and writes it as one text frame.
	// It returns constants.ErrNotConnected unless the channel is open.
	Send(v any) error
	// Close terminates the active connection. It is idempotent.
	Close(ctx context.Context) error
	State() State
}

type State int

const (
	StateClosed State = iota
	StateConnecting
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "Closed"
	case StateConnecting:
		return "Connecting"
	case StateOpen:
		return "Open"
	default:
		return "InvalidState"
	}
}

// URLWithToken appends the session token to the WebSocket endpoint
// as the token query parameter.
func URLWithToken(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parsing websocket url %q: %w", base, err)
	}
	if u.Scheme != constants.WebsocketScheme && u.Scheme != constants.SecureWebsocketScheme {
		return "", fmt.Errorf("websocket url %q must use %s or %s scheme", base, constants.WebsocketScheme, constants.SecureWebsocketScheme)
	}
	q := u.Query()
	q.Set(constants.TokenQueryParam, token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
