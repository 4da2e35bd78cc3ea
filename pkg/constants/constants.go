package constants

import "time"

const (
	// CloseMessageCode is sent when the client closes the channel on purpose.
	CloseMessageCode = 1000
	// CloseAbnormal is reported when the connection drops or never opens.
	CloseAbnormal = 1006

	// DefaultInitialDelay is the first reconnection delay.
	DefaultInitialDelay = 3 * time.Second
	// DefaultMaxDelay caps the reconnection delay.
	DefaultMaxDelay = 30 * time.Second
	// DefaultMultiplier grows the delay after every failed attempt.
	DefaultMultiplier = 1.5
	// DefaultMaxAttempts is the reconnection budget before giving up.
	DefaultMaxAttempts = 5

	// DefaultCloseTimeout bounds the close handshake write.
	DefaultCloseTimeout = 2 * time.Second
	// DefaultHTTPTimeout bounds a single REST call.
	DefaultHTTPTimeout = 15 * time.Second

	// DefaultAuthScheme prefixes the token in the Authorization header.
	DefaultAuthScheme = "Token"
	// TokenQueryParam carries the session token on the WebSocket URL.
	TokenQueryParam = "token"
)

var (
	WebsocketScheme       = "ws"
	SecureWebsocketScheme = "wss"
	HTTPScheme            = "http"
	HTTPSecureScheme      = "https"
)
