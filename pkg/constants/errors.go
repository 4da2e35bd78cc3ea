package constants

import "errors"

// Errors
var (
	ErrNoToken            = errors.New("no session token available")
	ErrNotConnected       = errors.New("notification channel is not open")
	ErrMalformedFrame     = errors.New("malformed frame")
	ErrUnknownFrame       = errors.New("unknown frame type")
	ErrInvalidPayload     = errors.New("invalid notification payload")
	ErrNoHandler          = errors.New("no event handler registered")
	ErrStopped            = errors.New("notification session is stopped")
	ErrUnsupportedAction  = errors.New("unsupported action kind")
	ErrNotificationAbsent = errors.New("notification not found")
	ErrAlreadyStarted     = errors.New("notification session already started")
)
