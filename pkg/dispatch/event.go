// Package dispatch routes inbound frames of the notification channel to a
// Handler.
package dispatch

import "github.com/collabhub/notifyclient/pkg/models"

type EventKind int

const (
	EventInserted EventKind = iota + 1
	EventUpdated
	EventDeleted
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventInserted:
		return "inserted"
	case EventUpdated:
		return "updated"
	case EventDeleted:
		return "deleted"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one decoded inbound frame.
//
// Notification is set for EventInserted and EventUpdated, ID for
// EventDeleted and Message for EventError.
type Event struct {
	Kind         EventKind
	Notification models.Notification
	ID           int64
	Message      string
}

// Handler receives every decoded event, synchronously and in arrival order.
type Handler interface {
	OnInserted(n models.Notification)
	OnUpdated(n models.Notification)
	OnDeleted(id int64)
	OnError(message string)
}
