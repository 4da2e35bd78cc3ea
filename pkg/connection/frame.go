package connection

// Top-level frame types sent by the server.
const (
	FrameNotification = "notification"
	FrameError        = "error"
)

// Event types nested inside a notification frame's data.
const (
	EventNew    = "NEW"
	EventUpdate = "UPDATE"
	EventDelete = "DELETE"
)

// Intent frame types sent by the client.
const (
	IntentMarkAsRead    = "mark_as_read"
	IntentMarkAllRead   = "mark_all_read"
	IntentMarkAsHidden  = "mark_as_hidden"
	IntentMarkAllHidden = "mark_all_hidden"
)

// Intent is a client-to-server frame asking for a state change.
// The server never acknowledges it.
type Intent struct {
	Type           string `json:"type"`
	NotificationID *int64 `json:"notification_id,omitempty"`
}

func MarkAsRead(id int64) Intent {
	return Intent{Type: IntentMarkAsRead, NotificationID: &id}
}

func MarkAllRead() Intent {
	return Intent{Type: IntentMarkAllRead}
}

func MarkAsHidden(id int64) Intent {
	return Intent{Type: IntentMarkAsHidden, NotificationID: &id}
}

func MarkAllHidden() Intent {
	return Intent{Type: IntentMarkAllHidden}
}
