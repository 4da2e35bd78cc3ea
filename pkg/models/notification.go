package models

import (
	"fmt"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"
)

// NotificationID is the server-assigned identity of a notification.
type NotificationID = int64

// Notification is one entry of the user's notification feed.
type Notification struct {
	ID        NotificationID `json:"id" validate:"required"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	CreatedAt Datetime       `json:"created_at"`
	IsRead    bool           `json:"is_read"`
	Actions   []Action       `json:"actions_data" validate:"dive"`
	Footnote  *string        `json:"footnote"`
}

// Clone returns a deep copy, so views handed to listeners never alias
// the store's records.
func (n Notification) Clone() Notification {
	out := n
	if n.Actions != nil {
		out.Actions = make([]Action, len(n.Actions))
		copy(out.Actions, n.Actions)
	}
	if n.Footnote != nil {
		f := *n.Footnote
		out.Footnote = &f
	}
	return out
}

// ActionKind tells how an Action is carried out.
type ActionKind string

const (
	// ActionRequest issues an HTTP call against the API.
	ActionRequest ActionKind = "request"
	// ActionNavigate replaces the current page with the target URL.
	ActionNavigate ActionKind = "navigate"
)

// actionKindAnchor is the backend's name for ActionNavigate.
const actionKindAnchor = "anchor"

func (k *ActionKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("action type must be a string: %w", err)
	}
	if s == actionKindAnchor {
		s = string(ActionNavigate)
	}
	*k = ActionKind(s)
	return nil
}

// ActionStyle is a presentation hint only.
type ActionStyle string

const (
	StylePrimary   ActionStyle = "primary"
	StyleSecondary ActionStyle = "secondary"
	StyleDanger    ActionStyle = "danger"
)

// Action is a user-triggerable follow-up of a notification,
// such as accepting an invitation.
type Action struct {
	Text    string        `json:"text"`
	Kind    ActionKind    `json:"type" validate:"oneof=request navigate"`
	Style   ActionStyle   `json:"style" validate:"omitempty,oneof=primary secondary danger"`
	Payload ActionPayload `json:"payload"`
}

type ActionPayload struct {
	URL    string `json:"url" validate:"required"`
	Method string `json:"method,omitempty" validate:"omitempty,oneof=POST GET PUT DELETE"`
}

// UnmarshalJSON upper-cases the method, the backend is not consistent
// about its case.
func (p *ActionPayload) UnmarshalJSON(data []byte) error {
	type plain ActionPayload
	var raw plain
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("action payload: %w", err)
	}
	raw.Method = strings.ToUpper(strings.TrimSpace(raw.Method))
	*p = ActionPayload(raw)
	return nil
}

// HTTPMethod returns the request method, GET when none was given.
func (a Action) HTTPMethod() string {
	if a.Payload.Method == "" {
		return http.MethodGet
	}
	return a.Payload.Method
}

// Snapshot is the body of GET <notifications-base>.
type Snapshot struct {
	Notifications []Notification `json:"notifications"`
}
