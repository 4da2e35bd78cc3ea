package models

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collabhub/notifyclient/pkg/constants"
)

const invitation = `{
	"id": 7,
	"title": "Project invitation",
	"message": "You were invited to Apollo",
	"created_at": "2025-05-01T12:30:00Z",
	"is_read": false,
	"actions_data": [
		{"text": "Accept", "type": "request", "style": "primary",
		 "payload": {"url": "http://localhost/api/v1/invites/3/accept/", "method": "POST"}},
		{"text": "Open", "type": "anchor", "style": "secondary",
		 "payload": {"url": "http://localhost/projects/3"}}
	],
	"footnote": null
}`

func TestNotificationDecode(t *testing.T) {
	var n Notification
	require.NoError(t, json.Unmarshal([]byte(invitation), &n))

	assert.Equal(t, NotificationID(7), n.ID)
	assert.False(t, n.IsRead)
	assert.Nil(t, n.Footnote)
	require.Len(t, n.Actions, 2)

	assert.Equal(t, ActionRequest, n.Actions[0].Kind)
	assert.Equal(t, "POST", n.Actions[0].HTTPMethod())
	assert.Equal(t, ActionNavigate, n.Actions[1].Kind)
	assert.Equal(t, "GET", n.Actions[1].HTTPMethod())

	require.NoError(t, Validate(&n))
}

func TestActionPayloadDecode_NormalizesMethod(t *testing.T) {
	var a Action
	require.NoError(t, json.Unmarshal([]byte(`{"text": "Decline", "type": "request",
		"payload": {"url": "http://localhost/api/v1/invites/3/decline/", "method": " delete"}}`), &a))

	assert.Equal(t, "DELETE", a.Payload.Method)
	assert.Equal(t, "DELETE", a.HTTPMethod())
	require.NoError(t, ValidateAction(&a))

	var bad ActionPayload
	assert.Error(t, json.Unmarshal([]byte(`{"url": 3}`), &bad))
}

func TestValidate(t *testing.T) {
	t.Run("missing id", func(t *testing.T) {
		err := Validate(&Notification{Title: "x"})
		assert.ErrorIs(t, err, constants.ErrInvalidPayload)
	})

	t.Run("unknown action kind", func(t *testing.T) {
		n := Notification{ID: 1, Actions: []Action{{Kind: "teleport", Payload: ActionPayload{URL: "/"}}}}
		assert.ErrorIs(t, Validate(&n), constants.ErrInvalidPayload)
	})

	t.Run("bad method", func(t *testing.T) {
		a := Action{Kind: ActionRequest, Payload: ActionPayload{URL: "/x", Method: "PATCH"}}
		assert.ErrorIs(t, ValidateAction(&a), constants.ErrInvalidPayload)
	})

	t.Run("empty actions allowed", func(t *testing.T) {
		assert.NoError(t, Validate(&Notification{ID: 3, Actions: []Action{}}))
	})
}

func TestClone(t *testing.T) {
	foot := "note"
	n := Notification{ID: 1, Actions: []Action{{Text: "a"}}, Footnote: &foot}
	c := n.Clone()
	c.Actions[0].Text = "b"
	*c.Footnote = "changed"

	assert.Equal(t, "a", n.Actions[0].Text)
	assert.Equal(t, "note", *n.Footnote)
}
