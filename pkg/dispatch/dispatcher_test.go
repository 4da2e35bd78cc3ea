package dispatch

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collabhub/notifyclient/pkg/constants"
	"github.com/collabhub/notifyclient/pkg/logger"
	"github.com/collabhub/notifyclient/pkg/models"
)

type recordingHandler struct {
	calls []string
	last  Event
}

func (h *recordingHandler) OnInserted(n models.Notification) {
	h.calls = append(h.calls, "inserted")
	h.last = Event{Kind: EventInserted, Notification: n}
}

func (h *recordingHandler) OnUpdated(n models.Notification) {
	h.calls = append(h.calls, "updated")
	h.last = Event{Kind: EventUpdated, Notification: n}
}

func (h *recordingHandler) OnDeleted(id int64) {
	h.calls = append(h.calls, "deleted")
	h.last = Event{Kind: EventDeleted, ID: id}
}

func (h *recordingHandler) OnError(message string) {
	h.calls = append(h.calls, "error")
	h.last = Event{Kind: EventError, Message: message}
}

func TestDispatch_NotificationEvents(t *testing.T) {
	h := &recordingHandler{}
	d := New(h)

	require.NoError(t, d.Dispatch([]byte(`{"type":"notification","data":{"type":"NEW","data":{"id":5,"title":"Invite","message":"join us","is_read":false,"created_at":"2024-03-01T10:00:00Z"}}}`)))
	assert.Equal(t, EventInserted, h.last.Kind)
	assert.Equal(t, int64(5), h.last.Notification.ID)
	assert.Equal(t, "Invite", h.last.Notification.Title)
	assert.False(t, h.last.Notification.IsRead)

	require.NoError(t, d.Dispatch([]byte(`{"type":"notification","data":{"type":"UPDATE","data":{"id":5,"is_read":true}}}`)))
	assert.Equal(t, EventUpdated, h.last.Kind)
	assert.True(t, h.last.Notification.IsRead)

	require.NoError(t, d.Dispatch([]byte(`{"type":"notification","data":{"type":"DELETE","id":5}}`)))
	assert.Equal(t, Event{Kind: EventDeleted, ID: 5}, h.last)

	require.NoError(t, d.Dispatch([]byte(`{"type":"notification","notification_id":6,"data":{"type":"DELETE"}}`)))
	assert.Equal(t, Event{Kind: EventDeleted, ID: 6}, h.last)

	assert.Equal(t, []string{"inserted", "updated", "deleted", "deleted"}, h.calls)
}

func TestDispatch_ErrorFrame(t *testing.T) {
	h := &recordingHandler{}
	d := New(h)

	require.NoError(t, d.Dispatch([]byte(`{"type":"error","data":{"message":"rate limited"}}`)))
	assert.Equal(t, Event{Kind: EventError, Message: "rate limited"}, h.last)

	require.NoError(t, d.Dispatch([]byte(`{"type":"error"}`)))
	assert.Equal(t, "unknown error", h.last.Message)
}

func TestDispatch_DropsBadFrames(t *testing.T) {
	cases := []struct {
		name  string
		frame string
		want  error
	}{
		{"not json", `hello`, constants.ErrMalformedFrame},
		{"missing type", `{"data":{}}`, constants.ErrMalformedFrame},
		{"unknown type", `{"type":"presence"}`, constants.ErrUnknownFrame},
		{"missing event type", `{"type":"notification","data":{}}`, constants.ErrMalformedFrame},
		{"unknown event type", `{"type":"notification","data":{"type":"PATCH"}}`, constants.ErrUnknownFrame},
		{"new without payload", `{"type":"notification","data":{"type":"NEW"}}`, constants.ErrMalformedFrame},
		{"new with wrong payload", `{"type":"notification","data":{"type":"NEW","data":{"id":"five"}}}`, constants.ErrMalformedFrame},
		{"new without id", `{"type":"notification","data":{"type":"NEW","data":{"title":"x"}}}`, constants.ErrInvalidPayload},
		{"delete without id", `{"type":"notification","data":{"type":"DELETE"}}`, constants.ErrMalformedFrame},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			l, err := logger.New().FromBuffer(buf).Make()
			require.NoError(t, err)

			h := &recordingHandler{}
			d := New(h, WithLogger(l))

			err = d.Dispatch([]byte(tc.frame))
			require.ErrorIs(t, err, tc.want)
			assert.True(t, IsDropped(err))
			assert.Empty(t, h.calls)
			assert.Contains(t, buf.String(), "dropped frame")
		})
	}
}

func TestDispatch_NoHandler(t *testing.T) {
	d := New(nil)

	err := d.Dispatch([]byte(`{"type":"notification","data":{"type":"DELETE","id":1}}`))
	require.ErrorIs(t, err, constants.ErrNoHandler)

	assert.NotPanics(t, func() {
		d.OnMessage([]byte(`{"type":"error","data":{"message":"x"}}`))
	})
}

func TestDispatch_PreservesOrder(t *testing.T) {
	h := &recordingHandler{}
	d := New(h)

	frames := []string{
		`{"type":"notification","data":{"type":"NEW","data":{"id":1}}}`,
		`{"type":"bogus"}`,
		`{"type":"notification","data":{"type":"UPDATE","data":{"id":1,"is_read":true}}}`,
		`{"type":"error","data":{"message":"boom"}}`,
		`{"type":"notification","data":{"type":"DELETE","id":1}}`,
	}
	for _, f := range frames {
		d.OnMessage([]byte(f))
	}

	assert.Equal(t, []string{"inserted", "updated", "error", "deleted"}, h.calls)
}
