package connection

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURLWithToken(t *testing.T) {
	u, err := URLWithToken("ws://localhost:80/ws/notifications/", "abc def")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:80/ws/notifications/?token=abc+def", u)

	u, err = URLWithToken("wss://example.com/ws?lang=en", "t")
	require.NoError(t, err)
	assert.Equal(t, "wss://example.com/ws?lang=en&token=t", u)

	_, err = URLWithToken("http://example.com/ws", "t")
	assert.Error(t, err)
}

func TestIntentWireFormat(t *testing.T) {
	testcases := []struct {
		intent Intent
		want   string
	}{
		{MarkAsRead(7), `{"type":"mark_as_read","notification_id":7}`},
		{MarkAllRead(), `{"type":"mark_all_read"}`},
		{MarkAsHidden(9), `{"type":"mark_as_hidden","notification_id":9}`},
		{MarkAllHidden(), `{"type":"mark_all_hidden"}`},
	}

	for _, tc := range testcases {
		t.Run(tc.intent.Type, func(t *testing.T) {
			data, err := json.Marshal(tc.intent)
			require.NoError(t, err)
			assert.JSONEq(t, tc.want, string(data))
		})
	}
}
