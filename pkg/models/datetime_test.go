package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatetime_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	testcases := []struct {
		name  string
		input string
		want  time.Time
	}{
		{
			name:  "rfc3339 with zone",
			input: `"2025-05-01T12:30:00Z"`,
			want:  time.Date(2025, 5, 1, 12, 30, 0, 0, time.UTC),
		},
		{
			name:  "fractional seconds and offset",
			input: `"2025-05-01T15:30:00.123456+03:00"`,
			want:  time.Date(2025, 5, 1, 12, 30, 0, 123456000, time.UTC),
		},
		{
			name:  "naive timestamp",
			input: `"2025-05-01T12:30:00"`,
			want:  time.Date(2025, 5, 1, 12, 30, 0, 0, time.UTC),
		},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			var d Datetime
			require.NoError(t, d.UnmarshalJSON([]byte(tc.input)))
			assert.True(t, tc.want.Equal(d.Time), "got %v", d.Time)
		})
	}

	t.Run("null", func(t *testing.T) {
		var d Datetime
		require.NoError(t, d.UnmarshalJSON([]byte("null")))
		assert.True(t, d.IsZero())
	})

	t.Run("garbage", func(t *testing.T) {
		var d Datetime
		assert.Error(t, d.UnmarshalJSON([]byte(`"yesterday"`)))
		assert.Error(t, d.UnmarshalJSON([]byte(`12`)))
	})
}
