package models

import (
	"bytes"
	"fmt"
	"time"
)

// datetimeLayouts are tried in order when decoding created_at.
// The backend emits RFC 3339 with or without a zone offset.
var datetimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// Datetime embeds time.Time
type Datetime struct {
	time.Time
}

func (d Datetime) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.UTC().Format(time.RFC3339Nano) + `"`), nil
}

func (d *Datetime) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*d = Datetime{}
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("datetime must be a string, got %s", data)
	}
	s := string(data[1 : len(data)-1])
	if s == "" {
		*d = Datetime{}
		return nil
	}
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			*d = Datetime{t}
			return nil
		}
	}
	return fmt.Errorf("unrecognized datetime %q", s)
}

func (d Datetime) IsZero() bool {
	return d.Time.IsZero()
}

func (d Datetime) String() string {
	layout := "2006-01-02T15:04:05Z07:00"
	return d.Format(layout)
}
