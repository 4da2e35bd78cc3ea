package fakeserver

import (
	"fmt"

	"github.com/collabhub/notifyclient/internal/codec"
	"github.com/collabhub/notifyclient/pkg/connection"
	"github.com/collabhub/notifyclient/pkg/models"
)

type eventData struct {
	Type string               `json:"type"`
	Data *models.Notification `json:"data,omitempty"`
	ID   *int64               `json:"id,omitempty"`
}

type frame struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type errorData struct {
	Message string `json:"message"`
}

func mustMarshal(v any) []byte {
	data, err := codec.JSON{}.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("fakeserver: cannot encode frame: %v", err))
	}
	return data
}

// NewFrame builds a NEW notification frame.
func NewFrame(n models.Notification) []byte {
	return mustMarshal(frame{Type: connection.FrameNotification, Data: eventData{Type: connection.EventNew, Data: &n}})
}

// UpdateFrame builds an UPDATE notification frame.
func UpdateFrame(n models.Notification) []byte {
	return mustMarshal(frame{Type: connection.FrameNotification, Data: eventData{Type: connection.EventUpdate, Data: &n}})
}

// DeleteFrame builds a DELETE notification frame.
func DeleteFrame(id int64) []byte {
	return mustMarshal(frame{Type: connection.FrameNotification, Data: eventData{Type: connection.EventDelete, ID: &id}})
}

// ErrorFrame builds an error frame.
func ErrorFrame(message string) []byte {
	return mustMarshal(frame{Type: connection.FrameError, Data: errorData{Message: message}})
}
