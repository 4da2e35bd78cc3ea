package dispatch

import (
	"errors"
	"fmt"

	"github.com/buger/jsonparser"

	"github.com/collabhub/notifyclient/internal/codec"
	"github.com/collabhub/notifyclient/pkg/connection"
	"github.com/collabhub/notifyclient/pkg/constants"
	"github.com/collabhub/notifyclient/pkg/logger"
	"github.com/collabhub/notifyclient/pkg/models"
)

const defaultErrorMessage = "unknown error"

type Option func(d *Dispatcher)

// Dispatcher decodes raw frames and routes them to a Handler.
// Frames it cannot make sense of are logged and dropped; it never fails the
// channel.
type Dispatcher struct {
	handler     Handler
	unmarshaler codec.Unmarshaler
	logger      logger.Logger
}

// New returns a Dispatcher for handler. A nil handler is accepted, and every
// frame is then dropped with constants.ErrNoHandler.
func New(handler Handler, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		handler:     handler,
		unmarshaler: codec.JSON{},
		logger:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func WithLogger(l logger.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger.OrNop(l)
	}
}

func WithUnmarshaler(u codec.Unmarshaler) Option {
	return func(d *Dispatcher) {
		d.unmarshaler = u
	}
}

// Decode turns a raw frame into an Event.
//
// Only the discriminators are read with jsonparser; the notification payload
// is decoded in full and validated.
func (d *Dispatcher) Decode(raw []byte) (Event, error) {
	frameType, err := jsonparser.GetString(raw, "type")
	if err != nil {
		return Event{}, fmt.Errorf("%w: missing type: %v", constants.ErrMalformedFrame, err)
	}

	switch frameType {
	case connection.FrameNotification:
		return d.decodeNotification(raw)
	case connection.FrameError:
		msg, err := jsonparser.GetString(raw, "data", "message")
		if err != nil || msg == "" {
			msg = defaultErrorMessage
		}
		return Event{Kind: EventError, Message: msg}, nil
	default:
		return Event{}, fmt.Errorf("%w: %q", constants.ErrUnknownFrame, frameType)
	}
}

func (d *Dispatcher) decodeNotification(raw []byte) (Event, error) {
	eventType, err := jsonparser.GetString(raw, "data", "type")
	if err != nil {
		return Event{}, fmt.Errorf("%w: missing data.type: %v", constants.ErrMalformedFrame, err)
	}

	switch eventType {
	case connection.EventNew, connection.EventUpdate:
		payload, dataType, _, err := jsonparser.Get(raw, "data", "data")
		if err != nil || dataType != jsonparser.Object {
			return Event{}, fmt.Errorf("%w: %s without a notification", constants.ErrMalformedFrame, eventType)
		}
		var n models.Notification
		if err := d.unmarshaler.Unmarshal(payload, &n); err != nil {
			return Event{}, fmt.Errorf("%w: %v", constants.ErrMalformedFrame, err)
		}
		if err := models.Validate(&n); err != nil {
			return Event{}, err
		}
		kind := EventInserted
		if eventType == connection.EventUpdate {
			kind = EventUpdated
		}
		return Event{Kind: kind, Notification: n}, nil

	case connection.EventDelete:
		id, err := jsonparser.GetInt(raw, "data", "id")
		if err != nil {
			// Some backends put the id on the frame itself.
			id, err = jsonparser.GetInt(raw, "notification_id")
		}
		if err != nil {
			return Event{}, fmt.Errorf("%w: DELETE without an id", constants.ErrMalformedFrame)
		}
		return Event{Kind: EventDeleted, ID: id}, nil

	default:
		return Event{}, fmt.Errorf("%w: notification event %q", constants.ErrUnknownFrame, eventType)
	}
}

// Dispatch decodes raw and calls exactly one Handler method for it.
// It returns the reason a frame was dropped, after logging it.
func (d *Dispatcher) Dispatch(raw []byte) error {
	ev, err := d.Decode(raw)
	if err != nil {
		d.logger.Warn("dispatch.Dispatcher dropped frame", "reason", err.Error(), "size", len(raw))
		return err
	}
	return d.Route(ev)
}

// Route hands an already decoded event to the Handler.
func (d *Dispatcher) Route(ev Event) error {
	if d.handler == nil {
		d.logger.Warn("dispatch.Dispatcher dropped event", "kind", ev.Kind.String(), "reason", constants.ErrNoHandler.Error())
		return constants.ErrNoHandler
	}

	switch ev.Kind {
	case EventInserted:
		d.handler.OnInserted(ev.Notification)
	case EventUpdated:
		d.handler.OnUpdated(ev.Notification)
	case EventDeleted:
		d.handler.OnDeleted(ev.ID)
	case EventError:
		d.logger.Warn("dispatch.Dispatcher received error frame", "message", ev.Message)
		d.handler.OnError(ev.Message)
	default:
		return fmt.Errorf("%w: event kind %d", constants.ErrUnknownFrame, ev.Kind)
	}
	return nil
}

// OnMessage makes the Dispatcher usable as the frame sink of a transport.
func (d *Dispatcher) OnMessage(frame []byte) {
	_ = d.Dispatch(frame)
}

// IsDropped reports whether err is one of the reasons a frame is dropped.
func IsDropped(err error) bool {
	return errors.Is(err, constants.ErrMalformedFrame) ||
		errors.Is(err, constants.ErrUnknownFrame) ||
		errors.Is(err, constants.ErrInvalidPayload) ||
		errors.Is(err, constants.ErrNoHandler)
}
