package notifyclient

import (
	"context"
	"sync/atomic"

	"github.com/collabhub/notifyclient/pkg/connection"
	"github.com/collabhub/notifyclient/pkg/connection/rews"
	"github.com/collabhub/notifyclient/pkg/dispatch"
	"github.com/collabhub/notifyclient/pkg/logger"
	"github.com/collabhub/notifyclient/pkg/store"
)

// events fans transport events out to the reconnection policy and the
// dispatcher.
type events struct {
	reconnector      *rews.Reconnector
	dispatcher       *dispatch.Dispatcher
	store            *store.Store
	onTransportError func(code int, reason string)
	logger           logger.Logger

	opened atomic.Int64
}

var _ connection.Events = (*events)(nil)

func (e *events) OnOpened() {
	e.reconnector.OnOpened()

	// Pushes sent while we were away are lost; resync from REST.
	if e.opened.Add(1) > 1 {
		go func() {
			if _, err := e.store.LoadSnapshot(context.Background()); err != nil {
				e.logger.Warn("notifyclient.Client resync after reconnect failed", "error", err)
			}
		}()
	}
}

func (e *events) OnMessage(frame []byte) {
	e.dispatcher.OnMessage(frame)
}

func (e *events) OnClosed(code int, reason string) {
	if e.reconnector.State() != rews.StateStopped && e.onTransportError != nil {
		e.onTransportError(code, reason)
	}
	e.reconnector.OnClosed(code, reason)
}
