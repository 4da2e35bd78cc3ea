package gorillaws

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	gorilla "github.com/gorilla/websocket"

	"github.com/collabhub/notifyclient/internal/codec"
	"github.com/collabhub/notifyclient/pkg/connection"
	"github.com/collabhub/notifyclient/pkg/constants"
	"github.com/collabhub/notifyclient/pkg/logger"
)

// DefaultDialer is the default gorilla dialer used by the Connection
//
// It uses the default gorilla dialer as of gorilla/websocket v1.5.0 with EnableCompression set to true.
var DefaultDialer = &gorilla.Dialer{
	Proxy:             gorilla.DefaultDialer.Proxy,
	HandshakeTimeout:  gorilla.DefaultDialer.HandshakeTimeout,
	EnableCompression: true,
}

type Option func(c *Connection)

// Connection is the notification Transport on top of gorilla/websocket.
type Connection struct {
	Dialer *gorilla.Dialer

	// CloseTimeout bounds the close message write when the caller's
	// context carries no deadline.
	CloseTimeout time.Duration

	events    connection.Events
	marshaler codec.Marshaler
	logger    logger.Logger

	// mu guards conn, state and gen.
	mu    sync.Mutex
	conn  *gorilla.Conn
	state connection.State

	// gen identifies the current connection. Open and Close bump it,
	// so a dial or read loop belonging to a superseded connection
	// recognizes itself and stays silent.
	gen uint64

	// writeMu serializes data frames; gorilla allows one concurrent writer.
	writeMu sync.Mutex
}

var _ connection.Transport = (*Connection)(nil)

func New(events connection.Events, opts ...Option) *Connection {
	if events == nil {
		panic("BUG: gorillaws.Connection requires events")
	}

	c := &Connection{
		Dialer:       DefaultDialer,
		CloseTimeout: constants.DefaultCloseTimeout,
		events:       events,
		marshaler:    codec.JSON{},
		logger:       logger.Nop(),
		state:        connection.StateClosed,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func WithLogger(l logger.Logger) Option {
	return func(c *Connection) {
		c.logger = logger.OrNop(l)
	}
}

func WithDialer(d *gorilla.Dialer) Option {
	return func(c *Connection) {
		c.Dialer = d
	}
}

func WithMarshaler(m codec.Marshaler) Option {
	return func(c *Connection) {
		c.marshaler = m
	}
}

func (c *Connection) State() connection.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Open replaces any active connection and dials url in the background.
//
// The url carries the session token, so it is never logged.
func (c *Connection) Open(ctx context.Context, url string) {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	old := c.conn
	c.conn = nil
	c.state = connection.StateConnecting
	c.mu.Unlock()

	if old != nil {
		c.logger.Debug("gorillaws.Connection is replacing the active connection")
		_ = old.Close()
	}

	go c.dial(ctx, gen, url)
}

func (c *Connection) dial(ctx context.Context, gen uint64, url string) {
	conn, res, err := c.Dialer.DialContext(ctx, url, nil)
	if res != nil && res.Body != nil {
		res.Body.Close()
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		c.state = connection.StateClosed
		c.mu.Unlock()

		c.logger.Warn("gorillaws.Connection handshake failed", "error", err)
		c.events.OnClosed(constants.CloseAbnormal, err.Error())
		return
	}
	c.conn = conn
	c.state = connection.StateOpen
	c.mu.Unlock()

	c.logger.Info("gorillaws.Connection opened")
	c.events.OnOpened()

	c.readLoop(gen, conn)
}

// readLoop delivers frames synchronously, so handlers observe them
// in the order the server sent them.
func (c *Connection) readLoop(gen uint64, conn *gorilla.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleReadError(gen, conn, err)
			return
		}
		c.events.OnMessage(data)
	}
}

func (c *Connection) handleReadError(gen uint64, conn *gorilla.Conn, err error) {
	c.mu.Lock()
	if gen != c.gen {
		// Closed on purpose or replaced; Close already reported it.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.state = connection.StateClosed
	c.mu.Unlock()

	_ = conn.Close()

	code, reason := closeStatus(err)
	c.logger.Info("gorillaws.Connection closed", "code", code, "reason", reason)
	c.events.OnClosed(code, reason)
}

func closeStatus(err error) (int, string) {
	var ce *gorilla.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Text
	}
	return constants.CloseAbnormal, err.Error()
}

// Send writes v as one JSON text frame.
//
// It never queues: when the channel is not open the frame is dropped,
// the failure is logged and constants.ErrNotConnected is returned.
func (c *Connection) Send(v any) error {
	c.mu.Lock()
	conn, state := c.conn, c.state
	c.mu.Unlock()

	if state != connection.StateOpen || conn == nil {
		c.logger.Error("gorillaws.Connection cannot send, channel is not open", "state", state.String())
		return constants.ErrNotConnected
	}

	data, err := c.marshaler.Marshal(v)
	if err != nil {
		c.logger.Error("gorillaws.Connection failed to encode frame", "error", err)
		return fmt.Errorf("gorillaws.Connection failed to encode frame: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := conn.WriteMessage(gorilla.TextMessage, data); err != nil {
		c.logger.Error("gorillaws.Connection failed to write frame", "error", err)
		return fmt.Errorf("gorillaws.Connection failed to write frame: %w", err)
	}
	return nil
}

// Close closes the active connection, or abandons a dial in progress,
// and reports closed(1000) to the owner. Closing a closed channel is a no-op.
//
// The close message write is bounded by ctx's deadline or CloseTimeout.
// The underlying network connection is closed even if that write fails.
func (c *Connection) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.state == connection.StateClosed && c.conn == nil {
		c.mu.Unlock()
		return nil
	}
	c.gen++
	conn := c.conn
	c.conn = nil
	c.state = connection.StateClosed
	c.mu.Unlock()

	var err error
	if conn != nil {
		err = c.closeConn(ctx, conn)
	}

	c.logger.Info("gorillaws.Connection closed by client")
	c.events.OnClosed(constants.CloseMessageCode, "closed by client")

	return err
}

func (c *Connection) closeConn(ctx context.Context, conn *gorilla.Conn) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.CloseTimeout)
	}

	// WriteControl may run concurrently with a data write.
	msg := gorilla.FormatCloseMessage(constants.CloseMessageCode, "")
	if err := conn.WriteControl(gorilla.CloseMessage, msg, deadline); err != nil {
		// We still close locally so nothing leaks on our side.
		c.logger.Debug("gorillaws.Connection failed to write close message", "error", err)
	}

	return conn.Close()
}
