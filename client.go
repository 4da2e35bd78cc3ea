package notifyclient

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	gorilla "github.com/gorilla/websocket"

	"github.com/collabhub/notifyclient/httpclient"
	"github.com/collabhub/notifyclient/pkg/auth"
	"github.com/collabhub/notifyclient/pkg/connection"
	"github.com/collabhub/notifyclient/pkg/connection/gorillaws"
	"github.com/collabhub/notifyclient/pkg/connection/rews"
	"github.com/collabhub/notifyclient/pkg/constants"
	"github.com/collabhub/notifyclient/pkg/dispatch"
	"github.com/collabhub/notifyclient/pkg/logger"
	"github.com/collabhub/notifyclient/pkg/store"
)

// Config locates the backend.
type Config struct {
	// NotificationsURL is the REST collection, e.g.
	// http://localhost/api/v1/notifications/.
	NotificationsURL string

	// WSURL is the push channel endpoint; the token is appended as ?token=.
	WSURL string

	// AuthScheme prefixes the token in the Authorization header.
	// Defaults to "Token".
	AuthScheme string

	// HTTPTimeout bounds each REST call. Defaults to 15s.
	HTTPTimeout time.Duration
}

// Session identifies the signed-in user.
type Session struct {
	// Token is the session token. When empty, the client falls back to the
	// TokenSource given with WithTokenSource.
	Token string
}

type Option func(c *Client)

func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		c.logger = logger.OrNop(l)
	}
}

// WithTokenSource is consulted whenever no session token was set,
// for instance a keyring holding a stored credential.
func WithTokenSource(ts auth.TokenSource) Option {
	return func(c *Client) {
		c.fallback = ts
	}
}

// WithRetryer replaces the default backoff. A fresh Retryer is not created
// per session, so it must be stateless or reset itself.
func WithRetryer(r rews.Retryer) Option {
	return func(c *Client) {
		c.retryer = r
	}
}

// WithScheduler replaces time.AfterFunc for reconnection timers.
func WithScheduler(s rews.Scheduler) Option {
	return func(c *Client) {
		c.scheduler = s
	}
}

func WithNavigator(n store.Navigator) Option {
	return func(c *Client) {
		c.navigator = n
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithDialer(d *gorilla.Dialer) Option {
	return func(c *Client) {
		c.dialer = d
	}
}

// OnTransportError is called on every unplanned closure of the push
// channel, from the transport's goroutine.
func OnTransportError(fn func(code int, reason string)) Option {
	return func(c *Client) {
		c.onTransportError = fn
	}
}

// WithStateListener observes the connection lifecycle.
func WithStateListener(fn func(rews.State)) Option {
	return func(c *Client) {
		c.onState = fn
	}
}

// Client owns one notification session at a time.
type Client struct {
	cfg Config

	logger           logger.Logger
	token            *auth.Memory
	fallback         auth.TokenSource
	retryer          rews.Retryer
	scheduler        rews.Scheduler
	navigator        store.Navigator
	httpClient       *http.Client
	dialer           *gorilla.Dialer
	onTransportError func(code int, reason string)
	onState          func(rews.State)

	mu      sync.Mutex
	session *session
}

// session is everything built by Start and torn down by Stop.
type session struct {
	id          string
	store       *store.Store
	transport   *gorillaws.Connection
	reconnector *rews.Reconnector
}

func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.NotificationsURL == "" || cfg.WSURL == "" {
		return nil, fmt.Errorf("notifyclient: NotificationsURL and WSURL are required")
	}
	if _, err := connection.URLWithToken(cfg.WSURL, "check"); err != nil {
		return nil, fmt.Errorf("notifyclient: %w", err)
	}
	if cfg.AuthScheme == "" {
		cfg.AuthScheme = constants.DefaultAuthScheme
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = constants.DefaultHTTPTimeout
	}

	c := &Client{
		cfg:       cfg,
		logger:    logger.Nop(),
		token:     auth.NewMemory(""),
		scheduler: rews.AfterFunc,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Token returns the session token, or the fallback source's.
func (c *Client) Token() (string, error) {
	if t, err := c.token.Token(); err == nil {
		return t, nil
	}
	if c.fallback != nil {
		return c.fallback.Token()
	}
	return "", constants.ErrNoToken
}

// SetToken replaces the session token. The next REST call and the next
// reconnection attempt use it; the live channel is kept.
func (c *Client) SetToken(token string) {
	c.token.Set(token)
}

// Start loads the snapshot and opens the push channel.
//
// It fails with constants.ErrNoToken, before any network I/O, when no token
// is available. A failed snapshot does not fail Start: the error is kept on
// the store, see store.Store.Err, and the channel is opened anyway.
func (c *Client) Start(ctx context.Context, s Session) error {
	c.mu.Lock()
	if c.session != nil {
		c.mu.Unlock()
		return constants.ErrAlreadyStarted
	}
	if s.Token != "" {
		c.token.Set(s.Token)
	}
	if _, err := c.Token(); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("notifyclient: cannot start session: %w", err)
	}
	sess := c.newSession()
	c.session = sess
	c.mu.Unlock()

	// Listeners may call back into the client, so the lock is not held
	// while the session starts.
	if err := sess.reconnector.Start(ctx); err != nil {
		c.mu.Lock()
		if c.session == sess {
			c.session = nil
		}
		c.mu.Unlock()
		sess.store.Stop()
		return err
	}

	if _, err := sess.store.LoadSnapshot(ctx); err != nil {
		c.sessionLogger(sess).Warn("notifyclient.Client started with a stale snapshot", "error", err)
	}
	return nil
}

func (c *Client) newSession() *session {
	sess := &session{id: uuid.NewString()}
	log := c.sessionLogger(sess)
	tokens := auth.TokenFunc(c.Token)

	restOpts := []httpclient.Option{
		httpclient.WithAuthScheme(c.cfg.AuthScheme),
		httpclient.WithLogger(log),
	}
	if c.httpClient != nil {
		restOpts = append(restOpts, httpclient.WithHTTPClient(c.httpClient))
	}
	restOpts = append(restOpts, httpclient.WithTimeout(c.cfg.HTTPTimeout))
	rest := httpclient.New(c.cfg.NotificationsURL, tokens, restOpts...)

	ev := &events{logger: log, onTransportError: c.onTransportError}

	transportOpts := []gorillaws.Option{gorillaws.WithLogger(log)}
	if c.dialer != nil {
		transportOpts = append(transportOpts, gorillaws.WithDialer(c.dialer))
	}
	sess.transport = gorillaws.New(ev, transportOpts...)

	reconnectorOpts := []rews.Option{
		rews.WithLogger(log),
		rews.WithScheduler(c.scheduler),
		rews.WithStateListener(c.onState),
	}
	if c.retryer != nil {
		reconnectorOpts = append(reconnectorOpts, rews.WithRetryer(c.retryer))
	}
	sess.reconnector = rews.New(sess.transport, tokens, c.cfg.WSURL, reconnectorOpts...)

	storeOpts := []store.Option{store.WithLogger(log)}
	if c.navigator != nil {
		storeOpts = append(storeOpts, store.WithNavigator(c.navigator))
	}
	sess.store = store.New(rest, sess.transport, storeOpts...)

	ev.reconnector = sess.reconnector
	ev.dispatcher = dispatch.New(sess.store, dispatch.WithLogger(log))
	ev.store = sess.store
	return sess
}

func (c *Client) sessionLogger(s *session) logger.Logger {
	return logger.With(c.logger, "session", s.id)
}

// Stop ends the session: pending reconnection is cancelled, the channel is
// closed, in-flight REST calls are cancelled and the session token is
// forgotten. Stopping a stopped client is a no-op.
func (c *Client) Stop(ctx context.Context) error {
	c.mu.Lock()
	sess := c.session
	c.session = nil
	c.token.Clear()
	c.mu.Unlock()

	if sess == nil {
		return nil
	}
	sess.store.Stop()
	return sess.reconnector.Stop(ctx)
}

// Resume reconnects after the attempt budget was spent, or after the
// channel went idle for lack of a token, and reloads the snapshot.
func (c *Client) Resume(ctx context.Context) error {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()

	if sess == nil {
		return constants.ErrStopped
	}
	if err := sess.reconnector.Resume(ctx); err != nil {
		return err
	}
	_, err := sess.store.LoadSnapshot(ctx)
	return err
}

// Store returns the current session's store, nil when stopped.
func (c *Client) Store() *store.Store {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	return c.session.store
}

func (c *Client) State() rews.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return rews.StateStopped
	}
	return c.session.reconnector.State()
}

// SessionID tags the current session's log lines. Empty when stopped.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.id
}
