package rews

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/collabhub/notifyclient/pkg/auth"
	"github.com/collabhub/notifyclient/pkg/connection"
	"github.com/collabhub/notifyclient/pkg/constants"
	"github.com/collabhub/notifyclient/pkg/logger"
)

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	// StateExhausted means the attempt budget is spent; only Resume or
	// Start opens the channel again.
	StateExhausted
	StateStopped
)

func (state State) String() string {
	switch state {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateReconnecting:
		return "Reconnecting"
	case StateExhausted:
		return "Exhausted"
	case StateStopped:
		return "Stopped"
	default:
		return "InvalidState"
	}
}

// Timer is the handle of a scheduled reconnection attempt.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d. time.AfterFunc is the default.
type Scheduler func(d time.Duration, f func()) Timer

func AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type Option func(r *Reconnector)

// Reconnector keeps a Transport open across unplanned closures.
//
// It is driven by the transport's opened and closed events, which the owner
// forwards to OnOpened and OnClosed. Every attempt reads the current token
// from the TokenSource, so rotated tokens are picked up.
type Reconnector struct {
	// Retryer decides the delay before each attempt and when to give up.
	Retryer Retryer

	transport connection.Transport
	tokens    auth.TokenSource
	endpoint  string
	schedule  Scheduler
	logger    logger.Logger
	onState   func(State)

	mu sync.Mutex
	// ctx lives from Start to Stop and carries every dial, so a caller's
	// short-lived Start context does not bound later attempts.
	ctx      context.Context
	cancel   context.CancelFunc
	state    State
	attempts int
	timer    Timer

	// epoch is bumped by Start and Stop, so a timer that fires
	// after being superseded does nothing.
	epoch uint64
}

func New(transport connection.Transport, tokens auth.TokenSource, endpoint string, opts ...Option) *Reconnector {
	r := &Reconnector{
		Retryer:   NewExponentialBackoffRetryer(),
		transport: transport,
		tokens:    tokens,
		endpoint:  endpoint,
		schedule:  AfterFunc,
		logger:    logger.Nop(),
		ctx:       context.Background(),
		cancel:    func() {},
		state:     StateDisconnected,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func WithRetryer(retryer Retryer) Option {
	return func(r *Reconnector) {
		r.Retryer = retryer
	}
}

func WithScheduler(s Scheduler) Option {
	return func(r *Reconnector) {
		r.schedule = s
	}
}

func WithLogger(l logger.Logger) Option {
	return func(r *Reconnector) {
		r.logger = logger.OrNop(l)
	}
}

// WithStateListener observes state transitions. fn runs outside the lock.
func WithStateListener(fn func(State)) Option {
	return func(r *Reconnector) {
		r.onState = fn
	}
}

func (r *Reconnector) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Attempts returns the number of reconnection attempts since the last
// successful open.
func (r *Reconnector) Attempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts
}

// Start opens the channel with the current token and arms reconnection.
//
// Only ctx's values are kept: its cancellation ends neither the dial nor
// later attempts, Stop does.
//
// It returns constants.ErrNoToken, without touching the network,
// when no token is available. A stopped Reconnector cannot be restarted.
func (r *Reconnector) Start(ctx context.Context) error {
	r.mu.Lock()
	prev := r.state
	if r.state == StateStopped {
		r.mu.Unlock()
		return constants.ErrStopped
	}
	r.cancel()
	r.ctx, r.cancel = context.WithCancel(context.WithoutCancel(ctx))
	r.epoch++
	r.attempts = 0
	r.Retryer.Reset()
	r.stopTimerLocked()
	err := r.openLocked()
	r.unlockAndNotify(prev)
	return err
}

// Resume restarts a policy that gave up, or that went idle for lack of a
// token. It does nothing while connected or connecting.
func (r *Reconnector) Resume(ctx context.Context) error {
	switch r.State() {
	case StateConnected, StateConnecting:
		return nil
	}
	return r.Start(ctx)
}

// Stop cancels any pending attempt and closes the transport.
// The closure it causes is planned and never triggers reconnection.
func (r *Reconnector) Stop(ctx context.Context) error {
	r.mu.Lock()
	prev := r.state
	r.epoch++
	r.stopTimerLocked()
	r.state = StateStopped
	cancel := r.cancel
	r.unlockAndNotify(prev)

	// Close reports closed synchronously, so it must run without the lock.
	err := r.transport.Close(ctx)
	cancel()
	return err
}

// OnOpened resets the attempt counter.
func (r *Reconnector) OnOpened() {
	r.mu.Lock()
	prev := r.state
	if r.state == StateStopped {
		r.mu.Unlock()
		return
	}
	r.attempts = 0
	r.Retryer.Reset()
	r.state = StateConnected
	r.unlockAndNotify(prev)

	r.logger.Info("rews.Reconnector connected")
}

// OnClosed schedules the next attempt after an unplanned closure,
// or gives up once the budget is spent.
func (r *Reconnector) OnClosed(code int, reason string) {
	r.mu.Lock()
	prev := r.state
	if r.state == StateStopped || r.timer != nil {
		r.mu.Unlock()
		return
	}

	delay, ok := r.Retryer.NextDelay(r.attempts, fmt.Errorf("closed with code %d: %s", code, reason))
	if !ok {
		r.state = StateExhausted
		attempts := r.attempts
		r.unlockAndNotify(prev)

		r.logger.Error("rews.Reconnector gave up reconnecting", "attempts", attempts, "code", code, "reason", reason)
		return
	}

	r.attempts++
	r.state = StateReconnecting
	epoch := r.epoch
	attempt := r.attempts
	r.timer = r.schedule(delay, func() { r.fire(epoch) })
	r.unlockAndNotify(prev)

	r.logger.Info("rews.Reconnector scheduled reconnection", "attempt", attempt, "delay", delay, "code", code, "reason", reason)
}

func (r *Reconnector) fire(epoch uint64) {
	r.mu.Lock()
	prev := r.state
	if epoch != r.epoch || r.state == StateStopped {
		r.mu.Unlock()
		return
	}
	r.timer = nil
	err := r.openLocked()
	r.unlockAndNotify(prev)

	if err != nil {
		r.logger.Warn("rews.Reconnector is idle until resumed", "error", err)
	}
}

// openLocked asks the transport to connect with the current token.
// Transport.Open never reports events synchronously, so it is safe under mu.
func (r *Reconnector) openLocked() error {
	token, err := r.tokens.Token()
	if err != nil {
		r.state = StateDisconnected
		return fmt.Errorf("rews.Reconnector cannot connect: %w", err)
	}

	url, err := connection.URLWithToken(r.endpoint, token)
	if err != nil {
		r.state = StateDisconnected
		return err
	}

	r.state = StateConnecting
	r.transport.Open(r.ctx, url)
	return nil
}

func (r *Reconnector) stopTimerLocked() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

func (r *Reconnector) unlockAndNotify(prev State) {
	state := r.state
	r.mu.Unlock()

	if state != prev {
		r.logger.Debug("rews.Reconnector state transitioned", "from", prev.String(), "to", state.String())
		if r.onState != nil {
			r.onState(state)
		}
	}
}
