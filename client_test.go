package notifyclient_test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collabhub/notifyclient"
	"github.com/collabhub/notifyclient/httpclient"
	"github.com/collabhub/notifyclient/internal/fakeserver"
	"github.com/collabhub/notifyclient/pkg/auth"
	"github.com/collabhub/notifyclient/pkg/connection"
	"github.com/collabhub/notifyclient/pkg/connection/rews"
	"github.com/collabhub/notifyclient/pkg/constants"
	"github.com/collabhub/notifyclient/pkg/models"
)

const (
	waitFor = 3 * time.Second
	tick    = 10 * time.Millisecond
)

func note(id int64, read bool) models.Notification {
	return models.Notification{ID: id, Title: "note", IsRead: read}
}

func newServer(t *testing.T) *fakeserver.Server {
	t.Helper()
	srv := fakeserver.New("secret")
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, srv *fakeserver.Server, opts ...notifyclient.Option) *notifyclient.Client {
	t.Helper()
	opts = append([]notifyclient.Option{
		notifyclient.WithRetryer(rews.NewFixedDelayRetryer(20*time.Millisecond, 5)),
	}, opts...)
	c, err := notifyclient.New(notifyclient.Config{
		NotificationsURL: srv.NotificationsURL(),
		WSURL:            srv.WSURL(),
	}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Stop(context.Background()) })
	return c
}

func waitConnected(t *testing.T, c *notifyclient.Client, srv *fakeserver.Server, dials int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.State() == rews.StateConnected && srv.Connections() == 1 && srv.Dials() == dials
	}, waitFor, tick)
}

type closures struct {
	mu    sync.Mutex
	codes []int
}

func (c *closures) record(code int, _ string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codes = append(c.codes, code)
}

func (c *closures) get() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.codes...)
}

func TestClient_ColdStartPushAndHide(t *testing.T) {
	srv := newServer(t)
	srv.SetNotifications(note(1, false), note(2, true))
	c := newClient(t, srv)

	require.NoError(t, c.Start(context.Background(), notifyclient.Session{Token: "secret"}))
	st := c.Store()
	require.NotNil(t, st)
	assert.Equal(t, 1, st.Unread())
	assert.NotEmpty(t, c.SessionID())
	waitConnected(t, c, srv, 1)

	require.NoError(t, srv.Push(fakeserver.NewFrame(note(5, false))))
	require.Eventually(t, func() bool { return st.Len() == 3 }, waitFor, tick)
	assert.Equal(t, 2, st.Unread())
	assert.Equal(t, int64(5), st.List()[0].ID)

	require.NoError(t, st.Hide(2))
	_, ok := st.Get(2)
	assert.False(t, ok)
	require.Eventually(t, func() bool { return len(srv.Intents()) == 1 }, waitFor, tick)
	assert.Equal(t, connection.MarkAsHidden(2), srv.Intents()[0])
}

func TestClient_ServerOverridesOptimisticRead(t *testing.T) {
	srv := newServer(t)
	srv.SetNotifications(note(7, false))
	c := newClient(t, srv)
	require.NoError(t, c.Start(context.Background(), notifyclient.Session{Token: "secret"}))
	waitConnected(t, c, srv, 1)
	st := c.Store()

	require.NoError(t, st.MarkRead(7))
	n, _ := st.Get(7)
	assert.True(t, n.IsRead)

	require.NoError(t, srv.Push(fakeserver.UpdateFrame(note(7, false))))
	require.Eventually(t, func() bool {
		n, _ := st.Get(7)
		return !n.IsRead
	}, waitFor, tick)
	assert.Equal(t, []connection.Intent{connection.MarkAsRead(7)}, srv.Intents())
}

func TestClient_ReconnectsAndResyncs(t *testing.T) {
	srv := newServer(t)
	srv.SetNotifications(note(1, false))
	closed := &closures{}
	c := newClient(t, srv, notifyclient.OnTransportError(closed.record))

	require.NoError(t, c.Start(context.Background(), notifyclient.Session{Token: "secret"}))
	waitConnected(t, c, srv, 1)
	st := c.Store()

	// Missed while disconnected; the resync after reconnecting picks it up.
	srv.SetNotifications(note(1, false), note(3, false))
	srv.DropConnections()

	waitConnected(t, c, srv, 2)
	require.Eventually(t, func() bool { return st.Len() == 2 }, waitFor, tick)
	assert.Equal(t, []int{constants.CloseAbnormal}, closed.get())
}

func TestClient_ReconnectsAfterStartContextEnds(t *testing.T) {
	srv := newServer(t)
	srv.SetNotifications(note(1, false))
	c := newClient(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	require.NoError(t, c.Start(ctx, notifyclient.Session{Token: "secret"}))
	waitConnected(t, c, srv, 1)
	cancel()

	srv.DropConnections()
	waitConnected(t, c, srv, 2)

	// Once more after a Resume whose context has ended too.
	srv.SetToken("rotated")
	srv.DropConnections()
	require.Eventually(t, func() bool { return c.State() == rews.StateExhausted }, waitFor, tick)
	srv.SetToken("secret")

	resumeCtx, resumeCancel := context.WithTimeout(context.Background(), waitFor)
	require.NoError(t, c.Resume(resumeCtx))
	resumeCancel()
	require.Eventually(t, func() bool {
		return c.State() == rews.StateConnected && srv.Connections() == 1
	}, waitFor, tick)
	dials := srv.Dials()

	srv.DropConnections()
	waitConnected(t, c, srv, dials+1)
}

func TestClient_ExhaustedThenResume(t *testing.T) {
	srv := newServer(t)
	var states []rews.State
	var mu sync.Mutex
	c := newClient(t, srv,
		notifyclient.WithRetryer(rews.NewFixedDelayRetryer(10*time.Millisecond, 2)),
		notifyclient.WithStateListener(func(s rews.State) {
			mu.Lock()
			defer mu.Unlock()
			states = append(states, s)
		}),
	)

	require.NoError(t, c.Start(context.Background(), notifyclient.Session{Token: "secret"}))
	waitConnected(t, c, srv, 1)

	// The server rotates the token; our stale one is refused.
	srv.SetToken("rotated")
	srv.DropConnections()

	require.Eventually(t, func() bool { return c.State() == rews.StateExhausted }, waitFor, tick)
	assert.Equal(t, 2, srv.Rejected())
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(states) > 0 && states[len(states)-1] == rews.StateExhausted
	}, waitFor, tick)

	c.SetToken("rotated")
	require.NoError(t, c.Resume(context.Background()))
	waitConnected(t, c, srv, 2)
}

func TestClient_NoToken(t *testing.T) {
	srv := newServer(t)
	c := newClient(t, srv)

	err := c.Start(context.Background(), notifyclient.Session{})
	require.ErrorIs(t, err, constants.ErrNoToken)
	assert.Nil(t, c.Store())
	assert.Equal(t, rews.StateStopped, c.State())
	assert.Zero(t, srv.Dials())
	assert.Zero(t, srv.Snapshots())
}

func TestClient_FallbackTokenSource(t *testing.T) {
	srv := newServer(t)
	srv.SetNotifications(note(1, false))
	c := newClient(t, srv, notifyclient.WithTokenSource(auth.NewMemory("secret")))

	require.NoError(t, c.Start(context.Background(), notifyclient.Session{}))
	waitConnected(t, c, srv, 1)
	assert.Equal(t, 1, c.Store().Len())
}

func TestClient_StopIsPlanned(t *testing.T) {
	srv := newServer(t)
	srv.SetNotifications(note(1, false))
	closed := &closures{}
	c := newClient(t, srv, notifyclient.OnTransportError(closed.record))

	require.NoError(t, c.Start(context.Background(), notifyclient.Session{Token: "secret"}))
	require.ErrorIs(t, c.Start(context.Background(), notifyclient.Session{Token: "secret"}), constants.ErrAlreadyStarted)
	waitConnected(t, c, srv, 1)
	st := c.Store()

	require.NoError(t, c.Stop(context.Background()))
	require.NoError(t, c.Stop(context.Background()))
	assert.Equal(t, rews.StateStopped, c.State())
	assert.Nil(t, c.Store())
	assert.ErrorIs(t, st.MarkRead(1), constants.ErrStopped)
	assert.ErrorIs(t, c.Resume(context.Background()), constants.ErrStopped)

	require.Eventually(t, func() bool { return srv.Connections() == 0 }, waitFor, tick)
	assert.Empty(t, closed.get())
	assert.Equal(t, 1, srv.Dials())

	// A new session starts from scratch.
	require.NoError(t, c.Start(context.Background(), notifyclient.Session{Token: "secret"}))
	waitConnected(t, c, srv, 2)
}

func TestClient_RequestAction(t *testing.T) {
	srv := newServer(t)
	srv.SetNotifications(models.Notification{ID: 4, Title: "Invitation", Actions: []models.Action{{
		Text:    "Accept",
		Kind:    models.ActionRequest,
		Payload: models.ActionPayload{URL: srv.ActionURL("accept"), Method: http.MethodPost},
	}}})
	c := newClient(t, srv)
	require.NoError(t, c.Start(context.Background(), notifyclient.Session{Token: "secret"}))
	before := srv.Snapshots()

	require.NoError(t, c.Store().TriggerActionAt(context.Background(), 4, 0))
	assert.Equal(t, []fakeserver.Request{{Method: http.MethodPost, Path: fakeserver.ActionsPath + "accept/"}}, srv.Requests())
	assert.Greater(t, srv.Snapshots(), before)
}

func TestClient_StaleSnapshotOnStart(t *testing.T) {
	srv := newServer(t)
	srv.FailSnapshots(http.StatusServiceUnavailable)
	c := newClient(t, srv)

	require.NoError(t, c.Start(context.Background(), notifyclient.Session{Token: "secret"}))
	var apiErr *httpclient.APIError
	require.ErrorAs(t, c.Store().Err(), &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
	waitConnected(t, c, srv, 1)

	srv.FailSnapshots(0)
	srv.SetNotifications(note(1, false))
	require.NoError(t, c.Resume(context.Background()))
	assert.NoError(t, c.Store().Err())
	assert.Equal(t, 1, c.Store().Len())
}

func TestNew_RejectsBadConfig(t *testing.T) {
	_, err := notifyclient.New(notifyclient.Config{})
	require.Error(t, err)

	_, err = notifyclient.New(notifyclient.Config{NotificationsURL: "http://x/", WSURL: "http://x/ws/"})
	require.Error(t, err)
}
