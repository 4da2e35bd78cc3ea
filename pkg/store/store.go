// Package store keeps the client-side view of the user's notifications.
//
// It reconciles two inputs: REST snapshots, which replace the whole
// collection, and push events, which touch one entry at a time. Both are
// last writer wins; there is no version comparison between them.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/collabhub/notifyclient/pkg/connection"
	"github.com/collabhub/notifyclient/pkg/constants"
	"github.com/collabhub/notifyclient/pkg/dispatch"
	"github.com/collabhub/notifyclient/pkg/logger"
	"github.com/collabhub/notifyclient/pkg/models"
)

// IntentSender delivers intent frames. It must not block on the network
// acknowledgement; none exists.
type IntentSender interface {
	Send(v any) error
}

// Fetcher is the REST side of the store.
type Fetcher interface {
	ListNotifications(ctx context.Context) ([]models.Notification, error)
	GetNotification(ctx context.Context, id int64) (models.Notification, error)
	Do(ctx context.Context, method, url string) error
}

// Navigator leaves the current page for url.
type Navigator interface {
	Navigate(url string) error
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(url string) error

func (f NavigatorFunc) Navigate(url string) error {
	return f(url)
}

// ServerError is recorded when the server reports an error over the channel.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return "server error: " + e.Message
}

// View is a copy of the store handed to listeners.
type View struct {
	Notifications []models.Notification
	Unread        int
	Err           error
	// Seq grows with every change. Listeners receive views in Seq order.
	Seq uint64
}

type Option func(s *Store)

func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		s.logger = logger.OrNop(l)
	}
}

func WithNavigator(n Navigator) Option {
	return func(s *Store) {
		s.navigator = n
	}
}

type Store struct {
	fetcher   Fetcher
	sender    IntentSender
	navigator Navigator
	logger    logger.Logger

	// ctx lives until Stop; REST calls started by the store derive from it.
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	order   []int64 // newest first
	byID    map[int64]models.Notification
	lastErr error
	stopped bool
	seq     uint64

	// pending is the newest view not yet delivered; delivering is set while
	// one goroutine hands views to listeners.
	pending    *View
	delivering bool

	listenersMu  sync.Mutex
	listeners    map[uint64]func(View)
	nextListener uint64
}

var _ dispatch.Handler = (*Store)(nil)

func New(fetcher Fetcher, sender IntentSender, opts ...Option) *Store {
	if fetcher == nil || sender == nil {
		panic("BUG: store.Store requires a fetcher and a sender")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		fetcher:   fetcher,
		sender:    sender,
		logger:    logger.Nop(),
		ctx:       ctx,
		cancel:    cancel,
		byID:      make(map[int64]models.Notification),
		listeners: make(map[uint64]func(View)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stop tears the store down. In-flight REST calls are cancelled, and
// nothing mutates the store afterwards.
func (s *Store) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.cancel()
}

func (s *Store) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// scope returns a context cancelled when either ctx or the store ends.
func (s *Store) scope(ctx context.Context) (context.Context, context.CancelFunc) {
	scoped, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	return scoped, func() {
		stop()
		cancel()
	}
}

// LoadSnapshot replaces the whole collection with the server's list and
// returns the unread count.
//
// On failure the current, possibly stale, collection is kept and the error
// is both recorded and returned. Entries that fail validation are skipped,
// as are repeated ids.
func (s *Store) LoadSnapshot(ctx context.Context) (int, error) {
	if s.Stopped() {
		return 0, constants.ErrStopped
	}

	ctx, cancel := s.scope(ctx)
	defer cancel()

	list, err := s.fetcher.ListNotifications(ctx)

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return 0, constants.ErrStopped
	}
	if err != nil {
		s.lastErr = err
		s.unlockAndNotify()
		s.logger.Error("store.Store failed to load snapshot", "error", err)
		return 0, err
	}

	order := make([]int64, 0, len(list))
	byID := make(map[int64]models.Notification, len(list))
	for i := range list {
		n := list[i]
		if err := models.Validate(&n); err != nil {
			s.logger.Warn("store.Store skipped snapshot entry", "reason", err.Error())
			continue
		}
		if _, dup := byID[n.ID]; dup {
			s.logger.Warn("store.Store skipped duplicate snapshot entry", "id", n.ID)
			continue
		}
		order = append(order, n.ID)
		byID[n.ID] = n
	}
	s.order, s.byID = order, byID
	s.lastErr = nil
	unread := s.unreadLocked()
	s.unlockAndNotify()

	s.logger.Debug("store.Store loaded snapshot", "count", len(order), "unread", unread)
	return unread, nil
}

// Refresh fetches one notification and inserts or replaces it.
func (s *Store) Refresh(ctx context.Context, id int64) (models.Notification, error) {
	if s.Stopped() {
		return models.Notification{}, constants.ErrStopped
	}

	ctx, cancel := s.scope(ctx)
	defer cancel()

	n, err := s.fetcher.GetNotification(ctx, id)
	if err == nil {
		err = models.Validate(&n)
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return models.Notification{}, constants.ErrStopped
	}
	if err != nil {
		s.lastErr = err
		s.unlockAndNotify()
		s.logger.Error("store.Store failed to refresh notification", "id", id, "error", err)
		return models.Notification{}, err
	}
	s.upsertLocked(n)
	s.unlockAndNotify()
	return n.Clone(), nil
}

// ApplyNew inserts n at the top, or replaces the entry with the same id in
// place. It reports whether a new entry was added.
func (s *Store) ApplyNew(n models.Notification) bool {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return false
	}
	inserted := s.upsertLocked(n)
	s.unlockAndNotify()
	return inserted
}

// ApplyUpdate replaces the entry with n's id. Unknown ids are ignored.
func (s *Store) ApplyUpdate(n models.Notification) bool {
	s.mu.Lock()
	if _, ok := s.byID[n.ID]; !ok || s.stopped {
		s.mu.Unlock()
		return false
	}
	s.byID[n.ID] = n
	s.unlockAndNotify()
	return true
}

// ApplyDelete removes the entry with id. Unknown ids are ignored.
func (s *Store) ApplyDelete(id int64) bool {
	s.mu.Lock()
	if _, ok := s.byID[id]; !ok || s.stopped {
		s.mu.Unlock()
		return false
	}
	s.removeLocked(id)
	s.unlockAndNotify()
	return true
}

// MarkRead marks id read locally, then asks the server to do the same.
// A later update from the server overrides the local value.
func (s *Store) MarkRead(id int64) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return constants.ErrStopped
	}
	if n, ok := s.byID[id]; ok && !n.IsRead {
		n.IsRead = true
		s.byID[id] = n
	}
	s.unlockAndNotify()

	return s.send(connection.MarkAsRead(id))
}

func (s *Store) MarkAllRead() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return constants.ErrStopped
	}
	for id, n := range s.byID {
		if !n.IsRead {
			n.IsRead = true
			s.byID[id] = n
		}
	}
	s.unlockAndNotify()

	return s.send(connection.MarkAllRead())
}

// Hide removes id locally, then asks the server to hide it. The removal is
// not rolled back; the entry only comes back through a later push.
func (s *Store) Hide(id int64) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return constants.ErrStopped
	}
	s.removeLocked(id)
	s.unlockAndNotify()

	return s.send(connection.MarkAsHidden(id))
}

func (s *Store) HideAll() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return constants.ErrStopped
	}
	s.order = nil
	s.byID = make(map[int64]models.Notification)
	s.unlockAndNotify()

	return s.send(connection.MarkAllHidden())
}

func (s *Store) send(intent connection.Intent) error {
	if err := s.sender.Send(intent); err != nil {
		s.logger.Warn("store.Store could not deliver intent", "type", intent.Type, "error", err)
		return fmt.Errorf("store.Store failed to send %s: %w", intent.Type, err)
	}
	return nil
}

// TriggerAction carries out action.
//
// A request action calls the API and reloads the snapshot on success, since
// the call may change other notifications too. A navigate action discards
// the in-memory collection and hands the URL to the Navigator.
func (s *Store) TriggerAction(ctx context.Context, action models.Action) error {
	if err := models.ValidateAction(&action); err != nil {
		return err
	}
	if s.Stopped() {
		return constants.ErrStopped
	}

	switch action.Kind {
	case models.ActionRequest:
		scoped, cancel := s.scope(ctx)
		err := s.fetcher.Do(scoped, action.HTTPMethod(), action.Payload.URL)
		cancel()
		if err != nil {
			s.mu.Lock()
			if s.stopped {
				s.mu.Unlock()
				return constants.ErrStopped
			}
			s.lastErr = err
			s.unlockAndNotify()
			s.logger.Error("store.Store action failed", "action", action.Text, "error", err)
			return err
		}
		_, err = s.LoadSnapshot(ctx)
		return err

	case models.ActionNavigate:
		if s.navigator == nil {
			return fmt.Errorf("%w: no navigator for %s", constants.ErrUnsupportedAction, action.Kind)
		}
		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return constants.ErrStopped
		}
		s.order = nil
		s.byID = make(map[int64]models.Notification)
		s.unlockAndNotify()
		return s.navigator.Navigate(action.Payload.URL)

	default:
		return fmt.Errorf("%w: %s", constants.ErrUnsupportedAction, action.Kind)
	}
}

// TriggerActionAt runs the action at index of notification id.
func (s *Store) TriggerActionAt(ctx context.Context, id int64, index int) error {
	n, ok := s.Get(id)
	if !ok {
		return fmt.Errorf("%w: %d", constants.ErrNotificationAbsent, id)
	}
	if index < 0 || index >= len(n.Actions) {
		return fmt.Errorf("%w: notification %d has no action %d", constants.ErrUnsupportedAction, id, index)
	}
	return s.TriggerAction(ctx, n.Actions[index])
}

func (s *Store) OnInserted(n models.Notification) {
	s.ApplyNew(n)
}

func (s *Store) OnUpdated(n models.Notification) {
	s.ApplyUpdate(n)
}

func (s *Store) OnDeleted(id int64) {
	s.ApplyDelete(id)
}

func (s *Store) OnError(message string) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.lastErr = &ServerError{Message: message}
	s.unlockAndNotify()
}

// List returns a copy of the collection, newest first.
func (s *Store) List() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked()
}

func (s *Store) Get(id int64) (models.Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.byID[id]
	if !ok {
		return models.Notification{}, false
	}
	return n.Clone(), true
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

func (s *Store) Unread() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unreadLocked()
}

// Err returns the last REST or server error, nil after a successful
// snapshot.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Store) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Subscribe calls fn with a fresh View after changes. fn runs outside the
// store's lock, one call at a time. When changes race, intermediate views
// may be skipped but the newest one is always delivered.
func (s *Store) Subscribe(fn func(View)) (unsubscribe func()) {
	s.listenersMu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenersMu.Lock()
			delete(s.listeners, id)
			s.listenersMu.Unlock()
		})
	}
}

func (s *Store) upsertLocked(n models.Notification) bool {
	_, exists := s.byID[n.ID]
	s.byID[n.ID] = n
	if exists {
		return false
	}
	s.order = append([]int64{n.ID}, s.order...)
	return true
}

func (s *Store) removeLocked(id int64) {
	if _, ok := s.byID[id]; !ok {
		return
	}
	delete(s.byID, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *Store) unreadLocked() int {
	unread := 0
	for _, n := range s.byID {
		if !n.IsRead {
			unread++
		}
	}
	return unread
}

func (s *Store) listLocked() []models.Notification {
	out := make([]models.Notification, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id].Clone())
	}
	return out
}

func (s *Store) viewLocked() View {
	return View{
		Notifications: s.listLocked(),
		Unread:        s.unreadLocked(),
		Err:           s.lastErr,
		Seq:           s.seq,
	}
}

// unlockAndNotify records a change and releases mu.
//
// Only one goroutine delivers at a time. Others leave their view pending
// and return; the deliverer picks up the newest one, so listeners never see
// an older view after a newer one. A listener that mutates the store does
// not deadlock: its change is delivered after it returns.
func (s *Store) unlockAndNotify() {
	s.seq++
	if !s.hasListeners() {
		s.mu.Unlock()
		return
	}
	view := s.viewLocked()
	s.pending = &view
	if s.delivering {
		s.mu.Unlock()
		return
	}
	s.delivering = true
	s.mu.Unlock()

	for {
		s.mu.Lock()
		v := s.pending
		s.pending = nil
		if v == nil {
			s.delivering = false
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		for _, fn := range s.listenerFuncs() {
			fn(*v)
		}
	}
}

func (s *Store) hasListeners() bool {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	return len(s.listeners) > 0
}

func (s *Store) listenerFuncs() []func(View) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	fns := make([]func(View), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	return fns
}
