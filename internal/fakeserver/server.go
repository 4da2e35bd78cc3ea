// Package fakeserver provides a fake notification backend for tests.
//
// It serves the REST snapshot and detail endpoints, accepts action calls,
// and speaks the push protocol over WebSocket. Tests push frames to every
// live connection, read back the intent frames clients sent, and drop
// connections to exercise reconnection.
//
// REST routing uses gorilla/mux; the WebSocket side is implemented with the
// `gws` library.
package fakeserver

import (
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/mux"
	"github.com/lxzan/gws"

	"github.com/collabhub/notifyclient/internal/codec"
	"github.com/collabhub/notifyclient/pkg/connection"
	"github.com/collabhub/notifyclient/pkg/constants"
	"github.com/collabhub/notifyclient/pkg/models"
)

const (
	NotificationsPath = "/api/v1/notifications/"
	ActionsPath       = "/api/v1/actions/"
	WSPath            = "/ws/notifications/"
)

// Request is an action call the server received.
type Request struct {
	Method string
	Path   string
}

// Server is a fake notification backend.
type Server struct {
	httpServer *httptest.Server
	upgrader   *gws.Upgrader
	marshaler  codec.Marshaler
	unmarshal  codec.Unmarshaler

	mu            sync.Mutex
	token         string
	notifications []models.Notification
	snapshotFail  int
	snapshots     int
	requests      []Request
	intents       []connection.Intent
	connections   map[*gws.Conn]struct{}
	dials         int
	rejected      int
}

// Handler implements the gws.Event interface for WebSocket connections
type Handler struct {
	server *Server
}

// New starts a server that accepts token on both REST and WebSocket.
func New(token string) *Server {
	s := &Server{
		token:       token,
		marshaler:   codec.JSON{},
		unmarshal:   codec.JSON{},
		connections: make(map[*gws.Conn]struct{}),
	}
	s.upgrader = gws.NewUpgrader(&Handler{server: s}, &gws.ServerOption{})

	r := mux.NewRouter()
	r.HandleFunc(NotificationsPath, s.authorized(s.handleList)).Methods(http.MethodGet)
	r.HandleFunc(NotificationsPath+"{id:[0-9]+}/", s.authorized(s.handleGet)).Methods(http.MethodGet)
	r.PathPrefix(ActionsPath).HandlerFunc(s.authorized(s.handleAction))
	r.HandleFunc(WSPath, s.handleUpgrade)

	s.httpServer = httptest.NewServer(r)
	return s
}

// Close drops every connection and shuts the server down.
func (s *Server) Close() {
	s.DropConnections()
	s.httpServer.Close()
}

// URL is the http root, e.g. http://127.0.0.1:4321.
func (s *Server) URL() string {
	return s.httpServer.URL
}

func (s *Server) NotificationsURL() string {
	return s.httpServer.URL + NotificationsPath
}

func (s *Server) ActionURL(name string) string {
	return s.httpServer.URL + ActionsPath + name + "/"
}

func (s *Server) WSURL() string {
	return "ws" + strings.TrimPrefix(s.httpServer.URL, "http") + WSPath
}

// SetToken changes the accepted token. Live connections are kept.
func (s *Server) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// SetNotifications replaces what the snapshot endpoint returns.
func (s *Server) SetNotifications(list ...models.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append([]models.Notification(nil), list...)
}

// FailSnapshots makes the snapshot endpoint answer with status until it is
// called again with 0.
func (s *Server) FailSnapshots(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshotFail = status
}

// Snapshots returns how many snapshot requests were served.
func (s *Server) Snapshots() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshots
}

func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Intents returns the intent frames received so far, in order.
func (s *Server) Intents() []connection.Intent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]connection.Intent(nil), s.intents...)
}

// Connections returns the number of live WebSocket connections.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.connections)
}

// Dials returns the number of accepted WebSocket handshakes.
func (s *Server) Dials() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dials
}

// Rejected returns the number of handshakes refused for a bad token.
func (s *Server) Rejected() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rejected
}

// Push writes frame to every live connection.
func (s *Server) Push(frame []byte) error {
	var errs []error
	for _, socket := range s.sockets() {
		if err := socket.WriteMessage(gws.OpcodeText, frame); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DropConnections closes the underlying network connections without a
// close handshake, like a server crash or a network partition would.
func (s *Server) DropConnections() {
	for _, socket := range s.sockets() {
		_ = socket.NetConn().Close()
	}
}

// CloseConnections sends a close frame with code and reason to every
// live connection.
func (s *Server) CloseConnections(code uint16, reason string) {
	for _, socket := range s.sockets() {
		socket.WriteClose(code, []byte(reason))
	}
}

func (s *Server) sockets() []*gws.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*gws.Conn, 0, len(s.connections))
	for socket := range s.connections {
		out = append(out, socket)
	}
	return out
}

func (s *Server) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		want := "Token " + s.token
		s.mu.Unlock()

		if r.Header.Get("Authorization") != want {
			s.writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid token."})
			return
		}
		next(w, r)
	}
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	s.snapshots++
	fail := s.snapshotFail
	snapshot := models.Snapshot{Notifications: append([]models.Notification{}, s.notifications...)}
	s.mu.Unlock()

	if fail != 0 {
		s.writeJSON(w, fail, map[string]string{"detail": http.StatusText(fail)})
		return
	}
	s.writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Invalid id."})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications {
		if n.ID == id {
			s.writeJSON(w, http.StatusOK, n)
			return
		}
	}
	s.writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, Request{Method: r.Method, Path: r.URL.Path})
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	ok := s.token != "" && r.URL.Query().Get(constants.TokenQueryParam) == s.token
	if !ok {
		s.rejected++
	}
	s.mu.Unlock()

	if !ok {
		http.Error(w, "invalid token", http.StatusForbidden)
		return
	}

	socket, err := s.upgrader.Upgrade(w, r)
	if err != nil {
		log.Printf("fakeserver: upgrade failed: %v", err)
		return
	}
	go socket.ReadLoop()
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := s.marshaler.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func (h *Handler) OnOpen(socket *gws.Conn) {
	h.server.mu.Lock()
	h.server.connections[socket] = struct{}{}
	h.server.dials++
	h.server.mu.Unlock()
}

func (h *Handler) OnClose(socket *gws.Conn, err error) {
	h.server.mu.Lock()
	delete(h.server.connections, socket)
	h.server.mu.Unlock()
}

func (h *Handler) OnPing(socket *gws.Conn, payload []byte) {
	if err := socket.WritePong(payload); err != nil {
		log.Printf("fakeserver: error writing pong: %v", err)
	}
}

func (h *Handler) OnPong(socket *gws.Conn, payload []byte) {
}

func (h *Handler) OnMessage(socket *gws.Conn, message *gws.Message) {
	defer message.Close()

	var intent connection.Intent
	if err := h.server.unmarshal.Unmarshal(message.Bytes(), &intent); err != nil || intent.Type == "" {
		h.server.writeError(socket, fmt.Sprintf("unparsable frame: %q", message.Bytes()))
		return
	}

	switch intent.Type {
	case connection.IntentMarkAsRead, connection.IntentMarkAsHidden:
		if intent.NotificationID == nil {
			h.server.writeError(socket, intent.Type+" requires notification_id")
			return
		}
	case connection.IntentMarkAllRead, connection.IntentMarkAllHidden:
	default:
		h.server.writeError(socket, "unknown intent "+intent.Type)
		return
	}

	h.server.mu.Lock()
	h.server.intents = append(h.server.intents, intent)
	h.server.mu.Unlock()
}

func (s *Server) writeError(socket *gws.Conn, message string) {
	if err := socket.WriteMessage(gws.OpcodeText, ErrorFrame(message)); err != nil && !errors.Is(err, net.ErrClosed) {
		log.Printf("fakeserver: error writing error frame: %v", err)
	}
}
