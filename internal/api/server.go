// Package api serves the local collaborator API: session status, mid-session
// control and a websocket stream of session events.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/Lattixe/MonkMode-windows/internal/enumerator"
	"github.com/Lattixe/MonkMode-windows/internal/events"
	"github.com/Lattixe/MonkMode-windows/internal/focus"
	"github.com/Lattixe/MonkMode-windows/internal/logger"
	"github.com/Lattixe/MonkMode-windows/internal/session"
	"github.com/Lattixe/MonkMode-windows/internal/timeouts"
	"github.com/Lattixe/MonkMode-windows/internal/version"
)

// eventBuffer is the per-client event queue; geometry events are dropped when it fills.
const eventBuffer = 64

// Controller is the running session as seen by the API; *focus.Runner implements it.
type Controller interface {
	Status(ctx context.Context) (focus.Status, error)
	Windows() []enumerator.Descriptor
	Extend(ctx context.Context) (session.Timer, error)
	Allow(ctx context.Context, hwnd uintptr) (enumerator.Descriptor, error)
	RequestEnd(ctx context.Context, phrase string) (session.Result, error)
	RestoreAllowed(ctx context.Context) error
}

// Subscriber hands out event streams; *events.Bus implements it.
type Subscriber interface {
	Subscribe(buffer int) (<-chan events.Event, func())
}

// Server represents the HTTP API server
type Server struct {
	log      logger.LoggerInterface
	router   *mux.Router
	ctrl     Controller
	events   Subscriber
	upgrader websocket.Upgrader
}

// NewServer creates a new API server
func NewServer(log logger.LoggerInterface, ctrl Controller, evs Subscriber) *Server {
	s := &Server{
		log:    log,
		router: mux.NewRouter(),
		ctrl:   ctrl,
		events: evs,
		upgrader: websocket.Upgrader{
			CheckOrigin: sameMachineOrigin,
		},
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.recoverPanics)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	api := s.router.PathPrefix("/api").Subrouter()
	api.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/windows", s.handleWindows).Methods(http.MethodGet)

	api.HandleFunc("/session", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/session/extend", s.handleExtend).Methods(http.MethodPost)
	api.HandleFunc("/session/allow", s.handleAllow).Methods(http.MethodPost)
	api.HandleFunc("/session/end", s.handleEnd).Methods(http.MethodPost)
	api.HandleFunc("/session/restore", s.handleRestore).Methods(http.MethodPost)

	api.HandleFunc("/events", s.handleEvents)
}

// Handler returns the root handler, for tests and custom listeners.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve runs the server on addr until ctx is canceled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: timeouts.APIShutdownTimeout,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.APIShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Debug("API shutdown incomplete", slog.Any("error", err))
		}
	}()

	s.log.Info("Local API listening", slog.String("addr", ln.Addr().String()))

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// sameMachineOrigin accepts clients without an Origin header (native tools)
// and pages served from localhost.
func sameMachineOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil {
		return false
	}

	switch strings.ToLower(u.Hostname()) {
	case "localhost", "127.0.0.1", "::1":
		return true
	default:
		return false
	}
}

// recoverPanics answers 500 when a handler panics.
func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler {
					panic(p)
				}

				s.log.Error("PANIC RECOVERED in API handler",
					slog.String("path", r.URL.Path),
					slog.Any("panic", p),
					slog.String("stack", string(debug.Stack())),
				)
				writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: r.Method + " not allowed on " + r.URL.Path})
}

// HTTP Handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	running := true
	if _, err := s.ctrl.Status(r.Context()); err != nil {
		running = false
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"version": version.Get(),
		"session": running,
	})
}

func (s *Server) handleWindows(w http.ResponseWriter, _ *http.Request) {
	windows := s.ctrl.Windows()
	if windows == nil {
		windows = []enumerator.Descriptor{}
	}

	writeJSON(w, http.StatusOK, windows)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.ctrl.Status(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleExtend(w http.ResponseWriter, r *http.Request) {
	timer, err := s.ctrl.Extend(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, timer)
}

func (s *Server) handleAllow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Hwnd uintptr `json:"hwnd"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	desc, err := s.ctrl.Allow(r.Context(), req.Hwnd)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, desc)
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phrase string `json:"phrase"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	res, err := s.ctrl.RequestEnd(r.Context(), req.Phrase)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.RestoreAllowed(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("WebSocket upgrade failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	updates, cancel := s.events.Subscribe(eventBuffer)
	defer cancel()

	// The read side only detects the client going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		defer func() {
			if p := recover(); p != nil {
				s.log.Error("PANIC RECOVERED in event stream reader",
					slog.Any("panic", p),
					slog.String("stack", string(debug.Stack())),
				)
			}
		}()

		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	if st, err := s.ctrl.Status(r.Context()); err == nil {
		if err := conn.WriteJSON(events.Event{Type: events.Snapshot, At: time.Now(), Payload: st}); err != nil {
			return
		}
	}

	for {
		select {
		case <-gone:
			return
		case e, ok := <-updates:
			if !ok {
				return
			}

			if err := conn.WriteJSON(e); err != nil {
				s.log.Debug("WebSocket write failed", slog.Any("error", err))
				return
			}
		}
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, focus.ErrNoSession), errors.Is(err, session.ErrSessionEnded):
		status = http.StatusConflict
	case errors.Is(err, session.ErrNotConfirmed):
		status = http.StatusForbidden
	case errors.Is(err, focus.ErrWindowNotSelectable):
		status = http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	default:
		s.log.Warn("API request failed", slog.Any("error", err))
	}

	writeJSON(w, status, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
