package websocket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/satriahrh/voxrelay/domain"
	"github.com/satriahrh/voxrelay/domain/entities"
	"github.com/satriahrh/voxrelay/domain/repositories"
	"github.com/satriahrh/voxrelay/internal/relay"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio chunks
)

// NewUpgrader returns an upgrader accepting browser origins from the allow-list.
// Requests without an Origin header come from non-browser clients and are accepted.
func NewUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin:     originChecker(allowedOrigins),
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
}

func originChecker(allowedOrigins []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, allowed := range allowedOrigins {
			if allowed == "*" || strings.EqualFold(allowed, origin) {
				return true
			}
		}
		return false
	}
}

// Hub keeps track of the live transcription sessions
type Hub struct {
	// Live sessions by ID.
	sessions map[string]*Session

	// Register requests from sessions.
	register chan *Session

	// Unregister requests from sessions.
	unregister chan *Session

	// Closed once Run has returned.
	done chan struct{}

	// Mutex for thread-safe access to sessions map
	mu sync.RWMutex

	// Tracks sessions still tearing down
	wg sync.WaitGroup

	transcriber repositories.StreamingTranscriber
	upgrader    websocket.Upgrader
	logger      *zap.Logger
}

// NewHub creates a new transcription hub
func NewHub(transcriber repositories.StreamingTranscriber, allowedOrigins []string, logger *zap.Logger) *Hub {
	return &Hub{
		sessions:    make(map[string]*Session),
		register:    make(chan *Session),
		unregister:  make(chan *Session),
		done:        make(chan struct{}),
		transcriber: transcriber,
		upgrader:    NewUpgrader(allowedOrigins),
		logger:      logger,
	}
}

// Run starts the hub's main loop. When ctx is cancelled every live session is
// cancelled and no new session is accepted.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case session := <-h.register:
			h.mu.Lock()
			h.sessions[session.ID] = session
			h.mu.Unlock()
			h.logger.Info("Session registered", zap.String("sessionID", session.ID))

		case session := <-h.unregister:
			h.mu.Lock()
			delete(h.sessions, session.ID)
			h.mu.Unlock()
			h.logger.Info("Session unregistered", zap.String("sessionID", session.ID))

		case <-ctx.Done():
			h.mu.Lock()
			for _, session := range h.sessions {
				session.cancel()
			}
			h.mu.Unlock()
			close(h.done)
			h.logger.Info("Hub stopped, live sessions cancelled")
			return
		}
	}
}

// Drain waits for every session to finish its teardown or for ctx to expire
func (h *Hub) Drain(ctx context.Context) error {
	finished := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("sessions still closing: %w", ctx.Err())
	}
}

// ActiveSessions returns the number of registered sessions
func (h *Hub) ActiveSessions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *Hub) add(s *Session) bool {
	select {
	case h.register <- s:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) remove(s *Session) {
	select {
	case h.unregister <- s:
	case <-h.done:
	}
}

// HandleTranscribe upgrades the request and serves one transcription session
func (h *Hub) HandleTranscribe(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader already replied with an HTTP error
		h.logger.Warn("WebSocket upgrade failed",
			zap.String("remoteAddr", c.RealIP()),
			zap.Error(err))
		return nil
	}

	h.Serve(c.Request().Context(), conn, c.RealIP())
	return nil
}

// Serve supervises one session over an accepted client connection. It returns after
// both connections are closed.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn, remoteAddr string) {
	h.wg.Add(1)
	defer h.wg.Done()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := newSession(conn, remoteAddr, cancel, h.logger)
	defer s.teardown()

	if !h.add(s) {
		s.fail(errors.New("hub stopped"), errMsgServerShuttingDown)
		return
	}
	defer h.remove(s)
	defer s.recoverPanic()

	s.logger.Info("Transcription session accepted")
	conn.SetReadLimit(maxMessageSize)

	if err := h.transcriber.Ready(); err != nil {
		s.fail(err, errMsgNotConfigured)
		return
	}
	s.transition(entities.SessionStateConfigured)

	upstream, err := h.transcriber.Connect(ctx)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrConfigurationMissing):
			s.fail(err, errMsgNotConfigured)
		case ctx.Err() != nil:
			s.fail(err, errMsgServerShuttingDown)
		default:
			s.fail(err, errMsgUpstreamConnect)
		}
		return
	}
	s.upstream = upstream
	s.transition(entities.SessionStateRelaying)

	inspector := NewEventInspector(s.logger)
	result := relay.New(conn, upstream, s.logger,
		relay.WithWriteWait(writeWait),
		relay.WithUpstreamObserver(inspector.Observe),
	).Run(ctx)

	s.finish(result, inspector)
}

// Session is one supervised transcription session. It exclusively owns the client
// connection and the upstream stream.
type Session struct {
	*entities.TranscriptionSession

	conn     *websocket.Conn
	upstream repositories.TranscriptionStream
	cancel   context.CancelFunc
	logger   *zap.Logger
}

func newSession(conn *websocket.Conn, remoteAddr string, cancel context.CancelFunc, logger *zap.Logger) *Session {
	ts := entities.NewTranscriptionSession(remoteAddr)
	return &Session{
		TranscriptionSession: ts,
		conn:                 conn,
		cancel:               cancel,
		logger: logger.With(
			zap.String("sessionID", ts.ID),
			zap.String("remoteAddr", remoteAddr)),
	}
}

func (s *Session) transition(to entities.SessionState) {
	if err := s.Transition(to); err != nil {
		s.logger.Warn("Ignoring session transition", zap.Error(err))
	}
}

// fail reports err to the client as a structured error frame and marks the session failed
func (s *Session) fail(err error, clientMessage string) {
	s.logger.Error("Transcription session failed",
		zap.String("state", string(s.State())),
		zap.Error(err))

	s.sendError(clientMessage)
	s.transition(entities.SessionStateFailed)
}

// sendError writes one error frame, best effort
func (s *Session) sendError(message string) {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, CreateErrorMessage(message)); err != nil {
		s.logger.Debug("Failed to send error frame", zap.Error(err))
	}
}

// finish decides how the session ends based on the relay outcome
func (s *Session) finish(result relay.Result, inspector *EventInspector) {
	audio := result.Outcome(relay.ClientToUpstream)
	transcripts := result.Outcome(relay.UpstreamToClient)

	s.logger.Info("Relay finished",
		zap.String("firstDirection", string(result.First.Direction)),
		zap.Int("audioFrames", audio.Frames),
		zap.Int("transcriptFrames", transcripts.Frames),
		zap.NamedError("audioErr", audio.Err),
		zap.NamedError("transcriptErr", transcripts.Err),
		zap.Any("upstreamEvents", inspector.Counts()))

	first := result.First
	switch {
	case result.Cancelled != nil:
		s.sendError(errMsgServerShuttingDown)
		s.transition(entities.SessionStateClosing)

	case errors.Is(first.Err, relay.ErrPumpPanic):
		s.fail(first.Err, errMsgInternal)

	case first.Err != nil:
		// A dropped peer is not reported to the other one beyond closing it
		s.logger.Warn("Relay peer connection lost",
			zap.String("leg", string(first.FailedLeg)),
			zap.Error(first.Err))
		s.transition(entities.SessionStateClosing)

	case first.Direction == relay.ClientToUpstream:
		// Client hung up cleanly; tell the provider no more audio is coming
		if err := s.upstream.Finish(); err != nil {
			s.logger.Debug("Failed to finish upstream stream", zap.Error(err))
		}
		s.transition(entities.SessionStateClosing)

	default:
		s.transition(entities.SessionStateClosing)
	}
}

// recoverPanic captures a panic in the supervisor so teardown still runs and other
// sessions are unaffected
func (s *Session) recoverPanic() {
	if r := recover(); r != nil {
		s.logger.Error("Transcription session panicked",
			zap.Any("panic", r),
			zap.Stack("stack"))
		s.sendError(errMsgInternal)
		s.transition(entities.SessionStateFailed)
	}
}

// teardown releases the upstream stream first, then the client connection.
// A failed release is logged and does not prevent the next one.
func (s *Session) teardown() {
	state := s.State()
	if state != entities.SessionStateFailed && state != entities.SessionStateClosing {
		s.transition(entities.SessionStateClosing)
	}

	var errs error
	if s.upstream != nil {
		if err := s.upstream.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close upstream: %w", err))
		}
	}

	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	if err := s.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		// The client may already be gone
		errs = multierr.Append(errs, fmt.Errorf("close client: %w", err))
	}

	if errs != nil {
		s.logger.Warn("Session teardown reported errors", zap.Error(errs))
	}

	s.transition(entities.SessionStateClosed)
	s.logger.Info("Transcription session closed",
		zap.Duration("duration", time.Since(s.StartedAt)),
		zap.Any("states", s.History()))
}
