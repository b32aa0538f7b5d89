package entities

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionState represents the lifecycle state of a transcription session
type SessionState string

const (
	SessionStateAccepting  SessionState = "accepting"
	SessionStateConfigured SessionState = "configured"
	SessionStateRelaying   SessionState = "relaying"
	SessionStateClosing    SessionState = "closing"
	SessionStateClosed     SessionState = "closed"
	SessionStateFailed     SessionState = "failed"
)

// sessionTransitions lists the allowed forward transitions. Failed is handled separately
// because it is reachable from every state except Closed.
var sessionTransitions = map[SessionState][]SessionState{
	SessionStateAccepting:  {SessionStateConfigured},
	SessionStateConfigured: {SessionStateRelaying, SessionStateClosing},
	SessionStateRelaying:   {SessionStateClosing},
	SessionStateClosing:    {SessionStateClosed},
	SessionStateFailed:     {SessionStateClosed},
}

// TranscriptionSession represents one client's use of the transcription relay,
// from accept to close
type TranscriptionSession struct {
	ID         string
	RemoteAddr string
	StartedAt  time.Time

	mu      sync.Mutex
	state   SessionState
	history []SessionState
}

// NewTranscriptionSession creates a new session in the accepting state
func NewTranscriptionSession(remoteAddr string) *TranscriptionSession {
	return &TranscriptionSession{
		ID:         uuid.NewString(),
		RemoteAddr: remoteAddr,
		StartedAt:  time.Now(),
		state:      SessionStateAccepting,
		history:    []SessionState{SessionStateAccepting},
	}
}

// State returns the current state
func (s *TranscriptionSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// History returns every state the session has been in, in order
func (s *TranscriptionSession) History() []SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SessionState, len(s.history))
	copy(out, s.history)
	return out
}

// Transition moves the session to the given state if the move is allowed
func (s *TranscriptionSession) Transition(to SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !canTransition(s.state, to) {
		return fmt.Errorf("invalid session transition %s -> %s", s.state, to)
	}
	s.state = to
	s.history = append(s.history, to)
	return nil
}

// IsTerminal reports whether the session reached the closed state
func (s *TranscriptionSession) IsTerminal() bool {
	return s.State() == SessionStateClosed
}

func canTransition(from, to SessionState) bool {
	if to == SessionStateFailed {
		return from != SessionStateClosed && from != SessionStateFailed
	}
	for _, next := range sessionTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
