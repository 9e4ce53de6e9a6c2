package usecases

import (
	"context"
	"sync"
	"time"

	"github.com/0xcro3dile/filechat-go/internal/domain/entities"
	"github.com/0xcro3dile/filechat-go/internal/domain/ports"
)

// SessionState is the lifecycle position of a chat session.
type SessionState string

const (
	StateAwaitingInput SessionState = "awaiting_input"
	StateReady         SessionState = "ready"
	StateClosed        SessionState = "closed"
)

// Session is the explicit context of one chat session.
// Bootstrap builds it, Teardown ends it; the caller owns it in between.
type Session struct {
	ID        string
	Files     []entities.RemoteFile
	Index     entities.VectorIndex
	Assistant entities.Assistant
	CreatedAt time.Time

	provider ports.AssistantProvider

	// turn serializes conversation turns; mu guards the fields below.
	turn     sync.Mutex
	mu       sync.Mutex
	state    SessionState
	threads  []string
	threadID string
	stopTurn context.CancelFunc
}

func newSession(id string, provider ports.AssistantProvider) *Session {
	return &Session{
		ID:        id,
		CreatedAt: time.Now(),
		provider:  provider,
		state:     StateAwaitingInput,
	}
}

// State returns the current lifecycle state. A nil session awaits input.
func (s *Session) State() SessionState {
	if s == nil {
		return StateAwaitingInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Ready reports whether turns may run against the session.
func (s *Session) Ready() bool {
	return s.State() == StateReady
}

// Threads returns the ids of every thread opened in this session, oldest first.
func (s *Session) Threads() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.threads))
	copy(out, s.threads)
	return out
}

// FileIDs returns the remote ids of the uploaded documents in upload order.
func (s *Session) FileIDs() []string {
	ids := make([]string, len(s.Files))
	for i, f := range s.Files {
		ids[i] = f.ID
	}
	return ids
}

func (s *Session) setState(state SessionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) recordThread(id string) {
	s.mu.Lock()
	s.threads = append(s.threads, id)
	s.mu.Unlock()
}

func (s *Session) sessionThread() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threadID
}

func (s *Session) setSessionThread(id string) {
	s.mu.Lock()
	s.threadID = id
	s.mu.Unlock()
}

// beginTurn registers stop as the way to abort the running turn.
// It fails once the session is no longer ready.
func (s *Session) beginTurn(stop context.CancelFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady {
		return false
	}
	s.stopTurn = stop
	return true
}

func (s *Session) endTurn() {
	s.mu.Lock()
	s.stopTurn = nil
	s.mu.Unlock()
}

// close flips the session to closed, aborts the running turn and reports
// whether the session was open.
func (s *Session) close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return false
	}
	s.state = StateClosed
	if s.stopTurn != nil {
		s.stopTurn()
		s.stopTurn = nil
	}
	return true
}

// waitTurn blocks until no turn is running.
func (s *Session) waitTurn() {
	s.turn.Lock()
	s.turn.Unlock()
}
