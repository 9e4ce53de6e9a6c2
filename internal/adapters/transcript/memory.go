// Package transcript provides display log adapters.
// Clean Architecture: Adapter implementing ports.Transcript.
package transcript

import (
	"context"
	"sync"

	"github.com/0xcro3dile/filechat-go/internal/domain/entities"
)

// InMemoryStore keeps every session log in process memory.
type InMemoryStore struct {
	mu   sync.RWMutex
	seq  int64
	logs map[string][]entities.DisplayMessage // sessionID -> log
}

// NewInMemoryStore creates an empty in-memory transcript.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		logs: make(map[string][]entities.DisplayMessage),
	}
}

// Append stores msg at the end of the session log.
func (s *InMemoryStore) Append(ctx context.Context, sessionID string, msg entities.DisplayMessage) (entities.DisplayMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	msg.Seq = s.seq
	s.logs[sessionID] = append(s.logs[sessionID], msg)
	return msg, nil
}

// List returns a copy of the session log in insertion order.
func (s *InMemoryStore) List(ctx context.Context, sessionID string) ([]entities.DisplayMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.logs[sessionID]
	out := make([]entities.DisplayMessage, len(log))
	copy(out, log)
	return out, nil
}

// Drop forgets the session log.
func (s *InMemoryStore) Drop(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.logs, sessionID)
	return nil
}

// Close is a no-op kept for parity with SQLiteStore.
func (s *InMemoryStore) Close() error {
	return nil
}
