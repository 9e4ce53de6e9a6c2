package http

import (
	"context"
	"sync"
	"time"

	"github.com/0xcro3dile/filechat-go/internal/domain/usecases"
	"pkt.systems/pslog"
)

type sessionEntry struct {
	sess      *usecases.Session
	expiresAt time.Time
}

// sessionStore keeps bootstrapped sessions in memory, keyed by cookie value.
// Every access slides the expiry forward.
type sessionStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items map[string]sessionEntry
}

func newSessionStore(ttl time.Duration) *sessionStore {
	return &sessionStore{
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]sessionEntry),
	}
}

// put stores sess and returns the session it replaced, if any.
func (s *sessionStore) put(id string, sess *usecases.Session) *usecases.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.items[id].sess
	s.items[id] = sessionEntry{sess: sess, expiresAt: s.now().Add(s.ttl)}
	return prev
}

// get returns a live session. Expired entries stay behind for sweep.
func (s *sessionStore) get(id string) (*usecases.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.items[id]
	if !ok {
		return nil, false
	}
	now := s.now()
	if now.After(entry.expiresAt) {
		return nil, false
	}
	entry.expiresAt = now.Add(s.ttl)
	s.items[id] = entry
	return entry.sess, true
}

func (s *sessionStore) remove(id string) *usecases.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.items[id]
	if !ok {
		return nil
	}
	delete(s.items, id)
	return entry.sess
}

// expired removes and returns every session past its expiry.
func (s *sessionStore) expired() []*usecases.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var out []*usecases.Session
	for id, entry := range s.items {
		if now.After(entry.expiresAt) {
			delete(s.items, id)
			out = append(out, entry.sess)
		}
	}
	return out
}

// drain removes and returns every session.
func (s *sessionStore) drain() []*usecases.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*usecases.Session, 0, len(s.items))
	for id, entry := range s.items {
		delete(s.items, id)
		out = append(out, entry.sess)
	}
	return out
}

func (s *sessionStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// sweep tears down expired sessions until ctx ends.
func (srv *Server) sweep(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			srv.teardownAll(ctx, srv.sessions.expired(), "session expired")
		}
	}
}

func (srv *Server) teardownAll(ctx context.Context, sessions []*usecases.Session, msg string) {
	log := pslog.Ctx(ctx)
	for _, sess := range sessions {
		if err := srv.bootstrap.Teardown(ctx, sess); err != nil {
			log.Warn("session teardown failed", "session", sess.ID, "err", err)
			continue
		}
		log.Info(msg, "session", sess.ID)
	}
}
