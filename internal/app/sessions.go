package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/avdeev/micbridge/internal/domain"
)

const DefaultSessionTTL = 24 * time.Hour

// SessionStore owns every issued session record. Clients hold only tokens.
// A record exists only after a successful network check; there is no other
// way to create one.
type SessionStore struct {
	mu       sync.RWMutex
	ttl      time.Duration
	sessions map[domain.SessionToken]domain.Session

	now func() time.Time
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{
		ttl:      ttl,
		sessions: make(map[domain.SessionToken]domain.Session),
		now:      time.Now,
	}
}

func (s *SessionStore) TTL() time.Duration { return s.ttl }

// Issue mints a fresh authorized session. Call only after the authorizer
// said allow.
func (s *SessionStore) Issue() domain.Session {
	now := s.now()
	sess := domain.Session{
		Token:      domain.SessionToken(uuid.NewString()),
		Authorized: true,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.ttl),
	}
	s.mu.Lock()
	s.sessions[sess.Token] = sess
	s.mu.Unlock()
	log.Debug().Str("module", "app.sessions").Msg("issued session")
	return sess
}

// Lookup returns the record for a token. Unknown and expired tokens both
// read as absent; expired entries are evicted on the way out.
func (s *SessionStore) Lookup(token domain.SessionToken) (domain.Session, bool) {
	s.mu.RLock()
	sess, ok := s.sessions[token]
	s.mu.RUnlock()
	if !ok {
		return domain.Session{}, false
	}
	if sess.Expired(s.now()) {
		s.mu.Lock()
		delete(s.sessions, token)
		s.mu.Unlock()
		return domain.Session{}, false
	}
	return sess, true
}

func (s *SessionStore) Revoke(token domain.SessionToken) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
	log.Info().Str("module", "app.sessions").Msg("revoked session")
}

// RevokeAll drops every session; used by the admin surface to force
// re-authorization of all clients.
func (s *SessionStore) RevokeAll() int {
	s.mu.Lock()
	n := len(s.sessions)
	s.sessions = make(map[domain.SessionToken]domain.Session)
	s.mu.Unlock()
	log.Info().Str("module", "app.sessions").Int("count", n).Msg("revoked all sessions")
	return n
}

func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep evicts expired records and returns how many were removed.
// Lookup already evicts lazily; the sweep bounds memory for tokens
// that are never presented again.
func (s *SessionStore) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for tok, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, tok)
			n++
		}
	}
	return n
}

func (s *SessionStore) RunSweeper(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				log.Debug().Str("module", "app.sessions").Int("evicted", n).Msg("sweep")
			}
		}
	}
}
