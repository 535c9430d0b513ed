package gateway

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is the server-side state behind a session cookie. The identity is
// fixed at creation; changing it means destroying the session and creating
// a new one. Expiry is absolute from creation; activity does not extend it.
type Session struct {
	Identity  string    `json:"identity"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionStore abstracts session CRUD so sessions can be held in memory
// (default) or in persistent backing storage.
type SessionStore interface {
	// Create stores a new session for identity and returns its opaque token.
	Create(identity string) (string, error)
	// Lookup resolves a token to its identity. Unknown and expired tokens
	// are a clean miss, never an error.
	Lookup(token string) (string, bool)
	// Destroy removes a session. Destroying an absent token is a no-op.
	Destroy(token string)
}

// MemorySessionStore is a thread-safe in-memory SessionStore. Sessions are
// lost on restart, which forces a re-login but breaks nothing.
type MemorySessionStore struct {
	mu       sync.RWMutex
	data     map[string]Session
	lifetime time.Duration
	now      func() time.Time
}

var _ SessionStore = (*MemorySessionStore)(nil)

// NewMemorySessionStore creates an in-memory session store whose sessions
// live for the given absolute lifetime.
func NewMemorySessionStore(lifetime time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		data:     make(map[string]Session),
		lifetime: lifetime,
		now:      time.Now,
	}
}

func (s *MemorySessionStore) Create(identity string) (string, error) {
	token := uuid.NewString()
	now := s.now()

	s.mu.Lock()
	s.data[token] = Session{
		Identity:  identity,
		CreatedAt: now,
		ExpiresAt: now.Add(s.lifetime),
	}
	// Opportunistic sweep; logins are rare enough that this stays cheap.
	for t, sess := range s.data {
		if now.After(sess.ExpiresAt) {
			delete(s.data, t)
		}
	}
	s.mu.Unlock()

	sessionsCreated.Inc()
	return token, nil
}

func (s *MemorySessionStore) Lookup(token string) (string, bool) {
	s.mu.RLock()
	sess, ok := s.data[token]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}
	if s.now().After(sess.ExpiresAt) {
		s.Destroy(token)
		return "", false
	}
	return sess.Identity, true
}

func (s *MemorySessionStore) Destroy(token string) {
	s.mu.Lock()
	_, existed := s.data[token]
	delete(s.data, token)
	s.mu.Unlock()
	if existed {
		sessionsDestroyed.Inc()
	}
}
