package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrUnauthorized is returned for missing, malformed, expired or revoked sessions
// and for failed logins.
var ErrUnauthorized = errors.New("unauthorized")

// sweepInterval is how often the janitor drops expired sessions.
const sweepInterval = time.Minute

type session struct {
	userID    int64
	expiresAt time.Time
}

// SessionStore binds session ids to users in process memory. Tokens handed to
// clients are HS256 signed and carry only the session id (jti) and timestamps;
// the user is looked up from the binding, and a token is only valid while its
// binding exists.
type SessionStore struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[string]session

	stop     chan struct{}
	stopOnce sync.Once
}

// NewSessionStore creates a store and starts its janitor. Call Close to stop it.
func NewSessionStore(secret string, ttl time.Duration) (*SessionStore, error) {
	if secret == "" {
		return nil, errors.New("session secret is empty")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("invalid session ttl %s", ttl)
	}
	s := &SessionStore{
		secret:   []byte(secret),
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]session),
		stop:     make(chan struct{}),
	}
	go s.janitor()
	return s, nil
}

// TTL reports how long a new session lives.
func (s *SessionStore) TTL() time.Duration { return s.ttl }

func (s *SessionStore) janitor() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-s.stop:
			return
		}
	}
}

// Close stops the janitor. Sessions stay resolvable until the store is dropped.
func (s *SessionStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Create starts a session for userID and returns the signed token and its expiry.
func (s *SessionStore) Create(userID int64) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)
	id := uuid.NewString()
	claims := jwt.RegisteredClaims{
		ID:        id,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	s.mu.Lock()
	s.sessions[id] = session{userID: userID, expiresAt: expiresAt}
	s.mu.Unlock()
	return token, expiresAt, nil
}

// Resolve returns the user bound to token.
func (s *SessionStore) Resolve(token string) (int64, error) {
	if token == "" {
		return 0, ErrUnauthorized
	}
	c, err := s.parse(token, jwt.WithExpirationRequired(), jwt.WithTimeFunc(s.now))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	s.mu.RLock()
	sess, ok := s.sessions[c.ID]
	s.mu.RUnlock()
	if !ok || !s.now().Before(sess.expiresAt) {
		return 0, ErrUnauthorized
	}
	return sess.userID, nil
}

// Destroy drops the session behind token. Unknown, expired or malformed tokens are ignored.
func (s *SessionStore) Destroy(token string) {
	if token == "" {
		return
	}
	c, err := s.parse(token, jwt.WithoutClaimsValidation())
	if err != nil || c.ID == "" {
		return
	}
	s.mu.Lock()
	delete(s.sessions, c.ID)
	s.mu.Unlock()
}

// Sweep removes expired sessions.
func (s *SessionStore) Sweep() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		if !now.Before(sess.expiresAt) {
			delete(s.sessions, id)
		}
	}
}

// Len reports the number of live bindings.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *SessionStore) parse(token string, opts ...jwt.ParserOption) (*jwt.RegisteredClaims, error) {
	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	tok, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	c, _ := tok.Claims.(*jwt.RegisteredClaims)
	if c == nil || c.ID == "" {
		return nil, errors.New("invalid claims")
	}
	return c, nil
}
