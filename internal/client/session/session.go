// Package session holds the vault key and identity for one logged-in CLI
// session. Nothing here is ever written to disk.
package session

import (
	"errors"
	"sync"

	"github.com/dmitrijs2005/zkvault/internal/cryptox"
)

var (
	ErrNoSession          = errors.New("not logged in")
	ErrRotationInProgress = errors.New("password rotation already in progress")
)

// Identity names the account a session belongs to.
type Identity struct {
	OwnerID int64
	Email   string
	Token   string
}

// Session owns at most one vault key. Replacing or clearing the key wipes
// the previous one. All methods are safe for concurrent use.
type Session struct {
	mu       sync.RWMutex
	identity Identity
	key      *cryptox.Key
	active   bool
	rotating bool
}

func New() *Session {
	return &Session{}
}

// Begin starts a session for identity with key, replacing any previous one.
func (s *Session) Begin(identity Identity, key *cryptox.Key) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.key != nil && s.key != key {
		s.key.Wipe()
	}
	s.identity = identity
	s.key = key
	s.active = true
}

// SetKey replaces the session key and wipes the old one.
func (s *Session) SetKey(key *cryptox.Key) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.key != nil && s.key != key {
		s.key.Wipe()
	}
	s.key = key
}

// Key returns the current key, or false when there is none.
func (s *Session) Key() (*cryptox.Key, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.key == nil || s.key.Wiped() {
		return nil, false
	}
	return s.key, true
}

// Identity returns the session identity, or ErrNoSession.
func (s *Session) Identity() (Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.active {
		return Identity{}, ErrNoSession
	}
	return s.identity, nil
}

// Token returns the bearer token of the current session, or "".
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity.Token
}

// SetToken replaces the bearer token, e.g. after a password change.
func (s *Session) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity.Token = token
}

// Active reports whether a session has begun and not been cleared.
func (s *Session) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Clear wipes the key and forgets the identity. Safe to call repeatedly.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.key.Wipe()
	s.key = nil
	s.identity = Identity{}
	s.active = false
}

// AcquireRotation marks a rotation as running. The returned release func
// must be called when it finishes. A second concurrent call fails with
// ErrRotationInProgress.
func (s *Session) AcquireRotation() (release func(), err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rotating {
		return nil, ErrRotationInProgress
	}
	s.rotating = true

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.rotating = false
			s.mu.Unlock()
		})
	}, nil
}
