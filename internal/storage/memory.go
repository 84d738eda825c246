package storage

import (
	"context"
	"sync"
	"time"

	"github.com/tiffinstash/ops-front/internal/session"
)

// Ensure MemoryStorage implements the Storage interface
var _ Storage = (*MemoryStorage)(nil)

// MemoryStorage is the default store: per-process maps, suitable for a
// single-instance deployment. Pending logins use a sync.Map so the
// one-time take is a single LoadAndDelete.
type MemoryStorage struct {
	pending       sync.Map // map[string]session.PendingLogin
	sessions      map[string]*session.Session
	sessionsMutex sync.RWMutex
	users         map[string]*UserRecord
	usersMutex    sync.RWMutex

	now func() time.Time
}

// NewMemoryStorage creates a new in-memory store
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		sessions: make(map[string]*session.Session),
		users:    make(map[string]*UserRecord),
		now:      time.Now,
	}
}

// PutPendingLogin stores a pending login keyed by its ID
func (s *MemoryStorage) PutPendingLogin(_ context.Context, login session.PendingLogin) error {
	s.pending.Store(login.ID, login)
	return nil
}

// TakePendingLogin retrieves and removes a pending login (one-time use).
// Expired records are dropped and reported as absent.
func (s *MemoryStorage) TakePendingLogin(_ context.Context, id string) (*session.PendingLogin, bool) {
	v, ok := s.pending.LoadAndDelete(id)
	if !ok {
		return nil, false
	}
	login := v.(session.PendingLogin)
	if login.Expired(s.now()) {
		return nil, false
	}
	return &login, true
}

// PutSession stores an authenticated session
func (s *MemoryStorage) PutSession(_ context.Context, sess *session.Session) error {
	s.sessionsMutex.Lock()
	defer s.sessionsMutex.Unlock()

	copied := *sess
	s.sessions[sess.ID] = &copied
	return nil
}

// GetSession retrieves a session by ID. Expired sessions are deleted on
// the way out and reported as not found.
func (s *MemoryStorage) GetSession(_ context.Context, id string) (*session.Session, error) {
	s.sessionsMutex.Lock()
	defer s.sessionsMutex.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if !sess.Valid(s.now()) {
		delete(s.sessions, id)
		return nil, ErrSessionNotFound
	}

	copied := *sess
	return &copied, nil
}

// DeleteSession removes a session
func (s *MemoryStorage) DeleteSession(_ context.Context, id string) error {
	s.sessionsMutex.Lock()
	defer s.sessionsMutex.Unlock()

	delete(s.sessions, id)
	return nil
}

// UpsertUser creates or refreshes a user's last seen time
func (s *MemoryStorage) UpsertUser(_ context.Context, email string) error {
	s.usersMutex.Lock()
	defer s.usersMutex.Unlock()

	if user, exists := s.users[email]; exists {
		user.LastSeen = s.now()
	} else {
		s.users[email] = &UserRecord{
			Email:     email,
			FirstSeen: s.now(),
			LastSeen:  s.now(),
		}
	}
	return nil
}

// GetAllUsers returns all tracked users
func (s *MemoryStorage) GetAllUsers(_ context.Context) ([]UserRecord, error) {
	s.usersMutex.RLock()
	defer s.usersMutex.RUnlock()

	users := make([]UserRecord, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, *user)
	}
	return users, nil
}

// Close is a no-op for the memory store
func (s *MemoryStorage) Close() error {
	return nil
}
