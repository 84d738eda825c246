package storage

import (
	"context"
	"errors"
	"time"

	"github.com/tiffinstash/ops-front/internal/session"
)

// ErrSessionNotFound is returned when a session doesn't exist or expired
var ErrSessionNotFound = errors.New("session not found")

// UserRecord tracks a user who has logged in via SSO
type UserRecord struct {
	Email     string    `json:"email"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// Storage is the session store abstraction consumed by the login
// orchestrator. Implementations must make TakePendingLogin single use:
// a second call with the same ID returns false.
//
// Expiry is enforced lazily: GetSession never returns an expired session
// and implementations drop expired records when they encounter them.
type Storage interface {
	// Pending login state (one record per in-flight OAuth round trip)
	PutPendingLogin(ctx context.Context, login session.PendingLogin) error
	TakePendingLogin(ctx context.Context, id string) (*session.PendingLogin, bool)

	// Authenticated sessions
	PutSession(ctx context.Context, s *session.Session) error
	GetSession(ctx context.Context, id string) (*session.Session, error)
	DeleteSession(ctx context.Context, id string) error

	// User tracking (upserted on successful SSO login)
	UpsertUser(ctx context.Context, email string) error
	GetAllUsers(ctx context.Context) ([]UserRecord, error)

	Close() error
}
