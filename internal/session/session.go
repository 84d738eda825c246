package session

import (
	"time"

	"github.com/tiffinstash/ops-front/internal/idp"
)

// Method identifies how a session was established
type Method string

const (
	MethodSSO      Method = "sso"
	MethodPassword Method = "password"
)

// Session is the authenticated session record. It exists only after a
// fully successful login; there is no partially-authenticated state
// visible to protected pages. The browser holds only the opaque ID.
type Session struct {
	ID        string          `json:"id"`
	Method    Method          `json:"method"`
	Profile   idp.UserProfile `json:"profile"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// Valid reports whether the session is usable at the given time
func (s *Session) Valid(now time.Time) bool {
	return s != nil && now.Before(s.ExpiresAt)
}

// DisplayName returns the identity shown in the UI sidebar
func (s *Session) DisplayName() string {
	if s.Profile.Name != "" {
		return s.Profile.Name
	}
	return s.Profile.Email
}

// PendingLogin is the state threaded between the two legs of the OAuth
// redirect round trip. It is single use: consuming it removes it from the
// store regardless of the outcome of the callback.
type PendingLogin struct {
	ID        string    `json:"id"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the pending login has outlived its window
func (p *PendingLogin) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}
