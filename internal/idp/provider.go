package idp

import (
	"context"
	"errors"

	"golang.org/x/oauth2"
)

// UserProfile represents user information from an identity provider.
// Email is normalized to lowercase; nothing here is persisted beyond
// the session.
type UserProfile struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// ErrStateMismatch is returned when the state token that came back on the
// callback does not match the one issued for this login attempt. The
// exchange is rejected before any network call is made.
var ErrStateMismatch = errors.New("authentication state mismatch")

// Provider abstracts identity provider operations for the login flow.
type Provider interface {
	// Type returns the provider type identifier (e.g., "google").
	Type() string

	// AuthURL generates the authorization URL for the OAuth flow.
	AuthURL(state string) string

	// ExchangeCode exchanges an authorization code for tokens. The received
	// state is compared against the expected state first; on mismatch it
	// returns ErrStateMismatch without contacting the provider.
	ExchangeCode(ctx context.Context, code, expectedState, receivedState string) (*oauth2.Token, error)

	// UserInfo fetches the authenticated user's profile. Access policy
	// (domain restriction) is enforced by the caller, not here.
	UserInfo(ctx context.Context, token *oauth2.Token) (*UserProfile, error)
}
