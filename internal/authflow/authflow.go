package authflow

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/tiffinstash/ops-front/internal/config"
	"github.com/tiffinstash/ops-front/internal/crypto"
	"github.com/tiffinstash/ops-front/internal/emailutil"
	"github.com/tiffinstash/ops-front/internal/idp"
	"github.com/tiffinstash/ops-front/internal/log"
	"github.com/tiffinstash/ops-front/internal/session"
	"github.com/tiffinstash/ops-front/internal/storage"
)

// Sentinel errors for the login flow. Handlers map these to user-facing
// messages; the messages never include tokens, codes, or state values.
var (
	// ErrNotConfigured means Google SSO was requested but no OAuth client
	// is configured.
	ErrNotConfigured = errors.New("google sso is not configured")

	// ErrStateMismatch re-exports the provider-level CSRF failure so
	// handlers only need to know this package.
	ErrStateMismatch = idp.ErrStateMismatch

	// ErrCallbackDenied means the provider redirected back with an error
	// (user cancelled, consent denied) or with required parameters missing.
	ErrCallbackDenied = errors.New("authorization was not granted")

	// ErrTokenExchange means the code-for-token exchange failed.
	ErrTokenExchange = errors.New("token exchange failed")

	// ErrProfileFetch means the userinfo request failed after a successful
	// exchange.
	ErrProfileFetch = errors.New("could not fetch user profile")

	// ErrDomainRejected means the authenticated account is outside the
	// allowed workspace domain.
	ErrDomainRejected = errors.New("account is not in the allowed domain")

	// ErrInvalidCredentials is the single error for every fallback login
	// failure. Username and password failures are deliberately
	// indistinguishable.
	ErrInvalidCredentials = errors.New("invalid username or password")
)

const (
	// pendingLoginTTL bounds how long a browser may sit on Google's consent
	// screen before the round trip is considered abandoned.
	pendingLoginTTL = 10 * time.Minute

	// exchangeTimeout bounds each provider network call (token exchange
	// and profile fetch).
	exchangeTimeout = 10 * time.Second
)

// fallbackEmail is the synthetic identity recorded for password logins.
// It is not a routable address and never passes the SSO domain check.
const (
	fallbackEmail       = "admin@local"
	fallbackDisplayName = "Administrator"
)

// CallbackParams carries the query parameters of the provider redirect.
type CallbackParams struct {
	PendingID string // from the login cookie, not the URL
	Code      string
	State     string
	ErrorCode string // the provider's "error" query parameter, if any
}

// Flow orchestrates both login paths and the session lifecycle. The
// handlers own cookies and redirects; Flow owns everything between the
// cookie and the store.
type Flow struct {
	provider idp.Provider // nil when SSO is not configured
	store    storage.Storage
	auth     config.AuthConfig
	now      func() time.Time
}

// New creates a login flow. provider may be nil, in which case only the
// fallback password path is available.
func New(provider idp.Provider, store storage.Storage, auth config.AuthConfig) *Flow {
	return &Flow{
		provider: provider,
		store:    store,
		auth:     auth,
		now:      time.Now,
	}
}

// SSOEnabled reports whether the Google login path can be offered.
func (f *Flow) SSOEnabled() bool {
	return f.provider != nil
}

// BeginSSO starts the OAuth round trip: it mints a pending login with a
// fresh state token, stores it, and returns the provider authorization
// URL together with the pending login ID the handler must set as a
// short-lived cookie.
func (f *Flow) BeginSSO(ctx context.Context) (authURL, pendingID string, err error) {
	if f.provider == nil {
		return "", "", ErrNotConfigured
	}

	state, err := crypto.GenerateSecureToken()
	if err != nil {
		return "", "", fmt.Errorf("generating state token: %w", err)
	}
	pendingID, err = crypto.GenerateSecureToken()
	if err != nil {
		return "", "", fmt.Errorf("generating pending login id: %w", err)
	}

	now := f.now()
	pending := session.PendingLogin{
		ID:        pendingID,
		State:     state,
		CreatedAt: now,
		ExpiresAt: now.Add(pendingLoginTTL),
	}
	if err := f.store.PutPendingLogin(ctx, pending); err != nil {
		return "", "", fmt.Errorf("storing pending login: %w", err)
	}

	log.LogInfoWithFields("authflow", "SSO login started", map[string]any{
		"provider": f.provider.Type(),
	})
	return f.provider.AuthURL(state), pendingID, nil
}

// CompleteSSO finishes the OAuth round trip. The pending login is
// consumed unconditionally before anything else, so a replayed callback
// fails the state check without reaching the provider. On success the
// returned session is already persisted.
func (f *Flow) CompleteSSO(ctx context.Context, params CallbackParams) (*session.Session, error) {
	if f.provider == nil {
		return nil, ErrNotConfigured
	}

	pending, ok := f.store.TakePendingLogin(ctx, params.PendingID)

	if params.ErrorCode != "" {
		log.LogInfoWithFields("authflow", "Provider denied authorization", map[string]any{
			"error_code": params.ErrorCode,
		})
		return nil, ErrCallbackDenied
	}
	if params.Code == "" || params.State == "" {
		return nil, ErrCallbackDenied
	}
	if !ok {
		// Unknown, expired, or already-consumed login attempt. Same
		// outcome as a forged state: reject before any network call.
		return nil, ErrStateMismatch
	}

	exchangeCtx, cancel := context.WithTimeout(ctx, exchangeTimeout)
	defer cancel()

	token, err := f.provider.ExchangeCode(exchangeCtx, params.Code, pending.State, params.State)
	if err != nil {
		if errors.Is(err, idp.ErrStateMismatch) {
			log.LogWarn("state token mismatch on oauth callback")
			return nil, ErrStateMismatch
		}
		log.LogErrorWithFields("authflow", "Token exchange failed", map[string]any{
			"error": err.Error(),
		})
		return nil, ErrTokenExchange
	}

	infoCtx, cancelInfo := context.WithTimeout(ctx, exchangeTimeout)
	defer cancelInfo()

	profile, err := f.provider.UserInfo(infoCtx, token)
	if err != nil {
		log.LogErrorWithFields("authflow", "User info fetch failed", map[string]any{
			"error": err.Error(),
		})
		return nil, ErrProfileFetch
	}

	if !emailutil.MatchesDomain(profile.Email, f.auth.AllowedDomain) {
		log.LogWarnWithFields("authflow", "Login rejected for foreign domain", map[string]any{
			"email": profile.Email,
		})
		return nil, ErrDomainRejected
	}

	sess, err := f.createSession(ctx, session.MethodSSO, *profile)
	if err != nil {
		return nil, err
	}

	if err := f.store.UpsertUser(ctx, profile.Email); err != nil {
		log.LogWarnWithFields("authflow", "Failed to record user login", map[string]any{
			"error": err.Error(),
		})
	}

	log.LogInfoWithFields("authflow", "SSO login succeeded", map[string]any{
		"email": profile.Email,
	})
	return sess, nil
}

// PasswordLogin authenticates the shared superuser credential. Every
// failure returns ErrInvalidCredentials so responses do not reveal
// whether the username or the password was wrong.
func (f *Flow) PasswordLogin(ctx context.Context, username, password string) (*session.Session, error) {
	usernameOK := subtle.ConstantTimeCompare([]byte(username), []byte(f.auth.FallbackUsername)) == 1
	passwordOK := crypto.CheckPassword(f.auth.FallbackPasswordHash, password)
	if !usernameOK || !passwordOK {
		log.LogWarn("password login failed")
		return nil, ErrInvalidCredentials
	}

	profile := idp.UserProfile{
		Email: fallbackEmail,
		Name:  fallbackDisplayName,
	}
	sess, err := f.createSession(ctx, session.MethodPassword, profile)
	if err != nil {
		return nil, err
	}

	log.Logf("password login succeeded")
	return sess, nil
}

// Logout destroys the session. Unknown IDs are not an error; logout is
// idempotent.
func (f *Flow) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return f.store.DeleteSession(ctx, sessionID)
}

// CurrentSession resolves a session ID from the cookie to a live session.
// Expired or unknown IDs yield storage.ErrSessionNotFound.
func (f *Flow) CurrentSession(ctx context.Context, sessionID string) (*session.Session, error) {
	if sessionID == "" {
		return nil, storage.ErrSessionNotFound
	}
	return f.store.GetSession(ctx, sessionID)
}

func (f *Flow) createSession(ctx context.Context, method session.Method, profile idp.UserProfile) (*session.Session, error) {
	id, err := crypto.GenerateSecureToken()
	if err != nil {
		return nil, fmt.Errorf("generating session id: %w", err)
	}

	now := f.now()
	sess := &session.Session{
		ID:        id,
		Method:    method,
		Profile:   profile,
		CreatedAt: now,
		ExpiresAt: now.Add(f.auth.SessionTTL),
	}
	if err := f.store.PutSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("storing session: %w", err)
	}
	return sess, nil
}
