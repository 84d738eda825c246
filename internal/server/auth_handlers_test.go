package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/tiffinstash/ops-front/internal/authflow"
	"github.com/tiffinstash/ops-front/internal/config"
	"github.com/tiffinstash/ops-front/internal/cookie"
	"github.com/tiffinstash/ops-front/internal/crypto"
	"github.com/tiffinstash/ops-front/internal/idp"
	"github.com/tiffinstash/ops-front/internal/storage"
)

// stubProvider is a minimal idp.Provider for handler tests
type stubProvider struct {
	email string
}

func (s *stubProvider) Type() string { return "stub" }

func (s *stubProvider) AuthURL(state string) string {
	return "https://idp.example.com/auth?state=" + url.QueryEscape(state)
}

func (s *stubProvider) ExchangeCode(_ context.Context, code, expectedState, receivedState string) (*oauth2.Token, error) {
	if expectedState == "" || expectedState != receivedState {
		return nil, idp.ErrStateMismatch
	}
	return &oauth2.Token{AccessToken: "stub-token"}, nil
}

func (s *stubProvider) UserInfo(_ context.Context, _ *oauth2.Token) (*idp.UserProfile, error) {
	return &idp.UserProfile{Subject: "sub-1", Email: s.email, Name: "Ops Person"}, nil
}

func handlerAuthConfig(t *testing.T) config.AuthConfig {
	t.Helper()
	hash, err := crypto.HashPassword("letmein")
	require.NoError(t, err)
	return config.AuthConfig{
		AllowedDomain:        "tiffinstash.com",
		FallbackUsername:     "admin",
		FallbackPasswordHash: hash,
		SessionTTL:           5 * time.Hour,
	}
}

func newHandlers(t *testing.T, withSSO bool) (*AuthHandlers, *authflow.Flow) {
	t.Helper()
	var provider idp.Provider
	if withSSO {
		provider = &stubProvider{email: "ops@tiffinstash.com"}
	}
	flow := authflow.New(provider, storage.NewMemoryStorage(), handlerAuthConfig(t))
	return NewAuthHandlers(flow, "Tiffinstash Ops", 5*time.Hour), flow
}

func responseCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// startSSO runs the Google login handler and returns the pending cookie
// and the state the provider redirect would echo back.
func startSSO(t *testing.T, h *AuthHandlers) (pending *http.Cookie, state string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.GoogleLoginHandler(rec, httptest.NewRequest(http.MethodGet, "/login/google", nil))

	require.Equal(t, http.StatusFound, rec.Code)
	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	state = location.Query().Get("state")
	require.NotEmpty(t, state)

	pending = responseCookie(t, rec, cookie.PendingLoginCookie)
	require.NotNil(t, pending)
	require.NotEmpty(t, pending.Value)
	return pending, state
}

func TestLoginPageShowsSSOButton(t *testing.T) {
	h, _ := newHandlers(t, true)

	rec := httptest.NewRecorder()
	h.LoginPageHandler(rec, httptest.NewRequest(http.MethodGet, "/login", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "/login/google")
	assert.Contains(t, body, `name="username"`)
	assert.Contains(t, body, `name="password"`)
}

func TestLoginPageHidesSSOButtonWhenUnconfigured(t *testing.T) {
	h, _ := newHandlers(t, false)

	rec := httptest.NewRecorder()
	h.LoginPageHandler(rec, httptest.NewRequest(http.MethodGet, "/login", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.NotContains(t, body, "/login/google")
	assert.Contains(t, body, `name="password"`, "password form is always offered")
}

func TestLoginPageMessages(t *testing.T) {
	h, _ := newHandlers(t, true)

	rec := httptest.NewRecorder()
	h.LoginPageHandler(rec, httptest.NewRequest(http.MethodGet, "/login?message=domain", nil))
	assert.Contains(t, rec.Body.String(), "limited to Tiffinstash workspace accounts")

	// Unknown codes render nothing rather than echoing input
	rec = httptest.NewRecorder()
	h.LoginPageHandler(rec, httptest.NewRequest(http.MethodGet, "/login?message=%3Cscript%3E", nil))
	assert.NotContains(t, rec.Body.String(), "script")
}

func TestLoginPageRedirectsAuthenticatedUser(t *testing.T) {
	h, flow := newHandlers(t, true)

	sess, err := flow.PasswordLogin(context.Background(), "admin", "letmein")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.AddCookie(&http.Cookie{Name: cookie.SessionCookie, Value: sess.ID})
	rec := httptest.NewRecorder()
	h.LoginPageHandler(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestGoogleLoginUnavailable(t *testing.T) {
	h, _ := newHandlers(t, false)

	rec := httptest.NewRecorder()
	h.GoogleLoginHandler(rec, httptest.NewRequest(http.MethodGet, "/login/google", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?message=sso_unavailable", rec.Header().Get("Location"))
}

func TestCallbackSuccess(t *testing.T) {
	h, flow := newHandlers(t, true)
	pending, state := startSSO(t, h)

	req := httptest.NewRequest(http.MethodGet,
		"/oauth/callback?code=auth-code&state="+url.QueryEscape(state), nil)
	req.AddCookie(pending)
	rec := httptest.NewRecorder()
	h.CallbackHandler(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	sessCookie := responseCookie(t, rec, cookie.SessionCookie)
	require.NotNil(t, sessCookie)
	require.NotEmpty(t, sessCookie.Value)
	assert.True(t, sessCookie.HttpOnly)

	sess, err := flow.CurrentSession(context.Background(), sessCookie.Value)
	require.NoError(t, err)
	assert.Equal(t, "ops@tiffinstash.com", sess.Profile.Email)

	// The pending cookie is cleared on the way through
	cleared := responseCookie(t, rec, cookie.PendingLoginCookie)
	require.NotNil(t, cleared)
	assert.True(t, cleared.MaxAge < 0 || cleared.Value == "")
}

func TestCallbackForgedState(t *testing.T) {
	h, _ := newHandlers(t, true)
	pending, _ := startSSO(t, h)

	req := httptest.NewRequest(http.MethodGet, "/oauth/callback?code=auth-code&state=forged", nil)
	req.AddCookie(pending)
	rec := httptest.NewRecorder()
	h.CallbackHandler(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?message=state", rec.Header().Get("Location"))
	sessCookie := responseCookie(t, rec, cookie.SessionCookie)
	assert.Nil(t, sessCookie, "no session on a failed callback")
}

func TestCallbackWithoutPendingCookie(t *testing.T) {
	h, _ := newHandlers(t, true)
	_, state := startSSO(t, h)

	req := httptest.NewRequest(http.MethodGet,
		"/oauth/callback?code=auth-code&state="+url.QueryEscape(state), nil)
	rec := httptest.NewRecorder()
	h.CallbackHandler(rec, req)

	assert.Equal(t, "/login?message=state", rec.Header().Get("Location"))
}

func TestCallbackProviderError(t *testing.T) {
	h, _ := newHandlers(t, true)
	pending, state := startSSO(t, h)

	req := httptest.NewRequest(http.MethodGet,
		"/oauth/callback?error=access_denied&state="+url.QueryEscape(state), nil)
	req.AddCookie(pending)
	rec := httptest.NewRecorder()
	h.CallbackHandler(rec, req)

	assert.Equal(t, "/login?message=denied", rec.Header().Get("Location"))
}

func TestCallbackDomainRejected(t *testing.T) {
	provider := &stubProvider{email: "outsider@gmail.com"}
	flow := authflow.New(provider, storage.NewMemoryStorage(), handlerAuthConfig(t))
	h := NewAuthHandlers(flow, "Tiffinstash Ops", 5*time.Hour)
	pending, state := startSSO(t, h)

	req := httptest.NewRequest(http.MethodGet,
		"/oauth/callback?code=auth-code&state="+url.QueryEscape(state), nil)
	req.AddCookie(pending)
	rec := httptest.NewRecorder()
	h.CallbackHandler(rec, req)

	assert.Equal(t, "/login?message=domain", rec.Header().Get("Location"))
	assert.Nil(t, responseCookie(t, rec, cookie.SessionCookie))
}

func TestPasswordLoginHandler(t *testing.T) {
	h, flow := newHandlers(t, true)

	form := url.Values{"username": {"admin"}, "password": {"letmein"}}
	req := httptest.NewRequest(http.MethodPost, "/login/password", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.PasswordLoginHandler(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	sessCookie := responseCookie(t, rec, cookie.SessionCookie)
	require.NotNil(t, sessCookie)
	sess, err := flow.CurrentSession(context.Background(), sessCookie.Value)
	require.NoError(t, err)
	assert.Equal(t, "Administrator", sess.DisplayName())
}

func TestPasswordLoginHandlerRejectsBadCredentials(t *testing.T) {
	h, _ := newHandlers(t, true)

	for _, form := range []url.Values{
		{"username": {"admin"}, "password": {"wrong"}},
		{"username": {"root"}, "password": {"letmein"}},
		{},
	} {
		req := httptest.NewRequest(http.MethodPost, "/login/password", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		h.PasswordLoginHandler(rec, req)

		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/login?message=invalid_credentials", rec.Header().Get("Location"))
		assert.Nil(t, responseCookie(t, rec, cookie.SessionCookie))
	}
}

func TestLogoutHandler(t *testing.T) {
	h, flow := newHandlers(t, true)

	sess, err := flow.PasswordLogin(context.Background(), "admin", "letmein")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: cookie.SessionCookie, Value: sess.ID})
	rec := httptest.NewRecorder()
	h.LogoutHandler(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?message=logged_out", rec.Header().Get("Location"))

	_, err = flow.CurrentSession(context.Background(), sess.ID)
	assert.ErrorIs(t, err, storage.ErrSessionNotFound)

	cleared := responseCookie(t, rec, cookie.SessionCookie)
	require.NotNil(t, cleared)
	assert.True(t, cleared.MaxAge < 0 || cleared.Value == "")
}

func TestDashboardHandler(t *testing.T) {
	_, flow := newHandlers(t, true)
	sess, err := flow.PasswordLogin(context.Background(), "admin", "letmein")
	require.NoError(t, err)

	dashboard := NewDashboardHandler("Tiffinstash Ops", true)
	protected := ChainMiddleware(dashboard, NewAuthMiddleware(flow))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: cookie.SessionCookie, Value: sess.ID})
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Administrator")
	assert.Contains(t, body, "Tiffinstash Ops")
}
