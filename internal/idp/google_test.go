package idp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// fakeGoogle stands in for Google's token and userinfo endpoints
type fakeGoogle struct {
	server       *httptest.Server
	tokenCalls   atomic.Int64
	userCalls    atomic.Int64
	userInfoBody map[string]any
}

func newFakeGoogle(t *testing.T) *fakeGoogle {
	t.Helper()
	f := &fakeGoogle{
		userInfoBody: map[string]any{
			"sub":     "sub-123",
			"email":   "Ops@TiffinStash.com",
			"name":    "Ops Person",
			"picture": "https://example.com/p.png",
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "test-access-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		f.userCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(f.userInfoBody)
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeGoogle) provider() *GoogleProvider {
	return NewGoogleProviderWithEndpoints(
		"client-id", "client-secret", "https://ops.example.com/oauth/callback",
		oauth2.Endpoint{
			AuthURL:  f.server.URL + "/auth",
			TokenURL: f.server.URL + "/token",
		},
		f.server.URL+"/userinfo",
	)
}

func TestNewGoogleProviderRequiresCredentials(t *testing.T) {
	assert.Nil(t, NewGoogleProvider("", "secret", "https://x/cb"))
	assert.Nil(t, NewGoogleProvider("id", "", "https://x/cb"))
	assert.NotNil(t, NewGoogleProvider("id", "secret", "https://x/cb"))
}

func TestAuthURL(t *testing.T) {
	p := NewGoogleProvider("client-id", "client-secret", "https://ops.example.com/oauth/callback")

	authURL := p.AuthURL("state-token-xyz")
	assert.Contains(t, authURL, "state=state-token-xyz")
	assert.Contains(t, authURL, "client_id=client-id")
	assert.Contains(t, authURL, "prompt=select_account")
	assert.NotContains(t, authURL, "client-secret")
}

func TestExchangeCodeStateMismatchNeverHitsNetwork(t *testing.T) {
	fake := newFakeGoogle(t)
	p := fake.provider()

	_, err := p.ExchangeCode(context.Background(), "code", "expected-state", "forged-state")
	assert.ErrorIs(t, err, ErrStateMismatch)

	_, err = p.ExchangeCode(context.Background(), "code", "expected-state", "")
	assert.ErrorIs(t, err, ErrStateMismatch)

	// Empty expected state (no pending login) also rejects
	_, err = p.ExchangeCode(context.Background(), "code", "", "")
	assert.ErrorIs(t, err, ErrStateMismatch)

	assert.Equal(t, int64(0), fake.tokenCalls.Load(), "mismatched state must not reach the token endpoint")
}

func TestExchangeCodeSuccess(t *testing.T) {
	fake := newFakeGoogle(t)
	p := fake.provider()

	token, err := p.ExchangeCode(context.Background(), "code", "same-state", "same-state")
	require.NoError(t, err)
	assert.Equal(t, "test-access-token", token.AccessToken)
	assert.Equal(t, int64(1), fake.tokenCalls.Load())
}

func TestUserInfo(t *testing.T) {
	fake := newFakeGoogle(t)
	p := fake.provider()

	profile, err := p.UserInfo(context.Background(), &oauth2.Token{AccessToken: "test-access-token"})
	require.NoError(t, err)

	assert.Equal(t, "sub-123", profile.Subject)
	// Email comes back normalized
	assert.Equal(t, "ops@tiffinstash.com", profile.Email)
	assert.Equal(t, "Ops Person", profile.Name)
	assert.Equal(t, int64(1), fake.userCalls.Load())
}

func TestUserInfoMissingEmail(t *testing.T) {
	fake := newFakeGoogle(t)
	delete(fake.userInfoBody, "email")
	p := fake.provider()

	_, err := p.UserInfo(context.Background(), &oauth2.Token{AccessToken: "test-access-token"})
	assert.Error(t, err)
}
