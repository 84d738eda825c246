package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tiffinstash/ops-front/internal/config"
	"github.com/tiffinstash/ops-front/internal/log"
)

// tokenCacheTTL is how long a client-credentials token is reused before
// a fresh one is requested. Shopify grants last 24 h; the hour of slack
// avoids using a token right at its edge.
const tokenCacheTTL = 23 * time.Hour

// cachedToken is the on-disk cache format
type cachedToken struct {
	AccessToken string `json:"access_token"`
	CreatedAt   int64  `json:"created_at"`
	ExpiresAt   int64  `json:"expires_at"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// TokenSource resolves the Shopify admin access token. Resolution order:
// file cache, client-credentials grant, static configured token. The
// token value itself is never logged.
type TokenSource struct {
	cfg        config.ShopifyConfig
	httpClient *http.Client
	now        func() time.Time

	group singleflight.Group
}

// NewTokenSource creates a token source for the configured shop
func NewTokenSource(cfg config.ShopifyConfig) *TokenSource {
	return &TokenSource{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		now:        time.Now,
	}
}

// Token returns a usable access token. Concurrent callers share one
// grant request instead of stampeding the token endpoint.
func (t *TokenSource) Token(ctx context.Context) (string, error) {
	if token := t.loadCache(); token != "" {
		return token, nil
	}

	v, err, _ := t.group.Do("access_token", func() (any, error) {
		// A flight that was queued behind the winner finds the fresh
		// cache here and returns without its own grant
		if token := t.loadCache(); token != "" {
			return token, nil
		}

		if t.cfg.ClientID == "" || t.cfg.ClientSecret == "" {
			if t.cfg.AccessToken != "" {
				return string(t.cfg.AccessToken), nil
			}
			return "", fmt.Errorf("no shopify credentials configured")
		}

		token, err := t.requestToken(ctx)
		if err != nil {
			// A stale static token is better than no orders at all
			if t.cfg.AccessToken != "" {
				log.LogWarnWithFields("shopify", "Token grant failed, using static token", map[string]any{
					"error": err.Error(),
				})
				return string(t.cfg.AccessToken), nil
			}
			return "", err
		}

		t.saveCache(token)
		return token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// requestToken performs the client-credentials grant
func (t *TokenSource) requestToken(ctx context.Context) (string, error) {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {t.cfg.ClientID},
		"client_secret": {string(t.cfg.ClientSecret)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.TokenURL(), strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("requesting access token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var body tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}

	log.Logf("fetched new shopify access token")
	return body.AccessToken, nil
}

// loadCache returns the cached token if present and not expired
func (t *TokenSource) loadCache() string {
	if t.cfg.TokenCacheFile == "" {
		return ""
	}

	data, err := os.ReadFile(t.cfg.TokenCacheFile)
	if err != nil {
		return ""
	}

	var cached cachedToken
	if err := json.Unmarshal(data, &cached); err != nil {
		log.LogWarnWithFields("shopify", "Unreadable token cache, ignoring", map[string]any{
			"file": t.cfg.TokenCacheFile,
		})
		return ""
	}

	if t.now().Unix() >= cached.ExpiresAt {
		return ""
	}
	return cached.AccessToken
}

// saveCache persists the token; failures are logged, not fatal
func (t *TokenSource) saveCache(token string) {
	if t.cfg.TokenCacheFile == "" {
		return
	}

	now := t.now()
	data, err := json.Marshal(cachedToken{
		AccessToken: token,
		CreatedAt:   now.Unix(),
		ExpiresAt:   now.Add(tokenCacheTTL).Unix(),
	})
	if err != nil {
		return
	}

	if dir := filepath.Dir(t.cfg.TokenCacheFile); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.LogWarnWithFields("shopify", "Failed to create token cache dir", map[string]any{
				"error": err.Error(),
			})
			return
		}
	}
	if err := os.WriteFile(t.cfg.TokenCacheFile, data, 0o600); err != nil {
		log.LogWarnWithFields("shopify", "Failed to write token cache", map[string]any{
			"error": err.Error(),
		})
	}
}
