package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// Secret is a string type that redacts itself when printed
type Secret string

// String implements fmt.Stringer to redact the secret
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// MarshalJSON implements json.Marshaler to prevent secrets in JSON logs
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("***")
}

// StorageKind selects the session store backend
type StorageKind string

const (
	StorageMemory    StorageKind = "memory"
	StorageFirestore StorageKind = "firestore"
)

// ServerConfig is the HTTP surface configuration
type ServerConfig struct {
	BaseURL string `json:"baseURL"`
	Addr    string `json:"addr"`
	Name    string `json:"name"`
}

// AuthConfig holds login configuration with resolved values.
//
// Google OAuth is optional: when client id or secret is absent the SSO
// button is not rendered and only the fallback password form is shown.
// The fallback credential is a single shared superuser identity; its
// password is bcrypt-hashed at load time and the plaintext discarded.
type AuthConfig struct {
	AllowedDomain      string        `json:"allowedDomain"`
	GoogleClientID     string        `json:"googleClientId"`
	GoogleClientSecret Secret        `json:"googleClientSecret"`
	GoogleRedirectURI  string        `json:"googleRedirectUri"`
	FallbackUsername   string        `json:"fallbackUsername"`
	SessionTTL         time.Duration `json:"sessionTtl"`

	Storage             StorageKind `json:"storage"`
	GCPProject          string      `json:"gcpProject,omitempty"`
	FirestoreDatabase   string      `json:"firestoreDatabase,omitempty"`
	FirestoreCollection string      `json:"firestoreCollection,omitempty"`
	EncryptionKey       Secret      `json:"encryptionKey,omitempty"`

	// Computed at load time
	FallbackPasswordHash []byte `json:"-"`
}

// OAuthConfigured reports whether Google SSO can be offered
func (a *AuthConfig) OAuthConfigured() bool {
	return a.GoogleClientID != "" && a.GoogleClientSecret != ""
}

// ShopifyConfig holds the order export configuration
type ShopifyConfig struct {
	ShopURL        string `json:"shopUrl"`
	APIVersion     string `json:"apiVersion"`
	ClientID       string `json:"clientId"`
	ClientSecret   Secret `json:"clientSecret"`
	AccessToken    Secret `json:"accessToken"` // static fallback token
	TokenCacheFile string `json:"tokenCacheFile"`
	Timezone       string `json:"timezone"`
}

// Configured reports whether any Shopify credential path is available
func (s *ShopifyConfig) Configured() bool {
	return s.ShopURL != "" && ((s.ClientID != "" && s.ClientSecret != "") || s.AccessToken != "")
}

// GraphQLURL returns the admin GraphQL endpoint for the configured shop
func (s *ShopifyConfig) GraphQLURL() string {
	return fmt.Sprintf("%s/admin/api/%s/graphql.json", strings.TrimRight(s.ShopURL, "/"), s.APIVersion)
}

// TokenURL returns the client-credentials token endpoint for the shop
func (s *ShopifyConfig) TokenURL() string {
	return strings.TrimRight(s.ShopURL, "/") + "/admin/oauth/access_token"
}

// DatabaseConfig holds the delivery database configuration
type DatabaseConfig struct {
	URL Secret `json:"url"`
}

// Config represents the full configuration with resolved values
type Config struct {
	Server   ServerConfig   `json:"server"`
	Auth     AuthConfig     `json:"auth"`
	Shopify  ShopifyConfig  `json:"shopify"`
	Database DatabaseConfig `json:"database"`
}

// ResolveValue resolves a JSON value that is either a plain string or an
// environment reference of the form {"$env": "VAR_NAME"}.
//
// The explicit {"$env": ...} syntax is used instead of bash-like $VAR
// substitution so config files are safe to handle in shell contexts and
// values containing '$' are never re-expanded.
func ResolveValue(raw json.RawMessage) (string, error) {
	return resolveValue(raw, true)
}

// ResolveOptionalValue is ResolveValue for values that may legitimately be
// absent: an unset environment variable yields "" rather than an error.
// Used for the Google OAuth credentials, whose absence selects the
// password-only fallback UI.
func ResolveOptionalValue(raw json.RawMessage) (string, error) {
	return resolveValue(raw, false)
}

func resolveValue(raw json.RawMessage, required bool) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}

	// Try plain string first
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str, nil
	}

	// Try reference object
	var ref map[string]string
	if err := json.Unmarshal(raw, &ref); err != nil {
		return "", fmt.Errorf("config value must be string or reference object")
	}

	envVar, ok := ref["$env"]
	if !ok {
		return "", fmt.Errorf("unknown reference type in config value")
	}

	value := os.Getenv(envVar)
	if value == "" {
		if required {
			return "", fmt.Errorf("environment variable %s not set", envVar)
		}
		return "", nil
	}

	// Strip surrounding quotes if present (only matching pairs)
	if len(value) >= 2 {
		if (value[0] == '"' && value[len(value)-1] == '"') ||
			(value[0] == '\'' && value[len(value)-1] == '\'') {
			value = value[1 : len(value)-1]
		}
	}
	return value, nil
}
