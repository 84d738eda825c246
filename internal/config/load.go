package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tiffinstash/ops-front/internal/crypto"
)

// rawConfig mirrors Config but keeps secret-capable fields unresolved so
// {"$env": ...} references can be processed explicitly during Load.
type rawConfig struct {
	Version string `json:"version"`
	Server  struct {
		BaseURL string `json:"baseURL"`
		Addr    string `json:"addr"`
		Name    string `json:"name"`
	} `json:"server"`
	Auth struct {
		AllowedDomain       string          `json:"allowedDomain"`
		GoogleClientID      json.RawMessage `json:"googleClientId"`
		GoogleClientSecret  json.RawMessage `json:"googleClientSecret"`
		GoogleRedirectURI   string          `json:"googleRedirectUri"`
		FallbackUsername    string          `json:"fallbackUsername"`
		FallbackPassword    json.RawMessage `json:"fallbackPassword"`
		SessionTTL          string          `json:"sessionTtl"`
		Storage             string          `json:"storage"`
		GCPProject          string          `json:"gcpProject"`
		FirestoreDatabase   string          `json:"firestoreDatabase"`
		FirestoreCollection string          `json:"firestoreCollection"`
		EncryptionKey       json.RawMessage `json:"encryptionKey"`
	} `json:"auth"`
	Shopify struct {
		ShopURL        string          `json:"shopUrl"`
		APIVersion     string          `json:"apiVersion"`
		ClientID       json.RawMessage `json:"clientId"`
		ClientSecret   json.RawMessage `json:"clientSecret"`
		AccessToken    json.RawMessage `json:"accessToken"`
		TokenCacheFile string          `json:"tokenCacheFile"`
		Timezone       string          `json:"timezone"`
	} `json:"shopify"`
	Database struct {
		URL json.RawMessage `json:"url"`
	} `json:"database"`
}

// Load reads, resolves, and validates the config file. Secrets referenced
// via {"$env": ...} are resolved exactly once here; the returned Config is
// immutable and injected into constructors.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse builds a resolved Config from raw JSON
func Parse(data []byte) (Config, error) {
	var raw rawConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("parsing config JSON: %w", err)
	}

	if raw.Version != "" && raw.Version != "v1" {
		return Config{}, fmt.Errorf("unsupported config version: %s", raw.Version)
	}

	var cfg Config
	cfg.Server = ServerConfig{
		BaseURL: raw.Server.BaseURL,
		Addr:    raw.Server.Addr,
		Name:    raw.Server.Name,
	}

	if err := resolveAuth(&cfg, &raw); err != nil {
		return Config{}, err
	}
	if err := resolveShopify(&cfg, &raw); err != nil {
		return Config{}, err
	}

	dbURL, err := ResolveOptionalValue(raw.Database.URL)
	if err != nil {
		return Config{}, fmt.Errorf("database.url: %w", err)
	}
	cfg.Database.URL = Secret(dbURL)

	if err := Validate(&cfg); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func resolveAuth(cfg *Config, raw *rawConfig) error {
	a := &raw.Auth

	clientID, err := ResolveOptionalValue(a.GoogleClientID)
	if err != nil {
		return fmt.Errorf("auth.googleClientId: %w", err)
	}
	clientSecret, err := ResolveOptionalValue(a.GoogleClientSecret)
	if err != nil {
		return fmt.Errorf("auth.googleClientSecret: %w", err)
	}
	fallbackPassword, err := ResolveValue(a.FallbackPassword)
	if err != nil {
		return fmt.Errorf("auth.fallbackPassword: %w", err)
	}
	encryptionKey, err := ResolveOptionalValue(a.EncryptionKey)
	if err != nil {
		return fmt.Errorf("auth.encryptionKey: %w", err)
	}

	sessionTTL := 5 * time.Hour
	if a.SessionTTL != "" {
		sessionTTL, err = time.ParseDuration(a.SessionTTL)
		if err != nil {
			return fmt.Errorf("auth.sessionTtl: %w", err)
		}
	}

	username := a.FallbackUsername
	if username == "" {
		username = "admin"
	}

	storage := StorageKind(a.Storage)
	if storage == "" {
		storage = StorageMemory
	}

	cfg.Auth = AuthConfig{
		AllowedDomain:       a.AllowedDomain,
		GoogleClientID:      clientID,
		GoogleClientSecret:  Secret(clientSecret),
		GoogleRedirectURI:   a.GoogleRedirectURI,
		FallbackUsername:    username,
		SessionTTL:          sessionTTL,
		Storage:             storage,
		GCPProject:          a.GCPProject,
		FirestoreDatabase:   a.FirestoreDatabase,
		FirestoreCollection: a.FirestoreCollection,
		EncryptionKey:       Secret(encryptionKey),
	}

	// Hash the fallback password once; the plaintext is not retained.
	if fallbackPassword != "" {
		hash, err := crypto.HashPassword(fallbackPassword)
		if err != nil {
			return fmt.Errorf("hashing fallback password: %w", err)
		}
		cfg.Auth.FallbackPasswordHash = hash
	}

	return nil
}

func resolveShopify(cfg *Config, raw *rawConfig) error {
	s := &raw.Shopify

	clientID, err := ResolveOptionalValue(s.ClientID)
	if err != nil {
		return fmt.Errorf("shopify.clientId: %w", err)
	}
	clientSecret, err := ResolveOptionalValue(s.ClientSecret)
	if err != nil {
		return fmt.Errorf("shopify.clientSecret: %w", err)
	}
	accessToken, err := ResolveOptionalValue(s.AccessToken)
	if err != nil {
		return fmt.Errorf("shopify.accessToken: %w", err)
	}

	apiVersion := s.APIVersion
	if apiVersion == "" {
		apiVersion = "2026-01"
	}
	cacheFile := s.TokenCacheFile
	if cacheFile == "" {
		cacheFile = "data/token_cache.json"
	}
	timezone := s.Timezone
	if timezone == "" {
		timezone = "US/Eastern"
	}

	cfg.Shopify = ShopifyConfig{
		ShopURL:        s.ShopURL,
		APIVersion:     apiVersion,
		ClientID:       clientID,
		ClientSecret:   Secret(clientSecret),
		AccessToken:    Secret(accessToken),
		TokenCacheFile: cacheFile,
		Timezone:       timezone,
	}
	return nil
}

// Validate checks the resolved configuration
func Validate(cfg *Config) error {
	if cfg.Server.BaseURL == "" {
		return fmt.Errorf("server.baseURL is required")
	}
	if cfg.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}

	a := &cfg.Auth
	if len(cfg.Auth.FallbackPasswordHash) == 0 {
		return fmt.Errorf("auth.fallbackPassword is required")
	}
	if a.OAuthConfigured() {
		if a.GoogleRedirectURI == "" {
			return fmt.Errorf("auth.googleRedirectUri is required when Google OAuth is configured")
		}
		if a.AllowedDomain == "" {
			return fmt.Errorf("auth.allowedDomain is required when Google OAuth is configured")
		}
	}
	if a.SessionTTL <= 0 {
		return fmt.Errorf("auth.sessionTtl must be positive")
	}

	switch a.Storage {
	case StorageMemory:
	case StorageFirestore:
		if a.GCPProject == "" {
			return fmt.Errorf("auth.gcpProject is required when using firestore storage")
		}
		if len(a.EncryptionKey) != 32 {
			return fmt.Errorf("auth.encryptionKey must be exactly 32 characters when using firestore storage (got %d)", len(a.EncryptionKey))
		}
	default:
		return fmt.Errorf("auth.storage must be %q or %q, got %q", StorageMemory, StorageFirestore, a.Storage)
	}

	return nil
}

// ValidationIssue is one problem found by ValidateFile
type ValidationIssue struct {
	Path    string
	Message string
}

// ValidationResult is the outcome of ValidateFile
type ValidationResult struct {
	Errors   []ValidationIssue
	Warnings []ValidationIssue
}

// ValidateFile loads a config file and reports all problems, for the
// -validate CLI mode. Optional subsystems left unconfigured are
// warnings, not errors.
func ValidateFile(path string) (*ValidationResult, error) {
	result := &ValidationResult{}

	cfg, err := Load(path)
	if err != nil {
		result.Errors = append(result.Errors, ValidationIssue{Message: err.Error()})
		return result, nil
	}

	if !cfg.Auth.OAuthConfigured() {
		result.Warnings = append(result.Warnings, ValidationIssue{
			Path:    "auth",
			Message: "Google OAuth not configured; only password login will be available",
		})
	}
	if !cfg.Shopify.Configured() {
		result.Warnings = append(result.Warnings, ValidationIssue{
			Path:    "shopify",
			Message: "Shopify credentials not configured; order endpoints will be disabled",
		})
	}
	if cfg.Database.URL == "" {
		result.Warnings = append(result.Warnings, ValidationIssue{
			Path:    "database",
			Message: "database URL not configured; delivery endpoints will be disabled",
		})
	}
	return result, nil
}
