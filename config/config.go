// Package config loads and validates the gateway configuration from
// defaults, an optional YAML file, and GATEHOUSE_* environment variables,
// in that order of precedence (env highest).
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"gatehouse.yaml",
	"gatehouse.yml",
	"/etc/gatehouse/gatehouse.yaml",
	"/etc/gatehouse/gatehouse.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "GATEHOUSE_CONFIG"

// envPrefix is stripped from environment variables before mapping them to
// config paths: GATEHOUSE_SESSION_SECRET -> session.secret.
const envPrefix = "GATEHOUSE_"

// Config is the full configuration surface of the gateway.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Auth    AuthConfig    `koanf:"auth"`
	Session SessionConfig `koanf:"session"`
	Tokens  TokenConfig   `koanf:"tokens"`
	Proxy   ProxyConfig   `koanf:"proxy"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
	// Environment is "production" or "development". Production forces the
	// Secure attribute on the session cookie.
	Environment string `koanf:"environment"`
}

// AuthConfig holds the single interactive credential.
type AuthConfig struct {
	Username string `koanf:"username"`
	// PasswordHash is a bcrypt hash (generate one with `gatehouse hash`).
	PasswordHash string `koanf:"password_hash"`
	// Password is a plaintext bootstrap fallback: when set and PasswordHash
	// is empty, a hash is derived once at startup and the plaintext is
	// wiped. It is never persisted.
	Password string `koanf:"password"`
}

// SessionConfig controls the session store and cookie.
type SessionConfig struct {
	// Secret keys the HMAC that protects session cookie integrity.
	// The process refuses to start without it.
	Secret     string        `koanf:"secret"`
	CookieName string        `koanf:"cookie_name"`
	Lifetime   time.Duration `koanf:"lifetime"`
	// Store selects the session backend: "memory" or "bbolt".
	Store     string `koanf:"store"`
	StorePath string `koanf:"store_path"`
}

// TokenConfig configures the non-interactive API token bypass.
type TokenConfig struct {
	// Values is the set of accepted bearer tokens.
	Values []string `koanf:"values"`
	// Header is the request header the token is read from.
	Header string `koanf:"header"`
	// PathPrefixes limits token access to paths under these prefixes.
	PathPrefixes []string `koanf:"path_prefixes"`
}

// ProxyConfig names the headers the reverse proxy uses to describe the
// original request on forward-auth sub-requests.
type ProxyConfig struct {
	ForwardedURIHeader    string `koanf:"forwarded_uri_header"`
	ForwardedMethodHeader string `koanf:"forwarded_method_header"`
	IdentityHeader        string `koanf:"identity_header"`
}

// Environment values.
const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

// Session store backends.
const (
	StoreMemory = "memory"
	StoreBbolt  = "bbolt"
)

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        9091,
			Environment: EnvProduction,
		},
		Auth: AuthConfig{
			Username: "",
		},
		Session: SessionConfig{
			CookieName: "gatehouse_session",
			Lifetime:   8 * time.Hour,
			Store:      "memory",
			StorePath:  "/data/sessions.db",
		},
		Tokens: TokenConfig{
			Header: "X-Gatehouse-Token",
		},
		Proxy: ProxyConfig{
			ForwardedURIHeader:    "X-Forwarded-Uri",
			ForwardedMethodHeader: "X-Forwarded-Method",
			IdentityHeader:        "X-Gatehouse-User",
		},
	}
}

// Load builds the configuration from layered sources: struct defaults,
// then an optional YAML file, then environment variables.
func Load() (*Config, error) {
	return loadFrom(findConfigFile())
}

// LoadFile builds the configuration using the given YAML file (which must
// exist) layered over defaults, with environment variables on top.
func LoadFile(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return loadFrom(path)
}

func loadFrom(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransform maps GATEHOUSE_* variable names to config paths.
// Unknown variables are dropped so stray environment entries cannot
// pollute the configuration.
func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))

	mappings := map[string]string{
		"host":        "server.host",
		"port":        "server.port",
		"environment": "server.environment",

		"username":      "auth.username",
		"password_hash": "auth.password_hash",
		"password":      "auth.password",

		"session_secret":      "session.secret",
		"session_cookie_name": "session.cookie_name",
		"session_lifetime":    "session.lifetime",
		"session_store":       "session.store",
		"session_store_path":  "session.store_path",

		"api_tokens":          "tokens.values",
		"token_header":        "tokens.header",
		"token_path_prefixes": "tokens.path_prefixes",

		"forwarded_uri_header":    "proxy.forwarded_uri_header",
		"forwarded_method_header": "proxy.forwarded_method_header",
		"identity_header":         "proxy.identity_header",
	}
	if mapped, ok := mappings[key]; ok {
		return mapped
	}
	return ""
}

// sliceConfigPaths are paths that accept a comma-separated string from the
// environment in place of a YAML list.
var sliceConfigPaths = []string{
	"tokens.values",
	"tokens.path_prefixes",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("setting %s: %w", path, err)
		}
	}
	return nil
}

// Validate rejects configurations the gateway cannot serve safely.
// A missing password hash is deliberately NOT an error here: the process
// must come up so operators can reach the health endpoint and diagnose;
// the verifier warns loudly and fails every login instead.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	switch c.Server.Environment {
	case EnvProduction, EnvDevelopment:
	default:
		return fmt.Errorf("server.environment must be %q or %q, got %q",
			EnvProduction, EnvDevelopment, c.Server.Environment)
	}

	// A weak or absent session secret undermines every session the gateway
	// will ever issue, so this one is fatal.
	if c.Session.Secret == "" {
		return errors.New("session.secret is required")
	}
	if len(c.Session.Secret) < 16 {
		return errors.New("session.secret must be at least 16 characters")
	}
	if c.Session.CookieName == "" {
		return errors.New("session.cookie_name must not be empty")
	}
	if c.Session.Lifetime <= 0 {
		return errors.New("session.lifetime must be positive")
	}
	switch c.Session.Store {
	case StoreMemory:
	case StoreBbolt:
		if c.Session.StorePath == "" {
			return errors.New("session.store_path is required for the bbolt store")
		}
	default:
		return fmt.Errorf("session.store must be %q or %q, got %q", StoreMemory, StoreBbolt, c.Session.Store)
	}

	for _, tok := range c.Tokens.Values {
		if tok == "" {
			return errors.New("tokens.values must not contain empty tokens")
		}
	}
	if len(c.Tokens.Values) > 0 && len(c.Tokens.PathPrefixes) == 0 {
		return errors.New("tokens.path_prefixes is required when tokens.values is set")
	}
	for _, prefix := range c.Tokens.PathPrefixes {
		if !strings.HasPrefix(prefix, "/") {
			return fmt.Errorf("token path prefix %q must start with /", prefix)
		}
	}

	if c.Tokens.Header == "" {
		return errors.New("tokens.header must not be empty")
	}
	if c.Proxy.ForwardedURIHeader == "" || c.Proxy.ForwardedMethodHeader == "" || c.Proxy.IdentityHeader == "" {
		return errors.New("proxy header names must not be empty")
	}
	return nil
}

// IsProduction reports whether the gateway runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == EnvProduction
}
