package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/gatehouse/config"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GATEHOUSE_SESSION_SECRET", testSecret)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9091, cfg.Server.Port)
	assert.Equal(t, config.EnvProduction, cfg.Server.Environment)
	assert.Equal(t, "gatehouse_session", cfg.Session.CookieName)
	assert.Equal(t, 8*time.Hour, cfg.Session.Lifetime)
	assert.Equal(t, config.StoreMemory, cfg.Session.Store)
	assert.Equal(t, "X-Gatehouse-Token", cfg.Tokens.Header)
	assert.Equal(t, "X-Forwarded-Uri", cfg.Proxy.ForwardedURIHeader)
	assert.Equal(t, "X-Gatehouse-User", cfg.Proxy.IdentityHeader)
	assert.True(t, cfg.IsProduction())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("GATEHOUSE_SESSION_SECRET", testSecret)
	t.Setenv("GATEHOUSE_PORT", "8080")
	t.Setenv("GATEHOUSE_ENVIRONMENT", config.EnvDevelopment)
	t.Setenv("GATEHOUSE_USERNAME", "admin")
	t.Setenv("GATEHOUSE_SESSION_LIFETIME", "2h")
	t.Setenv("GATEHOUSE_API_TOKENS", "tok-one, tok-two,tok-three")
	t.Setenv("GATEHOUSE_TOKEN_PATH_PREFIXES", "/api/,/export/")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, config.EnvDevelopment, cfg.Server.Environment)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, "admin", cfg.Auth.Username)
	assert.Equal(t, 2*time.Hour, cfg.Session.Lifetime)
	assert.Equal(t, []string{"tok-one", "tok-two", "tok-three"}, cfg.Tokens.Values)
	assert.Equal(t, []string{"/api/", "/export/"}, cfg.Tokens.PathPrefixes)
}

func TestLoadIgnoresUnknownEnvVars(t *testing.T) {
	t.Setenv("GATEHOUSE_SESSION_SECRET", testSecret)
	t.Setenv("GATEHOUSE_TOTALLY_UNKNOWN", "value")

	_, err := config.Load()
	assert.NoError(t, err)
}

func TestLoadFile(t *testing.T) {
	t.Setenv("GATEHOUSE_SESSION_SECRET", testSecret)

	path := filepath.Join(t.TempDir(), "gatehouse.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 7070
  environment: development
auth:
  username: operator
session:
  cookie_name: op_session
`), 0o600))

	cfg, err := config.LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "operator", cfg.Auth.Username)
	assert.Equal(t, "op_session", cfg.Session.CookieName)
	// Untouched keys keep their defaults.
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
}

func TestLoadFileEnvWins(t *testing.T) {
	t.Setenv("GATEHOUSE_SESSION_SECRET", testSecret)
	t.Setenv("GATEHOUSE_PORT", "9999")

	path := filepath.Join(t.TempDir(), "gatehouse.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 7070\n"), 0o600))

	cfg, err := config.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := config.LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *config.Config {
		return &config.Config{
			Server: config.ServerConfig{
				Host:        "0.0.0.0",
				Port:        9091,
				Environment: config.EnvProduction,
			},
			Session: config.SessionConfig{
				Secret:     testSecret,
				CookieName: "gatehouse_session",
				Lifetime:   8 * time.Hour,
				Store:      config.StoreMemory,
			},
			Tokens: config.TokenConfig{
				Header: "X-Gatehouse-Token",
			},
			Proxy: config.ProxyConfig{
				ForwardedURIHeader:    "X-Forwarded-Uri",
				ForwardedMethodHeader: "X-Forwarded-Method",
				IdentityHeader:        "X-Gatehouse-User",
			},
		}
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{name: "missing session secret", mutate: func(c *config.Config) { c.Session.Secret = "" }},
		{name: "short session secret", mutate: func(c *config.Config) { c.Session.Secret = "short" }},
		{name: "port out of range", mutate: func(c *config.Config) { c.Server.Port = 70000 }},
		{name: "bad environment", mutate: func(c *config.Config) { c.Server.Environment = "staging" }},
		{name: "bad store", mutate: func(c *config.Config) { c.Session.Store = "redis" }},
		{name: "bbolt without path", mutate: func(c *config.Config) { c.Session.Store = config.StoreBbolt }},
		{name: "zero lifetime", mutate: func(c *config.Config) { c.Session.Lifetime = 0 }},
		{name: "empty cookie name", mutate: func(c *config.Config) { c.Session.CookieName = "" }},
		{name: "tokens without prefixes", mutate: func(c *config.Config) { c.Tokens.Values = []string{"tok"} }},
		{name: "empty token", mutate: func(c *config.Config) {
			c.Tokens.Values = []string{""}
			c.Tokens.PathPrefixes = []string{"/api/"}
		}},
		{name: "relative prefix", mutate: func(c *config.Config) {
			c.Tokens.Values = []string{"tok"}
			c.Tokens.PathPrefixes = []string{"api/"}
		}},
		{name: "empty token header", mutate: func(c *config.Config) { c.Tokens.Header = "" }},
		{name: "empty identity header", mutate: func(c *config.Config) { c.Proxy.IdentityHeader = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

// Missing credentials must not keep the process from starting; the
// verifier handles that case at login time instead.
func TestValidateAllowsMissingCredentials(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{
			Host:        "0.0.0.0",
			Port:        9091,
			Environment: config.EnvProduction,
		},
		Session: config.SessionConfig{
			Secret:     testSecret,
			CookieName: "gatehouse_session",
			Lifetime:   8 * time.Hour,
			Store:      config.StoreMemory,
		},
		Tokens: config.TokenConfig{
			Header: "X-Gatehouse-Token",
		},
		Proxy: config.ProxyConfig{
			ForwardedURIHeader:    "X-Forwarded-Uri",
			ForwardedMethodHeader: "X-Forwarded-Method",
			IdentityHeader:        "X-Gatehouse-User",
		},
	}
	assert.NoError(t, cfg.Validate())
}

func TestDefaultConfigPathsSearched(t *testing.T) {
	t.Setenv("GATEHOUSE_SESSION_SECRET", testSecret)

	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 6060\n"), 0o600))
	t.Setenv("GATEHOUSE_CONFIG", path)

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 6060, cfg.Server.Port)
}
