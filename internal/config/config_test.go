// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/authportal/internal/config"
	"github.com/holomush/authportal/internal/coordinator"
	"github.com/holomush/authportal/pkg/errutil"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func valid() config.Config {
	cfg := config.Default()
	cfg.API.BaseURL = "https://api.example.com"
	return cfg
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
listen_addr: ":9000"
api:
  base_url: https://api.example.com
  timeout: 3s
session:
  max_age: 30s
  cookie_secure: true
store:
  driver: redis
  redis_url: redis://localhost:6379/0
pages:
  - pattern: /account/**
    access: auth-only
    require_verified: true
`)

	cfg, err := config.Load(path, true, nil)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, "https://api.example.com", cfg.API.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.API.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Session.MaxAge)
	assert.True(t, cfg.Session.CookieSecure)
	assert.Equal(t, config.StoreRedis, cfg.Store.Driver)
	require.Len(t, cfg.Pages, 1)
	assert.Equal(t, "auth-only", cfg.Pages[0].Access)

	// untouched keys keep their defaults
	assert.Equal(t, config.Default().MetricsAddr, cfg.MetricsAddr)
	assert.Equal(t, config.Default().Session.IdleTTL, cfg.Session.IdleTTL)
	require.NoError(t, cfg.Validate())
}

func TestLoad_FlagsOverrideFile(t *testing.T) {
	path := writeFile(t, "listen_addr: \":9000\"\nlog:\n  format: text\n")
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.RegisterFlags(flags)
	require.NoError(t, flags.Parse([]string{"--listen-addr", ":7000", "--api-base-url", "http://remote:8000", "--api-timeout", "4s"}))

	cfg, err := config.Load(path, true, flags)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.ListenAddr)
	assert.Equal(t, "http://remote:8000", cfg.API.BaseURL)
	assert.Equal(t, 4*time.Second, cfg.API.Timeout)
	assert.Equal(t, "text", cfg.Log.Format, "unset flag must not override the file")
}

func TestLoad_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	cfg, err := config.Load(missing, false, nil)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), *cfg)

	_, err = config.Load(missing, true, nil)
	errutil.AssertErrorCode(t, err, "CONFIG_LOAD_FAILED")
}

func TestLoad_MalformedFile(t *testing.T) {
	path := writeFile(t, "listen_addr: [unterminated\n")

	_, err := config.Load(path, false, nil)

	errutil.AssertErrorCode(t, err, "CONFIG_LOAD_FAILED")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		field  string
	}{
		{"missing listen addr", func(c *config.Config) { c.ListenAddr = "" }, "listen_addr"},
		{"bad log format", func(c *config.Config) { c.Log.Format = "xml" }, "log.format"},
		{"missing base url", func(c *config.Config) { c.API.BaseURL = "" }, "api.base_url"},
		{"relative base url", func(c *config.Config) { c.API.BaseURL = "/api" }, "api.base_url"},
		{"ftp base url", func(c *config.Config) { c.API.BaseURL = "ftp://example.com" }, "api.base_url"},
		{"negative timeout", func(c *config.Config) { c.API.Timeout = -time.Second }, "api"},
		{"negative max age", func(c *config.Config) { c.Session.MaxAge = -time.Second }, "session"},
		{"short jar secret", func(c *config.Config) { c.Session.JarSecret = "short" }, "session.jar_secret"},
		{"redis without url", func(c *config.Config) { c.Store.Driver = config.StoreRedis }, "store.redis_url"},
		{"unknown driver", func(c *config.Config) { c.Store.Driver = "etcd" }, "store.driver"},
		{"relative route", func(c *config.Config) { c.Routes.Home = "dashboard" }, "routes.home"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)

			err := cfg.Validate()

			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
			errutil.AssertErrorContext(t, err, "field", tt.field)
		})
	}
}

func TestValidate_WrapsNestedCauses(t *testing.T) {
	cfg := valid()
	cfg.Log.Level = "loud"
	errutil.AssertErrorContext(t, cfg.Validate(), "field", "log.level")

	cfg = valid()
	cfg.Pages = []config.PageConfig{{Pattern: "/x", Access: "admins-only"}}
	err := cfg.Validate()
	errutil.AssertErrorContext(t, err, "field", "pages")
	errutil.AssertErrorCode(t, err, "INVALID_PAGE_ACCESS")

	cfg = valid()
	cfg.Pages = []config.PageConfig{{Pattern: "no-slash"}}
	errutil.AssertErrorCode(t, cfg.Validate(), "INVALID_PAGE_PATTERN")
}

func TestValidate_Defaults(t *testing.T) {
	cfg := valid()
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Conversions(t *testing.T) {
	cfg := valid()
	cfg.Routes.Home = "/home"
	cfg.Routes.Login = ""
	cfg.Session.MaxAge = 45 * time.Second
	cfg.Session.IdleTTL = time.Hour
	cfg.Session.CookieName = "__Host-portal"

	api := cfg.SessionAPI()
	assert.Equal(t, "https://api.example.com", api.BaseURL)
	assert.Equal(t, cfg.API.Timeout, api.Timeout)

	routes := cfg.CoordinatorRoutes()
	assert.Equal(t, "/home", routes.Home)
	assert.Equal(t, coordinator.DefaultRoutes().Login, routes.Login)

	v := cfg.Visitors()
	assert.Equal(t, 45*time.Second, v.CachePolicy.MaxAge)
	assert.Equal(t, time.Hour, v.IdleTTL)
	assert.Equal(t, routes, v.Routes)

	assert.Equal(t, "__Host-portal", cfg.CookieOptions().Name)
}

func TestConfig_PageTable(t *testing.T) {
	cfg := valid()
	table, err := cfg.PageTable()
	require.NoError(t, err)
	assert.Equal(t, coordinator.AccessGuestOnly, table.Lookup("/login").Mode.Access)

	cfg.Pages = []config.PageConfig{
		{Pattern: "/members/**", Access: "auth-only", RequireVerified: true},
		{Pattern: "/join", Access: "guest-only", RedirectIfAuthenticated: "/members/home"},
	}
	table, err = cfg.PageTable()
	require.NoError(t, err)

	members := table.Lookup("/members/a/b")
	assert.Equal(t, coordinator.AccessAuthOnly, members.Mode.Access)
	assert.True(t, members.Mode.RequireVerified)
	assert.Equal(t, "/members/home", table.Lookup("/join").Mode.RedirectIfAuthenticated)
	assert.Equal(t, coordinator.AccessUnrestricted, table.Lookup("/login").Mode.Access)
}

func TestConfig_YAMLRoundTrip(t *testing.T) {
	cfg := valid()
	cfg.Pages = []config.PageConfig{{Pattern: "/x/**", Access: "auth-only"}}

	data, err := cfg.YAML()
	require.NoError(t, err)
	require.NoError(t, config.ValidateYAML(data))

	loaded, err := config.Load(writeFile(t, string(data)), true, nil)
	require.NoError(t, err)
	assert.Equal(t, cfg, *loaded)
}
