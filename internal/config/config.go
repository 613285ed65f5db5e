// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads and validates the portal configuration.
package config

import (
	"net/url"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/authportal/internal/coordinator"
	"github.com/holomush/authportal/internal/logging"
	"github.com/holomush/authportal/internal/pagepolicy"
	"github.com/holomush/authportal/internal/sessionapi"
	"github.com/holomush/authportal/internal/sessioncache"
	"github.com/holomush/authportal/internal/visitor"
)

// Store drivers.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// minJarSecret matches visitor.NewSealer.
const minJarSecret = 16

// Config is the portal configuration.
type Config struct {
	// ListenAddr is the portal's HTTP address.
	ListenAddr string `koanf:"listen_addr" json:"listen_addr,omitempty" yaml:"listen_addr,omitempty" jsonschema:"description=Portal HTTP listen address"`
	// MetricsAddr serves /metrics and health probes. Empty disables it.
	MetricsAddr string        `koanf:"metrics_addr" json:"metrics_addr,omitempty" yaml:"metrics_addr,omitempty" jsonschema:"description=Metrics and health probe address; empty disables"`
	Log         LogConfig     `koanf:"log" json:"log,omitempty" yaml:"log,omitempty"`
	API         APIConfig     `koanf:"api" json:"api,omitempty" yaml:"api,omitempty"`
	Session     SessionConfig `koanf:"session" json:"session,omitempty" yaml:"session,omitempty"`
	Store       StoreConfig   `koanf:"store" json:"store,omitempty" yaml:"store,omitempty"`
	Routes      RoutesConfig  `koanf:"routes" json:"routes,omitempty" yaml:"routes,omitempty"`
	// Pages replaces the built-in page declarations when non-empty.
	Pages []PageConfig `koanf:"pages" json:"pages,omitempty" yaml:"pages,omitempty" jsonschema:"description=Page declarations; first match wins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format" json:"format,omitempty" yaml:"format,omitempty" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" json:"level,omitempty" yaml:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// APIConfig points at the remote session service.
type APIConfig struct {
	BaseURL    string        `koanf:"base_url" json:"base_url,omitempty" yaml:"base_url,omitempty" jsonschema:"format=uri,description=Origin of the remote session service"`
	Timeout    time.Duration `koanf:"timeout" json:"timeout,omitempty" yaml:"timeout,omitempty"`
	MaxRetries uint64        `koanf:"max_retries" json:"max_retries,omitempty" yaml:"max_retries,omitempty" jsonschema:"maximum=10"`
	RetryBase  time.Duration `koanf:"retry_base" json:"retry_base,omitempty" yaml:"retry_base,omitempty"`
}

// SessionConfig configures visitor cookies and session caching.
type SessionConfig struct {
	CookieName   string        `koanf:"cookie_name" json:"cookie_name,omitempty" yaml:"cookie_name,omitempty"`
	CookieSecure bool          `koanf:"cookie_secure" json:"cookie_secure,omitempty" yaml:"cookie_secure,omitempty"`
	IdleTTL      time.Duration `koanf:"idle_ttl" json:"idle_ttl,omitempty" yaml:"idle_ttl,omitempty" jsonschema:"description=Visitor lifetime without requests"`
	MaxAge       time.Duration `koanf:"max_age" json:"max_age,omitempty" yaml:"max_age,omitempty" jsonschema:"description=How long a resolved session is trusted before revalidation; 0 trusts it until an action changes it"`
	// JarSecret encrypts stored remote-session cookies. Empty stores them in clear.
	JarSecret string `koanf:"jar_secret" json:"jar_secret,omitempty" yaml:"jar_secret,omitempty" jsonschema:"minLength=16"`
}

// StoreConfig selects where visitor records are persisted.
type StoreConfig struct {
	Driver   string `koanf:"driver" json:"driver,omitempty" yaml:"driver,omitempty" jsonschema:"enum=memory,enum=redis"`
	RedisURL string `koanf:"redis_url" json:"redis_url,omitempty" yaml:"redis_url,omitempty"`
	Prefix   string `koanf:"prefix" json:"prefix,omitempty" yaml:"prefix,omitempty"`
}

// RoutesConfig are the portal's navigation targets.
type RoutesConfig struct {
	Home         string `koanf:"home" json:"home,omitempty" yaml:"home,omitempty"`
	Login        string `koanf:"login" json:"login,omitempty" yaml:"login,omitempty"`
	VerifyEmail  string `koanf:"verify_email" json:"verify_email,omitempty" yaml:"verify_email,omitempty"`
	GuestLanding string `koanf:"guest_landing" json:"guest_landing,omitempty" yaml:"guest_landing,omitempty"`
}

// PageConfig declares the mode of paths matching Pattern.
type PageConfig struct {
	Pattern                 string `koanf:"pattern" json:"pattern" yaml:"pattern"`
	Access                  string `koanf:"access" json:"access,omitempty" yaml:"access,omitempty" jsonschema:"enum=unrestricted,enum=guest-only,enum=auth-only"`
	RedirectIfAuthenticated string `koanf:"redirect_if_authenticated" json:"redirect_if_authenticated,omitempty" yaml:"redirect_if_authenticated,omitempty"`
	RequireVerified         bool   `koanf:"require_verified" json:"require_verified,omitempty" yaml:"require_verified,omitempty"`
}

// Default returns the built-in configuration. API.BaseURL has no default.
func Default() Config {
	routes := coordinator.DefaultRoutes()
	return Config{
		ListenAddr:  "127.0.0.1:8080",
		MetricsAddr: "127.0.0.1:9100",
		Log:         LogConfig{Format: logging.FormatJSON, Level: "info"},
		API: APIConfig{
			Timeout:    sessionapi.DefaultTimeout,
			MaxRetries: sessionapi.DefaultMaxRetries,
			RetryBase:  sessionapi.DefaultRetryBase,
		},
		Session: SessionConfig{
			CookieName: visitor.DefaultCookieName,
			IdleTTL:    visitor.DefaultIdleTTL,
			MaxAge:     time.Minute,
		},
		Store: StoreConfig{Driver: StoreMemory, Prefix: visitor.DefaultRedisPrefix},
		Routes: RoutesConfig{
			Home:         routes.Home,
			Login:        routes.Login,
			VerifyEmail:  routes.VerifyEmail,
			GuestLanding: routes.GuestLanding,
		},
	}
}

// Validate checks the configuration. It reports the first problem found.
func (c *Config) Validate() error {
	errb := oops.In("config").Code("CONFIG_INVALID")

	if c.ListenAddr == "" {
		return errb.With("field", "listen_addr").Errorf("listen_addr is required")
	}
	if !logging.ValidFormat(c.Log.Format) {
		return errb.With("field", "log.format").With("value", c.Log.Format).Errorf("log.format must be json or text")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return errb.With("field", "log.level").Wrap(err)
	}

	if c.API.BaseURL == "" {
		return errb.With("field", "api.base_url").Errorf("api.base_url is required")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errb.With("field", "api.base_url").With("value", c.API.BaseURL).
			Errorf("api.base_url must be an absolute http(s) URL")
	}
	if c.API.Timeout < 0 || c.API.RetryBase < 0 {
		return errb.With("field", "api").Errorf("api durations must not be negative")
	}

	if c.Session.IdleTTL < 0 || c.Session.MaxAge < 0 {
		return errb.With("field", "session").Errorf("session durations must not be negative")
	}
	if c.Session.JarSecret != "" && len(c.Session.JarSecret) < minJarSecret {
		return errb.With("field", "session.jar_secret").With("min_length", minJarSecret).
			Errorf("session.jar_secret must be at least %d characters", minJarSecret)
	}

	switch c.Store.Driver {
	case "", StoreMemory:
	case StoreRedis:
		if c.Store.RedisURL == "" {
			return errb.With("field", "store.redis_url").Errorf("store.redis_url is required for the redis driver")
		}
	default:
		return errb.With("field", "store.driver").With("value", c.Store.Driver).
			Errorf("store.driver must be memory or redis")
	}

	for field, route := range map[string]string{
		"routes.home":          c.Routes.Home,
		"routes.login":         c.Routes.Login,
		"routes.verify_email":  c.Routes.VerifyEmail,
		"routes.guest_landing": c.Routes.GuestLanding,
	} {
		if route != "" && !strings.HasPrefix(route, "/") {
			return errb.With("field", field).With("value", route).Errorf("%s must be an absolute path", field)
		}
	}

	if _, err := c.PageTable(); err != nil {
		return errb.With("field", "pages").Wrap(err)
	}
	return nil
}

// SessionAPI returns the remote client configuration.
func (c *Config) SessionAPI() sessionapi.Config {
	return sessionapi.Config{
		BaseURL:    c.API.BaseURL,
		Timeout:    c.API.Timeout,
		MaxRetries: c.API.MaxRetries,
		RetryBase:  c.API.RetryBase,
	}
}

// CoordinatorRoutes returns the navigation targets with defaults filled in.
func (c *Config) CoordinatorRoutes() coordinator.Routes {
	return coordinator.Routes{
		Home:         c.Routes.Home,
		Login:        c.Routes.Login,
		VerifyEmail:  c.Routes.VerifyEmail,
		GuestLanding: c.Routes.GuestLanding,
	}.WithDefaults()
}

// Visitors returns the visitor registry configuration.
func (c *Config) Visitors() visitor.Config {
	return visitor.Config{
		API:         c.SessionAPI(),
		CachePolicy: sessioncache.Policy{MaxAge: c.Session.MaxAge},
		Routes:      c.CoordinatorRoutes(),
		IdleTTL:     c.Session.IdleTTL,
	}
}

// CookieOptions returns the portal cookie settings.
func (c *Config) CookieOptions() visitor.CookieOptions {
	return visitor.CookieOptions{
		Name:   c.Session.CookieName,
		Secure: c.Session.CookieSecure,
	}
}

// PageTable compiles Pages, or the built-in rules when none are configured.
func (c *Config) PageTable() (*pagepolicy.Table, error) {
	if len(c.Pages) == 0 {
		return pagepolicy.New(pagepolicy.DefaultRules())
	}
	rules := make([]pagepolicy.Rule, 0, len(c.Pages))
	for i, p := range c.Pages {
		access, err := coordinator.ParseAccess(p.Access)
		if err != nil {
			return nil, oops.With("page", i).With("pattern", p.Pattern).Wrap(err)
		}
		rules = append(rules, pagepolicy.Rule{
			Pattern: p.Pattern,
			Mode: coordinator.PageMode{
				Access:                  access,
				RedirectIfAuthenticated: p.RedirectIfAuthenticated,
				RequireVerified:         p.RequireVerified,
			},
		})
	}
	return pagepolicy.New(rules)
}
