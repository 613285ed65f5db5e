// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package coordinator decides, for each page a visitor mounts, whether it
// renders or redirects, and runs the authentication actions the page offers.
//
// A Coordinator belongs to one visitor. Each Mount bumps the visitor's
// generation; an action whose result arrives after a newer mount reports
// Result.Stale and leaves the session cache alone.
package coordinator

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/holomush/authportal/internal/identity"
	"github.com/holomush/authportal/internal/sessionapi"
	"github.com/holomush/authportal/internal/sessioncache"
	"github.com/holomush/authportal/pkg/errutil"
)

// Session is the remote session API the coordinator drives.
// *sessionapi.Client implements it.
type Session interface {
	FetchIdentity(ctx context.Context) (*identity.Identity, error)
	Login(ctx context.Context, creds sessionapi.Credentials) error
	Logout(ctx context.Context) error
	Register(ctx context.Context, reg sessionapi.Registration) error
	RequestPasswordReset(ctx context.Context, email string) (string, error)
	ConfirmPasswordReset(ctx context.Context, reset sessionapi.PasswordReset) (string, error)
	ResendEmailVerification(ctx context.Context) (string, error)
}

// Cache is the visitor's session cache. *sessioncache.Cache implements it.
type Cache interface {
	Get() sessioncache.Snapshot
	NeedsRevalidation() bool
	Revalidate(ctx context.Context) (sessioncache.Snapshot, error)
	Set(id *identity.Identity) sessioncache.Snapshot
	Invalidate()
}

// Observer receives coordinator events. The metrics layer implements it.
type Observer interface {
	ObserveRedirect(reason string)
}

// Coordinator is one visitor's authentication state machine.
type Coordinator struct {
	session  Session
	cache    Cache
	routes   Routes
	logger   *slog.Logger
	observer Observer

	generation atomic.Uint64
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithObserver reports redirects to o.
func WithObserver(o Observer) Option {
	return func(c *Coordinator) {
		if o != nil {
			c.observer = o
		}
	}
}

// New creates a Coordinator. Empty routes fall back to DefaultRoutes.
func New(session Session, cache Cache, routes Routes, opts ...Option) *Coordinator {
	c := &Coordinator{
		session:  session,
		cache:    cache,
		routes:   routes.WithDefaults(),
		logger:   slog.Default(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Routes returns the navigation targets in use.
func (c *Coordinator) Routes() Routes {
	return c.routes
}

// Mount resolves the session for page and reconciles it. The returned
// action is never ActionResolving: when the session cannot be resolved
// the mount proceeds as a guest and Mount.Notice explains why.
func (c *Coordinator) Mount(ctx context.Context, page Page) (*Mount, Action) {
	m := &Mount{c: c, page: page, gen: c.generation.Add(1)}

	snap := c.cache.Get()
	if c.cache.NeedsRevalidation() {
		var err error
		snap, err = c.cache.Revalidate(ctx)
		if err != nil {
			errutil.LogWarnContext(ctx, c.logger, "session revalidation failed", err,
				"page", page.Path, "kind", string(sessionapi.Classify(err)))
			if !snap.Status.Resolved() {
				snap = sessioncache.Snapshot{Status: identity.StatusGuest}
				m.notice = NoticeServiceUnavailable
			}
		}
	}
	m.view = View{Status: snap.Status, Identity: snap.Identity}

	action := Reconcile(m.view, page, c.routes)
	if action.IsRedirect() {
		c.observer.ObserveRedirect(action.Reason)
		c.logger.DebugContext(ctx, "page redirect",
			"page", page.Path, "target", action.Target, "reason", action.Reason)
	}
	return m, action
}

// Logout ends the session. It ignores cancellation of ctx, does not check
// staleness and always leaves the cache resolved as guest, even when the
// remote call fails.
func (c *Coordinator) Logout(ctx context.Context) Result {
	c.generation.Add(1)
	ctx = context.WithoutCancel(ctx)

	if err := c.session.Logout(ctx); err != nil {
		errutil.LogWarnContext(ctx, c.logger, "remote logout failed; clearing local session anyway", err,
			"kind", string(sessionapi.Classify(err)))
	}
	c.cache.Set(nil)
	return Result{Redirect: c.routes.GuestLanding}
}

type nopObserver struct{}

func (nopObserver) ObserveRedirect(string) {}

// Generic notices shown instead of remote failure details.
const (
	NoticeServiceUnavailable = "We couldn't reach the sign-in service. Please try again shortly."
	NoticeLoginFailed        = "We couldn't sign you in. Check your email and password and try again."
	NoticeRegisterFailed     = "We couldn't create your account right now. Please try again."
	NoticeForgotFailed       = "We couldn't send a password reset link right now. Please try again."
	NoticeResetFailed        = "We couldn't reset your password. The link may be invalid or expired."
	NoticeResendFailed       = "We couldn't send a verification email right now. Please try again."
	NoticeRegistered         = "Registration successful! A verification email has been sent."
)
