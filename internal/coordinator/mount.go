// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package coordinator

import (
	"context"

	"github.com/holomush/authportal/internal/identity"
	"github.com/holomush/authportal/internal/sessionapi"
	"github.com/holomush/authportal/pkg/errutil"
)

// Mount is one page mount for a visitor. It exposes the resolved session
// and the actions the page may run.
type Mount struct {
	c      *Coordinator
	page   Page
	gen    uint64
	view   View
	notice string
}

// Page returns the mounted page.
func (m *Mount) Page() Page { return m.page }

// Status returns the session status the page was reconciled with.
func (m *Mount) Status() identity.Status { return m.view.Status }

// Identity returns the authenticated identity, or nil for guests.
func (m *Mount) Identity() *identity.Identity { return m.view.Identity }

// Notice returns the generic notice set when the session could not be resolved.
func (m *Mount) Notice() string { return m.notice }

// Current reports whether no newer mount of the same visitor has happened.
func (m *Mount) Current() bool {
	return m.c.generation.Load() == m.gen
}

// Result is the outcome of an action.
type Result struct {
	// FieldErrors are per-field messages to render next to the form.
	FieldErrors identity.FieldErrors

	// Notice is a generic failure message for the whole form.
	Notice string

	// Status is a StatusMessage for the current page.
	Status string

	// Redirect is the navigation target, when the action navigates.
	Redirect string

	// Stale is set when a newer mount superseded this one while the action
	// was in flight. Nothing else is set and the cache was not touched.
	Stale bool
}

// Failed reports whether the result carries field errors or a notice.
func (r Result) Failed() bool {
	return r.Notice != "" || !r.FieldErrors.Empty()
}

// Login signs the visitor in.
func (m *Mount) Login(ctx context.Context, form LoginForm) Result {
	if fe := form.Validate(); !fe.Empty() {
		return Result{FieldErrors: fe}
	}

	err := m.c.session.Login(ctx, sessionapi.Credentials{
		Email:    form.Email,
		Password: form.Password,
		Remember: form.Remember,
	})
	if r, done := m.settle(ctx, sessionapi.OpLogin, err, NoticeLoginFailed); done {
		return r
	}

	if !m.refreshIdentity(ctx) {
		return Result{Stale: true}
	}
	return Result{Redirect: afterAuthentication(m.page, m.c.routes)}
}

// Register creates an account and signs the visitor in.
func (m *Mount) Register(ctx context.Context, form RegisterForm) Result {
	if fe := form.Validate(); !fe.Empty() {
		return Result{FieldErrors: fe}
	}

	err := m.c.session.Register(ctx, sessionapi.Registration{
		Name:                 form.Name,
		Email:                form.Email,
		Password:             form.Password,
		PasswordConfirmation: form.PasswordConfirmation,
	})
	if r, done := m.settle(ctx, sessionapi.OpRegister, err, NoticeRegisterFailed); done {
		return r
	}

	if !m.refreshIdentity(ctx) {
		return Result{Stale: true}
	}
	return Result{Redirect: EncodeStatus(afterAuthentication(m.page, m.c.routes), NoticeRegistered)}
}

// ForgotPassword asks the remote service to email a reset link. The
// service's status string is returned for the current page.
func (m *Mount) ForgotPassword(ctx context.Context, form ForgotPasswordForm) Result {
	if fe := form.Validate(); !fe.Empty() {
		return Result{FieldErrors: fe}
	}

	status, err := m.c.session.RequestPasswordReset(ctx, form.Email)
	if r, done := m.settle(ctx, sessionapi.OpRequestPasswordReset, err, NoticeForgotFailed); done {
		return r
	}
	return Result{Status: status}
}

// ResetPassword completes a password reset. On success the visitor is sent
// to the login page with the service's status message encoded in the target.
func (m *Mount) ResetPassword(ctx context.Context, form ResetPasswordForm) Result {
	if fe := form.Validate(); !fe.Empty() {
		return Result{FieldErrors: fe}
	}

	status, err := m.c.session.ConfirmPasswordReset(ctx, sessionapi.PasswordReset{
		Token:                form.Token,
		Email:                form.Email,
		Password:             form.Password,
		PasswordConfirmation: form.PasswordConfirmation,
	})
	if r, done := m.settle(ctx, sessionapi.OpConfirmPasswordReset, err, NoticeResetFailed); done {
		return r
	}
	return Result{Redirect: EncodeStatus(m.c.routes.Login, status)}
}

// ResendVerification asks the remote service to send another verification
// email.
func (m *Mount) ResendVerification(ctx context.Context) Result {
	status, err := m.c.session.ResendEmailVerification(ctx)
	if r, done := m.settle(ctx, sessionapi.OpResendEmailVerification, err, NoticeResendFailed); done {
		return r
	}
	return Result{Status: status}
}

// settle handles the shared part of the action envelope once the remote call
// has returned. done is false only for a successful call on a current mount.
func (m *Mount) settle(ctx context.Context, op string, err error, notice string) (Result, bool) {
	if !m.Current() {
		m.c.logger.DebugContext(ctx, "discarding result of superseded mount",
			"operation", op, "page", m.page.Path)
		return Result{Stale: true}, true
	}
	if err == nil {
		return Result{}, false
	}

	kind := sessionapi.Classify(err)
	if kind == sessionapi.KindValidation {
		if fe := sessionapi.FieldsOf(err); !fe.Empty() {
			return Result{FieldErrors: fe}, true
		}
	}

	errutil.LogWarnContext(ctx, m.c.logger, "authentication action failed", err,
		"operation", op, "kind", string(kind), "page", m.page.Path)
	return Result{Notice: notice}, true
}

// refreshIdentity loads the identity after a login or registration and
// writes it to the cache. It reports false when the mount was superseded
// while fetching.
func (m *Mount) refreshIdentity(ctx context.Context) bool {
	id, err := m.c.session.FetchIdentity(ctx)
	if !m.Current() {
		return false
	}
	if err != nil {
		errutil.LogWarnContext(ctx, m.c.logger, "identity fetch after sign-in failed; next page will revalidate", err,
			"kind", string(sessionapi.Classify(err)))
		m.c.cache.Invalidate()
		return true
	}
	m.c.cache.Set(id)
	return true
}
