// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package sessionapi

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"

	"github.com/holomush/authportal/internal/identity"
)

// Remote endpoints.
const (
	PathCSRFCookie         = "/sanctum/csrf-cookie"
	PathUser               = "/api/user"
	PathLogin              = "/login"
	PathLogout             = "/logout"
	PathRegister           = "/register"
	PathForgotPassword     = "/forgot-password"
	PathResetPassword      = "/reset-password"
	PathVerificationNotice = "/email/verification-notification"
)

// Operation names used in spans, logs and metrics.
const (
	OpPrimeCSRF               = "prime_csrf"
	OpFetchIdentity           = "fetch_identity"
	OpLogin                   = "login"
	OpLogout                  = "logout"
	OpRegister                = "register"
	OpRequestPasswordReset    = "request_password_reset"
	OpConfirmPasswordReset    = "confirm_password_reset"
	OpResendEmailVerification = "resend_email_verification"
)

// Credentials is the login payload.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Remember bool   `json:"remember"`
}

// Registration is the sign-up payload.
type Registration struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

// PasswordReset is the payload that completes a password reset.
type PasswordReset struct {
	Token                string `json:"token"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

// PrimeCSRF asks the remote service to set the XSRF-TOKEN cookie.
func (c *Client) PrimeCSRF(ctx context.Context) error {
	return c.instrument(ctx, OpPrimeCSRF, http.MethodGet, PathCSRFCookie, func(ctx context.Context) error {
		resp, err := c.get(ctx, OpPrimeCSRF, PathCSRFCookie)
		if err != nil {
			return wrap(asFailure(err))
		}
		if resp.status < 200 || resp.status > 299 {
			return wrap(unexpected(OpPrimeCSRF, resp))
		}
		if c.xsrfToken() == "" {
			return wrap(&Failure{Kind: KindTransport, Op: OpPrimeCSRF, StatusCode: resp.status,
				Message: "response did not set " + XSRFCookieName})
		}
		return nil
	})
}

// FetchIdentity returns the authenticated user of the current remote
// session, or ErrNotAuthenticated.
//
// A 409 means the session is authenticated but the email address is not
// verified and the service withholds the profile; an empty unverified
// Identity is returned so callers route the visitor to verification.
func (c *Client) FetchIdentity(ctx context.Context) (*identity.Identity, error) {
	var id *identity.Identity
	err := c.instrument(ctx, OpFetchIdentity, http.MethodGet, PathUser, func(ctx context.Context) error {
		resp, err := c.get(ctx, OpFetchIdentity, PathUser)
		if err != nil {
			return wrap(asFailure(err))
		}
		switch resp.status {
		case http.StatusOK:
			var decoded identity.Identity
			if err := json.Unmarshal(resp.body, &decoded); err != nil {
				return wrap(&Failure{Kind: KindTransport, Op: OpFetchIdentity, StatusCode: resp.status,
					Message: "malformed identity", Err: err})
			}
			id = &decoded
			return nil
		case http.StatusConflict:
			id = &identity.Identity{}
			return nil
		case http.StatusUnauthorized, statusCSRFMismatch:
			return ErrNotAuthenticated
		default:
			return wrap(unexpected(OpFetchIdentity, resp))
		}
	})
	if err != nil {
		return nil, err
	}
	return id, nil
}

// Login authenticates the remote session.
func (c *Client) Login(ctx context.Context, creds Credentials) error {
	return c.instrument(ctx, OpLogin, http.MethodPost, PathLogin, func(ctx context.Context) error {
		resp, err := c.post(ctx, OpLogin, PathLogin, creds)
		if err != nil {
			return wrapOnce(err)
		}
		switch resp.status {
		case http.StatusOK, http.StatusNoContent:
			return nil
		case http.StatusUnprocessableEntity:
			// Rejected and throttled credentials come back keyed on email
			// alone; a malformed email never leaves the portal.
			return wrap(reclassify(validation(OpLogin, resp), KindInvalidCredentials, "email"))
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
			return wrap(&Failure{Kind: KindInvalidCredentials, Op: OpLogin, StatusCode: resp.status,
				Message: resp.envelope().Message})
		default:
			return wrap(unexpected(OpLogin, resp))
		}
	})
}

// Logout ends the remote session. An already-ended session (401) counts
// as success. The CSRF gate is reset because the service rotates the token.
func (c *Client) Logout(ctx context.Context) error {
	return c.instrument(ctx, OpLogout, http.MethodPost, PathLogout, func(ctx context.Context) error {
		resp, err := c.post(ctx, OpLogout, PathLogout, nil)
		if err != nil {
			return wrapOnce(err)
		}
		c.csrf.reset()
		switch resp.status {
		case http.StatusOK, http.StatusNoContent, http.StatusUnauthorized:
			return nil
		default:
			return wrap(unexpected(OpLogout, resp))
		}
	})
}

// Register creates an account. On success the remote session is
// authenticated as the new user.
func (c *Client) Register(ctx context.Context, reg Registration) error {
	return c.instrument(ctx, OpRegister, http.MethodPost, PathRegister, func(ctx context.Context) error {
		resp, err := c.post(ctx, OpRegister, PathRegister, reg)
		if err != nil {
			return wrapOnce(err)
		}
		switch resp.status {
		case http.StatusOK, http.StatusCreated, http.StatusNoContent:
			return nil
		case http.StatusUnprocessableEntity:
			return wrap(validation(OpRegister, resp))
		default:
			return wrap(unexpected(OpRegister, resp))
		}
	})
}

// RequestPasswordReset asks the service to email a reset link and returns
// its status string.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	var status string
	err := c.instrument(ctx, OpRequestPasswordReset, http.MethodPost, PathForgotPassword, func(ctx context.Context) error {
		resp, err := c.post(ctx, OpRequestPasswordReset, PathForgotPassword, map[string]string{"email": email})
		if err != nil {
			return wrapOnce(err)
		}
		switch resp.status {
		case http.StatusOK:
			status = resp.envelope().Status
			return nil
		case http.StatusUnprocessableEntity:
			return wrap(validation(OpRequestPasswordReset, resp))
		default:
			return wrap(unexpected(OpRequestPasswordReset, resp))
		}
	})
	return status, err
}

// ConfirmPasswordReset sets a new password using a reset token and returns
// the service's status string.
func (c *Client) ConfirmPasswordReset(ctx context.Context, reset PasswordReset) (string, error) {
	var status string
	err := c.instrument(ctx, OpConfirmPasswordReset, http.MethodPost, PathResetPassword, func(ctx context.Context) error {
		resp, err := c.post(ctx, OpConfirmPasswordReset, PathResetPassword, reset)
		if err != nil {
			return wrapOnce(err)
		}
		switch resp.status {
		case http.StatusOK:
			status = resp.envelope().Status
			return nil
		case http.StatusBadRequest, http.StatusGone:
			return wrap(&Failure{Kind: KindInvalidToken, Op: OpConfirmPasswordReset, StatusCode: resp.status,
				Message: resp.envelope().Message})
		case http.StatusUnprocessableEntity:
			// A bad or expired token is reported on email (or token) alone.
			return wrap(reclassify(validation(OpConfirmPasswordReset, resp), KindInvalidToken, "email", "token"))
		default:
			return wrap(unexpected(OpConfirmPasswordReset, resp))
		}
	})
	return status, err
}

// ResendEmailVerification asks the service to send another verification
// email and returns its status string.
func (c *Client) ResendEmailVerification(ctx context.Context) (string, error) {
	var status string
	err := c.instrument(ctx, OpResendEmailVerification, http.MethodPost, PathVerificationNotice, func(ctx context.Context) error {
		resp, err := c.post(ctx, OpResendEmailVerification, PathVerificationNotice, nil)
		if err != nil {
			return wrapOnce(err)
		}
		switch resp.status {
		case http.StatusOK, http.StatusAccepted:
			status = resp.envelope().Status
			return nil
		default:
			return wrap(unexpected(OpResendEmailVerification, resp))
		}
	})
	return status, err
}

// reclassify turns a validation failure whose only field is one of fields
// into a form-level failure of kind.
func reclassify(f *Failure, kind Kind, fields ...string) *Failure {
	got := f.Fields.Fields()
	if len(got) != 1 || !slices.Contains(fields, got[0]) {
		return f
	}
	if f.Message == "" {
		f.Message = f.Fields.First(got[0])
	}
	f.Kind = kind
	f.Fields = nil
	return f
}

// asFailure returns err as a *Failure, wrapping foreign errors as transport.
func asFailure(err error) *Failure {
	if f, ok := err.(*Failure); ok {
		return f
	}
	return &Failure{Kind: KindTransport, Message: "request failed", Err: err}
}

// wrapOnce codes a bare *Failure; errors that already carry a code (from the
// CSRF gate) pass through.
func wrapOnce(err error) error {
	if f, ok := err.(*Failure); ok {
		return wrap(f)
	}
	return err
}
