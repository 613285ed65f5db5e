// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package sessionapi

import (
	"errors"
	"fmt"

	"github.com/samber/oops"

	"github.com/holomush/authportal/internal/identity"
)

// ErrNotAuthenticated is returned by FetchIdentity when the remote service
// reports that the session has no authenticated user. It is a normal outcome,
// not a transport problem.
var ErrNotAuthenticated = errors.New("not authenticated")

// Kind is the normalized failure taxonomy for remote calls.
type Kind string

const (
	// KindValidation means the service rejected the payload with per-field messages.
	KindValidation Kind = "validation"

	// KindInvalidCredentials means the login was refused.
	KindInvalidCredentials Kind = "invalid_credentials"

	// KindInvalidToken means a password reset token was unknown or expired.
	KindInvalidToken Kind = "invalid_token"

	// KindTransport covers network errors, timeouts, CSRF mismatches and
	// any response the contract does not describe.
	KindTransport Kind = "transport"
)

// Failure is a typed remote-call failure.
type Failure struct {
	Kind       Kind
	Op         string
	StatusCode int
	Message    string
	Fields     identity.FieldErrors
	Err        error
}

// Error implements the error interface.
func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("sessionapi %s [%s]: %s: %v", f.Op, f.Kind, f.Message, f.Err)
	}
	if f.StatusCode != 0 {
		return fmt.Sprintf("sessionapi %s [%s]: %s (status %d)", f.Op, f.Kind, f.Message, f.StatusCode)
	}
	return fmt.Sprintf("sessionapi %s [%s]: %s", f.Op, f.Kind, f.Message)
}

// Unwrap supports errors.Is / errors.As on the underlying cause.
func (f *Failure) Unwrap() error {
	return f.Err
}

// errorCodes maps each kind to the oops code attached to returned errors.
var errorCodes = map[Kind]string{
	KindValidation:         "SESSIONAPI_VALIDATION_FAILED",
	KindInvalidCredentials: "SESSIONAPI_INVALID_CREDENTIALS",
	KindInvalidToken:       "SESSIONAPI_INVALID_TOKEN",
	KindTransport:          "SESSIONAPI_TRANSPORT",
}

// Code returns the oops code attached to failures of kind k.
func (k Kind) Code() string {
	return errorCodes[k]
}

// wrap turns a Failure into the coded error returned to callers.
func wrap(f *Failure) error {
	builder := oops.Code(f.Kind.Code()).With("operation", f.Op)
	if f.StatusCode != 0 {
		builder = builder.With("status", f.StatusCode)
	}
	return builder.Wrap(f)
}

// Classify returns the failure kind of err. Errors that did not come from
// this package count as transport failures; nil yields "".
func Classify(err error) Kind {
	if err == nil {
		return ""
	}
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindTransport
}

// FieldsOf returns the per-field messages of a validation failure, or nil.
func FieldsOf(err error) identity.FieldErrors {
	var f *Failure
	if errors.As(err, &f) && f.Kind == KindValidation {
		return f.Fields
	}
	return nil
}
