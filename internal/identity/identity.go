// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package identity holds the portal's view of the authenticated principal and
// the resolution state of the current visitor's session.
package identity

import (
	"time"
)

// Identity is the profile of the authenticated user as reported by the
// remote session service.
type Identity struct {
	ID              int64      `json:"id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	EmailVerifiedAt *time.Time `json:"email_verified_at"`
}

// Verified reports whether the user has confirmed their email address.
func (i *Identity) Verified() bool {
	return i != nil && i.EmailVerifiedAt != nil && !i.EmailVerifiedAt.IsZero()
}

// Clone returns a deep copy so callers never share a cached Identity.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	c := *i
	if i.EmailVerifiedAt != nil {
		t := *i.EmailVerifiedAt
		c.EmailVerifiedAt = &t
	}
	return &c
}

// Status is the resolution state of a visitor's session.
type Status int

const (
	// StatusUnknown means the session has not been resolved yet.
	StatusUnknown Status = iota
	// StatusGuest means the session resolved without an identity.
	StatusGuest
	// StatusAuthenticated means the session resolved to an identity.
	StatusAuthenticated
)

// Resolved reports whether the status is guest or authenticated.
func (s Status) Resolved() bool {
	return s == StatusGuest || s == StatusAuthenticated
}

// String returns the lowercase name used in logs and metrics.
func (s Status) String() string {
	switch s {
	case StatusGuest:
		return "guest"
	case StatusAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}
