// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package coordinator

import (
	"strings"

	"github.com/samber/oops"
)

// Access is the declared audience of a page.
type Access int

const (
	// AccessUnrestricted pages render for every resolved visitor.
	AccessUnrestricted Access = iota
	// AccessGuestOnly pages (login, register, ...) redirect authenticated visitors away.
	AccessGuestOnly
	// AccessAuthOnly pages redirect guests to the login page.
	AccessAuthOnly
)

var accessNames = map[Access]string{
	AccessUnrestricted: "unrestricted",
	AccessGuestOnly:    "guest-only",
	AccessAuthOnly:     "auth-only",
}

// String returns the configuration name of the access mode.
func (a Access) String() string {
	if name, ok := accessNames[a]; ok {
		return name
	}
	return "unknown"
}

// ParseAccess parses a configuration name. The empty string means unrestricted.
func ParseAccess(s string) (Access, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return AccessUnrestricted, nil
	}
	for a, name := range accessNames {
		if name == s {
			return a, nil
		}
	}
	return AccessUnrestricted, oops.Code("INVALID_PAGE_ACCESS").With("access", s).
		Errorf("access must be one of unrestricted, guest-only, auth-only")
}

// PageMode is what a page declares about who may see it.
type PageMode struct {
	Access Access

	// RedirectIfAuthenticated overrides Routes.Home for authenticated
	// visitors leaving a guest-only page.
	RedirectIfAuthenticated string

	// RequireVerified sends authenticated visitors without a verified
	// email address to Routes.VerifyEmail.
	RequireVerified bool
}

// Page is a mounted page: its path and declared mode.
type Page struct {
	Path string
	Mode PageMode
}

// Routes are the well-known navigation targets.
type Routes struct {
	Home         string
	Login        string
	VerifyEmail  string
	GuestLanding string
}

// DefaultRoutes returns the built-in navigation targets.
func DefaultRoutes() Routes {
	return Routes{
		Home:         "/dashboard",
		Login:        "/login",
		VerifyEmail:  "/verify-email",
		GuestLanding: "/login",
	}
}

// WithDefaults fills empty targets from DefaultRoutes.
func (r Routes) WithDefaults() Routes {
	d := DefaultRoutes()
	if r.Home == "" {
		r.Home = d.Home
	}
	if r.Login == "" {
		r.Login = d.Login
	}
	if r.VerifyEmail == "" {
		r.VerifyEmail = d.VerifyEmail
	}
	if r.GuestLanding == "" {
		r.GuestLanding = d.GuestLanding
	}
	return r
}
