// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package visitor

import (
	"net/http"
	"strings"
	"time"
)

// DefaultCookieName is the portal's visitor cookie.
const DefaultCookieName = "authportal_visitor"

const hostPrefix = "__Host-"

// CookieOptions defines how portal cookies are issued. Portal cookies are
// always HttpOnly.
type CookieOptions struct {
	Name     string
	Path     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

// normalize applies safe defaults. "__Host-" names force the attributes the
// prefix requires.
func (o CookieOptions) normalize() CookieOptions {
	if o.Name == "" {
		o.Name = DefaultCookieName
	}
	if o.Path == "" {
		o.Path = "/"
	}
	if o.SameSite == 0 {
		o.SameSite = http.SameSiteLaxMode
	}
	if strings.HasPrefix(o.Name, hostPrefix) {
		o.Secure = true
		o.Path = "/"
		o.Domain = ""
	}
	return o
}

// Named returns a copy of o for another cookie name.
func (o CookieOptions) Named(name string) CookieOptions {
	o.Name = name
	return o
}

// SetCookie issues a cookie. A zero expiresAt makes it a session cookie.
func SetCookie(w http.ResponseWriter, value string, expiresAt time.Time, opts CookieOptions) {
	opts = opts.normalize()

	http.SetCookie(w, &http.Cookie{
		Name:     opts.Name,
		Value:    value,
		Path:     opts.Path,
		Domain:   opts.Domain,
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: opts.SameSite,
	})
}

// ClearCookie removes a cookie from the client.
func ClearCookie(w http.ResponseWriter, opts CookieOptions) {
	opts = opts.normalize()

	http.SetCookie(w, &http.Cookie{
		Name:     opts.Name,
		Value:    "",
		Path:     opts.Path,
		Domain:   opts.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: opts.SameSite,
	})
}

// ReadCookie returns the value of the named cookie, or "".
func ReadCookie(r *http.Request, opts CookieOptions) string {
	c, err := r.Cookie(opts.normalize().Name)
	if err != nil {
		return ""
	}
	return c.Value
}
