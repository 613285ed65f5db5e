// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package visitor_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/authportal/internal/visitor"
)

func TestSetCookie_Defaults(t *testing.T) {
	rec := httptest.NewRecorder()
	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)

	visitor.SetCookie(rec, "value", expires, visitor.CookieOptions{})

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, visitor.DefaultCookieName, c.Name)
	assert.Equal(t, "value", c.Value)
	assert.Equal(t, "/", c.Path)
	assert.True(t, c.HttpOnly)
	assert.False(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.True(t, expires.Equal(c.Expires))
}

func TestSetCookie_HostPrefixForcesAttributes(t *testing.T) {
	rec := httptest.NewRecorder()

	visitor.SetCookie(rec, "v", time.Time{}, visitor.CookieOptions{
		Name:   "__Host-portal",
		Path:   "/app",
		Domain: "example.com",
	})

	c := rec.Result().Cookies()[0]
	assert.True(t, c.Secure)
	assert.Equal(t, "/", c.Path)
	assert.Empty(t, c.Domain)
}

func TestClearCookie(t *testing.T) {
	rec := httptest.NewRecorder()

	visitor.ClearCookie(rec, visitor.CookieOptions{Name: "flash"})

	c := rec.Result().Cookies()[0]
	assert.Equal(t, "flash", c.Name)
	assert.Empty(t, c.Value)
	assert.Equal(t, -1, c.MaxAge)
}

func TestReadCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: visitor.DefaultCookieName, Value: "abc"})
	opts := visitor.CookieOptions{}

	assert.Equal(t, "abc", visitor.ReadCookie(req, opts))
	assert.Empty(t, visitor.ReadCookie(req, opts.Named("missing")))
}
