// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package visitor tracks browsers using the portal. Each visitor owns its
// own remote session client, session cache and coordinator.
package visitor

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/holomush/authportal/internal/coordinator"
	"github.com/holomush/authportal/internal/sessionapi"
	"github.com/holomush/authportal/internal/sessioncache"
)

// Visitor is one browser's portal state.
type Visitor struct {
	ID          ulid.ULID
	Client      *sessionapi.Client
	Cache       *sessioncache.Cache
	Coordinator *coordinator.Coordinator

	secretHash string
	csrfToken  string

	mu       sync.Mutex
	lastSeen time.Time

	// persistMu orders jar writes against Forget.
	persistMu sync.Mutex
	forgotten bool
}

// CSRFToken returns the token portal forms must echo back.
func (v *Visitor) CSRFToken() string {
	return v.csrfToken
}

// CheckCSRF reports whether token matches the visitor's form token.
func (v *Visitor) CheckCSRF(token string) bool {
	return EqualTokens(token, v.csrfToken)
}

// LastSeen returns when the visitor last made a request.
func (v *Visitor) LastSeen() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastSeen
}

// Forgotten reports whether the visitor logged out and was dropped from
// its Registry. A forgotten visitor is never persisted again.
func (v *Visitor) Forgotten() bool {
	v.persistMu.Lock()
	defer v.persistMu.Unlock()
	return v.forgotten
}

func (v *Visitor) touch(now time.Time) {
	v.mu.Lock()
	v.lastSeen = now
	v.mu.Unlock()
}

// record builds the persisted form of the visitor.
func (v *Visitor) record(now time.Time) Record {
	return Record{
		SecretHash: v.secretHash,
		CSRFToken:  v.csrfToken,
		Cookies:    storedCookies(v.Client.Cookies()),
		UpdatedAt:  now,
	}
}
