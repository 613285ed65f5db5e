// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package visitor

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"
)

// ErrNotFound is returned by JarStore.Load for unknown or expired visitors.
var ErrNotFound = errors.New("visitor not found")

// StoredCookie is one remote-session cookie in a persisted jar.
type StoredCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Record is what a JarStore persists for a visitor: the remote session
// cookies plus the hashes needed to re-admit the browser.
type Record struct {
	SecretHash string         `json:"secret_hash"`
	CSRFToken  string         `json:"csrf_token"`
	Cookies    []StoredCookie `json:"cookies"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// HTTPCookies converts the stored cookies for a cookie jar.
func (r Record) HTTPCookies() []*http.Cookie {
	out := make([]*http.Cookie, 0, len(r.Cookies))
	for _, c := range r.Cookies {
		out = append(out, &http.Cookie{Name: c.Name, Value: c.Value})
	}
	return out
}

// storedCookies converts jar cookies for persistence.
func storedCookies(cookies []*http.Cookie) []StoredCookie {
	out := make([]StoredCookie, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, StoredCookie{Name: c.Name, Value: c.Value})
	}
	return out
}

// JarStore persists visitor records so remote sessions survive a portal
// restart. Implementations must be safe for concurrent use.
type JarStore interface {
	Load(ctx context.Context, id string) (*Record, error)
	Save(ctx context.Context, id string, rec Record, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

// MemoryStore is an in-process JarStore. Records do not survive a restart.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	rec       Record
	expiresAt time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]memoryEntry), now: time.Now}
}

// Load implements JarStore.
func (m *MemoryStore) Load(_ context.Context, id string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		delete(m.records, id)
		return nil, ErrNotFound
	}
	rec := e.rec
	rec.Cookies = append([]StoredCookie(nil), e.rec.Cookies...)
	return &rec, nil
}

// Save implements JarStore. A non-positive ttl never expires.
func (m *MemoryStore) Save(_ context.Context, id string, rec Record, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := memoryEntry{rec: rec}
	e.rec.Cookies = append([]StoredCookie(nil), rec.Cookies...)
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.records[id] = e
	return nil
}

// Delete implements JarStore.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}
