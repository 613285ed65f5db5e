// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package visitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/authportal/internal/coordinator"
	"github.com/holomush/authportal/internal/sessionapi"
	"github.com/holomush/authportal/internal/sessioncache"
	"github.com/holomush/authportal/pkg/errutil"
)

// Registry defaults.
const (
	DefaultIdleTTL       = 2 * time.Hour
	DefaultSweepInterval = time.Minute
)

// Config configures the per-visitor components a Registry builds.
type Config struct {
	API         sessionapi.Config
	CachePolicy sessioncache.Policy
	Routes      coordinator.Routes

	// IdleTTL evicts visitors from memory and expires their stored record.
	IdleTTL time.Duration
}

// Observers are handed to every visitor's components. Nil entries are skipped.
type Observers struct {
	API         sessionapi.Observer
	Cache       sessioncache.Observer
	Coordinator coordinator.Observer
}

// Registry finds or creates the Visitor for a portal cookie.
type Registry struct {
	cfg       Config
	store     JarStore
	observers Observers
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.Mutex
	visitors map[ulid.ULID]*Visitor
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithObservers sets the observers wired into each visitor.
func WithObservers(o Observers) Option {
	return func(r *Registry) { r.observers = o }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRegistry creates a Registry persisting to store. A nil store uses a
// MemoryStore.
func NewRegistry(cfg Config, store JarStore, opts ...Option) *Registry {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultIdleTTL
	}
	if store == nil {
		store = NewMemoryStore()
	}
	r := &Registry{
		cfg:      cfg,
		store:    store,
		logger:   slog.Default(),
		now:      time.Now,
		visitors: make(map[ulid.ULID]*Visitor),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IdleTTL returns the configured idle lifetime.
func (r *Registry) IdleTTL() time.Duration {
	return r.cfg.IdleTTL
}

// Attach returns the visitor identified by cookie. When cookie is empty,
// malformed, unknown or fails verification a new visitor is created and
// its cookie value is returned in issued; otherwise issued is "".
func (r *Registry) Attach(ctx context.Context, cookie string) (v *Visitor, issued string, err error) {
	now := r.now()

	if id, secret, ok := parseCookieValue(cookie); ok {
		if v := r.lookup(id); v != nil {
			if VerifyToken(secret, v.secretHash) && !v.Forgotten() {
				v.touch(now)
				return v, "", nil
			}
			r.logger.WarnContext(ctx, "visitor secret mismatch", "visitor_id", id.String())
		} else if v, ok := r.restore(ctx, id, secret); ok {
			v.touch(now)
			return v, "", nil
		}
	}

	secret, err := GenerateToken()
	if err != nil {
		return nil, "", err
	}
	csrf, err := GenerateToken()
	if err != nil {
		return nil, "", err
	}
	id := ulid.Make()
	v, err = r.build(id, HashToken(secret), csrf)
	if err != nil {
		return nil, "", err
	}
	v.touch(now)
	v = r.insert(v)
	r.logger.DebugContext(ctx, "visitor created", "visitor_id", id.String())
	return v, cookieValue(id, secret), nil
}

// restore rebuilds a visitor from the jar store.
func (r *Registry) restore(ctx context.Context, id ulid.ULID, secret string) (*Visitor, bool) {
	rec, err := r.store.Load(ctx, id.String())
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			errutil.LogErrorContext(ctx, r.logger, "visitor restore failed", err)
		}
		return nil, false
	}
	if !VerifyToken(secret, rec.SecretHash) {
		r.logger.WarnContext(ctx, "stored visitor secret mismatch", "visitor_id", id.String())
		return nil, false
	}

	v, err := r.build(id, rec.SecretHash, rec.CSRFToken)
	if err != nil {
		errutil.LogErrorContext(ctx, r.logger, "visitor restore failed", err)
		return nil, false
	}
	v.Client.SetCookies(rec.HTTPCookies())
	r.logger.DebugContext(ctx, "visitor restored", "visitor_id", id.String(), "cookies", len(rec.Cookies))
	return r.insert(v), true
}

// build wires a visitor's client, cache and coordinator.
func (r *Registry) build(id ulid.ULID, secretHash, csrf string) (*Visitor, error) {
	logger := r.logger.With("visitor_id", id.String())

	client, err := sessionapi.New(r.cfg.API,
		sessionapi.WithLogger(logger),
		sessionapi.WithObserver(r.observers.API))
	if err != nil {
		return nil, oops.With("visitor_id", id.String()).Wrap(err)
	}
	cache := sessioncache.New(client,
		sessioncache.WithPolicy(r.cfg.CachePolicy),
		sessioncache.WithLogger(logger),
		sessioncache.WithObserver(r.observers.Cache))
	coord := coordinator.New(client, cache, r.cfg.Routes,
		coordinator.WithLogger(logger),
		coordinator.WithObserver(r.observers.Coordinator))

	return &Visitor{
		ID:          id,
		Client:      client,
		Cache:       cache,
		Coordinator: coord,
		secretHash:  secretHash,
		csrfToken:   csrf,
	}, nil
}

func (r *Registry) lookup(id ulid.ULID) *Visitor {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.visitors[id]
}

// insert registers v unless a concurrent request already did, in which case
// the existing visitor wins.
func (r *Registry) insert(v *Visitor) *Visitor {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.visitors[v.ID]; ok {
		return existing
	}
	r.visitors[v.ID] = v
	return v
}

// Save persists the visitor's remote session cookies. Saving a forgotten
// visitor is a no-op, so a request still in flight during logout cannot
// write the jar back.
func (r *Registry) Save(ctx context.Context, v *Visitor) error {
	v.persistMu.Lock()
	defer v.persistMu.Unlock()
	if v.forgotten {
		return nil
	}
	return r.store.Save(ctx, v.ID.String(), v.record(r.now()), r.cfg.IdleTTL)
}

// Forget drops the visitor from memory and the jar store. The browser's
// cookie no longer admits it.
func (r *Registry) Forget(ctx context.Context, v *Visitor) error {
	v.persistMu.Lock()
	defer v.persistMu.Unlock()
	v.forgotten = true

	r.mu.Lock()
	if r.visitors[v.ID] == v {
		delete(r.visitors, v.ID)
	}
	r.mu.Unlock()
	return r.store.Delete(ctx, v.ID.String())
}

// Len returns the number of visitors held in memory.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.visitors)
}

// Sweep evicts visitors idle for longer than IdleTTL from memory and returns
// how many were removed. Their stored records expire on their own.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.cfg.IdleTTL)

	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, v := range r.visitors {
		if v.LastSeen().Before(cutoff) {
			delete(r.visitors, id)
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.logger.DebugContext(ctx, "evicted idle visitors", "count", n, "remaining", r.Len())
			}
		}
	}
}
