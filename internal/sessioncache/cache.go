// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package sessioncache holds one visitor's last known session resolution and
// orders concurrent writes to it.
//
// Every write takes a ticket from a monotonically increasing counter when it
// is issued. A revalidation takes its ticket before the network call. A write
// is applied only if its ticket is greater than the last applied ticket;
// older writes are discarded, so a slow identity fetch can never overwrite
// a later login or logout.
package sessioncache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/holomush/authportal/internal/identity"
	"github.com/holomush/authportal/internal/sessionapi"
)

// Fetcher resolves the current remote session. *sessionapi.Client implements it.
type Fetcher interface {
	FetchIdentity(ctx context.Context) (*identity.Identity, error)
}

// Observer receives cache events. The metrics layer implements it.
type Observer interface {
	// ObserveRevalidation reports a finished fetch: "authenticated", "guest" or "error".
	ObserveRevalidation(result string)
	// ObserveStaleWrite reports a discarded write and what issued it.
	ObserveStaleWrite(source string)
}

// Write sources reported for discarded writes.
const (
	SourceRevalidate = "revalidate"
	SourceSet        = "set"
	SourceInvalidate = "invalidate"
)

// Snapshot is an immutable view of the cache.
type Snapshot struct {
	Status     identity.Status
	Identity   *identity.Identity
	ResolvedAt time.Time
	Seq        uint64
}

// Authenticated reports whether the snapshot holds an identity.
func (s Snapshot) Authenticated() bool {
	return s.Status == identity.StatusAuthenticated
}

// Policy decides when a resolved snapshot must be fetched again.
type Policy struct {
	// MaxAge is how long a resolution stays fresh. Zero means a resolved
	// snapshot never goes stale on its own.
	MaxAge time.Duration
}

// NeedsRevalidation reports whether snap should be refreshed at now.
func (p Policy) NeedsRevalidation(snap Snapshot, now time.Time) bool {
	if !snap.Status.Resolved() {
		return true
	}
	if p.MaxAge <= 0 {
		return false
	}
	return now.Sub(snap.ResolvedAt) >= p.MaxAge
}

// Cache is a visitor's session cache. It is safe for concurrent use.
type Cache struct {
	fetcher  Fetcher
	policy   Policy
	now      func() time.Time
	logger   *slog.Logger
	observer Observer

	mu      sync.Mutex
	snap    Snapshot
	issued  uint64
	applied uint64

	flights singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithPolicy sets the revalidation policy.
func WithPolicy(p Policy) Option {
	return func(c *Cache) { c.policy = p }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithObserver reports cache events to o.
func WithObserver(o Observer) Option {
	return func(c *Cache) {
		if o != nil {
			c.observer = o
		}
	}
}

// New returns an unresolved cache backed by fetcher.
func New(fetcher Fetcher, opts ...Option) *Cache {
	c := &Cache{
		fetcher:  fetcher,
		now:      time.Now,
		logger:   slog.Default(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the current snapshot without blocking on the network.
func (c *Cache) Get() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyLocked()
}

// NeedsRevalidation reports whether the policy wants a fresh fetch now.
func (c *Cache) NeedsRevalidation() bool {
	return c.policy.NeedsRevalidation(c.Get(), c.now())
}

// Revalidate fetches the remote session and applies the result. Concurrent
// callers share one fetch. A transport failure leaves the cache unchanged
// and is returned with the current snapshot.
//
// The shared fetch runs detached from any single caller's cancellation;
// a caller whose ctx ends stops waiting and gets ctx.Err().
func (c *Cache) Revalidate(ctx context.Context) (Snapshot, error) {
	ch := c.flights.DoChan("identity", func() (any, error) {
		return c.revalidate(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		snap, _ := res.Val.(Snapshot)
		if res.Err != nil {
			return c.Get(), res.Err
		}
		return snap, nil
	case <-ctx.Done():
		return c.Get(), ctx.Err()
	}
}

func (c *Cache) revalidate(ctx context.Context) (Snapshot, error) {
	ticket := c.ticket()

	id, err := c.fetcher.FetchIdentity(ctx)
	switch {
	case err == nil:
		c.observer.ObserveRevalidation(identity.StatusAuthenticated.String())
		return c.apply(ticket, id, true, SourceRevalidate), nil
	case errors.Is(err, sessionapi.ErrNotAuthenticated):
		c.observer.ObserveRevalidation(identity.StatusGuest.String())
		return c.apply(ticket, nil, true, SourceRevalidate), nil
	default:
		c.observer.ObserveRevalidation("error")
		return Snapshot{}, err
	}
}

// Set records a known resolution: authenticated with id, or guest when id
// is nil.
func (c *Cache) Set(id *identity.Identity) Snapshot {
	return c.apply(c.ticket(), id, true, SourceSet)
}

// Invalidate forgets the resolution so the next mount revalidates.
func (c *Cache) Invalidate() {
	c.apply(c.ticket(), nil, false, SourceInvalidate)
}

func (c *Cache) ticket() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.issued++
	return c.issued
}

// apply writes the resolution if ticket is newer than the last applied
// write and returns the resulting snapshot.
func (c *Cache) apply(ticket uint64, id *identity.Identity, resolved bool, source string) Snapshot {
	c.mu.Lock()
	if ticket <= c.applied {
		snap := c.copyLocked()
		applied := c.applied
		c.mu.Unlock()

		c.logger.Debug("discarded stale session write",
			"source", source, "ticket", ticket, "applied", applied)
		c.observer.ObserveStaleWrite(source)
		return snap
	}
	defer c.mu.Unlock()

	c.applied = ticket
	switch {
	case !resolved:
		c.snap = Snapshot{Status: identity.StatusUnknown}
	case id == nil:
		c.snap = Snapshot{Status: identity.StatusGuest, ResolvedAt: c.now()}
	default:
		c.snap = Snapshot{Status: identity.StatusAuthenticated, Identity: id.Clone(), ResolvedAt: c.now()}
	}
	c.snap.Seq = ticket
	return c.copyLocked()
}

func (c *Cache) copyLocked() Snapshot {
	s := c.snap
	s.Identity = s.Identity.Clone()
	return s
}

type nopObserver struct{}

func (nopObserver) ObserveRevalidation(string) {}
func (nopObserver) ObserveStaleWrite(string)   {}
