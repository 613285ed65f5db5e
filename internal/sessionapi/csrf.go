// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package sessionapi

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// statusCSRFMismatch is the remote service's "page expired" status.
const statusCSRFMismatch = 419

// csrfGate makes state-changing calls wait for one successful PrimeCSRF.
// Concurrent waiters share a single in-flight priming. Failures are not
// remembered, so the next caller primes again.
type csrfGate struct {
	mu     sync.Mutex
	primed bool
	group  singleflight.Group
}

func (g *csrfGate) isPrimed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.primed
}

func (g *csrfGate) markPrimed() {
	g.mu.Lock()
	g.primed = true
	g.mu.Unlock()
}

func (g *csrfGate) reset() {
	g.mu.Lock()
	g.primed = false
	g.mu.Unlock()
}

// await runs prime unless the gate is already open. The shared flight is
// detached from the first caller's cancellation; each caller still stops
// waiting when its own context ends.
func (g *csrfGate) await(ctx context.Context, prime func(context.Context) error) error {
	if g.isPrimed() {
		return nil
	}

	ch := g.group.DoChan("csrf", func() (any, error) {
		if g.isPrimed() {
			return nil, nil
		}
		if err := prime(context.WithoutCancel(ctx)); err != nil {
			return nil, err
		}
		g.markPrimed()
		return nil, nil
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ensureCSRF opens the gate, priming when needed. A gate that was opened
// but whose XSRF-TOKEN cookie is gone is primed again.
func (c *Client) ensureCSRF(ctx context.Context) error {
	if c.csrf.isPrimed() && c.xsrfToken() == "" {
		c.csrf.reset()
	}
	err := c.csrf.await(ctx, c.PrimeCSRF)
	if err == nil {
		return nil
	}
	if Classify(err) == KindTransport && ctx.Err() != nil {
		return wrap(&Failure{Kind: KindTransport, Op: "prime_csrf", Message: "cancelled", Err: ctx.Err()})
	}
	return err
}
