// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package visitor

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
)

// DefaultRedisPrefix namespaces visitor keys.
const DefaultRedisPrefix = "authportal:visitor:"

// RedisStore is a JarStore backed by Redis. Values are JSON, optionally
// sealed, and expire with the visitor's idle TTL.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	sealer *Sealer
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithPrefix overrides DefaultRedisPrefix.
func WithPrefix(prefix string) RedisOption {
	return func(r *RedisStore) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// WithSealer encrypts stored records.
func WithSealer(s *Sealer) RedisOption {
	return func(r *RedisStore) { r.sealer = s }
}

// NewRedisStore creates a Redis-backed JarStore.
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	r := &RedisStore{client: client, prefix: DefaultRedisPrefix}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewRedisClient parses url and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, oops.Code("VISITOR_REDIS_URL_INVALID").Wrap(err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close() //nolint:errcheck // already failing
		return nil, oops.Code("VISITOR_REDIS_UNAVAILABLE").With("addr", opts.Addr).Wrap(err)
	}
	return client, nil
}

func (r *RedisStore) key(id string) string {
	return r.prefix + id
}

// Load implements JarStore.
func (r *RedisStore) Load(ctx context.Context, id string) (*Record, error) {
	val, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, oops.Code("VISITOR_LOAD_FAILED").With("visitor_id", id).Wrap(err)
	}

	if r.sealer != nil {
		if val, err = r.sealer.Open(id, val); err != nil {
			return nil, err
		}
	}

	var rec Record
	if err := json.Unmarshal(val, &rec); err != nil {
		return nil, oops.Code("VISITOR_DECODE_FAILED").With("visitor_id", id).Wrap(err)
	}
	return &rec, nil
}

// Save implements JarStore. A non-positive ttl keeps the key without expiry.
func (r *RedisStore) Save(ctx context.Context, id string, rec Record, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return oops.Code("VISITOR_ENCODE_FAILED").With("visitor_id", id).Wrap(err)
	}
	if r.sealer != nil {
		if data, err = r.sealer.Seal(id, data); err != nil {
			return err
		}
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, r.key(id), data, ttl).Err(); err != nil {
		return oops.Code("VISITOR_SAVE_FAILED").With("visitor_id", id).Wrap(err)
	}
	return nil
}

// Delete implements JarStore.
func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return oops.Code("VISITOR_DELETE_FAILED").With("visitor_id", id).Wrap(err)
	}
	return nil
}

// Ping reports whether Redis is reachable; used by the readiness probe.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
