// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package visitor_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/authportal/internal/visitor"
	"github.com/holomush/authportal/pkg/errutil"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func sampleRecord() visitor.Record {
	return visitor.Record{
		SecretHash: visitor.HashToken("secret"),
		CSRFToken:  "csrf",
		Cookies: []visitor.StoredCookie{
			{Name: "portal_remote_session", Value: "abc"},
			{Name: "XSRF-TOKEN", Value: "xyz%3D"},
		},
		UpdatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestRedisStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	mr, client := newRedis(t)
	store := visitor.NewRedisStore(client)

	require.NoError(t, store.Save(ctx, "v1", sampleRecord(), time.Hour))

	got, err := store.Load(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, sampleRecord(), *got)
	assert.Equal(t, time.Hour, mr.TTL(visitor.DefaultRedisPrefix+"v1"))

	raw, err := mr.Get(visitor.DefaultRedisPrefix + "v1")
	require.NoError(t, err)
	assert.Contains(t, raw, "portal_remote_session")
}

func TestRedisStore_Expires(t *testing.T) {
	ctx := context.Background()
	mr, client := newRedis(t)
	store := visitor.NewRedisStore(client, visitor.WithPrefix("test:"))

	require.NoError(t, store.Save(ctx, "v1", sampleRecord(), time.Minute))
	assert.True(t, mr.Exists("test:v1"))

	mr.FastForward(2 * time.Minute)

	_, err := store.Load(ctx, "v1")
	assert.ErrorIs(t, err, visitor.ErrNotFound)
}

func TestRedisStore_Delete(t *testing.T) {
	ctx := context.Background()
	_, client := newRedis(t)
	store := visitor.NewRedisStore(client)

	require.NoError(t, store.Save(ctx, "v1", sampleRecord(), 0))
	require.NoError(t, store.Delete(ctx, "v1"))
	require.NoError(t, store.Delete(ctx, "v1"))

	_, err := store.Load(ctx, "v1")
	assert.ErrorIs(t, err, visitor.ErrNotFound)
}

func TestRedisStore_Sealed(t *testing.T) {
	ctx := context.Background()
	mr, client := newRedis(t)
	sealer, err := visitor.NewSealer("0123456789abcdef-jar-secret")
	require.NoError(t, err)
	store := visitor.NewRedisStore(client, visitor.WithSealer(sealer))

	require.NoError(t, store.Save(ctx, "v1", sampleRecord(), time.Hour))

	raw, err := mr.Get(visitor.DefaultRedisPrefix + "v1")
	require.NoError(t, err)
	assert.NotContains(t, raw, "portal_remote_session")

	got, err := store.Load(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, sampleRecord(), *got)
}

func TestRedisStore_SealedRecordBoundToID(t *testing.T) {
	ctx := context.Background()
	mr, client := newRedis(t)
	sealer, err := visitor.NewSealer("0123456789abcdef-jar-secret")
	require.NoError(t, err)
	store := visitor.NewRedisStore(client, visitor.WithSealer(sealer))

	require.NoError(t, store.Save(ctx, "v1", sampleRecord(), time.Hour))
	raw, err := mr.Get(visitor.DefaultRedisPrefix + "v1")
	require.NoError(t, err)
	require.NoError(t, mr.Set(visitor.DefaultRedisPrefix+"v2", raw))

	_, err = store.Load(ctx, "v2")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "VISITOR_OPEN_FAILED")
}

func TestRedisStore_Ping(t *testing.T) {
	mr, client := newRedis(t)
	store := visitor.NewRedisStore(client)

	require.NoError(t, store.Ping(context.Background()))

	mr.Close()
	assert.Error(t, store.Ping(context.Background()))
}

func TestNewRedisClient(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	client, err := visitor.NewRedisClient(ctx, "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	_, err = visitor.NewRedisClient(ctx, "not a url")
	errutil.AssertErrorCode(t, err, "VISITOR_REDIS_URL_INVALID")
}

func TestNewSealer_ShortSecret(t *testing.T) {
	_, err := visitor.NewSealer("short")

	errutil.AssertErrorCode(t, err, "VISITOR_SEAL_KEY_TOO_SHORT")
}

func TestSealer_RejectsTampering(t *testing.T) {
	sealer, err := visitor.NewSealer("0123456789abcdef")
	require.NoError(t, err)

	sealed, err := sealer.Seal("id", []byte("payload"))
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0xff

	_, err = sealer.Open("id", sealed)
	errutil.AssertErrorCode(t, err, "VISITOR_OPEN_FAILED")

	_, err = sealer.Open("id", []byte("x"))
	errutil.AssertErrorCode(t, err, "VISITOR_OPEN_FAILED")
}
