// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package portal_test

import (
	"context"
	"log/slog"
	"testing"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/redis/go-redis/v9"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func TestPortal(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Portal Integration Suite")
}

// testEnv holds the shared Redis container.
type testEnv struct {
	ctx       context.Context
	container *tcredis.RedisContainer
	redisURL  string
	client    *redis.Client
}

var env *testEnv

var _ = BeforeSuite(func() {
	slog.SetDefault(slog.New(slog.DiscardHandler))

	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	Expect(err).NotTo(HaveOccurred())

	url, err := container.ConnectionString(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
	}
	Expect(err).NotTo(HaveOccurred())

	opts, err := redis.ParseURL(url)
	Expect(err).NotTo(HaveOccurred())
	client := redis.NewClient(opts)
	Expect(client.Ping(ctx).Err()).To(Succeed())

	env = &testEnv{ctx: ctx, container: container, redisURL: url, client: client}
})

var _ = AfterSuite(func() {
	if env == nil {
		return
	}
	_ = env.client.Close()
	if env.container != nil {
		_ = env.container.Terminate(env.ctx)
	}
})
