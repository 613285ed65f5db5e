// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package portal_test

import (
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/authportal/internal/sessionapi"
	"github.com/holomush/authportal/internal/sessionapi/sessionapitest"
	"github.com/holomush/authportal/internal/sessioncache"
	"github.com/holomush/authportal/internal/visitor"
	"github.com/holomush/authportal/internal/web"
)

var tokenPattern = regexp.MustCompile(`name="_token" value="([0-9a-f]+)"`)

const keyPrefix = "authportal:it:"

// browser is a cookie-keeping HTTP client.
type browser struct {
	follow *http.Client
	single *http.Client
}

func newBrowser() *browser {
	jar, err := cookiejar.New(nil)
	Expect(err).NotTo(HaveOccurred())
	return &browser{
		follow: &http.Client{Jar: jar},
		single: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func read(resp *http.Response, err error) (*http.Response, string) {
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return resp, string(body)
}

func (b *browser) token(base, path string) string {
	_, body := read(b.follow.Get(base + path))
	m := tokenPattern.FindStringSubmatch(body)
	Expect(m).To(HaveLen(2))
	return m[1]
}

func (b *browser) login(base, email, password string) (*http.Response, string) {
	form := url.Values{"_token": {b.token(base, "/login")}, "email": {email}, "password": {password}}
	return read(b.follow.PostForm(base+"/login", form))
}

var _ = Describe("Portal with a Redis visitor store", func() {
	var (
		api    *sessionapitest.Server
		sealer *visitor.Sealer
	)

	BeforeEach(func() {
		Expect(env.client.FlushAll(env.ctx).Err()).To(Succeed())

		api = sessionapitest.New()
		DeferCleanup(api.Close)
		api.AddUser(sessionapitest.User{Name: "Ada", Email: "ada@example.com", Password: "password123", Verified: true})

		var err error
		sealer, err = visitor.NewSealer("integration-jar-secret")
		Expect(err).NotTo(HaveOccurred())
	})

	startPortal := func() (*visitor.Registry, string) {
		client, err := visitor.NewRedisClient(env.ctx, env.redisURL)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(client.Close)

		store := visitor.NewRedisStore(client, visitor.WithPrefix(keyPrefix), visitor.WithSealer(sealer))
		Expect(store.Ping(env.ctx)).To(Succeed())

		registry := visitor.NewRegistry(visitor.Config{
			API:         sessionapi.Config{BaseURL: api.URL, Timeout: 5 * time.Second},
			CachePolicy: sessioncache.Policy{MaxAge: time.Minute},
			IdleTTL:     time.Hour,
		}, store)

		srv, err := web.New(web.Options{Registry: registry})
		Expect(err).NotTo(HaveOccurred())
		ts := httptest.NewServer(srv)
		DeferCleanup(ts.Close)
		return registry, ts.URL
	}

	storedKeys := func() []string {
		keys, err := env.client.Keys(env.ctx, keyPrefix+"*").Result()
		Expect(err).NotTo(HaveOccurred())
		return keys
	}

	It("keeps a signed-in visitor across a portal restart", func() {
		_, first := startPortal()
		b := newBrowser()

		resp, body := b.login(first, "ada@example.com", "password123")
		Expect(resp.Request.URL.Path).To(Equal("/dashboard"))
		Expect(body).To(ContainSubstring("Signed in as Ada"))

		keys := storedKeys()
		Expect(keys).To(HaveLen(1))
		raw, err := env.client.Get(env.ctx, keys[0]).Result()
		Expect(err).NotTo(HaveOccurred())
		Expect(raw).NotTo(ContainSubstring(sessionapitest.SessionCookie))

		restarted, second := startPortal()
		Expect(restarted.Len()).To(Equal(0))

		resp, body = read(b.follow.Get(second + "/dashboard"))
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(resp.Request.URL.Path).To(Equal("/dashboard"))
		Expect(body).To(ContainSubstring("Signed in as Ada"))
		Expect(restarted.Len()).To(Equal(1))
	})

	It("stores records with the idle TTL", func() {
		_, base := startPortal()
		b := newBrowser()
		read(b.follow.Get(base + "/login"))

		keys := storedKeys()
		Expect(keys).To(HaveLen(1))
		ttl, err := env.client.TTL(env.ctx, keys[0]).Result()
		Expect(err).NotTo(HaveOccurred())
		Expect(ttl).To(BeNumerically(">", 59*time.Minute))
		Expect(ttl).To(BeNumerically("<=", time.Hour))
	})

	It("deletes the stored record on logout", func() {
		registry, base := startPortal()
		b := newBrowser()
		b.login(base, "ada@example.com", "password123")
		Expect(storedKeys()).To(HaveLen(1))

		token := b.token(base, "/dashboard")
		resp, _ := read(b.single.PostForm(base+"/logout", url.Values{"_token": {token}}))
		Expect(resp.StatusCode).To(Equal(http.StatusSeeOther))
		Expect(resp.Header.Get("Location")).To(Equal("/login"))

		Expect(storedKeys()).To(BeEmpty())
		Expect(registry.Len()).To(Equal(0))
		Expect(api.Calls("/logout")).To(Equal(1))
	})

	It("rejects a stored record sealed with another secret", func() {
		_, first := startPortal()
		b := newBrowser()
		b.login(first, "ada@example.com", "password123")

		var err error
		sealer, err = visitor.NewSealer("another-jar-secret-value")
		Expect(err).NotTo(HaveOccurred())
		_, second := startPortal()

		resp, body := read(b.follow.Get(second + "/dashboard"))
		Expect(resp.Request.URL.Path).To(Equal("/login"))
		Expect(body).To(ContainSubstring("<h1>Log in</h1>"))
	})
})
