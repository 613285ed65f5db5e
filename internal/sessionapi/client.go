// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package sessionapi is the HTTP client for the remote session-based
// authentication service. A Client owns one cookie jar and therefore one
// remote session; the portal creates one Client per visitor.
package sessionapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/publicsuffix"

	"github.com/holomush/authportal/internal/identity"
)

const (
	// XSRFCookieName is the cookie the remote service sets on PrimeCSRF.
	XSRFCookieName = "XSRF-TOKEN"

	// XSRFHeaderName carries the decoded XSRF-TOKEN value on state-changing calls.
	XSRFHeaderName = "X-XSRF-TOKEN"

	tracerName       = "github.com/holomush/authportal/internal/sessionapi"
	maxResponseBytes = 1 << 20
)

// Default client settings.
const (
	DefaultTimeout    = 10 * time.Second
	DefaultMaxRetries = 2
	DefaultRetryBase  = 100 * time.Millisecond
)

// Config configures a Client.
type Config struct {
	// BaseURL is the origin of the remote service, e.g. "https://api.example.com".
	BaseURL string

	// Timeout bounds each HTTP round trip. Zero uses DefaultTimeout.
	Timeout time.Duration

	// MaxRetries bounds retries of idempotent GETs on transport failure.
	MaxRetries uint64

	// RetryBase is the first backoff interval. Zero uses DefaultRetryBase.
	RetryBase time.Duration

	// Transport overrides the HTTP transport. Nil uses http.DefaultTransport.
	Transport http.RoundTripper
}

// Client talks to the remote session service on behalf of one visitor.
// It is safe for concurrent use.
type Client struct {
	base     *url.URL
	http     *http.Client
	jar      *cookiejar.Jar
	cfg      Config
	csrf     csrfGate
	observer Observer
	logger   *slog.Logger
	tracer   trace.Tracer
}

// Option configures optional Client dependencies.
type Option func(*Client)

// WithObserver reports every remote call to o.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithLogger sets the logger used for remote-call diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Client with an empty cookie jar.
func New(cfg Config, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, oops.Code("SESSIONAPI_INVALID_BASE_URL").With("base_url", cfg.BaseURL).Wrap(err)
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, oops.Code("SESSIONAPI_INVALID_BASE_URL").
			With("base_url", cfg.BaseURL).
			Errorf("base URL must be an absolute http(s) URL")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = DefaultRetryBase
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, oops.Code("SESSIONAPI_JAR_FAILED").Wrap(err)
	}

	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	c := &Client{
		base: base,
		http: &http.Client{
			Jar:       jar,
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		jar:      jar,
		cfg:      cfg,
		observer: nopObserver{},
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the remote service origin.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Cookies returns the cookies the jar would send to the remote service.
func (c *Client) Cookies() []*http.Cookie {
	return c.jar.Cookies(c.base)
}

// SetCookies seeds the jar, typically from a persisted visitor record.
// The CSRF gate is reset so the next state-changing call re-checks the token.
func (c *Client) SetCookies(cookies []*http.Cookie) {
	c.jar.SetCookies(c.base, cookies)
	c.csrf.reset()
}

// xsrfToken returns the URL-decoded XSRF-TOKEN cookie value, or "".
func (c *Client) xsrfToken() string {
	for _, ck := range c.jar.Cookies(c.base) {
		if ck.Name != XSRFCookieName {
			continue
		}
		v, err := url.QueryUnescape(ck.Value)
		if err != nil {
			return ck.Value
		}
		return v
	}
	return ""
}

// response is a fully-read remote response.
type response struct {
	status int
	body   []byte
}

// envelope is the error body shape of the remote service.
type envelope struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
	Status  string              `json:"status"`
}

func (r *response) envelope() envelope {
	var env envelope
	if len(r.body) > 0 {
		// Non-JSON bodies leave the envelope empty.
		_ = json.Unmarshal(r.body, &env) //nolint:errcheck // best-effort decode
	}
	return env
}

// roundTrip performs one request and reads the whole body.
func (c *Client) roundTrip(ctx context.Context, method, path string, payload any, withXSRF bool) (*response, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if withXSRF {
		if token := c.xsrfToken(); token != "" {
			req.Header.Set(XSRFHeaderName, token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close() //nolint:errcheck // body fully read
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}
	return &response{status: resp.StatusCode, body: data}, nil
}

// get performs an idempotent GET with bounded retries on transport errors
// and 5xx responses. Any other status is returned to the caller.
func (c *Client) get(ctx context.Context, op, path string) (*response, error) {
	backoff := retry.WithMaxRetries(c.cfg.MaxRetries, retry.NewExponential(c.cfg.RetryBase))

	var (
		last    *response
		lastErr error
	)
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		last, lastErr = c.roundTrip(ctx, http.MethodGet, path, nil, false)
		if lastErr != nil {
			c.logger.DebugContext(ctx, "remote call failed",
				"operation", op, "attempt", attempt, "error", lastErr)
			return retry.RetryableError(lastErr)
		}
		if last.status >= http.StatusInternalServerError {
			c.logger.DebugContext(ctx, "remote call returned server error",
				"operation", op, "attempt", attempt, "status", last.status)
			return retry.RetryableError(oops.Errorf("status %d", last.status))
		}
		return nil
	})
	if lastErr != nil {
		return nil, &Failure{Kind: KindTransport, Op: op, Message: "request failed", Err: lastErr}
	}
	if err != nil && last == nil {
		return nil, &Failure{Kind: KindTransport, Op: op, Message: "request failed", Err: err}
	}
	return last, nil
}

// post performs a state-changing call behind the CSRF gate.
func (c *Client) post(ctx context.Context, op, path string, payload any) (*response, error) {
	if err := c.ensureCSRF(ctx); err != nil {
		return nil, err
	}

	resp, err := c.roundTrip(ctx, http.MethodPost, path, payload, true)
	if err != nil {
		return nil, &Failure{Kind: KindTransport, Op: op, Message: "request failed", Err: err}
	}
	if resp.status == statusCSRFMismatch {
		c.csrf.reset()
		return nil, &Failure{Kind: KindTransport, Op: op, StatusCode: resp.status, Message: "csrf token mismatch"}
	}
	return resp, nil
}

// unexpected builds the transport failure for a status the contract does not describe.
func unexpected(op string, resp *response) *Failure {
	env := resp.envelope()
	msg := env.Message
	if msg == "" {
		msg = "unexpected status"
	}
	return &Failure{Kind: KindTransport, Op: op, StatusCode: resp.status, Message: msg}
}

// validation builds a validation failure from a 422 envelope.
func validation(op string, resp *response) *Failure {
	env := resp.envelope()
	return &Failure{
		Kind:       KindValidation,
		Op:         op,
		StatusCode: resp.status,
		Message:    env.Message,
		Fields:     identity.Merged(identity.FieldErrors(env.Errors)),
	}
}

// instrument wraps a remote call in a span and reports it to the observer.
func (c *Client) instrument(ctx context.Context, op, method, path string, fn func(context.Context) error) error {
	ctx, span := c.tracer.Start(ctx, "sessionapi."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		))
	defer span.End()

	start := time.Now()
	err := fn(ctx)

	outcome := outcomeOK
	switch {
	case err == nil:
	case isNotAuthenticated(err):
		outcome = outcomeNotAuthenticated
	default:
		outcome = string(Classify(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	span.SetAttributes(attribute.String("sessionapi.outcome", outcome))
	c.observer.ObserveRemoteCall(op, outcome, time.Since(start))
	return err
}
