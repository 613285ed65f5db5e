// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the portal's Prometheus metrics. It satisfies the
// observer interfaces of sessionapi, sessioncache and coordinator.
type Metrics struct {
	RemoteCalls    *prometheus.CounterVec
	RemoteDuration *prometheus.HistogramVec
	Revalidations  *prometheus.CounterVec
	StaleWrites    *prometheus.CounterVec
	Redirects      *prometheus.CounterVec
	PageResponses  *prometheus.CounterVec
	Visitors       prometheus.GaugeFunc
}

// NewMetrics creates and registers the portal metrics. visitors reports the
// number of visitors held in memory; nil reports zero.
func NewMetrics(reg prometheus.Registerer, visitors func() int) *Metrics {
	if visitors == nil {
		visitors = func() int { return 0 }
	}
	m := &Metrics{
		RemoteCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authportal_remote_calls_total",
				Help: "Calls to the remote session service by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		RemoteDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "authportal_remote_call_duration_seconds",
				Help:    "Latency of remote session service calls, including retries",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		Revalidations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authportal_session_revalidations_total",
				Help: "Session revalidations by result",
			},
			[]string{"result"},
		),
		StaleWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authportal_session_stale_writes_total",
				Help: "Session cache writes discarded because a newer write was applied",
			},
			[]string{"source"},
		),
		Redirects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authportal_redirects_total",
				Help: "Page redirects issued by reason",
			},
			[]string{"reason"},
		),
		PageResponses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authportal_page_responses_total",
				Help: "Portal responses by route pattern and status code",
			},
			[]string{"route", "code"},
		),
		Visitors: prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "authportal_visitors",
				Help: "Visitors currently held in memory",
			},
			func() float64 { return float64(visitors()) },
		),
	}

	reg.MustRegister(
		m.RemoteCalls,
		m.RemoteDuration,
		m.Revalidations,
		m.StaleWrites,
		m.Redirects,
		m.PageResponses,
		m.Visitors,
	)
	return m
}

// ObserveRemoteCall records one remote session service call.
func (m *Metrics) ObserveRemoteCall(operation, outcome string, elapsed time.Duration) {
	m.RemoteCalls.WithLabelValues(operation, outcome).Inc()
	m.RemoteDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ObserveRevalidation records the result of a session revalidation.
func (m *Metrics) ObserveRevalidation(result string) {
	m.Revalidations.WithLabelValues(result).Inc()
}

// ObserveStaleWrite records a discarded cache write.
func (m *Metrics) ObserveStaleWrite(source string) {
	m.StaleWrites.WithLabelValues(source).Inc()
}

// ObserveRedirect records a page redirect.
func (m *Metrics) ObserveRedirect(reason string) {
	m.Redirects.WithLabelValues(reason).Inc()
}

// ObservePageResponse records a portal response.
func (m *Metrics) ObservePageResponse(route string, code int) {
	m.PageResponses.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
