// SPDX-License-Identifier: MIT

// Package metrics provides Prometheus metrics for the VTN and the agent.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// No high-cardinality labels: route patterns only, never ids.

var (
	// HTTPRequestsTotal counts handled requests by method, route and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oadr_http_requests_total",
		Help: "Total number of handled HTTP requests, by method, route pattern and status code.",
	}, []string{"method", "route", "status"})

	// HTTPRequestDuration observes request latency by route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "oadr_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds, by route pattern.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	// TokensIssuedTotal counts access tokens minted by the token endpoint.
	TokensIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oadr_tokens_issued_total",
		Help: "Total number of access tokens issued.",
	})

	// PollCyclesTotal counts agent poll cycles by result.
	PollCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oadr_poll_cycles_total",
		Help: "Total number of agent poll cycles, by result (ok/error).",
	}, []string{"result"})

	// TimelinesBuiltTotal counts successful timeline constructions.
	TimelinesBuiltTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oadr_timelines_built_total",
		Help: "Total number of timelines built from polled events.",
	})

	// EnforcedLimitsEmittedTotal counts snapshots emitted by the update loop.
	EnforcedLimitsEmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oadr_enforced_limits_emitted_total",
		Help: "Total number of enforced-limits snapshots emitted downstream.",
	})
)
