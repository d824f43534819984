// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package metrics provides a pipeline policy that records Prometheus
// metrics for the attempts passing through it.
package metrics

import (
	"strconv"
	"time"

	"github.com/gogama/httppipe/pipeline"
	"github.com/gogama/httppipe/request"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultNamespace prefixes metric names unless Options.Namespace is
// set.
const DefaultNamespace = "httppipe"

// Options configure a Collector.
type Options struct {
	// Registerer receives the collector's metrics. If nil,
	// prometheus.DefaultRegisterer is used.
	Registerer prometheus.Registerer

	// Namespace prefixes every metric name. If empty, DefaultNamespace
	// is used.
	Namespace string

	// Buckets are the duration histogram buckets. If nil,
	// prometheus.DefBuckets is used.
	Buckets []float64

	// Now returns the current time. If nil, time.Now is used.
	Now func() time.Time
}

// A Collector is a pipeline policy recording request counts, durations,
// in-flight requests, retries and errors, labeled by method and host.
// It also records cache hits and misses for the cache policy.
//
// Place the Collector after a retry policy to measure every attempt.
//
// Collector is safe for concurrent use by multiple goroutines.
type Collector struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight *prometheus.GaugeVec
	retries  *prometheus.CounterVec
	errors   *prometheus.CounterVec
	cache    *prometheus.CounterVec
	now      func() time.Time
}

// New returns a Collector configured by opts, registering its metrics
// with opts.Registerer. New panics if registration fails, for example
// because another Collector with the same namespace already registered
// with the same Registerer.
func New(opts Options) *Collector {
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	ns := opts.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	buckets := opts.Buckets
	if buckets == nil {
		buckets = prometheus.DefBuckets
	}
	f := promauto.With(reg)
	c := &Collector{
		requests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "requests_total",
				Help:      "Total number of HTTP attempts that got a response.",
			},
			[]string{"method", "host", "status_code"},
		),
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP attempts in seconds, until the response headers arrived.",
				Buckets:   buckets,
			},
			[]string{"method", "host"},
		),
		inFlight: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: ns,
				Name:      "requests_in_flight",
				Help:      "Number of HTTP attempts waiting for a response.",
			},
			[]string{"method", "host"},
		),
		retries: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "retries_total",
				Help:      "Total number of HTTP attempts that were retries.",
			},
			[]string{"method", "host"},
		),
		errors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "errors_total",
				Help:      "Total number of HTTP attempts that ended in an error.",
			},
			[]string{"method", "host"},
		),
		cache: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "cache_lookups_total",
				Help:      "Total number of response cache lookups.",
			},
			[]string{"method", "host", "result"},
		),
		now: opts.Now,
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// ProcessSync implements the blocking form of the policy.
func (m *Collector) ProcessSync(c *request.Call, next pipeline.Next) (*request.Response, error) {
	done := m.start(c)
	resp, err := next.ProcessSync(c)
	done(resp, err)
	return resp, err
}

// Process implements the suspension-capable form of the policy.
func (m *Collector) Process(c *request.Call, next pipeline.Next) *pipeline.Future {
	done := m.start(c)
	f := next.Process(c)
	f.OnComplete(done)
	return f
}

func (m *Collector) start(c *request.Call) func(*request.Response, error) {
	method, host := labels(c)
	if c.Attempt > 0 {
		m.retries.WithLabelValues(method, host).Inc()
	}
	g := m.inFlight.WithLabelValues(method, host)
	g.Inc()
	start := m.now()
	return func(resp *request.Response, err error) {
		g.Dec()
		m.duration.WithLabelValues(method, host).Observe(m.now().Sub(start).Seconds())
		if err != nil {
			m.errors.WithLabelValues(method, host).Inc()
			return
		}
		if resp != nil {
			m.requests.WithLabelValues(method, host, strconv.Itoa(resp.StatusCode)).Inc()
		}
	}
}

// CacheHit records a response served from the cache for c.
func (m *Collector) CacheHit(c *request.Call) {
	method, host := labels(c)
	m.cache.WithLabelValues(method, host, "hit").Inc()
}

// CacheMiss records a cache lookup for c that found nothing usable.
func (m *Collector) CacheMiss(c *request.Call) {
	method, host := labels(c)
	m.cache.WithLabelValues(method, host, "miss").Inc()
}

func labels(c *request.Call) (method, host string) {
	if c.Request == nil {
		return "", ""
	}
	method = c.Request.Method
	if c.Request.URL != nil {
		host = c.Request.URL.Host
	}
	return
}
