// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package logging provides a pipeline policy that writes one structured
// log entry for every attempt passing through it.
//
// Entries are written with go.uber.org/zap. Only allow-listed request
// headers and query parameters are logged by value; the values of all
// others are replaced with "REDACTED". Authorization is always
// redacted.
package logging

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gogama/httppipe/pipeline"
	"github.com/gogama/httppipe/request"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const redacted = "REDACTED"

// SkipKey is the call data key that turns logging off for a call. A
// call whose data holds SkipKey{} with the value true is not logged:
//
//	c.Put(logging.SkipKey{}, true)
type SkipKey struct{}

// DefaultAllowedHeaders are the request headers logged by value unless
// Options.AllowedHeaders says otherwise.
var DefaultAllowedHeaders = []string{
	"Accept",
	"Content-Length",
	"Content-Type",
	"Retry-After",
	"User-Agent",
	"X-Request-Id",
}

// Options configure a Policy.
type Options struct {
	// Logger receives the entries. If nil, nothing is logged.
	Logger *zap.Logger

	// AllowedHeaders lists the request headers logged by value. If
	// nil, DefaultAllowedHeaders is used. Authorization is never
	// logged by value.
	AllowedHeaders []string

	// AllowedQueryParams lists the query parameters logged by value.
	AllowedQueryParams []string

	// Now returns the current time. If nil, time.Now is used.
	Now func() time.Time
}

// A Policy is a pipeline policy that logs each attempt: its method, its
// URL, the attempt number, the response status or error and how long
// it took. Successful attempts are logged at Info level, attempts that
// got an error or a 4xx/5xx status at Warn level.
//
// Place the Policy after a retry policy to log every attempt, or before
// it to log each call once.
type Policy struct {
	logger  *zap.Logger
	headers map[string]bool
	params  map[string]bool
	now     func() time.Time
}

// NewPolicy returns a Policy configured by opts.
func NewPolicy(opts Options) *Policy {
	p := &Policy{
		logger:  opts.Logger,
		headers: make(map[string]bool),
		params:  make(map[string]bool),
		now:     opts.Now,
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	allowed := opts.AllowedHeaders
	if allowed == nil {
		allowed = DefaultAllowedHeaders
	}
	for _, h := range allowed {
		p.headers[http.CanonicalHeaderKey(h)] = true
	}
	delete(p.headers, "Authorization")
	for _, q := range opts.AllowedQueryParams {
		p.params[q] = true
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// ProcessSync implements the blocking form of the policy.
func (p *Policy) ProcessSync(c *request.Call, next pipeline.Next) (*request.Response, error) {
	if skip(c) {
		return next.ProcessSync(c)
	}
	start := p.now()
	resp, err := next.ProcessSync(c)
	p.log(c, start, resp, err)
	return resp, err
}

// Process implements the suspension-capable form of the policy.
func (p *Policy) Process(c *request.Call, next pipeline.Next) *pipeline.Future {
	if skip(c) {
		return next.Process(c)
	}
	start := p.now()
	f := next.Process(c)
	f.OnComplete(func(resp *request.Response, err error) {
		p.log(c, start, resp, err)
	})
	return f
}

func skip(c *request.Call) bool {
	v, _ := c.Value(SkipKey{}).(bool)
	return v
}

func (p *Policy) log(c *request.Call, start time.Time, resp *request.Response, err error) {
	fields := make([]zap.Field, 0, 7)
	if req := c.Request; req != nil {
		fields = append(fields,
			zap.String("method", req.Method),
			zap.String("url", p.redactURL(req.URL)),
			zap.Object("header", headerMarshaler{req.Header, p.headers}),
		)
	}
	fields = append(fields,
		zap.Int("attempt", c.Attempt),
		zap.Duration("duration", p.now().Sub(start)),
	)
	level := zapcore.InfoLevel
	msg := "http attempt"
	if err != nil {
		level = zapcore.WarnLevel
		msg = "http attempt failed"
		fields = append(fields, zap.Error(err))
	} else if resp != nil {
		fields = append(fields, zap.Int("status", resp.StatusCode))
		if resp.StatusCode >= 400 {
			level = zapcore.WarnLevel
		}
	}
	if ce := p.logger.Check(level, msg); ce != nil {
		ce.Write(fields...)
	}
}

func (p *Policy) redactURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	r := *u
	if r.User != nil {
		r.User = url.User(redacted)
	}
	if r.RawQuery != "" {
		q := r.Query()
		for name, values := range q {
			if p.params[name] {
				continue
			}
			for i := range values {
				values[i] = redacted
			}
		}
		r.RawQuery = q.Encode()
	}
	return r.String()
}

type headerMarshaler struct {
	h       http.Header
	allowed map[string]bool
}

func (m headerMarshaler) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	for name, values := range m.h {
		v := redacted
		if m.allowed[name] {
			v = strings.Join(values, ", ")
		}
		enc.AddString(name, v)
	}
	return nil
}
