// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package headers provides a pipeline policy that fills in the standard
// request headers of a client: a User-Agent, a per-call request id and
// any header overrides the caller attached to the call.
package headers

import (
	"net/http"

	"github.com/gogama/httppipe/calldata"
	"github.com/gogama/httppipe/pipeline"
	"github.com/gogama/httppipe/request"
	"github.com/google/uuid"
)

// DefaultRequestIDHeader is the header carrying the request id unless
// Options.RequestIDHeader names another.
const DefaultRequestIDHeader = "X-Request-Id"

// Options configure a Policy.
type Options struct {
	// UserAgent is sent as the User-Agent header. If the request
	// already has a User-Agent, UserAgent is put in front of it.
	UserAgent string

	// RequestIDHeader names the request id header. If empty,
	// DefaultRequestIDHeader is used.
	RequestIDHeader string

	// DisableRequestID turns off the request id.
	DisableRequestID bool

	// Header holds default headers, added only to requests that do not
	// already have them.
	Header http.Header

	// NewID generates request ids. If nil, random UUIDs are used.
	NewID func() string
}

// A Policy is a pipeline policy that sets standard request headers.
//
// Place the Policy before any retry policy in the pipeline: the request
// id it assigns is then shared by every attempt of the call, so that
// a server can recognize retries of the same request.
type Policy struct {
	userAgent string
	idHeader  string
	header    http.Header
	newID     func() string
}

// NewPolicy returns a Policy configured by opts.
func NewPolicy(opts Options) *Policy {
	p := &Policy{
		userAgent: opts.UserAgent,
		idHeader:  http.CanonicalHeaderKey(opts.RequestIDHeader),
		header:    opts.Header.Clone(),
		newID:     opts.NewID,
	}
	if p.idHeader == "" {
		p.idHeader = DefaultRequestIDHeader
	}
	if opts.DisableRequestID {
		p.idHeader = ""
	}
	if p.newID == nil {
		p.newID = func() string {
			return uuid.NewString()
		}
	}
	return p
}

// ProcessSync implements the blocking form of the policy.
func (p *Policy) ProcessSync(c *request.Call, next pipeline.Next) (*request.Response, error) {
	return next.ProcessSync(p.apply(c))
}

// Process implements the suspension-capable form of the policy.
func (p *Policy) Process(c *request.Call, next pipeline.Next) *pipeline.Future {
	return next.Process(p.apply(c))
}

func (p *Policy) apply(c *request.Call) *request.Call {
	if c.Request == nil {
		return c
	}
	hc := c.Clone()
	h := hc.Request.Header
	for name, values := range p.header {
		if _, ok := h[name]; !ok {
			h[name] = append([]string(nil), values...)
		}
	}
	if p.userAgent != "" {
		if ua := h.Get("User-Agent"); ua != "" {
			h.Set("User-Agent", p.userAgent+" "+ua)
		} else {
			h.Set("User-Agent", p.userAgent)
		}
	}
	for name, values := range Overrides(c) {
		h[http.CanonicalHeaderKey(name)] = append([]string(nil), values...)
	}
	if p.idHeader != "" {
		id := h.Get(p.idHeader)
		if id == "" {
			id = p.newID()
			h.Set(p.idHeader, id)
		}
		hc.Put(requestIDKey{}, id)
	}
	return hc
}

type overridesKey struct{}

type requestIDKey struct{}

// WithOverrides attaches header overrides to c. The headers policy
// writes them onto the request after setting its own headers, so they
// replace any same-named header. Calling WithOverrides again merges the
// new overrides over the old ones.
func WithOverrides(c *request.Call, h http.Header) {
	merged := Overrides(c).Clone()
	if merged == nil {
		merged = make(http.Header, len(h))
	}
	for name, values := range h {
		merged[http.CanonicalHeaderKey(name)] = append([]string(nil), values...)
	}
	c.Put(overridesKey{}, merged)
}

// Overrides returns the header overrides attached to c, or nil. The
// returned header must not be modified.
func Overrides(c *request.Call) http.Header {
	h, _ := calldata.Lookup[http.Header](c.Data, overridesKey{})
	return h
}

// RequestID returns the request id the headers policy assigned to c,
// or the empty string. It is available to policies placed after the
// headers policy.
func RequestID(c *request.Call) string {
	id, _ := calldata.Lookup[string](c.Data, requestIDKey{})
	return id
}
