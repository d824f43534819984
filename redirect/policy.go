// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package redirect

import (
	"errors"
	"net"
	urlpkg "net/url"
	"strings"

	"github.com/gogama/httppipe/calldata"
	"github.com/gogama/httppipe/pipeline"
	"github.com/gogama/httppipe/request"
)

// A Policy is a pipeline policy that follows redirect responses.
//
// A redirect target that was already followed during the call is not
// followed again, and neither is any redirect past the hop limit: in both
// cases the redirect response itself is returned. Every redirect
// response that is followed is closed before the next hop is sent.
//
// A request body is only re-sent on 307 and 308 redirects of methods
// outside the allowed set, and only if the body is replayable. A
// streaming body is replayable if an outer policy, such as a retry
// policy, is recording it. Otherwise the redirect response is returned.
//
// Policy is safe for concurrent use by multiple goroutines.
type Policy struct {
	maxHops  int
	location string
	statuses map[int]bool
	allowed  map[string]bool
	strip    StripMode
}

// NewPolicy returns a redirect Policy configured by opts.
func NewPolicy(opts Options) *Policy {
	p := &Policy{
		maxHops:  opts.MaxHops,
		location: opts.LocationHeader,
		statuses: make(map[int]bool),
		allowed:  make(map[string]bool),
		strip:    opts.StripAuthorization,
	}
	if p.maxHops == 0 {
		p.maxHops = DefaultMaxHops
	}
	if p.location == "" {
		p.location = "Location"
	}
	statuses := opts.StatusCodes
	if len(statuses) == 0 {
		statuses = DefaultStatusCodes
	}
	for _, s := range statuses {
		p.statuses[s] = true
	}
	methods := opts.AllowedMethods
	if len(methods) == 0 {
		methods = DefaultAllowedMethods
	}
	for _, m := range methods {
		p.allowed[strings.ToUpper(m)] = true
	}
	return p
}

// ProcessSync implements the blocking form of the policy.
func (p *Policy) ProcessSync(c *request.Call, next pipeline.Next) (*request.Response, error) {
	r := p.begin(c)
	hc := r.c.Clone()
	for {
		resp, err := next.ProcessSync(hc)
		if err != nil {
			return nil, err
		}
		hc, err = r.follow(hc, resp)
		if err != nil || hc == nil {
			return r.end(resp, err)
		}
	}
}

// Process implements the suspension-capable form of the policy.
func (p *Policy) Process(c *request.Call, next pipeline.Next) *pipeline.Future {
	r := p.begin(c)
	return r.hopAsync(r.c.Clone(), next)
}

type hopsKey struct{}

// Hops returns the redirect targets followed for c, in order, or nil
// if none were followed.
func Hops(c *request.Call) []string {
	hops, _ := calldata.Lookup[[]string](c.Data, hopsKey{})
	return hops
}

type run struct {
	p       *Policy
	c       *request.Call
	visited map[string]bool
	hops    []string
}

func (p *Policy) begin(c *request.Call) *run {
	return &run{
		p:       p,
		c:       c,
		visited: make(map[string]bool),
	}
}

func (r *run) hopAsync(hc *request.Call, next pipeline.Next) *pipeline.Future {
	return next.Process(hc).Then(func(resp *request.Response, err error) *pipeline.Future {
		if err != nil {
			return pipeline.Completed(nil, err)
		}
		nc, err := r.follow(hc, resp)
		if err != nil || nc == nil {
			return pipeline.Completed(r.end(resp, err))
		}
		return r.hopAsync(nc, next)
	})
}

// follow returns the call for the next hop, or nil if resp is final.
// When it returns a call or an error, resp has been closed.
func (r *run) follow(hc *request.Call, resp *request.Response) (*request.Call, error) {
	p := r.p
	if p.maxHops < 0 || len(r.hops) >= p.maxHops || !p.statuses[resp.StatusCode] {
		return nil, nil
	}
	loc := resp.Header.Get(p.location)
	if loc == "" {
		return nil, nil
	}
	prev := hc.Request
	target, err := resolve(prev.URL, loc)
	if err != nil {
		_ = resp.Close()
		return nil, &LocationError{Location: loc, Err: err}
	}
	key := target.String()
	if r.visited[key] {
		return nil, nil
	}

	nc := hc.Clone()
	req := nc.Request
	req.URL = target
	req.Host = ""
	method := prev.Method
	if method == "" {
		method = "GET"
	}
	switch {
	case p.allowed[strings.ToUpper(method)]:
		if req.Body, err = replay(prev.Body); err != nil {
			return nil, nil
		}
	case resp.StatusCode == 307 || resp.StatusCode == 308:
		if req.Body, err = replay(prev.Body); err != nil {
			return nil, nil
		}
	default:
		req.Method = "GET"
		req.Body = nil
		req.Header.Del("Content-Type")
		req.Header.Del("Content-Length")
	}
	if p.strip == StripAlways || !sameHost(prev.URL, target) {
		req.Header.Del("Authorization")
	}

	_ = resp.Close()
	r.visited[key] = true
	r.hops = append(r.hops, key)
	return nc, nil
}

func (r *run) end(resp *request.Response, err error) (*request.Response, error) {
	if len(r.hops) > 0 {
		r.c.Put(hopsKey{}, r.hops)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func replay(b *request.Body) (*request.Body, error) {
	if b == nil || b.Replayable() {
		return b, nil
	}
	return b.Replay()
}

var (
	errUnsupportedScheme = errors.New("unsupported scheme")
	errMissingHost       = errors.New("missing host")
)

// resolve resolves loc against base into an absolute http or https
// URL.
func resolve(base *urlpkg.URL, loc string) (*urlpkg.URL, error) {
	ref, err := urlpkg.Parse(loc)
	if err != nil {
		return nil, err
	}
	target := ref
	if base != nil {
		target = base.ResolveReference(ref)
	}
	switch strings.ToLower(target.Scheme) {
	case "http", "https":
	default:
		return nil, errUnsupportedScheme
	}
	if target.Host == "" {
		return nil, errMissingHost
	}
	return target, nil
}

func sameHost(a, b *urlpkg.URL) bool {
	if a == nil || b == nil {
		return false
	}
	return canonicalAddr(a) == canonicalAddr(b)
}

func canonicalAddr(u *urlpkg.URL) string {
	port := u.Port()
	if port == "" {
		switch strings.ToLower(u.Scheme) {
		case "https":
			port = "443"
		default:
			port = "80"
		}
	}
	return net.JoinHostPort(strings.ToLower(u.Hostname()), port)
}
