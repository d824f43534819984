// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package cache provides a pipeline policy that serves fresh GET
// responses from an in-memory cache without sending a request.
//
// The cache is backed by github.com/allegro/bigcache/v3. Only complete
// 200 responses to GET requests are stored, for the time given by the
// response's Cache-Control max-age directive or a default TTL.
package cache

import (
	"bytes"
	"context"
	"encoding/gob"
	"io"
	"io/ioutil"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/gogama/httppipe/pipeline"
	"github.com/gogama/httppipe/request"
)

const (
	// DefaultTTL is how long responses without a max-age are kept.
	DefaultTTL = time.Minute

	// DefaultMaxTTL bounds how long any response is kept.
	DefaultMaxTTL = 10 * time.Minute

	// DefaultMaxBodySize is the largest body the cache stores.
	DefaultMaxBodySize = 1 << 20
)

// A Recorder is told about cache lookups. The metrics package's
// Collector is a Recorder.
type Recorder interface {
	CacheHit(c *request.Call)
	CacheMiss(c *request.Call)
}

// Options configure a Policy.
type Options struct {
	// TTL is how long a response without a max-age directive stays
	// fresh. If zero, DefaultTTL is used.
	TTL time.Duration

	// MaxTTL caps the freshness lifetime of any response. It is also
	// the eviction window of the underlying cache. If zero,
	// DefaultMaxTTL is used.
	MaxTTL time.Duration

	// MaxBodySize is the largest response body stored. If zero,
	// DefaultMaxBodySize is used.
	MaxBodySize int

	// HardMaxCacheSize limits the cache size in MB. Zero means no
	// limit.
	HardMaxCacheSize int

	// Recorder, if not nil, is told about every lookup.
	Recorder Recorder

	// Now returns the current time. If nil, time.Now is used.
	Now func() time.Time
}

// A Policy is a pipeline policy that short-circuits the rest of the
// pipeline for GET requests it holds a fresh response for. Other
// requests pass through, and their cacheable responses are stored on
// the way back.
//
// Requests with a Cache-Control no-cache or no-store directive bypass
// the lookup. Responses with a no-store, no-cache or private directive
// are never stored.
//
// A response that is stored is read into memory first. The caller then
// gets a new Response over the same bytes, open and not yet read, and
// the response received from the rest of the pipeline is closed.
//
// Place the Policy first in the pipeline, so that cache hits skip
// retries, authorization and the network altogether.
//
// Policy is safe for concurrent use by multiple goroutines.
type Policy struct {
	cache       *bigcache.BigCache
	ttl         time.Duration
	maxTTL      time.Duration
	maxBodySize int
	rec         Recorder
	now         func() time.Time
}

// entry is the cached form of a response.
type entry struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Expires    time.Time
}

// New returns a Policy configured by opts. Call Close to release the
// cache when done with it.
func New(opts Options) (*Policy, error) {
	p := &Policy{
		ttl:         opts.TTL,
		maxTTL:      opts.MaxTTL,
		maxBodySize: opts.MaxBodySize,
		rec:         opts.Recorder,
		now:         opts.Now,
	}
	if p.ttl <= 0 {
		p.ttl = DefaultTTL
	}
	if p.maxTTL <= 0 {
		p.maxTTL = DefaultMaxTTL
	}
	if p.ttl > p.maxTTL {
		p.ttl = p.maxTTL
	}
	if p.maxBodySize <= 0 {
		p.maxBodySize = DefaultMaxBodySize
	}
	if p.now == nil {
		p.now = time.Now
	}
	config := bigcache.DefaultConfig(p.maxTTL)
	config.Shards = 64
	config.CleanWindow = p.maxTTL / 2
	config.HardMaxCacheSize = opts.HardMaxCacheSize
	config.Verbose = false
	c, err := bigcache.New(context.Background(), config)
	if err != nil {
		return nil, err
	}
	p.cache = c
	return p, nil
}

// Close releases the cache.
func (p *Policy) Close() error {
	return p.cache.Close()
}

// Len returns the number of stored responses, fresh or not.
func (p *Policy) Len() int {
	return p.cache.Len()
}

// ProcessSync implements the blocking form of the policy.
func (p *Policy) ProcessSync(c *request.Call, next pipeline.Next) (*request.Response, error) {
	key, ok := p.key(c)
	if !ok {
		return next.ProcessSync(c)
	}
	if resp := p.lookup(c, key); resp != nil {
		return resp, nil
	}
	resp, err := next.ProcessSync(c)
	return p.store(key, resp, err)
}

// Process implements the suspension-capable form of the policy.
func (p *Policy) Process(c *request.Call, next pipeline.Next) *pipeline.Future {
	key, ok := p.key(c)
	if !ok {
		return next.Process(c)
	}
	if resp := p.lookup(c, key); resp != nil {
		return pipeline.Completed(resp, nil)
	}
	return next.Process(c).Then(func(resp *request.Response, err error) *pipeline.Future {
		if !p.storable(resp, err) {
			return pipeline.Completed(resp, err)
		}
		return pipeline.Spawn(next.Scheduler(), func() *pipeline.Future {
			return pipeline.Completed(p.store(key, resp, err))
		})
	})
}

func (p *Policy) key(c *request.Call) (string, bool) {
	req := c.Request
	if req == nil || req.URL == nil || req.Method != http.MethodGet || req.Body != nil {
		return "", false
	}
	cc := directives(req.Header)
	if cc["no-store"] || cc["no-cache"] {
		return "", false
	}
	return req.Method + " " + req.URL.String(), true
}

func (p *Policy) lookup(c *request.Call, key string) *request.Response {
	b, err := p.cache.Get(key)
	if err != nil {
		p.miss(c)
		return nil
	}
	var e entry
	if err = gob.NewDecoder(bytes.NewReader(b)).Decode(&e); err != nil || !p.now().Before(e.Expires) {
		_ = p.cache.Delete(key)
		p.miss(c)
		return nil
	}
	if p.rec != nil {
		p.rec.CacheHit(c)
	}
	resp := request.NewResponse(e.StatusCode, e.Header, ioutil.NopCloser(bytes.NewReader(e.Body)))
	resp.Request = c.Request
	return resp
}

func (p *Policy) miss(c *request.Call) {
	if p.rec != nil {
		p.rec.CacheMiss(c)
	}
}

func (p *Policy) storable(resp *request.Response, err error) bool {
	if err != nil || resp == nil || resp.StatusCode != http.StatusOK {
		return false
	}
	cc := directives(resp.Header)
	return !cc["no-store"] && !cc["no-cache"] && !cc["private"]
}

// store reads resp's body and caches it if it is small enough. It
// returns a new, open response carrying the same status, header and
// body bytes; resp itself is released.
func (p *Policy) store(key string, resp *request.Response, err error) (*request.Response, error) {
	if !p.storable(resp, err) {
		return resp, err
	}
	buf, rerr := ioutil.ReadAll(io.LimitReader(resp.Body, int64(p.maxBodySize)+1))
	switch {
	case rerr != nil:
		return reissue(resp, &prefixBody{r: io.MultiReader(bytes.NewReader(buf), errReader{rerr}), c: resp.Body}), nil
	case len(buf) > p.maxBodySize:
		return reissue(resp, &prefixBody{r: io.MultiReader(bytes.NewReader(buf), resp.Body), c: resp.Body}), nil
	}
	_ = resp.Body.Close()

	e := entry{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       buf,
		Expires:    p.now().Add(p.lifetime(resp.Header)),
	}
	var enc bytes.Buffer
	if gob.NewEncoder(&enc).Encode(&e) == nil {
		_ = p.cache.Set(key, enc.Bytes())
	}
	return reissue(resp, ioutil.NopCloser(bytes.NewReader(buf))), nil
}

func reissue(resp *request.Response, body io.ReadCloser) *request.Response {
	out := request.NewResponse(resp.StatusCode, resp.Header, body)
	out.Request = resp.Request
	return out
}

func (p *Policy) lifetime(h http.Header) time.Duration {
	d := p.ttl
	for _, v := range h.Values("Cache-Control") {
		for _, part := range strings.Split(v, ",") {
			name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
			if !ok || !strings.EqualFold(name, "max-age") {
				continue
			}
			if secs, err := strconv.Atoi(strings.Trim(value, `"`)); err == nil && secs >= 0 {
				d = time.Duration(secs) * time.Second
			}
		}
	}
	if d > p.maxTTL {
		d = p.maxTTL
	}
	return d
}

func directives(h http.Header) map[string]bool {
	m := make(map[string]bool)
	for _, v := range h.Values("Cache-Control") {
		for _, part := range strings.Split(v, ",") {
			name, _, _ := strings.Cut(strings.TrimSpace(part), "=")
			m[strings.ToLower(name)] = true
		}
	}
	return m
}

// prefixBody replays the bytes the cache read from a body, followed by
// whatever is left of it.
type prefixBody struct {
	r io.Reader
	c io.Closer
}

func (b *prefixBody) Read(p []byte) (int, error) {
	return b.r.Read(p)
}

func (b *prefixBody) Close() error {
	return b.c.Close()
}

type errReader struct {
	err error
}

func (r errReader) Read([]byte) (int, error) {
	return 0, r.err
}
