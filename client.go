// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httppipe

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gogama/httppipe/auth"
	"github.com/gogama/httppipe/cache"
	"github.com/gogama/httppipe/headers"
	"github.com/gogama/httppipe/logging"
	"github.com/gogama/httppipe/metrics"
	"github.com/gogama/httppipe/pipeline"
	"github.com/gogama/httppipe/ratelimit"
	"github.com/gogama/httppipe/redirect"
	"github.com/gogama/httppipe/request"
	"github.com/gogama/httppipe/retry"
	"github.com/gogama/httppipe/timeout"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var emptyHandlers = HandlerGroup{}

// A Client is a robust HTTP client with retry support. Its zero value
// is a valid configuration.
//
// The zero value client sends requests with a pipeline.HTTPTransport,
// follows redirects with the default redirect policy, retries with the
// default retry policy, sets timeout.DefaultPolicy timeouts on each
// attempt and stamps every call with a request id.
//
// A Client assembles its pipeline from its fields the first time it is
// used. Set the fields before first use and do not change them
// afterwards. Client is safe for concurrent use by multiple
// goroutines, and since its Transport typically caches connections,
// Client instances should be reused instead of created as needed.
//
// The pipeline runs these policies, outermost first, leaving out those
// whose field is not set:
//
// • Cache, which may answer a GET without sending anything;
//
// • the headers policy (UserAgent and a request id);
//
// • the caller's Policies, in order;
//
// • the bearer token policy (Credential and Scopes);
//
// • Redirect;
//
// • Retry;
//
// • RateLimiter;
//
// • Timeout;
//
// • Logger and Metrics, which see every attempt; and
//
// • the BeforeAttempt and AfterAttempt handlers.
//
// The bearer policy sits outside the redirect policy so that a token
// stripped on a cross-host redirect is not put back.
type Client struct {
	// Transport sends each attempt. If nil, a pipeline.HTTPTransport
	// with its default doer is used.
	Transport pipeline.Transport

	// Scheduler runs asynchronous work for DoAsync. If nil,
	// pipeline.DefaultScheduler is used.
	Scheduler pipeline.Scheduler

	// Retry decides when to retry failed attempts and how long to wait
	// in between. If nil, retry.NewPolicy(retry.Options{}) is used.
	Retry *retry.Policy

	// Redirect decides which redirects to follow. If nil,
	// redirect.NewPolicy(redirect.Options{}) is used.
	Redirect *redirect.Policy

	// Credential, if not nil, supplies bearer tokens for Scopes, and
	// the client answers 401 challenges with a fresh token.
	Credential auth.TokenCredential

	// Scopes are requested for bearer tokens.
	Scopes []string

	// AllowHTTP permits sending bearer tokens over plain HTTP.
	AllowHTTP bool

	// UserAgent, if not empty, is sent as the User-Agent header.
	UserAgent string

	// Header holds headers added to every request that does not
	// already carry them.
	Header http.Header

	// Logger, if not nil, receives one entry per attempt.
	Logger *zap.Logger

	// Metrics, if not nil, records Prometheus metrics per attempt.
	Metrics *metrics.Collector

	// RateLimiter, if not nil, paces attempts.
	RateLimiter *rate.Limiter

	// Cache, if not nil, serves fresh GET responses.
	Cache *cache.Policy

	// Timeout sets the timeout of each attempt. If nil,
	// timeout.DefaultPolicy is used.
	Timeout timeout.Policy

	// Handlers allows custom handler chains to be invoked when
	// designated events occur during a call.
	//
	// If Handlers is nil, no custom handlers will be run.
	Handlers *HandlerGroup

	// Policies are extra policies run once per call, after the
	// headers policy and before authorization.
	Policies []pipeline.Policy

	once sync.Once
	pipe *pipeline.Pipeline
}

// Pipeline returns the pipeline the client sends calls through,
// assembling it on first use.
func (c *Client) Pipeline() *pipeline.Pipeline {
	c.once.Do(c.build)
	return c.pipe
}

func (c *Client) build() {
	var ps []pipeline.Policy
	if c.Cache != nil {
		ps = append(ps, c.Cache)
	}
	ps = append(ps, headers.NewPolicy(headers.Options{UserAgent: c.UserAgent, Header: c.Header}))
	ps = append(ps, c.Policies...)
	if c.Credential != nil {
		ps = append(ps, auth.NewBearerPolicy(auth.Options{
			Credential:           c.Credential,
			Scopes:               c.Scopes,
			AuthorizeOnChallenge: true,
			AllowHTTP:            c.AllowHTTP,
		}))
	}
	if c.Redirect != nil {
		ps = append(ps, c.Redirect)
	} else {
		ps = append(ps, redirect.NewPolicy(redirect.Options{}))
	}
	if c.Retry != nil {
		ps = append(ps, c.Retry)
	} else {
		ps = append(ps, retry.NewPolicy(retry.Options{}))
	}
	if c.RateLimiter != nil {
		ps = append(ps, ratelimit.NewPolicy(c.RateLimiter))
	}
	ps = append(ps, timeout.NewEnforcer(c.Timeout))
	if c.Logger != nil {
		ps = append(ps, logging.NewPolicy(logging.Options{Logger: c.Logger}))
	}
	if c.Metrics != nil {
		ps = append(ps, c.Metrics)
	}
	ps = append(ps, attemptEvents{handlers: c.handlers()})

	p := pipeline.New(c.transport(), ps...)
	if c.Scheduler != nil {
		p = p.WithScheduler(c.Scheduler)
	}
	c.pipe = p
}

// Do sends a call through the client's pipeline and returns the final
// response, following the policies configured on Client.
//
// An error is returned if the call finally failed, after any retries,
// redirects and token refreshes. A non-2XX status code does not result
// in an error. On success the caller owns the response and must close
// its body, or read it to the end.
//
// Any returned error will be of type *url.Error, wrapping the
// pipeline's error. Use errors.As to get at a *retry.Error,
// *redirect.LocationError or *auth.Error. Failed attempts of a call
// that ended with a response are reported by retry.AttemptErrors.
//
// For simple use cases, the Get, Head, Post, and PostForm methods may
// prove easier to use than Do.
func (c *Client) Do(call *request.Call) (*request.Response, error) {
	x, h := c.start(call)
	resp, err := c.Pipeline().Send(call)
	return c.end(call, x, h, resp, err)
}

// DoAsync starts sending a call through the client's pipeline and
// returns a Future for the final response. The Future's error, if
// any, is a *url.Error, as with Do.
func (c *Client) DoAsync(call *request.Call) *pipeline.Future {
	x, h := c.start(call)
	return c.Pipeline().SendAsync(call).Then(func(resp *request.Response, err error) *pipeline.Future {
		return pipeline.Completed(c.end(call, x, h, resp, err))
	})
}

func (c *Client) start(call *request.Call) (*Execution, *HandlerGroup) {
	retry.Track(call)
	h := c.handlers()
	if h == &emptyHandlers {
		return nil, h
	}
	x := &Execution{Call: call, Request: call.Request, Start: time.Now()}
	call.Put(executionKey{}, x)
	h.run(BeforeExecutionStart, x)
	return x, h
}

func (c *Client) end(call *request.Call, x *Execution, h *HandlerGroup, resp *request.Response, err error) (*request.Response, error) {
	if err != nil {
		err = urlErrorWrap(call.Request, err)
	}
	if x != nil {
		x.Response = resp
		x.Err = err
		x.End = time.Now()
		h.run(AfterExecutionEnd, x)
	}
	return resp, err
}

// Get issues a GET to the specified URL, using the same policies
// followed by Do.
//
// To send a request with custom headers, use request.NewRequest and
// Client.Do.
func (c *Client) Get(url string) (*request.Response, error) {
	return Get(c, url)
}

// Head issues a HEAD to the specified URL, using the same policies
// followed by Do.
//
// To send a request with custom headers, use request.NewRequest and
// Client.Do.
func (c *Client) Head(url string) (*request.Response, error) {
	return Head(c, url)
}

// Post issues a POST to the specified URL, using the same policies
// followed by Do.
//
// The body parameter may be nil for an empty body, or may be any of the
// types supported by request.BodyFrom, namely: *request.Body; string;
// []byte; and io.Reader.
//
// To send a request with custom headers, use request.NewRequest and
// Client.Do.
func (c *Client) Post(url, contentType string, body interface{}) (*request.Response, error) {
	return Post(c, url, contentType, body)
}

// PostForm issues a POST to the specified URL, with data's keys and
// values URL-encoded as the request body.
//
// The Content-Type header is set to application/x-www-form-urlencoded.
// To set other headers, use request.NewRequest and Client.Do.
func (c *Client) PostForm(url string, data url.Values) (*request.Response, error) {
	return PostForm(c, url, data)
}

// CloseIdleConnections invokes the same method on the client's
// Transport.
//
// If the Transport has no CloseIdleConnections method, this method
// does nothing.
func (c *Client) CloseIdleConnections() {
	if ic, ok := c.transport().(IdleCloser); ok {
		ic.CloseIdleConnections()
	}
}

func (c *Client) transport() pipeline.Transport {
	if c.Transport == nil {
		return &pipeline.HTTPTransport{}
	}

	return c.Transport
}

func (c *Client) handlers() *HandlerGroup {
	if c.Handlers == nil {
		return &emptyHandlers
	}

	return c.Handlers
}

func urlErrorWrap(req *request.Request, err error) error {
	if _, ok := err.(*url.Error); ok {
		return err
	}

	ue := &url.Error{Op: "Get", Err: err}
	if req != nil {
		ue.Op = urlErrorOp(req.Method)
		if req.URL != nil {
			ue.URL = req.URL.String()
		}
	}
	return ue
}

// urlErrorOp is lifted verbatim from net/http/client.go
func urlErrorOp(method string) string {
	if method == "" {
		return "Get"
	}
	return method[:1] + strings.ToLower(method[1:])
}
