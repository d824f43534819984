// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"net/http"

	"github.com/gogama/httppipe/request"
)

// A Transport sends one fully-formed request and returns the response.
// It is the last link in every pipeline.
//
// Send must not modify the request body after reading it. A transport
// error is returned as a non-nil error with a nil Response.
//
// Implementations of Transport must be safe for concurrent use by
// multiple goroutines.
type Transport interface {
	Send(c *request.Call) (*request.Response, error)
}

// An AsyncTransport is a Transport that can also send without blocking.
// Without one, suspension-capable sends run Send on the Scheduler.
type AsyncTransport interface {
	Transport
	SendAsync(c *request.Call) *Future
}

// The TransportFunc type is an adapter to allow the use of ordinary
// functions as transports.
type TransportFunc func(c *request.Call) (*request.Response, error)

// Send calls f(c).
func (f TransportFunc) Send(c *request.Call) (*request.Response, error) {
	return f(c)
}

// An HTTPDoer implements a Do method in the same manner as the GoLang
// standard library http.Client from the net/http package.
type HTTPDoer interface {
	Do(r *http.Request) (*http.Response, error)
}

// NoRedirectClient is an http.Client that never follows redirects, so
// that a redirect policy in the pipeline owns redirect handling.
var NoRedirectClient = &http.Client{
	CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	},
}

// HTTPTransport is a Transport that sends through an HTTPDoer. Its
// zero value uses NoRedirectClient.
type HTTPTransport struct {
	// Doer sends the lower-level HTTP requests. If nil,
	// NoRedirectClient is used.
	Doer HTTPDoer
}

// Send converts c's request into an http.Request bound to c's context
// and sends it.
func (t *HTTPTransport) Send(c *request.Call) (*request.Response, error) {
	h := c.Request.ToHTTP(c.Context())
	resp, err := t.doer().Do(h)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		return nil, err
	}
	return request.FromHTTP(resp, c.Request), nil
}

// CloseIdleConnections invokes the same method on the underlying
// HTTPDoer, if it has one.
func (t *HTTPTransport) CloseIdleConnections() {
	if ic, ok := t.doer().(interface{ CloseIdleConnections() }); ok {
		ic.CloseIdleConnections()
	}
}

func (t *HTTPTransport) doer() HTTPDoer {
	if t == nil || t.Doer == nil {
		return NoRedirectClient
	}
	return t.Doer
}
