// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	urlpkg "net/url"
	"strings"

	"golang.org/x/net/http/httpguts"
)

var (
	template, _ = http.NewRequest("GET", "", nil)
)

const (
	nilCtxMsg = "httppipe/request: nil context"
)

// A Request describes one logical outbound HTTP request.
//
// The field structure mirrors the client-side fields of the lower-level
// http.Request, except that Body is a *Body, which knows whether it can
// be sent more than once. Policies that need to send a request more
// than once (retry, redirect, auth challenge) work on clones made with
// Clone, so every attempt has its own method, URL and headers.
type Request struct {
	// Method specifies the HTTP method (GET, POST, PUT, etc.).
	// An empty string means GET.
	Method string

	// URL specifies the URL to access.
	URL *urlpkg.URL

	// Header contains the request header fields to be sent.
	Header http.Header

	// Body is the request body. A nil Body means no body is sent.
	Body *Body

	// Close stipulates whether to close the connection after sending
	// the request and reading the response.
	Close bool

	// Host optionally overrides the Host header to send. If empty, the
	// value of URL.Host will be sent.
	Host string
}

// NewRequest returns a new Request given a method, URL, and optional
// body.
//
// Parameter body may be nil (no body), or it may be a *Body, string,
// []byte, or io.Reader. See BodyFrom for the conversion rules.
func NewRequest(method, url string, body interface{}) (*Request, error) {
	if method == "" {
		method = "GET"
	}
	if !validMethod(method) {
		return nil, fmt.Errorf("httppipe/request: invalid method %q", method)
	}
	u, err := urlpkg.Parse(url)
	if err != nil {
		return nil, err
	}
	u.Host = removeEmptyPort(u.Host)
	b, err := BodyFrom(body)
	if err != nil {
		return nil, err
	}
	return &Request{
		Method: method,
		URL:    u,
		Header: make(http.Header),
		Body:   b,
		Host:   u.Host,
	}, nil
}

// Clone returns a copy of r whose URL and Header can be modified
// without affecting r. The Body is shared: a replayable body can be
// read any number of times, and a streaming body must be made
// replayable (see Body.Recording and Body.Replay) before a second send.
func (r *Request) Clone() *Request {
	r2 := new(Request)
	*r2 = *r
	if r.URL != nil {
		u := *r.URL
		if r.URL.User != nil {
			userinfo := *r.URL.User
			u.User = &userinfo
		}
		r2.URL = &u
	}
	r2.Header = r.Header.Clone()
	if r2.Header == nil {
		r2.Header = make(http.Header)
	}
	return r2
}

// AddCookie adds a cookie to the request. Per RFC 6265 section 5.4,
// AddCookie does not attach more than one Cookie header field. That
// means all cookies, if any, are written into the same line,
// separated by semicolons.
func (r *Request) AddCookie(c *http.Cookie) {
	c2 := &http.Cookie{Name: c.Name, Value: c.Value}
	s := c2.String()
	if h := r.Header.Get("Cookie"); h != "" {
		r.Header.Set("Cookie", h+"; "+s)
	} else {
		r.Header.Set("Cookie", s)
	}
}

// SetBasicAuth sets the request's Authorization header to use HTTP
// Basic Authentication with the provided username and password.
func (r *Request) SetBasicAuth(username, password string) {
	r.Header.Set("Authorization", "Basic "+basicAuth(username, password))
}

// SetHeader sets a header after validating its name. It returns an
// error instead of sending a malformed header field on the wire.
func (r *Request) SetHeader(name, value string) error {
	if !httpguts.ValidHeaderFieldName(name) {
		return fmt.Errorf("httppipe/request: invalid header name %q", name)
	}
	if !httpguts.ValidHeaderFieldValue(value) {
		return fmt.Errorf("httppipe/request: invalid value for header %q", name)
	}
	if r.Header == nil {
		r.Header = make(http.Header)
	}
	r.Header.Set(name, value)
	return nil
}

// ToHTTP creates the lower-level http.Request for a single send of r.
// The context of the new request is set to ctx, which may not be nil.
//
// The http.Request gets a GetBody function only if r's body is
// replayable.
func (r *Request) ToHTTP(ctx context.Context) *http.Request {
	if ctx == nil {
		panic(nilCtxMsg)
	}
	h := template.WithContext(ctx)
	h.Method = r.Method
	if h.Method == "" {
		h.Method = "GET"
	}
	h.URL = r.URL
	h.Header = r.Header
	if h.Header == nil {
		h.Header = make(http.Header)
	}
	if b := r.Body; b != nil && b.Len() != 0 {
		h.Body = b.Reader()
		if b.Replayable() {
			h.GetBody = func() (io.ReadCloser, error) {
				return b.Reader(), nil
			}
		}
		if n := b.Len(); n > 0 {
			h.ContentLength = n
		}
	}
	h.Close = r.Close
	h.Host = r.Host
	return h
}

// basicAuth is lifted verbatim from net/http/client.go.
//
// See 2 (end of page 4) https://www.ietf.org/rfc/rfc2617.txt
// "To receive authorization, the client sends the userid and password,
// separated by a single colon (":") character, within a base64
// encoded string in the credentials."
// It is not meant to be urlencoded.
func basicAuth(username, password string) string {
	auth := username + ":" + password
	return base64.StdEncoding.EncodeToString([]byte(auth))
}

// validMethod reports whether method is an RFC 7230 token. The empty
// string is handled by callers, which interpret it as "GET".
func validMethod(method string) bool {
	return strings.IndexFunc(method, isNotToken) == -1
}

func isNotToken(r rune) bool {
	return !httpguts.IsTokenRune(r)
}

// hasPort is lifted verbatim from net/http/http.go
//
// Given a string of the form "host", "host:port", or "[ipv6::address]:port",
// return true if the string includes a port.
func hasPort(s string) bool { return strings.LastIndex(s, ":") > strings.LastIndex(s, "]") }

// removeEmptyPort is lifted verbatim from net/http/http.go
//
// removeEmptyPort strips the empty port in ":port" to ""
// as mandated by RFC 3986 Section 6.2.3.
func removeEmptyPort(host string) string {
	if hasPort(host) {
		return strings.TrimSuffix(host, ":")
	}
	return host
}
