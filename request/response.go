// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"io"
	"io/ioutil"
	"net/http"
	"sync/atomic"
)

// maxDrain is the most Close will read from an unconsumed body so the
// underlying connection can be reused. Longer bodies are just closed.
const maxDrain = 64 << 10

// A Response is the response to one attempt at sending a Request.
//
// Every Response produced by a transport must eventually be either
// fully consumed or closed. Whoever holds the Response owns that duty:
// a policy that decides not to return a Response to its caller must
// close it, and the caller of a pipeline must close (or fully read)
// the single Response it receives.
type Response struct {
	// StatusCode is the HTTP status code, e.g. 200.
	StatusCode int

	// Header holds the response header fields.
	Header http.Header

	// Body is the response body stream. It is never nil for a Response
	// built with NewResponse or FromHTTP.
	//
	// Policies may replace Body with a wrapper, provided the wrapper
	// closes the original body when closed.
	Body io.ReadCloser

	// Request is the request whose send produced this response.
	Request *Request

	// state is 1 once the body is closed or read to EOF.
	state *int32
}

// NewResponse constructs a Response whose body is tracked, so that
// Closed reports whether it was closed or fully consumed. A nil body is
// replaced with an empty one.
func NewResponse(statusCode int, header http.Header, body io.ReadCloser) *Response {
	if header == nil {
		header = make(http.Header)
	}
	if body == nil {
		body = http.NoBody
	}
	state := new(int32)
	return &Response{
		StatusCode: statusCode,
		Header:     header,
		Body:       &trackedBody{rc: body, state: state},
		state:      state,
	}
}

// FromHTTP converts a lower-level http.Response into a Response for req.
func FromHTTP(resp *http.Response, req *Request) *Response {
	r := NewResponse(resp.StatusCode, resp.Header, resp.Body)
	r.Request = req
	return r
}

// Close drains a bounded amount of any unread body and closes it. It is
// safe to call Close more than once; only the first call has an effect
// on the underlying body.
func (r *Response) Close() error {
	if r == nil || r.Body == nil {
		return nil
	}
	_, _ = io.CopyN(ioutil.Discard, r.Body, maxDrain)
	return r.Body.Close()
}

// Closed reports whether the body has been closed or read to EOF.
//
// Responses not built with NewResponse or FromHTTP are never reported
// closed.
func (r *Response) Closed() bool {
	return r != nil && r.state != nil && atomic.LoadInt32(r.state) == 1
}

// ReadAll reads the whole body and closes it.
func (r *Response) ReadAll() ([]byte, error) {
	b, err := ioutil.ReadAll(r.Body)
	cerr := r.Body.Close()
	if err == nil {
		err = cerr
	}
	return b, err
}

type trackedBody struct {
	rc     io.ReadCloser
	state  *int32
	closed int32
}

func (b *trackedBody) Read(p []byte) (int, error) {
	n, err := b.rc.Read(p)
	if err == io.EOF {
		atomic.StoreInt32(b.state, 1)
	}
	return n, err
}

func (b *trackedBody) Close() error {
	if !atomic.CompareAndSwapInt32(&b.closed, 0, 1) {
		return nil
	}
	atomic.StoreInt32(b.state, 1)
	return b.rc.Close()
}
