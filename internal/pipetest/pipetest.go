// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package pipetest provides a scripted transport for testing pipeline
// policies.
package pipetest

import (
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/gogama/httppipe/request"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// A ResponseFunc builds a fresh response for each send. Return one
// from a mock expectation so that repeated calls each get their own
// response object.
type ResponseFunc func(c *request.Call) *request.Response

// Status returns a ResponseFunc producing responses with the given
// status code and header pairs.
func Status(code int, kv ...string) ResponseFunc {
	if len(kv)%2 != 0 {
		panic("httppipe/pipetest: odd number of header arguments")
	}
	return func(c *request.Call) *request.Response {
		h := make(http.Header)
		for i := 0; i < len(kv); i += 2 {
			h.Add(kv[i], kv[i+1])
		}
		body := ioutil.NopCloser(strings.NewReader(fmt.Sprintf("status %d", code)))
		resp := request.NewResponse(code, h, body)
		resp.Request = c.Request
		return resp
	}
}

// A Sent records one send seen by a Transport.
type Sent struct {
	Call    *request.Call
	Method  string
	URL     string
	Header  http.Header
	Body    []byte
	HasBody bool
}

// Transport is a testify mock of a pipeline transport. The transport
// reads each request body completely, as a network transport would,
// and keeps every response it hands out so tests can check that they
// were all released.
type Transport struct {
	mock.Mock
	lock      sync.Mutex
	sent      []Sent
	responses []*request.Response
}

// NewTransport returns a Transport bound to t.
func NewTransport(t *testing.T) *Transport {
	m := &Transport{}
	m.Test(t)
	return m
}

// Send implements the pipeline Transport interface.
func (m *Transport) Send(c *request.Call) (*request.Response, error) {
	s := Sent{
		Call:   c,
		Method: c.Request.Method,
		Header: c.Request.Header.Clone(),
	}
	if c.Request.URL != nil {
		s.URL = c.Request.URL.String()
	}
	if b := c.Request.Body; b != nil {
		rc := b.Reader()
		s.Body, _ = ioutil.ReadAll(rc)
		_ = rc.Close()
		s.HasBody = true
	}
	m.lock.Lock()
	m.sent = append(m.sent, s)
	m.lock.Unlock()

	args := m.Called(c)
	err := args.Error(1)
	var resp *request.Response
	switch x := args.Get(0).(type) {
	case ResponseFunc:
		resp = x(c)
	case *request.Response:
		resp = x
	}
	if resp != nil {
		m.lock.Lock()
		m.responses = append(m.responses, resp)
		m.lock.Unlock()
	}
	return resp, err
}

// Sent returns the sends seen so far, in order.
func (m *Transport) Sent() []Sent {
	m.lock.Lock()
	defer m.lock.Unlock()
	return append([]Sent(nil), m.sent...)
}

// Responses returns the responses handed out so far, in order.
func (m *Transport) Responses() []*request.Response {
	m.lock.Lock()
	defer m.lock.Unlock()
	return append([]*request.Response(nil), m.responses...)
}

// AssertReleased asserts that every response handed out was closed or
// consumed, except final, which must still be open. Pass a nil final
// if the call ended in error.
func (m *Transport) AssertReleased(t *testing.T, final *request.Response) bool {
	ok := true
	for i, resp := range m.Responses() {
		if resp == final {
			ok = assert.False(t, resp.Closed(), "final response %d was closed", i) && ok
		} else {
			ok = assert.True(t, resp.Closed(), "response %d was not released", i) && ok
		}
	}
	return ok
}
