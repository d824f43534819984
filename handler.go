// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httppipe

import (
	"github.com/gogama/httppipe/calldata"
	"github.com/gogama/httppipe/pipeline"
	"github.com/gogama/httppipe/request"
)

// A HandlerGroup is a group of event handler chains which can be
// installed in a Client.
type HandlerGroup struct {
	handlers [][]Handler
}

// PushBack adds an event handler to the back of the event handler chain
// for a specific event type.
func (g *HandlerGroup) PushBack(evt Event, h Handler) {
	if h == nil {
		panic("httppipe: nil handler")
	}

	if g.handlers == nil {
		g.handlers = make([][]Handler, numEvents)
	}

	g.handlers[evt] = append(g.handlers[evt], h)
}

func (g *HandlerGroup) run(evt Event, x *Execution) {
	i := int(evt)
	if i < len(g.handlers) {
		run(g.handlers[i], evt, x)
	}
}

func run(chain []Handler, evt Event, x *Execution) {
	for _, h := range chain {
		h.Handle(evt, x)
	}
}

// A Handler handles the occurrence of an event during the execution of
// a call.
type Handler interface {
	Handle(Event, *Execution)
}

// The HandlerFunc type is an adapter to allow the use of ordinary
// functions as event handlers. If f is a function with appropriate
// signature, then HandlerFunc(f) is a Handler that calls f.
type HandlerFunc func(Event, *Execution)

// Handle calls f(evt, x).
func (f HandlerFunc) Handle(evt Event, x *Execution) {
	f(evt, x)
}

type executionKey struct{}

// attemptEvents is the innermost policy of a Client's pipeline. It
// fires BeforeAttempt and AfterAttempt around each transport send.
type attemptEvents struct {
	handlers *HandlerGroup
}

func (p attemptEvents) ProcessSync(c *request.Call, next pipeline.Next) (*request.Response, error) {
	x, ac := p.before(c)
	resp, err := next.ProcessSync(ac)
	p.after(x, resp, err)
	return resp, err
}

func (p attemptEvents) Process(c *request.Call, next pipeline.Next) *pipeline.Future {
	x, ac := p.before(c)
	return next.Process(ac).Then(func(resp *request.Response, err error) *pipeline.Future {
		p.after(x, resp, err)
		return pipeline.Completed(resp, err)
	})
}

func (p attemptEvents) before(c *request.Call) (*Execution, *request.Call) {
	x, ok := calldata.Lookup[*Execution](c.Data, executionKey{})
	if !ok {
		return nil, c
	}
	x.Request = c.Request
	x.Attempt = c.Attempt
	x.Response = nil
	x.Err = nil
	p.handlers.run(BeforeAttempt, x)
	if x.Request == c.Request {
		return x, c
	}
	ac := c.WithContext(c.Context())
	ac.Request = x.Request
	return x, ac
}

func (p attemptEvents) after(x *Execution, resp *request.Response, err error) {
	if x == nil {
		return
	}
	x.Response = resp
	x.Err = err
	p.handlers.run(AfterAttempt, x)
}
