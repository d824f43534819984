// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"context"
	"errors"
	"time"

	"github.com/gogama/httppipe/pipeline"
	"github.com/gogama/httppipe/request"
)

// Options configure a retry Policy. The zero value is a valid
// configuration.
type Options struct {
	// Decider decides whether to retry after each attempt. If nil,
	// DefaultDecider is used.
	Decider Decider

	// Waiter computes the delay before a retry when the response has
	// no usable retry-after header. If nil, DefaultWaiter is used.
	Waiter Waiter

	// IgnoreRetryAfter disables the retry-after response headers, so
	// the Waiter always decides the delay.
	IgnoreRetryAfter bool

	// Now returns the current time. If nil, time.Now is used.
	Now func() time.Time
}

// A Policy is a pipeline policy that re-sends a request through the
// rest of the chain while its Decider allows it.
//
// Before each retry the Policy closes the previous attempt's response
// and makes the request body replayable. In-memory bodies are re-sent
// as they are. A streaming body is recorded while the first attempt
// reads it and materialized into memory once, just before the first
// retry; later retries reuse the same bytes.
//
// The delay before a retry comes from the response's retry-after
// headers if present (see RetryAfter) and from the Waiter otherwise.
// Delays end early if the call's context is done. Attempts that fail
// because the call's context was cancelled, or with an error marked by
// transient.Fatal, are not retried. An attempt that would be retried
// but finds the call's context done ends the call with the context's
// error, and its response is closed.
//
// When attempts run out, the last response is returned as is, with a
// nil error, and the last error is returned as a *Error if earlier
// attempts failed too. Either way, AttemptErrors reports every failed
// attempt.
//
// Policy is safe for concurrent use by multiple goroutines.
type Policy struct {
	decider    Decider
	waiter     Waiter
	retryAfter bool
	now        func() time.Time
}

// NewPolicy returns a retry Policy configured by opts.
func NewPolicy(opts Options) *Policy {
	p := &Policy{
		decider:    opts.Decider,
		waiter:     opts.Waiter,
		retryAfter: !opts.IgnoreRetryAfter,
		now:        opts.Now,
	}
	if p.decider == nil {
		p.decider = DefaultDecider
	}
	if p.waiter == nil {
		p.waiter = DefaultWaiter
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// ProcessSync implements the blocking form of the policy. Delays are
// slept on the calling goroutine.
func (p *Policy) ProcessSync(c *request.Call, next pipeline.Next) (*request.Response, error) {
	r := p.begin(c)
	for {
		ac := r.attemptCall()
		resp, err := next.ProcessSync(ac)
		d, again := r.settle(ac, resp, err)
		if !again {
			return r.resp, r.err
		}
		if err = pipeline.Sleep(r.ctx, d); err != nil {
			r.interrupt(err)
			return r.resp, r.err
		}
	}
}

// Process implements the suspension-capable form of the policy. Delays
// are scheduled through next.Delay.
func (p *Policy) Process(c *request.Call, next pipeline.Next) *pipeline.Future {
	return p.begin(c).attemptAsync(next)
}

type run struct {
	p     *Policy
	c     *request.Call
	ctx   context.Context
	start time.Time
	body  *request.Body
	n     int
	errs  []error
	resp  *request.Response
	err   error
}

func (p *Policy) begin(c *request.Call) *run {
	var body *request.Body
	if c.Request != nil {
		body = c.Request.Body.Recording()
	}
	return &run{
		p:     p,
		c:     c,
		ctx:   c.Context(),
		start: p.now(),
		body:  body,
	}
}

func (r *run) attemptCall() *request.Call {
	ac := r.c.Clone()
	ac.Attempt = r.n
	if ac.Request != nil {
		ac.Request.Body = r.body
	}
	return ac
}

func (r *run) attemptAsync(next pipeline.Next) *pipeline.Future {
	ac := r.attemptCall()
	return next.Process(ac).Then(func(resp *request.Response, err error) *pipeline.Future {
		d, again := r.settle(ac, resp, err)
		if !again {
			return pipeline.Completed(r.resp, r.err)
		}
		return next.Delay(r.ctx, d).Then(func(_ *request.Response, err error) *pipeline.Future {
			if err != nil {
				r.interrupt(err)
				return pipeline.Completed(r.resp, r.err)
			}
			return r.attemptAsync(next)
		})
	})
}

// settle examines one attempt. It returns true with the delay to wait
// if another attempt should follow, and otherwise stores the final
// result in r.
func (r *run) settle(ac *request.Call, resp *request.Response, err error) (time.Duration, bool) {
	if err != nil {
		r.errs = append(r.errs, err)
	}
	o := &Outcome{
		Attempt:  r.n,
		Start:    r.start,
		Request:  ac.Request,
		Response: resp,
		Err:      err,
		now:      r.p.now(),
	}
	r.n++
	if !r.retriable(o) {
		r.finish(resp, err)
		return 0, false
	}
	_ = resp.Close()
	if cerr := r.ctx.Err(); cerr != nil {
		if err != nil && errors.Is(err, cerr) {
			r.finish(nil, err)
		} else {
			r.interrupt(cerr)
		}
		return 0, false
	}
	body, rerr := r.body.Replay()
	if rerr != nil {
		r.errs = append(r.errs, rerr)
		r.finish(nil, rerr)
		return 0, false
	}
	r.body = body
	if r.p.retryAfter && resp != nil {
		if d, ok := RetryAfter(resp.Header, o.now); ok {
			return d, true
		}
	}
	return r.p.waiter.Wait(o), true
}

func (r *run) retriable(o *Outcome) bool {
	if o.Err != nil && errors.Is(o.Err, context.Canceled) {
		return false
	}
	return r.p.decider.Decide(o)
}

// interrupt ends the run because the call's context is done.
func (r *run) interrupt(err error) {
	r.errs = append(r.errs, err)
	r.finish(nil, err)
}

func (r *run) finish(resp *request.Response, err error) {
	r.resp = resp
	r.err = err
	if err != nil && len(r.errs) > 1 {
		r.err = &Error{
			Err:        err,
			Suppressed: append([]error(nil), r.errs[:len(r.errs)-1]...),
			Attempts:   r.n,
		}
	}
	track(r.c).add(r.n, r.errs)
}
