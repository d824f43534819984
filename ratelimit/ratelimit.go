// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package ratelimit provides a pipeline policy that paces outgoing
// attempts with token-bucket rate limiters from golang.org/x/time/rate.
package ratelimit

import (
	"errors"
	"sync"
	"time"

	"github.com/gogama/httppipe/pipeline"
	"github.com/gogama/httppipe/request"
	"github.com/gogama/httppipe/transient"
	"golang.org/x/time/rate"
)

// ErrExceedsBurst is returned when a limiter can never allow an
// attempt, because its burst size is zero. The policy's errors are
// marked with transient.Fatal, so retry policies do not retry them.
var ErrExceedsBurst = errors.New("httppipe/ratelimit: limiter burst is zero")

// ErrWouldExceedDeadline is returned when the wait for a token would
// outlast the call context's deadline. The policy fails fast instead
// of waiting.
var ErrWouldExceedDeadline = errors.New("httppipe/ratelimit: wait would exceed context deadline")

// A Policy is a pipeline policy that waits for a token from a rate
// limiter before passing each attempt on.
//
// In a blocking send the wait happens on the calling goroutine. In a
// suspension-capable send the policy reserves a token and resumes the
// chain from the pipeline's Scheduler once the reservation is due, so
// no goroutine is parked while waiting. Either way the wait ends early
// with the call context's error when the context is done.
//
// Place the Policy after a retry policy to pace every attempt, or
// before it to pace calls.
type Policy struct {
	limiter *rate.Limiter

	r     rate.Limit
	burst int
	lock  sync.Mutex
	hosts map[string]*rate.Limiter
}

// NewPolicy returns a Policy taking tokens from limiter, which is
// shared by all attempts.
func NewPolicy(limiter *rate.Limiter) *Policy {
	if limiter == nil {
		panic("httppipe/ratelimit: nil limiter")
	}
	return &Policy{limiter: limiter}
}

// PerHost returns a Policy that gives each destination host its own
// limiter, allowing r events per second with bursts of up to burst.
func PerHost(r rate.Limit, burst int) *Policy {
	return &Policy{r: r, burst: burst, hosts: make(map[string]*rate.Limiter)}
}

// Limiter returns the limiter pacing c.
func (p *Policy) Limiter(c *request.Call) *rate.Limiter {
	if p.limiter != nil {
		return p.limiter
	}
	var host string
	if c.Request != nil && c.Request.URL != nil {
		host = c.Request.URL.Host
	}
	p.lock.Lock()
	defer p.lock.Unlock()
	l, ok := p.hosts[host]
	if !ok {
		l = rate.NewLimiter(p.r, p.burst)
		p.hosts[host] = l
	}
	return l
}

// ProcessSync implements the blocking form of the policy.
func (p *Policy) ProcessSync(c *request.Call, next pipeline.Next) (*request.Response, error) {
	l := p.Limiter(c)
	if l.Burst() <= 0 && l.Limit() != rate.Inf {
		return nil, transient.Fatal(ErrExceedsBurst)
	}
	if err := l.Wait(c.Context()); err != nil {
		if ctxErr := c.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, transient.Fatal(ErrWouldExceedDeadline)
	}
	return next.ProcessSync(c)
}

// Process implements the suspension-capable form of the policy.
func (p *Policy) Process(c *request.Call, next pipeline.Next) *pipeline.Future {
	r := p.Limiter(c).Reserve()
	if !r.OK() {
		return pipeline.Completed(nil, transient.Fatal(ErrExceedsBurst))
	}
	d := r.Delay()
	if d <= 0 {
		return next.Process(c)
	}
	ctx := c.Context()
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < d {
		r.Cancel()
		return pipeline.Completed(nil, transient.Fatal(ErrWouldExceedDeadline))
	}
	return next.Delay(ctx, d).Then(func(_ *request.Response, err error) *pipeline.Future {
		if err != nil {
			r.Cancel()
			return pipeline.Completed(nil, err)
		}
		return next.Process(c)
	})
}
