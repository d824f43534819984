// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"context"

	"github.com/gogama/httppipe/request"
)

// A Pipeline is an ordered chain of policies in front of a transport.
//
// Policies run in list order on the way down to the transport and in
// reverse order on the way back up, for every attempt. A Pipeline is
// immutable once built and is safe for concurrent use by multiple
// goroutines, in either discipline.
type Pipeline struct {
	policies  []Policy
	async     []AsyncPolicy
	transport Transport
	sched     Scheduler
}

// New builds a pipeline that sends through t after running policies.
//
// Whether each policy has a suspension-capable form is checked here,
// once. Blocking-only policies are run on the Scheduler during
// suspension-capable sends.
func New(t Transport, policies ...Policy) *Pipeline {
	if t == nil {
		panic("httppipe/pipeline: nil transport")
	}
	p := &Pipeline{
		policies:  make([]Policy, len(policies)),
		async:     make([]AsyncPolicy, len(policies)),
		transport: t,
		sched:     DefaultScheduler,
	}
	for i, policy := range policies {
		if policy == nil {
			panic("httppipe/pipeline: nil policy")
		}
		p.policies[i] = policy
		if ap, ok := policy.(AsyncPolicy); ok {
			p.async[i] = ap
		} else {
			p.async[i] = syncBridge{policy}
		}
	}
	return p
}

// WithScheduler returns a copy of p that uses s for suspension-capable
// sends.
func (p *Pipeline) WithScheduler(s Scheduler) *Pipeline {
	if s == nil {
		panic("httppipe/pipeline: nil scheduler")
	}
	p2 := *p
	p2.sched = s
	return &p2
}

// Len returns the number of policies in p.
func (p *Pipeline) Len() int {
	return len(p.policies)
}

// Send sends c through the pipeline, blocking until the final response
// is available. Any delays, such as retry back-off, are real sleeps on
// the calling goroutine.
//
// On success the caller owns the returned Response and must close it
// or read it fully.
//
// A panic in a policy or the transport ends the send with an error,
// exactly as it does in SendAsync.
func (p *Pipeline) Send(c *request.Call) (resp *request.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, panicError(r)
		}
	}()
	return Next{p: p, blocking: true}.ProcessSync(c)
}

// SendAsync sends c through the pipeline without blocking and returns
// a Future for the final response.
func (p *Pipeline) SendAsync(c *request.Call) (f *Future) {
	defer func() {
		if r := recover(); r != nil {
			f = Completed(nil, panicError(r))
		}
	}()
	return Next{p: p}.Process(c)
}

// Do is a convenience wrapper that sends req in a new Call bound to ctx.
func (p *Pipeline) Do(ctx context.Context, req *request.Request) (*request.Response, error) {
	return p.Send(request.NewCall(ctx, req))
}

// DoAsync is the suspension-capable counterpart of Do.
func (p *Pipeline) DoAsync(ctx context.Context, req *request.Request) *Future {
	return p.SendAsync(request.NewCall(ctx, req))
}
