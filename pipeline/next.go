// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"context"
	"time"

	"github.com/gogama/httppipe/request"
)

// Next is a cursor over the rest of a pipeline: the policies after the
// current one, then the transport.
//
// Next is a small value and may be invoked any number of times, which
// is how retry and redirect policies send again.
type Next struct {
	p        *Pipeline
	i        int
	blocking bool
}

// ProcessSync sends c through the rest of the chain and blocks until
// the response is available.
func (n Next) ProcessSync(c *request.Call) (*request.Response, error) {
	if !n.blocking {
		return n.Process(c).Result()
	}
	if n.i < len(n.p.policies) {
		return n.p.policies[n.i].ProcessSync(c, n.advance())
	}
	return n.p.transport.Send(c)
}

// Process sends c through the rest of the chain and returns a Future
// for the response.
//
// Within a blocking send, the rest of the chain runs on the calling
// goroutine and the returned Future is already complete.
func (n Next) Process(c *request.Call) *Future {
	if n.blocking {
		return Completed(n.ProcessSync(c))
	}
	if n.i < len(n.p.async) {
		return n.p.async[n.i].Process(c, n.advance())
	}
	if at, ok := n.p.transport.(AsyncTransport); ok {
		return at.SendAsync(c)
	}
	return Spawn(n.p.sched, func() *Future {
		return Completed(n.p.transport.Send(c))
	})
}

// Delay returns a Future that completes after d, or with ctx's error
// once ctx is done.
//
// Within a blocking send, Delay sleeps on the calling goroutine and
// returns a complete Future. Otherwise the pipeline's Scheduler
// provides the timer.
func (n Next) Delay(ctx context.Context, d time.Duration) *Future {
	if n.blocking {
		return Completed(nil, Sleep(ctx, d))
	}
	return n.p.sched.Delay(ctx, d)
}

// Blocking reports whether the current send is a blocking one.
func (n Next) Blocking() bool {
	return n.blocking
}

// Scheduler returns the pipeline's scheduler.
func (n Next) Scheduler() Scheduler {
	return n.p.sched
}

func (n Next) advance() Next {
	n.i++
	return n
}
