// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"fmt"

	"github.com/gogama/httppipe/request"
)

// A Policy is one link in a pipeline. It implements cross-cutting
// behavior (authentication, redirects, retries, logging) around the
// rest of the chain, which it reaches through next.
//
// ProcessSync is the blocking form: it occupies the calling goroutine
// until the response is available. A Policy that also implements the
// suspension-capable form should implement AsyncPolicy.
//
// A Policy may return without calling next (short-circuit), or call it
// more than once. Every Response obtained from next that a Policy does
// not return must be closed by that Policy before it returns.
//
// Implementations of Policy must be safe for concurrent use by multiple
// goroutines.
type Policy interface {
	ProcessSync(c *request.Call, next Next) (*request.Response, error)
}

// An AsyncPolicy is a Policy that also has a suspension-capable form.
//
// Process must not block. It returns a Future for the response and
// reaches the rest of the chain through next.Process, waiting on delays
// through next.Delay.
//
// Both forms of an AsyncPolicy must have the same externally observable
// behavior.
type AsyncPolicy interface {
	Policy
	Process(c *request.Call, next Next) *Future
}

// The SyncFunc type is an adapter to allow the use of ordinary
// functions as blocking-only policies. In a suspension-capable send,
// the pipeline runs a SyncFunc on its Scheduler.
type SyncFunc func(c *request.Call, next Next) (*request.Response, error)

// ProcessSync calls f(c, next).
func (f SyncFunc) ProcessSync(c *request.Call, next Next) (*request.Response, error) {
	return f(c, next)
}

// The AsyncFunc type is an adapter to allow the use of ordinary
// functions returning a Future as policies. In a blocking send, the
// rest of the chain runs on the calling goroutine and the Future is
// awaited.
type AsyncFunc func(c *request.Call, next Next) *Future

// Process calls f(c, next).
func (f AsyncFunc) Process(c *request.Call, next Next) *Future {
	return f(c, next)
}

// ProcessSync runs f to completion.
func (f AsyncFunc) ProcessSync(c *request.Call, next Next) (*request.Response, error) {
	return f(c, next).Result()
}

// syncBridge runs a blocking-only policy in a suspension-capable send.
type syncBridge struct {
	Policy
}

func (b syncBridge) Process(c *request.Call, next Next) *Future {
	return Spawn(next.p.sched, func() *Future {
		return Completed(b.ProcessSync(c, next))
	})
}

func recoverInto(f *Future) {
	if r := recover(); r != nil {
		f.Complete(nil, panicError(r))
	}
}

func panicError(r interface{}) error {
	return fmt.Errorf("httppipe/pipeline: panic: %v", r)
}
