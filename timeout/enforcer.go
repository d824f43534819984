// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package timeout

import (
	"context"
	"io"
	"math"
	"sync"

	"github.com/gogama/httppipe/pipeline"
	"github.com/gogama/httppipe/request"
)

// An Enforcer is a pipeline policy that bounds each attempt passing
// through it by the timeout its Policy chooses.
//
// The attempt's deadline covers reading the response body: it is only
// released when the body is closed or read to the end. Place the
// Enforcer after a retry policy so that each retry gets a fresh
// timeout, and a timed-out attempt is retried.
type Enforcer struct {
	policy Policy
}

// NewEnforcer returns an Enforcer applying p. A nil p means
// DefaultPolicy.
func NewEnforcer(p Policy) *Enforcer {
	if p == nil {
		p = DefaultPolicy
	}
	return &Enforcer{policy: p}
}

// ProcessSync implements the blocking form of the policy.
func (e *Enforcer) ProcessSync(c *request.Call, next pipeline.Next) (*request.Response, error) {
	tc, cancel := e.bound(c)
	if cancel == nil {
		return next.ProcessSync(c)
	}
	resp, err := next.ProcessSync(tc)
	return release(resp, err, cancel)
}

// Process implements the suspension-capable form of the policy.
func (e *Enforcer) Process(c *request.Call, next pipeline.Next) *pipeline.Future {
	tc, cancel := e.bound(c)
	if cancel == nil {
		return next.Process(c)
	}
	return next.Process(tc).Then(func(resp *request.Response, err error) *pipeline.Future {
		return pipeline.Completed(release(resp, err, cancel))
	})
}

func (e *Enforcer) bound(c *request.Call) (*request.Call, context.CancelFunc) {
	d := e.policy.Timeout(c)
	if d <= 0 || d == math.MaxInt64 {
		return c, nil
	}
	ctx, cancel := context.WithTimeout(c.Context(), d)
	return c.WithContext(ctx), cancel
}

func release(resp *request.Response, err error, cancel context.CancelFunc) (*request.Response, error) {
	if resp == nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelBody{rc: resp.Body, cancel: cancel}
	return resp, err
}

// cancelBody releases an attempt's deadline once its body is done.
type cancelBody struct {
	rc     io.ReadCloser
	cancel context.CancelFunc
	once   sync.Once
}

func (b *cancelBody) Read(p []byte) (int, error) {
	n, err := b.rc.Read(p)
	if err == io.EOF {
		b.once.Do(b.cancel)
	}
	return n, err
}

func (b *cancelBody) Close() error {
	err := b.rc.Close()
	b.once.Do(b.cancel)
	return err
}
