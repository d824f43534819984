// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"context"

	"github.com/gogama/httppipe/calldata"
)

// A Call is the state one policy hands to the next while a request
// travels down a pipeline.
//
// A Call is confined to one attempt of one logical call: it is never
// shared between concurrent attempts. Policies that re-send (retry,
// redirect, auth challenge) give each attempt its own Call made with
// Clone, which is why downstream changes to Request or Data never leak
// into a sibling attempt.
type Call struct {
	// Request is the request to send on this attempt. Policies may
	// modify it before passing the call on.
	Request *Request

	// Data holds call-scoped metadata. Use Put to add pairs; Data
	// values themselves are immutable.
	Data calldata.Data

	// Attempt is the zero-based attempt number assigned by the nearest
	// enclosing retry policy. It is zero on the original attempt.
	Attempt int

	// ctx carries cancellation and deadlines for the call. It should
	// only be modified by copying the whole Call using WithContext.
	ctx context.Context
}

// NewCall returns a Call for req whose cancellation is controlled by
// ctx, which must be non-nil.
func NewCall(ctx context.Context, req *Request) *Call {
	if ctx == nil {
		panic(nilCtxMsg)
	}
	return &Call{Request: req, ctx: ctx}
}

// Context returns the call's context. The returned context is always
// non-nil; it defaults to the background context.
func (c *Call) Context() context.Context {
	if c.ctx != nil {
		return c.ctx
	}
	return context.Background()
}

// WithContext returns a shallow copy of c with its context changed to
// ctx, which must be non-nil.
func (c *Call) WithContext(ctx context.Context) *Call {
	if ctx == nil {
		panic(nilCtxMsg)
	}
	c2 := new(Call)
	*c2 = *c
	c2.ctx = ctx
	return c2
}

// Clone returns a copy of c with a cloned Request, suitable for one
// more attempt at sending the same logical request.
func (c *Call) Clone() *Call {
	c2 := new(Call)
	*c2 = *c
	if c.Request != nil {
		c2.Request = c.Request.Clone()
	}
	return c2
}

// Put adds a key/value pair to the call's data.
//
// The key must follow the same rules as the key parameter in
// context.WithValue, namely it:
//
// • may not be nil;
//
// • must be comparable;
//
// • should not be of type string or any other built-in type to avoid
// collisions between different policies putting data into the same
// call.
func (c *Call) Put(key, value interface{}) {
	c.Data = c.Data.Put(key, value)
}

// Value returns the most recent value put for key, or nil.
func (c *Call) Value(key interface{}) interface{} {
	return c.Data.Value(key)
}
