// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"time"

	"github.com/gogama/httppipe/request"
)

// An Outcome is the result of one attempt, as seen by a Decider or a
// Waiter. Exactly one of Response and Err is normally set.
type Outcome struct {
	// Attempt is the zero-based number of the attempt that just
	// finished. It is zero for the original attempt.
	Attempt int

	// Start is when the first attempt began.
	Start time.Time

	// Request is the request sent on this attempt.
	Request *request.Request

	// Response is the attempt's response, if it got one.
	Response *request.Response

	// Err is the attempt's error, if it failed.
	Err error

	now time.Time
}

// StatusCode returns the status code of the attempt's response, or 0
// if it has none.
func (o *Outcome) StatusCode() int {
	if o.Response == nil {
		return 0
	}
	return o.Response.StatusCode
}

// Duration returns the time elapsed since the first attempt began.
func (o *Outcome) Duration() time.Duration {
	if o.now.IsZero() {
		return time.Since(o.Start)
	}
	return o.now.Sub(o.Start)
}
