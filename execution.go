// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httppipe

import (
	"time"

	"github.com/gogama/httppipe/request"
)

// An Execution is the state of one Client call, as seen by event
// handlers. The Client creates one Execution per call and updates it
// as the call progresses; the fields set at each event are documented
// on the Event constants.
//
// Handlers run sequentially for a given call, never concurrently, so
// they may read and write the Execution without locking. An Execution
// must not be retained after its AfterExecutionEnd event.
type Execution struct {
	// Call is the call the caller handed to the Client.
	Call *request.Call

	// Request is the request of the current attempt.
	Request *request.Request

	// Attempt is the attempt number assigned by the retry policy. It is
	// zero on the original attempt.
	Attempt int

	// Response is the response to the current attempt or, at the end,
	// the final response.
	Response *request.Response

	// Err is the error of the current attempt or, at the end, the final
	// error.
	Err error

	// Start is when the call entered the Client's pipeline.
	Start time.Time

	// End is when the call left the Client's pipeline.
	End time.Time
}

// StatusCode returns the status code of the execution's response, or
// zero if there is no response.
func (x *Execution) StatusCode() int {
	if x.Response == nil {
		return 0
	}
	return x.Response.StatusCode
}
