// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httppipe

// An Event identifies the event type when installing or running a
// Handler. Install event handlers in a Client to extend it with custom
// functionality.
type Event int

const (
	// BeforeExecutionStart identifies the event that occurs before the
	// call enters the client's pipeline.
	//
	// When Client fires BeforeExecutionStart, the execution's Call and
	// Start fields are set. Handlers may still put data into the call.
	BeforeExecutionStart Event = iota
	// BeforeAttempt identifies the event that occurs before each
	// individual HTTP request attempt, after every policy of the
	// pipeline has had its say and just before the transport sends it.
	//
	// When Client fires BeforeAttempt, the execution's Request field
	// is set to the request that WILL BE sent after all BeforeAttempt
	// handlers have finished, and its Attempt field is set to the
	// attempt number. The request belongs to this attempt only, so
	// handlers may modify it freely, or replace it altogether.
	BeforeAttempt
	// AfterAttempt identifies the event that occurs after an HTTP
	// request attempt is concluded, regardless of whether it concluded
	// successfully or not.
	//
	// When Client fires AfterAttempt, exactly one of the execution's
	// Response and Err fields is non-nil. AfterAttempt runs before any
	// retry, redirect or authorization policy looks at the outcome.
	// Handlers must not read or close the response body.
	AfterAttempt
	// AfterExecutionEnd identifies the event that occurs after the
	// call leaves the client's pipeline.
	//
	// When Client fires AfterExecutionEnd, the execution's Response and
	// Err fields hold the final outcome returned to the caller, and
	// its End field is set.
	AfterExecutionEnd
	// eventSentinel provides the total number of events typed as an
	// Event.
	eventSentinel

	// numEvents provides the total number of events types as an int.
	numEvents = int(eventSentinel)
)

var eventNames = []string{
	"BeforeExecutionStart",
	"BeforeAttempt",
	"AfterAttempt",
	"AfterExecutionEnd",
}

// Events returns a slice containing all events which can occur while
// Client executes a call, in the order in which they would occur.
func Events() []Event {
	return []Event{
		BeforeExecutionStart,
		BeforeAttempt,
		AfterAttempt,
		AfterExecutionEnd,
	}
}

// Name returns the name of the event.
func (evt Event) Name() string {
	return eventNames[int(evt)]
}

// String returns the name of the event.
func (evt Event) String() string {
	return evt.Name()
}
