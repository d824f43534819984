// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"context"
	"errors"
	"time"

	"github.com/gogama/httppipe/transient"
)

// A Decider decides if a retry should be done.
//
// Implementations of Decider must be safe for concurrent use by
// multiple goroutines.
//
// Use the built-in constructors Times, StatusCode, and Before, and the
// built-in deciders RetriableErr and TransientErr; or implement your
// Decider. Use DeciderFunc to convert an ordinary function into a
// Decider, and to compose deciders logically using DeciderFunc.And and
// DeciderFunc.Or.
type Decider interface {
	Decide(o *Outcome) bool
}

// The DeciderFunc type is an adapter to allow the use of ordinary
// functions as retry deciders. It implements the Decider interface, and
// also provides the logical composition methods And and Or.
//
// Every DeciderFunc must be safe for concurrent use by multiple
// goroutines.
type DeciderFunc func(o *Outcome) bool

// DefaultTimes is the number of times DefaultDecider will retry.
const DefaultTimes = 3

// DefaultStatusCodes are the response status codes DefaultDecider
// retries: 408 (Request Timeout); 429 (Too Many Requests); 500
// (Internal Server Error); 502 (Bad Gateway); and 503 (Service
// Unavailable).
var DefaultStatusCodes = []int{408, 429, 500, 502, 503}

// DefaultDecider is a general-purpose retry decider suitable for
// common use cases. It will allow up to DefaultTimes retries (i.e. up
// to 4 total attempts), and will retry any error that is retriable
// according to RetriableErr, as well as any response whose status code
// is one of DefaultStatusCodes.
var DefaultDecider = Times(DefaultTimes).And(StatusCode(DefaultStatusCodes...).Or(RetriableErr))

// Never is a decider that never retries.
var Never = Times(0)

// RetriableErr is a decider that indicates a retry for any error
// except cancellation and errors marked with transient.Fatal.
//
// RetriableErr only looks at the error, so it always returns false if
// the attempt got a response.
var RetriableErr DeciderFunc = retriableErr

// TransientErr is a decider that indicates a retry if the current
// error is transient according to transient.Categorize. It is narrower
// than RetriableErr.
var TransientErr DeciderFunc = transientErr

// Decide returns true if a retry should be done, and false otherwise,
// after examining the outcome of the most recent attempt.
func (f DeciderFunc) Decide(o *Outcome) bool {
	return f(o)
}

// And composes two retry deciders into a new decider which returns true
// if both sub-deciders return true, and false otherwise.
//
// Short-circuit logic is used, so g will not be evaluated if f returns
// false.
func (f DeciderFunc) And(g DeciderFunc) DeciderFunc {
	return func(o *Outcome) bool {
		return f(o) && g(o)
	}
}

// Or composes two retry deciders into a new decider which returns
// true if either of the two sub-deciders returns true, but false if
// they both return false.
//
// Short-circuit logic is used, so g will not be evaluated if f returns
// true.
func (f DeciderFunc) Or(g DeciderFunc) DeciderFunc {
	return func(o *Outcome) bool {
		return f(o) || g(o)
	}
}

// Times constructs a retry decider which allows up to n retries. The
// returned decider returns true while the attempt index o.Attempt is
// less than n, and false otherwise.
func Times(n int) DeciderFunc {
	return func(o *Outcome) bool {
		return o.Attempt < n
	}
}

// Before constructs a retry decider allowing retries until a certain
// amount of time has elapsed since the first attempt began.
func Before(d time.Duration) DeciderFunc {
	return func(o *Outcome) bool {
		return o.Duration() < d
	}
}

// StatusCode constructs a retry decider allowing retries based on the
// HTTP response status code. If the attempt received a response whose
// status code is contained in the list ss, the decider returns true.
// Otherwise, it returns false.
func StatusCode(ss ...int) DeciderFunc {
	ss2 := make([]int, len(ss))
	copy(ss2, ss)
	return func(o *Outcome) bool {
		sc := o.StatusCode()
		for _, s := range ss2 {
			if sc == s {
				return true
			}
		}
		return false
	}
}

func retriableErr(o *Outcome) bool {
	return o.Err != nil && !errors.Is(o.Err, context.Canceled) && !transient.IsFatal(o.Err)
}

func transientErr(o *Outcome) bool {
	return transient.Categorize(o.Err) != transient.Not
}
