// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package timeout

import (
	"math"
	"time"

	"github.com/gogama/httppipe/request"
)

// A Policy defines a timeout policy which chooses the timeout for the
// original attempt of a call, as well as for any subsequent retries.
//
// Implementations of Policy must be safe for concurrent use by multiple
// goroutines.
type Policy interface {
	// Timeout returns the timeout to set on the attempt carried by c.
	// The attempt number is c.Attempt, which is zero on the original
	// attempt and counts up on each retry.
	//
	// A non-positive return value means the attempt has no timeout
	// beyond any deadline already on the call's context.
	Timeout(c *request.Call) time.Duration
}

// DefaultPolicy is the default timeout policy. It sets a fixed timeout
// of 5 seconds on each attempt.
var DefaultPolicy Policy = Fixed(5 * time.Second)

// Infinite is a built-in timeout policy which never times out.
var Infinite Policy = Fixed(math.MaxInt64)

// Fixed constructs a timeout policy that uses the same value to set
// every attempt timeout. The return value is a timeout policy that
// always returns the value d.
//
// Use Fixed to create the typical timeout behavior supported by most
// retrying HTTP client software.
func Fixed(d time.Duration) Policy {
	return policy([]time.Duration{d})
}

// Escalating constructs a timeout policy that gives retries longer
// timeouts than the original attempt.
//
// Use Escalating if you find the remote service often exhibits one-off
// slow response times that can be cured by quickly timing out and
// retrying, but you also need to protect your application (and the
// remote service) from retry storms when the service goes through a
// burst of slowness.
//
// Parameter usual is the timeout of the original attempt. Parameter
// after holds the timeouts of the retries: after[0] for the first
// retry, after[1] for the second, and so on. If there are more retries
// than after has elements, the last element of after is used. With no
// after values, Escalating is the same as Fixed(usual).
//
// Consider the following timeout policy:
//
//	p := Escalating(200*time.Millisecond, time.Second, 10*time.Second)
//
// The policy p gives the original attempt 200 milliseconds, the first
// retry 1 second and every later retry 10 seconds.
func Escalating(usual time.Duration, after ...time.Duration) Policy {
	p := make([]time.Duration, 1, 1+len(after))
	p[0] = usual
	return policy(append(p, after...))
}

type policy []time.Duration

func (p policy) Timeout(c *request.Call) time.Duration {
	i := c.Attempt
	if i < 0 {
		i = 0
	}
	if i > len(p)-1 {
		i = len(p) - 1
	}

	return p[i]
}
