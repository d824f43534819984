// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"math/rand/v2"
	"time"
)

// A Waiter computes the delay before the next attempt.
//
// A retry Policy only calls its Waiter after its Decider allowed a
// retry, and only if the response carried no usable retry-after header
// (see RetryAfter). The Outcome is that of the attempt just finished,
// so o.Attempt is zero when computing the delay before the first
// retry.
//
// Implementations of Waiter must be safe for concurrent use by multiple
// goroutines.
type Waiter interface {
	Wait(o *Outcome) time.Duration
}

// The WaiterFunc type is an adapter to allow the use of ordinary
// functions as waiters.
type WaiterFunc func(o *Outcome) time.Duration

// Wait calls f(o).
func (f WaiterFunc) Wait(o *Outcome) time.Duration {
	return f(o)
}

// DefaultWaiter is the default retry wait policy: exponential backoff
// from 800 milliseconds up to 8 seconds, with full jitter.
var DefaultWaiter = NewExpWaiter(800*time.Millisecond, 8*time.Second, FullJitter)

// NewFixedWaiter returns a Waiter that always waits d.
func NewFixedWaiter(d time.Duration) Waiter {
	return fixedWaiter(d)
}

type fixedWaiter time.Duration

func (w fixedWaiter) Wait(_ *Outcome) time.Duration {
	return time.Duration(w)
}

// A Jitter says how an exponential Waiter randomizes its delay within
// the current ceiling.
type Jitter int

const (
	// NoJitter waits exactly the ceiling.
	NoJitter Jitter = iota
	// FullJitter waits a uniformly random time in [0, ceiling).
	FullJitter
	// EqualJitter waits half the ceiling plus a uniformly random time
	// in [0, ceiling/2).
	EqualJitter
)

// NewExpWaiter returns a Waiter implementing capped exponential
// backoff. The ceiling after the attempt numbered n is:
//
//	ceil := min(base * 2**n, max)
//
// and jitter decides where in that ceiling the delay falls. See
// https://aws.amazon.com/blogs/architecture/exponential-backoff-and-jitter
// for a comparison of the jitter modes.
//
// Base must be positive and max must be at least base.
func NewExpWaiter(base, max time.Duration, jitter Jitter) Waiter {
	if base < 1 {
		panic("httppipe/retry: base must be positive")
	}
	if max < base {
		panic("httppipe/retry: max must be at least base")
	}
	if jitter < NoJitter || jitter > EqualJitter {
		panic("httppipe/retry: invalid jitter")
	}
	return &expWaiter{base: base, max: max, jitter: jitter}
}

type expWaiter struct {
	base   time.Duration
	max    time.Duration
	jitter Jitter
}

func (w *expWaiter) Wait(o *Outcome) time.Duration {
	ceil := w.ceil(o.Attempt)
	switch w.jitter {
	case FullJitter:
		return rand.N(ceil)
	case EqualJitter:
		half := ceil / 2
		if half == 0 {
			return ceil
		}
		return half + rand.N(ceil-half)
	default:
		return ceil
	}
}

func (w *expWaiter) ceil(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	ceil := w.base
	for i := 0; i < attempt && ceil < w.max; i++ {
		ceil *= 2
		if ceil <= 0 {
			return w.max
		}
	}
	if ceil > w.max {
		return w.max
	}
	return ceil
}
