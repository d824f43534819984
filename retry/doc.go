// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package retry provides a pipeline policy that retries failed
// attempts, together with the pieces that decide whether to retry and
// how long to wait.
//
// A Policy is built with NewPolicy from Options holding a
// decision-maker, Decider, and a wait time calculator, Waiter. Both
// have constructors for common use cases, so that a useful policy can
// be quickly assembled:
//
//	decider := retry.Times(3).
//		And(retry.Before(5 * time.Second)).
//		And(retry.StatusCode(500).Or(retry.TransientErr))
//	waiter := retry.NewExpWaiter(100*time.Millisecond, 2*time.Second, retry.FullJitter)
//	policy := retry.NewPolicy(retry.Options{Decider: decider, Waiter: waiter})
//
// A server can override the Waiter through response headers; see
// RetryAfter for the precedence rules.
//
// If the built-in functionality is insufficient, fully custom retry
// behavior can be created via custom implementations of Decider and
// Waiter.
package retry
