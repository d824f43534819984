// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package timeout defines flexible policies for setting per-attempt
// timeouts on requests sent through a pipeline, including on retries.
// A generic interface for choosing timeout values is provided, Policy,
// along with several useful policy generating functions and built-in
// policies. An Enforcer applies a Policy as a pipeline policy.
package timeout
