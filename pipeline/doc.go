// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package pipeline runs requests through an ordered chain of policies in
front of a transport.

A pipeline is built once from a Transport and a list of Policy values
and then shared:

	p := pipeline.New(&pipeline.HTTPTransport{},
		auth.NewBearerPolicy(authOpts),
		redirect.NewPolicy(redirect.Options{}),
		retry.NewPolicy(retry.Options{}),
		logging.NewPolicy(logging.Options{Logger: logger}))

Sends come in two disciplines with the same observable behavior. Send
blocks the calling goroutine until the final response is available,
sleeping through any back-off. SendAsync returns a Future at once and
suspends on timers provided by a Scheduler instead of blocking.

A policy supplies the blocking form (Policy) and, optionally, the
suspension-capable form (AsyncPolicy). The pipeline bridges whichever
form is missing: a blocking-only policy runs on the Scheduler during an
async send, and an async-only policy (AsyncFunc) has its Future awaited
during a blocking send, with the rest of the chain running on the
calling goroutine.

Each policy reaches the rest of the chain through a Next cursor, which
may be invoked any number of times. A policy that obtains a Response
and does not return it must close it.
*/
package pipeline
