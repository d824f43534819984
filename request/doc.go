// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package request contains the core types that flow through a pipeline:
Request (an outbound HTTP request), Body (its payload, which knows
whether it can be re-sent), Response (the result of one send), and Call
(the per-attempt state handed from policy to policy).

Create a request and send it through a pipeline:

	r, err := request.NewRequest("POST", "https://example.com/upload", payload)
	...
	resp, err := p.Send(request.NewCall(ctx, r))
	...
	defer resp.Close()

Bodies come in two kinds. A Body built from a string or []byte is
replayable and may be sent any number of times without copying. A Body
built from an io.Reader is a one-shot stream; a policy that needs to
send it again wraps it with Body.Recording before the first send and
calls Body.Replay before the second, which materializes the bytes into
memory exactly once.

Every Response returned by a transport must be either fully consumed or
closed. Response.Closed reports which responses have been released,
which makes leaks easy to test for.
*/
package request
