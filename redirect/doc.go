// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package redirect provides a pipeline policy that follows HTTP
// redirects.
//
// The policy owns redirect handling, so the transport under it must not
// follow redirects itself. pipeline.HTTPTransport is set up that way by
// default.
//
// Loops end as soon as a target repeats within one call. The
// Authorization header is removed before a hop to another host, or
// before every hop with StripAlways. Other credential-bearing headers,
// such as Cookie, are left alone.
package redirect
