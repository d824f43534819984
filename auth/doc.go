// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package auth provides pipeline policies that authorize requests.

BearerPolicy attaches tokens obtained from a TokenCredential:

	p := pipeline.New(&pipeline.HTTPTransport{},
		auth.NewBearerPolicy(auth.Options{
			Credential:           cred,
			Scopes:               []string{"https://api.example.com/.default"},
			AuthorizeOnChallenge: true,
		}),
		retry.NewPolicy(retry.Options{}))

Tokens live in a TokenCache shared by every call through the policy.
The cache is the only mutable state shared between calls, and it is
synchronized: concurrent calls needing a new token wait for a single
credential call.

Placing the bearer policy in front of a retry policy, as above, means a
401 is answered by the bearer policy with a fresh token while transient
failures are retried underneath with the same token.

KeyPolicy attaches a static API key.
*/
package auth
